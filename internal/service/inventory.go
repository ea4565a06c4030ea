package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/kiwari-pos/procurement/internal/apperr"
	"github.com/kiwari-pos/procurement/internal/database"
	"github.com/kiwari-pos/procurement/internal/events"
	"github.com/kiwari-pos/procurement/internal/money"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// InventoryStore defines the DB methods needed by the inventory ledger.
type InventoryStore interface {
	CreateInventoryItem(ctx context.Context, arg database.CreateInventoryItemParams) (database.InventoryItem, error)
	GetInventoryItem(ctx context.Context, arg database.GetInventoryItemParams) (database.InventoryItem, error)
	GetInventoryItemForUpdate(ctx context.Context, arg database.GetInventoryItemParams) (database.InventoryItem, error)
	ListInventoryItems(ctx context.Context, arg database.ListInventoryItemsParams) ([]database.InventoryItem, error)
	UpdateInventoryQuantity(ctx context.Context, arg database.UpdateInventoryQuantityParams) (database.InventoryItem, error)
	UpdateInventoryItemFields(ctx context.Context, arg database.UpdateInventoryItemFieldsParams) (database.InventoryItem, error)
	CreateInventoryLog(ctx context.Context, arg database.CreateInventoryLogParams) (database.InventoryLog, error)
	ListInventoryLogsByItem(ctx context.Context, itemID uuid.UUID) ([]database.InventoryLog, error)
}

type NewInventoryStore func(db database.DBTX) InventoryStore

func ParseChangeType(s string) (database.InventoryChangeType, error) {
	switch ct := database.InventoryChangeType(s); ct {
	case database.InventoryChangeTypeRECEIVED, database.InventoryChangeTypeUSED, database.InventoryChangeTypeADJUSTED,
		database.InventoryChangeTypeWASTE, database.InventoryChangeTypeTRANSFERRED, database.InventoryChangeTypeCOUNT:
		return ct, nil
	}
	return "", apperr.Validation("Invalid changeType")
}

// applyChange computes the next on-hand quantity and the delta to log.
// Quantities never drop below zero.
func applyChange(prev decimal.Decimal, ct database.InventoryChangeType, m decimal.Decimal) (next, delta decimal.Decimal) {
	m = m.Round(money.QuantityPlaces)
	switch ct {
	case database.InventoryChangeTypeCOUNT:
		return m, m.Sub(prev)
	case database.InventoryChangeTypeUSED, database.InventoryChangeTypeWASTE:
		next = prev.Sub(m.Abs())
	default:
		next = prev.Add(m)
	}
	if next.IsNegative() {
		next = decimal.Zero
	}
	return next, m
}

// Replay folds a log from zero. A COUNT entry adds its recorded delta;
// every other entry goes through the same rule as Adjust.
func Replay(entries []database.InventoryLog) decimal.Decimal {
	qty := decimal.Zero
	for _, e := range entries {
		delta := money.FromNumeric(e.Quantity)
		if e.ChangeType == database.InventoryChangeTypeCOUNT {
			qty = qty.Add(delta)
			continue
		}
		qty, _ = applyChange(qty, e.ChangeType, delta)
	}
	return qty
}

type AdjustInput struct {
	ChangeType string
	Quantity   decimal.Decimal
	Notes      *string
	Reference  *string
}

// Adjustment is an item after a ledger entry, together with that entry.
type Adjustment struct {
	Item database.InventoryItem
	Log  database.InventoryLog
}

// ItemUpdate changes descriptive fields. Quantities are only changed through Adjust.
type ItemUpdate struct {
	Name             *string
	Category         *string
	Unit             *string
	ParLevel         *decimal.Decimal
	ClearParLevel    bool
	Location         *string
	Notes            *string
	CatalogItemID    *uuid.UUID
	ClearCatalogItem bool
}

type CreateItemInput struct {
	Name            string
	Category        *string
	Unit            string
	ParLevel        *decimal.Decimal
	Location        *string
	Notes           *string
	CatalogItemID   *uuid.UUID
	InitialQuantity *decimal.Decimal
}

// Reconciliation compares the stored quantity with a replay of the log.
type Reconciliation struct {
	ItemID     uuid.UUID
	Stored     decimal.Decimal
	Replayed   decimal.Decimal
	Entries    int
	Consistent bool
}

// InventoryService owns on-hand quantities and their audit log.
type InventoryService struct {
	pool       Pool
	newStore   NewInventoryStore
	dispatcher *events.Dispatcher
	logger     *zap.Logger
	now        func() time.Time
}

func NewInventoryService(pool Pool, newStore NewInventoryStore, dispatcher *events.Dispatcher, logger *zap.Logger) *InventoryService {
	return &InventoryService{
		pool:       pool,
		newStore:   newStore,
		dispatcher: dispatcher,
		logger:     logger,
		now:        time.Now,
	}
}

func restaurantOf(p Principal) (uuid.UUID, error) {
	if p.RestaurantID == uuid.Nil {
		return uuid.Nil, apperr.NotFound("Restaurant not found")
	}
	return p.RestaurantID, nil
}

func itemNotFound(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return apperr.NotFound("Inventory item not found")
	}
	return fmt.Errorf("get inventory item: %w", err)
}

// Adjust applies one ledger entry to an item under a row lock.
func (s *InventoryService) Adjust(ctx context.Context, p Principal, itemID uuid.UUID, in AdjustInput) (res *Adjustment, err error) {
	ctx, span := tracer.Start(ctx, "InventoryService.Adjust", trace.WithAttributes(
		attribute.String("inventory.item_id", itemID.String()),
		attribute.String("inventory.change_type", in.ChangeType),
	))
	defer func() { finishSpan(span, err) }()

	rid, err := restaurantOf(p)
	if err != nil {
		return nil, err
	}
	ct, err := ParseChangeType(in.ChangeType)
	if err != nil {
		return nil, err
	}
	if ct == database.InventoryChangeTypeCOUNT && in.Quantity.IsNegative() {
		return nil, apperr.Validation("COUNT quantity cannot be negative")
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	item, err := store.GetInventoryItemForUpdate(ctx, database.GetInventoryItemParams{ID: itemID, RestaurantID: rid})
	if err != nil {
		return nil, itemNotFound(err)
	}

	res, err = s.record(ctx, store, p, item, ct, in)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	s.checkPar(ctx, res.Item)
	return res, nil
}

// record writes the new quantity and its log entry with the caller's store.
func (s *InventoryService) record(ctx context.Context, store InventoryStore, p Principal, item database.InventoryItem, ct database.InventoryChangeType, in AdjustInput) (*Adjustment, error) {
	prev := money.FromNumeric(item.CurrentQuantity)
	next, delta := applyChange(prev, ct, in.Quantity)

	updated, err := store.UpdateInventoryQuantity(ctx, database.UpdateInventoryQuantityParams{
		ID:              item.ID,
		CurrentQuantity: money.QuantityToNumeric(next),
	})
	if err != nil {
		return nil, fmt.Errorf("update inventory quantity: %w", err)
	}

	entry, err := store.CreateInventoryLog(ctx, database.CreateInventoryLogParams{
		ItemID:           item.ID,
		ChangeType:       ct,
		Quantity:         money.QuantityToNumeric(delta),
		PreviousQuantity: money.QuantityToNumeric(prev),
		NewQuantity:      money.QuantityToNumeric(next),
		Notes:            textOrNull(in.Notes),
		Reference:        textOrNull(in.Reference),
		CreatedBy:        p.UserID,
	})
	if err != nil {
		return nil, fmt.Errorf("create inventory log: %w", err)
	}
	return &Adjustment{Item: updated, Log: entry}, nil
}

func (s *InventoryService) checkPar(ctx context.Context, item database.InventoryItem) {
	if !item.ParLevel.Valid {
		return
	}
	qty := money.FromNumeric(item.CurrentQuantity)
	par := money.FromNumeric(item.ParLevel)
	if !qty.LessThan(par) {
		return
	}
	s.dispatcher.Dispatch(ctx, events.New(events.TypeInventoryBelowPar, item.ID.String(), item.RestaurantID, s.now(), events.BelowPar{
		ItemID:          item.ID,
		Name:            item.Name,
		Unit:            item.Unit,
		CurrentQuantity: money.Quantity(qty),
		ParLevel:        money.Quantity(par),
	}))
}

// UpdateFields changes descriptive fields without touching the ledger.
func (s *InventoryService) UpdateFields(ctx context.Context, p Principal, itemID uuid.UUID, in ItemUpdate) (database.InventoryItem, error) {
	rid, err := restaurantOf(p)
	if err != nil {
		return database.InventoryItem{}, err
	}
	if in.Name != nil && strings.TrimSpace(*in.Name) == "" {
		return database.InventoryItem{}, apperr.Validation("name cannot be empty")
	}
	if in.Unit != nil && strings.TrimSpace(*in.Unit) == "" {
		return database.InventoryItem{}, apperr.Validation("unit cannot be empty")
	}
	if in.ParLevel != nil && in.ParLevel.IsNegative() {
		return database.InventoryItem{}, apperr.Validation("parLevel cannot be negative")
	}

	par := pgtype.Numeric{}
	if in.ParLevel != nil {
		par = money.QuantityToNumeric(*in.ParLevel)
	}
	catalog := pgtype.UUID{}
	if in.CatalogItemID != nil {
		catalog = pgtype.UUID{Bytes: *in.CatalogItemID, Valid: true}
	}
	item, err := s.newStore(s.pool).UpdateInventoryItemFields(ctx, database.UpdateInventoryItemFieldsParams{
		ID:               itemID,
		RestaurantID:     rid,
		Name:             textOrNull(in.Name),
		Category:         textOrNull(in.Category),
		Unit:             textOrNull(in.Unit),
		ParLevel:         par,
		Location:         textOrNull(in.Location),
		Notes:            textOrNull(in.Notes),
		ClearParLevel:    in.ClearParLevel && in.ParLevel == nil,
		CatalogItemID:    catalog,
		ClearCatalogItem: in.ClearCatalogItem && in.CatalogItemID == nil,
	})
	if err != nil {
		return database.InventoryItem{}, itemNotFound(err)
	}
	return item, nil
}

// Create adds an item at zero. A supplied initial quantity is booked as a COUNT.
func (s *InventoryService) Create(ctx context.Context, p Principal, in CreateItemInput) (res *Adjustment, err error) {
	ctx, span := tracer.Start(ctx, "InventoryService.Create")
	defer func() { finishSpan(span, err) }()

	rid, err := restaurantOf(p)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(in.Name) == "" {
		return nil, apperr.Validation("name cannot be empty")
	}
	if strings.TrimSpace(in.Unit) == "" {
		return nil, apperr.Validation("unit cannot be empty")
	}
	if in.ParLevel != nil && in.ParLevel.IsNegative() {
		return nil, apperr.Validation("parLevel cannot be negative")
	}
	if in.InitialQuantity != nil && in.InitialQuantity.IsNegative() {
		return nil, apperr.Validation("COUNT quantity cannot be negative")
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	par := pgtype.Numeric{}
	if in.ParLevel != nil {
		par = money.QuantityToNumeric(*in.ParLevel)
	}
	catalog := pgtype.UUID{}
	if in.CatalogItemID != nil {
		catalog = pgtype.UUID{Bytes: *in.CatalogItemID, Valid: true}
	}
	item, err := store.CreateInventoryItem(ctx, database.CreateInventoryItemParams{
		RestaurantID:  rid,
		Name:          strings.TrimSpace(in.Name),
		Category:      textOrNull(in.Category),
		Unit:          strings.TrimSpace(in.Unit),
		ParLevel:      par,
		Location:      textOrNull(in.Location),
		Notes:         textOrNull(in.Notes),
		CatalogItemID: catalog,
	})
	if err != nil {
		return nil, fmt.Errorf("create inventory item: %w", err)
	}

	res = &Adjustment{Item: item}
	if in.InitialQuantity != nil {
		notes := "Initial count"
		res, err = s.record(ctx, store, p, item, database.InventoryChangeTypeCOUNT, AdjustInput{
			Quantity: *in.InitialQuantity,
			Notes:    &notes,
		})
		if err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	s.checkPar(ctx, res.Item)
	return res, nil
}

func (s *InventoryService) List(ctx context.Context, p Principal, belowPar bool) ([]database.InventoryItem, error) {
	rid, err := restaurantOf(p)
	if err != nil {
		return nil, err
	}
	items, err := s.newStore(s.pool).ListInventoryItems(ctx, database.ListInventoryItemsParams{
		RestaurantID: rid,
		BelowPar:     belowPar,
	})
	if err != nil {
		return nil, fmt.Errorf("list inventory items: %w", err)
	}
	return items, nil
}

// Log returns an item's ledger in replay order.
func (s *InventoryService) Log(ctx context.Context, p Principal, itemID uuid.UUID) ([]database.InventoryLog, error) {
	rid, err := restaurantOf(p)
	if err != nil {
		return nil, err
	}
	store := s.newStore(s.pool)
	if _, err := store.GetInventoryItem(ctx, database.GetInventoryItemParams{ID: itemID, RestaurantID: rid}); err != nil {
		return nil, itemNotFound(err)
	}
	entries, err := store.ListInventoryLogsByItem(ctx, itemID)
	if err != nil {
		return nil, fmt.Errorf("list inventory logs: %w", err)
	}
	return entries, nil
}

// Reconcile replays the item's log and compares it with the stored quantity.
func (s *InventoryService) Reconcile(ctx context.Context, p Principal, itemID uuid.UUID) (*Reconciliation, error) {
	rid, err := restaurantOf(p)
	if err != nil {
		return nil, err
	}
	store := s.newStore(s.pool)
	item, err := store.GetInventoryItem(ctx, database.GetInventoryItemParams{ID: itemID, RestaurantID: rid})
	if err != nil {
		return nil, itemNotFound(err)
	}
	entries, err := store.ListInventoryLogsByItem(ctx, itemID)
	if err != nil {
		return nil, fmt.Errorf("list inventory logs: %w", err)
	}

	stored := money.FromNumeric(item.CurrentQuantity)
	replayed := Replay(entries)
	rec := &Reconciliation{
		ItemID:     item.ID,
		Stored:     stored,
		Replayed:   replayed,
		Entries:    len(entries),
		Consistent: stored.Equal(replayed),
	}
	if !rec.Consistent {
		s.logger.Warn("inventory ledger mismatch",
			zap.String("item_id", item.ID.String()),
			zap.String("stored", stored.String()),
			zap.String("replayed", replayed.String()),
		)
	}
	return rec, nil
}
