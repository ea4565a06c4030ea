package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

const inventoryItemColumns = `id, restaurant_id, name, category, unit, current_quantity, par_level,
location, notes, catalog_item_id, created_at, updated_at`

func scanInventoryItem(row pgx.Row) (InventoryItem, error) {
	var i InventoryItem
	err := row.Scan(
		&i.ID,
		&i.RestaurantID,
		&i.Name,
		&i.Category,
		&i.Unit,
		&i.CurrentQuantity,
		&i.ParLevel,
		&i.Location,
		&i.Notes,
		&i.CatalogItemID,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const createInventoryItem = `-- name: CreateInventoryItem :one
INSERT INTO inventory_items (restaurant_id, name, category, unit, par_level, location, notes, catalog_item_id)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
RETURNING ` + inventoryItemColumns

type CreateInventoryItemParams struct {
	RestaurantID  uuid.UUID
	Name          string
	Category      pgtype.Text
	Unit          string
	ParLevel      pgtype.Numeric
	Location      pgtype.Text
	Notes         pgtype.Text
	CatalogItemID pgtype.UUID
}

func (q *Queries) CreateInventoryItem(ctx context.Context, arg CreateInventoryItemParams) (InventoryItem, error) {
	row := q.db.QueryRow(ctx, createInventoryItem,
		arg.RestaurantID,
		arg.Name,
		arg.Category,
		arg.Unit,
		arg.ParLevel,
		arg.Location,
		arg.Notes,
		arg.CatalogItemID,
	)
	return scanInventoryItem(row)
}

const getInventoryItem = `-- name: GetInventoryItem :one
SELECT ` + inventoryItemColumns + ` FROM inventory_items
WHERE id = $1 AND restaurant_id = $2`

type GetInventoryItemParams struct {
	ID           uuid.UUID
	RestaurantID uuid.UUID
}

func (q *Queries) GetInventoryItem(ctx context.Context, arg GetInventoryItemParams) (InventoryItem, error) {
	return scanInventoryItem(q.db.QueryRow(ctx, getInventoryItem, arg.ID, arg.RestaurantID))
}

const getInventoryItemForUpdate = `-- name: GetInventoryItemForUpdate :one
SELECT ` + inventoryItemColumns + ` FROM inventory_items
WHERE id = $1 AND restaurant_id = $2
FOR NO KEY UPDATE`

func (q *Queries) GetInventoryItemForUpdate(ctx context.Context, arg GetInventoryItemParams) (InventoryItem, error) {
	return scanInventoryItem(q.db.QueryRow(ctx, getInventoryItemForUpdate, arg.ID, arg.RestaurantID))
}

const listInventoryItems = `-- name: ListInventoryItems :many
SELECT ` + inventoryItemColumns + ` FROM inventory_items
WHERE restaurant_id = $1
  AND (NOT $2::boolean OR (par_level IS NOT NULL AND current_quantity < par_level))
ORDER BY name, id`

type ListInventoryItemsParams struct {
	RestaurantID uuid.UUID
	BelowPar     bool
}

func (q *Queries) ListInventoryItems(ctx context.Context, arg ListInventoryItemsParams) ([]InventoryItem, error) {
	rows, err := q.db.Query(ctx, listInventoryItems, arg.RestaurantID, arg.BelowPar)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []InventoryItem{}
	for rows.Next() {
		i, err := scanInventoryItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const updateInventoryQuantity = `-- name: UpdateInventoryQuantity :one
UPDATE inventory_items
SET current_quantity = $2, updated_at = now()
WHERE id = $1
RETURNING ` + inventoryItemColumns

type UpdateInventoryQuantityParams struct {
	ID              uuid.UUID
	CurrentQuantity pgtype.Numeric
}

func (q *Queries) UpdateInventoryQuantity(ctx context.Context, arg UpdateInventoryQuantityParams) (InventoryItem, error) {
	return scanInventoryItem(q.db.QueryRow(ctx, updateInventoryQuantity, arg.ID, arg.CurrentQuantity))
}

const updateInventoryItemFields = `-- name: UpdateInventoryItemFields :one
UPDATE inventory_items
SET name = COALESCE($3::text, name),
    category = COALESCE($4::text, category),
    unit = COALESCE($5::text, unit),
    par_level = CASE WHEN $9::boolean THEN NULL ELSE COALESCE($6::numeric, par_level) END,
    location = COALESCE($7::text, location),
    notes = COALESCE($8::text, notes),
    catalog_item_id = CASE WHEN $11::boolean THEN NULL ELSE COALESCE($10::uuid, catalog_item_id) END,
    updated_at = now()
WHERE id = $1 AND restaurant_id = $2
RETURNING ` + inventoryItemColumns

// UpdateInventoryItemFields changes descriptive fields only. NULL params keep
// the stored value; ClearParLevel and ClearCatalogItem remove the par level
// and the catalog link.
type UpdateInventoryItemFieldsParams struct {
	ID               uuid.UUID
	RestaurantID     uuid.UUID
	Name             pgtype.Text
	Category         pgtype.Text
	Unit             pgtype.Text
	ParLevel         pgtype.Numeric
	Location         pgtype.Text
	Notes            pgtype.Text
	ClearParLevel    bool
	CatalogItemID    pgtype.UUID
	ClearCatalogItem bool
}

func (q *Queries) UpdateInventoryItemFields(ctx context.Context, arg UpdateInventoryItemFieldsParams) (InventoryItem, error) {
	row := q.db.QueryRow(ctx, updateInventoryItemFields,
		arg.ID,
		arg.RestaurantID,
		arg.Name,
		arg.Category,
		arg.Unit,
		arg.ParLevel,
		arg.Location,
		arg.Notes,
		arg.ClearParLevel,
		arg.CatalogItemID,
		arg.ClearCatalogItem,
	)
	return scanInventoryItem(row)
}

const inventoryLogColumns = `seq, id, item_id, change_type, quantity, previous_quantity, new_quantity,
notes, reference, created_by, created_at`

func scanInventoryLog(row pgx.Row) (InventoryLog, error) {
	var i InventoryLog
	err := row.Scan(
		&i.Seq,
		&i.ID,
		&i.ItemID,
		&i.ChangeType,
		&i.Quantity,
		&i.PreviousQuantity,
		&i.NewQuantity,
		&i.Notes,
		&i.Reference,
		&i.CreatedBy,
		&i.CreatedAt,
	)
	return i, err
}

const createInventoryLog = `-- name: CreateInventoryLog :one
INSERT INTO inventory_logs (item_id, change_type, quantity, previous_quantity, new_quantity, notes, reference, created_by)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
RETURNING ` + inventoryLogColumns

type CreateInventoryLogParams struct {
	ItemID           uuid.UUID
	ChangeType       InventoryChangeType
	Quantity         pgtype.Numeric
	PreviousQuantity pgtype.Numeric
	NewQuantity      pgtype.Numeric
	Notes            pgtype.Text
	Reference        pgtype.Text
	CreatedBy        uuid.UUID
}

func (q *Queries) CreateInventoryLog(ctx context.Context, arg CreateInventoryLogParams) (InventoryLog, error) {
	row := q.db.QueryRow(ctx, createInventoryLog,
		arg.ItemID,
		arg.ChangeType,
		arg.Quantity,
		arg.PreviousQuantity,
		arg.NewQuantity,
		arg.Notes,
		arg.Reference,
		arg.CreatedBy,
	)
	return scanInventoryLog(row)
}

const listInventoryLogsByItem = `-- name: ListInventoryLogsByItem :many
SELECT ` + inventoryLogColumns + ` FROM inventory_logs
WHERE item_id = $1
ORDER BY seq`

func (q *Queries) ListInventoryLogsByItem(ctx context.Context, itemID uuid.UUID) ([]InventoryLog, error) {
	rows, err := q.db.Query(ctx, listInventoryLogsByItem, itemID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []InventoryLog{}
	for rows.Next() {
		i, err := scanInventoryLog(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}
