package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const createRestaurant = `-- name: CreateRestaurant :one
INSERT INTO restaurants (name) VALUES ($1)
RETURNING id, name, created_at`

func (q *Queries) CreateRestaurant(ctx context.Context, name string) (Restaurant, error) {
	row := q.db.QueryRow(ctx, createRestaurant, name)
	var i Restaurant
	err := row.Scan(&i.ID, &i.Name, &i.CreatedAt)
	return i, err
}

const createUser = `-- name: CreateUser :one
INSERT INTO users (restaurant_id, supplier_id, email, full_name, role)
VALUES ($1, $2, $3, $4, $5)
RETURNING id, restaurant_id, supplier_id, email, full_name, role, created_at`

type CreateUserParams struct {
	RestaurantID pgtype.UUID
	SupplierID   pgtype.UUID
	Email        string
	FullName     string
	Role         string
}

func (q *Queries) CreateUser(ctx context.Context, arg CreateUserParams) (User, error) {
	row := q.db.QueryRow(ctx, createUser,
		arg.RestaurantID,
		arg.SupplierID,
		arg.Email,
		arg.FullName,
		arg.Role,
	)
	var i User
	err := row.Scan(
		&i.ID,
		&i.RestaurantID,
		&i.SupplierID,
		&i.Email,
		&i.FullName,
		&i.Role,
		&i.CreatedAt,
	)
	return i, err
}

const getUser = `-- name: GetUser :one
SELECT id, restaurant_id, supplier_id, email, full_name, role, created_at
FROM users WHERE id = $1`

func (q *Queries) GetUser(ctx context.Context, id uuid.UUID) (User, error) {
	row := q.db.QueryRow(ctx, getUser, id)
	var i User
	err := row.Scan(
		&i.ID,
		&i.RestaurantID,
		&i.SupplierID,
		&i.Email,
		&i.FullName,
		&i.Role,
		&i.CreatedAt,
	)
	return i, err
}
