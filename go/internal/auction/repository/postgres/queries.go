package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/mcdev12/dropauction/go/internal/models"
)

// DBTX is satisfied by both the pool and a transaction.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Queries holds the SQL used by the store, bound to a pool or a transaction.
type Queries struct {
	db DBTX
}

// New binds the queries to db.
func New(db DBTX) *Queries {
	return &Queries{db: db}
}

const productColumns = `id, name, image_url, initial_price::float8, current_price::float8,
	minimum_price::float8, drop_time, updated_at`

const getProduct = `SELECT ` + productColumns + ` FROM products WHERE id = $1`

func (q *Queries) GetProduct(ctx context.Context, id string) (*models.Product, error) {
	return scanProduct(q.db.QueryRow(ctx, getProduct, id))
}

const listProducts = `
SELECT ` + productColumns + `,
	(SELECT count(*) FROM user_shares s WHERE s.product_id = p.id) AS total_shares
FROM products p
ORDER BY id`

func (q *Queries) ListProducts(ctx context.Context) ([]models.ProductSummary, error) {
	rows, err := q.db.Query(ctx, listProducts)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.ProductSummary
	for rows.Next() {
		var (
			s        models.ProductSummary
			imageURL *string
		)
		if err := rows.Scan(
			&s.ID, &s.Name, &imageURL, &s.InitialPrice, &s.CurrentPrice,
			&s.MinimumPrice, &s.DropTime, &s.UpdatedAt, &s.TotalShares,
		); err != nil {
			return nil, err
		}
		if imageURL != nil {
			s.ImageURL = *imageURL
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

const insertShare = `INSERT INTO user_shares (user_id, product_id) VALUES ($1, $2)`

func (q *Queries) InsertShare(ctx context.Context, userID, productID string) error {
	_, err := q.db.Exec(ctx, insertShare, userID, productID)
	return err
}

const updatePriceIfMatches = `
UPDATE products
SET current_price = $3, updated_at = now()
WHERE id = $1 AND current_price::float8 = $2::float8`

func (q *Queries) UpdatePriceIfMatches(ctx context.Context, id string, expected, newPrice float64) (int64, error) {
	tag, err := q.db.Exec(ctx, updatePriceIfMatches, id, expected, newPrice)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

const countShares = `SELECT count(*) FROM user_shares WHERE product_id = $1`

func (q *Queries) CountShares(ctx context.Context, productID string) (int64, error) {
	var n int64
	err := q.db.QueryRow(ctx, countShares, productID).Scan(&n)
	return n, err
}

const resetProduct = `
UPDATE products
SET current_price = $2, drop_time = $3, updated_at = now()
WHERE id = $1`

func (q *Queries) ResetProduct(ctx context.Context, id string, price float64, dropTime *time.Time) (int64, error) {
	tag, err := q.db.Exec(ctx, resetProduct, id, price, dropTime)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

const deleteShares = `DELETE FROM user_shares WHERE product_id = $1`

func (q *Queries) DeleteShares(ctx context.Context, productID string) (int64, error) {
	tag, err := q.db.Exec(ctx, deleteShares, productID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func scanProduct(row pgx.Row) (*models.Product, error) {
	var (
		p        models.Product
		imageURL *string
	)
	if err := row.Scan(
		&p.ID, &p.Name, &imageURL, &p.InitialPrice, &p.CurrentPrice,
		&p.MinimumPrice, &p.DropTime, &p.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if imageURL != nil {
		p.ImageURL = *imageURL
	}
	return &p, nil
}
