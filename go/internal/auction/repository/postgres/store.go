package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/mcdev12/dropauction/go/internal/auction/repository"
	"github.com/mcdev12/dropauction/go/internal/models"
	"github.com/mcdev12/dropauction/go/internal/sqlutil"
)

// Store implements the product record store using PostgreSQL.
type Store struct {
	pool    *Pool
	queries *Queries
}

// NewStore creates a new Store.
func NewStore(pool *Pool) *Store {
	return &Store{
		pool:    pool,
		queries: New(pool),
	}
}

// GetItem retrieves a product by id. Returns ErrNotFound if absent.
func (s *Store) GetItem(ctx context.Context, itemID string) (*models.Product, error) {
	p, err := s.queries.GetProduct(ctx, itemID)
	if err != nil {
		if isNotFoundError(err) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("get product: %w", err)
	}
	return p, nil
}

// ListItems returns all products with their exact share counts.
func (s *Store) ListItems(ctx context.Context) ([]models.ProductSummary, error) {
	products, err := s.queries.ListProducts(ctx)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	return products, nil
}

// InsertShare records a share. A unique violation on (user_id, product_id)
// is reported as ShareDuplicate, not as an error.
func (s *Store) InsertShare(ctx context.Context, userID, itemID string) (repository.InsertOutcome, error) {
	if err := s.queries.InsertShare(ctx, userID, itemID); err != nil {
		if isDuplicateKeyError(err) {
			return repository.ShareDuplicate, nil
		}
		return 0, fmt.Errorf("insert share: %w", err)
	}
	return repository.ShareRecorded, nil
}

// UpdatePriceIfMatches is a compare-and-set on current_price.
func (s *Store) UpdatePriceIfMatches(ctx context.Context, itemID string, expected, newPrice float64) (int64, error) {
	rows, err := s.queries.UpdatePriceIfMatches(ctx, itemID, expected, newPrice)
	if err != nil {
		return 0, fmt.Errorf("update price: %w", err)
	}
	return rows, nil
}

// CountShares returns the exact number of shares for the product.
func (s *Store) CountShares(ctx context.Context, itemID string) (int64, error) {
	n, err := s.queries.CountShares(ctx, itemID)
	if err != nil {
		return 0, fmt.Errorf("count shares: %w", err)
	}
	return n, nil
}

// ResetItem restores price and drop time and clears the product's shares
// in one transaction.
func (s *Store) ResetItem(ctx context.Context, itemID string, price float64, dropTime *time.Time) error {
	return sqlutil.Run(ctx, s.pool, func(tx pgx.Tx) *Queries { return New(tx) }, func(q *Queries) error {
		rows, err := q.ResetProduct(ctx, itemID, price, dropTime)
		if err != nil {
			return fmt.Errorf("reset product: %w", err)
		}
		if rows == 0 {
			return repository.ErrNotFound
		}
		if _, err := q.DeleteShares(ctx, itemID); err != nil {
			return fmt.Errorf("delete shares: %w", err)
		}
		return nil
	})
}
