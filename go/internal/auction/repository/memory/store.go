// Package memory is an in-process product store for development and tests.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/mcdev12/dropauction/go/internal/auction/repository"
	"github.com/mcdev12/dropauction/go/internal/models"
)

type shareKey struct {
	userID string
	itemID string
}

// Store is an in-memory implementation of the record store.
type Store struct {
	mu       sync.RWMutex
	products map[string]*models.Product
	shares   map[shareKey]time.Time
	counts   map[string]int64 // shares per item
	now      func() time.Time
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		products: make(map[string]*models.Product),
		shares:   make(map[shareKey]time.Time),
		counts:   make(map[string]int64),
		now:      time.Now,
	}
}

// PutItem inserts or replaces a product.
func (s *Store) PutItem(p models.Product) error {
	if p.ID == "" {
		return repository.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if p.DropTime != nil {
		dt := *p.DropTime
		p.DropTime = &dt
	}
	s.products[p.ID] = &p
	return nil
}

// GetItem returns a copy of the product. Returns ErrNotFound if absent.
func (s *Store) GetItem(_ context.Context, itemID string) (*models.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.products[itemID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

// ListItems returns every product ordered by id, with exact share counts.
func (s *Store) ListItems(_ context.Context) ([]models.ProductSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.ProductSummary, 0, len(s.products))
	for id, p := range s.products {
		out = append(out, models.ProductSummary{Product: *p, TotalShares: s.counts[id]})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// InsertShare records a share. The (user, item) pair is unique.
func (s *Store) InsertShare(_ context.Context, userID, itemID string) (repository.InsertOutcome, error) {
	if userID == "" || itemID == "" {
		return 0, repository.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := shareKey{userID: userID, itemID: itemID}
	if _, exists := s.shares[key]; exists {
		return repository.ShareDuplicate, nil
	}
	s.shares[key] = s.now()
	s.counts[itemID]++
	return repository.ShareRecorded, nil
}

// UpdatePriceIfMatches sets the price only while it still equals expected.
func (s *Store) UpdatePriceIfMatches(_ context.Context, itemID string, expected, newPrice float64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.products[itemID]
	if !ok || p.CurrentPrice != expected {
		return 0, nil
	}
	p.CurrentPrice = newPrice
	p.UpdatedAt = s.now()
	return 1, nil
}

// CountShares returns the exact number of shares recorded for the item.
func (s *Store) CountShares(_ context.Context, itemID string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.counts[itemID], nil
}

// ResetItem restores a product's price and drop time and clears its shares.
func (s *Store) ResetItem(_ context.Context, itemID string, price float64, dropTime *time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.products[itemID]
	if !ok {
		return repository.ErrNotFound
	}
	p.CurrentPrice = price
	p.DropTime = dropTime
	p.UpdatedAt = s.now()

	for key := range s.shares {
		if key.itemID == itemID {
			delete(s.shares, key)
		}
	}
	delete(s.counts, itemID)
	return nil
}
