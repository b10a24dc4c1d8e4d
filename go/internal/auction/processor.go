// Package auction implements the share-event protocol that pushes a drop's
// price down and the drop window that gates it.
package auction

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/dropauction/go/internal/auction/repository"
	"github.com/mcdev12/dropauction/go/internal/models"
)

// DefaultUnitDecrement is how much one share lowers the price.
const DefaultUnitDecrement = 1.0

// Store defines what the processor needs from the record store.
type Store interface {
	GetItem(ctx context.Context, itemID string) (*models.Product, error)
	InsertShare(ctx context.Context, userID, itemID string) (repository.InsertOutcome, error)
	// UpdatePriceIfMatches sets current_price to newPrice only while it still
	// equals expected, returning the number of rows changed.
	UpdatePriceIfMatches(ctx context.Context, itemID string, expected, newPrice float64) (int64, error)
	CountShares(ctx context.Context, itemID string) (int64, error)
}

// Broadcaster fans a committed price update out to the item's viewers.
type Broadcaster interface {
	PublishPriceUpdate(ctx context.Context, update models.PriceUpdate) error
}

// Config holds processor tuning.
type Config struct {
	UnitDecrement float64
	Window        time.Duration
}

// DefaultConfig returns the reference drop rules: one unit per share, 24h window.
func DefaultConfig() Config {
	return Config{
		UnitDecrement: DefaultUnitDecrement,
		Window:        DefaultWindow,
	}
}

// Processor runs the share-event protocol.
type Processor struct {
	store       Store
	broadcaster Broadcaster
	clock       clockwork.Clock
	metrics     MetricsCollector
	config      Config
	locks       *itemLocks
}

// Option customizes a Processor.
type Option func(*Processor)

// WithClock replaces the wall clock, mainly for tests.
func WithClock(c clockwork.Clock) Option {
	return func(p *Processor) { p.clock = c }
}

// WithMetrics attaches a metrics collector.
func WithMetrics(m MetricsCollector) Option {
	return func(p *Processor) { p.metrics = m }
}

// NewProcessor creates a share-event processor.
func NewProcessor(store Store, broadcaster Broadcaster, config Config, opts ...Option) *Processor {
	if config.UnitDecrement <= 0 {
		config.UnitDecrement = DefaultUnitDecrement
	}
	if config.Window <= 0 {
		config.Window = DefaultWindow
	}
	p := &Processor{
		store:       store,
		broadcaster: broadcaster,
		clock:       clockwork.NewRealClock(),
		metrics:     NoOpMetricsCollector{},
		config:      config,
		locks:       newItemLocks(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// HandleShare processes one share click by userID on itemID.
//
// On success the committed update is returned after it has been broadcast.
// Every failure is one of the package's sentinel errors, possibly wrapping the
// underlying store error. ErrMinimumReached is informational.
//
// The share row is written before the drop window is checked, so a share
// rejected as not started or ended still uses up the user's one share.
func (p *Processor) HandleShare(ctx context.Context, itemID, userID string) (update *models.PriceUpdate, err error) {
	start := p.clock.Now()
	defer func() {
		p.metrics.RecordShare(Outcome(err), p.clock.Since(start))
	}()

	if strings.TrimSpace(userID) == "" {
		return nil, ErrMissingIdentifier
	}

	outcome, err := p.store.InsertShare(ctx, userID, itemID)
	if err != nil {
		log.Error().Err(err).
			Str("item_id", itemID).
			Str("user_id", userID).
			Msg("failed to record share")
		return nil, fmt.Errorf("%w: %w", ErrCouldNotRecord, err)
	}
	if outcome == repository.ShareDuplicate {
		return nil, ErrDuplicateShare
	}

	// Read-modify-write of the price is serialized per item on this instance;
	// other instances are caught by the conditional update.
	unlock := p.locks.lock(itemID)
	defer unlock()

	product, err := p.store.GetItem(ctx, itemID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrItemNotFound
		}
		log.Error().Err(err).Str("item_id", itemID).Msg("failed to read item")
		return nil, fmt.Errorf("%w: %w", ErrUpdateFailed, err)
	}

	if err := EvaluateWindow(p.clock.Now(), product.DropTime, p.config.Window).Err(); err != nil {
		return nil, err
	}

	if product.AtMinimum() {
		return nil, ErrMinimumReached
	}

	newPrice := NextPrice(product.CurrentPrice, product.MinimumPrice, p.config.UnitDecrement)

	rows, err := p.store.UpdatePriceIfMatches(ctx, itemID, product.CurrentPrice, newPrice)
	if err != nil {
		log.Error().Err(err).Str("item_id", itemID).Msg("failed to update price")
		return nil, fmt.Errorf("%w: %w", ErrUpdateFailed, err)
	}
	if rows == 0 {
		log.Warn().
			Str("item_id", itemID).
			Float64("expected_price", product.CurrentPrice).
			Msg("conditional price update matched no rows")
		return nil, ErrUpdateFailed
	}

	update = &models.PriceUpdate{ItemID: itemID, NewPrice: newPrice}
	if total, err := p.store.CountShares(ctx, itemID); err != nil {
		log.Error().Err(err).Str("item_id", itemID).Msg("failed to count shares, broadcasting price only")
	} else {
		update.TotalShares = &total
	}

	if err := p.broadcaster.PublishPriceUpdate(ctx, *update); err != nil {
		log.Warn().Err(err).Str("item_id", itemID).Msg("price update committed but publish failed")
	}

	log.Info().
		Str("item_id", itemID).
		Str("user_id", userID).
		Float64("old_price", product.CurrentPrice).
		Float64("new_price", newPrice).
		Msg("price dropped")

	return update, nil
}

// NextPrice applies one decrement, rounded to cents and clamped at minimum.
// Rounding never lifts the result above current-decrement, so the price
// cannot go up.
func NextPrice(current, minimum, decrement float64) float64 {
	exact := current - decrement
	next := math.Min(math.Round(exact*100)/100, exact)
	return math.Max(next, minimum)
}
