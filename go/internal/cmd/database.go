package main

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/mcdev12/dropauction/go/internal/auction/gateway"
	"github.com/mcdev12/dropauction/go/internal/auction/repository/memory"
	"github.com/mcdev12/dropauction/go/internal/auction/repository/postgres"
	"github.com/mcdev12/dropauction/go/internal/config"
	"github.com/mcdev12/dropauction/go/internal/dbconfig"
)

// setupStore opens the configured record store. The returned func releases it.
func setupStore(ctx context.Context, cfg *config.Config) (gateway.Store, func(), error) {
	switch cfg.Store.Driver {
	case config.DriverMemory:
		return setupMemoryStore(cfg.Store.Products)
	default:
		return setupPostgresStore(ctx, cfg.Store.MaxConns)
	}
}

func setupPostgresStore(ctx context.Context, maxConns int32) (gateway.Store, func(), error) {
	dbCfg := dbconfig.NewConfigFromEnv()

	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	pool, err := postgres.NewPool(connectCtx, dbCfg.DSN(), maxConns)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	log.Info().Str("database", dbCfg.String()).Msg("connected to database")
	return postgres.NewStore(pool), pool.Close, nil
}

func setupMemoryStore(seeds []config.ProductSeed) (gateway.Store, func(), error) {
	store := memory.NewStore()
	now := time.Now()
	for _, seed := range seeds {
		if err := store.PutItem(seed.Product(now)); err != nil {
			return nil, nil, fmt.Errorf("failed to seed product %q: %w", seed.ID, err)
		}
	}

	log.Warn().Int("products", len(seeds)).Msg("using in-memory store, state is lost on restart")
	return store, func() {}, nil
}
