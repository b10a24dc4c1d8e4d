package gateway

import (
	"context"
	"fmt"
	"net/http"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/dropauction/go/internal/auction"
)

// Store is everything the gateway needs from the record store.
type Store interface {
	auction.Store
	ProductCatalog
}

// Metrics is the combined observer for share processing and the registry.
type Metrics interface {
	auction.MetricsCollector
	RegistryMetrics
}

// Service is the live auction gateway: it accepts viewer connections, turns
// their share clicks into price drops and fans the results out.
type Service struct {
	connectionManager *ConnectionManager
	wsHandler         *WebSocketHandler
	stateHandler      *StateHandler
	relay             *Relay
}

// Config holds configuration for the auction gateway service
type Config struct {
	ConnectionConfig ConnectionConfig
	Auction          auction.Config
	RelayEnabled     bool
	RelayConfig      RelayConfig
}

// DefaultConfig returns a single-instance configuration without a relay.
func DefaultConfig() Config {
	return Config{
		ConnectionConfig: DefaultConnectionConfig(),
		Auction:          auction.DefaultConfig(),
		RelayConfig:      DefaultRelayConfig(),
	}
}

// ServiceOption customizes a Service.
type ServiceOption func(*serviceOptions)

type serviceOptions struct {
	metrics Metrics
	clock   clockwork.Clock
}

// WithServiceMetrics attaches metrics to both the processor and the registry.
func WithServiceMetrics(m Metrics) ServiceOption {
	return func(o *serviceOptions) { o.metrics = m }
}

// WithServiceClock replaces the wall clock used for drop windows.
func WithServiceClock(c clockwork.Clock) ServiceOption {
	return func(o *serviceOptions) { o.clock = c }
}

// NewService wires the registry, processor and handlers together.
func NewService(config Config, store Store, opts ...ServiceOption) (*Service, error) {
	options := serviceOptions{clock: clockwork.NewRealClock()}
	for _, opt := range opts {
		opt(&options)
	}

	connectionManager := NewConnectionManager(config.ConnectionConfig)

	var broadcaster auction.Broadcaster = connectionManager
	var relay *Relay
	if config.RelayEnabled {
		var err error
		relay, err = NewRelay(connectionManager, config.RelayConfig)
		if err != nil {
			return nil, fmt.Errorf("failed to create price relay: %w", err)
		}
		broadcaster = relay
	}

	processorOpts := []auction.Option{auction.WithClock(options.clock)}
	if options.metrics != nil {
		processorOpts = append(processorOpts, auction.WithMetrics(options.metrics))
		connectionManager.SetMetrics(options.metrics)
	}
	processor := auction.NewProcessor(store, broadcaster, config.Auction, processorOpts...)
	connectionManager.SetShareHandler(processor)

	return &Service{
		connectionManager: connectionManager,
		wsHandler:         NewWebSocketHandler(connectionManager),
		stateHandler:      NewStateHandler(store, connectionManager, config.Auction.Window, options.clock),
		relay:             relay,
	}, nil
}

// Start runs the relay, if any, and blocks until ctx is cancelled.
func (s *Service) Start(ctx context.Context) error {
	log.Info().Bool("relay", s.relay != nil).Msg("starting auction gateway service")

	if s.relay != nil {
		go func() {
			if err := s.relay.Start(ctx); err != nil {
				log.Error().Err(err).Msg("price relay failed")
			}
		}()
	}

	<-ctx.Done()

	log.Info().Msg("auction gateway service shutting down")
	return s.Stop()
}

// Stop closes every viewer connection and the relay.
func (s *Service) Stop() error {
	s.connectionManager.CloseAll()

	if s.relay != nil {
		if err := s.relay.Stop(); err != nil {
			log.Error().Err(err).Msg("failed to stop price relay")
		}
	}

	log.Info().Msg("auction gateway service stopped")
	return nil
}

// RegisterRoutes registers the WebSocket and REST routes
func (s *Service) RegisterRoutes(mux *http.ServeMux) {
	s.wsHandler.RegisterRoutes(mux)
	s.stateHandler.RegisterStateRoutes(mux)
	log.Info().Msg("auction gateway routes registered")
}

// GetStats returns statistics about the gateway service
func (s *Service) GetStats() ConnectionStats {
	return s.connectionManager.GetConnectionStats()
}
