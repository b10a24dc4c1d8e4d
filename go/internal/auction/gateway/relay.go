package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/dropauction/go/internal/models"
)

// RelayConfig holds configuration for the cross-instance price relay
type RelayConfig struct {
	URL           string
	SubjectPrefix string // updates go out on <prefix>.price_update
	MaxReconnects int
	ReconnectWait time.Duration
}

// DefaultRelayConfig returns default relay configuration
func DefaultRelayConfig() RelayConfig {
	return RelayConfig{
		URL:           nats.DefaultURL,
		SubjectPrefix: "auction",
		MaxReconnects: -1, // Infinite
		ReconnectWait: 2 * time.Second,
	}
}

// relayEnvelope is the wire format shared between instances.
type relayEnvelope struct {
	Origin      string             `json:"origin"`
	PublishedAt time.Time          `json:"published_at"`
	Update      models.PriceUpdate `json:"update"`
}

// Relay fans committed price updates out to viewers connected to other
// instances sharing the same store. Locally originated updates are delivered
// straight to the local registry and skipped when they echo back.
type Relay struct {
	local      *ConnectionManager
	nc         *nats.Conn
	config     RelayConfig
	instanceID string
}

// NewRelay connects to NATS.
func NewRelay(local *ConnectionManager, config RelayConfig) (*Relay, error) {
	opts := []nats.Option{
		nats.Name("dropauction-gateway"),
		nats.MaxReconnects(config.MaxReconnects),
		nats.ReconnectWait(config.ReconnectWait),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.Error().Err(err).Msg("NATS disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
		nats.ErrorHandler(func(nc *nats.Conn, sub *nats.Subscription, err error) {
			log.Error().Err(err).Msg("NATS error")
		}),
	}

	nc, err := nats.Connect(config.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}

	return newRelay(local, nc, config), nil
}

func newRelay(local *ConnectionManager, nc *nats.Conn, config RelayConfig) *Relay {
	return &Relay{
		local:      local,
		nc:         nc,
		config:     config,
		instanceID: uuid.New().String(),
	}
}

func (r *Relay) subject() string {
	return r.config.SubjectPrefix + ".price_update"
}

// PublishPriceUpdate delivers the update locally, then announces it to peers.
func (r *Relay) PublishPriceUpdate(ctx context.Context, update models.PriceUpdate) error {
	if err := r.local.PublishPriceUpdate(ctx, update); err != nil {
		return err
	}

	data, err := json.Marshal(relayEnvelope{
		Origin:      r.instanceID,
		PublishedAt: time.Now().UTC(),
		Update:      update,
	})
	if err != nil {
		return fmt.Errorf("marshal relay envelope: %w", err)
	}

	if err := r.nc.Publish(r.subject(), data); err != nil {
		return fmt.Errorf("publish price update: %w", err)
	}
	return nil
}

// Start subscribes to peer updates and blocks until ctx is done.
func (r *Relay) Start(ctx context.Context) error {
	sub, err := r.nc.Subscribe(r.subject(), func(msg *nats.Msg) {
		r.handleMessage(msg.Data)
	})
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", r.subject(), err)
	}
	defer func() { _ = sub.Unsubscribe() }()

	log.Info().
		Str("subject", r.subject()).
		Str("instance", r.instanceID).
		Msg("price relay started")

	<-ctx.Done()
	log.Info().Msg("price relay shutting down")
	return nil
}

// handleMessage re-broadcasts a peer's update to local viewers.
func (r *Relay) handleMessage(data []byte) {
	var env relayEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		log.Error().Err(err).Msg("failed to decode relayed price update")
		return
	}
	if env.Origin == r.instanceID {
		return
	}
	if env.Update.ItemID == "" {
		log.Warn().Str("origin", env.Origin).Msg("relayed price update without item id")
		return
	}

	if err := r.local.PublishPriceUpdate(context.Background(), env.Update); err != nil {
		log.Error().Err(err).Str("item_id", env.Update.ItemID).Msg("failed to deliver relayed price update")
	}
}

// Stop drains the subscription and closes the NATS connection.
func (r *Relay) Stop() error {
	if r.nc == nil {
		return nil
	}
	if err := r.nc.Drain(); err != nil {
		r.nc.Close()
		return fmt.Errorf("drain NATS connection: %w", err)
	}
	return nil
}
