package main

import (
	"fmt"

	"github.com/mcdev12/dropauction/go/internal/auction"
	"github.com/mcdev12/dropauction/go/internal/auction/gateway"
	"github.com/mcdev12/dropauction/go/internal/config"
	"github.com/mcdev12/dropauction/go/internal/observability"
)

type Services struct {
	Gateway *gateway.Service
	Metrics *observability.Metrics
}

func setupServices(cfg *config.Config, store gateway.Store) (*Services, error) {
	metrics := observability.NewMetrics("dropauction")

	connCfg := gateway.DefaultConnectionConfig()
	connCfg.ReadBufferSize = cfg.WebSocket.ReadBufferSize
	connCfg.WriteBufferSize = cfg.WebSocket.WriteBufferSize
	connCfg.SendBufferSize = cfg.WebSocket.SendBufferSize
	connCfg.MaxMessageSize = cfg.WebSocket.MaxMessageSize
	connCfg.PingInterval = cfg.WebSocket.PingInterval
	connCfg.ReadTimeout = cfg.WebSocket.ReadTimeout
	connCfg.WriteTimeout = cfg.WebSocket.WriteTimeout
	connCfg.ShareTimeout = cfg.Auction.ShareTimeout

	relayCfg := gateway.DefaultRelayConfig()
	relayCfg.URL = cfg.NATS.URL
	relayCfg.SubjectPrefix = cfg.NATS.SubjectPrefix
	relayCfg.ReconnectWait = cfg.NATS.ReconnectWait

	gatewayCfg := gateway.Config{
		ConnectionConfig: connCfg,
		Auction: auction.Config{
			UnitDecrement: cfg.Auction.UnitDecrement,
			Window:        cfg.Auction.Window,
		},
		RelayEnabled: cfg.NATS.Enabled,
		RelayConfig:  relayCfg,
	}

	svc, err := gateway.NewService(gatewayCfg, store, gateway.WithServiceMetrics(metrics))
	if err != nil {
		return nil, fmt.Errorf("failed to create gateway service: %w", err)
	}

	return &Services{
		Gateway: svc,
		Metrics: metrics,
	}, nil
}
