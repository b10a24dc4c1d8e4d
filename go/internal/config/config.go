// Package config loads the gateway configuration from an optional YAML file
// and environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/mcdev12/dropauction/go/internal/auction"
	"github.com/mcdev12/dropauction/go/internal/logging"
	"github.com/mcdev12/dropauction/go/internal/models"
)

// Prices move in cents; a smaller step is lost to rounding.
const minUnitDecrement = 0.01

// Store drivers.
const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	WebSocket WebSocketConfig `yaml:"websocket"`
	Auction   AuctionConfig   `yaml:"auction"`
	Store     StoreConfig     `yaml:"store"`
	NATS      NATSConfig      `yaml:"nats"`
	Log       logging.Config  `yaml:"log"`
}

type ServerConfig struct {
	Port            string        `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	AllowedOrigins  []string      `yaml:"allowed_origins"`
}

type WebSocketConfig struct {
	ReadBufferSize  int           `yaml:"read_buffer_size"`
	WriteBufferSize int           `yaml:"write_buffer_size"`
	SendBufferSize  int           `yaml:"send_buffer_size"`
	MaxMessageSize  int64         `yaml:"max_message_size"`
	PingInterval    time.Duration `yaml:"ping_interval"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
}

type AuctionConfig struct {
	UnitDecrement float64       `yaml:"unit_decrement"`
	Window        time.Duration `yaml:"window"`
	ShareTimeout  time.Duration `yaml:"share_timeout"`
}

type StoreConfig struct {
	Driver   string        `yaml:"driver"`
	MaxConns int32         `yaml:"max_conns"`
	Products []ProductSeed `yaml:"products"` // memory driver only
}

// ProductSeed describes a product loaded into the memory store at startup.
type ProductSeed struct {
	ID           string  `yaml:"id"`
	Name         string  `yaml:"name"`
	ImageURL     string  `yaml:"image_url"`
	InitialPrice float64 `yaml:"initial_price"`
	CurrentPrice float64 `yaml:"current_price"` // defaults to initial_price
	MinimumPrice float64 `yaml:"minimum_price"`
	DropTime     string  `yaml:"drop_time"`
}

type NATSConfig struct {
	Enabled       bool          `yaml:"enabled"`
	URL           string        `yaml:"url"`
	SubjectPrefix string        `yaml:"subject_prefix"`
	ReconnectWait time.Duration `yaml:"reconnect_wait"`
}

// Default returns the configuration used when nothing is set.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Port:            "8080",
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    10 * time.Second,
			IdleTimeout:     120 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			AllowedOrigins:  []string{"*"},
		},
		WebSocket: WebSocketConfig{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			SendBufferSize:  64,
			MaxMessageSize:  1024,
			PingInterval:    30 * time.Second,
			ReadTimeout:     60 * time.Second,
			WriteTimeout:    10 * time.Second,
		},
		Auction: AuctionConfig{
			UnitDecrement: auction.DefaultUnitDecrement,
			Window:        auction.DefaultWindow,
			ShareTimeout:  10 * time.Second,
		},
		Store: StoreConfig{
			Driver:   DriverPostgres,
			MaxConns: 10,
		},
		NATS: NATSConfig{
			URL:           "nats://localhost:4222",
			SubjectPrefix: "auction",
			ReconnectWait: 2 * time.Second,
		},
		Log: logging.Config{
			Level:      "info",
			Format:     "console",
			MaxSizeMB:  100,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},
	}
}

// Load reads path (if non-empty) over the defaults, then applies environment
// overrides and validates the result.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyEnv() {
	c.Server.Port = getEnv("PORT", c.Server.Port)
	if origins := getEnv("CORS_ALLOWED_ORIGINS", ""); origins != "" {
		c.Server.AllowedOrigins = strings.Split(origins, ",")
	}

	c.Auction.UnitDecrement = getEnvAsFloat("AUCTION_UNIT_DECREMENT", c.Auction.UnitDecrement)
	c.Auction.Window = getEnvAsDuration("AUCTION_WINDOW", c.Auction.Window)
	c.Auction.ShareTimeout = getEnvAsDuration("AUCTION_SHARE_TIMEOUT", c.Auction.ShareTimeout)

	c.Store.Driver = getEnv("STORE_DRIVER", c.Store.Driver)
	c.Store.MaxConns = int32(getEnvAsInt("DB_MAX_CONNS", int(c.Store.MaxConns)))

	c.NATS.Enabled = getEnvAsBool("NATS_ENABLED", c.NATS.Enabled)
	c.NATS.URL = getEnv("NATS_URL", c.NATS.URL)
	c.NATS.SubjectPrefix = getEnv("NATS_SUBJECT_PREFIX", c.NATS.SubjectPrefix)

	c.Log.Level = getEnv("LOG_LEVEL", c.Log.Level)
	c.Log.Format = getEnv("LOG_FORMAT", c.Log.Format)
	c.Log.File = getEnv("LOG_FILE", c.Log.File)
}

// Validate checks values that would otherwise fail later at runtime.
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Port == "" {
		errs = append(errs, errors.New("server.port is required"))
	}
	if c.Auction.UnitDecrement < minUnitDecrement {
		errs = append(errs, fmt.Errorf("auction.unit_decrement must be at least %v, got %v", minUnitDecrement, c.Auction.UnitDecrement))
	}
	if c.Auction.Window <= 0 {
		errs = append(errs, fmt.Errorf("auction.window must be positive, got %s", c.Auction.Window))
	}

	switch c.Store.Driver {
	case DriverPostgres, DriverMemory:
	default:
		errs = append(errs, fmt.Errorf("store.driver must be %q or %q, got %q", DriverPostgres, DriverMemory, c.Store.Driver))
	}

	seen := make(map[string]bool, len(c.Store.Products))
	for i, p := range c.Store.Products {
		if p.ID == "" {
			errs = append(errs, fmt.Errorf("store.products[%d]: id is required", i))
			continue
		}
		if seen[p.ID] {
			errs = append(errs, fmt.Errorf("store.products[%d]: duplicate id %q", i, p.ID))
		}
		seen[p.ID] = true
		if p.MinimumPrice > p.price() {
			errs = append(errs, fmt.Errorf("store.products[%d]: minimum_price above current price", i))
		}
		if strings.TrimSpace(p.DropTime) != "" && auction.ParseDropTime(p.DropTime) == nil {
			errs = append(errs, fmt.Errorf("store.products[%d]: unrecognized drop_time %q, leave it empty for no window", i, p.DropTime))
		}
	}

	if c.NATS.Enabled && c.NATS.URL == "" {
		errs = append(errs, errors.New("nats.url is required when nats is enabled"))
	}

	return errors.Join(errs...)
}

func (p ProductSeed) price() float64 {
	if p.CurrentPrice > 0 {
		return p.CurrentPrice
	}
	return p.InitialPrice
}

// Product converts the seed into a store product. An empty drop_time leaves
// the product without a window; Validate rejects one that does not parse.
func (p ProductSeed) Product(now time.Time) models.Product {
	return models.Product{
		ID:           p.ID,
		Name:         p.Name,
		ImageURL:     p.ImageURL,
		InitialPrice: p.InitialPrice,
		CurrentPrice: p.price(),
		MinimumPrice: p.MinimumPrice,
		DropTime:     auction.ParseDropTime(p.DropTime),
		UpdatedAt:    now,
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
