package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// ============================================================
// Configuration
// ============================================================

// Config holds the settings every service shares.
type Config struct {
	Port         string `env:"PORT"`
	Environment  string `env:"ENV" envDefault:"development"`
	ReadTimeout  int    `env:"READ_TIMEOUT" envDefault:"10"`
	WriteTimeout int    `env:"WRITE_TIMEOUT" envDefault:"10"`
	LogLevel     string `env:"LOG_LEVEL" envDefault:"info"`
}

// Addr is the listen address, using defaultPort when PORT is unset.
func (c Config) Addr(defaultPort string) string {
	port := c.Port
	if port == "" {
		port = defaultPort
	}
	return fmt.Sprintf(":%s", port)
}

func (c Config) ReadTimeoutDuration() time.Duration {
	return time.Duration(c.ReadTimeout) * time.Second
}

func (c Config) WriteTimeoutDuration() time.Duration {
	return time.Duration(c.WriteTimeout) * time.Second
}

type InventoryConfig struct {
	Config
	DatabasePath  string `env:"INVENTORY_DB_PATH" envDefault:"data/db/inventory.db"`
	SeedPath      string `env:"INVENTORY_SEED_PATH" envDefault:"config/seed.yaml"`
	PaymentSecret string `env:"PAYMENT_SECRET" envDefault:"sandbox-secret"`
	SweepSchedule string `env:"SWEEP_SCHEDULE" envDefault:"@every 30s"`
}

type ViewerConfig struct {
	Config
	LayoutConfigPath string `env:"LAYOUT_CONFIG_PATH"`
}

type GatewayConfig struct {
	Config
	InventoryURL string `env:"INVENTORY_URL" envDefault:"http://localhost:3001"`
	ViewerURL    string `env:"VIEWER_URL" envDefault:"http://localhost:3002"`
}

type WalkthroughConfig struct {
	LogLevel      string        `env:"LOG_LEVEL" envDefault:"info"`
	InventoryURL  string        `env:"INVENTORY_URL" envDefault:"http://localhost:3001"`
	PaymentSecret string        `env:"PAYMENT_SECRET" envDefault:"sandbox-secret"`
	PollInterval  time.Duration `env:"POLL_INTERVAL" envDefault:"3s"`
}

// ParseEnv loads configuration from environment variables.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// Load reads the shared settings.
func Load() (*Config, error) {
	var cfg Config
	if err := ParseEnv(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func LoadInventory() (*InventoryConfig, error) {
	var cfg InventoryConfig
	if err := ParseEnv(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func LoadViewer() (*ViewerConfig, error) {
	var cfg ViewerConfig
	if err := ParseEnv(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func LoadGateway() (*GatewayConfig, error) {
	var cfg GatewayConfig
	if err := ParseEnv(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func LoadWalkthrough() (*WalkthroughConfig, error) {
	var cfg WalkthroughConfig
	if err := ParseEnv(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
