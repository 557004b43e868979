package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App struct {
		Name string `envconfig:"APP_NAME" default:"Satwatch"`
		Port int    `envconfig:"PORT" default:"8080"`
	}

	DB struct {
		Host     string `envconfig:"DB_HOST" default:"localhost"`
		Port     int    `envconfig:"DB_PORT" default:"5432"`
		User     string `envconfig:"DB_USER" default:"postgres"`
		Password string `envconfig:"DB_PASSWORD" default:""`
		Name     string `envconfig:"DB_NAME" default:"satwatch"`
	}

	Bitcoind struct {
		Host    string `envconfig:"BITCOIND_HOST" default:"localhost"`
		RPCPort int    `envconfig:"BITCOIND_RPCPORT" default:"18443"`
		User    string `envconfig:"BITCOIND_USER" default:"user"`
		Pass    string `envconfig:"BITCOIND_PASS" default:"password"`
	}

	Invoice struct {
		// MinimumSatoshi rejects invoice creation below this amount.
		MinimumSatoshi int64 `envconfig:"MIN_INVOICE_SATOSHI" default:"10000"`
		// RequiredConfirmations is the confirmation count at which a
		// payment is considered final.
		RequiredConfirmations int64 `envconfig:"REQUIRED_CONFIRMATIONS" default:"6"`
		// DisabledAmountThreshold suppresses reorged amounts below this
		// value in display output. Display-only.
		DisabledAmountThreshold int64 `envconfig:"DISABLED_AMOUNT_THRESHOLD" default:"100"`
		// WatchConfirmations is the high-water mark past which a settled
		// invoice stops being scanned.
		WatchConfirmations int64 `envconfig:"WATCH_CONFIRMATIONS" default:"100"`
	}

	Scanner struct {
		PollInterval time.Duration `envconfig:"SCAN_POLL_INTERVAL" default:"200ms"`
	}

	Server struct {
		Timeout time.Duration `envconfig:"SERVER_TIMEOUT" default:"30s"`
	}
}

func (c *Config) ConnectionString() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		c.DB.User, c.DB.Password, c.DB.Host, c.DB.Port, c.DB.Name)
}

// BitcoindAddr returns the host:port of the bitcoind RPC endpoint.
func (c *Config) BitcoindAddr() string {
	return fmt.Sprintf("%s:%d", c.Bitcoind.Host, c.Bitcoind.RPCPort)
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}

	return &cfg, nil
}
