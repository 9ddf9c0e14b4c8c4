// Package config loads tokenctl and watcher settings from the environment
// and an optional .env file.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/blocto/solana-go-sdk/common"
	"github.com/caarlos0/env/v6"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"solana-token-manager/internal/address"
	"solana-token-manager/internal/solana"
)

// Config holds settings shared by the binaries. Command-line flags
// override these values.
type Config struct {
	RPCURL     string `env:"SOLANA_RPC_URL" envDefault:"http://127.0.0.1:8899"`
	WSURL      string `env:"SOLANA_WS_URL"` // derived from RPCURL when empty
	Commitment string `env:"SOLANA_COMMITMENT" envDefault:"confirmed"`
	ProgramID  string `env:"TOKEN_MANAGER_PROGRAM_ID" envDefault:"53Tt3YDUVYtWBQEyWZdHebdDFebfhjt9fMAwG6D3uAEz"`
	Keypair    string `env:"SOLANA_KEYPAIR" envDefault:"~/.config/solana/id.json"`

	ConfirmTimeout time.Duration `env:"CONFIRM_TIMEOUT" envDefault:"60s"`
	PollInterval   time.Duration `env:"JOURNAL_POLL_INTERVAL" envDefault:"30s"`
	PageSize       int           `env:"JOURNAL_PAGE_SIZE" envDefault:"1000"`

	// Storage is memory unless a DSN is set.
	PostgresDSN   string `env:"POSTGRES_DSN"`
	ClickhouseDSN string `env:"CLICKHOUSE_DSN"`

	MetricsAddr string `env:"METRICS_ADDR" envDefault:":9090"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`
}

// Load reads envFile, when it exists, into the process environment without
// overriding variables already set, then parses the environment.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", envFile, err)
		}
	}
	return parse(env.Options{})
}

// FromMap parses settings from vars instead of the process environment.
func FromMap(vars map[string]string) (*Config, error) {
	return parse(env.Options{Environment: vars})
}

func parse(opts env.Options) (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg, opts); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the settings that cannot be caught by parsing alone.
func (c *Config) Validate() error {
	if c.RPCURL == "" {
		return errors.New("SOLANA_RPC_URL is empty")
	}
	if _, err := address.Parse(c.ProgramID); err != nil {
		return fmt.Errorf("TOKEN_MANAGER_PROGRAM_ID: %w", err)
	}
	switch c.Commitment {
	case solana.CommitmentProcessed, solana.CommitmentConfirmed, solana.CommitmentFinalized:
	default:
		return fmt.Errorf("SOLANA_COMMITMENT: unknown commitment %q", c.Commitment)
	}
	if _, err := zapcore.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("LOG_LEVEL: %w", err)
	}
	if c.PageSize <= 0 || c.PageSize > 1000 {
		return fmt.Errorf("JOURNAL_PAGE_SIZE must be in 1..1000, got %d", c.PageSize)
	}
	return nil
}

// Program returns the parsed program ID.
func (c *Config) Program() common.PublicKey {
	key, _ := address.Parse(c.ProgramID)
	return key
}

// WebSocketURL returns the configured WS endpoint or derives it from the
// RPC endpoint.
func (c *Config) WebSocketURL() string {
	if c.WSURL != "" {
		return c.WSURL
	}
	return solana.WSEndpoint(c.RPCURL)
}

// KeypairPath expands a leading ~ in the keypair path.
func (c *Config) KeypairPath() string {
	if rest, ok := strings.CutPrefix(c.Keypair, "~/"); ok {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, rest)
		}
	}
	return c.Keypair
}

// Logger builds a production zap logger at the configured level; verbose
// forces debug.
func (c *Config) Logger(verbose bool) (*zap.Logger, error) {
	zc := zap.NewProductionConfig()
	level, err := zapcore.ParseLevel(c.LogLevel)
	if err != nil {
		return nil, err
	}
	if verbose {
		level = zapcore.DebugLevel
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	return zc.Build()
}
