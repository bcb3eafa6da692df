// Package config defines the top-level configuration for the market scanner
// and provides validation helpers.
package config

import (
	"fmt"
	"strings"
)

// Config is the root configuration structure. Fields are populated from a TOML
// file and then optionally overridden by MKTSCAN_* environment variables. It
// is constructed once and passed into the application explicitly; there are
// no ambient configuration globals.
type Config struct {
	Chain    ChainConfig    `toml:"chain"`
	Database DatabaseConfig `toml:"database"`
	Redis    RedisConfig    `toml:"redis"`
	Server   ServerConfig   `toml:"server"`
	Mode     string         `toml:"mode"`
	LogLevel string         `toml:"log_level"`
}

// ChainConfig holds the RPC endpoint, factory contract, and scan parameters.
type ChainConfig struct {
	RPCEndpoint    string `toml:"rpc_endpoint"`
	FactoryAddress string `toml:"factory_address"`
	// ScanFromBlock is the default start of a backfill; set it to the
	// factory's deployment block to avoid scanning empty history.
	ScanFromBlock uint64 `toml:"scan_from_block"`
	// ScanToBlock is the end of a backfill; zero means "latest" resolved at
	// run start.
	ScanToBlock uint64 `toml:"scan_to_block"`
	// Resume continues from the stored checkpoint when it is ahead of
	// scan_from_block. Requires Redis.
	Resume bool `toml:"resume"`
	// MaxSpan caps the block span of one eth_getLogs query. The default of
	// 45000 leaves a margin under the common 50k provider ceiling.
	MaxSpan        uint64 `toml:"max_span"`
	ChunkPauseMs   int    `toml:"chunk_pause_ms"`
	RPCTimeoutSecs int    `toml:"rpc_timeout_secs"`
	// AbiDir optionally loads contract artifacts from disk instead of the
	// embedded definitions.
	AbiDir string `toml:"abi_dir"`
}

// DatabaseConfig holds PostgreSQL connection parameters.
type DatabaseConfig struct {
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// RedisConfig holds Redis connection parameters for scan checkpoints.
type RedisConfig struct {
	Enabled    bool   `toml:"enabled"`
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
}

// ServerConfig holds the HTTP API parameters.
type ServerConfig struct {
	Port int `toml:"port"`
	// IndexerURL is the upstream indexer service the attestation proxy
	// forwards to.
	IndexerURL string `toml:"indexer_url"`
}

// Defaults returns the built-in configuration defaults.
func Defaults() Config {
	return Config{
		Chain: ChainConfig{
			ScanFromBlock:  0,
			ScanToBlock:    0,
			MaxSpan:        45_000,
			ChunkPauseMs:   200,
			RPCTimeoutSecs: 30,
		},
		Database: DatabaseConfig{
			Host:          "localhost",
			Port:          5432,
			Database:      "marketscan",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Enabled:    false,
			Addr:       "localhost:6379",
			PoolSize:   10,
			MaxRetries: 3,
		},
		Server: ServerConfig{
			Port:       4000,
			IndexerURL: "http://localhost:4001",
		},
		Mode:     "scan",
		LogLevel: "info",
	}
}

var validModes = map[string]bool{
	"scan":  true,
	"serve": true,
	"full":  true,
}

var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks Config for obviously invalid or missing values and returns a
// combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	// Mode is matched case-insensitively everywhere, so normalize once here
	// before the per-mode checks.
	mode := strings.ToLower(c.Mode)

	if !validModes[mode] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: scan, serve, full)", c.Mode))
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	needsChain := mode == "scan" || mode == "full"
	if needsChain {
		if strings.TrimSpace(c.Chain.RPCEndpoint) == "" {
			errs = append(errs, "chain: rpc_endpoint is required for mode "+c.Mode)
		}
		if strings.TrimSpace(c.Chain.FactoryAddress) == "" {
			errs = append(errs, "chain: factory_address is required for mode "+c.Mode)
		}
		if c.Chain.MaxSpan == 0 {
			errs = append(errs, "chain: max_span must be positive")
		}
		if c.Chain.ScanToBlock != 0 && c.Chain.ScanToBlock < c.Chain.ScanFromBlock {
			errs = append(errs, "chain: scan_to_block must be 0 (latest) or >= scan_from_block")
		}
		if c.Chain.Resume && !c.Redis.Enabled {
			errs = append(errs, "chain: resume requires redis.enabled")
		}
	}

	if strings.TrimSpace(c.Database.DSN) == "" {
		if c.Database.Host == "" {
			errs = append(errs, "database: host must not be empty (or set database.dsn)")
		}
		if c.Database.Port <= 0 || c.Database.Port > 65535 {
			errs = append(errs, fmt.Sprintf("database: port %d out of range", c.Database.Port))
		}
	}

	if c.Redis.Enabled && c.Redis.Addr == "" {
		errs = append(errs, "redis: addr must not be empty when enabled")
	}

	if mode == "serve" || mode == "full" {
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, fmt.Sprintf("server: port %d out of range", c.Server.Port))
		}
		if strings.TrimSpace(c.Server.IndexerURL) == "" {
			errs = append(errs, "server: indexer_url must not be empty")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid configuration:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
