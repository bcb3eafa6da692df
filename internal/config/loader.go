package config

import (
	"errors"
	"os"
	"strconv"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies MKTSCAN_* environment variable overrides, and
// returns the final Config. A missing file is not an error: defaults plus
// environment overrides are enough to run the scanner. The returned Config
// has NOT been validated; the caller should invoke Config.Validate() after
// Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if _, err := toml.DecodeFile(path, &cfg); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known MKTSCAN_* environment variables and
// overwrites the corresponding Config fields when a variable is set. This
// lets operators inject secrets at deploy time without touching the TOML
// file.
func applyEnvOverrides(cfg *Config) {
	// ── Chain ──
	setStr(&cfg.Chain.RPCEndpoint, "MKTSCAN_RPC_ENDPOINT")
	setStr(&cfg.Chain.FactoryAddress, "MKTSCAN_FACTORY_ADDRESS")
	setUint64(&cfg.Chain.ScanFromBlock, "MKTSCAN_SCAN_FROM_BLOCK")
	setUint64(&cfg.Chain.ScanToBlock, "MKTSCAN_SCAN_TO_BLOCK")
	setBool(&cfg.Chain.Resume, "MKTSCAN_SCAN_RESUME")
	setUint64(&cfg.Chain.MaxSpan, "MKTSCAN_MAX_SPAN")
	setInt(&cfg.Chain.ChunkPauseMs, "MKTSCAN_CHUNK_PAUSE_MS")
	setInt(&cfg.Chain.RPCTimeoutSecs, "MKTSCAN_RPC_TIMEOUT_SECS")
	setStr(&cfg.Chain.AbiDir, "MKTSCAN_ABI_DIR")

	// ── Database ──
	setStr(&cfg.Database.DSN, "MKTSCAN_DATABASE_DSN")
	setStr(&cfg.Database.Host, "MKTSCAN_DATABASE_HOST")
	setInt(&cfg.Database.Port, "MKTSCAN_DATABASE_PORT")
	setStr(&cfg.Database.Database, "MKTSCAN_DATABASE_NAME")
	setStr(&cfg.Database.User, "MKTSCAN_DATABASE_USER")
	setStr(&cfg.Database.Password, "MKTSCAN_DATABASE_PASSWORD")
	setStr(&cfg.Database.SSLMode, "MKTSCAN_DATABASE_SSL_MODE")
	setInt(&cfg.Database.PoolMaxConns, "MKTSCAN_DATABASE_POOL_MAX_CONNS")
	setInt(&cfg.Database.PoolMinConns, "MKTSCAN_DATABASE_POOL_MIN_CONNS")
	setBool(&cfg.Database.RunMigrations, "MKTSCAN_DATABASE_RUN_MIGRATIONS")

	// ── Redis ──
	setBool(&cfg.Redis.Enabled, "MKTSCAN_REDIS_ENABLED")
	setStr(&cfg.Redis.Addr, "MKTSCAN_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "MKTSCAN_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "MKTSCAN_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "MKTSCAN_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "MKTSCAN_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "MKTSCAN_REDIS_TLS_ENABLED")

	// ── Server ──
	setInt(&cfg.Server.Port, "MKTSCAN_SERVER_PORT")
	setStr(&cfg.Server.IndexerURL, "MKTSCAN_INDEXER_URL")

	// ── Root ──
	setStr(&cfg.Mode, "MKTSCAN_MODE")
	setStr(&cfg.LogLevel, "MKTSCAN_LOG_LEVEL")
}

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setUint64(dst *uint64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseUint(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}
