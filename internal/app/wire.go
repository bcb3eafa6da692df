package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/alanyoungcy/marketscan/internal/cache/redis"
	"github.com/alanyoungcy/marketscan/internal/chain"
	"github.com/alanyoungcy/marketscan/internal/config"
	"github.com/alanyoungcy/marketscan/internal/contracts"
	"github.com/alanyoungcy/marketscan/internal/domain"
	"github.com/alanyoungcy/marketscan/internal/scan"
	"github.com/alanyoungcy/marketscan/internal/store/postgres"
)

// Dependencies bundles everything the application modes need to operate. It
// is constructed by Wire and torn down by the returned cleanup function.
type Dependencies struct {
	// Stores
	MarketStore domain.MarketStore
	ScanRuns    domain.ScanRunStore
	Checkpoints domain.CheckpointStore

	// Chain access (nil in serve mode)
	Chain   *chain.Client
	State   *chain.StateReader
	Decoder *chain.Decoder
}

// needsChain returns true for modes that scan the chain.
func needsChain(mode string) bool {
	switch mode {
	case "scan", "full":
		return true
	default:
		return false
	}
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that should
// be called on shutdown to release resources. Any error here is a setup
// error: the process must abort before scanning starts.
func Wire(ctx context.Context, cfg *config.Config) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{}
	mode := strings.ToLower(cfg.Mode)

	// --- Contract interface definitions ---
	ifaces, err := contracts.Load(cfg.Chain.AbiDir)
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: %w", err)
	}

	// --- PostgreSQL ---
	pgClient, err := postgres.New(ctx, postgres.ClientConfig{
		DSN:      cfg.Database.DSN,
		Host:     cfg.Database.Host,
		Port:     cfg.Database.Port,
		Database: cfg.Database.Database,
		User:     cfg.Database.User,
		Password: cfg.Database.Password,
		SSLMode:  cfg.Database.SSLMode,
		MaxConns: cfg.Database.PoolMaxConns,
		MinConns: cfg.Database.PoolMinConns,
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: postgres: %w", err)
	}
	closers = append(closers, pgClient.Close)

	if cfg.Database.RunMigrations {
		if err := pgClient.RunMigrations(ctx); err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
		}
	}

	pool := pgClient.Pool()
	deps.MarketStore = postgres.NewMarketStore(pool)
	deps.ScanRuns = postgres.NewScanRunStore(pool)

	// --- Redis checkpoints (optional) ---
	deps.Checkpoints = scan.NopCheckpointStore{}
	if cfg.Redis.Enabled {
		redisClient, err := redis.New(ctx, redis.ClientConfig{
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			PoolSize:   cfg.Redis.PoolSize,
			MaxRetries: cfg.Redis.MaxRetries,
			TLSEnabled: cfg.Redis.TLSEnabled,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: redis: %w", err)
		}
		closers = append(closers, func() { _ = redisClient.Close() })
		deps.Checkpoints = redis.NewCheckpointStore(redisClient)
	}

	// --- Chain reader (scan modes only) ---
	if needsChain(mode) {
		if !common.IsHexAddress(cfg.Chain.FactoryAddress) {
			cleanup()
			return nil, nil, fmt.Errorf("wire: invalid factory address %q", cfg.Chain.FactoryAddress)
		}

		decoder, err := chain.NewDecoder(ifaces.Factory)
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: %w", err)
		}
		deps.Decoder = decoder

		timeout := time.Duration(cfg.Chain.RPCTimeoutSecs) * time.Second
		chainClient, err := chain.New(ctx,
			cfg.Chain.RPCEndpoint,
			common.HexToAddress(cfg.Chain.FactoryAddress),
			decoder.Topic(),
			timeout,
		)
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: %w", err)
		}
		closers = append(closers, chainClient.Close)

		deps.Chain = chainClient
		deps.State = chain.NewStateReader(chainClient.Eth(), ifaces.Market, timeout)
	}

	return deps, cleanup, nil
}
