package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/marketscan/internal/scan"
	"github.com/alanyoungcy/marketscan/internal/server"
	"github.com/alanyoungcy/marketscan/internal/server/handler"
)

// newScanner builds the historical scanner from wired dependencies.
func (a *App) newScanner(deps *Dependencies) *scan.Scanner {
	recorder := scan.NewRecorder(deps.MarketStore, deps.State, a.logger)
	return scan.NewScanner(
		deps.Chain,
		deps.Decoder,
		recorder,
		deps.Checkpoints,
		deps.ScanRuns,
		scan.Config{
			Factory:    a.cfg.Chain.FactoryAddress,
			MaxSpan:    a.cfg.Chain.MaxSpan,
			ChunkPause: time.Duration(a.cfg.Chain.ChunkPauseMs) * time.Millisecond,
		},
		a.logger,
	)
}

// ScanMode runs a single historical backfill and returns. Per-chunk and
// per-event failures are contained inside the scan; only setup failures and
// an unresolvable end block surface as errors here.
func (a *App) ScanMode(ctx context.Context, deps *Dependencies) error {
	scanner := a.newScanner(deps)

	from := a.cfg.Chain.ScanFromBlock
	if a.cfg.Chain.Resume {
		from = scanner.ResumeFrom(ctx, from)
	}

	count, err := scanner.Scan(ctx, from, a.cfg.Chain.ScanToBlock)
	if err != nil {
		return fmt.Errorf("app: historical scan: %w", err)
	}

	a.logger.InfoContext(ctx, "scan mode finished", slog.Int("events_observed", count))
	return nil
}

// ServeMode runs the HTTP API until the context is cancelled.
func (a *App) ServeMode(ctx context.Context, deps *Dependencies) error {
	srv := server.NewServer(
		server.Config{Port: a.cfg.Server.Port},
		server.Handlers{
			Health:       handler.NewHealthHandler(),
			Markets:      handler.NewMarketHandler(deps.MarketStore, a.logger),
			Attestations: handler.NewAttestationHandler(a.cfg.Server.IndexerURL, a.logger),
		},
		a.logger,
	)
	return srv.Run(ctx)
}

// FullMode runs the backfill once while serving the HTTP API, so rows become
// queryable while the scan is still filling the table. The API keeps serving
// after the scan completes until the context is cancelled.
func (a *App) FullMode(ctx context.Context, deps *Dependencies) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return a.ServeMode(ctx, deps)
	})

	g.Go(func() error {
		if err := a.ScanMode(ctx, deps); err != nil {
			a.logger.ErrorContext(ctx, "historical scan failed",
				slog.String("error", err.Error()),
			)
			return err
		}
		return nil
	})

	return g.Wait()
}
