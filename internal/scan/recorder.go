// Package scan implements the historical backfill: chunked log fetching,
// event decoding, idempotent persistence, and status reconciliation.
package scan

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/alanyoungcy/marketscan/internal/domain"
)

// StateReader reads live market contract state for reconciliation.
type StateReader interface {
	ReadMarketState(ctx context.Context, address string) (domain.MarketState, error)
}

// RunStats counts what happened to every discovered event. The scan itself
// only reports observed events; callers that need success counts read these.
type RunStats struct {
	Observed          int
	Inserted          int
	AlreadyKnown      int
	StatusUpdates     int
	InsertFailures    int
	ReconcileFailures int
}

// Failures is the total number of events that were not fully processed.
func (s RunStats) Failures() int {
	return s.InsertFailures + s.ReconcileFailures
}

// Recorder persists discovered markets and reconciles their lifecycle status
// against live contract state. Every failure is contained to the event at
// hand; a bad insert or a reverted state read never aborts the run.
type Recorder struct {
	markets domain.MarketStore
	state   StateReader
	logger  *slog.Logger
	stats   RunStats
}

// NewRecorder creates a Recorder writing to the given store and reconciling
// via the given state reader.
func NewRecorder(markets domain.MarketStore, state StateReader, logger *slog.Logger) *Recorder {
	return &Recorder{
		markets: markets,
		state:   state,
		logger:  logger.With(slog.String("component", "recorder")),
	}
}

// Stats returns the counters accumulated so far.
func (r *Recorder) Stats() RunStats {
	return r.stats
}

// Record inserts the market if it is not yet known, then reconciles its
// status against the chain. Reconciliation runs regardless of whether the
// insert happened: a previously indexed market revisited in the same range
// still gets its status refreshed.
func (r *Recorder) Record(ctx context.Context, ev domain.CreationEvent) error {
	r.stats.Observed++

	market := domain.Market{
		Address:  ev.Market,
		MarketID: ev.MarketID,
		Question: ev.Question,
		EndTime:  ev.EndTime,
		Oracle:   "",
		Vault:    ev.Vault,
		Status:   domain.StatusOpen,
		// Approximate creation time derived from the block ordinal; downstream
		// consumers rely on this exact scale.
		CreatedAt: int64(ev.BlockNumber) * 1000,
	}

	inserted, err := r.markets.InsertIfAbsent(ctx, market)
	if err != nil {
		r.stats.InsertFailures++
		r.logger.ErrorContext(ctx, "market insert failed",
			slog.String("address", ev.Market),
			slog.Uint64("block", ev.BlockNumber),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("scan: record market %s: %w", ev.Market, err)
	}

	if inserted {
		r.stats.Inserted++
		r.logger.InfoContext(ctx, "indexed market",
			slog.String("address", ev.Market),
			slog.String("question", ev.Question),
			slog.Uint64("block", ev.BlockNumber),
		)
	} else {
		r.stats.AlreadyKnown++
		r.logger.DebugContext(ctx, "market already indexed, insert skipped",
			slog.String("address", ev.Market),
		)
	}

	r.reconcile(ctx, ev.Market)
	return nil
}

// reconcile reads the live market state and advances the stored status when
// the chain is ahead. A failed read leaves the existing status untouched.
func (r *Recorder) reconcile(ctx context.Context, address string) {
	state, err := r.state.ReadMarketState(ctx, address)
	if err != nil {
		r.stats.ReconcileFailures++
		r.logger.WarnContext(ctx, "market state read failed, keeping stored status",
			slog.String("address", address),
			slog.String("error", err.Error()),
		)
		return
	}

	switch {
	case state.Status == domain.StatusResolved && state.Outcome != nil:
		if err := r.markets.MarkResolved(ctx, address, *state.Outcome); err != nil {
			r.stats.ReconcileFailures++
			r.logger.ErrorContext(ctx, "failed to mark market resolved",
				slog.String("address", address),
				slog.String("error", err.Error()),
			)
			return
		}
		r.stats.StatusUpdates++
		r.logger.InfoContext(ctx, "market resolved",
			slog.String("address", address),
			slog.Int64("outcome", *state.Outcome),
		)

	case state.Status == domain.StatusPendingResolution:
		if err := r.markets.MarkPendingResolution(ctx, address); err != nil {
			r.stats.ReconcileFailures++
			r.logger.ErrorContext(ctx, "failed to mark market pending resolution",
				slog.String("address", address),
				slog.String("error", err.Error()),
			)
			return
		}
		r.stats.StatusUpdates++
		r.logger.InfoContext(ctx, "market pending resolution",
			slog.String("address", address),
		)

	default:
		// Still open (or resolved with no outcome readable yet); no write.
	}
}
