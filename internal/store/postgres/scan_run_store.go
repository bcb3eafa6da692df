package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/marketscan/internal/domain"
)

// ScanRunStore implements domain.ScanRunStore using PostgreSQL.
type ScanRunStore struct {
	pool *pgxpool.Pool
}

// NewScanRunStore creates a new ScanRunStore backed by the given connection pool.
func NewScanRunStore(pool *pgxpool.Pool) *ScanRunStore {
	return &ScanRunStore{pool: pool}
}

// Start records the beginning of a scan run.
func (s *ScanRunStore) Start(ctx context.Context, run domain.ScanRun) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO scan_runs (id, from_block, to_block, started_at)
		 VALUES ($1, $2, $3, $4)`,
		run.ID, run.FromBlock, run.ToBlock, run.StartedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: start scan run %s: %w", run.ID, err)
	}
	return nil
}

// Finish records the final counters of a scan run.
func (s *ScanRunStore) Finish(ctx context.Context, run domain.ScanRun) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE scan_runs SET
			events_observed  = $2,
			markets_inserted = $3,
			status_updates   = $4,
			failures         = $5,
			finished_at      = $6
		 WHERE id = $1`,
		run.ID, run.EventsObserved, run.MarketsInserted,
		run.StatusUpdates, run.Failures, run.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: finish scan run %s: %w", run.ID, err)
	}
	return nil
}
