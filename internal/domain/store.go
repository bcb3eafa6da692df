package domain

import (
	"context"
	"time"
)

// ListOpts provides pagination and filtering for list queries.
type ListOpts struct {
	Limit  int
	Offset int
	Status *MarketStatus
}

// MarketStore persists markets discovered by the historical scanner.
type MarketStore interface {
	// InsertIfAbsent inserts a market if no row with the same address exists
	// and reports whether a row was written. An existing row is never
	// overwritten.
	InsertIfAbsent(ctx context.Context, market Market) (bool, error)

	// MarkPendingResolution advances a market to pending resolution. It is a
	// no-op when the stored status is already pending resolution or resolved.
	MarkPendingResolution(ctx context.Context, address string) error

	// MarkResolved advances a market to resolved and records its outcome.
	// Status never moves backward.
	MarkResolved(ctx context.Context, address string, outcome int64) error

	GetByAddress(ctx context.Context, address string) (Market, error)
	List(ctx context.Context, opts ListOpts) ([]Market, error)
	Count(ctx context.Context) (int64, error)
}

// ScanRun is an audit record for a single historical scan invocation.
type ScanRun struct {
	ID              string
	FromBlock       uint64
	ToBlock         uint64
	EventsObserved  int
	MarketsInserted int
	StatusUpdates   int
	Failures        int
	StartedAt       time.Time
	FinishedAt      *time.Time
}

// ScanRunStore persists scan audit records.
type ScanRunStore interface {
	Start(ctx context.Context, run ScanRun) error
	Finish(ctx context.Context, run ScanRun) error
}

// CheckpointStore tracks the highest block whose logs were fully fetched for
// a given factory, so an aborted backfill can be resumed.
type CheckpointStore interface {
	LastScannedBlock(ctx context.Context, factory string) (uint64, bool, error)
	SetLastScannedBlock(ctx context.Context, factory string, block uint64) error
}
