package scan

import (
	"context"

	"github.com/alanyoungcy/marketscan/internal/domain"
)

// NopCheckpointStore is wired when Redis is disabled; resume support is then
// simply unavailable.
type NopCheckpointStore struct{}

func (NopCheckpointStore) LastScannedBlock(ctx context.Context, factory string) (uint64, bool, error) {
	return 0, false, nil
}

func (NopCheckpointStore) SetLastScannedBlock(ctx context.Context, factory string, block uint64) error {
	return nil
}

// NopScanRunStore discards scan audit records. It satisfies
// domain.ScanRunStore for scanners constructed without a database, such as in
// tests; the application always wires the postgres-backed store.
type NopScanRunStore struct{}

func (NopScanRunStore) Start(ctx context.Context, run domain.ScanRun) error  { return nil }
func (NopScanRunStore) Finish(ctx context.Context, run domain.ScanRun) error { return nil }
