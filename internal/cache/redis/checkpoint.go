package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/redis/go-redis/v9"
)

// CheckpointStore implements domain.CheckpointStore using Redis strings.
//
// Key schema:
//
//	scanner:checkpoint:{factory} - highest fully fetched block number
//
// Checkpoints have no TTL; a backfill may be resumed weeks later.
type CheckpointStore struct {
	rdb *redis.Client
}

// NewCheckpointStore creates a CheckpointStore backed by the given Client.
func NewCheckpointStore(c *Client) *CheckpointStore {
	return &CheckpointStore{rdb: c.Underlying()}
}

func checkpointKey(factory string) string {
	return "scanner:checkpoint:" + strings.ToLower(factory)
}

// LastScannedBlock returns the stored checkpoint for the factory, and false
// when none exists.
func (cs *CheckpointStore) LastScannedBlock(ctx context.Context, factory string) (uint64, bool, error) {
	val, err := cs.rdb.Get(ctx, checkpointKey(factory)).Result()
	if errors.Is(err, redis.Nil) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("redis: get checkpoint for %s: %w", factory, err)
	}

	block, err := strconv.ParseUint(val, 10, 64)
	if err != nil {
		return 0, false, fmt.Errorf("redis: parse checkpoint %q for %s: %w", val, factory, err)
	}
	return block, true, nil
}

// SetLastScannedBlock stores the checkpoint for the factory.
func (cs *CheckpointStore) SetLastScannedBlock(ctx context.Context, factory string, block uint64) error {
	if err := cs.rdb.Set(ctx, checkpointKey(factory), strconv.FormatUint(block, 10), 0).Err(); err != nil {
		return fmt.Errorf("redis: set checkpoint for %s: %w", factory, err)
	}
	return nil
}
