package scan

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/marketscan/internal/chain"
	"github.com/alanyoungcy/marketscan/internal/domain"
)

const testFactory = "0xFFFF000000000000000000000000000000000001"

// fakeChain serves canned logs per block and fails requested chunks.
type fakeChain struct {
	height     uint64
	logsAt     map[uint64][]types.Log
	failRanges []chain.BlockRange
	heightErr  error
	calls      []chain.BlockRange
}

func (f *fakeChain) CurrentHeight(ctx context.Context) (uint64, error) {
	if f.heightErr != nil {
		return 0, f.heightErr
	}
	return f.height, nil
}

func (f *fakeChain) FetchLogs(ctx context.Context, from, to uint64) ([]types.Log, error) {
	f.calls = append(f.calls, chain.BlockRange{From: from, To: to})
	for _, r := range f.failRanges {
		if r.From == from && r.To == to {
			return nil, fmt.Errorf("chain: logs %d-%d: %w", from, to, domain.ErrRangeTooLarge)
		}
	}
	var out []types.Log
	for block := from; block <= to; block++ {
		out = append(out, f.logsAt[block]...)
	}
	return out, nil
}

// fakeDecoder turns a log into an event derived from its block number and
// rejects logs whose Data is empty.
type fakeDecoder struct{}

func (fakeDecoder) Decode(lg types.Log) (domain.CreationEvent, error) {
	if len(lg.Data) == 0 {
		return domain.CreationEvent{}, domain.ErrBadEventShape
	}
	return domain.CreationEvent{
		MarketID:    fmt.Sprintf("0x%064x", lg.BlockNumber),
		Market:      fmt.Sprintf("0x%040x", lg.BlockNumber),
		Vault:       "0xBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBB",
		Question:    "q",
		EndTime:     2_000_000_000,
		BlockNumber: lg.BlockNumber,
	}, nil
}

// memCheckpoints is an in-memory domain.CheckpointStore.
type memCheckpoints struct {
	blocks map[string]uint64
}

func newMemCheckpoints() *memCheckpoints {
	return &memCheckpoints{blocks: make(map[string]uint64)}
}

func (c *memCheckpoints) LastScannedBlock(ctx context.Context, factory string) (uint64, bool, error) {
	b, ok := c.blocks[factory]
	return b, ok, nil
}

func (c *memCheckpoints) SetLastScannedBlock(ctx context.Context, factory string, block uint64) error {
	c.blocks[factory] = block
	return nil
}

func goodLog(block uint64) types.Log {
	return types.Log{BlockNumber: block, Data: []byte{0x01}}
}

func badLog(block uint64) types.Log {
	return types.Log{BlockNumber: block}
}

func newTestScanner(fc *fakeChain, store *memMarketStore, ckpt domain.CheckpointStore) *Scanner {
	recorder := NewRecorder(store, stateFunc(openState), testLogger())
	return NewScanner(fc, fakeDecoder{}, recorder, ckpt, NopScanRunStore{}, Config{
		Factory: testFactory,
		MaxSpan: 100,
	}, testLogger())
}

func TestScanSingleBlockRange(t *testing.T) {
	fc := &fakeChain{logsAt: map[uint64][]types.Log{1000: {goodLog(1000)}}}
	store := newMemMarketStore()
	s := newTestScanner(fc, store, newMemCheckpoints())

	count, err := s.Scan(context.Background(), 1000, 1000)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	require.Len(t, fc.calls, 1)
	assert.Equal(t, chain.BlockRange{From: 1000, To: 1000}, fc.calls[0])

	rows, err := store.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), rows)
}

func TestScanAggregatesAcrossChunks(t *testing.T) {
	fc := &fakeChain{logsAt: map[uint64][]types.Log{
		10:  {goodLog(10)},
		150: {goodLog(150)},
		290: {goodLog(290)},
	}}
	store := newMemMarketStore()
	s := newTestScanner(fc, store, newMemCheckpoints())

	count, err := s.Scan(context.Background(), 0, 299)
	require.NoError(t, err)
	assert.Equal(t, 3, count)
	assert.Len(t, fc.calls, 3)

	rows, err := store.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(3), rows)
}

func TestScanResolvesLatestEndBlock(t *testing.T) {
	fc := &fakeChain{height: 250, logsAt: map[uint64][]types.Log{200: {goodLog(200)}}}
	store := newMemMarketStore()
	s := newTestScanner(fc, store, newMemCheckpoints())

	count, err := s.Scan(context.Background(), 0, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
	require.NotEmpty(t, fc.calls)
	assert.Equal(t, uint64(250), fc.calls[len(fc.calls)-1].To)
}

func TestScanFailsWhenEndBlockUnresolvable(t *testing.T) {
	fc := &fakeChain{heightErr: errors.New("connection refused")}
	s := newTestScanner(fc, newMemMarketStore(), newMemCheckpoints())

	_, err := s.Scan(context.Background(), 0, 0)
	require.Error(t, err)
}

func TestScanEmptyRange(t *testing.T) {
	fc := &fakeChain{}
	s := newTestScanner(fc, newMemMarketStore(), newMemCheckpoints())

	count, err := s.Scan(context.Background(), 500, 100)
	require.NoError(t, err)
	assert.Zero(t, count)
	assert.Empty(t, fc.calls)
}

func TestScanSkipsFailedChunk(t *testing.T) {
	fc := &fakeChain{
		logsAt: map[uint64][]types.Log{
			10:  {goodLog(10)},
			150: {goodLog(150)},
			290: {goodLog(290)},
		},
		failRanges: []chain.BlockRange{{From: 100, To: 199}},
	}
	store := newMemMarketStore()
	s := newTestScanner(fc, store, newMemCheckpoints())

	count, err := s.Scan(context.Background(), 0, 299)
	require.NoError(t, err)

	// The middle chunk was abandoned; the other two still land.
	assert.Equal(t, 2, count)
	assert.Len(t, fc.calls, 3)

	rows, err := store.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(2), rows)
}

func TestScanSkipsUndecodableLogs(t *testing.T) {
	fc := &fakeChain{logsAt: map[uint64][]types.Log{
		10: {goodLog(10), badLog(11)},
		20: {goodLog(20)},
	}}
	store := newMemMarketStore()
	s := newTestScanner(fc, store, newMemCheckpoints())

	count, err := s.Scan(context.Background(), 0, 99)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	rows, err := store.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(2), rows)
}

func TestScanTwiceInsertsOnce(t *testing.T) {
	fc := &fakeChain{logsAt: map[uint64][]types.Log{50: {goodLog(50)}}}
	store := newMemMarketStore()
	s := newTestScanner(fc, store, newMemCheckpoints())

	_, err := s.Scan(context.Background(), 0, 99)
	require.NoError(t, err)
	_, err = s.Scan(context.Background(), 0, 99)
	require.NoError(t, err)

	rows, err := store.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), rows)
}

func TestScanAdvancesCheckpoint(t *testing.T) {
	fc := &fakeChain{logsAt: map[uint64][]types.Log{}}
	ckpt := newMemCheckpoints()
	s := newTestScanner(fc, newMemMarketStore(), ckpt)

	_, err := s.Scan(context.Background(), 0, 299)
	require.NoError(t, err)

	last, ok, err := ckpt.LastScannedBlock(context.Background(), testFactory)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, uint64(299), last)
}

func TestCheckpointStopsAtFailedChunk(t *testing.T) {
	fc := &fakeChain{
		logsAt:     map[uint64][]types.Log{10: {goodLog(10)}, 290: {goodLog(290)}},
		failRanges: []chain.BlockRange{{From: 100, To: 199}},
	}
	ckpt := newMemCheckpoints()
	s := newTestScanner(fc, newMemMarketStore(), ckpt)

	_, err := s.Scan(context.Background(), 0, 299)
	require.NoError(t, err)

	// The chunk after the failure succeeded, but the checkpoint must stay at
	// the end of the contiguous successful prefix so a resumed run re-covers
	// the failed span.
	last, ok, err := ckpt.LastScannedBlock(context.Background(), testFactory)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, uint64(99), last)
	assert.Equal(t, uint64(100), s.ResumeFrom(context.Background(), 0))
}

func TestNoCheckpointWhenFirstChunkFails(t *testing.T) {
	fc := &fakeChain{
		logsAt:     map[uint64][]types.Log{150: {goodLog(150)}},
		failRanges: []chain.BlockRange{{From: 0, To: 99}},
	}
	ckpt := newMemCheckpoints()
	s := newTestScanner(fc, newMemMarketStore(), ckpt)

	_, err := s.Scan(context.Background(), 0, 199)
	require.NoError(t, err)

	_, ok, err := ckpt.LastScannedBlock(context.Background(), testFactory)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestResumeFromCheckpoint(t *testing.T) {
	ckpt := newMemCheckpoints()
	require.NoError(t, ckpt.SetLastScannedBlock(context.Background(), testFactory, 199))

	fc := &fakeChain{logsAt: map[uint64][]types.Log{}}
	s := newTestScanner(fc, newMemMarketStore(), ckpt)

	assert.Equal(t, uint64(200), s.ResumeFrom(context.Background(), 0))
	// A requested start past the checkpoint wins.
	assert.Equal(t, uint64(500), s.ResumeFrom(context.Background(), 500))
}

func TestScanCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	fc := &fakeChain{logsAt: map[uint64][]types.Log{}}
	s := newTestScanner(fc, newMemMarketStore(), newMemCheckpoints())

	_, err := s.Scan(ctx, 0, 299)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}
