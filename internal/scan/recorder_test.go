package scan

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/marketscan/internal/domain"
)

// memMarketStore is an in-memory domain.MarketStore mirroring the SQL
// semantics: idempotent insert and forward-only status transitions.
type memMarketStore struct {
	rows      map[string]domain.Market
	insertErr error
	markErr   error
}

func newMemMarketStore() *memMarketStore {
	return &memMarketStore{rows: make(map[string]domain.Market)}
}

func (s *memMarketStore) InsertIfAbsent(ctx context.Context, m domain.Market) (bool, error) {
	if s.insertErr != nil {
		return false, s.insertErr
	}
	if _, ok := s.rows[m.Address]; ok {
		return false, nil
	}
	s.rows[m.Address] = m
	return true, nil
}

func (s *memMarketStore) MarkPendingResolution(ctx context.Context, address string) error {
	if s.markErr != nil {
		return s.markErr
	}
	m, ok := s.rows[address]
	if ok && m.Status < domain.StatusPendingResolution {
		m.Status = domain.StatusPendingResolution
		s.rows[address] = m
	}
	return nil
}

func (s *memMarketStore) MarkResolved(ctx context.Context, address string, outcome int64) error {
	if s.markErr != nil {
		return s.markErr
	}
	m, ok := s.rows[address]
	if ok && m.Status <= domain.StatusResolved {
		m.Status = domain.StatusResolved
		m.Outcome = &outcome
		s.rows[address] = m
	}
	return nil
}

func (s *memMarketStore) GetByAddress(ctx context.Context, address string) (domain.Market, error) {
	m, ok := s.rows[address]
	if !ok {
		return domain.Market{}, domain.ErrNotFound
	}
	return m, nil
}

func (s *memMarketStore) List(ctx context.Context, opts domain.ListOpts) ([]domain.Market, error) {
	var out []domain.Market
	for _, m := range s.rows {
		out = append(out, m)
	}
	return out, nil
}

func (s *memMarketStore) Count(ctx context.Context) (int64, error) {
	return int64(len(s.rows)), nil
}

// stateFunc adapts a function to the StateReader interface.
type stateFunc func(ctx context.Context, address string) (domain.MarketState, error)

func (f stateFunc) ReadMarketState(ctx context.Context, address string) (domain.MarketState, error) {
	return f(ctx, address)
}

func openState(ctx context.Context, address string) (domain.MarketState, error) {
	return domain.MarketState{Status: domain.StatusOpen}, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func creationEvent(addr string) domain.CreationEvent {
	return domain.CreationEvent{
		MarketID:    "0x00000000000000000000000000000000000000000000000000000000000000aa",
		Market:      addr,
		Vault:       "0xBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBB",
		Question:    "Will X happen?",
		EndTime:     2_000_000_000,
		BlockNumber: 1000,
	}
}

func TestRecordInsertsNewMarketAsOpen(t *testing.T) {
	store := newMemMarketStore()
	rec := NewRecorder(store, stateFunc(openState), testLogger())

	ev := creationEvent("0xAAA0000000000000000000000000000000000001")
	require.NoError(t, rec.Record(context.Background(), ev))

	m, err := store.GetByAddress(context.Background(), ev.Market)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusOpen, m.Status)
	assert.Nil(t, m.Outcome)
	assert.Equal(t, "Will X happen?", m.Question)
	assert.Equal(t, "", m.Oracle)
	assert.Equal(t, int64(1000)*1000, m.CreatedAt)

	stats := rec.Stats()
	assert.Equal(t, 1, stats.Inserted)
	assert.Equal(t, 0, stats.StatusUpdates)
}

func TestRecordIsIdempotent(t *testing.T) {
	store := newMemMarketStore()
	rec := NewRecorder(store, stateFunc(openState), testLogger())

	ev := creationEvent("0xAAA0000000000000000000000000000000000001")
	require.NoError(t, rec.Record(context.Background(), ev))

	// Second sighting must not overwrite any field.
	dup := ev
	dup.Question = "a different question"
	require.NoError(t, rec.Record(context.Background(), dup))

	count, err := store.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	m, err := store.GetByAddress(context.Background(), ev.Market)
	require.NoError(t, err)
	assert.Equal(t, "Will X happen?", m.Question)

	stats := rec.Stats()
	assert.Equal(t, 1, stats.Inserted)
	assert.Equal(t, 1, stats.AlreadyKnown)
}

func TestRecordReconcilesResolvedMarket(t *testing.T) {
	store := newMemMarketStore()
	outcome := int64(1)
	resolved := stateFunc(func(ctx context.Context, address string) (domain.MarketState, error) {
		return domain.MarketState{Status: domain.StatusResolved, Outcome: &outcome}, nil
	})
	rec := NewRecorder(store, resolved, testLogger())

	ev := creationEvent("0xAAA0000000000000000000000000000000000001")
	require.NoError(t, rec.Record(context.Background(), ev))

	m, err := store.GetByAddress(context.Background(), ev.Market)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusResolved, m.Status)
	require.NotNil(t, m.Outcome)
	assert.Equal(t, int64(1), *m.Outcome)
	assert.Equal(t, "Will X happen?", m.Question)
	assert.Equal(t, 1, rec.Stats().StatusUpdates)
}

func TestRecordReconcilesPendingWithoutOutcome(t *testing.T) {
	store := newMemMarketStore()
	pending := stateFunc(func(ctx context.Context, address string) (domain.MarketState, error) {
		return domain.MarketState{Status: domain.StatusPendingResolution}, nil
	})
	rec := NewRecorder(store, pending, testLogger())

	ev := creationEvent("0xAAA0000000000000000000000000000000000001")
	require.NoError(t, rec.Record(context.Background(), ev))

	m, err := store.GetByAddress(context.Background(), ev.Market)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPendingResolution, m.Status)
	assert.Nil(t, m.Outcome)
}

func TestRecordResolvedWithoutReadableOutcomeWritesNothing(t *testing.T) {
	store := newMemMarketStore()
	resolvedNoOutcome := stateFunc(func(ctx context.Context, address string) (domain.MarketState, error) {
		return domain.MarketState{Status: domain.StatusResolved}, nil
	})
	rec := NewRecorder(store, resolvedNoOutcome, testLogger())

	ev := creationEvent("0xAAA0000000000000000000000000000000000001")
	require.NoError(t, rec.Record(context.Background(), ev))

	// Outcome unreadable: the row keeps its insert-time status so the
	// outcome-iff-resolved invariant holds.
	m, err := store.GetByAddress(context.Background(), ev.Market)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusOpen, m.Status)
	assert.Nil(t, m.Outcome)
}

func TestRecordSurvivesStateReadFailure(t *testing.T) {
	store := newMemMarketStore()
	failing := stateFunc(func(ctx context.Context, address string) (domain.MarketState, error) {
		return domain.MarketState{}, errors.New("execution reverted")
	})
	rec := NewRecorder(store, failing, testLogger())

	ev := creationEvent("0xAAA0000000000000000000000000000000000001")
	require.NoError(t, rec.Record(context.Background(), ev))

	// Insert completed even though reconciliation failed.
	m, err := store.GetByAddress(context.Background(), ev.Market)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusOpen, m.Status)
	assert.Equal(t, 1, rec.Stats().ReconcileFailures)
}

func TestRecordInsertFailureIsReported(t *testing.T) {
	store := newMemMarketStore()
	store.insertErr = errors.New("connection refused")
	rec := NewRecorder(store, stateFunc(openState), testLogger())

	err := rec.Record(context.Background(), creationEvent("0xAAA0000000000000000000000000000000000001"))
	require.Error(t, err)
	assert.Equal(t, 1, rec.Stats().InsertFailures)
}

func TestReconcileNeverRegressesStatus(t *testing.T) {
	store := newMemMarketStore()
	outcome := int64(1)

	// First pass sees the market resolved.
	resolved := stateFunc(func(ctx context.Context, address string) (domain.MarketState, error) {
		return domain.MarketState{Status: domain.StatusResolved, Outcome: &outcome}, nil
	})
	rec := NewRecorder(store, resolved, testLogger())
	ev := creationEvent("0xAAA0000000000000000000000000000000000001")
	require.NoError(t, rec.Record(context.Background(), ev))

	// A later pass reading a stale pending status must not move it back.
	stale := stateFunc(func(ctx context.Context, address string) (domain.MarketState, error) {
		return domain.MarketState{Status: domain.StatusPendingResolution}, nil
	})
	rec2 := NewRecorder(store, stale, testLogger())
	require.NoError(t, rec2.Record(context.Background(), ev))

	m, err := store.GetByAddress(context.Background(), ev.Market)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusResolved, m.Status)
	require.NotNil(t, m.Outcome)
	assert.Equal(t, int64(1), *m.Outcome)
}
