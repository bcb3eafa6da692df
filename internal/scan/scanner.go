package scan

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ethereum/go-ethereum/core/types"
	"github.com/google/uuid"

	"github.com/alanyoungcy/marketscan/internal/chain"
	"github.com/alanyoungcy/marketscan/internal/domain"
)

// ChainReader is the scanner's view of the chain: latest height and bounded
// log queries.
type ChainReader interface {
	CurrentHeight(ctx context.Context) (uint64, error)
	FetchLogs(ctx context.Context, from, to uint64) ([]types.Log, error)
}

// EventDecoder turns a raw log into a typed creation event.
type EventDecoder interface {
	Decode(lg types.Log) (domain.CreationEvent, error)
}

// EventRecorder persists and reconciles a single creation event.
type EventRecorder interface {
	Record(ctx context.Context, ev domain.CreationEvent) error
	Stats() RunStats
}

// Config holds the scanner's tunables.
type Config struct {
	// Factory is the contract address whose creation events are scanned,
	// used for logging and as the checkpoint key.
	Factory string
	// MaxSpan caps the block span of a single log query. Keep it comfortably
	// under the provider's ceiling; the margin is a safety buffer.
	MaxSpan uint64
	// ChunkPause is an optional pause between chunk fetches, a rate-limit
	// courtesy to the provider rather than a correctness requirement.
	ChunkPause time.Duration
}

// Scanner drives one historical backfill: resolve the end block, split the
// range into provider-safe chunks, fetch all logs, then decode and record
// every event. Chunk fetches run strictly sequentially; aggregation assumes
// block-ordered accumulation and providers rate-limit anyway.
type Scanner struct {
	chain       ChainReader
	decoder     EventDecoder
	recorder    EventRecorder
	checkpoints domain.CheckpointStore
	runs        domain.ScanRunStore
	cfg         Config
	logger      *slog.Logger
}

// NewScanner creates a Scanner. checkpoints and runs may be the Nop
// implementations when resume support or run auditing is not wired.
func NewScanner(
	reader ChainReader,
	decoder EventDecoder,
	recorder EventRecorder,
	checkpoints domain.CheckpointStore,
	runs domain.ScanRunStore,
	cfg Config,
	logger *slog.Logger,
) *Scanner {
	return &Scanner{
		chain:       reader,
		decoder:     decoder,
		recorder:    recorder,
		checkpoints: checkpoints,
		runs:        runs,
		cfg:         cfg,
		logger:      logger.With(slog.String("component", "scanner")),
	}
}

// ResumeFrom returns the block after the stored checkpoint when it is ahead
// of from, so a re-run skips spans that were already fully fetched.
func (s *Scanner) ResumeFrom(ctx context.Context, from uint64) uint64 {
	last, ok, err := s.checkpoints.LastScannedBlock(ctx, s.cfg.Factory)
	if err != nil {
		s.logger.WarnContext(ctx, "checkpoint read failed, starting from requested block",
			slog.Uint64("from", from),
			slog.String("error", err.Error()),
		)
		return from
	}
	if ok && last+1 > from {
		s.logger.InfoContext(ctx, "resuming from checkpoint",
			slog.Uint64("checkpoint", last),
			slog.Uint64("requested_from", from),
		)
		return last + 1
	}
	return from
}

// Scan backfills the inclusive range [from, to]. A to of zero means "latest",
// resolved once at run start. It returns the number of creation events
// observed, not the number successfully recorded; per-chunk and per-event
// failures are logged with enough context to re-run the missed span and never
// abort the run. Only an unreachable provider at end-block resolution or a
// cancelled context is fatal.
func (s *Scanner) Scan(ctx context.Context, from, to uint64) (int, error) {
	if to == 0 {
		height, err := s.chain.CurrentHeight(ctx)
		if err != nil {
			return 0, fmt.Errorf("scan: resolve end block: %w", err)
		}
		to = height
	}

	s.logger.InfoContext(ctx, "starting historical scan",
		slog.String("factory", s.cfg.Factory),
		slog.Uint64("from_block", from),
		slog.Uint64("to_block", to),
	)

	if from > to {
		s.logger.InfoContext(ctx, "empty block range, nothing to scan")
		return 0, nil
	}

	run := domain.ScanRun{
		ID:        uuid.NewString(),
		FromBlock: from,
		ToBlock:   to,
		StartedAt: time.Now().UTC(),
	}
	if err := s.runs.Start(ctx, run); err != nil {
		// Auditing is best-effort; the scan itself proceeds.
		s.logger.WarnContext(ctx, "could not record scan run start",
			slog.String("run_id", run.ID),
			slog.String("error", err.Error()),
		)
	}

	logs, err := s.gather(ctx, from, to)
	if err != nil {
		return 0, err
	}

	events := s.decodeAll(ctx, logs)

	// Processing starts only after every chunk was fetched: a late processing
	// failure cannot lose already-fetched data.
	for _, ev := range events {
		if err := ctx.Err(); err != nil {
			return len(events), fmt.Errorf("scan: cancelled while processing events: %w", err)
		}
		if err := s.recorder.Record(ctx, ev); err != nil {
			// Already counted and logged by the recorder.
			continue
		}
	}

	stats := s.recorder.Stats()
	now := time.Now().UTC()
	run.EventsObserved = len(events)
	run.MarketsInserted = stats.Inserted
	run.StatusUpdates = stats.StatusUpdates
	run.Failures = stats.Failures()
	run.FinishedAt = &now
	if err := s.runs.Finish(ctx, run); err != nil {
		s.logger.WarnContext(ctx, "could not record scan run finish",
			slog.String("run_id", run.ID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "historical scan complete",
		slog.String("run_id", run.ID),
		slog.Int("events_observed", len(events)),
		slog.Int("markets_inserted", stats.Inserted),
		slog.Int("already_known", stats.AlreadyKnown),
		slog.Int("status_updates", stats.StatusUpdates),
		slog.Int("failures", stats.Failures()),
	)

	return len(events), nil
}

// gather fetches logs chunk by chunk, skipping failed chunks. The checkpoint
// advances only over the contiguous prefix of successful chunks: once a chunk
// fails, later successes no longer move it, so a resumed run re-covers the
// failed span instead of silently skipping it.
func (s *Scanner) gather(ctx context.Context, from, to uint64) ([]types.Log, error) {
	chunks := chain.SplitRange(from, to, s.cfg.MaxSpan)
	s.logger.InfoContext(ctx, "fetching logs",
		slog.Int("chunks", len(chunks)),
		slog.Uint64("max_span", s.cfg.MaxSpan),
	)

	var logs []types.Log
	checkpointing := true
	for i, ch := range chunks {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("scan: cancelled while fetching chunks: %w", err)
		}

		batch, err := s.chain.FetchLogs(ctx, ch.From, ch.To)
		if err != nil {
			// Skip, not retry: the chunk is abandoned and the operator can
			// re-run the logged span by hand.
			if errors.Is(err, domain.ErrRangeTooLarge) {
				s.logger.ErrorContext(ctx, "provider rejected chunk range, skipping",
					slog.Uint64("chunk_from", ch.From),
					slog.Uint64("chunk_to", ch.To),
				)
			} else {
				s.logger.ErrorContext(ctx, "chunk fetch failed, skipping",
					slog.Uint64("chunk_from", ch.From),
					slog.Uint64("chunk_to", ch.To),
					slog.String("error", err.Error()),
				)
			}
			checkpointing = false
			continue
		}

		logs = append(logs, batch...)
		if checkpointing {
			if err := s.checkpoints.SetLastScannedBlock(ctx, s.cfg.Factory, ch.To); err != nil {
				s.logger.DebugContext(ctx, "checkpoint write failed",
					slog.Uint64("block", ch.To),
					slog.String("error", err.Error()),
				)
			}
		}

		if s.cfg.ChunkPause > 0 && i < len(chunks)-1 {
			select {
			case <-ctx.Done():
				return nil, fmt.Errorf("scan: cancelled during chunk pause: %w", ctx.Err())
			case <-time.After(s.cfg.ChunkPause):
			}
		}
	}

	s.logger.InfoContext(ctx, "log fetch complete", slog.Int("logs", len(logs)))
	return logs, nil
}

// decodeAll decodes the aggregated logs, dropping malformed entries.
func (s *Scanner) decodeAll(ctx context.Context, logs []types.Log) []domain.CreationEvent {
	events := make([]domain.CreationEvent, 0, len(logs))
	for _, lg := range logs {
		ev, err := s.decoder.Decode(lg)
		if err != nil {
			s.logger.WarnContext(ctx, "undecodable log entry, skipping",
				slog.Uint64("block", lg.BlockNumber),
				slog.String("tx", lg.TxHash.Hex()),
				slog.String("error", err.Error()),
			)
			continue
		}
		events = append(events, ev)
	}
	return events
}
