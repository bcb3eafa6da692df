package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/marketscan/internal/domain"
)

// MarketStore implements domain.MarketStore using PostgreSQL.
type MarketStore struct {
	pool *pgxpool.Pool
}

// NewMarketStore creates a new MarketStore backed by the given connection pool.
func NewMarketStore(pool *pgxpool.Pool) *MarketStore {
	return &MarketStore{pool: pool}
}

// InsertIfAbsent writes the market unless a row with the same address already
// exists. The ON CONFLICT DO NOTHING form keeps the write idempotent even if
// the caller's existence check raced an earlier partial insert; the unique
// key on address is the load-bearing safety net.
func (s *MarketStore) InsertIfAbsent(ctx context.Context, m domain.Market) (bool, error) {
	const query = `
		INSERT INTO markets (
			address, market_id, question, end_time,
			oracle, vault, status, outcome, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (address) DO NOTHING`

	tag, err := s.pool.Exec(ctx, query,
		m.Address, m.MarketID, m.Question, m.EndTime,
		m.Oracle, m.Vault, int16(m.Status), m.Outcome, m.CreatedAt,
	)
	if err != nil {
		return false, fmt.Errorf("postgres: insert market %s: %w", m.Address, err)
	}
	return tag.RowsAffected() == 1, nil
}

// MarkPendingResolution advances the market to pending resolution. The status
// guard in the WHERE clause keeps status monotonic: a row already pending or
// resolved is left untouched.
func (s *MarketStore) MarkPendingResolution(ctx context.Context, address string) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE markets SET status = $2 WHERE address = $1 AND status < $2`,
		address, int16(domain.StatusPendingResolution),
	)
	if err != nil {
		return fmt.Errorf("postgres: mark market %s pending: %w", address, err)
	}
	return nil
}

// MarkResolved advances the market to resolved and records the outcome. A row
// that is already resolved only has its outcome refreshed; status never moves
// backward.
func (s *MarketStore) MarkResolved(ctx context.Context, address string, outcome int64) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE markets SET status = $2, outcome = $3 WHERE address = $1 AND status <= $2`,
		address, int16(domain.StatusResolved), outcome,
	)
	if err != nil {
		return fmt.Errorf("postgres: mark market %s resolved: %w", address, err)
	}
	return nil
}

const marketCols = `address, market_id, question, end_time,
	oracle, vault, status, outcome, created_at`

// scanMarket scans a single market row into a domain.Market.
func scanMarket(row pgx.Row) (domain.Market, error) {
	var m domain.Market
	var status int16
	err := row.Scan(
		&m.Address, &m.MarketID, &m.Question, &m.EndTime,
		&m.Oracle, &m.Vault, &status, &m.Outcome, &m.CreatedAt,
	)
	if err != nil {
		return domain.Market{}, err
	}
	m.Status = domain.MarketStatus(status)
	return m, nil
}

// GetByAddress retrieves a market by its primary key.
func (s *MarketStore) GetByAddress(ctx context.Context, address string) (domain.Market, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+marketCols+` FROM markets WHERE address = $1`, address)
	m, err := scanMarket(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return domain.Market{}, domain.ErrNotFound
		}
		return domain.Market{}, fmt.Errorf("postgres: get market %s: %w", address, err)
	}
	return m, nil
}

// List returns markets ordered by creation, optionally filtered by status.
func (s *MarketStore) List(ctx context.Context, opts domain.ListOpts) ([]domain.Market, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = 50
	}

	var rows pgx.Rows
	var err error
	if opts.Status != nil {
		rows, err = s.pool.Query(ctx,
			`SELECT `+marketCols+` FROM markets
			 WHERE status = $1
			 ORDER BY created_at DESC LIMIT $2 OFFSET $3`,
			int16(*opts.Status), limit, opts.Offset)
	} else {
		rows, err = s.pool.Query(ctx,
			`SELECT `+marketCols+` FROM markets
			 ORDER BY created_at DESC LIMIT $1 OFFSET $2`,
			limit, opts.Offset)
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: list markets: %w", err)
	}
	defer rows.Close()

	var markets []domain.Market
	for rows.Next() {
		m, err := scanMarket(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan market row: %w", err)
		}
		markets = append(markets, m)
	}
	return markets, rows.Err()
}

// Count returns the total number of market rows.
func (s *MarketStore) Count(ctx context.Context) (int64, error) {
	var count int64
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM markets`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("postgres: count markets: %w", err)
	}
	return count, nil
}
