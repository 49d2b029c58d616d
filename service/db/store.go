package db

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nexalabs/nexamon/service/metrics"
)

// Store persists redistribution history in Postgres. It is purely additive
// observability: cursors and in-flight state never touch the database.
type Store struct {
	pool    *pgxpool.Pool
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// LegRecord is one stored leg outcome.
type LegRecord struct {
	Kind        string `json:"kind"`
	Destination string `json:"destination"`
	Amount      uint64 `json:"amount"`
	Outcome     string `json:"outcome"`
	Signature   string `json:"signature,omitempty"`
	Error       string `json:"error,omitempty"`
}

// RedistributionRecord is one stored redistribution with its legs.
type RedistributionRecord struct {
	ID          int64       `json:"id"`
	Signature   string      `json:"signature"`
	Destination string      `json:"destination"`
	Amount      uint64      `json:"amount"`
	BlockTime   time.Time   `json:"block_time"`
	ProcessedAt time.Time   `json:"processed_at"`
	Legs        []LegRecord `json:"legs"`
}

// NewStore creates a connection pool and verifies connectivity.
// If m is nil, no metrics are recorded.
func NewStore(ctx context.Context, databaseURL string, m *metrics.Metrics, logger *slog.Logger) (*Store, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &Store{pool: pool, logger: logger, metrics: m}, nil
}

// Close releases the connection pool.
func (s *Store) Close() {
	s.pool.Close()
}

const schema = `
CREATE TABLE IF NOT EXISTS redistributions (
	id BIGSERIAL PRIMARY KEY,
	signature TEXT NOT NULL UNIQUE,
	destination TEXT NOT NULL,
	amount BIGINT NOT NULL,
	block_time TIMESTAMPTZ,
	processed_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS redistribution_legs (
	id BIGSERIAL PRIMARY KEY,
	redistribution_id BIGINT NOT NULL REFERENCES redistributions(id) ON DELETE CASCADE,
	kind TEXT NOT NULL,
	destination TEXT NOT NULL,
	amount BIGINT NOT NULL,
	outcome TEXT NOT NULL,
	leg_signature TEXT NOT NULL DEFAULT '',
	error TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_redistributions_processed_at
	ON redistributions (processed_at DESC);
CREATE INDEX IF NOT EXISTS idx_redistribution_legs_parent
	ON redistribution_legs (redistribution_id);
`

// EnsureSchema creates the history tables if they don't exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	start := time.Now()
	_, err := s.pool.Exec(ctx, schema)
	if s.metrics != nil {
		s.metrics.RecordDBQuery("ensure_schema", "redistributions", time.Since(start).Seconds(), err)
	}
	if err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// RecordRedistribution stores one redistribution and its legs atomically.
func (s *Store) RecordRedistribution(ctx context.Context, rec *RedistributionRecord) error {
	start := time.Now()
	err := s.recordRedistribution(ctx, rec)
	if s.metrics != nil {
		s.metrics.RecordDBQuery("insert", "redistributions", time.Since(start).Seconds(), err)
	}
	return err
}

func (s *Store) recordRedistribution(ctx context.Context, rec *RedistributionRecord) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var id int64
	err = tx.QueryRow(ctx, `
		INSERT INTO redistributions (signature, destination, amount, block_time, processed_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id`,
		rec.Signature, rec.Destination, int64(rec.Amount), rec.BlockTime, rec.ProcessedAt,
	).Scan(&id)
	if err != nil {
		return fmt.Errorf("insert redistribution: %w", err)
	}

	for _, leg := range rec.Legs {
		_, err = tx.Exec(ctx, `
			INSERT INTO redistribution_legs (redistribution_id, kind, destination, amount, outcome, leg_signature, error)
			VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			id, leg.Kind, leg.Destination, int64(leg.Amount), leg.Outcome, leg.Signature, leg.Error,
		)
		if err != nil {
			return fmt.Errorf("insert %s leg: %w", leg.Kind, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	rec.ID = id
	return nil
}

// ListRecentRedistributions returns up to limit redistributions, newest
// first, with their legs attached.
func (s *Store) ListRecentRedistributions(ctx context.Context, limit int) ([]*RedistributionRecord, error) {
	start := time.Now()
	records, err := s.listRecentRedistributions(ctx, limit)
	if s.metrics != nil {
		s.metrics.RecordDBQuery("select", "redistributions", time.Since(start).Seconds(), err)
	}
	return records, err
}

func (s *Store) listRecentRedistributions(ctx context.Context, limit int) ([]*RedistributionRecord, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, signature, destination, amount, block_time, processed_at
		FROM redistributions
		ORDER BY processed_at DESC
		LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query redistributions: %w", err)
	}
	defer rows.Close()

	var records []*RedistributionRecord
	byID := make(map[int64]*RedistributionRecord)
	var ids []int64
	for rows.Next() {
		rec := &RedistributionRecord{}
		var amount int64
		if err := rows.Scan(&rec.ID, &rec.Signature, &rec.Destination, &amount, &rec.BlockTime, &rec.ProcessedAt); err != nil {
			return nil, fmt.Errorf("scan redistribution: %w", err)
		}
		rec.Amount = uint64(amount)
		records = append(records, rec)
		byID[rec.ID] = rec
		ids = append(ids, rec.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate redistributions: %w", err)
	}
	if len(records) == 0 {
		return records, nil
	}

	legRows, err := s.pool.Query(ctx, `
		SELECT redistribution_id, kind, destination, amount, outcome, leg_signature, error
		FROM redistribution_legs
		WHERE redistribution_id = ANY($1)
		ORDER BY id`,
		ids,
	)
	if err != nil {
		return nil, fmt.Errorf("query legs: %w", err)
	}
	defer legRows.Close()

	for legRows.Next() {
		var parentID int64
		var amount int64
		leg := LegRecord{}
		if err := legRows.Scan(&parentID, &leg.Kind, &leg.Destination, &amount, &leg.Outcome, &leg.Signature, &leg.Error); err != nil {
			return nil, fmt.Errorf("scan leg: %w", err)
		}
		leg.Amount = uint64(amount)
		if rec, ok := byID[parentID]; ok {
			rec.Legs = append(rec.Legs, leg)
		}
	}
	if err := legRows.Err(); err != nil {
		return nil, fmt.Errorf("iterate legs: %w", err)
	}

	return records, nil
}
