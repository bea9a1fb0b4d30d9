package history

import (
	"context"
	"fmt"
	"time"

	"github.com/dd0wney/crclink/pkg/simulation"
	"github.com/dd0wney/crclink/pkg/topology"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PGStore persists history in PostgreSQL
type PGStore struct {
	pool *pgxpool.Pool
}

// NewPGStore connects, verifies the connection and creates the schema
func NewPGStore(ctx context.Context, databaseURL string) (*PGStore, error) {
	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}

	config.MaxConns = 4
	config.MinConns = 1
	config.MaxConnLifetime = 5 * time.Minute
	config.MaxConnIdleTime = 1 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("database unreachable: %w", err)
	}

	s := &PGStore{pool: pool}
	if err := s.migrate(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("migration failed: %w", err)
	}
	return s, nil
}

func (s *PGStore) migrate(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS transmissions (
		id TEXT PRIMARY KEY,
		recorded_at TIMESTAMPTZ NOT NULL,
		source_id BIGINT NOT NULL,
		destination_id BIGINT NOT NULL,
		data TEXT NOT NULL,
		crc_key TEXT NOT NULL,
		delay DOUBLE PRECISION NOT NULL,
		packet_loss_percentage DOUBLE PRECISION NOT NULL,
		error_type TEXT NOT NULL,
		error_count INTEGER NOT NULL,
		packet_lost BOOLEAN NOT NULL,
		original_codeword TEXT NOT NULL,
		crc_remainder TEXT NOT NULL,
		error_injected_codeword TEXT NOT NULL,
		crc_verification BOOLEAN NOT NULL,
		verdict TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_transmissions_recorded_at ON transmissions(recorded_at DESC);
	`
	_, err := s.pool.Exec(ctx, schema)
	return err
}

// Record inserts e
func (s *PGStore) Record(ctx context.Context, e Entry) error {
	query := `
		INSERT INTO transmissions (id, recorded_at, source_id, destination_id, data, crc_key, delay,
			packet_loss_percentage, error_type, error_count, packet_lost, original_codeword,
			crc_remainder, error_injected_codeword, crc_verification, verdict)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
	`

	_, err := s.pool.Exec(ctx, query,
		e.ID.String(),
		e.RecordedAt,
		int64(e.Request.SourceID),
		int64(e.Request.DestinationID),
		e.Request.Data,
		e.Request.Key,
		e.Request.Delay,
		e.Request.PacketLossPercentage,
		string(e.Request.ErrorParams.ErrorType),
		e.Request.ErrorParams.ErrorCount,
		e.Result.PacketLost,
		e.Result.OriginalCodeword,
		e.Result.CRCRemainder,
		e.Result.ErrorInjectedCodeword,
		e.Result.CRCVerification,
		string(e.Verdict),
	)
	if err != nil {
		return fmt.Errorf("failed to record transmission: %w", err)
	}
	return nil
}

// List returns up to limit entries, newest first
func (s *PGStore) List(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}

	query := `
		SELECT id, recorded_at, source_id, destination_id, data, crc_key, delay,
			packet_loss_percentage, error_type, error_count, packet_lost, original_codeword,
			crc_remainder, error_injected_codeword, crc_verification, verdict
		FROM transmissions
		ORDER BY recorded_at DESC
		LIMIT $1
	`

	rows, err := s.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list transmissions: %w", err)
	}

	entries, err := pgx.CollectRows(rows, scanEntry)
	if err != nil {
		return nil, fmt.Errorf("failed to scan transmissions: %w", err)
	}
	return entries, nil
}

func scanEntry(row pgx.CollectableRow) (Entry, error) {
	var (
		e                  Entry
		id                 string
		src, dst           int64
		errorType, verdict string
	)

	err := row.Scan(
		&id,
		&e.RecordedAt,
		&src,
		&dst,
		&e.Request.Data,
		&e.Request.Key,
		&e.Request.Delay,
		&e.Request.PacketLossPercentage,
		&errorType,
		&e.Request.ErrorParams.ErrorCount,
		&e.Result.PacketLost,
		&e.Result.OriginalCodeword,
		&e.Result.CRCRemainder,
		&e.Result.ErrorInjectedCodeword,
		&e.Result.CRCVerification,
		&verdict,
	)
	if err != nil {
		return Entry{}, err
	}

	if e.ID, err = uuid.Parse(id); err != nil {
		return Entry{}, fmt.Errorf("bad transmission id %q: %w", id, err)
	}
	e.Request.SourceID = topology.NodeID(src)
	e.Request.DestinationID = topology.NodeID(dst)
	e.Request.ErrorParams.ErrorType = simulation.ErrorType(errorType)
	e.Result.ErrorType = e.Request.ErrorParams.ErrorType
	e.Result.ErrorCount = e.Request.ErrorParams.ErrorCount
	e.Result.Delay = e.Request.Delay
	e.Verdict = simulation.Verdict(verdict)
	return e, nil
}

// Ping checks database connectivity
func (s *PGStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close closes the connection pool
func (s *PGStore) Close() error {
	s.pool.Close()
	return nil
}

// Open returns a PGStore when databaseURL is set and a MemoryStore otherwise
func Open(ctx context.Context, databaseURL string, capacity int) (Store, error) {
	if databaseURL == "" {
		return NewMemoryStore(capacity), nil
	}
	return NewPGStore(ctx, databaseURL)
}
