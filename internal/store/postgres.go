package store

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/stealthee/radar-cli/internal/model"
)

// Pool is the subset of pgxpool.Pool the store uses. pgxmock satisfies it.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS runs (
	id         TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	query      TEXT NOT NULL,
	status     TEXT NOT NULL DEFAULT 'running',
	reason     TEXT,
	summary    JSONB,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS signals (
	id         BIGSERIAL PRIMARY KEY,
	run_id     TEXT NOT NULL REFERENCES runs(id),
	url        TEXT NOT NULL,
	title      TEXT NOT NULL,
	excerpt    TEXT NOT NULL,
	fields     JSONB NOT NULL DEFAULT '{}',
	likelihood DOUBLE PRECISION NOT NULL,
	confidence TEXT NOT NULL,
	reasoning  TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
CREATE INDEX IF NOT EXISTS idx_signals_run_id ON signals(run_id);
CREATE INDEX IF NOT EXISTS idx_signals_likelihood ON signals(likelihood);
`

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) CreateRun(ctx context.Context, query string) (*model.Run, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := s.pool.Exec(ctx,
		`INSERT INTO runs (id, query, status, created_at, updated_at) VALUES ($1, $2, $3, $4, $5)`,
		id, query, string(model.RunStatusRunning), now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert run")
	}

	return &model.Run{
		ID:        id,
		Query:     query,
		Status:    model.RunStatusRunning,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

func (s *PostgresStore) CompleteRun(ctx context.Context, runID string, summary *model.RunSummary) error {
	summaryJSON, err := json.Marshal(summary)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal summary")
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE runs SET status = $1, summary = $2, updated_at = $3 WHERE id = $4`,
		string(model.RunStatusComplete), summaryJSON, time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: complete run %s", runID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("run not found: %s", runID)
	}
	return nil
}

func (s *PostgresStore) FailRun(ctx context.Context, runID string, status model.RunStatus, reason string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE runs SET status = $1, reason = $2, updated_at = $3 WHERE id = $4`,
		string(status), reason, time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: fail run %s", runID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("run not found: %s", runID)
	}
	return nil
}

func (s *PostgresStore) GetRun(ctx context.Context, runID string) (*model.Run, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, query, status, reason, summary, created_at, updated_at FROM runs WHERE id = $1`,
		runID,
	)

	var r model.Run
	var reason *string
	var summaryJSON []byte
	err := row.Scan(&r.ID, &r.Query, &r.Status, &reason, &summaryJSON, &r.CreatedAt, &r.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(err, "postgres: get run %s", runID)
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: get run")
	}

	if reason != nil {
		r.Reason = *reason
	}
	if len(summaryJSON) > 0 {
		r.Summary = &model.RunSummary{}
		if err := json.Unmarshal(summaryJSON, r.Summary); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal summary")
		}
	}
	return &r, nil
}

func (s *PostgresStore) InsertSignal(ctx context.Context, runID string, rec *model.StoredRecord) (int64, error) {
	fieldsJSON, err := json.Marshal(rec.Fields)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: marshal fields")
	}

	var id int64
	err = s.pool.QueryRow(ctx,
		`INSERT INTO signals (run_id, url, title, excerpt, fields, likelihood, confidence, reasoning, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9) RETURNING id`,
		runID, rec.URL, rec.Title, rec.Excerpt, fieldsJSON,
		rec.Likelihood, string(rec.Confidence), rec.Reasoning, time.Now().UTC(),
	).Scan(&id)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: insert signal")
	}
	return id, nil
}

func (s *PostgresStore) ListSignals(ctx context.Context, filter SignalFilter) ([]model.StoredRecord, error) {
	query := `SELECT id, url, title, excerpt, fields, likelihood, confidence, reasoning, created_at FROM signals WHERE 1=1`
	var args []any

	if filter.RunID != "" {
		args = append(args, filter.RunID)
		query += ` AND run_id = $` + strconv.Itoa(len(args))
	}
	if filter.MinLikelihood > 0 {
		args = append(args, filter.MinLikelihood)
		query += ` AND likelihood >= $` + strconv.Itoa(len(args))
	}
	query += ` ORDER BY created_at DESC, id DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	args = append(args, limit)
	query += ` LIMIT $` + strconv.Itoa(len(args))

	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += ` OFFSET $` + strconv.Itoa(len(args))
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list signals")
	}
	defer rows.Close()

	var records []model.StoredRecord
	for rows.Next() {
		var rec model.StoredRecord
		var fieldsJSON []byte
		if err := rows.Scan(&rec.ID, &rec.URL, &rec.Title, &rec.Excerpt, &fieldsJSON,
			&rec.Likelihood, &rec.Confidence, &rec.Reasoning, &rec.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan signal")
		}
		if err := json.Unmarshal(fieldsJSON, &rec.Fields); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal fields")
		}
		records = append(records, rec)
	}
	return records, eris.Wrap(rows.Err(), "postgres: list signals iterate")
}
