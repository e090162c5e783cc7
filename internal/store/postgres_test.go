package store

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stealthee/radar-cli/internal/model"
)

// newMockPostgresStore creates a PostgresStore backed by pgxmock for unit testing.
func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	s := &PostgresStore{pool: mock}
	return s, mock
}

func TestPostgres_CreateRun(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO runs`).
		WithArgs(pgxmock.AnyArg(), "stealth launch", "running", pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	run, err := s.CreateRun(context.Background(), "stealth launch")
	require.NoError(t, err)
	assert.NotEmpty(t, run.ID)
	assert.Equal(t, model.RunStatusRunning, run.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_CompleteRun_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`UPDATE runs SET status`).
		WithArgs("complete", pgxmock.AnyArg(), pgxmock.AnyArg(), "missing-run").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := s.CompleteRun(context.Background(), "missing-run", &model.RunSummary{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_GetRun_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT id, query, status, reason, summary, created_at, updated_at FROM runs WHERE id = \$1`).
		WithArgs("nonexistent-run").
		WillReturnError(pgx.ErrNoRows)

	_, err := s.GetRun(context.Background(), "nonexistent-run")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "get run")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_InsertSignal_ReturnsID(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`INSERT INTO signals`).
		WithArgs("run-1", "https://techcrunch.com/a", "Title", "excerpt", pgxmock.AnyArg(),
			0.82, "High", "reasoning", pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(7)))

	id, err := s.InsertSignal(context.Background(), "run-1", &model.StoredRecord{
		URL:        "https://techcrunch.com/a",
		Title:      "Title",
		Excerpt:    "excerpt",
		Fields:     map[string]string{"pricing": "$10"},
		Likelihood: 0.82,
		Confidence: model.ConfidenceHigh,
		Reasoning:  "reasoning",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(7), id)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_ListSignals(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	now := time.Now().UTC()
	rows := pgxmock.NewRows([]string{"id", "url", "title", "excerpt", "fields", "likelihood", "confidence", "reasoning", "created_at"}).
		AddRow(int64(1), "https://techcrunch.com/a", "A", "ex", []byte(`{"pricing":"$10"}`), 0.9, model.ConfidenceHigh, "r", now).
		AddRow(int64(2), "https://theverge.com/b", "B", "ex", []byte(`{}`), 0.4, model.ConfidenceLow, "r", now)

	mock.ExpectQuery(`SELECT id, url, title, excerpt, fields, likelihood, confidence, reasoning, created_at FROM signals`).
		WithArgs(100).
		WillReturnRows(rows)

	records, err := s.ListSignals(context.Background(), SignalFilter{})
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "$10", records[0].Fields["pricing"])
	assert.Equal(t, model.ConfidenceLow, records[1].Confidence)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_FailRun(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`UPDATE runs SET status`).
		WithArgs("aborted", "no results", pgxmock.AnyArg(), "run-9").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	err := s.FailRun(context.Background(), "run-9", model.RunStatusAborted, "no results")
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
