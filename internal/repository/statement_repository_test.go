package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/edu-collective-api/internal/models"
)

func newStatementRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestStatementRepositoryCreateAndGet(t *testing.T) {
	db, mock, cleanup := newStatementRepoMock(t)
	defer cleanup()

	repo := NewStatementRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO statement_jobs")).
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), "QUEUED", nil, "alice", sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	job := &models.StatementJob{
		Params:      models.StatementParams{Format: models.StatementFormatCSV},
		RequestedBy: "alice",
	}
	require.NoError(t, repo.Create(context.Background(), job))
	require.NotEmpty(t, job.ID)
	require.Equal(t, models.StatementStatusQueued, job.Status)

	rows := sqlmock.NewRows([]string{"id", "params", "status", "result_url", "requested_by", "created_at", "finished_at", "error_message"}).
		AddRow(job.ID, `{"format":"csv"}`, "QUEUED", nil, "alice", time.Now(), nil, nil)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, params, status, result_url, requested_by, created_at, finished_at, error_message\nFROM statement_jobs WHERE id = $1")).
		WithArgs(job.ID).
		WillReturnRows(rows)

	fetched, err := repo.GetByID(context.Background(), job.ID)
	require.NoError(t, err)
	require.Equal(t, job.ID, fetched.ID)
	require.Equal(t, models.StatementFormatCSV, fetched.Params.Format)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStatementRepositoryUpdate(t *testing.T) {
	db, mock, cleanup := newStatementRepoMock(t)
	defer cleanup()
	repo := NewStatementRepository(db)

	now := time.Now()
	status := models.StatementStatusFinished
	result := "/api/v1/statements/download/token"
	mock.ExpectExec(regexp.QuoteMeta("UPDATE statement_jobs SET status = $1, result_url = $2, finished_at = $3 WHERE id = $4")).
		WithArgs(status, result, now, "job-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Update(context.Background(), "job-1", UpdateStatementJobParams{
		Status:     &status,
		ResultURL:  &result,
		FinishedAt: &now,
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStatementRepositoryListQueued(t *testing.T) {
	db, mock, cleanup := newStatementRepoMock(t)
	defer cleanup()
	repo := NewStatementRepository(db)

	rows := sqlmock.NewRows([]string{"id", "params", "status", "result_url", "requested_by", "created_at", "finished_at", "error_message"}).
		AddRow("job-1", `{"format":"pdf"}`, "QUEUED", nil, "alice", time.Now(), nil, nil)
	mock.ExpectQuery("FROM statement_jobs WHERE status = 'QUEUED' ORDER BY created_at ASC").
		WithArgs(20).
		WillReturnRows(rows)

	jobs, err := repo.ListQueued(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	require.Equal(t, models.StatementFormatPDF, jobs[0].Params.Format)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStatementRepositoryListFinishedBefore(t *testing.T) {
	db, mock, cleanup := newStatementRepoMock(t)
	defer cleanup()
	repo := NewStatementRepository(db)

	rows := sqlmock.NewRows([]string{"id", "params", "status", "result_url", "requested_by", "created_at", "finished_at", "error_message"}).
		AddRow("job-1", `{"format":"csv"}`, "FINISHED", "/api/v1/statements/download/token", "alice", time.Now().Add(-48*time.Hour), time.Now().Add(-25*time.Hour), nil)
	mock.ExpectQuery("FROM statement_jobs WHERE status = 'FINISHED' AND finished_at IS NOT NULL").
		WithArgs(sqlmock.AnyArg(), 50).
		WillReturnRows(rows)

	jobs, err := repo.ListFinishedBefore(context.Background(), time.Now(), 0)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	require.NoError(t, mock.ExpectationsWereMet())
}
