package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/edu-collective-api/internal/models"
)

func newProposalRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestProposalRepositoryCreate(t *testing.T) {
	db, mock, cleanup := newProposalRepoMock(t)
	defer cleanup()
	repo := NewProposalRepository(db)

	start := time.Now().UTC()
	end := start.Add(3 * time.Minute)
	mock.ExpectQuery("INSERT INTO proposals").
		WithArgs(models.Account("carol"), models.RoleStudent, start, end, models.Account("alice"), sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(7)))

	proposal := &models.Proposal{
		Candidate: "carol",
		RoleToAdd: models.RoleStudent,
		StartAt:   start,
		EndAt:     end,
		CreatedBy: "alice",
	}
	require.NoError(t, repo.Create(context.Background(), proposal))
	assert.Equal(t, int64(7), proposal.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProposalRepositoryFindByID(t *testing.T) {
	db, mock, cleanup := newProposalRepoMock(t)
	defer cleanup()
	repo := NewProposalRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "candidate", "role_to_add", "votes_for", "votes_against", "start_at", "end_at", "executed", "passed", "executed_at", "created_by", "created_at"}).
		AddRow(int64(7), "carol", string(models.RoleStudent), 2, 1, now, now.Add(time.Minute), false, false, nil, "alice", now)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, candidate, role_to_add, votes_for, votes_against, start_at, end_at, executed, passed, executed_at, created_by, created_at FROM proposals WHERE id = $1")).
		WithArgs(int64(7)).
		WillReturnRows(rows)

	proposal, err := repo.FindByID(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, models.Account("carol"), proposal.Candidate)
	assert.Equal(t, 2, proposal.VotesFor)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProposalRepositoryFindByIDMissing(t *testing.T) {
	db, mock, cleanup := newProposalRepoMock(t)
	defer cleanup()
	repo := NewProposalRepository(db)

	mock.ExpectQuery("SELECT .+ FROM proposals").
		WithArgs(int64(99)).
		WillReturnError(sql.ErrNoRows)

	_, err := repo.FindByID(context.Background(), 99)
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestProposalRepositoryExistsActive(t *testing.T) {
	db, mock, cleanup := newProposalRepoMock(t)
	defer cleanup()
	repo := NewProposalRepository(db)

	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT 1 FROM proposals WHERE candidate = $1 AND executed = FALSE AND end_at >= $2 LIMIT 1")).
		WithArgs(models.Account("carol"), now).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(1))

	exists, err := repo.ExistsActive(context.Background(), "carol", now)
	require.NoError(t, err)
	assert.True(t, exists)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT 1 FROM proposals WHERE candidate = $1 AND executed = FALSE AND end_at >= $2 LIMIT 1")).
		WithArgs(models.Account("dave"), now).
		WillReturnError(sql.ErrNoRows)

	exists, err = repo.ExistsActive(context.Background(), "dave", now)
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestProposalRepositoryInsertVote(t *testing.T) {
	db, mock, cleanup := newProposalRepoMock(t)
	defer cleanup()
	repo := NewProposalRepository(db)

	mock.ExpectExec("INSERT INTO proposal_votes").
		WithArgs(int64(7), models.Account("s1"), true, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	inserted, err := repo.InsertVote(context.Background(), db, models.ProposalVote{ProposalID: 7, Voter: "s1", Support: true, VotedAt: time.Now()})
	require.NoError(t, err)
	assert.True(t, inserted)
}

func TestProposalRepositoryInsertVoteDuplicate(t *testing.T) {
	db, mock, cleanup := newProposalRepoMock(t)
	defer cleanup()
	repo := NewProposalRepository(db)

	mock.ExpectExec("INSERT INTO proposal_votes").
		WithArgs(int64(7), models.Account("s1"), true, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	inserted, err := repo.InsertVote(context.Background(), db, models.ProposalVote{ProposalID: 7, Voter: "s1", Support: true, VotedAt: time.Now()})
	require.NoError(t, err)
	assert.False(t, inserted)
}

func TestProposalRepositoryIncrementTally(t *testing.T) {
	db, mock, cleanup := newProposalRepoMock(t)
	defer cleanup()
	repo := NewProposalRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE proposals SET votes_for = votes_for + 1 WHERE id = $1")).
		WithArgs(int64(7)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.IncrementTally(context.Background(), db, 7, true))

	mock.ExpectExec(regexp.QuoteMeta("UPDATE proposals SET votes_against = votes_against + 1 WHERE id = $1")).
		WithArgs(int64(7)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.IncrementTally(context.Background(), db, 7, false))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProposalRepositoryMarkExecuted(t *testing.T) {
	db, mock, cleanup := newProposalRepoMock(t)
	defer cleanup()
	repo := NewProposalRepository(db)

	at := time.Now()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE proposals SET executed = TRUE, passed = $2, executed_at = $3 WHERE id = $1 AND executed = FALSE")).
		WithArgs(int64(7), true, at).
		WillReturnResult(sqlmock.NewResult(0, 1))

	done, err := repo.MarkExecuted(context.Background(), db, 7, true, at)
	require.NoError(t, err)
	assert.True(t, done)
}

func TestProposalRepositoryMarkExecutedTwice(t *testing.T) {
	db, mock, cleanup := newProposalRepoMock(t)
	defer cleanup()
	repo := NewProposalRepository(db)

	at := time.Now()
	mock.ExpectExec("UPDATE proposals SET executed").
		WithArgs(int64(7), false, at).
		WillReturnResult(sqlmock.NewResult(0, 0))

	done, err := repo.MarkExecuted(context.Background(), db, 7, false, at)
	require.NoError(t, err)
	assert.False(t, done)
}

func TestProposalRepositoryList(t *testing.T) {
	db, mock, cleanup := newProposalRepoMock(t)
	defer cleanup()
	repo := NewProposalRepository(db)

	now := time.Now()
	executed := false
	listRows := sqlmock.NewRows([]string{"id", "candidate", "role_to_add", "votes_for", "votes_against", "start_at", "end_at", "executed", "passed", "executed_at", "created_by", "created_at"}).
		AddRow(int64(7), "carol", string(models.RoleStudent), 0, 0, now, now.Add(time.Minute), false, false, nil, "alice", now)
	mock.ExpectQuery(regexp.QuoteMeta("FROM proposals WHERE 1=1 AND executed = $1 ORDER BY id DESC LIMIT 20 OFFSET 0")).
		WithArgs(executed).
		WillReturnRows(listRows)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM proposals WHERE 1=1 AND executed = $1")).
		WithArgs(executed).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	proposals, total, err := repo.List(context.Background(), models.ProposalFilter{Executed: &executed})
	require.NoError(t, err)
	require.Len(t, proposals, 1)
	assert.Equal(t, 1, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}
