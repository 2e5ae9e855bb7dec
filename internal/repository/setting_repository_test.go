package repository

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/edu-collective-api/internal/models"
)

func newSettingRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	sqlxDB := sqlx.NewDb(db, "postgres")
	return sqlxDB, mock, func() {
		sqlxDB.Close()
		db.Close()
	}
}

func TestSettingRepositoryList(t *testing.T) {
	db, mock, cleanup := newSettingRepoMock(t)
	defer cleanup()

	repo := NewSettingRepository(db)
	rows := sqlmock.NewRows([]string{"key", "value", "type", "description", "updated_by", "updated_at"}).
		AddRow(models.SettingProposalDuration, "180", "INTEGER", "voting window", "alice", time.Now())
	mock.ExpectQuery("SELECT key, value").WillReturnRows(rows)

	settings, err := repo.List(context.Background())
	require.NoError(t, err)
	require.Len(t, settings, 1)
	assert.Equal(t, "180", settings[0].Value)
}

func TestSettingRepositoryGet(t *testing.T) {
	db, mock, cleanup := newSettingRepoMock(t)
	defer cleanup()

	repo := NewSettingRepository(db)
	rows := sqlmock.NewRows([]string{"key", "value", "type", "description", "updated_by", "updated_at"}).
		AddRow(models.SettingProposalDuration, "300", "INTEGER", nil, nil, time.Now())
	mock.ExpectQuery("SELECT key, value").
		WithArgs(models.SettingProposalDuration).
		WillReturnRows(rows)

	setting, err := repo.Get(context.Background(), models.SettingProposalDuration)
	require.NoError(t, err)
	assert.Equal(t, "300", setting.Value)
	assert.Equal(t, models.SettingTypeInteger, setting.Type)
}

func TestSettingRepositoryUpsert(t *testing.T) {
	db, mock, cleanup := newSettingRepoMock(t)
	defer cleanup()
	repo := NewSettingRepository(db)
	mock.ExpectExec("INSERT INTO settings").
		WithArgs(models.SettingProposalDuration, "600", "INTEGER", sqlmock.AnyArg(), "alice", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	setting := &models.Setting{
		Key:       models.SettingProposalDuration,
		Value:     "600",
		Type:      models.SettingTypeInteger,
		UpdatedBy: strPtr("alice"),
	}
	require.NoError(t, repo.Upsert(context.Background(), setting))
	assert.False(t, setting.UpdatedAt.IsZero())
}

func strPtr(value string) *string {
	return &value
}
