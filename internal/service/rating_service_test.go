package service

import (
	"context"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/edu-collective-api/internal/dto"
	"github.com/noah-isme/edu-collective-api/internal/events"
	"github.com/noah-isme/edu-collective-api/internal/models"
	"github.com/noah-isme/edu-collective-api/pkg/clock"
	appErrors "github.com/noah-isme/edu-collective-api/pkg/errors"
)

type ratingRepoMock struct {
	upserts  []models.Rating
	previous int
	listed   []models.Rating
	stats    map[models.Account]models.TeacherRatingStats
}

func (m *ratingRepoMock) Upsert(ctx context.Context, rating models.Rating) (int, error) {
	m.upserts = append(m.upserts, rating)
	return m.previous, nil
}

func (m *ratingRepoMock) ListByCourse(ctx context.Context, courseID int64, student models.Account) ([]models.Rating, error) {
	return m.listed, nil
}

func (m *ratingRepoMock) StatsOf(ctx context.Context, teacher models.Account) (*models.TeacherRatingStats, error) {
	if s, ok := m.stats[teacher]; ok {
		copied := s
		return &copied, nil
	}
	return &models.TeacherRatingStats{Teacher: teacher}, nil
}

func (m *ratingRepoMock) StatsFor(ctx context.Context, teachers []models.Account) (map[models.Account]models.TeacherRatingStats, error) {
	return m.stats, nil
}

type enrollmentCheckMock struct {
	enrolled map[enrollKey]bool
}

func (m *enrollmentCheckMock) IsEnrolled(ctx context.Context, courseID int64, student models.Account) (bool, error) {
	return m.enrolled[enrollKey{courseID, student}], nil
}

func newRatingService(repo *ratingRepoMock, courses *courseRepoMock, enrollments *enrollmentCheckMock, registry *registryMock, treasury *treasuryMock, journal *journalMock, db *sqlx.DB, clk clock.Clock, pub *publisherMock) *RatingService {
	return NewRatingService(RatingServiceParams{
		Repo:        repo,
		Courses:     courses,
		Enrollments: enrollments,
		Registry:    registry,
		Treasury:    treasury,
		Journal:     journal,
		DB:          db,
		Events:      pub,
		Clock:       clk,
		Logger:      zap.NewNop(),
	})
}

func TestRatingServiceRate(t *testing.T) {
	now := time.Date(2025, 5, 1, 10, 0, 0, 0, time.UTC)
	repo := &ratingRepoMock{}
	courses := &courseRepoMock{details: map[int64]*models.CourseDetail{
		1: paidCourse(1000, models.CourseTeacher{CourseID: 1, Teacher: "ted", ShareBp: 10000}),
	}}
	enrollments := &enrollmentCheckMock{enrolled: map[enrollKey]bool{{1, "sam"}: true}}
	registry := &registryMock{roles: map[models.Account]models.Role{"sam": models.RoleStudent}}
	pub := &publisherMock{}
	db, _ := newTxDB(t)
	svc := newRatingService(repo, courses, enrollments, registry, &treasuryMock{}, &journalMock{}, db, clock.NewFixed(now), pub)

	rating, err := svc.Rate(context.Background(), "sam", 1, dto.RateRequest{Teacher: "ted", Value: 5})

	require.NoError(t, err)
	assert.Equal(t, models.Account("ted"), rating.Teacher)
	assert.Equal(t, 5, rating.Value)
	assert.Equal(t, now, rating.RatedAt)
	require.Len(t, repo.upserts, 1)
	assert.Equal(t, models.Account("sam"), repo.upserts[0].Student)
	assert.Equal(t, []events.Type{events.TypeRatingGiven}, pub.types())
}

func TestRatingServiceRerate(t *testing.T) {
	repo := &ratingRepoMock{previous: 3}
	courses := &courseRepoMock{details: map[int64]*models.CourseDetail{
		1: paidCourse(1000, models.CourseTeacher{CourseID: 1, Teacher: "ted", ShareBp: 10000}),
	}}
	enrollments := &enrollmentCheckMock{enrolled: map[enrollKey]bool{{1, "sam"}: true}}
	registry := &registryMock{roles: map[models.Account]models.Role{"sam": models.RoleStudent}}
	pub := &publisherMock{}
	db, _ := newTxDB(t)
	svc := newRatingService(repo, courses, enrollments, registry, &treasuryMock{}, &journalMock{}, db, clock.System{}, pub)

	_, err := svc.Rate(context.Background(), "sam", 1, dto.RateRequest{Teacher: "ted", Value: 2})

	require.NoError(t, err)
	require.Len(t, pub.events, 1)
	assert.Equal(t, 3, pub.events[0].Payload["previous"], "re-rating reports the replaced value")
}

func TestRatingServiceRateValidation(t *testing.T) {
	courses := &courseRepoMock{details: map[int64]*models.CourseDetail{
		1: paidCourse(1000, models.CourseTeacher{CourseID: 1, Teacher: "ted", ShareBp: 10000}),
	}}
	enrollments := &enrollmentCheckMock{enrolled: map[enrollKey]bool{{1, "sam"}: true}}
	registry := &registryMock{roles: map[models.Account]models.Role{"sam": models.RoleStudent}}
	db, _ := newTxDB(t)
	svc := newRatingService(&ratingRepoMock{}, courses, enrollments, registry, &treasuryMock{}, &journalMock{}, db, clock.System{}, &publisherMock{})

	_, err := svc.Rate(context.Background(), "sam", 1, dto.RateRequest{Teacher: "ted", Value: 6})
	requireCode(t, err, appErrors.ErrInvalidRatingValue.Code)

	_, err = svc.Rate(context.Background(), "sam", 1, dto.RateRequest{Value: 3})
	requireCode(t, err, appErrors.ErrValidation.Code)
}

func TestRatingServiceRateNotStudent(t *testing.T) {
	courses := &courseRepoMock{details: map[int64]*models.CourseDetail{
		1: paidCourse(1000, models.CourseTeacher{CourseID: 1, Teacher: "ted", ShareBp: 10000}),
	}}
	registry := &registryMock{roles: map[models.Account]models.Role{"tina": models.RoleTeacher}}
	db, _ := newTxDB(t)
	svc := newRatingService(&ratingRepoMock{}, courses, &enrollmentCheckMock{}, registry, &treasuryMock{}, &journalMock{}, db, clock.System{}, &publisherMock{})

	_, err := svc.Rate(context.Background(), "tina", 1, dto.RateRequest{Teacher: "ted", Value: 4})

	requireCode(t, err, appErrors.ErrForbidden.Code)
}

func TestRatingServiceRateNotEnrolled(t *testing.T) {
	courses := &courseRepoMock{details: map[int64]*models.CourseDetail{
		1: paidCourse(1000, models.CourseTeacher{CourseID: 1, Teacher: "ted", ShareBp: 10000}),
	}}
	registry := &registryMock{roles: map[models.Account]models.Role{"sam": models.RoleStudent}}
	db, _ := newTxDB(t)
	svc := newRatingService(&ratingRepoMock{}, courses, &enrollmentCheckMock{}, registry, &treasuryMock{}, &journalMock{}, db, clock.System{}, &publisherMock{})

	_, err := svc.Rate(context.Background(), "sam", 1, dto.RateRequest{Teacher: "ted", Value: 4})

	requireCode(t, err, appErrors.ErrStudentNotEnrolled.Code)
}

func TestRatingServiceRateTeacherNotListed(t *testing.T) {
	courses := &courseRepoMock{details: map[int64]*models.CourseDetail{
		1: paidCourse(1000, models.CourseTeacher{CourseID: 1, Teacher: "ted", ShareBp: 10000}),
	}}
	enrollments := &enrollmentCheckMock{enrolled: map[enrollKey]bool{{1, "sam"}: true}}
	registry := &registryMock{roles: map[models.Account]models.Role{"sam": models.RoleStudent}}
	db, _ := newTxDB(t)
	svc := newRatingService(&ratingRepoMock{}, courses, enrollments, registry, &treasuryMock{}, &journalMock{}, db, clock.System{}, &publisherMock{})

	_, err := svc.Rate(context.Background(), "sam", 1, dto.RateRequest{Teacher: "tina", Value: 4})

	requireCode(t, err, appErrors.ErrTeacherNotInCourse.Code)
}

func TestRatingServiceCourseRatings(t *testing.T) {
	repo := &ratingRepoMock{listed: []models.Rating{{CourseID: 1, Student: "sam", Teacher: "ted", Value: 5}}}
	courses := &courseRepoMock{details: map[int64]*models.CourseDetail{1: paidCourse(1000)}}
	db, _ := newTxDB(t)
	svc := newRatingService(repo, courses, &enrollmentCheckMock{}, &registryMock{}, &treasuryMock{}, &journalMock{}, db, clock.System{}, &publisherMock{})

	ratings, err := svc.CourseRatings(context.Background(), 1, "")
	require.NoError(t, err)
	require.Len(t, ratings, 1)
	assert.Equal(t, 5, ratings[0].Value)

	_, err = svc.CourseRatings(context.Background(), 42, "")
	requireCode(t, err, appErrors.ErrNotFound.Code)
}

func TestRatingServiceTeacherStats(t *testing.T) {
	repo := &ratingRepoMock{stats: map[models.Account]models.TeacherRatingStats{
		"ted": {Teacher: "ted", Total: 9, Count: 2},
	}}
	db, _ := newTxDB(t)
	svc := newRatingService(repo, &courseRepoMock{}, &enrollmentCheckMock{}, &registryMock{}, &treasuryMock{}, &journalMock{}, db, clock.System{}, &publisherMock{})

	resp, err := svc.TeacherStats(context.Background(), "ted")
	require.NoError(t, err)
	assert.Equal(t, int64(9), resp.Total)
	assert.Equal(t, int64(2), resp.Count)
	assert.Equal(t, int64(450), resp.AverageBp)
	assert.Equal(t, int64(450), resp.Weight)

	resp, err = svc.TeacherStats(context.Background(), "tina")
	require.NoError(t, err)
	assert.Zero(t, resp.Total)
	assert.Zero(t, resp.AverageBp)
	assert.Equal(t, int64(100), resp.Weight, "unrated teachers carry the baseline weight")
}

func TestRatingServiceDistributeBonus(t *testing.T) {
	now := time.Date(2025, 5, 2, 9, 0, 0, 0, time.UTC)
	// ted averages 5.00 (weight 500), tina is unrated (baseline 100).
	repo := &ratingRepoMock{stats: map[models.Account]models.TeacherRatingStats{
		"ted": {Teacher: "ted", Total: 10, Count: 2},
	}}
	courses := &courseRepoMock{details: map[int64]*models.CourseDetail{
		1: paidCourse(1000,
			models.CourseTeacher{CourseID: 1, Teacher: "ted", ShareBp: 6000},
			models.CourseTeacher{CourseID: 1, Teacher: "tina", ShareBp: 4000, Position: 1},
		),
	}}
	registry := &registryMock{roles: map[models.Account]models.Role{"bob": models.RoleBoard}}
	treasury := &treasuryMock{balance: 2000}
	journal := &journalMock{}
	pub := &publisherMock{}
	db, mock := newTxDB(t)
	mock.ExpectBegin()
	mock.ExpectCommit()
	svc := newRatingService(repo, courses, &enrollmentCheckMock{}, registry, treasury, journal, db, clock.NewFixed(now), pub)

	res, err := svc.DistributeBonus(context.Background(), "bob", 1, 1000)

	require.NoError(t, err)
	assert.Equal(t, int64(1000), res.Amount)
	assert.Equal(t, int64(999), res.Distributed)
	assert.Equal(t, int64(1), res.Residue)
	require.Len(t, res.Payouts, 2)
	assert.Equal(t, int64(833), res.Payouts[0].Amount, "1000*500/600 floored")
	assert.Equal(t, int64(166), res.Payouts[1].Amount, "1000*100/600 floored")

	assert.Equal(t, []transferCall{{"ted", 833}, {"tina", 166}}, treasury.disbursed)
	require.Len(t, journal.entries, 2)
	for _, entry := range journal.entries {
		assert.Equal(t, models.EntryKindBonus, entry.Kind)
		assert.Equal(t, models.EntryDirectionOut, entry.Direction)
		assert.Equal(t, models.Account("bob"), entry.CreatedBy)
	}
	assert.Equal(t, []events.Type{events.TypeTreasuryPayout, events.TypeTreasuryPayout, events.TypeBonusDistributed}, pub.types())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRatingServiceDistributeBonusBaselineSplit(t *testing.T) {
	repo := &ratingRepoMock{}
	courses := &courseRepoMock{details: map[int64]*models.CourseDetail{
		1: paidCourse(1000,
			models.CourseTeacher{CourseID: 1, Teacher: "ted", ShareBp: 6000},
			models.CourseTeacher{CourseID: 1, Teacher: "tina", ShareBp: 4000, Position: 1},
		),
	}}
	registry := &registryMock{roles: map[models.Account]models.Role{"bob": models.RoleBoard}}
	treasury := &treasuryMock{balance: 500}
	db, mock := newTxDB(t)
	mock.ExpectBegin()
	mock.ExpectCommit()
	svc := newRatingService(repo, courses, &enrollmentCheckMock{}, registry, treasury, &journalMock{}, db, clock.System{}, &publisherMock{})

	res, err := svc.DistributeBonus(context.Background(), "bob", 1, 500)

	require.NoError(t, err)
	assert.Equal(t, []transferCall{{"ted", 250}, {"tina", 250}}, treasury.disbursed, "no ratings yet, so the split is even")
	assert.Zero(t, res.Residue)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRatingServiceDistributeBonusForbidden(t *testing.T) {
	courses := &courseRepoMock{details: map[int64]*models.CourseDetail{
		1: paidCourse(1000, models.CourseTeacher{CourseID: 1, Teacher: "ted", ShareBp: 10000}),
	}}
	registry := &registryMock{roles: map[models.Account]models.Role{"ted": models.RoleTeacher}}
	db, _ := newTxDB(t)
	svc := newRatingService(&ratingRepoMock{}, courses, &enrollmentCheckMock{}, registry, &treasuryMock{balance: 1000}, &journalMock{}, db, clock.System{}, &publisherMock{})

	_, err := svc.DistributeBonus(context.Background(), "ted", 1, 100)

	requireCode(t, err, appErrors.ErrForbidden.Code)
}

func TestRatingServiceDistributeBonusZeroAmount(t *testing.T) {
	registry := &registryMock{roles: map[models.Account]models.Role{"bob": models.RoleBoard}}
	db, _ := newTxDB(t)
	svc := newRatingService(&ratingRepoMock{}, &courseRepoMock{}, &enrollmentCheckMock{}, registry, &treasuryMock{}, &journalMock{}, db, clock.System{}, &publisherMock{})

	_, err := svc.DistributeBonus(context.Background(), "bob", 1, 0)

	requireCode(t, err, appErrors.ErrZeroAmount.Code)
}

func TestRatingServiceDistributeBonusInsufficientTreasury(t *testing.T) {
	courses := &courseRepoMock{details: map[int64]*models.CourseDetail{
		1: paidCourse(1000, models.CourseTeacher{CourseID: 1, Teacher: "ted", ShareBp: 10000}),
	}}
	registry := &registryMock{roles: map[models.Account]models.Role{"bob": models.RoleBoard}}
	db, _ := newTxDB(t)
	svc := newRatingService(&ratingRepoMock{}, courses, &enrollmentCheckMock{}, registry, &treasuryMock{balance: 50}, &journalMock{}, db, clock.System{}, &publisherMock{})

	_, err := svc.DistributeBonus(context.Background(), "bob", 1, 500)

	requireCode(t, err, appErrors.ErrInsufficientTreasury.Code)
}
