package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/edu-collective-api/internal/dto"
	"github.com/noah-isme/edu-collective-api/internal/events"
	"github.com/noah-isme/edu-collective-api/internal/models"
	"github.com/noah-isme/edu-collective-api/pkg/clock"
)

type courseRepoMock struct {
	details  map[int64]*models.CourseDetail
	created  *models.Course
	teachers []models.CourseTeacher
	removed  []int64
}

func (m *courseRepoMock) Create(ctx context.Context, course *models.Course, teachers []models.CourseTeacher) error {
	course.ID = 1
	m.created = course
	m.teachers = teachers
	return nil
}

func (m *courseRepoMock) FindDetail(ctx context.Context, id int64) (*models.CourseDetail, error) {
	if d, ok := m.details[id]; ok {
		copied := *d
		return &copied, nil
	}
	return nil, sql.ErrNoRows
}

func (m *courseRepoMock) FindByID(ctx context.Context, id int64) (*models.Course, error) {
	if d, ok := m.details[id]; ok {
		course := d.Course
		return &course, nil
	}
	return nil, sql.ErrNoRows
}

func (m *courseRepoMock) TeachersOf(ctx context.Context, courseID int64) ([]models.CourseTeacher, error) {
	if d, ok := m.details[courseID]; ok {
		return d.Teachers, nil
	}
	return nil, nil
}

func (m *courseRepoMock) List(ctx context.Context, filter models.CourseFilter) ([]models.CourseDetail, int, error) {
	var out []models.CourseDetail
	for _, d := range m.details {
		out = append(out, *d)
	}
	return out, len(out), nil
}

func (m *courseRepoMock) SoftRemove(ctx context.Context, id int64, at time.Time) (bool, error) {
	d, ok := m.details[id]
	if !ok || !d.Active {
		return false, nil
	}
	d.Active = false
	m.removed = append(m.removed, id)
	return true, nil
}

func newCourseService(repo *courseRepoMock, registry *registryMock, clk clock.Clock, pub *publisherMock) *CourseService {
	return NewCourseService(CourseServiceParams{
		Repo:     repo,
		Registry: registry,
		Events:   pub,
		Clock:    clk,
		Logger:   zap.NewNop(),
	})
}

func coursePrice(v int64) *int64 { return &v }

func TestCourseServiceCreate(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	repo := &courseRepoMock{}
	registry := &registryMock{roles: map[models.Account]models.Role{
		"ted": models.RoleTeacher, "tina": models.RoleTeacher,
	}}
	pub := &publisherMock{}
	svc := newCourseService(repo, registry, clock.NewFixed(now), pub)

	detail, err := svc.Create(context.Background(), "ted", dto.CreateCourseRequest{
		Title:    "Distributed Systems",
		Price:    coursePrice(500),
		Teachers: []string{"ted", "tina"},
		SharesBp: []int{6000, 4000},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), detail.ID)
	assert.Equal(t, int64(500), detail.Price)
	assert.True(t, detail.Active)
	assert.Equal(t, now, detail.CreatedAt)
	require.Len(t, detail.Teachers, 2)
	assert.Equal(t, models.Account("ted"), detail.Teachers[0].Teacher)
	assert.Equal(t, 6000, detail.Teachers[0].ShareBp)
	assert.Equal(t, 0, detail.Teachers[0].Position)
	assert.Equal(t, 1, detail.Teachers[1].Position)
	assert.Equal(t, []events.Type{events.TypeCourseCreated}, pub.types())
}

func TestCourseServiceCreateNotTeacher(t *testing.T) {
	registry := &registryMock{roles: map[models.Account]models.Role{"bea": models.RoleBoard}}
	svc := newCourseService(&courseRepoMock{}, registry, clock.NewFixed(time.Now()), &publisherMock{})

	_, err := svc.Create(context.Background(), "bea", dto.CreateCourseRequest{
		Title:    "Course",
		Price:    coursePrice(100),
		Teachers: []string{"bea"},
		SharesBp: []int{10000},
	})
	requireCode(t, err, "FORBIDDEN")
}

func TestCourseServiceCreateShareValidation(t *testing.T) {
	registry := &registryMock{roles: map[models.Account]models.Role{
		"ted": models.RoleTeacher, "tina": models.RoleTeacher,
	}}
	svc := newCourseService(&courseRepoMock{}, registry, clock.NewFixed(time.Now()), &publisherMock{})

	_, err := svc.Create(context.Background(), "ted", dto.CreateCourseRequest{
		Title: "Course", Price: coursePrice(100),
		Teachers: []string{"ted", "tina"}, SharesBp: []int{6000, 3000},
	})
	requireCode(t, err, "SHARES_MUST_SUM_TO_10000")

	_, err = svc.Create(context.Background(), "ted", dto.CreateCourseRequest{
		Title: "Course", Price: coursePrice(100),
		Teachers: []string{"ted", "ted"}, SharesBp: []int{5000, 5000},
	})
	requireCode(t, err, "DUPLICATE_TEACHER")

	_, err = svc.Create(context.Background(), "ted", dto.CreateCourseRequest{
		Title: "Course", Price: coursePrice(100),
		Teachers: []string{"ted", "tina"}, SharesBp: []int{10000},
	})
	requireCode(t, err, "LENGTH_MISMATCH")

	_, err = svc.Create(context.Background(), "ted", dto.CreateCourseRequest{
		Title: "Course", Price: coursePrice(100),
		Teachers: []string{}, SharesBp: []int{},
	})
	requireCode(t, err, "EMPTY_TEACHER_LIST")
}

func TestCourseServiceCreateUnregisteredTeacher(t *testing.T) {
	registry := &registryMock{roles: map[models.Account]models.Role{
		"ted": models.RoleTeacher, "sam": models.RoleStudent,
	}}
	svc := newCourseService(&courseRepoMock{}, registry, clock.NewFixed(time.Now()), &publisherMock{})

	_, err := svc.Create(context.Background(), "ted", dto.CreateCourseRequest{
		Title: "Course", Price: coursePrice(100),
		Teachers: []string{"ted", "sam"}, SharesBp: []int{5000, 5000},
	})
	requireCode(t, err, "UNREGISTERED_TEACHER")
}

func TestCourseServiceRemoveListedTeacher(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	repo := &courseRepoMock{details: map[int64]*models.CourseDetail{
		1: {
			Course:   models.Course{ID: 1, Title: "Course", Active: true},
			Teachers: []models.CourseTeacher{{CourseID: 1, Teacher: "ted", ShareBp: 10000}},
		},
	}}
	pub := &publisherMock{}
	svc := newCourseService(repo, &registryMock{}, clock.NewFixed(now), pub)

	err := svc.Remove(context.Background(), "ted", 1)
	require.NoError(t, err)
	assert.Equal(t, []int64{1}, repo.removed)
	assert.Equal(t, []events.Type{events.TypeCourseRemoved}, pub.types())
}

func TestCourseServiceRemoveByBoard(t *testing.T) {
	repo := &courseRepoMock{details: map[int64]*models.CourseDetail{
		1: {
			Course:   models.Course{ID: 1, Active: true},
			Teachers: []models.CourseTeacher{{CourseID: 1, Teacher: "ted", ShareBp: 10000}},
		},
	}}
	registry := &registryMock{roles: map[models.Account]models.Role{"bea": models.RoleBoard}}
	svc := newCourseService(repo, registry, clock.NewFixed(time.Now()), &publisherMock{})

	require.NoError(t, svc.Remove(context.Background(), "bea", 1))
	assert.Equal(t, []int64{1}, repo.removed)
}

func TestCourseServiceRemoveForbidden(t *testing.T) {
	repo := &courseRepoMock{details: map[int64]*models.CourseDetail{
		1: {
			Course:   models.Course{ID: 1, Active: true},
			Teachers: []models.CourseTeacher{{CourseID: 1, Teacher: "ted", ShareBp: 10000}},
		},
	}}
	registry := &registryMock{roles: map[models.Account]models.Role{"sam": models.RoleStudent}}
	svc := newCourseService(repo, registry, clock.NewFixed(time.Now()), &publisherMock{})

	err := svc.Remove(context.Background(), "sam", 1)
	requireCode(t, err, "FORBIDDEN")
	assert.Empty(t, repo.removed)
}

func TestCourseServiceRemoveAlreadyRemoved(t *testing.T) {
	repo := &courseRepoMock{details: map[int64]*models.CourseDetail{
		1: {Course: models.Course{ID: 1, Active: false}},
	}}
	svc := newCourseService(repo, &registryMock{}, clock.NewFixed(time.Now()), &publisherMock{})

	err := svc.Remove(context.Background(), "ted", 1)
	requireCode(t, err, "NOT_FOUND")
}

func TestCourseServiceGetNotFound(t *testing.T) {
	svc := newCourseService(&courseRepoMock{}, &registryMock{}, clock.NewFixed(time.Now()), &publisherMock{})

	_, err := svc.Get(context.Background(), 42)
	requireCode(t, err, "NOT_FOUND")
}
