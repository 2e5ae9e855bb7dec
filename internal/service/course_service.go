package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/edu-collective-api/internal/dto"
	"github.com/noah-isme/edu-collective-api/internal/events"
	"github.com/noah-isme/edu-collective-api/internal/models"
	"github.com/noah-isme/edu-collective-api/pkg/clock"
	appErrors "github.com/noah-isme/edu-collective-api/pkg/errors"
)

type courseRepository interface {
	Create(ctx context.Context, course *models.Course, teachers []models.CourseTeacher) error
	FindDetail(ctx context.Context, id int64) (*models.CourseDetail, error)
	List(ctx context.Context, filter models.CourseFilter) ([]models.CourseDetail, int, error)
	SoftRemove(ctx context.Context, id int64, at time.Time) (bool, error)
}

type courseRoleReader interface {
	RoleOf(ctx context.Context, account models.Account) (models.Role, error)
}

// shareScale is the full share split in basis points.
const shareScale = 10000

// CourseService manages the paid course catalog. Shares are locked in
// at creation; removal is a soft delete that keeps the split intact.
type CourseService struct {
	repo      courseRepository
	registry  courseRoleReader
	cache     *CacheService
	events    eventPublisher
	metrics   *MetricsService
	validator *validator.Validate
	clock     clock.Clock
	logger    *zap.Logger
	cacheTTL  time.Duration
}

// CourseServiceParams groups constructor dependencies.
type CourseServiceParams struct {
	Repo      courseRepository
	Registry  courseRoleReader
	Cache     *CacheService
	Events    eventPublisher
	Metrics   *MetricsService
	Validator *validator.Validate
	Clock     clock.Clock
	Logger    *zap.Logger
	CacheTTL  time.Duration
}

// NewCourseService constructs a CourseService.
func NewCourseService(params CourseServiceParams) *CourseService {
	if params.Validator == nil {
		params.Validator = validator.New()
	}
	if params.Clock == nil {
		params.Clock = clock.System{}
	}
	if params.Logger == nil {
		params.Logger = zap.NewNop()
	}
	if params.CacheTTL <= 0 {
		params.CacheTTL = 30 * time.Second
	}
	return &CourseService{
		repo:      params.Repo,
		registry:  params.Registry,
		cache:     params.Cache,
		events:    params.Events,
		metrics:   params.Metrics,
		validator: params.Validator,
		clock:     params.Clock,
		logger:    params.Logger,
		cacheTTL:  params.CacheTTL,
	}
}

// Create publishes a course with its teacher share split.
func (s *CourseService) Create(ctx context.Context, actor models.Account, req dto.CreateCourseRequest) (*models.CourseDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid course payload")
	}

	actorRole, err := s.registry.RoleOf(ctx, actor)
	if err != nil {
		return nil, err
	}
	if actorRole != models.RoleTeacher {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only teachers may publish courses")
	}

	if len(req.Teachers) == 0 {
		return nil, appErrors.ErrEmptyTeacherList
	}
	if len(req.Teachers) != len(req.SharesBp) {
		return nil, appErrors.ErrLengthMismatch
	}

	seen := make(map[models.Account]bool, len(req.Teachers))
	sum := 0
	teachers := make([]models.CourseTeacher, 0, len(req.Teachers))
	for i, raw := range req.Teachers {
		teacher := models.Account(raw)
		if seen[teacher] {
			return nil, appErrors.Clone(appErrors.ErrDuplicateTeacher, fmt.Sprintf("teacher %s listed more than once", teacher))
		}
		seen[teacher] = true
		sum += req.SharesBp[i]
		teachers = append(teachers, models.CourseTeacher{
			Teacher:  teacher,
			ShareBp:  req.SharesBp[i],
			Position: i,
		})
	}
	if sum != shareScale {
		return nil, appErrors.ErrSharesSum
	}
	for _, t := range teachers {
		role, err := s.registry.RoleOf(ctx, t.Teacher)
		if err != nil {
			return nil, err
		}
		if role != models.RoleTeacher {
			return nil, appErrors.Clone(appErrors.ErrUnregisteredTeacher,
				fmt.Sprintf("%s does not hold the teacher role", t.Teacher))
		}
	}

	course := &models.Course{
		Title:     req.Title,
		Price:     *req.Price,
		Active:    true,
		CreatedBy: actor,
		CreatedAt: s.clock.Now(),
	}
	if err := s.repo.Create(ctx, course, teachers); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create course")
	}
	s.invalidateListings(ctx)

	accounts := make([]models.Account, len(teachers))
	for i, t := range teachers {
		accounts[i] = t.Teacher
	}
	publishEvent(ctx, s.events, s.metrics, events.New(events.TypeCourseCreated, map[string]any{
		"course_id": course.ID,
		"title":     course.Title,
		"price":     course.Price,
		"teachers":  accounts,
	}))

	for i := range teachers {
		teachers[i].CourseID = course.ID
	}
	return &models.CourseDetail{Course: *course, Teachers: teachers}, nil
}

// Get returns one course with its share split. Removed courses stay
// fetchable with their removed flag.
func (s *CourseService) Get(ctx context.Context, id int64) (*models.CourseDetail, error) {
	detail, err := s.repo.FindDetail(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}
	return detail, nil
}

type courseListing struct {
	Items []models.CourseDetail `json:"items"`
	Total int                   `json:"total"`
}

// List returns courses matching the filter. A nil Active filter lists
// removed courses alongside live ones.
func (s *CourseService) List(ctx context.Context, filter models.CourseFilter) ([]models.CourseDetail, *models.Pagination, error) {
	activeKey := "all"
	if filter.Active != nil {
		activeKey = strconv.FormatBool(*filter.Active)
	}
	cacheKey := fmt.Sprintf("courses:list:%s:%s:%s:%d:%d:%s:%s",
		filter.Teacher, activeKey, filter.Search, filter.Page, filter.PageSize, filter.SortBy, filter.SortOrder)
	if listing, hit, err := s.tryListingCache(ctx, cacheKey); err != nil {
		return nil, nil, err
	} else if hit {
		return listing.Items, buildPagination(filter.Page, filter.PageSize, listing.Total), nil
	}

	courses, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list courses")
	}
	s.persistListingCache(ctx, cacheKey, courseListing{Items: courses, Total: total})
	return courses, buildPagination(filter.Page, filter.PageSize, total), nil
}

// Remove soft deletes a course. Only a listed teacher or a Board
// member may remove it.
func (s *CourseService) Remove(ctx context.Context, actor models.Account, id int64) error {
	detail, err := s.repo.FindDetail(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}
	if !detail.Active {
		return appErrors.Clone(appErrors.ErrNotFound, "course already removed")
	}

	listed := false
	for _, t := range detail.Teachers {
		if t.Teacher == actor {
			listed = true
			break
		}
	}
	if !listed {
		actorRole, err := s.registry.RoleOf(ctx, actor)
		if err != nil {
			return err
		}
		if actorRole != models.RoleBoard {
			return appErrors.Clone(appErrors.ErrForbidden, "only a listed teacher or the board may remove a course")
		}
	}

	removed, err := s.repo.SoftRemove(ctx, id, s.clock.Now())
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to remove course")
	}
	if !removed {
		return appErrors.Clone(appErrors.ErrNotFound, "course already removed")
	}
	s.invalidateListings(ctx)

	publishEvent(ctx, s.events, s.metrics, events.New(events.TypeCourseRemoved, map[string]any{
		"course_id":  id,
		"removed_by": actor,
	}))
	return nil
}

func (s *CourseService) tryListingCache(ctx context.Context, key string) (*courseListing, bool, error) {
	if s.cache == nil {
		return nil, false, nil
	}
	var cached courseListing
	hit, err := s.cache.Get(ctx, key, &cached)
	if err != nil {
		return nil, false, err
	}
	if hit {
		return &cached, true, nil
	}
	return nil, false, nil
}

func (s *CourseService) persistListingCache(ctx context.Context, key string, value courseListing) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Set(ctx, key, value, s.cacheTTL); err != nil {
		s.logger.Warn("course listing cache write failed", zap.String("key", key), zap.Error(err))
	}
}

func (s *CourseService) invalidateListings(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, "courses:list:*"); err != nil {
		s.logger.Warn("course listing cache invalidation failed", zap.Error(err))
	}
}
