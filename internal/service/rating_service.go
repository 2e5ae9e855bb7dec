package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/edu-collective-api/internal/dto"
	"github.com/noah-isme/edu-collective-api/internal/events"
	"github.com/noah-isme/edu-collective-api/internal/models"
	"github.com/noah-isme/edu-collective-api/pkg/clock"
	appErrors "github.com/noah-isme/edu-collective-api/pkg/errors"
)

type ratingRepository interface {
	Upsert(ctx context.Context, rating models.Rating) (int, error)
	ListByCourse(ctx context.Context, courseID int64, student models.Account) ([]models.Rating, error)
	StatsOf(ctx context.Context, teacher models.Account) (*models.TeacherRatingStats, error)
	StatsFor(ctx context.Context, teachers []models.Account) (map[models.Account]models.TeacherRatingStats, error)
}

type ratingCourseReader interface {
	FindByID(ctx context.Context, id int64) (*models.Course, error)
	TeachersOf(ctx context.Context, courseID int64) ([]models.CourseTeacher, error)
	FindDetail(ctx context.Context, id int64) (*models.CourseDetail, error)
}

type ratingEnrollmentChecker interface {
	IsEnrolled(ctx context.Context, courseID int64, student models.Account) (bool, error)
}

type ratingRoleReader interface {
	RoleOf(ctx context.Context, account models.Account) (models.Role, error)
}

type ratingTreasury interface {
	Asset() string
	Balance(ctx context.Context) (int64, error)
	Disburse(ctx context.Context, to models.Account, amount int64) error
}

type ratingJournal interface {
	InsertTx(ctx context.Context, exec sqlx.ExtContext, entry *models.TreasuryEntry) error
}

// RatingService records student scores and pays the rating-weighted
// bonus. Scores feed a per-teacher running aggregate; the bonus splits
// an amount across a course's teachers proportional to their weight.
type RatingService struct {
	repo        ratingRepository
	courses     ratingCourseReader
	enrollments ratingEnrollmentChecker
	registry    ratingRoleReader
	treasury    ratingTreasury
	journal     ratingJournal
	db          txProvider
	events      eventPublisher
	metrics     *MetricsService
	validator   *validator.Validate
	clock       clock.Clock
	logger      *zap.Logger
}

// RatingServiceParams groups constructor dependencies.
type RatingServiceParams struct {
	Repo        ratingRepository
	Courses     ratingCourseReader
	Enrollments ratingEnrollmentChecker
	Registry    ratingRoleReader
	Treasury    ratingTreasury
	Journal     ratingJournal
	DB          txProvider
	Events      eventPublisher
	Metrics     *MetricsService
	Validator   *validator.Validate
	Clock       clock.Clock
	Logger      *zap.Logger
}

// NewRatingService constructs a RatingService.
func NewRatingService(params RatingServiceParams) *RatingService {
	if params.Validator == nil {
		params.Validator = validator.New()
	}
	if params.Clock == nil {
		params.Clock = clock.System{}
	}
	if params.Logger == nil {
		params.Logger = zap.NewNop()
	}
	return &RatingService{
		repo:        params.Repo,
		courses:     params.Courses,
		enrollments: params.Enrollments,
		registry:    params.Registry,
		treasury:    params.Treasury,
		journal:     params.Journal,
		db:          params.DB,
		events:      params.Events,
		metrics:     params.Metrics,
		validator:   params.Validator,
		clock:       params.Clock,
		logger:      params.Logger,
	}
}

// Rate stores an enrolled student's 1..5 score for one course teacher.
// Re-rating replaces the earlier value and moves the teacher's running
// total by the delta.
func (s *RatingService) Rate(ctx context.Context, actor models.Account, courseID int64, req dto.RateRequest) (*models.Rating, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid rating payload")
	}
	if req.Value < 1 || req.Value > 5 {
		return nil, appErrors.ErrInvalidRatingValue
	}

	actorRole, err := s.registry.RoleOf(ctx, actor)
	if err != nil {
		return nil, err
	}
	if actorRole != models.RoleStudent {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only students may rate")
	}

	course, err := s.courses.FindByID(ctx, courseID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}
	if !course.Active {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
	}

	enrolled, err := s.enrollments.IsEnrolled(ctx, courseID, actor)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check enrollment")
	}
	if !enrolled {
		return nil, appErrors.ErrStudentNotEnrolled
	}

	teacher := models.Account(req.Teacher)
	teachers, err := s.courses.TeachersOf(ctx, courseID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course teachers")
	}
	listed := false
	for _, t := range teachers {
		if t.Teacher == teacher {
			listed = true
			break
		}
	}
	if !listed {
		return nil, appErrors.ErrTeacherNotInCourse
	}

	rating := models.Rating{
		CourseID: courseID,
		Student:  actor,
		Teacher:  teacher,
		Value:    req.Value,
		RatedAt:  s.clock.Now(),
	}
	previous, err := s.repo.Upsert(ctx, rating)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store rating")
	}

	publishEvent(ctx, s.events, s.metrics, events.New(events.TypeRatingGiven, map[string]any{
		"course_id": courseID,
		"student":   actor,
		"teacher":   teacher,
		"value":     req.Value,
		"previous":  previous,
	}))
	return &rating, nil
}

// CourseRatings lists the scores submitted on a course, optionally
// narrowed to one student.
func (s *RatingService) CourseRatings(ctx context.Context, courseID int64, student models.Account) ([]models.Rating, error) {
	if _, err := s.courses.FindByID(ctx, courseID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}
	ratings, err := s.repo.ListByCourse(ctx, courseID, student)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list ratings")
	}
	return ratings, nil
}

// TeacherStats returns one teacher's aggregate. Unrated teachers get a
// zero aggregate with the baseline weight.
func (s *RatingService) TeacherStats(ctx context.Context, teacher models.Account) (*dto.TeacherRatingResponse, error) {
	stats, err := s.repo.StatsOf(ctx, teacher)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load rating stats")
	}
	resp := &dto.TeacherRatingResponse{
		Teacher: string(stats.Teacher),
		Total:   stats.Total,
		Count:   stats.Count,
		Weight:  stats.Weight(),
	}
	if stats.Count > 0 {
		resp.AverageBp = stats.Total * 100 / stats.Count
	}
	return resp, nil
}

// DistributeBonus splits an amount across a course's teachers in
// proportion to their rating weight, floor division per teacher.
// Unrated teachers carry the baseline weight of 100 so nobody is shut
// out; the rounding residue stays in the treasury.
func (s *RatingService) DistributeBonus(ctx context.Context, actor models.Account, courseID int64, amount int64) (result *dto.BonusResponse, err error) {
	actorRole, err := s.registry.RoleOf(ctx, actor)
	if err != nil {
		return nil, err
	}
	if actorRole != models.RoleBoard {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only the board may distribute bonuses")
	}
	if amount <= 0 {
		return nil, appErrors.ErrZeroAmount
	}

	detail, err := s.courses.FindDetail(ctx, courseID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}

	balance, err := s.treasury.Balance(ctx)
	if err != nil {
		return nil, err
	}
	if balance < amount {
		return nil, appErrors.ErrInsufficientTreasury
	}

	accounts := make([]models.Account, len(detail.Teachers))
	for i, t := range detail.Teachers {
		accounts[i] = t.Teacher
	}
	stats, err := s.repo.StatsFor(ctx, accounts)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load rating stats")
	}

	// Map misses yield a zero aggregate whose weight is the baseline.
	weights := make([]int64, len(accounts))
	totalWeight := int64(0)
	for i, account := range accounts {
		stat := stats[account]
		stat.Teacher = account
		weights[i] = stat.Weight()
		totalWeight += weights[i]
	}
	if totalWeight == 0 {
		return nil, appErrors.ErrNoWeight
	}

	now := s.clock.Now()
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to begin transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	distributed := int64(0)
	payouts := make([]dto.PayoutRecord, 0, len(accounts))
	for i, account := range accounts {
		share := amount * weights[i] / totalWeight
		if share <= 0 {
			continue
		}
		if err = s.journal.InsertTx(ctx, tx, &models.TreasuryEntry{
			Direction:    models.EntryDirectionOut,
			Kind:         models.EntryKindBonus,
			Asset:        s.treasury.Asset(),
			Amount:       share,
			Counterparty: account,
			CourseID:     &courseID,
			CreatedBy:    actor,
			CreatedAt:    now,
		}); err != nil {
			err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to journal bonus")
			return nil, err
		}
		if err = s.treasury.Disburse(ctx, account, share); err != nil {
			s.logger.Error("bonus transfer failed mid-distribution",
				zap.Int64("course_id", courseID),
				zap.String("teacher", string(account)),
				zap.Int64("amount", share),
				zap.Int64("distributed_so_far", distributed),
				zap.Error(err))
			return nil, err
		}
		distributed += share
		payouts = append(payouts, dto.PayoutRecord{To: account, Amount: share})
	}

	if err = tx.Commit(); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to commit bonus distribution")
		return nil, err
	}

	for _, p := range payouts {
		s.metrics.RecordPayout(string(models.EntryKindBonus), p.Amount)
		publishEvent(ctx, s.events, s.metrics, events.New(events.TypeTreasuryPayout, map[string]any{
			"to":        p.To,
			"amount":    p.Amount,
			"kind":      models.EntryKindBonus,
			"course_id": courseID,
		}))
	}
	publishEvent(ctx, s.events, s.metrics, events.New(events.TypeBonusDistributed, map[string]any{
		"course_id":   courseID,
		"amount":      amount,
		"distributed": distributed,
		"residue":     amount - distributed,
	}))

	return &dto.BonusResponse{
		CourseID:    courseID,
		Amount:      amount,
		Distributed: distributed,
		Residue:     amount - distributed,
		Payouts:     payouts,
	}, nil
}
