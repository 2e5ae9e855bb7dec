package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/edu-collective-api/internal/dto"
	"github.com/noah-isme/edu-collective-api/internal/events"
	"github.com/noah-isme/edu-collective-api/internal/models"
	"github.com/noah-isme/edu-collective-api/pkg/clock"
	appErrors "github.com/noah-isme/edu-collective-api/pkg/errors"
)

type enrollmentRepository interface {
	Find(ctx context.Context, courseID int64, student models.Account) (*models.Enrollment, error)
	FindTx(ctx context.Context, exec sqlx.ExtContext, courseID int64, student models.Account) (*models.Enrollment, error)
	CreateOrReset(ctx context.Context, courseID int64, student models.Account, at time.Time) error
	InsertVote(ctx context.Context, exec sqlx.ExtContext, vote models.EnrollmentVote) (bool, error)
	IncrementTally(ctx context.Context, exec sqlx.ExtContext, courseID int64, student models.Account, support bool) error
	Decide(ctx context.Context, exec sqlx.ExtContext, courseID int64, student models.Account, accepted bool, at time.Time) error
	MarkEnrolled(ctx context.Context, exec sqlx.ExtContext, courseID int64, student models.Account, at time.Time) (bool, error)
	MarkCompleted(ctx context.Context, exec sqlx.ExtContext, courseID int64, student models.Account, at time.Time) (bool, error)
	Votes(ctx context.Context, courseID int64, student models.Account) ([]models.EnrollmentVote, error)
	List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, int, error)
}

type enrollmentCourseReader interface {
	FindByID(ctx context.Context, id int64) (*models.Course, error)
	TeachersOf(ctx context.Context, courseID int64) ([]models.CourseTeacher, error)
	FindDetail(ctx context.Context, id int64) (*models.CourseDetail, error)
}

type enrollmentRoleReader interface {
	RoleOf(ctx context.Context, account models.Account) (models.Role, error)
}

type enrollmentTreasury interface {
	Asset() string
	Balance(ctx context.Context) (int64, error)
	Collect(ctx context.Context, from models.Account, amount int64) error
	Disburse(ctx context.Context, to models.Account, amount int64) error
}

type enrollmentJournal interface {
	InsertTx(ctx context.Context, exec sqlx.ExtContext, entry *models.TreasuryEntry) error
}

// EnrollmentService walks a student's request through the teacher
// committee vote, the paid confirmation and the final completion
// payout.
type EnrollmentService struct {
	repo     enrollmentRepository
	courses  enrollmentCourseReader
	registry enrollmentRoleReader
	treasury enrollmentTreasury
	journal  enrollmentJournal
	db       txProvider
	events   eventPublisher
	metrics  *MetricsService
	clock    clock.Clock
	logger   *zap.Logger
	owner    models.Account
}

// EnrollmentServiceParams groups constructor dependencies.
type EnrollmentServiceParams struct {
	Repo     enrollmentRepository
	Courses  enrollmentCourseReader
	Registry enrollmentRoleReader
	Treasury enrollmentTreasury
	Journal  enrollmentJournal
	DB       txProvider
	Events   eventPublisher
	Metrics  *MetricsService
	Clock    clock.Clock
	Logger   *zap.Logger
	Owner    models.Account
}

// NewEnrollmentService constructs an EnrollmentService.
func NewEnrollmentService(params EnrollmentServiceParams) *EnrollmentService {
	if params.Clock == nil {
		params.Clock = clock.System{}
	}
	if params.Logger == nil {
		params.Logger = zap.NewNop()
	}
	return &EnrollmentService{
		repo:     params.Repo,
		courses:  params.Courses,
		registry: params.Registry,
		treasury: params.Treasury,
		journal:  params.Journal,
		db:       params.DB,
		events:   params.Events,
		metrics:  params.Metrics,
		clock:    params.Clock,
		logger:   params.Logger,
		owner:    params.Owner,
	}
}

// Apply opens an enrollment request on an active course. A student
// may re-apply only after an outright rejection; re-applying resets
// the tallies and clears the committee's earlier votes.
func (s *EnrollmentService) Apply(ctx context.Context, actor models.Account, courseID int64) (*models.Enrollment, error) {
	actorRole, err := s.registry.RoleOf(ctx, actor)
	if err != nil {
		return nil, err
	}
	if actorRole != models.RoleStudent {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only students may apply")
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

	existing, err := s.repo.Find(ctx, courseID, actor)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment request")
	}
	if existing != nil && (!existing.Decided || existing.Accepted) {
		return nil, appErrors.ErrAlreadyActive
	}

	if err := s.repo.CreateOrReset(ctx, courseID, actor, s.clock.Now()); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create enrollment request")
	}

	s.metrics.RecordEnrollmentApplied()
	publishEvent(ctx, s.events, s.metrics, events.New(events.TypeEnrollmentApplied, map[string]any{
		"course_id": courseID,
		"student":   actor,
	}))

	enrollment, err := s.repo.Find(ctx, courseID, actor)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reload enrollment request")
	}
	return enrollment, nil
}

// VoteOnApplication records one course teacher's ballot. The decision
// falls exactly once, in the transaction that lands the final vote:
// strict majority accepts, a tie rejects.
func (s *EnrollmentService) VoteOnApplication(ctx context.Context, actor models.Account, courseID int64, student models.Account, support bool) (result *models.Enrollment, err error) {
	if _, err = s.courses.FindByID(ctx, courseID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}
	teachers, err := s.courses.TeachersOf(ctx, courseID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course teachers")
	}
	listed := false
	for _, t := range teachers {
		if t.Teacher == actor {
			listed = true
			break
		}
	}
	if !listed {
		return nil, appErrors.ErrNotCourseTeacher
	}

	enrollment, err := s.repo.Find(ctx, courseID, student)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNoApplication
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment request")
	}
	if enrollment.Enrolled {
		return nil, appErrors.ErrAlreadyEnrolled
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

	inserted, voteErr := s.repo.InsertVote(ctx, tx, models.EnrollmentVote{
		CourseID: courseID,
		Student:  student,
		Teacher:  actor,
		Support:  support,
		VotedAt:  now,
	})
	if voteErr != nil {
		err = appErrors.Wrap(voteErr, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record vote")
		return nil, err
	}
	if !inserted {
		err = appErrors.ErrDuplicateVote
		return nil, err
	}
	if err = s.repo.IncrementTally(ctx, tx, courseID, student, support); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update tally")
		return nil, err
	}

	// The tally row lock serializes concurrent ballots, so only the
	// transaction landing the final vote sees the full count.
	fresh, freshErr := s.repo.FindTx(ctx, tx, courseID, student)
	if freshErr != nil {
		err = appErrors.Wrap(freshErr, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reload enrollment request")
		return nil, err
	}
	decidedNow := false
	accepted := false
	if !fresh.Decided && fresh.VotesFor+fresh.VotesAgainst == len(teachers) {
		accepted = fresh.VotesFor > fresh.VotesAgainst
		if err = s.repo.Decide(ctx, tx, courseID, student, accepted, now); err != nil {
			err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record decision")
			return nil, err
		}
		decidedNow = true
	}
	if err = tx.Commit(); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to commit vote")
		return nil, err
	}

	publishEvent(ctx, s.events, s.metrics, events.New(events.TypeEnrollmentVoteCast, map[string]any{
		"course_id": courseID,
		"student":   student,
		"teacher":   actor,
		"support":   support,
	}))
	if decidedNow {
		s.metrics.RecordEnrollmentDecided(accepted)
		publishEvent(ctx, s.events, s.metrics, events.New(events.TypeEnrollmentDecided, map[string]any{
			"course_id":     courseID,
			"student":       student,
			"accepted":      accepted,
			"votes_for":     fresh.VotesFor,
			"votes_against": fresh.VotesAgainst,
		}))
	}

	result, err = s.repo.Find(ctx, courseID, student)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reload enrollment request")
	}
	return result, nil
}

// Confirm settles an accepted request: the student's payment moves to
// the treasury and the enrollment becomes effective, atomically. A
// failed transfer leaves the request accepted and retryable.
func (s *EnrollmentService) Confirm(ctx context.Context, actor models.Account, courseID int64) (result *models.Enrollment, err error) {
	actorRole, err := s.registry.RoleOf(ctx, actor)
	if err != nil {
		return nil, err
	}
	if actorRole != models.RoleStudent {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only students may confirm enrollment")
	}

	course, err := s.courses.FindByID(ctx, courseID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}
	if course.Price == 0 {
		return nil, appErrors.ErrZeroPriceCourse
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

	enrollment, findErr := s.repo.FindTx(ctx, tx, courseID, actor)
	if findErr != nil {
		if errors.Is(findErr, sql.ErrNoRows) {
			err = appErrors.ErrNotPendingOrNotAccepted
			return nil, err
		}
		err = appErrors.Wrap(findErr, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment request")
		return nil, err
	}
	if enrollment.Enrolled || !enrollment.Decided || !enrollment.Accepted {
		err = appErrors.ErrNotPendingOrNotAccepted
		return nil, err
	}

	marked, markErr := s.repo.MarkEnrolled(ctx, tx, courseID, actor, now)
	if markErr != nil {
		err = appErrors.Wrap(markErr, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to mark enrollment")
		return nil, err
	}
	if !marked {
		err = appErrors.ErrNotPendingOrNotAccepted
		return nil, err
	}

	if err = s.journal.InsertTx(ctx, tx, &models.TreasuryEntry{
		Direction:    models.EntryDirectionIn,
		Kind:         models.EntryKindEnrollmentFee,
		Asset:        s.treasury.Asset(),
		Amount:       course.Price,
		Counterparty: actor,
		CourseID:     &courseID,
		CreatedBy:    actor,
		CreatedAt:    now,
	}); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to journal enrollment fee")
		return nil, err
	}

	// The transfer runs inside the transaction boundary: on failure
	// the rollback reverts the enrolled flag and the journal line.
	if err = s.treasury.Collect(ctx, actor, course.Price); err != nil {
		return nil, err
	}

	if err = tx.Commit(); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to commit enrollment")
		return nil, err
	}

	s.metrics.RecordEnrollmentConfirmed()
	publishEvent(ctx, s.events, s.metrics, events.New(events.TypeEnrollmentConfirmed, map[string]any{
		"course_id": courseID,
		"student":   actor,
		"amount":    course.Price,
	}))

	result, err = s.repo.Find(ctx, courseID, actor)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reload enrollment request")
	}
	return result, nil
}

// Complete closes a student's course and pays each listed teacher
// floor(price*share/10000) from the treasury. Rounding residue stays
// in the treasury.
func (s *EnrollmentService) Complete(ctx context.Context, actor models.Account, courseID int64, student models.Account) (result *dto.CompletionResponse, err error) {
	detail, err := s.courses.FindDetail(ctx, courseID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}

	listed := false
	for _, t := range detail.Teachers {
		if t.Teacher == actor {
			listed = true
			break
		}
	}
	if !listed && actor != s.owner {
		actorRole, roleErr := s.registry.RoleOf(ctx, actor)
		if roleErr != nil {
			return nil, roleErr
		}
		if actorRole != models.RoleBoard {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "only the board, the owner or a course teacher may complete")
		}
	}

	balance, err := s.treasury.Balance(ctx)
	if err != nil {
		return nil, err
	}
	if balance < detail.Price {
		return nil, appErrors.ErrInsufficientTreasury
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

	enrollment, findErr := s.repo.FindTx(ctx, tx, courseID, student)
	if findErr != nil {
		if errors.Is(findErr, sql.ErrNoRows) {
			err = appErrors.ErrStudentNotEnrolled
			return nil, err
		}
		err = appErrors.Wrap(findErr, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
		return nil, err
	}
	if !enrollment.Enrolled {
		err = appErrors.ErrStudentNotEnrolled
		return nil, err
	}
	if enrollment.Completed {
		err = appErrors.ErrAlreadyCompleted
		return nil, err
	}

	marked, markErr := s.repo.MarkCompleted(ctx, tx, courseID, student, now)
	if markErr != nil {
		err = appErrors.Wrap(markErr, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to mark completion")
		return nil, err
	}
	if !marked {
		err = appErrors.ErrAlreadyCompleted
		return nil, err
	}

	distributed := int64(0)
	payouts := make([]dto.PayoutRecord, 0, len(detail.Teachers))
	for _, t := range detail.Teachers {
		amount := detail.Price * int64(t.ShareBp) / shareScale
		if amount <= 0 {
			continue
		}
		if err = s.journal.InsertTx(ctx, tx, &models.TreasuryEntry{
			Direction:    models.EntryDirectionOut,
			Kind:         models.EntryKindCourseShare,
			Asset:        s.treasury.Asset(),
			Amount:       amount,
			Counterparty: t.Teacher,
			CourseID:     &courseID,
			CreatedBy:    actor,
			CreatedAt:    now,
		}); err != nil {
			err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to journal course share")
			return nil, err
		}
		if err = s.treasury.Disburse(ctx, t.Teacher, amount); err != nil {
			// Transfers already settled on the ledger stay settled;
			// the rollback only reverts local state. The reconcile
			// tool surfaces the resulting drift.
			s.logger.Error("share transfer failed mid-distribution",
				zap.Int64("course_id", courseID),
				zap.String("teacher", string(t.Teacher)),
				zap.Int64("amount", amount),
				zap.Int64("distributed_so_far", distributed),
				zap.Error(err))
			return nil, err
		}
		distributed += amount
		payouts = append(payouts, dto.PayoutRecord{To: t.Teacher, Amount: amount})
	}

	if err = tx.Commit(); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to commit completion")
		return nil, err
	}

	s.metrics.RecordCourseCompleted()
	for _, p := range payouts {
		s.metrics.RecordPayout(string(models.EntryKindCourseShare), p.Amount)
		publishEvent(ctx, s.events, s.metrics, events.New(events.TypeTreasuryPayout, map[string]any{
			"to":        p.To,
			"amount":    p.Amount,
			"kind":      models.EntryKindCourseShare,
			"course_id": courseID,
		}))
	}
	publishEvent(ctx, s.events, s.metrics, events.New(events.TypeCourseCompleted, map[string]any{
		"course_id":   courseID,
		"student":     student,
		"distributed": distributed,
		"residue":     detail.Price - distributed,
	}))

	return &dto.CompletionResponse{
		CourseID:    courseID,
		Student:     student,
		Distributed: distributed,
		Residue:     detail.Price - distributed,
		Payouts:     payouts,
	}, nil
}

// GetApplication returns one request with the committee votes cast so
// far.
func (s *EnrollmentService) GetApplication(ctx context.Context, courseID int64, student models.Account) (*dto.ApplicationResponse, error) {
	enrollment, err := s.repo.Find(ctx, courseID, student)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNoApplication
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment request")
	}
	votes, err := s.repo.Votes(ctx, courseID, student)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment votes")
	}
	return &dto.ApplicationResponse{Enrollment: *enrollment, Votes: votes}, nil
}

// List returns enrollment requests matching the filter.
func (s *EnrollmentService) List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, *models.Pagination, error) {
	enrollments, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list enrollments")
	}
	return enrollments, buildPagination(filter.Page, filter.PageSize, total), nil
}
