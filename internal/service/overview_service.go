package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/edu-collective-api/internal/models"
	"github.com/noah-isme/edu-collective-api/pkg/clock"
	appErrors "github.com/noah-isme/edu-collective-api/pkg/errors"
)

type overviewMemberCounter interface {
	CountByRole(ctx context.Context) (map[models.Role]int, error)
}

type overviewProposalCounter interface {
	CountActive(ctx context.Context, now time.Time) (int, error)
}

type overviewCourseCounter interface {
	CountActive(ctx context.Context) (int, error)
}

type overviewEnrollmentCounter interface {
	CountStates(ctx context.Context) (open, enrolled, completed int, err error)
}

type overviewTreasury interface {
	Asset() string
	Balance(ctx context.Context) (int64, error)
}

const overviewCacheKey = "overview:snapshot"

// OverviewService aggregates membership, catalog, enrollment and
// treasury figures into one cached snapshot.
type OverviewService struct {
	members     overviewMemberCounter
	proposals   overviewProposalCounter
	courses     overviewCourseCounter
	enrollments overviewEnrollmentCounter
	treasury    overviewTreasury
	cache       *CacheService
	metrics     *MetricsService
	clock       clock.Clock
	logger      *zap.Logger
	cacheTTL    time.Duration
}

// OverviewServiceParams groups constructor dependencies.
type OverviewServiceParams struct {
	Members     overviewMemberCounter
	Proposals   overviewProposalCounter
	Courses     overviewCourseCounter
	Enrollments overviewEnrollmentCounter
	Treasury    overviewTreasury
	Cache       *CacheService
	Metrics     *MetricsService
	Clock       clock.Clock
	Logger      *zap.Logger
	CacheTTL    time.Duration
}

// NewOverviewService constructs an OverviewService.
func NewOverviewService(params OverviewServiceParams) *OverviewService {
	if params.Clock == nil {
		params.Clock = clock.System{}
	}
	if params.Logger == nil {
		params.Logger = zap.NewNop()
	}
	if params.CacheTTL <= 0 {
		params.CacheTTL = 5 * time.Minute
	}
	return &OverviewService{
		members:     params.Members,
		proposals:   params.Proposals,
		courses:     params.Courses,
		enrollments: params.Enrollments,
		treasury:    params.Treasury,
		cache:       params.Cache,
		metrics:     params.Metrics,
		clock:       params.Clock,
		logger:      params.Logger,
		cacheTTL:    params.CacheTTL,
	}
}

// Snapshot returns the organization overview, refreshed when the
// cached copy has expired. The boolean reports whether the cache
// served the snapshot.
func (s *OverviewService) Snapshot(ctx context.Context) (*models.OverviewSnapshot, bool, error) {
	cached, found, err := s.trySnapshotCache(ctx)
	if err != nil {
		return nil, false, err
	}
	if found {
		return cached, true, nil
	}

	start := time.Now()
	roleCounts, err := s.members.CountByRole(ctx)
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count members")
	}
	activeProposals, err := s.proposals.CountActive(ctx, s.clock.Now())
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count proposals")
	}
	activeCourses, err := s.courses.CountActive(ctx)
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count courses")
	}
	open, enrolled, completed, err := s.enrollments.CountStates(ctx)
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count enrollments")
	}
	s.metrics.ObserveDBQuery("overview_counts", time.Since(start))

	balance, err := s.treasury.Balance(ctx)
	if err != nil {
		return nil, false, err
	}

	snapshot := &models.OverviewSnapshot{
		Counts: models.OverviewCounts{
			BoardMembers:    roleCounts[models.RoleBoard],
			Teachers:        roleCounts[models.RoleTeacher],
			Students:        roleCounts[models.RoleStudent],
			ActiveCourses:   activeCourses,
			ActiveProposals: activeProposals,
			OpenRequests:    open,
			Enrollments:     enrolled,
			Completions:     completed,
		},
		TreasuryBalance: balance,
		TreasuryAsset:   s.treasury.Asset(),
		GeneratedAt:     s.clock.Now(),
	}
	s.persistSnapshotCache(ctx, snapshot)
	return snapshot, false, nil
}

func (s *OverviewService) trySnapshotCache(ctx context.Context) (*models.OverviewSnapshot, bool, error) {
	if !s.cache.Enabled() {
		return nil, false, nil
	}
	var snapshot models.OverviewSnapshot
	found, err := s.cache.Get(ctx, overviewCacheKey, &snapshot)
	if err != nil {
		return nil, false, err
	}
	if !found {
		return nil, false, nil
	}
	return &snapshot, true, nil
}

func (s *OverviewService) persistSnapshotCache(ctx context.Context, snapshot *models.OverviewSnapshot) {
	if !s.cache.Enabled() {
		return
	}
	if err := s.cache.Set(ctx, overviewCacheKey, snapshot, s.cacheTTL); err != nil {
		s.logger.Warn("failed to cache overview snapshot", zap.Error(err))
	}
}
