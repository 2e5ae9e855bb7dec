package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/edu-collective-api/internal/dto"
	"github.com/noah-isme/edu-collective-api/internal/events"
	"github.com/noah-isme/edu-collective-api/internal/models"
	"github.com/noah-isme/edu-collective-api/pkg/clock"
	appErrors "github.com/noah-isme/edu-collective-api/pkg/errors"
)

type txProvider interface {
	BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error)
}

type eventPublisher interface {
	Publish(ctx context.Context, event events.Event) error
}

type proposalRepository interface {
	Create(ctx context.Context, proposal *models.Proposal) error
	FindByID(ctx context.Context, id int64) (*models.Proposal, error)
	FindByIDTx(ctx context.Context, exec sqlx.ExtContext, id int64) (*models.Proposal, error)
	ExistsActive(ctx context.Context, candidate models.Account, now time.Time) (bool, error)
	List(ctx context.Context, filter models.ProposalFilter) ([]models.Proposal, int, error)
	Votes(ctx context.Context, proposalID int64) ([]models.ProposalVote, error)
	InsertVote(ctx context.Context, exec sqlx.ExtContext, vote models.ProposalVote) (bool, error)
	IncrementTally(ctx context.Context, exec sqlx.ExtContext, id int64, support bool) error
	MarkExecuted(ctx context.Context, exec sqlx.ExtContext, id int64, passed bool, at time.Time) (bool, error)
}

type proposalRegistry interface {
	RoleOf(ctx context.Context, account models.Account) (models.Role, error)
	HeldAnyTx(ctx context.Context, exec sqlx.ExtContext, account models.Account) (bool, error)
	Admit(ctx context.Context, exec sqlx.ExtContext, account models.Account, role models.Role, proposalID int64) error
}

type proposalDurationReader interface {
	ProposalDuration(ctx context.Context) time.Duration
}

// ProposalService runs the admission vote lifecycle: create within a
// voting window, collect cross-role votes, execute once after close.
type ProposalService struct {
	repo      proposalRepository
	registry  proposalRegistry
	durations proposalDurationReader
	db        txProvider
	events    eventPublisher
	metrics   *MetricsService
	clock     clock.Clock
	logger    *zap.Logger
}

// ProposalServiceParams groups constructor dependencies.
type ProposalServiceParams struct {
	Repo      proposalRepository
	Registry  proposalRegistry
	Durations proposalDurationReader
	DB        txProvider
	Events    eventPublisher
	Metrics   *MetricsService
	Clock     clock.Clock
	Logger    *zap.Logger
}

// NewProposalService constructs a ProposalService.
func NewProposalService(params ProposalServiceParams) *ProposalService {
	if params.Clock == nil {
		params.Clock = clock.System{}
	}
	if params.Logger == nil {
		params.Logger = zap.NewNop()
	}
	return &ProposalService{
		repo:      params.Repo,
		registry:  params.Registry,
		durations: params.Durations,
		db:        params.DB,
		events:    params.Events,
		metrics:   params.Metrics,
		clock:     params.Clock,
		logger:    params.Logger,
	}
}

// Create opens an admission proposal for a candidate. Any registered
// caller may propose; the voting window starts immediately and spans
// the configured proposal duration.
func (s *ProposalService) Create(ctx context.Context, actor models.Account, req dto.CreateProposalRequest) (*models.Proposal, error) {
	candidate := models.Account(strings.TrimSpace(req.Candidate))
	if candidate == models.ZeroAccount {
		return nil, appErrors.ErrInvalidCandidate
	}
	role, ok := models.ParseRole(req.Role)
	if !ok {
		return nil, appErrors.ErrInvalidRole
	}

	candidateRole, err := s.registry.RoleOf(ctx, candidate)
	if err != nil {
		return nil, err
	}
	if candidateRole != models.RoleNone {
		return nil, appErrors.ErrAlreadyHasRole
	}

	now := s.clock.Now()
	active, err := s.repo.ExistsActive(ctx, candidate, now)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check active proposals")
	}
	if active {
		return nil, appErrors.ErrDuplicateActiveProposal
	}

	proposal := &models.Proposal{
		Candidate: candidate,
		RoleToAdd: role,
		StartAt:   now,
		EndAt:     now.Add(s.durations.ProposalDuration(ctx)),
		CreatedBy: actor,
		CreatedAt: now,
	}
	if err := s.repo.Create(ctx, proposal); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create proposal")
	}

	s.metrics.RecordProposalCreated()
	publishEvent(ctx, s.events, s.metrics, events.New(events.TypeProposalCreated, map[string]any{
		"proposal_id": proposal.ID,
		"candidate":   proposal.Candidate,
		"role":        proposal.RoleToAdd,
		"start_at":    proposal.StartAt,
		"end_at":      proposal.EndAt,
		"created_by":  actor,
	}))

	return proposal, nil
}

// Vote records one ballot. Eligibility follows the admission chain:
// Students vote on Board candidates, Teachers on Students, Board on
// Teachers.
func (s *ProposalService) Vote(ctx context.Context, actor models.Account, id int64, support bool) (proposal *models.Proposal, err error) {
	proposal, err = s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "proposal not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load proposal")
	}

	now := s.clock.Now()
	if now.Before(proposal.StartAt) || now.After(proposal.EndAt) {
		return nil, appErrors.ErrVotingClosed
	}

	voterRole, err := s.registry.RoleOf(ctx, actor)
	if err != nil {
		return nil, err
	}
	if voterRole != models.ElectorateFor(proposal.RoleToAdd) {
		return nil, appErrors.ErrNotInElectorate
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to begin transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	inserted, voteErr := s.repo.InsertVote(ctx, tx, models.ProposalVote{
		ProposalID: id,
		Voter:      actor,
		Support:    support,
		VotedAt:    now,
	})
	if voteErr != nil {
		err = appErrors.Wrap(voteErr, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record vote")
		return nil, err
	}
	if !inserted {
		err = appErrors.ErrDuplicateVote
		return nil, err
	}
	if err = s.repo.IncrementTally(ctx, tx, id, support); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update tally")
		return nil, err
	}
	if err = tx.Commit(); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to commit vote")
		return nil, err
	}

	s.metrics.RecordProposalVote()
	publishEvent(ctx, s.events, s.metrics, events.New(events.TypeProposalVoteCast, map[string]any{
		"proposal_id": id,
		"voter":       actor,
		"support":     support,
	}))

	proposal, err = s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reload proposal")
	}
	return proposal, nil
}

// Execute finalizes a proposal once its window has elapsed. A passing
// proposal grants the role in the same transaction; the proposal is
// marked executed either way so the candidate is freed for future
// proposals. A candidate who gained a role since the vote keeps it:
// the execution then completes without granting.
func (s *ProposalService) Execute(ctx context.Context, actor models.Account, id int64) (result *dto.ExecutionResponse, err error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to begin transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	proposal, findErr := s.repo.FindByIDTx(ctx, tx, id)
	if findErr != nil {
		if errors.Is(findErr, sql.ErrNoRows) {
			err = appErrors.Clone(appErrors.ErrNotFound, "proposal not found")
			return nil, err
		}
		err = appErrors.Wrap(findErr, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load proposal")
		return nil, err
	}
	if proposal.Executed {
		err = appErrors.ErrAlreadyExecuted
		return nil, err
	}
	now := s.clock.Now()
	if !now.After(proposal.EndAt) {
		err = appErrors.ErrVotingStillOpen
		return nil, err
	}

	passed := proposal.VotesFor > proposal.VotesAgainst && proposal.VotesFor+proposal.VotesAgainst > 0

	marked, markErr := s.repo.MarkExecuted(ctx, tx, id, passed, now)
	if markErr != nil {
		err = appErrors.Wrap(markErr, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to mark proposal executed")
		return nil, err
	}
	if !marked {
		err = appErrors.ErrAlreadyExecuted
		return nil, err
	}

	granted := false
	if passed {
		held, heldErr := s.registry.HeldAnyTx(ctx, tx, proposal.Candidate)
		if heldErr != nil {
			err = heldErr
			return nil, err
		}
		if held {
			s.logger.Warn("candidate gained a role before execution, grant skipped",
				zap.Int64("proposal_id", id),
				zap.String("candidate", string(proposal.Candidate)))
		} else {
			if err = s.registry.Admit(ctx, tx, proposal.Candidate, proposal.RoleToAdd, id); err != nil {
				return nil, err
			}
			granted = true
		}
	}

	if err = tx.Commit(); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to commit execution")
		return nil, err
	}

	s.metrics.RecordProposalExecuted(passed)
	publishEvent(ctx, s.events, s.metrics, events.New(events.TypeProposalExecuted, map[string]any{
		"proposal_id": id,
		"candidate":   proposal.Candidate,
		"role":        proposal.RoleToAdd,
		"passed":      passed,
		"granted":     granted,
		"executed_by": actor,
	}))

	return &dto.ExecutionResponse{ProposalID: id, Passed: passed, Granted: granted, ExecutedAt: now}, nil
}

// Get returns a proposal with its cast votes.
func (s *ProposalService) Get(ctx context.Context, id int64) (*dto.ProposalDetailResponse, error) {
	proposal, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "proposal not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load proposal")
	}
	votes, err := s.repo.Votes(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load proposal votes")
	}
	return &dto.ProposalDetailResponse{Proposal: *proposal, Votes: votes}, nil
}

// List returns proposals matching the filter.
func (s *ProposalService) List(ctx context.Context, filter models.ProposalFilter) ([]models.Proposal, *models.Pagination, error) {
	proposals, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list proposals")
	}
	return proposals, buildPagination(filter.Page, filter.PageSize, total), nil
}

// publishEvent emits an event without letting stream trouble surface
// to the caller: the state change has already committed.
func publishEvent(ctx context.Context, pub eventPublisher, metrics *MetricsService, event events.Event) {
	if pub == nil {
		return
	}
	if err := pub.Publish(ctx, event); err != nil {
		metrics.RecordEventPublishFailure()
	}
}
