package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/edu-collective-api/internal/models"
	"github.com/noah-isme/edu-collective-api/pkg/clock"
	appErrors "github.com/noah-isme/edu-collective-api/pkg/errors"
)

type memberStore interface {
	RoleOf(ctx context.Context, account models.Account) (models.Role, error)
	Find(ctx context.Context, account models.Account) (*models.Member, error)
	Members(ctx context.Context, role models.Role) ([]models.Account, error)
	List(ctx context.Context, filter models.MemberFilter) ([]models.Member, int, error)
	CountByRole(ctx context.Context) (map[models.Role]int, error)
	Grant(ctx context.Context, member *models.Member) error
	GrantTx(ctx context.Context, exec sqlx.ExtContext, member *models.Member) error
	ExistsAnyTx(ctx context.Context, exec sqlx.ExtContext, account models.Account) (bool, error)
}

// RegistryService answers role questions and performs the only two
// write paths into the member registry: startup board seeding and
// admission grants executed by the proposal engine.
type RegistryService struct {
	repo   memberStore
	clock  clock.Clock
	logger *zap.Logger
}

// NewRegistryService constructs a RegistryService.
func NewRegistryService(repo memberStore, clk clock.Clock, logger *zap.Logger) *RegistryService {
	if clk == nil {
		clk = clock.System{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RegistryService{repo: repo, clock: clk, logger: logger}
}

// RoleOf resolves the role an account currently holds. Unregistered
// accounts resolve to RoleNone.
func (s *RegistryService) RoleOf(ctx context.Context, account models.Account) (models.Role, error) {
	if account == models.ZeroAccount {
		return models.RoleNone, nil
	}
	role, err := s.repo.RoleOf(ctx, account)
	if err != nil {
		return models.RoleNone, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve role")
	}
	return role, nil
}

// Member returns one member record.
func (s *RegistryService) Member(ctx context.Context, account models.Account) (*models.Member, error) {
	member, err := s.repo.Find(ctx, account)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "member not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load member")
	}
	return member, nil
}

// Members returns the accounts holding a role, oldest grant first.
func (s *RegistryService) Members(ctx context.Context, role models.Role) ([]models.Account, error) {
	accounts, err := s.repo.Members(ctx, role)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list members")
	}
	return accounts, nil
}

// List returns members matching the filter with pagination metadata.
func (s *RegistryService) List(ctx context.Context, filter models.MemberFilter) ([]models.Member, *models.Pagination, error) {
	members, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list members")
	}
	pagination := buildPagination(filter.Page, filter.PageSize, total)
	return members, pagination, nil
}

// CountByRole aggregates member counts per role.
func (s *RegistryService) CountByRole(ctx context.Context) (map[models.Role]int, error) {
	counts, err := s.repo.CountByRole(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count members")
	}
	return counts, nil
}

// SeedBoard grants the Board role to the configured accounts at
// startup. Accounts already on the Board are skipped; an account
// holding a different role aborts the seed, since role exclusivity
// holds for seeds as much as for admissions.
func (s *RegistryService) SeedBoard(ctx context.Context, accounts []models.Account) error {
	for _, account := range accounts {
		if account == models.ZeroAccount {
			continue
		}
		role, err := s.repo.RoleOf(ctx, account)
		if err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve seed account role")
		}
		switch role {
		case models.RoleBoard:
			continue
		case models.RoleNone:
			member := &models.Member{Account: account, Role: models.RoleBoard, GrantedAt: s.clock.Now()}
			if err := s.repo.Grant(ctx, member); err != nil {
				return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to seed board member")
			}
			s.logger.Info("seeded board member", zap.String("account", string(account)))
		default:
			return appErrors.Clone(appErrors.ErrAlreadyInRole,
				fmt.Sprintf("seed account %s already holds %s", account, role))
		}
	}
	return nil
}

// HeldAnyTx reports whether the account holds any role, read inside
// the caller's transaction.
func (s *RegistryService) HeldAnyTx(ctx context.Context, exec sqlx.ExtContext, account models.Account) (bool, error) {
	held, err := s.repo.ExistsAnyTx(ctx, exec, account)
	if err != nil {
		return false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check registry membership")
	}
	return held, nil
}

// Admit grants role to account inside the caller's transaction,
// recording the proposal that admitted it. The registry holds at most
// one role per account, so admitting a current holder of any role
// fails AlreadyInRole.
func (s *RegistryService) Admit(ctx context.Context, exec sqlx.ExtContext, account models.Account, role models.Role, proposalID int64) error {
	held, err := s.repo.ExistsAnyTx(ctx, exec, account)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check registry membership")
	}
	if held {
		return appErrors.ErrAlreadyInRole
	}
	id := proposalID
	member := &models.Member{Account: account, Role: role, GrantedAt: s.clock.Now(), ProposalID: &id}
	if err := s.repo.GrantTx(ctx, exec, member); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to grant role")
	}
	return nil
}

// buildPagination assembles the envelope metadata using the same
// defaults the repositories apply to their queries.
func buildPagination(page, pageSize, total int) *models.Pagination {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}
	return &models.Pagination{Page: page, PageSize: pageSize, TotalCount: total}
}
