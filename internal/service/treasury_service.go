package service

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/edu-collective-api/internal/dto"
	"github.com/noah-isme/edu-collective-api/internal/events"
	"github.com/noah-isme/edu-collective-api/internal/models"
	"github.com/noah-isme/edu-collective-api/pkg/clock"
	appErrors "github.com/noah-isme/edu-collective-api/pkg/errors"
)

type settlementLedger interface {
	Asset() string
	BalanceOf(ctx context.Context, account models.Account) (int64, error)
	Transfer(ctx context.Context, from, to models.Account, amount int64) error
	TransferAsset(ctx context.Context, asset string, from, to models.Account, amount int64) error
	TransferFrom(ctx context.Context, payer, recipient models.Account, amount int64) error
}

type treasuryJournal interface {
	Insert(ctx context.Context, entry *models.TreasuryEntry) error
	InsertTx(ctx context.Context, exec sqlx.ExtContext, entry *models.TreasuryEntry) error
	Totals(ctx context.Context) (map[models.EntryDirection]int64, error)
	List(ctx context.Context, filter models.TreasuryEntryFilter) ([]models.TreasuryEntry, int, error)
}

type treasuryRoleReader interface {
	RoleOf(ctx context.Context, account models.Account) (models.Role, error)
}

const treasuryOverviewCacheKey = "treasury:overview"

// TreasuryService is the one place that talks to the settlement
// ledger on behalf of the organization's treasury account. Balance
// reads on mutation paths always hit the ledger; only the overview
// is cached.
type TreasuryService struct {
	ledger   settlementLedger
	journal  treasuryJournal
	registry treasuryRoleReader
	cache    *CacheService
	db       txProvider
	events   eventPublisher
	metrics  *MetricsService
	clock    clock.Clock
	logger   *zap.Logger
	account  models.Account
	cacheTTL time.Duration
}

// TreasuryServiceParams groups constructor dependencies.
type TreasuryServiceParams struct {
	Ledger   settlementLedger
	Journal  treasuryJournal
	Registry treasuryRoleReader
	Cache    *CacheService
	DB       txProvider
	Events   eventPublisher
	Metrics  *MetricsService
	Clock    clock.Clock
	Logger   *zap.Logger
	Account  models.Account
	CacheTTL time.Duration
}

// NewTreasuryService constructs a TreasuryService.
func NewTreasuryService(params TreasuryServiceParams) *TreasuryService {
	if params.Clock == nil {
		params.Clock = clock.System{}
	}
	if params.Logger == nil {
		params.Logger = zap.NewNop()
	}
	if params.CacheTTL <= 0 {
		params.CacheTTL = 15 * time.Second
	}
	return &TreasuryService{
		ledger:   params.Ledger,
		journal:  params.Journal,
		registry: params.Registry,
		cache:    params.Cache,
		db:       params.DB,
		events:   params.Events,
		metrics:  params.Metrics,
		clock:    params.Clock,
		logger:   params.Logger,
		account:  params.Account,
		cacheTTL: params.CacheTTL,
	}
}

// Account returns the treasury's ledger account.
func (s *TreasuryService) Account() models.Account {
	return s.account
}

// Asset returns the organization's settlement asset.
func (s *TreasuryService) Asset() string {
	return s.ledger.Asset()
}

// Balance reads the treasury balance straight from the ledger.
func (s *TreasuryService) Balance(ctx context.Context) (int64, error) {
	start := time.Now()
	balance, err := s.ledger.BalanceOf(ctx, s.account)
	s.metrics.ObserveLedgerCall("balance", err, time.Since(start))
	if err != nil {
		return 0, err
	}
	return balance, nil
}

// Collect pulls a payment from a member account into the treasury.
func (s *TreasuryService) Collect(ctx context.Context, from models.Account, amount int64) error {
	start := time.Now()
	err := s.ledger.TransferFrom(ctx, from, s.account, amount)
	s.metrics.ObserveLedgerCall("transfer_from", err, time.Since(start))
	if err != nil {
		return err
	}
	s.invalidateOverview(ctx)
	return nil
}

// Disburse pushes funds from the treasury to a member account.
func (s *TreasuryService) Disburse(ctx context.Context, to models.Account, amount int64) error {
	start := time.Now()
	err := s.ledger.Transfer(ctx, s.account, to, amount)
	s.metrics.ObserveLedgerCall("transfer", err, time.Since(start))
	if err != nil {
		return err
	}
	s.invalidateOverview(ctx)
	return nil
}

// RescueTransfer moves an arbitrary asset out of the treasury. Only
// the admin path uses it.
func (s *TreasuryService) RescueTransfer(ctx context.Context, asset string, to models.Account, amount int64) error {
	start := time.Now()
	err := s.ledger.TransferAsset(ctx, asset, s.account, to, amount)
	s.metrics.ObserveLedgerCall("transfer_asset", err, time.Since(start))
	if err != nil {
		return err
	}
	s.invalidateOverview(ctx)
	return nil
}

// Payout sends treasury funds to an account on the board's order.
func (s *TreasuryService) Payout(ctx context.Context, actor, to models.Account, amount int64) (entry *models.TreasuryEntry, err error) {
	actorRole, err := s.registry.RoleOf(ctx, actor)
	if err != nil {
		return nil, err
	}
	if actorRole != models.RoleBoard {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only the board may order payouts")
	}
	if amount <= 0 {
		return nil, appErrors.ErrZeroAmount
	}

	balance, err := s.Balance(ctx)
	if err != nil {
		return nil, err
	}
	if balance < amount {
		return nil, appErrors.ErrInsufficientTreasury
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

	entry = &models.TreasuryEntry{
		Direction:    models.EntryDirectionOut,
		Kind:         models.EntryKindPayout,
		Asset:        s.ledger.Asset(),
		Amount:       amount,
		Counterparty: to,
		CreatedBy:    actor,
		CreatedAt:    s.clock.Now(),
	}
	if err = s.journal.InsertTx(ctx, tx, entry); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to journal payout")
		return nil, err
	}
	if err = s.Disburse(ctx, to, amount); err != nil {
		return nil, err
	}
	if err = tx.Commit(); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to commit payout")
		return nil, err
	}

	s.metrics.RecordPayout(string(models.EntryKindPayout), amount)
	publishEvent(ctx, s.events, s.metrics, events.New(events.TypeTreasuryPayout, map[string]any{
		"to":         to,
		"amount":     amount,
		"kind":       models.EntryKindPayout,
		"ordered_by": actor,
	}))
	return entry, nil
}

// Overview returns the balance together with journal totals, cached
// briefly. The boolean reports whether the cache served the response.
func (s *TreasuryService) Overview(ctx context.Context) (*dto.TreasuryResponse, bool, error) {
	cached, found, err := s.tryOverviewCache(ctx)
	if err != nil {
		return nil, false, err
	}
	if found {
		return cached, true, nil
	}

	balance, err := s.Balance(ctx)
	if err != nil {
		return nil, false, err
	}
	totals, err := s.journal.Totals(ctx)
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read journal totals")
	}

	overview := &dto.TreasuryResponse{
		Asset:     s.ledger.Asset(),
		Balance:   balance,
		TotalIn:   totals[models.EntryDirectionIn],
		TotalOut:  totals[models.EntryDirectionOut],
		FetchedAt: s.clock.Now(),
	}
	s.persistOverviewCache(ctx, overview)
	return overview, false, nil
}

// Entries lists journal lines matching the filter.
func (s *TreasuryService) Entries(ctx context.Context, filter models.TreasuryEntryFilter) ([]models.TreasuryEntry, *models.Pagination, error) {
	entries, total, err := s.journal.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list journal entries")
	}
	return entries, buildPagination(filter.Page, filter.PageSize, total), nil
}

func (s *TreasuryService) tryOverviewCache(ctx context.Context) (*dto.TreasuryResponse, bool, error) {
	if !s.cache.Enabled() {
		return nil, false, nil
	}
	var overview dto.TreasuryResponse
	found, err := s.cache.Get(ctx, treasuryOverviewCacheKey, &overview)
	if err != nil {
		return nil, false, err
	}
	if !found {
		return nil, false, nil
	}
	return &overview, true, nil
}

func (s *TreasuryService) persistOverviewCache(ctx context.Context, overview *dto.TreasuryResponse) {
	if !s.cache.Enabled() {
		return
	}
	if err := s.cache.Set(ctx, treasuryOverviewCacheKey, overview, s.cacheTTL); err != nil {
		s.logger.Warn("failed to cache treasury overview", zap.Error(err))
	}
}

func (s *TreasuryService) invalidateOverview(ctx context.Context) {
	if !s.cache.Enabled() {
		return
	}
	if err := s.cache.Invalidate(ctx, treasuryOverviewCacheKey); err != nil {
		s.logger.Warn("failed to invalidate treasury overview cache", zap.Error(err))
	}
}
