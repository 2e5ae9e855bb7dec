package service

import (
	"context"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/edu-collective-api/internal/events"
	"github.com/noah-isme/edu-collective-api/internal/models"
	"github.com/noah-isme/edu-collective-api/pkg/clock"
	appErrors "github.com/noah-isme/edu-collective-api/pkg/errors"
)

type ledgerTransfer struct {
	asset  string
	from   models.Account
	to     models.Account
	amount int64
}

type ledgerMock struct {
	asset       string
	balances    map[models.Account]int64
	transfers   []ledgerTransfer
	transferErr error
}

func newLedgerMock(balances map[models.Account]int64) *ledgerMock {
	if balances == nil {
		balances = make(map[models.Account]int64)
	}
	return &ledgerMock{asset: "EDU", balances: balances}
}

func (m *ledgerMock) Asset() string {
	return m.asset
}

func (m *ledgerMock) BalanceOf(ctx context.Context, account models.Account) (int64, error) {
	return m.balances[account], nil
}

func (m *ledgerMock) Transfer(ctx context.Context, from, to models.Account, amount int64) error {
	return m.move(m.asset, from, to, amount)
}

func (m *ledgerMock) TransferAsset(ctx context.Context, asset string, from, to models.Account, amount int64) error {
	return m.move(asset, from, to, amount)
}

func (m *ledgerMock) TransferFrom(ctx context.Context, payer, recipient models.Account, amount int64) error {
	return m.move(m.asset, payer, recipient, amount)
}

func (m *ledgerMock) move(asset string, from, to models.Account, amount int64) error {
	if m.transferErr != nil {
		return m.transferErr
	}
	m.balances[from] -= amount
	m.balances[to] += amount
	m.transfers = append(m.transfers, ledgerTransfer{asset, from, to, amount})
	return nil
}

func newTreasuryService(ledger *ledgerMock, journal *journalMock, registry *registryMock, db *sqlx.DB, clk clock.Clock, pub *publisherMock) *TreasuryService {
	return NewTreasuryService(TreasuryServiceParams{
		Ledger:   ledger,
		Journal:  journal,
		Registry: registry,
		DB:       db,
		Events:   pub,
		Clock:    clk,
		Logger:   zap.NewNop(),
		Account:  "treasury",
	})
}

func TestTreasuryServiceBalance(t *testing.T) {
	ledger := newLedgerMock(map[models.Account]int64{"treasury": 4200})
	db, _ := newTxDB(t)
	svc := newTreasuryService(ledger, &journalMock{}, &registryMock{}, db, clock.System{}, &publisherMock{})

	balance, err := svc.Balance(context.Background())

	require.NoError(t, err)
	assert.Equal(t, int64(4200), balance)
	assert.Equal(t, "EDU", svc.Asset())
	assert.Equal(t, models.Account("treasury"), svc.Account())
}

func TestTreasuryServiceCollectAndDisburse(t *testing.T) {
	ledger := newLedgerMock(map[models.Account]int64{"sam": 1000, "treasury": 0})
	db, _ := newTxDB(t)
	svc := newTreasuryService(ledger, &journalMock{}, &registryMock{}, db, clock.System{}, &publisherMock{})

	require.NoError(t, svc.Collect(context.Background(), "sam", 600))
	assert.Equal(t, int64(600), ledger.balances["treasury"])
	assert.Equal(t, int64(400), ledger.balances["sam"])

	require.NoError(t, svc.Disburse(context.Background(), "ted", 200))
	assert.Equal(t, int64(400), ledger.balances["treasury"])
	assert.Equal(t, int64(200), ledger.balances["ted"])

	require.Len(t, ledger.transfers, 2)
	assert.Equal(t, ledgerTransfer{"EDU", "sam", "treasury", 600}, ledger.transfers[0])
	assert.Equal(t, ledgerTransfer{"EDU", "treasury", "ted", 200}, ledger.transfers[1])
}

func TestTreasuryServiceRescueTransfer(t *testing.T) {
	ledger := newLedgerMock(map[models.Account]int64{"treasury": 100})
	db, _ := newTxDB(t)
	svc := newTreasuryService(ledger, &journalMock{}, &registryMock{}, db, clock.System{}, &publisherMock{})

	require.NoError(t, svc.RescueTransfer(context.Background(), "USDC", "owner", 77))

	require.Len(t, ledger.transfers, 1)
	assert.Equal(t, ledgerTransfer{"USDC", "treasury", "owner", 77}, ledger.transfers[0])
}

func TestTreasuryServicePayout(t *testing.T) {
	now := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	ledger := newLedgerMock(map[models.Account]int64{"treasury": 1000})
	journal := &journalMock{}
	registry := &registryMock{roles: map[models.Account]models.Role{"bob": models.RoleBoard}}
	pub := &publisherMock{}
	db, mock := newTxDB(t)
	mock.ExpectBegin()
	mock.ExpectCommit()
	svc := newTreasuryService(ledger, journal, registry, db, clock.NewFixed(now), pub)

	entry, err := svc.Payout(context.Background(), "bob", "ted", 300)

	require.NoError(t, err)
	assert.Equal(t, models.EntryDirectionOut, entry.Direction)
	assert.Equal(t, models.EntryKindPayout, entry.Kind)
	assert.Equal(t, int64(300), entry.Amount)
	assert.Equal(t, models.Account("ted"), entry.Counterparty)
	assert.Equal(t, models.Account("bob"), entry.CreatedBy)
	assert.Equal(t, now, entry.CreatedAt)

	assert.Equal(t, int64(700), ledger.balances["treasury"])
	require.Len(t, journal.entries, 1)
	assert.Equal(t, []events.Type{events.TypeTreasuryPayout}, pub.types())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTreasuryServicePayoutForbidden(t *testing.T) {
	ledger := newLedgerMock(map[models.Account]int64{"treasury": 1000})
	registry := &registryMock{roles: map[models.Account]models.Role{"ted": models.RoleTeacher}}
	db, _ := newTxDB(t)
	svc := newTreasuryService(ledger, &journalMock{}, registry, db, clock.System{}, &publisherMock{})

	_, err := svc.Payout(context.Background(), "ted", "sam", 100)

	requireCode(t, err, appErrors.ErrForbidden.Code)
	assert.Empty(t, ledger.transfers)
}

func TestTreasuryServicePayoutValidation(t *testing.T) {
	ledger := newLedgerMock(map[models.Account]int64{"treasury": 50})
	registry := &registryMock{roles: map[models.Account]models.Role{"bob": models.RoleBoard}}
	db, _ := newTxDB(t)
	svc := newTreasuryService(ledger, &journalMock{}, registry, db, clock.System{}, &publisherMock{})

	_, err := svc.Payout(context.Background(), "bob", "ted", 0)
	requireCode(t, err, appErrors.ErrZeroAmount.Code)

	_, err = svc.Payout(context.Background(), "bob", "ted", 100)
	requireCode(t, err, appErrors.ErrInsufficientTreasury.Code)
}

func TestTreasuryServicePayoutTransferFailure(t *testing.T) {
	ledger := newLedgerMock(map[models.Account]int64{"treasury": 1000})
	ledger.transferErr = appErrors.ErrPaymentFailed
	registry := &registryMock{roles: map[models.Account]models.Role{"bob": models.RoleBoard}}
	pub := &publisherMock{}
	db, mock := newTxDB(t)
	mock.ExpectBegin()
	mock.ExpectRollback()
	svc := newTreasuryService(ledger, &journalMock{}, registry, db, clock.System{}, pub)

	_, err := svc.Payout(context.Background(), "bob", "ted", 100)

	requireCode(t, err, appErrors.ErrPaymentFailed.Code)
	assert.Empty(t, pub.types())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTreasuryServiceOverview(t *testing.T) {
	now := time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC)
	ledger := newLedgerMock(map[models.Account]int64{"treasury": 900})
	journal := &journalMock{entries: []models.TreasuryEntry{
		{Direction: models.EntryDirectionIn, Amount: 1000},
		{Direction: models.EntryDirectionIn, Amount: 500},
		{Direction: models.EntryDirectionOut, Amount: 600},
	}}
	db, _ := newTxDB(t)
	svc := newTreasuryService(ledger, journal, &registryMock{}, db, clock.NewFixed(now), &publisherMock{})

	overview, cached, err := svc.Overview(context.Background())

	require.NoError(t, err)
	assert.False(t, cached, "cache is disabled in this setup")
	assert.Equal(t, "EDU", overview.Asset)
	assert.Equal(t, int64(900), overview.Balance)
	assert.Equal(t, int64(1500), overview.TotalIn)
	assert.Equal(t, int64(600), overview.TotalOut)
	assert.Equal(t, now, overview.FetchedAt)
}

func TestTreasuryServiceEntries(t *testing.T) {
	journal := &journalMock{entries: []models.TreasuryEntry{
		{Direction: models.EntryDirectionIn, Kind: models.EntryKindEnrollmentFee, Amount: 1000},
	}}
	db, _ := newTxDB(t)
	svc := newTreasuryService(newLedgerMock(nil), journal, &registryMock{}, db, clock.System{}, &publisherMock{})

	entries, page, err := svc.Entries(context.Background(), models.TreasuryEntryFilter{Page: 1, PageSize: 50})

	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, models.EntryKindEnrollmentFee, entries[0].Kind)
	assert.Equal(t, 1, page.TotalCount)
	assert.Equal(t, 50, page.PageSize)
}
