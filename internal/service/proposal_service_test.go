package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
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

// newTxDB returns an sqlx handle backed by sqlmock for services that
// only need Begin/Commit/Rollback; the repositories are mocked so no
// statements reach the driver.
func newTxDB(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return sqlx.NewDb(db, "sqlmock"), mock
}

func requireCode(t *testing.T, err error, code string) {
	t.Helper()
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, code, appErr.Code)
}

type publisherMock struct {
	events []events.Event
}

func (p *publisherMock) Publish(ctx context.Context, event events.Event) error {
	p.events = append(p.events, event)
	return nil
}

func (p *publisherMock) types() []events.Type {
	types := make([]events.Type, 0, len(p.events))
	for _, e := range p.events {
		types = append(types, e.Type)
	}
	return types
}

type fixedDuration time.Duration

func (d fixedDuration) ProposalDuration(ctx context.Context) time.Duration {
	return time.Duration(d)
}

type proposalRepoMock struct {
	proposals map[int64]*models.Proposal
	active    map[models.Account]bool
	votes     []models.ProposalVote
	voteDup   bool
	created   *models.Proposal
}

func (m *proposalRepoMock) Create(ctx context.Context, proposal *models.Proposal) error {
	proposal.ID = 1
	m.created = proposal
	if m.proposals == nil {
		m.proposals = make(map[int64]*models.Proposal)
	}
	copied := *proposal
	m.proposals[proposal.ID] = &copied
	return nil
}

func (m *proposalRepoMock) FindByID(ctx context.Context, id int64) (*models.Proposal, error) {
	if p, ok := m.proposals[id]; ok {
		copied := *p
		return &copied, nil
	}
	return nil, sql.ErrNoRows
}

func (m *proposalRepoMock) FindByIDTx(ctx context.Context, exec sqlx.ExtContext, id int64) (*models.Proposal, error) {
	return m.FindByID(ctx, id)
}

func (m *proposalRepoMock) ExistsActive(ctx context.Context, candidate models.Account, now time.Time) (bool, error) {
	return m.active[candidate], nil
}

func (m *proposalRepoMock) List(ctx context.Context, filter models.ProposalFilter) ([]models.Proposal, int, error) {
	var out []models.Proposal
	for _, p := range m.proposals {
		out = append(out, *p)
	}
	return out, len(out), nil
}

func (m *proposalRepoMock) Votes(ctx context.Context, proposalID int64) ([]models.ProposalVote, error) {
	return m.votes, nil
}

func (m *proposalRepoMock) InsertVote(ctx context.Context, exec sqlx.ExtContext, vote models.ProposalVote) (bool, error) {
	if m.voteDup {
		return false, nil
	}
	m.votes = append(m.votes, vote)
	return true, nil
}

func (m *proposalRepoMock) IncrementTally(ctx context.Context, exec sqlx.ExtContext, id int64, support bool) error {
	p := m.proposals[id]
	if support {
		p.VotesFor++
	} else {
		p.VotesAgainst++
	}
	return nil
}

func (m *proposalRepoMock) MarkExecuted(ctx context.Context, exec sqlx.ExtContext, id int64, passed bool, at time.Time) (bool, error) {
	p, ok := m.proposals[id]
	if !ok || p.Executed {
		return false, nil
	}
	p.Executed = true
	p.Passed = passed
	p.ExecutedAt = &at
	return true, nil
}

type registryMock struct {
	roles        map[models.Account]models.Role
	held         map[models.Account]bool
	admitted     []models.Account
	admittedRole models.Role
}

func (m *registryMock) RoleOf(ctx context.Context, account models.Account) (models.Role, error) {
	return m.roles[account], nil
}

func (m *registryMock) HeldAnyTx(ctx context.Context, exec sqlx.ExtContext, account models.Account) (bool, error) {
	return m.held[account], nil
}

func (m *registryMock) Admit(ctx context.Context, exec sqlx.ExtContext, account models.Account, role models.Role, proposalID int64) error {
	m.admitted = append(m.admitted, account)
	m.admittedRole = role
	return nil
}

func newProposalService(repo *proposalRepoMock, registry *registryMock, db *sqlx.DB, clk clock.Clock, pub *publisherMock) *ProposalService {
	return NewProposalService(ProposalServiceParams{
		Repo:      repo,
		Registry:  registry,
		Durations: fixedDuration(3 * time.Minute),
		DB:        db,
		Events:    pub,
		Clock:     clk,
		Logger:    zap.NewNop(),
	})
}

func TestProposalServiceCreate(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	repo := &proposalRepoMock{}
	registry := &registryMock{roles: map[models.Account]models.Role{"alice": models.RoleBoard}}
	pub := &publisherMock{}
	svc := newProposalService(repo, registry, nil, clock.NewFixed(now), pub)

	proposal, err := svc.Create(context.Background(), "alice", dto.CreateProposalRequest{
		Candidate: "bob",
		Role:      "TEACHER",
	})
	require.NoError(t, err)
	assert.Equal(t, models.Account("bob"), proposal.Candidate)
	assert.Equal(t, models.RoleTeacher, proposal.RoleToAdd)
	assert.Equal(t, now, proposal.StartAt)
	assert.Equal(t, now.Add(3*time.Minute), proposal.EndAt)
	assert.Equal(t, models.Account("alice"), proposal.CreatedBy)
	assert.Equal(t, []events.Type{events.TypeProposalCreated}, pub.types())
}

func TestProposalServiceCreateCandidateAlreadyMember(t *testing.T) {
	repo := &proposalRepoMock{}
	registry := &registryMock{roles: map[models.Account]models.Role{"bob": models.RoleStudent}}
	svc := newProposalService(repo, registry, nil, clock.NewFixed(time.Now()), &publisherMock{})

	_, err := svc.Create(context.Background(), "alice", dto.CreateProposalRequest{Candidate: "bob", Role: "TEACHER"})
	requireCode(t, err, "ALREADY_HAS_ROLE")
}

func TestProposalServiceCreateDuplicateActive(t *testing.T) {
	repo := &proposalRepoMock{active: map[models.Account]bool{"bob": true}}
	registry := &registryMock{}
	svc := newProposalService(repo, registry, nil, clock.NewFixed(time.Now()), &publisherMock{})

	_, err := svc.Create(context.Background(), "alice", dto.CreateProposalRequest{Candidate: "bob", Role: "STUDENT"})
	requireCode(t, err, "DUPLICATE_ACTIVE_PROPOSAL")
}

func TestProposalServiceCreateInvalidRole(t *testing.T) {
	svc := newProposalService(&proposalRepoMock{}, &registryMock{}, nil, clock.NewFixed(time.Now()), &publisherMock{})

	_, err := svc.Create(context.Background(), "alice", dto.CreateProposalRequest{Candidate: "bob", Role: "JANITOR"})
	requireCode(t, err, "INVALID_ROLE")

	_, err = svc.Create(context.Background(), "alice", dto.CreateProposalRequest{Candidate: "  ", Role: "STUDENT"})
	requireCode(t, err, "INVALID_CANDIDATE")
}

func TestProposalServiceVote(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	repo := &proposalRepoMock{proposals: map[int64]*models.Proposal{
		7: {ID: 7, Candidate: "carol", RoleToAdd: models.RoleStudent, StartAt: now.Add(-time.Minute), EndAt: now.Add(time.Minute)},
	}}
	registry := &registryMock{roles: map[models.Account]models.Role{"ted": models.RoleTeacher}}
	db, mock := newTxDB(t)
	mock.ExpectBegin()
	mock.ExpectCommit()
	pub := &publisherMock{}
	svc := newProposalService(repo, registry, db, clock.NewFixed(now), pub)

	proposal, err := svc.Vote(context.Background(), "ted", 7, true)
	require.NoError(t, err)
	assert.Equal(t, 1, proposal.VotesFor)
	assert.Equal(t, 0, proposal.VotesAgainst)
	require.Len(t, repo.votes, 1)
	assert.Equal(t, models.Account("ted"), repo.votes[0].Voter)
	assert.True(t, repo.votes[0].Support)
	assert.Equal(t, []events.Type{events.TypeProposalVoteCast}, pub.types())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestProposalServiceVoteWrongElectorate(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	repo := &proposalRepoMock{proposals: map[int64]*models.Proposal{
		7: {ID: 7, Candidate: "carol", RoleToAdd: models.RoleStudent, StartAt: now.Add(-time.Minute), EndAt: now.Add(time.Minute)},
	}}
	// Students vote on Board candidates only; a student may not vote
	// on a student admission.
	registry := &registryMock{roles: map[models.Account]models.Role{"sam": models.RoleStudent}}
	svc := newProposalService(repo, registry, nil, clock.NewFixed(now), &publisherMock{})

	_, err := svc.Vote(context.Background(), "sam", 7, true)
	requireCode(t, err, "NOT_IN_ELECTORATE")
}

func TestProposalServiceVoteWindowClosed(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	repo := &proposalRepoMock{proposals: map[int64]*models.Proposal{
		7: {ID: 7, RoleToAdd: models.RoleStudent, StartAt: now.Add(-10 * time.Minute), EndAt: now.Add(-5 * time.Minute)},
	}}
	registry := &registryMock{roles: map[models.Account]models.Role{"ted": models.RoleTeacher}}
	svc := newProposalService(repo, registry, nil, clock.NewFixed(now), &publisherMock{})

	_, err := svc.Vote(context.Background(), "ted", 7, true)
	requireCode(t, err, "VOTING_CLOSED")
}

func TestProposalServiceVoteDuplicate(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	repo := &proposalRepoMock{
		voteDup: true,
		proposals: map[int64]*models.Proposal{
			7: {ID: 7, RoleToAdd: models.RoleStudent, StartAt: now.Add(-time.Minute), EndAt: now.Add(time.Minute)},
		},
	}
	registry := &registryMock{roles: map[models.Account]models.Role{"ted": models.RoleTeacher}}
	db, mock := newTxDB(t)
	mock.ExpectBegin()
	mock.ExpectRollback()
	svc := newProposalService(repo, registry, db, clock.NewFixed(now), &publisherMock{})

	_, err := svc.Vote(context.Background(), "ted", 7, false)
	requireCode(t, err, "DUPLICATE_VOTE")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestProposalServiceExecutePasses(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	repo := &proposalRepoMock{proposals: map[int64]*models.Proposal{
		7: {ID: 7, Candidate: "carol", RoleToAdd: models.RoleStudent, VotesFor: 2, VotesAgainst: 1, EndAt: now.Add(-time.Second)},
	}}
	registry := &registryMock{}
	db, mock := newTxDB(t)
	mock.ExpectBegin()
	mock.ExpectCommit()
	pub := &publisherMock{}
	svc := newProposalService(repo, registry, db, clock.NewFixed(now), pub)

	result, err := svc.Execute(context.Background(), "alice", 7)
	require.NoError(t, err)
	assert.True(t, result.Passed)
	assert.True(t, result.Granted)
	assert.Equal(t, now, result.ExecutedAt)
	assert.Equal(t, []models.Account{"carol"}, registry.admitted)
	assert.Equal(t, models.RoleStudent, registry.admittedRole)
	assert.True(t, repo.proposals[7].Executed)
	assert.Equal(t, []events.Type{events.TypeProposalExecuted}, pub.types())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestProposalServiceExecuteStillOpen(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	repo := &proposalRepoMock{proposals: map[int64]*models.Proposal{
		7: {ID: 7, RoleToAdd: models.RoleStudent, EndAt: now.Add(time.Minute)},
	}}
	db, mock := newTxDB(t)
	mock.ExpectBegin()
	mock.ExpectRollback()
	svc := newProposalService(repo, &registryMock{}, db, clock.NewFixed(now), &publisherMock{})

	_, err := svc.Execute(context.Background(), "alice", 7)
	requireCode(t, err, "VOTING_STILL_OPEN")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestProposalServiceExecuteCandidateGainedRole(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	repo := &proposalRepoMock{proposals: map[int64]*models.Proposal{
		7: {ID: 7, Candidate: "carol", RoleToAdd: models.RoleStudent, VotesFor: 3, EndAt: now.Add(-time.Second)},
	}}
	registry := &registryMock{held: map[models.Account]bool{"carol": true}}
	db, mock := newTxDB(t)
	mock.ExpectBegin()
	mock.ExpectCommit()
	svc := newProposalService(repo, registry, db, clock.NewFixed(now), &publisherMock{})

	result, err := svc.Execute(context.Background(), "alice", 7)
	require.NoError(t, err)
	assert.True(t, result.Passed)
	assert.False(t, result.Granted)
	assert.Empty(t, registry.admitted)
}

func TestProposalServiceExecuteNoVotesFails(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	repo := &proposalRepoMock{proposals: map[int64]*models.Proposal{
		7: {ID: 7, Candidate: "carol", RoleToAdd: models.RoleStudent, EndAt: now.Add(-time.Second)},
	}}
	registry := &registryMock{}
	db, mock := newTxDB(t)
	mock.ExpectBegin()
	mock.ExpectCommit()
	svc := newProposalService(repo, registry, db, clock.NewFixed(now), &publisherMock{})

	result, err := svc.Execute(context.Background(), "alice", 7)
	require.NoError(t, err)
	assert.False(t, result.Passed)
	assert.False(t, result.Granted)
	assert.Empty(t, registry.admitted)
	assert.True(t, repo.proposals[7].Executed)
}

func TestProposalServiceExecuteAlreadyExecuted(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	repo := &proposalRepoMock{proposals: map[int64]*models.Proposal{
		7: {ID: 7, RoleToAdd: models.RoleStudent, Executed: true, EndAt: now.Add(-time.Minute)},
	}}
	db, mock := newTxDB(t)
	mock.ExpectBegin()
	mock.ExpectRollback()
	svc := newProposalService(repo, &registryMock{}, db, clock.NewFixed(now), &publisherMock{})

	_, err := svc.Execute(context.Background(), "alice", 7)
	requireCode(t, err, "ALREADY_EXECUTED")
}

func TestProposalServiceGet(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	repo := &proposalRepoMock{
		proposals: map[int64]*models.Proposal{7: {ID: 7, Candidate: "carol"}},
		votes:     []models.ProposalVote{{ProposalID: 7, Voter: "ted", Support: true, VotedAt: now}},
	}
	svc := newProposalService(repo, &registryMock{}, nil, clock.NewFixed(now), &publisherMock{})

	detail, err := svc.Get(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, models.Account("carol"), detail.Proposal.Candidate)
	require.Len(t, detail.Votes, 1)

	_, err = svc.Get(context.Background(), 99)
	requireCode(t, err, "NOT_FOUND")
}
