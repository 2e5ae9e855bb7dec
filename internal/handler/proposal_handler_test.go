package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/edu-collective-api/internal/dto"
	"github.com/noah-isme/edu-collective-api/internal/middleware"
	"github.com/noah-isme/edu-collective-api/internal/models"
	appErrors "github.com/noah-isme/edu-collective-api/pkg/errors"
)

type proposalServiceMock struct {
	proposal   *models.Proposal
	detail     *dto.ProposalDetailResponse
	execution  *dto.ExecutionResponse
	list       []models.Proposal
	pagination *models.Pagination
	err        error

	lastActor   models.Account
	lastSupport bool
}

func (m *proposalServiceMock) Create(ctx context.Context, actor models.Account, req dto.CreateProposalRequest) (*models.Proposal, error) {
	m.lastActor = actor
	return m.proposal, m.err
}

func (m *proposalServiceMock) Vote(ctx context.Context, actor models.Account, id int64, support bool) (*models.Proposal, error) {
	m.lastActor = actor
	m.lastSupport = support
	return m.proposal, m.err
}

func (m *proposalServiceMock) Execute(ctx context.Context, actor models.Account, id int64) (*dto.ExecutionResponse, error) {
	m.lastActor = actor
	return m.execution, m.err
}

func (m *proposalServiceMock) Get(ctx context.Context, id int64) (*dto.ProposalDetailResponse, error) {
	return m.detail, m.err
}

func (m *proposalServiceMock) List(ctx context.Context, filter models.ProposalFilter) ([]models.Proposal, *models.Pagination, error) {
	return m.list, m.pagination, m.err
}

type testEnvelope struct {
	Data  json.RawMessage `json:"data"`
	Error *appErrors.Error `json:"error"`
}

func newTestContext(method, path string, body []byte) (*gin.Context, *httptest.ResponseRecorder) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(method, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	return c, w
}

func asIdentity(c *gin.Context, account models.Account) {
	c.Set(middleware.ContextIdentityKey, &models.IdentityClaims{Account: account})
}

func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder) testEnvelope {
	t.Helper()
	var envelope testEnvelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	return envelope
}

func TestProposalHandlerCreate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &proposalServiceMock{
		proposal: &models.Proposal{ID: 7, Candidate: "carol", RoleToAdd: models.RoleStudent},
	}
	handler := NewProposalHandler(mockSvc)

	payload, _ := json.Marshal(dto.CreateProposalRequest{Candidate: "carol", Role: "STUDENT"})
	c, w := newTestContext(http.MethodPost, "/proposals", payload)
	asIdentity(c, "alice")

	handler.Create(c)
	require.Equal(t, http.StatusCreated, w.Code)
	require.Equal(t, models.Account("alice"), mockSvc.lastActor)

	envelope := decodeEnvelope(t, w)
	require.Nil(t, envelope.Error)
	var proposal models.Proposal
	require.NoError(t, json.Unmarshal(envelope.Data, &proposal))
	require.Equal(t, int64(7), proposal.ID)
}

func TestProposalHandlerCreateServiceError(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &proposalServiceMock{err: appErrors.ErrDuplicateActiveProposal}
	handler := NewProposalHandler(mockSvc)

	payload, _ := json.Marshal(dto.CreateProposalRequest{Candidate: "carol", Role: "STUDENT"})
	c, w := newTestContext(http.MethodPost, "/proposals", payload)
	asIdentity(c, "alice")

	handler.Create(c)
	require.Equal(t, http.StatusConflict, w.Code)
	envelope := decodeEnvelope(t, w)
	require.NotNil(t, envelope.Error)
	require.Equal(t, "DUPLICATE_ACTIVE_PROPOSAL", envelope.Error.Code)
}

func TestProposalHandlerVote(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &proposalServiceMock{
		proposal: &models.Proposal{ID: 7, VotesFor: 1},
	}
	handler := NewProposalHandler(mockSvc)

	support := true
	payload, _ := json.Marshal(dto.VoteRequest{Support: &support})
	c, w := newTestContext(http.MethodPost, "/proposals/7/votes", payload)
	c.Params = gin.Params{{Key: "id", Value: "7"}}
	asIdentity(c, "bob")

	handler.Vote(c)
	require.Equal(t, http.StatusOK, w.Code)
	require.True(t, mockSvc.lastSupport)
	require.Equal(t, models.Account("bob"), mockSvc.lastActor)
}

func TestProposalHandlerVoteMissingSupport(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewProposalHandler(&proposalServiceMock{})

	c, w := newTestContext(http.MethodPost, "/proposals/7/votes", []byte(`{}`))
	c.Params = gin.Params{{Key: "id", Value: "7"}}
	asIdentity(c, "bob")

	handler.Vote(c)
	require.Equal(t, http.StatusBadRequest, w.Code)
	envelope := decodeEnvelope(t, w)
	require.NotNil(t, envelope.Error)
	require.Equal(t, "VALIDATION_ERROR", envelope.Error.Code)
}

func TestProposalHandlerVoteInvalidID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewProposalHandler(&proposalServiceMock{})

	c, w := newTestContext(http.MethodPost, "/proposals/abc/votes", []byte(`{"support":true}`))
	c.Params = gin.Params{{Key: "id", Value: "abc"}}
	asIdentity(c, "bob")

	handler.Vote(c)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestProposalHandlerExecute(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &proposalServiceMock{
		execution: &dto.ExecutionResponse{ProposalID: 7, Passed: true, Granted: true, ExecutedAt: time.Now()},
	}
	handler := NewProposalHandler(mockSvc)

	c, w := newTestContext(http.MethodPost, "/proposals/7/execute", nil)
	c.Params = gin.Params{{Key: "id", Value: "7"}}
	asIdentity(c, "alice")

	handler.Execute(c)
	require.Equal(t, http.StatusOK, w.Code)

	envelope := decodeEnvelope(t, w)
	var result dto.ExecutionResponse
	require.NoError(t, json.Unmarshal(envelope.Data, &result))
	require.True(t, result.Passed)
	require.True(t, result.Granted)
}

func TestProposalHandlerExecuteStillOpen(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &proposalServiceMock{err: appErrors.ErrVotingStillOpen}
	handler := NewProposalHandler(mockSvc)

	c, w := newTestContext(http.MethodPost, "/proposals/7/execute", nil)
	c.Params = gin.Params{{Key: "id", Value: "7"}}
	asIdentity(c, "alice")

	handler.Execute(c)
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestProposalHandlerGet(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &proposalServiceMock{
		detail: &dto.ProposalDetailResponse{
			Proposal: models.Proposal{ID: 7, Candidate: "carol"},
			Votes:    []models.ProposalVote{{ProposalID: 7, Voter: "bob", Support: true}},
		},
	}
	handler := NewProposalHandler(mockSvc)

	c, w := newTestContext(http.MethodGet, "/proposals/7", nil)
	c.Params = gin.Params{{Key: "id", Value: "7"}}

	handler.Get(c)
	require.Equal(t, http.StatusOK, w.Code)

	envelope := decodeEnvelope(t, w)
	var detail dto.ProposalDetailResponse
	require.NoError(t, json.Unmarshal(envelope.Data, &detail))
	require.Len(t, detail.Votes, 1)
}

func TestProposalHandlerList(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &proposalServiceMock{
		list:       []models.Proposal{{ID: 1}, {ID: 2}},
		pagination: &models.Pagination{Page: 1, PageSize: 20, TotalCount: 2},
	}
	handler := NewProposalHandler(mockSvc)

	c, w := newTestContext(http.MethodGet, "/proposals?executed=false", nil)

	handler.List(c)
	require.Equal(t, http.StatusOK, w.Code)
}
