package handler

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/edu-collective-api/internal/dto"
	"github.com/noah-isme/edu-collective-api/internal/models"
	appErrors "github.com/noah-isme/edu-collective-api/pkg/errors"
	"github.com/noah-isme/edu-collective-api/pkg/response"
)

type proposalService interface {
	Create(ctx context.Context, actor models.Account, req dto.CreateProposalRequest) (*models.Proposal, error)
	Vote(ctx context.Context, actor models.Account, id int64, support bool) (*models.Proposal, error)
	Execute(ctx context.Context, actor models.Account, id int64) (*dto.ExecutionResponse, error)
	Get(ctx context.Context, id int64) (*dto.ProposalDetailResponse, error)
	List(ctx context.Context, filter models.ProposalFilter) ([]models.Proposal, *models.Pagination, error)
}

// ProposalHandler exposes admission proposal endpoints.
type ProposalHandler struct {
	service proposalService
}

// NewProposalHandler constructs ProposalHandler.
func NewProposalHandler(service proposalService) *ProposalHandler {
	return &ProposalHandler{service: service}
}

// Create godoc
// @Summary Open an admission proposal
// @Tags Proposals
// @Accept json
// @Produce json
// @Param payload body dto.CreateProposalRequest true "Proposal payload"
// @Success 201 {object} response.Envelope
// @Router /proposals [post]
func (h *ProposalHandler) Create(c *gin.Context) {
	var req dto.CreateProposalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid proposal payload"))
		return
	}
	proposal, err := h.service.Create(c.Request.Context(), actorFromContext(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, proposal)
}

// List godoc
// @Summary List admission proposals
// @Tags Proposals
// @Produce json
// @Param candidate query string false "Filter by candidate account"
// @Param role query string false "Filter by target role"
// @Param executed query bool false "Filter by execution state"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /proposals [get]
func (h *ProposalHandler) List(c *gin.Context) {
	var filter models.ProposalFilter
	filter.Candidate = models.Account(c.Query("candidate"))
	if role, ok := models.ParseRole(c.Query("role")); ok {
		filter.Role = role
	}
	if raw := c.Query("executed"); raw != "" {
		executed := strings.EqualFold(raw, "true")
		filter.Executed = &executed
	}
	filter.Page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	filter.PageSize, _ = strconv.Atoi(c.DefaultQuery("limit", "20"))
	filter.SortBy = c.Query("sortBy")
	filter.SortOrder = c.Query("sortOrder")

	proposals, pagination, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, proposals, pagination)
}

// Get godoc
// @Summary Get one proposal with its votes
// @Tags Proposals
// @Produce json
// @Param id path int true "Proposal ID"
// @Success 200 {object} response.Envelope
// @Router /proposals/{id} [get]
func (h *ProposalHandler) Get(c *gin.Context) {
	id, err := parseID(c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	detail, err := h.service.Get(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, detail, nil)
}

// Vote godoc
// @Summary Cast a ballot on a proposal
// @Tags Proposals
// @Accept json
// @Produce json
// @Param id path int true "Proposal ID"
// @Param payload body dto.VoteRequest true "Ballot"
// @Success 200 {object} response.Envelope
// @Router /proposals/{id}/votes [post]
func (h *ProposalHandler) Vote(c *gin.Context) {
	id, err := parseID(c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	var req dto.VoteRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Support == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "support is required"))
		return
	}
	proposal, err := h.service.Vote(c.Request.Context(), actorFromContext(c), id, *req.Support)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, proposal, nil)
}

// Execute godoc
// @Summary Execute a proposal after its voting window
// @Tags Proposals
// @Produce json
// @Param id path int true "Proposal ID"
// @Success 200 {object} response.Envelope
// @Router /proposals/{id}/execute [post]
func (h *ProposalHandler) Execute(c *gin.Context) {
	id, err := parseID(c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	result, err := h.service.Execute(c.Request.Context(), actorFromContext(c), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// parseID parses a positive numeric path parameter.
func parseID(raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id < 1 {
		return 0, appErrors.Clone(appErrors.ErrValidation, "invalid id")
	}
	return id, nil
}
