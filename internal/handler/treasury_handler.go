package handler

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/edu-collective-api/internal/dto"
	"github.com/noah-isme/edu-collective-api/internal/middleware"
	"github.com/noah-isme/edu-collective-api/internal/models"
	"github.com/noah-isme/edu-collective-api/internal/service"
	appErrors "github.com/noah-isme/edu-collective-api/pkg/errors"
	"github.com/noah-isme/edu-collective-api/pkg/response"
)

// TreasuryHandler exposes the treasury overview, journal, and payouts.
type TreasuryHandler struct {
	treasury *service.TreasuryService
}

// NewTreasuryHandler constructs TreasuryHandler.
func NewTreasuryHandler(treasury *service.TreasuryService) *TreasuryHandler {
	return &TreasuryHandler{treasury: treasury}
}

// Overview godoc
// @Summary Get the treasury balance with journal totals
// @Tags Treasury
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /treasury [get]
func (h *TreasuryHandler) Overview(c *gin.Context) {
	start := time.Now()
	overview, cacheHit, err := h.treasury.Overview(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, cacheHit)
	meta := middleware.ExtractMeta(c)
	if meta == nil {
		meta = map[string]interface{}{}
	}
	meta["processing_time_ms"] = time.Since(start).Milliseconds()
	response.JSON(c, http.StatusOK, overview, nil, meta)
}

// Entries godoc
// @Summary List treasury journal entries
// @Tags Treasury
// @Produce json
// @Param direction query string false "IN or OUT"
// @Param kind query string false "Entry kind"
// @Param courseId query int false "Filter by course"
// @Param from query string false "RFC3339 lower bound"
// @Param to query string false "RFC3339 upper bound"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /treasury/entries [get]
func (h *TreasuryHandler) Entries(c *gin.Context) {
	var filter models.TreasuryEntryFilter
	filter.Direction = models.EntryDirection(strings.ToUpper(c.Query("direction")))
	filter.Kind = models.EntryKind(strings.ToUpper(c.Query("kind")))
	if raw := c.Query("courseId"); raw != "" {
		courseID, err := parseID(raw)
		if err != nil {
			response.Error(c, err)
			return
		}
		filter.CourseID = courseID
	}
	if raw := c.Query("from"); raw != "" {
		from, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "from must be RFC3339"))
			return
		}
		filter.From = &from
	}
	if raw := c.Query("to"); raw != "" {
		to, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "to must be RFC3339"))
			return
		}
		filter.To = &to
	}
	filter.Page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	filter.PageSize, _ = strconv.Atoi(c.DefaultQuery("limit", "20"))
	filter.SortBy = c.Query("sortBy")
	filter.SortOrder = c.Query("sortOrder")

	entries, pagination, err := h.treasury.Entries(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, entries, pagination)
}

// Payout godoc
// @Summary Pay treasury funds out to an account
// @Tags Treasury
// @Accept json
// @Produce json
// @Param payload body dto.PayoutRequest true "Payout payload"
// @Success 201 {object} response.Envelope
// @Router /treasury/payouts [post]
func (h *TreasuryHandler) Payout(c *gin.Context) {
	var req dto.PayoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payout payload"))
		return
	}
	entry, err := h.treasury.Payout(c.Request.Context(), actorFromContext(c), models.Account(req.To), req.Amount)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, entry)
}
