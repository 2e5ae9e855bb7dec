package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/edu-collective-api/internal/models"
	"github.com/noah-isme/edu-collective-api/internal/service"
	appErrors "github.com/noah-isme/edu-collective-api/pkg/errors"
	"github.com/noah-isme/edu-collective-api/pkg/response"
)

// MemberHandler exposes role registry read endpoints.
type MemberHandler struct {
	registry *service.RegistryService
}

// NewMemberHandler constructs MemberHandler.
func NewMemberHandler(registry *service.RegistryService) *MemberHandler {
	return &MemberHandler{registry: registry}
}

// List godoc
// @Summary List organization members
// @Tags Members
// @Produce json
// @Param role query string false "Filter by role (BOARD, TEACHER, STUDENT)"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /members [get]
func (h *MemberHandler) List(c *gin.Context) {
	var filter models.MemberFilter
	if raw := c.Query("role"); raw != "" {
		role, ok := models.ParseRole(raw)
		if !ok {
			response.Error(c, appErrors.ErrInvalidRole)
			return
		}
		filter.Role = role
	}
	filter.Page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	filter.PageSize, _ = strconv.Atoi(c.DefaultQuery("limit", "20"))
	filter.SortBy = c.Query("sortBy")
	filter.SortOrder = c.Query("sortOrder")

	members, pagination, err := h.registry.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, members, pagination)
}

// Get godoc
// @Summary Get one member by account
// @Tags Members
// @Produce json
// @Param account path string true "Ledger account"
// @Success 200 {object} response.Envelope
// @Router /members/{account} [get]
func (h *MemberHandler) Get(c *gin.Context) {
	member, err := h.registry.Member(c.Request.Context(), models.Account(c.Param("account")))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, member, nil)
}
