package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/edu-collective-api/internal/dto"
	"github.com/noah-isme/edu-collective-api/internal/service"
	appErrors "github.com/noah-isme/edu-collective-api/pkg/errors"
	"github.com/noah-isme/edu-collective-api/pkg/response"
)

// AdminHandler exposes owner-only settings and rescue endpoints. Routes
// sit behind both the identity middleware and the admin key check.
type AdminHandler struct {
	admin *service.AdminService
}

// NewAdminHandler constructs AdminHandler.
func NewAdminHandler(admin *service.AdminService) *AdminHandler {
	return &AdminHandler{admin: admin}
}

// Settings godoc
// @Summary List organization settings
// @Tags Admin
// @Produce json
// @Param X-Admin-Key header string true "Admin key"
// @Success 200 {object} response.Envelope
// @Router /admin/settings [get]
func (h *AdminHandler) Settings(c *gin.Context) {
	settings, err := h.admin.Settings(c.Request.Context(), actorFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, settings, nil)
}

// SetProposalDuration godoc
// @Summary Set the voting window for future proposals
// @Tags Admin
// @Accept json
// @Produce json
// @Param X-Admin-Key header string true "Admin key"
// @Param payload body dto.ProposalDurationRequest true "Duration payload"
// @Success 200 {object} response.Envelope
// @Router /admin/settings/proposal-duration [put]
func (h *AdminHandler) SetProposalDuration(c *gin.Context) {
	var req dto.ProposalDurationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid duration payload"))
		return
	}
	setting, err := h.admin.SetProposalDuration(c.Request.Context(), actorFromContext(c), req.Seconds)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, setting, nil)
}

// Rescue godoc
// @Summary Rescue stray assets out of the treasury
// @Tags Admin
// @Accept json
// @Produce json
// @Param X-Admin-Key header string true "Admin key"
// @Param payload body dto.RescueRequest true "Rescue payload"
// @Success 201 {object} response.Envelope
// @Router /admin/rescue [post]
func (h *AdminHandler) Rescue(c *gin.Context) {
	var req dto.RescueRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid rescue payload"))
		return
	}
	entry, err := h.admin.RescueFunds(c.Request.Context(), actorFromContext(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, entry)
}
