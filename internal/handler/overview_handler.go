package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/edu-collective-api/internal/middleware"
	"github.com/noah-isme/edu-collective-api/internal/service"
	"github.com/noah-isme/edu-collective-api/pkg/response"
)

// OverviewHandler serves the aggregated organization snapshot.
type OverviewHandler struct {
	overview *service.OverviewService
}

// NewOverviewHandler constructs OverviewHandler.
func NewOverviewHandler(overview *service.OverviewService) *OverviewHandler {
	return &OverviewHandler{overview: overview}
}

// Snapshot godoc
// @Summary Get the organization overview
// @Tags Overview
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /overview [get]
func (h *OverviewHandler) Snapshot(c *gin.Context) {
	start := time.Now()
	snapshot, cacheHit, err := h.overview.Snapshot(c.Request.Context())
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
	response.JSON(c, http.StatusOK, snapshot, nil, meta)
}
