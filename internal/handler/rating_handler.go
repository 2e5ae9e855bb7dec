package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/edu-collective-api/internal/dto"
	"github.com/noah-isme/edu-collective-api/internal/models"
	"github.com/noah-isme/edu-collective-api/internal/service"
	appErrors "github.com/noah-isme/edu-collective-api/pkg/errors"
	"github.com/noah-isme/edu-collective-api/pkg/response"
)

// RatingHandler exposes rating and bonus endpoints.
type RatingHandler struct {
	ratings *service.RatingService
}

// NewRatingHandler constructs RatingHandler.
func NewRatingHandler(ratings *service.RatingService) *RatingHandler {
	return &RatingHandler{ratings: ratings}
}

// Rate godoc
// @Summary Rate a teacher on a completed course
// @Tags Ratings
// @Accept json
// @Produce json
// @Param id path int true "Course ID"
// @Param payload body dto.RateRequest true "Rating payload"
// @Success 201 {object} response.Envelope
// @Router /courses/{id}/ratings [post]
func (h *RatingHandler) Rate(c *gin.Context) {
	courseID, err := parseID(c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	var req dto.RateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid rating payload"))
		return
	}
	rating, err := h.ratings.Rate(c.Request.Context(), actorFromContext(c), courseID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, rating)
}

// ListForCourse godoc
// @Summary List ratings on a course, the caller's own by default
// @Tags Ratings
// @Produce json
// @Param id path int true "Course ID"
// @Param student query string false "Filter by student account"
// @Success 200 {object} response.Envelope
// @Router /courses/{id}/ratings [get]
func (h *RatingHandler) ListForCourse(c *gin.Context) {
	courseID, err := parseID(c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	student := models.Account(c.Query("student"))
	if student == models.ZeroAccount {
		student = actorFromContext(c)
	}
	ratings, err := h.ratings.CourseRatings(c.Request.Context(), courseID, student)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, ratings, nil)
}

// TeacherRating godoc
// @Summary Get a teacher's rating aggregate and bonus weight
// @Tags Ratings
// @Produce json
// @Param account path string true "Teacher account"
// @Success 200 {object} response.Envelope
// @Router /teachers/{account}/rating [get]
func (h *RatingHandler) TeacherRating(c *gin.Context) {
	stats, err := h.ratings.TeacherStats(c.Request.Context(), models.Account(c.Param("account")))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, stats, nil)
}

// DistributeBonus godoc
// @Summary Distribute a treasury bonus across a course's teachers
// @Tags Ratings
// @Accept json
// @Produce json
// @Param id path int true "Course ID"
// @Param payload body dto.BonusRequest true "Bonus payload"
// @Success 200 {object} response.Envelope
// @Router /courses/{id}/bonus [post]
func (h *RatingHandler) DistributeBonus(c *gin.Context) {
	courseID, err := parseID(c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	var req dto.BonusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid bonus payload"))
		return
	}
	result, err := h.ratings.DistributeBonus(c.Request.Context(), actorFromContext(c), courseID, req.Amount)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}
