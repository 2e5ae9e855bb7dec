package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/edu-collective-api/internal/dto"
	"github.com/noah-isme/edu-collective-api/internal/models"
	appErrors "github.com/noah-isme/edu-collective-api/pkg/errors"
	"github.com/noah-isme/edu-collective-api/pkg/response"
)

type enrollmentService interface {
	Apply(ctx context.Context, actor models.Account, courseID int64) (*models.Enrollment, error)
	VoteOnApplication(ctx context.Context, actor models.Account, courseID int64, student models.Account, support bool) (*models.Enrollment, error)
	Confirm(ctx context.Context, actor models.Account, courseID int64) (*models.Enrollment, error)
	Complete(ctx context.Context, actor models.Account, courseID int64, student models.Account) (*dto.CompletionResponse, error)
	GetApplication(ctx context.Context, courseID int64, student models.Account) (*dto.ApplicationResponse, error)
	List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, *models.Pagination, error)
}

// EnrollmentHandler exposes application and enrollment endpoints.
type EnrollmentHandler struct {
	enrollments enrollmentService
}

// NewEnrollmentHandler constructs EnrollmentHandler.
func NewEnrollmentHandler(enrollments enrollmentService) *EnrollmentHandler {
	return &EnrollmentHandler{enrollments: enrollments}
}

// Apply godoc
// @Summary Apply to join a course
// @Tags Enrollments
// @Produce json
// @Param id path int true "Course ID"
// @Success 201 {object} response.Envelope
// @Router /courses/{id}/applications [post]
func (h *EnrollmentHandler) Apply(c *gin.Context) {
	courseID, err := parseID(c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	enrollment, err := h.enrollments.Apply(c.Request.Context(), actorFromContext(c), courseID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, enrollment)
}

// Vote godoc
// @Summary Record a course teacher's vote on an application
// @Tags Enrollments
// @Accept json
// @Produce json
// @Param id path int true "Course ID"
// @Param student path string true "Applicant account"
// @Param payload body dto.VoteRequest true "Vote payload"
// @Success 200 {object} response.Envelope
// @Router /courses/{id}/applications/{student}/votes [post]
func (h *EnrollmentHandler) Vote(c *gin.Context) {
	courseID, err := parseID(c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	var req dto.VoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid vote payload"))
		return
	}
	if req.Support == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "support is required"))
		return
	}
	student := models.Account(c.Param("student"))
	enrollment, err := h.enrollments.VoteOnApplication(c.Request.Context(), actorFromContext(c), courseID, student, *req.Support)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, enrollment, nil)
}

// Confirm godoc
// @Summary Confirm an accepted application by paying the course fee
// @Tags Enrollments
// @Produce json
// @Param id path int true "Course ID"
// @Success 200 {object} response.Envelope
// @Router /courses/{id}/enrollment/confirm [post]
func (h *EnrollmentHandler) Confirm(c *gin.Context) {
	courseID, err := parseID(c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	enrollment, err := h.enrollments.Confirm(c.Request.Context(), actorFromContext(c), courseID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, enrollment, nil)
}

// GetApplication godoc
// @Summary Get one student's application state on a course
// @Tags Enrollments
// @Produce json
// @Param id path int true "Course ID"
// @Param student path string true "Applicant account"
// @Success 200 {object} response.Envelope
// @Router /courses/{id}/applications/{student} [get]
func (h *EnrollmentHandler) GetApplication(c *gin.Context) {
	courseID, err := parseID(c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	application, err := h.enrollments.GetApplication(c.Request.Context(), courseID, models.Account(c.Param("student")))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, application, nil)
}

// Complete godoc
// @Summary Mark a student's course as completed and release teacher shares
// @Tags Enrollments
// @Produce json
// @Param id path int true "Course ID"
// @Param student path string true "Student account"
// @Success 200 {object} response.Envelope
// @Router /courses/{id}/students/{student}/complete [post]
func (h *EnrollmentHandler) Complete(c *gin.Context) {
	courseID, err := parseID(c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	student := models.Account(c.Param("student"))
	completion, err := h.enrollments.Complete(c.Request.Context(), actorFromContext(c), courseID, student)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, completion, nil)
}

// List godoc
// @Summary List enrollments
// @Tags Enrollments
// @Produce json
// @Param courseId query int false "Filter by course"
// @Param student query string false "Filter by student"
// @Param enrolled query bool false "Filter by paid state"
// @Param completed query bool false "Filter by completion"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /enrollments [get]
func (h *EnrollmentHandler) List(c *gin.Context) {
	var filter models.EnrollmentFilter
	if raw := c.Query("courseId"); raw != "" {
		courseID, err := parseID(raw)
		if err != nil {
			response.Error(c, err)
			return
		}
		filter.CourseID = courseID
	}
	filter.Student = models.Account(c.Query("student"))
	if raw := c.Query("enrolled"); raw != "" {
		enrolled := raw == "true"
		filter.Enrolled = &enrolled
	}
	if raw := c.Query("completed"); raw != "" {
		completed := raw == "true"
		filter.Completed = &completed
	}
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("limit", "20")); err == nil {
		filter.PageSize = size
	}
	filter.SortBy = c.Query("sortBy")
	filter.SortOrder = c.Query("sortOrder")

	enrollments, pagination, err := h.enrollments.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, enrollments, pagination)
}
