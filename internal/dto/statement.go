package dto

import (
	"time"

	"github.com/noah-isme/edu-collective-api/internal/models"
)

// StatementRequest captures POST /statements payload. Without a course
// id the statement covers all treasury movements in the window.
type StatementRequest struct {
	CourseID *int64                 `json:"courseId,omitempty"`
	From     *time.Time             `json:"from,omitempty"`
	To       *time.Time             `json:"to,omitempty"`
	Format   models.StatementFormat `json:"format"`
}

// StatementJobResponse is returned after enqueueing a statement export.
type StatementJobResponse struct {
	ID     string                 `json:"id"`
	Status models.StatementStatus `json:"status"`
}

// StatementStatusResponse exposes job state metadata.
type StatementStatusResponse struct {
	ID        string                 `json:"id"`
	Status    models.StatementStatus `json:"status"`
	ResultURL *string                `json:"resultUrl,omitempty"`
	Error     *string                `json:"error,omitempty"`
}
