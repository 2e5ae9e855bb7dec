package dto

import "github.com/noah-isme/edu-collective-api/internal/models"

// ApplicationResponse pairs an enrollment request with the committee
// votes cast so far.
type ApplicationResponse struct {
	Enrollment models.Enrollment       `json:"enrollment"`
	Votes      []models.EnrollmentVote `json:"votes"`
}

// CompletionResponse reports the payouts made when a course was
// completed for a student.
type CompletionResponse struct {
	CourseID    int64          `json:"courseId"`
	Student     models.Account `json:"student"`
	Distributed int64          `json:"distributed"`
	Residue     int64          `json:"residue"`
	Payouts     []PayoutRecord `json:"payouts"`
}

// PayoutRecord is one outbound transfer within a distribution.
type PayoutRecord struct {
	To     models.Account `json:"to"`
	Amount int64          `json:"amount"`
}
