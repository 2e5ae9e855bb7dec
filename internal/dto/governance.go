package dto

import (
	"time"

	"github.com/noah-isme/edu-collective-api/internal/models"
)

// CreateProposalRequest captures POST /proposals payload.
type CreateProposalRequest struct {
	Candidate string `json:"candidate"`
	Role      string `json:"role"`
}

// VoteRequest carries a single yes/no ballot. Support is a pointer so
// an absent field fails validation instead of defaulting to reject.
type VoteRequest struct {
	Support *bool `json:"support" validate:"required"`
}

// ProposalDetailResponse pairs a proposal with its cast votes.
type ProposalDetailResponse struct {
	Proposal models.Proposal       `json:"proposal"`
	Votes    []models.ProposalVote `json:"votes"`
}

// ExecutionResponse reports the outcome of a proposal execution.
// Granted is false when the proposal passed but the candidate had
// gained a role in the meantime.
type ExecutionResponse struct {
	ProposalID int64     `json:"proposalId"`
	Passed     bool      `json:"passed"`
	Granted    bool      `json:"granted"`
	ExecutedAt time.Time `json:"executedAt"`
}
