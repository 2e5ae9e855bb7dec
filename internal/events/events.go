package events

import (
	"time"

	"github.com/google/uuid"
)

// Type enumerates the notifications the engine emits. Observers
// reconstruct history from this stream; the engine keeps no separate
// event log beyond entity state.
type Type string

const (
	TypeProposalCreated     Type = "proposal.created"
	TypeProposalVoteCast    Type = "proposal.vote_cast"
	TypeProposalExecuted    Type = "proposal.executed"
	TypeCourseCreated       Type = "course.created"
	TypeCourseRemoved       Type = "course.removed"
	TypeEnrollmentApplied   Type = "enrollment.applied"
	TypeEnrollmentVoteCast  Type = "enrollment.vote_cast"
	TypeEnrollmentDecided   Type = "enrollment.decided"
	TypeEnrollmentConfirmed Type = "enrollment.confirmed"
	TypeCourseCompleted     Type = "course.completed"
	TypeRatingGiven         Type = "rating.given"
	TypeBonusDistributed    Type = "bonus.distributed"
	TypeTreasuryPayout      Type = "treasury.payout"
	TypeTreasuryRescued     Type = "treasury.rescued"
	TypeSettingsUpdated     Type = "settings.updated"
)

// Event is one structured notification carrying the ids an observer
// needs to follow the change.
type Event struct {
	ID         string         `json:"id"`
	Type       Type           `json:"type"`
	OccurredAt time.Time      `json:"occurred_at"`
	Payload    map[string]any `json:"payload,omitempty"`
}

// New stamps a fresh event of the given type.
func New(eventType Type, payload map[string]any) Event {
	return Event{
		ID:         uuid.NewString(),
		Type:       eventType,
		OccurredAt: time.Now().UTC(),
		Payload:    payload,
	}
}
