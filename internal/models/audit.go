package models

import "time"

// AuditAction constants represent actions to be logged.
const (
	AuditActionProposalCreate  = "PROPOSAL_CREATE"
	AuditActionProposalVote    = "PROPOSAL_VOTE"
	AuditActionProposalExecute = "PROPOSAL_EXECUTE"
	AuditActionCourseCreate    = "COURSE_CREATE"
	AuditActionCourseRemove    = "COURSE_REMOVE"
	AuditActionEnrollmentApply = "ENROLLMENT_APPLY"
	AuditActionEnrollmentVote  = "ENROLLMENT_VOTE"
	AuditActionEnrollmentPay   = "ENROLLMENT_PAY"
	AuditActionCourseComplete  = "COURSE_COMPLETE"
	AuditActionRatingGive      = "RATING_GIVE"
	AuditActionBonusDistribute = "BONUS_DISTRIBUTE"
	AuditActionTreasuryPayout  = "TREASURY_PAYOUT"
	AuditActionTreasuryCollect = "TREASURY_COLLECT"
	AuditActionSettingsUpdate  = "SETTINGS_UPDATE"
	AuditActionFundsRescue     = "FUNDS_RESCUE"
)

// AuditLog represents an audit trail record.
type AuditLog struct {
	ID         string    `db:"id" json:"id"`
	Account    *Account  `db:"account" json:"account,omitempty"`
	Action     string    `db:"action" json:"action"`
	Resource   string    `db:"resource" json:"resource"`
	ResourceID *string   `db:"resource_id" json:"resource_id,omitempty"`
	Payload    []byte    `db:"payload" json:"payload,omitempty"`
	IPAddress  string    `db:"ip_address" json:"ip_address"`
	UserAgent  string    `db:"user_agent" json:"user_agent"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}
