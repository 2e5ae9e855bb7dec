package models

import "time"

// EntryDirection marks whether funds moved into or out of the treasury.
type EntryDirection string

const (
	EntryDirectionIn  EntryDirection = "IN"
	EntryDirectionOut EntryDirection = "OUT"
)

// EntryKind categorises treasury movements.
type EntryKind string

const (
	EntryKindEnrollmentFee EntryKind = "ENROLLMENT_FEE"
	EntryKindCourseShare   EntryKind = "COURSE_SHARE"
	EntryKindBonus         EntryKind = "BONUS"
	EntryKindPayout        EntryKind = "PAYOUT"
	EntryKindRescue        EntryKind = "RESCUE"
)

// TreasuryEntry is one journal line for a ledger transfer touching the
// treasury account. The ledger stays the source of truth for balances;
// entries exist for statements and reconciliation.
type TreasuryEntry struct {
	ID           int64          `db:"id" json:"id"`
	Direction    EntryDirection `db:"direction" json:"direction"`
	Kind         EntryKind      `db:"kind" json:"kind"`
	Asset        string         `db:"asset" json:"asset"`
	Amount       int64          `db:"amount" json:"amount"`
	Counterparty Account        `db:"counterparty" json:"counterparty"`
	CourseID     *int64         `db:"course_id" json:"course_id,omitempty"`
	CreatedBy    Account        `db:"created_by" json:"created_by"`
	CreatedAt    time.Time      `db:"created_at" json:"created_at"`
}

// TreasuryEntryFilter captures filtering criteria for listing entries.
type TreasuryEntryFilter struct {
	Direction EntryDirection
	Kind      EntryKind
	CourseID  int64
	From      *time.Time
	To        *time.Time
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}
