package models

import "time"

// Account is an opaque member identity. The empty string is the
// reserved zero account and never maps to a role.
type Account string

// ZeroAccount is the reserved empty identity.
const ZeroAccount Account = ""

// Role represents the single governance role an account may hold.
type Role string

const (
	RoleNone    Role = ""
	RoleBoard   Role = "BOARD"
	RoleTeacher Role = "TEACHER"
	RoleStudent Role = "STUDENT"
)

// ParseRole maps a wire value onto a grantable role.
func ParseRole(s string) (Role, bool) {
	switch Role(s) {
	case RoleBoard, RoleTeacher, RoleStudent:
		return Role(s), true
	}
	return RoleNone, false
}

// ElectorateFor returns the role whose members vote on admissions into
// target. Students vote on Board seats, Teachers on Students, Board on
// Teachers, so no role admits its own candidates.
func ElectorateFor(target Role) Role {
	switch target {
	case RoleBoard:
		return RoleStudent
	case RoleStudent:
		return RoleTeacher
	case RoleTeacher:
		return RoleBoard
	}
	return RoleNone
}

// Member represents an account holding a role in the organization.
type Member struct {
	Account    Account   `db:"account" json:"account"`
	Role       Role      `db:"role" json:"role"`
	GrantedAt  time.Time `db:"granted_at" json:"granted_at"`
	ProposalID *int64    `db:"proposal_id" json:"proposal_id,omitempty"`
}

// MemberFilter captures filtering criteria for listing members.
type MemberFilter struct {
	Role      Role
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}
