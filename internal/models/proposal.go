package models

import "time"

// Proposal is a time-boxed admission vote for one candidate and role.
// A proposal counts as active while it is unexecuted and its voting
// window has not yet elapsed; at most one active proposal may exist
// per candidate.
type Proposal struct {
	ID           int64      `db:"id" json:"id"`
	Candidate    Account    `db:"candidate" json:"candidate"`
	RoleToAdd    Role       `db:"role_to_add" json:"role_to_add"`
	VotesFor     int        `db:"votes_for" json:"votes_for"`
	VotesAgainst int        `db:"votes_against" json:"votes_against"`
	StartAt      time.Time  `db:"start_at" json:"start_at"`
	EndAt        time.Time  `db:"end_at" json:"end_at"`
	Executed     bool       `db:"executed" json:"executed"`
	Passed       bool       `db:"passed" json:"passed"`
	ExecutedAt   *time.Time `db:"executed_at" json:"executed_at,omitempty"`
	CreatedBy    Account    `db:"created_by" json:"created_by"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
}

// ProposalVote records one account's vote on one proposal.
type ProposalVote struct {
	ProposalID int64     `db:"proposal_id" json:"proposal_id"`
	Voter      Account   `db:"voter" json:"voter"`
	Support    bool      `db:"support" json:"support"`
	VotedAt    time.Time `db:"voted_at" json:"voted_at"`
}

// ProposalFilter captures filtering criteria for listing proposals.
type ProposalFilter struct {
	Candidate Account
	Role      Role
	Executed  *bool
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}
