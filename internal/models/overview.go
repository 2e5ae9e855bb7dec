package models

import "time"

// OverviewCounts aggregates membership and catalog totals.
type OverviewCounts struct {
	BoardMembers    int `db:"board_members" json:"board_members"`
	Teachers        int `db:"teachers" json:"teachers"`
	Students        int `db:"students" json:"students"`
	ActiveCourses   int `db:"active_courses" json:"active_courses"`
	ActiveProposals int `db:"active_proposals" json:"active_proposals"`
	OpenRequests    int `db:"open_requests" json:"open_requests"`
	Enrollments     int `db:"enrollments" json:"enrollments"`
	Completions     int `db:"completions" json:"completions"`
}

// OverviewSnapshot is the aggregated organization view served on the
// overview endpoint and cached between refreshes.
type OverviewSnapshot struct {
	Counts          OverviewCounts `json:"counts"`
	TreasuryBalance int64          `json:"treasury_balance"`
	TreasuryAsset   string         `json:"treasury_asset"`
	GeneratedAt     time.Time      `json:"generated_at"`
}
