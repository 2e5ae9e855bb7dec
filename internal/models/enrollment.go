package models

import "time"

// Enrollment tracks one student's request on one course through the
// teacher vote, payment and completion stages. Decided flips once the
// teacher committee has voted in full; a decided rejection is the only
// state from which the student may re-apply.
type Enrollment struct {
	CourseID     int64      `db:"course_id" json:"course_id"`
	Student      Account    `db:"student" json:"student"`
	VotesFor     int        `db:"votes_for" json:"votes_for"`
	VotesAgainst int        `db:"votes_against" json:"votes_against"`
	Decided      bool       `db:"decided" json:"decided"`
	Accepted     bool       `db:"accepted" json:"accepted"`
	Enrolled     bool       `db:"enrolled" json:"enrolled"`
	Completed    bool       `db:"completed" json:"completed"`
	AppliedAt    time.Time  `db:"applied_at" json:"applied_at"`
	DecidedAt    *time.Time `db:"decided_at" json:"decided_at,omitempty"`
	EnrolledAt   *time.Time `db:"enrolled_at" json:"enrolled_at,omitempty"`
	CompletedAt  *time.Time `db:"completed_at" json:"completed_at,omitempty"`
}

// EnrollmentVote records one course teacher's vote on one request.
type EnrollmentVote struct {
	CourseID int64     `db:"course_id" json:"course_id"`
	Student  Account   `db:"student" json:"student"`
	Teacher  Account   `db:"teacher" json:"teacher"`
	Support  bool      `db:"support" json:"support"`
	VotedAt  time.Time `db:"voted_at" json:"voted_at"`
}

// EnrollmentDetail enriches an enrollment with course info.
type EnrollmentDetail struct {
	Enrollment
	CourseTitle string `db:"course_title" json:"course_title"`
	CoursePrice int64  `db:"course_price" json:"course_price"`
}

// EnrollmentFilter captures filtering criteria for listing enrollments.
type EnrollmentFilter struct {
	CourseID  int64
	Student   Account
	Enrolled  *bool
	Completed *bool
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}
