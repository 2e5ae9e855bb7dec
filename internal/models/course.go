package models

import "time"

// Course is a paid offering published by a teacher. Removal is a soft
// delete: the row and its share split are retained with Active=false.
type Course struct {
	ID        int64      `db:"id" json:"id"`
	Title     string     `db:"title" json:"title"`
	Price     int64      `db:"price" json:"price"`
	Active    bool       `db:"active" json:"active"`
	CreatedBy Account    `db:"created_by" json:"created_by"`
	CreatedAt time.Time  `db:"created_at" json:"created_at"`
	RemovedAt *time.Time `db:"removed_at" json:"removed_at,omitempty"`
}

// CourseTeacher is one teacher's revenue share on a course, in basis
// points. Shares across a course sum to exactly 10000.
type CourseTeacher struct {
	CourseID int64   `db:"course_id" json:"course_id"`
	Teacher  Account `db:"teacher" json:"teacher"`
	ShareBp  int     `db:"share_bp" json:"share_bp"`
	Position int     `db:"position" json:"position"`
}

// CourseDetail enriches a course with its ordered teacher list.
type CourseDetail struct {
	Course
	Teachers []CourseTeacher `json:"teachers"`
}

// CourseFilter captures filtering criteria for listing courses.
type CourseFilter struct {
	Teacher   Account
	Active    *bool
	Search    string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}
