package models

import "time"

// Rating is one enrolled student's 1..5 score for one teacher on one
// course. Re-rating overwrites the value in place.
type Rating struct {
	CourseID  int64      `db:"course_id" json:"course_id"`
	Student   Account    `db:"student" json:"student"`
	Teacher   Account    `db:"teacher" json:"teacher"`
	Value     int        `db:"value" json:"value"`
	RatedAt   time.Time  `db:"rated_at" json:"rated_at"`
	UpdatedAt *time.Time `db:"updated_at" json:"updated_at,omitempty"`
}

// TeacherRatingStats is the running aggregate per teacher. Total moves
// by the delta on re-rating; Count increments only on first ratings.
type TeacherRatingStats struct {
	Teacher Account `db:"teacher" json:"teacher"`
	Total   int64   `db:"total" json:"total"`
	Count   int64   `db:"count" json:"count"`
}

// Weight returns the bonus weight: average rating scaled by 100, or
// the baseline of 100 for teachers nobody has rated yet.
func (s TeacherRatingStats) Weight() int64 {
	if s.Count > 0 {
		return s.Total * 100 / s.Count
	}
	return 100
}
