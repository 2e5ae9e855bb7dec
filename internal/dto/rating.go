package dto

// RateRequest captures POST /courses/:id/ratings payload.
type RateRequest struct {
	Teacher string `json:"teacher" validate:"required"`
	Value   int    `json:"value"`
}

// BonusRequest captures POST /courses/:id/bonus payload.
type BonusRequest struct {
	Amount int64 `json:"amount"`
}

// TeacherRatingResponse exposes a teacher's running rating aggregate.
// AverageBp is the mean rating scaled by 100; Weight is the bonus
// weight, which falls back to 100 for unrated teachers.
type TeacherRatingResponse struct {
	Teacher   string `json:"teacher"`
	Total     int64  `json:"total"`
	Count     int64  `json:"count"`
	AverageBp int64  `json:"averageBp"`
	Weight    int64  `json:"weight"`
}

// BonusResponse reports a finished bonus distribution.
type BonusResponse struct {
	CourseID    int64          `json:"courseId"`
	Amount      int64          `json:"amount"`
	Distributed int64          `json:"distributed"`
	Residue     int64          `json:"residue"`
	Payouts     []PayoutRecord `json:"payouts"`
}
