package dto

// CreateCourseRequest captures POST /courses payload. Teachers and
// SharesBp are parallel lists; shares are basis points and must sum
// to exactly 10000.
type CreateCourseRequest struct {
	Title    string   `json:"title" validate:"required,max=200"`
	Price    *int64   `json:"price" validate:"required,gte=0"`
	Teachers []string `json:"teachers"`
	SharesBp []int    `json:"sharesBp"`
}
