package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/edu-collective-api/internal/models"
)

// CourseRepository handles persistence of the course catalog.
type CourseRepository struct {
	db *sqlx.DB
}

// NewCourseRepository constructs the repository.
func NewCourseRepository(db *sqlx.DB) *CourseRepository {
	return &CourseRepository{db: db}
}

// Create persists a course together with its teacher share split.
func (r *CourseRepository) Create(ctx context.Context, course *models.Course, teachers []models.CourseTeacher) (err error) {
	if course.CreatedAt.IsZero() {
		course.CreatedAt = time.Now().UTC()
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin course transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	const insertCourse = `INSERT INTO courses (title, price, active, created_by, created_at)
        VALUES ($1, $2, TRUE, $3, $4) RETURNING id`
	if err = tx.QueryRowxContext(ctx, insertCourse,
		course.Title, course.Price, course.CreatedBy, course.CreatedAt,
	).Scan(&course.ID); err != nil {
		return fmt.Errorf("create course: %w", err)
	}
	course.Active = true

	const insertTeacher = `INSERT INTO course_teachers (course_id, teacher, share_bp, position) VALUES ($1, $2, $3, $4)`
	for i := range teachers {
		teachers[i].CourseID = course.ID
		teachers[i].Position = i
		if _, err = tx.ExecContext(ctx, insertTeacher, course.ID, teachers[i].Teacher, teachers[i].ShareBp, i); err != nil {
			return fmt.Errorf("create course teacher: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit course: %w", err)
	}
	return nil
}

// FindByID returns a course by its ID.
func (r *CourseRepository) FindByID(ctx context.Context, id int64) (*models.Course, error) {
	const query = `SELECT id, title, price, active, created_by, created_at, removed_at FROM courses WHERE id = $1`
	var course models.Course
	if err := r.db.GetContext(ctx, &course, query, id); err != nil {
		return nil, err
	}
	return &course, nil
}

// TeachersOf returns the course's teachers in share order.
func (r *CourseRepository) TeachersOf(ctx context.Context, courseID int64) ([]models.CourseTeacher, error) {
	const query = `SELECT course_id, teacher, share_bp, position FROM course_teachers WHERE course_id = $1 ORDER BY position ASC`
	var teachers []models.CourseTeacher
	if err := r.db.SelectContext(ctx, &teachers, query, courseID); err != nil {
		return nil, fmt.Errorf("list course teachers: %w", err)
	}
	return teachers, nil
}

// FindDetail returns a course with its teacher share split.
func (r *CourseRepository) FindDetail(ctx context.Context, id int64) (*models.CourseDetail, error) {
	course, err := r.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	teachers, err := r.TeachersOf(ctx, id)
	if err != nil {
		return nil, err
	}
	return &models.CourseDetail{Course: *course, Teachers: teachers}, nil
}

// List returns courses based on filters with total count. Teacher
// splits are attached per page item.
func (r *CourseRepository) List(ctx context.Context, filter models.CourseFilter) ([]models.CourseDetail, int, error) {
	baseQuery := `FROM courses c WHERE 1=1`
	var conditions []string
	var args []interface{}

	if filter.Active != nil {
		conditions = append(conditions, fmt.Sprintf("c.active = $%d", len(args)+1))
		args = append(args, *filter.Active)
	}
	if filter.Teacher != "" {
		conditions = append(conditions, fmt.Sprintf("EXISTS (SELECT 1 FROM course_teachers ct WHERE ct.course_id = c.id AND ct.teacher = $%d)", len(args)+1))
		args = append(args, filter.Teacher)
	}
	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("LOWER(c.title) LIKE $%d", len(args)+1))
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
	}

	if len(conditions) > 0 {
		baseQuery += " AND " + strings.Join(conditions, " AND ")
	}

	allowedSorts := map[string]string{
		"id":         "c.id",
		"title":      "c.title",
		"price":      "c.price",
		"created_at": "c.created_at",
	}
	sortBy := allowedSorts[filter.SortBy]
	if sortBy == "" {
		sortBy = "c.id"
	}
	sortOrder := strings.ToUpper(filter.SortOrder)
	if sortOrder != "ASC" && sortOrder != "DESC" {
		sortOrder = "DESC"
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	listQuery := fmt.Sprintf(`SELECT c.id, c.title, c.price, c.active, c.created_by, c.created_at, c.removed_at
        %s ORDER BY %s %s LIMIT %d OFFSET %d`, baseQuery, sortBy, sortOrder, pageSize, offset)

	var courses []models.Course
	if err := r.db.SelectContext(ctx, &courses, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list courses: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", baseQuery)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count courses: %w", err)
	}

	details, err := r.attachTeachers(ctx, courses)
	if err != nil {
		return nil, 0, err
	}
	return details, total, nil
}

func (r *CourseRepository) attachTeachers(ctx context.Context, courses []models.Course) ([]models.CourseDetail, error) {
	details := make([]models.CourseDetail, len(courses))
	if len(courses) == 0 {
		return details, nil
	}

	placeholders := make([]string, len(courses))
	args := make([]interface{}, len(courses))
	for i, course := range courses {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		args[i] = course.ID
		details[i] = models.CourseDetail{Course: course}
	}

	query := fmt.Sprintf(`SELECT course_id, teacher, share_bp, position FROM course_teachers
        WHERE course_id IN (%s) ORDER BY course_id, position ASC`, strings.Join(placeholders, ","))
	var teachers []models.CourseTeacher
	if err := r.db.SelectContext(ctx, &teachers, query, args...); err != nil {
		return nil, fmt.Errorf("list course teachers: %w", err)
	}

	byCourse := make(map[int64][]models.CourseTeacher, len(courses))
	for _, teacher := range teachers {
		byCourse[teacher.CourseID] = append(byCourse[teacher.CourseID], teacher)
	}
	for i := range details {
		details[i].Teachers = byCourse[details[i].ID]
	}
	return details, nil
}

// SoftRemove marks a course inactive keeping its share data. It
// reports false when the course was absent or already removed.
func (r *CourseRepository) SoftRemove(ctx context.Context, id int64, at time.Time) (bool, error) {
	const query = `UPDATE courses SET active = FALSE, removed_at = $2 WHERE id = $1 AND active = TRUE`
	res, err := r.db.ExecContext(ctx, query, id, at)
	if err != nil {
		return false, fmt.Errorf("remove course: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("remove course: %w", err)
	}
	return affected == 1, nil
}

// CountActive returns the number of catalog courses still offered.
func (r *CourseRepository) CountActive(ctx context.Context) (int, error) {
	const query = `SELECT COUNT(*) FROM courses WHERE active = TRUE`
	var total int
	if err := r.db.GetContext(ctx, &total, query); err != nil {
		return 0, fmt.Errorf("count active courses: %w", err)
	}
	return total, nil
}
