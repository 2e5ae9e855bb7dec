package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/edu-collective-api/internal/models"
)

// EnrollmentRepository handles persistence of enrollment requests and
// the teacher committee votes on them.
type EnrollmentRepository struct {
	db *sqlx.DB
}

// NewEnrollmentRepository constructs the repository.
func NewEnrollmentRepository(db *sqlx.DB) *EnrollmentRepository {
	return &EnrollmentRepository{db: db}
}

const enrollmentColumns = `course_id, student, votes_for, votes_against, decided, accepted, enrolled, completed, applied_at, decided_at, enrolled_at, completed_at`

// Find returns the enrollment request for a course and student.
func (r *EnrollmentRepository) Find(ctx context.Context, courseID int64, student models.Account) (*models.Enrollment, error) {
	query := fmt.Sprintf(`SELECT %s FROM enrollments WHERE course_id = $1 AND student = $2`, enrollmentColumns)
	var enrollment models.Enrollment
	if err := r.db.GetContext(ctx, &enrollment, query, courseID, student); err != nil {
		return nil, err
	}
	return &enrollment, nil
}

// FindTx locks and returns the enrollment request inside a
// transaction.
func (r *EnrollmentRepository) FindTx(ctx context.Context, exec sqlx.ExtContext, courseID int64, student models.Account) (*models.Enrollment, error) {
	query := fmt.Sprintf(`SELECT %s FROM enrollments WHERE course_id = $1 AND student = $2 FOR UPDATE`, enrollmentColumns)
	var enrollment models.Enrollment
	if err := sqlx.GetContext(ctx, exec, &enrollment, query, courseID, student); err != nil {
		return nil, err
	}
	return &enrollment, nil
}

// CreateOrReset opens a fresh request. Re-applying after a decided
// rejection clears the tallies and the committee's recorded votes.
func (r *EnrollmentRepository) CreateOrReset(ctx context.Context, courseID int64, student models.Account, at time.Time) (err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin enrollment transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	const clearVotes = `DELETE FROM enrollment_votes WHERE course_id = $1 AND student = $2`
	if _, err = tx.ExecContext(ctx, clearVotes, courseID, student); err != nil {
		return fmt.Errorf("clear enrollment votes: %w", err)
	}

	const upsert = `INSERT INTO enrollments (course_id, student, applied_at)
        VALUES ($1, $2, $3)
        ON CONFLICT (course_id, student) DO UPDATE
        SET votes_for = 0, votes_against = 0, decided = FALSE, accepted = FALSE,
            applied_at = EXCLUDED.applied_at, decided_at = NULL`
	if _, err = tx.ExecContext(ctx, upsert, courseID, student, at); err != nil {
		return fmt.Errorf("create enrollment request: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit enrollment request: %w", err)
	}
	return nil
}

// InsertVote records a committee vote inside a transaction. It
// reports false when the teacher already voted on this request.
func (r *EnrollmentRepository) InsertVote(ctx context.Context, exec sqlx.ExtContext, vote models.EnrollmentVote) (bool, error) {
	const query = `INSERT INTO enrollment_votes (course_id, student, teacher, support, voted_at)
        VALUES ($1, $2, $3, $4, $5) ON CONFLICT (course_id, student, teacher) DO NOTHING`
	res, err := exec.ExecContext(ctx, query, vote.CourseID, vote.Student, vote.Teacher, vote.Support, vote.VotedAt)
	if err != nil {
		return false, fmt.Errorf("insert enrollment vote: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("insert enrollment vote: %w", err)
	}
	return affected == 1, nil
}

// IncrementTally bumps the vote counters inside a transaction.
func (r *EnrollmentRepository) IncrementTally(ctx context.Context, exec sqlx.ExtContext, courseID int64, student models.Account, support bool) error {
	query := `UPDATE enrollments SET votes_against = votes_against + 1 WHERE course_id = $1 AND student = $2`
	if support {
		query = `UPDATE enrollments SET votes_for = votes_for + 1 WHERE course_id = $1 AND student = $2`
	}
	if _, err := exec.ExecContext(ctx, query, courseID, student); err != nil {
		return fmt.Errorf("update enrollment tally: %w", err)
	}
	return nil
}

// Decide stores the committee outcome inside a transaction.
func (r *EnrollmentRepository) Decide(ctx context.Context, exec sqlx.ExtContext, courseID int64, student models.Account, accepted bool, at time.Time) error {
	const query = `UPDATE enrollments SET decided = TRUE, accepted = $3, decided_at = $4 WHERE course_id = $1 AND student = $2`
	if _, err := exec.ExecContext(ctx, query, courseID, student, accepted, at); err != nil {
		return fmt.Errorf("decide enrollment: %w", err)
	}
	return nil
}

// MarkEnrolled flips the request to enrolled inside a transaction. It
// reports false unless the request was accepted and not yet enrolled.
func (r *EnrollmentRepository) MarkEnrolled(ctx context.Context, exec sqlx.ExtContext, courseID int64, student models.Account, at time.Time) (bool, error) {
	const query = `UPDATE enrollments SET enrolled = TRUE, enrolled_at = $3
        WHERE course_id = $1 AND student = $2 AND decided = TRUE AND accepted = TRUE AND enrolled = FALSE`
	res, err := exec.ExecContext(ctx, query, courseID, student, at)
	if err != nil {
		return false, fmt.Errorf("mark enrolled: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("mark enrolled: %w", err)
	}
	return affected == 1, nil
}

// MarkCompleted flips the request to completed inside a transaction.
// It reports false unless the student was enrolled and not completed.
func (r *EnrollmentRepository) MarkCompleted(ctx context.Context, exec sqlx.ExtContext, courseID int64, student models.Account, at time.Time) (bool, error) {
	const query = `UPDATE enrollments SET completed = TRUE, completed_at = $3
        WHERE course_id = $1 AND student = $2 AND enrolled = TRUE AND completed = FALSE`
	res, err := exec.ExecContext(ctx, query, courseID, student, at)
	if err != nil {
		return false, fmt.Errorf("mark completed: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("mark completed: %w", err)
	}
	return affected == 1, nil
}

// IsEnrolled reports whether the student holds an enrolled request.
func (r *EnrollmentRepository) IsEnrolled(ctx context.Context, courseID int64, student models.Account) (bool, error) {
	const query = `SELECT enrolled FROM enrollments WHERE course_id = $1 AND student = $2`
	var enrolled bool
	if err := r.db.GetContext(ctx, &enrolled, query, courseID, student); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check enrolled: %w", err)
	}
	return enrolled, nil
}

// Votes returns the committee votes recorded for a request.
func (r *EnrollmentRepository) Votes(ctx context.Context, courseID int64, student models.Account) ([]models.EnrollmentVote, error) {
	const query = `SELECT course_id, student, teacher, support, voted_at FROM enrollment_votes
        WHERE course_id = $1 AND student = $2 ORDER BY voted_at ASC`
	var votes []models.EnrollmentVote
	if err := r.db.SelectContext(ctx, &votes, query, courseID, student); err != nil {
		return nil, fmt.Errorf("list enrollment votes: %w", err)
	}
	return votes, nil
}

// List returns enrollment requests filtered by the provided criteria.
func (r *EnrollmentRepository) List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, int, error) {
	base := `FROM enrollments e JOIN courses c ON c.id = e.course_id`
	var conditions []string
	var args []interface{}

	if filter.CourseID != 0 {
		conditions = append(conditions, fmt.Sprintf("e.course_id = $%d", len(args)+1))
		args = append(args, filter.CourseID)
	}
	if filter.Student != "" {
		conditions = append(conditions, fmt.Sprintf("e.student = $%d", len(args)+1))
		args = append(args, filter.Student)
	}
	if filter.Enrolled != nil {
		conditions = append(conditions, fmt.Sprintf("e.enrolled = $%d", len(args)+1))
		args = append(args, *filter.Enrolled)
	}
	if filter.Completed != nil {
		conditions = append(conditions, fmt.Sprintf("e.completed = $%d", len(args)+1))
		args = append(args, *filter.Completed)
	}

	clause := ""
	if len(conditions) > 0 {
		clause = " WHERE " + strings.Join(conditions, " AND ")
	}

	allowedSorts := map[string]string{
		"applied_at":  "e.applied_at",
		"enrolled_at": "e.enrolled_at",
		"course_id":   "e.course_id",
	}
	orderBy := allowedSorts[filter.SortBy]
	if orderBy == "" {
		orderBy = "e.applied_at"
	}
	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "DESC"
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf(`SELECT e.course_id, e.student, e.votes_for, e.votes_against, e.decided, e.accepted,
        e.enrolled, e.completed, e.applied_at, e.decided_at, e.enrolled_at, e.completed_at,
        c.title AS course_title, c.price AS course_price
        %s ORDER BY %s %s LIMIT %d OFFSET %d`, base+clause, orderBy, order, size, offset)

	var enrollments []models.EnrollmentDetail
	if err := r.db.SelectContext(ctx, &enrollments, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list enrollments: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base+clause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count enrollments: %w", err)
	}
	return enrollments, total, nil
}

// CountStates returns open request, enrollment and completion totals.
func (r *EnrollmentRepository) CountStates(ctx context.Context) (open, enrolled, completed int, err error) {
	const query = `SELECT
        COUNT(*) FILTER (WHERE decided = FALSE) AS open,
        COUNT(*) FILTER (WHERE enrolled = TRUE) AS enrolled,
        COUNT(*) FILTER (WHERE completed = TRUE) AS completed
        FROM enrollments`
	row := r.db.QueryRowxContext(ctx, query)
	if err = row.Scan(&open, &enrolled, &completed); err != nil {
		return 0, 0, 0, fmt.Errorf("count enrollment states: %w", err)
	}
	return open, enrolled, completed, nil
}
