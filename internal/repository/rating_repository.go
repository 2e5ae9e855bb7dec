package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/edu-collective-api/internal/models"
)

// RatingRepository handles persistence of ratings and the running
// per-teacher aggregates.
type RatingRepository struct {
	db *sqlx.DB
}

// NewRatingRepository constructs the repository.
func NewRatingRepository(db *sqlx.DB) *RatingRepository {
	return &RatingRepository{db: db}
}

// Upsert stores a rating and maintains the teacher's aggregate. A
// first rating adds to both total and count; a re-rating moves the
// total by the delta and leaves count untouched. It returns the
// previous value, zero when the rating was unset.
func (r *RatingRepository) Upsert(ctx context.Context, rating models.Rating) (previous int, err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin rating transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	const selectQuery = `SELECT value FROM ratings WHERE course_id = $1 AND student = $2 AND teacher = $3 FOR UPDATE`
	err = tx.GetContext(ctx, &previous, selectQuery, rating.CourseID, rating.Student, rating.Teacher)
	switch {
	case err == sql.ErrNoRows:
		err = nil
		const insertRating = `INSERT INTO ratings (course_id, student, teacher, value, rated_at) VALUES ($1, $2, $3, $4, $5)`
		if _, err = tx.ExecContext(ctx, insertRating, rating.CourseID, rating.Student, rating.Teacher, rating.Value, rating.RatedAt); err != nil {
			return 0, fmt.Errorf("insert rating: %w", err)
		}
		const upsertStats = `INSERT INTO teacher_rating_stats (teacher, total, count) VALUES ($1, $2, 1)
            ON CONFLICT (teacher) DO UPDATE SET total = teacher_rating_stats.total + EXCLUDED.total, count = teacher_rating_stats.count + 1`
		if _, err = tx.ExecContext(ctx, upsertStats, rating.Teacher, rating.Value); err != nil {
			return 0, fmt.Errorf("update rating stats: %w", err)
		}
	case err != nil:
		return 0, fmt.Errorf("read previous rating: %w", err)
	default:
		const updateRating = `UPDATE ratings SET value = $4, updated_at = $5 WHERE course_id = $1 AND student = $2 AND teacher = $3`
		if _, err = tx.ExecContext(ctx, updateRating, rating.CourseID, rating.Student, rating.Teacher, rating.Value, rating.RatedAt); err != nil {
			return 0, fmt.Errorf("update rating: %w", err)
		}
		const adjustStats = `UPDATE teacher_rating_stats SET total = total + $2 WHERE teacher = $1`
		if _, err = tx.ExecContext(ctx, adjustStats, rating.Teacher, rating.Value-previous); err != nil {
			return 0, fmt.Errorf("adjust rating stats: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit rating: %w", err)
	}
	return previous, nil
}

// ListByCourse returns ratings submitted on a course, optionally
// limited to one student.
func (r *RatingRepository) ListByCourse(ctx context.Context, courseID int64, student models.Account) ([]models.Rating, error) {
	query := `SELECT course_id, student, teacher, value, rated_at, updated_at FROM ratings WHERE course_id = $1`
	args := []interface{}{courseID}
	if student != "" {
		query += " AND student = $2"
		args = append(args, student)
	}
	query += " ORDER BY rated_at ASC"

	var ratings []models.Rating
	if err := r.db.SelectContext(ctx, &ratings, query, args...); err != nil {
		return nil, fmt.Errorf("list ratings: %w", err)
	}
	return ratings, nil
}

// StatsOf returns the aggregate for one teacher. Teachers nobody has
// rated yet get a zero-count aggregate.
func (r *RatingRepository) StatsOf(ctx context.Context, teacher models.Account) (*models.TeacherRatingStats, error) {
	const query = `SELECT teacher, total, count FROM teacher_rating_stats WHERE teacher = $1`
	var stats models.TeacherRatingStats
	if err := r.db.GetContext(ctx, &stats, query, teacher); err != nil {
		if err == sql.ErrNoRows {
			return &models.TeacherRatingStats{Teacher: teacher}, nil
		}
		return nil, fmt.Errorf("read rating stats: %w", err)
	}
	return &stats, nil
}

// StatsFor returns aggregates keyed by teacher for the given
// accounts. Teachers without ratings are absent from the map.
func (r *RatingRepository) StatsFor(ctx context.Context, teachers []models.Account) (map[models.Account]models.TeacherRatingStats, error) {
	stats := make(map[models.Account]models.TeacherRatingStats, len(teachers))
	if len(teachers) == 0 {
		return stats, nil
	}

	placeholders := make([]string, len(teachers))
	args := make([]interface{}, len(teachers))
	for i, teacher := range teachers {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		args[i] = teacher
	}

	query := fmt.Sprintf(`SELECT teacher, total, count FROM teacher_rating_stats WHERE teacher IN (%s)`, strings.Join(placeholders, ","))
	rows, err := r.db.QueryxContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("read rating stats: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var s models.TeacherRatingStats
		if err := rows.StructScan(&s); err != nil {
			return nil, fmt.Errorf("scan rating stats: %w", err)
		}
		stats[s.Teacher] = s
	}
	return stats, rows.Err()
}
