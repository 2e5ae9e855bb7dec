package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/edu-collective-api/internal/models"
)

const treasuryEntryColumns = `id, direction, kind, asset, amount, counterparty, course_id, created_by, created_at`

// TreasuryEntryRepository persists journal lines for ledger transfers
// touching the treasury account.
type TreasuryEntryRepository struct {
	db *sqlx.DB
}

// NewTreasuryEntryRepository constructs the repository.
func NewTreasuryEntryRepository(db *sqlx.DB) *TreasuryEntryRepository {
	return &TreasuryEntryRepository{db: db}
}

// Insert records a journal entry outside any transaction.
func (r *TreasuryEntryRepository) Insert(ctx context.Context, entry *models.TreasuryEntry) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO treasury_entries (direction, kind, asset, amount, counterparty, course_id, created_by, created_at)
VALUES (:direction, :kind, :asset, :amount, :counterparty, :course_id, :created_by, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, entry); err != nil {
		return fmt.Errorf("insert treasury entry: %w", err)
	}
	return nil
}

// InsertTx records a journal entry on the caller's transaction so the
// line commits or rolls back together with the movement it documents.
func (r *TreasuryEntryRepository) InsertTx(ctx context.Context, exec sqlx.ExtContext, entry *models.TreasuryEntry) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO treasury_entries (direction, kind, asset, amount, counterparty, course_id, created_by, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	if _, err := exec.ExecContext(ctx, query,
		entry.Direction, entry.Kind, entry.Asset, entry.Amount,
		entry.Counterparty, entry.CourseID, entry.CreatedBy, entry.CreatedAt); err != nil {
		return fmt.Errorf("insert treasury entry: %w", err)
	}
	return nil
}

// List returns journal entries matching the filter with pagination.
func (r *TreasuryEntryRepository) List(ctx context.Context, filter models.TreasuryEntryFilter) ([]models.TreasuryEntry, int, error) {
	conditions := []string{"1=1"}
	args := []interface{}{}

	if filter.Direction != "" {
		conditions = append(conditions, fmt.Sprintf("direction = $%d", len(args)+1))
		args = append(args, filter.Direction)
	}
	if filter.Kind != "" {
		conditions = append(conditions, fmt.Sprintf("kind = $%d", len(args)+1))
		args = append(args, filter.Kind)
	}
	if filter.CourseID > 0 {
		conditions = append(conditions, fmt.Sprintf("course_id = $%d", len(args)+1))
		args = append(args, filter.CourseID)
	}
	if filter.From != nil {
		conditions = append(conditions, fmt.Sprintf("created_at >= $%d", len(args)+1))
		args = append(args, *filter.From)
	}
	if filter.To != nil {
		conditions = append(conditions, fmt.Sprintf("created_at <= $%d", len(args)+1))
		args = append(args, *filter.To)
	}

	where := strings.Join(conditions, " AND ")

	allowedSorts := map[string]string{
		"id":         "id",
		"amount":     "amount",
		"created_at": "created_at",
	}
	sortColumn, ok := allowedSorts[filter.SortBy]
	if !ok {
		sortColumn = "created_at"
	}
	sortOrder := "DESC"
	if strings.EqualFold(filter.SortOrder, "asc") {
		sortOrder = "ASC"
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

	query := fmt.Sprintf(`SELECT %s FROM treasury_entries WHERE %s ORDER BY %s %s LIMIT %d OFFSET %d`,
		treasuryEntryColumns, where, sortColumn, sortOrder, pageSize, offset)

	var entries []models.TreasuryEntry
	if err := r.db.SelectContext(ctx, &entries, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list treasury entries: %w", err)
	}

	countQuery := fmt.Sprintf(`SELECT COUNT(*) FROM treasury_entries WHERE %s`, where)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count treasury entries: %w", err)
	}

	return entries, total, nil
}

// Totals sums entry amounts grouped by direction over the whole journal.
func (r *TreasuryEntryRepository) Totals(ctx context.Context) (map[models.EntryDirection]int64, error) {
	const query = `SELECT direction, COALESCE(SUM(amount), 0) AS total FROM treasury_entries GROUP BY direction`
	rows, err := r.db.QueryxContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("sum treasury entries: %w", err)
	}
	defer rows.Close()

	totals := map[models.EntryDirection]int64{
		models.EntryDirectionIn:  0,
		models.EntryDirectionOut: 0,
	}
	for rows.Next() {
		var direction models.EntryDirection
		var total int64
		if err := rows.Scan(&direction, &total); err != nil {
			return nil, fmt.Errorf("scan treasury totals: %w", err)
		}
		totals[direction] = total
	}
	return totals, rows.Err()
}

// ListBetween streams entries inside a window ordered by creation time,
// used by statement exports.
func (r *TreasuryEntryRepository) ListBetween(ctx context.Context, courseID *int64, from, to *time.Time) ([]models.TreasuryEntry, error) {
	conditions := []string{"1=1"}
	args := []interface{}{}

	if courseID != nil {
		conditions = append(conditions, fmt.Sprintf("course_id = $%d", len(args)+1))
		args = append(args, *courseID)
	}
	if from != nil {
		conditions = append(conditions, fmt.Sprintf("created_at >= $%d", len(args)+1))
		args = append(args, *from)
	}
	if to != nil {
		conditions = append(conditions, fmt.Sprintf("created_at <= $%d", len(args)+1))
		args = append(args, *to)
	}

	query := fmt.Sprintf(`SELECT %s FROM treasury_entries WHERE %s ORDER BY created_at ASC, id ASC`,
		treasuryEntryColumns, strings.Join(conditions, " AND "))

	var entries []models.TreasuryEntry
	if err := r.db.SelectContext(ctx, &entries, query, args...); err != nil {
		return nil, fmt.Errorf("list treasury entries: %w", err)
	}
	return entries, nil
}
