package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/edu-collective-api/internal/models"
)

// MemberRepository provides database access for the role registry.
type MemberRepository struct {
	db *sqlx.DB
}

// NewMemberRepository creates a new instance of MemberRepository.
func NewMemberRepository(db *sqlx.DB) *MemberRepository {
	return &MemberRepository{db: db}
}

// RoleOf returns the role held by an account, RoleNone when the
// account is unregistered.
func (r *MemberRepository) RoleOf(ctx context.Context, account models.Account) (models.Role, error) {
	const query = `SELECT role FROM members WHERE account = $1 LIMIT 1`
	var role models.Role
	if err := r.db.GetContext(ctx, &role, query, account); err != nil {
		if err == sql.ErrNoRows {
			return models.RoleNone, nil
		}
		return models.RoleNone, fmt.Errorf("resolve member role: %w", err)
	}
	return role, nil
}

// Find returns a member by account.
func (r *MemberRepository) Find(ctx context.Context, account models.Account) (*models.Member, error) {
	const query = `SELECT account, role, granted_at, proposal_id FROM members WHERE account = $1 LIMIT 1`
	var member models.Member
	if err := r.db.GetContext(ctx, &member, query, account); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find member: %w", err)
	}
	return &member, nil
}

// Members returns the accounts holding a role, oldest grant first.
func (r *MemberRepository) Members(ctx context.Context, role models.Role) ([]models.Account, error) {
	const query = `SELECT account FROM members WHERE role = $1 ORDER BY granted_at ASC, account ASC`
	var accounts []models.Account
	if err := r.db.SelectContext(ctx, &accounts, query, role); err != nil {
		return nil, fmt.Errorf("list role members: %w", err)
	}
	return accounts, nil
}

// List returns members based on filters with total count.
func (r *MemberRepository) List(ctx context.Context, filter models.MemberFilter) ([]models.Member, int, error) {
	baseQuery := `FROM members WHERE 1=1`
	var conditions []string
	var args []interface{}

	if filter.Role != models.RoleNone {
		conditions = append(conditions, fmt.Sprintf("role = $%d", len(args)+1))
		args = append(args, filter.Role)
	}

	if len(conditions) > 0 {
		baseQuery += " AND " + strings.Join(conditions, " AND ")
	}

	sortBy := filter.SortBy
	if sortBy == "" {
		sortBy = "granted_at"
	}
	allowedSorts := map[string]bool{
		"account":    true,
		"role":       true,
		"granted_at": true,
	}
	if !allowedSorts[sortBy] {
		sortBy = "granted_at"
	}

	sortOrder := strings.ToUpper(filter.SortOrder)
	if sortOrder != "ASC" && sortOrder != "DESC" {
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

	listQuery := fmt.Sprintf("SELECT account, role, granted_at, proposal_id %s ORDER BY %s %s LIMIT %d OFFSET %d", baseQuery, sortBy, sortOrder, pageSize, offset)

	var members []models.Member
	if err := r.db.SelectContext(ctx, &members, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list members: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", baseQuery)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count members: %w", err)
	}

	return members, total, nil
}

// CountByRole returns member totals grouped by role.
func (r *MemberRepository) CountByRole(ctx context.Context) (map[models.Role]int, error) {
	const query = `SELECT role, COUNT(*) AS total FROM members GROUP BY role`
	rows, err := r.db.QueryxContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("count members by role: %w", err)
	}
	defer rows.Close()

	counts := make(map[models.Role]int)
	for rows.Next() {
		var role models.Role
		var total int
		if err := rows.Scan(&role, &total); err != nil {
			return nil, fmt.Errorf("scan member count: %w", err)
		}
		counts[role] = total
	}
	return counts, rows.Err()
}

// ExistsAny reports whether the account holds any role.
func (r *MemberRepository) ExistsAny(ctx context.Context, account models.Account) (bool, error) {
	const query = `SELECT 1 FROM members WHERE account = $1 LIMIT 1`
	var exists int
	if err := r.db.GetContext(ctx, &exists, query, account); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check member exists: %w", err)
	}
	return true, nil
}

// Grant inserts a membership row.
func (r *MemberRepository) Grant(ctx context.Context, member *models.Member) error {
	if member.GrantedAt.IsZero() {
		member.GrantedAt = time.Now().UTC()
	}
	const query = `INSERT INTO members (account, role, granted_at, proposal_id) VALUES (:account, :role, :granted_at, :proposal_id)`
	if _, err := r.db.NamedExecContext(ctx, query, member); err != nil {
		return fmt.Errorf("grant role: %w", err)
	}
	return nil
}

// GrantTx inserts a membership row inside an enclosing transaction.
func (r *MemberRepository) GrantTx(ctx context.Context, exec sqlx.ExtContext, member *models.Member) error {
	const query = `INSERT INTO members (account, role, granted_at, proposal_id) VALUES ($1, $2, $3, $4)`
	if _, err := exec.ExecContext(ctx, query, member.Account, member.Role, member.GrantedAt, member.ProposalID); err != nil {
		return fmt.Errorf("grant role: %w", err)
	}
	return nil
}

// ExistsAnyTx is ExistsAny against an enclosing transaction.
func (r *MemberRepository) ExistsAnyTx(ctx context.Context, exec sqlx.ExtContext, account models.Account) (bool, error) {
	const query = `SELECT 1 FROM members WHERE account = $1 LIMIT 1`
	row := exec.QueryRowxContext(ctx, query, account)
	var exists int
	if err := row.Scan(&exists); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check member exists: %w", err)
	}
	return true, nil
}

// CreateAuditLog stores an audit trail entry.
func (r *MemberRepository) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	if log.ID == "" {
		log.ID = uuid.NewString()
	}
	if log.CreatedAt.IsZero() {
		log.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO audit_logs (id, account, action, resource, resource_id, payload, ip_address, user_agent, created_at) VALUES (:id, :account, :action, :resource, :resource_id, :payload, :ip_address, :user_agent, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, log); err != nil {
		return fmt.Errorf("create audit log: %w", err)
	}
	return nil
}
