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

// ProposalRepository handles persistence of admission proposals and
// their votes.
type ProposalRepository struct {
	db *sqlx.DB
}

// NewProposalRepository constructs the repository.
func NewProposalRepository(db *sqlx.DB) *ProposalRepository {
	return &ProposalRepository{db: db}
}

const proposalColumns = `id, candidate, role_to_add, votes_for, votes_against, start_at, end_at, executed, passed, executed_at, created_by, created_at`

// Create persists a new proposal and fills in its allocated id.
func (r *ProposalRepository) Create(ctx context.Context, proposal *models.Proposal) error {
	if proposal.CreatedAt.IsZero() {
		proposal.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO proposals (candidate, role_to_add, start_at, end_at, created_by, created_at)
        VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`
	if err := r.db.QueryRowxContext(ctx, query,
		proposal.Candidate, proposal.RoleToAdd, proposal.StartAt, proposal.EndAt, proposal.CreatedBy, proposal.CreatedAt,
	).Scan(&proposal.ID); err != nil {
		return fmt.Errorf("create proposal: %w", err)
	}
	return nil
}

// FindByID returns a proposal by its ID.
func (r *ProposalRepository) FindByID(ctx context.Context, id int64) (*models.Proposal, error) {
	query := fmt.Sprintf(`SELECT %s FROM proposals WHERE id = $1`, proposalColumns)
	var proposal models.Proposal
	if err := r.db.GetContext(ctx, &proposal, query, id); err != nil {
		return nil, err
	}
	return &proposal, nil
}

// FindByIDTx locks and returns a proposal inside a transaction.
func (r *ProposalRepository) FindByIDTx(ctx context.Context, exec sqlx.ExtContext, id int64) (*models.Proposal, error) {
	query := fmt.Sprintf(`SELECT %s FROM proposals WHERE id = $1 FOR UPDATE`, proposalColumns)
	var proposal models.Proposal
	if err := sqlx.GetContext(ctx, exec, &proposal, query, id); err != nil {
		return nil, err
	}
	return &proposal, nil
}

// ExistsActive reports whether the candidate has an unexecuted
// proposal whose voting window has not yet elapsed.
func (r *ProposalRepository) ExistsActive(ctx context.Context, candidate models.Account, now time.Time) (bool, error) {
	const query = `SELECT 1 FROM proposals WHERE candidate = $1 AND executed = FALSE AND end_at >= $2 LIMIT 1`
	var exists int
	if err := r.db.GetContext(ctx, &exists, query, candidate, now); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check active proposal: %w", err)
	}
	return true, nil
}

// List returns proposals based on filters with total count.
func (r *ProposalRepository) List(ctx context.Context, filter models.ProposalFilter) ([]models.Proposal, int, error) {
	baseQuery := `FROM proposals WHERE 1=1`
	var conditions []string
	var args []interface{}

	if filter.Candidate != "" {
		conditions = append(conditions, fmt.Sprintf("candidate = $%d", len(args)+1))
		args = append(args, filter.Candidate)
	}
	if filter.Role != models.RoleNone {
		conditions = append(conditions, fmt.Sprintf("role_to_add = $%d", len(args)+1))
		args = append(args, filter.Role)
	}
	if filter.Executed != nil {
		conditions = append(conditions, fmt.Sprintf("executed = $%d", len(args)+1))
		args = append(args, *filter.Executed)
	}

	if len(conditions) > 0 {
		baseQuery += " AND " + strings.Join(conditions, " AND ")
	}

	allowedSorts := map[string]string{
		"id":       "id",
		"start_at": "start_at",
		"end_at":   "end_at",
	}
	sortBy := allowedSorts[filter.SortBy]
	if sortBy == "" {
		sortBy = "id"
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

	listQuery := fmt.Sprintf("SELECT %s %s ORDER BY %s %s LIMIT %d OFFSET %d", proposalColumns, baseQuery, sortBy, sortOrder, pageSize, offset)

	var proposals []models.Proposal
	if err := r.db.SelectContext(ctx, &proposals, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list proposals: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", baseQuery)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count proposals: %w", err)
	}

	return proposals, total, nil
}

// Votes returns the recorded votes for a proposal.
func (r *ProposalRepository) Votes(ctx context.Context, proposalID int64) ([]models.ProposalVote, error) {
	const query = `SELECT proposal_id, voter, support, voted_at FROM proposal_votes WHERE proposal_id = $1 ORDER BY voted_at ASC`
	var votes []models.ProposalVote
	if err := r.db.SelectContext(ctx, &votes, query, proposalID); err != nil {
		return nil, fmt.Errorf("list proposal votes: %w", err)
	}
	return votes, nil
}

// InsertVote records a vote inside a transaction. It reports false
// when the voter already voted on this proposal.
func (r *ProposalRepository) InsertVote(ctx context.Context, exec sqlx.ExtContext, vote models.ProposalVote) (bool, error) {
	const query = `INSERT INTO proposal_votes (proposal_id, voter, support, voted_at)
        VALUES ($1, $2, $3, $4) ON CONFLICT (proposal_id, voter) DO NOTHING`
	res, err := exec.ExecContext(ctx, query, vote.ProposalID, vote.Voter, vote.Support, vote.VotedAt)
	if err != nil {
		return false, fmt.Errorf("insert proposal vote: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("insert proposal vote: %w", err)
	}
	return affected == 1, nil
}

// IncrementTally bumps the vote counters inside a transaction.
func (r *ProposalRepository) IncrementTally(ctx context.Context, exec sqlx.ExtContext, id int64, support bool) error {
	query := `UPDATE proposals SET votes_against = votes_against + 1 WHERE id = $1`
	if support {
		query = `UPDATE proposals SET votes_for = votes_for + 1 WHERE id = $1`
	}
	if _, err := exec.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("update proposal tally: %w", err)
	}
	return nil
}

// MarkExecuted finalizes a proposal inside a transaction. It reports
// false when the proposal was already executed.
func (r *ProposalRepository) MarkExecuted(ctx context.Context, exec sqlx.ExtContext, id int64, passed bool, at time.Time) (bool, error) {
	const query = `UPDATE proposals SET executed = TRUE, passed = $2, executed_at = $3 WHERE id = $1 AND executed = FALSE`
	res, err := exec.ExecContext(ctx, query, id, passed, at)
	if err != nil {
		return false, fmt.Errorf("mark proposal executed: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("mark proposal executed: %w", err)
	}
	return affected == 1, nil
}

// CountActive returns how many proposals are still open for voting.
func (r *ProposalRepository) CountActive(ctx context.Context, now time.Time) (int, error) {
	const query = `SELECT COUNT(*) FROM proposals WHERE executed = FALSE AND end_at >= $1`
	var total int
	if err := r.db.GetContext(ctx, &total, query, now); err != nil {
		return 0, fmt.Errorf("count active proposals: %w", err)
	}
	return total, nil
}
