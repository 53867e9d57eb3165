package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"mintoons/internal/database"
	"mintoons/internal/models"
)

// CompetitionRepository handles competitions and their submissions
type CompetitionRepository struct {
	db database.DBTX
}

// NewCompetitionRepository creates a new competition repository
func NewCompetitionRepository(db database.DBTX) *CompetitionRepository {
	return &CompetitionRepository{db: db}
}

// WithTx returns a copy of the repository bound to tx
func (r *CompetitionRepository) WithTx(tx *database.Tx) *CompetitionRepository {
	return &CompetitionRepository{db: tx}
}

const competitionColumns = `id, month, title, theme, phase, submission_start, submission_end, judging_end,
	total_submissions, total_participants, is_active, created_at, updated_at`

func scanCompetition(row scanner) (*models.Competition, error) {
	c := &models.Competition{}
	err := row.Scan(&c.ID, &c.Month, &c.Title, &c.Theme, &c.Phase, &c.SubmissionStart, &c.SubmissionEnd,
		&c.JudgingEnd, &c.TotalSubmissions, &c.TotalParticipants, &c.IsActive, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return c, nil
}

// Create inserts c as the only active competition
func (r *CompetitionRepository) Create(ctx context.Context, c *models.Competition) error {
	now := time.Now().UTC()
	if _, err := r.db.ExecContext(ctx, "UPDATE competitions SET is_active = ?, updated_at = ? WHERE is_active = ?", false, now, true); err != nil {
		return fmt.Errorf("failed to deactivate competitions: %w", err)
	}

	query := `
		INSERT INTO competitions (month, title, theme, phase, submission_start, submission_end, judging_end,
			is_active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	id, err := r.db.ExecReturningID(ctx, query, c.Month, c.Title, c.Theme, c.Phase,
		c.SubmissionStart.UTC(), c.SubmissionEnd.UTC(), c.JudgingEnd.UTC(), true, now, now)
	if err != nil {
		if mapped := mapError(r.db, err); errors.Is(mapped, ErrDuplicate) {
			return mapped
		}
		return fmt.Errorf("failed to create competition: %w", err)
	}

	c.ID = id
	c.IsActive = true
	c.CreatedAt = now
	c.UpdatedAt = now
	return nil
}

func (r *CompetitionRepository) getOne(ctx context.Context, where string, args ...interface{}) (*models.Competition, error) {
	row := r.db.QueryRowContext(ctx, "SELECT "+competitionColumns+" FROM competitions WHERE "+where, args...)
	c, err := scanCompetition(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get competition: %w", err)
	}
	return c, nil
}

// GetActive returns the competition that drives "current" queries, or nil
func (r *CompetitionRepository) GetActive(ctx context.Context) (*models.Competition, error) {
	return r.getOne(ctx, "is_active = ? ORDER BY id DESC LIMIT 1", true)
}

// GetByID retrieves a competition by ID
func (r *CompetitionRepository) GetByID(ctx context.Context, id int64) (*models.Competition, error) {
	return r.getOne(ctx, "id = ?", id)
}

// ListByPhase returns competitions in phase, newest month first
func (r *CompetitionRepository) ListByPhase(ctx context.Context, phase models.CompetitionPhase, limit int) ([]models.Competition, error) {
	limit, _ = pageOffset(1, limit)
	query := "SELECT " + competitionColumns + " FROM competitions WHERE phase = ? ORDER BY month DESC LIMIT ?"
	rows, err := r.db.QueryContext(ctx, query, phase, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list competitions: %w", err)
	}
	defer rows.Close()

	competitions := []models.Competition{}
	for rows.Next() {
		c, err := scanCompetition(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan competition: %w", err)
		}
		competitions = append(competitions, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list competitions: %w", err)
	}
	return competitions, nil
}

// UpdatePhase moves a competition from one phase to the next. It reports
// false when the competition was no longer in from.
func (r *CompetitionRepository) UpdatePhase(ctx context.Context, id int64, from, to models.CompetitionPhase) (bool, error) {
	query := "UPDATE competitions SET phase = ?, updated_at = ? WHERE id = ? AND phase = ?"
	result, err := r.db.ExecContext(ctx, query, to, time.Now().UTC(), id, from)
	if err != nil {
		return false, fmt.Errorf("failed to update competition phase: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// IncrementCounters bumps total_submissions and, for a user's first entry,
// total_participants
func (r *CompetitionRepository) IncrementCounters(ctx context.Context, id int64, newParticipant bool) error {
	participants := 0
	if newParticipant {
		participants = 1
	}
	query := `UPDATE competitions SET total_submissions = total_submissions + 1,
		total_participants = total_participants + ?, updated_at = ? WHERE id = ?`
	if _, err := r.db.ExecContext(ctx, query, participants, time.Now().UTC(), id); err != nil {
		return fmt.Errorf("failed to update competition counters: %w", err)
	}
	return nil
}
