package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"mintoons/internal/models"
)

const submissionColumns = `id, user_id, competition_id, session_id, title, content, word_count, pen_name, status,
	competition_rank, competition_score, is_published, payment_status, submitted_at, judged_at`

func scanSubmission(row scanner) (*models.CompetitionSubmission, error) {
	s := &models.CompetitionSubmission{}
	var (
		sessionID   sql.NullInt64
		rank, score sql.NullInt64
		judgedAt    sql.NullTime
	)
	err := row.Scan(&s.ID, &s.UserID, &s.CompetitionID, &sessionID, &s.Title, &s.Content, &s.WordCount,
		&s.PenName, &s.Status, &rank, &score, &s.IsPublished, &s.PaymentStatus, &s.SubmittedAt, &judgedAt)
	if err != nil {
		return nil, err
	}
	if sessionID.Valid {
		s.SessionID = &sessionID.Int64
	}
	s.CompetitionRank = nullableInt(rank)
	s.CompetitionScore = nullableInt(score)
	if judgedAt.Valid {
		s.JudgedAt = &judgedAt.Time
	}
	return s, nil
}

// CountUserEntries returns how many entries a user has in a competition
func (r *CompetitionRepository) CountUserEntries(ctx context.Context, userID, competitionID int64) (int, error) {
	var count int
	query := "SELECT COUNT(*) FROM competition_submissions WHERE user_id = ? AND competition_id = ?"
	if err := r.db.QueryRowContext(ctx, query, userID, competitionID).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count entries: %w", err)
	}
	return count, nil
}

// HasSubmittedTitle reports whether the user already entered a story with this title
func (r *CompetitionRepository) HasSubmittedTitle(ctx context.Context, userID, competitionID int64, title string) (bool, error) {
	var count int
	query := "SELECT COUNT(*) FROM competition_submissions WHERE user_id = ? AND competition_id = ? AND title = ?"
	if err := r.db.QueryRowContext(ctx, query, userID, competitionID, title).Scan(&count); err != nil {
		return false, fmt.Errorf("failed to check submitted title: %w", err)
	}
	return count > 0, nil
}

// InsertSubmission stores s; a repeated (user, competition, title) returns ErrDuplicate
func (r *CompetitionRepository) InsertSubmission(ctx context.Context, s *models.CompetitionSubmission) error {
	now := time.Now().UTC()
	query := `
		INSERT INTO competition_submissions (user_id, competition_id, session_id, title, content, word_count, pen_name,
			status, is_published, payment_status, submitted_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	id, err := r.db.ExecReturningID(ctx, query, s.UserID, s.CompetitionID, s.SessionID, s.Title, s.Content,
		s.WordCount, s.PenName, s.Status, s.IsPublished, s.PaymentStatus, now)
	if err != nil {
		if mapped := mapError(r.db, err); errors.Is(mapped, ErrDuplicate) {
			return mapped
		}
		return fmt.Errorf("failed to insert submission: %w", err)
	}
	s.ID = id
	s.SubmittedAt = now
	return nil
}

// GetSubmission retrieves a submission by ID
func (r *CompetitionRepository) GetSubmission(ctx context.Context, id int64) (*models.CompetitionSubmission, error) {
	row := r.db.QueryRowContext(ctx, "SELECT "+submissionColumns+" FROM competition_submissions WHERE id = ?", id)
	s, err := scanSubmission(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get submission: %w", err)
	}
	return s, nil
}

// ListUserSubmissions returns a user's entries in a competition
func (r *CompetitionRepository) ListUserSubmissions(ctx context.Context, userID, competitionID int64) ([]models.CompetitionSubmission, error) {
	query := "SELECT " + submissionColumns + " FROM competition_submissions WHERE user_id = ? AND competition_id = ? ORDER BY submitted_at, id"
	return r.listSubmissions(ctx, query, userID, competitionID)
}

// ListSubmissions returns every entry in a competition
func (r *CompetitionRepository) ListSubmissions(ctx context.Context, competitionID int64) ([]models.CompetitionSubmission, error) {
	query := "SELECT " + submissionColumns + " FROM competition_submissions WHERE competition_id = ? ORDER BY submitted_at, id"
	return r.listSubmissions(ctx, query, competitionID)
}

// ListWinners returns ranked winners of a competition, best first
func (r *CompetitionRepository) ListWinners(ctx context.Context, competitionID int64) ([]models.CompetitionSubmission, error) {
	query := "SELECT " + submissionColumns + ` FROM competition_submissions
		WHERE competition_id = ? AND status = ? AND competition_rank IS NOT NULL ORDER BY competition_rank, id`
	return r.listSubmissions(ctx, query, competitionID, models.SubmissionWinner)
}

func (r *CompetitionRepository) listSubmissions(ctx context.Context, query string, args ...interface{}) ([]models.CompetitionSubmission, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list submissions: %w", err)
	}
	defer rows.Close()

	submissions := []models.CompetitionSubmission{}
	for rows.Next() {
		s, err := scanSubmission(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan submission: %w", err)
		}
		submissions = append(submissions, *s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list submissions: %w", err)
	}
	return submissions, nil
}

// MarkSubmittedUnderReview moves every submitted entry of a competition to under_review
func (r *CompetitionRepository) MarkSubmittedUnderReview(ctx context.Context, competitionID int64) (int64, error) {
	query := "UPDATE competition_submissions SET status = ? WHERE competition_id = ? AND status = ?"
	result, err := r.db.ExecContext(ctx, query, models.SubmissionUnderReview, competitionID, models.SubmissionSubmitted)
	if err != nil {
		return 0, fmt.Errorf("failed to mark submissions under review: %w", err)
	}
	return result.RowsAffected()
}

// ApplyResult writes an externally judged rank, score and status onto a
// submission of competitionID. It reports false when the submission isn't
// part of that competition.
func (r *CompetitionRepository) ApplyResult(ctx context.Context, competitionID int64, result models.JudgingResult, status models.SubmissionStatus) (bool, error) {
	query := `UPDATE competition_submissions SET competition_rank = ?, competition_score = ?, status = ?, judged_at = ?
		WHERE id = ? AND competition_id = ?`
	res, err := r.db.ExecContext(ctx, query, result.Rank, result.Score, status, time.Now().UTC(),
		result.SubmissionID, competitionID)
	if err != nil {
		return false, fmt.Errorf("failed to apply judging result: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}
