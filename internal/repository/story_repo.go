package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"mintoons/internal/assessment"
	"mintoons/internal/database"
	"mintoons/internal/models"
)

// StoryRepository handles story sessions and their turns
type StoryRepository struct {
	db database.DBTX
}

// NewStoryRepository creates a new story repository
func NewStoryRepository(db database.DBTX) *StoryRepository {
	return &StoryRepository{db: db}
}

// WithTx returns a copy of the repository bound to tx
func (r *StoryRepository) WithTx(tx *database.Tx) *StoryRepository {
	return &StoryRepository{db: tx}
}

const sessionColumns = `id, child_id, story_number, title, genre, character_name, setting, theme, mood, tone,
	status, total_words, child_words, api_calls_used, max_api_calls, assessment, assessment_attempts,
	is_published, published_at, competition_id, competition_submission_id, completed_at, created_at, updated_at`

func scanSession(row scanner) (*models.StorySession, error) {
	s := &models.StorySession{}
	var (
		rawAssessment sql.NullString
		publishedAt   sql.NullTime
		competitionID sql.NullInt64
		submissionID  sql.NullInt64
		completedAt   sql.NullTime
	)
	err := row.Scan(
		&s.ID,
		&s.ChildID,
		&s.StoryNumber,
		&s.Title,
		&s.Elements.Genre,
		&s.Elements.Character,
		&s.Elements.Setting,
		&s.Elements.Theme,
		&s.Elements.Mood,
		&s.Elements.Tone,
		&s.Status,
		&s.TotalWords,
		&s.ChildWords,
		&s.APICallsUsed,
		&s.MaxAPICalls,
		&rawAssessment,
		&s.AssessmentAttempts,
		&s.IsPublished,
		&publishedAt,
		&competitionID,
		&submissionID,
		&completedAt,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if rawAssessment.Valid && rawAssessment.String != "" {
		var a assessment.Assessment
		if err := json.Unmarshal([]byte(rawAssessment.String), &a); err != nil {
			return nil, fmt.Errorf("failed to decode stored assessment for story %d: %w", s.ID, err)
		}
		s.Assessment = &a
	}
	if publishedAt.Valid {
		s.PublishedAt = &publishedAt.Time
	}
	if competitionID.Valid {
		s.CompetitionID = &competitionID.Int64
	}
	if submissionID.Valid {
		s.CompetitionSubmissionID = &submissionID.Int64
	}
	if completedAt.Valid {
		s.CompletedAt = &completedAt.Time
	}
	return s, nil
}

// NextStoryNumber returns the child's next sequential story number. Call it
// inside the transaction that inserts the session; the unique index on
// (child_id, story_number) rejects a racing insert.
func (r *StoryRepository) NextStoryNumber(ctx context.Context, childID int64) (int, error) {
	var max int
	query := "SELECT COALESCE(MAX(story_number), 0) FROM story_sessions WHERE child_id = ?"
	if err := r.db.QueryRowContext(ctx, query, childID).Scan(&max); err != nil {
		return 0, fmt.Errorf("failed to get next story number: %w", err)
	}
	return max + 1, nil
}

// CreateSession inserts s and fills in its ID and timestamps
func (r *StoryRepository) CreateSession(ctx context.Context, s *models.StorySession) error {
	now := time.Now().UTC()
	query := `
		INSERT INTO story_sessions (child_id, story_number, title, genre, character_name, setting, theme, mood, tone,
			status, max_api_calls, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	id, err := r.db.ExecReturningID(ctx, query, s.ChildID, s.StoryNumber, s.Title,
		s.Elements.Genre, s.Elements.Character, s.Elements.Setting, s.Elements.Theme, s.Elements.Mood, s.Elements.Tone,
		s.Status, s.MaxAPICalls, now, now)
	if err != nil {
		if mapped := mapError(r.db, err); errors.Is(mapped, ErrDuplicate) {
			return mapped
		}
		return fmt.Errorf("failed to create story session: %w", err)
	}

	s.ID = id
	s.CreatedAt = now
	s.UpdatedAt = now
	return nil
}

// GetSession retrieves a session by ID
func (r *StoryRepository) GetSession(ctx context.Context, id int64) (*models.StorySession, error) {
	row := r.db.QueryRowContext(ctx, "SELECT "+sessionColumns+" FROM story_sessions WHERE id = ?", id)
	s, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get story session: %w", err)
	}
	return s, nil
}

// ListSessionsByChild returns a child's stories, newest first
func (r *StoryRepository) ListSessionsByChild(ctx context.Context, childID int64) ([]models.StorySession, error) {
	query := "SELECT " + sessionColumns + " FROM story_sessions WHERE child_id = ? ORDER BY story_number DESC"
	return r.listSessions(ctx, query, childID)
}

// ListSessionsByStatus returns stories in status, oldest update first
func (r *StoryRepository) ListSessionsByStatus(ctx context.Context, status models.StoryStatus) ([]models.StorySession, error) {
	query := "SELECT " + sessionColumns + " FROM story_sessions WHERE status = ? ORDER BY updated_at ASC, id ASC"
	return r.listSessions(ctx, query, status)
}

func (r *StoryRepository) listSessions(ctx context.Context, query string, args ...interface{}) ([]models.StorySession, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list story sessions: %w", err)
	}
	defer rows.Close()

	sessions := []models.StorySession{}
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan story session: %w", err)
		}
		sessions = append(sessions, *s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list story sessions: %w", err)
	}
	return sessions, nil
}

// UpdateStatus moves a session from one status to another. It reports false
// when the session was no longer in from, so concurrent moves can't both win.
func (r *StoryRepository) UpdateStatus(ctx context.Context, id int64, from, to models.StoryStatus) (bool, error) {
	now := time.Now().UTC()
	query := "UPDATE story_sessions SET status = ?, updated_at = ? WHERE id = ? AND status = ?"
	args := []interface{}{to, now, id, from}
	if to == models.StatusCompleted {
		query = "UPDATE story_sessions SET status = ?, updated_at = ?, completed_at = COALESCE(completed_at, ?) WHERE id = ? AND status = ?"
		args = []interface{}{to, now, now, id, from}
	}

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("failed to update story status: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// CountTurns returns how many turns a session has
func (r *StoryRepository) CountTurns(ctx context.Context, sessionID int64) (int, error) {
	var count int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM turns WHERE session_id = ?", sessionID).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count turns: %w", err)
	}
	return count, nil
}

// InsertTurn stores t; a repeated turn number returns ErrDuplicate
func (r *StoryRepository) InsertTurn(ctx context.Context, t *models.Turn) error {
	now := time.Now().UTC()
	query := `
		INSERT INTO turns (session_id, turn_number, child_input, ai_response, child_word_count, ai_word_count, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	id, err := r.db.ExecReturningID(ctx, query, t.SessionID, t.TurnNumber, t.ChildInput, t.AIResponse,
		t.ChildWordCount, t.AIWordCount, now)
	if err != nil {
		if mapped := mapError(r.db, err); errors.Is(mapped, ErrDuplicate) {
			return mapped
		}
		return fmt.Errorf("failed to insert turn: %w", err)
	}
	t.ID = id
	t.CreatedAt = now
	return nil
}

// ListTurns returns a session's turns in order
func (r *StoryRepository) ListTurns(ctx context.Context, sessionID int64) ([]models.Turn, error) {
	query := `
		SELECT id, session_id, turn_number, child_input, ai_response, child_word_count, ai_word_count, created_at
		FROM turns WHERE session_id = ? ORDER BY turn_number
	`
	rows, err := r.db.QueryContext(ctx, query, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list turns: %w", err)
	}
	defer rows.Close()

	turns := []models.Turn{}
	for rows.Next() {
		var t models.Turn
		if err := rows.Scan(&t.ID, &t.SessionID, &t.TurnNumber, &t.ChildInput, &t.AIResponse,
			&t.ChildWordCount, &t.AIWordCount, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan turn: %w", err)
		}
		turns = append(turns, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list turns: %w", err)
	}
	return turns, nil
}

// ConsumeAPICall reserves one AI call for a session. It reports false when
// the session has used its allowance.
func (r *StoryRepository) ConsumeAPICall(ctx context.Context, sessionID int64) (bool, error) {
	query := `UPDATE story_sessions SET api_calls_used = api_calls_used + 1, updated_at = ?
		WHERE id = ? AND api_calls_used < max_api_calls`
	result, err := r.db.ExecContext(ctx, query, time.Now().UTC(), sessionID)
	if err != nil {
		return false, fmt.Errorf("failed to consume api call: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// AddWordCounts adds a turn's words to the session totals
func (r *StoryRepository) AddWordCounts(ctx context.Context, sessionID int64, childWords, aiWords int) error {
	query := `UPDATE story_sessions SET total_words = total_words + ?, child_words = child_words + ?, updated_at = ?
		WHERE id = ?`
	if _, err := r.db.ExecContext(ctx, query, childWords+aiWords, childWords, time.Now().UTC(), sessionID); err != nil {
		return fmt.Errorf("failed to update word counts: %w", err)
	}
	return nil
}

// SaveAssessment stores a and increments assessment_attempts in one guarded
// update. It reports false once the session has used all attempts.
func (r *StoryRepository) SaveAssessment(ctx context.Context, sessionID int64, a *assessment.Assessment) (bool, error) {
	data, err := json.Marshal(a)
	if err != nil {
		return false, fmt.Errorf("failed to encode assessment: %w", err)
	}

	query := `UPDATE story_sessions SET assessment = ?, assessment_attempts = assessment_attempts + 1, updated_at = ?
		WHERE id = ? AND assessment_attempts < ?`
	result, err := r.db.ExecContext(ctx, query, string(data), time.Now().UTC(), sessionID, assessment.MaxAttempts)
	if err != nil {
		return false, fmt.Errorf("failed to save assessment: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// MarkPublished flips the publication flag. It reports false when the story
// was already published.
func (r *StoryRepository) MarkPublished(ctx context.Context, sessionID int64, at time.Time) (bool, error) {
	query := "UPDATE story_sessions SET is_published = ?, published_at = ?, updated_at = ? WHERE id = ? AND is_published = ?"
	result, err := r.db.ExecContext(ctx, query, true, at.UTC(), time.Now().UTC(), sessionID, false)
	if err != nil {
		return false, fmt.Errorf("failed to mark story published: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// LinkSubmission records which competition entry a story became
func (r *StoryRepository) LinkSubmission(ctx context.Context, sessionID, competitionID, submissionID int64) error {
	query := "UPDATE story_sessions SET competition_id = ?, competition_submission_id = ?, updated_at = ? WHERE id = ?"
	if _, err := r.db.ExecContext(ctx, query, competitionID, submissionID, time.Now().UTC(), sessionID); err != nil {
		return fmt.Errorf("failed to link submission: %w", err)
	}
	return nil
}
