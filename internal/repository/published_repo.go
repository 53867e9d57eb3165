package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"mintoons/internal/database"
	"mintoons/internal/models"
)

// PublishedRepository handles the public story gallery
type PublishedRepository struct {
	db database.DBTX
}

// NewPublishedRepository creates a new published story repository
func NewPublishedRepository(db database.DBTX) *PublishedRepository {
	return &PublishedRepository{db: db}
}

// WithTx returns a copy of the repository bound to tx
func (r *PublishedRepository) WithTx(tx *database.Tx) *PublishedRepository {
	return &PublishedRepository{db: tx}
}

const publishedColumns = `id, session_id, child_id, author_pen_name, title, content, elements, word_count,
	overall_score, grammar_score, creativity_score, published_at`

func scanPublished(row scanner) (*models.PublishedStory, error) {
	p := &models.PublishedStory{}
	var (
		elements                     string
		overall, grammar, creativity sql.NullInt64
	)
	err := row.Scan(&p.ID, &p.SessionID, &p.ChildID, &p.AuthorPenName, &p.Title, &p.Content, &elements,
		&p.WordCount, &overall, &grammar, &creativity, &p.PublishedAt)
	if err != nil {
		return nil, err
	}
	if elements != "" {
		if err := json.Unmarshal([]byte(elements), &p.Elements); err != nil {
			return nil, fmt.Errorf("failed to decode story elements: %w", err)
		}
	}
	p.OverallScore = nullableInt(overall)
	p.GrammarScore = nullableInt(grammar)
	p.CreativityScore = nullableInt(creativity)
	return p, nil
}

func nullableInt(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	i := int(v.Int64)
	return &i
}

// Insert stores the snapshot; a second snapshot of one session returns ErrDuplicate
func (r *PublishedRepository) Insert(ctx context.Context, p *models.PublishedStory) error {
	elements, err := json.Marshal(p.Elements)
	if err != nil {
		return fmt.Errorf("failed to encode story elements: %w", err)
	}

	query := `
		INSERT INTO published_stories (session_id, child_id, author_pen_name, title, content, elements, word_count,
			overall_score, grammar_score, creativity_score, published_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	id, err := r.db.ExecReturningID(ctx, query, p.SessionID, p.ChildID, p.AuthorPenName, p.Title, p.Content,
		string(elements), p.WordCount, p.OverallScore, p.GrammarScore, p.CreativityScore, p.PublishedAt.UTC())
	if err != nil {
		if mapped := mapError(r.db, err); errors.Is(mapped, ErrDuplicate) {
			return mapped
		}
		return fmt.Errorf("failed to publish story: %w", err)
	}
	p.ID = id
	return nil
}

// GetBySession returns the snapshot for a session, or nil
func (r *PublishedRepository) GetBySession(ctx context.Context, sessionID int64) (*models.PublishedStory, error) {
	row := r.db.QueryRowContext(ctx, "SELECT "+publishedColumns+" FROM published_stories WHERE session_id = ?", sessionID)
	p, err := scanPublished(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get published story: %w", err)
	}
	return p, nil
}

// galleryVisible hides snapshots whose story is waiting for admin review
const galleryVisible = " WHERE session_id NOT IN (SELECT id FROM story_sessions WHERE status = ?)"

// List returns a page of published stories, newest first, and the total count.
// Stories currently flagged are left out.
func (r *PublishedRepository) List(ctx context.Context, page, limit int) ([]models.PublishedStory, int, error) {
	var total int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM published_stories"+galleryVisible, models.StatusFlagged).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count published stories: %w", err)
	}

	limit, offset := pageOffset(page, limit)
	query := "SELECT " + publishedColumns + " FROM published_stories" + galleryVisible + " ORDER BY published_at DESC, id DESC LIMIT ? OFFSET ?"
	rows, err := r.db.QueryContext(ctx, query, models.StatusFlagged, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list published stories: %w", err)
	}
	defer rows.Close()

	stories := []models.PublishedStory{}
	for rows.Next() {
		p, err := scanPublished(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan published story: %w", err)
		}
		stories = append(stories, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to list published stories: %w", err)
	}
	return stories, total, nil
}
