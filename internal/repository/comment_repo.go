package repository

import (
	"context"
	"fmt"
	"time"

	"mintoons/internal/database"
	"mintoons/internal/models"
)

// CommentRepository handles story comments
type CommentRepository struct {
	db database.DBTX
}

// NewCommentRepository creates a new comment repository
func NewCommentRepository(db database.DBTX) *CommentRepository {
	return &CommentRepository{db: db}
}

// Create inserts a comment
func (r *CommentRepository) Create(ctx context.Context, c *models.StoryComment) error {
	now := time.Now().UTC()
	query := "INSERT INTO story_comments (session_id, author_id, comment_type, content, created_at) VALUES (?, ?, ?, ?, ?)"
	id, err := r.db.ExecReturningID(ctx, query, c.SessionID, c.AuthorID, c.Type, c.Content, now)
	if err != nil {
		return fmt.Errorf("failed to create comment: %w", err)
	}
	c.ID = id
	c.CreatedAt = now
	return nil
}

// ListBySession returns a story's comments, oldest first, with author details
func (r *CommentRepository) ListBySession(ctx context.Context, sessionID int64) ([]models.StoryComment, error) {
	query := `
		SELECT c.id, c.session_id, c.author_id, u.name, u.role, c.comment_type, c.content, c.created_at
		FROM story_comments c
		JOIN users u ON u.id = c.author_id
		WHERE c.session_id = ?
		ORDER BY c.created_at, c.id
	`
	rows, err := r.db.QueryContext(ctx, query, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list comments: %w", err)
	}
	defer rows.Close()

	comments := []models.StoryComment{}
	for rows.Next() {
		var c models.StoryComment
		if err := rows.Scan(&c.ID, &c.SessionID, &c.AuthorID, &c.AuthorName, &c.AuthorRole, &c.Type, &c.Content, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan comment: %w", err)
		}
		comments = append(comments, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list comments: %w", err)
	}
	return comments, nil
}
