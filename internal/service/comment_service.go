package service

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"mintoons/internal/database"
	"mintoons/internal/models"
	"mintoons/internal/repository"
	"mintoons/internal/validation"
)

// CommentService manages mentor feedback on stories
type CommentService struct {
	stories  *repository.StoryRepository
	comments *repository.CommentRepository
	users    *repository.UserRepository
	logger   *zap.Logger
}

// NewCommentService creates a new comment service
func NewCommentService(db *database.DB, logger *zap.Logger) *CommentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CommentService{
		stories:  repository.NewStoryRepository(db),
		comments: repository.NewCommentRepository(db),
		users:    repository.NewUserRepository(db),
		logger:   logger.Named("CommentService"),
	}
}

// authorize loads the story and checks the viewer may see its comments.
// Mentors and admins may see any story; children only their own.
func (s *CommentService) authorize(ctx context.Context, viewer Viewer, sessionID int64) (*models.StorySession, error) {
	session, err := s.stories.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, ErrStoryNotFound
	}
	if !session.IsOwnedBy(viewer.UserID) && !viewer.CanReview() {
		return nil, ErrForbidden
	}
	return session, nil
}

// List returns a story's comments, oldest first
func (s *CommentService) List(ctx context.Context, viewer Viewer, sessionID int64) ([]models.StoryComment, error) {
	if _, err := s.authorize(ctx, viewer, sessionID); err != nil {
		return nil, err
	}
	return s.comments.ListBySession(ctx, sessionID)
}

// Add leaves a comment on a story. An empty type means feedback.
func (s *CommentService) Add(ctx context.Context, viewer Viewer, sessionID int64, commentType models.CommentType, content string) (*models.StoryComment, error) {
	content = strings.TrimSpace(content)
	if err := validation.ValidateCommentContent(content); err != nil {
		return nil, err
	}
	if commentType == "" {
		commentType = models.CommentFeedback
	}
	if !commentType.Valid() {
		return nil, invalidInput("type", "type must be feedback, praise or suggestion")
	}

	if _, err := s.authorize(ctx, viewer, sessionID); err != nil {
		return nil, err
	}

	author, err := s.users.GetUserByID(ctx, viewer.UserID)
	if err != nil {
		return nil, err
	}
	if author == nil {
		return nil, ErrUserNotFound
	}

	comment := &models.StoryComment{
		SessionID:  sessionID,
		AuthorID:   author.ID,
		AuthorName: author.Name,
		AuthorRole: author.Role,
		Type:       commentType,
		Content:    content,
	}
	if err := s.comments.Create(ctx, comment); err != nil {
		return nil, err
	}

	s.logger.Info("Comment added",
		zap.Int64("sessionID", sessionID),
		zap.Int64("authorID", author.ID),
		zap.String("type", string(commentType)))
	return comment, nil
}
