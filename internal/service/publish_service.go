package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"mintoons/internal/database"
	"mintoons/internal/models"
	"mintoons/internal/payment"
	"mintoons/internal/repository"
	"mintoons/internal/validation"
)

// PublishedPage is one page of the public gallery
type PublishedPage struct {
	Stories []models.PublishedStory `json:"stories"`
	Total   int                     `json:"total"`
	Page    int                     `json:"page"`
	Limit   int                     `json:"limit"`
}

// PublishService publishes completed stories and opens checkout sessions
type PublishService struct {
	db        *database.DB
	stories   *repository.StoryRepository
	published *repository.PublishedRepository
	users     *repository.UserRepository
	checkout  payment.Checkout
	logger    *zap.Logger
}

// NewPublishService creates a new publish service. checkout may be nil when
// payments are not configured.
func NewPublishService(db *database.DB, checkout payment.Checkout, logger *zap.Logger) *PublishService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PublishService{
		db:        db,
		stories:   repository.NewStoryRepository(db),
		published: repository.NewPublishedRepository(db),
		users:     repository.NewUserRepository(db),
		checkout:  checkout,
		logger:    logger.Named("PublishService"),
	}
}

func (s *PublishService) ownedSession(ctx context.Context, childID, sessionID int64) (*models.StorySession, error) {
	session, err := s.stories.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, ErrStoryNotFound
	}
	if !session.IsOwnedBy(childID) {
		return nil, ErrForbidden
	}
	return session, nil
}

// Publish snapshots a completed story into the gallery
func (s *PublishService) Publish(ctx context.Context, childID, sessionID int64) (*models.PublishedStory, error) {
	session, err := s.ownedSession(ctx, childID, sessionID)
	if err != nil {
		return nil, err
	}
	if session.Status != models.StatusCompleted {
		return nil, ErrOnlyCompletedPublish
	}
	if session.IsPublished {
		return nil, ErrAlreadyPublished
	}

	author, err := s.users.GetUserByID(ctx, childID)
	if err != nil {
		return nil, err
	}
	if author == nil {
		return nil, ErrUserNotFound
	}

	turns, err := s.stories.ListTurns(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	content := StoryText(turns)
	snapshot := &models.PublishedStory{
		SessionID:     session.ID,
		ChildID:       childID,
		AuthorPenName: author.DisplayName(),
		Title:         session.Title,
		Content:       content,
		Elements:      session.Elements,
		WordCount:     validation.CountWords(content),
		PublishedAt:   time.Now().UTC(),
	}
	if a := session.Assessment; a != nil {
		overall, grammar, creativity := a.OverallScore(), a.GrammarScore(), a.CreativityScore()
		snapshot.OverallScore = &overall
		snapshot.GrammarScore = &grammar
		snapshot.CreativityScore = &creativity
	}

	err = s.db.WithTx(ctx, func(tx *database.Tx) error {
		if err := s.published.WithTx(tx).Insert(ctx, snapshot); err != nil {
			if errors.Is(err, repository.ErrDuplicate) {
				return ErrAlreadyPublished
			}
			return err
		}
		marked, err := s.stories.WithTx(tx).MarkPublished(ctx, sessionID, snapshot.PublishedAt)
		if err != nil {
			return err
		}
		if !marked {
			return ErrAlreadyPublished
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Story published", zap.Int64("sessionID", sessionID), zap.Int64("publishedID", snapshot.ID))
	return snapshot, nil
}

// CreateCheckout opens a payment session for publishing or buying a story
func (s *PublishService) CreateCheckout(ctx context.Context, userID int64, product payment.ProductType, sessionID int64) (*payment.CheckoutSession, error) {
	if !product.Valid() {
		return nil, invalidInput("productType", "productType must be story_publication or story_purchase")
	}
	if s.checkout == nil {
		return nil, ErrPaymentsUnavailable
	}

	session, err := s.ownedSession(ctx, userID, sessionID)
	if err != nil {
		return nil, err
	}

	switch product {
	case payment.ProductPublication:
		if session.Status != models.StatusCompleted {
			return nil, ErrOnlyCompletedPublish
		}
		if session.IsPublished {
			return nil, ErrAlreadyPublished
		}
	case payment.ProductPurchase:
		if !session.IsPublished {
			return nil, ErrNotPublished
		}
	}

	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}

	checkout, err := s.checkout.CreateCheckout(ctx, payment.CheckoutRequest{
		UserID:        userID,
		SessionID:     sessionID,
		Product:       product,
		StoryTitle:    session.Title,
		CustomerEmail: user.Email,
	})
	if err != nil {
		s.logger.Error("Failed to create checkout session",
			zap.Int64("sessionID", sessionID),
			zap.String("product", string(product)),
			zap.Error(err))
		return nil, ErrPaymentsUnavailable
	}
	return checkout, nil
}

// ListPublished returns a page of the public gallery, newest first
func (s *PublishService) ListPublished(ctx context.Context, page, limit int) (*PublishedPage, error) {
	if page < 1 {
		page = 1
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	stories, total, err := s.published.List(ctx, page, limit)
	if err != nil {
		return nil, err
	}
	return &PublishedPage{Stories: stories, Total: total, Page: page, Limit: limit}, nil
}
