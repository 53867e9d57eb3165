package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"mintoons/internal/ai"
	"mintoons/internal/assessment"
	"mintoons/internal/database"
	"mintoons/internal/metrics"
	"mintoons/internal/models"
	"mintoons/internal/repository"
	"mintoons/internal/validation"
)

// storyNumberAttempts bounds retries when two sessions race for a story number
const storyNumberAttempts = 3

// ContentFilter screens child input for disallowed words
type ContentFilter interface {
	ContainsBadWords(ctx context.Context, text string) ([]string, error)
}

// TurnResult is a saved turn with the session it belongs to
type TurnResult struct {
	Turn           *models.Turn         `json:"turn"`
	Session        *models.StorySession `json:"session"`
	TurnsRemaining int                  `json:"turnsRemaining"`
}

// StoryService runs the collaborative writing workflow
type StoryService struct {
	db       *database.DB
	stories  *repository.StoryRepository
	users    *repository.UserRepository
	settings *repository.SettingsRepository
	ai       ai.Collaborator
	filter   ContentFilter
	logger   *zap.Logger
}

// NewStoryService creates a new story service
func NewStoryService(db *database.DB, collaborator ai.Collaborator, filter ContentFilter, logger *zap.Logger) *StoryService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StoryService{
		db:       db,
		stories:  repository.NewStoryRepository(db),
		users:    repository.NewUserRepository(db),
		settings: repository.NewSettingsRepository(db),
		ai:       collaborator,
		filter:   filter,
		logger:   logger.Named("StoryService"),
	}
}

// CreateSession starts a new story for a child within their monthly quota
func (s *StoryService) CreateSession(ctx context.Context, childID int64, title string, elements models.StoryElements) (*models.StorySession, error) {
	title = strings.TrimSpace(title)
	if err := validation.ValidateStoryTitle(title); err != nil {
		return nil, err
	}

	user, err := s.users.GetUserByID(ctx, childID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}

	settings, err := s.settings.GetSiteSettings(ctx)
	if err != nil {
		return nil, err
	}
	if user.StoriesThisMonth >= settings.StoryQuota(user.SubscriptionTier) {
		return nil, ErrStoryQuotaReached
	}

	session := &models.StorySession{
		ChildID:     childID,
		Title:       title,
		Elements:    trimElements(elements),
		Status:      models.StatusActive,
		MaxAPICalls: settings.MaxAPICallsPerStory,
	}

	for attempt := 1; ; attempt++ {
		err = s.db.WithTx(ctx, func(tx *database.Tx) error {
			stories := s.stories.WithTx(tx)
			number, err := stories.NextStoryNumber(ctx, childID)
			if err != nil {
				return err
			}
			session.StoryNumber = number
			if err := stories.CreateSession(ctx, session); err != nil {
				return err
			}
			return s.users.WithTx(tx).IncrementStoryCount(ctx, childID)
		})
		if !errors.Is(err, repository.ErrDuplicate) || attempt == storyNumberAttempts {
			break
		}
		s.logger.Debug("Story number taken, retrying", zap.Int64("childID", childID), zap.Int("attempt", attempt))
	}
	if err != nil {
		return nil, err
	}

	metrics.StoriesCreatedTotal.Inc()
	s.logger.Info("Story session created",
		zap.Int64("sessionID", session.ID),
		zap.Int64("childID", childID),
		zap.Int("storyNumber", session.StoryNumber))
	return session, nil
}

func trimElements(e models.StoryElements) models.StoryElements {
	return models.StoryElements{
		Genre:     strings.TrimSpace(e.Genre),
		Character: strings.TrimSpace(e.Character),
		Setting:   strings.TrimSpace(e.Setting),
		Theme:     strings.TrimSpace(e.Theme),
		Mood:      strings.TrimSpace(e.Mood),
		Tone:      strings.TrimSpace(e.Tone),
	}
}

// ownedSession loads a session the child owns
func (s *StoryService) ownedSession(ctx context.Context, childID, sessionID int64) (*models.StorySession, error) {
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

// AddTurn screens the child's text, asks the AI co-author to continue and
// stores the exchange as the next turn
func (s *StoryService) AddTurn(ctx context.Context, childID, sessionID int64, childInput string) (*TurnResult, error) {
	childInput = strings.TrimSpace(childInput)
	if err := validation.ValidateTurnInput(childInput); err != nil {
		return nil, err
	}

	session, err := s.ownedSession(ctx, childID, sessionID)
	if err != nil {
		return nil, err
	}
	if session.Status != models.StatusActive {
		return nil, ErrStoryNotActive
	}

	turns, err := s.stories.ListTurns(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if len(turns) >= models.MaxTurns {
		return nil, ErrTurnLimitReached
	}
	if session.APICallsUsed >= session.MaxAPICalls {
		return nil, ErrAPICallLimitReached
	}

	log := s.logger.With(zap.Int64("sessionID", sessionID), zap.Int("turn", len(turns)+1))

	matches, err := s.filter.ContainsBadWords(ctx, childInput)
	if err != nil {
		return nil, err
	}
	if len(matches) > 0 {
		log.Warn("Child input failed moderation", zap.Int("matches", len(matches)))
		if err := s.transition(ctx, session, models.StatusFlagged, models.ActorSystem); err != nil {
			return nil, err
		}
		metrics.StoriesFlaggedTotal.Inc()
		return nil, ErrInappropriateContent
	}

	reserved, err := s.stories.ConsumeAPICall(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if !reserved {
		return nil, ErrAPICallLimitReached
	}

	reply, err := s.ai.ContinueStory(ctx, ai.TurnPrompt{
		Title:      session.Title,
		Elements:   session.Elements,
		PriorTurns: turns,
		ChildInput: childInput,
		TurnNumber: len(turns) + 1,
		MaxTurns:   models.MaxTurns,
	})
	if err != nil {
		log.Error("AI co-author failed", zap.Error(err))
		return nil, ErrAIUnavailable
	}

	turn := &models.Turn{
		SessionID:      sessionID,
		TurnNumber:     len(turns) + 1,
		ChildInput:     childInput,
		AIResponse:     reply,
		ChildWordCount: validation.CountWords(childInput),
		AIWordCount:    validation.CountWords(reply),
	}

	err = s.db.WithTx(ctx, func(tx *database.Tx) error {
		stories := s.stories.WithTx(tx)
		if err := stories.InsertTurn(ctx, turn); err != nil {
			if errors.Is(err, repository.ErrDuplicate) {
				return ErrTurnConflict
			}
			return err
		}
		if err := stories.AddWordCounts(ctx, sessionID, turn.ChildWordCount, turn.AIWordCount); err != nil {
			return err
		}
		return s.users.WithTx(tx).AddWords(ctx, childID, turn.ChildWordCount)
	})
	if err != nil {
		return nil, err
	}

	updated, err := s.stories.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	metrics.TurnsAddedTotal.Inc()
	log.Info("Turn added", zap.Int("childWords", turn.ChildWordCount), zap.Int("aiWords", turn.AIWordCount))
	return &TurnResult{Turn: turn, Session: updated, TurnsRemaining: models.MaxTurns - turn.TurnNumber}, nil
}

// transition validates and applies a status change with a guarded update
func (s *StoryService) transition(ctx context.Context, session *models.StorySession, to models.StoryStatus, actor models.TransitionActor) error {
	if err := models.CheckTransition(session.Status, to, actor); err != nil {
		return err
	}
	moved, err := s.stories.UpdateStatus(ctx, session.ID, session.Status, to)
	if err != nil {
		return err
	}
	if !moved {
		return fmt.Errorf("%w: story changed status concurrently", models.ErrInvalidTransition)
	}

	s.logger.Info("Story status changed",
		zap.Int64("sessionID", session.ID),
		zap.String("from", string(session.Status)),
		zap.String("to", string(to)))
	session.Status = to
	return nil
}

func (s *StoryService) ownerTransition(ctx context.Context, childID, sessionID int64, to models.StoryStatus) (*models.StorySession, error) {
	session, err := s.ownedSession(ctx, childID, sessionID)
	if err != nil {
		return nil, err
	}
	if err := s.transition(ctx, session, to, models.ActorOwner); err != nil {
		return nil, err
	}
	return s.stories.GetSession(ctx, sessionID)
}

// CompleteSession marks a story finished. It needs at least one turn.
func (s *StoryService) CompleteSession(ctx context.Context, childID, sessionID int64) (*models.StorySession, error) {
	count, err := s.stories.CountTurns(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if count == 0 {
		if _, err := s.ownedSession(ctx, childID, sessionID); err != nil {
			return nil, err
		}
		return nil, ErrNoTurns
	}
	return s.ownerTransition(ctx, childID, sessionID, models.StatusCompleted)
}

// PauseSession parks an active story
func (s *StoryService) PauseSession(ctx context.Context, childID, sessionID int64) (*models.StorySession, error) {
	return s.ownerTransition(ctx, childID, sessionID, models.StatusPaused)
}

// ResumeSession reactivates a paused story
func (s *StoryService) ResumeSession(ctx context.Context, childID, sessionID int64) (*models.StorySession, error) {
	return s.ownerTransition(ctx, childID, sessionID, models.StatusActive)
}

// FlagSession sends a story to admin review
func (s *StoryService) FlagSession(ctx context.Context, sessionID int64, actor models.TransitionActor) (*models.StorySession, error) {
	session, err := s.stories.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, ErrStoryNotFound
	}
	if err := s.transition(ctx, session, models.StatusFlagged, actor); err != nil {
		return nil, err
	}
	metrics.StoriesFlaggedTotal.Inc()
	return session, nil
}

// ReviewFlagged clears a flagged story. Stories that were finished before
// the flag go back to completed, the rest back to active.
func (s *StoryService) ReviewFlagged(ctx context.Context, sessionID int64) (*models.StorySession, error) {
	session, err := s.stories.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, ErrStoryNotFound
	}
	to := models.StatusActive
	if session.CompletedAt != nil {
		to = models.StatusCompleted
	}
	if err := s.transition(ctx, session, to, models.ActorAdmin); err != nil {
		return nil, err
	}
	return session, nil
}

// ListFlagged returns stories waiting for admin review
func (s *StoryService) ListFlagged(ctx context.Context) ([]models.StorySession, error) {
	return s.stories.ListSessionsByStatus(ctx, models.StatusFlagged)
}

// GetSession returns a story with its turns and assessment view. Owners,
// mentors and admins may read it.
func (s *StoryService) GetSession(ctx context.Context, viewer Viewer, sessionID int64) (*models.StoryDetail, error) {
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

	turns, err := s.stories.ListTurns(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return &models.StoryDetail{
		Session:    session,
		Turns:      turns,
		Assessment: assessment.BuildView(session.Assessment, session.AssessmentAttempts),
	}, nil
}

// ListSessions returns a child's stories, newest first
func (s *StoryService) ListSessions(ctx context.Context, childID int64) ([]models.StorySession, error) {
	return s.stories.ListSessionsByChild(ctx, childID)
}

// RequestAssessment scores a completed story. Each call uses one of the
// story's assessment attempts.
func (s *StoryService) RequestAssessment(ctx context.Context, childID, sessionID int64) (*assessment.View, error) {
	session, err := s.ownedSession(ctx, childID, sessionID)
	if err != nil {
		return nil, err
	}
	if session.Status != models.StatusCompleted {
		return nil, ErrNotCompleted
	}
	if session.AssessmentAttempts >= assessment.MaxAttempts {
		return nil, ErrAssessmentLimitReached
	}

	settings, err := s.settings.GetSiteSettings(ctx)
	if err != nil {
		return nil, err
	}
	if !settings.AssessmentEnabled {
		return nil, ErrAssessmentDisabled
	}

	turns, err := s.stories.ListTurns(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	log := s.logger.With(zap.Int64("sessionID", sessionID), zap.Int("attempt", session.AssessmentAttempts+1))

	result, err := s.ai.AssessStory(ctx, ai.ScoreRequest{
		Title:          session.Title,
		Elements:       session.Elements,
		Text:           StoryText(turns),
		ChildWordCount: session.ChildWords,
	})
	if err != nil {
		metrics.AssessmentsTotal.WithLabelValues("error").Inc()
		log.Error("Assessment request failed", zap.Error(err))
		return nil, ErrAssessmentFailed
	}
	if err := result.Validate(); err != nil {
		metrics.AssessmentsTotal.WithLabelValues("invalid").Inc()
		log.Error("Scorer returned an invalid assessment", zap.Error(err))
		return nil, ErrAssessmentFailed
	}

	saved, err := s.stories.SaveAssessment(ctx, sessionID, result)
	if err != nil {
		return nil, err
	}
	if !saved {
		return nil, ErrAssessmentLimitReached
	}

	metrics.AssessmentsTotal.WithLabelValues("success").Inc()
	log.Info("Story assessed", zap.String("version", string(result.Version)), zap.Int("overall", result.OverallScore()))

	view := assessment.BuildView(result, session.AssessmentAttempts+1)
	return &view, nil
}

// StoryText joins the turns into the running story, child text first
func StoryText(turns []models.Turn) string {
	parts := make([]string, 0, len(turns)*2)
	for _, t := range turns {
		parts = append(parts, strings.TrimSpace(t.ChildInput))
		if reply := strings.TrimSpace(t.AIResponse); reply != "" {
			parts = append(parts, reply)
		}
	}
	return strings.Join(parts, "\n\n")
}

