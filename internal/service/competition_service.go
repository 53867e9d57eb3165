package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"mintoons/internal/cache"
	"mintoons/internal/database"
	"mintoons/internal/metrics"
	"mintoons/internal/models"
	"mintoons/internal/repository"
)

const (
	judgingPeriod   = 7 * 24 * time.Hour
	podiumPlaces    = 3
	paymentNotDue   = "not_required"
	previousDefault = 6
)

// CurrentCompetition is the active competition seen by one user
type CurrentCompetition struct {
	Competition      *models.Competition            `json:"competition"`
	Entries          []models.CompetitionSubmission `json:"entries"`
	EntriesUsed      int                            `json:"entriesUsed"`
	EntriesRemaining int                            `json:"entriesRemaining"`
	MaxEntries       int                            `json:"maxEntries"`
}

// Eligibility says whether a story can be entered and why not
type Eligibility struct {
	Eligible      bool     `json:"eligible"`
	Reasons       []string `json:"reasons"`
	CompetitionID *int64   `json:"competitionId,omitempty"`
}

// CompetitionService runs the monthly writing competition
type CompetitionService struct {
	db           *database.DB
	competitions *repository.CompetitionRepository
	stories      *repository.StoryRepository
	users        *repository.UserRepository
	settings     *repository.SettingsRepository
	cache        cache.CompetitionCache
	mailer       Mailer
	logger       *zap.Logger
}

// NewCompetitionService creates a new competition service
func NewCompetitionService(db *database.DB, competitionCache cache.CompetitionCache, mailer Mailer, logger *zap.Logger) *CompetitionService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if competitionCache == nil {
		competitionCache = cache.Noop{}
	}
	return &CompetitionService{
		db:           db,
		competitions: repository.NewCompetitionRepository(db),
		stories:      repository.NewStoryRepository(db),
		users:        repository.NewUserRepository(db),
		settings:     repository.NewSettingsRepository(db),
		cache:        competitionCache,
		mailer:       mailer,
		logger:       logger.Named("CompetitionService"),
	}
}

// active returns the active competition, from the cache when possible
func (s *CompetitionService) active(ctx context.Context) (*models.Competition, error) {
	cached, generation, err := s.cache.GetCurrent(ctx)
	if err != nil {
		s.logger.Warn("Competition cache read failed", zap.Error(err))
	}
	if cached != nil {
		return cached, nil
	}

	comp, err := s.competitions.GetActive(ctx)
	if err != nil {
		return nil, err
	}
	if comp != nil {
		if err := s.cache.SetCurrent(ctx, comp, generation); err != nil {
			s.logger.Warn("Competition cache write failed", zap.Error(err))
		}
	}
	return comp, nil
}

func (s *CompetitionService) invalidate(ctx context.Context) {
	if err := s.cache.Invalidate(ctx); err != nil {
		s.logger.Warn("Competition cache invalidation failed", zap.Error(err))
	}
}

// Current returns the active competition with the user's entries
func (s *CompetitionService) Current(ctx context.Context, userID int64) (*CurrentCompetition, error) {
	settings, err := s.settings.GetSiteSettings(ctx)
	if err != nil {
		return nil, err
	}

	current := &CurrentCompetition{
		Entries:          []models.CompetitionSubmission{},
		MaxEntries:       settings.MaxCompetitionEntries,
		EntriesRemaining: settings.MaxCompetitionEntries,
	}

	comp, err := s.active(ctx)
	if err != nil {
		return nil, err
	}
	if comp == nil {
		return current, nil
	}
	current.Competition = comp

	entries, err := s.competitions.ListUserSubmissions(ctx, userID, comp.ID)
	if err != nil {
		return nil, err
	}
	current.Entries = entries
	current.EntriesUsed = len(entries)
	current.EntriesRemaining = max(settings.MaxCompetitionEntries-len(entries), 0)
	return current, nil
}

// Previous returns finished competitions, newest first, with their podiums
func (s *CompetitionService) Previous(ctx context.Context, limit int) ([]models.Competition, error) {
	if limit <= 0 {
		limit = previousDefault
	}
	comps, err := s.competitions.ListByPhase(ctx, models.PhaseResults, limit)
	if err != nil {
		return nil, err
	}
	for i := range comps {
		winners, err := s.competitions.ListWinners(ctx, comps[i].ID)
		if err != nil {
			return nil, err
		}
		comps[i].Winners = toWinners(winners)
	}
	return comps, nil
}

func toWinners(subs []models.CompetitionSubmission) []models.Winner {
	winners := make([]models.Winner, 0, len(subs))
	for _, sub := range subs {
		if sub.CompetitionRank == nil || *sub.CompetitionRank > podiumPlaces {
			continue
		}
		winners = append(winners, models.Winner{
			Rank:         *sub.CompetitionRank,
			UserID:       sub.UserID,
			PenName:      sub.PenName,
			SubmissionID: sub.ID,
			Title:        sub.Title,
			Score:        sub.CompetitionScore,
		})
	}
	return winners
}

// storyReasons lists why a story itself can't be entered
func storyReasons(session *models.StorySession, userID int64, settings models.SiteSettings) []string {
	reasons := []string{}
	if !session.IsOwnedBy(userID) {
		reasons = append(reasons, "story does not belong to you")
	}
	switch session.Status {
	case models.StatusCompleted:
	case models.StatusFlagged:
		reasons = append(reasons, "story is flagged for review")
	default:
		reasons = append(reasons, "story must be completed")
	}
	if !session.IsPublished {
		reasons = append(reasons, "story must be published")
	}
	if session.TotalWords < settings.MinWordCount {
		reasons = append(reasons, fmt.Sprintf("story needs at least %d words", settings.MinWordCount))
	}
	if settings.MaxWordCount > 0 && session.TotalWords > settings.MaxWordCount {
		reasons = append(reasons, fmt.Sprintf("story must have at most %d words", settings.MaxWordCount))
	}
	return reasons
}

// CheckEligibility lists every reason a story can't be entered into the
// active competition
func (s *CompetitionService) CheckEligibility(ctx context.Context, userID, sessionID int64) (*Eligibility, error) {
	session, err := s.stories.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, ErrStoryNotFound
	}

	settings, err := s.settings.GetSiteSettings(ctx)
	if err != nil {
		return nil, err
	}
	reasons := storyReasons(session, userID, settings)

	comp, err := s.active(ctx)
	if err != nil {
		return nil, err
	}
	result := &Eligibility{}
	if comp == nil || !comp.AcceptsSubmissions() {
		reasons = append(reasons, "no competition is accepting submissions")
	} else {
		result.CompetitionID = &comp.ID
		count, err := s.competitions.CountUserEntries(ctx, userID, comp.ID)
		if err != nil {
			return nil, err
		}
		if count >= settings.MaxCompetitionEntries {
			reasons = append(reasons, fmt.Sprintf("entry limit reached (%d per competition)", settings.MaxCompetitionEntries))
		}
		submitted, err := s.competitions.HasSubmittedTitle(ctx, userID, comp.ID, session.Title)
		if err != nil {
			return nil, err
		}
		if submitted {
			reasons = append(reasons, ErrAlreadySubmitted.Error())
		}
	}

	result.Reasons = reasons
	result.Eligible = len(reasons) == 0
	return result, nil
}

// EligibleStories returns the user's stories that pass the story checks
func (s *CompetitionService) EligibleStories(ctx context.Context, userID int64) ([]models.StorySession, error) {
	settings, err := s.settings.GetSiteSettings(ctx)
	if err != nil {
		return nil, err
	}
	sessions, err := s.stories.ListSessionsByChild(ctx, userID)
	if err != nil {
		return nil, err
	}

	eligible := []models.StorySession{}
	for _, session := range sessions {
		if len(storyReasons(&session, userID, settings)) == 0 {
			eligible = append(eligible, session)
		}
	}
	return eligible, nil
}

// Submit enters a story into a competition. The entry cap is counted in
// the same transaction as the insert.
func (s *CompetitionService) Submit(ctx context.Context, userID, sessionID, competitionID int64) (sub *models.CompetitionSubmission, err error) {
	outcome := "accepted"
	defer func() {
		if err != nil {
			outcome = submissionOutcome(err)
		}
		metrics.SubmissionsTotal.WithLabelValues(outcome).Inc()
	}()

	comp, err := s.competitions.GetByID(ctx, competitionID)
	if err != nil {
		return nil, err
	}
	if comp == nil {
		return nil, ErrCompetitionNotFound
	}
	if !comp.AcceptsSubmissions() {
		return nil, ErrCompetitionClosed
	}

	session, err := s.stories.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, ErrStoryNotFound
	}
	if !session.IsOwnedBy(userID) {
		return nil, ErrForbidden
	}

	settings, err := s.settings.GetSiteSettings(ctx)
	if err != nil {
		return nil, err
	}
	if reasons := storyReasons(session, userID, settings); len(reasons) > 0 {
		return nil, &IneligibleError{Reasons: reasons}
	}

	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}

	turns, err := s.stories.ListTurns(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	sub = &models.CompetitionSubmission{
		UserID:        userID,
		CompetitionID: comp.ID,
		SessionID:     &session.ID,
		Title:         session.Title,
		Content:       StoryText(turns),
		WordCount:     session.TotalWords,
		PenName:       user.DisplayName(),
		Status:        models.SubmissionSubmitted,
		IsPublished:   session.IsPublished,
		PaymentStatus: paymentNotDue,
	}

	err = s.db.WithTx(ctx, func(tx *database.Tx) error {
		comps := s.competitions.WithTx(tx)
		count, err := comps.CountUserEntries(ctx, userID, comp.ID)
		if err != nil {
			return err
		}
		if count >= settings.MaxCompetitionEntries {
			return ErrEntryLimitReached
		}
		if err := comps.InsertSubmission(ctx, sub); err != nil {
			if errors.Is(err, repository.ErrDuplicate) {
				return ErrAlreadySubmitted
			}
			return err
		}
		if err := comps.IncrementCounters(ctx, comp.ID, count == 0); err != nil {
			return err
		}
		return s.stories.WithTx(tx).LinkSubmission(ctx, sessionID, comp.ID, sub.ID)
	})
	if err != nil {
		return nil, err
	}

	s.invalidate(ctx)
	s.logger.Info("Competition entry submitted",
		zap.Int64("competitionID", comp.ID),
		zap.Int64("submissionID", sub.ID),
		zap.Int64("userID", userID))

	if user.EmailCompetitionUpdates {
		if err := s.mailer.SendSubmissionReceived(ctx, user, comp, sub); err != nil {
			s.logger.Warn("Failed to send submission email", zap.Int64("submissionID", sub.ID), zap.Error(err))
		}
	}
	return sub, nil
}

func submissionOutcome(err error) string {
	switch {
	case errors.Is(err, ErrAlreadySubmitted):
		return "duplicate"
	case errors.Is(err, ErrEntryLimitReached):
		return "limit_reached"
	case errors.Is(err, ErrStoryNotEligible):
		return "ineligible"
	case errors.Is(err, ErrCompetitionClosed):
		return "closed"
	}
	return "error"
}

// Create opens a competition for month and makes it the only active one
func (s *CompetitionService) Create(ctx context.Context, month, title, theme string) (*models.Competition, error) {
	start, err := models.ParseMonth(month)
	if err != nil {
		return nil, err
	}
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, invalidInput("title", "title is required")
	}

	end := start.AddDate(0, 1, 0)
	comp := &models.Competition{
		Month:           month,
		Title:           title,
		Theme:           strings.TrimSpace(theme),
		Phase:           models.PhaseSubmission,
		SubmissionStart: start,
		SubmissionEnd:   end,
		JudgingEnd:      end.Add(judgingPeriod),
	}

	err = s.db.WithTx(ctx, func(tx *database.Tx) error {
		return s.competitions.WithTx(tx).Create(ctx, comp)
	})
	if err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrCompetitionExists
		}
		return nil, err
	}

	s.invalidate(ctx)
	s.logger.Info("Competition created", zap.Int64("competitionID", comp.ID), zap.String("month", month))
	return comp, nil
}

// Advance moves a competition to its next phase. Entering judging puts
// every entry under review; entering results notifies the winners.
func (s *CompetitionService) Advance(ctx context.Context, competitionID int64) (*models.Competition, error) {
	comp, err := s.competitions.GetByID(ctx, competitionID)
	if err != nil {
		return nil, err
	}
	if comp == nil {
		return nil, ErrCompetitionNotFound
	}

	next, err := comp.Phase.Next()
	if err != nil {
		return nil, err
	}

	var reviewed int64
	err = s.db.WithTx(ctx, func(tx *database.Tx) error {
		comps := s.competitions.WithTx(tx)
		moved, err := comps.UpdatePhase(ctx, comp.ID, comp.Phase, next)
		if err != nil {
			return err
		}
		if !moved {
			return fmt.Errorf("%w: competition changed phase concurrently", models.ErrInvalidPhaseTransition)
		}
		if next == models.PhaseJudging {
			reviewed, err = comps.MarkSubmittedUnderReview(ctx, comp.ID)
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.invalidate(ctx)
	s.logger.Info("Competition advanced",
		zap.Int64("competitionID", comp.ID),
		zap.String("from", string(comp.Phase)),
		zap.String("to", string(next)),
		zap.Int64("underReview", reviewed))

	if next == models.PhaseResults {
		s.notifyWinners(ctx, comp)
	}
	return s.competitions.GetByID(ctx, comp.ID)
}

func (s *CompetitionService) notifyWinners(ctx context.Context, comp *models.Competition) {
	winners, err := s.competitions.ListWinners(ctx, comp.ID)
	if err != nil {
		s.logger.Error("Failed to list winners", zap.Int64("competitionID", comp.ID), zap.Error(err))
		return
	}
	for i := range winners {
		sub := &winners[i]
		user, err := s.users.GetUserByID(ctx, sub.UserID)
		if err != nil || user == nil || !user.EmailCompetitionUpdates {
			continue
		}
		if err := s.mailer.SendWinner(ctx, user, comp, sub); err != nil {
			s.logger.Warn("Failed to send winner email", zap.Int64("submissionID", sub.ID), zap.Error(err))
		}
	}
}

// RecordResults writes externally judged ranks and scores onto entries.
// Ranks 1 to 3 make an entry a winner and may each be used once.
func (s *CompetitionService) RecordResults(ctx context.Context, competitionID int64, results []models.JudgingResult) (int, error) {
	comp, err := s.competitions.GetByID(ctx, competitionID)
	if err != nil {
		return 0, err
	}
	if comp == nil {
		return 0, ErrCompetitionNotFound
	}
	if comp.Phase != models.PhaseJudging {
		return 0, ErrResultsNotAllowed
	}
	if len(results) == 0 {
		return 0, invalidInput("results", "at least one result is required")
	}

	statuses := make([]models.SubmissionStatus, len(results))
	podium := map[int]bool{}
	for i, r := range results {
		if err := r.Validate(); err != nil {
			return 0, err
		}
		onPodium := r.Rank != nil && *r.Rank <= podiumPlaces
		switch {
		case onPodium:
			if podium[*r.Rank] {
				return 0, invalidInput("rank", fmt.Sprintf("rank %d is assigned more than once", *r.Rank))
			}
			podium[*r.Rank] = true
			statuses[i] = models.SubmissionWinner
		case r.Status == models.SubmissionWinner:
			return 0, invalidInput("status", "winners need a rank from 1 to 3")
		case r.Status != "":
			statuses[i] = r.Status
		default:
			statuses[i] = models.SubmissionJudged
		}
	}

	err = s.db.WithTx(ctx, func(tx *database.Tx) error {
		comps := s.competitions.WithTx(tx)
		for i, r := range results {
			applied, err := comps.ApplyResult(ctx, comp.ID, r, statuses[i])
			if err != nil {
				return err
			}
			if !applied {
				return invalidInput("submissionId", fmt.Sprintf("submission %d is not part of this competition", r.SubmissionID))
			}
		}
		return checkPodium(ctx, comps, comp.ID)
	})
	if err != nil {
		return 0, err
	}

	s.logger.Info("Judging results recorded", zap.Int64("competitionID", comp.ID), zap.Int("results", len(results)))
	return len(results), nil
}

// checkPodium rejects a podium rank held by two entries once every
// result in the batch, and every earlier batch, has been applied
func checkPodium(ctx context.Context, comps *repository.CompetitionRepository, competitionID int64) error {
	winners, err := comps.ListWinners(ctx, competitionID)
	if err != nil {
		return err
	}
	holders := map[int]int64{}
	for _, w := range winners {
		rank := *w.CompetitionRank
		if held, ok := holders[rank]; ok {
			return invalidInput("rank", fmt.Sprintf("rank %d is already held by submission %d", rank, held))
		}
		holders[rank] = w.ID
	}
	return nil
}
