package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mintoons/internal/assessment"
	"mintoons/internal/database"
	"mintoons/internal/database/dbtest"
	"mintoons/internal/models"
)

func newUser(t *testing.T, repo *UserRepository, email string) *models.User {
	t.Helper()
	user, err := repo.CreateUser(context.Background(), email, "hash", "Test User", "Pen "+email)
	require.NoError(t, err)
	return user
}

func newSession(t *testing.T, repo *StoryRepository, childID int64, title string) *models.StorySession {
	t.Helper()
	ctx := context.Background()
	number, err := repo.NextStoryNumber(ctx, childID)
	require.NoError(t, err)
	s := &models.StorySession{ChildID: childID, StoryNumber: number, Title: title, Status: models.StatusActive, MaxAPICalls: 10}
	require.NoError(t, repo.CreateSession(ctx, s))
	return s
}

func TestUserRepository(t *testing.T) {
	db := dbtest.New(t)
	repo := NewUserRepository(db)
	ctx := context.Background()

	admin := newUser(t, repo, "admin@example.com")
	assert.Equal(t, models.RoleAdmin, admin.Role)

	child := newUser(t, repo, "child@example.com")
	assert.Equal(t, models.RoleChild, child.Role)

	_, err := repo.CreateUser(ctx, "child@example.com", "hash", "Dup", "")
	assert.ErrorIs(t, err, ErrDuplicate)

	got, err := repo.GetUserByEmail(ctx, "child@example.com")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, child.ID, got.ID)
	assert.True(t, got.IsActive)
	assert.Equal(t, models.TierFree, got.SubscriptionTier)

	missing, err := repo.GetUserByID(ctx, 999)
	require.NoError(t, err)
	assert.Nil(t, missing)

	role := models.RoleMentor
	tier := models.TierPremium
	inactive := false
	require.NoError(t, repo.UpdateUser(ctx, child.ID, models.UserUpdate{Role: &role, SubscriptionTier: &tier, IsActive: &inactive}))
	got, err = repo.GetUserByID(ctx, child.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RoleMentor, got.Role)
	assert.Equal(t, models.TierPremium, got.SubscriptionTier)
	assert.False(t, got.IsActive)

	require.NoError(t, repo.IncrementStoryCount(ctx, admin.ID))
	require.NoError(t, repo.AddWords(ctx, admin.ID, 42))
	got, err = repo.GetUserByID(ctx, admin.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.TotalStories)
	assert.Equal(t, 1, got.StoriesThisMonth)
	assert.Equal(t, 42, got.TotalWords)

	reset, err := repo.ResetMonthlyStoryCounts(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), reset)

	recipients, err := repo.ListQuotaResetRecipients(ctx)
	require.NoError(t, err)
	require.Len(t, recipients, 1)
	assert.Equal(t, admin.ID, recipients[0].ID)
}

func TestListUsers(t *testing.T) {
	db := dbtest.New(t)
	repo := NewUserRepository(db)
	ctx := context.Background()

	newUser(t, repo, "admin@example.com")
	for _, email := range []string{"ava@example.com", "ben@example.com", "cara@school.org"} {
		newUser(t, repo, email)
	}

	tests := []struct {
		name      string
		filter    models.UserFilter
		wantCount int
		wantTotal int
	}{
		{"all", models.UserFilter{}, 4, 4},
		{"children", models.UserFilter{Role: models.RoleChild}, 3, 3},
		{"admins", models.UserFilter{Role: models.RoleAdmin}, 1, 1},
		{"search email", models.UserFilter{Search: "SCHOOL"}, 1, 1},
		{"page size", models.UserFilter{Limit: 2}, 2, 4},
		{"second page", models.UserFilter{Page: 2, Limit: 3}, 1, 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			users, total, err := repo.ListUsers(ctx, tt.filter)
			require.NoError(t, err)
			assert.Len(t, users, tt.wantCount)
			assert.Equal(t, tt.wantTotal, total)
		})
	}
}

func TestResetTokens(t *testing.T) {
	db := dbtest.New(t)
	repo := NewUserRepository(db)
	ctx := context.Background()
	user := newUser(t, repo, "reset@example.com")

	require.NoError(t, repo.CreateResetToken(ctx, "tok", user.ID, time.Now().Add(time.Hour)))

	token, err := repo.GetResetToken(ctx, "tok")
	require.NoError(t, err)
	require.NotNil(t, token)
	assert.False(t, token.IsExpired())
	assert.False(t, token.Used)

	ok, err := repo.MarkResetTokenUsed(ctx, "tok")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.MarkResetTokenUsed(ctx, "tok")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStoryRepository(t *testing.T) {
	db := dbtest.New(t)
	users := NewUserRepository(db)
	stories := NewStoryRepository(db)
	ctx := context.Background()
	child := newUser(t, users, "child@example.com")

	first := newSession(t, stories, child.ID, "First")
	second := newSession(t, stories, child.ID, "Second")
	assert.Equal(t, 1, first.StoryNumber)
	assert.Equal(t, 2, second.StoryNumber)

	dup := &models.StorySession{ChildID: child.ID, StoryNumber: 2, Title: "Clash", Status: models.StatusActive}
	assert.ErrorIs(t, stories.CreateSession(ctx, dup), ErrDuplicate)

	turn := &models.Turn{SessionID: first.ID, TurnNumber: 1, ChildInput: "Once", AIResponse: "upon", ChildWordCount: 1, AIWordCount: 1}
	require.NoError(t, stories.InsertTurn(ctx, turn))
	again := &models.Turn{SessionID: first.ID, TurnNumber: 1, ChildInput: "x", AIResponse: "y"}
	assert.ErrorIs(t, stories.InsertTurn(ctx, again), ErrDuplicate)

	count, err := stories.CountTurns(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	require.NoError(t, stories.AddWordCounts(ctx, first.ID, 1, 1))
	ok, err := stories.ConsumeAPICall(ctx, first.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = stories.UpdateStatus(ctx, first.ID, models.StatusActive, models.StatusCompleted)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = stories.UpdateStatus(ctx, first.ID, models.StatusActive, models.StatusPaused)
	require.NoError(t, err)
	assert.False(t, ok)

	got, err := stories.GetSession(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, got.Status)
	assert.NotNil(t, got.CompletedAt)
	assert.Equal(t, 2, got.TotalWords)
	assert.Equal(t, 1, got.ChildWords)
	assert.Equal(t, 1, got.APICallsUsed)

	list, err := stories.ListSessionsByChild(ctx, child.ID)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "Second", list[0].Title)
}

func TestConsumeAPICallStopsAtLimit(t *testing.T) {
	db := dbtest.New(t)
	users := NewUserRepository(db)
	stories := NewStoryRepository(db)
	ctx := context.Background()
	child := newUser(t, users, "child@example.com")

	s := &models.StorySession{ChildID: child.ID, StoryNumber: 1, Title: "Tiny", Status: models.StatusActive, MaxAPICalls: 2}
	require.NoError(t, stories.CreateSession(ctx, s))

	for i := 0; i < 2; i++ {
		ok, err := stories.ConsumeAPICall(ctx, s.ID)
		require.NoError(t, err)
		assert.True(t, ok)
	}
	ok, err := stories.ConsumeAPICall(ctx, s.ID)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSaveAssessmentNeverExceedsMaxAttempts(t *testing.T) {
	db := dbtest.New(t)
	users := NewUserRepository(db)
	stories := NewStoryRepository(db)
	ctx := context.Background()
	child := newUser(t, users, "child@example.com")
	s := newSession(t, stories, child.ID, "Assessed")

	a := &assessment.Assessment{Version: assessment.VersionLegacy, Legacy: &assessment.LegacyScores{Grammar: 80, Creativity: 90, Overall: 85}}
	saved := 0
	for i := 0; i < 5; i++ {
		ok, err := stories.SaveAssessment(ctx, s.ID, a)
		require.NoError(t, err)
		if ok {
			saved++
		}
	}
	assert.Equal(t, assessment.MaxAttempts, saved)

	got, err := stories.GetSession(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, assessment.MaxAttempts, got.AssessmentAttempts)
	require.NotNil(t, got.Assessment)
	assert.Equal(t, 85, got.Assessment.OverallScore())
}

func TestPublishedRepository(t *testing.T) {
	db := dbtest.New(t)
	users := NewUserRepository(db)
	stories := NewStoryRepository(db)
	published := NewPublishedRepository(db)
	ctx := context.Background()
	child := newUser(t, users, "child@example.com")
	s := newSession(t, stories, child.ID, "Gallery")

	ok, err := stories.MarkPublished(ctx, s.ID, time.Now())
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = stories.MarkPublished(ctx, s.ID, time.Now())
	require.NoError(t, err)
	assert.False(t, ok)

	score := 77
	p := &models.PublishedStory{
		SessionID: s.ID, ChildID: child.ID, AuthorPenName: "Brave Otter", Title: s.Title, Content: "text",
		Elements: models.StoryElements{Genre: "fantasy"}, WordCount: 1, OverallScore: &score, PublishedAt: time.Now(),
	}
	require.NoError(t, published.Insert(ctx, p))
	assert.ErrorIs(t, published.Insert(ctx, &models.PublishedStory{SessionID: s.ID, ChildID: child.ID, Title: "x", Content: "y", PublishedAt: time.Now()}), ErrDuplicate)

	items, total, err := published.List(ctx, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, items, 1)
	assert.Equal(t, "fantasy", items[0].Elements.Genre)
	require.NotNil(t, items[0].OverallScore)
	assert.Equal(t, 77, *items[0].OverallScore)
	assert.Nil(t, items[0].GrammarScore)

	ok, err = stories.UpdateStatus(ctx, s.ID, models.StatusActive, models.StatusFlagged)
	require.NoError(t, err)
	require.True(t, ok)
	items, total, err = published.List(ctx, 1, 10)
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, items)
}

func newCompetition(t *testing.T, repo *CompetitionRepository, month string) *models.Competition {
	t.Helper()
	start, err := models.ParseMonth(month)
	require.NoError(t, err)
	c := &models.Competition{
		Month: month, Title: "Contest " + month, Phase: models.PhaseSubmission,
		SubmissionStart: start, SubmissionEnd: start.AddDate(0, 0, 24), JudgingEnd: start.AddDate(0, 1, 0),
	}
	require.NoError(t, repo.Create(context.Background(), c))
	return c
}

func TestCompetitionRepository(t *testing.T) {
	db := dbtest.New(t)
	users := NewUserRepository(db)
	competitions := NewCompetitionRepository(db)
	ctx := context.Background()
	child := newUser(t, users, "child@example.com")

	march := newCompetition(t, competitions, "2024-03")
	april := newCompetition(t, competitions, "2024-04")

	active, err := competitions.GetActive(ctx)
	require.NoError(t, err)
	require.NotNil(t, active)
	assert.Equal(t, april.ID, active.ID)

	old, err := competitions.GetByID(ctx, march.ID)
	require.NoError(t, err)
	assert.False(t, old.IsActive)

	dup := &models.Competition{Month: "2024-04", Title: "Again", Phase: models.PhaseSubmission}
	assert.ErrorIs(t, competitions.Create(ctx, dup), ErrDuplicate)

	entry := &models.CompetitionSubmission{UserID: child.ID, CompetitionID: april.ID, Title: "Dragons", Content: "c",
		Status: models.SubmissionSubmitted, PaymentStatus: "not_required"}
	require.NoError(t, competitions.InsertSubmission(ctx, entry))
	again := *entry
	assert.ErrorIs(t, competitions.InsertSubmission(ctx, &again), ErrDuplicate)

	submitted, err := competitions.HasSubmittedTitle(ctx, child.ID, april.ID, "Dragons")
	require.NoError(t, err)
	assert.True(t, submitted)

	count, err := competitions.CountUserEntries(ctx, child.ID, april.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	require.NoError(t, competitions.IncrementCounters(ctx, april.ID, true))
	require.NoError(t, competitions.IncrementCounters(ctx, april.ID, false))
	got, err := competitions.GetByID(ctx, april.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.TotalSubmissions)
	assert.Equal(t, 1, got.TotalParticipants)

	ok, err := competitions.UpdatePhase(ctx, april.ID, models.PhaseSubmission, models.PhaseJudging)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = competitions.UpdatePhase(ctx, april.ID, models.PhaseSubmission, models.PhaseJudging)
	require.NoError(t, err)
	assert.False(t, ok)

	moved, err := competitions.MarkSubmittedUnderReview(ctx, april.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), moved)

	rank, score := 1, 93
	ok, err = competitions.ApplyResult(ctx, april.ID, models.JudgingResult{SubmissionID: entry.ID, Rank: &rank, Score: &score}, models.SubmissionWinner)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = competitions.ApplyResult(ctx, march.ID, models.JudgingResult{SubmissionID: entry.ID}, models.SubmissionJudged)
	require.NoError(t, err)
	assert.False(t, ok)

	winners, err := competitions.ListWinners(ctx, april.ID)
	require.NoError(t, err)
	require.Len(t, winners, 1)
	assert.Equal(t, 1, *winners[0].CompetitionRank)
	assert.NotNil(t, winners[0].JudgedAt)

	judging, err := competitions.ListByPhase(ctx, models.PhaseJudging, 10)
	require.NoError(t, err)
	assert.Len(t, judging, 1)
}

func TestWithTxRollsBackRepositories(t *testing.T) {
	db := dbtest.New(t)
	users := NewUserRepository(db)
	ctx := context.Background()

	err := db.WithTx(ctx, func(tx *database.Tx) error {
		_, err := users.WithTx(tx).CreateUser(ctx, "tx@example.com", "hash", "Tx", "")
		require.NoError(t, err)
		return assert.AnError
	})
	assert.ErrorIs(t, err, assert.AnError)

	got, err := users.GetUserByEmail(ctx, "tx@example.com")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestCommentRepository(t *testing.T) {
	db := dbtest.New(t)
	users := NewUserRepository(db)
	stories := NewStoryRepository(db)
	comments := NewCommentRepository(db)
	ctx := context.Background()

	mentor := newUser(t, users, "mentor@example.com")
	child := newUser(t, users, "child@example.com")
	s := newSession(t, stories, child.ID, "Commented")

	require.NoError(t, comments.Create(ctx, &models.StoryComment{SessionID: s.ID, AuthorID: mentor.ID, Type: models.CommentPraise, Content: "Wonderful!"}))

	list, err := comments.ListBySession(ctx, s.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "Test User", list[0].AuthorName)
	assert.Equal(t, models.RoleAdmin, list[0].AuthorRole)
	assert.Equal(t, models.CommentPraise, list[0].Type)
}

func TestSettingsRepository(t *testing.T) {
	db := dbtest.New(t)
	repo := NewSettingsRepository(db)
	ctx := context.Background()

	settings, err := repo.GetSiteSettings(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.DefaultSiteSettings(), settings)

	settings.MaxCompetitionEntries = 5
	settings.MaintenanceMode = true
	require.NoError(t, repo.SaveSiteSettings(ctx, settings))
	settings.MaxCompetitionEntries = 4
	require.NoError(t, repo.SaveSiteSettings(ctx, settings))

	got, err := repo.GetSiteSettings(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, got.MaxCompetitionEntries)
	assert.True(t, got.MaintenanceMode)

	require.NoError(t, repo.SetSetting(ctx, SiteSettingsKey, `{"minWordCount": 50}`))
	got, err = repo.GetSiteSettings(ctx)
	require.NoError(t, err)
	assert.Equal(t, 50, got.MinWordCount)
	assert.Equal(t, models.DefaultSiteSettings().MaxWordCount, got.MaxWordCount)

	_, found, err := repo.GetSetting(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, found)
}
