package service

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mintoons/internal/models"
)

func TestCreateSession(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.register(t, "admin@example.com")
	child := env.register(t, "child@example.com")

	first, err := env.stories.CreateSession(ctx, child.ID, "  The Lost Key ", models.StoryElements{Genre: " mystery "})
	require.NoError(t, err)
	assert.Equal(t, 1, first.StoryNumber)
	assert.Equal(t, "The Lost Key", first.Title)
	assert.Equal(t, "mystery", first.Elements.Genre)
	assert.Equal(t, models.StatusActive, first.Status)
	assert.Equal(t, models.DefaultSiteSettings().MaxAPICallsPerStory, first.MaxAPICalls)

	second, err := env.stories.CreateSession(ctx, child.ID, "Sky Friends", models.StoryElements{})
	require.NoError(t, err)
	assert.Equal(t, 2, second.StoryNumber)

	user, err := env.auth.Me(ctx, child.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, user.TotalStories)
	assert.Equal(t, 2, user.StoriesThisMonth)

	_, err = env.stories.CreateSession(ctx, child.ID, "   ", models.StoryElements{})
	var vErr *models.ValidationError
	assert.ErrorAs(t, err, &vErr)
}

func TestCreateSessionQuota(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	admin := env.register(t, "admin@example.com")
	child := env.register(t, "child@example.com")

	settings := models.DefaultSiteSettings()
	settings.FreeStoriesPerMonth = 1
	_, err := env.admin.UpdateSettings(ctx, settings)
	require.NoError(t, err)

	_, err = env.stories.CreateSession(ctx, child.ID, "One", models.StoryElements{})
	require.NoError(t, err)
	_, err = env.stories.CreateSession(ctx, child.ID, "Two", models.StoryElements{})
	assert.ErrorIs(t, err, ErrStoryQuotaReached)

	premium := models.TierPremium
	_, err = env.admin.UpdateUser(ctx, admin.ID, child.ID, models.UserUpdate{SubscriptionTier: &premium})
	require.NoError(t, err)
	_, err = env.stories.CreateSession(ctx, child.ID, "Two", models.StoryElements{})
	assert.NoError(t, err)

	_, err = env.admin.ResetMonthlyQuotas(ctx)
	require.NoError(t, err)
	user, err := env.auth.Me(ctx, child.ID)
	require.NoError(t, err)
	assert.Zero(t, user.StoriesThisMonth)
	assert.Equal(t, 2, user.TotalStories)
}

func TestAddTurn(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.register(t, "admin@example.com")
	child := env.register(t, "child@example.com")
	session := env.writeStory(t, child.ID, "The Lost Key", 0)

	result, err := env.stories.AddTurn(ctx, child.ID, session.ID, "  "+childLine+"  ")
	require.NoError(t, err)
	assert.Equal(t, 1, result.Turn.TurnNumber)
	assert.Equal(t, childLine, result.Turn.ChildInput)
	assert.Equal(t, aiLine, result.Turn.AIResponse)
	assert.Equal(t, 14, result.Turn.ChildWordCount)
	assert.Equal(t, 20, result.Turn.AIWordCount)
	assert.Equal(t, 6, result.TurnsRemaining)
	assert.Equal(t, 34, result.Session.TotalWords)
	assert.Equal(t, 14, result.Session.ChildWords)
	assert.Equal(t, 1, result.Session.APICallsUsed)

	result, err = env.stories.AddTurn(ctx, child.ID, session.ID, "She knocked on the blue door.")
	require.NoError(t, err)
	assert.Equal(t, 2, result.Turn.TurnNumber)

	require.Len(t, env.ai.prompts, 2)
	last := env.ai.prompts[1]
	assert.Equal(t, 2, last.TurnNumber)
	assert.Equal(t, models.MaxTurns, last.MaxTurns)
	assert.Len(t, last.PriorTurns, 1)
	assert.Equal(t, "Pip the otter", last.Elements.Character)

	user, err := env.auth.Me(ctx, child.ID)
	require.NoError(t, err)
	assert.Equal(t, 14+6, user.TotalWords)
}

func TestAddTurnRules(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.register(t, "admin@example.com")
	child := env.register(t, "child@example.com")
	other := env.register(t, "other@example.com")

	full := env.writeStory(t, child.ID, "Seven Turns", models.MaxTurns)
	_, err := env.stories.AddTurn(ctx, child.ID, full.ID, childLine)
	assert.ErrorIs(t, err, ErrTurnLimitReached)

	session := env.writeStory(t, child.ID, "Short", 1)

	tests := []struct {
		name    string
		userID  int64
		id      int64
		input   string
		wantErr error
	}{
		{"someone else's story", other.ID, session.ID, childLine, ErrForbidden},
		{"missing story", child.ID, 9999, childLine, ErrStoryNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.stories.AddTurn(ctx, tt.userID, tt.id, tt.input)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}

	_, err = env.stories.AddTurn(ctx, child.ID, session.ID, "  ")
	var vErr *models.ValidationError
	assert.ErrorAs(t, err, &vErr)

	_, err = env.stories.PauseSession(ctx, child.ID, session.ID)
	require.NoError(t, err)
	_, err = env.stories.AddTurn(ctx, child.ID, session.ID, childLine)
	assert.ErrorIs(t, err, ErrStoryNotActive)
}

func TestAddTurnModeration(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.register(t, "admin@example.com")
	child := env.register(t, "child@example.com")
	_, err := env.db.LoadBadWords(ctx, strings.NewReader("grumpus\n"))
	require.NoError(t, err)

	session := env.writeStory(t, child.ID, "The Lost Key", 1)
	calls := len(env.ai.prompts)

	_, err = env.stories.AddTurn(ctx, child.ID, session.ID, "Then the Grumpus ate the key.")
	assert.ErrorIs(t, err, ErrInappropriateContent)
	assert.Len(t, env.ai.prompts, calls, "flagged input must not reach the AI")

	detail, err := env.stories.GetSession(ctx, viewerOf(child), session.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusFlagged, detail.Session.Status)
	assert.Len(t, detail.Turns, 1)

	flagged, err := env.stories.ListFlagged(ctx)
	require.NoError(t, err)
	require.Len(t, flagged, 1)
	assert.Equal(t, session.ID, flagged[0].ID)

	_, err = env.stories.ResumeSession(ctx, child.ID, session.ID)
	assert.ErrorIs(t, err, models.ErrInvalidTransition)

	reviewed, err := env.stories.ReviewFlagged(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusActive, reviewed.Status)
}

func TestAddTurnAIFailures(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.register(t, "admin@example.com")
	child := env.register(t, "child@example.com")

	settings := models.DefaultSiteSettings()
	settings.MaxAPICallsPerStory = models.MaxTurns
	_, err := env.admin.UpdateSettings(ctx, settings)
	require.NoError(t, err)

	session := env.writeStory(t, child.ID, "Unlucky", 0)
	env.ai.continueErr = errBoom

	for i := 0; i < models.MaxTurns; i++ {
		_, err := env.stories.AddTurn(ctx, child.ID, session.ID, childLine)
		require.ErrorIs(t, err, ErrAIUnavailable)
	}

	detail, err := env.stories.GetSession(ctx, viewerOf(child), session.ID)
	require.NoError(t, err)
	assert.Empty(t, detail.Turns)
	assert.Equal(t, models.MaxTurns, detail.Session.APICallsUsed)

	env.ai.continueErr = nil
	_, err = env.stories.AddTurn(ctx, child.ID, session.ID, childLine)
	assert.ErrorIs(t, err, ErrAPICallLimitReached)
}

func TestStatusTransitions(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.register(t, "admin@example.com")
	child := env.register(t, "child@example.com")

	empty := env.writeStory(t, child.ID, "Empty", 0)
	_, err := env.stories.CompleteSession(ctx, child.ID, empty.ID)
	assert.ErrorIs(t, err, ErrNoTurns)

	session := env.writeStory(t, child.ID, "Busy", 2)
	paused, err := env.stories.PauseSession(ctx, child.ID, session.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPaused, paused.Status)

	_, err = env.stories.CompleteSession(ctx, child.ID, session.ID)
	assert.ErrorIs(t, err, models.ErrInvalidTransition)

	resumed, err := env.stories.ResumeSession(ctx, child.ID, session.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusActive, resumed.Status)

	completed, err := env.stories.CompleteSession(ctx, child.ID, session.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, completed.Status)
	assert.NotNil(t, completed.CompletedAt)

	_, err = env.stories.ResumeSession(ctx, child.ID, session.ID)
	assert.ErrorIs(t, err, models.ErrInvalidTransition)

	flagged, err := env.stories.FlagSession(ctx, session.ID, models.ActorAdmin)
	require.NoError(t, err)
	assert.Equal(t, models.StatusFlagged, flagged.Status)

	reviewed, err := env.stories.ReviewFlagged(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, reviewed.Status)

	detail, err := env.stories.GetSession(ctx, viewerOf(child), session.ID)
	require.NoError(t, err)
	require.NotNil(t, detail.Session.CompletedAt)
	assert.True(t, detail.Session.CompletedAt.Equal(*completed.CompletedAt))
}

func TestGetSessionAccess(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	admin := env.register(t, "admin@example.com")
	child := env.register(t, "child@example.com")
	other := env.register(t, "other@example.com")
	mentor := env.makeRole(t, admin.ID, env.register(t, "mentor@example.com").ID, models.RoleMentor)

	session := env.writeStory(t, child.ID, "Private", 1)

	tests := []struct {
		name    string
		viewer  Viewer
		wantErr error
	}{
		{"owner", viewerOf(child), nil},
		{"mentor", viewerOf(mentor), nil},
		{"admin", viewerOf(admin), nil},
		{"other child", viewerOf(other), ErrForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			detail, err := env.stories.GetSession(ctx, tt.viewer, session.ID)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Len(t, detail.Turns, 1)
			assert.False(t, detail.Assessment.HasAssessment)
			assert.True(t, detail.Assessment.CanReassess)
		})
	}

	list, err := env.stories.ListSessions(ctx, child.ID)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestRequestAssessment(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.register(t, "admin@example.com")
	child := env.register(t, "child@example.com")

	session := env.writeStory(t, child.ID, "Scored", 2)
	_, err := env.stories.RequestAssessment(ctx, child.ID, session.ID)
	assert.ErrorIs(t, err, ErrNotCompleted)

	_, err = env.stories.CompleteSession(ctx, child.ID, session.ID)
	require.NoError(t, err)

	env.ai.assessErr = errBoom
	_, err = env.stories.RequestAssessment(ctx, child.ID, session.ID)
	assert.ErrorIs(t, err, ErrAssessmentFailed)
	env.ai.assessErr = nil

	for attempt := 1; attempt <= 3; attempt++ {
		view, err := env.stories.RequestAssessment(ctx, child.ID, session.ID)
		require.NoError(t, err)
		assert.Equal(t, attempt, view.Attempts)
		assert.Equal(t, 3-attempt, view.AttemptsRemaining)
		assert.Equal(t, attempt < 3, view.CanReassess)
	}

	_, err = env.stories.RequestAssessment(ctx, child.ID, session.ID)
	assert.ErrorIs(t, err, ErrAssessmentLimitReached)

	require.NotEmpty(t, env.ai.scored)
	req := env.ai.scored[len(env.ai.scored)-1]
	assert.Equal(t, "Scored", req.Title)
	assert.Contains(t, req.Text, childLine)
	assert.Contains(t, req.Text, aiLine)
	assert.Equal(t, 28, req.ChildWordCount)
}

func TestRequestAssessmentDisabled(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.register(t, "admin@example.com")
	child := env.register(t, "child@example.com")

	settings := models.DefaultSiteSettings()
	settings.AssessmentEnabled = false
	_, err := env.admin.UpdateSettings(ctx, settings)
	require.NoError(t, err)

	session := env.writeStory(t, child.ID, "Quiet", 1)
	_, err = env.stories.CompleteSession(ctx, child.ID, session.ID)
	require.NoError(t, err)

	_, err = env.stories.RequestAssessment(ctx, child.ID, session.ID)
	assert.ErrorIs(t, err, ErrAssessmentDisabled)
}

func TestStoryText(t *testing.T) {
	turns := []models.Turn{
		{ChildInput: " Once upon a time ", AIResponse: "there was a fox."},
		{ChildInput: "The end.", AIResponse: ""},
	}
	assert.Equal(t, "Once upon a time\n\nthere was a fox.\n\nThe end.", StoryText(turns))
	assert.Equal(t, "", StoryText(nil))
}
