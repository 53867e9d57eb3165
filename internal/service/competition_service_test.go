package service

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mintoons/internal/models"
)

func intPtr(n int) *int { return &n }

func (e *testEnv) openCompetition(t *testing.T) *models.Competition {
	t.Helper()
	comp, err := e.competitions.Create(context.Background(), "2026-10", "October Tales", "Autumn adventures")
	require.NoError(t, err)
	return comp
}

func TestWriteAssessPublishSubmit(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.register(t, "admin@example.com")
	child := env.register(t, "child@example.com")
	comp := env.openCompetition(t)

	session := env.writeStory(t, child.ID, "The River Key", models.MaxTurns)
	_, err := env.stories.AddTurn(ctx, child.ID, session.ID, childLine)
	require.ErrorIs(t, err, ErrTurnLimitReached)

	_, err = env.stories.CompleteSession(ctx, child.ID, session.ID)
	require.NoError(t, err)

	view, err := env.stories.RequestAssessment(ctx, child.ID, session.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, view.Attempts)
	require.NotNil(t, view.Overall)
	assert.Equal(t, 82, view.Overall.Score)
	for _, card := range view.Scores {
		assert.GreaterOrEqual(t, card.Score, 0)
		assert.LessOrEqual(t, card.Score, 100)
	}

	published, err := env.publish.Publish(ctx, child.ID, session.ID)
	require.NoError(t, err)
	assert.Equal(t, child.PenName, published.AuthorPenName)
	require.NotNil(t, published.OverallScore)
	assert.Equal(t, 82, *published.OverallScore)
	assert.Equal(t, models.MaxTurns*34, published.WordCount)

	current, err := env.competitions.Current(ctx, child.ID)
	require.NoError(t, err)
	require.NotNil(t, current.Competition)
	assert.Equal(t, comp.ID, current.Competition.ID)
	assert.Zero(t, current.EntriesUsed)
	assert.Equal(t, 3, current.EntriesRemaining)

	eligibility, err := env.competitions.CheckEligibility(ctx, child.ID, session.ID)
	require.NoError(t, err)
	assert.True(t, eligibility.Eligible, eligibility.Reasons)

	sub, err := env.competitions.Submit(ctx, child.ID, session.ID, comp.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SubmissionSubmitted, sub.Status)
	assert.Equal(t, models.MaxTurns*34, sub.WordCount)
	assert.Equal(t, "not_required", sub.PaymentStatus)

	current, err = env.competitions.Current(ctx, child.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, current.EntriesUsed)
	assert.Equal(t, 2, current.EntriesRemaining)
	assert.Equal(t, 1, current.Competition.TotalSubmissions)
	assert.Equal(t, 1, current.Competition.TotalParticipants)
	assert.Equal(t, 1, env.mailer.count("submission_received"))

	detail, err := env.stories.GetSession(ctx, viewerOf(child), session.ID)
	require.NoError(t, err)
	require.NotNil(t, detail.Session.CompetitionSubmissionID)
	assert.Equal(t, sub.ID, *detail.Session.CompetitionSubmissionID)
}

func TestSubmitEntryLimit(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.register(t, "admin@example.com")
	child := env.register(t, "child@example.com")
	comp := env.openCompetition(t)

	for i := 1; i <= 3; i++ {
		story := env.readyStory(t, child.ID, fmt.Sprintf("Story %d", i))
		_, err := env.competitions.Submit(ctx, child.ID, story.ID, comp.ID)
		require.NoError(t, err)
	}

	fourth := env.readyStory(t, child.ID, "Story 4")
	_, err := env.competitions.Submit(ctx, child.ID, fourth.ID, comp.ID)
	require.ErrorIs(t, err, ErrEntryLimitReached)
	assert.Contains(t, err.Error(), "limit reached")

	eligibility, err := env.competitions.CheckEligibility(ctx, child.ID, fourth.ID)
	require.NoError(t, err)
	assert.False(t, eligibility.Eligible)
	assert.Contains(t, eligibility.Reasons, "entry limit reached (3 per competition)")

	current, err := env.competitions.Current(ctx, child.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, current.EntriesUsed)
	assert.Zero(t, current.EntriesRemaining)
	assert.Equal(t, 3, current.Competition.TotalSubmissions)
	assert.Equal(t, 1, current.Competition.TotalParticipants)
}

func TestSubmitDuplicateTitle(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.register(t, "admin@example.com")
	child := env.register(t, "child@example.com")
	comp := env.openCompetition(t)

	first := env.readyStory(t, child.ID, "Same Title")
	second := env.readyStory(t, child.ID, "Same Title")

	_, err := env.competitions.Submit(ctx, child.ID, first.ID, comp.ID)
	require.NoError(t, err)

	eligibility, err := env.competitions.CheckEligibility(ctx, child.ID, second.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"already submitted this title"}, eligibility.Reasons)

	_, err = env.competitions.Submit(ctx, child.ID, second.ID, comp.ID)
	assert.ErrorIs(t, err, ErrAlreadySubmitted)
}

func TestSubmitIneligible(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.register(t, "admin@example.com")
	child := env.register(t, "child@example.com")
	other := env.register(t, "other@example.com")
	comp := env.openCompetition(t)

	draft := env.writeStory(t, child.ID, "Draft", 1)

	_, err := env.competitions.Submit(ctx, child.ID, draft.ID, comp.ID)
	var ineligible *IneligibleError
	require.ErrorAs(t, err, &ineligible)
	assert.ErrorIs(t, err, ErrStoryNotEligible)
	assert.Equal(t, []string{
		"story must be completed",
		"story must be published",
		"story needs at least 100 words",
	}, ineligible.Reasons)

	eligibility, err := env.competitions.CheckEligibility(ctx, other.ID, draft.ID)
	require.NoError(t, err)
	assert.Contains(t, eligibility.Reasons, "story does not belong to you")

	_, err = env.competitions.Submit(ctx, other.ID, draft.ID, comp.ID)
	assert.ErrorIs(t, err, ErrForbidden)

	ready := env.readyStory(t, child.ID, "Ready")
	eligible, err := env.competitions.EligibleStories(ctx, child.ID)
	require.NoError(t, err)
	require.Len(t, eligible, 1)
	assert.Equal(t, ready.ID, eligible[0].ID)
}

func TestCompetitionLifecycle(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.register(t, "admin@example.com")
	alice := env.register(t, "alice@example.com")
	bob := env.register(t, "bob@example.com")
	comp := env.openCompetition(t)

	aliceStory := env.readyStory(t, alice.ID, "Alice's Tale")
	bobStory := env.readyStory(t, bob.ID, "Bob's Tale")
	aliceSub, err := env.competitions.Submit(ctx, alice.ID, aliceStory.ID, comp.ID)
	require.NoError(t, err)
	bobSub, err := env.competitions.Submit(ctx, bob.ID, bobStory.ID, comp.ID)
	require.NoError(t, err)

	_, err = env.competitions.RecordResults(ctx, comp.ID, []models.JudgingResult{{SubmissionID: aliceSub.ID, Rank: intPtr(1)}})
	assert.ErrorIs(t, err, ErrResultsNotAllowed)

	judging, err := env.competitions.Advance(ctx, comp.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PhaseJudging, judging.Phase)

	late := env.readyStory(t, alice.ID, "Too Late")
	_, err = env.competitions.Submit(ctx, alice.ID, late.ID, comp.ID)
	assert.ErrorIs(t, err, ErrCompetitionClosed)

	_, err = env.competitions.RecordResults(ctx, comp.ID, []models.JudgingResult{
		{SubmissionID: aliceSub.ID, Rank: intPtr(1)},
		{SubmissionID: bobSub.ID, Rank: intPtr(1)},
	})
	var vErr *models.ValidationError
	assert.ErrorAs(t, err, &vErr)

	n, err := env.competitions.RecordResults(ctx, comp.ID, []models.JudgingResult{
		{SubmissionID: aliceSub.ID, Rank: intPtr(1), Score: intPtr(91)},
		{SubmissionID: bobSub.ID, Score: intPtr(70)},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	_, err = env.competitions.RecordResults(ctx, comp.ID, []models.JudgingResult{{SubmissionID: bobSub.ID, Rank: intPtr(1)}})
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "rank", vErr.Field)

	_, err = env.competitions.RecordResults(ctx, comp.ID, []models.JudgingResult{{SubmissionID: aliceSub.ID, Rank: intPtr(1), Score: intPtr(91)}})
	require.NoError(t, err)

	results, err := env.competitions.Advance(ctx, comp.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PhaseResults, results.Phase)
	assert.Equal(t, 1, env.mailer.count("competition_winner"))

	_, err = env.competitions.Advance(ctx, comp.ID)
	assert.ErrorIs(t, err, models.ErrInvalidPhaseTransition)

	previous, err := env.competitions.Previous(ctx, 0)
	require.NoError(t, err)
	require.Len(t, previous, 1)
	require.Len(t, previous[0].Winners, 1)
	winner := previous[0].Winners[0]
	assert.Equal(t, 1, winner.Rank)
	assert.Equal(t, alice.ID, winner.UserID)
	assert.Equal(t, "Alice's Tale", winner.Title)
	require.NotNil(t, winner.Score)
	assert.Equal(t, 91, *winner.Score)
}

func TestCreateCompetition(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	tests := []struct {
		name    string
		month   string
		title   string
		wantErr bool
	}{
		{"bad month", "2026-13", "Tales", true},
		{"bad format", "Oct 2026", "Tales", true},
		{"missing title", "2026-11", " ", true},
		{"valid", "2026-11", "November Tales", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			comp, err := env.competitions.Create(ctx, tt.month, tt.title, "")
			if tt.wantErr {
				var vErr *models.ValidationError
				assert.ErrorAs(t, err, &vErr)
				return
			}
			require.NoError(t, err)
			assert.True(t, comp.IsActive)
			assert.Equal(t, models.PhaseSubmission, comp.Phase)
			assert.Equal(t, 1, comp.SubmissionStart.Day())
			assert.Equal(t, comp.SubmissionStart.AddDate(0, 1, 0), comp.SubmissionEnd)
			assert.Equal(t, comp.SubmissionEnd.AddDate(0, 0, 7), comp.JudgingEnd)
		})
	}

	_, err := env.competitions.Create(ctx, "2026-11", "Again", "")
	assert.ErrorIs(t, err, ErrCompetitionExists)

	next, err := env.competitions.Create(ctx, "2026-12", "December Tales", "")
	require.NoError(t, err)
	current, err := env.competitions.Current(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, next.ID, current.Competition.ID)
}

func TestCurrentUsesCache(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	current, err := env.competitions.Current(ctx, 1)
	require.NoError(t, err)
	assert.Nil(t, current.Competition)
	assert.Zero(t, env.cache.sets)

	comp := env.openCompetition(t)
	for i := 0; i < 3; i++ {
		_, err := env.competitions.Current(ctx, 1)
		require.NoError(t, err)
	}
	assert.Equal(t, 1, env.cache.sets)

	// a read that started before the phase change must not repopulate the cache
	_, generation, err := env.cache.GetCurrent(ctx)
	require.NoError(t, err)
	_, err = env.competitions.Advance(ctx, comp.ID)
	require.NoError(t, err)
	require.NoError(t, env.cache.SetCurrent(ctx, comp, generation))
	assert.Nil(t, env.cache.cached())

	current, err = env.competitions.Current(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, models.PhaseJudging, current.Competition.Phase)
	assert.Equal(t, 2, env.cache.sets)
}
