package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"mintoons/internal/ai"
	"mintoons/internal/assessment"
	"mintoons/internal/database"
	"mintoons/internal/database/dbtest"
	"mintoons/internal/models"
	"mintoons/internal/payment"
	"mintoons/internal/security"
)

const (
	childLine = "Pip the otter swam down the sparkling river looking for her lost friend Milo."
	aiLine    = "The brave otter found a shiny key under the old oak tree and wondered which door it might open next."

	advancedPayload = `{"assessmentVersion": "2.0",
		"categoryScores": {"grammar": 78, "vocabulary": 81, "creativity": 90, "structure": 74,
			"characterDevelopment": 80, "plotDevelopment": 83, "overall": 82},
		"integrityAnalysis": {"originalityScore": 94, "plagiarismScore": 3, "aiDetectionScore": 12, "integrityRisk": "low"},
		"recommendations": ["Try describing how Milo feels"],
		"feedback": "A warm adventure with a clever twist.",
		"strengths": ["vivid river scenes"], "improvements": ["use more dialogue"]}`
)

var errBoom = errors.New("boom")

type fakeCollaborator struct {
	mu          sync.Mutex
	reply       string
	continueErr error
	assessErr   error
	prompts     []ai.TurnPrompt
	scored      []ai.ScoreRequest
}

func (f *fakeCollaborator) ContinueStory(_ context.Context, p ai.TurnPrompt) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prompts = append(f.prompts, p)
	if f.continueErr != nil {
		return "", f.continueErr
	}
	if f.reply == "" {
		return aiLine, nil
	}
	return f.reply, nil
}

func (f *fakeCollaborator) AssessStory(_ context.Context, req ai.ScoreRequest) (*assessment.Assessment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.scored = append(f.scored, req)
	if f.assessErr != nil {
		return nil, f.assessErr
	}
	return assessment.Decode([]byte(advancedPayload))
}

type sentMail struct {
	template string
	to       string
}

type fakeMailer struct {
	mu         sync.Mutex
	sent       []sentMail
	resetToken string
	err        error
}

func (m *fakeMailer) record(template, to string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, sentMail{template: template, to: to})
	return nil
}

func (m *fakeMailer) count(template string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, s := range m.sent {
		if s.template == template {
			n++
		}
	}
	return n
}

func (m *fakeMailer) SendWelcome(_ context.Context, user *models.User) error {
	return m.record("welcome", user.Email)
}

func (m *fakeMailer) SendPasswordReset(_ context.Context, user *models.User, token string) error {
	m.mu.Lock()
	m.resetToken = token
	m.mu.Unlock()
	return m.record("password_reset", user.Email)
}

func (m *fakeMailer) SendSubmissionReceived(_ context.Context, user *models.User, _ *models.Competition, _ *models.CompetitionSubmission) error {
	return m.record("submission_received", user.Email)
}

func (m *fakeMailer) SendWinner(_ context.Context, user *models.User, _ *models.Competition, _ *models.CompetitionSubmission) error {
	return m.record("competition_winner", user.Email)
}

func (m *fakeMailer) SendQuotaReset(_ context.Context, user *models.User, _ int) error {
	return m.record("quota_reset", user.Email)
}

type fakeCheckout struct {
	requests []payment.CheckoutRequest
	err      error
}

func (f *fakeCheckout) CreateCheckout(_ context.Context, req payment.CheckoutRequest) (*payment.CheckoutSession, error) {
	f.requests = append(f.requests, req)
	if f.err != nil {
		return nil, f.err
	}
	return &payment.CheckoutSession{ID: "cs_test_1", URL: "https://checkout.test/cs_test_1"}, nil
}

// memoryCache counts how often the competition is read from the database
type memoryCache struct {
	mu            sync.Mutex
	current       *models.Competition
	generation    int64
	sets          int
	invalidations int
}

func (c *memoryCache) GetCurrent(context.Context) (*models.Competition, int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == nil {
		return nil, c.generation, nil
	}
	copied := *c.current
	return &copied, c.generation, nil
}

func (c *memoryCache) SetCurrent(_ context.Context, comp *models.Competition, generation int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if generation != c.generation {
		return nil
	}
	copied := *comp
	c.current = &copied
	c.sets++
	return nil
}

func (c *memoryCache) Invalidate(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.current = nil
	c.generation++
	c.invalidations++
	return nil
}

func (c *memoryCache) cached() *models.Competition {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

type testEnv struct {
	db           *database.DB
	ai           *fakeCollaborator
	mailer       *fakeMailer
	checkout     *fakeCheckout
	cache        *memoryCache
	auth         *AuthService
	stories      *StoryService
	publish      *PublishService
	competitions *CompetitionService
	comments     *CommentService
	admin        *AdminService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db := dbtest.New(t)
	tokens, err := security.NewTokenManager("test-secret", time.Hour, nil)
	require.NoError(t, err)

	env := &testEnv{
		db:       db,
		ai:       &fakeCollaborator{},
		mailer:   &fakeMailer{},
		checkout: &fakeCheckout{},
		cache:    &memoryCache{},
	}
	env.auth = NewAuthService(db, tokens, env.mailer, nil)
	env.stories = NewStoryService(db, env.ai, db, nil)
	env.publish = NewPublishService(db, env.checkout, nil)
	env.competitions = NewCompetitionService(db, env.cache, env.mailer, nil)
	env.comments = NewCommentService(db, nil)
	env.admin = NewAdminService(db, env.cache, env.mailer, nil)
	return env
}

// register creates a user; the first one becomes an admin
func (e *testEnv) register(t *testing.T, email string) *models.User {
	t.Helper()
	name := strings.Split(email, "@")[0]
	user, err := e.auth.Register(context.Background(), email, "password123", name)
	require.NoError(t, err)
	return user
}

func (e *testEnv) makeRole(t *testing.T, adminID, userID int64, role models.Role) *models.User {
	t.Helper()
	user, err := e.admin.UpdateUser(context.Background(), adminID, userID, models.UserUpdate{Role: &role})
	require.NoError(t, err)
	return user
}

// writeStory creates a session with the given number of turns
func (e *testEnv) writeStory(t *testing.T, childID int64, title string, turns int) *models.StorySession {
	t.Helper()
	ctx := context.Background()
	session, err := e.stories.CreateSession(ctx, childID, title, models.StoryElements{
		Genre: "adventure", Character: "Pip the otter", Setting: "a river", Mood: "hopeful",
	})
	require.NoError(t, err)
	for i := 0; i < turns; i++ {
		_, err := e.stories.AddTurn(ctx, childID, session.ID, childLine)
		require.NoError(t, err)
	}
	return session
}

// readyStory is completed and published with enough words to enter a competition
func (e *testEnv) readyStory(t *testing.T, childID int64, title string) *models.StorySession {
	t.Helper()
	ctx := context.Background()
	session := e.writeStory(t, childID, title, 4)
	_, err := e.stories.CompleteSession(ctx, childID, session.ID)
	require.NoError(t, err)
	_, err = e.publish.Publish(ctx, childID, session.ID)
	require.NoError(t, err)
	return session
}

func viewerOf(u *models.User) Viewer {
	return Viewer{UserID: u.ID, Role: u.Role}
}
