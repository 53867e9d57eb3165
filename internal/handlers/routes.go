package handlers

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Handlers groups every HTTP handler the router mounts
type Handlers struct {
	Auth         *AuthHandler
	Stories      *StoryHandler
	Publish      *PublishHandler
	Comments     *CommentHandler
	Competitions *CompetitionHandler
	Admin        *AdminHandler
	Health       http.HandlerFunc
}

// NewRouter registers all routes and wraps them in the logging, recovery
// and maintenance middleware
func NewRouter(h Handlers, m *Middleware) http.Handler {
	mux := http.NewServeMux()

	// Public
	mux.HandleFunc("POST /api/auth/register", m.RateLimit(h.Auth.Register))
	mux.HandleFunc("POST "+loginPath, m.RateLimit(h.Auth.Login))
	mux.HandleFunc("POST /api/auth/forgot-password", m.RateLimit(h.Auth.ForgotPassword))
	mux.HandleFunc("POST /api/auth/reset-password", h.Auth.ResetPassword)
	mux.HandleFunc("GET /api/stories/published", h.Publish.ListPublished)
	mux.HandleFunc("GET /healthz", h.Health)
	mux.Handle("GET /metrics", promhttp.Handler())

	// Authenticated
	mux.HandleFunc("GET /api/auth/me", m.RequireAuth(h.Auth.Me))

	mux.HandleFunc("GET /api/user/stories", m.RequireAuth(h.Stories.List))
	mux.HandleFunc("POST /api/user/stories", m.RequireAuth(h.Stories.Create))
	mux.HandleFunc("GET /api/user/stories/{id}", m.RequireAuth(h.Stories.Get))
	mux.HandleFunc("POST /api/user/stories/{id}/turns", m.RequireAuth(m.RateLimit(h.Stories.AddTurn)))
	mux.HandleFunc("POST /api/user/stories/{id}/complete", m.RequireAuth(h.Stories.Complete))
	mux.HandleFunc("POST /api/user/stories/{id}/pause", m.RequireAuth(h.Stories.Pause))
	mux.HandleFunc("POST /api/user/stories/{id}/resume", m.RequireAuth(h.Stories.Resume))
	mux.HandleFunc("POST /api/user/stories/{id}/assess", m.RequireAuth(h.Stories.Assess))

	mux.HandleFunc("POST /api/stories/publish", m.RequireAuth(h.Publish.Publish))
	mux.HandleFunc("GET /api/stories/eligible-for-competition", m.RequireAuth(h.Competitions.EligibleStories))
	mux.HandleFunc("GET /api/stories/{id}/comments", m.RequireAuth(h.Comments.List))
	mux.HandleFunc("POST /api/stories/{id}/comments", m.RequireAuth(h.Comments.Add))

	mux.HandleFunc("GET /api/competitions/current", m.RequireAuth(h.Competitions.Current))
	mux.HandleFunc("GET /api/competitions/previous", m.RequireAuth(h.Competitions.Previous))
	mux.HandleFunc("POST /api/competitions/check-eligibility", m.RequireAuth(h.Competitions.CheckEligibility))
	mux.HandleFunc("POST /api/competitions/submit", m.RequireAuth(h.Competitions.Submit))

	mux.HandleFunc("POST /api/stripe/checkout", m.RequireAuth(h.Publish.Checkout))

	// Admin
	mux.HandleFunc("GET /api/admin/users", m.RequireAdmin(h.Admin.ListUsers))
	mux.HandleFunc("PATCH /api/admin/users/{id}", m.RequireAdmin(h.Admin.UpdateUser))
	mux.HandleFunc("DELETE /api/admin/users/{id}", m.RequireAdmin(h.Admin.DeleteUser))
	mux.HandleFunc("GET /api/admin/settings", m.RequireAdmin(h.Admin.GetSettings))
	mux.HandleFunc("PUT /api/admin/settings", m.RequireAdmin(h.Admin.UpdateSettings))
	mux.HandleFunc("POST /api/admin/competitions", m.RequireAdmin(h.Admin.CreateCompetition))
	mux.HandleFunc("POST /api/admin/competitions/{id}/advance", m.RequireAdmin(h.Admin.AdvanceCompetition))
	mux.HandleFunc("POST /api/admin/competitions/{id}/results", m.RequireAdmin(h.Admin.RecordResults))
	mux.HandleFunc("GET /api/admin/stories/flagged", m.RequireAdmin(h.Admin.ListFlagged))
	mux.HandleFunc("POST /api/admin/stories/{id}/flag", m.RequireAdmin(h.Admin.FlagStory))
	mux.HandleFunc("POST /api/admin/stories/{id}/review", m.RequireAdmin(h.Admin.ReviewStory))
	mux.HandleFunc("POST /api/admin/quotas/reset", m.RequireAdmin(h.Admin.ResetQuotas))
	mux.HandleFunc("GET /api/admin/backup", m.RequireAdmin(h.Admin.ExportDatabase))
	mux.HandleFunc("POST /api/admin/backup", m.RequireAdmin(h.Admin.ImportDatabase))

	return m.Logging(m.Recover(m.Maintenance(mux)))
}
