package handlers

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"mintoons/internal/metrics"
	"mintoons/internal/models"
	"mintoons/internal/security"
	"mintoons/internal/service"
)

// ContextKey is a custom type for context keys to avoid collisions
type ContextKey string

const UserContextKey ContextKey = "user"

// Middleware holds dependencies for middleware functions
type Middleware struct {
	authService *service.AuthService
	settings    service.SettingsReader
	rateLimiter *security.RateLimiter
	logger      *zap.Logger
}

// NewMiddleware creates a new middleware instance. rateLimiter may be nil
// to disable rate limiting.
func NewMiddleware(authService *service.AuthService, settings service.SettingsReader, rateLimiter *security.RateLimiter, logger *zap.Logger) *Middleware {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Middleware{
		authService: authService,
		settings:    settings,
		rateLimiter: rateLimiter,
		logger:      logger.Named("Middleware"),
	}
}

// RequireAuth resolves the bearer token to a user
func (m *Middleware) RequireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r)
		if !ok {
			respondWithError(w, m.logger, http.StatusUnauthorized, ErrUnauthorized, "", nil)
			return
		}

		user, err := m.authService.Authenticate(r.Context(), token)
		if err != nil {
			m.logger.Debug("Rejected bearer token", zap.Error(err))
			respondWithServiceError(w, m.logger, err)
			return
		}

		ctx := context.WithValue(r.Context(), UserContextKey, user)
		next(w, r.WithContext(ctx))
	}
}

// RequireAdmin is RequireAuth plus an admin role check
func (m *Middleware) RequireAdmin(next http.HandlerFunc) http.HandlerFunc {
	return m.RequireAuth(func(w http.ResponseWriter, r *http.Request) {
		user := GetUserFromContext(r.Context())
		if user == nil || !user.IsAdmin() {
			respondWithError(w, m.logger, http.StatusForbidden, ErrAdminOnly, "", nil)
			return
		}
		next(w, r)
	})
}

// RateLimit rejects clients that exceed the limiter's budget
func (m *Middleware) RateLimit(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if m.rateLimiter != nil {
			ip := security.GetClientIP(r)
			if !m.rateLimiter.Allow(r.Method + " " + r.URL.Path + "|" + ip) {
				m.logger.Warn("Rate limit exceeded", zap.String("ip", ip), zap.String("path", r.URL.Path))
				w.Header().Set("Retry-After", "60")
				respondWithError(w, m.logger, http.StatusTooManyRequests, ErrTooManyRequests, "", nil)
				return
			}
		}
		next(w, r)
	}
}

// Maintenance turns away writes from everyone but admins while the site is
// in maintenance mode. Reads and login stay open.
func (m *Middleware) Maintenance(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.settings == nil || readOnlyMethod(r.Method) || r.URL.Path == loginPath {
			next.ServeHTTP(w, r)
			return
		}

		settings, err := m.settings.GetSiteSettings(r.Context())
		if err != nil {
			m.logger.Warn("Failed to load site settings for maintenance check", zap.Error(err))
			next.ServeHTTP(w, r)
			return
		}
		if !settings.MaintenanceMode || m.isAdmin(r) {
			next.ServeHTTP(w, r)
			return
		}

		w.Header().Set("Retry-After", "300")
		respondWithError(w, m.logger, http.StatusServiceUnavailable, ErrMaintenance, "", nil)
	})
}

func (m *Middleware) isAdmin(r *http.Request) bool {
	token, ok := bearerToken(r)
	if !ok {
		return false
	}
	user, err := m.authService.Authenticate(r.Context(), token)
	return err == nil && user.IsAdmin()
}

func readOnlyMethod(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return true
	}
	return false
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (rec *statusRecorder) WriteHeader(status int) {
	rec.status = status
	rec.ResponseWriter.WriteHeader(status)
}

// Logging records an access log line and the request metrics
func (m *Middleware) Logging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		elapsed := time.Since(start)
		route := r.Pattern
		if route == "" {
			route = "unmatched"
		}
		metrics.HTTPRequestsTotal.WithLabelValues(route, r.Method, strconv.Itoa(rec.status)).Inc()
		metrics.HTTPRequestDuration.WithLabelValues(route, r.Method).Observe(elapsed.Seconds())

		fields := []zap.Field{
			zap.String("method", r.Method),
			zap.String("route", route),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.status),
			zap.Duration("latency", elapsed),
			zap.String("ip", security.GetClientIP(r)),
		}
		switch {
		case rec.status >= 500:
			m.logger.Error("Request failed", fields...)
		case rec.status >= 400:
			m.logger.Warn("Request rejected", fields...)
		default:
			m.logger.Info("Request handled", fields...)
		}
	})
}

// Recover turns a panic into a 500
func (m *Middleware) Recover(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if p := recover(); p != nil {
				m.logger.Error("Panic serving request", zap.Any("panic", p), zap.String("path", r.URL.Path))
				respondWithError(w, m.logger, http.StatusInternalServerError, ErrInternalServerError, "", nil)
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
		return "", false
	}
	return strings.TrimSpace(token), true
}

// GetUserFromContext retrieves the user from the request context
func GetUserFromContext(ctx context.Context) *models.User {
	user, ok := ctx.Value(UserContextKey).(*models.User)
	if !ok {
		return nil
	}
	return user
}

func viewerFrom(ctx context.Context) service.Viewer {
	user := GetUserFromContext(ctx)
	if user == nil {
		return service.Viewer{}
	}
	return service.Viewer{UserID: user.ID, Role: user.Role}
}

// pathID parses the {id} wildcard
func pathID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	return id, err == nil && id > 0
}
