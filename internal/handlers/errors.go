package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"mintoons/internal/models"
	"mintoons/internal/security"
	"mintoons/internal/service"
)

type errorResponse struct {
	Success bool     `json:"success"`
	Message string   `json:"message"`
	Field   string   `json:"field,omitempty"`
	Reasons []string `json:"reasons,omitempty"`
}

func respondWithJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if payload != nil {
		json.NewEncoder(w).Encode(payload)
	}
}

// respondWithError writes the JSON error envelope. err, when set, is logged
// under logMsg and never shown to the client.
func respondWithError(w http.ResponseWriter, logger *zap.Logger, status int, userMsg, logMsg string, err error) {
	if err != nil {
		if logMsg == "" {
			logMsg = userMsg
		}
		logger.Error(logMsg, zap.Error(err))
	}
	respondWithJSON(w, status, errorResponse{Message: userMsg})
}

// respondWithServiceError maps a service error to a status code. Business
// rule messages are passed through; anything unknown is a 500.
func respondWithServiceError(w http.ResponseWriter, logger *zap.Logger, err error) {
	var vErr *models.ValidationError
	if errors.As(err, &vErr) {
		respondWithJSON(w, http.StatusBadRequest, errorResponse{Message: vErr.Message, Field: vErr.Field})
		return
	}
	var ineligible *service.IneligibleError
	if errors.As(err, &ineligible) {
		respondWithJSON(w, http.StatusBadRequest, errorResponse{Message: service.ErrStoryNotEligible.Error(), Reasons: ineligible.Reasons})
		return
	}

	status := statusFor(err)
	if status == http.StatusInternalServerError {
		respondWithError(w, logger, status, ErrInternalServerError, "Unhandled service error", err)
		return
	}
	respondWithJSON(w, status, errorResponse{Message: err.Error()})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, service.ErrInvalidCredentials),
		errors.Is(err, security.ErrTokenExpired),
		errors.Is(err, security.ErrTokenMalformed),
		errors.Is(err, security.ErrTokenInvalid):
		return http.StatusUnauthorized

	case errors.Is(err, service.ErrForbidden),
		errors.Is(err, service.ErrAccountDisabled),
		errors.Is(err, service.ErrRegistrationClosed),
		errors.Is(err, service.ErrAssessmentDisabled):
		return http.StatusForbidden

	case errors.Is(err, service.ErrStoryNotFound),
		errors.Is(err, service.ErrUserNotFound),
		errors.Is(err, service.ErrCompetitionNotFound):
		return http.StatusNotFound

	case errors.Is(err, service.ErrEmailTaken),
		errors.Is(err, service.ErrTurnConflict),
		errors.Is(err, service.ErrAlreadyPublished),
		errors.Is(err, service.ErrAlreadySubmitted),
		errors.Is(err, service.ErrCompetitionExists),
		errors.Is(err, models.ErrInvalidTransition),
		errors.Is(err, models.ErrInvalidPhaseTransition):
		return http.StatusConflict

	case errors.Is(err, service.ErrInvalidResetToken),
		errors.Is(err, service.ErrResetTokenUsed),
		errors.Is(err, service.ErrResetTokenExpired),
		errors.Is(err, service.ErrCannotDeleteSelf),
		errors.Is(err, service.ErrStoryNotActive),
		errors.Is(err, service.ErrStoryQuotaReached),
		errors.Is(err, service.ErrTurnLimitReached),
		errors.Is(err, service.ErrAPICallLimitReached),
		errors.Is(err, service.ErrInappropriateContent),
		errors.Is(err, service.ErrNoTurns),
		errors.Is(err, service.ErrNotCompleted),
		errors.Is(err, service.ErrAssessmentLimitReached),
		errors.Is(err, service.ErrOnlyCompletedPublish),
		errors.Is(err, service.ErrNotPublished),
		errors.Is(err, service.ErrEntryLimitReached),
		errors.Is(err, service.ErrStoryNotEligible),
		errors.Is(err, service.ErrCompetitionClosed),
		errors.Is(err, service.ErrResultsNotAllowed):
		return http.StatusBadRequest

	case errors.Is(err, service.ErrAIUnavailable),
		errors.Is(err, service.ErrAssessmentFailed):
		return http.StatusBadGateway

	case errors.Is(err, service.ErrPaymentsUnavailable):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// decodeJSON reads a size-limited JSON body into dst
func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	return json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(dst)
}
