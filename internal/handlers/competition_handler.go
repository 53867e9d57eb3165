package handlers

import (
	"context"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"mintoons/internal/service"
)

// CompetitionHandler serves the monthly competition to writers
type CompetitionHandler struct {
	competitions *service.CompetitionService
	logger       *zap.Logger
}

// NewCompetitionHandler creates a new competition handler
func NewCompetitionHandler(competitions *service.CompetitionService, logger *zap.Logger) *CompetitionHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CompetitionHandler{competitions: competitions, logger: logger.Named("CompetitionHandler")}
}

type submissionRequest struct {
	SessionID     int64 `json:"sessionId"`
	CompetitionID int64 `json:"competitionId"`
}

// Current returns the active competition and the caller's entries
func (h *CompetitionHandler) Current(w http.ResponseWriter, r *http.Request) {
	current, err := h.competitions.Current(r.Context(), viewerFrom(r.Context()).UserID)
	if err != nil {
		respondWithServiceError(w, h.logger, err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"success":          true,
		"competition":      current.Competition,
		"entries":          current.Entries,
		"entriesUsed":      current.EntriesUsed,
		"entriesRemaining": current.EntriesRemaining,
		"maxEntries":       current.MaxEntries,
	})
}

// Previous returns finished competitions with their winners
func (h *CompetitionHandler) Previous(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	competitions, err := h.competitions.Previous(r.Context(), limit)
	if err != nil {
		respondWithServiceError(w, h.logger, err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]interface{}{"success": true, "competitions": competitions})
}

// EligibleStories lists the caller's stories that could be entered
func (h *CompetitionHandler) EligibleStories(w http.ResponseWriter, r *http.Request) {
	stories, err := h.competitions.EligibleStories(r.Context(), viewerFrom(r.Context()).UserID)
	if err != nil {
		respondWithServiceError(w, h.logger, err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]interface{}{"success": true, "stories": stories})
}

// CheckEligibility explains whether a story can be entered right now
func (h *CompetitionHandler) CheckEligibility(w http.ResponseWriter, r *http.Request) {
	var req submissionRequest
	if err := decodeJSON(w, r, &req); err != nil || req.SessionID <= 0 {
		respondWithError(w, h.logger, http.StatusBadRequest, ErrInvalidJSON, "", nil)
		return
	}

	eligibility, err := h.competitions.CheckEligibility(r.Context(), viewerFrom(r.Context()).UserID, req.SessionID)
	if err != nil {
		respondWithServiceError(w, h.logger, err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"success":       true,
		"eligible":      eligibility.Eligible,
		"reasons":       eligibility.Reasons,
		"competitionId": eligibility.CompetitionID,
	})
}

// Submit enters a story. Without a competitionId the active competition is used.
func (h *CompetitionHandler) Submit(w http.ResponseWriter, r *http.Request) {
	var req submissionRequest
	if err := decodeJSON(w, r, &req); err != nil || req.SessionID <= 0 {
		respondWithError(w, h.logger, http.StatusBadRequest, ErrInvalidJSON, "", nil)
		return
	}
	userID := viewerFrom(r.Context()).UserID

	competitionID := req.CompetitionID
	if competitionID == 0 {
		id, err := h.activeCompetitionID(r.Context(), userID)
		if err != nil {
			respondWithServiceError(w, h.logger, err)
			return
		}
		competitionID = id
	}

	sub, err := h.competitions.Submit(r.Context(), userID, req.SessionID, competitionID)
	if err != nil {
		respondWithServiceError(w, h.logger, err)
		return
	}
	respondWithJSON(w, http.StatusCreated, map[string]interface{}{"success": true, "submission": sub})
}

func (h *CompetitionHandler) activeCompetitionID(ctx context.Context, userID int64) (int64, error) {
	current, err := h.competitions.Current(ctx, userID)
	if err != nil {
		return 0, err
	}
	if current.Competition == nil {
		return 0, service.ErrCompetitionClosed
	}
	return current.Competition.ID, nil
}
