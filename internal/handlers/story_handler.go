package handlers

import (
	"context"
	"net/http"

	"go.uber.org/zap"

	"mintoons/internal/models"
	"mintoons/internal/service"
)

// StoryHandler serves a child's own story sessions
type StoryHandler struct {
	stories *service.StoryService
	logger  *zap.Logger
}

// NewStoryHandler creates a new story handler
func NewStoryHandler(stories *service.StoryService, logger *zap.Logger) *StoryHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StoryHandler{stories: stories, logger: logger.Named("StoryHandler")}
}

type createStoryRequest struct {
	Title    string               `json:"title"`
	Elements models.StoryElements `json:"elements"`
}

type addTurnRequest struct {
	Input string `json:"input"`
}

// List returns the caller's stories
func (h *StoryHandler) List(w http.ResponseWriter, r *http.Request) {
	sessions, err := h.stories.ListSessions(r.Context(), viewerFrom(r.Context()).UserID)
	if err != nil {
		respondWithServiceError(w, h.logger, err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]interface{}{"success": true, "stories": sessions})
}

// Create starts a new story
func (h *StoryHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createStoryRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondWithError(w, h.logger, http.StatusBadRequest, ErrInvalidJSON, "", nil)
		return
	}

	session, err := h.stories.CreateSession(r.Context(), viewerFrom(r.Context()).UserID, req.Title, req.Elements)
	if err != nil {
		respondWithServiceError(w, h.logger, err)
		return
	}
	respondWithJSON(w, http.StatusCreated, map[string]interface{}{"success": true, "story": session})
}

// Get returns one story with its turns and assessment
func (h *StoryHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		respondWithError(w, h.logger, http.StatusBadRequest, ErrInvalidID, "", nil)
		return
	}

	detail, err := h.stories.GetSession(r.Context(), viewerFrom(r.Context()), id)
	if err != nil {
		respondWithServiceError(w, h.logger, err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"success":    true,
		"story":      detail.Session,
		"turns":      detail.Turns,
		"assessment": detail.Assessment,
	})
}

// AddTurn sends the child's next passage and returns the AI's reply
func (h *StoryHandler) AddTurn(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		respondWithError(w, h.logger, http.StatusBadRequest, ErrInvalidID, "", nil)
		return
	}
	var req addTurnRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondWithError(w, h.logger, http.StatusBadRequest, ErrInvalidJSON, "", nil)
		return
	}

	result, err := h.stories.AddTurn(r.Context(), viewerFrom(r.Context()).UserID, id, req.Input)
	if err != nil {
		respondWithServiceError(w, h.logger, err)
		return
	}
	respondWithJSON(w, http.StatusCreated, map[string]interface{}{
		"success":        true,
		"turn":           result.Turn,
		"story":          result.Session,
		"turnsRemaining": result.TurnsRemaining,
	})
}

type statusChange func(ctx context.Context, childID, sessionID int64) (*models.StorySession, error)

func (h *StoryHandler) changeStatus(change statusChange) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(r)
		if !ok {
			respondWithError(w, h.logger, http.StatusBadRequest, ErrInvalidID, "", nil)
			return
		}
		session, err := change(r.Context(), viewerFrom(r.Context()).UserID, id)
		if err != nil {
			respondWithServiceError(w, h.logger, err)
			return
		}
		respondWithJSON(w, http.StatusOK, map[string]interface{}{"success": true, "story": session})
	}
}

// Complete finishes a story
func (h *StoryHandler) Complete(w http.ResponseWriter, r *http.Request) {
	h.changeStatus(h.stories.CompleteSession)(w, r)
}

// Pause parks a story
func (h *StoryHandler) Pause(w http.ResponseWriter, r *http.Request) {
	h.changeStatus(h.stories.PauseSession)(w, r)
}

// Resume reopens a paused story
func (h *StoryHandler) Resume(w http.ResponseWriter, r *http.Request) {
	h.changeStatus(h.stories.ResumeSession)(w, r)
}

// Assess asks the AI scorer for an assessment
func (h *StoryHandler) Assess(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		respondWithError(w, h.logger, http.StatusBadRequest, ErrInvalidID, "", nil)
		return
	}

	view, err := h.stories.RequestAssessment(r.Context(), viewerFrom(r.Context()).UserID, id)
	if err != nil {
		respondWithServiceError(w, h.logger, err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]interface{}{"success": true, "assessment": view})
}
