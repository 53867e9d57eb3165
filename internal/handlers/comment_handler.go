package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"mintoons/internal/models"
	"mintoons/internal/service"
)

// CommentHandler serves story comments
type CommentHandler struct {
	comments *service.CommentService
	logger   *zap.Logger
}

// NewCommentHandler creates a new comment handler
func NewCommentHandler(comments *service.CommentService, logger *zap.Logger) *CommentHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CommentHandler{comments: comments, logger: logger.Named("CommentHandler")}
}

type addCommentRequest struct {
	Type    models.CommentType `json:"type"`
	Content string             `json:"content"`
}

// List returns the comments on a story
func (h *CommentHandler) List(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		respondWithError(w, h.logger, http.StatusBadRequest, ErrInvalidID, "", nil)
		return
	}

	comments, err := h.comments.List(r.Context(), viewerFrom(r.Context()), id)
	if err != nil {
		respondWithServiceError(w, h.logger, err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]interface{}{"success": true, "comments": comments})
}

// Add leaves a comment on a story
func (h *CommentHandler) Add(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		respondWithError(w, h.logger, http.StatusBadRequest, ErrInvalidID, "", nil)
		return
	}
	var req addCommentRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondWithError(w, h.logger, http.StatusBadRequest, ErrInvalidJSON, "", nil)
		return
	}

	comment, err := h.comments.Add(r.Context(), viewerFrom(r.Context()), id, req.Type, req.Content)
	if err != nil {
		respondWithServiceError(w, h.logger, err)
		return
	}
	respondWithJSON(w, http.StatusCreated, map[string]interface{}{"success": true, "comment": comment})
}
