package handlers

import (
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"mintoons/internal/payment"
	"mintoons/internal/service"
)

// PublishHandler serves the gallery and checkout
type PublishHandler struct {
	publish *service.PublishService
	logger  *zap.Logger
}

// NewPublishHandler creates a new publish handler
func NewPublishHandler(publish *service.PublishService, logger *zap.Logger) *PublishHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PublishHandler{publish: publish, logger: logger.Named("PublishHandler")}
}

type publishRequest struct {
	SessionID int64 `json:"sessionId"`
}

type checkoutRequest struct {
	ProductType payment.ProductType `json:"productType"`
	SessionID   int64               `json:"sessionId"`
}

// Publish snapshots a completed story into the gallery
func (h *PublishHandler) Publish(w http.ResponseWriter, r *http.Request) {
	var req publishRequest
	if err := decodeJSON(w, r, &req); err != nil || req.SessionID <= 0 {
		respondWithError(w, h.logger, http.StatusBadRequest, ErrInvalidJSON, "", nil)
		return
	}

	story, err := h.publish.Publish(r.Context(), viewerFrom(r.Context()).UserID, req.SessionID)
	if err != nil {
		respondWithServiceError(w, h.logger, err)
		return
	}
	respondWithJSON(w, http.StatusCreated, map[string]interface{}{"success": true, "story": story})
}

// ListPublished returns a page of the public gallery
func (h *PublishHandler) ListPublished(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	result, err := h.publish.ListPublished(r.Context(), page, limit)
	if err != nil {
		respondWithServiceError(w, h.logger, err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"stories": result.Stories,
		"total":   result.Total,
		"page":    result.Page,
		"limit":   result.Limit,
	})
}

// Checkout opens a payment session
func (h *PublishHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	var req checkoutRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondWithError(w, h.logger, http.StatusBadRequest, ErrInvalidJSON, "", nil)
		return
	}

	session, err := h.publish.CreateCheckout(r.Context(), viewerFrom(r.Context()).UserID, req.ProductType, req.SessionID)
	if err != nil {
		respondWithServiceError(w, h.logger, err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"success":   true,
		"sessionId": session.ID,
		"url":       session.URL,
	})
}
