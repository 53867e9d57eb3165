package handlers

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"mintoons/internal/models"
	"mintoons/internal/service"
)

// AdminHandler handles admin-related HTTP requests
type AdminHandler struct {
	adminService       *service.AdminService
	storyService       *service.StoryService
	competitionService *service.CompetitionService
	backupService      *service.BackupService
	logger             *zap.Logger
}

// NewAdminHandler creates a new admin handler
func NewAdminHandler(adminService *service.AdminService, storyService *service.StoryService, competitionService *service.CompetitionService, backupService *service.BackupService, logger *zap.Logger) *AdminHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AdminHandler{
		adminService:       adminService,
		storyService:       storyService,
		competitionService: competitionService,
		backupService:      backupService,
		logger:             logger.Named("AdminHandler"),
	}
}

type createCompetitionRequest struct {
	Month string `json:"month"`
	Title string `json:"title"`
	Theme string `json:"theme"`
}

type recordResultsRequest struct {
	Results []models.JudgingResult `json:"results"`
}

// ListUsers returns a filtered page of users
func (h *AdminHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	page, _ := strconv.Atoi(query.Get("page"))
	limit, _ := strconv.Atoi(query.Get("limit"))

	result, err := h.adminService.ListUsers(r.Context(), models.UserFilter{
		Role:   models.Role(query.Get("role")),
		Search: query.Get("search"),
		Page:   page,
		Limit:  limit,
	})
	if err != nil {
		respondWithServiceError(w, h.logger, err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"users":   result.Users,
		"total":   result.Total,
		"page":    result.Page,
		"limit":   result.Limit,
	})
}

// UpdateUser edits a user's role, tier, status or name
func (h *AdminHandler) UpdateUser(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		respondWithError(w, h.logger, http.StatusBadRequest, ErrInvalidID, "", nil)
		return
	}
	var upd models.UserUpdate
	if err := decodeJSON(w, r, &upd); err != nil {
		respondWithError(w, h.logger, http.StatusBadRequest, ErrInvalidJSON, "", nil)
		return
	}

	user, err := h.adminService.UpdateUser(r.Context(), viewerFrom(r.Context()).UserID, id, upd)
	if err != nil {
		respondWithServiceError(w, h.logger, err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]interface{}{"success": true, "user": user})
}

// DeleteUser removes a user
func (h *AdminHandler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		respondWithError(w, h.logger, http.StatusBadRequest, ErrInvalidID, "", nil)
		return
	}

	if err := h.adminService.DeleteUser(r.Context(), viewerFrom(r.Context()).UserID, id); err != nil {
		respondWithServiceError(w, h.logger, err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]interface{}{"success": true})
}

// GetSettings returns the site settings
func (h *AdminHandler) GetSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := h.adminService.GetSettings(r.Context())
	if err != nil {
		respondWithServiceError(w, h.logger, err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]interface{}{"success": true, "settings": settings})
}

// UpdateSettings replaces the site settings
func (h *AdminHandler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := h.adminService.GetSettings(r.Context())
	if err != nil {
		respondWithServiceError(w, h.logger, err)
		return
	}
	// fields missing from the body keep their stored values
	if err := decodeJSON(w, r, &settings); err != nil {
		respondWithError(w, h.logger, http.StatusBadRequest, ErrInvalidJSON, "", nil)
		return
	}

	saved, err := h.adminService.UpdateSettings(r.Context(), settings)
	if err != nil {
		respondWithServiceError(w, h.logger, err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]interface{}{"success": true, "settings": saved})
}

// CreateCompetition opens a new month's competition
func (h *AdminHandler) CreateCompetition(w http.ResponseWriter, r *http.Request) {
	var req createCompetitionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondWithError(w, h.logger, http.StatusBadRequest, ErrInvalidJSON, "", nil)
		return
	}

	comp, err := h.competitionService.Create(r.Context(), req.Month, req.Title, req.Theme)
	if err != nil {
		respondWithServiceError(w, h.logger, err)
		return
	}
	respondWithJSON(w, http.StatusCreated, map[string]interface{}{"success": true, "competition": comp})
}

// AdvanceCompetition moves a competition to its next phase
func (h *AdminHandler) AdvanceCompetition(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		respondWithError(w, h.logger, http.StatusBadRequest, ErrInvalidID, "", nil)
		return
	}

	comp, err := h.competitionService.Advance(r.Context(), id)
	if err != nil {
		respondWithServiceError(w, h.logger, err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]interface{}{"success": true, "competition": comp})
}

// RecordResults writes back externally judged results
func (h *AdminHandler) RecordResults(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		respondWithError(w, h.logger, http.StatusBadRequest, ErrInvalidID, "", nil)
		return
	}
	var req recordResultsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondWithError(w, h.logger, http.StatusBadRequest, ErrInvalidJSON, "", nil)
		return
	}

	n, err := h.competitionService.RecordResults(r.Context(), id, req.Results)
	if err != nil {
		respondWithServiceError(w, h.logger, err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]interface{}{"success": true, "updated": n})
}

// ListFlagged returns stories waiting for review
func (h *AdminHandler) ListFlagged(w http.ResponseWriter, r *http.Request) {
	stories, err := h.storyService.ListFlagged(r.Context())
	if err != nil {
		respondWithServiceError(w, h.logger, err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]interface{}{"success": true, "stories": stories})
}

// FlagStory sends a story to review
func (h *AdminHandler) FlagStory(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		respondWithError(w, h.logger, http.StatusBadRequest, ErrInvalidID, "", nil)
		return
	}

	story, err := h.storyService.FlagSession(r.Context(), id, models.ActorAdmin)
	if err != nil {
		respondWithServiceError(w, h.logger, err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]interface{}{"success": true, "story": story})
}

// ReviewStory clears a flagged story back to active
func (h *AdminHandler) ReviewStory(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		respondWithError(w, h.logger, http.StatusBadRequest, ErrInvalidID, "", nil)
		return
	}

	story, err := h.storyService.ReviewFlagged(r.Context(), id)
	if err != nil {
		respondWithServiceError(w, h.logger, err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]interface{}{"success": true, "story": story})
}

// ResetQuotas runs the monthly quota reset
func (h *AdminHandler) ResetQuotas(w http.ResponseWriter, r *http.Request) {
	result, err := h.adminService.ResetMonthlyQuotas(r.Context())
	if err != nil {
		respondWithServiceError(w, h.logger, err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"success":    true,
		"usersReset": result.UsersReset,
		"emailsSent": result.EmailsSent,
	})
}

// ExportDatabase streams a JSON backup as a download
func (h *AdminHandler) ExportDatabase(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r.Context())

	timestamp := time.Now().Format("20060102_150405")
	filename := fmt.Sprintf("mintoons_backup_%s.json", timestamp)
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s", filename))

	if err := h.backupService.Export(r.Context(), w); err != nil {
		respondWithError(w, h.logger, http.StatusInternalServerError, "Failed to export database", "Error exporting database", err)
		return
	}
	h.logger.Info("Database exported", zap.String("admin", user.Email))
}

// ImportDatabase restores an uploaded backup. ?clear=true empties every
// table first.
func (h *AdminHandler) ImportDatabase(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r.Context())
	clearData := r.URL.Query().Get("clear") == "true"

	body := http.MaxBytesReader(w, r.Body, 64<<20)
	if err := h.backupService.Import(r.Context(), body, clearData); err != nil {
		h.logger.Error("Error importing database", zap.Error(err))
		respondWithError(w, h.logger, http.StatusBadRequest, "Failed to import database: "+err.Error(), "", nil)
		return
	}

	h.logger.Info("Database imported", zap.String("admin", user.Email), zap.Bool("clear", clearData))
	respondWithJSON(w, http.StatusOK, map[string]interface{}{"success": true, "message": "Database imported successfully"})
}
