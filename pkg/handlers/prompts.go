package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Emir1738/archestra/pkg/auth"
	"github.com/Emir1738/archestra/pkg/models"
	"github.com/Emir1738/archestra/pkg/services"
)

// TenantMiddleware wraps a handler with tenant scope setup.
type TenantMiddleware func(http.HandlerFunc) http.HandlerFunc

// PromptsHandler handles prompt lifecycle HTTP requests.
type PromptsHandler struct {
	promptService services.PromptService
	logger        *zap.Logger
}

// NewPromptsHandler creates a new prompts handler.
func NewPromptsHandler(promptService services.PromptService, logger *zap.Logger) *PromptsHandler {
	return &PromptsHandler{
		promptService: promptService,
		logger:        logger,
	}
}

// RegisterRoutes registers the prompt handler's routes on the given mux.
func (h *PromptsHandler) RegisterRoutes(mux *http.ServeMux, authMiddleware *auth.Middleware, tenantMiddleware TenantMiddleware) {
	base := "/api/orgs/{oid}/prompts"

	mux.HandleFunc("POST "+base,
		authMiddleware.RequireAuthWithPathValidation("oid")(tenantMiddleware(h.CreatePrompt)))
	mux.HandleFunc("GET "+base+"/{name}",
		authMiddleware.RequireAuthWithPathValidation("oid")(tenantMiddleware(h.GetActivePrompt)))
	mux.HandleFunc("PUT "+base+"/{name}",
		authMiddleware.RequireAuthWithPathValidation("oid")(tenantMiddleware(h.UpdatePrompt)))
	mux.HandleFunc("GET "+base+"/{name}/versions",
		authMiddleware.RequireAuthWithPathValidation("oid")(tenantMiddleware(h.ListVersions)))
	mux.HandleFunc("GET /api/orgs/{oid}/prompt-versions/{vid}",
		authMiddleware.RequireAuthWithPathValidation("oid")(tenantMiddleware(h.GetVersion)))
	mux.HandleFunc("DELETE /api/orgs/{oid}/prompt-versions/{vid}",
		authMiddleware.RequireAuthWithPathValidation("oid")(tenantMiddleware(h.DeleteVersion)))
	mux.HandleFunc("POST /api/orgs/{oid}/agents/{aid}/prompts",
		authMiddleware.RequireAuthWithPathValidation("oid")(tenantMiddleware(h.AssignPrompt)))
	mux.HandleFunc("DELETE /api/orgs/{oid}/agents/{aid}/prompts/{apid}",
		authMiddleware.RequireAuthWithPathValidation("oid")(tenantMiddleware(h.UnassignPrompt)))
}

// promptTypeParam returns the prompt type from the query string, defaulting
// to regular.
func promptTypeParam(r *http.Request) string {
	promptType := r.URL.Query().Get("type")
	if promptType == "" {
		promptType = models.PromptTypeRegular
	}
	return promptType
}

type createPromptRequest struct {
	Name        string `json:"name"`
	PromptType  string `json:"prompt_type"`
	Content     string `json:"content"`
	Description string `json:"description"`
}

// CreatePrompt handles POST /api/orgs/{oid}/prompts
func (h *PromptsHandler) CreatePrompt(w http.ResponseWriter, r *http.Request) {
	orgID, ok := ParseOrgID(w, r, h.logger)
	if !ok {
		return
	}

	var req createPromptRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if err := ErrorResponse(w, http.StatusBadRequest, "invalid_request", "Invalid request body"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	if req.PromptType == "" {
		req.PromptType = models.PromptTypeRegular
	}
	if !models.IsValidPromptType(req.PromptType) {
		if err := ErrorResponse(w, http.StatusBadRequest, "invalid_prompt_type", "Prompt type must be 'system' or 'regular'"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	prompt, err := h.promptService.Create(r.Context(), orgID, req.Name, req.PromptType, req.Content, req.Description)
	if err != nil {
		h.logger.Error("Failed to create prompt", zap.Error(err))
		WriteServiceError(w, h.logger, err, "create_prompt_failed")
		return
	}

	if err := WriteJSON(w, http.StatusCreated, ApiResponse{Success: true, Data: prompt}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

type updatePromptRequest struct {
	PromptType  string  `json:"prompt_type"`
	Content     *string `json:"content"`
	Description *string `json:"description"`
}

// UpdatePrompt handles PUT /api/orgs/{oid}/prompts/{name}
//
// Updates never mutate in place. The active version stays untouched, a new
// version is created with the submitted fields and every agent assignment is
// moved over atomically. Omitted fields carry over from the active version.
func (h *PromptsHandler) UpdatePrompt(w http.ResponseWriter, r *http.Request) {
	orgID, ok := ParseOrgID(w, r, h.logger)
	if !ok {
		return
	}
	name := r.PathValue("name")

	var req updatePromptRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if err := ErrorResponse(w, http.StatusBadRequest, "invalid_request", "Invalid request body"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	if req.PromptType == "" {
		req.PromptType = models.PromptTypeRegular
	}
	if req.Content == nil && req.Description == nil {
		if err := ErrorResponse(w, http.StatusBadRequest, "empty_update", "At least one of content or description must be provided"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	prompt, err := h.promptService.CreateNextVersion(r.Context(), orgID, name, req.PromptType, models.PromptUpdate{
		Content:     req.Content,
		Description: req.Description,
	})
	if err != nil {
		h.logger.Error("Failed to update prompt",
			zap.String("name", name),
			zap.Error(err))
		WriteServiceError(w, h.logger, err, "update_prompt_failed")
		return
	}

	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true, Data: prompt}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// GetActivePrompt handles GET /api/orgs/{oid}/prompts/{name}
func (h *PromptsHandler) GetActivePrompt(w http.ResponseWriter, r *http.Request) {
	orgID, ok := ParseOrgID(w, r, h.logger)
	if !ok {
		return
	}

	prompt, err := h.promptService.GetActive(r.Context(), orgID, r.PathValue("name"), promptTypeParam(r))
	if err != nil {
		WriteServiceError(w, h.logger, err, "get_prompt_failed")
		return
	}

	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true, Data: prompt}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// ListVersions handles GET /api/orgs/{oid}/prompts/{name}/versions
func (h *PromptsHandler) ListVersions(w http.ResponseWriter, r *http.Request) {
	orgID, ok := ParseOrgID(w, r, h.logger)
	if !ok {
		return
	}

	versions, err := h.promptService.ListVersions(r.Context(), orgID, r.PathValue("name"), promptTypeParam(r))
	if err != nil {
		WriteServiceError(w, h.logger, err, "list_versions_failed")
		return
	}

	if versions == nil {
		versions = make([]*models.Prompt, 0)
	}

	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true, Data: versions}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// GetVersion handles GET /api/orgs/{oid}/prompt-versions/{vid}
func (h *PromptsHandler) GetVersion(w http.ResponseWriter, r *http.Request) {
	orgID, ok := ParseOrgID(w, r, h.logger)
	if !ok {
		return
	}
	versionID, ok := ParseVersionID(w, r, h.logger)
	if !ok {
		return
	}

	prompt, err := h.promptService.GetVersion(r.Context(), orgID, versionID)
	if err != nil {
		WriteServiceError(w, h.logger, err, "get_version_failed")
		return
	}

	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true, Data: prompt}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// DeleteVersion handles DELETE /api/orgs/{oid}/prompt-versions/{vid}
func (h *PromptsHandler) DeleteVersion(w http.ResponseWriter, r *http.Request) {
	orgID, ok := ParseOrgID(w, r, h.logger)
	if !ok {
		return
	}
	versionID, ok := ParseVersionID(w, r, h.logger)
	if !ok {
		return
	}

	if err := h.promptService.DeleteVersion(r.Context(), orgID, versionID); err != nil {
		h.logger.Error("Failed to delete prompt version",
			zap.String("version_id", versionID.String()),
			zap.Error(err))
		WriteServiceError(w, h.logger, err, "delete_version_failed")
		return
	}

	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true, Message: "Prompt version deleted"}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

type assignPromptRequest struct {
	PromptID string `json:"prompt_id"`
	Slot     string `json:"slot"`
	Position int    `json:"position"`
}

// AssignPrompt handles POST /api/orgs/{oid}/agents/{aid}/prompts
func (h *PromptsHandler) AssignPrompt(w http.ResponseWriter, r *http.Request) {
	orgID, ok := ParseOrgID(w, r, h.logger)
	if !ok {
		return
	}
	agentID, ok := ParseAgentID(w, r, h.logger)
	if !ok {
		return
	}

	var req assignPromptRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if err := ErrorResponse(w, http.StatusBadRequest, "invalid_request", "Invalid request body"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	promptID, err := uuid.Parse(req.PromptID)
	if err != nil {
		if err := ErrorResponse(w, http.StatusBadRequest, "invalid_prompt_id", "Invalid prompt ID format"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	if !models.IsValidSlot(req.Slot) {
		if err := ErrorResponse(w, http.StatusBadRequest, "invalid_slot", "Slot must be 'system' or 'regular'"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	assignment, err := h.promptService.AssignToAgent(r.Context(), orgID, agentID, promptID, req.Slot, req.Position)
	if err != nil {
		h.logger.Error("Failed to assign prompt",
			zap.String("agent_id", agentID.String()),
			zap.Error(err))
		WriteServiceError(w, h.logger, err, "assign_prompt_failed")
		return
	}

	if err := WriteJSON(w, http.StatusCreated, ApiResponse{Success: true, Data: assignment}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// UnassignPrompt handles DELETE /api/orgs/{oid}/agents/{aid}/prompts/{apid}
func (h *PromptsHandler) UnassignPrompt(w http.ResponseWriter, r *http.Request) {
	orgID, ok := ParseOrgID(w, r, h.logger)
	if !ok {
		return
	}
	agentID, ok := ParseAgentID(w, r, h.logger)
	if !ok {
		return
	}
	assignmentID, ok := ParseAssignmentID(w, r, h.logger)
	if !ok {
		return
	}

	if err := h.promptService.UnassignFromAgent(r.Context(), orgID, agentID, assignmentID); err != nil {
		h.logger.Error("Failed to unassign prompt",
			zap.String("agent_id", agentID.String()),
			zap.Error(err))
		WriteServiceError(w, h.logger, err, "unassign_prompt_failed")
		return
	}

	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true, Message: "Prompt assignment removed"}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}
