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

// MembersHandler handles organization membership HTTP requests.
type MembersHandler struct {
	membershipService services.MembershipService
	logger            *zap.Logger
}

// NewMembersHandler creates a new members handler.
func NewMembersHandler(membershipService services.MembershipService, logger *zap.Logger) *MembersHandler {
	return &MembersHandler{
		membershipService: membershipService,
		logger:            logger,
	}
}

// RegisterRoutes registers the member handler's routes on the given mux.
func (h *MembersHandler) RegisterRoutes(mux *http.ServeMux, authMiddleware *auth.Middleware, tenantMiddleware TenantMiddleware) {
	base := "/api/orgs/{oid}/members"

	mux.HandleFunc("GET "+base,
		authMiddleware.RequireAuthWithPathValidation("oid")(tenantMiddleware(h.ListMembers)))
	mux.HandleFunc("POST "+base,
		authMiddleware.RequireAuthWithPathValidation("oid")(tenantMiddleware(h.AddMember)))
	mux.HandleFunc("DELETE "+base+"/{mid}",
		authMiddleware.RequireAuthWithPathValidation("oid")(tenantMiddleware(h.RemoveMember)))
}

// ListMembers handles GET /api/orgs/{oid}/members
func (h *MembersHandler) ListMembers(w http.ResponseWriter, r *http.Request) {
	orgID, ok := ParseOrgID(w, r, h.logger)
	if !ok {
		return
	}

	members, err := h.membershipService.ListMembers(r.Context(), orgID)
	if err != nil {
		h.logger.Error("Failed to list members", zap.Error(err))
		WriteServiceError(w, h.logger, err, "list_members_failed")
		return
	}

	if members == nil {
		members = make([]*models.OrganizationMember, 0)
	}

	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true, Data: members}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

type addMemberRequest struct {
	UserID string `json:"user_id"`
	Role   string `json:"role"`
}

// AddMember handles POST /api/orgs/{oid}/members
func (h *MembersHandler) AddMember(w http.ResponseWriter, r *http.Request) {
	orgID, ok := ParseOrgID(w, r, h.logger)
	if !ok {
		return
	}

	var req addMemberRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if err := ErrorResponse(w, http.StatusBadRequest, "invalid_request", "Invalid request body"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	userID, err := uuid.Parse(req.UserID)
	if err != nil {
		if err := ErrorResponse(w, http.StatusBadRequest, "invalid_user_id", "Invalid user ID format"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	if req.Role == "" {
		req.Role = models.RoleMember
	}
	if !models.IsValidRole(req.Role) {
		if err := ErrorResponse(w, http.StatusBadRequest, "invalid_role", "Role must be 'admin' or 'member'"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	member, err := h.membershipService.AddMember(r.Context(), orgID, userID, req.Role)
	if err != nil {
		h.logger.Error("Failed to add member",
			zap.String("user_id", userID.String()),
			zap.Error(err))
		WriteServiceError(w, h.logger, err, "add_member_failed")
		return
	}

	if err := WriteJSON(w, http.StatusCreated, ApiResponse{Success: true, Data: member}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// RemoveMember handles DELETE /api/orgs/{oid}/members/{mid}
//
// The mid path value accepts either the membership id or the user id. When
// the removed membership was the user's last across all organizations, the
// user and its sessions are deleted as well and the response reports it.
func (h *MembersHandler) RemoveMember(w http.ResponseWriter, r *http.Request) {
	orgID, ok := ParseOrgID(w, r, h.logger)
	if !ok {
		return
	}
	identifier, ok := ParseMemberID(w, r, h.logger)
	if !ok {
		return
	}

	result, err := h.membershipService.RemoveMember(r.Context(), orgID, identifier)
	if err != nil {
		h.logger.Error("Failed to remove member",
			zap.String("identifier", identifier.String()),
			zap.Error(err))
		WriteServiceError(w, h.logger, err, "remove_member_failed")
		return
	}

	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true, Data: result}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}
