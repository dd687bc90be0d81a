package handlers

import (
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ParseOrgID extracts and validates the organization ID from the request path.
// Returns the parsed UUID and true on success, or uuid.Nil and false on error
// (after writing an error response).
// Expects path parameter: oid
func ParseOrgID(w http.ResponseWriter, r *http.Request, logger *zap.Logger) (uuid.UUID, bool) {
	return parseUUID(w, r, "oid", "invalid_org_id", "Invalid organization ID format", logger)
}

// ParseAgentID extracts and validates the agent ID from the request path.
// Expects path parameter: aid
func ParseAgentID(w http.ResponseWriter, r *http.Request, logger *zap.Logger) (uuid.UUID, bool) {
	return parseUUID(w, r, "aid", "invalid_agent_id", "Invalid agent ID format", logger)
}

// ParseVersionID extracts and validates the prompt version ID from the request path.
// Expects path parameter: vid
func ParseVersionID(w http.ResponseWriter, r *http.Request, logger *zap.Logger) (uuid.UUID, bool) {
	return parseUUID(w, r, "vid", "invalid_version_id", "Invalid version ID format", logger)
}

// ParseAssignmentID extracts and validates the prompt assignment ID from the
// request path.
// Expects path parameter: apid
func ParseAssignmentID(w http.ResponseWriter, r *http.Request, logger *zap.Logger) (uuid.UUID, bool) {
	return parseUUID(w, r, "apid", "invalid_assignment_id", "Invalid assignment ID format", logger)
}

// ParseMemberID extracts and validates the member identifier from the request
// path. The value may be either a membership id or a user id, resolution
// happens in the service layer.
// Expects path parameter: mid
func ParseMemberID(w http.ResponseWriter, r *http.Request, logger *zap.Logger) (uuid.UUID, bool) {
	return parseUUID(w, r, "mid", "invalid_member_id", "Invalid member ID format", logger)
}

// parseUUID is the internal helper that does the actual parsing work.
func parseUUID(w http.ResponseWriter, r *http.Request, pathParam, errorCode, errorMessage string, logger *zap.Logger) (uuid.UUID, bool) {
	idStr := r.PathValue(pathParam)
	id, err := uuid.Parse(idStr)
	if err != nil {
		if err := ErrorResponse(w, http.StatusBadRequest, errorCode, errorMessage); err != nil {
			logger.Error("Failed to write error response", zap.Error(err))
		}
		return uuid.Nil, false
	}
	return id, true
}
