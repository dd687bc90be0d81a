package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Emir1738/archestra/pkg/apperrors"
	"github.com/Emir1738/archestra/pkg/models"
	"github.com/Emir1738/archestra/pkg/services"
)

// mockMembershipService implements services.MembershipService for handler testing.
type mockMembershipService struct {
	member        *models.OrganizationMember
	members       []*models.OrganizationMember
	removal       *services.RemovalResult
	addErr        error
	removeErr     error
	listErr       error
	gotIdentifier uuid.UUID
	gotRole       string
}

func (m *mockMembershipService) AddMember(_ context.Context, _ uuid.UUID, _ uuid.UUID, role string) (*models.OrganizationMember, error) {
	m.gotRole = role
	if m.addErr != nil {
		return nil, m.addErr
	}
	return m.member, nil
}

func (m *mockMembershipService) RemoveMember(_ context.Context, _ uuid.UUID, identifier uuid.UUID) (*services.RemovalResult, error) {
	m.gotIdentifier = identifier
	if m.removeErr != nil {
		return nil, m.removeErr
	}
	return m.removal, nil
}

func (m *mockMembershipService) ListMembers(_ context.Context, _ uuid.UUID) ([]*models.OrganizationMember, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	return m.members, nil
}

func makeMemberRequest(method, path string, body []byte, orgID uuid.UUID) *http.Request {
	var req *http.Request
	if body != nil {
		req = httptest.NewRequest(method, path, bytes.NewReader(body))
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	req.SetPathValue("oid", orgID.String())
	return req
}

func TestMembersHandler_AddMember_Success(t *testing.T) {
	orgID := uuid.New()
	userID := uuid.New()
	svc := &mockMembershipService{
		member: &models.OrganizationMember{
			ID:             uuid.New(),
			OrganizationID: orgID,
			UserID:         userID,
			Role:           models.RoleMember,
		},
	}
	h := NewMembersHandler(svc, zap.NewNop())

	body, _ := json.Marshal(addMemberRequest{UserID: userID.String()})
	req := makeMemberRequest(http.MethodPost, "/api/orgs/"+orgID.String()+"/members", body, orgID)
	rec := httptest.NewRecorder()

	h.AddMember(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	// Role defaults to member when omitted.
	assert.Equal(t, models.RoleMember, svc.gotRole)
}

func TestMembersHandler_AddMember_InvalidRole(t *testing.T) {
	orgID := uuid.New()
	h := NewMembersHandler(&mockMembershipService{}, zap.NewNop())

	body, _ := json.Marshal(addMemberRequest{UserID: uuid.New().String(), Role: "owner"})
	req := makeMemberRequest(http.MethodPost, "/api/orgs/"+orgID.String()+"/members", body, orgID)
	rec := httptest.NewRecorder()

	h.AddMember(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMembersHandler_AddMember_InvalidUserID(t *testing.T) {
	orgID := uuid.New()
	h := NewMembersHandler(&mockMembershipService{}, zap.NewNop())

	body, _ := json.Marshal(addMemberRequest{UserID: "not-a-uuid"})
	req := makeMemberRequest(http.MethodPost, "/api/orgs/"+orgID.String()+"/members", body, orgID)
	rec := httptest.NewRecorder()

	h.AddMember(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMembersHandler_AddMember_Duplicate(t *testing.T) {
	orgID := uuid.New()
	svc := &mockMembershipService{addErr: apperrors.ErrDuplicateKey}
	h := NewMembersHandler(svc, zap.NewNop())

	body, _ := json.Marshal(addMemberRequest{UserID: uuid.New().String()})
	req := makeMemberRequest(http.MethodPost, "/api/orgs/"+orgID.String()+"/members", body, orgID)
	rec := httptest.NewRecorder()

	h.AddMember(rec, req)

	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestMembersHandler_RemoveMember_Success(t *testing.T) {
	orgID := uuid.New()
	memberID := uuid.New()
	svc := &mockMembershipService{
		removal: &services.RemovalResult{
			Member: &models.OrganizationMember{ID: memberID, OrganizationID: orgID},
		},
	}
	h := NewMembersHandler(svc, zap.NewNop())

	req := makeMemberRequest(http.MethodDelete, "/api/orgs/"+orgID.String()+"/members/"+memberID.String(), nil, orgID)
	req.SetPathValue("mid", memberID.String())
	rec := httptest.NewRecorder()

	h.RemoveMember(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, memberID, svc.gotIdentifier)
	assert.Contains(t, rec.Body.String(), `"user_deleted":false`)
}

func TestMembersHandler_RemoveMember_Cascaded(t *testing.T) {
	orgID := uuid.New()
	memberID := uuid.New()
	svc := &mockMembershipService{
		removal: &services.RemovalResult{
			Member:          &models.OrganizationMember{ID: memberID, OrganizationID: orgID},
			UserDeleted:     true,
			SessionsDeleted: 2,
		},
	}
	h := NewMembersHandler(svc, zap.NewNop())

	req := makeMemberRequest(http.MethodDelete, "/api/orgs/"+orgID.String()+"/members/"+memberID.String(), nil, orgID)
	req.SetPathValue("mid", memberID.String())
	rec := httptest.NewRecorder()

	h.RemoveMember(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"user_deleted":true`)
	assert.Contains(t, rec.Body.String(), `"sessions_deleted":2`)
}

func TestMembersHandler_RemoveMember_NotFound(t *testing.T) {
	orgID := uuid.New()
	svc := &mockMembershipService{removeErr: apperrors.ErrNotFound}
	h := NewMembersHandler(svc, zap.NewNop())

	memberID := uuid.New()
	req := makeMemberRequest(http.MethodDelete, "/api/orgs/"+orgID.String()+"/members/"+memberID.String(), nil, orgID)
	req.SetPathValue("mid", memberID.String())
	rec := httptest.NewRecorder()

	h.RemoveMember(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMembersHandler_RemoveMember_StoreUnavailable(t *testing.T) {
	orgID := uuid.New()
	svc := &mockMembershipService{removeErr: apperrors.ErrStoreUnavailable}
	h := NewMembersHandler(svc, zap.NewNop())

	memberID := uuid.New()
	req := makeMemberRequest(http.MethodDelete, "/api/orgs/"+orgID.String()+"/members/"+memberID.String(), nil, orgID)
	req.SetPathValue("mid", memberID.String())
	rec := httptest.NewRecorder()

	h.RemoveMember(rec, req)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestMembersHandler_ListMembers_EmptyIsArray(t *testing.T) {
	orgID := uuid.New()
	h := NewMembersHandler(&mockMembershipService{}, zap.NewNop())

	req := makeMemberRequest(http.MethodGet, "/api/orgs/"+orgID.String()+"/members", nil, orgID)
	rec := httptest.NewRecorder()

	h.ListMembers(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"data":[]`)
}
