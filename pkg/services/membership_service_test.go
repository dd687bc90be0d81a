package services

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Emir1738/archestra/pkg/apperrors"
	"github.com/Emir1738/archestra/pkg/models"
)

// mockMemberRepo implements repositories.MemberRepository for testing.
type mockMemberRepo struct {
	members   []*models.OrganizationMember
	addErr    error
	deleteErr error
}

func (m *mockMemberRepo) Add(_ context.Context, member *models.OrganizationMember) error {
	if m.addErr != nil {
		return m.addErr
	}
	for _, existing := range m.members {
		if existing.OrganizationID == member.OrganizationID && existing.UserID == member.UserID {
			return fmt.Errorf("%w: user is already a member", apperrors.ErrDuplicateKey)
		}
	}
	member.ID = uuid.New()
	member.CreatedAt = time.Now()
	m.members = append(m.members, member)
	return nil
}

func (m *mockMemberRepo) GetByID(_ context.Context, orgID, memberID uuid.UUID) (*models.OrganizationMember, error) {
	for _, member := range m.members {
		if member.OrganizationID == orgID && member.ID == memberID {
			return member, nil
		}
	}
	return nil, apperrors.ErrNotFound
}

func (m *mockMemberRepo) GetByUser(_ context.Context, orgID, userID uuid.UUID) (*models.OrganizationMember, error) {
	for _, member := range m.members {
		if member.OrganizationID == orgID && member.UserID == userID {
			return member, nil
		}
	}
	return nil, apperrors.ErrNotFound
}

func (m *mockMemberRepo) Delete(_ context.Context, id uuid.UUID) error {
	if m.deleteErr != nil {
		return m.deleteErr
	}
	for i, member := range m.members {
		if member.ID == id {
			m.members = append(m.members[:i], m.members[i+1:]...)
			return nil
		}
	}
	return apperrors.ErrNotFound
}

func (m *mockMemberRepo) CountByUser(_ context.Context, userID uuid.UUID) (int, error) {
	count := 0
	for _, member := range m.members {
		if member.UserID == userID {
			count++
		}
	}
	return count, nil
}

func (m *mockMemberRepo) ListByOrganization(_ context.Context, orgID uuid.UUID) ([]*models.OrganizationMember, error) {
	var result []*models.OrganizationMember
	for _, member := range m.members {
		if member.OrganizationID == orgID {
			result = append(result, member)
		}
	}
	return result, nil
}

// mockUserRepo implements repositories.UserRepository for testing.
type mockUserRepo struct {
	users     []*models.User
	deleteErr error
}

func (m *mockUserRepo) Create(_ context.Context, user *models.User) error {
	user.ID = uuid.New()
	user.CreatedAt = time.Now()
	m.users = append(m.users, user)
	return nil
}

func (m *mockUserRepo) GetByID(_ context.Context, id uuid.UUID) (*models.User, error) {
	for _, u := range m.users {
		if u.ID == id {
			return u, nil
		}
	}
	return nil, apperrors.ErrNotFound
}

func (m *mockUserRepo) LockByID(_ context.Context, id uuid.UUID) (bool, error) {
	for _, u := range m.users {
		if u.ID == id {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockUserRepo) Delete(_ context.Context, id uuid.UUID) error {
	if m.deleteErr != nil {
		return m.deleteErr
	}
	for i, u := range m.users {
		if u.ID == id {
			m.users = append(m.users[:i], m.users[i+1:]...)
			return nil
		}
	}
	return apperrors.ErrNotFound
}

// mockSessionRepo implements repositories.SessionRepository for testing.
type mockSessionRepo struct {
	sessions  []*models.UserSession
	deleteErr error
}

func (m *mockSessionRepo) Create(_ context.Context, session *models.UserSession) error {
	session.ID = uuid.New()
	session.CreatedAt = time.Now()
	m.sessions = append(m.sessions, session)
	return nil
}

func (m *mockSessionRepo) ListByUser(_ context.Context, userID uuid.UUID) ([]*models.UserSession, error) {
	var result []*models.UserSession
	for _, s := range m.sessions {
		if s.UserID == userID {
			result = append(result, s)
		}
	}
	return result, nil
}

func (m *mockSessionRepo) DeleteByUser(_ context.Context, userID uuid.UUID) (int64, error) {
	if m.deleteErr != nil {
		return 0, m.deleteErr
	}
	var kept []*models.UserSession
	var removed int64
	for _, s := range m.sessions {
		if s.UserID == userID {
			removed++
			continue
		}
		kept = append(kept, s)
	}
	m.sessions = kept
	return removed, nil
}

type membershipFixture struct {
	memberRepo  *mockMemberRepo
	userRepo    *mockUserRepo
	sessionRepo *mockSessionRepo
	svc         MembershipService
}

func newMembershipFixture() *membershipFixture {
	f := &membershipFixture{
		memberRepo:  &mockMemberRepo{},
		userRepo:    &mockUserRepo{},
		sessionRepo: &mockSessionRepo{},
	}
	f.svc = NewMembershipService(f.memberRepo, f.userRepo, f.sessionRepo, passthroughTx, zap.NewNop())
	return f
}

func (f *membershipFixture) addUser(t *testing.T, email string) *models.User {
	t.Helper()
	user := &models.User{Email: email, Name: email}
	require.NoError(t, f.userRepo.Create(context.Background(), user))
	return user
}

func (f *membershipFixture) addMembership(t *testing.T, orgID, userID uuid.UUID) *models.OrganizationMember {
	t.Helper()
	member := &models.OrganizationMember{OrganizationID: orgID, UserID: userID, Role: models.RoleMember}
	require.NoError(t, f.memberRepo.Add(context.Background(), member))
	return member
}

func TestMembershipService_AddMember_Valid(t *testing.T) {
	f := newMembershipFixture()
	user := f.addUser(t, "dana@example.com")

	orgID := uuid.New()
	member, err := f.svc.AddMember(context.Background(), orgID, user.ID, models.RoleAdmin)
	require.NoError(t, err)

	assert.NotEqual(t, uuid.Nil, member.ID)
	assert.Equal(t, models.RoleAdmin, member.Role)
	assert.Len(t, f.memberRepo.members, 1)
}

func TestMembershipService_AddMember_InvalidRole(t *testing.T) {
	f := newMembershipFixture()
	user := f.addUser(t, "dana@example.com")

	_, err := f.svc.AddMember(context.Background(), uuid.New(), user.ID, "owner")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid role")
}

func TestMembershipService_AddMember_UnknownUser(t *testing.T) {
	f := newMembershipFixture()

	_, err := f.svc.AddMember(context.Background(), uuid.New(), uuid.New(), models.RoleMember)
	require.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestMembershipService_AddMember_Duplicate(t *testing.T) {
	f := newMembershipFixture()
	user := f.addUser(t, "dana@example.com")
	orgID := uuid.New()

	_, err := f.svc.AddMember(context.Background(), orgID, user.ID, models.RoleMember)
	require.NoError(t, err)

	_, err = f.svc.AddMember(context.Background(), orgID, user.ID, models.RoleMember)
	require.ErrorIs(t, err, apperrors.ErrDuplicateKey)
}

func TestMembershipService_RemoveMember_OtherLinksRemain(t *testing.T) {
	f := newMembershipFixture()
	user := f.addUser(t, "dana@example.com")

	orgA, orgB := uuid.New(), uuid.New()
	memberA := f.addMembership(t, orgA, user.ID)
	f.addMembership(t, orgB, user.ID)

	require.NoError(t, f.sessionRepo.Create(context.Background(), &models.UserSession{UserID: user.ID}))

	result, err := f.svc.RemoveMember(context.Background(), orgA, memberA.ID)
	require.NoError(t, err)

	assert.False(t, result.UserDeleted)
	assert.Zero(t, result.SessionsDeleted)
	assert.Len(t, f.userRepo.users, 1)
	assert.Len(t, f.sessionRepo.sessions, 1)
	assert.Len(t, f.memberRepo.members, 1)
}

func TestMembershipService_RemoveMember_LastLinkCascades(t *testing.T) {
	f := newMembershipFixture()
	user := f.addUser(t, "dana@example.com")

	orgID := uuid.New()
	member := f.addMembership(t, orgID, user.ID)

	require.NoError(t, f.sessionRepo.Create(context.Background(), &models.UserSession{UserID: user.ID}))
	require.NoError(t, f.sessionRepo.Create(context.Background(), &models.UserSession{UserID: user.ID}))

	result, err := f.svc.RemoveMember(context.Background(), orgID, member.ID)
	require.NoError(t, err)

	assert.True(t, result.UserDeleted)
	assert.Equal(t, int64(2), result.SessionsDeleted)
	assert.Empty(t, f.userRepo.users)
	assert.Empty(t, f.sessionRepo.sessions)
	assert.Empty(t, f.memberRepo.members)
}

func TestMembershipService_RemoveMember_ByUserID(t *testing.T) {
	f := newMembershipFixture()
	user := f.addUser(t, "dana@example.com")

	orgID := uuid.New()
	f.addMembership(t, orgID, user.ID)

	// Identifier is the user id, not the membership id.
	result, err := f.svc.RemoveMember(context.Background(), orgID, user.ID)
	require.NoError(t, err)

	assert.True(t, result.UserDeleted)
	assert.Empty(t, f.memberRepo.members)
	assert.Empty(t, f.userRepo.users)
}

func TestMembershipService_RemoveMember_MembershipIDWins(t *testing.T) {
	f := newMembershipFixture()
	user := f.addUser(t, "dana@example.com")

	orgID := uuid.New()
	member := f.addMembership(t, orgID, user.ID)

	other := f.addUser(t, "erin@example.com")
	otherMember := f.addMembership(t, orgID, other.ID)

	// Membership id resolution is attempted before user id.
	result, err := f.svc.RemoveMember(context.Background(), orgID, member.ID)
	require.NoError(t, err)

	assert.Equal(t, member.ID, result.Member.ID)
	remaining, err := f.memberRepo.GetByID(context.Background(), orgID, otherMember.ID)
	require.NoError(t, err)
	assert.Equal(t, other.ID, remaining.UserID)
}

func TestMembershipService_RemoveMember_NotFound(t *testing.T) {
	f := newMembershipFixture()

	_, err := f.svc.RemoveMember(context.Background(), uuid.New(), uuid.New())
	require.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestMembershipService_RemoveMember_WrongOrganization(t *testing.T) {
	f := newMembershipFixture()
	user := f.addUser(t, "dana@example.com")

	orgID := uuid.New()
	member := f.addMembership(t, orgID, user.ID)

	_, err := f.svc.RemoveMember(context.Background(), uuid.New(), member.ID)
	require.ErrorIs(t, err, apperrors.ErrNotFound)
	assert.Len(t, f.memberRepo.members, 1)
}

func TestMembershipService_RemoveMember_UserAlreadyGone(t *testing.T) {
	f := newMembershipFixture()

	// Membership row points at a user that a concurrent removal already
	// deleted. LockByID reports the row gone and the removal still succeeds.
	orgID := uuid.New()
	member := &models.OrganizationMember{OrganizationID: orgID, UserID: uuid.New(), Role: models.RoleMember}
	require.NoError(t, f.memberRepo.Add(context.Background(), member))

	result, err := f.svc.RemoveMember(context.Background(), orgID, member.ID)
	require.NoError(t, err)
	assert.False(t, result.UserDeleted)
	assert.Empty(t, f.memberRepo.members)
}

func TestMembershipService_RemoveMember_SessionDeleteFailure(t *testing.T) {
	f := newMembershipFixture()
	user := f.addUser(t, "dana@example.com")

	orgID := uuid.New()
	member := f.addMembership(t, orgID, user.ID)

	f.sessionRepo.deleteErr = fmt.Errorf("session purge failed")

	_, err := f.svc.RemoveMember(context.Background(), orgID, member.ID)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "session purge failed")
	// The user row survives a failed cascade, the surrounding transaction
	// rolls the membership delete back in production.
	assert.Len(t, f.userRepo.users, 1)
}

func TestMembershipService_ListMembers(t *testing.T) {
	f := newMembershipFixture()
	orgID := uuid.New()

	for _, email := range []string{"a@example.com", "b@example.com"} {
		user := f.addUser(t, email)
		f.addMembership(t, orgID, user.ID)
	}

	members, err := f.svc.ListMembers(context.Background(), orgID)
	require.NoError(t, err)
	assert.Len(t, members, 2)
}
