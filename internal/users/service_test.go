package users

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/odyssey-erp/odyssey-crm/internal/masterdata/shared"
	internalShared "github.com/odyssey-erp/odyssey-crm/internal/shared"
)

type mockRepo struct {
	users     map[int64]User
	nextID    int64
	updateErr error
}

func newMockRepo() *mockRepo {
	return &mockRepo{users: map[int64]User{}, nextID: 1}
}

func (m *mockRepo) ListUsers(_ context.Context, _ shared.ListFilters) ([]User, int, error) {
	var out []User
	for _, u := range m.users {
		out = append(out, u)
	}
	return out, len(out), nil
}

func (m *mockRepo) GetUser(_ context.Context, id int64) (User, error) {
	u, ok := m.users[id]
	if !ok {
		return User{}, fmt.Errorf("user %d: %w", id, internalShared.ErrNotFound)
	}
	return u, nil
}

func (m *mockRepo) CreateUser(_ context.Context, u User) (User, error) {
	for _, existing := range m.users {
		if existing.Email == u.Email {
			return User{}, internalShared.ErrDuplicate
		}
	}
	u.ID = m.nextID
	m.nextID++
	m.users[u.ID] = u
	return u, nil
}

func (m *mockRepo) UpdateUser(_ context.Context, u User) error {
	if m.updateErr != nil {
		return m.updateErr
	}
	m.users[u.ID] = u
	return nil
}

func (m *mockRepo) DeleteUser(_ context.Context, id int64) error {
	if _, ok := m.users[id]; !ok {
		return internalShared.ErrNotFound
	}
	delete(m.users, id)
	return nil
}

type recordingInvalidator struct{ ids []int64 }

func (r *recordingInvalidator) Invalidate(_ context.Context, ids ...int64) error {
	r.ids = append(r.ids, ids...)
	return nil
}

func newTestService(repo RepositoryPort, cache PrincipalInvalidator) *Service {
	svc := NewService(repo, &internalShared.MemoryAuditor{}, cache)
	svc.cost = bcrypt.MinCost
	return svc
}

func branchID(id int64) *int64 { return &id }

func TestCreateUserHashesPassword(t *testing.T) {
	svc := newTestService(newMockRepo(), nil)
	u, err := svc.CreateUser(context.Background(), UserForm{
		Email:             " Nina@Example.com ",
		FirstName:         "Nina",
		Password:          "s3cret-pass",
		ConfirmPassword:   "s3cret-pass",
		IsSuperuser:       true,
		BranchID:          branchID(2),
		AvailableBranches: []int64{1, 2, 2},
	})
	require.NoError(t, err)

	assert.Equal(t, "nina@example.com", u.Email)
	assert.True(t, u.IsActive)
	assert.True(t, u.IsSuperuser)
	assert.Equal(t, []int64{1, 2}, u.AvailableBranches)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte("s3cret-pass")))
}

func TestCreateUserPasswordMismatch(t *testing.T) {
	svc := newTestService(newMockRepo(), nil)
	_, err := svc.CreateUser(context.Background(), UserForm{
		Email:           "nina@example.com",
		FirstName:       "Nina",
		Password:        "s3cret-pass",
		ConfirmPassword: "other-pass",
	})
	var verr *internalShared.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "confirm_password")
}

func TestCreateUserRequiresPasswordAndKnownBranch(t *testing.T) {
	svc := newTestService(newMockRepo(), nil)
	_, err := svc.CreateUser(context.Background(), UserForm{
		Email:             "nina@example.com",
		FirstName:         "Nina",
		BranchID:          branchID(9),
		AvailableBranches: []int64{1},
	})
	var verr *internalShared.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "password")
	assert.Contains(t, verr.Fields, "branch_id")
}

func TestUpdateUserKeepsPasswordAndInvalidates(t *testing.T) {
	repo := newMockRepo()
	cache := &recordingInvalidator{}
	svc := newTestService(repo, cache)
	ctx := context.Background()

	u, err := svc.CreateUser(ctx, UserForm{Email: "nina@example.com", FirstName: "Nina", Password: "s3cret-pass", ConfirmPassword: "s3cret-pass"})
	require.NoError(t, err)

	inactive := false
	updated, err := svc.UpdateUser(ctx, u.ID, UserForm{Email: "nina@example.com", FirstName: "Nina", LastName: "Rao", IsActive: &inactive})
	require.NoError(t, err)
	assert.Equal(t, "Rao", updated.LastName)
	assert.False(t, updated.IsActive)
	assert.Equal(t, u.PasswordHash, updated.PasswordHash)
	assert.Equal(t, []int64{u.ID}, cache.ids)

	require.NoError(t, svc.DeleteUser(ctx, u.ID))
	assert.Equal(t, []int64{u.ID, u.ID}, cache.ids)
}

func TestUpdateUserFailureSkipsInvalidation(t *testing.T) {
	repo := newMockRepo()
	cache := &recordingInvalidator{}
	svc := newTestService(repo, cache)
	ctx := context.Background()

	u, err := svc.CreateUser(ctx, UserForm{Email: "nina@example.com", FirstName: "Nina", Password: "s3cret-pass", ConfirmPassword: "s3cret-pass"})
	require.NoError(t, err)

	repo.updateErr = internalShared.ErrDuplicate
	_, err = svc.UpdateUser(ctx, u.ID, UserForm{Email: "taken@example.com", FirstName: "Nina"})
	assert.ErrorIs(t, err, internalShared.ErrDuplicate)
	assert.Empty(t, cache.ids)
}
