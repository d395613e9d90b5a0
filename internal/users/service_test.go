package users

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/meridian-erp/meridian-erp/internal/rbac"
	"github.com/meridian-erp/meridian-erp/internal/shared"
)

type memoryRepo struct {
	users  map[uuid.UUID]User
	audits []shared.AuditLog
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{users: map[uuid.UUID]User{}}
}

type memoryTx struct {
	repo   *memoryRepo
	users  map[uuid.UUID]User
	audits []shared.AuditLog
}

func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	tx := &memoryTx{repo: r, users: map[uuid.UUID]User{}}
	for k, v := range r.users {
		tx.users[k] = v
	}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	r.users = tx.users
	r.audits = append(r.audits, tx.audits...)
	return nil
}

func (r *memoryRepo) GetUser(ctx context.Context, orgID, id uuid.UUID) (User, error) {
	u, ok := r.users[id]
	if !ok || u.OrgID != orgID {
		return User{}, ErrNotFound
	}
	return u, nil
}

func (r *memoryRepo) GetUserByEmail(ctx context.Context, orgID uuid.UUID, email string) (User, error) {
	for _, u := range r.users {
		if u.OrgID == orgID && u.Email == email {
			return u, nil
		}
	}
	return User{}, ErrNotFound
}

func (r *memoryRepo) ListUsers(ctx context.Context, orgID uuid.UUID) ([]User, error) {
	var out []User
	for _, u := range r.users {
		if u.OrgID == orgID {
			out = append(out, u)
		}
	}
	return out, nil
}

func (tx *memoryTx) InsertUser(ctx context.Context, u User) error {
	for _, existing := range tx.users {
		if existing.OrgID == u.OrgID && existing.Email == u.Email {
			return ErrEmailTaken
		}
	}
	tx.users[u.ID] = u
	return nil
}

func (tx *memoryTx) UpdateUser(ctx context.Context, u User) error {
	if _, ok := tx.users[u.ID]; !ok {
		return ErrNotFound
	}
	tx.users[u.ID] = u
	return nil
}

func (tx *memoryTx) SetPasswordHash(ctx context.Context, id uuid.UUID, hash string) error {
	u, ok := tx.users[id]
	if !ok {
		return ErrNotFound
	}
	u.PasswordHash = hash
	tx.users[id] = u
	return nil
}

func (tx *memoryTx) RecordAudit(ctx context.Context, log shared.AuditLog) error {
	tx.audits = append(tx.audits, log)
	return nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestCreateUserHashesPassword(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, testLogger())
	admin := rbac.Actor{OrgID: uuid.New(), UserID: uuid.New(), Role: rbac.RoleOrgAdmin}

	user, err := svc.CreateUser(context.Background(), admin, CreateUserInput{
		Email:    "Dewi@Example.com",
		Name:     "Dewi",
		Role:     rbac.RoleStaff,
		Password: "correct horse",
	})
	require.NoError(t, err)
	require.Equal(t, "dewi@example.com", user.Email, "email is normalized")
	require.NotEqual(t, "correct horse", user.PasswordHash)
	require.NoError(t, bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte("correct horse")))

	_, err = svc.CreateUser(context.Background(), admin, CreateUserInput{
		Email:    "dewi@example.com",
		Name:     "Other Dewi",
		Role:     rbac.RoleStaff,
		Password: "irrelevant1",
	})
	require.ErrorIs(t, err, shared.ErrConflict)
}

func TestCreateUserRoleEscalation(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, testLogger())
	admin := rbac.Actor{OrgID: uuid.New(), UserID: uuid.New(), Role: rbac.RoleOrgAdmin}

	_, err := svc.CreateUser(context.Background(), admin, CreateUserInput{
		Email:    "root@example.com",
		Name:     "Root",
		Role:     rbac.RoleSuperAdmin,
		Password: "longenough",
	})
	require.ErrorIs(t, err, shared.ErrForbidden, "org admin must not mint super admins")

	manager := admin
	manager.Role = rbac.RoleManager
	_, err = svc.CreateUser(context.Background(), manager, CreateUserInput{
		Email:    "x@example.com",
		Name:     "X",
		Role:     rbac.RoleStaff,
		Password: "longenough",
	})
	require.ErrorIs(t, err, shared.ErrForbidden)
}

func TestVerifyCredentials(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, testLogger())
	admin := rbac.Actor{OrgID: uuid.New(), UserID: uuid.New(), Role: rbac.RoleOrgAdmin}

	user, err := svc.CreateUser(context.Background(), admin, CreateUserInput{
		Email:    "budi@example.com",
		Name:     "Budi",
		Role:     rbac.RoleStaff,
		Password: "opensesame",
	})
	require.NoError(t, err)

	got, err := svc.VerifyCredentials(context.Background(), admin.OrgID, "budi@example.com", "opensesame")
	require.NoError(t, err)
	require.Equal(t, user.ID, got.ID)

	_, err = svc.VerifyCredentials(context.Background(), admin.OrgID, "budi@example.com", "wrong")
	require.ErrorIs(t, err, shared.ErrForbidden)

	// deactivated users cannot sign in
	_, err = svc.UpdateUser(context.Background(), admin, user.ID, UpdateUserInput{Name: "Budi", Role: rbac.RoleStaff, Active: false})
	require.NoError(t, err)
	_, err = svc.VerifyCredentials(context.Background(), admin.OrgID, "budi@example.com", "opensesame")
	require.ErrorIs(t, err, shared.ErrForbidden)
}

func TestChangePassword(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, testLogger())
	admin := rbac.Actor{OrgID: uuid.New(), UserID: uuid.New(), Role: rbac.RoleOrgAdmin}

	user, err := svc.CreateUser(context.Background(), admin, CreateUserInput{
		Email:    "citra@example.com",
		Name:     "Citra",
		Role:     rbac.RoleStaff,
		Password: "first-pass",
	})
	require.NoError(t, err)

	actor := rbac.Actor{OrgID: admin.OrgID, UserID: user.ID, Role: rbac.RoleStaff}
	err = svc.ChangePassword(context.Background(), actor, "wrong", "second-pass")
	require.ErrorIs(t, err, shared.ErrForbidden)

	require.NoError(t, svc.ChangePassword(context.Background(), actor, "first-pass", "second-pass"))

	_, err = svc.VerifyCredentials(context.Background(), admin.OrgID, "citra@example.com", "second-pass")
	require.NoError(t, err)
}
