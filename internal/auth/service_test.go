package auth

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	pkgAuth "github.com/openaid/aid-inventory/pkg/auth"
	"github.com/openaid/aid-inventory/pkg/config"
	"github.com/openaid/aid-inventory/pkg/db/models"
	"github.com/openaid/aid-inventory/pkg/enums"
	pkgerrors "github.com/openaid/aid-inventory/pkg/errors"
	"github.com/openaid/aid-inventory/pkg/security"
)

var (
	testJWT = config.JWTConfig{Secret: "secret", Issuer: "aid-inventory", ExpirationMinutes: 30}
	// Small argon parameters keep the tests fast.
	testPassword = config.PasswordConfig{ArgonMemoryKB: 1024, ArgonTime: 1, ArgonParallelism: 1, ArgonSaltLen: 16, ArgonKeyLen: 32}
)

type fakeUsers struct {
	byID        map[uuid.UUID]*models.User
	lastLoginAt time.Time
}

func newFakeUsers(list ...*models.User) *fakeUsers {
	f := &fakeUsers{byID: map[uuid.UUID]*models.User{}}
	for _, u := range list {
		f.byID[u.ID] = u
	}
	return f
}

func (f *fakeUsers) FindByUsername(_ context.Context, username string) (*models.User, error) {
	for _, u := range f.byID {
		if u.Username == username {
			return u, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeUsers) FindByID(_ context.Context, id uuid.UUID) (*models.User, error) {
	if u, ok := f.byID[id]; ok {
		return u, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeUsers) List(context.Context) ([]models.User, error) {
	out := make([]models.User, 0, len(f.byID))
	for _, u := range f.byID {
		out = append(out, *u)
	}
	return out, nil
}

func (f *fakeUsers) UpdateLastLogin(_ context.Context, _ uuid.UUID, at time.Time) error {
	f.lastLoginAt = at
	return nil
}

func (f *fakeUsers) UpdatePasswordHash(_ context.Context, id uuid.UUID, hash string) error {
	f.byID[id].PasswordHash = hash
	return nil
}

type fakeSessions struct {
	issued map[string]string
}

func (f *fakeSessions) Generate(_ context.Context, accessID string) (string, error) {
	token := "refresh-" + accessID
	f.issued[accessID] = token
	return token, nil
}

func mustHashPassword(t *testing.T, password string) string {
	t.Helper()
	hash, err := security.HashPassword(password, testPassword)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	return hash
}

func newUser(t *testing.T, username, password string, role enums.UserRole) *models.User {
	t.Helper()
	return &models.User{
		ID:           uuid.New(),
		Username:     username,
		Email:        username + "@example.org",
		PasswordHash: mustHashPassword(t, password),
		Role:         role,
		IsActive:     true,
	}
}

func buildTestService(t *testing.T, list ...*models.User) (Service, *fakeUsers, *fakeSessions) {
	t.Helper()
	repo := newFakeUsers(list...)
	sessions := &fakeSessions{issued: map[string]string{}}
	svc, err := NewService(ServiceParams{UserRepo: repo, SessionManager: sessions, JWTConfig: testJWT, PasswordConfig: testPassword})
	if err != nil {
		t.Fatalf("build service: %v", err)
	}
	return svc, repo, sessions
}

func TestServiceLoginIssuesTokens(t *testing.T) {
	user := newUser(t, "warehouse", "s3cret!", enums.UserRoleWarehouseManager)
	svc, repo, sessions := buildTestService(t, user)

	resp, err := svc.Login(context.Background(), LoginRequest{Username: " warehouse ", Password: "s3cret!"})
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	claims, err := pkgAuth.ParseAccessToken(testJWT, resp.AccessToken)
	if err != nil {
		t.Fatalf("parse access token: %v", err)
	}
	if claims.Role != enums.UserRoleWarehouseManager {
		t.Fatalf("expected warehouse_manager claim, got %s", claims.Role)
	}
	if claims.UserID != user.ID {
		t.Fatalf("expected user id claim %s, got %s", user.ID, claims.UserID)
	}
	if sessions.issued[claims.ID] != resp.RefreshToken {
		t.Fatalf("refresh token not stored under jti %s", claims.ID)
	}
	if repo.lastLoginAt.IsZero() || resp.User.LastLoginAt == nil {
		t.Fatalf("expected last login to be recorded")
	}
	if resp.TokenType != "bearer" {
		t.Fatalf("unexpected token type %q", resp.TokenType)
	}
}

func TestServiceLoginRejectsBadCredentials(t *testing.T) {
	active := newUser(t, "active", "right-pass", enums.UserRoleAdmin)
	inactive := newUser(t, "inactive", "right-pass", enums.UserRoleAdmin)
	inactive.IsActive = false
	svc, _, _ := buildTestService(t, active, inactive)

	cases := []LoginRequest{
		{Username: "active", Password: "wrong-pass"},
		{Username: "missing", Password: "right-pass"},
		{Username: "inactive", Password: "right-pass"},
		{Username: "", Password: "right-pass"},
	}
	for _, req := range cases {
		_, err := svc.Login(context.Background(), req)
		if !pkgerrors.IsCode(err, pkgerrors.CodeUnauthorized) {
			t.Fatalf("%s: expected unauthorized, got %v", req.Username, err)
		}
	}
}

func TestServiceChangePassword(t *testing.T) {
	user := newUser(t, "buyer", "old-pass", enums.UserRoleProductPurchaser)
	svc, _, _ := buildTestService(t, user)
	ctx := context.Background()

	err := svc.ChangePassword(ctx, user.ID, ChangePasswordRequest{CurrentPassword: "nope", NewPassword: "new-pass"})
	if !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error for wrong current password, got %v", err)
	}
	err = svc.ChangePassword(ctx, user.ID, ChangePasswordRequest{CurrentPassword: "old-pass", NewPassword: "short"})
	if !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error for short password, got %v", err)
	}
	if err := svc.ChangePassword(ctx, user.ID, ChangePasswordRequest{CurrentPassword: "old-pass", NewPassword: "new-pass"}); err != nil {
		t.Fatalf("change password: %v", err)
	}
	if _, err := svc.Login(ctx, LoginRequest{Username: "buyer", Password: "new-pass"}); err != nil {
		t.Fatalf("login with new password: %v", err)
	}
}

func TestServiceMeAndList(t *testing.T) {
	a := newUser(t, "a", "password", enums.UserRoleAdmin)
	b := newUser(t, "b", "password", enums.UserRoleOutreachCoordinator)
	svc, _, _ := buildTestService(t, a, b)

	me, err := svc.Me(context.Background(), b.ID)
	if err != nil {
		t.Fatalf("me: %v", err)
	}
	if me.Username != "b" {
		t.Fatalf("unexpected user %q", me.Username)
	}
	if _, err := svc.Me(context.Background(), uuid.New()); !pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	list, err := svc.ListUsers(context.Background())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("expected 2 users, got %d", len(list))
	}
}
