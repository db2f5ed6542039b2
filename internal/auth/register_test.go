package auth

import (
	"context"
	"testing"

	"github.com/openaid/aid-inventory/internal/users"
	"github.com/openaid/aid-inventory/pkg/db/dbtest"
	"github.com/openaid/aid-inventory/pkg/enums"
	pkgerrors "github.com/openaid/aid-inventory/pkg/errors"
	"github.com/openaid/aid-inventory/pkg/security"
)

func TestRegisterCreatesUser(t *testing.T) {
	repo := users.NewRepository(dbtest.Open(t).DB())
	svc, err := NewRegisterService(RegisterServiceParams{Users: repo, PasswordConfig: testPassword})
	if err != nil {
		t.Fatalf("build register service: %v", err)
	}
	ctx := context.Background()

	dto, err := svc.Register(ctx, RegisterRequest{
		Username: "coord",
		Email:    "Coord@Example.org",
		Password: "welcome1",
		Role:     enums.UserRoleOutreachCoordinator,
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if dto.Email != "coord@example.org" {
		t.Fatalf("expected lower-cased email, got %q", dto.Email)
	}

	stored, err := repo.FindByUsername(ctx, "coord")
	if err != nil {
		t.Fatalf("find user: %v", err)
	}
	ok, err := security.VerifyPassword("welcome1", stored.PasswordHash)
	if err != nil || !ok {
		t.Fatalf("expected stored hash to verify: ok=%v err=%v", ok, err)
	}

	_, err = svc.Register(ctx, RegisterRequest{Username: "coord", Email: "other@example.org", Password: "welcome1", Role: enums.UserRoleAdmin})
	if !pkgerrors.IsCode(err, pkgerrors.CodeConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func TestRegisterValidation(t *testing.T) {
	repo := users.NewRepository(dbtest.Open(t).DB())
	svc, err := NewRegisterService(RegisterServiceParams{Users: repo, PasswordConfig: testPassword})
	if err != nil {
		t.Fatalf("build register service: %v", err)
	}
	cases := map[string]RegisterRequest{
		"short password": {Username: "x1", Email: "x1@example.org", Password: "12345", Role: enums.UserRoleAdmin},
		"bad role":       {Username: "x2", Email: "x2@example.org", Password: "123456", Role: "chef"},
		"blank username": {Username: " ", Email: "x3@example.org", Password: "123456", Role: enums.UserRoleAdmin},
	}
	for name, req := range cases {
		if _, err := svc.Register(context.Background(), req); !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
			t.Fatalf("%s: expected validation error, got %v", name, err)
		}
	}
}
