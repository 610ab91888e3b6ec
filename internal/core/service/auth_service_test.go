package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/momoworks/momo-ops/internal/apperr"
	"github.com/momoworks/momo-ops/internal/core/domain"
)

func TestLoginAndAuthenticate(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	if err := env.svc.Auth.SetPassword(ctx, env.principal(env.shopStaff), "shop-staff", "dumplings!"); err != nil {
		t.Fatalf("SetPassword failed: %v", err)
	}

	res, err := env.svc.Auth.Login(ctx, "Pema@momo.test", "dumplings!")
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	if !res.ExpiresAt.Equal(testNow.Add(12 * time.Hour)) {
		t.Errorf("unexpected expiry %s", res.ExpiresAt)
	}

	p, err := env.svc.Auth.Authenticate(ctx, res.AccessToken)
	if err != nil {
		t.Fatalf("Authenticate failed: %v", err)
	}
	want := domain.Principal{EmployeeID: "shop-staff", Role: domain.RoleEmployee, LocationID: "shop"}
	if p != want {
		t.Errorf("expected %+v, got %+v", want, p)
	}

	env.setNow(testNow.Add(13 * time.Hour))
	if _, err := env.svc.Auth.Authenticate(ctx, res.AccessToken); !apperr.Is(err, apperr.Unauthorized) {
		t.Errorf("expected expired token to be rejected, got %v", err)
	}
}

func TestLogin_WrongPassword(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.svc.Auth.SetPassword(ctx, env.principal(env.head), "head", "correct-horse")

	if _, err := env.svc.Auth.Login(ctx, "tashi@momo.test", "wrong-horse"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("expected ErrInvalidCredentials, got %v", err)
	}
	if _, err := env.svc.Auth.Login(ctx, "nobody@momo.test", "correct-horse"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("expected ErrInvalidCredentials for unknown email, got %v", err)
	}
}

func TestAuthenticate_AnonKeyAndGarbage(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	p, err := env.svc.Auth.Authenticate(ctx, "anon-key")
	if err != nil || !p.Anonymous {
		t.Errorf("expected anonymous principal, got %+v (%v)", p, err)
	}
	if p.AtLeast(domain.RoleEmployee) {
		t.Error("anonymous principal must not hold any role")
	}
	if _, err := env.svc.Auth.Authenticate(ctx, "not-a-jwt"); !apperr.Is(err, apperr.Unauthorized) {
		t.Errorf("expected unauthorized, got %v", err)
	}
	if _, err := env.svc.Auth.Authenticate(ctx, ""); !apperr.Is(err, apperr.Unauthorized) {
		t.Errorf("expected unauthorized for empty token, got %v", err)
	}
}

func TestAuthenticate_FollowsStoredEmployee(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	token, _, err := env.svc.Auth.Issue(env.shopStaff)
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}

	moved := env.shopStaff
	moved.LocationID = "house"
	if err := env.store.UpdateEmployee(ctx, moved); err != nil {
		t.Fatalf("UpdateEmployee failed: %v", err)
	}
	p, err := env.svc.Auth.Authenticate(ctx, token)
	if err != nil {
		t.Fatalf("Authenticate failed: %v", err)
	}
	if p.LocationID != "house" {
		t.Errorf("expected the stored location, got %+v", p)
	}

	if err := env.svc.Employees.Deactivate(ctx, env.principal(env.shopManager), "shop-staff"); err != nil {
		t.Fatalf("Deactivate failed: %v", err)
	}
	if _, err := env.svc.Auth.Authenticate(ctx, token); !apperr.Is(err, apperr.Unauthorized) {
		t.Errorf("expected a deactivated employee's token to be rejected, got %v", err)
	}
}

func TestSetPassword_OnlySelfOrSuperior(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	if err := env.svc.Auth.SetPassword(ctx, env.principal(env.shopStaff), "shop-mgr", "takeover!!"); !errors.Is(err, ErrForbidden) {
		t.Errorf("expected forbidden, got %v", err)
	}
	if err := env.svc.Auth.SetPassword(ctx, env.principal(env.shopManager), "shop-staff", "short"); !apperr.Is(err, apperr.Invalid) {
		t.Errorf("expected short password to be invalid, got %v", err)
	}
	if err := env.svc.Auth.SetPassword(ctx, env.principal(env.shopManager), "shop-staff", "long enough"); err != nil {
		t.Errorf("expected manager reset to succeed, got %v", err)
	}
}
