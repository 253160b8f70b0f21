package httpapi

import (
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"stockflow/backend/internal/domain"
	"stockflow/backend/internal/store/memory"
)

func TestLoginWrongPassword(t *testing.T) {
	handler := newTestHandler(t)
	registerBusiness(t, handler, "owner@shop.test")

	rec, env := doJSON(t, handler, http.MethodPost, "/api/v1/auth/login", "", domain.LoginRequest{
		Email:    "owner@shop.test",
		Password: "not-the-password",
	})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for wrong password, got %d", rec.Code)
	}
	if env.Success {
		t.Fatalf("failed login must not be a success envelope")
	}
}

func TestDuplicateRegistrationRejected(t *testing.T) {
	handler := newTestHandler(t)
	registerBusiness(t, handler, "owner@shop.test")

	rec, _ := doJSON(t, handler, http.MethodPost, "/api/v1/auth/register", "", domain.RegisterRequest{
		BusinessName: "Other Shop",
		OwnerName:    "Kim",
		Email:        "owner@shop.test",
		Password:     "password123",
	})
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 for reused email, got %d", rec.Code)
	}
}

func TestMissingAndGarbageTokens(t *testing.T) {
	handler := newTestHandler(t)

	rec, _ := doJSON(t, handler, http.MethodGet, "/api/v1/products", "", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", rec.Code)
	}

	rec, _ = doJSON(t, handler, http.MethodGet, "/api/v1/products", "not.a.token", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 with garbage token, got %d", rec.Code)
	}
}

func TestTokenCarriesBusinessAndRole(t *testing.T) {
	repo := memory.New()
	auth := NewAuthManager("test-secret", time.Hour, repo)

	resp, err := auth.Register(t.Context(), domain.RegisterRequest{
		BusinessName: "Shop",
		OwnerName:    "Sam",
		Email:        "sam@shop.test",
		Password:     "password123",
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	actor, err := auth.ParseToken(resp.AccessToken)
	if err != nil {
		t.Fatalf("parse token: %v", err)
	}
	if actor.Role != domain.RoleAdmin {
		t.Fatalf("expected admin role, got %s", actor.Role)
	}
	if actor.BusinessID != resp.BusinessID || actor.BusinessID == "" {
		t.Fatalf("business id mismatch: %s vs %s", actor.BusinessID, resp.BusinessID)
	}
	if actor.UserID == "" {
		t.Fatalf("expected user id subject")
	}
}

func TestTokenFromDifferentSecretRejected(t *testing.T) {
	repo := memory.New()
	issuer := NewAuthManager("secret-one", time.Hour, repo)
	verifier := NewAuthManager("secret-two", time.Hour, repo)

	resp, err := issuer.Register(t.Context(), domain.RegisterRequest{
		BusinessName: "Shop",
		OwnerName:    "Sam",
		Email:        "sam@shop.test",
		Password:     "password123",
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if _, err := verifier.ParseToken(resp.AccessToken); err == nil {
		t.Fatalf("token signed with another secret must be rejected")
	}
}

func TestLoginRateLimited(t *testing.T) {
	handler := newTestHandler(t)
	registerBusiness(t, handler, "owner@shop.test")

	var lastCode int
	for i := 0; i < 6; i++ {
		rec, _ := doJSON(t, handler, http.MethodPost, "/api/v1/auth/login", "", domain.LoginRequest{
			Email:    "owner@shop.test",
			Password: "wrong-password",
		})
		lastCode = rec.Code
	}
	if lastCode != http.StatusTooManyRequests {
		t.Fatalf("expected 429 after repeated failures, got %d", lastCode)
	}
}

func TestManagerAccountLifecycle(t *testing.T) {
	handler := newTestHandler(t)
	adminToken := registerBusiness(t, handler, "owner@shop.test")

	rec, env := doJSON(t, handler, http.MethodPost, "/api/v1/users", adminToken, domain.UserCreateRequest{
		Name:     "Morgan",
		Email:    "morgan@shop.test",
		Password: "password123",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create manager: expected 201, got %d (%s)", rec.Code, rec.Body.String())
	}
	var manager domain.User
	if err := json.Unmarshal(env.Data, &manager); err != nil {
		t.Fatalf("decode user: %v", err)
	}
	if manager.Role != domain.RoleManager {
		t.Fatalf("expected manager role, got %s", manager.Role)
	}

	rec, _ = doJSON(t, handler, http.MethodPost, "/api/v1/auth/login", "", domain.LoginRequest{
		Email:    "morgan@shop.test",
		Password: "password123",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("manager login: expected 200, got %d", rec.Code)
	}

	rec, _ = doJSON(t, handler, http.MethodPut, "/api/v1/users/"+manager.ID+"/deactivate", adminToken, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("deactivate: expected 200, got %d (%s)", rec.Code, rec.Body.String())
	}

	rec, _ = doJSON(t, handler, http.MethodPost, "/api/v1/auth/login", "", domain.LoginRequest{
		Email:    "morgan@shop.test",
		Password: "password123",
	})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("deactivated account must not log in, got %d", rec.Code)
	}
}

func TestPasswordResetFlow(t *testing.T) {
	handler := newTestHandler(t)
	registerBusiness(t, handler, "owner@shop.test")

	rec, env := doJSON(t, handler, http.MethodPost, "/api/v1/auth/password-reset", "", domain.PasswordResetRequest{
		Email: "owner@shop.test",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("request reset: expected 200, got %d (%s)", rec.Code, rec.Body.String())
	}
	var reset domain.PasswordResetResponse
	if err := json.Unmarshal(env.Data, &reset); err != nil {
		t.Fatalf("decode reset response: %v", err)
	}
	if reset.ResetToken == "" {
		t.Fatalf("expected a reset token")
	}

	rec, _ = doJSON(t, handler, http.MethodPost, "/api/v1/auth/password-reset/confirm", "", domain.PasswordResetConfirmRequest{
		Token:       reset.ResetToken,
		NewPassword: "brand-new-password",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("confirm reset: expected 200, got %d (%s)", rec.Code, rec.Body.String())
	}

	rec, _ = doJSON(t, handler, http.MethodPost, "/api/v1/auth/login", "", domain.LoginRequest{
		Email:    "owner@shop.test",
		Password: "password123",
	})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("old password must stop working, got %d", rec.Code)
	}

	rec, _ = doJSON(t, handler, http.MethodPost, "/api/v1/auth/login", "", domain.LoginRequest{
		Email:    "owner@shop.test",
		Password: "brand-new-password",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("new password must log in, got %d", rec.Code)
	}
}

func TestResetTokenRejectedAsAccessToken(t *testing.T) {
	handler := newTestHandler(t)
	registerBusiness(t, handler, "owner@shop.test")

	rec, env := doJSON(t, handler, http.MethodPost, "/api/v1/auth/password-reset", "", domain.PasswordResetRequest{
		Email: "owner@shop.test",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("request reset: expected 200, got %d", rec.Code)
	}
	var reset domain.PasswordResetResponse
	if err := json.Unmarshal(env.Data, &reset); err != nil {
		t.Fatalf("decode reset response: %v", err)
	}

	rec, _ = doJSON(t, handler, http.MethodGet, "/api/v1/products", reset.ResetToken, nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("reset token must not grant API access, got %d", rec.Code)
	}
}

func TestPasswordResetUnknownEmail(t *testing.T) {
	handler := newTestHandler(t)

	rec, _ := doJSON(t, handler, http.MethodPost, "/api/v1/auth/password-reset", "", domain.PasswordResetRequest{
		Email: "nobody@shop.test",
	})
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown email, got %d", rec.Code)
	}
}

func TestLoginLimiterResetsOnSuccess(t *testing.T) {
	handler := newTestHandler(t)
	registerBusiness(t, handler, "owner@shop.test")

	// More successful logins than the failure window allows; none may trip
	// the limiter because each success clears the client's history.
	for i := 0; i < 8; i++ {
		rec, _ := doJSON(t, handler, http.MethodPost, "/api/v1/auth/login", "", domain.LoginRequest{
			Email:    "owner@shop.test",
			Password: "password123",
		})
		if rec.Code != http.StatusOK {
			t.Fatalf("login %d: expected 200, got %d", i+1, rec.Code)
		}
	}
}
