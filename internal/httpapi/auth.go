package httpapi

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"stockflow/backend/internal/domain"
	"stockflow/backend/internal/service"
	"stockflow/backend/internal/store"
)

// AuthManager owns registration, login and token handling. Tokens are HS256
// with the user id as subject plus business_id and role claims; the business
// id on every request is re-derived from the token, never from the payload.
type AuthManager struct {
	secret   []byte
	tokenTTL time.Duration
	repo     store.Repository
}

type stockflowClaims struct {
	jwtlib.RegisteredClaims
	BusinessID string `json:"business_id"`
	Role       string `json:"role"`
	// Purpose is empty on access tokens and set on single-use token flows
	// such as password reset, so the two can never stand in for each other.
	Purpose string `json:"purpose,omitempty"`
}

const (
	purposePasswordReset = "password_reset"
	passwordResetTTL     = 15 * time.Minute
)

func NewAuthManager(secret string, tokenTTL time.Duration, repo store.Repository) *AuthManager {
	if secret == "" {
		secret = "dev-change-me"
	}
	if tokenTTL <= 0 {
		tokenTTL = 168 * time.Hour
	}
	return &AuthManager{
		secret:   []byte(secret),
		tokenTTL: tokenTTL,
		repo:     repo,
	}
}

// Register provisions a business, its admin account and the default settings
// row, then logs the admin straight in.
func (a *AuthManager) Register(ctx context.Context, req domain.RegisterRequest) (domain.LoginResponse, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if _, err := a.repo.GetUserByEmail(ctx, email); err == nil {
		return domain.LoginResponse{}, fmt.Errorf("%w: email %s already registered", store.ErrDuplicate, email)
	} else if !errors.Is(err, store.ErrNotFound) {
		return domain.LoginResponse{}, err
	}

	passwordHash, err := hashPassword(req.Password)
	if err != nil {
		return domain.LoginResponse{}, fmt.Errorf("failed to hash password: %w", err)
	}

	currency := strings.TrimSpace(req.Currency)
	if currency == "" {
		currency = "USD"
	}

	now := time.Now().UTC()
	business := domain.Business{
		ID:        uuid.NewString(),
		Name:      strings.TrimSpace(req.BusinessName),
		OwnerName: strings.TrimSpace(req.OwnerName),
		Email:     email,
		Phone:     strings.TrimSpace(req.Phone),
		Currency:  currency,
		TaxRate:   req.TaxRate,
		CreatedAt: now,
	}
	if _, err := a.repo.CreateBusiness(ctx, business); err != nil {
		return domain.LoginResponse{}, err
	}

	user := domain.User{
		ID:           uuid.NewString(),
		BusinessID:   business.ID,
		Name:         business.OwnerName,
		Email:        email,
		PasswordHash: passwordHash,
		Role:         domain.RoleAdmin,
		Active:       true,
		CreatedAt:    now,
	}
	if _, err := a.repo.CreateUser(ctx, user); err != nil {
		return domain.LoginResponse{}, err
	}

	if _, err := a.repo.UpsertSettings(ctx, service.DefaultSettings(business.ID)); err != nil {
		return domain.LoginResponse{}, err
	}

	return a.issue(user)
}

func (a *AuthManager) Login(ctx context.Context, req domain.LoginRequest) (domain.LoginResponse, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	user, err := a.repo.GetUserByEmail(ctx, email)
	if err != nil {
		return domain.LoginResponse{}, errors.New("invalid credentials")
	}
	if !verifyPassword(user.PasswordHash, req.Password) {
		return domain.LoginResponse{}, errors.New("invalid credentials")
	}
	if !user.Active {
		return domain.LoginResponse{}, errors.New("account is inactive")
	}
	return a.issue(*user)
}

// CreateManager lets an admin add a manager account to their own business.
func (a *AuthManager) CreateManager(ctx context.Context, req domain.UserCreateRequest) (*domain.User, error) {
	actor, ok := service.ActorFromContext(ctx)
	if !ok {
		return nil, fmt.Errorf("%w: no authenticated actor on context", store.ErrValidation)
	}
	if actor.Role != domain.RoleAdmin {
		return nil, fmt.Errorf("%w: admin role required", service.ErrForbidden)
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))
	if _, err := a.repo.GetUserByEmail(ctx, email); err == nil {
		return nil, fmt.Errorf("%w: email %s already registered", store.ErrDuplicate, email)
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}

	passwordHash, err := hashPassword(req.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := domain.User{
		ID:           uuid.NewString(),
		BusinessID:   actor.BusinessID,
		Name:         strings.TrimSpace(req.Name),
		Email:        email,
		PasswordHash: passwordHash,
		Role:         domain.RoleManager,
		Active:       true,
		CreatedAt:    time.Now().UTC(),
	}
	return a.repo.CreateUser(ctx, user)
}

// RequestPasswordReset issues a short-lived reset token for an active
// account. The token comes back in the response body; delivering it to the
// account owner is the caller's problem since the server sends no mail.
func (a *AuthManager) RequestPasswordReset(ctx context.Context, req domain.PasswordResetRequest) (domain.PasswordResetResponse, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	user, err := a.repo.GetUserByEmail(ctx, email)
	if err != nil {
		return domain.PasswordResetResponse{}, err
	}
	if !user.Active {
		return domain.PasswordResetResponse{}, store.ErrNotFound
	}

	expiresAt := time.Now().UTC().Add(passwordResetTTL)
	claims := stockflowClaims{
		RegisteredClaims: jwtlib.RegisteredClaims{
			Subject:   user.ID,
			IssuedAt:  jwtlib.NewNumericDate(time.Now().UTC()),
			ExpiresAt: jwtlib.NewNumericDate(expiresAt),
			Issuer:    "stockflow",
		},
		BusinessID: user.BusinessID,
		Purpose:    purposePasswordReset,
	}
	token, err := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims).SignedString(a.secret)
	if err != nil {
		return domain.PasswordResetResponse{}, err
	}
	return domain.PasswordResetResponse{
		ResetToken: token,
		ExpiresAt:  expiresAt.Format(time.RFC3339),
	}, nil
}

// ConfirmPasswordReset exchanges a valid reset token for a new password.
func (a *AuthManager) ConfirmPasswordReset(ctx context.Context, req domain.PasswordResetConfirmRequest) error {
	claims, err := a.parseClaims(req.Token)
	if err != nil {
		return fmt.Errorf("%w: invalid or expired reset token", store.ErrValidation)
	}
	if claims.Purpose != purposePasswordReset {
		return fmt.Errorf("%w: not a reset token", store.ErrValidation)
	}

	passwordHash, err := hashPassword(req.NewPassword)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	sub, err := claims.GetSubject()
	if err != nil || sub == "" || claims.BusinessID == "" {
		return fmt.Errorf("%w: invalid reset token claims", store.ErrValidation)
	}
	return a.repo.UpdateUserPassword(ctx, claims.BusinessID, sub, passwordHash)
}

func (a *AuthManager) ParseToken(tokenStr string) (domain.Actor, error) {
	claims, err := a.parseClaims(tokenStr)
	if err != nil {
		return domain.Actor{}, errors.New("invalid or expired token")
	}
	sub, err := claims.GetSubject()
	if err != nil || sub == "" || claims.BusinessID == "" {
		return domain.Actor{}, errors.New("invalid token claims")
	}
	// Purpose-bearing tokens (password reset) are not access tokens.
	if claims.Purpose != "" {
		return domain.Actor{}, errors.New("invalid token claims")
	}
	return domain.Actor{UserID: sub, BusinessID: claims.BusinessID, Role: claims.Role}, nil
}

func (a *AuthManager) parseClaims(tokenStr string) (*stockflowClaims, error) {
	claims := &stockflowClaims{}
	token, err := jwtlib.ParseWithClaims(tokenStr, claims, func(t *jwtlib.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwtlib.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return a.secret, nil
	}, jwtlib.WithValidMethods([]string{"HS256"}))
	if err != nil || !token.Valid {
		return nil, errors.New("invalid or expired token")
	}
	return claims, nil
}

func (a *AuthManager) issue(user domain.User) (domain.LoginResponse, error) {
	expiresAt := time.Now().UTC().Add(a.tokenTTL)
	claims := stockflowClaims{
		RegisteredClaims: jwtlib.RegisteredClaims{
			Subject:   user.ID,
			IssuedAt:  jwtlib.NewNumericDate(time.Now().UTC()),
			ExpiresAt: jwtlib.NewNumericDate(expiresAt),
			Issuer:    "stockflow",
		},
		BusinessID: user.BusinessID,
		Role:       user.Role,
	}
	token, err := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims).SignedString(a.secret)
	if err != nil {
		return domain.LoginResponse{}, err
	}
	return domain.LoginResponse{
		AccessToken: token,
		Role:        user.Role,
		BusinessID:  user.BusinessID,
		ExpiresAt:   expiresAt.Format(time.RFC3339),
	}, nil
}

func hashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(bytes), nil
}

func verifyPassword(stored string, input string) bool {
	if stored == "" || strings.TrimSpace(input) == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(stored), []byte(input)) == nil
}
