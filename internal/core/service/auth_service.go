package service

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/momoworks/momo-ops/internal/apperr"
	"github.com/momoworks/momo-ops/internal/core/domain"
	"github.com/momoworks/momo-ops/internal/port"
)

var ErrInvalidCredentials = apperr.UnauthorizedErr("invalid email or password")

type AccessClaims struct {
	jwt.RegisteredClaims

	Role       domain.Role `json:"momo/role"`
	LocationID string      `json:"momo/location_id,omitempty"`
}

type LoginResult struct {
	AccessToken string          `json:"access_token"`
	ExpiresAt   time.Time       `json:"expires_at"`
	Employee    domain.Employee `json:"employee"`
}

type AuthService struct {
	store     port.Store
	employees *EmployeeService
	secret    []byte
	anonKey   string
	ttl       time.Duration
	now       func() time.Time
}

func NewAuthService(store port.Store, employees *EmployeeService, secret, anonKey string, ttl time.Duration) *AuthService {
	return &AuthService{
		store:     store,
		employees: employees,
		secret:    []byte(secret),
		anonKey:   anonKey,
		ttl:       ttl,
		now:       time.Now,
	}
}

func (s *AuthService) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	e, err := s.store.GetEmployeeByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		return nil, storeErr(err, "employee")
	}
	if e == nil || !e.Active || e.PasswordHash == "" {
		return nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(e.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	token, exp, err := s.Issue(*e)
	if err != nil {
		return nil, apperr.Wrap(err)
	}
	return &LoginResult{AccessToken: token, ExpiresAt: exp, Employee: *e}, nil
}

// Issue signs an HS256 access token for e.
func (s *AuthService) Issue(e domain.Employee) (string, time.Time, error) {
	now := s.now().UTC()
	exp := now.Add(s.ttl)
	claims := AccessClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   e.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
		Role:       e.Role,
		LocationID: e.LocationID,
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, exp, nil
}

// Authenticate resolves a bearer token. The anon key yields an anonymous
// principal; anything else must be a valid access token of an active
// employee. Role and location come from the stored employee, so changes
// apply to tokens already issued.
func (s *AuthService) Authenticate(ctx context.Context, token string) (domain.Principal, error) {
	if token == "" {
		return domain.Principal{}, apperr.UnauthorizedErr("missing bearer token")
	}
	if s.anonKey != "" && subtle.ConstantTimeCompare([]byte(token), []byte(s.anonKey)) == 1 {
		return domain.Principal{Anonymous: true}, nil
	}

	var claims AccessClaims
	_, err := jwt.ParseWithClaims(token, &claims,
		func(t *jwt.Token) (any, error) { return s.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Name}),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return domain.Principal{}, apperr.UnauthorizedErr("token expired")
		}
		return domain.Principal{}, apperr.UnauthorizedErr("invalid token")
	}
	if claims.Subject == "" {
		return domain.Principal{}, apperr.UnauthorizedErr("invalid token")
	}

	e, err := s.store.GetEmployee(ctx, claims.Subject)
	if err != nil {
		return domain.Principal{}, storeErr(err, "employee")
	}
	if e == nil || !e.Active {
		return domain.Principal{}, apperr.UnauthorizedErr("account is inactive")
	}
	return domain.Principal{
		EmployeeID: e.ID,
		Role:       e.Role,
		LocationID: e.LocationID,
	}, nil
}

// SetPassword lets an employee change their own password, or a superior
// reset it.
func (s *AuthService) SetPassword(ctx context.Context, p domain.Principal, employeeID, password string) error {
	if err := s.employees.requireSelfOrApprover(ctx, p, employeeID); err != nil {
		return err
	}
	e, err := s.employees.Get(ctx, employeeID)
	if err != nil {
		return err
	}
	hash, err := hashPassword(password)
	if err != nil {
		return err
	}
	e.PasswordHash = hash
	e.UpdatedAt = s.now().UTC()
	return storeErr(s.store.UpdateEmployee(ctx, *e), "employee")
}
