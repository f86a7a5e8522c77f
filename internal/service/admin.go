package service

import (
	"fmt"
	"time"

	"github.com/boddenberg/iagente-vida-go/internal/domain"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const adminIssuer = "iagente-vida"

// AdminClaims are the claims of an admin API token.
type AdminClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// AdminAuth issues and checks the bearer tokens of the admin API.
type AdminAuth struct {
	passwordHash []byte
	jwtSecret    []byte
	ttl          time.Duration
	logger       *zap.Logger
}

// NewAdminAuth creates the admin authenticator. passwordHash is a bcrypt hash.
func NewAdminAuth(passwordHash, jwtSecret string, ttl time.Duration, logger *zap.Logger) *AdminAuth {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &AdminAuth{
		passwordHash: []byte(passwordHash),
		jwtSecret:    []byte(jwtSecret),
		ttl:          ttl,
		logger:       logger,
	}
}

// Enabled reports whether admin access is configured.
func (a *AdminAuth) Enabled() bool {
	return len(a.passwordHash) > 0 && len(a.jwtSecret) > 0
}

// IssueToken checks password and returns a signed HS256 token.
func (a *AdminAuth) IssueToken(req *domain.TokenRequest) (*domain.TokenResponse, error) {
	if !a.Enabled() {
		return nil, &domain.ErrUnauthorized{Message: "admin access disabled"}
	}
	if req == nil || req.Password == "" {
		return nil, &domain.ErrValidation{Field: "password", Message: "required"}
	}
	if err := bcrypt.CompareHashAndPassword(a.passwordHash, []byte(req.Password)); err != nil {
		a.logger.Warn("admin login rejected")
		return nil, &domain.ErrUnauthorized{Message: "invalid credentials"}
	}

	now := time.Now()
	claims := AdminClaims{
		Role: "admin",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "admin",
			Issuer:    adminIssuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(a.ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.jwtSecret)
	if err != nil {
		return nil, fmt.Errorf("sign admin token: %w", err)
	}
	return &domain.TokenResponse{AccessToken: signed, ExpiresIn: int(a.ttl.Seconds())}, nil
}

// ValidateToken parses and verifies an admin token.
func (a *AdminAuth) ValidateToken(tokenString string) (*AdminClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &AdminClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return a.jwtSecret, nil
	}, jwt.WithIssuer(adminIssuer))
	if err != nil {
		return nil, &domain.ErrUnauthorized{Message: "invalid or expired token"}
	}

	claims, ok := token.Claims.(*AdminClaims)
	if !ok || !token.Valid || claims.Role != "admin" {
		return nil, &domain.ErrUnauthorized{Message: "invalid token"}
	}
	return claims, nil
}
