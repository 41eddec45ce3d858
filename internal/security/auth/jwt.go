package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/aryan0dhankhar/tasktracker/internal/domain"
)

// DefaultTokenTTL is the fixed validity window of a session token
const DefaultTokenTTL = 7 * 24 * time.Hour

type Claims struct {
	domain.Principal
	jwt.RegisteredClaims
}

type TokenManager struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

func NewTokenManager(secret, issuer string, ttl time.Duration) *TokenManager {
	if secret == "" {
		secret = "change-me-in-production"
	}
	if issuer == "" {
		issuer = "tasktracker"
	}
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return &TokenManager{secret: []byte(secret), issuer: issuer, ttl: ttl, now: time.Now}
}

// TTL returns how long issued tokens stay valid
func (tm *TokenManager) TTL() time.Duration {
	return tm.ttl
}

func (tm *TokenManager) GenerateToken(p domain.Principal) (string, time.Time, error) {
	if p.UserID == "" || p.TenantID == "" {
		return "", time.Time{}, fmt.Errorf("user_id and tenant_id required")
	}
	now := tm.now()
	expiresAt := now.Add(tm.ttl)
	claims := Claims{
		Principal: p,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   p.UserID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			Issuer:    tm.issuer,
			ID:        uuid.NewString(),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(tm.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, expiresAt, nil
}

// ValidateToken verifies signature, issuer and expiry. Expired tokens fail
// with domain.ErrExpired, anything else with domain.ErrUnauthorized.
func (tm *TokenManager) ValidateToken(tokenString string) (*Claims, error) {
	if tokenString == "" {
		return nil, domain.NewError(domain.ErrUnauthorized, "authentication required")
	}
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return tm.secret, nil
	}, jwt.WithIssuer(tm.issuer), jwt.WithTimeFunc(tm.now))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, domain.NewError(domain.ErrExpired, "session expired, please log in again")
		}
		return nil, domain.NewError(domain.ErrUnauthorized, "invalid or expired token")
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.UserID == "" || claims.TenantID == "" {
		return nil, domain.NewError(domain.ErrUnauthorized, "invalid token claims")
	}
	if claims.Role != domain.RoleAdmin && claims.Role != domain.RoleEmployee {
		return nil, domain.NewError(domain.ErrUnauthorized, "invalid token claims")
	}
	return claims, nil
}

func ExtractToken(authHeader string) (string, error) {
	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
		return "", fmt.Errorf("invalid authorization header")
	}
	return parts[1], nil
}
