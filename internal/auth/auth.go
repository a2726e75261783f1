// Package auth validates player sessions carried as HS256 JWTs.
// Tokens are minted by the community platform; this service only needs the
// shared secret to check them.
package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/alexbotov/arcade/internal/config"
	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("session expired")
	ErrMissingClaim = errors.New("token has no player_id")
)

// Principal is the authenticated caller
type Principal struct {
	PlayerID string
	Admin    bool
}

type claims struct {
	PlayerID string `json:"player_id"`
	Admin    bool   `json:"admin,omitempty"`
	jwt.RegisteredClaims
}

// Service provides session validation
type Service struct {
	config *config.AuthConfig
}

// New creates a new auth service
func New(cfg *config.AuthConfig) *Service {
	return &Service{config: cfg}
}

// IssueToken mints a session token. Used by tooling and tests; production
// tokens come from the platform login flow.
func (s *Service) IssueToken(playerID string, admin bool) (string, time.Time, error) {
	now := time.Now().UTC()
	expiresAt := now.Add(s.config.TokenExpiry)

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		PlayerID: playerID,
		Admin:    admin,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   playerID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	})

	signed, err := token.SignedString([]byte(s.config.JWTSecret))
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, expiresAt, nil
}

// ValidateToken validates a JWT and returns the caller it names
func (s *Service) ValidateToken(_ context.Context, tokenString string) (*Principal, error) {
	var c claims
	token, err := jwt.ParseWithClaims(tokenString, &c, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.config.JWTSecret), nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrInvalidToken
	}
	if !token.Valid {
		return nil, ErrInvalidToken
	}
	if c.PlayerID == "" {
		return nil, ErrMissingClaim
	}

	return &Principal{PlayerID: c.PlayerID, Admin: c.Admin}, nil
}
