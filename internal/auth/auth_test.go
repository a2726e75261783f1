package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alexbotov/arcade/internal/config"
	"github.com/golang-jwt/jwt/v5"
)

func setupTestAuth(t *testing.T, expiry time.Duration) *Service {
	t.Helper()
	return New(&config.AuthConfig{
		JWTSecret:   "test-secret",
		TokenExpiry: expiry,
	})
}

func TestIssueAndValidate(t *testing.T) {
	svc := setupTestAuth(t, time.Hour)
	ctx := context.Background()

	t.Run("PlayerToken", func(t *testing.T) {
		token, expiresAt, err := svc.IssueToken("player-1", false)
		if err != nil {
			t.Fatalf("Failed to issue token: %v", err)
		}
		if time.Until(expiresAt) <= 0 {
			t.Error("Expected expiry in the future")
		}

		p, err := svc.ValidateToken(ctx, token)
		if err != nil {
			t.Fatalf("Failed to validate token: %v", err)
		}
		if p.PlayerID != "player-1" || p.Admin {
			t.Errorf("Unexpected principal: %+v", p)
		}
	})

	t.Run("AdminToken", func(t *testing.T) {
		token, _, _ := svc.IssueToken("ops", true)
		p, err := svc.ValidateToken(ctx, token)
		if err != nil {
			t.Fatalf("Failed to validate token: %v", err)
		}
		if !p.Admin {
			t.Error("Expected admin principal")
		}
	})
}

func TestValidateRejects(t *testing.T) {
	svc := setupTestAuth(t, time.Hour)
	ctx := context.Background()

	t.Run("Garbage", func(t *testing.T) {
		if _, err := svc.ValidateToken(ctx, "not-a-token"); !errors.Is(err, ErrInvalidToken) {
			t.Errorf("Expected ErrInvalidToken, got %v", err)
		}
	})

	t.Run("WrongSecret", func(t *testing.T) {
		other := New(&config.AuthConfig{JWTSecret: "other", TokenExpiry: time.Hour})
		token, _, _ := other.IssueToken("p1", false)
		if _, err := svc.ValidateToken(ctx, token); !errors.Is(err, ErrInvalidToken) {
			t.Errorf("Expected ErrInvalidToken, got %v", err)
		}
	})

	t.Run("Expired", func(t *testing.T) {
		expired := setupTestAuth(t, -time.Minute)
		token, _, _ := expired.IssueToken("p1", false)
		if _, err := svc.ValidateToken(ctx, token); !errors.Is(err, ErrTokenExpired) {
			t.Errorf("Expected ErrTokenExpired, got %v", err)
		}
	})

	t.Run("MissingPlayerID", func(t *testing.T) {
		token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
			"exp": time.Now().Add(time.Hour).Unix(),
		})
		signed, _ := token.SignedString([]byte("test-secret"))
		if _, err := svc.ValidateToken(ctx, signed); !errors.Is(err, ErrMissingClaim) {
			t.Errorf("Expected ErrMissingClaim, got %v", err)
		}
	})

	t.Run("NoneAlgorithm", func(t *testing.T) {
		token := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{"player_id": "p1"})
		signed, _ := token.SignedString(jwt.UnsafeAllowNoneSignatureType)
		if _, err := svc.ValidateToken(ctx, signed); !errors.Is(err, ErrInvalidToken) {
			t.Errorf("Expected ErrInvalidToken, got %v", err)
		}
	})
}
