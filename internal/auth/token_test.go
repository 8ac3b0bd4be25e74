package auth

import (
	"encoding/base64"
	"fmt"
	"testing"
	"time"

	"farmdb/internal/authapi"
	"farmdb/internal/config"
)

func unsignedJWT(expiresAt time.Time) string {
	header := base64.RawURLEncoding.EncodeToString([]byte(`{"alg":"HS256","typ":"JWT"}`))
	claims := base64.RawURLEncoding.EncodeToString([]byte(fmt.Sprintf(`{"sub":"u1","exp":%d}`, expiresAt.Unix())))
	return header + "." + claims + "."
}

func TestTokenLifetimePrefersExpiresIn(t *testing.T) {
	pair := authapi.TokenPair{AccessToken: unsignedJWT(time.Now().Add(time.Hour)), ExpiresIn: 900}
	if got := tokenLifetime(pair); got != 900*time.Second {
		t.Fatalf("expected 900s from expires_in, got %v", got)
	}
}

func TestTokenLifetimeFallsBackToExpClaim(t *testing.T) {
	pair := authapi.TokenPair{AccessToken: unsignedJWT(time.Now().Add(10 * time.Minute))}
	got := tokenLifetime(pair)
	if got < 9*time.Minute || got > 10*time.Minute {
		t.Fatalf("expected roughly ten minutes from exp claim, got %v", got)
	}
}

func TestTokenLifetimeDefaultsWhenUnparseable(t *testing.T) {
	pair := authapi.TokenPair{AccessToken: "not-a-jwt"}
	if got := tokenLifetime(pair); got != config.AccessTokenLifetime {
		t.Fatalf("expected default lifetime, got %v", got)
	}
}

func TestTokenLifetimeDefaultsWhenExpired(t *testing.T) {
	pair := authapi.TokenPair{AccessToken: unsignedJWT(time.Now().Add(-time.Minute))}
	if got := tokenLifetime(pair); got != config.AccessTokenLifetime {
		t.Fatalf("expected default lifetime for an already-expired claim, got %v", got)
	}
}
