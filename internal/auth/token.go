package auth

import (
	"time"

	"farmdb/internal/authapi"
	"farmdb/internal/config"

	"github.com/golang-jwt/jwt/v5"
)

// tokenLifetime derives the access token's validity window for renewal
// scheduling. Prefers the server-reported expires_in; falls back to the
// token's own exp claim (parsed unverified — the client never validates
// signatures, it only reads the deadline), then to the server default.
func tokenLifetime(pair authapi.TokenPair) time.Duration {
	if lifetime := pair.Lifetime(); lifetime > 0 {
		return lifetime
	}

	claims := jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(pair.AccessToken, &claims); err == nil {
		if claims.ExpiresAt != nil {
			if remaining := time.Until(claims.ExpiresAt.Time); remaining > 0 {
				return remaining
			}
		}
	}
	return config.AccessTokenLifetime
}
