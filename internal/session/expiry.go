package session

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/samvad-hq/crm-bff/pkg/dto"
)

// AccessExpiry reads the exp claim of an access token without verifying its
// signature; the backend remains the authority on validity. ok is false for
// opaque tokens or tokens without exp.
func AccessExpiry(access string) (exp time.Time, ok bool) {
	claims := jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(access, &claims); err != nil {
		return time.Time{}, false
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, false
	}
	return claims.ExpiresAt.Time, true
}

// Expiring reports whether the access token expires within skew of now.
// Tokens without a readable expiry are never reported as expiring.
func Expiring(tokens dto.AuthTokens, now time.Time, skew time.Duration) bool {
	exp, ok := AccessExpiry(tokens.Access)
	return ok && !now.Add(skew).Before(exp)
}
