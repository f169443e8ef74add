package session

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/samvad-hq/crm-bff/pkg/dto"
)

func signedToken(t *testing.T, claims jwt.Claims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return token
}

func TestAccessExpiry(t *testing.T) {
	exp := time.Now().Add(5 * time.Minute).Truncate(time.Second)
	access := signedToken(t, jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(exp), Subject: "7"})

	got, ok := AccessExpiry(access)
	if !ok || !got.Equal(exp) {
		t.Fatalf("AccessExpiry = %v ok=%v, want %v", got, ok, exp)
	}
	if _, ok := AccessExpiry("opaque-token"); ok {
		t.Fatalf("opaque token must not report an expiry")
	}
	if _, ok := AccessExpiry(signedToken(t, jwt.RegisteredClaims{Subject: "7"})); ok {
		t.Fatalf("token without exp must not report an expiry")
	}
}

func TestExpiring(t *testing.T) {
	now := time.Now()
	access := signedToken(t, jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(now.Add(20 * time.Second))})
	tokens := dto.AuthTokens{Access: access}

	if !Expiring(tokens, now, 30*time.Second) {
		t.Fatalf("token inside the skew window should be expiring")
	}
	if Expiring(tokens, now, 5*time.Second) {
		t.Fatalf("token outside the skew window should not be expiring")
	}
	if Expiring(dto.AuthTokens{Access: "opaque"}, now, time.Hour) {
		t.Fatalf("opaque tokens are never expiring")
	}
}
