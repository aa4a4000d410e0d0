package auth

import (
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// parseToken verifies a token the way the backing store does.
func parseToken(tokenString string, secret []byte) (*Claims, error) {
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	claims := &Claims{}
	token, err := parser.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (any, error) {
		return secret, nil
	})
	if err != nil {
		return nil, err
	}
	if !token.Valid || claims.Subject == "" {
		return nil, errors.New("invalid token")
	}
	return claims, nil
}

func TestServiceTokenRoundTrip(t *testing.T) {
	secret := []byte("test-secret")
	source, err := NewServiceToken(secret, "trainsync", time.Hour)
	if err != nil {
		t.Fatalf("new token: %v", err)
	}
	header := http.Header{}
	if err := source.Apply(header); err != nil {
		t.Fatalf("apply: %v", err)
	}
	value := header.Get("Authorization")
	if !strings.HasPrefix(value, "Bearer ") {
		t.Fatalf("expected bearer header, got %q", value)
	}
	claims, err := parseToken(strings.TrimPrefix(value, "Bearer "), secret)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if claims.Subject != "trainsync" || claims.Scope != "sync" {
		t.Fatalf("unexpected claims %+v", claims)
	}
}

func TestServiceTokenReusedUntilNearExpiry(t *testing.T) {
	now := time.Date(2026, 10, 17, 10, 0, 0, 0, time.UTC)
	source, _ := NewServiceToken([]byte("test-secret"), "trainsync", time.Hour)
	source.now = func() time.Time { return now }

	first, _ := source.Token()
	now = now.Add(30 * time.Minute)
	second, _ := source.Token()
	if first != second {
		t.Fatalf("expected reuse within ttl")
	}
	now = now.Add(28 * time.Minute)
	third, _ := source.Token()
	if third == second {
		t.Fatalf("expected refresh near expiry")
	}
}

func TestServiceTokenRejectedWithWrongSecretOrExpired(t *testing.T) {
	secret := []byte("test-secret")
	source, _ := NewServiceToken(secret, "trainsync", time.Hour)
	token, _ := source.Token()
	if _, err := parseToken(token, []byte("other")); err == nil {
		t.Fatalf("expected signature error")
	}

	claims := Claims{RegisteredClaims: jwt.RegisteredClaims{
		Subject:   "trainsync",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
	}}
	expired, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := parseToken(expired, secret); err == nil {
		t.Fatalf("expected expiry error")
	}
}

func TestBasicApply(t *testing.T) {
	header := http.Header{}
	if err := (Basic{Username: "sync", Password: "pw"}).Apply(header); err != nil {
		t.Fatalf("apply: %v", err)
	}
	req := http.Request{Header: header}
	user, pass, ok := req.BasicAuth()
	if !ok || user != "sync" || pass != "pw" {
		t.Fatalf("unexpected basic auth %q %q", user, pass)
	}
	if err := (Basic{}).Apply(http.Header{}); err == nil {
		t.Fatalf("expected error for empty username")
	}
}
