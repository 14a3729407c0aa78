package oidc

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"math/big"
	"testing"
	"time"

	"github.com/MicahParks/keyfunc/v3"
	"github.com/golang-jwt/jwt/v5"

	"github.com/bigkaa/remgate/access-module/internal/auth"
)

// testKeyID — идентификатор ключа для тестов.
const testKeyID = "test-key-acm"

const testIssuer = "https://idp.test/realms/remgate"

// generateTestKey генерирует RSA ключ для тестов.
func generateTestKey(t *testing.T) *rsa.PrivateKey {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatal(err)
	}
	return key
}

// buildJWKSetJSON строит JWKS JSON из RSA публичного ключа.
func buildJWKSetJSON(pub *rsa.PublicKey, kid string) json.RawMessage {
	nB64 := base64.RawURLEncoding.EncodeToString(pub.N.Bytes())
	eB64 := base64.RawURLEncoding.EncodeToString(big.NewInt(int64(pub.E)).Bytes())

	jwks := map[string]any{
		"keys": []map[string]any{
			{
				"kty": "RSA",
				"kid": kid,
				"use": "sig",
				"alg": "RS256",
				"n":   nB64,
				"e":   eB64,
			},
		},
	}

	data, _ := json.Marshal(jwks)
	return data
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newTestProvider создаёт SSO-источник с mock JWKS.
func newTestProvider(t *testing.T, key *rsa.PrivateKey) *Provider {
	t.Helper()
	jwksJSON := buildJWKSetJSON(&key.PublicKey, testKeyID)
	kf, err := keyfunc.NewJWKSetJSON(jwksJSON)
	if err != nil {
		t.Fatalf("не удалось создать keyfunc: %v", err)
	}

	return NewWithKeyfunc("sso", kf, Options{
		Issuer:        testIssuer,
		UsernameClaim: "preferred_username",
		CacheTTL:      time.Minute,
		CacheSize:     16,
	}, testLogger())
}

// generateToken генерирует подписанное JWT-утверждение.
func generateToken(t *testing.T, key *rsa.PrivateKey, claims jwt.MapClaims) string {
	t.Helper()

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = testKeyID
	tokenStr, err := token.SignedString(key)
	if err != nil {
		t.Fatal(err)
	}
	return tokenStr
}

// userClaims формирует стандартный набор claims для пользователя.
func userClaims(username string, exp time.Time) jwt.MapClaims {
	return jwt.MapClaims{
		"sub":                "user-" + username,
		"preferred_username": username,
		"iss":                testIssuer,
		"exp":                jwt.NewNumericDate(exp),
		"iat":                jwt.NewNumericDate(time.Now()),
	}
}

func TestAuthenticateValidToken(t *testing.T) {
	key := generateTestKey(t)
	p := newTestProvider(t, key)

	token := generateToken(t, key, userClaims("alice", time.Now().Add(time.Hour)))

	uc, err := p.Authenticate(context.Background(), &auth.Credentials{Token: token})
	if err != nil {
		t.Fatalf("Authenticate() вернул ошибку: %v", err)
	}

	if got := uc.Self().Username; got != "alice" {
		t.Errorf("Self().Username = %q, хотели %q", got, "alice")
	}
	if got := uc.Provider().Identifier(); got != "sso" {
		t.Errorf("Provider().Identifier() = %q, хотели %q", got, "sso")
	}

	// Пользователь зарегистрирован в каталоге источника
	if _, err := uc.Users().Get(context.Background(), "alice"); err != nil {
		t.Errorf("пользователь не зарегистрирован в каталоге: %v", err)
	}
}

func TestAuthenticateRejects(t *testing.T) {
	key := generateTestKey(t)
	otherKey := generateTestKey(t)
	p := newTestProvider(t, key)

	noExp := jwt.MapClaims{
		"sub":                "user-bob",
		"preferred_username": "bob",
		"iss":                testIssuer,
		"iat":                jwt.NewNumericDate(time.Now()),
	}
	wrongIssuer := userClaims("bob", time.Now().Add(time.Hour))
	wrongIssuer["iss"] = "https://evil.test"
	noUsername := userClaims("bob", time.Now().Add(time.Hour))
	delete(noUsername, "preferred_username")

	tests := []struct {
		name  string
		token string
	}{
		{"пустое утверждение", ""},
		{"мусор вместо JWT", "not-a-jwt"},
		{"чужой ключ подписи", generateToken(t, otherKey, userClaims("bob", time.Now().Add(time.Hour)))},
		{"просроченное утверждение", generateToken(t, key, userClaims("bob", time.Now().Add(-time.Hour)))},
		{"без срока действия", generateToken(t, key, noExp)},
		{"чужой issuer", generateToken(t, key, wrongIssuer)},
		{"без claim имени", generateToken(t, key, noUsername)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := p.Authenticate(context.Background(), &auth.Credentials{Token: tt.token})
			if !errors.Is(err, auth.ErrInvalidCredentials) {
				t.Errorf("Authenticate() error = %v, хотели ErrInvalidCredentials", err)
			}
		})
	}
}

func TestAuthenticateCacheReuse(t *testing.T) {
	key := generateTestKey(t)
	p := newTestProvider(t, key)

	token := generateToken(t, key, userClaims("carol", time.Now().Add(time.Hour)))

	uc1, err := p.Authenticate(context.Background(), &auth.Credentials{Token: token})
	if err != nil {
		t.Fatalf("первый Authenticate() вернул ошибку: %v", err)
	}

	// Повторное предъявление обслуживается из кэша
	if _, ok := p.cache.Get(token); !ok {
		t.Fatal("утверждение не попало в кэш после первой проверки")
	}

	uc2, err := p.Authenticate(context.Background(), &auth.Credentials{Token: token})
	if err != nil {
		t.Fatalf("повторный Authenticate() вернул ошибку: %v", err)
	}

	if uc1.Self().Username != uc2.Self().Username {
		t.Errorf("контексты разных пользователей: %q и %q",
			uc1.Self().Username, uc2.Self().Username)
	}
}
