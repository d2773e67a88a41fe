package verify

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/base64"
	"encoding/json"
	"errors"
	"log/slog"
	"math/big"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/arturkryukov/carrental/internal/auth/keyset"
)

const testKid = "verify-test-key"

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// newTestKey создаёт RSA ключ и base64 DER self-signed сертификата для x5c.
func newTestKey(t *testing.T) (*rsa.PrivateKey, string) {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("Ошибка генерации RSA ключа: %v", err)
	}

	template := x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: "car-rental-test"},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(time.Hour),
	}
	der, err := x509.CreateCertificate(rand.Reader, &template, &template, &key.PublicKey, key)
	if err != nil {
		t.Fatalf("Ошибка создания сертификата: %v", err)
	}

	return key, base64.StdEncoding.EncodeToString(der)
}

// newTestVerifier поднимает mock certs endpoint с одним ключом
// и собирает Verifier поверх прогретого keyset.Cache.
func newTestVerifier(t *testing.T) (*Verifier, *rsa.PrivateKey) {
	t.Helper()

	key, x5c := newTestKey(t)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"keys": []map[string]any{
				{"kid": testKid, "use": "sig", "x5c": []string{x5c}},
			},
		})
	}))
	t.Cleanup(server.Close)

	cache := keyset.New(server.URL, nil, testLogger())
	if err := cache.Warm(context.Background()); err != nil {
		t.Fatalf("Ошибка предзагрузки key set: %v", err)
	}
	return New(cache), key
}

// signToken подписывает токен RS256 с realm-ролями.
func signToken(t *testing.T, key *rsa.PrivateKey, kid string, realmRoles []string, exp time.Time) string {
	t.Helper()

	claims := jwt.MapClaims{
		"sub":                "partner-1",
		"preferred_username": "acme-corp",
		"exp":                exp.Unix(),
		"realm_access":       map[string]any{"roles": realmRoles},
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	tok.Header["kid"] = kid

	raw, err := tok.SignedString(key)
	if err != nil {
		t.Fatalf("Ошибка подписи токена: %v", err)
	}
	return raw
}

func TestVerify_ValidToken(t *testing.T) {
	verifier, key := newTestVerifier(t)
	raw := signToken(t, key, testKid, []string{"b2b", "user"}, time.Now().Add(time.Hour))

	claims, resolution, err := verifier.Verify(context.Background(), raw, "b2b")
	if err != nil {
		t.Fatalf("Ошибка Verify: %v", err)
	}
	if claims.PreferredUsername != "acme-corp" {
		t.Errorf("ожидался username acme-corp, получен %s", claims.PreferredUsername)
	}
	if !resolution.Has("b2b") {
		t.Error("ожидалась роль b2b в агрегированном наборе")
	}
}

func TestVerify_MissingToken(t *testing.T) {
	verifier, _ := newTestVerifier(t)

	_, _, err := verifier.Verify(context.Background(), "", "b2b")
	if !errors.Is(err, ErrMissingToken) {
		t.Errorf("ожидалась ErrMissingToken, получена %v", err)
	}
}

func TestVerify_ExpiredToken(t *testing.T) {
	verifier, key := newTestVerifier(t)
	raw := signToken(t, key, testKid, []string{"b2b"}, time.Now().Add(-time.Hour))

	_, _, err := verifier.Verify(context.Background(), raw, "b2b")
	if !errors.Is(err, ErrExpiredToken) {
		t.Errorf("ожидалась ErrExpiredToken, получена %v", err)
	}
}

func TestVerify_WrongKey(t *testing.T) {
	verifier, _ := newTestVerifier(t)

	// Чужой ключ подписывает токен с известным kid
	otherKey, _ := newTestKey(t)
	raw := signToken(t, otherKey, testKid, []string{"b2b"}, time.Now().Add(time.Hour))

	_, _, err := verifier.Verify(context.Background(), raw, "b2b")
	if !errors.Is(err, ErrInvalidSignature) {
		t.Errorf("ожидалась ErrInvalidSignature, получена %v", err)
	}
}

func TestVerify_GarbageToken(t *testing.T) {
	verifier, _ := newTestVerifier(t)

	for _, raw := range []string{"не jwt", "a.b", "##.##.##"} {
		_, _, err := verifier.Verify(context.Background(), raw, "b2b")
		if !errors.Is(err, ErrInvalidSignature) {
			t.Errorf("raw=%q: ожидалась ErrInvalidSignature, получена %v", raw, err)
		}
	}
}

func TestVerify_UnknownKid(t *testing.T) {
	verifier, key := newTestVerifier(t)
	raw := signToken(t, key, "другой-kid", []string{"b2b"}, time.Now().Add(time.Hour))

	_, _, err := verifier.Verify(context.Background(), raw, "b2b")
	if !errors.Is(err, ErrUnknownKey) {
		t.Errorf("ожидалась ErrUnknownKey, получена %v", err)
	}
}

func TestVerify_InsufficientCapability(t *testing.T) {
	verifier, key := newTestVerifier(t)

	tests := []struct {
		name  string
		roles []string
	}{
		{"нет нужной роли", []string{"user", "admin"}},
		{"регистр не совпадает", []string{"B2B"}},
		{"пустой набор ролей", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw := signToken(t, key, testKid, tt.roles, time.Now().Add(time.Hour))
			_, _, err := verifier.Verify(context.Background(), raw, "b2b")
			if !errors.Is(err, ErrInsufficientCapability) {
				t.Errorf("ожидалась ErrInsufficientCapability, получена %v", err)
			}
		})
	}
}

// TestVerify_RejectsHMAC проверяет защиту от подмены алгоритма:
// токен HS256, подписанный "секретом", отвергается.
func TestVerify_RejectsHMAC(t *testing.T) {
	verifier, _ := newTestVerifier(t)

	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":          "attacker",
		"exp":          time.Now().Add(time.Hour).Unix(),
		"realm_access": map[string]any{"roles": []string{"b2b"}},
	})
	tok.Header["kid"] = testKid
	raw, err := tok.SignedString([]byte("secret"))
	if err != nil {
		t.Fatal(err)
	}

	_, _, err = verifier.Verify(context.Background(), raw, "b2b")
	if !errors.Is(err, ErrInvalidSignature) {
		t.Errorf("ожидалась ErrInvalidSignature для HS256, получена %v", err)
	}
}

// TestVerify_NoExpClaim проверяет, что токен без exp отвергается.
func TestVerify_NoExpClaim(t *testing.T) {
	verifier, key := newTestVerifier(t)

	tok := jwt.NewWithClaims(jwt.SigningMethodRS256, jwt.MapClaims{
		"sub":          "partner-1",
		"realm_access": map[string]any{"roles": []string{"b2b"}},
	})
	tok.Header["kid"] = testKid
	raw, err := tok.SignedString(key)
	if err != nil {
		t.Fatal(err)
	}

	_, _, err = verifier.Verify(context.Background(), raw, "b2b")
	if !errors.Is(err, ErrInvalidSignature) {
		t.Errorf("ожидалась ErrInvalidSignature для токена без exp, получена %v", err)
	}
}
