package auth

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/dentalcrm/crm/internal/platform/result"
)

var testSigningKey = []byte("test-secret-key-for-unit-tests-only")

func createTestToken(t *testing.T, claims Claims, key []byte) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenStr, err := token.SignedString(key)
	if err != nil {
		t.Fatalf("failed to sign test token: %v", err)
	}
	return tokenStr
}

func validClaims(sub string) Claims {
	return Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   sub,
			ID:        "jti-" + sub,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
		Email:     "dr@example.com",
		SessionID: "sess-1",
	}
}

// runSession runs SessionMiddleware for one request and returns the identity
// the handler observed.
func runSession(t *testing.T, v *Verifier, header string) *Identity {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/patients", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	c := e.NewContext(req, httptest.NewRecorder())
	c.SetPath("/api/v1/patients")

	var seen *Identity
	called := false
	h := SessionMiddleware(v, zerolog.Nop())(func(c echo.Context) error {
		called = true
		seen = IdentityFromContext(c.Request().Context())
		return c.NoContent(http.StatusOK)
	})
	if err := h(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !called {
		t.Fatal("handler was not called")
	}
	return seen
}

func TestSessionMiddleware_MissingHeader(t *testing.T) {
	v := NewVerifier(SessionConfig{Secret: testSigningKey}, nil)
	if who := runSession(t, v, ""); who != nil {
		t.Errorf("expected no identity, got %+v", who)
	}
}

func TestSessionMiddleware_InvalidFormat(t *testing.T) {
	v := NewVerifier(SessionConfig{Secret: testSigningKey}, nil)
	tests := []struct {
		name   string
		header string
	}{
		{"no bearer prefix", "Token abc123"},
		{"missing token", "Bearer"},
		{"empty value", "Bearer "},
		{"basic auth", "Basic dXNlcjpwYXNz"},
		{"garbage token", "Bearer not.a.jwt"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if who := runSession(t, v, tt.header); who != nil {
				t.Errorf("expected no identity, got %+v", who)
			}
		})
	}
}

func TestSessionMiddleware_ValidToken(t *testing.T) {
	id := uuid.New()
	claims := validClaims(id.String())
	claims.AppMetadata.OnboardingStatus = true
	tokenStr := createTestToken(t, claims, testSigningKey)

	v := NewVerifier(SessionConfig{Secret: testSigningKey}, nil)
	who := runSession(t, v, "Bearer "+tokenStr)
	if who == nil {
		t.Fatal("expected identity")
	}
	if who.DentistID != id {
		t.Errorf("expected dentist %s, got %s", id, who.DentistID)
	}
	if who.Email != "dr@example.com" || who.SessionID != "sess-1" {
		t.Errorf("unexpected identity fields: %+v", who)
	}
	if !who.Onboarded {
		t.Error("expected onboarded claim to be carried")
	}
	if who.TokenID != "jti-"+id.String() {
		t.Errorf("unexpected token id %q", who.TokenID)
	}
}

func TestSessionMiddleware_RejectedTokens(t *testing.T) {
	id := uuid.New().String()
	const issuer = "https://auth.example.com"

	good := validClaims(id)
	good.Issuer = issuer

	expired := good
	expired.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Hour))

	badSubject := validClaims("not-a-uuid")
	badSubject.Issuer = issuer

	wrongIssuer := good
	wrongIssuer.Issuer = "https://elsewhere.example.com"

	tests := []struct {
		name  string
		token string
	}{
		{"expired", createTestToken(t, expired, testSigningKey)},
		{"wrong key", createTestToken(t, good, []byte("another-key"))},
		{"subject not uuid", createTestToken(t, badSubject, testSigningKey)},
		{"wrong issuer", createTestToken(t, wrongIssuer, testSigningKey)},
	}

	v := NewVerifier(SessionConfig{Secret: testSigningKey, Issuer: issuer}, nil)
	if who := runSession(t, v, "Bearer "+createTestToken(t, good, testSigningKey)); who == nil {
		t.Fatal("expected control token to be accepted")
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if who := runSession(t, v, "Bearer "+tt.token); who != nil {
				t.Errorf("expected no identity, got %+v", who)
			}
		})
	}
}

func TestVerifier_JWKSWithECKey(t *testing.T) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(JWKSResponse{Keys: []JWKSKey{{
			Kty: "EC",
			Kid: "ec-1",
			Crv: "P-256",
			X:   base64.RawURLEncoding.EncodeToString(key.X.FillBytes(make([]byte, 32))),
			Y:   base64.RawURLEncoding.EncodeToString(key.Y.FillBytes(make([]byte, 32))),
		}}})
	}))
	defer srv.Close()

	sub := uuid.New()
	token := jwt.NewWithClaims(jwt.SigningMethodES256, validClaims(sub.String()))
	token.Header["kid"] = "ec-1"
	tokenStr, err := token.SignedString(key)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	v := NewVerifier(SessionConfig{JWKSURL: srv.URL}, nil)
	who, err := v.Verify(context.Background(), tokenStr)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if who.DentistID != sub {
		t.Errorf("dentist id = %s, want %s", who.DentistID, sub)
	}

	hs := createTestToken(t, validClaims(sub.String()), testSigningKey)
	if _, err := v.Verify(context.Background(), hs); err == nil {
		t.Error("expected HS256 token to be rejected by a JWKS verifier")
	}
}

func TestSessionMiddleware_RevokedToken(t *testing.T) {
	store := NewMemoryStore()
	defer store.Close()

	claims := validClaims(uuid.New().String())
	tokenStr := createTestToken(t, claims, testSigningKey)
	if err := store.Revoke(context.Background(), claims.ID, claims.ExpiresAt.Time); err != nil {
		t.Fatal(err)
	}

	v := NewVerifier(SessionConfig{Secret: testSigningKey}, store)
	if who := runSession(t, v, "Bearer "+tokenStr); who != nil {
		t.Errorf("expected revoked token to resolve to no identity, got %+v", who)
	}
}

func TestSessionMiddleware_MergesClaimOverride(t *testing.T) {
	store := NewMemoryStore()
	defer store.Close()

	id := uuid.New()
	tokenStr := createTestToken(t, validClaims(id.String()), testSigningKey)
	v := NewVerifier(SessionConfig{Secret: testSigningKey}, store)

	if who := runSession(t, v, "Bearer "+tokenStr); who == nil || who.Onboarded {
		t.Fatalf("expected non-onboarded identity before override, got %+v", who)
	}

	if err := store.SetOnboarded(context.Background(), id, time.Hour); err != nil {
		t.Fatal(err)
	}
	who := runSession(t, v, "Bearer "+tokenStr)
	if who == nil || !who.Onboarded {
		t.Errorf("expected override to mark identity onboarded, got %+v", who)
	}
}

func TestDevSessionMiddleware(t *testing.T) {
	devID := uuid.New()

	t.Run("fills in dev dentist without header", func(t *testing.T) {
		e := echo.New()
		req := httptest.NewRequest(http.MethodGet, "/api/v1/patients", nil)
		c := e.NewContext(req, httptest.NewRecorder())

		h := DevSessionMiddleware(devID, nil)(func(c echo.Context) error {
			who := IdentityFromContext(c.Request().Context())
			if who == nil || who.DentistID != devID {
				t.Errorf("expected dev identity, got %+v", who)
			}
			return nil
		})
		if err := h(c); err != nil {
			t.Fatal(err)
		}
	})

	t.Run("does not mask rejected token", func(t *testing.T) {
		e := echo.New()
		req := httptest.NewRequest(http.MethodGet, "/api/v1/patients", nil)
		req.Header.Set("Authorization", "Bearer bad")
		c := e.NewContext(req, httptest.NewRecorder())

		h := DevSessionMiddleware(devID, nil)(func(c echo.Context) error {
			if who := IdentityFromContext(c.Request().Context()); who != nil {
				t.Errorf("expected no identity, got %+v", who)
			}
			return nil
		})
		if err := h(c); err != nil {
			t.Fatal(err)
		}
	})

	t.Run("keeps resolved identity", func(t *testing.T) {
		e := echo.New()
		req := httptest.NewRequest(http.MethodGet, "/api/v1/patients", nil)
		real := &Identity{DentistID: uuid.New()}
		req = req.WithContext(WithIdentity(req.Context(), real))
		c := e.NewContext(req, httptest.NewRecorder())

		h := DevSessionMiddleware(devID, nil)(func(c echo.Context) error {
			if who := IdentityFromContext(c.Request().Context()); who != real {
				t.Errorf("expected resolved identity to be kept, got %+v", who)
			}
			return nil
		})
		if err := h(c); err != nil {
			t.Fatal(err)
		}
	})
}

func TestGuard(t *testing.T) {
	if err := Guard(&Identity{DentistID: uuid.New()}, "nope"); err != nil {
		t.Errorf("expected nil, got %v", err)
	}

	for name, who := range map[string]*Identity{"nil": nil, "zero id": {}} {
		t.Run(name, func(t *testing.T) {
			err := Guard(who, "Dentist not found")
			var rerr *result.Error
			if !errors.As(err, &rerr) {
				t.Fatalf("expected *result.Error, got %T", err)
			}
			if rerr.Kind != result.KindUnauthenticated {
				t.Errorf("expected unauthenticated kind, got %v", rerr.Kind)
			}
			if rerr.Message != "Dentist not found" {
				t.Errorf("unexpected message %q", rerr.Message)
			}
		})
	}
}

func TestBearerToken(t *testing.T) {
	tests := []struct {
		header string
		want   string
	}{
		{"", ""},
		{"Bearer abc", "abc"},
		{"bearer abc", "abc"},
		{"Basic abc", ""},
		{"Bearer", ""},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if tt.header != "" {
			req.Header.Set("Authorization", tt.header)
		}
		if got := BearerToken(req); got != tt.want {
			t.Errorf("BearerToken(%q) = %q, want %q", tt.header, got, tt.want)
		}
	}
}
