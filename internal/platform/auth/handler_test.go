package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

func newAuthContext(who *Identity) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/", nil)
	if who != nil {
		req = req.WithContext(WithIdentity(req.Context(), who))
	}
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func TestHandler_SignOut(t *testing.T) {
	store := NewMemoryStore()
	defer store.Close()
	h := NewHandler(store, nil, 24*time.Hour, zerolog.Nop())

	who := &Identity{DentistID: uuid.New(), TokenID: "jti-1", ExpiresAt: time.Now().Add(time.Hour)}
	c, rec := newAuthContext(who)
	if err := h.SignOut(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
	if revoked, _ := store.IsRevoked(context.Background(), "jti-1"); !revoked {
		t.Error("expected token to be revoked")
	}
}

func TestHandler_SignOut_Unauthenticated(t *testing.T) {
	store := NewMemoryStore()
	defer store.Close()
	h := NewHandler(store, nil, 24*time.Hour, zerolog.Nop())

	c, rec := newAuthContext(nil)
	if err := h.SignOut(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", rec.Code)
	}

	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body["error"] != msgNotAuthenticated {
		t.Errorf("unexpected error message %v", body["error"])
	}
}

func TestHandler_Refresh(t *testing.T) {
	store := NewMemoryStore()
	defer store.Close()
	signer := NewSigner(SessionConfig{Secret: testSigningKey}, time.Hour)
	h := NewHandler(store, signer, 24*time.Hour, zerolog.Nop())

	c, rec := newAuthContext(&Identity{DentistID: uuid.New(), Onboarded: true, TokenID: "old-jti", AuthTime: time.Now()})
	if err := h.Refresh(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var resp SessionResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if !resp.Success || resp.AccessToken == "" {
		t.Errorf("expected success with token, got %+v", resp)
	}
	if revoked, _ := store.IsRevoked(context.Background(), "old-jti"); !revoked {
		t.Error("expected the replaced token to be revoked")
	}
}

func TestHandler_Refresh_NoSigner(t *testing.T) {
	store := NewMemoryStore()
	defer store.Close()
	h := NewHandler(store, nil, 24*time.Hour, zerolog.Nop())

	c, rec := newAuthContext(&Identity{DentistID: uuid.New(), AuthTime: time.Now()})
	if err := h.Refresh(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("expected 500, got %d", rec.Code)
	}
}

func TestHandler_Refresh_SessionTooOld(t *testing.T) {
	store := NewMemoryStore()
	defer store.Close()
	signer := NewSigner(SessionConfig{Secret: testSigningKey}, time.Hour)
	h := NewHandler(store, signer, 24*time.Hour, zerolog.Nop())

	for name, authTime := range map[string]time.Time{
		"past max age":    time.Now().Add(-25 * time.Hour),
		"unknown sign-in": {},
	} {
		t.Run(name, func(t *testing.T) {
			c, rec := newAuthContext(&Identity{DentistID: uuid.New(), TokenID: "jti-" + name, AuthTime: authTime})
			if err := h.Refresh(c); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if rec.Code != http.StatusUnauthorized {
				t.Fatalf("expected 401, got %d", rec.Code)
			}
			var resp SessionResponse
			if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
				t.Fatal(err)
			}
			if resp.AccessToken != "" || resp.Error == nil || *resp.Error != msgSessionExpired {
				t.Errorf("unexpected response %+v", resp)
			}
		})
	}
}

func TestHandler_Refresh_KeepsSignInTime(t *testing.T) {
	store := NewMemoryStore()
	defer store.Close()
	cfg := SessionConfig{Secret: testSigningKey}
	h := NewHandler(store, NewSigner(cfg, time.Hour), 24*time.Hour, zerolog.Nop())

	signedIn := time.Now().Add(-2 * time.Hour).Truncate(time.Second)
	c, rec := newAuthContext(&Identity{DentistID: uuid.New(), AuthTime: signedIn})
	if err := h.Refresh(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var resp SessionResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}

	who, err := NewVerifier(cfg, store).Verify(context.Background(), resp.AccessToken)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if !who.AuthTime.Equal(signedIn) {
		t.Errorf("expected sign-in time %v carried forward, got %v", signedIn, who.AuthTime)
	}
}

func TestHandler_SignOut_EndsRefreshedTokens(t *testing.T) {
	store := NewMemoryStore()
	defer store.Close()
	cfg := SessionConfig{Secret: testSigningKey}
	signer := NewSigner(cfg, time.Hour)
	verifier := NewVerifier(cfg, store)
	h := NewHandler(store, signer, 24*time.Hour, zerolog.Nop())
	ctx := context.Background()

	original, _, err := signer.Mint(&Identity{DentistID: uuid.New(), SessionID: "sess-1"})
	if err != nil {
		t.Fatal(err)
	}
	who, err := verifier.Verify(ctx, original)
	if err != nil {
		t.Fatalf("Verify original: %v", err)
	}

	c, rec := newAuthContext(who)
	if err := h.Refresh(c); err != nil {
		t.Fatal(err)
	}
	var resp SessionResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if _, err := verifier.Verify(ctx, resp.AccessToken); err != nil {
		t.Fatalf("refreshed token should be valid before sign-out: %v", err)
	}

	// Sign out with the original identity; the refreshed token must die too.
	c, rec = newAuthContext(who)
	if err := h.SignOut(c); err != nil {
		t.Fatal(err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if _, err := verifier.Verify(ctx, resp.AccessToken); err == nil {
		t.Error("expected refreshed token to be rejected after sign-out")
	}
	if _, err := verifier.Verify(ctx, original); err == nil {
		t.Error("expected original token to be rejected after sign-out")
	}

	// A token from a later sign-in is unaffected.
	signer.now = func() time.Time { return time.Now().Add(2 * time.Second) }
	later, _, err := signer.Mint(&Identity{DentistID: who.DentistID, SessionID: "sess-2"})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := verifier.Verify(ctx, later); err != nil {
		t.Errorf("expected token issued after sign-out to be valid: %v", err)
	}
}
