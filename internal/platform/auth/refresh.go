package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// ErrNoSigner is returned when a token must be minted but no signing secret
// is configured.
var ErrNoSigner = errors.New("no session signing secret configured")

// Signer mints HS256 access tokens with the provider's shared secret.
type Signer struct {
	secret   []byte
	issuer   string
	audience string
	ttl      time.Duration
	now      func() time.Time
}

func NewSigner(cfg SessionConfig, ttl time.Duration) *Signer {
	if len(cfg.Secret) == 0 {
		return nil
	}
	return &Signer{
		secret:   cfg.Secret,
		issuer:   cfg.Issuer,
		audience: cfg.Audience,
		ttl:      ttl,
		now:      time.Now,
	}
}

// Mint issues a token for who carrying its current onboarding status. The
// sign-in time is carried forward; a missing one starts a new session.
func (s *Signer) Mint(who *Identity) (string, time.Time, error) {
	if s == nil {
		return "", time.Time{}, ErrNoSigner
	}
	now := s.now()
	exp := now.Add(s.ttl)
	authTime := who.AuthTime
	if authTime.IsZero() {
		authTime = now
	}

	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   who.DentistID.String(),
			Issuer:    s.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
			ID:        uuid.NewString(),
		},
		Email:       who.Email,
		SessionID:   who.SessionID,
		AuthTime:    jwt.NewNumericDate(authTime),
		AppMetadata: AppMetadata{OnboardingStatus: who.Onboarded},
	}
	if s.audience != "" {
		claims.Audience = jwt.ClaimStrings{s.audience}
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, exp, nil
}

// Refresher brings a dentist's session in line with a changed onboarding
// status.
type Refresher struct {
	store       SessionStore
	signer      *Signer
	overrideTTL time.Duration
}

func NewRefresher(store SessionStore, signer *Signer, overrideTTL time.Duration) *Refresher {
	return &Refresher{store: store, signer: signer, overrideTTL: overrideTTL}
}

// MarkOnboarded records the onboarding_status=true override and, when a
// signer is configured, returns a refreshed access token. The token is empty
// when no signer is configured.
func (r *Refresher) MarkOnboarded(ctx context.Context, who *Identity) (string, error) {
	if err := r.store.SetOnboarded(ctx, who.DentistID, r.overrideTTL); err != nil {
		return "", fmt.Errorf("record onboarding override: %w", err)
	}

	refreshed := *who
	refreshed.Onboarded = true
	if r.signer == nil {
		return "", nil
	}
	token, _, err := r.signer.Mint(&refreshed)
	if err != nil {
		return "", err
	}
	return token, nil
}
