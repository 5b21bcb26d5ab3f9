package auth

import (
	"context"
	"crypto"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

// Claims is the access token payload issued by the authentication provider.
// The onboarding flag travels in app_metadata so that it cannot be edited by
// the user.
type Claims struct {
	jwt.RegisteredClaims
	Email       string           `json:"email,omitempty"`
	SessionID   string           `json:"session_id,omitempty"`
	AuthTime    *jwt.NumericDate `json:"auth_time,omitempty"`
	AppMetadata AppMetadata      `json:"app_metadata"`
}

type AppMetadata struct {
	OnboardingStatus bool `json:"onboarding_status"`
}

type SessionConfig struct {
	Issuer   string
	Audience string
	JWKSURL  string
	// Secret is the provider's shared HS256 secret. When set it takes
	// precedence over JWKS.
	Secret []byte
}

var (
	errNoToken      = errors.New("no session token")
	errTokenRevoked = errors.New("session token revoked")
	errSignedOut    = errors.New("session signed out")
	errBadSubject   = errors.New("token subject is not a dentist id")
)

// JWKSKey represents a single JSON Web Key from a JWKS endpoint.
type JWKSKey struct {
	Kty string `json:"kty"`
	Kid string `json:"kid"`
	Use string `json:"use"`
	Alg string `json:"alg"`
	N   string `json:"n"`
	E   string `json:"e"`
	Crv string `json:"crv"`
	X   string `json:"x"`
	Y   string `json:"y"`
}

// JWKSResponse represents the response from a JWKS endpoint.
type JWKSResponse struct {
	Keys []JWKSKey `json:"keys"`
}

// JWKSCache caches the provider's signing keys with a TTL.
type JWKSCache struct {
	mu        sync.RWMutex
	keys      map[string]crypto.PublicKey
	jwksURL   string
	ttl       time.Duration
	fetchedAt time.Time
	client    *http.Client
}

func NewJWKSCache(jwksURL string, ttl time.Duration) *JWKSCache {
	return &JWKSCache{
		keys:    make(map[string]crypto.PublicKey),
		jwksURL: jwksURL,
		ttl:     ttl,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

// GetKey returns the RSA or EC public key for kid, refetching on miss or expiry.
func (c *JWKSCache) GetKey(kid string) (crypto.PublicKey, error) {
	c.mu.RLock()
	key, ok := c.keys[kid]
	expired := time.Since(c.fetchedAt) > c.ttl
	c.mu.RUnlock()

	if ok && !expired {
		return key, nil
	}

	if err := c.fetch(); err != nil {
		return nil, fmt.Errorf("fetching JWKS: %w", err)
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	key, ok = c.keys[kid]
	if !ok {
		return nil, fmt.Errorf("key with kid %q not found in JWKS", kid)
	}
	return key, nil
}

func (c *JWKSCache) fetch() error {
	resp, err := c.client.Get(c.jwksURL)
	if err != nil {
		return fmt.Errorf("GET %s: %w", c.jwksURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("JWKS endpoint returned status %d", resp.StatusCode)
	}

	var jwks JWKSResponse
	if err := json.NewDecoder(resp.Body).Decode(&jwks); err != nil {
		return fmt.Errorf("decoding JWKS response: %w", err)
	}

	keys := make(map[string]crypto.PublicKey, len(jwks.Keys))
	for _, k := range jwks.Keys {
		var (
			pubKey crypto.PublicKey
			err    error
		)
		switch k.Kty {
		case "RSA":
			pubKey, err = parseRSAPublicKey(k)
		case "EC":
			pubKey, err = parseECPublicKey(k)
		default:
			continue
		}
		if err != nil {
			continue // skip malformed keys
		}
		keys[k.Kid] = pubKey
	}

	c.mu.Lock()
	c.keys = keys
	c.fetchedAt = time.Now()
	c.mu.Unlock()

	return nil
}

func parseRSAPublicKey(k JWKSKey) (*rsa.PublicKey, error) {
	nBytes, err := base64.RawURLEncoding.DecodeString(k.N)
	if err != nil {
		return nil, fmt.Errorf("decoding modulus: %w", err)
	}
	eBytes, err := base64.RawURLEncoding.DecodeString(k.E)
	if err != nil {
		return nil, fmt.Errorf("decoding exponent: %w", err)
	}

	return &rsa.PublicKey{
		N: new(big.Int).SetBytes(nBytes),
		E: int(new(big.Int).SetBytes(eBytes).Int64()),
	}, nil
}

func parseECPublicKey(k JWKSKey) (*ecdsa.PublicKey, error) {
	if k.Crv != "P-256" {
		return nil, fmt.Errorf("unsupported curve %q", k.Crv)
	}
	xBytes, err := base64.RawURLEncoding.DecodeString(k.X)
	if err != nil {
		return nil, fmt.Errorf("decoding x: %w", err)
	}
	yBytes, err := base64.RawURLEncoding.DecodeString(k.Y)
	if err != nil {
		return nil, fmt.Errorf("decoding y: %w", err)
	}
	pub := &ecdsa.PublicKey{
		Curve: elliptic.P256(),
		X:     new(big.Int).SetBytes(xBytes),
		Y:     new(big.Int).SetBytes(yBytes),
	}
	if !pub.Curve.IsOnCurve(pub.X, pub.Y) {
		return nil, errors.New("point is not on P-256")
	}
	return pub, nil
}

const defaultJWKSCacheTTL = 5 * time.Minute

// Verifier turns a session token into an Identity. Revoked tokens are
// rejected and claim overrides recorded by a session refresh are merged in.
type Verifier struct {
	cfg     SessionConfig
	keyFunc jwt.Keyfunc
	store   SessionStore
}

func NewVerifier(cfg SessionConfig, store SessionStore) *Verifier {
	v := &Verifier{cfg: cfg, store: store}
	if len(cfg.Secret) > 0 {
		v.keyFunc = func(t *jwt.Token) (interface{}, error) {
			return cfg.Secret, nil
		}
	} else {
		cache := NewJWKSCache(cfg.JWKSURL, defaultJWKSCacheTTL)
		v.keyFunc = func(t *jwt.Token) (interface{}, error) {
			kid, ok := t.Header["kid"].(string)
			if !ok || kid == "" {
				return nil, fmt.Errorf("token has no kid header")
			}
			return cache.GetKey(kid)
		}
	}
	return v
}

// methods limits the accepted algorithms to the configured key source so an
// HS256 token can never be checked against a public key or the reverse.
func (v *Verifier) methods() []string {
	if len(v.cfg.Secret) > 0 {
		return []string{"HS256"}
	}
	return []string{"RS256", "ES256"}
}

// Verify validates tokenStr and resolves the dentist identity.
func (v *Verifier) Verify(ctx context.Context, tokenStr string) (*Identity, error) {
	if tokenStr == "" {
		return nil, errNoToken
	}

	opts := []jwt.ParserOption{jwt.WithValidMethods(v.methods())}
	if v.cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.cfg.Issuer))
	}
	if v.cfg.Audience != "" {
		opts = append(opts, jwt.WithAudience(v.cfg.Audience))
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, v.keyFunc, opts...)
	if err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}
	if !token.Valid {
		return nil, fmt.Errorf("parse token: invalid")
	}

	dentistID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return nil, errBadSubject
	}

	who := &Identity{
		DentistID: dentistID,
		Email:     claims.Email,
		Onboarded: claims.AppMetadata.OnboardingStatus,
		SessionID: claims.SessionID,
		TokenID:   claims.ID,
	}
	if claims.ExpiresAt != nil {
		who.ExpiresAt = claims.ExpiresAt.Time
	}
	if claims.IssuedAt != nil {
		who.IssuedAt = claims.IssuedAt.Time
	}
	who.AuthTime = who.IssuedAt
	if claims.AuthTime != nil {
		who.AuthTime = claims.AuthTime.Time
	}

	if v.store == nil {
		return who, nil
	}
	if who.TokenID != "" {
		revoked, err := v.store.IsRevoked(ctx, who.TokenID)
		if err != nil {
			return nil, fmt.Errorf("check revocation: %w", err)
		}
		if revoked {
			return nil, errTokenRevoked
		}
	}
	cutoff, err := v.store.SessionsRevokedAt(ctx, dentistID)
	if err != nil {
		return nil, fmt.Errorf("load sign-out cutoff: %w", err)
	}
	if !cutoff.IsZero() && !who.IssuedAt.After(cutoff) {
		return nil, errSignedOut
	}
	if !who.Onboarded {
		override, err := v.store.Claims(ctx, dentistID)
		if err != nil {
			return nil, fmt.Errorf("load claim override: %w", err)
		}
		if override != nil && override.OnboardingStatus {
			who.Onboarded = true
		}
	}
	return who, nil
}

// BearerToken extracts the token from an Authorization header.
func BearerToken(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return ""
	}
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

// SessionMiddleware resolves the calling dentist from the bearer token. A
// missing or invalid token does not abort the request: the identity is left
// unset and each action answers with its own "not authenticated" result
// without touching the database.
func SessionMiddleware(v *Verifier, logger zerolog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			tokenStr := BearerToken(c.Request())
			if tokenStr == "" {
				return next(c)
			}

			ctx := c.Request().Context()
			who, err := v.Verify(ctx, tokenStr)
			if err != nil {
				logger.Debug().Err(err).Str("path", c.Request().URL.Path).Msg("session token rejected")
				return next(c)
			}

			c.Set("dentist_id", who.DentistID.String())
			c.SetRequest(c.Request().WithContext(WithIdentity(ctx, who)))
			return next(c)
		}
	}
}

// DevSessionMiddleware fills in a fixed development dentist when no session
// was resolved. It must only be installed when ENV=development.
func DevSessionMiddleware(devDentistID uuid.UUID, store SessionStore) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx := c.Request().Context()
			if IdentityFromContext(ctx) != nil {
				return next(c)
			}
			if c.Request().Header.Get("Authorization") != "" {
				// A token was sent but rejected; do not mask that.
				return next(c)
			}

			now := time.Now()
			who := &Identity{
				DentistID: devDentistID,
				Email:     "dev@localhost",
				SessionID: "dev-session",
				ExpiresAt: now.Add(time.Hour),
				IssuedAt:  now,
				AuthTime:  now,
			}
			if store != nil {
				if override, err := store.Claims(ctx, devDentistID); err == nil && override != nil {
					who.Onboarded = override.OnboardingStatus
				}
			}
			c.Set("dentist_id", who.DentistID.String())
			c.SetRequest(c.Request().WithContext(WithIdentity(ctx, who)))
			return next(c)
		}
	}
}
