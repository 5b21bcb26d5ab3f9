package auth

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/dentalcrm/crm/internal/platform/result"
)

const (
	msgNotAuthenticated = "User not authenticated."
	msgSignedOut        = "Signed out successfully"
	msgRefreshed        = "Session refreshed"
	msgSessionExpired   = "Session expired. Please sign in again."
)

// SessionResponse is the uniform result carrying a freshly minted token.
type SessionResponse struct {
	result.Result
	AccessToken string `json:"access_token,omitempty"`
}

// Handler serves the session endpoints.
type Handler struct {
	store  SessionStore
	signer *Signer
	// maxAge bounds a session from sign-in; refreshes stop after it and a
	// sign-out cutoff is kept for as long.
	maxAge time.Duration
	logger zerolog.Logger
	now    func() time.Time
}

func NewHandler(store SessionStore, signer *Signer, maxAge time.Duration, logger zerolog.Logger) *Handler {
	return &Handler{store: store, signer: signer, maxAge: maxAge, logger: logger, now: time.Now}
}

func (h *Handler) RegisterRoutes(g *echo.Group) {
	g.POST("/auth/signout", h.SignOut)
	g.POST("/auth/refresh", h.Refresh)
}

// SignOut ends every session of the caller: each token issued to the dentist
// up to now, refreshed ones included, is rejected from here on.
func (h *Handler) SignOut(c echo.Context) error {
	ctx := c.Request().Context()
	who := IdentityFromContext(ctx)
	if err := Guard(who, msgNotAuthenticated); err != nil {
		return c.JSON(result.Status(err), result.Failed(err))
	}

	if err := h.revokeToken(ctx, who); err != nil {
		return h.upstream(c, who, err, "token revocation failed")
	}
	if err := h.store.RevokeSessions(ctx, who.DentistID, h.now(), h.maxAge); err != nil {
		return h.upstream(c, who, err, "session revocation failed")
	}

	h.logger.Info().Str("dentist_id", who.DentistID.String()).Msg("dentist signed out")
	return c.JSON(http.StatusOK, result.OK(msgSignedOut))
}

// Refresh swaps the caller's token for a new one carrying its current
// claims, including any override recorded since the old token was issued.
// Sessions older than maxAge are not renewed.
func (h *Handler) Refresh(c echo.Context) error {
	who := IdentityFromContext(c.Request().Context())
	if err := Guard(who, msgNotAuthenticated); err != nil {
		return c.JSON(result.Status(err), result.Failed(err))
	}

	if who.AuthTime.IsZero() || h.now().Sub(who.AuthTime) > h.maxAge {
		rerr := result.Unauthenticated(msgSessionExpired)
		return c.JSON(result.Status(rerr), result.Failed(rerr))
	}

	token, _, err := h.signer.Mint(who)
	if err != nil {
		return h.upstream(c, who, err, "session refresh failed")
	}
	// The presented token is replaced, not kept alongside the new one.
	if err := h.revokeToken(c.Request().Context(), who); err != nil {
		return h.upstream(c, who, err, "token revocation failed")
	}

	return c.JSON(http.StatusOK, SessionResponse{Result: result.OK(msgRefreshed), AccessToken: token})
}

// revokeToken rejects who's current token until it would have expired.
func (h *Handler) revokeToken(ctx context.Context, who *Identity) error {
	if who.TokenID == "" {
		return nil
	}
	expiresAt := who.ExpiresAt
	if expiresAt.IsZero() {
		expiresAt = h.now().Add(h.maxAge)
	}
	return h.store.Revoke(ctx, who.TokenID, expiresAt)
}

func (h *Handler) upstream(c echo.Context, who *Identity, err error, msg string) error {
	h.logger.Error().Err(err).Str("dentist_id", who.DentistID.String()).Msg(msg)
	rerr := result.Upstream(result.GenericMessage, err)
	return c.JSON(result.Status(rerr), result.Failed(rerr))
}
