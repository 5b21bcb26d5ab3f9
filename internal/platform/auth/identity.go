package auth

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/dentalcrm/crm/internal/platform/result"
)

type contextKey string

const identityKey contextKey = "dentist_identity"

// Identity is the authenticated dentist behind a request. It is resolved once
// by the session middleware and then passed explicitly into every action.
type Identity struct {
	DentistID uuid.UUID
	Email     string
	Onboarded bool
	SessionID string
	TokenID   string
	ExpiresAt time.Time
	IssuedAt  time.Time
	// AuthTime is when the dentist signed in. Refreshed tokens carry it
	// forward so renewals are bounded by the session's age.
	AuthTime time.Time
}

// WithIdentity returns a copy of ctx carrying who.
func WithIdentity(ctx context.Context, who *Identity) context.Context {
	return context.WithValue(ctx, identityKey, who)
}

// IdentityFromContext returns the identity resolved for the request, or nil
// when the caller is not authenticated.
func IdentityFromContext(ctx context.Context) *Identity {
	who, _ := ctx.Value(identityKey).(*Identity)
	return who
}

// Guard is the single authorization primitive used by the actions: it fails
// with an unauthenticated result error when no dentist is resolved. message
// is the public text returned to the caller.
func Guard(who *Identity, message string) error {
	if who == nil || who.DentistID == uuid.Nil {
		return result.Unauthenticated(message)
	}
	return nil
}
