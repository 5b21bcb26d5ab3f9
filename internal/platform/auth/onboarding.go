package auth

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/dentalcrm/crm/internal/platform/result"
)

const msgOnboardingRequired = "Please complete your clinic profile before continuing."

// OnboardingLookup reads the persisted onboarding status of a dentist.
type OnboardingLookup interface {
	IsOnboarded(ctx context.Context, dentistID uuid.UUID) (bool, error)
}

// RequireOnboarded rejects dentists that have not completed their profile.
// The token claim is trusted when true; otherwise the database decides and a
// positive answer is recorded as a claim override. Unauthenticated requests
// pass through so the action can answer with its own message.
func RequireOnboarded(lookup OnboardingLookup, store SessionStore, overrideTTL time.Duration, logger zerolog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx := c.Request().Context()
			who := IdentityFromContext(ctx)
			if who == nil || who.Onboarded {
				return next(c)
			}

			onboarded, err := lookup.IsOnboarded(ctx, who.DentistID)
			if err != nil {
				logger.Error().Err(err).Str("dentist_id", who.DentistID.String()).Msg("onboarding lookup failed")
				rerr := result.Upstream(result.GenericMessage, err)
				return c.JSON(rerr.Kind.HTTPStatus(), result.Failed(rerr))
			}
			if !onboarded {
				rerr := result.Forbidden(msgOnboardingRequired)
				return c.JSON(rerr.Kind.HTTPStatus(), result.Failed(rerr))
			}

			if store != nil {
				if err := store.SetOnboarded(ctx, who.DentistID, overrideTTL); err != nil {
					logger.Warn().Err(err).Str("dentist_id", who.DentistID.String()).Msg("recording onboarding override failed")
				}
			}
			updated := *who
			updated.Onboarded = true
			c.SetRequest(c.Request().WithContext(WithIdentity(ctx, &updated)))
			return next(c)
		}
	}
}
