package dentist

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	Get(ctx context.Context, id uuid.UUID) (*Dentist, error)
	// UpsertProfile writes the profile fields and marks the dentist as
	// onboarded in one statement. A nil ClinicLogo keeps the stored logo.
	UpsertProfile(ctx context.Context, d *Dentist) error
	IsOnboarded(ctx context.Context, id uuid.UUID) (bool, error)
}
