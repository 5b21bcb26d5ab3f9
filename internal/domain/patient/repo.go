package patient

import (
	"context"

	"github.com/google/uuid"
)

// Repository persists patients. Every read is scoped to the owning dentist;
// a patient owned by someone else is indistinguishable from a missing one.
type Repository interface {
	Create(ctx context.Context, p *Patient) error
	GetForDentist(ctx context.Context, dentistID, id uuid.UUID) (*Patient, error)
	ListForDentist(ctx context.Context, dentistID uuid.UUID, query string, limit, offset int) ([]*Patient, int, error)
	ExistsForDentist(ctx context.Context, dentistID, id uuid.UUID) (bool, error)
}
