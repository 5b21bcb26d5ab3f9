package complaint

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, c *Complaint) error
	ListForPatient(ctx context.Context, dentistID, patientID uuid.UUID) ([]*Complaint, error)
}

// OwnershipChecker reports whether a patient belongs to a dentist. The
// patient repository satisfies it.
type OwnershipChecker interface {
	ExistsForDentist(ctx context.Context, dentistID, patientID uuid.UUID) (bool, error)
}
