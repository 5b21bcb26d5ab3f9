package dentist

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dentalcrm/crm/internal/platform/db"
)

type repoPG struct {
	pool *pgxpool.Pool
}

func NewRepo(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

func (r *repoPG) conn(ctx context.Context) db.Querier {
	return db.Resolve(ctx, r.pool)
}

const dentistCols = `id, email, full_name, phone, clinic_name, clinic_slogan, clinic_address,
	clinic_logo, onboarding_status, created_at, updated_at`

func (r *repoPG) Get(ctx context.Context, id uuid.UUID) (*Dentist, error) {
	d, err := scanDentist(r.conn(ctx).QueryRow(ctx, `SELECT `+dentistCols+` FROM dentist WHERE id = $1`, id))
	if err != nil {
		return nil, fmt.Errorf("dentist get: %w", err)
	}
	return d, nil
}

func (r *repoPG) UpsertProfile(ctx context.Context, d *Dentist) error {
	row := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO dentist (id, email, full_name, phone, clinic_name, clinic_slogan, clinic_address, clinic_logo, onboarding_status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, TRUE)
		ON CONFLICT (id) DO UPDATE SET
			email = COALESCE(EXCLUDED.email, dentist.email),
			full_name = EXCLUDED.full_name,
			phone = EXCLUDED.phone,
			clinic_name = EXCLUDED.clinic_name,
			clinic_slogan = EXCLUDED.clinic_slogan,
			clinic_address = EXCLUDED.clinic_address,
			clinic_logo = COALESCE(EXCLUDED.clinic_logo, dentist.clinic_logo),
			onboarding_status = TRUE,
			updated_at = NOW()
		RETURNING `+dentistCols,
		d.ID, d.Email, d.FullName, d.Phone, d.ClinicName, d.ClinicSlogan, d.ClinicAddress, d.ClinicLogo)
	saved, err := scanDentist(row)
	if err != nil {
		return fmt.Errorf("dentist upsert: %w", err)
	}
	*d = *saved
	return nil
}

func (r *repoPG) IsOnboarded(ctx context.Context, id uuid.UUID) (bool, error) {
	var onboarded bool
	err := r.conn(ctx).QueryRow(ctx, `SELECT onboarding_status FROM dentist WHERE id = $1`, id).Scan(&onboarded)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("dentist onboarding status: %w", err)
	}
	return onboarded, nil
}

func scanDentist(row pgx.Row) (*Dentist, error) {
	var d Dentist
	err := row.Scan(&d.ID, &d.Email, &d.FullName, &d.Phone, &d.ClinicName, &d.ClinicSlogan, &d.ClinicAddress,
		&d.ClinicLogo, &d.OnboardingStatus, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &d, nil
}
