package complaint

import (
	"context"
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

const complaintCols = `id, patient_id, dentist_id, chief_complaint, chief_complaint_description, status,
	location, onset_and_duration, pain_type, pain_timing, pain_severity,
	aggravating_factors, relieving_factors, created_at, updated_at`

func (r *repoPG) Create(ctx context.Context, c *Complaint) error {
	c.ID = uuid.New()
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO chief_complaint (
			id, patient_id, dentist_id, chief_complaint, chief_complaint_description, status,
			location, onset_and_duration, pain_type, pain_timing, pain_severity,
			aggravating_factors, relieving_factors
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
		RETURNING created_at, updated_at`,
		c.ID, c.PatientID, c.DentistID, c.ChiefComplaint, c.ChiefComplaintDescription, c.Status,
		c.Location, c.OnsetAndDuration, c.PainType, c.PainTiming, c.PainSeverity,
		c.AggravatingFactors, c.RelievingFactors,
	).Scan(&c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("complaint create: %w", err)
	}
	return nil
}

func (r *repoPG) ListForPatient(ctx context.Context, dentistID, patientID uuid.UUID) ([]*Complaint, error) {
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+complaintCols+` FROM chief_complaint
		WHERE patient_id = $1 AND dentist_id = $2
		ORDER BY created_at DESC, id`, patientID, dentistID)
	if err != nil {
		return nil, fmt.Errorf("complaint list: %w", err)
	}
	defer rows.Close()

	out := []*Complaint{}
	for rows.Next() {
		c, err := scanComplaint(rows)
		if err != nil {
			return nil, fmt.Errorf("complaint scan: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func scanComplaint(row pgx.Row) (*Complaint, error) {
	var c Complaint
	err := row.Scan(
		&c.ID, &c.PatientID, &c.DentistID, &c.ChiefComplaint, &c.ChiefComplaintDescription, &c.Status,
		&c.Location, &c.OnsetAndDuration, &c.PainType, &c.PainTiming, &c.PainSeverity,
		&c.AggravatingFactors, &c.RelievingFactors, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &c, nil
}
