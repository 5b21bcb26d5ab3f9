package patient

import (
	"context"
	"fmt"
	"strings"

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

const patientCols = `id, dentist_id, full_name, phone, email, dob, gender, locality, profession,
	blood_group_type, blood_group_rh, blood_group_other_details,
	has_diabetes, has_hypertension, is_pregnant, has_cancer_history, has_hiv,
	has_known_allergies, has_asthma, has_bleeding_disorders, has_heart_conditions,
	other_medical_condition, emergency_contact_name, emergency_contact_phone,
	created_at, updated_at`

func (r *repoPG) Create(ctx context.Context, p *Patient) error {
	p.ID = uuid.New()
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO patient (
			id, dentist_id, full_name, phone, email, dob, gender, locality, profession,
			blood_group_type, blood_group_rh, blood_group_other_details,
			has_diabetes, has_hypertension, is_pregnant, has_cancer_history, has_hiv,
			has_known_allergies, has_asthma, has_bleeding_disorders, has_heart_conditions,
			other_medical_condition, emergency_contact_name, emergency_contact_phone
		) VALUES (
			$1,$2,$3,$4,$5,$6,$7,$8,$9,
			$10,$11,$12,
			$13,$14,$15,$16,$17,
			$18,$19,$20,$21,
			$22,$23,$24
		) RETURNING created_at, updated_at`,
		p.ID, p.DentistID, p.FullName, p.Phone, p.Email, p.DOB, p.Gender, p.Locality, p.Profession,
		p.BloodGroupType, p.BloodGroupRh, p.BloodGroupOtherDetails,
		p.HasDiabetes, p.HasHypertension, p.IsPregnant, p.HasCancerHistory, p.HasHIV,
		p.HasKnownAllergies, p.HasAsthma, p.HasBleedingDisorders, p.HasHeartConditions,
		p.OtherMedicalCondition, p.EmergencyContactName, p.EmergencyContactPhone,
	).Scan(&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("patient create: %w", err)
	}
	return nil
}

func (r *repoPG) GetForDentist(ctx context.Context, dentistID, id uuid.UUID) (*Patient, error) {
	p, err := scanPatient(r.conn(ctx).QueryRow(ctx,
		`SELECT `+patientCols+` FROM patient WHERE id = $1 AND dentist_id = $2`, id, dentistID))
	if err != nil {
		return nil, fmt.Errorf("patient get: %w", err)
	}
	return p, nil
}

// likePattern escapes LIKE metacharacters in a user supplied search term.
func likePattern(q string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(q)
}

func (r *repoPG) ListForDentist(ctx context.Context, dentistID uuid.UUID, query string, limit, offset int) ([]*Patient, int, error) {
	where := `WHERE dentist_id = $1`
	args := []any{dentistID}
	if q := strings.TrimSpace(query); q != "" {
		where += ` AND (full_name ILIKE '%' || $2::text || '%' OR phone LIKE $2::text || '%')`
		args = append(args, likePattern(q))
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM patient `+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("patient count: %w", err)
	}

	n := len(args)
	rows, err := r.conn(ctx).Query(ctx,
		fmt.Sprintf(`SELECT %s FROM patient %s ORDER BY created_at DESC, id LIMIT $%d OFFSET $%d`, patientCols, where, n+1, n+2),
		append(args, limit, offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("patient list: %w", err)
	}
	defer rows.Close()

	patients := []*Patient{}
	for rows.Next() {
		p, err := scanPatient(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("patient scan: %w", err)
		}
		patients = append(patients, p)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("patient list: %w", err)
	}
	return patients, total, nil
}

func (r *repoPG) ExistsForDentist(ctx context.Context, dentistID, id uuid.UUID) (bool, error) {
	var exists bool
	err := r.conn(ctx).QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM patient WHERE id = $1 AND dentist_id = $2)`, id, dentistID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("patient exists: %w", err)
	}
	return exists, nil
}

func scanPatient(row pgx.Row) (*Patient, error) {
	var p Patient
	err := row.Scan(
		&p.ID, &p.DentistID, &p.FullName, &p.Phone, &p.Email, &p.DOB, &p.Gender, &p.Locality, &p.Profession,
		&p.BloodGroupType, &p.BloodGroupRh, &p.BloodGroupOtherDetails,
		&p.HasDiabetes, &p.HasHypertension, &p.IsPregnant, &p.HasCancerHistory, &p.HasHIV,
		&p.HasKnownAllergies, &p.HasAsthma, &p.HasBleedingDisorders, &p.HasHeartConditions,
		&p.OtherMedicalCondition, &p.EmergencyContactName, &p.EmergencyContactPhone,
		&p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}
