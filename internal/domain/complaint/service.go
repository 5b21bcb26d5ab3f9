package complaint

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/dentalcrm/crm/internal/platform/auth"
	"github.com/dentalcrm/crm/internal/platform/result"
	"github.com/dentalcrm/crm/internal/platform/validation"
)

const (
	MsgUnauthenticated = "Dentist not found. Please sign in."
	MsgInvalid         = "Validation failed. Please check the fields."
	MsgForbidden       = "Patient not found or you do not have permission to access this record."
	MsgCreated         = "Chief complaint created successfully"
	MsgSaveFailed      = "Something went wrong while saving the complaint. Please try again."
	MsgListed          = "complaints fetched successfully"
	MsgListFailed      = "Something went wrong while finding chief complaints please try again"
)

type Service struct {
	repo     Repository
	patients OwnershipChecker
	logger   zerolog.Logger
}

func NewService(repo Repository, patients OwnershipChecker, logger zerolog.Logger) *Service {
	return &Service{
		repo:     repo,
		patients: patients,
		logger:   logger.With().Str("component", "complaint").Logger(),
	}
}

// Create records a complaint for a patient the caller owns. An empty body
// patientId takes the path value; a different one is rejected.
func (s *Service) Create(ctx context.Context, who *auth.Identity, pathPatientID string, in *Input) (*Complaint, error) {
	if err := auth.Guard(who, MsgUnauthenticated); err != nil {
		return nil, err
	}
	pathPatientID = canonicalID(pathPatientID)
	in.PatientID = canonicalID(in.PatientID)
	if in.PatientID == "" {
		in.PatientID = pathPatientID
	}
	errs, err := validation.Collect(in.Validate())
	if err != nil {
		return nil, s.invalid(who, err)
	}
	if pathPatientID != "" && in.PatientID != pathPatientID {
		errs.Add("patientId", "does not match the patient in the path")
	}
	if err := errs.Err(); err != nil {
		return nil, s.invalid(who, err)
	}
	patientID := uuid.MustParse(in.PatientID)

	log := s.logger.With().Str("dentist_id", who.DentistID.String()).Str("patient_id", in.PatientID).Logger()

	owned, err := s.patients.ExistsForDentist(ctx, who.DentistID, patientID)
	if err != nil {
		log.Error().Err(err).Msg("patient ownership check failed")
		return nil, result.Upstream(MsgSaveFailed, err)
	}
	if !owned {
		log.Warn().Msg("complaint for unowned patient rejected")
		return nil, result.Forbidden(MsgForbidden)
	}

	c := in.Complaint(patientID)
	c.DentistID = who.DentistID
	if err := s.repo.Create(ctx, c); err != nil {
		log.Error().Err(err).Msg("create complaint failed")
		return nil, result.Upstream(MsgSaveFailed, err)
	}
	log.Info().Str("complaint_id", c.ID.String()).Msg("complaint created")
	return c, nil
}

// ListForPatient returns the caller's complaints for a patient, newest
// first. A patient the caller does not own simply has no complaints.
func (s *Service) ListForPatient(ctx context.Context, who *auth.Identity, rawPatientID string) ([]*Complaint, error) {
	if err := auth.Guard(who, MsgUnauthenticated); err != nil {
		return nil, err
	}
	patientID, err := uuid.Parse(rawPatientID)
	if err != nil {
		return []*Complaint{}, nil
	}
	out, err := s.repo.ListForPatient(ctx, who.DentistID, patientID)
	if err != nil {
		s.logger.Error().Err(err).Str("dentist_id", who.DentistID.String()).Str("patient_id", rawPatientID).Msg("list complaints failed")
		return nil, result.Upstream(MsgListFailed, err)
	}
	return out, nil
}

// BindFailed classifies a body that could not be decoded.
func (s *Service) BindFailed(who *auth.Identity, cause error) error {
	if err := auth.Guard(who, MsgUnauthenticated); err != nil {
		return err
	}
	return s.invalid(who, cause)
}

func (s *Service) invalid(who *auth.Identity, err error) error {
	ev := s.logger.Warn().Str("dentist_id", who.DentistID.String())
	var fields validation.FieldErrors
	if errors.As(err, &fields) {
		ev = ev.Object("fields", fields)
	} else {
		ev = ev.Err(err)
	}
	ev.Msg("complaint validation failed")
	return result.Invalid(MsgInvalid, err)
}
