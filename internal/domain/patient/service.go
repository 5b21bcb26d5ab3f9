package patient

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"

	"github.com/dentalcrm/crm/internal/platform/auth"
	"github.com/dentalcrm/crm/internal/platform/result"
	"github.com/dentalcrm/crm/internal/platform/validation"
	"github.com/dentalcrm/crm/pkg/pagination"
)

const (
	MsgUnauthenticated = "Dentist not found"
	MsgInvalid         = "Validation failed. Please check the fields."
	MsgCreated         = "Saved Patient Successfully"
	MsgFound           = "Patient record found successfully"
	MsgListed          = "Patients fetched successfully"
	MsgNotFound        = "Patient not found or you do not have permission to access this record."
)

type Service struct {
	repo   Repository
	logger zerolog.Logger
}

func NewService(repo Repository, logger zerolog.Logger) *Service {
	return &Service{repo: repo, logger: logger.With().Str("component", "patient").Logger()}
}

// Create registers a patient owned by the calling dentist.
func (s *Service) Create(ctx context.Context, who *auth.Identity, in *Input) (*Patient, error) {
	if err := auth.Guard(who, MsgUnauthenticated); err != nil {
		return nil, err
	}
	if err := in.Validate(); err != nil {
		return nil, s.invalid(who, err)
	}
	for _, w := range in.bloodGroupWarnings() {
		s.logger.Warn().Str("dentist_id", who.DentistID.String()).Msg(w)
	}

	p, err := in.Patient()
	if err != nil {
		return nil, s.invalid(who, err)
	}
	p.DentistID = who.DentistID

	if err := s.repo.Create(ctx, p); err != nil {
		s.logger.Error().Err(err).Str("dentist_id", who.DentistID.String()).Msg("create patient failed")
		return nil, result.Upstream(result.GenericMessage, err)
	}
	s.logger.Info().Str("dentist_id", who.DentistID.String()).Str("patient_id", p.ID.String()).Msg("patient created")
	return p, nil
}

// Get returns one of the caller's patients. Unknown, foreign and malformed
// ids are all reported as not found.
func (s *Service) Get(ctx context.Context, who *auth.Identity, rawID string) (*Patient, error) {
	if err := auth.Guard(who, MsgUnauthenticated); err != nil {
		return nil, err
	}
	id, err := uuid.Parse(rawID)
	if err != nil {
		return nil, result.NotFound(MsgNotFound)
	}

	p, err := s.repo.GetForDentist(ctx, who.DentistID, id)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, result.NotFound(MsgNotFound)
	}
	if err != nil {
		s.logger.Error().Err(err).Str("dentist_id", who.DentistID.String()).Str("patient_id", rawID).Msg("get patient failed")
		return nil, result.Upstream(result.GenericMessage, err)
	}
	return p, nil
}

// List returns a page of the caller's patients, newest first.
func (s *Service) List(ctx context.Context, who *auth.Identity, query string, pg pagination.Params) ([]*Patient, int, error) {
	if err := auth.Guard(who, MsgUnauthenticated); err != nil {
		return nil, 0, err
	}
	patients, total, err := s.repo.ListForDentist(ctx, who.DentistID, query, pg.Limit, pg.Offset)
	if err != nil {
		s.logger.Error().Err(err).Str("dentist_id", who.DentistID.String()).Msg("list patients failed")
		return nil, 0, result.Upstream(result.GenericMessage, err)
	}
	return patients, total, nil
}

// BindFailed classifies a body that could not be decoded. The session is
// checked first so an anonymous caller never learns about input rules.
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
	ev.Msg("patient validation failed")
	return result.Invalid(MsgInvalid, err)
}
