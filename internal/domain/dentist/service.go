package dentist

import (
	"bytes"
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"

	"github.com/dentalcrm/crm/internal/platform/auth"
	"github.com/dentalcrm/crm/internal/platform/blobstore"
	"github.com/dentalcrm/crm/internal/platform/result"
	"github.com/dentalcrm/crm/internal/platform/validation"
)

const (
	MsgUnauthenticated = "User not authenticated."
	MsgInvalid         = "Validation failed. Please check the fields."
	MsgUploadFailed    = "Failed to upload clinic logo. Please try again"
	MsgUploadError     = "Error processing file upload. Please try again"
	MsgSaveFailed      = "Failed to update profile in database. Please try again"
	MsgSaved           = "Profile updated successfully!"
	MsgFound           = "Profile fetched successfully"
	MsgNotFound        = "Dentist not found"
)

// SessionRefresher updates the caller's session once onboarding completes.
type SessionRefresher interface {
	MarkOnboarded(ctx context.Context, who *auth.Identity) (string, error)
}

type Service struct {
	repo      Repository
	logos     blobstore.ObjectStore
	refresher SessionRefresher
	logger    zerolog.Logger
	now       func() time.Time
}

func NewService(repo Repository, logos blobstore.ObjectStore, refresher SessionRefresher, logger zerolog.Logger) *Service {
	return &Service{
		repo:      repo,
		logos:     logos,
		refresher: refresher,
		logger:    logger.With().Str("component", "dentist").Logger(),
		now:       time.Now,
	}
}

// SaveProfile validates the onboarding form, stores the logo if one was sent,
// writes the profile with onboarding_status=true and refreshes the session.
// The returned token is empty when no refreshed token could be minted.
func (s *Service) SaveProfile(ctx context.Context, who *auth.Identity, in *Input) (*Dentist, string, error) {
	if err := auth.Guard(who, MsgUnauthenticated); err != nil {
		return nil, "", err
	}
	log := s.logger.With().Str("dentist_id", who.DentistID.String()).Logger()

	errs, err := validation.Collect(validation.Struct(in))
	if err != nil {
		return nil, "", s.invalid(log, err)
	}
	var logoType string
	if in.Logo != nil {
		logoType, err = blobstore.CheckImage(in.Logo.ContentType, in.Logo.Data, in.Logo.Size, blobstore.MaxLogoSize)
		if err != nil {
			errs.Add("clinicLogo", err.Error())
		}
	}
	if err := errs.Err(); err != nil {
		return nil, "", s.invalid(log, err)
	}

	var logo *blobstore.Object
	if in.Logo != nil {
		key := blobstore.LogoKey(who.DentistID, s.now(), blobstore.Extension(in.Logo.FileName, logoType))
		logo, err = s.logos.Upload(ctx, key, logoType, bytes.NewReader(in.Logo.Data), in.Logo.Size)
		if err != nil {
			log.Error().Err(err).Str("key", key).Msg("clinic logo upload failed")
			return nil, "", result.Upstream(MsgUploadFailed, err)
		}
	}

	d := &Dentist{
		ID:            who.DentistID,
		Email:         optional(who.Email),
		FullName:      in.FullName,
		Phone:         in.Phone,
		ClinicName:    optional(in.ClinicName),
		ClinicSlogan:  optional(in.ClinicSlogan),
		ClinicAddress: optional(in.ClinicAddress),
	}
	if logo != nil {
		d.ClinicLogo = &logo.URL
	}
	if err := s.repo.UpsertProfile(ctx, d); err != nil {
		log.Error().Err(err).Msg("save dentist profile failed")
		if logo != nil {
			if derr := s.logos.Delete(ctx, logo.Key); derr != nil {
				log.Warn().Err(derr).Str("key", logo.Key).Msg("orphaned clinic logo not removed")
			}
		}
		return nil, "", result.Upstream(MsgSaveFailed, err)
	}

	token, err := s.refresher.MarkOnboarded(ctx, who)
	if err != nil {
		log.Warn().Err(err).Msg("session refresh after onboarding failed")
		token = ""
	}
	log.Info().Bool("logo", logo != nil).Msg("dentist profile saved")
	return d, token, nil
}

// GetProfile returns the caller's own dentist record.
func (s *Service) GetProfile(ctx context.Context, who *auth.Identity) (*Dentist, error) {
	if err := auth.Guard(who, MsgUnauthenticated); err != nil {
		return nil, err
	}
	d, err := s.repo.Get(ctx, who.DentistID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, result.NotFound(MsgNotFound)
	}
	if err != nil {
		s.logger.Error().Err(err).Str("dentist_id", who.DentistID.String()).Msg("get dentist profile failed")
		return nil, result.Upstream(result.GenericMessage, err)
	}
	return d, nil
}

// BindFailed classifies a form that could not be decoded.
func (s *Service) BindFailed(who *auth.Identity, cause error) error {
	if err := auth.Guard(who, MsgUnauthenticated); err != nil {
		return err
	}
	return s.invalid(s.logger.With().Str("dentist_id", who.DentistID.String()).Logger(), cause)
}

// UploadFailed classifies a logo part that could not be read.
func (s *Service) UploadFailed(who *auth.Identity, cause error) error {
	if err := auth.Guard(who, MsgUnauthenticated); err != nil {
		return err
	}
	s.logger.Error().Err(cause).Str("dentist_id", who.DentistID.String()).Msg("reading clinic logo failed")
	return result.Upstream(MsgUploadError, cause)
}

func (s *Service) invalid(log zerolog.Logger, err error) error {
	ev := log.Warn()
	var fields validation.FieldErrors
	if errors.As(err, &fields) {
		ev = ev.Object("fields", fields)
	} else {
		ev = ev.Err(err)
	}
	ev.Msg("dentist profile validation failed")
	return result.Invalid(MsgInvalid, err)
}
