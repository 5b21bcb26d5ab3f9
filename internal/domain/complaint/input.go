package complaint

import (
	"strings"

	"github.com/google/uuid"

	"github.com/dentalcrm/crm/internal/platform/validation"
)

const (
	MinPainSeverity = 1
	MaxPainSeverity = 10
)

type Input struct {
	ChiefComplaint            string                 `json:"chiefComplaint" validate:"required,min=1,max=100"`
	ChiefComplaintDescription string                 `json:"chiefComplaintDescription" validate:"max=255"`
	Status                    Status                 `json:"status" validate:"omitempty,oneof=ACTIVE RESOLVED UNDER_OBSERVATION"`
	Location                  string                 `json:"location" validate:"max=100"`
	OnsetAndDuration          string                 `json:"onsetAndDuration" validate:"max=44"`
	PainType                  PainType               `json:"painType" validate:"omitempty,oneof=SHARP DULL_ACHING THROBBING SENSITIVE"`
	PainTiming                PainTiming             `json:"painTiming" validate:"omitempty,oneof=CONSTANT INTERMITTENT ON_STIMULUS NIGHT_ONLY"`
	PainSeverity              validation.OptionalInt `json:"painSeverity"`
	AggravatingFactors        string                 `json:"aggravatingFactors" validate:"max=44"`
	RelievingFactors          string                 `json:"relievingFactors" validate:"max=44"`
	PatientID                 string                 `json:"patientId" validate:"required,uuid"`
}

// Validate checks the tagged rules and the severity range.
func (in *Input) Validate() error {
	errs, err := validation.Collect(validation.Struct(in))
	if err != nil {
		return err
	}
	in.PainSeverity.CheckRange(errs, "painSeverity", MinPainSeverity, MaxPainSeverity)
	return errs.Err()
}

// Complaint converts validated input into a record for patientID. A missing
// status defaults to ACTIVE.
func (in *Input) Complaint(patientID uuid.UUID) *Complaint {
	c := &Complaint{
		PatientID:                 patientID,
		ChiefComplaint:            in.ChiefComplaint,
		ChiefComplaintDescription: optional(in.ChiefComplaintDescription),
		Status:                    in.Status,
		Location:                  optional(in.Location),
		OnsetAndDuration:          optional(in.OnsetAndDuration),
		PainSeverity:              in.PainSeverity.Ptr(),
		AggravatingFactors:        optional(in.AggravatingFactors),
		RelievingFactors:          optional(in.RelievingFactors),
	}
	if c.Status == "" {
		c.Status = StatusActive
	}
	if in.PainType != "" {
		pt := in.PainType
		c.PainType = &pt
	}
	if in.PainTiming != "" {
		tm := in.PainTiming
		c.PainTiming = &tm
	}
	return c
}

// canonicalID lowercases a parseable UUID so ids compare and validate
// regardless of case. Anything else is returned as is for validation to
// reject.
func canonicalID(s string) string {
	id, err := uuid.Parse(strings.TrimSpace(s))
	if err != nil {
		return s
	}
	return id.String()
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
