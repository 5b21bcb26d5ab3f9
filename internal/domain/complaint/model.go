package complaint

import (
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusActive           Status = "ACTIVE"
	StatusResolved         Status = "RESOLVED"
	StatusUnderObservation Status = "UNDER_OBSERVATION"
)

func (s Status) Valid() bool {
	switch s {
	case StatusActive, StatusResolved, StatusUnderObservation:
		return true
	}
	return false
}

type PainType string

const (
	PainSharp      PainType = "SHARP"
	PainDullAching PainType = "DULL_ACHING"
	PainThrobbing  PainType = "THROBBING"
	PainSensitive  PainType = "SENSITIVE"
)

func (p PainType) Valid() bool {
	switch p {
	case PainSharp, PainDullAching, PainThrobbing, PainSensitive:
		return true
	}
	return false
}

type PainTiming string

const (
	TimingConstant     PainTiming = "CONSTANT"
	TimingIntermittent PainTiming = "INTERMITTENT"
	TimingOnStimulus   PainTiming = "ON_STIMULUS"
	TimingNightOnly    PainTiming = "NIGHT_ONLY"
)

func (p PainTiming) Valid() bool {
	switch p {
	case TimingConstant, TimingIntermittent, TimingOnStimulus, TimingNightOnly:
		return true
	}
	return false
}

// Complaint is a presenting problem recorded against a patient. It carries
// both the patient and the dentist so reads can be scoped without a join.
type Complaint struct {
	ID                        uuid.UUID   `json:"id"`
	PatientID                 uuid.UUID   `json:"patientId"`
	DentistID                 uuid.UUID   `json:"dentistId"`
	ChiefComplaint            string      `json:"chiefComplaint"`
	ChiefComplaintDescription *string     `json:"chiefComplaintDescription"`
	Status                    Status      `json:"status"`
	Location                  *string     `json:"location"`
	OnsetAndDuration          *string     `json:"onsetAndDuration"`
	PainType                  *PainType   `json:"painType"`
	PainTiming                *PainTiming `json:"painTiming"`
	PainSeverity              *int        `json:"painSeverity"`
	AggravatingFactors        *string     `json:"aggravatingFactors"`
	RelievingFactors          *string     `json:"relievingFactors"`
	CreatedAt                 time.Time   `json:"createdAt"`
	UpdatedAt                 time.Time   `json:"updatedAt"`
}
