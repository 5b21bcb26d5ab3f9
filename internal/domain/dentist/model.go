package dentist

import (
	"time"

	"github.com/google/uuid"
)

// Dentist is the owner of a clinic account. Its id is the identity
// provider's subject.
type Dentist struct {
	ID               uuid.UUID `json:"id"`
	Email            *string   `json:"email"`
	FullName         string    `json:"fullName"`
	Phone            string    `json:"phone"`
	ClinicName       *string   `json:"clinicName"`
	ClinicSlogan     *string   `json:"clinicSlogan"`
	ClinicAddress    *string   `json:"clinicAddress"`
	ClinicLogo       *string   `json:"clinicLogo"`
	OnboardingStatus bool      `json:"onboardingStatus"`
	CreatedAt        time.Time `json:"createdAt"`
	UpdatedAt        time.Time `json:"updatedAt"`
}

// Logo is an uploaded clinic logo held in memory until it is stored.
type Logo struct {
	FileName    string
	ContentType string
	Size        int64
	Data        []byte
}

// Input is the onboarding form, accepted as JSON or multipart.
type Input struct {
	FullName      string `json:"fullName" form:"fullName" validate:"required,min=1,max=44"`
	Phone         string `json:"phone" form:"phone" validate:"required,len=10"`
	ClinicName    string `json:"clinicName" form:"clinicName" validate:"max=44"`
	ClinicSlogan  string `json:"clinicSlogan" form:"clinicSlogan" validate:"max=100"`
	ClinicAddress string `json:"clinicAddress" form:"clinicAddress" validate:"max=255"`
	Logo          *Logo  `json:"-" form:"-"`
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
