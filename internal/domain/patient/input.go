package patient

import (
	"github.com/dentalcrm/crm/internal/platform/validation"
)

// Input is the body accepted when registering a patient. The nine medical
// condition flags are pointers so that an absent flag is a validation
// failure rather than false.
type Input struct {
	FullName               string         `json:"fullName" validate:"required,min=1,max=44"`
	Phone                  string         `json:"phone" validate:"required,len=10"`
	DOB                    string         `json:"dob" validate:"omitempty,dob"`
	Gender                 Gender         `json:"gender" validate:"omitempty,oneof=MALE FEMALE OTHER PREFER_NOT_TO_SAY"`
	Email                  string         `json:"email" validate:"omitempty,email"`
	Locality               string         `json:"locality" validate:"max=20"`
	Profession             string         `json:"profession" validate:"max=20"`
	BloodGroupType         BloodGroupType `json:"bloodGroupType" validate:"omitempty,oneof=A B O AB OTHERS"`
	BloodGroupRh           BloodGroupRh   `json:"bloodGroupRh" validate:"omitempty,oneof=POSITIVE NEGATIVE"`
	BloodGroupOtherDetails string         `json:"bloodGroupOtherDetails" validate:"max=50"`
	HasDiabetes            *bool          `json:"hasDiabetes" validate:"required"`
	HasHypertension        *bool          `json:"hasHypertension" validate:"required"`
	IsPregnant             *bool          `json:"isPregnant" validate:"required"`
	HasCancerHistory       *bool          `json:"hasCancerHistory" validate:"required"`
	HasHIV                 *bool          `json:"hasHiv" validate:"required"`
	HasKnownAllergies      *bool          `json:"hasKnownAllergies" validate:"required"`
	HasAsthma              *bool          `json:"hasAsthma" validate:"required"`
	HasBleedingDisorders   *bool          `json:"hasBleedingDisorders" validate:"required"`
	HasHeartConditions     *bool          `json:"hasHeartConditions" validate:"required"`
	OtherMedicalCondition  string         `json:"otherMedicalCondition" validate:"max=100"`
	EmergencyContactName   string         `json:"emergencyContactName" validate:"max=100"`
	EmergencyContactPhone  string         `json:"emergencyContactPhone" validate:"max=10"`
}

// Validate returns validation.FieldErrors describing every invalid field.
func (in *Input) Validate() error {
	return validation.Struct(in)
}

// Patient converts validated input into a record. Empty optional strings
// become NULL.
func (in *Input) Patient() (*Patient, error) {
	p := &Patient{
		FullName:               in.FullName,
		Phone:                  in.Phone,
		Email:                  optional(in.Email),
		Locality:               optional(in.Locality),
		Profession:             optional(in.Profession),
		BloodGroupOtherDetails: optional(in.BloodGroupOtherDetails),
		HasDiabetes:            *in.HasDiabetes,
		HasHypertension:        *in.HasHypertension,
		IsPregnant:             *in.IsPregnant,
		HasCancerHistory:       *in.HasCancerHistory,
		HasHIV:                 *in.HasHIV,
		HasKnownAllergies:      *in.HasKnownAllergies,
		HasAsthma:              *in.HasAsthma,
		HasBleedingDisorders:   *in.HasBleedingDisorders,
		HasHeartConditions:     *in.HasHeartConditions,
		OtherMedicalCondition:  optional(in.OtherMedicalCondition),
		EmergencyContactName:   optional(in.EmergencyContactName),
		EmergencyContactPhone:  optional(in.EmergencyContactPhone),
	}
	if in.DOB != "" {
		dob, err := validation.ParseDate(in.DOB)
		if err != nil {
			return nil, err
		}
		p.DOB = &dob
	}
	if in.Gender != "" {
		g := in.Gender
		p.Gender = &g
	}
	if in.BloodGroupType != "" {
		b := in.BloodGroupType
		p.BloodGroupType = &b
	}
	if in.BloodGroupRh != "" {
		rh := in.BloodGroupRh
		p.BloodGroupRh = &rh
	}
	return p, nil
}

// bloodGroupWarnings lists blood group combinations that are accepted but
// likely incomplete.
func (in *Input) bloodGroupWarnings() []string {
	var out []string
	if in.BloodGroupType == BloodGroupOthers && in.BloodGroupOtherDetails == "" {
		out = append(out, "blood group OTHERS without details")
	}
	if in.BloodGroupType != "" && in.BloodGroupType != BloodGroupOthers && in.BloodGroupRh == "" {
		out = append(out, "blood group without Rh factor")
	}
	return out
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
