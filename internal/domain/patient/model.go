package patient

import (
	"time"

	"github.com/google/uuid"
)

type Gender string

const (
	GenderMale           Gender = "MALE"
	GenderFemale         Gender = "FEMALE"
	GenderOther          Gender = "OTHER"
	GenderPreferNotToSay Gender = "PREFER_NOT_TO_SAY"
)

func (g Gender) Valid() bool {
	switch g {
	case GenderMale, GenderFemale, GenderOther, GenderPreferNotToSay:
		return true
	}
	return false
}

type BloodGroupType string

const (
	BloodGroupA      BloodGroupType = "A"
	BloodGroupB      BloodGroupType = "B"
	BloodGroupO      BloodGroupType = "O"
	BloodGroupAB     BloodGroupType = "AB"
	BloodGroupOthers BloodGroupType = "OTHERS"
)

func (b BloodGroupType) Valid() bool {
	switch b {
	case BloodGroupA, BloodGroupB, BloodGroupO, BloodGroupAB, BloodGroupOthers:
		return true
	}
	return false
}

type BloodGroupRh string

const (
	RhPositive BloodGroupRh = "POSITIVE"
	RhNegative BloodGroupRh = "NEGATIVE"
)

func (r BloodGroupRh) Valid() bool {
	return r == RhPositive || r == RhNegative
}

// Patient is a person under the care of exactly one dentist.
type Patient struct {
	ID                     uuid.UUID       `json:"id"`
	DentistID              uuid.UUID       `json:"dentistId"`
	FullName               string          `json:"fullName"`
	Phone                  string          `json:"phone"`
	Email                  *string         `json:"email"`
	DOB                    *time.Time      `json:"dob"`
	Gender                 *Gender         `json:"gender"`
	Locality               *string         `json:"locality"`
	Profession             *string         `json:"profession"`
	BloodGroupType         *BloodGroupType `json:"bloodGroupType"`
	BloodGroupRh           *BloodGroupRh   `json:"bloodGroupRh"`
	BloodGroupOtherDetails *string         `json:"bloodGroupOtherDetails"`
	HasDiabetes            bool            `json:"hasDiabetes"`
	HasHypertension        bool            `json:"hasHypertension"`
	IsPregnant             bool            `json:"isPregnant"`
	HasCancerHistory       bool            `json:"hasCancerHistory"`
	HasHIV                 bool            `json:"hasHiv"`
	HasKnownAllergies      bool            `json:"hasKnownAllergies"`
	HasAsthma              bool            `json:"hasAsthma"`
	HasBleedingDisorders   bool            `json:"hasBleedingDisorders"`
	HasHeartConditions     bool            `json:"hasHeartConditions"`
	OtherMedicalCondition  *string         `json:"otherMedicalCondition"`
	EmergencyContactName   *string         `json:"emergencyContactName"`
	EmergencyContactPhone  *string         `json:"emergencyContactPhone"`
	CreatedAt              time.Time       `json:"createdAt"`
	UpdatedAt              time.Time       `json:"updatedAt"`
}
