// Package validation wraps go-playground/validator with the custom rules used
// by the CRM input schemas and a field error type that can be logged with
// zerolog but is never returned to API callers.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
)

// DateLayout is the calendar date format accepted for dates of birth.
const DateLayout = "2006-01-02"

// MaxAge is the exclusive upper bound for an age derived from a date of birth.
const MaxAge = 120

// Now is the clock used by age checks. Tests replace it.
var Now = time.Now

var validate *validator.Validate

func init() {
	validate = validator.New(validator.WithRequiredStructEnabled())
	validate.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})
	validate.RegisterValidation("dob", validateDateOfBirth)
}

// FieldErrors maps an input field name to a short description of the rule it
// broke. It implements zerolog.LogObjectMarshaler so it can be attached to a
// log event with Object.
type FieldErrors map[string]string

func (f FieldErrors) Error() string {
	keys := make([]string, 0, len(f))
	for k := range f {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+" "+f[k])
	}
	return "invalid fields: " + strings.Join(parts, ", ")
}

func (f FieldErrors) MarshalZerologObject(e *zerolog.Event) {
	for k, v := range f {
		e.Str(k, v)
	}
}

// Add records a failure for field, keeping the first one reported.
func (f FieldErrors) Add(field, msg string) {
	if _, ok := f[field]; !ok {
		f[field] = msg
	}
}

// Err returns f as an error, or nil when no field failed.
func (f FieldErrors) Err() error {
	if len(f) == 0 {
		return nil
	}
	return f
}

// Collect returns the field errors carried by err so more rules can be added
// to them. A nil err yields an empty set; any other error is returned as is.
func Collect(err error) (FieldErrors, error) {
	if err == nil {
		return FieldErrors{}, nil
	}
	var fe FieldErrors
	if errors.As(err, &fe) {
		return fe, nil
	}
	return nil, err
}

// Struct validates s and returns FieldErrors (or nil).
func Struct(s interface{}) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	out := FieldErrors{}
	for _, fe := range verrs {
		out.Add(fe.Field(), describe(fe))
	}
	return out
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "len":
		return fmt.Sprintf("must be exactly %s characters", fe.Param())
	case "min":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("must be at least %s characters", fe.Param())
		}
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "max":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("cannot be longer than %s characters", fe.Param())
		}
		return fmt.Sprintf("must be no more than %s", fe.Param())
	case "oneof":
		return "must be one of " + strings.Join(strings.Fields(fe.Param()), ", ")
	case "email":
		return "must be a valid email address"
	case "uuid":
		return "must be a valid identifier"
	case "dob":
		return "must be a valid date of birth"
	default:
		return "is invalid"
	}
}

// ParseDate parses a date of birth in DateLayout or RFC 3339 form.
func ParseDate(s string) (time.Time, error) {
	if t, err := time.Parse(DateLayout, s); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse date %q: %w", s, err)
	}
	return t, nil
}

// AgeInRange reports whether a person born at dob has an age in [0, MaxAge)
// counted in calendar years.
func AgeInRange(dob time.Time) bool {
	age := Now().Year() - dob.Year()
	return age >= 0 && age < MaxAge
}

func validateDateOfBirth(fl validator.FieldLevel) bool {
	s := fl.Field().String()
	if s == "" {
		return true
	}
	t, err := ParseDate(s)
	if err != nil {
		return false
	}
	return AgeInRange(t)
}
