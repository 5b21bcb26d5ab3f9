package validation

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/goccy/go-json"
)

// OptionalInt is an integer form field that accepts a JSON number, a numeric
// string, an empty string or null. Empty and null leave it unset.
type OptionalInt struct {
	Int int
	Set bool
}

// IntOf returns a set OptionalInt.
func IntOf(v int) OptionalInt {
	return OptionalInt{Int: v, Set: true}
}

// Ptr returns the value as a pointer, nil when unset.
func (o OptionalInt) Ptr() *int {
	if !o.Set {
		return nil
	}
	v := o.Int
	return &v
}

func (o *OptionalInt) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*o = OptionalInt{}
		return nil
	}
	raw := string(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		raw = strings.TrimSpace(s)
		if raw == "" {
			*o = OptionalInt{}
			return nil
		}
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return fmt.Errorf("not a number: %q", raw)
	}
	if f != float64(int(f)) {
		return fmt.Errorf("not an integer: %q", raw)
	}
	*o = OptionalInt{Int: int(f), Set: true}
	return nil
}

func (o OptionalInt) MarshalJSON() ([]byte, error) {
	if !o.Set {
		return []byte("null"), nil
	}
	return []byte(strconv.Itoa(o.Int)), nil
}

// CheckRange records a failure on errs when o is set and outside [min, max].
func (o OptionalInt) CheckRange(errs FieldErrors, field string, min, max int) {
	if !o.Set {
		return
	}
	if o.Int < min {
		errs.Add(field, fmt.Sprintf("must be at least %d", min))
	} else if o.Int > max {
		errs.Add(field, fmt.Sprintf("must be no more than %d", max))
	}
}
