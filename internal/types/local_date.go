package types

import (
	"encoding/json"
	"fmt"
	"time"
)

// localDateLayout is the calendar-date wire format.
const localDateLayout = "2006-01-02"

// LocalDate is a city-local calendar date (YYYY-MM-DD). It carries no
// timezone or wall-clock component; all arithmetic is whole-day, so DST
// transitions cannot skew gap calculations.
type LocalDate string

// ParseLocalDate validates and normalizes a YYYY-MM-DD string.
func ParseLocalDate(s string) (LocalDate, error) {
	t, err := time.Parse(localDateLayout, s)
	if err != nil {
		return "", fmt.Errorf("invalid calendar date %q: %w", s, err)
	}
	return LocalDate(t.Format(localDateLayout)), nil
}

// Today returns the current calendar date in the given location.
func Today(loc *time.Location) LocalDate {
	if loc == nil {
		loc = time.UTC
	}
	return LocalDate(time.Now().In(loc).Format(localDateLayout))
}

// DateFromTime truncates a time to its calendar date.
func DateFromTime(t time.Time) LocalDate {
	return LocalDate(t.Format(localDateLayout))
}

// String implements fmt.Stringer.
func (d LocalDate) String() string {
	return string(d)
}

// IsZero reports whether the date is unset.
func (d LocalDate) IsZero() bool {
	return d == ""
}

// time anchors the date at midnight UTC for day arithmetic.
func (d LocalDate) time() time.Time {
	t, _ := time.Parse(localDateLayout, string(d))
	return t
}

// AddDays returns the date n whole days later (n may be negative).
func (d LocalDate) AddDays(n int) LocalDate {
	return LocalDate(d.time().AddDate(0, 0, n).Format(localDateLayout))
}

// DaysUntil returns the whole-day count from d to other. Positive when
// other is later than d.
func (d LocalDate) DaysUntil(other LocalDate) int {
	return int(other.time().Sub(d.time()).Hours() / 24)
}

// Before reports whether d sorts before other.
func (d LocalDate) Before(other LocalDate) bool {
	return string(d) < string(other)
}

// UnmarshalJSON implements the json.Unmarshaler interface with validation.
func (d *LocalDate) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if s == "" {
		*d = ""
		return nil
	}
	parsed, err := ParseLocalDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// MarshalJSON implements the json.Marshaler interface.
func (d LocalDate) MarshalJSON() ([]byte, error) {
	return json.Marshal(string(d))
}
