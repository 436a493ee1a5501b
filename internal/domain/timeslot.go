package domain

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

const (
	DateLayout        = "2006-01-02"
	DisplayDateLayout = "02-01-2006"

	minutesPerDay = 24 * 60
)

// TimeOfDay is a wall-clock time expressed in minutes since midnight.
type TimeOfDay int

// NewTimeOfDay builds a TimeOfDay from hour and minute.
func NewTimeOfDay(hour, minute int) (TimeOfDay, error) {
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return 0, fmt.Errorf("%w: time %02d:%02d out of range", ErrInvalidSlot, hour, minute)
	}
	return TimeOfDay(hour*60 + minute), nil
}

// ParseTimeOfDay parses an "HH:mm" string.
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	t, err := time.Parse("15:04", strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("%w: bad time %q", ErrInvalidSlot, s)
	}
	return NewTimeOfDay(t.Hour(), t.Minute())
}

func (t TimeOfDay) Hour() int   { return int(t) / 60 }
func (t TimeOfDay) Minute() int { return int(t) % 60 }

// String formats the time as HH:mm.
func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour(), t.Minute())
}

func (t TimeOfDay) valid() bool { return t >= 0 && t < minutesPerDay }

func (t TimeOfDay) MarshalText() ([]byte, error) { return []byte(t.String()), nil }

func (t *TimeOfDay) UnmarshalText(b []byte) error {
	v, err := ParseTimeOfDay(string(b))
	if err != nil {
		return err
	}
	*t = v
	return nil
}

// TimeSlot is one appointment window on a single calendar day.
// Start is inclusive and End exclusive.
type TimeSlot struct {
	Date  time.Time
	Start TimeOfDay
	End   TimeOfDay
}

// NewTimeSlot validates and builds a slot. A slot whose end is before its
// start would cross midnight and is rejected rather than wrapped.
func NewTimeSlot(date time.Time, start, end TimeOfDay) (TimeSlot, error) {
	s := TimeSlot{Date: CivilDate(date), Start: start, End: end}
	if err := s.Validate(); err != nil {
		return TimeSlot{}, err
	}
	return s, nil
}

// ParseTimeSlot parses a "yyyy-MM-dd" date and "HH:mm" start/end times.
func ParseTimeSlot(date, start, end string) (TimeSlot, error) {
	d, err := ParseDate(date)
	if err != nil {
		return TimeSlot{}, err
	}
	st, err := ParseTimeOfDay(start)
	if err != nil {
		return TimeSlot{}, err
	}
	en, err := ParseTimeOfDay(end)
	if err != nil {
		return TimeSlot{}, err
	}
	return NewTimeSlot(d, st, en)
}

// Validate reports whether the slot is a well-formed range within one day.
func (s TimeSlot) Validate() error {
	if s.Date.IsZero() {
		return fmt.Errorf("%w: missing date", ErrInvalidSlot)
	}
	if !s.Start.valid() || !s.End.valid() {
		return fmt.Errorf("%w: time out of range", ErrInvalidSlot)
	}
	switch {
	case s.End < s.Start:
		return fmt.Errorf("%w: %s-%s crosses midnight", ErrInvalidSlot, s.Start, s.End)
	case s.End == s.Start:
		return fmt.Errorf("%w: %s-%s is empty", ErrInvalidSlot, s.Start, s.End)
	}
	return nil
}

// DurationMinutes returns the length of the slot.
func (s TimeSlot) DurationMinutes() int { return int(s.End - s.Start) }

// SameDate reports whether both slots fall on the same calendar day.
func (s TimeSlot) SameDate(o TimeSlot) bool {
	return CivilDate(s.Date).Equal(CivilDate(o.Date))
}

// Overlaps applies the half-open rule; slots that only touch do not overlap.
func Overlaps(a, b TimeSlot) bool {
	if !a.SameDate(b) {
		return false
	}
	return a.Start < b.End && b.Start < a.End
}

// Compare orders slots by date, then start, then end.
func Compare(a, b TimeSlot) int {
	if c := CivilDate(a.Date).Compare(CivilDate(b.Date)); c != 0 {
		return c
	}
	switch {
	case a.Start != b.Start:
		return cmpInt(int(a.Start), int(b.Start))
	default:
		return cmpInt(int(a.End), int(b.End))
	}
}

// StartsAt returns the absolute start instant in loc.
func (s TimeSlot) StartsAt(loc *time.Location) time.Time {
	return s.at(s.Start, loc)
}

// EndsAt returns the absolute end instant in loc.
func (s TimeSlot) EndsAt(loc *time.Location) time.Time {
	return s.at(s.End, loc)
}

func (s TimeSlot) at(t TimeOfDay, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	y, m, d := s.Date.Date()
	return time.Date(y, m, d, t.Hour(), t.Minute(), 0, 0, loc)
}

type slotJSON struct {
	Date  string    `json:"date"`
	Start TimeOfDay `json:"start"`
	End   TimeOfDay `json:"end"`
}

func (s TimeSlot) MarshalJSON() ([]byte, error) {
	return json.Marshal(slotJSON{Date: s.Date.Format(DateLayout), Start: s.Start, End: s.End})
}

func (s *TimeSlot) UnmarshalJSON(b []byte) error {
	var raw slotJSON
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	d, err := ParseDate(raw.Date)
	if err != nil {
		return err
	}
	*s = TimeSlot{Date: d, Start: raw.Start, End: raw.End}
	return nil
}

func (s TimeSlot) String() string {
	return fmt.Sprintf("%s %s-%s", s.Date.Format(DateLayout), s.Start, s.End)
}

// CivilDate truncates t to its calendar date at 00:00 UTC.
func CivilDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseDate parses a "yyyy-MM-dd" date.
func ParseDate(s string) (time.Time, error) {
	d, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: bad date %q", ErrInvalidSlot, s)
	}
	return d, nil
}

// FormatDate renders a date the way confirmations show it (dd-MM-yyyy).
func FormatDate(t time.Time) string { return t.Format(DisplayDateLayout) }

func cmpInt(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}
