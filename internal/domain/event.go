package domain

import "time"

// Mode selects the field layout of an incoming command line.
type Mode string

const (
	ModeSingle    Mode = "single"
	ModeRecurring Mode = "recurring"
)

type RecurrenceKind string

const (
	RecurrenceNone    RecurrenceKind = "none"
	RecurrenceDaily   RecurrenceKind = "daily"
	RecurrenceWeekly  RecurrenceKind = "weekly"
	RecurrenceMonthly RecurrenceKind = "monthly"
	RecurrenceYearly  RecurrenceKind = "yearly"
)

// EventSpec describes one calendar event as entered by an operator.
// Start and End are absolute UTC instants; the zero time means unset.
// A spec is built fresh per command line and never retained across calls.
type EventSpec struct {
	Name        string
	Start       time.Time // UTC
	End         time.Time // UTC
	Timezone    string    // IANA zone the wall-clock input was interpreted in
	Location    string
	Description string

	Mode               Mode
	RecurrenceKind     RecurrenceKind
	RecurrenceInterval int

	// Recurrence is attached by validation for recurring specs.
	// It is nil until the spec has been accepted.
	Recurrence *RecurrenceDescriptor
}

// RecurrenceDescriptor is the resolved repetition rule of an accepted
// recurring spec. Weekday is meaningful for weekly recurrence only and
// follows time.Weekday numbering (Sunday = 0).
type RecurrenceDescriptor struct {
	Kind     RecurrenceKind
	Interval int
	Weekday  time.Weekday
}

func (s EventSpec) IsRecurring() bool {
	return s.Mode == ModeRecurring
}
