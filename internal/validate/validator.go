// Package validate checks a candidate event specification and resolves
// its recurrence descriptor.
package validate

import (
	"strconv"
	"time"

	"github.com/dajanosw/Event-Manager-Bot/internal/domain"
)

// Weekly events may repeat every week or every other week; the scheduling
// API accepts nothing longer.
const maxWeeklyInterval = 2

// Validator applies the acceptance checks in a fixed order; the first
// failing check determines the rejection surfaced to the caller.
type Validator struct {
	clock func() time.Time
}

func New() *Validator {
	return &Validator{clock: time.Now}
}

// WithClock overrides the time source. Used in tests.
func (v *Validator) WithClock(clock func() time.Time) *Validator {
	v.clock = clock
	return v
}

// Validate returns a fully resolved copy of spec or a *domain.Rejection.
// The input is never mutated. On success the returned spec carries the
// recurrence descriptor (recurring mode) and is safe to hand to the
// scheduling client without further checks.
func (v *Validator) Validate(spec domain.EventSpec) (domain.EventSpec, error) {
	if err := checkComplete(spec); err != nil {
		return domain.EventSpec{}, err
	}

	now := v.clock()
	if !spec.Start.After(now) {
		return domain.EventSpec{}, domain.Reject(domain.ReasonTimeInPast, "start", spec.Start.UTC().Format(time.RFC3339))
	}
	if !spec.End.After(now) {
		return domain.EventSpec{}, domain.Reject(domain.ReasonTimeInPast, "end", spec.End.UTC().Format(time.RFC3339))
	}
	if !spec.Start.Before(spec.End) {
		return domain.EventSpec{}, domain.Reject(domain.ReasonEndBeforeStart, "end", spec.End.UTC().Format(time.RFC3339))
	}

	if spec.IsRecurring() {
		desc, err := resolveRecurrence(spec)
		if err != nil {
			return domain.EventSpec{}, err
		}
		spec.Recurrence = &desc
	}

	return spec, nil
}

// checkComplete reports the first required field that is missing or at
// its zero value. Unset instants are the zero time, not a captured-now
// sentinel, so the check is deterministic.
func checkComplete(spec domain.EventSpec) error {
	var missing string
	switch {
	case spec.Name == "":
		missing = "name"
	case spec.Start.IsZero():
		missing = "start"
	case spec.End.IsZero():
		missing = "end"
	case spec.Timezone == "":
		missing = "timezone"
	case spec.Location == "":
		missing = "location"
	case spec.Description == "":
		missing = "description"
	}

	if missing == "" && spec.IsRecurring() {
		switch {
		case spec.RecurrenceKind == "":
			missing = "recurrence kind"
		case spec.RecurrenceInterval == 0:
			missing = "interval"
		}
	}

	if missing != "" {
		return domain.Reject(domain.ReasonIncompleteSpecification, missing, "")
	}
	return nil
}

// resolveRecurrence maps the requested kind onto a descriptor. Monthly
// and yearly recurrence is a capability gap of the scheduling API, not
// of this validator; it is reported explicitly instead of downgraded.
func resolveRecurrence(spec domain.EventSpec) (domain.RecurrenceDescriptor, error) {
	switch spec.RecurrenceKind {
	case domain.RecurrenceDaily:
		return domain.RecurrenceDescriptor{
			Kind:     domain.RecurrenceDaily,
			Interval: spec.RecurrenceInterval,
		}, nil

	case domain.RecurrenceWeekly:
		if spec.RecurrenceInterval < 1 || spec.RecurrenceInterval > maxWeeklyInterval {
			return domain.RecurrenceDescriptor{}, domain.Reject(
				domain.ReasonInvalidWeeklyInterval, "interval", strconv.Itoa(spec.RecurrenceInterval))
		}
		weekday, err := localWeekday(spec.Start, spec.Timezone)
		if err != nil {
			return domain.RecurrenceDescriptor{}, err
		}
		return domain.RecurrenceDescriptor{
			Kind:     domain.RecurrenceWeekly,
			Interval: spec.RecurrenceInterval,
			Weekday:  weekday,
		}, nil

	case domain.RecurrenceMonthly, domain.RecurrenceYearly:
		return domain.RecurrenceDescriptor{}, domain.Reject(
			domain.ReasonUnsupportedRecurrence, "recurrence kind", string(spec.RecurrenceKind))

	default:
		return domain.RecurrenceDescriptor{}, domain.Reject(
			domain.ReasonUnknownRecurrenceKind, "recurrence kind", string(spec.RecurrenceKind))
	}
}

// localWeekday derives the weekday of the start instant in the spec's
// own zone. time.Weekday already uses Sunday = 0.
func localWeekday(start time.Time, zone string) (time.Weekday, error) {
	loc, err := time.LoadLocation(zone)
	if err != nil {
		return 0, domain.Reject(domain.ReasonUnknownTimezone, "timezone", zone)
	}
	return start.In(loc).Weekday(), nil
}
