// Package recur maps a resolved recurrence descriptor onto RRULE
// semantics so callers can preview upcoming occurrences of an accepted
// recurring event.
package recur

import (
	"fmt"
	"time"

	"github.com/teambition/rrule-go"

	"github.com/dajanosw/Event-Manager-Bot/internal/domain"
)

// Rule is the occurrence rule of one accepted recurring spec.
type Rule struct {
	rule *rrule.RRule
}

// FromSpec builds the occurrence rule for a validated recurring spec.
// The spec must carry a recurrence descriptor; monthly and yearly kinds
// never reach this package because validation rejects them first.
func FromSpec(spec domain.EventSpec) (*Rule, error) {
	if spec.Recurrence == nil {
		return nil, fmt.Errorf("recur: spec %q has no recurrence descriptor", spec.Name)
	}

	opt := rrule.ROption{
		Dtstart:  spec.Start.UTC(),
		Interval: spec.Recurrence.Interval,
	}

	switch spec.Recurrence.Kind {
	case domain.RecurrenceDaily:
		opt.Freq = rrule.DAILY
	case domain.RecurrenceWeekly:
		// Occurrences anchor on the start instant, so the rule lands on
		// the descriptor's weekday without an explicit BYDAY clause (the
		// derived weekday travels to the scheduling API instead).
		opt.Freq = rrule.WEEKLY
	default:
		return nil, fmt.Errorf("recur: unsupported recurrence kind %q", spec.Recurrence.Kind)
	}

	r, err := rrule.NewRRule(opt)
	if err != nil {
		return nil, fmt.Errorf("build rrule: %w", err)
	}
	return &Rule{rule: r}, nil
}

// Next returns the first occurrence strictly after the given instant,
// or the zero time when there is none.
func (r *Rule) Next(after time.Time) time.Time {
	return r.rule.After(after.UTC(), false)
}

// Preview returns up to n occurrences starting at the rule's first one.
func (r *Rule) Preview(n int) []time.Time {
	iter := r.rule.Iterator()
	out := make([]time.Time, 0, n)
	for len(out) < n {
		t, ok := iter()
		if !ok {
			break
		}
		out = append(out, t)
	}
	return out
}
