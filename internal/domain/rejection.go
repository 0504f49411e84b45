package domain

import (
	"errors"
	"fmt"
)

// Reason classifies why a command line did not produce an event.
type Reason string

const (
	ReasonIncompleteSpecification Reason = "incomplete_specification"
	ReasonTimeInPast              Reason = "time_in_past"
	ReasonEndBeforeStart          Reason = "end_before_start"
	ReasonInvalidWeeklyInterval   Reason = "invalid_weekly_interval"
	ReasonUnsupportedRecurrence   Reason = "unsupported_recurrence"
	ReasonUnknownRecurrenceKind   Reason = "unknown_recurrence_kind"
	ReasonDateParseFailure        Reason = "date_parse_failure"
	ReasonUnknownTimezone         Reason = "unknown_timezone"
	ReasonMalformedField          Reason = "malformed_field"
)

// Rejection is a classified, non-exceptional failure. Extraction and
// validation return it as an ordinary error value; malformed operator
// input never panics. Field and Value carry the offending input so the
// caller can compose a reply without re-parsing the line.
type Rejection struct {
	Reason Reason
	Field  string
	Value  string
}

func (r *Rejection) Error() string {
	switch {
	case r.Field != "" && r.Value != "":
		return fmt.Sprintf("%s: %s=%q", r.Reason, r.Field, r.Value)
	case r.Field != "":
		return fmt.Sprintf("%s: %s", r.Reason, r.Field)
	default:
		return string(r.Reason)
	}
}

// Reject builds a Rejection for the given reason and offending field/value.
func Reject(reason Reason, field, value string) *Rejection {
	return &Rejection{Reason: reason, Field: field, Value: value}
}

// AsRejection unwraps err into a Rejection, if it carries one.
func AsRejection(err error) (*Rejection, bool) {
	var rej *Rejection
	if errors.As(err, &rej) {
		return rej, true
	}
	return nil, false
}
