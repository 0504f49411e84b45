package dispatcher

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/dajanosw/Event-Manager-Bot/internal/domain"
	"github.com/dajanosw/Event-Manager-Bot/internal/parse"
	"github.com/dajanosw/Event-Manager-Bot/internal/recur"
)

// rejectionMessage renders a classified rejection into the reply sent
// back to the channel. Offending values are echoed so the operator can
// fix the line without guessing.
func rejectionMessage(rej *domain.Rejection) string {
	switch rej.Reason {
	case domain.ReasonIncompleteSpecification:
		return fmt.Sprintf("The event is missing a value for %s.", rej.Field)
	case domain.ReasonTimeInPast:
		return "The event has to start and end in the future."
	case domain.ReasonEndBeforeStart:
		return "The event has to end after it starts."
	case domain.ReasonInvalidWeeklyInterval:
		return fmt.Sprintf("Weekly events can repeat every 1 or 2 weeks, not %s.", rej.Value)
	case domain.ReasonUnsupportedRecurrence:
		return fmt.Sprintf("%s recurrence is not supported by the scheduling service.", rej.Value)
	case domain.ReasonUnknownRecurrenceKind:
		return fmt.Sprintf("Unknown recurrence kind %q. Supported kinds: daily, weekly.", rej.Value)
	case domain.ReasonDateParseFailure:
		return fmt.Sprintf("Could not read %q as a date. The format is %s.", rej.Value, parse.WallClockLayout)
	case domain.ReasonUnknownTimezone:
		return fmt.Sprintf("Unknown timezone %q. Use an IANA zone like Europe/Berlin.", rej.Value)
	case domain.ReasonMalformedField:
		return fmt.Sprintf("Could not split the event line (%s: %s). Fields are separated by \"; \".", rej.Field, rej.Value)
	default:
		return "The event could not be created."
	}
}

func confirmationMessage(spec domain.EventSpec) string {
	msg := fmt.Sprintf("Created %q on %s.", spec.Name, formatLocal(spec.Start, spec.Timezone))

	if !spec.IsRecurring() {
		return msg
	}

	rule, err := recur.FromSpec(spec)
	if err != nil {
		// Preview is decoration; the event itself was already created.
		log.Printf("dispatcher: occurrence preview failed for %q: %v", spec.Name, err)
		return msg
	}
	if next := rule.Next(spec.Start); !next.IsZero() {
		msg += fmt.Sprintf(" Repeats %s; next occurrence %s.", describeRecurrence(spec.Recurrence), formatLocal(next, spec.Timezone))
	}
	return msg
}

func failureMessage(spec domain.EventSpec) string {
	return fmt.Sprintf("Could not create %q: the scheduling service did not accept it. Please try again later.", spec.Name)
}

func unavailableMessage() string {
	return "The scheduling service is currently unavailable. Please try again in a few minutes."
}

func describeRecurrence(desc *domain.RecurrenceDescriptor) string {
	switch desc.Kind {
	case domain.RecurrenceDaily:
		if desc.Interval == 1 {
			return "daily"
		}
		return fmt.Sprintf("every %d days", desc.Interval)
	case domain.RecurrenceWeekly:
		if desc.Interval == 1 {
			return fmt.Sprintf("weekly on %s", desc.Weekday)
		}
		return fmt.Sprintf("every %d weeks on %s", desc.Interval, desc.Weekday)
	default:
		return string(desc.Kind)
	}
}

// LogReplySender writes replies to the process log. Stands in until a
// chat platform connector is configured.
type LogReplySender struct{}

func (LogReplySender) Reply(ctx context.Context, channelID, message string) error {
	log.Printf("reply: channel=%s message=%q", channelID, message)
	return nil
}

// formatLocal renders a UTC instant as wall-clock time in the event's
// own zone, falling back to UTC if the zone has become unloadable.
func formatLocal(t time.Time, zone string) string {
	loc, err := time.LoadLocation(zone)
	if err != nil {
		return t.UTC().Format(parse.WallClockLayout) + " UTC"
	}
	return t.In(loc).Format(parse.WallClockLayout) + " " + zone
}
