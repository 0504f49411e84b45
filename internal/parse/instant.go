package parse

import (
	"time"

	"github.com/dajanosw/Event-Manager-Bot/internal/domain"
)

// WallClockLayout is the only accepted date-time shape for operator input.
const WallClockLayout = "2006-01-02 15:04"

// ResolveInstant interprets text as wall-clock time in the given IANA zone
// and returns the corresponding UTC instant. Malformed text and unknown
// zones come back as rejection values, never as panics.
func ResolveInstant(text, zone string) (time.Time, error) {
	loc, err := time.LoadLocation(zone)
	if err != nil {
		return time.Time{}, domain.Reject(domain.ReasonUnknownTimezone, "timezone", zone)
	}

	t, err := time.ParseInLocation(WallClockLayout, text, loc)
	if err != nil {
		return time.Time{}, domain.Reject(domain.ReasonDateParseFailure, "date", text)
	}

	return t.UTC(), nil
}
