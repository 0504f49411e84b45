// Package parse turns one line of operator input into a typed, candidate
// event specification. It does no temporal or structural validation beyond
// what is needed to type the fields; that belongs to internal/validate.
package parse

import (
	"strconv"
	"strings"

	"github.com/dajanosw/Event-Manager-Bot/internal/domain"
)

// Field layout, split on "; ":
//
//	name; start; end; timezone; location; description
//
// with recurring mode appending:
//
//	...; recurrence kind; interval
const (
	delimiter = "; "

	fieldsSingle    = 6
	fieldsRecurring = 8
)

// Extractor splits raw command text into an EventSpec. The default
// timezone is explicit configuration, not process-wide state.
type Extractor struct {
	defaultTimezone string
}

func NewExtractor(defaultTimezone string) *Extractor {
	return &Extractor{defaultTimezone: defaultTimezone}
}

// Extract parses one command line for the given mode. All failures are
// returned as *domain.Rejection values together with a zero EventSpec;
// a line whose field count does not match the mode is rejected outright
// rather than split into misaligned fields.
func (e *Extractor) Extract(raw string, mode domain.Mode) (domain.EventSpec, error) {
	var want int
	switch mode {
	case domain.ModeSingle:
		want = fieldsSingle
	case domain.ModeRecurring:
		want = fieldsRecurring
	default:
		return domain.EventSpec{}, domain.Reject(domain.ReasonMalformedField, "mode", string(mode))
	}

	fields := strings.Split(raw, delimiter)
	if len(fields) != want {
		return domain.EventSpec{}, domain.Reject(domain.ReasonMalformedField, "field count", strconv.Itoa(len(fields)))
	}

	spec := domain.EventSpec{
		Name:        strings.TrimSpace(fields[0]),
		Timezone:    strings.TrimSpace(fields[3]),
		Location:    strings.TrimSpace(fields[4]),
		Description: strings.TrimSpace(fields[5]),
		Mode:        mode,
	}
	if spec.Timezone == "" {
		spec.Timezone = e.defaultTimezone
	}

	start, err := ResolveInstant(strings.TrimSpace(fields[1]), spec.Timezone)
	if err != nil {
		return domain.EventSpec{}, err
	}
	end, err := ResolveInstant(strings.TrimSpace(fields[2]), spec.Timezone)
	if err != nil {
		return domain.EventSpec{}, err
	}
	spec.Start = start
	spec.End = end

	if mode == domain.ModeRecurring {
		spec.RecurrenceKind = domain.RecurrenceKind(strings.ToLower(strings.TrimSpace(fields[6])))

		// Intervals below 1 are malformed here, not incomplete: the
		// validator's completeness check only ever sees interval 0 on
		// specs built directly, never from a parsed line.
		rawInterval := strings.TrimSpace(fields[7])
		interval, err := strconv.Atoi(rawInterval)
		if err != nil || interval < 1 {
			return domain.EventSpec{}, domain.Reject(domain.ReasonMalformedField, "interval", rawInterval)
		}
		spec.RecurrenceInterval = interval
	}

	return spec, nil
}
