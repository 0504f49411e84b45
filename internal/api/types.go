package api

import (
	"time"

	"github.com/dajanosw/Event-Manager-Bot/internal/domain"
)

type SubmitCommandRequest struct {
	ChannelID string `json:"channel_id"`
	Mode      string `json:"mode"` // "single" or "recurring"
	Text      string `json:"text"`
}

type CommandResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

type ValidateResponse struct {
	Valid     bool               `json:"valid"`
	Spec      *SpecResponse      `json:"spec,omitempty"`
	Rejection *RejectionResponse `json:"rejection,omitempty"`
}

type SpecResponse struct {
	Name        string `json:"name"`
	StartsAt    string `json:"starts_at"`
	EndsAt      string `json:"ends_at"`
	Timezone    string `json:"timezone"`
	Location    string `json:"location"`
	Description string `json:"description"`

	Recurrence *RecurrenceResponse `json:"recurrence,omitempty"`
}

type RecurrenceResponse struct {
	Kind     string `json:"kind"`
	Interval int    `json:"interval"`
	Weekday  string `json:"weekday,omitempty"`
}

type RejectionResponse struct {
	Reason string `json:"reason"`
	Field  string `json:"field,omitempty"`
	Value  string `json:"value,omitempty"`
}

type AttemptResponse struct {
	ID             string `json:"id"`
	CommandID      string `json:"command_id"`
	ChannelID      string `json:"channel_id"`
	EventName      string `json:"event_name"`
	StartsAt       string `json:"starts_at,omitempty"`
	EndsAt         string `json:"ends_at,omitempty"`
	Timezone       string `json:"timezone,omitempty"`
	RecurrenceKind string `json:"recurrence_kind,omitempty"`
	Status         string `json:"status"`
	Attempts       int    `json:"attempts"`
	Error          string `json:"error,omitempty"`
	CreatedAt      string `json:"created_at"`
}

type ListAttemptsResponse struct {
	Attempts []AttemptResponse `json:"attempts"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

func specResponse(spec domain.EventSpec) *SpecResponse {
	resp := &SpecResponse{
		Name:        spec.Name,
		StartsAt:    formatTime(spec.Start),
		EndsAt:      formatTime(spec.End),
		Timezone:    spec.Timezone,
		Location:    spec.Location,
		Description: spec.Description,
	}
	if spec.Recurrence != nil {
		rr := &RecurrenceResponse{
			Kind:     string(spec.Recurrence.Kind),
			Interval: spec.Recurrence.Interval,
		}
		if spec.Recurrence.Kind == domain.RecurrenceWeekly {
			rr.Weekday = spec.Recurrence.Weekday.String()
		}
		resp.Recurrence = rr
	}
	return resp
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
