package domain

import (
	"errors"
	"fmt"
	"testing"
)

func TestRejection_Error(t *testing.T) {
	tests := []struct {
		name string
		rej  *Rejection
		want string
	}{
		{
			name: "reason only",
			rej:  Reject(ReasonTimeInPast, "", ""),
			want: "time_in_past",
		},
		{
			name: "reason and field",
			rej:  Reject(ReasonIncompleteSpecification, "location", ""),
			want: "incomplete_specification: location",
		},
		{
			name: "reason field and value",
			rej:  Reject(ReasonUnknownTimezone, "timezone", "Mars/Olympus"),
			want: `unknown_timezone: timezone="Mars/Olympus"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.rej.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestAsRejection(t *testing.T) {
	rej := Reject(ReasonEndBeforeStart, "end", "")

	got, ok := AsRejection(rej)
	if !ok {
		t.Fatal("AsRejection should recognize a bare Rejection")
	}
	if got.Reason != ReasonEndBeforeStart {
		t.Errorf("Reason = %q, want %q", got.Reason, ReasonEndBeforeStart)
	}

	wrapped := fmt.Errorf("validate: %w", rej)
	if _, ok := AsRejection(wrapped); !ok {
		t.Error("AsRejection should unwrap a wrapped Rejection")
	}

	if _, ok := AsRejection(errors.New("plain")); ok {
		t.Error("AsRejection should not match a plain error")
	}
}
