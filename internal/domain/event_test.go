package domain

import "testing"

func TestRecurrenceKind_Values(t *testing.T) {
	tests := []struct {
		kind RecurrenceKind
		want string
	}{
		{RecurrenceNone, "none"},
		{RecurrenceDaily, "daily"},
		{RecurrenceWeekly, "weekly"},
		{RecurrenceMonthly, "monthly"},
		{RecurrenceYearly, "yearly"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if string(tt.kind) != tt.want {
				t.Errorf("RecurrenceKind = %q, want %q", tt.kind, tt.want)
			}
		})
	}
}

func TestAttemptStatus_Values(t *testing.T) {
	tests := []struct {
		status AttemptStatus
		want   string
	}{
		{AttemptStatusPending, "pending"},
		{AttemptStatusCreated, "created"},
		{AttemptStatusRejected, "rejected"},
		{AttemptStatusFailed, "failed"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if string(tt.status) != tt.want {
				t.Errorf("AttemptStatus = %q, want %q", tt.status, tt.want)
			}
		})
	}
}

func TestEventSpec_IsRecurring(t *testing.T) {
	if (EventSpec{Mode: ModeSingle}).IsRecurring() {
		t.Error("single spec reported as recurring")
	}
	if !(EventSpec{Mode: ModeRecurring}).IsRecurring() {
		t.Error("recurring spec not reported as recurring")
	}
}
