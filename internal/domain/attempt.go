package domain

import (
	"time"

	"github.com/google/uuid"
)

type AttemptStatus string

const (
	AttemptStatusPending  AttemptStatus = "pending"
	AttemptStatusCreated  AttemptStatus = "created"
	AttemptStatusRejected AttemptStatus = "rejected"
	AttemptStatusFailed   AttemptStatus = "failed"
)

// CreationAttempt is the audit record of one attempt to hand a spec to
// the scheduling API (or of a rejection that never reached it).
type CreationAttempt struct {
	ID        uuid.UUID
	CommandID uuid.UUID
	ChannelID string

	EventName      string
	Start          time.Time
	End            time.Time
	Timezone       string
	RecurrenceKind RecurrenceKind

	Status   AttemptStatus
	Attempts int
	Error    string

	CreatedAt time.Time
	UpdatedAt time.Time
}
