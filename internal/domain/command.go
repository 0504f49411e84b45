package domain

import (
	"time"

	"github.com/google/uuid"
)

// Command is one event-creation request as handed over by the platform
// connection: a single line of field text, already stripped of any
// command prefix, plus the mode flag.
type Command struct {
	ID        uuid.UUID
	ChannelID string
	RawText   string
	Mode      Mode

	ReceivedAt time.Time
}
