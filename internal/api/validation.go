package api

import (
	"fmt"

	"github.com/dajanosw/Event-Manager-Bot/internal/domain"
)

// maxTextLength bounds the raw command line. Chat platforms cap messages
// well below this anyway.
const maxTextLength = 4096

func validateSubmitCommand(req SubmitCommandRequest) error {
	if req.ChannelID == "" {
		return fmt.Errorf("channel_id is required")
	}

	if req.Mode == "" {
		return fmt.Errorf("mode is required")
	}
	if err := validateMode(req.Mode); err != nil {
		return fmt.Errorf("invalid mode: %w", err)
	}

	if req.Text == "" {
		return fmt.Errorf("text is required")
	}
	if len(req.Text) > maxTextLength {
		return fmt.Errorf("text exceeds maximum length of %d", maxTextLength)
	}

	return nil
}

func validateMode(mode string) error {
	switch domain.Mode(mode) {
	case domain.ModeSingle, domain.ModeRecurring:
		return nil
	}
	return fmt.Errorf("must be %q or %q, got %q", domain.ModeSingle, domain.ModeRecurring, mode)
}
