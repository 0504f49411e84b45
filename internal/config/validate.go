package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	if len(e) == 1 {
		return e[0].Error()
	}
	msg := fmt.Sprintf("%d validation errors:", len(e))
	for _, err := range e {
		msg += "\n  - " + err.Error()
	}
	return msg
}

// Validate checks the configuration for errors.
// Returns nil if valid, or ValidationErrors if invalid.
func Validate(cfg Config) error {
	var errs ValidationErrors

	// DATABASE_URL is required
	if cfg.DatabaseURL == "" {
		errs = append(errs, ValidationError{
			Field:   "DATABASE_URL",
			Message: "required",
		})
	}

	// SCHEDULE_API_URL is required and must be http(s)
	if cfg.ScheduleAPIURL == "" {
		errs = append(errs, ValidationError{
			Field:   "SCHEDULE_API_URL",
			Message: "required",
		})
	} else if !strings.HasPrefix(cfg.ScheduleAPIURL, "http://") && !strings.HasPrefix(cfg.ScheduleAPIURL, "https://") {
		errs = append(errs, ValidationError{
			Field:   "SCHEDULE_API_URL",
			Message: fmt.Sprintf("must start with http:// or https://, got %q", cfg.ScheduleAPIURL),
		})
	}

	// DEFAULT_TIMEZONE must be a known IANA zone
	if cfg.DefaultTimezone != "" {
		if _, err := time.LoadLocation(cfg.DefaultTimezone); err != nil {
			errs = append(errs, ValidationError{
				Field:   "DEFAULT_TIMEZONE",
				Message: fmt.Sprintf("unknown timezone %q", cfg.DefaultTimezone),
			})
		}
	}

	// SCHEDULE_API_TIMEOUT must be a positive duration
	if cfg.ScheduleAPITimeoutStr != "" {
		d, err := time.ParseDuration(cfg.ScheduleAPITimeoutStr)
		if err != nil {
			errs = append(errs, ValidationError{
				Field:   "SCHEDULE_API_TIMEOUT",
				Message: fmt.Sprintf("invalid duration: %v", err),
			})
		} else if d <= 0 {
			errs = append(errs, ValidationError{
				Field:   "SCHEDULE_API_TIMEOUT",
				Message: "must be positive",
			})
		}
	}

	// RECONCILE_CRON must be a parseable five-field cron expression
	if cfg.ReconcileEnabled && cfg.ReconcileCron != "" {
		if _, err := cron.ParseStandard(cfg.ReconcileCron); err != nil {
			errs = append(errs, ValidationError{
				Field:   "RECONCILE_CRON",
				Message: fmt.Sprintf("invalid cron expression: %v", err),
			})
		}
	}

	// ANALYTICS_WINDOW is a closed set
	switch cfg.AnalyticsWindow {
	case "", "1m", "5m", "1h":
	default:
		errs = append(errs, ValidationError{
			Field:   "ANALYTICS_WINDOW",
			Message: fmt.Sprintf("must be '1m', '5m' or '1h', got %q", cfg.AnalyticsWindow),
		})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}
