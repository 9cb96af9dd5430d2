package config

import (
	"errors"
	"fmt"

	"github.com/robfig/cron/v3"
)

// ValidationError describes one invalid configuration field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

const maxPort = 65535

// Validate reports every invalid field of the configuration.
func (c *Config) Validate() error {
	var errs []error

	if c.Service.Port < 1 || c.Service.Port > maxPort {
		errs = append(errs, &ValidationError{Field: "service.port", Message: "must be between 1 and 65535"})
	}
	switch c.Database.Driver {
	case DriverPostgres, DriverSQLite:
	default:
		errs = append(errs, &ValidationError{Field: "database.driver", Message: "must be postgres or sqlite3"})
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "warning", "error", "fatal":
	default:
		errs = append(errs, &ValidationError{Field: "logging.level", Message: "must be one of: debug, info, warn, error, fatal"})
	}
	switch c.Logging.Format {
	case "json", "console":
	default:
		errs = append(errs, &ValidationError{Field: "logging.format", Message: "must be one of: json, console"})
	}

	for field, v := range map[string]float64{
		"validation.milk_threshold":       c.Validation.MilkThreshold,
		"validation.drinking_threshold":   c.Validation.DrinkingThreshold,
		"validation.creativity_threshold": c.Validation.CreativityThreshold,
		"validation.audio_threshold":      c.Validation.AudioThreshold,
		"validation.tag_boost_cap":        c.Validation.TagBoostCap,
	} {
		if v < 0 || v > 1 {
			errs = append(errs, &ValidationError{Field: field, Message: "must be within [0, 1]"})
		}
	}

	if err := validateCategories(c.Classification); err != nil {
		errs = append(errs, err)
	}

	if c.Scheduler.Enabled {
		if _, err := cron.ParseStandard(c.Scheduler.ReweightSchedule); err != nil {
			errs = append(errs, &ValidationError{Field: "scheduler.reweight_schedule", Message: err.Error()})
		}
	}

	return errors.Join(errs...)
}

func validateCategories(c ClassificationConfig) error {
	seen := make(map[string]struct{}, len(c.Categories))
	for i, cat := range c.Categories {
		if cat.ID == "" {
			return &ValidationError{Field: fmt.Sprintf("classification.categories[%d].id", i), Message: "is required"}
		}
		if _, dup := seen[cat.ID]; dup {
			return &ValidationError{Field: fmt.Sprintf("classification.categories[%d].id", i), Message: "duplicate id " + cat.ID}
		}
		seen[cat.ID] = struct{}{}
		if len(cat.Keywords) == 0 {
			return &ValidationError{Field: fmt.Sprintf("classification.categories[%d].keywords", i), Message: "must not be empty"}
		}
	}
	return nil
}
