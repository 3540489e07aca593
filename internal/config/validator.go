package config

import (
	"fmt"
	"os"
	"slices"
	"strings"

	apperrors "github.com/Iron-Ham/gladoid/internal/errors"
)

// ValidationErrors is a collection of validation errors
type ValidationErrors []*apperrors.ValidationError

// Error implements the error interface for ValidationErrors
func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	if len(e) == 1 {
		return e[0].Error()
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%d validation errors:\n", len(e))
	for i, err := range e {
		fmt.Fprintf(&sb, "  %d. %s\n", i+1, err.Error())
	}
	return sb.String()
}

// Unwrap exposes the individual errors to errors.Is and errors.As.
func (e ValidationErrors) Unwrap() []error {
	out := make([]error, len(e))
	for i, err := range e {
		out[i] = err
	}
	return out
}

// ValidLogLevels returns the list of valid log levels
func ValidLogLevels() []string {
	return []string{"debug", "info", "warn", "error"}
}

// Known action identifiers for decision.fallback_action.
const (
	minAction = 1
	maxAction = 4

	// Attack and weapon choice take a target; heal and pass do not.
	actionAttack       = 1
	actionChooseWeapon = 2
)

func invalid(field string, value any, format string, args ...any) *apperrors.ValidationError {
	return apperrors.NewValidationError(fmt.Sprintf(format, args...)).WithField(field).WithValue(value)
}

// Validate checks the Config for invalid values and returns all validation
// errors found. A nil result means the configuration is usable.
func (c *Config) Validate() ValidationErrors {
	var errs ValidationErrors

	errs = append(errs, c.validateDecision()...)
	errs = append(errs, c.validateSession()...)
	errs = append(errs, c.validateWorld()...)
	errs = append(errs, c.validateRelay()...)
	errs = append(errs, c.validateServer()...)
	errs = append(errs, c.validateLogging()...)

	if c.TUI.MaxLines < 0 {
		errs = append(errs, invalid("tui.max_lines", c.TUI.MaxLines, "must be non-negative"))
	}

	if len(errs) == 0 {
		return nil
	}
	return errs
}

func (c *Config) validateDecision() ValidationErrors {
	var errs ValidationErrors
	d := c.Decision

	if d.Deadline < 0 {
		errs = append(errs, invalid("decision.deadline", d.Deadline, "must be non-negative"))
	}

	if d.FallbackAction < minAction || d.FallbackAction > maxAction {
		errs = append(errs, invalid("decision.fallback_action", d.FallbackAction,
			"must be between %d and %d", minAction, maxAction))
	}

	if !slices.Contains(ValidFallbackTargets(), d.FallbackTarget) {
		errs = append(errs, invalid("decision.fallback_target", d.FallbackTarget,
			"must be one of: %s", strings.Join(ValidFallbackTargets(), ", ")))
	}

	if d.FallbackTarget == TargetFixed {
		needsTarget := d.FallbackAction == actionAttack || d.FallbackAction == actionChooseWeapon
		switch {
		case needsTarget && d.FixedTarget < 1:
			errs = append(errs, invalid("decision.fixed_target", d.FixedTarget,
				"must be at least 1 when fallback_action %d takes a target", d.FallbackAction))
		case d.FixedTarget < 0:
			errs = append(errs, invalid("decision.fixed_target", d.FixedTarget, "must be non-negative"))
		}
	}

	if d.FallbackTarget == TargetLua {
		if d.Script == "" {
			errs = append(errs, invalid("decision.script", d.Script, "is required when fallback_target is lua"))
		} else if _, err := os.Stat(d.Script); err != nil {
			errs = append(errs, invalid("decision.script", d.Script, "is not readable").WithCause(err))
		}
	}

	return errs
}

func (c *Config) validateSession() ValidationErrors {
	var errs ValidationErrors

	if c.Session.StepInterval < 0 {
		errs = append(errs, invalid("session.step_interval", c.Session.StepInterval, "must be non-negative"))
	}
	if c.Session.HumanSeat < 1 {
		errs = append(errs, invalid("session.human_seat", c.Session.HumanSeat, "must be at least 1"))
	}

	return errs
}

func (c *Config) validateWorld() ValidationErrors {
	if c.World.Roster == "" {
		return nil
	}
	if _, err := os.Stat(c.World.Roster); err != nil {
		return ValidationErrors{invalid("world.roster", c.World.Roster, "is not readable").WithCause(err)}
	}
	return nil
}

func (c *Config) validateRelay() ValidationErrors {
	var errs ValidationErrors

	if c.Relay.MessagesPerSecond < 0 {
		errs = append(errs, invalid("relay.messages_per_second", c.Relay.MessagesPerSecond, "must be non-negative"))
	}
	if c.Relay.MessagesPerSecond > 0 && c.Relay.Burst < 1 {
		errs = append(errs, invalid("relay.burst", c.Relay.Burst, "must be at least 1 when pacing is enabled"))
	}

	return errs
}

func (c *Config) validateServer() ValidationErrors {
	var errs ValidationErrors

	if c.Server.Addr == "" {
		errs = append(errs, invalid("server.addr", c.Server.Addr, "must not be empty"))
	}
	if c.Server.MaxSessions < 1 {
		errs = append(errs, invalid("server.max_sessions", c.Server.MaxSessions, "must be at least 1"))
	}
	if c.Server.FramesPerSecond < 0 {
		errs = append(errs, invalid("server.frames_per_second", c.Server.FramesPerSecond, "must be non-negative"))
	}

	return errs
}

func (c *Config) validateLogging() ValidationErrors {
	var errs ValidationErrors

	if c.Logging.Level != "" && !slices.Contains(ValidLogLevels(), strings.ToLower(c.Logging.Level)) {
		errs = append(errs, invalid("logging.level", c.Logging.Level,
			"must be one of: %s", strings.Join(ValidLogLevels(), ", ")))
	}

	const maxLogSizeMB = 1000
	if c.Logging.MaxSizeMB <= 0 {
		errs = append(errs, invalid("logging.max_size_mb", c.Logging.MaxSizeMB, "must be positive"))
	} else if c.Logging.MaxSizeMB > maxLogSizeMB {
		errs = append(errs, invalid("logging.max_size_mb", c.Logging.MaxSizeMB,
			"exceeds maximum of %dMB", maxLogSizeMB))
	}

	if c.Logging.MaxBackups < 0 {
		errs = append(errs, invalid("logging.max_backups", c.Logging.MaxBackups, "must be non-negative"))
	}

	return errs
}
