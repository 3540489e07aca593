// Package errors provides centralized error definitions and error handling utilities
// for Gladoid. It defines the error taxonomy the session driver branches on,
// domain-specific error types with context wrapping, and classification helpers.
//
// # Taxonomy
//
// A session only ever distinguishes three outcomes of a failing call:
//   - Terminated: the engine reports that the game has concluded ([ErrGameOver]).
//     This is the expected end of a session and is handled inside the driver.
//   - InvalidDecision: a decision was injected with nothing pending or with an
//     action the engine rejects ([DecisionError]). This is a contract violation
//     and is fatal to the session.
//   - Fault: everything else. Fatal to the session and surfaced to the host.
//
// # Error Types
//
// Domain-specific errors:
//   - SessionError: the value surfaced to the host when a session aborts
//   - WorldError: an engine-side failure with the operation that produced it
//   - DecisionError: an injected decision was rejected (InvalidDecision)
//
// Semantic errors:
//   - ValidationError: invalid input or configuration
//
// # Usage
//
//	if errors.IsTerminated(err) { ... }
//	if errors.IsInvalidDecision(err) { ... }
//
//	var sessErr *errors.SessionError
//	if errors.As(err, &sessErr) { ... }
package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Re-export standard library functions for convenience.
// This allows callers to import only this package for all error handling.
var (
	Is     = errors.Is
	As     = errors.As
	Unwrap = errors.Unwrap
	New    = errors.New
	Join   = errors.Join
)

// Severity represents the severity level of an error.
type Severity int

const (
	// SeverityDebug is for errors that are useful for debugging but not critical.
	SeverityDebug Severity = iota
	// SeverityInfo is for informational errors that don't indicate a problem.
	SeverityInfo
	// SeverityWarning is for errors that might indicate a problem but aren't critical.
	SeverityWarning
	// SeverityError is for errors that indicate a real problem.
	SeverityError
	// SeverityCritical is for errors that require immediate attention.
	SeverityCritical
)

// String returns the string representation of the severity level.
func (s Severity) String() string {
	switch s {
	case SeverityDebug:
		return "debug"
	case SeverityInfo:
		return "info"
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	case SeverityCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// -----------------------------------------------------------------------------
// Sentinel Errors
// -----------------------------------------------------------------------------

// Engine sentinel errors
var (
	// ErrGameOver is the engine's designated "game concluded" condition.
	// It is the only cause classified as Terminated.
	ErrGameOver = New("game is over")
	// ErrDecisionOutstanding indicates a step was attempted while a decision
	// was still pending and had not been injected.
	ErrDecisionOutstanding = New("decision outstanding")
	// ErrWorldReleased indicates an operation on a world handle that was released.
	ErrWorldReleased = New("world released")
)

// Decision sentinel errors
var (
	// ErrNoPendingDecision indicates a decision was injected while none was pending.
	ErrNoPendingDecision = New("no decision pending")
	// ErrInvalidAction indicates the action is not valid for the participant's options.
	ErrInvalidAction = New("invalid action")
	// ErrWrongParticipant indicates a decision addressed to a participant other
	// than the one currently required to act.
	ErrWrongParticipant = New("decision addressed to wrong participant")
	// ErrNotAwaitingDecision indicates a submission arrived while no decision was open.
	ErrNotAwaitingDecision = New("not awaiting a decision")
)

// Session sentinel errors
var (
	// ErrSessionCanceled indicates the host abandoned the session.
	ErrSessionCanceled = New("session canceled")
	// ErrSessionLimit indicates the host is already running its maximum number of sessions.
	ErrSessionLimit = New("session limit reached")
)

// General sentinel errors
var (
	// ErrInvalidInput indicates that input validation failed.
	ErrInvalidInput = New("invalid input")
)

// -----------------------------------------------------------------------------
// Base Error Interface
// -----------------------------------------------------------------------------

// GladoidError is the base interface for all Gladoid errors.
type GladoidError interface {
	error

	// Unwrap returns the underlying error, if any.
	Unwrap() error

	// Is reports whether this error matches the target error.
	Is(target error) bool

	// Severity returns the severity level of this error.
	Severity() Severity

	// IsUserFacing returns true if the error message is safe to display
	// to the participant.
	IsUserFacing() bool
}

// baseError provides common functionality for all error types.
type baseError struct {
	message    string
	cause      error
	severity   Severity
	userFacing bool
}

// Error returns the error message.
func (e *baseError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.message, e.cause)
	}
	return e.message
}

// Unwrap returns the underlying error.
func (e *baseError) Unwrap() error {
	return e.cause
}

// Is checks if this error matches the target.
func (e *baseError) Is(target error) bool {
	if e.cause != nil {
		return errors.Is(e.cause, target)
	}
	return false
}

// Severity returns the error severity.
func (e *baseError) Severity() Severity {
	return e.severity
}

// IsUserFacing returns whether the error is safe to show users.
func (e *baseError) IsUserFacing() bool {
	return e.userFacing
}

// -----------------------------------------------------------------------------
// Domain-Specific Errors
// -----------------------------------------------------------------------------

// SessionError is what the driver returns to the host when a session aborts.
//
// Example:
//
//	err := errors.NewSessionError("step failed", cause).WithSessionID("abc").WithStep(4)
//	fmt.Println(err) // "session error [session=abc, step=4]: step failed: ..."
type SessionError struct {
	baseError
	SessionID string
	Step      uint64
	State     string
}

// NewSessionError creates a new SessionError.
func NewSessionError(message string, cause error) *SessionError {
	return &SessionError{
		baseError: baseError{
			message:    message,
			cause:      cause,
			severity:   SeverityError,
			userFacing: false,
		},
	}
}

// WithSessionID adds a session ID to the error context.
func (e *SessionError) WithSessionID(id string) *SessionError {
	e.SessionID = id
	return e
}

// WithStep records the step counter at the time of the failure.
func (e *SessionError) WithStep(step uint64) *SessionError {
	e.Step = step
	return e
}

// WithState records the driver state at the time of the failure.
func (e *SessionError) WithState(state string) *SessionError {
	e.State = state
	return e
}

// WithSeverity sets the error severity.
func (e *SessionError) WithSeverity(s Severity) *SessionError {
	e.severity = s
	return e
}

// Error returns the formatted error message.
func (e *SessionError) Error() string {
	var parts []string
	if e.SessionID != "" {
		parts = append(parts, fmt.Sprintf("session=%s", e.SessionID))
	}
	if e.Step > 0 {
		parts = append(parts, fmt.Sprintf("step=%d", e.Step))
	}
	if e.State != "" {
		parts = append(parts, fmt.Sprintf("state=%s", e.State))
	}

	prefix := "session error"
	if len(parts) > 0 {
		prefix = fmt.Sprintf("session error [%s]", strings.Join(parts, ", "))
	}

	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", prefix, e.message, e.cause)
	}
	return fmt.Sprintf("%s: %s", prefix, e.message)
}

// Is checks if this error matches the target.
func (e *SessionError) Is(target error) bool {
	if _, ok := target.(*SessionError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// WorldError represents a failure inside the simulation engine.
//
// Example:
//
//	err := errors.NewWorldError("step", errors.ErrGameOver)
type WorldError struct {
	baseError
	Op string
}

// NewWorldError creates a new WorldError for the named engine operation.
func NewWorldError(op string, cause error) *WorldError {
	return &WorldError{
		baseError: baseError{
			message:  op,
			cause:    cause,
			severity: SeverityError,
		},
		Op: op,
	}
}

// Error returns the formatted error message.
func (e *WorldError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("world error [op=%s]: %v", e.Op, e.cause)
	}
	return fmt.Sprintf("world error [op=%s]", e.Op)
}

// Is checks if this error matches the target.
func (e *WorldError) Is(target error) bool {
	if _, ok := target.(*WorldError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// DecisionError reports an injected decision the engine refused. It is the
// InvalidDecision class of the taxonomy.
//
// Example:
//
//	err := errors.NewDecisionError("unknown action", errors.ErrInvalidAction).
//		WithParticipant(2).WithAction(9)
type DecisionError struct {
	baseError
	Participant int
	Action      int
}

// NewDecisionError creates a new DecisionError.
func NewDecisionError(message string, cause error) *DecisionError {
	return &DecisionError{
		baseError: baseError{
			message:    message,
			cause:      cause,
			severity:   SeverityCritical,
			userFacing: false,
		},
	}
}

// WithParticipant adds the participant the decision was addressed to.
func (e *DecisionError) WithParticipant(id int) *DecisionError {
	e.Participant = id
	return e
}

// WithAction adds the rejected action identifier.
func (e *DecisionError) WithAction(action int) *DecisionError {
	e.Action = action
	return e
}

// Error returns the formatted error message.
func (e *DecisionError) Error() string {
	var parts []string
	if e.Participant != 0 {
		parts = append(parts, fmt.Sprintf("participant=%d", e.Participant))
	}
	if e.Action != 0 {
		parts = append(parts, fmt.Sprintf("action=%d", e.Action))
	}

	prefix := "invalid decision"
	if len(parts) > 0 {
		prefix = fmt.Sprintf("invalid decision [%s]", strings.Join(parts, ", "))
	}

	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", prefix, e.message, e.cause)
	}
	return fmt.Sprintf("%s: %s", prefix, e.message)
}

// Is checks if this error matches the target.
func (e *DecisionError) Is(target error) bool {
	if _, ok := target.(*DecisionError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// -----------------------------------------------------------------------------
// Semantic Errors
// -----------------------------------------------------------------------------

// ValidationError represents invalid input or state.
//
// Example:
//
//	err := errors.NewValidationError("must be non-negative").
//		WithField("decision.deadline").WithValue("-1s")
type ValidationError struct {
	baseError
	Field string
	Value any
}

// NewValidationError creates a new ValidationError.
func NewValidationError(message string) *ValidationError {
	return &ValidationError{
		baseError: baseError{
			message:    message,
			severity:   SeverityWarning,
			userFacing: true,
		},
	}
}

// WithField adds the field name to the error context.
func (e *ValidationError) WithField(field string) *ValidationError {
	e.Field = field
	return e
}

// WithValue adds the invalid value to the error context.
func (e *ValidationError) WithValue(value any) *ValidationError {
	e.Value = value
	return e
}

// WithCause adds an underlying cause.
func (e *ValidationError) WithCause(cause error) *ValidationError {
	e.cause = cause
	return e
}

// Error returns the formatted error message.
func (e *ValidationError) Error() string {
	var msg string
	if e.Field != "" {
		msg = fmt.Sprintf("validation error: %s: %s", e.Field, e.message)
	} else {
		msg = fmt.Sprintf("validation error: %s", e.message)
	}
	if e.Value != nil {
		msg = fmt.Sprintf("%s (got: %v)", msg, e.Value)
	}
	if e.cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.cause)
	}
	return msg
}

// Is checks if this error matches the target.
func (e *ValidationError) Is(target error) bool {
	if _, ok := target.(*ValidationError); ok {
		return true
	}
	if target == ErrInvalidInput {
		return true
	}
	return e.baseError.Is(target)
}

// -----------------------------------------------------------------------------
// Classification Helpers
// -----------------------------------------------------------------------------

// IsTerminated reports whether err carries the engine's game-concluded condition.
func IsTerminated(err error) bool {
	return err != nil && errors.Is(err, ErrGameOver)
}

// IsInvalidDecision reports whether err is an InvalidDecision contract violation.
func IsInvalidDecision(err error) bool {
	if err == nil {
		return false
	}
	var de *DecisionError
	if errors.As(err, &de) {
		return true
	}
	return errors.Is(err, ErrNoPendingDecision) || errors.Is(err, ErrInvalidAction)
}

// IsCanceled reports whether err stems from the host abandoning the session.
func IsCanceled(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, ErrSessionCanceled)
}

// IsUserFacing returns true if the error message is safe to display to the participant.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	var ge GladoidError
	if errors.As(err, &ge) {
		return ge.IsUserFacing()
	}
	return false
}

// GetSeverity returns the severity of the error.
// Returns SeverityError for errors that don't implement GladoidError.
func GetSeverity(err error) Severity {
	if err == nil {
		return SeverityDebug
	}
	var ge GladoidError
	if errors.As(err, &ge) {
		return ge.Severity()
	}
	return SeverityError
}
