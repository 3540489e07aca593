package session

import apperrors "github.com/Iron-Ham/gladoid/internal/errors"

// StepOutcome classifies the result of World.Step.
type StepOutcome int

const (
	// StepOK means the world advanced.
	StepOK StepOutcome = iota
	// StepTerminated means the world reported that the game concluded.
	StepTerminated
	// StepFault means anything else went wrong. Fatal to the session.
	StepFault
)

func (o StepOutcome) String() string {
	switch o {
	case StepOK:
		return "ok"
	case StepTerminated:
		return "terminated"
	default:
		return "fault"
	}
}

// ClassifyStep maps a Step error onto the Terminated/Fault split. Only the
// world's game-concluded condition is Terminated.
func ClassifyStep(err error) StepOutcome {
	switch {
	case err == nil:
		return StepOK
	case apperrors.IsTerminated(err):
		return StepTerminated
	default:
		return StepFault
	}
}
