package tui

import (
	"strconv"
	"strings"

	apperrors "github.com/Iron-Ham/gladoid/internal/errors"
	"github.com/Iron-Ham/gladoid/internal/session"
	"github.com/Iron-Ham/gladoid/internal/world"
)

// Command is a parsed line from the input box.
type Command struct {
	Quit     bool
	Decision session.Decision
}

// verbs maps every accepted spelling to an action and whether it takes an
// argument.
var verbs = map[string]struct {
	action  int
	needArg bool
}{
	"attack": {world.ActionAttack, true},
	"a":      {world.ActionAttack, true},
	"weapon": {world.ActionChooseWeapon, true},
	"w":      {world.ActionChooseWeapon, true},
	"heal":   {world.ActionHeal, false},
	"h":      {world.ActionHeal, false},
	"pass":   {world.ActionPass, false},
	"p":      {world.ActionPass, false},
}

// ParseCommand turns "attack 2", "w 1", "heal", "pass" or "quit" into a
// Command. The decision's participant is left zero so the gate fills in
// whoever is pending.
func ParseCommand(line string) (Command, error) {
	fields := strings.Fields(strings.ToLower(line))
	if len(fields) == 0 {
		return Command{}, apperrors.NewValidationError("empty command")
	}

	if fields[0] == "quit" || fields[0] == "q" {
		return Command{Quit: true}, nil
	}

	verb, ok := verbs[fields[0]]
	if !ok {
		return Command{}, apperrors.NewValidationError("unknown command").WithField("command").WithValue(fields[0])
	}

	d := session.Decision{Action: verb.action}
	switch {
	case verb.needArg && len(fields) != 2:
		return Command{}, apperrors.NewValidationError(fields[0] + " needs exactly one number").WithField("command").WithValue(line)
	case !verb.needArg && len(fields) != 1:
		return Command{}, apperrors.NewValidationError(fields[0] + " takes no argument").WithField("command").WithValue(line)
	}

	if verb.needArg {
		n, err := strconv.Atoi(fields[1])
		if err != nil || n <= 0 {
			return Command{}, apperrors.NewValidationError("expected a positive number").WithField("target").WithValue(fields[1])
		}
		d.Target = n
	}
	return Command{Decision: d}, nil
}
