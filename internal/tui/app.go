// Package tui is the terminal channel: it shows everything a session relays
// and lets the participant answer their decisions from an input box.
package tui

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/sourcegraph/conc"

	"github.com/Iron-Ham/gladoid/internal/host"
	"github.com/Iron-Ham/gladoid/internal/session"
)

// Options configures an App.
type Options struct {
	// MaxLines bounds the narration kept on screen.
	MaxLines int
	// ProgramOptions are passed to the Bubbletea program, replacing the
	// alternate-screen default when set.
	ProgramOptions []tea.ProgramOption
}

// App wraps the Bubbletea program. Create it before launching the game so
// Deliver and Prompt can be handed to the launcher.
type App struct {
	program *tea.Program
	bind    *binding
}

// New creates a new TUI application
func New(opts Options) *App {
	bind := &binding{}
	programOpts := opts.ProgramOptions
	if len(programOpts) == 0 {
		programOpts = []tea.ProgramOption{tea.WithAltScreen()}
	}
	return &App{
		program: tea.NewProgram(newModel(bind, opts.MaxLines), programOpts...),
		bind:    bind,
	}
}

// Deliver shows text in the narration pane. It satisfies relay.Func.
func (a *App) Deliver(_ context.Context, text string) error {
	a.program.Send(narrationMsg{text: text})
	return nil
}

// Prompt opens the decision box with a countdown. It is meant for
// host.LaunchOptions.OnAwait.
func (a *App) Prompt(pending session.PendingDecision, deadline time.Duration) {
	a.program.Send(promptMsg{pending: pending, deadline: deadline})
}

// Run drives game in the background and blocks until the participant leaves
// the program. It returns the session's error, or the program's if the
// terminal failed.
func (a *App) Run(ctx context.Context, game *host.Game) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	a.bind.sessionID = game.Session.ID()
	a.bind.submit = game.Gate.Submit
	a.bind.cancel = cancel

	// Leave the game cleanly on termination signals.
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	defer signal.Stop(sigChan)
	go func() {
		select {
		case <-sigChan:
			cancel()
			a.program.Send(tea.Quit())
		case <-ctx.Done():
		}
	}()

	var runErr error
	var wg conc.WaitGroup
	wg.Go(func() {
		runErr = game.Session.Run(ctx)
		a.program.Send(overMsg{
			err:       runErr,
			steps:     game.Session.Steps(),
			fallbacks: game.Session.Fallbacks(),
		})
	})

	_, err := a.program.Run()
	cancel()
	wg.Wait()

	if err != nil {
		return err
	}
	return runErr
}
