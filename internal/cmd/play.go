package cmd

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/Iron-Ham/gladoid/internal/config"
	apperrors "github.com/Iron-Ham/gladoid/internal/errors"
	"github.com/Iron-Ham/gladoid/internal/host"
	"github.com/Iron-Ham/gladoid/internal/relay"
	"github.com/Iron-Ham/gladoid/internal/session"
	"github.com/Iron-Ham/gladoid/internal/tui"
)

var playCmd = &cobra.Command{
	Use:   "play",
	Short: "Play a game in this terminal",
	Long: `Play a game in this terminal.

When stdin and stdout are a terminal the game opens in a full-screen view;
otherwise every message is printed as a line and commands are read from
stdin. Commands: attack N, weapon N, heal, pass, quit.

With a zero decision deadline every turn falls back to the default action
immediately. Set --deadline to take your turns yourself.`,
	Args: cobra.NoArgs,
	RunE: runPlay,
}

var (
	playInitiator  string
	playPlain      bool
	playTranscript string
)

func init() {
	playCmd.Flags().StringVar(&playInitiator, "as", "", "name recorded as the initiator (default $USER)")
	playCmd.Flags().BoolVar(&playPlain, "plain", false, "print lines instead of opening the full-screen view")
	playCmd.Flags().StringVar(&playTranscript, "transcript", "", "also write every message to this file")
	playCmd.Flags().Duration("deadline", 0, "time allowed for each of your decisions (overrides decision.deadline)")
	rootCmd.AddCommand(playCmd)
}

func runPlay(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	rt, err := newRuntime(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = rt.Close() }()

	launcher, err := rt.newLauncher(cfg)
	if err != nil {
		return err
	}

	var mws []relay.Middleware
	if playTranscript != "" {
		f, err := os.Create(playTranscript)
		if err != nil {
			return fmt.Errorf("failed to create transcript: %w", err)
		}
		defer func() { _ = f.Close() }()
		mws = append(mws, relay.Tee(relay.NewWriter(f)))
	}

	initiator := playInitiator
	if initiator == "" {
		initiator = os.Getenv("USER")
	}

	if !playPlain && isTerminal(os.Stdin) && isTerminal(os.Stdout) {
		err = playTUI(cmd.Context(), launcher, initiator, cfg.TUI.MaxLines, mws)
	} else {
		err = playPlainText(cmd.Context(), launcher, initiator, cmd.InOrStdin(), cmd.OutOrStdout(), mws)
	}

	switch {
	case err == nil, apperrors.IsCanceled(err):
		return nil
	default:
		fmt.Fprintln(cmd.ErrOrStderr(), session.HostFaultNotice)
		return err
	}
}

func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

func playTUI(ctx context.Context, launcher *host.Launcher, initiator string, maxLines int, mws []relay.Middleware) error {
	app := tui.New(tui.Options{MaxLines: maxLines})
	game, err := launcher.Launch(host.LaunchOptions{
		Initiator:   initiator,
		Deliver:     app.Deliver,
		OnAwait:     app.Prompt,
		Middlewares: mws,
	})
	if err != nil {
		return err
	}
	return app.Run(ctx, game)
}

// playPlainText runs a game line by line: messages go to out and commands
// are read from in.
func playPlainText(ctx context.Context, launcher *host.Launcher, initiator string, in io.Reader, out io.Writer, mws []relay.Middleware) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	w := relay.NewWriter(out)
	game, err := launcher.Launch(host.LaunchOptions{
		Initiator: initiator,
		Deliver:   w.Send,
		OnAwait: func(pending session.PendingDecision, deadline time.Duration) {
			_ = w.Send(ctx, fmt.Sprintf("> %s, your move (%s): attack N | weapon N | heal | pass", pending.Name, deadline))
		},
		Middlewares: mws,
	})
	if err != nil {
		return err
	}

	go readCommands(ctx, in, w, game, cancel)
	return game.Session.Run(ctx)
}

// readCommands submits each line of in to the game's gate until in ends or
// the participant quits. A read blocked on in outlives the game.
func readCommands(ctx context.Context, in io.Reader, w *relay.Writer, game *host.Game, quit context.CancelFunc) {
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return
		}
		line := scanner.Text()
		if line == "" {
			continue
		}
		c, err := tui.ParseCommand(line)
		if err != nil {
			_ = w.Send(ctx, err.Error())
			continue
		}
		if c.Quit {
			quit()
			return
		}
		if err := game.Gate.Submit(c.Decision); err != nil {
			_ = w.Send(ctx, "rejected: "+err.Error())
		}
	}
}
