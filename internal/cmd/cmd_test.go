package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/Iron-Ham/gladoid/internal/config"
	"github.com/Iron-Ham/gladoid/internal/decision"
	"github.com/Iron-Ham/gladoid/internal/logging"
	"github.com/Iron-Ham/gladoid/internal/session"
	"github.com/Iron-Ham/gladoid/internal/transport/ws"
)

// executeCommand runs the root command with args against a fresh viper and
// a config directory private to the test.
func executeCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	resetCommandState()

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetIn(strings.NewReader(""))
	rootCmd.SetArgs(args)

	err := Execute()
	return buf.String(), err
}

func resetCommandState() {
	viper.Reset()
	resetFlags(rootCmd)
}

func resetFlags(c *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	c.Flags().VisitAll(reset)
	c.PersistentFlags().VisitAll(reset)
	for _, sub := range c.Commands() {
		resetFlags(sub)
	}
}

func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)
	return dir
}

func TestRootCommand_HasSubcommands(t *testing.T) {
	want := map[string]bool{"play": false, "serve": false, "stats": false, "config": false}
	for _, c := range rootCmd.Commands() {
		if _, ok := want[c.Name()]; ok {
			want[c.Name()] = true
		}
	}
	for name, found := range want {
		if !found {
			t.Errorf("missing subcommand %q", name)
		}
	}
}

func TestSettingsFromConfig(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*config.Config)
		check   func(t *testing.T, s decision.TargetStrategy)
		wantErr bool
	}{
		{
			name: "fixed target",
			check: func(t *testing.T, s decision.TargetStrategy) {
				if got, ok := s.(decision.FixedTarget); !ok || got != 1 {
					t.Errorf("strategy = %#v, want FixedTarget(1)", s)
				}
			},
		},
		{
			name:   "random target",
			mutate: func(c *config.Config) { c.Decision.FallbackTarget = config.TargetRandom },
			check: func(t *testing.T, s decision.TargetStrategy) {
				if _, ok := s.(*decision.RandomOpponent); !ok {
					t.Errorf("strategy = %T, want *decision.RandomOpponent", s)
				}
			},
		},
		{
			name:    "unknown target",
			mutate:  func(c *config.Config) { c.Decision.FallbackTarget = "nearest" },
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default()
			cfg.Decision.Deadline = 3 * time.Second
			cfg.Session.StepInterval = 5 * time.Millisecond
			cfg.Relay.MessagesPerSecond = 20
			if tt.mutate != nil {
				tt.mutate(cfg)
			}

			settings, err := settingsFromConfig(cfg, logging.NopLogger())
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected an error")
				}
				return
			}
			if err != nil {
				t.Fatalf("settingsFromConfig() error = %v", err)
			}

			want := session.Options{Deadline: 3 * time.Second, HumanSeat: 1, StepInterval: 5 * time.Millisecond}
			if settings.Options != want {
				t.Errorf("Options = %+v, want %+v", settings.Options, want)
			}
			if settings.FallbackAction != 1 {
				t.Errorf("FallbackAction = %d, want 1", settings.FallbackAction)
			}
			if settings.MessagesPerSecond != 20 || settings.Burst != 1 {
				t.Errorf("relay = %v/%d, want 20/1", settings.MessagesPerSecond, settings.Burst)
			}
			tt.check(t, settings.Strategy)
		})
	}
}

func TestPlay_PlainGameRunsToTheEnd(t *testing.T) {
	isolate(t)
	transcript := filepath.Join(t.TempDir(), "game.txt")

	out, err := executeCommand(t, "play", "--plain", "--as", "tester", "--transcript", transcript)
	if err != nil {
		t.Fatalf("play error = %v\n%s", err, out)
	}

	if !strings.HasPrefix(out, session.AckMessage+"\n") {
		t.Errorf("output should open with the acknowledgment, got:\n%s", out)
	}
	if !strings.HasSuffix(out, session.TerminalMessage+"\n") {
		t.Errorf("output should close with the terminal message, got:\n%s", out)
	}
	if strings.Contains(out, "your move") {
		t.Error("a zero deadline should never prompt")
	}

	data, err := os.ReadFile(transcript)
	if err != nil {
		t.Fatalf("reading transcript: %v", err)
	}
	if string(data) != out {
		t.Errorf("transcript differs from output\ntranscript:\n%s\noutput:\n%s", data, out)
	}
}

func TestPlay_PlainPromptsTheHumanSeat(t *testing.T) {
	isolate(t)

	out, err := executeCommand(t, "play", "--plain", "--deadline", "20ms")
	if err != nil {
		t.Fatalf("play error = %v\n%s", err, out)
	}
	if !strings.Contains(out, "> Sergen, your move (20ms)") {
		t.Errorf("expected a prompt for the human seat, got:\n%s", out)
	}
	if strings.Contains(out, "> Quanntum, your move") {
		t.Error("only the human seat should be prompted")
	}
	if !strings.HasSuffix(out, session.TerminalMessage+"\n") {
		t.Errorf("game should still end on fallbacks, got:\n%s", out)
	}
}

func TestPlay_RejectsInvalidConfig(t *testing.T) {
	isolate(t)
	t.Setenv("GLADOID_DECISION_FALLBACK_TARGET", "nearest")

	if _, err := executeCommand(t, "play", "--plain"); err == nil {
		t.Fatal("expected a validation error")
	}
}

func TestStats(t *testing.T) {
	isolate(t)

	t.Run("without a results path", func(t *testing.T) {
		out, err := executeCommand(t, "stats")
		if err != nil {
			t.Fatalf("stats error = %v", err)
		}
		if !strings.Contains(out, "Results are not recorded") {
			t.Errorf("unexpected output:\n%s", out)
		}
	})

	t.Run("after recorded games", func(t *testing.T) {
		t.Setenv("GLADOID_RESULTS_PATH", filepath.Join(t.TempDir(), "results.db"))

		for range 2 {
			if out, err := executeCommand(t, "play", "--plain", "--as", "tester"); err != nil {
				t.Fatalf("play error = %v\n%s", err, out)
			}
		}

		out, err := executeCommand(t, "stats", "--json", "--limit", "1")
		if err != nil {
			t.Fatalf("stats error = %v", err)
		}
		var got statsOutput
		if err := json.Unmarshal([]byte(out), &got); err != nil {
			t.Fatalf("stats output is not JSON: %v\n%s", err, out)
		}
		if got.Summary.Total != 2 || got.Summary.Ended != 2 {
			t.Errorf("summary = %+v, want 2 ended games", got.Summary)
		}
		if len(got.Recent) != 1 {
			t.Fatalf("recent = %d games, want 1", len(got.Recent))
		}
		if got.Recent[0].Initiator != "tester" || got.Recent[0].Outcome != "ended" {
			t.Errorf("recent game = %+v", got.Recent[0])
		}

		text, err := executeCommand(t, "stats")
		if err != nil {
			t.Fatalf("stats error = %v", err)
		}
		for _, want := range []string{"GAMES", "Total:     2", "RECENT", "tester"} {
			if !strings.Contains(text, want) {
				t.Errorf("text output missing %q:\n%s", want, text)
			}
		}
	})
}

func TestConfigCommands(t *testing.T) {
	dir := isolate(t)
	file := filepath.Join(dir, "gladoid", "config.yaml")

	out, err := executeCommand(t, "config", "path")
	if err != nil {
		t.Fatalf("config path error = %v", err)
	}
	if strings.TrimSpace(out) != file {
		t.Errorf("config path = %q, want %q", strings.TrimSpace(out), file)
	}

	if _, err := executeCommand(t, "config", "set", "decision.deadline", "7s"); err != nil {
		t.Fatalf("config set error = %v", err)
	}
	if _, err := os.Stat(file); err != nil {
		t.Fatalf("config file not written: %v", err)
	}

	out, err = executeCommand(t, "config", "show")
	if err != nil {
		t.Fatalf("config show error = %v", err)
	}
	if !strings.Contains(out, "# Config file: "+file) {
		t.Errorf("show should name the file in use:\n%s", out)
	}
	if !strings.Contains(out, "deadline: 7s") {
		t.Errorf("show should include the new deadline:\n%s", out)
	}

	rejected := []struct {
		name string
		args []string
	}{
		{"unknown key", []string{"config", "set", "decision.patience", "1"}},
		{"wrong type", []string{"config", "set", "decision.deadline", "soon"}},
		{"fails validation", []string{"config", "set", "decision.fallback_target", "lua"}},
	}
	for _, tt := range rejected {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := executeCommand(t, tt.args...); err == nil {
				t.Fatal("expected an error")
			}
		})
	}

	out, err = executeCommand(t, "config", "show")
	if err != nil {
		t.Fatalf("config show error = %v", err)
	}
	if !strings.Contains(out, "fallback_target: fixed") {
		t.Errorf("a rejected set must not change the file:\n%s", out)
	}
}

func TestConfigInit(t *testing.T) {
	dir := isolate(t)

	out, err := executeCommand(t, "config", "init")
	if err != nil {
		t.Fatalf("config init error = %v", err)
	}
	file := filepath.Join(dir, "gladoid", "config.yaml")
	if !strings.Contains(out, file) {
		t.Errorf("init output should name %s:\n%s", file, out)
	}

	v, err := config.NewViper(file)
	if err != nil {
		t.Fatalf("reading generated file: %v", err)
	}
	cfg, err := config.LoadFrom(v)
	if err != nil {
		t.Fatalf("generated file is invalid: %v", err)
	}
	if cfg.Server.Addr != config.Default().Server.Addr {
		t.Errorf("server.addr = %q, want the default", cfg.Server.Addr)
	}

	if _, err := executeCommand(t, "config", "init"); err == nil {
		t.Error("a second init should refuse to overwrite")
	}
}

func TestServe_StopsWhenContextEnds(t *testing.T) {
	cfg := config.Default()
	rt, err := newRuntime(cfg)
	if err != nil {
		t.Fatalf("newRuntime() error = %v", err)
	}
	defer func() { _ = rt.Close() }()

	launcher, err := rt.newLauncher(cfg)
	if err != nil {
		t.Fatalf("newLauncher() error = %v", err)
	}
	srv := ws.NewServer(ws.Config{Launcher: launcher, Logger: rt.logger, MaxSessions: 1, FramesPerSecond: 5})

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	httpSrv := &http.Server{Handler: srv.Handler(), ReadHeaderTimeout: time.Second}

	ctx, cancel := context.WithCancel(context.Background())
	out := &syncBuffer{}
	done := make(chan error, 1)
	go func() {
		done <- serve(ctx, httpSrv, ln, srv, rt.logger, out)
	}()

	resp, err := http.Get("http://" + ln.Addr().String() + "/up")
	if err != nil {
		t.Fatalf("health check: %v", err)
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("health status = %d, want 200", resp.StatusCode)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("serve() error = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("serve did not stop")
	}
	if !strings.Contains(out.String(), "Serving games on ws://"+ln.Addr().String()+"/ws") {
		t.Errorf("unexpected output: %q", out.String())
	}
}

func TestReloadSettings(t *testing.T) {
	resetCommandState()
	config.SetDefaults()

	cfg := config.Default()
	rt, err := newRuntime(cfg)
	if err != nil {
		t.Fatalf("newRuntime() error = %v", err)
	}
	defer func() { _ = rt.Close() }()
	launcher, err := rt.newLauncher(cfg)
	if err != nil {
		t.Fatalf("newLauncher() error = %v", err)
	}

	viper.Set("decision.deadline", "4s")
	reloadSettings(launcher, rt.logger, "config.yaml")
	if got := launcher.Settings().Options.Deadline; got != 4*time.Second {
		t.Errorf("Deadline after reload = %v, want 4s", got)
	}

	viper.Set("decision.deadline", "-1s")
	reloadSettings(launcher, rt.logger, "config.yaml")
	if got := launcher.Settings().Options.Deadline; got != 4*time.Second {
		t.Errorf("an invalid change should keep the previous settings, got %v", got)
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		in   string
		n    int
		want string
	}{
		{"tester", 12, "tester"},
		{"a-very-long-initiator", 8, "a-very-…"},
		{"exactly", 7, "exactly"},
	}
	for _, tt := range tests {
		if got := truncate(tt.in, tt.n); got != tt.want {
			t.Errorf("truncate(%q, %d) = %q, want %q", tt.in, tt.n, got, tt.want)
		}
	}
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}
