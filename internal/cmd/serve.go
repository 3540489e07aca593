package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Iron-Ham/gladoid/internal/config"
	"github.com/Iron-Ham/gladoid/internal/host"
	"github.com/Iron-Ham/gladoid/internal/logging"
	"github.com/Iron-Ham/gladoid/internal/transport/ws"
)

const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Host games over a websocket",
	Long: `Host games over a websocket at /ws, with a health check at /up.

Changes to the decision, session and relay sections of the config file are
applied to games started after the change. World and server settings need a
restart.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().String("addr", "", "listen address (overrides server.addr)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
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

	if viper.ConfigFileUsed() != "" {
		viper.OnConfigChange(func(e fsnotify.Event) {
			reloadSettings(launcher, rt.logger, e.Name)
		})
		viper.WatchConfig()
	}

	srv := ws.NewServer(ws.Config{
		Launcher:        launcher,
		Logger:          rt.logger,
		MaxSessions:     cfg.Server.MaxSessions,
		FramesPerSecond: cfg.Server.FramesPerSecond,
	})

	ln, err := net.Listen("tcp", cfg.Server.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}
	httpSrv := &http.Server{
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return serve(ctx, httpSrv, ln, srv, rt.logger, cmd.OutOrStdout())
}

// serve runs httpSrv on ln until ctx ends, then stops accepting connections
// and cancels every running game.
func serve(ctx context.Context, httpSrv *http.Server, ln net.Listener, srv *ws.Server, logger *logging.Logger, out io.Writer) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- httpSrv.Serve(ln)
	}()

	logger.Info("serving games", "addr", ln.Addr().String())
	fmt.Fprintf(out, "Serving games on ws://%s/ws\n", ln.Addr())

	select {
	case err := <-errCh:
		srv.Shutdown()
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	// Running games hold hijacked connections that Shutdown does not wait for.
	srv.Shutdown()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	logger.Info("server stopped")
	return nil
}

// reloadSettings applies the config file's current decision, session and
// relay settings to games launched from now on. An invalid file keeps the
// previous settings.
func reloadSettings(launcher *host.Launcher, logger *logging.Logger, file string) {
	cfg, err := config.Load()
	if err != nil {
		logger.Warn("ignoring invalid config change", "file", file, "error", err.Error())
		return
	}
	settings, err := settingsFromConfig(cfg, logger)
	if err != nil {
		logger.Warn("ignoring invalid config change", "file", file, "error", err.Error())
		return
	}
	launcher.UpdateSettings(settings)
}
