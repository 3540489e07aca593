package cmd

import (
	"errors"
	"fmt"

	"github.com/Iron-Ham/gladoid/internal/config"
	"github.com/Iron-Ham/gladoid/internal/decision"
	"github.com/Iron-Ham/gladoid/internal/event"
	"github.com/Iron-Ham/gladoid/internal/host"
	"github.com/Iron-Ham/gladoid/internal/logging"
	"github.com/Iron-Ham/gladoid/internal/results"
	"github.com/Iron-Ham/gladoid/internal/session"
	"github.com/Iron-Ham/gladoid/internal/telemetry"
	"github.com/Iron-Ham/gladoid/internal/world"
)

// runtime holds the process-wide collaborators shared by every game a
// command starts.
type runtime struct {
	logger   *logging.Logger
	bus      *event.Bus
	tel      *telemetry.Telemetry
	store    *results.Store
	recorder *results.Recorder
}

func newRuntime(cfg *config.Config) (*runtime, error) {
	logger := logging.NopLogger()
	if cfg.Logging.Enabled {
		var err error
		logger, err = logging.NewLogger(cfg.Logging.ResolveDir(), cfg.Logging.Level, logging.RotationConfig{
			MaxSizeMB:  cfg.Logging.MaxSizeMB,
			MaxBackups: cfg.Logging.MaxBackups,
		})
		if err != nil {
			return nil, err
		}
	}

	rt := &runtime{
		logger: logger,
		bus:    event.NewBus(logger),
		tel:    telemetry.New(),
	}

	if cfg.Results.Path != "" {
		store, err := results.Open(cfg.Results.Path)
		if err != nil {
			_ = logger.Close()
			return nil, fmt.Errorf("failed to open results: %w", err)
		}
		rt.store = store
		rt.recorder = results.NewRecorder(store, logger)
		rt.recorder.Attach(rt.bus)
	}

	return rt, nil
}

func (rt *runtime) Close() error {
	var errs []error
	if rt.recorder != nil {
		rt.recorder.Detach()
	}
	if rt.store != nil {
		errs = append(errs, rt.store.Close())
	}
	errs = append(errs, rt.logger.Close())
	return errors.Join(errs...)
}

// newLauncher builds the world adapter and session settings described by cfg.
func (rt *runtime) newLauncher(cfg *config.Config) (*host.Launcher, error) {
	roster := world.DefaultRoster()
	if cfg.World.Roster != "" {
		var err error
		if roster, err = world.LoadRoster(cfg.World.Roster); err != nil {
			return nil, err
		}
	}

	adapter, err := world.NewAdapter(roster, cfg.World.Seed)
	if err != nil {
		return nil, err
	}

	settings, err := settingsFromConfig(cfg, rt.logger)
	if err != nil {
		return nil, err
	}
	return host.NewLauncher(adapter, rt.bus, rt.logger, rt.tel, settings), nil
}

// settingsFromConfig maps the decision, session and relay sections onto the
// per-game launcher settings.
func settingsFromConfig(cfg *config.Config, logger *logging.Logger) (host.Settings, error) {
	strategy, err := decision.NewStrategy(cfg.Decision.FallbackTarget, cfg.Decision.FixedTarget, cfg.Decision.Script, logger)
	if err != nil {
		return host.Settings{}, err
	}

	return host.Settings{
		Options: session.Options{
			Deadline:     cfg.Decision.Deadline,
			HumanSeat:    cfg.Session.HumanSeat,
			StepInterval: cfg.Session.StepInterval,
		},
		FallbackAction:    cfg.Decision.FallbackAction,
		Strategy:          strategy,
		MessagesPerSecond: cfg.Relay.MessagesPerSecond,
		Burst:             cfg.Relay.Burst,
	}, nil
}
