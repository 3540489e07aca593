package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix is the prefix for environment overrides, e.g. GLADOID_DECISION_DEADLINE.
const EnvPrefix = "GLADOID"

// Config represents the complete Gladoid configuration
type Config struct {
	Decision DecisionConfig `mapstructure:"decision"`
	Session  SessionConfig  `mapstructure:"session"`
	World    WorldConfig    `mapstructure:"world"`
	Relay    RelayConfig    `mapstructure:"relay"`
	Server   ServerConfig   `mapstructure:"server"`
	Results  ResultsConfig  `mapstructure:"results"`
	TUI      TUIConfig      `mapstructure:"tui"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// DecisionConfig controls how pending decisions are resolved
type DecisionConfig struct {
	// Deadline is how long to wait for a participant's own decision before
	// applying the fallback. 0 applies the fallback immediately.
	Deadline time.Duration `mapstructure:"deadline"`
	// FallbackAction is the action identifier used for synthesized decisions
	// (1 attack, 2 choose weapon, 3 heal, 4 pass).
	FallbackAction int `mapstructure:"fallback_action"`
	// FallbackTarget selects how the fallback target is chosen.
	// Options: "fixed", "random", "lua"
	FallbackTarget string `mapstructure:"fallback_target"`
	// FixedTarget is the target used by the "fixed" strategy.
	FixedTarget int `mapstructure:"fixed_target"`
	// Script is the Lua file used by the "lua" strategy. It must define
	// choose_target(participant, opponents).
	Script string `mapstructure:"script"`
}

// SessionConfig controls the driver loop
type SessionConfig struct {
	// StepInterval is a pause between loop iterations. 0 only yields.
	StepInterval time.Duration `mapstructure:"step_interval"`
	// HumanSeat is the participant id controlled by whoever started the session.
	// Decisions for other seats fall back immediately.
	HumanSeat int `mapstructure:"human_seat"`
}

// WorldConfig controls world creation
type WorldConfig struct {
	// Roster is a YAML file describing fighters and the armory.
	// Empty uses the built-in two-fighter roster.
	Roster string `mapstructure:"roster"`
	// Seed fixes the turn-race RNG. 0 seeds from the clock.
	Seed int64 `mapstructure:"seed"`
}

// RelayConfig controls outbound message pacing
type RelayConfig struct {
	// MessagesPerSecond caps deliveries to the participant. 0 disables pacing.
	MessagesPerSecond float64 `mapstructure:"messages_per_second"`
	// Burst is the number of deliveries allowed back to back.
	Burst int `mapstructure:"burst"`
}

// ServerConfig controls the websocket host
type ServerConfig struct {
	// Addr is the listen address for `gladoid serve`.
	Addr string `mapstructure:"addr"`
	// MaxSessions bounds concurrently running sessions.
	MaxSessions int `mapstructure:"max_sessions"`
	// FramesPerSecond limits inbound frames per connection. 0 disables.
	FramesPerSecond float64 `mapstructure:"frames_per_second"`
}

// ResultsConfig controls the finished-session history
type ResultsConfig struct {
	// Path is the SQLite database file. Empty disables recording.
	Path string `mapstructure:"path"`
}

// TUIConfig controls the terminal channel
type TUIConfig struct {
	// MaxLines limits how many narration lines are kept on screen.
	MaxLines int `mapstructure:"max_lines"`
}

// LoggingConfig controls debug logging behavior
type LoggingConfig struct {
	// Enabled controls whether logs are written to Dir.
	Enabled bool `mapstructure:"enabled"`
	// Level sets the minimum log level: "debug", "info", "warn", "error"
	Level string `mapstructure:"level"`
	// Dir is where gladoid.log is written. Empty uses the config directory.
	Dir string `mapstructure:"dir"`
	// MaxSizeMB is the size at which the log file rotates
	MaxSizeMB int `mapstructure:"max_size_mb"`
	// MaxBackups is how many rotated files are kept
	MaxBackups int `mapstructure:"max_backups"`
}

// ResolveDir returns the directory logs are written to.
func (l *LoggingConfig) ResolveDir() string {
	if l.Dir == "" {
		return filepath.Join(ConfigDir(), "logs")
	}
	return expandHome(l.Dir)
}

// Fallback strategies accepted by decision.fallback_target.
const (
	TargetFixed  = "fixed"
	TargetRandom = "random"
	TargetLua    = "lua"
)

// ValidFallbackTargets returns the accepted fallback target strategies.
func ValidFallbackTargets() []string {
	return []string{TargetFixed, TargetRandom, TargetLua}
}

// Default returns a Config matching the reference behavior: every pending
// decision falls back immediately to attacking participant 1.
func Default() *Config {
	return &Config{
		Decision: DecisionConfig{
			Deadline:       0,
			FallbackAction: 1,
			FallbackTarget: TargetFixed,
			FixedTarget:    1,
		},
		Session: SessionConfig{
			StepInterval: 0,
			HumanSeat:    1,
		},
		World: WorldConfig{},
		Relay: RelayConfig{
			MessagesPerSecond: 0,
			Burst:             1,
		},
		Server: ServerConfig{
			Addr:            ":8080",
			MaxSessions:     16,
			FramesPerSecond: 5,
		},
		Results: ResultsConfig{},
		TUI: TUIConfig{
			MaxLines: 500,
		},
		Logging: LoggingConfig{
			Enabled:    false,
			Level:      "info",
			MaxSizeMB:  10,
			MaxBackups: 3,
		},
	}
}

// SetDefaults registers all default values with the global viper instance.
func SetDefaults() {
	setDefaults(viper.GetViper())
}

// DefaultValues returns every configuration key with its default value.
func DefaultValues() map[string]any {
	d := Default()
	return map[string]any{
		"decision.deadline":        d.Decision.Deadline,
		"decision.fallback_action": d.Decision.FallbackAction,
		"decision.fallback_target": d.Decision.FallbackTarget,
		"decision.fixed_target":    d.Decision.FixedTarget,
		"decision.script":          d.Decision.Script,

		"session.step_interval": d.Session.StepInterval,
		"session.human_seat":    d.Session.HumanSeat,

		"world.roster": d.World.Roster,
		"world.seed":   d.World.Seed,

		"relay.messages_per_second": d.Relay.MessagesPerSecond,
		"relay.burst":               d.Relay.Burst,

		"server.addr":              d.Server.Addr,
		"server.max_sessions":      d.Server.MaxSessions,
		"server.frames_per_second": d.Server.FramesPerSecond,

		"results.path": d.Results.Path,

		"tui.max_lines": d.TUI.MaxLines,

		"logging.enabled":     d.Logging.Enabled,
		"logging.level":       d.Logging.Level,
		"logging.dir":         d.Logging.Dir,
		"logging.max_size_mb": d.Logging.MaxSizeMB,
		"logging.max_backups": d.Logging.MaxBackups,
	}
}

func setDefaults(v *viper.Viper) {
	for key, value := range DefaultValues() {
		v.SetDefault(key, value)
	}
}

// BindEnv wires GLADOID_* environment variables into v.
func BindEnv(v *viper.Viper) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
}

// Load reads the configuration from the global viper instance and validates it.
func Load() (*Config, error) {
	return LoadFrom(viper.GetViper())
}

// LoadFrom reads and validates the configuration held by v.
func LoadFrom(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, errs
	}

	return &cfg, nil
}

// NewViper returns a viper instance with defaults and environment bindings,
// reading file when it is non-empty.
func NewViper(file string) (*viper.Viper, error) {
	v := viper.New()
	setDefaults(v)
	BindEnv(v)
	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, err
		}
	}
	return v, nil
}

// ConfigDir returns the path to the user's config directory
func ConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "gladoid")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".gladoid"
	}
	return filepath.Join(home, ".config", "gladoid")
}

// ConfigFile returns the path to the config file
func ConfigFile() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}

func expandHome(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(path[1:], "/"))
		}
	}
	return path
}
