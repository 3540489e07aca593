package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/Iron-Ham/gladoid/internal/config"
	configui "github.com/Iron-Ham/gladoid/internal/tui/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "View or modify Gladoid configuration",
	Long: `View or modify Gladoid configuration.

Without arguments, displays the current configuration.
Use subcommands to modify settings or create a config file.`,
	RunE: runConfigShow,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE:  runConfigShow,
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Long: `Set a configuration value in the config file.

Keys use dot notation, e.g.:
  gladoid config set decision.deadline 10s
  gladoid config set decision.fallback_target random
  gladoid config set results.path ~/.local/share/gladoid/results.db

Run 'gladoid config show' to list every key.`,
	Args: cobra.ExactArgs(2),
	RunE: runConfigSet,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a default config file",
	RunE:  runConfigInit,
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Show the config file path",
	RunE:  runConfigPath,
}

var configEditCmd = &cobra.Command{
	Use:   "edit",
	Short: "Edit the configuration interactively",
	RunE: func(cmd *cobra.Command, args []string) error {
		return configui.Run(viper.GetViper(), configPath())
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configPathCmd)
	configCmd.AddCommand(configEditCmd)
}

func runConfigShow(cmd *cobra.Command, _ []string) error {
	out := cmd.OutOrStdout()

	if used := viper.ConfigFileUsed(); used != "" {
		fmt.Fprintf(out, "# Config file: %s\n", used)
	} else {
		fmt.Fprintln(out, "# Config file: (none - using defaults)")
	}

	settings := make(map[string]any)
	for _, key := range sortedKeys() {
		setNested(settings, key, displayValue(key))
	}
	data, err := yaml.Marshal(settings)
	if err != nil {
		return err
	}
	_, err = out.Write(data)
	return err
}

func runConfigSet(cmd *cobra.Command, args []string) error {
	key, raw := args[0], args[1]

	def, ok := config.DefaultValues()[key]
	if !ok {
		return fmt.Errorf("unknown configuration key: %s\nRun 'gladoid config show' to see valid keys", key)
	}

	value, err := parseValue(def, raw)
	if err != nil {
		return fmt.Errorf("invalid value for %s: %w", key, err)
	}

	previous := viper.Get(key)
	viper.Set(key, value)
	if _, err := config.Load(); err != nil {
		viper.Set(key, previous)
		return err
	}

	path := configPath()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := viper.WriteConfigAs(path); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Set %s = %v\n", key, raw)
	fmt.Fprintf(cmd.OutOrStdout(), "Config saved to %s\n", path)
	return nil
}

func runConfigInit(cmd *cobra.Command, _ []string) error {
	path := config.ConfigFile()
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s\nUse 'gladoid config set' to modify values", path)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	settings := make(map[string]any)
	for _, key := range sortedKeys() {
		value := config.DefaultValues()[key]
		if d, ok := value.(time.Duration); ok {
			value = d.String()
		}
		setNested(settings, key, value)
	}
	data, err := yaml.Marshal(settings)
	if err != nil {
		return err
	}
	header := "# Gladoid configuration\n# Environment variables override any key, e.g. GLADOID_DECISION_DEADLINE=10s\n\n"
	if err := os.WriteFile(path, append([]byte(header), data...), 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Created config file at %s\n", path)
	return nil
}

func runConfigPath(cmd *cobra.Command, _ []string) error {
	fmt.Fprintln(cmd.OutOrStdout(), configPath())
	return nil
}

func sortedKeys() []string {
	keys := make([]string, 0)
	for key := range config.DefaultValues() {
		keys = append(keys, key)
	}
	slices.Sort(keys)
	return keys
}

func displayValue(key string) any {
	switch config.DefaultValues()[key].(type) {
	case time.Duration:
		return viper.GetDuration(key).String()
	case bool:
		return viper.GetBool(key)
	case int, int64:
		return viper.GetInt64(key)
	case float64:
		return viper.GetFloat64(key)
	default:
		return viper.GetString(key)
	}
}

// parseValue converts raw to the type of the key's default value.
func parseValue(def any, raw string) (any, error) {
	switch def.(type) {
	case time.Duration:
		d, err := time.ParseDuration(raw)
		if err != nil {
			return nil, fmt.Errorf("expected a duration such as 5s")
		}
		return d.String(), nil
	case bool:
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return nil, fmt.Errorf("expected true or false")
		}
		return b, nil
	case int, int64:
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("expected integer")
		}
		return n, nil
	case float64:
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, fmt.Errorf("expected decimal value")
		}
		return f, nil
	default:
		return raw, nil
	}
}

// setNested stores value under a dotted key in m.
func setNested(m map[string]any, key string, value any) {
	parts := strings.Split(key, ".")
	for _, p := range parts[:len(parts)-1] {
		child, ok := m[p].(map[string]any)
		if !ok {
			child = make(map[string]any)
			m[p] = child
		}
		m = child
	}
	m[parts[len(parts)-1]] = value
}
