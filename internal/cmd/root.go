package cmd

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Iron-Ham/gladoid/internal/config"
)

var rootCmd = &cobra.Command{
	Use:   "gladoid",
	Short: "Turn-based arena games against the simulation",
	Long: `Gladoid drives turn-based arena games. You control one fighter; the
simulation runs the rest and applies a default action whenever a decision
is not made before its deadline.

Play locally with 'gladoid play' or host games over a websocket with
'gladoid serve'.`,
	SilenceUsage: true,
}

// Execute runs the root command
func Execute() error {
	bindFlags()
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringP("config", "c", "", "config file (default is $HOME/.config/gladoid/config.yaml)")
}

// bindFlags ties flags that override configuration keys to viper. It runs
// after every command has registered its flags.
func bindFlags() {
	_ = viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
	_ = viper.BindPFlag("decision.deadline", playCmd.Flags().Lookup("deadline"))
	_ = viper.BindPFlag("server.addr", serveCmd.Flags().Lookup("addr"))
}

func initConfig() {
	// Defaults first so they're available without a config file
	config.SetDefaults()

	if cfgFile := viper.GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(config.ConfigDir())
		viper.AddConfigPath(".")
	}

	// e.g. GLADOID_DECISION_DEADLINE for decision.deadline
	config.BindEnv(viper.GetViper())

	// A missing config file is fine; defaults apply
	_ = viper.ReadInConfig()
}

// configPath is where config changes are written.
func configPath() string {
	if used := viper.ConfigFileUsed(); used != "" {
		return used
	}
	return config.ConfigFile()
}
