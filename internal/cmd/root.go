// Package cmd wires the flowbridge CLI: lifecycle commands around the
// dispatcher and controller for driving a dataflow from a terminal.
package cmd

import (
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/voxmill/flowbridge/internal/config"
)

var rootCmd = &cobra.Command{
	Use:   "flowbridge",
	Short: "Bridge between a studio UI and an external dataflow engine",
	Long: `Flowbridge drives the lifecycle of a dataflow run and bridges its
widget nodes (audio player, prompt input, system log, microphone) to a
shared state store that a UI polls.`,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringP("config", "c", "", "config file (default is $HOME/.config/flowbridge/config.yaml)")
	_ = viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
}

func initConfig() {
	// Defaults first so they apply even without a config file.
	config.SetDefaults()

	if cfgFile := viper.GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(config.ConfigDir())
		viper.AddConfigPath(".")
	}

	viper.AutomaticEnv()
	viper.SetEnvPrefix("FLOWBRIDGE")
	// FLOWBRIDGE_ENGINE_BINARY maps to engine.binary.
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	_ = viper.ReadInConfig()
}
