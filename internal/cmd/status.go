package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/voxmill/flowbridge/internal/config"
	"github.com/voxmill/flowbridge/internal/engine"
	"github.com/voxmill/flowbridge/internal/logging"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the engine's dataflow listing",
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger, err := logging.New(cfg.Logging.File, cfg.Logging.Level)
	if err != nil {
		return err
	}
	defer logger.Close()

	invoker := engine.NewCLI(cfg.Engine.Binary, logger)
	out, err := invoker.ListDataflows()
	if err != nil {
		return fmt.Errorf("engine unreachable: %w", err)
	}
	if out == "" {
		fmt.Fprintln(cmd.OutOrStdout(), "no dataflows running")
		return nil
	}
	fmt.Fprint(cmd.OutOrStdout(), out)
	return nil
}
