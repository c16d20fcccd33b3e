package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/voxmill/flowbridge/internal/config"
	"github.com/voxmill/flowbridge/internal/engine"
	"github.com/voxmill/flowbridge/internal/logging"
)

var (
	stopGraceMs int
	stopForce   bool
)

var stopCmd = &cobra.Command{
	Use:   "stop <run-id>",
	Short: "Stop a running dataflow by run id",
	Args:  cobra.ExactArgs(1),
	RunE:  runStop,
}

func init() {
	stopCmd.Flags().IntVar(&stopGraceMs, "grace-ms", 0, "grace window in milliseconds before nodes are killed")
	stopCmd.Flags().BoolVar(&stopForce, "force", false, "kill nodes immediately (grace of zero)")
	rootCmd.AddCommand(stopCmd)
}

func runStop(cmd *cobra.Command, args []string) error {
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

	var grace *time.Duration
	switch {
	case stopForce:
		zero := time.Duration(0)
		grace = &zero
	case stopGraceMs > 0:
		g := time.Duration(stopGraceMs) * time.Millisecond
		grace = &g
	}

	out, err := invoker.StopDataflow(args[0], grace)
	if err != nil {
		return err
	}
	if out != "" {
		fmt.Fprintln(cmd.OutOrStdout(), out)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "stopped %s\n", args[0])
	return nil
}
