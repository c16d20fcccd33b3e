package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/voxmill/flowbridge/internal/bridge"
	"github.com/voxmill/flowbridge/internal/config"
	"github.com/voxmill/flowbridge/internal/controller"
	"github.com/voxmill/flowbridge/internal/dataflow"
	"github.com/voxmill/flowbridge/internal/dispatcher"
	"github.com/voxmill/flowbridge/internal/engine"
	"github.com/voxmill/flowbridge/internal/logging"
)

var runEnvFlags []string

var runCmd = &cobra.Command{
	Use:   "run <definition.yml>",
	Short: "Start a dataflow, connect its widget bridges, and run until interrupted",
	Args:  cobra.ExactArgs(1),
	RunE:  runRun,
}

func init() {
	runCmd.Flags().StringArrayVarP(&runEnvFlags, "env", "e", nil,
		"environment variable for the dataflow, KEY=VALUE (repeatable)")
	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger, err := logging.New(cfg.Logging.File, cfg.Logging.Level)
	if err != nil {
		return err
	}
	defer logger.Close()

	def, err := dataflow.Parse(args[0])
	if err != nil {
		return err
	}

	invoker := engine.NewCLI(cfg.Engine.Binary, logger)
	daemon := engine.NewSupervisor(cfg.Engine.Binary, cfg.Engine.DaemonSettle(), logger)
	ctrl := controller.New(def, invoker, daemon, logger)

	for _, kv := range runEnvFlags {
		k, v, ok := strings.Cut(kv, "=")
		if !ok {
			return fmt.Errorf("invalid --env value %q, want KEY=VALUE", kv)
		}
		ctrl.SetEnv(k, v)
	}

	disp := dispatcher.New(ctrl,
		dispatcher.WithLogger(logger),
		dispatcher.WithConnectRetry(cfg.Dispatcher.ConnectAttempts, cfg.Dispatcher.ConnectRetryDelay()),
		dispatcher.WithReadyWindow(cfg.Dispatcher.ReadyTimeout(), cfg.Dispatcher.ReadyPollInterval()),
		dispatcher.WithBridgeOptions(
			bridge.WithDial(engine.Dialer(cfg.Engine.NodeEndpoint)),
			bridge.WithLogger(logger),
			bridge.WithQueueSize(cfg.Bridge.CommandQueueSize),
			bridge.WithRecvTimeout(cfg.Bridge.RecvTimeout()),
			bridge.WithConnectWait(cfg.Bridge.ConnectWait()),
			bridge.WithJoinTimeout(cfg.Bridge.JoinTimeout()),
			bridge.WithSessionTrackLimit(cfg.Bridge.SessionTrackLimit),
		),
	)
	defer disp.Close()

	runID, err := disp.Start()
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "dataflow running: %s\n", runID)
	fmt.Fprintln(cmd.OutOrStdout(), "press Ctrl+C to stop")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	fmt.Fprintln(cmd.OutOrStdout(), "stopping...")
	return disp.Stop()
}
