package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/voxmill/flowbridge/internal/dataflow"
)

var validateCmd = &cobra.Command{
	Use:   "validate <definition.yml>",
	Short: "Parse a dataflow definition and report its widget nodes",
	Args:  cobra.ExactArgs(1),
	RunE:  runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, args []string) error {
	def, err := dataflow.Parse(args[0])
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "%s: %d nodes, %d widget nodes\n",
		args[0], def.NodeCount(), def.WidgetNodeCount())

	for _, node := range def.WidgetNodes() {
		fmt.Fprintf(cmd.OutOrStdout(), "  %s (%s)\n", node.ID, node.Type())
	}

	if reqs := def.EnvRequirements(); len(reqs) > 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "required environment:")
		for _, req := range reqs {
			fmt.Fprintf(cmd.OutOrStdout(), "  %s (referenced by %s)\n", req.Key, req.Node)
		}
		if missing := def.MissingEnv(nil); len(missing) > 0 {
			fmt.Fprintf(cmd.OutOrStdout(), "missing from current environment: %s\n", strings.Join(missing, ", "))
		}
	}
	return nil
}
