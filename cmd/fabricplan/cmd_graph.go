package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/newtron-network/fabricplan/pkg/wiring"
)

var graphSpine string

var graphCmd = &cobra.Command{
	Use:   "graph <fabric-spec>",
	Short: "Render the allocated wiring as a Graphviz graph or cable list",
	Long: `Allocate the fabric and render the result as a graph: one node per
spine and leaf, one edge per uplink labelled leafPort:spinePort.

The default output is Graphviz DOT. --json prints the flat cable list
instead.

Examples:
  fabricplan graph fabric.yaml | dot -Tsvg > fabric.svg
  fabricplan graph fabric.yaml --json`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		f, r, err := allocateFile(args[0], graphSpine)
		if err != nil {
			return err
		}
		if !r.OK() {
			printAllocation(cmd.ErrOrStderr(), f, r)
			return errInvalid
		}

		w := wiring.Build(f.Name, r)
		out := cmd.OutOrStdout()
		if jsonOutput {
			return writeJSON(out, w.Cables())
		}

		dot, err := w.DOT()
		if err != nil {
			return fmt.Errorf("rendering graph: %w", err)
		}
		fmt.Fprintln(out, string(dot))
		return nil
	},
}

func init() {
	graphCmd.Flags().StringVar(&graphSpine, "spine", "", "Spine model id (overrides the fabric spec's spineModelId)")
}
