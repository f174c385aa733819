package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/newtron-network/fabricplan/pkg/cli"
	"github.com/newtron-network/fabricplan/pkg/topology"
)

var deriveCmd = &cobra.Command{
	Use:   "derive <fabric-spec>",
	Short: "Derive leaf and spine counts for a fabric",
	Long: `Derive the number of leaf and spine switches a fabric spec needs,
together with port totals and the oversubscription ratio.

Structural problems (such as an odd leaf count in an MC-LAG class) are
reported as guards. The command exits non-zero when the topology is invalid.

Examples:
  fabricplan derive fabric.yaml
  fabricplan derive fabric.yaml --json`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := loadFabric(args[0])
		if err != nil {
			return err
		}

		t := topology.Derive(f, loader.Catalog())

		out := cmd.OutOrStdout()
		if jsonOutput {
			if err := writeJSON(out, t); err != nil {
				return err
			}
		} else {
			printDerived(out, f.Name, t)
		}
		if !t.IsValid {
			return errInvalid
		}
		return nil
	},
}

func printDerived(out io.Writer, name string, t *topology.DerivedTopology) {
	fmt.Fprintf(out, "Fabric: %s\n\n", bold(name))
	fmt.Fprintf(out, "  %s %d\n", cli.DotPad("Leaves", 20), t.LeavesNeeded)
	fmt.Fprintf(out, "  %s %d\n", cli.DotPad("Spines", 20), t.SpinesNeeded)
	fmt.Fprintf(out, "  %s %d\n", cli.DotPad("Total ports", 20), t.TotalPorts)
	fmt.Fprintf(out, "  %s %d\n", cli.DotPad("Used ports", 20), t.UsedPorts)
	fmt.Fprintf(out, "  %s %s\n", cli.DotPad("Oversubscription", 20), cli.Ratio(t.OversubscriptionRatio))
	fmt.Fprintf(out, "  %s %s\n", cli.DotPad("Status", 20), cli.Verdict(t.IsValid))

	if len(t.Classes) > 0 {
		fmt.Fprintln(out)
		tbl := cli.NewTableTo(out, "CLASS", "LEAF MODEL", "UPLINKS", "DEMAND", "DOWNLINKS/LEAF", "LEAVES", "MC-LAG")
		for _, c := range t.Classes {
			mcLag := "-"
			if c.MCLAG {
				mcLag = "yes"
			}
			tbl.Row(c.ClassID, c.LeafModelID, c.UplinksPerLeaf, c.EndpointDemand, c.DownlinkPortsPerLeaf, c.LeavesNeeded, mcLag)
		}
		tbl.Flush()
	}

	if len(t.ValidationErrors) > 0 {
		fmt.Fprintln(out, "\nErrors:")
		for _, e := range t.ValidationErrors {
			fmt.Fprintf(out, "  %s %s\n", red("✗"), e)
		}
	}
	if len(t.Guards) > 0 {
		fmt.Fprintln(out, "\nGuards:")
		for _, g := range t.Guards {
			fmt.Fprintf(out, "  %s [%s] %s\n", yellow("!"), g.GuardType(), g.Message())
		}
	}
}
