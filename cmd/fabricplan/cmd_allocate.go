package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/newtron-network/fabricplan/pkg/allocator"
	"github.com/newtron-network/fabricplan/pkg/cli"
	"github.com/newtron-network/fabricplan/pkg/spec"
)

var allocateSpine string

var allocateCmd = &cobra.Command{
	Use:   "allocate <fabric-spec>",
	Short: "Allocate leaf uplinks onto spine fabric ports",
	Long: `Allocate every leaf's uplinks round robin across the spines, lowest
free spine port first. Leaf classes are allocated in class id order from one
shared spine port pool; leaf ids are global across classes.

Fabric specs using the single-group fields (uplinksPerLeaf, endpointCount)
are allocated as one group.

The JSON output can be re-checked later with 'fabricplan audit'.

Examples:
  fabricplan allocate fabric.yaml
  fabricplan allocate fabric.yaml --spine celestica-ds4000
  fabricplan allocate fabric.yaml --json > plan.json`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		f, r, err := allocateFile(args[0], allocateSpine)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if jsonOutput {
			if err := writeJSON(out, r); err != nil {
				return err
			}
		} else {
			printAllocation(out, f, r)
		}
		if !r.OK() {
			return errInvalid
		}
		return nil
	},
}

var auditCmd = &cobra.Command{
	Use:   "audit <allocation.json>",
	Short: "Re-check a saved allocation for consistency",
	Long: `Audit an allocation produced by 'fabricplan allocate --json'.

Checks leaf counts and global leaf id order, per-leaf uplink counts, that
spine utilization matches the uplinks placed, and that no spine port is
used twice.

Examples:
  fabricplan allocate fabric.yaml --json > plan.json
  fabricplan audit plan.json`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("reading allocation: %w", err)
		}
		var r allocator.MultiClassResult
		if err := json.Unmarshal(data, &r); err != nil {
			return fmt.Errorf("parsing allocation: %w", err)
		}

		problems := allocator.ValidateMultiClassResult(&r)

		out := cmd.OutOrStdout()
		if jsonOutput {
			if err := writeJSON(out, map[string]interface{}{
				"ok":       len(problems) == 0,
				"problems": problems,
			}); err != nil {
				return err
			}
		} else if len(problems) == 0 {
			fmt.Fprintf(out, "%s allocation is consistent (%d leaves)\n", green("✓"), leafCount(&r))
		} else {
			fmt.Fprintf(out, "%s %d problem(s) found:\n", red("✗"), len(problems))
			for _, p := range problems {
				fmt.Fprintf(out, "  - %s\n", p)
			}
		}
		if len(problems) > 0 {
			return errInvalid
		}
		return nil
	},
}

func init() {
	allocateCmd.Flags().StringVar(&allocateSpine, "spine", "", "Spine model id (overrides the fabric spec's spineModelId)")
}

// allocateFile loads a fabric spec and runs the multi-class allocator over
// the loaded catalog.
func allocateFile(path, spineOverride string) (*spec.FabricSpec, *allocator.MultiClassResult, error) {
	f, err := loadFabric(path)
	if err != nil {
		return nil, nil, err
	}
	if spineOverride != "" {
		f.SpineModelID = spineOverride
	}
	spine, err := loader.GetProfile(f.SpineModelID)
	if err != nil {
		return nil, nil, fmt.Errorf("spine: %w", err)
	}
	return f, allocator.AllocateFabric(f, loader.Catalog(), spine), nil
}

func leafCount(r *allocator.MultiClassResult) int {
	if r.Legacy != nil {
		return len(r.Legacy.LeafMaps)
	}
	return r.TotalLeavesAllocated
}

func printAllocation(out io.Writer, f *spec.FabricSpec, r *allocator.MultiClassResult) {
	fmt.Fprintf(out, "Fabric: %s  spine model: %s  status: %s\n", bold(f.Name), f.SpineModelID, cli.Verdict(r.OK()))

	if !r.OK() {
		fmt.Fprintln(out, "\nIssues:")
		for _, i := range r.OverallIssues {
			fmt.Fprintf(out, "  %s %s\n", red("✗"), i.Message)
		}
		return
	}

	if r.Legacy != nil {
		fmt.Fprintf(out, "\nLeaf model %s, %d leaves\n", f.LeafModelID, len(r.Legacy.LeafMaps))
		printLeafMaps(out, r.Legacy.LeafMaps)
	}
	for _, ca := range r.ClassAllocations {
		fmt.Fprintf(out, "\nClass %s: leaf model %s, %d uplinks/leaf, %d leaves, %d endpoints\n",
			bold(ca.ClassID), ca.LeafModelID, ca.UplinksPerLeaf, ca.LeavesAllocated, ca.TotalEndpoints)
		printLeafMaps(out, ca.LeafMaps)
	}

	fmt.Fprintln(out)
	tbl := cli.NewTableTo(out, "SPINE", "UPLINKS")
	for s, n := range r.SpineUtilization {
		tbl.Row(fmt.Sprintf("spine-%d", s), n)
	}
	tbl.Flush()
}

func printLeafMaps(out io.Writer, maps []allocator.LeafMap) {
	tbl := cli.NewTableTo(out, "LEAF", "PORT", "SPINE", "SPINE PORT").WithPrefix("  ")
	for _, lm := range maps {
		for _, u := range lm.Uplinks {
			tbl.Row(fmt.Sprintf("leaf-%d", lm.LeafID), u.Port, fmt.Sprintf("spine-%d", u.ToSpine), u.SpinePort)
		}
	}
	tbl.Flush()
}
