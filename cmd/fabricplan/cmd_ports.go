package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/newtron-network/fabricplan/pkg/util"
)

var portsCmd = &cobra.Command{
	Use:   "ports",
	Short: "Expand and compact port range descriptors",
	Long: `Expand and compact port range descriptors.

A descriptor is either a range pattern such as E1/1-48, where only the last
number is a range, or a literal port name. Several descriptors may be given
at once, as separate arguments or comma separated.

Examples:
  fabricplan ports expand E1/49-56
  fabricplan ports expand E1/1-4,E1/10 --json
  fabricplan ports compact E1/49 E1/50 E1/51 E1/55`,
}

var portsExpandCmd = &cobra.Command{
	Use:   "expand <descriptor>...",
	Short: "Expand descriptors into an ordered port list",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ports := util.ExpandPortRanges(splitDescriptors(args))
		util.Debugf("expanded %v into %d ports", args, len(ports))

		out := cmd.OutOrStdout()
		if jsonOutput {
			if ports == nil {
				ports = []string{}
			}
			return writeJSON(out, ports)
		}
		for _, p := range ports {
			fmt.Fprintln(out, p)
		}
		return nil
	},
}

var portsCompactCmd = &cobra.Command{
	Use:   "compact <port>...",
	Short: "Print a port list in range notation",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		compact := util.CompactPorts(splitDescriptors(args))
		if jsonOutput {
			return writeJSON(cmd.OutOrStdout(), compact)
		}
		fmt.Fprintln(cmd.OutOrStdout(), compact)
		return nil
	},
}

func init() {
	portsCmd.AddCommand(portsExpandCmd)
	portsCmd.AddCommand(portsCompactCmd)
}

// splitDescriptors flattens comma separated arguments.
func splitDescriptors(args []string) []string {
	var descs []string
	for _, a := range args {
		for _, d := range strings.Split(a, ",") {
			if d = strings.TrimSpace(d); d != "" {
				descs = append(descs, d)
			}
		}
	}
	return descs
}
