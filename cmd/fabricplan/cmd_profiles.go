package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/newtron-network/fabricplan/pkg/cli"
	"github.com/newtron-network/fabricplan/pkg/spec"
	"github.com/newtron-network/fabricplan/pkg/util"
)

var profilesCmd = &cobra.Command{
	Use:   "profiles",
	Short: "Inspect the switch profile catalog",
	Long: `Inspect the switch profile catalog.

Profiles are read from the catalog directory (--catalog, or catalog_dir in
settings) on top of the built-in profiles.

Examples:
  fabricplan profiles list
  fabricplan profiles show celestica-ds2000
  fabricplan -C ./profiles --no-builtin profiles list --json`,
}

var profilesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List switch profiles",
	RunE: func(cmd *cobra.Command, args []string) error {
		catalog := loader.Catalog()
		out := cmd.OutOrStdout()

		if jsonOutput {
			profiles := make([]*spec.SwitchProfile, 0, len(catalog))
			for _, id := range catalog.ModelIDs() {
				profiles = append(profiles, catalog[id])
			}
			return writeJSON(out, profiles)
		}

		if len(catalog) == 0 {
			fmt.Fprintln(out, "No switch profiles found")
			return nil
		}

		tbl := cli.NewTableTo(out, "MODEL", "ROLES", "ENDPOINT", "FABRIC", "BUDGET", "SOURCE")
		for _, id := range catalog.ModelIDs() {
			p := catalog[id]
			tbl.Row(id, strings.Join(p.Roles, ","), len(p.EndpointPorts()), len(p.FabricPorts()),
				p.PortBudget(), loader.Source(id))
		}
		tbl.Flush()
		return nil
	},
}

var profilesShowCmd = &cobra.Command{
	Use:   "show <model-id>",
	Short: "Show one switch profile with its expanded ports",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := loader.GetProfile(args[0])
		if err != nil {
			return err
		}
		if jsonOutput {
			return writeJSON(cmd.OutOrStdout(), p)
		}
		printProfile(cmd.OutOrStdout(), p, loader.Source(p.ModelID))
		return nil
	},
}

func init() {
	profilesCmd.AddCommand(profilesListCmd)
	profilesCmd.AddCommand(profilesShowCmd)
}

func printProfile(out io.Writer, p *spec.SwitchProfile, source string) {
	name := p.ModelID
	if p.DisplayName != "" {
		name = fmt.Sprintf("%s (%s)", p.ModelID, p.DisplayName)
	}
	fmt.Fprintf(out, "Profile: %s\n\n", bold(name))
	fmt.Fprintf(out, "  %s %s\n", cli.DotPad("Source", 20), source)
	fmt.Fprintf(out, "  %s %s\n", cli.DotPad("Roles", 20), strings.Join(p.Roles, ", "))

	endpoint, fabric := p.EndpointPorts(), p.FabricPorts()
	fmt.Fprintf(out, "  %s %s (%d)\n", cli.DotPad("Endpoint ports", 20), util.CompactPorts(endpoint), len(endpoint))
	fmt.Fprintf(out, "  %s %s (%d)\n", cli.DotPad("Fabric ports", 20), util.CompactPorts(fabric), len(fabric))
	fmt.Fprintf(out, "  %s %d\n", cli.DotPad("Port budget", 20), p.PortBudget())

	if len(p.SpeedProfiles) > 0 {
		fmt.Fprintln(out)
		tbl := cli.NewTableTo(out, "ROLE", "ENDPOINT GBPS", "FABRIC GBPS").WithPrefix("  ")
		for _, role := range []string{spec.RoleLeaf, spec.RoleSpine} {
			sp, ok := p.SpeedProfiles[role]
			if !ok {
				continue
			}
			tbl.Row(role, sp.EndpointSpeedGbps, sp.FabricSpeedGbps)
		}
		tbl.Flush()
	}
}
