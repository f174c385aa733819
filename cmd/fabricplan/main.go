// fabricplan sizes leaf-spine fabrics and allocates leaf uplinks onto spine
// fabric ports.
package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/newtron-network/fabricplan/pkg/cli"
	"github.com/newtron-network/fabricplan/pkg/settings"
	"github.com/newtron-network/fabricplan/pkg/spec"
	"github.com/newtron-network/fabricplan/pkg/util"
	"github.com/newtron-network/fabricplan/pkg/version"
)

var (
	// Global option flags
	catalogDir string
	logFormat  string
	verbose    bool
	noBuiltin  bool
	jsonOutput bool

	// Global state
	userSettings *settings.Settings
	loader       *spec.Loader
)

// errInvalid marks a run whose result carries issues. The result itself has
// already been printed.
var errInvalid = errors.New("result has issues")

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:               "fabricplan",
	Short:             "Leaf-spine fabric sizing and uplink allocation",
	SilenceUsage:      true,
	SilenceErrors:     true,
	CompletionOptions: cobra.CompletionOptions{HiddenDefaultCmd: true},
	Long: `fabricplan derives how many leaf and spine switches a fabric needs and
maps every leaf uplink onto a concrete spine fabric port.

Fabric specs are YAML or JSON files. Switch profiles come from the catalog
directory (--catalog) and the built-in profiles.

  fabricplan derive fabric.yaml
  fabricplan allocate fabric.yaml --json
  fabricplan graph fabric.yaml | dot -Tsvg > fabric.svg`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if skipInit(cmd) {
			return nil
		}

		// Load user settings
		var err error
		userSettings, err = settings.Load()
		if err != nil {
			util.Warnf("Could not load settings: %v", err)
			userSettings = &settings.Settings{}
			userSettings.Clear()
		}

		if err := configureLogging(); err != nil {
			return err
		}

		if catalogDir == "" {
			catalogDir = userSettings.GetCatalogDir()
		}

		loader = spec.NewLoader(catalogDir)
		if userSettings.BuiltinProfiles && !noBuiltin {
			loader.WithBuiltin()
		}
		if err := loader.Load(); err != nil {
			return fmt.Errorf("loading switch profiles: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&catalogDir, "catalog", "C", "", "Switch profile directory (default from settings)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "Log format: text or json (default from settings)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output")
	rootCmd.PersistentFlags().BoolVar(&noBuiltin, "no-builtin", false, "Do not seed the catalog with built-in profiles")

	for _, cmd := range []*cobra.Command{
		deriveCmd, allocateCmd, auditCmd, portsCmd, profilesCmd, graphCmd, versionCmd,
	} {
		addOutputFlags(cmd)
	}

	rootCmd.AddGroup(
		&cobra.Group{ID: "plan", Title: "Planning:"},
		&cobra.Group{ID: "inspect", Title: "Catalog & Ports:"},
		&cobra.Group{ID: "meta", Title: "Configuration & Meta:"},
	)

	for _, cmd := range []*cobra.Command{deriveCmd, allocateCmd, auditCmd, graphCmd} {
		cmd.GroupID = "plan"
		rootCmd.AddCommand(cmd)
	}
	for _, cmd := range []*cobra.Command{portsCmd, profilesCmd} {
		cmd.GroupID = "inspect"
		rootCmd.AddCommand(cmd)
	}
	for _, cmd := range []*cobra.Command{serveCmd, settingsCmd, versionCmd} {
		cmd.GroupID = "meta"
		rootCmd.AddCommand(cmd)
	}
}

// configureLogging applies -v and --log-format over the saved settings:
// quiet by default, debug on -v.
func configureLogging() error {
	level := userSettings.LogLevel
	if level == "" {
		level = "warn"
	}
	if verbose {
		level = "debug"
	}
	if err := util.SetLogLevel(level); err != nil {
		return fmt.Errorf("log level %q: %w", level, err)
	}

	format := logFormat
	if format == "" {
		format = userSettings.LogFormat
	}
	if format == "" {
		return nil
	}
	return util.SetFormat(format)
}

// skipInit reports whether cmd runs without settings and the profile catalog.
func skipInit(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		switch c.Name() {
		case "settings", "version", "help", "completion":
			return true
		}
	}
	return false
}

// addOutputFlags registers --json as a local flag.
// For noun-group parent commands, this is a PersistentFlag so subcommands inherit.
func addOutputFlags(cmd *cobra.Command) {
	flags := cmd.Flags()
	if cmd.HasSubCommands() {
		flags = cmd.PersistentFlags()
	}
	flags.BoolVar(&jsonOutput, "json", false, "JSON output")
}

// writeJSON prints v as indented JSON.
func writeJSON(out io.Writer, v interface{}) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// loadFabric reads a fabric spec file given as the command's argument.
func loadFabric(path string) (*spec.FabricSpec, error) {
	f, err := spec.LoadFabricSpec(path)
	if err != nil {
		return nil, err
	}
	util.WithFabric(f.Name).Debugf("loaded fabric spec from %s", path)
	return f, nil
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	RunE: func(cmd *cobra.Command, args []string) error {
		if jsonOutput {
			return writeJSON(cmd.OutOrStdout(), version.Get())
		}
		printVersion(cmd.OutOrStdout(), "fabricplan")
		return nil
	},
}

func printVersion(out io.Writer, tool string) {
	if version.Version == "dev" {
		fmt.Fprintf(out, "%s dev build\n", tool)
	} else {
		fmt.Fprintf(out, "%s %s (%s)\n", tool, version.Version, version.GitCommit)
	}
}

// Color helpers delegate to pkg/cli
func green(s string) string  { return cli.Green(s) }
func yellow(s string) string { return cli.Yellow(s) }
func red(s string) string    { return cli.Red(s) }
func bold(s string) string   { return cli.Bold(s) }
