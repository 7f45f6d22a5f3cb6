// Package cli implements the ytfetch command line.
package cli

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

// Version is set at build time with -ldflags "-X .../internal/cli.Version=...".
var Version = "dev"

// Options holds the persistent flags shared by every command.
type Options struct {
	ConfigFile string // --config
	Verbosity  int    // -v, -vv
	LogFile    string // --log-file
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, color.RedString("Error: %v", err))
		os.Exit(1)
	}
}

// NewRootCmd builds the command tree.
func NewRootCmd() *cobra.Command {
	opts := &Options{}

	root := &cobra.Command{
		Use:           "ytfetch",
		Short:         "Resolve YouTube links and pick playable formats",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := root.PersistentFlags()
	pf.StringVar(&opts.ConfigFile, "config", "", "YAML config file")
	pf.CountVarP(&opts.Verbosity, "verbose", "v", "increase log verbosity (-v debug, -vv trace)")
	pf.StringVar(&opts.LogFile, "log-file", "", "also write logs to this rotating file")

	root.AddCommand(
		newServeCmd(opts),
		newInfoCmd(opts),
		newResolveCmd(opts),
		newURLCmd(opts),
		newDownloadCmd(opts),
		newHistoryCmd(opts),
		newVersionCmd(),
	)
	return root
}
