package main

import (
	"github.com/spf13/cobra"

	// Bundled native plugins register their factories on import.
	_ "github.com/quillcms/quill/plugins/hello-world"
)

// Global flags available to all subcommands.
var configFile string

// NewRootCmd creates the root command for the Quill CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "quill",
		Short: "Quill - a pluggable content platform host",
		Long: `Quill hosts content platform plugins behind a versioned hook
namespace. Plugins extend the host through action and filter hooks,
run as native units compiled into the binary or as sandboxed Lua
scripts, and are configured per plugin from the host configuration.`,
	}

	cmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path")

	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newPluginsCmd())
	cmd.AddCommand(newHooksCmd())
	cmd.AddCommand(newStatusCmd())

	return cmd
}
