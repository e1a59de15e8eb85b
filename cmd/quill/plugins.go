// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Quill Contributors

package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/quillcms/quill/internal/config"
	"github.com/quillcms/quill/internal/plugin"
	"github.com/quillcms/quill/pkg/hook"
	"github.com/quillcms/quill/pkg/quill"
)

// newPluginsCmd creates the plugins subcommand group.
func newPluginsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plugins",
		Short: "Inspect and validate plugins",
	}
	cmd.AddCommand(newPluginsListCmd())
	cmd.AddCommand(newPluginsValidateCmd())
	return cmd
}

func newPluginsListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the plugins in the plugins directory",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runPluginsList(cmd)
		},
	}
	cmd.Flags().String("plugins.dir", "", "plugins directory (default: XDG data dir)")
	return cmd
}

func runPluginsList(cmd *cobra.Command) error {
	cfg, err := config.Load(configFile, cmd.Flags())
	if err != nil {
		return err
	}

	registry, err := hook.NewRegistry(quill.DefaultNamespace())
	if err != nil {
		return err
	}
	manager := plugin.NewManager(cfg.Plugins.Dir, registry)

	discovered, err := manager.Discover(cmd.Context())
	if err != nil {
		return err
	}
	if len(discovered) == 0 {
		cmd.Printf("no plugins in %s\n", cfg.Plugins.Dir)
		return nil
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "NAME\tVERSION\tTYPE\tDESCRIPTION")
	for _, d := range discovered {
		name := d.Manifest.Name
		if cfg.PluginDisabled(name) {
			name += " (disabled)"
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
			name, d.Manifest.Version, d.Manifest.Type, d.Manifest.Description)
	}
	return w.Flush()
}

func newPluginsValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <manifest>...",
		Short: "Validate plugin manifest files",
		Long: `Validate plugin manifests against the manifest schema and the
semantic rules the host applies at load time. Arguments name manifest
files or plugin directories containing plugin.yaml.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPluginsValidate(cmd, args)
		},
	}
}

func runPluginsValidate(cmd *cobra.Command, args []string) error {
	var firstErr error
	for _, arg := range args {
		path := arg
		if info, err := os.Stat(path); err == nil && info.IsDir() {
			path = filepath.Join(path, "plugin.yaml")
		}

		m, err := validateManifest(path)
		if err != nil {
			cmd.PrintErrf("%s: %v\n", path, err)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		cmd.Printf("%s: ok (%s %s, %s)\n", path, m.Name, m.Version, m.Type)
	}
	return firstErr
}

// validateManifest runs both validation layers over one manifest file:
// the generated JSON schema, then the parser's semantic rules.
func validateManifest(path string) (*plugin.Manifest, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, plugin.ErrManifestInvalid(path, err)
	}

	if err := plugin.ValidateSchema(data); err != nil {
		return nil, plugin.ErrManifestInvalid(path, errors.New(plugin.FormatSchemaError(err)))
	}

	m, err := plugin.ParseManifest(data)
	if err != nil {
		return nil, plugin.ErrManifestInvalid(path, err)
	}
	return m, nil
}
