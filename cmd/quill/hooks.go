// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Quill Contributors

package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/quillcms/quill/pkg/quill"
)

// newHooksCmd creates the hooks subcommand group.
func newHooksCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "hooks",
		Short: "Inspect the published hook namespace",
	}
	cmd.AddCommand(newHooksListCmd())
	return cmd
}

func newHooksListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the hooks a stock host publishes",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runHooksList(cmd)
		},
	}
}

func runHooksList(cmd *cobra.Command) error {
	ns := quill.DefaultNamespace()
	cmd.Printf("hook namespace version %s\n\n", ns.Version())

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "HOOK\tKIND\tCRITICAL\tDESCRIPTION")
	for _, def := range ns.All() {
		critical := ""
		if def.Critical {
			critical = "yes"
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", def.Name, def.Kind, critical, def.Description)
	}
	return w.Flush()
}
