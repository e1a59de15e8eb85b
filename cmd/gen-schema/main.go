// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Quill Contributors

// Command gen-schema generates the plugin manifest JSON Schema and the
// hook payload schemas.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/quillcms/quill/internal/plugin"
	"github.com/quillcms/quill/pkg/quill"
)

func main() {
	schema, err := plugin.GenerateSchema()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error generating schema: %v\n", err)
		os.Exit(1)
	}

	outPath := filepath.Join("schemas", "plugin.schema.json")
	if len(os.Args) > 1 {
		outPath = os.Args[1]
	}
	if err := os.MkdirAll(filepath.Dir(outPath), 0o750); err != nil {
		fmt.Fprintf(os.Stderr, "Error creating directory: %v\n", err)
		os.Exit(1)
	}

	if err := os.WriteFile(outPath, schema, 0o600); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing file: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Generated %s\n", outPath)

	payloads, err := quill.PayloadSchemas(quill.DefaultNamespace())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error generating payload schemas: %v\n", err)
		os.Exit(1)
	}

	hooksDir := filepath.Join(filepath.Dir(outPath), "hooks")
	if err := os.MkdirAll(hooksDir, 0o750); err != nil {
		fmt.Fprintf(os.Stderr, "Error creating directory: %v\n", err)
		os.Exit(1)
	}

	names := make([]string, 0, len(payloads))
	for name := range payloads {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		path := filepath.Join(hooksDir, name+".schema.json")
		if err := os.WriteFile(path, payloads[name], 0o600); err != nil {
			fmt.Fprintf(os.Stderr, "Error writing file: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Generated %s\n", path)
	}
}
