// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Quill Contributors

package quill

import (
	"encoding/json"
	"fmt"

	"github.com/invopop/jsonschema"

	"github.com/quillcms/quill/pkg/hook"
)

// PayloadSchemas reflects the payload prototype of every definition in
// ns that declares one, keyed by hook name. The registry never checks
// payloads at dispatch; the schemas document the contract for plugin
// authors and tooling.
func PayloadSchemas(ns *hook.Namespace) (map[string][]byte, error) {
	r := jsonschema.Reflector{
		DoNotReference:            true,
		AllowAdditionalProperties: true,
	}

	out := make(map[string][]byte)
	for _, def := range ns.All() {
		if def.Payload == nil {
			continue
		}

		schema := r.Reflect(def.Payload)
		schema.Title = def.Name + " payload"
		schema.Description = def.Description

		data, err := json.MarshalIndent(schema, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("failed to marshal %s payload schema: %w", def.Name, err)
		}
		out[def.Name] = data
	}
	return out, nil
}
