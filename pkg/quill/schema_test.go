// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Quill Contributors

package quill

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPayloadSchemas(t *testing.T) {
	schemas, err := PayloadSchemas(DefaultNamespace())
	require.NoError(t, err)

	// Only hooks with a payload prototype get a schema.
	assert.Contains(t, schemas, HookActivate)
	assert.Contains(t, schemas, HookRequest)
	assert.Contains(t, schemas, HookContentSaved)
	assert.Contains(t, schemas, HookAdminMenu)
	assert.NotContains(t, schemas, HookStartup)
	assert.NotContains(t, schemas, HookContentRender)

	var activate map[string]any
	require.NoError(t, json.Unmarshal(schemas[HookActivate], &activate))
	assert.Equal(t, HookActivate+" payload", activate["title"])

	props, ok := activate["properties"].(map[string]any)
	require.True(t, ok, "schema missing properties: %s", schemas[HookActivate])
	assert.Contains(t, props, "name")
	assert.Contains(t, props, "version")

	var menu map[string]any
	require.NoError(t, json.Unmarshal(schemas[HookAdminMenu], &menu))
	assert.Equal(t, "array", menu["type"])
}
