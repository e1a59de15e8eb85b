package plugin

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/invopop/jsonschema"
	jschema "github.com/santhosh-tekuri/jsonschema/v6"
	"gopkg.in/yaml.v3"
)

// manifestSchemaID is the published $id of the manifest schema.
const manifestSchemaID = "https://quillcms.org/schemas/plugin.schema.json"

// GetSchemaID returns the schema $id for use in plugin.yaml files.
func GetSchemaID() string {
	return manifestSchemaID
}

// GenerateSchema reflects the Manifest struct into its JSON Schema.
func GenerateSchema() ([]byte, error) {
	r := jsonschema.Reflector{
		DoNotReference:            true,
		AllowAdditionalProperties: true,
	}
	schema := r.Reflect(&Manifest{})
	schema.ID = jsonschema.ID(manifestSchemaID)
	schema.Title = "Quill Plugin Manifest"
	schema.Description = "Schema for plugin.yaml manifest files"

	data, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal schema: %w", err)
	}
	return data, nil
}

// ValidateSchema validates raw plugin.yaml bytes against the manifest
// schema.
func ValidateSchema(data []byte) error {
	if len(data) == 0 {
		return fmt.Errorf("manifest data is empty")
	}

	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("invalid YAML: %w", err)
	}

	sch, err := compiledManifestSchema()
	if err != nil {
		return fmt.Errorf("failed to compile schema: %w", err)
	}
	if err := sch.Validate(jsonShape(doc)); err != nil {
		return fmt.Errorf("schema validation failed: %w", err)
	}
	return nil
}

// ValidateSettings validates a plugin's effective settings against the
// schema its unit publishes. A nil schema accepts everything.
func ValidateSettings(schema *jsonschema.Schema, settings map[string]any) error {
	if schema == nil {
		return nil
	}

	raw, err := json.Marshal(schema)
	if err != nil {
		return fmt.Errorf("failed to marshal settings schema: %w", err)
	}
	sch, err := compileJSON(raw)
	if err != nil {
		return fmt.Errorf("failed to compile settings schema: %w", err)
	}
	if err := sch.Validate(jsonShape(settings)); err != nil {
		return fmt.Errorf("settings validation failed: %w", err)
	}
	return nil
}

// manifestValidator caches the compiled manifest schema between calls.
var manifestValidator = struct {
	sync.Mutex
	sch *jschema.Schema
}{}

func compiledManifestSchema() (*jschema.Schema, error) {
	manifestValidator.Lock()
	defer manifestValidator.Unlock()

	if manifestValidator.sch == nil {
		raw, err := GenerateSchema()
		if err != nil {
			return nil, err
		}
		sch, err := compileJSON(raw)
		if err != nil {
			return nil, err
		}
		manifestValidator.sch = sch
	}
	return manifestValidator.sch, nil
}

// ResetSchemaCache clears the cached manifest schema. Used for testing.
func ResetSchemaCache() {
	manifestValidator.Lock()
	defer manifestValidator.Unlock()
	manifestValidator.sch = nil
}

// compileJSON compiles raw schema JSON into a validator.
func compileJSON(raw []byte) (*jschema.Schema, error) {
	doc, err := jschema.UnmarshalJSON(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("failed to parse schema JSON: %w", err)
	}
	c := jschema.NewCompiler()
	if err := c.AddResource("schema.json", doc); err != nil {
		return nil, fmt.Errorf("failed to add schema resource: %w", err)
	}
	return c.Compile("schema.json")
}

// jsonShape rewrites YAML-decoded values into the shapes encoding/json
// produces. Integers become float64 so the validator's numeric checks
// behave the same for both sources.
func jsonShape(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = jsonShape(item)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = jsonShape(item)
		}
		return out
	case int:
		return float64(val)
	case int64:
		return float64(val)
	case string, float64, bool, nil:
		return val
	default:
		if b, err := json.Marshal(val); err == nil {
			var out any
			if err := json.Unmarshal(b, &out); err == nil {
				return out
			}
		}
		return val
	}
}

// FormatSchemaError strips the validation wrapper from err for
// user-facing output.
func FormatSchemaError(err error) string {
	if err == nil {
		return ""
	}
	msg := err.Error()
	if rest, ok := strings.CutPrefix(msg, "schema validation failed: "); ok {
		return rest
	}
	return msg
}
