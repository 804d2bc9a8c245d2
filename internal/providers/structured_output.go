package providers

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

var (
	// ErrEmptyOutput is returned when the model reply is blank.
	ErrEmptyOutput = errors.New("empty structured output")

	// ErrNoJSONObject is returned when the reply has no {...} span.
	ErrNoJSONObject = errors.New("no JSON object in output")

	// ErrMalformedJSON is returned when the located span does not parse.
	ErrMalformedJSON = errors.New("malformed JSON in output")

	// ErrSchemaMismatch is returned when the object violates the schema.
	ErrSchemaMismatch = errors.New("output does not match schema")
)

// ExtractJSONObject returns the substring from the first '{' to the last
// '}' of content. Code fences and surrounding prose fall outside it.
func ExtractJSONObject(content string) (string, bool) {
	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start < 0 || end < start {
		return "", false
	}
	return content[start : end+1], true
}

// CompileSchema compiles a JSON Schema document.
func CompileSchema(raw []byte) (*jsonschema.Schema, error) {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("schema.json", bytes.NewReader(raw)); err != nil {
		return nil, fmt.Errorf("failed to load structured schema: %w", err)
	}
	schema, err := compiler.Compile("schema.json")
	if err != nil {
		return nil, fmt.Errorf("failed to compile structured schema: %w", err)
	}
	return schema, nil
}

// ParseStructured locates the JSON object in a model reply, validates it
// against schema and returns it verbatim. Errors wrap one of the
// sentinels above.
func ParseStructured(content string, schema *jsonschema.Schema) (json.RawMessage, error) {
	if strings.TrimSpace(content) == "" {
		return nil, ErrEmptyOutput
	}
	candidate, ok := ExtractJSONObject(content)
	if !ok {
		return nil, ErrNoJSONObject
	}

	var doc any
	if err := json.Unmarshal([]byte(candidate), &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedJSON, err)
	}
	if schema != nil {
		if err := schema.Validate(doc); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrSchemaMismatch, err)
		}
	}
	return json.RawMessage(candidate), nil
}

// ValidateJSON compiles schemaRaw and validates doc against it.
func ValidateJSON(schemaRaw, doc json.RawMessage) error {
	schema, err := CompileSchema(schemaRaw)
	if err != nil {
		return err
	}
	var parsed any
	if err := json.Unmarshal(doc, &parsed); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedJSON, err)
	}
	if err := schema.Validate(parsed); err != nil {
		return fmt.Errorf("%w: %v", ErrSchemaMismatch, err)
	}
	return nil
}
