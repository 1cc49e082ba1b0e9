// Package tools holds tool definitions and the process-wide tool registry.
//
// A tool declares its parameters explicitly. The declaration is rendered to
// a JSON Schema object, which is both advertised to the completion service
// and used to validate the arguments of every call before the tool body runs.
package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/yuy4o/ChatBI/pkg/agent"
)

// ParamType is the JSON type of a tool parameter.
type ParamType string

const (
	TypeString  ParamType = "string"
	TypeInteger ParamType = "integer"
	TypeNumber  ParamType = "number"
	TypeBoolean ParamType = "boolean"
)

// Parameter declares one named argument of a tool.
type Parameter struct {
	Name        string
	Type        ParamType
	Description string
	Required    bool
	Enum        []string
}

// Func is a tool body. It receives validated arguments and returns the
// text fed back to the model.
type Func func(ctx context.Context, args Arguments) (string, error)

// Definition describes a callable tool.
type Definition struct {
	Name        string
	Description string
	Parameters  []Parameter
	Invoke      Func

	schemaJSON json.RawMessage
	schema     *jsonschema.Schema
}

// JSONSchema returns the rendered parameter schema. Only valid after the
// definition has been registered.
func (d *Definition) JSONSchema() json.RawMessage {
	return d.schemaJSON
}

// Schema returns the completion-service-facing description of the tool.
func (d *Definition) Schema() agent.ToolSchema {
	return agent.ToolSchema{
		Name:        d.Name,
		Description: d.Description,
		Parameters:  d.schemaJSON,
	}
}

// ParseArguments decodes the raw argument text of a tool call and validates
// it against the declared parameters. Empty text is treated as "{}".
// A null value for an optional parameter is treated as absent.
func (d *Definition) ParseArguments(raw string) (Arguments, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		raw = "{}"
	}

	var decoded any
	if err := json.Unmarshal([]byte(raw), &decoded); err != nil {
		return nil, fmt.Errorf("arguments are not valid JSON: %w", err)
	}
	obj, ok := decoded.(map[string]any)
	if !ok {
		return nil, errors.New("arguments must be a JSON object")
	}

	for _, p := range d.Parameters {
		if v, present := obj[p.Name]; present && v == nil && !p.Required {
			delete(obj, p.Name)
		}
	}

	if d.schema != nil {
		if err := d.schema.Validate(obj); err != nil {
			return nil, fmt.Errorf("arguments do not match schema: %w", err)
		}
	}
	return Arguments(obj), nil
}

// compile validates the declaration and builds its JSON Schema.
func (d *Definition) compile() error {
	if d.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidDefinition)
	}
	if d.Invoke == nil {
		return fmt.Errorf("%w: tool %q has no body", ErrInvalidDefinition, d.Name)
	}

	properties := make(map[string]any, len(d.Parameters))
	required := []string{}
	for _, p := range d.Parameters {
		if p.Name == "" {
			return fmt.Errorf("%w: tool %q has an unnamed parameter", ErrInvalidDefinition, d.Name)
		}
		if _, dup := properties[p.Name]; dup {
			return fmt.Errorf("%w: tool %q declares parameter %q twice", ErrInvalidDefinition, d.Name, p.Name)
		}
		typ := p.Type
		if typ == "" {
			typ = TypeString
		}
		prop := map[string]any{"type": string(typ)}
		if p.Description != "" {
			prop["description"] = p.Description
		}
		if len(p.Enum) > 0 {
			prop["enum"] = p.Enum
		}
		properties[p.Name] = prop
		if p.Required {
			required = append(required, p.Name)
		}
	}

	doc := map[string]any{
		"type":       "object",
		"properties": properties,
		"required":   required,
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("render schema for %q: %w", d.Name, err)
	}

	schema, err := jsonschema.CompileString(d.Name+".schema.json", string(raw))
	if err != nil {
		return fmt.Errorf("compile schema for %q: %w", d.Name, err)
	}

	d.schemaJSON = raw
	d.schema = schema
	return nil
}

// Arguments are the validated arguments of one tool call.
type Arguments map[string]any

// String returns the named argument as a string, or "" when it is absent
// or not a string.
func (a Arguments) String(name string) string {
	s, _ := a[name].(string)
	return s
}

// Has reports whether the named argument was supplied.
func (a Arguments) Has(name string) bool {
	_, ok := a[name]
	return ok
}
