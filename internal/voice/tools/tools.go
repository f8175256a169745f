// Package tools defines the registry of callable functions the LLM is
// given in its tool-use request and validates the arguments the model
// returns against each tool's schema. Grounded on
// cantina_os/llm/command_functions.py's function-definition list and
// cantina_os/services/tool_executor_service.py's execution contract.
//
// Tool definitions reuse mark3labs/mcp-go's mcp.Tool/mcp.ToolInputSchema
// struct shapes (no MCP transport is used here — only the typed
// definition structs, since they already model exactly what an LLM
// tool-use request needs: name, description, a JSON Schema input shape).
package tools

import (
	"encoding/json"
	"fmt"

	"github.com/invopop/jsonschema"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/xeipuuv/gojsonschema"
)

// Definition pairs an mcp.Tool description with the Go type its arguments
// decode into, so the registry can generate the JSON Schema once from the
// type and reuse it for both the LLM request and argument validation.
type Definition struct {
	Tool   mcp.Tool
	schema *gojsonschema.Schema
}

// Registry holds every tool CantinaOS exposes to the LLM, keyed by name,
// matching the flat function_definitions list
// command_functions.py builds for the API request.
type Registry struct {
	definitions map[string]Definition
}

// NewRegistry builds an empty registry.
func NewRegistry() *Registry {
	return &Registry{definitions: make(map[string]Definition)}
}

// Register adds a tool named name, described by description, whose
// arguments must match the JSON Schema generated from argsShape (a zero
// value of the arguments struct, tagged with `jsonschema:` struct tags).
func (r *Registry) Register(name, description string, argsShape interface{}) error {
	reflector := &jsonschema.Reflector{ExpandedStruct: true}
	schema := reflector.Reflect(argsShape)
	schemaBytes, err := schema.MarshalJSON()
	if err != nil {
		return fmt.Errorf("reflect schema for tool %s: %w", name, err)
	}

	compiled, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(schemaBytes))
	if err != nil {
		return fmt.Errorf("compile schema for tool %s: %w", name, err)
	}

	var inputSchema mcp.ToolInputSchema
	if err := mapJSONSchemaToToolInput(schemaBytes, &inputSchema); err != nil {
		return fmt.Errorf("build tool input schema for %s: %w", name, err)
	}

	r.definitions[name] = Definition{
		Tool: mcp.Tool{
			Name:        name,
			Description: description,
			InputSchema: inputSchema,
		},
		schema: compiled,
	}
	return nil
}

// Tools returns every registered tool definition, the shape the LLM
// request's tool-use list needs.
func (r *Registry) Tools() []mcp.Tool {
	out := make([]mcp.Tool, 0, len(r.definitions))
	for _, def := range r.definitions {
		out = append(out, def.Tool)
	}
	return out
}

// Validate checks argsJSON against the named tool's schema, returning an
// error describing every validation failure if it doesn't conform.
func (r *Registry) Validate(name string, argsJSON []byte) error {
	def, ok := r.definitions[name]
	if !ok {
		return fmt.Errorf("unknown tool: %s", name)
	}
	result, err := def.schema.Validate(gojsonschema.NewBytesLoader(argsJSON))
	if err != nil {
		return fmt.Errorf("validate arguments for %s: %w", name, err)
	}
	if !result.Valid() {
		return fmt.Errorf("arguments for %s failed validation: %v", name, result.Errors())
	}
	return nil
}

func mapJSONSchemaToToolInput(schemaBytes []byte, out *mcp.ToolInputSchema) error {
	type rawSchema struct {
		Type       string                 `json:"type"`
		Properties map[string]interface{} `json:"properties"`
		Required   []string               `json:"required"`
	}
	var raw rawSchema
	if err := json.Unmarshal(schemaBytes, &raw); err != nil {
		return err
	}
	out.Type = "object"
	out.Properties = raw.Properties
	out.Required = raw.Required
	return nil
}
