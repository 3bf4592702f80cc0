// Package tools hosts the built-in tool registry: a set of named
// callables the agent loop can advertise to the model and execute on
// its behalf.
package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/chuanqi87/agent/internal/gateway"
)

// Tool is one callable capability. Schema describes the accepted
// arguments in the shape advertised to the model.
type Tool interface {
	Name() string
	Description() string
	Schema() gateway.ToolDef
	Invoke(ctx context.Context, args Arguments) (string, error)
}

// Arguments is the decoded argument object of a tool call.
type Arguments map[string]any

// ParseArguments decodes a raw tool-call arguments string. The model
// usually sends a JSON object, but a bare string happens in the wild;
// that fallback is preserved under the "query" key so every tool can
// still read its primary input.
func ParseArguments(raw string) Arguments {
	var args Arguments
	if err := json.Unmarshal([]byte(raw), &args); err == nil && args != nil {
		return args
	}
	return Arguments{"query": raw}
}

// Query returns the query-like primary argument, trying the common
// field names in order.
func (a Arguments) Query() string {
	for _, key := range []string{"query", "input", "expression"} {
		if v := a.String(key, ""); v != "" {
			return v
		}
	}
	return ""
}

// String reads a string argument, returning fallback when absent or of
// another type.
func (a Arguments) String(key, fallback string) string {
	if v, ok := a[key].(string); ok {
		return v
	}
	return fallback
}

// Int reads an integer argument. JSON numbers arrive as float64.
func (a Arguments) Int(key string, fallback int) int {
	switch v := a[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	default:
		return fallback
	}
}

// Registry is an ordered collection of tools. Registration order is
// the order schemas are advertised in.
type Registry struct {
	order []string
	tools map[string]Tool
}

// NewRegistry builds a registry over the given tools.
func NewRegistry(tools ...Tool) *Registry {
	r := &Registry{tools: make(map[string]Tool)}
	for _, t := range tools {
		r.Register(t)
	}
	return r
}

// DefaultRegistry returns the built-in tool set.
func DefaultRegistry() *Registry {
	return NewRegistry(
		NewCalculator(),
		NewClock(),
		NewWeather(),
		NewWebSearch(),
		NewRandomNumber(),
	)
}

// Register adds a tool, replacing any previous tool of the same name.
func (r *Registry) Register(t Tool) {
	if _, exists := r.tools[t.Name()]; !exists {
		r.order = append(r.order, t.Name())
	}
	r.tools[t.Name()] = t
}

// Get returns the named tool.
func (r *Registry) Get(name string) (Tool, bool) {
	t, ok := r.tools[name]
	return t, ok
}

// Names lists the registered tool names in registration order.
func (r *Registry) Names() []string {
	names := make([]string, len(r.order))
	copy(names, r.order)
	return names
}

// Len reports the number of registered tools.
func (r *Registry) Len() int {
	return len(r.order)
}

// Schemas returns the advertised schema list in registration order.
func (r *Registry) Schemas() []gateway.ToolDef {
	defs := make([]gateway.ToolDef, 0, len(r.order))
	for _, name := range r.order {
		defs = append(defs, r.tools[name].Schema())
	}
	return defs
}

// Execute runs the named tool against a raw arguments string, which
// may be a JSON object or a bare string.
func (r *Registry) Execute(ctx context.Context, name, rawArgs string) (string, error) {
	t, ok := r.tools[name]
	if !ok {
		return "", fmt.Errorf("tool %q is not registered", name)
	}
	return t.Invoke(ctx, ParseArguments(rawArgs))
}

// schemaDef is a small helper assembling the advertised ToolDef shape.
func schemaDef(name, description string, params *gateway.SchemaObject) gateway.ToolDef {
	return gateway.ToolDef{
		Type: gateway.ToolTypeFunction,
		Function: gateway.FunctionDef{
			Name:        name,
			Description: description,
			Parameters:  gateway.CleanSchema(params),
		},
	}
}

func strProp(description string) gateway.PropertySpec {
	return gateway.PropertySpec{Type: "string", Description: &description}
}

func intProp(description string) gateway.PropertySpec {
	return gateway.PropertySpec{Type: "integer", Description: &description}
}
