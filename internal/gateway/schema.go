package gateway

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// ToolTypeFunction is the only tool type the protocol defines today.
const ToolTypeFunction = "function"

// PropertySpec describes one parameter of a tool. Pointer and slice
// fields are omitted entirely when unset instead of being emitted as
// null, because some upstream validators reject explicit nulls.
type PropertySpec struct {
	Type        string   `json:"type,omitempty"`
	Description *string  `json:"description,omitempty"`
	Enum        []string `json:"enum,omitempty"`
}

// Property is one named parameter entry.
type Property struct {
	Name string
	Spec PropertySpec
}

// PropertyList is an order-preserving set of tool parameters. JSON
// objects carry declaration order on the wire but Go maps do not, so
// the list keeps its own order through unmarshal/marshal round trips.
type PropertyList []Property

// Get returns the spec for the named property.
func (p PropertyList) Get(name string) (PropertySpec, bool) {
	for _, prop := range p {
		if prop.Name == name {
			return prop.Spec, true
		}
	}
	return PropertySpec{}, false
}

// UnmarshalJSON decodes a JSON object into the list, preserving key
// order. A JSON null yields an empty list.
func (p *PropertyList) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))

	tok, err := dec.Token()
	if err != nil {
		return fmt.Errorf("decode properties: %w", err)
	}
	if tok == nil {
		*p = nil
		return nil
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("properties: expected object, got %v", tok)
	}

	var props PropertyList
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return fmt.Errorf("decode property name: %w", err)
		}
		name, ok := keyTok.(string)
		if !ok {
			return fmt.Errorf("property name: expected string, got %v", keyTok)
		}

		var spec PropertySpec
		if err := dec.Decode(&spec); err != nil {
			return fmt.Errorf("decode property %q: %w", name, err)
		}
		props = append(props, Property{Name: name, Spec: spec})
	}

	if _, err := dec.Token(); err != nil {
		return fmt.Errorf("decode properties: %w", err)
	}

	*p = props
	return nil
}

// MarshalJSON encodes the list as a JSON object in declaration order.
// A nil list encodes as an empty object, never null.
func (p PropertyList) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')

	for i, prop := range p {
		if i > 0 {
			buf.WriteByte(',')
		}
		name, err := json.Marshal(prop.Name)
		if err != nil {
			return nil, err
		}
		buf.Write(name)
		buf.WriteByte(':')

		spec, err := json.Marshal(prop.Spec)
		if err != nil {
			return nil, err
		}
		buf.Write(spec)
	}

	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// SchemaObject is the JSON-schema-like parameters block of a tool.
// Properties and Required are always emitted, defaulting to empty.
type SchemaObject struct {
	Type       string       `json:"type"`
	Properties PropertyList `json:"properties"`
	Required   []string     `json:"required"`
}

// EmptySchema returns the parameters block synthesized for tools that
// declare none.
func EmptySchema() *SchemaObject {
	return &SchemaObject{
		Type:       "object",
		Properties: PropertyList{},
		Required:   []string{},
	}
}

// CleanSchema normalizes a raw parameters block so every upstream
// dialect accepts it: a missing block is synthesized, a null required
// set becomes empty, and required names without a matching property
// are dropped. Cleaning its own output is a no-op.
func CleanSchema(s *SchemaObject) *SchemaObject {
	if s == nil {
		return EmptySchema()
	}

	out := &SchemaObject{
		Type:       s.Type,
		Properties: s.Properties,
		Required:   s.Required,
	}
	if out.Type == "" {
		out.Type = "object"
	}
	if out.Properties == nil {
		out.Properties = PropertyList{}
	}

	required := make([]string, 0, len(out.Required))
	for _, name := range out.Required {
		if _, ok := out.Properties.Get(name); ok {
			required = append(required, name)
		}
	}
	out.Required = required

	return out
}

// TranslateFunction converts a legacy functions entry into a modern
// tools entry with a cleaned parameters block.
func TranslateFunction(fn FunctionDef) ToolDef {
	return ToolDef{
		Type: ToolTypeFunction,
		Function: FunctionDef{
			Name:        fn.Name,
			Description: fn.Description,
			Parameters:  CleanSchema(fn.Parameters),
		},
	}
}

// TranslateTool cleans the parameters block of a modern tools entry.
func TranslateTool(tool ToolDef) ToolDef {
	out := tool
	if out.Type == "" {
		out.Type = ToolTypeFunction
	}
	out.Function.Parameters = CleanSchema(tool.Function.Parameters)
	return out
}

// MergeToolDeclarations translates legacy functions and modern tools
// into one list, legacy entries first, order preserved. Duplicate tool
// names are passed through untouched; whether to reject them is the
// upstream's call.
func MergeToolDeclarations(functions []FunctionDef, tools []ToolDef) []ToolDef {
	if len(functions) == 0 && len(tools) == 0 {
		return nil
	}

	merged := make([]ToolDef, 0, len(functions)+len(tools))
	for _, fn := range functions {
		merged = append(merged, TranslateFunction(fn))
	}
	for _, tool := range tools {
		merged = append(merged, TranslateTool(tool))
	}
	return merged
}
