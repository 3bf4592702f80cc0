package tools

import (
	"context"
	"fmt"

	"github.com/chuanqi87/agent/internal/gateway"
)

// WebSearch is a placeholder search tool returning a canned result.
// It keeps the schema and calling convention of a real search backend
// so one can be dropped in behind the same interface.
type WebSearch struct{}

func NewWebSearch() *WebSearch { return &WebSearch{} }

func (s *WebSearch) Name() string { return "web_search" }

func (s *WebSearch) Description() string {
	return "Search the web for information. Input is a search query."
}

func (s *WebSearch) Schema() gateway.ToolDef {
	return schemaDef(s.Name(), s.Description(), &gateway.SchemaObject{
		Type: "object",
		Properties: gateway.PropertyList{
			{Name: "query", Spec: strProp("Search keywords")},
		},
		Required: []string{"query"},
	})
}

func (s *WebSearch) Invoke(_ context.Context, args Arguments) (string, error) {
	query := args.Query()
	if query == "" {
		return "", fmt.Errorf("web_search: empty query")
	}
	return fmt.Sprintf("Search results for %q: no live search backend is configured; this is a placeholder result.", query), nil
}
