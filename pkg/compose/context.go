package compose

import (
	"encoding/json"
	"fmt"
)

// TimeRange bounds an expression evaluation in time. From and To accept
// absolute timestamps or datemath (e.g. "now-15m").
type TimeRange struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// Query is a search query in some query language. Query holds either the raw
// query string or a structured query object, depending on the language.
type Query struct {
	Language string `json:"language"`
	Query    any    `json:"query"`
}

// Filter is an opaque filter clause, passed through to the expression engine
// verbatim.
type Filter map[string]any

// ContextParams are the ambient values threaded through every expression
// evaluation. Each field is optional; absent fields surface as empty argument
// lists on the context node.
type ContextParams struct {
	TimeRange *TimeRange `json:"timeRange,omitempty"`
	Query     *Query     `json:"query,omitempty"`
	Filters   []Filter   `json:"filters,omitempty"`
}

// jsonText serializes a context parameter to the single-element text form the
// context node carries.
func jsonText(v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("serialize context parameter: %w", err)
	}
	return string(data), nil
}
