package ast

import (
	"encoding/json"
	"fmt"
	"sort"
)

// Expression is an ordered chain of function calls, executed left to right by
// the expression engine. The output of each function feeds the next.
type Expression struct {
	Chain []*Fn
}

// Fn is a single function call in a chain.
type Fn struct {
	Name      string
	Arguments Arguments
}

// Arguments maps an argument name to its list of values. Unnamed (positional)
// values are collected under the "_" key. A value is a string, float64, bool,
// nil, or a *Expression sub-expression.
type Arguments map[string][]any

// UnnamedArg is the key under which positional argument values are stored.
const UnnamedArg = "_"

// New builds an expression from the given function calls.
func New(chain ...*Fn) *Expression {
	return &Expression{Chain: chain}
}

// NewFn builds a function call node. Arguments may be nil.
func NewFn(name string, args Arguments) *Fn {
	if args == nil {
		args = Arguments{}
	}
	return &Fn{Name: name, Arguments: args}
}

// Clone returns a deep copy of the expression. The chain, every function node
// and every argument list are freshly allocated, so mutating the copy never
// affects the original.
func (e *Expression) Clone() *Expression {
	if e == nil {
		return nil
	}
	chain := make([]*Fn, len(e.Chain))
	for i, fn := range e.Chain {
		chain[i] = fn.Clone()
	}
	return &Expression{Chain: chain}
}

// Clone returns a deep copy of the function node.
func (f *Fn) Clone() *Fn {
	if f == nil {
		return nil
	}
	args := make(Arguments, len(f.Arguments))
	for name, values := range f.Arguments {
		copied := make([]any, len(values))
		for i, v := range values {
			if sub, ok := v.(*Expression); ok {
				copied[i] = sub.Clone()
			} else {
				copied[i] = v
			}
		}
		args[name] = copied
	}
	return &Fn{Name: f.Name, Arguments: args}
}

// ArgNames returns the argument names of the function call in sorted order.
func (f *Fn) ArgNames() []string {
	names := make([]string, 0, len(f.Arguments))
	for name := range f.Arguments {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// jsonExpression is the wire shape expected by the expression engine.
type jsonExpression struct {
	Type  string    `json:"type"`
	Chain []*jsonFn `json:"chain"`
}

type jsonFn struct {
	Type      string                       `json:"type"`
	Function  string                       `json:"function"`
	Arguments map[string][]json.RawMessage `json:"arguments"`
}

// MarshalJSON encodes the expression in the engine's wire shape, tagging the
// tree with "type":"expression" and each chain node with "type":"function".
func (e *Expression) MarshalJSON() ([]byte, error) {
	out := jsonExpression{Type: "expression", Chain: make([]*jsonFn, len(e.Chain))}
	for i, fn := range e.Chain {
		enc, err := fn.marshal()
		if err != nil {
			return nil, err
		}
		out.Chain[i] = enc
	}
	return json.Marshal(out)
}

func (f *Fn) marshal() (*jsonFn, error) {
	enc := &jsonFn{
		Type:      "function",
		Function:  f.Name,
		Arguments: make(map[string][]json.RawMessage, len(f.Arguments)),
	}
	for name, values := range f.Arguments {
		raws := make([]json.RawMessage, len(values))
		for i, v := range values {
			raw, err := json.Marshal(v)
			if err != nil {
				return nil, fmt.Errorf("argument %q of %q: %w", name, f.Name, err)
			}
			raws[i] = raw
		}
		enc.Arguments[name] = raws
	}
	return enc, nil
}

// UnmarshalJSON decodes the engine wire shape back into a tree, reviving
// nested objects tagged "type":"expression" as sub-expressions.
func (e *Expression) UnmarshalJSON(data []byte) error {
	var in jsonExpression
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	if in.Type != "expression" {
		return fmt.Errorf("expected type %q, got %q", "expression", in.Type)
	}
	chain := make([]*Fn, len(in.Chain))
	for i, enc := range in.Chain {
		if enc.Type != "function" {
			return fmt.Errorf("chain[%d]: expected type %q, got %q", i, "function", enc.Type)
		}
		fn := &Fn{Name: enc.Function, Arguments: make(Arguments, len(enc.Arguments))}
		for name, raws := range enc.Arguments {
			values := make([]any, len(raws))
			for j, raw := range raws {
				v, err := decodeValue(raw)
				if err != nil {
					return fmt.Errorf("chain[%d] argument %q: %w", i, name, err)
				}
				values[j] = v
			}
			fn.Arguments[name] = values
		}
		chain[i] = fn
	}
	e.Chain = chain
	return nil
}

func decodeValue(raw json.RawMessage) (any, error) {
	// Objects are sub-expressions; everything else is a JSON scalar.
	trimmed := bytesTrimLeft(raw)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		var sub Expression
		if err := json.Unmarshal(raw, &sub); err != nil {
			return nil, err
		}
		return &sub, nil
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, err
	}
	switch v.(type) {
	case string, float64, bool, nil:
		return v, nil
	default:
		return nil, fmt.Errorf("unsupported argument value %s", raw)
	}
}

func bytesTrimLeft(b []byte) []byte {
	for len(b) > 0 && (b[0] == ' ' || b[0] == '\t' || b[0] == '\n' || b[0] == '\r') {
		b = b[1:]
	}
	return b
}
