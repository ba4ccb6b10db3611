package registry

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/vizpipe/vizpipe/pkg/ast"
)

// ArgType names an accepted argument value type.
type ArgType string

const (
	TypeString     ArgType = "string"
	TypeNumber     ArgType = "number"
	TypeBoolean    ArgType = "boolean"
	TypeNull       ArgType = "null"
	TypeExpression ArgType = "expression"
)

// accepts reports whether the value matches the type.
func (t ArgType) accepts(v any) bool {
	switch t {
	case TypeString:
		_, ok := v.(string)
		return ok
	case TypeNumber:
		_, ok := v.(float64)
		return ok
	case TypeBoolean:
		_, ok := v.(bool)
		return ok
	case TypeNull:
		return v == nil
	case TypeExpression:
		_, ok := v.(*ast.Expression)
		return ok
	default:
		return false
	}
}

// ArgDef describes one argument of a function.
type ArgDef struct {
	Types    []ArgType
	Required bool
	// Multi allows the argument to repeat (more than one value).
	Multi   bool
	Aliases []string
	Help    string
}

// FnDef describes a function known to the expression engine.
type FnDef struct {
	Name string
	Help string
	// Args maps canonical argument names to their definitions. The "_" key
	// describes positional values.
	Args map[string]ArgDef
}

// Registry holds function definitions and validates trees against them.
// It is safe for concurrent use.
type Registry struct {
	mu  sync.RWMutex
	fns map[string]FnDef
}

// New returns a registry pre-loaded with the composer's builtin functions.
func New() *Registry {
	r := &Registry{fns: make(map[string]FnDef)}
	for _, def := range builtins() {
		r.Register(def)
	}
	return r
}

// Register adds or replaces a function definition.
func (r *Registry) Register(def FnDef) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fns[def.Name] = def
}

// Lookup returns the definition for a function name.
func (r *Registry) Lookup(name string) (FnDef, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	def, ok := r.fns[name]
	return def, ok
}

// Names returns the registered function names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.fns))
	for name := range r.fns {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Validate checks every known function call in the tree against its
// definition: unknown arguments, missing required arguments, repeated
// single-value arguments and type mismatches are all reported. Calls to
// functions the registry does not know are skipped; hosts register only the
// functions they want checked. Failures aggregate into one error.
func (r *Registry) Validate(expr *ast.Expression) error {
	errs := r.validate(expr, false)
	if len(errs) > 0 {
		return &AggregateError{Errors: errs}
	}
	return nil
}

// ValidateStrict behaves like Validate but also rejects calls to unknown
// functions.
func (r *Registry) ValidateStrict(expr *ast.Expression) error {
	errs := r.validate(expr, true)
	if len(errs) > 0 {
		return &AggregateError{Errors: errs}
	}
	return nil
}

func (r *Registry) validate(expr *ast.Expression, strict bool) []error {
	if expr == nil {
		return nil
	}
	var errs []error
	for _, fn := range expr.Chain {
		errs = append(errs, r.validateFn(fn, strict)...)
		// Sub-expressions are validated regardless of whether the enclosing
		// function is known.
		for _, name := range fn.ArgNames() {
			for _, v := range fn.Arguments[name] {
				if sub, ok := v.(*ast.Expression); ok {
					errs = append(errs, r.validate(sub, strict)...)
				}
			}
		}
	}
	return errs
}

func (r *Registry) validateFn(fn *ast.Fn, strict bool) []error {
	def, known := r.Lookup(fn.Name)
	if !known {
		if strict {
			return []error{&ValidationError{Fn: fn.Name, Reason: "unknown function"}}
		}
		return nil
	}

	var errs []error

	// Resolve aliases up front so required-argument checks see them.
	canonical := make(map[string][]any, len(fn.Arguments))
	for name, values := range fn.Arguments {
		resolved := name
		for argName, argDef := range def.Args {
			for _, alias := range argDef.Aliases {
				if alias == name {
					resolved = argName
				}
			}
		}
		canonical[resolved] = append(canonical[resolved], values...)
	}

	for name, values := range canonical {
		argDef, ok := def.Args[name]
		if !ok {
			errs = append(errs, &ValidationError{Fn: fn.Name, Arg: name, Reason: "unknown argument"})
			continue
		}
		if !argDef.Multi && len(values) > 1 {
			errs = append(errs, &ValidationError{
				Fn: fn.Name, Arg: name,
				Reason: fmt.Sprintf("accepts a single value, got %d", len(values)),
			})
		}
		for _, v := range values {
			if !typeMatches(argDef.Types, v) {
				errs = append(errs, &ValidationError{
					Fn: fn.Name, Arg: name,
					Reason: fmt.Sprintf("expected %s, got %s", typeList(argDef.Types), valueType(v)),
				})
			}
		}
	}

	for name, argDef := range def.Args {
		if argDef.Required {
			if _, ok := canonical[name]; !ok {
				errs = append(errs, &ValidationError{Fn: fn.Name, Arg: name, Reason: "required"})
			}
		}
	}

	return errs
}

func typeMatches(types []ArgType, v any) bool {
	if len(types) == 0 {
		return true
	}
	for _, t := range types {
		if t.accepts(v) {
			return true
		}
	}
	return false
}

func typeList(types []ArgType) string {
	parts := make([]string, len(types))
	for i, t := range types {
		parts[i] = string(t)
	}
	return strings.Join(parts, " or ")
}

func valueType(v any) string {
	switch v.(type) {
	case string:
		return string(TypeString)
	case float64:
		return string(TypeNumber)
	case bool:
		return string(TypeBoolean)
	case nil:
		return string(TypeNull)
	case *ast.Expression:
		return string(TypeExpression)
	default:
		return fmt.Sprintf("%T", v)
	}
}
