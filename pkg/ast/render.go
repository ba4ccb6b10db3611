package ast

import (
	"regexp"
	"strconv"
	"strings"
)

// bareValue matches strings that survive rendering without quotes.
var bareValue = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_.-]*$`)

// String renders the canonical textual form of the expression. Parsing the
// result yields a tree equal to the original.
func (e *Expression) String() string {
	parts := make([]string, len(e.Chain))
	for i, fn := range e.Chain {
		parts[i] = fn.String()
	}
	return strings.Join(parts, " | ")
}

// String renders a single function call. Positional values come first, named
// arguments follow in sorted name order so output is deterministic.
func (f *Fn) String() string {
	var sb strings.Builder
	sb.WriteString(f.Name)
	for _, v := range f.Arguments[UnnamedArg] {
		sb.WriteByte(' ')
		sb.WriteString(renderValue(v))
	}
	for _, name := range f.ArgNames() {
		if name == UnnamedArg {
			continue
		}
		for _, v := range f.Arguments[name] {
			sb.WriteByte(' ')
			sb.WriteString(name)
			sb.WriteByte('=')
			sb.WriteString(renderValue(v))
		}
	}
	return sb.String()
}

func renderValue(v any) string {
	switch v := v.(type) {
	case nil:
		return "null"
	case bool:
		return strconv.FormatBool(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case string:
		// Bare identifiers that would re-parse as keywords must be quoted.
		if bareValue.MatchString(v) && v != "true" && v != "false" && v != "null" {
			return v
		}
		return strconv.Quote(v)
	case *Expression:
		return "{" + v.String() + "}"
	default:
		// Unreachable for trees built through this package.
		return strconv.Quote("")
	}
}
