package ast

import (
	"fmt"
	"strconv"
	"strings"
	"text/scanner"
)

// Parse converts the textual pipeline form into a tree.
//
// The grammar is a chain of function calls separated by '|'. Each call is a
// function name followed by arguments, either named (name=value) or positional
// (collected under "_"). Values are quoted strings, bare identifiers, numbers,
// true/false/null, or a sub-expression wrapped in braces:
//
//	load index="logs-*" | filter query={match field=status value=200} | chart
func Parse(src string) (*Expression, error) {
	p := newParser(src)
	expr, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	if p.tok != scanner.EOF {
		return nil, p.errorf("unexpected %q after expression", p.text())
	}
	return expr, nil
}

type parser struct {
	s   scanner.Scanner
	tok rune
	lit string
}

func newParser(src string) *parser {
	p := &parser{}
	p.s.Init(strings.NewReader(src))
	p.s.Mode = scanner.ScanIdents | scanner.ScanFloats | scanner.ScanStrings
	p.s.IsIdentRune = func(ch rune, i int) bool {
		if ch >= 'a' && ch <= 'z' || ch >= 'A' && ch <= 'Z' || ch == '_' {
			return true
		}
		// digits, dots and dashes only after the first rune
		return i > 0 && (ch >= '0' && ch <= '9' || ch == '.' || ch == '-')
	}
	// Suppress the default error printer; errors surface through tokens.
	p.s.Error = func(*scanner.Scanner, string) {}
	p.next()
	return p
}

func (p *parser) next() {
	p.tok = p.s.Scan()
	p.lit = p.s.TokenText()
}

func (p *parser) text() string {
	if p.tok == scanner.EOF {
		return "end of input"
	}
	return p.lit
}

func (p *parser) errorf(format string, args ...any) error {
	pos := p.s.Pos()
	return fmt.Errorf("parse error at %d:%d: %s", pos.Line, pos.Column, fmt.Sprintf(format, args...))
}

func (p *parser) parseExpression() (*Expression, error) {
	var chain []*Fn
	for {
		fn, err := p.parseFn()
		if err != nil {
			return nil, err
		}
		chain = append(chain, fn)
		if p.tok != '|' {
			break
		}
		p.next()
	}
	return &Expression{Chain: chain}, nil
}

func (p *parser) parseFn() (*Fn, error) {
	if p.tok != scanner.Ident {
		return nil, p.errorf("expected function name, got %q", p.text())
	}
	fn := NewFn(p.lit, Arguments{})
	p.next()

	for p.tok != '|' && p.tok != '}' && p.tok != scanner.EOF {
		name, value, err := p.parseArg()
		if err != nil {
			return nil, err
		}
		fn.Arguments[name] = append(fn.Arguments[name], value)
	}
	return fn, nil
}

func (p *parser) parseArg() (string, any, error) {
	if p.tok == scanner.Ident {
		ident := p.lit
		p.next()
		if p.tok == '=' {
			p.next()
			value, err := p.parseValue()
			return ident, value, err
		}
		// A lone identifier is a positional value.
		return UnnamedArg, keywordValue(ident), nil
	}
	value, err := p.parseValue()
	return UnnamedArg, value, err
}

func (p *parser) parseValue() (any, error) {
	switch p.tok {
	case scanner.String:
		unquoted, err := strconv.Unquote(p.lit)
		if err != nil {
			return nil, p.errorf("bad string literal %s", p.lit)
		}
		p.next()
		return unquoted, nil

	case '\'':
		return p.parseSingleQuoted()

	case scanner.Int, scanner.Float:
		n, err := strconv.ParseFloat(p.lit, 64)
		if err != nil {
			return nil, p.errorf("bad number %q", p.lit)
		}
		p.next()
		return n, nil

	case '-':
		p.next()
		if p.tok != scanner.Int && p.tok != scanner.Float {
			return nil, p.errorf("expected number after '-', got %q", p.text())
		}
		n, err := strconv.ParseFloat(p.lit, 64)
		if err != nil {
			return nil, p.errorf("bad number %q", p.lit)
		}
		p.next()
		return -n, nil

	case '{':
		p.next()
		sub, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		if p.tok != '}' {
			return nil, p.errorf("expected '}', got %q", p.text())
		}
		p.next()
		return sub, nil

	case scanner.Ident:
		ident := p.lit
		p.next()
		return keywordValue(ident), nil

	default:
		return nil, p.errorf("expected argument value, got %q", p.text())
	}
}

// parseSingleQuoted consumes a 'single quoted' string. text/scanner has no
// native support for these, so runes are drained manually.
func (p *parser) parseSingleQuoted() (any, error) {
	var sb strings.Builder
	for p.s.Peek() != '\'' {
		if p.s.Peek() == scanner.EOF {
			return nil, p.errorf("unterminated string literal")
		}
		sb.WriteRune(p.s.Next())
	}
	p.s.Next() // closing quote
	p.next()
	return sb.String(), nil
}

// keywordValue maps bare identifiers onto typed values. Anything that is not
// a keyword stays a string.
func keywordValue(ident string) any {
	switch ident {
	case "true":
		return true
	case "false":
		return false
	case "null":
		return nil
	default:
		return ident
	}
}
