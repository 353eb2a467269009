// Package xpath compiles the restricted location paths used to describe
// legacy SIF shapes and to query element trees.
//
// The grammar covers child and attribute steps, an optional leading "/",
// bracketed predicates of the form name=value or @name=value joined with
// "and", and a trailing "=value" on the whole path. Anything else inside
// brackets is kept as an opaque Extension so that callers can still print
// the expression back. Compiled paths are immutable and safe for concurrent
// use.
package xpath

import (
	"strconv"
	"strings"
)

// Axis describes the XPath axis used in a step.
type Axis int

const (
	AxisChild Axis = iota
	AxisAttribute
	AxisSelf
)

// Expr is a node of a compiled expression tree.
type Expr interface {
	// String prints the expression back in source form.
	String() string
	// ContextDependent reports whether the value of the expression depends
	// on the node it is evaluated against.
	ContextDependent() bool
}

// Step is one location step with its predicates. Predicates are ANDed.
type Step struct {
	Axis       Axis
	Name       string
	Predicates []Predicate
}

func (s Step) String() string {
	var b strings.Builder
	switch s.Axis {
	case AxisAttribute:
		b.WriteByte('@')
		b.WriteString(escapeName(s.Name))
	case AxisSelf:
		b.WriteByte('.')
	default:
		b.WriteString(escapeName(s.Name))
	}
	var preds []string
	for _, p := range s.Predicates {
		if eq, ok := p.(*Equal); ok && eq.Trailing {
			continue
		}
		preds = append(preds, p.String())
	}
	if len(preds) > 0 {
		b.WriteByte('[')
		b.WriteString(strings.Join(preds, " and "))
		b.WriteByte(']')
	}
	return b.String()
}

func escapeName(name string) string {
	if name == "." {
		return `\.`
	}
	if !strings.ContainsAny(name, "\\/[]='\"()!<>@ \t\r\n") {
		return name
	}
	var b strings.Builder
	for i := 0; i < len(name); i++ {
		if strings.IndexByte("\\/[]='\"()!<>@ \t\r\n", name[i]) >= 0 {
			b.WriteByte('\\')
		}
		b.WriteByte(name[i])
	}
	return b.String()
}

// Path is a compiled location path.
type Path struct {
	Absolute bool
	Steps    []Step

	source     string
	contextDep bool
}

func newPath(source string, abs bool, steps []Step) *Path {
	p := &Path{Absolute: abs, Steps: steps, source: source}
	p.contextDep = !abs
	for _, s := range steps {
		for _, pr := range s.Predicates {
			if pr.ContextDependent() {
				p.contextDep = true
			}
		}
	}
	return p
}

// Source returns the text the path was compiled from.
func (p *Path) Source() string { return p.source }

// ContextDependent reports whether the path is relative or contains a
// context-dependent predicate.
func (p *Path) ContextDependent() bool { return p.contextDep }

// Last returns the final step.
func (p *Path) Last() Step { return p.Steps[len(p.Steps)-1] }

// Trailing returns the "=value" comparison attached to the whole path, if
// any.
func (p *Path) Trailing() *Equal {
	for _, pr := range p.Last().Predicates {
		if eq, ok := pr.(*Equal); ok && eq.Trailing {
			return eq
		}
	}
	return nil
}

func (p *Path) String() string {
	var b strings.Builder
	if p.Absolute {
		b.WriteByte('/')
	}
	for i, s := range p.Steps {
		if i > 0 {
			b.WriteByte('/')
		}
		b.WriteString(s.String())
	}
	if eq := p.Trailing(); eq != nil {
		b.WriteByte('=')
		b.WriteString(eq.Right.String())
	}
	return b.String()
}

// Literal is a constant operand. Value is a string or a float64.
type Literal struct {
	Value  any
	Quoted bool
	raw    string
}

// StringLiteral returns a quoted string literal.
func StringLiteral(s string) *Literal {
	return &Literal{Value: s, Quoted: true, raw: s}
}

// NumberLiteral returns a numeric literal.
func NumberLiteral(f float64) *Literal {
	return &Literal{Value: f, raw: strconv.FormatFloat(f, 'f', -1, 64)}
}

// Text returns the literal's value as text, without quotes or escapes.
func (l *Literal) Text() string {
	if s, ok := l.Value.(string); ok {
		return s
	}
	return l.raw
}

func (l *Literal) String() string {
	if !l.Quoted {
		return l.raw
	}
	if strings.ContainsRune(l.raw, '\'') {
		return `"` + l.raw + `"`
	}
	return "'" + l.raw + "'"
}

func (l *Literal) ContextDependent() bool { return false }

// Extension is bracket content the compiler does not interpret, such as a
// function call.
type Extension struct {
	Text string
}

func (e *Extension) String() string { return e.Text }

func (e *Extension) ContextDependent() bool { return true }
