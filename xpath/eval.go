package xpath

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/smnsjas/go-sifcore/pointer"
)

// Predicate is a filter applied to the candidates of a step.
type Predicate interface {
	Expr
	Matches(ctx pointer.Pointer) bool
}

// Equal compares the value selected by Left against a literal. A trailing
// Equal comes from a whole-path "path=value" form and has Left ".".
type Equal struct {
	Left     *Path
	Right    *Literal
	Trailing bool
}

func (e *Equal) String() string { return e.Left.String() + "=" + e.Right.String() }

func (e *Equal) ContextDependent() bool {
	return e.Left.ContextDependent() || e.Right.ContextDependent()
}

// Matches reports whether the first node selected by Left from ctx has the
// literal's value.
func (e *Equal) Matches(ctx pointer.Pointer) bool {
	var left any
	if ms := e.Left.Select(ctx); len(ms) > 0 {
		if s, ok := ms[0].Text(); ok {
			left = s
		}
	}
	return Equals(left, e.Right.Value)
}

// Matches always reports false; extensions are carried but not evaluated.
func (e *Extension) Matches(pointer.Pointer) bool { return false }

// Equals compares two operand values. nil equals only nil. When either
// side is a number the other is compared numerically.
func Equals(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	fa, aNum := a.(float64)
	fb, bNum := b.(float64)
	switch {
	case aNum && bNum:
		return fa == fb
	case aNum:
		f, ok := toNumber(b)
		return ok && fa == f
	case bNum:
		f, ok := toNumber(a)
		return ok && f == fb
	}
	return fmt.Sprint(a) == fmt.Sprint(b)
}

func toNumber(v any) (float64, bool) {
	s, ok := v.(string)
	if !ok {
		return 0, false
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	return f, err == nil
}

// Select evaluates the path from ctx. An absolute path starts at the root
// of ctx, whose name must match the first step.
func (p *Path) Select(ctx pointer.Pointer) []pointer.Pointer {
	if ctx == nil {
		return nil
	}
	steps := p.Steps
	cur := []pointer.Pointer{ctx}
	if p.Absolute {
		root := ctx
		for root.Parent() != nil {
			root = root.Parent()
		}
		if !steps[0].accepts(root) {
			return nil
		}
		cur = []pointer.Pointer{root}
		steps = steps[1:]
	}
	for _, s := range steps {
		var next []pointer.Pointer
		for _, c := range cur {
			next = s.appendMatches(next, c)
		}
		if len(next) == 0 {
			return nil
		}
		cur = next
	}
	return cur
}

// First returns the first node selected from ctx, or nil.
func (p *Path) First(ctx pointer.Pointer) pointer.Pointer {
	if ms := p.Select(ctx); len(ms) > 0 {
		return ms[0]
	}
	return nil
}

// Eval is shorthand for p.Select(ctx).
func Eval(p *Path, ctx pointer.Pointer) []pointer.Pointer {
	return p.Select(ctx)
}

// Match returns the nodes the single step s selects from ctx.
func (s Step) Match(ctx pointer.Pointer) []pointer.Pointer {
	return s.appendMatches(nil, ctx)
}

func (s Step) appendMatches(out []pointer.Pointer, ctx pointer.Pointer) []pointer.Pointer {
	switch s.Axis {
	case AxisSelf:
		if s.accepts(ctx) {
			out = append(out, ctx)
		}
	case AxisAttribute:
		for c := range ctx.Attributes() {
			if s.accepts(c) {
				out = append(out, c)
			}
		}
	default:
		for c := range ctx.Children() {
			if s.accepts(c) {
				out = append(out, c)
			}
		}
	}
	return out
}

func (s Step) accepts(p pointer.Pointer) bool {
	if s.Axis != AxisSelf && s.Name != "*" && p.Name() != s.Name {
		return false
	}
	for _, pr := range s.Predicates {
		if !pr.Matches(p) {
			return false
		}
	}
	return true
}
