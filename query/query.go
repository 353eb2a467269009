// Package query reads and writes canonical trees through path expressions
// written against the wire shape of one protocol version.
//
// A Context binds a tree to a version and a surrogate registry. Paths are
// evaluated over node pointers, so legacy expressions resolve through the
// virtual pointers the surrogates provide:
//
//	q := query.New(student, version.SIF15r1, reg)
//	year, err := q.Value("GradYear[@Type='Projected']")
//	err = q.SetValue("Homeroom/@Code", "R12")
//
// SetValue creates missing steps on the way, including the attributes
// named by equality predicates.
package query

import (
	"errors"
	"fmt"

	"github.com/smnsjas/go-sifcore/objects"
	"github.com/smnsjas/go-sifcore/pointer"
	"github.com/smnsjas/go-sifcore/surrogate"
	"github.com/smnsjas/go-sifcore/version"
	"github.com/smnsjas/go-sifcore/xpath"
)

var (
	// ErrNoSuchPath is returned by SetValue when a step names nothing that
	// exists or can be created in the context's version.
	ErrNoSuchPath = errors.New("path does not resolve")
	// ErrNotCreatable is returned by SetValue when a missing step carries a
	// predicate that cannot be satisfied by creating nodes.
	ErrNotCreatable = errors.New("predicate cannot be satisfied by creation")
)

// Context evaluates paths against one tree at one version. Every call
// evaluates against the tree as it is; Walk memoizes within one scope. A
// Context is not safe for concurrent use.
type Context struct {
	root  *pointer.ElementPointer
	cache map[string][]pointer.Pointer // nil outside Walk
}

// New returns a Context over root. reg may be nil.
func New(root *objects.Element, v version.Version, reg *surrogate.Registry) *Context {
	env := pointer.NewEnv(v, nil)
	if reg != nil {
		env.Resolver = reg
	}
	return &Context{root: pointer.NewRoot(env, root)}
}

// Walk calls fn with a Context over the same tree whose Select results for
// position-independent expressions are memoized until fn returns or calls
// SetValue. fn must not change the tree by other means while it runs.
func (c *Context) Walk(fn func(*Context) error) error {
	return fn(&Context{root: c.root, cache: make(map[string][]pointer.Pointer)})
}

// Root returns the pointer to the tree's root.
func (c *Context) Root() pointer.Pointer { return c.root }

// Version returns the version the context views the tree in.
func (c *Context) Version() version.Version { return c.root.Env().Version }

// Select returns the nodes expr selects, in document order.
func (c *Context) Select(expr string) ([]pointer.Pointer, error) {
	p, err := xpath.Cached(expr)
	if err != nil {
		return nil, err
	}
	if c.cache == nil || p.ContextDependent() {
		return p.Select(c.root), nil
	}
	if ps, ok := c.cache[expr]; ok {
		return ps, nil
	}
	ps := p.Select(c.root)
	c.cache[expr] = ps
	return ps, nil
}

// Pointer returns the first node expr selects, or nil.
func (c *Context) Pointer(expr string) (pointer.Pointer, error) {
	ps, err := c.Select(expr)
	if err != nil || len(ps) == 0 {
		return nil, err
	}
	return ps[0], nil
}

// Value returns the typed value of the first node expr selects, or nil.
func (c *Context) Value(expr string) (any, error) {
	p, err := c.Pointer(expr)
	if err != nil || p == nil {
		return nil, err
	}
	return p.Value(), nil
}

// Text returns the wire text of the first node expr selects. ok is false
// when nothing is selected or the value is absent.
func (c *Context) Text(expr string) (s string, ok bool, err error) {
	p, err := c.Pointer(expr)
	if err != nil || p == nil {
		return "", false, err
	}
	s, ok = p.Text()
	return s, ok, nil
}

// SetValue stores v at expr, creating missing steps. Strings are parsed
// with the version's formatter. A nil v takes the literal of a trailing
// comparison, so "Name/@Type=04" sets the Type attribute to "04".
func (c *Context) SetValue(expr string, v any) error {
	p, err := xpath.Cached(expr)
	if err != nil {
		return err
	}
	if v == nil {
		if eq := p.Trailing(); eq != nil {
			v = eq.Right.Text()
		}
	}
	target, err := c.create(p)
	if err != nil {
		return err
	}
	clear(c.cache)
	if err := target.SetValue(v); err != nil {
		return fmt.Errorf("set %s: %w", p, err)
	}
	return nil
}

func (c *Context) create(p *xpath.Path) (pointer.Pointer, error) {
	var cur pointer.Pointer = c.root
	steps := p.Steps
	if p.Absolute {
		if first := steps[0]; first.Name != "*" && first.Name != c.root.Name() {
			return nil, fmt.Errorf("%w: %s: root is <%s>", ErrNoSuchPath, p, c.root.Name())
		}
		steps = steps[1:]
	}
	for _, s := range steps {
		next, err := c.step(cur, s)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", p, err)
		}
		cur = next
	}
	return cur, nil
}

// step returns the first node s selects from cur, creating it when there
// is none.
func (c *Context) step(cur pointer.Pointer, s xpath.Step) (pointer.Pointer, error) {
	if ms := s.Match(cur); len(ms) > 0 {
		return ms[0], nil
	}
	var (
		next pointer.Pointer
		err  error
	)
	switch s.Axis {
	case xpath.AxisSelf:
		next = cur
	case xpath.AxisAttribute:
		next, err = cur.CreateAttribute(s.Name)
	default:
		index := 0
		for ch := range cur.Children() {
			if ch.Name() == s.Name {
				index++
			}
		}
		next, err = cur.CreateChild(s.Name, index)
	}
	if err != nil {
		return nil, err
	}
	if next == nil {
		return nil, fmt.Errorf("%w: no %s under %s", ErrNoSuchPath, s, pointer.Path(cur))
	}
	for _, pr := range s.Predicates {
		if err := satisfy(next, pr); err != nil {
			return nil, err
		}
	}
	return next, nil
}

// satisfy makes pr true for n by writing the compared node.
func satisfy(n pointer.Pointer, pr xpath.Predicate) error {
	eq, ok := pr.(*xpath.Equal)
	if !ok {
		return fmt.Errorf("%w: [%s]", ErrNotCreatable, pr)
	}
	if eq.Trailing {
		return nil
	}
	if len(eq.Left.Steps) != 1 || eq.Left.Absolute {
		return fmt.Errorf("%w: [%s]", ErrNotCreatable, pr)
	}
	s := eq.Left.Steps[0]
	var (
		target pointer.Pointer
		err    error
	)
	switch s.Axis {
	case xpath.AxisAttribute:
		target, err = n.CreateAttribute(s.Name)
	case xpath.AxisChild:
		target, err = n.CreateChild(s.Name, 0)
	default:
		target = n
	}
	if err != nil {
		return err
	}
	if target == nil {
		return fmt.Errorf("%w: [%s]: no %s under %s", ErrNotCreatable, pr, s, pointer.Path(n))
	}
	return target.SetValue(eq.Right.Text())
}
