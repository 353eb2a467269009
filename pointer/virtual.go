package pointer

import (
	"fmt"
	"iter"

	"github.com/smnsjas/go-sifcore/objects"
)

// VirtualKind selects the behavior of a Virtual pointer.
type VirtualKind int

const (
	// VirtualLeaf wraps one canonical node under a legacy name.
	VirtualLeaf VirtualKind = iota
	// VirtualGroup is a legacy wrapper element with one designated child.
	VirtualGroup
	// VirtualConstant is a fixed-value legacy attribute, such as the
	// discriminator of a predicate-selected element.
	VirtualConstant
)

func (k VirtualKind) String() string {
	switch k {
	case VirtualGroup:
		return "group"
	case VirtualConstant:
		return "constant"
	}
	return "leaf"
}

// MergeFunc combines a parsed value with the current canonical value before
// it is stored, e.g. replacing only the date part of a timestamp.
type MergeFunc func(old, v any) any

// Virtual presents part of a canonical tree in a legacy shape. Virtual
// pointers are created on demand by surrogates and hold no state of their
// own beyond the canonical node they wrap.
type Virtual struct {
	kind   VirtualKind
	env    *Env
	parent Pointer
	name   string
	attr   bool

	node  objects.Node
	view  objects.Type
	merge MergeFunc

	child  Pointer
	consts []*Virtual
	value  string
}

// NewLeaf returns a leaf named name under parent that reads and writes n.
func NewLeaf(parent Pointer, name string, attr bool, n objects.Node) *Virtual {
	return &Virtual{kind: VirtualLeaf, env: parent.Env(), parent: parent, name: name, attr: attr, node: n}
}

// NewGroup returns an element named name under parent. Its child is set
// with SetChild.
func NewGroup(parent Pointer, name string) *Virtual {
	return &Virtual{kind: VirtualGroup, env: parent.Env(), parent: parent, name: name}
}

// NewConstant returns an attribute named name whose value is fixed.
func NewConstant(parent Pointer, name, value string) *Virtual {
	return &Virtual{kind: VirtualConstant, env: parent.Env(), parent: parent, name: name, attr: true, value: value}
}

// WithView makes a leaf present its node as type t, storing writes through
// merge when it is non-nil.
func (p *Virtual) WithView(t objects.Type, merge MergeFunc) *Virtual {
	p.view = t
	p.merge = merge
	return p
}

// SetChild designates the child of a group.
func (p *Virtual) SetChild(c Pointer) { p.child = c }

// AddConstant attaches a fixed-value attribute and returns it.
func (p *Virtual) AddConstant(name, value string) *Virtual {
	c := NewConstant(p, name, value)
	p.consts = append(p.consts, c)
	return c
}

// VirtualKind returns the variant.
func (p *Virtual) VirtualKind() VirtualKind { return p.kind }

// Child returns the designated child of a group.
func (p *Virtual) Child() Pointer { return p.child }

func (p *Virtual) Name() string    { return p.name }
func (p *Virtual) Parent() Pointer { return p.parent }
func (p *Virtual) Env() *Env       { return p.env }

func (p *Virtual) Kind() Kind {
	if p.attr {
		return KindAttribute
	}
	return KindElement
}

func (p *Virtual) viewType() objects.Type {
	if p.view != objects.TypeNone {
		return p.view
	}
	return p.node.Def().Type()
}

func (p *Virtual) Value() any {
	switch p.kind {
	case VirtualLeaf:
		return p.node.Value()
	case VirtualConstant:
		return p.value
	}
	return nil
}

func (p *Virtual) Text() (string, bool) {
	switch p.kind {
	case VirtualLeaf:
		return p.env.Format(p.viewType(), p.node.Value())
	case VirtualConstant:
		return p.value, true
	}
	return "", false
}

func (p *Virtual) SetValue(v any) error {
	switch p.kind {
	case VirtualLeaf:
		val, err := p.env.Convert(p.viewType(), v)
		if err != nil {
			return err
		}
		if p.merge != nil && val != nil {
			val = p.merge(p.node.Value(), val)
		}
		return p.node.SetValue(val)
	case VirtualConstant:
		s, ok := v.(string)
		if !ok {
			s = fmt.Sprint(v)
		}
		if s == p.value {
			return nil
		}
		return fmt.Errorf("%w: @%s is fixed to %q", ErrReadOnly, p.name, p.value)
	}
	return fmt.Errorf("%w: %s has no value of its own", ErrReadOnly, p.name)
}

// Clone returns a copy whose constants and virtual child are re-parented
// to the copy. A cloned leaf shares the wrapped node.
func (p *Virtual) Clone() Pointer {
	c := *p
	c.consts = make([]*Virtual, len(p.consts))
	for i, k := range p.consts {
		kc := *k
		kc.parent = &c
		c.consts[i] = &kc
	}
	if v, ok := p.child.(*Virtual); ok {
		cc := v.Clone().(*Virtual)
		cc.parent = &c
		c.child = cc
	}
	return &c
}

func (p *Virtual) Children() iter.Seq[Pointer] {
	return func(yield func(Pointer) bool) {
		if p.kind == VirtualGroup && p.child != nil && p.child.Kind() == KindElement {
			yield(p.child)
		}
	}
}

func (p *Virtual) Attributes() iter.Seq[Pointer] {
	return func(yield func(Pointer) bool) {
		for _, c := range p.consts {
			if !yield(c) {
				return
			}
		}
		if p.kind == VirtualGroup && p.child != nil && p.child.Kind() == KindAttribute {
			yield(p.child)
		}
	}
}

func (p *Virtual) CreateChild(name string, _ int) (Pointer, error) {
	if p.kind == VirtualGroup && p.child != nil && p.child.Kind() == KindElement && p.child.Name() == name {
		return p.child, nil
	}
	return nil, nil
}

func (p *Virtual) CreateAttribute(name string) (Pointer, error) {
	for _, c := range p.consts {
		if c.name == name {
			return c, nil
		}
	}
	if p.kind == VirtualGroup && p.child != nil && p.child.Kind() == KindAttribute && p.child.Name() == name {
		return p.child, nil
	}
	return nil, nil
}

func (p *Virtual) Node() objects.Node { return p.node }

// Empty reports true for a group whose only content is an attribute.
func (p *Virtual) Empty() bool {
	if p.kind != VirtualGroup {
		return false
	}
	return p.child == nil || p.child.Kind() == KindAttribute
}
