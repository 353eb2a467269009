// Package objects defines the canonical SIF element tree and its metadata.
//
// Application code works with one in-memory model regardless of the
// protocol version a counterpart speaks. The model is a tree of Elements
// (complex nodes) and Fields (attributes and simple child elements). Each
// node is described by an ElementDef, which records the canonical name,
// per-version wire tags, sibling ordering and the span of versions that
// carry it.
//
// # Building Metadata
//
// Definitions are declared once through a Builder and frozen into a
// Dictionary:
//
//	b := objects.NewBuilder()
//	sp := b.Object("StudentPersonal")
//	b.Attr(sp, "RefId", objects.TypeGUID, objects.FlagRequired)
//	b.Field(sp, "StateProvinceId", objects.TypeString, objects.FlagOptional,
//	    objects.TagFor(version.All1x, "StatePrId"))
//	dict, err := b.Build()
//
// # Building Trees
//
//	sp := objects.NewElement(dict.Object("StudentPersonal"))
//	_, err := sp.Set("@RefId", uuid.New())
//
// Trees are not safe for concurrent mutation. A Dictionary is immutable and
// may be shared freely.
package objects

import (
	"errors"
	"fmt"
)

var (
	// ErrWrongOwner is returned when a node is added under an element whose
	// definition does not declare it.
	ErrWrongOwner = errors.New("definition not declared by element")
	// ErrUnknownChild is returned when a name does not resolve to a child
	// definition.
	ErrUnknownChild = errors.New("unknown child definition")
)

// Node is either a *Field or an *Element.
type Node interface {
	Def() *ElementDef
	Parent() *Element
	// Value returns the scalar value, or the text content of an element.
	Value() any
	// SetValue normalizes and stores v.
	SetValue(v any) error
	setParent(*Element)
}

// Field is a scalar-valued attribute or simple child element.
type Field struct {
	def    *ElementDef
	parent *Element
	value  any
}

// NewField creates a detached field. The value is normalized with Normalize.
func NewField(def *ElementDef, value any) (*Field, error) {
	f := &Field{def: def}
	if err := f.SetValue(value); err != nil {
		return nil, err
	}
	return f, nil
}

// Def returns the field's definition.
func (f *Field) Def() *ElementDef { return f.def }

// Parent returns the owning element.
func (f *Field) Parent() *Element { return f.parent }

// Name returns the canonical name.
func (f *Field) Name() string { return f.def.name }

// IsAttribute reports whether the field renders as an XML attribute.
func (f *Field) IsAttribute() bool { return f.def.IsAttribute() }

// Value returns the typed value, or nil when absent.
func (f *Field) Value() any { return f.value }

// SetValue stores v after normalizing it to the field's type.
func (f *Field) SetValue(v any) error {
	n, err := Normalize(f.def.typ, v)
	if err != nil {
		return fmt.Errorf("%s: %w", f.def.key, err)
	}
	f.value = n
	return nil
}

func (f *Field) setParent(e *Element) { f.parent = e }

// Element is a complex node with ordered children and optional text.
type Element struct {
	def    *ElementDef
	parent *Element
	value  any
	nodes  []Node
}

// NewElement creates a detached element.
func NewElement(def *ElementDef) *Element {
	return &Element{def: def}
}

// Def returns the element's definition.
func (e *Element) Def() *ElementDef { return e.def }

// Parent returns the owning element, or nil for a root.
func (e *Element) Parent() *Element { return e.parent }

// Name returns the canonical name.
func (e *Element) Name() string { return e.def.name }

// Value returns the element's own text value.
func (e *Element) Value() any { return e.value }

// SetValue stores the element's own text value.
func (e *Element) SetValue(v any) error {
	n, err := Normalize(e.def.typ, v)
	if err != nil {
		return fmt.Errorf("%s: %w", e.def.key, err)
	}
	e.value = n
	return nil
}

func (e *Element) setParent(p *Element) { e.parent = p }

// Nodes returns the children in insertion order. The slice must not be
// modified.
func (e *Element) Nodes() []Node { return e.nodes }

// Len returns the number of child nodes.
func (e *Element) Len() int { return len(e.nodes) }

// Add attaches n as a child. A non-repeatable definition replaces any
// existing child of the same definition in place.
func (e *Element) Add(n Node) error {
	if n.Def().owner != e.def {
		return fmt.Errorf("%w: %s under %s", ErrWrongOwner, n.Def().key, e.def.key)
	}
	if !n.Def().Has(FlagRepeatable) {
		for i, cur := range e.nodes {
			if cur.Def() == n.Def() {
				cur.setParent(nil)
				n.setParent(e)
				e.nodes[i] = n
				return nil
			}
		}
	}
	n.setParent(e)
	e.nodes = append(e.nodes, n)
	return nil
}

// Remove detaches n. It reports whether n was a child.
func (e *Element) Remove(n Node) bool {
	for i, cur := range e.nodes {
		if cur == n {
			e.nodes = append(e.nodes[:i], e.nodes[i+1:]...)
			n.setParent(nil)
			return true
		}
	}
	return false
}

// NodeByDef returns the first child with definition def.
func (e *Element) NodeByDef(def *ElementDef) Node {
	for _, n := range e.nodes {
		if n.Def() == def {
			return n
		}
	}
	return nil
}

// NodesByDef returns every child with definition def.
func (e *Element) NodesByDef(def *ElementDef) []Node {
	var out []Node
	for _, n := range e.nodes {
		if n.Def() == def {
			out = append(out, n)
		}
	}
	return out
}

// Field returns the child field with canonical name name ("@" prefix
// allowed), or nil.
func (e *Element) Field(name string) *Field {
	def := e.def.Child(name)
	if def == nil {
		return nil
	}
	f, _ := e.NodeByDef(def).(*Field)
	return f
}

// Child returns the complex child with canonical name name, or nil.
func (e *Element) Child(name string) *Element {
	def := e.def.Child(name)
	if def == nil {
		return nil
	}
	c, _ := e.NodeByDef(def).(*Element)
	return c
}

// Get returns the value of the named field, or nil.
func (e *Element) Get(name string) any {
	if f := e.Field(name); f != nil {
		return f.value
	}
	return nil
}

// Set stores value in the named field, creating the field if needed.
func (e *Element) Set(name string, value any) (*Field, error) {
	def := e.def.Child(name)
	if def == nil || def.IsComplex() {
		return nil, fmt.Errorf("%w: %s under %s", ErrUnknownChild, name, e.def.key)
	}
	return e.SetDef(def, value)
}

// SetDef stores value in the field with definition def, creating it if
// needed.
func (e *Element) SetDef(def *ElementDef, value any) (*Field, error) {
	if f, ok := e.NodeByDef(def).(*Field); ok {
		return f, f.SetValue(value)
	}
	f, err := NewField(def, value)
	if err != nil {
		return nil, err
	}
	if err := e.Add(f); err != nil {
		return nil, err
	}
	return f, nil
}

// Ensure returns the complex child with definition def, creating it if
// absent.
func (e *Element) Ensure(def *ElementDef) (*Element, error) {
	if c, ok := e.NodeByDef(def).(*Element); ok {
		return c, nil
	}
	c := NewElement(def)
	if err := e.Add(c); err != nil {
		return nil, err
	}
	return c, nil
}

// AddChild creates and attaches a new complex child with definition def.
func (e *Element) AddChild(def *ElementDef) (*Element, error) {
	c := NewElement(def)
	if err := e.Add(c); err != nil {
		return nil, err
	}
	return c, nil
}
