package pointer

import (
	"iter"

	"github.com/smnsjas/go-sifcore/objects"
)

// ElementPointer points at a canonical Element.
type ElementPointer struct {
	env    *Env
	parent Pointer
	el     *objects.Element
}

// NewRoot returns a pointer to el with no parent.
func NewRoot(env *Env, el *objects.Element) *ElementPointer {
	return &ElementPointer{env: env, el: el}
}

// Element returns the canonical element.
func (p *ElementPointer) Element() *objects.Element { return p.el }

func (p *ElementPointer) Name() string    { return p.el.Def().Tag(p.env.Version) }
func (p *ElementPointer) Kind() Kind      { return KindElement }
func (p *ElementPointer) Value() any      { return p.el.Value() }
func (p *ElementPointer) Parent() Pointer { return p.parent }
func (p *ElementPointer) Env() *Env       { return p.env }

func (p *ElementPointer) Text() (string, bool) {
	return p.env.Format(p.el.Def().Type(), p.el.Value())
}

func (p *ElementPointer) SetValue(v any) error {
	val, err := p.env.Convert(p.el.Def().Type(), v)
	if err != nil {
		return err
	}
	return p.el.SetValue(val)
}

func (p *ElementPointer) Clone() Pointer {
	c := *p
	return &c
}

func (p *ElementPointer) Children() iter.Seq[Pointer]   { return p.nodes(KindElement) }
func (p *ElementPointer) Attributes() iter.Seq[Pointer] { return p.nodes(KindAttribute) }

func (p *ElementPointer) nodes(kind Kind) iter.Seq[Pointer] {
	return func(yield func(Pointer) bool) {
		for _, n := range p.el.Nodes() {
			for _, c := range p.pointersFor(n) {
				if c.Kind() != kind {
					continue
				}
				if !yield(c) {
					return
				}
			}
		}
	}
}

func (p *ElementPointer) pointersFor(n objects.Node) []Pointer {
	if r := p.env.Resolver; r != nil {
		if ps, claimed := r.NodePointers(p, n); claimed {
			return ps
		}
	}
	if !n.Def().Supports(p.env.Version) {
		return nil
	}
	return []Pointer{p.wrap(n)}
}

func (p *ElementPointer) wrap(n objects.Node) Pointer {
	switch n := n.(type) {
	case *objects.Element:
		return &ElementPointer{env: p.env, parent: p, el: n}
	case *objects.Field:
		return &FieldPointer{env: p.env, parent: p, f: n}
	}
	return nil
}

func (p *ElementPointer) CreateChild(name string, index int) (Pointer, error) {
	if r := p.env.Resolver; r != nil {
		c, claimed, err := r.CreateChildPointer(p, name)
		if err != nil || claimed {
			return c, err
		}
	}
	def := p.el.Def().ChildByTag(name, p.env.Version, false)
	if def == nil || p.claimed(def) {
		return nil, nil
	}
	existing := p.el.NodesByDef(def)
	if index < len(existing) {
		return p.wrap(existing[index]), nil
	}
	if len(existing) > 0 && !def.Has(objects.FlagRepeatable) {
		return p.wrap(existing[0]), nil
	}
	return p.add(def)
}

func (p *ElementPointer) CreateAttribute(name string) (Pointer, error) {
	if r := p.env.Resolver; r != nil {
		c, claimed, err := r.CreateChildPointer(p, "@"+name)
		if err != nil || claimed {
			return c, err
		}
	}
	def := p.el.Def().ChildByTag(name, p.env.Version, true)
	if def == nil || p.claimed(def) {
		return nil, nil
	}
	if n := p.el.NodeByDef(def); n != nil {
		return p.wrap(n), nil
	}
	return p.add(def)
}

func (p *ElementPointer) claimed(def *objects.ElementDef) bool {
	return p.env.Resolver != nil && p.env.Resolver.Claims(def, p.env.Version)
}

func (p *ElementPointer) add(def *objects.ElementDef) (Pointer, error) {
	if def.IsComplex() {
		c, err := p.el.AddChild(def)
		if err != nil {
			return nil, err
		}
		return p.wrap(c), nil
	}
	f, err := objects.NewField(def, nil)
	if err != nil {
		return nil, err
	}
	if err := p.el.Add(f); err != nil {
		return nil, err
	}
	return p.wrap(f), nil
}

func (p *ElementPointer) Node() objects.Node { return p.el }

func (p *ElementPointer) Empty() bool {
	return p.el.Len() == 0 && p.el.Value() == nil
}

// FieldPointer points at a canonical Field.
type FieldPointer struct {
	env    *Env
	parent Pointer
	f      *objects.Field
}

// Field returns the canonical field.
func (p *FieldPointer) Field() *objects.Field { return p.f }

func (p *FieldPointer) Name() string { return p.f.Def().Tag(p.env.Version) }

func (p *FieldPointer) Kind() Kind {
	if p.f.IsAttribute() {
		return KindAttribute
	}
	return KindElement
}

func (p *FieldPointer) Value() any      { return p.f.Value() }
func (p *FieldPointer) Parent() Pointer { return p.parent }
func (p *FieldPointer) Env() *Env       { return p.env }

func (p *FieldPointer) Text() (string, bool) {
	return p.env.Format(p.f.Def().Type(), p.f.Value())
}

func (p *FieldPointer) SetValue(v any) error {
	val, err := p.env.Convert(p.f.Def().Type(), v)
	if err != nil {
		return err
	}
	return p.f.SetValue(val)
}

func (p *FieldPointer) Clone() Pointer {
	c := *p
	return &c
}

func (p *FieldPointer) Children() iter.Seq[Pointer]              { return none }
func (p *FieldPointer) Attributes() iter.Seq[Pointer]            { return none }
func (p *FieldPointer) CreateChild(string, int) (Pointer, error) { return nil, nil }
func (p *FieldPointer) CreateAttribute(string) (Pointer, error)  { return nil, nil }
func (p *FieldPointer) Node() objects.Node                       { return p.f }
func (p *FieldPointer) Empty() bool                              { return false }
