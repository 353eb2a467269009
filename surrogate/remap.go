package surrogate

import (
	"errors"
	"fmt"
	"sync"

	"github.com/smnsjas/go-sifcore/objects"
	"github.com/smnsjas/go-sifcore/pointer"
	"github.com/smnsjas/go-sifcore/version"
	"github.com/smnsjas/go-sifcore/wire"
	"github.com/smnsjas/go-sifcore/xpath"
)

var errUnsupportedPath = errors.New("unsupported legacy path")

// PathRemap places a field at the end of a legacy location path. The path
// is a chain of child steps, optionally ending in an attribute step; each
// child step may carry @name='value' predicates, which are written as
// fixed attributes and must match for parsing to claim an element.
//
// The value path selects, relative to the bound definition, where the value
// lives in the canonical tree: "." for the definition itself (its text when
// complex), "@Name" or "Name" for a simple child. It is resolved against
// the definition on first use.
//
//	// 1.x <GradYear Type="Projected">2012</GradYear>
//	NewPathRemap(projected, "GradYear[@Type='Projected']", ".")
//	// 1.x <Homeroom Code="R12"/>
//	NewPathRemap(mostRecent, "Homeroom/@Code", "HomeroomLocalId")
//	// 1.x <PhoneNumber Format="NA" Type="TE">555-1234</PhoneNumber>
//	NewPathRemap(phone, "PhoneNumber[@Format='NA' and @Type='TE']", "Number",
//		WithFixed("@Type", "0096"))
type PathRemap struct {
	def       *objects.ElementDef
	legacy    *xpath.Path
	valuePath string
	pins      []pin
	target    func() (*objects.ElementDef, error)
	fixed     func() ([]fixedField, error)
}

// RemapOption configures a PathRemap.
type RemapOption func(*PathRemap)

// WithFixed pins the canonical field name, relative to the bound complex
// definition, to value. Only instances holding value are rendered and
// presented; instances created by parsing or by pointers get it set.
func WithFixed(name string, value any) RemapOption {
	return func(m *PathRemap) {
		m.pins = append(m.pins, pin{name: name, value: value})
	}
}

type pin struct {
	name  string
	value any
}

type fixedField struct {
	def   *objects.ElementDef
	value any
}

// NewPathRemap compiles the legacy path. Errors wrap ErrConfig.
func NewPathRemap(def *objects.ElementDef, legacyPath, valuePath string, opts ...RemapOption) (*PathRemap, error) {
	p, err := xpath.Compile(legacyPath)
	if err != nil {
		return nil, &ConfigError{Key: def.Key(), Err: err}
	}
	if err := checkLegacyPath(def, p); err != nil {
		return nil, &ConfigError{Key: def.Key(), Err: err}
	}
	m := &PathRemap{def: def, legacy: p, valuePath: valuePath}
	for _, opt := range opts {
		opt(m)
	}
	m.target = sync.OnceValues(m.resolve)
	m.fixed = sync.OnceValues(m.resolveFixed)
	return m, nil
}

func checkLegacyPath(def *objects.ElementDef, p *xpath.Path) error {
	if p.Absolute {
		return fmt.Errorf("%w: %s is absolute", errUnsupportedPath, p)
	}
	for i, s := range p.Steps {
		switch s.Axis {
		case xpath.AxisSelf:
			return fmt.Errorf("%w: %s has a self step", errUnsupportedPath, p)
		case xpath.AxisAttribute:
			if i != len(p.Steps)-1 || len(s.Predicates) > 0 {
				return fmt.Errorf("%w: %s: attribute must be the plain last step", errUnsupportedPath, p)
			}
			if i == 0 && !def.IsAttribute() {
				return fmt.Errorf("%w: %s renders as an attribute of the owner but %s is not an attribute",
					errUnsupportedPath, p, def.Name())
			}
		}
		for _, pr := range s.Predicates {
			eq, ok := pr.(*xpath.Equal)
			if !ok || eq.Trailing || len(eq.Left.Steps) != 1 || eq.Left.Steps[0].Axis != xpath.AxisAttribute {
				return fmt.Errorf("%w: %s: only @name=value predicates are supported", errUnsupportedPath, p)
			}
		}
	}
	return nil
}

func (m *PathRemap) resolve() (*objects.ElementDef, error) {
	if m.valuePath == "" || m.valuePath == "." {
		return m.def, nil
	}
	t := m.def.Child(m.valuePath)
	if t == nil || t.IsComplex() {
		return nil, &ConfigError{Key: m.def.Key(), Err: fmt.Errorf("value path %q does not name a field", m.valuePath)}
	}
	return t, nil
}

func (m *PathRemap) resolveFixed() ([]fixedField, error) {
	if len(m.pins) == 0 {
		return nil, nil
	}
	if !m.def.IsComplex() {
		return nil, &ConfigError{Key: m.def.Key(), Err: errors.New("fixed fields need a complex definition")}
	}
	out := make([]fixedField, 0, len(m.pins))
	for _, p := range m.pins {
		d := m.def.Child(p.name)
		if d == nil || d.IsComplex() {
			return nil, &ConfigError{Key: m.def.Key(), Err: fmt.Errorf("fixed field %q does not name a field", p.name)}
		}
		v, err := objects.Normalize(d.Type(), p.value)
		if err != nil {
			return nil, &ConfigError{Key: m.def.Key(), Err: fmt.Errorf("fixed field %q: %w", p.name, err)}
		}
		out = append(out, fixedField{def: d, value: v})
	}
	return out, nil
}

// holds reports whether the instance n carries every fixed value.
func holds(n objects.Node, fixed []fixedField) bool {
	if len(fixed) == 0 {
		return true
	}
	el, ok := n.(*objects.Element)
	if !ok {
		return false
	}
	for _, f := range fixed {
		got := el.NodeByDef(f.def)
		if got == nil || !xpath.Equals(got.Value(), f.value) {
			return false
		}
	}
	return true
}

func setFixed(el *objects.Element, fixed []fixedField) error {
	for _, f := range fixed {
		if _, err := el.SetDef(f.def, f.value); err != nil {
			return err
		}
	}
	return nil
}

// Legacy returns the compiled legacy path.
func (m *PathRemap) Legacy() *xpath.Path { return m.legacy }

func (m *PathRemap) Def() *objects.ElementDef { return m.def }

func (m *PathRemap) LegacyNames() []string {
	first := m.legacy.Steps[0]
	if first.Axis == xpath.AxisAttribute {
		return []string{"@" + first.Name}
	}
	return []string{first.Name}
}

// valueNode returns the node holding the value for the instance n.
func (m *PathRemap) valueNode(n objects.Node, target *objects.ElementDef) objects.Node {
	if target == m.def {
		return n
	}
	el, ok := n.(*objects.Element)
	if !ok {
		return nil
	}
	return el.NodeByDef(target)
}

func (m *PathRemap) Render(w *wire.Writer, v version.Version, n objects.Node) error {
	target, err := m.target()
	if err != nil {
		return err
	}
	fixed, err := m.fixed()
	if err != nil {
		return err
	}
	if !holds(n, fixed) {
		return nil
	}
	vn := m.valueNode(n, target)
	if vn == nil || vn.Value() == nil {
		return nil
	}
	text, err := wire.FormatterFor(v).Format(target.Type(), vn.Value())
	if err != nil {
		return &wire.ParseError{Name: m.legacy.String(), Version: v, Err: err}
	}

	opened := 0
	for i, s := range m.legacy.Steps {
		if s.Axis == xpath.AxisAttribute {
			if err := w.Attr(s.Name, text); err != nil {
				return err
			}
			break
		}
		if err := w.Start(s.Name); err != nil {
			return err
		}
		opened++
		for _, pr := range s.Predicates {
			eq := pr.(*xpath.Equal)
			if err := w.Attr(eq.Left.Steps[0].Name, eq.Right.Text()); err != nil {
				return err
			}
		}
		if i == len(m.legacy.Steps)-1 {
			if err := w.Text(text); err != nil {
				return err
			}
		}
	}
	for ; opened > 0; opened-- {
		if err := w.End(); err != nil {
			return err
		}
	}
	return nil
}

func (m *PathRemap) TryParse(r *wire.Reader, v version.Version, parent *objects.Element) (bool, error) {
	steps := m.legacy.Steps
	first := steps[0]
	if first.Axis == xpath.AxisAttribute || !r.IsStart(first.Name) || !attrsMatch(r, first) {
		return false, nil
	}
	target, err := m.target()
	if err != nil {
		return false, err
	}
	fixed, err := m.fixed()
	if err != nil {
		return false, err
	}

	depth := r.Depth()
	var text string
	have := false
	for i, s := range steps {
		last := i == len(steps)-1
		if i > 0 && s.Axis == xpath.AxisChild {
			if err := r.Next(); err != nil {
				return true, err
			}
			if !r.IsStart(s.Name) {
				return true, &wire.ParseError{Name: m.legacy.String(), Version: v,
					Err: fmt.Errorf("%w: found %s %q where <%s> expected", ErrPathMismatch, r.Kind(), r.Name(), s.Name)}
			}
			if !attrsMatch(r, s) {
				return true, &wire.ParseError{Name: m.legacy.String(), Version: v,
					Err: fmt.Errorf("%w: <%s> attributes do not match %s", ErrPathMismatch, s.Name, s)}
			}
		}
		if s.Axis == xpath.AxisAttribute {
			text, have = r.Attr(s.Name)
			break
		}
		if last {
			if text, err = r.ReadText(); err != nil {
				return true, err
			}
			have = true
		}
	}
	// A lone element step was consumed by ReadText.
	if len(steps) > 1 {
		if err := finish(r, depth); err != nil {
			return true, err
		}
	}
	if !have {
		return true, nil
	}

	val, err := wire.FormatterFor(v).Parse(target.Type(), text)
	if err != nil {
		return true, &wire.ParseError{Name: m.legacy.String(), Version: v, Err: err}
	}
	return true, m.storeParsed(parent, target, fixed, val)
}

// TryParseAttr handles remaps whose legacy path is a single attribute step.
func (m *PathRemap) TryParseAttr(name, value string, v version.Version, parent *objects.Element) (bool, error) {
	first := m.legacy.Steps[0]
	if len(m.legacy.Steps) != 1 || first.Axis != xpath.AxisAttribute || first.Name != name {
		return false, nil
	}
	target, err := m.target()
	if err != nil {
		return false, err
	}
	fixed, err := m.fixed()
	if err != nil {
		return false, err
	}
	val, err := wire.FormatterFor(v).Parse(target.Type(), value)
	if err != nil {
		return true, &wire.ParseError{Name: "@" + name, Version: v, Err: err}
	}
	return true, m.storeParsed(parent, target, fixed, val)
}

func (m *PathRemap) storeParsed(parent *objects.Element, target *objects.ElementDef, fixed []fixedField, val any) error {
	if !m.def.IsComplex() {
		_, err := parent.SetDef(m.def, val)
		return err
	}
	inst, err := m.newInstance(parent)
	if err != nil {
		return err
	}
	if err := setFixed(inst, fixed); err != nil {
		return err
	}
	if target == m.def {
		return inst.SetValue(val)
	}
	_, err = inst.SetDef(target, val)
	return err
}

// newInstance adds an instance of the definition to parent, or returns the
// existing one when the definition does not repeat.
func (m *PathRemap) newInstance(parent *objects.Element) (*objects.Element, error) {
	if m.def.Has(objects.FlagRepeatable) {
		return parent.AddChild(m.def)
	}
	return parent.Ensure(m.def)
}

// instance returns the first instance under el holding the fixed values,
// creating one when there is none.
func (m *PathRemap) instance(el *objects.Element, fixed []fixedField) (objects.Node, error) {
	if len(fixed) == 0 {
		return ensureNode(el, m.def)
	}
	for _, n := range el.NodesByDef(m.def) {
		if holds(n, fixed) {
			return n, nil
		}
	}
	inst, err := m.newInstance(el)
	if err != nil {
		return nil, err
	}
	return inst, setFixed(inst, fixed)
}

// attrsMatch reports whether the start tag under r satisfies the attribute
// predicates of s.
func attrsMatch(r *wire.Reader, s xpath.Step) bool {
	for _, pr := range s.Predicates {
		eq := pr.(*xpath.Equal)
		got, ok := r.Attr(eq.Left.Steps[0].Name)
		if !ok || !xpath.Equals(got, eq.Right.Value) {
			return false
		}
	}
	return true
}

// finish advances r past the end tag of the element opened at depth.
func finish(r *wire.Reader, depth int) error {
	for {
		switch {
		case r.Kind() == wire.KindEnd && r.Depth() == depth:
			return r.Next()
		case r.Kind() == wire.KindEOF:
			return fmt.Errorf("%w: unexpected EOF", wire.ErrInvalidXML)
		}
		if err := r.Next(); err != nil {
			return err
		}
	}
}

func (m *PathRemap) CreateNodePointer(parent pointer.Pointer, n objects.Node, _ version.Version) pointer.Pointer {
	target, err := m.target()
	if err != nil {
		return nil
	}
	if fixed, err := m.fixed(); err != nil || !holds(n, fixed) {
		return nil
	}
	vn := m.valueNode(n, target)
	if vn == nil {
		return nil
	}
	return m.chain(parent, vn)
}

func (m *PathRemap) CreateChildPointer(parent pointer.Pointer, name string, _ version.Version) (pointer.Pointer, error) {
	if name != m.LegacyNames()[0] {
		return nil, nil
	}
	el, ok := parent.Node().(*objects.Element)
	if !ok {
		return nil, nil
	}
	target, err := m.target()
	if err != nil {
		return nil, err
	}
	fixed, err := m.fixed()
	if err != nil {
		return nil, err
	}
	inst, err := m.instance(el, fixed)
	if err != nil {
		return nil, err
	}
	vn := inst
	if target != m.def {
		if vn, err = ensureNode(inst.(*objects.Element), target); err != nil {
			return nil, err
		}
	}
	return m.chain(parent, vn), nil
}

// chain builds the virtual pointers for the legacy path, with vn behind the
// last step.
func (m *PathRemap) chain(parent pointer.Pointer, vn objects.Node) pointer.Pointer {
	var top, prev *pointer.Virtual
	cur := parent
	for i, s := range m.legacy.Steps {
		var node *pointer.Virtual
		if i == len(m.legacy.Steps)-1 {
			node = pointer.NewLeaf(cur, s.Name, s.Axis == xpath.AxisAttribute, vn)
		} else {
			node = pointer.NewGroup(cur, s.Name)
		}
		for _, pr := range s.Predicates {
			eq := pr.(*xpath.Equal)
			node.AddConstant(eq.Left.Steps[0].Name, eq.Right.Text())
		}
		if prev == nil {
			top = node
		} else {
			prev.SetChild(node)
		}
		prev, cur = node, node
	}
	return top
}
