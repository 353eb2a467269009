// Package surrogate renders and parses canonical fields whose shape differs
// in older protocol versions.
//
// A Surrogate is bound to one canonical ElementDef for a span of versions.
// While bound it owns the node completely: the codec asks it to write the
// legacy markup, offers it each start tag under the owning element before
// the default lookup, and the pointer layer asks it for the Virtual pointers
// that present the legacy shape to queries.
//
// Two kinds are provided. TimestampSplit (with ZonedTime) spreads one
// datetime over separate date and zoned time elements. PathRemap places a
// field at the end of an arbitrary legacy location path, optionally with
// fixed discriminator attributes.
package surrogate

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/smnsjas/go-sifcore/objects"
	"github.com/smnsjas/go-sifcore/pointer"
	"github.com/smnsjas/go-sifcore/version"
	"github.com/smnsjas/go-sifcore/wire"
)

var (
	// ErrConfig reports a surrogate that cannot work against its
	// definition, such as a value path naming an unknown field.
	ErrConfig = errors.New("invalid surrogate configuration")
	// ErrPathMismatch reports legacy markup that starts like a surrogate's
	// path but diverges from it.
	ErrPathMismatch = errors.New("legacy path mismatch")
)

// ConfigError wraps a configuration failure with the key of the bound
// definition.
type ConfigError struct {
	Key string
	Err error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("surrogate for %s: %v", e.Key, e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }

// Is matches ErrConfig.
func (e *ConfigError) Is(target error) bool { return target == ErrConfig }

// Surrogate replaces the default wire handling of one definition.
type Surrogate interface {
	// Def returns the canonical definition the surrogate stands in for.
	Def() *objects.ElementDef
	// LegacyNames returns the wire names the surrogate claims under the
	// definition's owner. Attribute names carry a leading "@".
	LegacyNames() []string
	// Render writes the legacy markup for n, or nothing when n has no value.
	Render(w *wire.Writer, v version.Version, n objects.Node) error
	// TryParse inspects the start tag under r. When it recognizes it, it
	// consumes the legacy markup, stores the value under parent and reports
	// true. Otherwise it consumes nothing.
	TryParse(r *wire.Reader, v version.Version, parent *objects.Element) (bool, error)
	// CreateChildPointer materializes the canonical storage behind the
	// legacy child name and returns a pointer presenting it.
	CreateChildPointer(parent pointer.Pointer, name string, v version.Version) (pointer.Pointer, error)
	// CreateNodePointer returns the pointer presenting n, or nil when the
	// backing value is absent.
	CreateNodePointer(parent pointer.Pointer, n objects.Node, v version.Version) pointer.Pointer
}

// SiblingPointers is implemented by surrogates that present one canonical
// node as several sibling legacy elements.
type SiblingPointers interface {
	CreateSiblingPointers(parent pointer.Pointer, n objects.Node, v version.Version) []pointer.Pointer
}

// AttrParser is implemented by surrogates whose legacy shape is an
// attribute of the owning element.
type AttrParser interface {
	TryParseAttr(name, value string, v version.Version, parent *objects.Element) (bool, error)
}

type binding struct {
	s        Surrogate
	versions version.Range
}

// Builder collects surrogate bindings.
type Builder struct {
	bindings []binding
	errs     []error
}

// NewBuilder returns an empty Builder.
func NewBuilder() *Builder { return &Builder{} }

// Bind selects s for its definition in the versions of r.
func (b *Builder) Bind(s Surrogate, r version.Range) *Builder {
	switch {
	case s == nil || s.Def() == nil:
		b.errs = append(b.errs, fmt.Errorf("%w: surrogate without definition", ErrConfig))
	case !r.Valid():
		b.errs = append(b.errs, &ConfigError{Key: s.Def().Key(), Err: fmt.Errorf("inverted range %s", r)})
	default:
		b.bindings = append(b.bindings, binding{s: s, versions: r})
	}
	return b
}

// Build returns the Registry. Two bindings for the same definition must not
// overlap.
func (b *Builder) Build() (*Registry, error) {
	errs := slices.Clone(b.errs)
	reg := &Registry{
		byDef:   make(map[*objects.ElementDef][]binding),
		byOwner: make(map[*objects.ElementDef][]binding),
	}
	for _, bd := range b.bindings {
		def := bd.s.Def()
		for _, prev := range reg.byDef[def] {
			if prev.versions.Overlaps(bd.versions) {
				errs = append(errs, &ConfigError{Key: def.Key(),
					Err: fmt.Errorf("bindings %s and %s overlap", prev.versions, bd.versions)})
			}
		}
		reg.byDef[def] = append(reg.byDef[def], bd)
		reg.byOwner[def.Owner()] = append(reg.byOwner[def.Owner()], bd)
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return reg, nil
}

// Registry dispatches definitions to surrogates by version. A nil Registry
// has no bindings. It is safe for concurrent use.
type Registry struct {
	byDef   map[*objects.ElementDef][]binding
	byOwner map[*objects.ElementDef][]binding
}

// Lookup returns the surrogate bound to def in v, or nil.
func (r *Registry) Lookup(def *objects.ElementDef, v version.Version) Surrogate {
	if r == nil {
		return nil
	}
	for _, bd := range r.byDef[def] {
		if bd.versions.Contains(v) {
			return bd.s
		}
	}
	return nil
}

// Claims reports whether a surrogate is bound to def in v.
func (r *Registry) Claims(def *objects.ElementDef, v version.Version) bool {
	return r.Lookup(def, v) != nil
}

// Candidates returns the surrogates active in v for children of owner, in
// binding order.
func (r *Registry) Candidates(owner *objects.ElementDef, v version.Version) []Surrogate {
	if r == nil {
		return nil
	}
	var out []Surrogate
	for _, bd := range r.byOwner[owner] {
		if bd.versions.Contains(v) {
			out = append(out, bd.s)
		}
	}
	return out
}

// ForLegacyName returns the candidates under owner that claim name.
func (r *Registry) ForLegacyName(owner *objects.ElementDef, name string, v version.Version) []Surrogate {
	var out []Surrogate
	for _, s := range r.Candidates(owner, v) {
		if slices.Contains(s.LegacyNames(), name) {
			out = append(out, s)
		}
	}
	return out
}

// NodePointers implements pointer.Resolver.
func (r *Registry) NodePointers(parent pointer.Pointer, n objects.Node) ([]pointer.Pointer, bool) {
	v := parent.Env().Version
	s := r.Lookup(n.Def(), v)
	if s == nil {
		return nil, false
	}
	if sp, ok := s.(SiblingPointers); ok {
		return sp.CreateSiblingPointers(parent, n, v), true
	}
	if p := s.CreateNodePointer(parent, n, v); p != nil {
		return []pointer.Pointer{p}, true
	}
	return nil, true
}

// CreateChildPointer implements pointer.Resolver. When several surrogates
// claim name, the first that produces a pointer wins.
func (r *Registry) CreateChildPointer(parent pointer.Pointer, name string) (pointer.Pointer, bool, error) {
	el, ok := parent.Node().(*objects.Element)
	if !ok {
		return nil, false, nil
	}
	v := parent.Env().Version
	for _, s := range r.ForLegacyName(el.Def(), name, v) {
		p, err := s.CreateChildPointer(parent, name, v)
		if err != nil {
			return nil, true, err
		}
		if p != nil {
			return p, true, nil
		}
	}
	return nil, false, nil
}

// ensureNode returns the child of el with definition def, creating an empty
// one when absent.
func ensureNode(el *objects.Element, def *objects.ElementDef) (objects.Node, error) {
	if n := el.NodeByDef(def); n != nil {
		return n, nil
	}
	if def.IsComplex() {
		c, err := el.AddChild(def)
		if err != nil {
			return nil, err
		}
		return c, nil
	}
	f, err := objects.NewField(def, nil)
	if err != nil {
		return nil, err
	}
	if err := el.Add(f); err != nil {
		return nil, err
	}
	return f, nil
}

// mergeDate keeps the time of day and location of old and takes the
// calendar date of v.
func mergeDate(old, v any) any {
	o, ok := old.(time.Time)
	n, _ := v.(time.Time)
	if !ok {
		return n
	}
	return time.Date(n.Year(), n.Month(), n.Day(), o.Hour(), o.Minute(), o.Second(), o.Nanosecond(), o.Location())
}

// mergeTime keeps the calendar date of old and takes the time of day and
// location of v.
func mergeTime(old, v any) any {
	o, ok := old.(time.Time)
	n, _ := v.(time.Time)
	if !ok {
		return n
	}
	return time.Date(o.Year(), o.Month(), o.Day(), n.Hour(), n.Minute(), n.Second(), n.Nanosecond(), n.Location())
}
