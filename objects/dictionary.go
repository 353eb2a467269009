package objects

import (
	"errors"
	"fmt"
	"strings"

	"github.com/smnsjas/go-sifcore/version"
)

var (
	// ErrInvalidDefinition is returned by Builder.Build for inconsistent
	// metadata.
	ErrInvalidDefinition = errors.New("invalid element definition")
	// ErrBuilderFrozen is returned when a Builder is used after Build.
	ErrBuilderFrozen = errors.New("builder already built")
)

// Builder assembles element definitions. It is not safe for concurrent use;
// the Dictionary it produces is.
type Builder struct {
	roots  []*ElementDef
	errs   []error
	frozen bool
}

// NewBuilder returns an empty Builder.
func NewBuilder() *Builder {
	return &Builder{}
}

// Object declares a root object such as StudentPersonal.
func (b *Builder) Object(name string, opts ...DefOption) *ElementDef {
	d := &ElementDef{name: name, flags: FlagComplex, key: name, sequence: len(b.roots)}
	b.apply(d, opts)
	b.roots = append(b.roots, d)
	return d
}

// Element declares a complex child of owner.
func (b *Builder) Element(owner *ElementDef, name string, flags Flags, opts ...DefOption) *ElementDef {
	return b.add(owner, name, TypeNone, flags|FlagComplex, opts)
}

// Field declares a simple child element of owner.
func (b *Builder) Field(owner *ElementDef, name string, t Type, flags Flags, opts ...DefOption) *ElementDef {
	return b.add(owner, name, t, flags, opts)
}

// Attr declares an attribute of owner.
func (b *Builder) Attr(owner *ElementDef, name string, t Type, flags Flags, opts ...DefOption) *ElementDef {
	return b.add(owner, name, t, flags|FlagAttribute, opts)
}

// Text sets the scalar type of a complex element's own text content.
func (b *Builder) Text(owner *ElementDef, t Type) {
	if b.frozen {
		b.errs = append(b.errs, ErrBuilderFrozen)
		return
	}
	owner.typ = t
}

func (b *Builder) add(owner *ElementDef, name string, t Type, flags Flags, opts []DefOption) *ElementDef {
	d := &ElementDef{
		name:     name,
		owner:    owner,
		typ:      t,
		flags:    flags,
		sequence: len(owner.children),
		versions: owner.versions,
	}
	if flags&FlagAttribute != 0 {
		d.key = owner.key + "/@" + name
	} else {
		d.key = owner.key + "/" + name
	}
	b.apply(d, opts)
	owner.children = append(owner.children, d)
	return d
}

func (b *Builder) apply(d *ElementDef, opts []DefOption) {
	if b.frozen {
		b.errs = append(b.errs, ErrBuilderFrozen)
	}
	for _, opt := range opts {
		opt(d)
	}
}

// Build validates the definitions and returns an immutable Dictionary.
func (b *Builder) Build() (*Dictionary, error) {
	if b.frozen {
		return nil, ErrBuilderFrozen
	}
	b.frozen = true
	if len(b.errs) > 0 {
		return nil, errors.Join(b.errs...)
	}

	dict := &Dictionary{
		roots: make(map[string]*ElementDef, len(b.roots)),
		byKey: make(map[string]*ElementDef),
	}
	var errs []error
	for _, r := range b.roots {
		if _, dup := dict.roots[r.name]; dup {
			errs = append(errs, fmt.Errorf("%w: duplicate object %s", ErrInvalidDefinition, r.name))
			continue
		}
		dict.roots[r.name] = r
		dict.order = append(dict.order, r)
		errs = append(errs, dict.index(r)...)
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return dict, nil
}

func (d *Dictionary) index(def *ElementDef) []error {
	var errs []error
	if !def.versions.Valid() {
		errs = append(errs, fmt.Errorf("%w: %s: earliest version %s after latest %s",
			ErrInvalidDefinition, def.key, def.versions.Earliest, def.versions.Latest))
	}
	if def.IsAttribute() && def.IsComplex() {
		errs = append(errs, fmt.Errorf("%w: %s: attribute cannot be complex", ErrInvalidDefinition, def.key))
	}
	for _, a := range def.tags {
		if !a.versions.Valid() {
			errs = append(errs, fmt.Errorf("%w: %s: tag %s has inverted range", ErrInvalidDefinition, def.key, a.tag))
		}
	}
	if _, dup := d.byKey[def.key]; dup {
		errs = append(errs, fmt.Errorf("%w: duplicate definition %s", ErrInvalidDefinition, def.key))
	}
	d.byKey[def.key] = def
	for _, c := range def.children {
		errs = append(errs, d.index(c)...)
	}
	return errs
}

// Dictionary is the read-only registry of element definitions. It is safe
// for concurrent use.
type Dictionary struct {
	roots map[string]*ElementDef
	order []*ElementDef
	byKey map[string]*ElementDef
}

// Objects returns the root object definitions in declaration order.
func (d *Dictionary) Objects() []*ElementDef { return d.order }

// Object returns the root object with canonical name name.
func (d *Dictionary) Object(name string) *ElementDef { return d.roots[name] }

// ObjectByTag returns the root object whose wire name in v is tag.
func (d *Dictionary) ObjectByTag(tag string, v version.Version) *ElementDef {
	for _, r := range d.order {
		if r.Supports(v) && r.Tag(v) == tag {
			return r
		}
	}
	return nil
}

// ByKey returns the definition with the given Key.
func (d *Dictionary) ByKey(key string) *ElementDef { return d.byKey[key] }

// Lookup returns the definition named name under owner. A nil owner looks
// up a root object.
func (d *Dictionary) Lookup(owner *ElementDef, name string) *ElementDef {
	if owner == nil {
		return d.roots[name]
	}
	return owner.Child(name)
}

// LookupTag returns the definition under owner whose wire name in v is tag.
func (d *Dictionary) LookupTag(owner *ElementDef, tag string, v version.Version, attribute bool) *ElementDef {
	if owner == nil {
		if attribute {
			return nil
		}
		return d.ObjectByTag(tag, v)
	}
	return owner.ChildByTag(tag, v, attribute)
}

// LookupPath resolves a short canonical path such as "Name/LastName" or
// "@RefId" relative to owner.
func (d *Dictionary) LookupPath(owner *ElementDef, path string) *ElementDef {
	cur := owner
	for seg := range strings.SplitSeq(path, "/") {
		if seg == "" || seg == "." {
			continue
		}
		cur = d.Lookup(cur, seg)
		if cur == nil {
			return nil
		}
	}
	return cur
}
