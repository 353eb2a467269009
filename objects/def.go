package objects

import (
	"strings"

	"github.com/smnsjas/go-sifcore/version"
)

// Flags describe how a field or object participates in a document.
type Flags uint16

// Definition flags.
const (
	FlagRequired Flags = 1 << iota
	FlagOptional
	FlagMandatory
	FlagConditional
	FlagRepeatable
	FlagAttribute
	FlagComplex
	FlagDeprecated
)

// ElementDef is the static metadata of a field or object: its canonical
// name, the tag it uses in each protocol version, its position among its
// siblings, and the span of versions that carry it.
//
// ElementDefs are created through a Builder and are immutable once the
// Builder has produced a Dictionary. Pointer identity is the identity of a
// definition; surrogate dispatch is keyed by it.
type ElementDef struct {
	name     string
	owner    *ElementDef
	typ      Type
	flags    Flags
	sequence int
	versions version.Range
	tags     []tagAlias
	seqs     []seqOverride
	children []*ElementDef
	key      string
}

type tagAlias struct {
	versions version.Range
	tag      string
}

type seqOverride struct {
	versions version.Range
	sequence int
}

// Name returns the canonical (current protocol) name.
func (d *ElementDef) Name() string { return d.name }

// Key returns the slash-separated canonical path from the root object,
// e.g. "StudentPersonal/Name/LastName" or "StudentPersonal/@RefId".
func (d *ElementDef) Key() string { return d.key }

// Owner returns the definition this one is declared under, or nil for a
// root object.
func (d *ElementDef) Owner() *ElementDef { return d.owner }

// Type returns the scalar type of a field, or of an element's text.
func (d *ElementDef) Type() Type { return d.typ }

// Flags returns the definition flags.
func (d *ElementDef) Flags() Flags { return d.flags }

// Has reports whether all of f are set.
func (d *ElementDef) Has(f Flags) bool { return d.flags&f == f }

// IsAttribute reports whether the field renders as an XML attribute.
func (d *ElementDef) IsAttribute() bool { return d.Has(FlagAttribute) }

// IsComplex reports whether instances are Elements rather than Fields.
func (d *ElementDef) IsComplex() bool { return d.Has(FlagComplex) }

// Versions returns the span of versions carrying this definition.
func (d *ElementDef) Versions() version.Range { return d.versions }

// Earliest returns the first version carrying this definition.
func (d *ElementDef) Earliest() version.Version { return d.versions.Earliest }

// Latest returns the last version carrying this definition, or the zero
// Version when still current.
func (d *ElementDef) Latest() version.Version { return d.versions.Latest }

// Supports reports whether v carries this definition.
func (d *ElementDef) Supports(v version.Version) bool { return d.versions.Contains(v) }

// Tag returns the wire name used in v.
func (d *ElementDef) Tag(v version.Version) string {
	for _, a := range d.tags {
		if a.versions.Contains(v) {
			return a.tag
		}
	}
	return d.name
}

// Sequence returns the ordering position among siblings in v.
func (d *ElementDef) Sequence(v version.Version) int {
	for _, s := range d.seqs {
		if s.versions.Contains(v) {
			return s.sequence
		}
	}
	return d.sequence
}

// Children returns the nested definitions in declaration order.
func (d *ElementDef) Children() []*ElementDef { return d.children }

// Child returns the nested definition with canonical name name. A leading
// "@" restricts the match to attributes.
func (d *ElementDef) Child(name string) *ElementDef {
	attr := strings.HasPrefix(name, "@")
	name = strings.TrimPrefix(name, "@")
	for _, c := range d.children {
		if c.name == name && (!attr || c.IsAttribute()) {
			return c
		}
	}
	return nil
}

// ChildByTag returns the nested definition whose wire name in v is tag.
func (d *ElementDef) ChildByTag(tag string, v version.Version, attribute bool) *ElementDef {
	for _, c := range d.children {
		if c.IsAttribute() == attribute && c.Supports(v) && c.Tag(v) == tag {
			return c
		}
	}
	return nil
}

func (d *ElementDef) String() string { return d.key }

// DefOption customizes a definition while it is being built.
type DefOption func(*ElementDef)

// Versions restricts a definition to r.
func Versions(r version.Range) DefOption {
	return func(d *ElementDef) { d.versions = r }
}

// Since restricts a definition to v and later.
func Since(v version.Version) DefOption {
	return func(d *ElementDef) { d.versions.Earliest = v }
}

// Until restricts a definition to v and earlier.
func Until(v version.Version) DefOption {
	return func(d *ElementDef) { d.versions.Latest = v }
}

// TagFor uses tag as the wire name for versions in r.
func TagFor(r version.Range, tag string) DefOption {
	return func(d *ElementDef) { d.tags = append(d.tags, tagAlias{versions: r, tag: tag}) }
}

// Sequence overrides the default declaration-order position.
func Sequence(n int) DefOption {
	return func(d *ElementDef) { d.sequence = n }
}

// SequenceFor overrides the position for versions in r.
func SequenceFor(r version.Range, n int) DefOption {
	return func(d *ElementDef) { d.seqs = append(d.seqs, seqOverride{versions: r, sequence: n}) }
}

// WithFlags adds flags.
func WithFlags(f Flags) DefOption {
	return func(d *ElementDef) { d.flags |= f }
}
