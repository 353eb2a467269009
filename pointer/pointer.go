// Package pointer provides cursors over a canonical element tree as seen by
// one protocol version.
//
// A Pointer names a node by the wire tag it carries in the selected version,
// so a query written against SIF 1.x names ("StatePrId") walks a tree built
// with canonical 2.x names ("StateProvinceId"). Where the older shape of a
// document differs structurally, a Resolver (normally a surrogate registry)
// substitutes Virtual pointers that present the legacy shape while reading
// and writing the canonical fields underneath.
package pointer

import (
	"errors"
	"fmt"
	"iter"
	"strings"

	"github.com/smnsjas/go-sifcore/objects"
	"github.com/smnsjas/go-sifcore/version"
	"github.com/smnsjas/go-sifcore/wire"
)

// ErrReadOnly is returned when writing to a pointer whose value is fixed by
// the legacy shape it presents.
var ErrReadOnly = errors.New("pointer is read-only")

// Kind distinguishes element pointers from attribute pointers.
type Kind int

// Pointer kinds.
const (
	KindElement Kind = iota
	KindAttribute
)

func (k Kind) String() string {
	if k == KindAttribute {
		return "attribute"
	}
	return "element"
}

// Pointer is a cursor over one node of a version-specific view of a tree.
type Pointer interface {
	// Name returns the wire name in the view's version.
	Name() string
	Kind() Kind
	// Value returns the typed value, or nil when absent.
	Value() any
	// Text returns the value in wire form. ok is false when absent.
	Text() (s string, ok bool)
	// SetValue stores v. Strings are parsed with the view's formatter;
	// other values must be the Go carrier of the field's type.
	SetValue(v any) error
	Clone() Pointer
	Parent() Pointer
	Children() iter.Seq[Pointer]
	Attributes() iter.Seq[Pointer]
	// CreateChild returns the index'th child element named name, creating
	// it when absent. It returns nil when no such child can exist.
	CreateChild(name string, index int) (Pointer, error)
	// CreateAttribute returns the attribute named name, creating it when
	// absent. It returns nil when no such attribute can exist.
	CreateAttribute(name string) (Pointer, error)
	// Node returns the canonical node behind the pointer, if any.
	Node() objects.Node
	// Empty reports whether the pointer has no element content.
	Empty() bool
	Env() *Env
}

// Resolver lets surrogates take over the presentation of canonical nodes.
type Resolver interface {
	// NodePointers returns the pointers presenting n under parent. claimed
	// is false when n renders in its canonical shape.
	NodePointers(parent Pointer, n objects.Node) (ps []Pointer, claimed bool)
	// CreateChildPointer materializes the legacy child named name under
	// parent. An attribute name carries a leading "@".
	CreateChildPointer(parent Pointer, name string) (p Pointer, claimed bool, err error)
	// Claims reports whether def is presented by a surrogate in v, in which
	// case it is not reachable under its canonical tag.
	Claims(def *objects.ElementDef, v version.Version) bool
}

// Env is the view shared by every pointer of one walk.
type Env struct {
	Version  version.Version
	Resolver Resolver
}

// NewEnv returns a view of version v. r may be nil.
func NewEnv(v version.Version, r Resolver) *Env {
	return &Env{Version: v, Resolver: r}
}

// Formatter returns the wire formatter of the view's version.
func (e *Env) Formatter() wire.Formatter {
	return wire.FormatterFor(e.Version)
}

// Convert turns v into the Go carrier for t, parsing strings with the
// view's formatter.
func (e *Env) Convert(t objects.Type, v any) (any, error) {
	if s, ok := v.(string); ok {
		switch t {
		case objects.TypeString, objects.TypeEnum, objects.TypeNone:
			return s, nil
		}
		return e.Formatter().Parse(t, s)
	}
	n, err := objects.Normalize(t, v)
	if err != nil {
		return nil, &wire.ConversionError{Type: t, Text: fmt.Sprint(v), Err: err}
	}
	return n, nil
}

// Format renders v of type t in wire form.
func (e *Env) Format(t objects.Type, v any) (string, bool) {
	if v == nil {
		return "", false
	}
	s, err := e.Formatter().Format(t, v)
	if err != nil {
		return fmt.Sprint(v), true
	}
	return s, true
}

// Path returns the slash-separated wire path from the root to p, e.g.
// "/StudentPersonal/Name/@Type".
func Path(p Pointer) string {
	var parts []string
	for cur := p; cur != nil; cur = cur.Parent() {
		name := cur.Name()
		if cur.Kind() == KindAttribute {
			name = "@" + name
		}
		parts = append(parts, name)
	}
	var b strings.Builder
	for i := len(parts) - 1; i >= 0; i-- {
		b.WriteByte('/')
		b.WriteString(parts[i])
	}
	return b.String()
}

func none(func(Pointer) bool) {}
