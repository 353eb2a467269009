// Package serialization implements the default element codec for canonical
// SIF trees.
//
// The codec writes and reads the wire shape of one protocol version. For
// each node it first asks the surrogate registry whether a surrogate owns
// the node's definition in that version; if so the surrogate does all of
// the work. Everything else is handled by tag lookup in the dictionary.
//
// # Rendering
//
// Attributes are written first, then the element's own text, then child
// elements ordered by their sequence in the target version:
//
//	ser := serialization.NewSerializer(serialization.WithRegistry(reg))
//	data, err := ser.Marshal(student, version.SIF15r1)
//
// Nodes whose definition is not carried by the target version, and fields
// with no value, are omitted.
//
// # Parsing
//
// The Deserializer walks the token stream once. Each child start tag is
// offered to the candidate surrogates of the owning element before the
// default lookup, so a legacy shape is recognized without rescanning:
//
//	des := serialization.NewDeserializer(dict, serialization.WithRegistry(reg))
//	student, err := des.Unmarshal(data, version.SIF15r1)
//
// Unknown elements and attributes are skipped with a debug record, or
// rejected with ErrUnknownElement under WithStrict.
package serialization

import (
	"cmp"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"

	"github.com/smnsjas/go-sifcore/objects"
	"github.com/smnsjas/go-sifcore/surrogate"
	"github.com/smnsjas/go-sifcore/version"
	"github.com/smnsjas/go-sifcore/wire"
)

var (
	// ErrUnknownElement is returned in strict mode for markup the dictionary
	// does not declare.
	ErrUnknownElement = errors.New("unknown element")
	// ErrMaxDepth is returned when element nesting exceeds the limit.
	ErrMaxDepth = errors.New("maximum nesting depth exceeded")
	// ErrNoVersion is returned when a document carries neither a Version
	// attribute nor a SIF namespace.
	ErrNoVersion = errors.New("document does not declare a SIF version")
)

// pool for wire writers
var writerPool = sync.Pool{
	New: func() any { return wire.NewWriter() },
}

// Serializer renders canonical trees. It holds no per-call state and is
// safe for concurrent use.
type Serializer struct {
	opts options
}

// NewSerializer returns a Serializer.
func NewSerializer(opts ...Option) *Serializer {
	return &Serializer{opts: buildOptions(opts)}
}

// Marshal renders el as a document of version v.
func (s *Serializer) Marshal(el *objects.Element, v version.Version) ([]byte, error) {
	w := writerPool.Get().(*wire.Writer)
	defer func() {
		w.Reset()
		writerPool.Put(w)
	}()
	w.Reset()

	if err := s.render(w, el, v, true); err != nil {
		return nil, fmt.Errorf("marshal %s at SIF %s: %w", el.Def().Key(), v, err)
	}
	// The writer goes back to the pool; hand out a copy.
	return append([]byte(nil), w.Bytes()...), nil
}

// Render writes el into w. It is used to embed canonical elements inside
// markup written by the caller, such as a message envelope.
func (s *Serializer) Render(w *wire.Writer, el *objects.Element, v version.Version) error {
	return s.render(w, el, v, false)
}

func (s *Serializer) render(w *wire.Writer, el *objects.Element, v version.Version, root bool) error {
	if sur := s.opts.registry.Lookup(el.Def(), v); sur != nil {
		return s.renderSurrogate(w, sur, el, v)
	}
	return s.renderElement(w, el, v, root)
}

func (s *Serializer) renderElement(w *wire.Writer, el *objects.Element, v version.Version, root bool) error {
	def := el.Def()
	if err := w.Start(def.Tag(v)); err != nil {
		return err
	}
	if root && s.opts.namespace {
		if err := w.Attr("xmlns", v.Namespace()); err != nil {
			return err
		}
	}

	nodes := ordered(el, v)
	f := wire.FormatterFor(v)

	for _, n := range nodes {
		nd := n.Def()
		if sur := s.opts.registry.Lookup(nd, v); sur != nil {
			if rendersAttr(sur) {
				if err := s.renderSurrogate(w, sur, n, v); err != nil {
					return err
				}
			}
			continue
		}
		if !nd.IsAttribute() || !nd.Supports(v) || n.Value() == nil {
			continue
		}
		text, err := f.Format(nd.Type(), n.Value())
		if err != nil {
			return fmt.Errorf("%s: %w", nd.Key(), err)
		}
		if err := w.Attr(nd.Tag(v), text); err != nil {
			return err
		}
	}

	if el.Value() != nil {
		text, err := f.Format(def.Type(), el.Value())
		if err != nil {
			return fmt.Errorf("%s: %w", def.Key(), err)
		}
		if err := w.Text(text); err != nil {
			return err
		}
	}

	for _, n := range nodes {
		nd := n.Def()
		if sur := s.opts.registry.Lookup(nd, v); sur != nil {
			if !rendersAttr(sur) {
				if err := s.renderSurrogate(w, sur, n, v); err != nil {
					return err
				}
			}
			continue
		}
		if nd.IsAttribute() || !nd.Supports(v) {
			continue
		}
		switch n := n.(type) {
		case *objects.Element:
			if err := s.renderElement(w, n, v, false); err != nil {
				return err
			}
		case *objects.Field:
			if n.Value() == nil {
				continue
			}
			text, err := f.Format(nd.Type(), n.Value())
			if err != nil {
				return fmt.Errorf("%s: %w", nd.Key(), err)
			}
			if err := w.Element(nd.Tag(v), text); err != nil {
				return err
			}
		}
	}
	return w.End()
}

func (s *Serializer) renderSurrogate(w *wire.Writer, sur surrogate.Surrogate, n objects.Node, v version.Version) error {
	s.opts.logger.Debug("surrogate rendering node",
		slog.String("element", n.Def().Key()),
		slog.String("version", v.String()),
		slog.String("surrogate", fmt.Sprintf("%T", sur)))
	return sur.Render(w, v, n)
}

// rendersAttr reports whether sur writes an attribute of the owning element.
func rendersAttr(sur surrogate.Surrogate) bool {
	for _, name := range sur.LegacyNames() {
		if strings.HasPrefix(name, "@") {
			return true
		}
	}
	return false
}

// ordered returns the children of el sorted by their sequence in v. Nodes
// with equal sequence keep insertion order.
func ordered(el *objects.Element, v version.Version) []objects.Node {
	nodes := slices.Clone(el.Nodes())
	slices.SortStableFunc(nodes, func(a, b objects.Node) int {
		return cmp.Compare(a.Def().Sequence(v), b.Def().Sequence(v))
	})
	return nodes
}
