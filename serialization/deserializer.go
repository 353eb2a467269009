package serialization

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/smnsjas/go-sifcore/objects"
	"github.com/smnsjas/go-sifcore/surrogate"
	"github.com/smnsjas/go-sifcore/version"
	"github.com/smnsjas/go-sifcore/wire"
)

// VersionAttr is the root attribute carrying the protocol version.
const VersionAttr = "Version"

// Deserializer decodes documents into canonical trees. It holds no per-call
// state and is safe for concurrent use.
type Deserializer struct {
	dict *objects.Dictionary
	opts options
}

// NewDeserializer returns a Deserializer resolving tags against dict.
func NewDeserializer(dict *objects.Dictionary, opts ...Option) *Deserializer {
	return &Deserializer{dict: dict, opts: buildOptions(opts)}
}

// Unmarshal decodes a document of version v.
func (d *Deserializer) Unmarshal(data []byte, v version.Version) (*objects.Element, error) {
	r, err := wire.NewReaderBytes(data)
	if err != nil {
		return nil, err
	}
	return d.Decode(r, v)
}

// UnmarshalDetect decodes a document whose version is declared by its root
// Version attribute or default namespace.
func (d *Deserializer) UnmarshalDetect(data []byte) (*objects.Element, version.Version, error) {
	r, err := wire.NewReaderBytes(data)
	if err != nil {
		return nil, version.Version{}, err
	}
	v, err := Detect(r)
	if err != nil {
		return nil, version.Version{}, err
	}
	el, err := d.Decode(r, v)
	return el, v, err
}

// Detect returns the version declared on the start tag under r.
func Detect(r *wire.Reader) (version.Version, error) {
	if r.Kind() != wire.KindStart {
		return version.Version{}, fmt.Errorf("%w: %s where root element expected", wire.ErrInvalidXML, r.Kind())
	}
	if s, ok := r.Attr(VersionAttr); ok {
		return version.Parse(s)
	}
	if ns := r.Space(); ns != "" {
		return version.ForNamespace(ns)
	}
	return version.Version{}, fmt.Errorf("%w: <%s>", ErrNoVersion, r.Name())
}

// Decode reads the root object under r, which must be positioned on its
// start tag, and leaves r after the matching end tag.
func (d *Deserializer) Decode(r *wire.Reader, v version.Version) (*objects.Element, error) {
	if r.Kind() != wire.KindStart {
		return nil, fmt.Errorf("%w: %s where root element expected", wire.ErrInvalidXML, r.Kind())
	}
	def := d.dict.ObjectByTag(r.Name(), v)
	if def == nil {
		return nil, fmt.Errorf("%w: root <%s> in SIF %s", ErrUnknownElement, r.Name(), v)
	}
	el := objects.NewElement(def)
	if err := d.readElement(r, el, v, 1); err != nil {
		return nil, err
	}
	return el, nil
}

// DecodeInto reads the start tag under r as a child of parent, as the
// default codec does for nested elements.
func (d *Deserializer) DecodeInto(r *wire.Reader, parent *objects.Element, v version.Version) error {
	return d.readChild(r, parent, v, 1)
}

func (d *Deserializer) readElement(r *wire.Reader, el *objects.Element, v version.Version, depth int) error {
	if depth > d.opts.maxDepth {
		return fmt.Errorf("%w: depth %d", ErrMaxDepth, d.opts.maxDepth)
	}
	def := el.Def()
	tag := r.Name()

	for _, a := range r.Attrs() {
		if a.Name.Space != "" {
			continue
		}
		if err := d.readAttr(el, a.Name.Local, a.Value, v); err != nil {
			return err
		}
	}
	if err := r.Next(); err != nil {
		return err
	}

	var text strings.Builder
	for {
		switch r.Kind() {
		case wire.KindEnd:
			if err := d.setText(el, text.String(), tag, v); err != nil {
				return err
			}
			return r.Next()
		case wire.KindEOF:
			return fmt.Errorf("%w: unexpected EOF inside <%s>", wire.ErrInvalidXML, tag)
		case wire.KindText:
			text.WriteString(r.Text())
			if err := r.Next(); err != nil {
				return err
			}
		case wire.KindStart:
			if err := d.readChild(r, el, v, depth+1); err != nil {
				return err
			}
		default:
			return fmt.Errorf("%w: %s inside <%s>", wire.ErrUnexpectedToken, r.Kind(), def.Name())
		}
	}
}

func (d *Deserializer) setText(el *objects.Element, text, tag string, v version.Version) error {
	def := el.Def()
	if def.Type() == objects.TypeNone || strings.TrimSpace(text) == "" {
		return nil
	}
	val, err := wire.FormatterFor(v).Parse(def.Type(), text)
	if err != nil {
		return &wire.ParseError{Name: tag, Version: v, Err: err}
	}
	return el.SetValue(val)
}

func (d *Deserializer) readAttr(el *objects.Element, name, value string, v version.Version) error {
	def := el.Def()
	for _, s := range d.opts.registry.Candidates(def, v) {
		ap, ok := s.(surrogate.AttrParser)
		if !ok {
			continue
		}
		claimed, err := ap.TryParseAttr(name, value, v, el)
		if err != nil {
			return err
		}
		if claimed {
			return nil
		}
	}

	ad := def.ChildByTag(name, v, true)
	if ad == nil || d.opts.registry.Claims(ad, v) {
		if el.Parent() == nil && name == VersionAttr {
			return nil
		}
		return d.unknown("@"+name, def, v)
	}
	val, err := wire.FormatterFor(v).Parse(ad.Type(), value)
	if err != nil {
		return &wire.ParseError{Name: "@" + name, Version: v, Err: err}
	}
	_, err = el.SetDef(ad, val)
	return err
}

func (d *Deserializer) readChild(r *wire.Reader, el *objects.Element, v version.Version, depth int) error {
	def := el.Def()
	tag := r.Name()

	for _, s := range d.opts.registry.Candidates(def, v) {
		claimed, err := s.TryParse(r, v, el)
		if err != nil {
			return err
		}
		if claimed {
			d.opts.logger.Debug("surrogate claimed element",
				slog.String("element", tag),
				slog.String("version", v.String()),
				slog.String("surrogate", s.Def().Key()))
			return nil
		}
	}

	cd := def.ChildByTag(tag, v, false)
	if cd == nil || d.opts.registry.Claims(cd, v) {
		if err := d.unknown(tag, def, v); err != nil {
			return err
		}
		return r.Skip()
	}

	if cd.IsComplex() {
		child, err := el.AddChild(cd)
		if err != nil {
			return err
		}
		return d.readElement(r, child, v, depth)
	}

	text, err := r.ReadText()
	if err != nil {
		return err
	}
	val, err := wire.FormatterFor(v).Parse(cd.Type(), text)
	if err != nil {
		return &wire.ParseError{Name: tag, Version: v, Err: err}
	}
	if cd.Has(objects.FlagRepeatable) {
		f, err := objects.NewField(cd, val)
		if err != nil {
			return err
		}
		return el.Add(f)
	}
	_, err = el.SetDef(cd, val)
	return err
}

// unknown reports or logs markup with no definition in v.
func (d *Deserializer) unknown(name string, owner *objects.ElementDef, v version.Version) error {
	if d.opts.strict {
		return fmt.Errorf("%w: <%s> under %s in SIF %s", ErrUnknownElement, name, owner.Key(), v)
	}
	d.opts.logger.Debug("skipping unknown element",
		slog.String("element", name),
		slog.String("parent", owner.Key()),
		slog.String("version", v.String()))
	return nil
}
