package surrogate

import (
	"fmt"
	"strings"
	"time"

	"github.com/smnsjas/go-sifcore/objects"
	"github.com/smnsjas/go-sifcore/pointer"
	"github.com/smnsjas/go-sifcore/version"
	"github.com/smnsjas/go-sifcore/wire"
)

// ZoneAttr is the attribute carrying the UTC offset of a legacy time.
const ZoneAttr = "Zone"

// ZonedTime renders a time or datetime field as a time-of-day element with
// a Zone attribute, e.g. <SIF_Time Zone="UTC-05:00">14:30:00</SIF_Time>.
// For a datetime field only the time of day and location are read and
// written; the calendar date is left alone.
type ZonedTime struct {
	def *objects.ElementDef
	tag string
}

// NewZonedTime returns a ZonedTime for def using the legacy element tag.
func NewZonedTime(def *objects.ElementDef, tag string) *ZonedTime {
	return &ZonedTime{def: def, tag: tag}
}

func (z *ZonedTime) Def() *objects.ElementDef { return z.def }
func (z *ZonedTime) LegacyNames() []string    { return []string{z.tag} }

func (z *ZonedTime) Render(w *wire.Writer, _ version.Version, n objects.Node) error {
	t, ok := n.Value().(time.Time)
	if !ok {
		return nil
	}
	return z.render(w, t)
}

func (z *ZonedTime) render(w *wire.Writer, t time.Time) error {
	if err := w.Start(z.tag); err != nil {
		return err
	}
	if err := w.Attr(ZoneAttr, wire.FormatZone(t)); err != nil {
		return err
	}
	if err := w.Text(t.Format(wire.TimeLayout)); err != nil {
		return err
	}
	return w.End()
}

func (z *ZonedTime) TryParse(r *wire.Reader, v version.Version, parent *objects.Element) (bool, error) {
	if !r.IsStart(z.tag) {
		return false, nil
	}
	t, err := z.read(r, v)
	if err != nil {
		return true, err
	}
	return true, store(parent, z.def, t, mergeTime)
}

// read consumes the time element under r. The Zone attribute, when
// present, overrides any offset in the text; without either the time is
// local.
func (z *ZonedTime) read(r *wire.Reader, v version.Version) (time.Time, error) {
	loc := time.Local
	zone, hasZone := r.Attr(ZoneAttr)
	if hasZone {
		var err error
		if loc, err = wire.ParseZone(zone); err != nil {
			return time.Time{}, &wire.ParseError{Name: z.tag + "/@" + ZoneAttr, Version: v, Err: err}
		}
	}
	text, err := r.ReadText()
	if err != nil {
		return time.Time{}, err
	}
	t, err := wire.ParseTime(strings.TrimSpace(text))
	if err != nil {
		return time.Time{}, &wire.ParseError{Name: z.tag, Version: v, Err: err}
	}
	if hasZone {
		t = time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), loc)
	}
	return t, nil
}

func (z *ZonedTime) CreateNodePointer(parent pointer.Pointer, n objects.Node, _ version.Version) pointer.Pointer {
	leaf := pointer.NewLeaf(parent, z.tag, false, n).WithView(objects.TypeTime, z.merge())
	if t, ok := n.Value().(time.Time); ok {
		leaf.AddConstant(ZoneAttr, wire.FormatZone(t))
	}
	return leaf
}

func (z *ZonedTime) CreateChildPointer(parent pointer.Pointer, name string, v version.Version) (pointer.Pointer, error) {
	if name != z.tag {
		return nil, nil
	}
	el, ok := parent.Node().(*objects.Element)
	if !ok {
		return nil, nil
	}
	n, err := ensureNode(el, z.def)
	if err != nil {
		return nil, err
	}
	return z.CreateNodePointer(parent, n, v), nil
}

func (z *ZonedTime) merge() pointer.MergeFunc {
	if z.def.Type() == objects.TypeDateTime {
		return mergeTime
	}
	return nil
}

// TimestampSplit renders a datetime field as a date element followed by a
// ZonedTime element, as SIF 1.x does for SIF_Header/SIF_Timestamp.
//
// Parsing merges into the canonical value in either order: a date sets the
// calendar date and a time sets the time of day and location. Whichever
// arrives first creates the value, a date at local midnight and a time on
// the zero date.
type TimestampSplit struct {
	def     *objects.ElementDef
	dateTag string
	zoned   *ZonedTime
}

// NewTimestampSplit returns a TimestampSplit for the datetime field def.
func NewTimestampSplit(def *objects.ElementDef, dateTag, timeTag string) *TimestampSplit {
	return &TimestampSplit{def: def, dateTag: dateTag, zoned: NewZonedTime(def, timeTag)}
}

func (s *TimestampSplit) Def() *objects.ElementDef { return s.def }
func (s *TimestampSplit) LegacyNames() []string    { return []string{s.dateTag, s.zoned.tag} }

func (s *TimestampSplit) Render(w *wire.Writer, v version.Version, n objects.Node) error {
	t, ok := n.Value().(time.Time)
	if !ok {
		return nil
	}
	date, err := wire.FormatterFor(v).Format(objects.TypeDate, t)
	if err != nil {
		return err
	}
	if err := w.Element(s.dateTag, date); err != nil {
		return err
	}
	return s.zoned.render(w, t)
}

func (s *TimestampSplit) TryParse(r *wire.Reader, v version.Version, parent *objects.Element) (bool, error) {
	switch {
	case r.IsStart(s.dateTag):
		text, err := r.ReadText()
		if err != nil {
			return true, err
		}
		d, err := wire.FormatterFor(v).Parse(objects.TypeDate, text)
		if err != nil {
			return true, &wire.ParseError{Name: s.dateTag, Version: v, Err: err}
		}
		return true, store(parent, s.def, d.(time.Time), mergeDate)
	case r.IsStart(s.zoned.tag):
		t, err := s.zoned.read(r, v)
		if err != nil {
			return true, err
		}
		return true, store(parent, s.def, t, mergeTime)
	}
	return false, nil
}

// CreateNodePointer returns the date pointer; CreateSiblingPointers returns
// both.
func (s *TimestampSplit) CreateNodePointer(parent pointer.Pointer, n objects.Node, _ version.Version) pointer.Pointer {
	return pointer.NewLeaf(parent, s.dateTag, false, n).WithView(objects.TypeDate, mergeDate)
}

func (s *TimestampSplit) CreateSiblingPointers(parent pointer.Pointer, n objects.Node, v version.Version) []pointer.Pointer {
	return []pointer.Pointer{
		s.CreateNodePointer(parent, n, v),
		s.zoned.CreateNodePointer(parent, n, v),
	}
}

func (s *TimestampSplit) CreateChildPointer(parent pointer.Pointer, name string, v version.Version) (pointer.Pointer, error) {
	if name != s.dateTag && name != s.zoned.tag {
		return nil, nil
	}
	el, ok := parent.Node().(*objects.Element)
	if !ok {
		return nil, nil
	}
	n, err := ensureNode(el, s.def)
	if err != nil {
		return nil, err
	}
	for _, p := range s.CreateSiblingPointers(parent, n, v) {
		if p.Name() == name {
			return p, nil
		}
	}
	return nil, fmt.Errorf("%w: %s has no pointer for %s", ErrConfig, s.def.Key(), name)
}

// store writes t into the def field of parent, merging with an existing
// value.
func store(parent *objects.Element, def *objects.ElementDef, t time.Time, merge pointer.MergeFunc) error {
	var v any = t
	if f, ok := parent.NodeByDef(def).(*objects.Field); ok && f.Value() != nil && merge != nil && def.Type() == objects.TypeDateTime {
		v = merge(f.Value(), t)
	}
	_, err := parent.SetDef(def, v)
	return err
}
