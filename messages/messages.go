// Package messages encodes SIF_Message envelopes around canonical objects.
//
// Only the event envelope is modelled:
//
//	<SIF_Message xmlns="..." Version="2.5">
//	  <SIF_Event>
//	    <SIF_Header>...</SIF_Header>
//	    <SIF_ObjectData>
//	      <SIF_EventObject ObjectName="StudentPersonal" Action="Add">
//	        <StudentPersonal>...</StudentPersonal>
//	      </SIF_EventObject>
//	    </SIF_ObjectData>
//	  </SIF_Event>
//	</SIF_Message>
//
// The header and the object are rendered by the default codec, so their
// version-specific shapes (the split SIF 1.x timestamp, renamed and remapped
// object fields) come from the surrogate registry passed to NewCodec.
package messages

import (
	"errors"
	"fmt"

	"github.com/smnsjas/go-sifcore/objects"
	"github.com/smnsjas/go-sifcore/schema"
	"github.com/smnsjas/go-sifcore/serialization"
	"github.com/smnsjas/go-sifcore/version"
	"github.com/smnsjas/go-sifcore/wire"
)

// Envelope tags.
const (
	TagMessage     = "SIF_Message"
	TagEvent       = "SIF_Event"
	TagObjectData  = "SIF_ObjectData"
	TagEventObject = "SIF_EventObject"

	attrObjectName = "ObjectName"
	attrAction     = "Action"
)

var (
	// ErrInvalidMessage is returned when an envelope is malformed.
	ErrInvalidMessage = errors.New("invalid SIF message")
	// ErrUnsupportedMessage is returned for message kinds other than
	// SIF_Event.
	ErrUnsupportedMessage = errors.New("unsupported SIF message")
)

// Action is the change an event reports.
type Action string

// Event actions.
const (
	ActionAdd    Action = "Add"
	ActionChange Action = "Change"
	ActionDelete Action = "Delete"
)

// ParseAction validates s as an Action.
func ParseAction(s string) (Action, error) {
	switch a := Action(s); a {
	case ActionAdd, ActionChange, ActionDelete:
		return a, nil
	}
	return "", fmt.Errorf("%w: action %q", ErrInvalidMessage, s)
}

// Event is a SIF_Event carrying one object.
type Event struct {
	Header Header
	Action Action
	Object *objects.Element
}

// NewEvent returns an event for obj.
func NewEvent(h Header, action Action, obj *objects.Element) *Event {
	return &Event{Header: h, Action: action, Object: obj}
}

// Codec encodes and decodes event envelopes. It is safe for concurrent use.
type Codec struct {
	dict *objects.Dictionary
	ser  *serialization.Serializer
	des  *serialization.Deserializer
}

// NewCodec returns a Codec over dict. The options are passed to the
// underlying serializer and deserializer.
func NewCodec(dict *objects.Dictionary, opts ...serialization.Option) *Codec {
	return &Codec{
		dict: dict,
		ser:  serialization.NewSerializer(opts...),
		des:  serialization.NewDeserializer(dict, opts...),
	}
}

// Marshal renders e as a SIF_Message of version v.
func (c *Codec) Marshal(e *Event, v version.Version) ([]byte, error) {
	if e.Object == nil {
		return nil, fmt.Errorf("%w: event has no object", ErrInvalidMessage)
	}
	hdr, err := e.Header.Element(c.dict)
	if err != nil {
		return nil, err
	}

	w := &envelopeWriter{w: wire.NewWriter()}
	w.start(TagMessage)
	w.attr("xmlns", v.Namespace())
	w.attr(serialization.VersionAttr, v.String())
	w.start(TagEvent)
	w.render(func() error { return c.ser.Render(w.w, hdr, v) })
	w.start(TagObjectData)
	w.start(TagEventObject)
	w.attr(attrObjectName, e.Object.Def().Tag(v))
	w.attr(attrAction, string(e.Action))
	w.render(func() error { return c.ser.Render(w.w, e.Object, v) })
	for range 4 {
		w.end()
	}
	if w.err != nil {
		return nil, fmt.Errorf("marshal %s event at SIF %s: %w", e.Object.Def().Name(), v, w.err)
	}
	return w.w.Bytes(), nil
}

// Unmarshal decodes a SIF_Message envelope. The version is taken from the
// root Version attribute or, failing that, its namespace.
func (c *Codec) Unmarshal(data []byte) (*Event, version.Version, error) {
	r, err := wire.NewReaderBytes(data)
	if err != nil {
		return nil, version.Version{}, err
	}
	if !r.IsStart(TagMessage) {
		return nil, version.Version{}, fmt.Errorf("%w: root is not <%s>", ErrInvalidMessage, TagMessage)
	}
	v, err := serialization.Detect(r)
	if err != nil {
		return nil, version.Version{}, err
	}
	if err := r.Next(); err != nil {
		return nil, v, err
	}
	if r.Kind() != wire.KindStart {
		return nil, v, fmt.Errorf("%w: empty <%s>", ErrInvalidMessage, TagMessage)
	}
	if r.Name() != TagEvent {
		return nil, v, fmt.Errorf("%w: <%s>", ErrUnsupportedMessage, r.Name())
	}
	e, err := c.readEvent(r, v)
	if err != nil {
		return nil, v, err
	}
	if err := r.ExpectEnd(TagMessage); err != nil {
		return nil, v, fmt.Errorf("%w: %w", ErrInvalidMessage, err)
	}
	return e, v, nil
}

// readEvent consumes the SIF_Event element under r. Envelope children it
// does not model, such as SIF_Security, are skipped.
func (c *Codec) readEvent(r *wire.Reader, v version.Version) (*Event, error) {
	if err := r.Next(); err != nil {
		return nil, err
	}
	e := &Event{}
	var hdr *objects.Element
	for r.Kind() == wire.KindStart {
		var err error
		switch r.Name() {
		case schema.Header:
			hdr, err = c.des.Decode(r, v)
		case TagObjectData:
			err = c.readObjectData(r, v, e)
		default:
			err = r.Skip()
		}
		if err != nil {
			return nil, err
		}
	}
	if err := r.ExpectEnd(TagEvent); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidMessage, err)
	}
	h, err := HeaderFromElement(hdr)
	if err != nil {
		return nil, err
	}
	e.Header = h
	if e.Object == nil {
		return nil, fmt.Errorf("%w: missing %s", ErrInvalidMessage, TagEventObject)
	}
	return e, nil
}

func (c *Codec) readObjectData(r *wire.Reader, v version.Version, e *Event) error {
	if err := r.Next(); err != nil {
		return err
	}
	if !r.IsStart(TagEventObject) {
		return fmt.Errorf("%w: <%s> without <%s>", ErrInvalidMessage, TagObjectData, TagEventObject)
	}
	name, _ := r.Attr(attrObjectName)
	action, _ := r.Attr(attrAction)
	a, err := ParseAction(action)
	if err != nil {
		return err
	}
	if err := r.Next(); err != nil {
		return err
	}
	obj, err := c.des.Decode(r, v)
	if err != nil {
		return err
	}
	if tag := obj.Def().Tag(v); name != "" && name != tag {
		return fmt.Errorf("%w: ObjectName %q carries <%s>", ErrInvalidMessage, name, tag)
	}
	if err := r.ExpectEnd(TagEventObject); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidMessage, err)
	}
	if err := r.ExpectEnd(TagObjectData); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidMessage, err)
	}
	e.Action = a
	e.Object = obj
	return nil
}

// envelopeWriter stops at the first write error.
type envelopeWriter struct {
	w   *wire.Writer
	err error
}

func (ew *envelopeWriter) start(name string) {
	if ew.err == nil {
		ew.err = ew.w.Start(name)
	}
}

func (ew *envelopeWriter) attr(name, value string) {
	if ew.err == nil {
		ew.err = ew.w.Attr(name, value)
	}
}

func (ew *envelopeWriter) end() {
	if ew.err == nil {
		ew.err = ew.w.End()
	}
}

func (ew *envelopeWriter) render(fn func() error) {
	if ew.err == nil {
		ew.err = fn()
	}
}
