package messages

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/smnsjas/go-sifcore/objects"
	"github.com/smnsjas/go-sifcore/schema"
)

// SIF_Header field names.
const (
	fieldMsgID         = "SIF_MsgId"
	fieldTimestamp     = "SIF_Timestamp"
	fieldSourceID      = "SIF_SourceId"
	fieldDestinationID = "SIF_DestinationId"
)

// Header carries the SIF_Header of a message.
type Header struct {
	MsgID         uuid.UUID
	Timestamp     time.Time
	SourceID      string
	DestinationID string // optional
}

// NewHeader returns a header with a fresh message id, stamped now to the
// second.
func NewHeader(sourceID string) Header {
	return Header{
		MsgID:     uuid.New(),
		Timestamp: time.Now().Truncate(time.Second),
		SourceID:  sourceID,
	}
}

// Element builds the canonical SIF_Header tree for h.
func (h Header) Element(dict *objects.Dictionary) (*objects.Element, error) {
	def := dict.Object(schema.Header)
	if def == nil {
		return nil, fmt.Errorf("%w: dictionary has no %s", ErrInvalidMessage, schema.Header)
	}
	el := objects.NewElement(def)
	var errs []error
	set := func(name string, v any) {
		if _, err := el.Set(name, v); err != nil {
			errs = append(errs, err)
		}
	}
	set(fieldMsgID, h.MsgID)
	set(fieldTimestamp, h.Timestamp)
	set(fieldSourceID, h.SourceID)
	if h.DestinationID != "" {
		set(fieldDestinationID, h.DestinationID)
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return el, nil
}

// HeaderFromElement reads a SIF_Header tree. The message id, timestamp and
// source id are mandatory.
func HeaderFromElement(el *objects.Element) (Header, error) {
	var h Header
	if el == nil || el.Def().Name() != schema.Header {
		return h, fmt.Errorf("%w: missing %s", ErrInvalidMessage, schema.Header)
	}
	var ok bool
	if h.MsgID, ok = el.Get(fieldMsgID).(uuid.UUID); !ok {
		return h, fmt.Errorf("%w: missing %s", ErrInvalidMessage, fieldMsgID)
	}
	if h.Timestamp, ok = el.Get(fieldTimestamp).(time.Time); !ok {
		return h, fmt.Errorf("%w: missing %s", ErrInvalidMessage, fieldTimestamp)
	}
	if h.SourceID, ok = el.Get(fieldSourceID).(string); !ok || h.SourceID == "" {
		return h, fmt.Errorf("%w: missing %s", ErrInvalidMessage, fieldSourceID)
	}
	h.DestinationID, _ = el.Get(fieldDestinationID).(string)
	return h, nil
}
