package objects

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ErrTypeMismatch is returned when a Go value does not match a field's type.
var ErrTypeMismatch = errors.New("value does not match field type")

// Type is the scalar type of a field or of an element's text content.
type Type int

// Scalar types.
const (
	TypeNone Type = iota
	TypeBool
	TypeInt
	TypeDecimal
	TypeDate
	TypeTime
	TypeDateTime
	TypeDuration
	TypeString
	TypeEnum
	TypeGUID
)

var typeNames = [...]string{
	TypeNone:     "none",
	TypeBool:     "bool",
	TypeInt:      "int",
	TypeDecimal:  "decimal",
	TypeDate:     "date",
	TypeTime:     "time",
	TypeDateTime: "datetime",
	TypeDuration: "duration",
	TypeString:   "string",
	TypeEnum:     "enum",
	TypeGUID:     "guid",
}

func (t Type) String() string {
	if t < 0 || int(t) >= len(typeNames) {
		return fmt.Sprintf("Type(%d)", int(t))
	}
	return typeNames[t]
}

// Normalize converts v to the canonical Go carrier for t and rejects values
// of the wrong kind. A nil value is always accepted and means "absent".
//
// Carriers:
//
//	TypeBool                        bool
//	TypeInt                         int64 (int and int32 are widened)
//	TypeDecimal                     float64
//	TypeDate, TypeTime, TypeDateTime time.Time
//	TypeDuration                    time.Duration
//	TypeString, TypeEnum, TypeNone  string
//	TypeGUID                        uuid.UUID
func Normalize(t Type, v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	switch t {
	case TypeBool:
		if b, ok := v.(bool); ok {
			return b, nil
		}
	case TypeInt:
		switch n := v.(type) {
		case int64:
			return n, nil
		case int:
			return int64(n), nil
		case int32:
			return int64(n), nil
		}
	case TypeDecimal:
		switch n := v.(type) {
		case float64:
			return n, nil
		case float32:
			return float64(n), nil
		case int:
			return float64(n), nil
		case int64:
			return float64(n), nil
		}
	case TypeDate, TypeTime, TypeDateTime:
		if tm, ok := v.(time.Time); ok {
			return tm, nil
		}
	case TypeDuration:
		if d, ok := v.(time.Duration); ok {
			return d, nil
		}
	case TypeString, TypeEnum, TypeNone:
		if s, ok := v.(string); ok {
			return s, nil
		}
	case TypeGUID:
		if g, ok := v.(uuid.UUID); ok {
			return g, nil
		}
	}
	return nil, fmt.Errorf("%w: %T for %s", ErrTypeMismatch, v, t)
}
