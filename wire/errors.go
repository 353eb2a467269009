package wire

import (
	"errors"
	"fmt"

	"github.com/smnsjas/go-sifcore/objects"
	"github.com/smnsjas/go-sifcore/version"
)

var (
	// ErrConversion reports text that cannot be converted to a typed value
	// (or the reverse).
	ErrConversion = errors.New("data conversion failed")
	// ErrInvalidXML reports a malformed token stream.
	ErrInvalidXML = errors.New("invalid XML")
	// ErrWriterState reports out-of-order emission, such as an attribute
	// after element content or an unbalanced end tag.
	ErrWriterState = errors.New("invalid writer state")
	// ErrUnexpectedToken reports a token that does not fit the caller's
	// expectation, such as a child element inside a scalar field.
	ErrUnexpectedToken = errors.New("unexpected token")
)

// ConversionError describes a failed text/value conversion.
type ConversionError struct {
	Type objects.Type
	Text string
	Err  error
}

func (e *ConversionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("cannot convert %q to %s: %v", e.Text, e.Type, e.Err)
	}
	return fmt.Sprintf("cannot convert %q to %s", e.Text, e.Type)
}

// Unwrap returns the underlying cause.
func (e *ConversionError) Unwrap() error { return e.Err }

// Is matches ErrConversion.
func (e *ConversionError) Is(target error) bool { return target == ErrConversion }

func convErr(t objects.Type, text string, err error) error {
	return &ConversionError{Type: t, Text: text, Err: err}
}

// ParseError locates a failure while reading a document: the wire name of
// the offending element or attribute and the protocol version in use.
type ParseError struct {
	Name    string
	Version version.Version
	Err     error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("SIF %s: <%s>: %v", e.Version, e.Name, e.Err)
}

// Unwrap returns the underlying cause.
func (e *ParseError) Unwrap() error { return e.Err }
