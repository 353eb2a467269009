// Package wire implements the token-level XML stream used by the codec and
// by rendering surrogates, plus version-specific scalar formatting.
//
// # Writer
//
// Writer emits strictly nested markup. Attributes may only be written while
// a start tag is still open, i.e. before any text or child element:
//
//	w := wire.NewWriter()
//	w.Start("SIF_Time")
//	w.Attr("Zone", "UTC-05:00")
//	w.Text("14:30:00")
//	w.End()
//
// # Reader
//
// Reader exposes one current token at a time and advances by exactly one
// token per Next call. It never seeks or rescans, so a strategy that
// declines a token leaves the stream untouched.
//
// # Formatting
//
// FormatterFor selects the scalar lexical forms of a protocol version.
// SIF 1.x uses Yes/No booleans and compact dates (19991001); SIF 2.x uses
// the XML Schema forms (true/false, 1999-10-01).
package wire

import (
	"bytes"
	"encoding/xml"
	"fmt"
)

// Writer emits XML into an in-memory buffer.
type Writer struct {
	buf   bytes.Buffer
	stack []string
	open  bool
}

// NewWriter returns an empty Writer.
func NewWriter() *Writer {
	return &Writer{}
}

// Reset clears the buffer and nesting state for reuse.
func (w *Writer) Reset() {
	w.buf.Reset()
	w.stack = w.stack[:0]
	w.open = false
}

// Depth returns the number of currently open elements.
func (w *Writer) Depth() int { return len(w.stack) }

// Bytes returns the buffered output. The slice is only valid until the
// next write or Reset.
func (w *Writer) Bytes() []byte { return w.buf.Bytes() }

// String returns a copy of the buffered output.
func (w *Writer) String() string { return w.buf.String() }

// Start opens an element.
func (w *Writer) Start(name string) error {
	if name == "" {
		return fmt.Errorf("%w: empty element name", ErrWriterState)
	}
	w.closeStartTag()
	w.buf.WriteByte('<')
	w.buf.WriteString(name)
	w.stack = append(w.stack, name)
	w.open = true
	return nil
}

// Attr adds an attribute to the element opened by the last Start.
func (w *Writer) Attr(name, value string) error {
	if !w.open {
		return fmt.Errorf("%w: attribute %s outside start tag", ErrWriterState, name)
	}
	w.buf.WriteByte(' ')
	w.buf.WriteString(name)
	w.buf.WriteString(`="`)
	if err := xml.EscapeText(&w.buf, []byte(value)); err != nil {
		return fmt.Errorf("escape attribute %s: %w", name, err)
	}
	w.buf.WriteByte('"')
	return nil
}

// Text writes escaped character data inside the current element.
func (w *Writer) Text(s string) error {
	if len(w.stack) == 0 {
		return fmt.Errorf("%w: text outside element", ErrWriterState)
	}
	w.closeStartTag()
	if err := xml.EscapeText(&w.buf, []byte(s)); err != nil {
		return fmt.Errorf("escape text: %w", err)
	}
	return nil
}

// End closes the innermost open element.
func (w *Writer) End() error {
	if len(w.stack) == 0 {
		return fmt.Errorf("%w: end without start", ErrWriterState)
	}
	name := w.stack[len(w.stack)-1]
	w.stack = w.stack[:len(w.stack)-1]
	if w.open {
		w.buf.WriteString("/>")
		w.open = false
		return nil
	}
	w.buf.WriteString("</")
	w.buf.WriteString(name)
	w.buf.WriteByte('>')
	return nil
}

// Element writes <name>text</name>.
func (w *Writer) Element(name, text string) error {
	if err := w.Start(name); err != nil {
		return err
	}
	if text != "" {
		if err := w.Text(text); err != nil {
			return err
		}
	}
	return w.End()
}

func (w *Writer) closeStartTag() {
	if w.open {
		w.buf.WriteByte('>')
		w.open = false
	}
}
