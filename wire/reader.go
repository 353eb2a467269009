package wire

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"
)

// Kind identifies the current token of a Reader.
type Kind int

// Token kinds.
const (
	KindNone Kind = iota
	KindStart
	KindEnd
	KindText
	KindEOF
)

func (k Kind) String() string {
	switch k {
	case KindStart:
		return "start"
	case KindEnd:
		return "end"
	case KindText:
		return "text"
	case KindEOF:
		return "eof"
	}
	return "none"
}

// Reader is a forward-only cursor over an XML token stream.
type Reader struct {
	dec      *xml.Decoder
	kind     Kind
	name     xml.Name
	attrs    []xml.Attr
	text     string
	depth    int
	advances int
}

// NewReader positions a Reader on the first significant token of r.
func NewReader(r io.Reader) (*Reader, error) {
	rd := &Reader{dec: xml.NewDecoder(r)}
	if err := rd.Next(); err != nil {
		return nil, err
	}
	return rd, nil
}

// NewReaderBytes is NewReader over a byte slice. A leading UTF-8 byte order
// mark is ignored.
func NewReaderBytes(data []byte) (*Reader, error) {
	data = bytes.TrimPrefix(data, []byte{0xef, 0xbb, 0xbf})
	return NewReader(bytes.NewReader(data))
}

// Kind returns the kind of the current token.
func (r *Reader) Kind() Kind { return r.kind }

// Name returns the local name of the current start or end token.
func (r *Reader) Name() string { return r.name.Local }

// Space returns the namespace of the current start or end token.
func (r *Reader) Space() string { return r.name.Space }

// IsStart reports whether the current token is a start tag named name.
func (r *Reader) IsStart(name string) bool {
	return r.kind == KindStart && r.name.Local == name
}

// Attr returns the value of the attribute with local name name on the
// current start token.
func (r *Reader) Attr(name string) (string, bool) {
	if r.kind != KindStart {
		return "", false
	}
	for _, a := range r.attrs {
		if a.Name.Local == name && a.Name.Space != "xmlns" {
			return a.Value, true
		}
	}
	return "", false
}

// Attrs returns the attributes of the current start token, excluding
// namespace declarations.
func (r *Reader) Attrs() []xml.Attr {
	if r.kind != KindStart {
		return nil
	}
	out := make([]xml.Attr, 0, len(r.attrs))
	for _, a := range r.attrs {
		if a.Name.Space == "xmlns" || (a.Name.Space == "" && a.Name.Local == "xmlns") {
			continue
		}
		out = append(out, a)
	}
	return out
}

// Text returns the character data of the current text token.
func (r *Reader) Text() string { return r.text }

// Depth returns the element nesting depth of the current token. The root
// start token is at depth 1.
func (r *Reader) Depth() int { return r.depth }

// Position returns the number of tokens consumed so far.
func (r *Reader) Position() int { return r.advances }

// Next advances to the next significant token. Comments, processing
// instructions, directives and whitespace-only text are skipped.
func (r *Reader) Next() error {
	if r.kind == KindEOF {
		return io.EOF
	}
	if r.kind == KindEnd {
		r.depth--
	}
	for {
		tok, err := r.dec.Token()
		if errors.Is(err, io.EOF) {
			r.kind = KindEOF
			r.name = xml.Name{}
			r.attrs = nil
			r.advances++
			return nil
		}
		if err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidXML, err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			r.kind = KindStart
			r.name = t.Name
			r.attrs = t.Attr
			r.text = ""
			r.depth++
		case xml.EndElement:
			r.kind = KindEnd
			r.name = t.Name
			r.attrs = nil
			r.text = ""
		case xml.CharData:
			if strings.TrimSpace(string(t)) == "" {
				continue
			}
			r.kind = KindText
			r.text = string(t)
		default:
			continue
		}
		r.advances++
		return nil
	}
}

// ReadText consumes the current start token, its character data and its
// end token, leaving the reader on the following token. A child element
// inside is an error.
func (r *Reader) ReadText() (string, error) {
	if r.kind != KindStart {
		return "", fmt.Errorf("%w: %s where start tag expected", ErrUnexpectedToken, r.kind)
	}
	name := r.name.Local
	var b strings.Builder
	for {
		if err := r.Next(); err != nil {
			return "", err
		}
		switch r.kind {
		case KindText:
			b.WriteString(r.text)
		case KindEnd:
			if err := r.Next(); err != nil {
				return "", err
			}
			return b.String(), nil
		case KindStart:
			return "", fmt.Errorf("%w: <%s> inside scalar <%s>", ErrUnexpectedToken, r.name.Local, name)
		case KindEOF:
			return "", fmt.Errorf("%w: unexpected EOF inside <%s>", ErrInvalidXML, name)
		}
	}
}

// Skip consumes the current start token and everything up to and
// including its end token. On any other token it advances once.
func (r *Reader) Skip() error {
	if r.kind != KindStart {
		return r.Next()
	}
	target := r.depth
	for {
		if err := r.Next(); err != nil {
			return err
		}
		switch r.kind {
		case KindEnd:
			if r.depth == target {
				return r.Next()
			}
		case KindEOF:
			return fmt.Errorf("%w: unexpected EOF", ErrInvalidXML)
		}
	}
}

// ExpectEnd consumes the current token, which must be the end tag of name.
func (r *Reader) ExpectEnd(name string) error {
	if r.kind != KindEnd || r.name.Local != name {
		return fmt.Errorf("%w: %s %q where </%s> expected", ErrUnexpectedToken, r.kind, r.name.Local, name)
	}
	return r.Next()
}
