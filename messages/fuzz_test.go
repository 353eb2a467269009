package messages

import (
	"testing"

	"github.com/smnsjas/go-sifcore/version"
)

// FuzzUnmarshal feeds arbitrary bytes to the envelope decoder, which must
// fail cleanly rather than panic.
func FuzzUnmarshal(f *testing.F) {
	c, dict := newCodec(f)
	for _, v := range []version.Version{version.SIF15r1, version.SIF25} {
		data, err := c.Marshal(NewEvent(testHdr, ActionAdd, student(f, dict)), v)
		if err != nil {
			f.Fatal(err)
		}
		f.Add(data)
	}
	f.Add([]byte(`<SIF_Message Version="2.5"><SIF_Event></SIF_Event></SIF_Message>`))
	f.Add([]byte(`<SIF_Message Version="9"><SIF_Ack/></SIF_Message>`))
	f.Add([]byte{})
	f.Add([]byte{0xFF, 0xFE, '<'})

	f.Fuzz(func(t *testing.T, data []byte) {
		e, _, err := c.Unmarshal(data)
		if err == nil && (e == nil || e.Object == nil) {
			t.Fatalf("Unmarshal succeeded without an object: %q", data)
		}
	})
}
