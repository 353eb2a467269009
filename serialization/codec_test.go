package serialization

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/davecgh/go-spew/spew"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smnsjas/go-sifcore/objects"
	"github.com/smnsjas/go-sifcore/schema"
	"github.com/smnsjas/go-sifcore/surrogate"
	"github.com/smnsjas/go-sifcore/version"
	"github.com/smnsjas/go-sifcore/wire"
)

var studentRef = uuid.MustParse("6a1c5f2e-95b4-4c1b-9b0e-2f3d8c7a1e10")

const studentRefWire = "6A1C5F2E95B44C1B9B0E2F3D8C7A1E10"

func testSchema(t testing.TB) (*objects.Dictionary, *surrogate.Registry) {
	t.Helper()
	dict, reg, err := schema.Default()
	require.NoError(t, err)
	return dict, reg
}

func set(t testing.TB, el *objects.Element, name string, v any) {
	t.Helper()
	_, err := el.Set(name, v)
	require.NoError(t, err)
}

func child(t testing.TB, el *objects.Element, name string) *objects.Element {
	t.Helper()
	def := el.Def().Child(name)
	require.NotNil(t, def, name)
	var (
		c   *objects.Element
		err error
	)
	if def.Has(objects.FlagRepeatable) {
		c, err = el.AddChild(def)
	} else {
		c, err = el.Ensure(def)
	}
	require.NoError(t, err)
	return c
}

func newStudent(t testing.TB, dict *objects.Dictionary) *objects.Element {
	t.Helper()
	sp := objects.NewElement(dict.Object(schema.Student))
	set(t, sp, "@RefId", studentRef)
	set(t, sp, "LocalId", "S1")
	set(t, sp, "StateProvinceId", "CA-1")
	name := child(t, sp, "Name")
	set(t, name, "@Type", "04")
	set(t, name, "LastName", "Smith")
	set(t, name, "FirstName", "Ann")
	set(t, child(t, sp, "Demographics"), "BirthDate", time.Date(1990, 5, 6, 0, 0, 0, 0, time.Local))
	phone := child(t, sp, "PhoneNumber")
	set(t, phone, "@Type", "0096")
	set(t, phone, "Number", "555-1234")
	set(t, sp, "Email", "ann@example.org")
	set(t, sp, "ProjectedGraduationYear", int64(2012))
	set(t, child(t, sp, "MostRecent"), "HomeroomLocalId", "R12")
	return sp
}

const (
	student2x = `<StudentPersonal RefId="` + studentRefWire + `">` +
		`<LocalId>S1</LocalId>` +
		`<StateProvinceId>CA-1</StateProvinceId>` +
		`<Name Type="04"><LastName>Smith</LastName><FirstName>Ann</FirstName></Name>` +
		`<Demographics><BirthDate>1990-05-06</BirthDate></Demographics>` +
		`<PhoneNumber Type="0096"><Number>555-1234</Number></PhoneNumber>` +
		`<Email>ann@example.org</Email>` +
		`<ProjectedGraduationYear>2012</ProjectedGraduationYear>` +
		`<MostRecent><HomeroomLocalId>R12</HomeroomLocalId></MostRecent>` +
		`</StudentPersonal>`

	student1x = `<StudentPersonal RefId="` + studentRefWire + `">` +
		`<StatePrId>CA-1</StatePrId>` +
		`<LocalId>S1</LocalId>` +
		`<Name Type="04"><LastName>Smith</LastName><FirstName>Ann</FirstName></Name>` +
		`<Demographics><BirthDate>19900506</BirthDate></Demographics>` +
		`<PhoneNumber Format="NA" Type="TE">555-1234</PhoneNumber>` +
		`<GradYear Type="Projected">2012</GradYear>` +
		`<Homeroom Code="R12"/>` +
		`</StudentPersonal>`
)

func TestMarshal(t *testing.T) {
	dict, reg := testSchema(t)
	sp := newStudent(t, dict)
	ser := NewSerializer(WithRegistry(reg))

	tests := []struct {
		v    version.Version
		want string
	}{
		{version.SIF25, student2x},
		{version.SIF20, student2x},
		{version.SIF15r1, student1x},
		{version.SIF11, student1x},
	}
	for _, tt := range tests {
		t.Run(tt.v.String(), func(t *testing.T) {
			got, err := ser.Marshal(sp, tt.v)
			require.NoError(t, err)
			assert.Equal(t, tt.want, string(got))

			again, err := ser.Marshal(sp, tt.v)
			require.NoError(t, err)
			assert.Equal(t, got, again, "rendering is idempotent")
		})
	}
}

func TestMarshalNamespace(t *testing.T) {
	dict, reg := testSchema(t)
	hdr := objects.NewElement(dict.Object(schema.Header))
	set(t, hdr, "SIF_SourceId", "agent")

	got, err := NewSerializer(WithRegistry(reg), WithNamespace()).Marshal(hdr, version.SIF15r1)
	require.NoError(t, err)
	assert.Equal(t, `<SIF_Header xmlns="`+version.Namespace1x+`"><SIF_SourceId>agent</SIF_SourceId></SIF_Header>`, string(got))
}

func TestOmitsAbsentValues(t *testing.T) {
	dict, reg := testSchema(t)
	sp := objects.NewElement(dict.Object(schema.Student))
	set(t, sp, "LocalId", "S1")
	set(t, sp, "Email", nil)
	_, err := sp.Ensure(dict.Object(schema.Student).Child("MostRecent"))
	require.NoError(t, err)

	for _, v := range []version.Version{version.SIF15r1, version.SIF25} {
		got, err := NewSerializer(WithRegistry(reg)).Marshal(sp, v)
		require.NoError(t, err)
		assert.NotContains(t, string(got), "Email", v.String())
		assert.NotContains(t, string(got), "Homeroom", v.String())
	}
}

func TestRoundTrip(t *testing.T) {
	dict, reg := testSchema(t)
	sp := newStudent(t, dict)
	ser := NewSerializer(WithRegistry(reg))
	des := NewDeserializer(dict, WithRegistry(reg), WithStrict())

	for _, v := range version.All() {
		t.Run(v.String(), func(t *testing.T) {
			data, err := ser.Marshal(sp, v)
			require.NoError(t, err)
			back, err := des.Unmarshal(data, v)
			require.NoError(t, err)
			again, err := ser.Marshal(back, v)
			require.NoError(t, err)
			assert.Equal(t, string(data), string(again), spew.Sdump(back.Nodes()))
		})
	}
}

func TestUnmarshalLegacyShapes(t *testing.T) {
	dict, reg := testSchema(t)
	des := NewDeserializer(dict, WithRegistry(reg))

	sp, err := des.Unmarshal([]byte(student1x), version.SIF15r1)
	require.NoError(t, err)

	assert.Equal(t, studentRef, sp.Get("@RefId"))
	assert.Equal(t, "CA-1", sp.Get("StateProvinceId"))
	assert.Equal(t, int64(2012), sp.Get("ProjectedGraduationYear"))
	assert.Equal(t, "R12", sp.Child("MostRecent").Get("HomeroomLocalId"))
	assert.Nil(t, sp.Get("Email"))
	phone := sp.Child("PhoneNumber")
	require.NotNil(t, phone)
	assert.Equal(t, "555-1234", phone.Get("Number"))
	assert.Nil(t, phone.Get("@Type"), "the 1.x discriminator is not canonical data")
	birth, ok := sp.Child("Demographics").Get("BirthDate").(time.Time)
	require.True(t, ok)
	assert.Equal(t, time.May, birth.Month())
}

func TestConvert1xTo2x(t *testing.T) {
	dict, reg := testSchema(t)
	des := NewDeserializer(dict, WithRegistry(reg))
	sp, err := des.Unmarshal([]byte(student1x), version.SIF15r1)
	require.NoError(t, err)

	got, err := NewSerializer(WithRegistry(reg)).Marshal(sp, version.SIF25)
	require.NoError(t, err)
	want := strings.NewReplacer(
		`<PhoneNumber Type="0096">`, `<PhoneNumber>`,
		`<Email>ann@example.org</Email>`, ``,
	).Replace(student2x)
	assert.Equal(t, want, string(got))
}

func TestHeaderTimestamp(t *testing.T) {
	dict, reg := testSchema(t)
	est := time.FixedZone("EST", -5*3600)
	msgID := uuid.MustParse("0f1e2d3c-4b5a-6978-8796-a5b4c3d2e1f0")

	hdr := objects.NewElement(dict.Object(schema.Header))
	set(t, hdr, "SIF_MsgId", msgID)
	set(t, hdr, "SIF_Timestamp", time.Date(1999, 10, 1, 14, 30, 0, 0, est))
	set(t, hdr, "SIF_SourceId", "agent")

	ser := NewSerializer(WithRegistry(reg))
	got, err := ser.Marshal(hdr, version.SIF15r1)
	require.NoError(t, err)
	assert.Equal(t, `<SIF_Header><SIF_MsgId>0F1E2D3C4B5A69788796A5B4C3D2E1F0</SIF_MsgId>`+
		`<SIF_Date>19991001</SIF_Date><SIF_Time Zone="UTC-05:00">14:30:00</SIF_Time>`+
		`<SIF_SourceId>agent</SIF_SourceId></SIF_Header>`, string(got))

	got, err = ser.Marshal(hdr, version.SIF21)
	require.NoError(t, err)
	assert.Contains(t, string(got), `<SIF_Timestamp>1999-10-01T14:30:00-05:00</SIF_Timestamp>`)

	// Date and Time merge in either order.
	des := NewDeserializer(dict, WithRegistry(reg), WithStrict())
	for _, doc := range []string{
		`<SIF_Header><SIF_Date>19991001</SIF_Date><SIF_Time Zone="UTC-05:00">14:30:00</SIF_Time></SIF_Header>`,
		`<SIF_Header><SIF_Time Zone="UTC-05:00">14:30:00</SIF_Time><SIF_Date>19991001</SIF_Date></SIF_Header>`,
	} {
		back, err := des.Unmarshal([]byte(doc), version.SIF15r1)
		require.NoError(t, err)
		ts, ok := back.Get("SIF_Timestamp").(time.Time)
		require.True(t, ok, doc)
		assert.True(t, time.Date(1999, 10, 1, 14, 30, 0, 0, est).Equal(ts), "%s: got %v", doc, ts)
	}
}

func TestUnknownElements(t *testing.T) {
	dict, reg := testSchema(t)
	const doc = `<StudentPersonal Extra="1"><LocalId>S1</LocalId><Unknown><Deep/></Unknown><Email>x@y.z</Email></StudentPersonal>`

	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	sp, err := NewDeserializer(dict, WithRegistry(reg), WithLogger(logger)).Unmarshal([]byte(doc), version.SIF15r1)
	require.NoError(t, err)
	assert.Equal(t, "S1", sp.Get("LocalId"))
	assert.Nil(t, sp.Get("Email"), "Email is not part of SIF 1.5r1")

	var skipped []string
	for line := range strings.SplitSeq(strings.TrimSpace(buf.String()), "\n") {
		var rec map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &rec))
		if rec["msg"] == "skipping unknown element" {
			skipped = append(skipped, rec["element"].(string))
		}
	}
	assert.Equal(t, []string{"@Extra", "Unknown", "Email"}, skipped)

	_, err = NewDeserializer(dict, WithRegistry(reg), WithStrict()).Unmarshal([]byte(doc), version.SIF15r1)
	assert.ErrorIs(t, err, ErrUnknownElement)
}

func TestClaimedTagIsNotCanonical(t *testing.T) {
	dict, reg := testSchema(t)
	// In 1.x the canonical tag belongs to a surrogate, so it is unknown.
	const doc = `<StudentPersonal><ProjectedGraduationYear>2012</ProjectedGraduationYear></StudentPersonal>`
	_, err := NewDeserializer(dict, WithRegistry(reg), WithStrict()).Unmarshal([]byte(doc), version.SIF15r1)
	assert.ErrorIs(t, err, ErrUnknownElement)

	sp, err := NewDeserializer(dict, WithRegistry(reg), WithStrict()).Unmarshal([]byte(doc), version.SIF21)
	require.NoError(t, err)
	assert.Equal(t, int64(2012), sp.Get("ProjectedGraduationYear"))
}

func TestParseErrors(t *testing.T) {
	dict, reg := testSchema(t)
	des := NewDeserializer(dict, WithRegistry(reg))

	_, err := des.Unmarshal([]byte(`<StudentPersonal><ProjectedGraduationYear>soon</ProjectedGraduationYear></StudentPersonal>`), version.SIF25)
	require.Error(t, err)
	assert.ErrorIs(t, err, wire.ErrConversion)
	var pe *wire.ParseError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, "ProjectedGraduationYear", pe.Name)
	assert.Equal(t, version.SIF25, pe.Version)

	_, err = des.Unmarshal([]byte(`<StudentPersonal RefId="nope"/>`), version.SIF25)
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, "@RefId", pe.Name)

	_, err = des.Unmarshal([]byte(`<StudentPersonal><LocalId>S1</LocalId>`), version.SIF25)
	assert.ErrorIs(t, err, wire.ErrInvalidXML)

	_, err = des.Unmarshal([]byte(`<SchoolInfo/>`), version.SIF25)
	assert.ErrorIs(t, err, ErrUnknownElement)
}

func TestMaxDepth(t *testing.T) {
	dict, reg := testSchema(t)
	const doc = `<StudentPersonal><Name Type="04"><LastName>Smith</LastName></Name></StudentPersonal>`

	_, err := NewDeserializer(dict, WithRegistry(reg), WithMaxDepth(1)).Unmarshal([]byte(doc), version.SIF25)
	assert.ErrorIs(t, err, ErrMaxDepth)

	_, err = NewDeserializer(dict, WithRegistry(reg), WithMaxDepth(2)).Unmarshal([]byte(doc), version.SIF25)
	assert.NoError(t, err)
}

func TestUnmarshalDetect(t *testing.T) {
	dict, reg := testSchema(t)
	des := NewDeserializer(dict, WithRegistry(reg))

	tests := []struct {
		doc  string
		want version.Version
		err  error
	}{
		{`<StudentPersonal Version="2.1"><LocalId>S1</LocalId></StudentPersonal>`, version.SIF21, nil},
		{`<StudentPersonal xmlns="` + version.Namespace1x + `"><StatePrId>CA</StatePrId></StudentPersonal>`, version.SIF15r1, nil},
		{`<StudentPersonal/>`, version.Version{}, ErrNoVersion},
		{`<StudentPersonal Version="9"/>`, version.Version{}, version.ErrInvalidVersion},
	}
	for _, tt := range tests {
		el, v, err := des.UnmarshalDetect([]byte(tt.doc))
		if tt.err != nil {
			assert.ErrorIs(t, err, tt.err, tt.doc)
			continue
		}
		require.NoError(t, err, tt.doc)
		assert.Equal(t, tt.want, v)
		assert.Equal(t, schema.Student, el.Def().Name())
	}
}
