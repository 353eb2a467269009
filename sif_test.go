package sif

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smnsjas/go-sifcore/messages"
	"github.com/smnsjas/go-sifcore/objects"
	"github.com/smnsjas/go-sifcore/schema"
	"github.com/smnsjas/go-sifcore/serialization"
	"github.com/smnsjas/go-sifcore/version"
)

const (
	doc1x = `<StudentPersonal>` +
		`<StatePrId>CA-1</StatePrId><LocalId>S1</LocalId>` +
		`<GradYear Type="Projected">2012</GradYear>` +
		`<Homeroom Code="R12"/>` +
		`</StudentPersonal>`
	doc2x = `<StudentPersonal>` +
		`<LocalId>S1</LocalId><StateProvinceId>CA-1</StateProvinceId>` +
		`<ProjectedGraduationYear>2012</ProjectedGraduationYear>` +
		`<MostRecent><HomeroomLocalId>R12</HomeroomLocalId></MostRecent>` +
		`</StudentPersonal>`
)

func TestConvert(t *testing.T) {
	c, err := NewCodec()
	require.NoError(t, err)

	out, err := c.Convert([]byte(doc1x), version.SIF15r1, version.SIF25)
	require.NoError(t, err)
	assert.Equal(t, doc2x, string(out))

	back, err := c.Convert(out, version.SIF25, version.SIF15r1)
	require.NoError(t, err)
	assert.Equal(t, doc1x, string(back))
}

func TestConvertPhoneNumbers(t *testing.T) {
	c, err := NewCodec()
	require.NoError(t, err)

	in := `<StudentPersonal><LocalId>S1</LocalId>` +
		`<PhoneNumber Type="0096"><Number>555-1234</Number></PhoneNumber>` +
		`<PhoneNumber Type="0350"><Number>555-0000</Number></PhoneNumber>` +
		`</StudentPersonal>`
	legacy, err := c.Convert([]byte(in), version.SIF25, version.SIF15r1)
	require.NoError(t, err)
	assert.Equal(t, `<StudentPersonal><LocalId>S1</LocalId>`+
		`<PhoneNumber Format="NA" Type="TE">555-1234</PhoneNumber></StudentPersonal>`, string(legacy))

	back, err := c.Convert(legacy, version.SIF15r1, version.SIF25)
	require.NoError(t, err)
	assert.Equal(t, `<StudentPersonal><LocalId>S1</LocalId>`+
		`<PhoneNumber Type="0096"><Number>555-1234</Number></PhoneNumber></StudentPersonal>`, string(back))
}

func TestConvertFractionalTimestamp(t *testing.T) {
	c, err := NewCodec()
	require.NoError(t, err)

	want := time.Date(1999, 10, 1, 14, 30, 0, 500_000_000, time.FixedZone("", -5*3600))
	hdr := objects.NewElement(c.Dictionary().Object(schema.Header))
	_, err = hdr.Set("SIF_Timestamp", want)
	require.NoError(t, err)

	data, err := c.Marshal(hdr, version.SIF15r1)
	require.NoError(t, err)
	assert.Contains(t, string(data), `<SIF_Time Zone="UTC-05:00">14:30:00.5</SIF_Time>`)

	el, _, err := c.Unmarshal(data, version.SIF15r1)
	require.NoError(t, err)
	got, ok := el.Get("SIF_Timestamp").(time.Time)
	require.True(t, ok)
	assert.True(t, want.Equal(got), "got %v", got)
}

func TestConvertDetectsVersion(t *testing.T) {
	c, err := NewCodec(WithNamespace(true))
	require.NoError(t, err)

	in := `<StudentPersonal xmlns="http://www.sifinfo.org/infrastructure/1.x">` +
		`<StatePrId>CA-1</StatePrId></StudentPersonal>`
	out, err := c.Convert([]byte(in), version.Version{}, version.SIF21)
	require.NoError(t, err)
	assert.Equal(t, `<StudentPersonal xmlns="http://www.sifinfo.org/infrastructure/2.x">`+
		`<StateProvinceId>CA-1</StateProvinceId></StudentPersonal>`, string(out))

	_, err = c.Convert([]byte(`<StudentPersonal/>`), version.Version{}, version.SIF21)
	assert.ErrorIs(t, err, serialization.ErrNoVersion)
}

func TestStrictOption(t *testing.T) {
	doc := []byte(`<StudentPersonal><LocalId>S1</LocalId><Email>a@b.c</Email></StudentPersonal>`)

	var logs bytes.Buffer
	lenient, err := NewCodec(WithLogger(slog.New(slog.NewTextHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug}))))
	require.NoError(t, err)
	el, _, err := lenient.Unmarshal(doc, version.SIF15r1)
	require.NoError(t, err)
	assert.Nil(t, el.Get("Email"))
	assert.Contains(t, logs.String(), "skipping unknown element")

	strict, err := NewCodec(WithStrict(true))
	require.NoError(t, err)
	_, _, err = strict.Unmarshal(doc, version.SIF15r1)
	assert.ErrorIs(t, err, serialization.ErrUnknownElement)
}

func TestConvertAll(t *testing.T) {
	c, err := NewCodec(WithWorkers(3))
	require.NoError(t, err)

	docs := make([][]byte, 20)
	for i := range docs {
		docs[i] = fmt.Appendf(nil, `<StudentPersonal><LocalId>S%d</LocalId><GradYear Type="Projected">%d</GradYear></StudentPersonal>`, i, 2000+i)
	}
	out, err := c.ConvertAll(context.Background(), docs, version.SIF15r1, version.SIF25)
	require.NoError(t, err)
	require.Len(t, out, len(docs))
	for i, doc := range out {
		want := fmt.Sprintf(`<StudentPersonal><LocalId>S%d</LocalId><ProjectedGraduationYear>%d</ProjectedGraduationYear></StudentPersonal>`, i, 2000+i)
		assert.Equal(t, want, string(doc))
	}

	docs[7] = []byte(`<StudentPersonal><GradYear Type="Projected">soon</GradYear></StudentPersonal>`)
	_, err = c.ConvertAll(context.Background(), docs, version.SIF15r1, version.SIF25)
	assert.ErrorContains(t, err, "document 7")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = c.ConvertAll(ctx, docs[:3], version.SIF15r1, version.SIF25)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestQueryAndEvents(t *testing.T) {
	c, err := NewCodec()
	require.NoError(t, err)

	el, _, err := c.Unmarshal([]byte(doc2x), version.SIF25)
	require.NoError(t, err)

	q := c.Query(el, version.SIF15r1)
	code, ok, err := q.Text("Homeroom/@Code")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "R12", code)
	require.NoError(t, q.SetValue("GradYear[@Type='Projected']", "2014"))
	assert.Equal(t, int64(2014), el.Get("ProjectedGraduationYear"))

	e := messages.NewEvent(messages.NewHeader("SIS"), messages.ActionChange, el)
	data, err := c.MarshalEvent(e, version.SIF15r1)
	require.NoError(t, err)
	assert.Contains(t, string(data), `<GradYear Type="Projected">2014</GradYear>`)

	got, v, err := c.UnmarshalEvent(data)
	require.NoError(t, err)
	assert.Equal(t, version.SIF15r1, v)
	assert.Equal(t, e.Header.MsgID, got.Header.MsgID)
	assert.Equal(t, "R12", got.Object.Child("MostRecent").Get("HomeroomLocalId"))
}

func TestWithSchema(t *testing.T) {
	b := objects.NewBuilder()
	course := b.Object("Course")
	b.Field(course, "Title", objects.TypeString, objects.FlagMandatory)
	dict, err := b.Build()
	require.NoError(t, err)

	c, err := NewCodec(WithSchema(dict, nil))
	require.NoError(t, err)
	assert.Same(t, dict, c.Dictionary())

	out, err := c.Convert([]byte(`<Course><Title>Algebra</Title></Course>`), version.SIF11, version.SIF25)
	require.NoError(t, err)
	assert.Equal(t, `<Course><Title>Algebra</Title></Course>`, string(out))

	_, err = c.Convert([]byte(doc1x), version.SIF15r1, version.SIF25)
	assert.ErrorIs(t, err, serialization.ErrUnknownElement)
}
