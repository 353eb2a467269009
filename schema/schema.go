// Package schema bundles a small sample of the SIF data-object catalogue:
// the SIF_Header infrastructure element and the StudentPersonal object,
// together with the surrogates that give them their SIF 1.x shapes.
//
// The catalogue proper is generated from the SIF schemas and lives outside
// this module; the sample exists so the codec, the query engine and the
// sifconv tool have real definitions to work with.
//
// # Legacy Shapes
//
// In SIF 1.x:
//
//   - SIF_Header/SIF_Timestamp is split into SIF_Date and SIF_Time with a
//     Zone attribute.
//   - StudentPersonal/StateProvinceId is named StatePrId.
//   - A main telephone PhoneNumber (Type 0096) carries its number as text
//     and is discriminated by Format="NA" Type="TE". Other phone types have
//     no 1.x shape and are not rendered.
//   - ProjectedGraduationYear is GradYear Type="Projected".
//   - MostRecent/HomeroomLocalId is the Code attribute of Homeroom.
//   - Email does not exist.
package schema

import (
	"errors"
	"sync"

	"github.com/smnsjas/go-sifcore/objects"
	"github.com/smnsjas/go-sifcore/surrogate"
	"github.com/smnsjas/go-sifcore/version"
)

// Object names.
const (
	Header  = "SIF_Header"
	Student = "StudentPersonal"
)

// PhoneMain is the PhoneNumber Type code of a main telephone number.
const PhoneMain = "0096"

// Schema is a dictionary and the surrogate bindings for it.
type Schema struct {
	Dict     *objects.Dictionary
	Registry *surrogate.Registry
}

var defaultSchema = sync.OnceValues(Build)

// Default returns the shared sample schema, building it on first use.
func Default() (*objects.Dictionary, *surrogate.Registry, error) {
	s, err := defaultSchema()
	if err != nil {
		return nil, nil, err
	}
	return s.Dict, s.Registry, nil
}

// Build constructs a fresh copy of the sample schema.
func Build() (*Schema, error) {
	b := objects.NewBuilder()

	hdr := b.Object(Header)
	b.Field(hdr, "SIF_MsgId", objects.TypeGUID, objects.FlagMandatory)
	stamp := b.Field(hdr, "SIF_Timestamp", objects.TypeDateTime, objects.FlagMandatory)
	b.Field(hdr, "SIF_SourceId", objects.TypeString, objects.FlagMandatory)
	b.Field(hdr, "SIF_DestinationId", objects.TypeString, objects.FlagOptional)

	sp := b.Object(Student)
	b.Attr(sp, "RefId", objects.TypeGUID, objects.FlagRequired)
	b.Field(sp, "LocalId", objects.TypeString, objects.FlagMandatory)
	b.Field(sp, "StateProvinceId", objects.TypeString, objects.FlagOptional,
		objects.TagFor(version.All1x, "StatePrId"),
		objects.SequenceFor(version.All1x, 0))

	name := b.Element(sp, "Name", objects.FlagMandatory)
	b.Attr(name, "Type", objects.TypeEnum, objects.FlagRequired)
	b.Field(name, "LastName", objects.TypeString, objects.FlagMandatory)
	b.Field(name, "FirstName", objects.TypeString, objects.FlagMandatory)
	b.Field(name, "MiddleName", objects.TypeString, objects.FlagOptional)

	demo := b.Element(sp, "Demographics", objects.FlagOptional)
	b.Field(demo, "Gender", objects.TypeEnum, objects.FlagOptional)
	b.Field(demo, "BirthDate", objects.TypeDate, objects.FlagOptional)

	phone := b.Element(sp, "PhoneNumber", objects.FlagOptional|objects.FlagRepeatable)
	b.Attr(phone, "Type", objects.TypeEnum, objects.FlagRequired)
	b.Field(phone, "Number", objects.TypeString, objects.FlagMandatory)

	b.Field(sp, "Email", objects.TypeString, objects.FlagOptional, objects.Since(version.SIF20))
	projected := b.Field(sp, "ProjectedGraduationYear", objects.TypeInt, objects.FlagOptional)

	recent := b.Element(sp, "MostRecent", objects.FlagOptional)
	b.Field(recent, "HomeroomLocalId", objects.TypeString, objects.FlagOptional)
	b.Field(recent, "GradeLevel", objects.TypeEnum, objects.FlagOptional, objects.Since(version.SIF20))

	dict, err := b.Build()
	if err != nil {
		return nil, err
	}

	phoneMap, err1 := surrogate.NewPathRemap(phone, "PhoneNumber[@Format='NA' and @Type='TE']", "Number",
		surrogate.WithFixed("@Type", PhoneMain))
	gradMap, err2 := surrogate.NewPathRemap(projected, "GradYear[@Type='Projected']", ".")
	roomMap, err3 := surrogate.NewPathRemap(recent, "Homeroom/@Code", "HomeroomLocalId")
	if err := errors.Join(err1, err2, err3); err != nil {
		return nil, err
	}

	reg, err := surrogate.NewBuilder().
		Bind(surrogate.NewTimestampSplit(stamp, "SIF_Date", "SIF_Time"), version.All1x).
		Bind(phoneMap, version.All1x).
		Bind(gradMap, version.All1x).
		Bind(roomMap, version.All1x).
		Build()
	if err != nil {
		return nil, err
	}
	return &Schema{Dict: dict, Registry: reg}, nil
}
