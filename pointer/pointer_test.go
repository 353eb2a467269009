package pointer

import (
	"slices"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smnsjas/go-sifcore/objects"
	"github.com/smnsjas/go-sifcore/version"
	"github.com/smnsjas/go-sifcore/wire"
)

type fixture struct {
	sp, name, last, typ, sid, email, stamp *objects.ElementDef
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	b := objects.NewBuilder()
	var f fixture
	f.sp = b.Object("StudentPersonal")
	f.sid = b.Field(f.sp, "StateProvinceId", objects.TypeString, 0, objects.TagFor(version.All1x, "StatePrId"))
	f.name = b.Element(f.sp, "Name", 0)
	f.typ = b.Attr(f.name, "Type", objects.TypeEnum, 0)
	f.last = b.Field(f.name, "LastName", objects.TypeString, 0)
	f.email = b.Field(f.sp, "Email", objects.TypeString, 0, objects.Since(version.SIF20))
	f.stamp = b.Field(f.sp, "Stamp", objects.TypeDateTime, 0)
	_, err := b.Build()
	require.NoError(t, err)
	return f
}

func names(seq func(func(Pointer) bool)) []string {
	var out []string
	for p := range seq {
		out = append(out, p.Name())
	}
	return out
}

func TestElementPointerNames(t *testing.T) {
	f := newFixture(t)
	root := objects.NewElement(f.sp)
	_, err := root.SetDef(f.sid, "CA-1")
	require.NoError(t, err)
	_, err = root.SetDef(f.email, "a@b.c")
	require.NoError(t, err)
	name, err := root.Ensure(f.name)
	require.NoError(t, err)
	_, err = name.SetDef(f.typ, "04")
	require.NoError(t, err)

	p1x := NewRoot(NewEnv(version.SIF15r1, nil), root)
	assert.Equal(t, []string{"StatePrId", "Name"}, names(p1x.Children()), "Email is not carried by 1.5r1")

	p2x := NewRoot(NewEnv(version.SIF21, nil), root)
	assert.Equal(t, []string{"StateProvinceId", "Email", "Name"}, names(p2x.Children()))

	var namePtr Pointer
	for c := range p2x.Children() {
		if c.Name() == "Name" {
			namePtr = c
		}
	}
	require.NotNil(t, namePtr)
	assert.Equal(t, []string{"Type"}, names(namePtr.Attributes()))
	assert.Empty(t, names(namePtr.Children()))
	assert.False(t, namePtr.Empty())

	for a := range namePtr.Attributes() {
		assert.Equal(t, KindAttribute, a.Kind())
		assert.Equal(t, "/StudentPersonal/Name/@Type", Path(a))
	}
}

func TestCreateChild(t *testing.T) {
	f := newFixture(t)
	root := objects.NewElement(f.sp)
	p := NewRoot(NewEnv(version.SIF11, nil), root)

	c, err := p.CreateChild("StatePrId", 0)
	require.NoError(t, err)
	require.NotNil(t, c)
	require.NoError(t, c.SetValue("CA-9"))
	assert.Equal(t, "CA-9", root.Get("StateProvinceId"))

	again, err := p.CreateChild("StatePrId", 1)
	require.NoError(t, err)
	assert.Same(t, c.Node(), again.Node(), "non-repeatable child is reused")

	missing, err := p.CreateChild("StateProvinceId", 0)
	require.NoError(t, err)
	assert.Nil(t, missing, "2.x tag is not a 1.1 child")

	name, err := p.CreateChild("Name", 0)
	require.NoError(t, err)
	typ, err := name.CreateAttribute("Type")
	require.NoError(t, err)
	require.NoError(t, typ.SetValue("04"))
	assert.Equal(t, "04", root.Child("Name").Get("Type"))

	absent, err := name.CreateAttribute("Nope")
	require.NoError(t, err)
	assert.Nil(t, absent)
}

func TestSetValueConversion(t *testing.T) {
	f := newFixture(t)
	root := objects.NewElement(f.sp)
	p := NewRoot(NewEnv(version.SIF15r1, nil), root)

	c, err := p.CreateChild("Stamp", 0)
	require.NoError(t, err)
	require.NoError(t, c.SetValue("1999-10-01T14:30:00"))
	tm := root.Get("Stamp").(time.Time)
	assert.Equal(t, 14, tm.Hour())

	err = c.SetValue("not a time")
	assert.ErrorIs(t, err, wire.ErrConversion)

	err = c.SetValue(42)
	assert.ErrorIs(t, err, wire.ErrConversion)

	s, ok := c.Text()
	assert.True(t, ok)
	assert.Equal(t, "1999-10-01T14:30:00", s)
}

func TestVirtualShapes(t *testing.T) {
	f := newFixture(t)
	root := objects.NewElement(f.sp)
	stamp, err := root.SetDef(f.stamp, time.Date(1999, 10, 1, 14, 30, 0, 0, time.Local))
	require.NoError(t, err)
	p := NewRoot(NewEnv(version.SIF15r1, nil), root)

	// Group "Wrap" holding leaf attribute "@When".
	g := NewGroup(p, "Wrap")
	leaf := NewLeaf(g, "When", true, stamp).WithView(objects.TypeDate, nil)
	g.SetChild(leaf)
	g.AddConstant("Kind", "Projected")

	assert.True(t, g.Empty(), "group with attribute child is empty")
	assert.Equal(t, VirtualGroup, g.VirtualKind())
	assert.Equal(t, []string{"Kind", "When"}, names(g.Attributes()))
	assert.Empty(t, names(g.Children()))

	s, ok := leaf.Text()
	require.True(t, ok)
	assert.Equal(t, "19991001", s, "date view of a datetime")

	c, err := g.CreateAttribute("Kind")
	require.NoError(t, err)
	assert.NoError(t, c.SetValue("Projected"))
	assert.ErrorIs(t, c.SetValue("Actual"), ErrReadOnly)
	assert.ErrorIs(t, g.SetValue("x"), ErrReadOnly)

	w, err := g.CreateAttribute("When")
	require.NoError(t, err)
	assert.Same(t, leaf, w)

	// A cloned leaf writes through to the same field.
	clone := leaf.Clone()
	require.NoError(t, clone.SetValue("20010203"))
	got := stamp.Value().(time.Time)
	assert.Equal(t, 2001, got.Year())
	assert.Equal(t, "/StudentPersonal/Wrap/@When", Path(clone))

	// A cloned group owns its constants and child.
	gc := g.Clone()
	for a := range gc.Attributes() {
		assert.Same(t, gc, a.Parent(), a.Name())
	}
	cw, err := gc.CreateAttribute("When")
	require.NoError(t, err)
	assert.NotSame(t, leaf, cw)
	require.NoError(t, cw.SetValue("20020304"))
	assert.Equal(t, 2002, stamp.Value().(time.Time).Year())
	for a := range g.Attributes() {
		assert.Same(t, g, a.Parent(), a.Name())
	}
}

func TestVirtualMerge(t *testing.T) {
	f := newFixture(t)
	root := objects.NewElement(f.sp)
	stamp, err := root.SetDef(f.stamp, time.Date(1999, 10, 1, 14, 30, 0, 0, time.UTC))
	require.NoError(t, err)
	p := NewRoot(NewEnv(version.SIF11, nil), root)

	keepTime := func(old, v any) any {
		o, n := old.(time.Time), v.(time.Time)
		return time.Date(n.Year(), n.Month(), n.Day(), o.Hour(), o.Minute(), o.Second(), 0, o.Location())
	}
	leaf := NewLeaf(p, "SIF_Date", false, stamp).WithView(objects.TypeDate, keepTime)
	require.NoError(t, leaf.SetValue("20050607"))

	got := stamp.Value().(time.Time)
	assert.Equal(t, time.Date(2005, 6, 7, 14, 30, 0, 0, time.UTC), got)
	assert.False(t, leaf.Empty())
	assert.Nil(t, slices.Collect(leaf.Children()))
}

type stubResolver struct {
	claimed map[*objects.ElementDef]bool
	created []string
}

func (r *stubResolver) NodePointers(parent Pointer, n objects.Node) ([]Pointer, bool) {
	if !r.claimed[n.Def()] {
		return nil, false
	}
	return []Pointer{NewLeaf(parent, "Legacy"+n.Def().Name(), false, n)}, true
}

func (r *stubResolver) CreateChildPointer(parent Pointer, name string) (Pointer, bool, error) {
	r.created = append(r.created, name)
	return nil, false, nil
}

func (r *stubResolver) Claims(def *objects.ElementDef, _ version.Version) bool {
	return r.claimed[def]
}

func TestResolverClaims(t *testing.T) {
	f := newFixture(t)
	root := objects.NewElement(f.sp)
	_, err := root.SetDef(f.sid, "X")
	require.NoError(t, err)

	res := &stubResolver{claimed: map[*objects.ElementDef]bool{f.sid: true}}
	p := NewRoot(NewEnv(version.SIF11, res), root)
	assert.Equal(t, []string{"LegacyStateProvinceId"}, names(p.Children()))

	_, err = p.CreateAttribute("Foo")
	require.NoError(t, err)
	_, err = p.CreateChild("Bar", 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"@Foo", "Bar"}, res.created)

	hidden, err := p.CreateChild("StatePrId", 0)
	require.NoError(t, err)
	assert.Nil(t, hidden, "claimed definitions are not reachable by canonical tag")
}
