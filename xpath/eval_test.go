package xpath

import (
	"context"
	"fmt"
	"testing"

	"golang.org/x/sync/errgroup"

	"github.com/smnsjas/go-sifcore/objects"
	"github.com/smnsjas/go-sifcore/pointer"
	"github.com/smnsjas/go-sifcore/version"
)

func testTree(t *testing.T) *pointer.ElementPointer {
	t.Helper()
	b := objects.NewBuilder()
	sp := b.Object("StudentPersonal")
	b.Attr(sp, "RefId", objects.TypeString, 0)
	name := b.Element(sp, "Name", objects.FlagRepeatable)
	b.Attr(name, "Type", objects.TypeEnum, 0)
	b.Field(name, "LastName", objects.TypeString, 0)
	b.Field(sp, "GradYear", objects.TypeInt, 0)
	if _, err := b.Build(); err != nil {
		t.Fatal(err)
	}

	root := objects.NewElement(sp)
	mustSet(t, root, "@RefId", "A1")
	mustSet(t, root, "GradYear", int64(2012))
	for _, n := range []struct{ typ, last string }{{"04", "Smith"}, {"02", "Smyth"}} {
		el, err := root.AddChild(sp.Child("Name"))
		if err != nil {
			t.Fatal(err)
		}
		mustSet(t, el, "@Type", n.typ)
		mustSet(t, el, "LastName", n.last)
	}
	return pointer.NewRoot(pointer.NewEnv(version.SIF21, nil), root)
}

func mustSet(t *testing.T, el *objects.Element, name string, v any) {
	t.Helper()
	if _, err := el.Set(name, v); err != nil {
		t.Fatal(err)
	}
}

func texts(ps []pointer.Pointer) []string {
	var out []string
	for _, p := range ps {
		s, _ := p.Text()
		out = append(out, s)
	}
	return out
}

func TestSelect(t *testing.T) {
	root := testTree(t)

	tests := []struct {
		expr string
		want []string
	}{
		{"Name/LastName", []string{"Smith", "Smyth"}},
		{"Name[@Type='02']/LastName", []string{"Smyth"}},
		{"Name[@Type='02' and LastName='Smith']/LastName", nil},
		{"/StudentPersonal/@RefId", []string{"A1"}},
		{"/Other/@RefId", nil},
		{"GradYear", []string{"2012"}},
		{".[GradYear=2012]/@RefId", []string{"A1"}},
		{".[GradYear='2012.0']/@RefId", nil},
		{"Name[LastName]/LastName", nil},
		{"Name/*", []string{"Smith", "Smyth"}},
		{"Missing/Deeper", nil},
		{"Name/@Type=04", []string{"04"}},
	}
	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			got := texts(MustCompile(tt.expr).Select(root))
			if fmt.Sprint(got) != fmt.Sprint(tt.want) {
				t.Errorf("Select(%q) = %v, want %v", tt.expr, got, tt.want)
			}
		})
	}
}

func TestSelectFromDescendant(t *testing.T) {
	root := testTree(t)
	name := MustCompile("Name[@Type='04']").First(root)
	if name == nil {
		t.Fatal("no Name[@Type='04']")
	}
	if got := texts(MustCompile("LastName").Select(name)); fmt.Sprint(got) != "[Smith]" {
		t.Errorf("relative = %v", got)
	}
	// Absolute paths climb to the root first.
	if got := texts(Eval(MustCompile("/StudentPersonal/@RefId"), name)); fmt.Sprint(got) != "[A1]" {
		t.Errorf("absolute from descendant = %v", got)
	}
	if MustCompile("A").Select(nil) != nil {
		t.Error("nil context selected nodes")
	}
}

func TestCacheConcurrent(t *testing.T) {
	var c Cache
	g, _ := errgroup.WithContext(context.Background())
	results := make([]*Path, 32)
	for i := range results {
		g.Go(func() error {
			p, err := c.Compile("Name[@Type='04']/LastName")
			results[i] = p
			return err
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatal(err)
	}
	for _, p := range results {
		if p != results[0] {
			t.Fatal("cache returned distinct paths for the same text")
		}
	}
	if c.Len() != 1 {
		t.Errorf("Len = %d, want 1", c.Len())
	}

	if _, err := c.Compile("A["); err == nil {
		t.Error("invalid expression compiled")
	}
	if c.Len() != 1 {
		t.Errorf("failed compile was cached")
	}

	p1, err := Cached("GradYear")
	if err != nil {
		t.Fatal(err)
	}
	p2, _ := Cached("GradYear")
	if p1 != p2 {
		t.Error("Cached returned distinct paths")
	}
}
