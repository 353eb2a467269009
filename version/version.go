// Package version defines SIF protocol versions.
//
// SIF evolved through a series of incompatible wire-format revisions. Each
// revision is identified by a major, minor and revision number, written as
// "1.5r1" or "2.0" on the wire (the Version attribute of SIF_Message).
//
// # Ordering
//
// Versions are totally ordered. A Range describes the span of versions in
// which a field, object or surrogate applies:
//
//	r := version.Range{Earliest: version.SIF10r1, Latest: version.SIF15r1}
//	if r.Contains(v) {
//	    // legacy shape applies
//	}
//
// # Namespaces
//
// SIF 1.x and 2.x documents use different default XML namespaces. See
// Version.Namespace and ForNamespace.
package version

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// XML namespaces of the SIF infrastructure schemas.
const (
	Namespace1x = "http://www.sifinfo.org/infrastructure/1.x"
	Namespace2x = "http://www.sifinfo.org/infrastructure/2.x"
)

// ErrInvalidVersion is returned when a version string cannot be parsed.
var ErrInvalidVersion = errors.New("invalid SIF version")

// Version identifies one SIF wire-schema revision.
type Version struct {
	Major    int
	Minor    int
	Revision int
}

// Known SIF versions.
var (
	SIF10r1 = Version{1, 0, 1}
	SIF10r2 = Version{1, 0, 2}
	SIF11   = Version{1, 1, 0}
	SIF15   = Version{1, 5, 0}
	SIF15r1 = Version{1, 5, 1}
	SIF20   = Version{2, 0, 0}
	SIF20r1 = Version{2, 0, 1}
	SIF21   = Version{2, 1, 0}
	SIF22   = Version{2, 2, 0}
	SIF23   = Version{2, 3, 0}
	SIF24   = Version{2, 4, 0}
	SIF25   = Version{2, 5, 0}
)

var known = []Version{
	SIF10r1, SIF10r2, SIF11, SIF15, SIF15r1,
	SIF20, SIF20r1, SIF21, SIF22, SIF23, SIF24, SIF25,
}

// All returns every version this library understands, oldest first.
func All() []Version {
	out := make([]Version, len(known))
	copy(out, known)
	return out
}

// Earliest returns the oldest supported version.
func Earliest() Version { return known[0] }

// Latest returns the newest supported version.
func Latest() Version { return known[len(known)-1] }

// Parse parses a version string such as "1.5r1", "2.0" or "2.5".
func Parse(s string) (Version, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Version{}, fmt.Errorf("%w: empty string", ErrInvalidVersion)
	}
	head, rev, hasRev := strings.Cut(s, "r")
	major, minor, ok := strings.Cut(head, ".")
	if !ok {
		return Version{}, fmt.Errorf("%w: %q", ErrInvalidVersion, s)
	}
	var v Version
	var err error
	if v.Major, err = strconv.Atoi(major); err != nil || v.Major < 0 {
		return Version{}, fmt.Errorf("%w: %q", ErrInvalidVersion, s)
	}
	if v.Minor, err = strconv.Atoi(minor); err != nil || v.Minor < 0 {
		return Version{}, fmt.Errorf("%w: %q", ErrInvalidVersion, s)
	}
	if hasRev {
		if v.Revision, err = strconv.Atoi(rev); err != nil || v.Revision < 1 {
			return Version{}, fmt.Errorf("%w: %q", ErrInvalidVersion, s)
		}
	}
	return v, nil
}

// MustParse is like Parse but panics on error. Intended for static tables.
func MustParse(s string) Version {
	v, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return v
}

// String returns the wire form of the version.
func (v Version) String() string {
	s := strconv.Itoa(v.Major) + "." + strconv.Itoa(v.Minor)
	if v.Revision > 0 {
		s += "r" + strconv.Itoa(v.Revision)
	}
	return s
}

// IsZero reports whether v is the zero Version.
func (v Version) IsZero() bool {
	return v == Version{}
}

// Compare returns -1, 0 or +1 depending on whether v sorts before, equal
// to, or after o.
func (v Version) Compare(o Version) int {
	switch {
	case v.Major != o.Major:
		return cmpInt(v.Major, o.Major)
	case v.Minor != o.Minor:
		return cmpInt(v.Minor, o.Minor)
	default:
		return cmpInt(v.Revision, o.Revision)
	}
}

// Before reports whether v is older than o.
func (v Version) Before(o Version) bool { return v.Compare(o) < 0 }

// After reports whether v is newer than o.
func (v Version) After(o Version) bool { return v.Compare(o) > 0 }

// Namespace returns the default XML namespace for documents of this version.
func (v Version) Namespace() string {
	if v.Major < 2 {
		return Namespace1x
	}
	return Namespace2x
}

// ForNamespace returns the newest known version using namespace ns.
func ForNamespace(ns string) (Version, error) {
	var out Version
	for _, v := range known {
		if v.Namespace() == ns {
			out = v
		}
	}
	if out.IsZero() {
		return Version{}, fmt.Errorf("%w: unknown namespace %q", ErrInvalidVersion, ns)
	}
	return out, nil
}

func cmpInt(a, b int) int {
	if a < b {
		return -1
	}
	if a > b {
		return 1
	}
	return 0
}

// Range is an inclusive span of versions. A zero Earliest or Latest leaves
// that side unbounded.
type Range struct {
	Earliest Version
	Latest   Version
}

// All1x spans every SIF 1.x version.
var All1x = Range{Earliest: SIF10r1, Latest: Version{1, 999, 999}}

// From2x spans every SIF 2.x version and later.
var From2x = Range{Earliest: SIF20}

// Contains reports whether v falls inside r.
func (r Range) Contains(v Version) bool {
	if !r.Earliest.IsZero() && v.Before(r.Earliest) {
		return false
	}
	if !r.Latest.IsZero() && v.After(r.Latest) {
		return false
	}
	return true
}

// Valid reports whether Earliest does not sort after Latest.
func (r Range) Valid() bool {
	return r.Earliest.IsZero() || r.Latest.IsZero() || !r.Earliest.After(r.Latest)
}

// Overlaps reports whether r and o share at least one version.
func (r Range) Overlaps(o Range) bool {
	if !r.Latest.IsZero() && !o.Earliest.IsZero() && r.Latest.Before(o.Earliest) {
		return false
	}
	if !o.Latest.IsZero() && !r.Earliest.IsZero() && o.Latest.Before(r.Earliest) {
		return false
	}
	return true
}

func (r Range) String() string {
	lo, hi := "*", "*"
	if !r.Earliest.IsZero() {
		lo = r.Earliest.String()
	}
	if !r.Latest.IsZero() {
		hi = r.Latest.String()
	}
	return "[" + lo + ", " + hi + "]"
}
