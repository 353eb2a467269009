package wire

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/smnsjas/go-sifcore/objects"
	"github.com/smnsjas/go-sifcore/version"
)

// Formatter converts typed values to and from their wire text in one
// family of protocol versions. Implementations are stateless and safe for
// concurrent use.
type Formatter interface {
	// Format renders v, which must be the Go carrier for t. A nil value
	// formats as the empty string.
	Format(t objects.Type, v any) (string, error)
	// Parse converts wire text to the Go carrier for t.
	Parse(t objects.Type, s string) (any, error)
}

var (
	sif1x Formatter = sif1xFormatter{}
	sif2x Formatter = sif2xFormatter{}
)

// FormatterFor returns the formatter for v. SIF 1.x and 2.x differ in their
// boolean and date lexical forms.
func FormatterFor(v version.Version) Formatter {
	if v.Major < 2 {
		return sif1x
	}
	return sif2x
}

// Wire layouts.
const (
	Date1xLayout     = "20060102"
	Date2xLayout     = "2006-01-02"
	TimeLayout       = "15:04:05.999999999"
	DateTime1xLayout = "2006-01-02T15:04:05"
)

type sif1xFormatter struct{}

func (sif1xFormatter) Format(t objects.Type, v any) (string, error) {
	switch t {
	case objects.TypeBool:
		b, ok := v.(bool)
		if !ok {
			return formatCommon(t, v)
		}
		if b {
			return "Yes", nil
		}
		return "No", nil
	case objects.TypeDate:
		tm, ok := v.(time.Time)
		if !ok {
			return formatCommon(t, v)
		}
		return tm.Format(Date1xLayout), nil
	case objects.TypeDateTime:
		tm, ok := v.(time.Time)
		if !ok {
			return formatCommon(t, v)
		}
		return tm.Format(DateTime1xLayout), nil
	}
	return formatCommon(t, v)
}

func (sif1xFormatter) Parse(t objects.Type, s string) (any, error) {
	s = strings.TrimSpace(s)
	switch t {
	case objects.TypeBool:
		switch strings.ToLower(s) {
		case "yes", "y", "true", "1":
			return true, nil
		case "no", "n", "false", "0":
			return false, nil
		}
		return nil, convErr(t, s, nil)
	case objects.TypeDate:
		// Some 1.x agents emit the extended form; accept both.
		for _, layout := range []string{Date1xLayout, Date2xLayout} {
			if tm, err := time.ParseInLocation(layout, s, time.Local); err == nil {
				return tm, nil
			}
		}
		return nil, convErr(t, s, nil)
	case objects.TypeDateTime:
		for _, layout := range []string{DateTime1xLayout, "20060102T15:04:05", time.RFC3339Nano} {
			if tm, err := time.ParseInLocation(layout, s, time.Local); err == nil {
				return tm, nil
			}
		}
		return nil, convErr(t, s, nil)
	}
	return parseCommon(t, s)
}

type sif2xFormatter struct{}

func (sif2xFormatter) Format(t objects.Type, v any) (string, error) {
	switch t {
	case objects.TypeBool:
		b, ok := v.(bool)
		if !ok {
			return formatCommon(t, v)
		}
		return strconv.FormatBool(b), nil
	case objects.TypeDate:
		tm, ok := v.(time.Time)
		if !ok {
			return formatCommon(t, v)
		}
		return tm.Format(Date2xLayout), nil
	case objects.TypeDateTime:
		tm, ok := v.(time.Time)
		if !ok {
			return formatCommon(t, v)
		}
		return tm.Format(time.RFC3339Nano), nil
	}
	return formatCommon(t, v)
}

func (sif2xFormatter) Parse(t objects.Type, s string) (any, error) {
	s = strings.TrimSpace(s)
	switch t {
	case objects.TypeBool:
		switch s {
		case "true", "1":
			return true, nil
		case "false", "0":
			return false, nil
		}
		return nil, convErr(t, s, nil)
	case objects.TypeDate:
		tm, err := time.ParseInLocation(Date2xLayout, s, time.Local)
		if err != nil {
			return nil, convErr(t, s, err)
		}
		return tm, nil
	case objects.TypeDateTime:
		if tm, err := time.Parse(time.RFC3339Nano, s); err == nil {
			return tm, nil
		}
		tm, err := time.ParseInLocation(DateTime1xLayout, s, time.Local)
		if err != nil {
			return nil, convErr(t, s, err)
		}
		return tm, nil
	}
	return parseCommon(t, s)
}

func formatCommon(t objects.Type, v any) (string, error) {
	if v == nil {
		return "", nil
	}
	n, err := objects.Normalize(t, v)
	if err != nil {
		return "", convErr(t, fmt.Sprint(v), err)
	}
	switch t {
	case objects.TypeInt:
		return strconv.FormatInt(n.(int64), 10), nil
	case objects.TypeDecimal:
		return FormatDecimal(n.(float64)), nil
	case objects.TypeTime:
		return n.(time.Time).Format(TimeLayout), nil
	case objects.TypeDuration:
		return FormatDuration(n.(time.Duration)), nil
	case objects.TypeString, objects.TypeEnum, objects.TypeNone:
		return n.(string), nil
	case objects.TypeGUID:
		return FormatGUID(n.(uuid.UUID)), nil
	}
	return "", convErr(t, fmt.Sprint(v), errors.New("no wire form"))
}

func parseCommon(t objects.Type, s string) (any, error) {
	switch t {
	case objects.TypeInt:
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return nil, convErr(t, s, err)
		}
		return n, nil
	case objects.TypeDecimal:
		f, err := ParseDecimal(s)
		if err != nil {
			return nil, convErr(t, s, err)
		}
		return f, nil
	case objects.TypeTime:
		tm, err := ParseTime(s)
		if err != nil {
			return nil, convErr(t, s, err)
		}
		return tm, nil
	case objects.TypeDuration:
		d, err := ParseDuration(s)
		if err != nil {
			return nil, convErr(t, s, err)
		}
		return d, nil
	case objects.TypeString, objects.TypeEnum, objects.TypeNone:
		return s, nil
	case objects.TypeGUID:
		g, err := uuid.Parse(s)
		if err != nil {
			return nil, convErr(t, s, err)
		}
		return g, nil
	}
	return nil, convErr(t, s, errors.New("no wire form"))
}

// FormatDecimal renders f using the xs:float lexical space, including the
// INF, -INF and NaN tokens.
func FormatDecimal(f float64) string {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "INF"
	case math.IsInf(f, -1):
		return "-INF"
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// ParseDecimal is the inverse of FormatDecimal.
func ParseDecimal(s string) (float64, error) {
	switch s {
	case "NaN":
		return math.NaN(), nil
	case "INF", "+INF":
		return math.Inf(1), nil
	case "-INF":
		return math.Inf(-1), nil
	}
	// strconv accepts "inf" and "nan" spellings the schema does not.
	if strings.ContainsAny(s, "iInN") {
		return 0, fmt.Errorf("invalid decimal %q", s)
	}
	return strconv.ParseFloat(s, 64)
}

// FormatGUID renders g as 32 upper-case hex digits, the SIF RefId form.
func FormatGUID(g uuid.UUID) string {
	return strings.ToUpper(strings.ReplaceAll(g.String(), "-", ""))
}

// ParseTime parses a time of day with optional fraction and zone. Without
// a zone the result is in time.Local on the zero date.
func ParseTime(s string) (time.Time, error) {
	for _, layout := range []string{"15:04:05.999999999Z07:00", "15:04:05.999999999"} {
		if tm, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return tm, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid time %q", s)
}

// FormatZone renders the UTC offset of t in the SIF 1.x Zone attribute
// form, e.g. "UTC-05:00".
func FormatZone(t time.Time) string {
	_, off := t.Zone()
	sign := '+'
	if off < 0 {
		sign = '-'
		off = -off
	}
	return fmt.Sprintf("UTC%c%02d:%02d", sign, off/3600, off%3600/60)
}

// ParseZone parses a UTC offset written as "UTC-05:00", "GMT+01:00",
// "-05:00", "Z" or "UTC".
func ParseZone(s string) (*time.Location, error) {
	s = strings.TrimSpace(s)
	for _, prefix := range []string{"UTC", "GMT"} {
		s = strings.TrimPrefix(s, prefix)
	}
	if s == "" || s == "Z" {
		return time.UTC, nil
	}
	if len(s) != 6 || (s[0] != '+' && s[0] != '-') || s[3] != ':' {
		return nil, fmt.Errorf("invalid zone %q", s)
	}
	h, err := strconv.Atoi(s[1:3])
	if err != nil {
		return nil, fmt.Errorf("invalid zone %q: %w", s, err)
	}
	m, err := strconv.Atoi(s[4:6])
	if err != nil || h > 14 || m > 59 {
		return nil, fmt.Errorf("invalid zone %q", s)
	}
	off := h*3600 + m*60
	if s[0] == '-' {
		off = -off
	}
	return time.FixedZone("UTC"+s, off), nil
}

// FormatDuration renders d as an xs:duration restricted to days, hours,
// minutes and seconds.
func FormatDuration(d time.Duration) string {
	if d == 0 {
		return "PT0S"
	}
	var b strings.Builder
	if d < 0 {
		b.WriteByte('-')
		d = -d
	}
	b.WriteByte('P')
	days := d / (24 * time.Hour)
	d -= days * 24 * time.Hour
	if days > 0 {
		b.WriteString(strconv.FormatInt(int64(days), 10))
		b.WriteByte('D')
	}
	if d == 0 {
		return b.String()
	}
	b.WriteByte('T')
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	if h > 0 {
		b.WriteString(strconv.FormatInt(int64(h), 10))
		b.WriteByte('H')
	}
	if m > 0 {
		b.WriteString(strconv.FormatInt(int64(m), 10))
		b.WriteByte('M')
	}
	if d > 0 {
		b.WriteString(strconv.FormatFloat(d.Seconds(), 'f', -1, 64))
		b.WriteByte('S')
	}
	return b.String()
}

// ParseDuration parses an xs:duration. Year and month components are
// rejected because they have no fixed length.
func ParseDuration(s string) (time.Duration, error) {
	orig := s
	neg := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")
	if !strings.HasPrefix(s, "P") || len(s) < 2 {
		return 0, fmt.Errorf("invalid duration %q", orig)
	}
	s = s[1:]
	var total time.Duration
	inTime := false
	num := ""
	parts := 0
	for _, r := range s {
		switch {
		case r == 'T':
			if inTime || num != "" {
				return 0, fmt.Errorf("invalid duration %q", orig)
			}
			inTime = true
		case (r >= '0' && r <= '9') || r == '.':
			num += string(r)
		default:
			if num == "" {
				return 0, fmt.Errorf("invalid duration %q", orig)
			}
			f, err := strconv.ParseFloat(num, 64)
			if err != nil {
				return 0, fmt.Errorf("invalid duration %q: %w", orig, err)
			}
			num = ""
			var unit time.Duration
			switch {
			case r == 'D' && !inTime:
				unit = 24 * time.Hour
			case r == 'H' && inTime:
				unit = time.Hour
			case r == 'M' && inTime:
				unit = time.Minute
			case r == 'S' && inTime:
				unit = time.Second
			default:
				return 0, fmt.Errorf("invalid duration %q: unsupported component %c", orig, r)
			}
			total += time.Duration(f * float64(unit))
			parts++
		}
	}
	if num != "" || parts == 0 {
		return 0, fmt.Errorf("invalid duration %q", orig)
	}
	if neg {
		total = -total
	}
	return total, nil
}
