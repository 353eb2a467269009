package xpath

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	// ErrInvalidPath reports that the expression does not conform to the
	// restricted path syntax.
	ErrInvalidPath = errors.New("invalid path expression")
	// ErrUnrecognizedExpression reports a comparison that does not have
	// exactly one operand on each side of its comparator.
	ErrUnrecognizedExpression = errors.New("unrecognized expression")
)

func pathErrorf(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrInvalidPath}, args...)...)
}

func unrecognizedf(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrUnrecognizedExpression}, args...)...)
}

// Compile parses expr into a Path.
func Compile(expr string) (*Path, error) {
	src := expr
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return nil, pathErrorf("expression cannot be empty")
	}

	eqs, err := indexTop(expr, "=")
	if err != nil {
		return nil, err
	}
	var trailing *Literal
	switch len(eqs) {
	case 0:
	case 1:
		lhs := strings.TrimSpace(expr[:eqs[0]])
		rhs := strings.TrimSpace(expr[eqs[0]+1:])
		if lhs == "" || rhs == "" || strings.HasSuffix(lhs, "!") {
			return nil, unrecognizedf("%s", expr)
		}
		if trailing, err = parseLiteral(rhs); err != nil {
			return nil, err
		}
		expr = lhs
	default:
		return nil, unrecognizedf("%s", expr)
	}

	abs, steps, err := parseSteps(expr)
	if err != nil {
		return nil, err
	}
	if trailing != nil {
		last := &steps[len(steps)-1]
		last.Predicates = append(last.Predicates, &Equal{Left: selfPath(), Right: trailing, Trailing: true})
	}
	return newPath(src, abs, steps), nil
}

// MustCompile is like Compile but panics on error.
func MustCompile(expr string) *Path {
	p, err := Compile(expr)
	if err != nil {
		panic(err)
	}
	return p
}

// CompilePredicates parses the content of one bracketed predicate block,
// e.g. "@Format='NA' and @Type='TE'".
func CompilePredicates(content string) ([]Predicate, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, pathErrorf("empty predicate")
	}
	parens, err := indexTop(content, "()")
	if err != nil {
		return nil, err
	}
	if len(parens) > 0 {
		return []Predicate{&Extension{Text: content}}, nil
	}
	var preds []Predicate
	for _, frag := range splitAnd(content) {
		p, err := parseComparison(frag)
		if err != nil {
			return nil, err
		}
		preds = append(preds, p)
	}
	return preds, nil
}

func selfPath() *Path {
	return newPath(".", false, []Step{{Axis: AxisSelf}})
}

func parseSteps(expr string) (bool, []Step, error) {
	abs := strings.HasPrefix(expr, "/")
	if abs {
		expr = expr[1:]
	}
	parts, err := splitTop(expr, '/')
	if err != nil {
		return false, nil, err
	}
	steps := make([]Step, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			return false, nil, pathErrorf("step is missing a node test: %s", expr)
		}
		s, err := parseStep(part)
		if err != nil {
			return false, nil, err
		}
		steps = append(steps, s)
	}
	return abs, steps, nil
}

func parseStep(raw string) (Step, error) {
	brackets, err := indexTop(raw, "[]")
	if err != nil {
		return Step{}, err
	}
	head := raw
	if len(brackets) > 0 {
		head = raw[:brackets[0]]
	}

	var s Step
	head = strings.TrimSpace(head)
	switch {
	case head == ".":
		s.Axis = AxisSelf
	case strings.HasPrefix(head, "@"):
		s.Axis = AxisAttribute
		head = head[1:]
	default:
		s.Axis = AxisChild
	}
	if s.Axis != AxisSelf {
		name, err := parseName(head)
		if err != nil {
			return Step{}, err
		}
		s.Name = name
	}

	for i := 0; i < len(brackets); i += 2 {
		open := brackets[i]
		if raw[open] != '[' || i+1 >= len(brackets) {
			return Step{}, pathErrorf("unbalanced brackets: %s", raw)
		}
		closing := brackets[i+1]
		preds, err := CompilePredicates(raw[open+1 : closing])
		if err != nil {
			return Step{}, err
		}
		s.Predicates = append(s.Predicates, preds...)
		next := len(raw)
		if i+2 < len(brackets) {
			next = brackets[i+2]
		}
		if strings.TrimSpace(raw[closing+1:next]) != "" {
			return Step{}, pathErrorf("unexpected text after predicate: %s", raw)
		}
	}
	return s, nil
}

func parseName(raw string) (string, error) {
	if raw == "" {
		return "", pathErrorf("step is missing a node test")
	}
	var b strings.Builder
	for i := 0; i < len(raw); i++ {
		c := raw[i]
		if c == '\\' {
			if i+1 == len(raw) {
				return "", pathErrorf("dangling escape in %q", raw)
			}
			i++
			b.WriteByte(raw[i])
			continue
		}
		if isSpace(c) || strings.IndexByte(`'"()=!<>@`, c) >= 0 {
			return "", pathErrorf("invalid character %q in name %q", c, raw)
		}
		b.WriteByte(c)
	}
	return b.String(), nil
}

func parseComparison(frag string) (Predicate, error) {
	frag = strings.TrimSpace(frag)
	ops, err := indexTop(frag, "<>!")
	if err != nil {
		return nil, err
	}
	if len(ops) > 0 {
		return &Extension{Text: frag}, nil
	}
	eqs, err := indexTop(frag, "=")
	if err != nil {
		return nil, err
	}
	switch len(eqs) {
	case 0:
		return &Extension{Text: frag}, nil
	case 1:
	default:
		return nil, unrecognizedf("%s", frag)
	}
	lhs := strings.TrimSpace(frag[:eqs[0]])
	rhs := strings.TrimSpace(frag[eqs[0]+1:])
	if lhs == "" || rhs == "" {
		return nil, unrecognizedf("%s", frag)
	}
	abs, steps, err := parseSteps(lhs)
	if err != nil {
		return nil, err
	}
	lit, err := parseLiteral(rhs)
	if err != nil {
		return nil, err
	}
	return &Equal{Left: newPath(lhs, abs, steps), Right: lit}, nil
}

func parseLiteral(raw string) (*Literal, error) {
	if q := raw[0]; q == '\'' || q == '"' {
		if len(raw) < 2 || raw[len(raw)-1] != q || strings.IndexByte(raw[1:len(raw)-1], q) >= 0 {
			return nil, unrecognizedf("malformed literal %s", raw)
		}
		return StringLiteral(raw[1 : len(raw)-1]), nil
	}
	if isNumber(raw) {
		if f, err := strconv.ParseFloat(raw, 64); err == nil {
			return &Literal{Value: f, raw: raw}, nil
		}
	}
	var b strings.Builder
	for i := 0; i < len(raw); i++ {
		c := raw[i]
		if c == '\\' && i+1 < len(raw) {
			i++
			b.WriteByte(raw[i])
			continue
		}
		if isSpace(c) || c == '\'' || c == '"' {
			return nil, unrecognizedf("malformed literal %s", raw)
		}
		b.WriteByte(c)
	}
	return &Literal{Value: b.String(), raw: raw}, nil
}

func isNumber(s string) bool {
	for i := 0; i < len(s); i++ {
		if strings.IndexByte("0123456789+-.eE", s[i]) < 0 {
			return false
		}
	}
	return s != ""
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}

// scan calls fn with the index of every byte of s that is outside quoted
// literals, not escaped, and at bracket depth zero. A bracket is reported
// at the depth outside it.
func scan(s string, fn func(i int)) error {
	depth := 0
	var quote byte
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case quote != 0:
			if c == quote {
				quote = 0
			}
		case c == '\\':
			i++
		case c == '\'' || c == '"':
			quote = c
		case c == '[':
			if depth == 0 {
				fn(i)
			}
			depth++
		case c == ']':
			depth--
			if depth < 0 {
				return pathErrorf("unbalanced brackets: %s", s)
			}
			if depth == 0 {
				fn(i)
			}
		default:
			if depth == 0 {
				fn(i)
			}
		}
	}
	if quote != 0 {
		return pathErrorf("unterminated literal: %s", s)
	}
	if depth != 0 {
		return pathErrorf("unbalanced brackets: %s", s)
	}
	return nil
}

func indexTop(s, chars string) ([]int, error) {
	var out []int
	err := scan(s, func(i int) {
		if strings.IndexByte(chars, s[i]) >= 0 {
			out = append(out, i)
		}
	})
	return out, err
}

func splitTop(s string, sep byte) ([]string, error) {
	var parts []string
	start := 0
	err := scan(s, func(i int) {
		if s[i] == sep {
			parts = append(parts, s[start:i])
			start = i + 1
		}
	})
	if err != nil {
		return nil, err
	}
	return append(parts, s[start:]), nil
}

// splitAnd splits predicate content on the keyword "and". The keyword must
// follow whitespace or a closing quote and be followed by whitespace; it
// is not recognized inside literals or nested brackets.
func splitAnd(s string) []string {
	var parts []string
	start, depth := 0, 0
	var quote byte
	boundary := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case quote != 0:
			if c == quote {
				quote = 0
				boundary = true
			}
			continue
		case c == '\\':
			i++
			boundary = false
			continue
		case c == '\'' || c == '"':
			quote = c
		case c == '[':
			depth++
		case c == ']':
			depth--
		case depth == 0 && boundary && strings.HasPrefix(s[i:], "and") && i+3 < len(s) && isSpace(s[i+3]):
			parts = append(parts, s[start:i])
			start = i + 3
			i += 2
			boundary = false
			continue
		}
		boundary = isSpace(c)
	}
	return append(parts, s[start:])
}
