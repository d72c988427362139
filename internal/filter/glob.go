package filter

import (
	"path"
	"regexp"
	"strings"
)

// matcher is one normalized ignore pattern.
//
// Against a whole relative path it uses shell-style wildcards where * and ?
// also match '/', so "**/*.test.js" and "src/gen/*" reach any depth. Against
// a single path segment it uses path.Match.
type matcher struct {
	pattern string
	whole   *regexp.Regexp // nil when the pattern cannot be compiled
}

func newMatcher(raw string) (matcher, bool) {
	p := normalizePattern(raw)
	if p == "" {
		return matcher{}, false
	}
	whole, err := regexp.Compile(globToRegexp(p))
	if err != nil {
		whole = nil
	}
	return matcher{pattern: p, whole: whole}, true
}

// matchPath reports whether the whole slash-separated path matches
func (m matcher) matchPath(rel string) bool {
	if m.whole == nil {
		return rel == m.pattern
	}
	return m.whole.MatchString(rel)
}

// matchSegment reports whether a single path segment matches.
// A malformed pattern is a non-match.
func (m matcher) matchSegment(name string) bool {
	ok, err := path.Match(m.pattern, name)
	return err == nil && ok
}

// globToRegexp translates a shell wildcard pattern into an anchored regular
// expression. '*' matches any run of characters and '?' any single one, both
// including '/'. "[...]" is a character class, negated by a leading '!'.
// A '[' without a closing ']' is literal.
func globToRegexp(glob string) string {
	runes := []rune(glob)
	var b strings.Builder
	b.WriteString(`\A(?s:`)

	for i := 0; i < len(runes); {
		switch c := runes[i]; c {
		case '*':
			b.WriteString(".*")
			for i < len(runes) && runes[i] == '*' {
				i++
			}
			continue
		case '?':
			b.WriteString(".")
		case '[':
			if class, end, ok := charClass(runes, i); ok {
				b.WriteString(class)
				i = end + 1
				continue
			}
			b.WriteString(`\[`)
		default:
			b.WriteString(regexp.QuoteMeta(string(c)))
		}
		i++
	}

	b.WriteString(`)\z`)
	return b.String()
}

// charClass converts the class opening at runes[start] and returns the index
// of its closing ']'. A ']' right after the opening (or after '!') is literal.
func charClass(runes []rune, start int) (string, int, bool) {
	j := start + 1
	if j < len(runes) && runes[j] == '!' {
		j++
	}
	if j < len(runes) && runes[j] == ']' {
		j++
	}
	for j < len(runes) && runes[j] != ']' {
		j++
	}
	if j >= len(runes) {
		return "", 0, false
	}

	body := runes[start+1 : j]
	var b strings.Builder
	b.WriteByte('[')
	if len(body) > 0 && body[0] == '!' {
		b.WriteByte('^')
		body = body[1:]
	}
	for _, r := range body {
		switch r {
		case '\\', '[', ']', '^':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	b.WriteByte(']')
	return b.String(), j, true
}
