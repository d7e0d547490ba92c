package router

import "strings"

// pattern is a uri pattern where '*' matches any run of characters.
type pattern struct {
	raw      string
	negative bool
	parts    []string
}

func compilePattern(raw string) pattern {
	p := pattern{raw: raw}
	if strings.HasPrefix(raw, "!") {
		p.negative = true
		raw = raw[1:]
	}
	p.parts = strings.Split(raw, "*")
	return p
}

func (p pattern) match(s string) bool {
	parts := p.parts
	if len(parts) == 1 {
		return s == parts[0]
	}
	first, last := parts[0], parts[len(parts)-1]
	if len(s) < len(first)+len(last) || !strings.HasPrefix(s, first) || !strings.HasSuffix(s, last) {
		return false
	}
	s = s[len(first) : len(s)-len(last)]
	for _, part := range parts[1 : len(parts)-1] {
		i := strings.Index(s, part)
		if i < 0 {
			return false
		}
		s = s[i+len(part):]
	}
	return true
}

// matcher holds the uri patterns of one step.
type matcher struct {
	positive []pattern
	negative []pattern
}

func compileMatcher(patterns []string) *matcher {
	m := &matcher{}
	for _, raw := range patterns {
		p := compilePattern(raw)
		if p.negative {
			m.negative = append(m.negative, p)
		} else {
			m.positive = append(m.positive, p)
		}
	}
	return m
}

// match rejects on any negative hit, then needs one positive hit. A list made of
// negatives only accepts everything they do not reject.
func (m *matcher) match(uri string) bool {
	for _, p := range m.negative {
		if p.match(uri) {
			return false
		}
	}
	if len(m.positive) == 0 {
		return true
	}
	for _, p := range m.positive {
		if p.match(uri) {
			return true
		}
	}
	return false
}
