// Package filter drops volatile lines from device configuration text.
package filter

import (
	"regexp"
	"strings"

	"github.com/metal-toolbox/goldencfg/internal/model"
	"github.com/pkg/errors"
)

var (
	ErrInvalidPattern = errors.New("invalid ignore pattern")
)

// PatternSet is an ordered list of ignore patterns. Patterns are alternatives:
// a line matching any one of them is excluded.
type PatternSet []string

// Matcher is a PatternSet compiled into a single expression.
// A nil or empty Matcher matches nothing.
type Matcher struct {
	re       *regexp.Regexp
	patterns PatternSet
}

// Compile validates every pattern and combines them into one Matcher.
func Compile(patterns PatternSet) (*Matcher, error) {
	m := &Matcher{patterns: append(PatternSet(nil), patterns...)}

	if len(patterns) == 0 {
		return m, nil
	}

	alternatives := make([]string, 0, len(patterns))

	for _, p := range patterns {
		if _, err := regexp.Compile(p); err != nil {
			return nil, errors.Wrapf(ErrInvalidPattern, "%q: %s", p, err.Error())
		}

		alternatives = append(alternatives, "(?:"+p+")")
	}

	re, err := regexp.Compile(strings.Join(alternatives, "|"))
	if err != nil {
		return nil, errors.Wrap(ErrInvalidPattern, err.Error())
	}

	m.re = re

	return m, nil
}

// MustCompile is like Compile but panics on an invalid pattern.
func MustCompile(patterns PatternSet) *Matcher {
	m, err := Compile(patterns)
	if err != nil {
		panic(err)
	}

	return m
}

// Patterns returns the patterns the Matcher was compiled from.
func (m *Matcher) Patterns() PatternSet {
	if m == nil {
		return nil
	}

	return append(PatternSet(nil), m.patterns...)
}

// Match reports whether line contains a match for any pattern.
func (m *Matcher) Match(line string) bool {
	if m == nil || m.re == nil {
		return false
	}

	return m.re.MatchString(line)
}

// Filter returns the lines of text not matched by m, in their original order.
// The input is never modified.
func (m *Matcher) Filter(text model.ConfigText) model.ConfigText {
	out := make(model.ConfigText, 0, len(text))

	for _, line := range text {
		if m.Match(line) {
			continue
		}

		out = append(out, line)
	}

	return out
}
