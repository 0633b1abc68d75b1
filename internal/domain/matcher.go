package domain

import (
	"regexp"
	"strings"
)

// Matcher extracts a token from a message body.
type Matcher interface {
	Name() string
	Match(text string) (string, bool)
}

// PatternMatcher returns the selected capture group of the first match.
type PatternMatcher struct {
	name    string
	pattern *regexp.Regexp
	group   int
}

func NewPatternMatcher(name string, pattern string, group int) *PatternMatcher {
	return &PatternMatcher{name: name, pattern: regexp.MustCompile(pattern), group: group}
}

func (m *PatternMatcher) Name() string { return m.name }

func (m *PatternMatcher) Match(text string) (string, bool) {
	groups := m.pattern.FindStringSubmatch(text)
	if m.group >= len(groups) {
		return "", false
	}
	capture := strings.TrimSpace(groups[m.group])
	return capture, capture != ""
}

var keyValuePattern = regexp.MustCompile(`[A-Za-z0-9_.\-]+=[^&\s]+`)

// KeyValueMatcher joins every key=value pair found in the text with "&".
type KeyValueMatcher struct{}

func (KeyValueMatcher) Name() string { return "key_value" }

func (KeyValueMatcher) Match(text string) (string, bool) {
	pairs := keyValuePattern.FindAllString(text, -1)
	if len(pairs) == 0 {
		return "", false
	}
	return strings.Join(pairs, "&"), true
}

// DefaultMatchers is the rule set in priority order. KeyValueMatcher must stay last.
func DefaultMatchers() []Matcher {
	return []Matcher{
		NewPatternMatcher("query", `(?i)(query[^=\s&]*=[^&\s]+)`, 1),
		NewPatternMatcher("data", `(?i)(\w*data\w*=[^&\s]+)`, 1),
		NewPatternMatcher("user", `(?i)\b(user=[^&\s]+)`, 1),
		KeyValueMatcher{},
	}
}
