// Package pattern implements the string-rule matching used both by the
// event exclusion filter and by the time-off linking tier.
package pattern

import "strings"

// MatchMode selects how a rule's pattern is compared against a name.
type MatchMode string

const (
	// ModePartial matches when the pattern occurs anywhere in the text.
	ModePartial MatchMode = "partial"
	// ModePrefix matches when the text starts with the pattern.
	ModePrefix MatchMode = "prefix"
	// ModeSuffix matches when the text ends with the pattern.
	ModeSuffix MatchMode = "suffix"
	// ModeExact matches on case-sensitive equality.
	ModeExact MatchMode = "exact"
)

// Normalize maps legacy spellings onto the canonical vocabulary. Older
// exclusion configs used "contains" for substring matching and left the
// mode empty to mean exact equality.
func (m MatchMode) Normalize() MatchMode {
	switch m {
	case "contains":
		return ModePartial
	case "":
		return ModeExact
	default:
		return m
	}
}

// Rule is a single configured pattern.
type Rule struct {
	Pattern   string    `yaml:"pattern" json:"pattern"`
	MatchMode MatchMode `yaml:"match_mode" json:"matchMode"`
}

// matches reports whether the rule matches the text. A rule with an
// unknown mode matches nothing.
func (r Rule) matches(text string) bool {
	switch r.MatchMode.Normalize() {
	case ModePartial:
		return strings.Contains(text, r.Pattern)
	case ModePrefix:
		return strings.HasPrefix(text, r.Pattern)
	case ModeSuffix:
		return strings.HasSuffix(text, r.Pattern)
	case ModeExact:
		return text == r.Pattern
	default:
		return false
	}
}

// Compact drops rules with an empty pattern. An empty pattern would match
// every event under partial/prefix/suffix, so callers must filter their
// rule sets through Compact before matching.
func Compact(rules []Rule) []Rule {
	out := make([]Rule, 0, len(rules))
	for _, r := range rules {
		if r.Pattern == "" {
			continue
		}
		out = append(out, r)
	}
	return out
}

// Matches reports whether any non-empty rule matches the text. It is a
// pure function over its inputs.
func Matches(rules []Rule, text string) bool {
	for _, r := range rules {
		if r.Pattern == "" {
			continue
		}
		if r.matches(text) {
			return true
		}
	}
	return false
}
