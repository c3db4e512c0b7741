package pattern

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMatchModeNormalize(t *testing.T) {
	assert.Equal(t, ModePartial, MatchMode("contains").Normalize())
	assert.Equal(t, ModeExact, MatchMode("").Normalize())
	assert.Equal(t, ModePrefix, ModePrefix.Normalize())
	assert.Equal(t, ModeSuffix, ModeSuffix.Normalize())
	assert.Equal(t, ModeExact, ModeExact.Normalize())
}

func TestMatches(t *testing.T) {
	cases := []struct {
		name string
		rule Rule
		text string
		want bool
	}{
		{"partial hit", Rule{Pattern: "休暇", MatchMode: ModePartial}, "有給休暇", true},
		{"partial miss", Rule{Pattern: "休暇", MatchMode: ModePartial}, "定例会", false},
		{"prefix hit", Rule{Pattern: "定例", MatchMode: ModePrefix}, "定例ミーティング", true},
		{"prefix miss mid-string", Rule{Pattern: "定例", MatchMode: ModePrefix}, "週次定例", false},
		{"suffix hit", Rule{Pattern: "会議", MatchMode: ModeSuffix}, "全体会議", true},
		{"suffix miss", Rule{Pattern: "会議", MatchMode: ModeSuffix}, "会議メモ", false},
		{"exact hit", Rule{Pattern: "朝会", MatchMode: ModeExact}, "朝会", true},
		{"exact is case sensitive", Rule{Pattern: "Standup", MatchMode: ModeExact}, "standup", false},
		{"empty mode means exact", Rule{Pattern: "朝会"}, "朝会だけど長い", false},
		{"contains alias", Rule{Pattern: "休暇", MatchMode: "contains"}, "有給休暇", true},
		{"unknown mode matches nothing", Rule{Pattern: "朝会", MatchMode: "regex"}, "朝会", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Matches([]Rule{tc.rule}, tc.text))
		})
	}
}

func TestMatchesAnyRule(t *testing.T) {
	rules := []Rule{
		{Pattern: "休暇", MatchMode: ModePartial},
		{Pattern: "定例", MatchMode: ModePrefix},
	}
	assert.True(t, Matches(rules, "定例会"))
	assert.True(t, Matches(rules, "夏季休暇"))
	assert.False(t, Matches(rules, "全体会議"))
}

func TestMatchesSkipsEmptyPatterns(t *testing.T) {
	// An empty partial pattern would match every string; it must be
	// treated as non-matching instead.
	rules := []Rule{
		{Pattern: "", MatchMode: ModePartial},
		{Pattern: "", MatchMode: ModeExact},
	}
	assert.False(t, Matches(rules, "何でも"))
	assert.False(t, Matches(rules, ""))
}

func TestCompact(t *testing.T) {
	rules := []Rule{
		{Pattern: "休暇", MatchMode: ModePartial},
		{Pattern: "", MatchMode: ModePartial},
		{Pattern: "朝会", MatchMode: ModeExact},
	}
	got := Compact(rules)
	assert.Len(t, got, 2)
	assert.Equal(t, "休暇", got[0].Pattern)
	assert.Equal(t, "朝会", got[1].Pattern)
}
