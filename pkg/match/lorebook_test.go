package match

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fablekit/fablekit/pkg/world"
)

func entry(id string, keywords ...string) world.WorldEntry {
	return world.WorldEntry{
		ID:       id,
		Content:  "About " + id + ".",
		Position: world.PosBottom,
		Enabled:  true,
		Keywords: keywords,
	}
}

func ids(entries []world.WorldEntry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.ID
	}
	return out
}

func emptyState() *world.GameState {
	return &world.GameState{Variables: map[string]any{}, Metadata: map[string]any{}}
}

func TestSelect_KeywordTrigger(t *testing.T) {
	entries := []world.WorldEntry{
		entry("tavern", "tavern", "inn"),
		entry("dragon", "dragon"),
	}
	sel := Select(entries, []string{"We walked into the tavern."}, emptyState(), 0, 0)

	assert.Equal(t, []string{"tavern"}, ids(sel.Triggered))
	assert.Equal(t, EstimateTokens("About tavern."), sel.TriggeredTokens)
}

func TestSelect_AlwaysSendBypassesMatching(t *testing.T) {
	always := entry("world-intro")
	always.AlwaysSend = true
	entries := []world.WorldEntry{always, entry("dragon", "dragon")}

	sel := Select(entries, []string{"nothing relevant"}, emptyState(), 0, 0)

	assert.Equal(t, []string{"world-intro"}, ids(sel.AlwaysSend))
	assert.Empty(t, sel.Triggered)
	assert.Zero(t, sel.TriggeredTokens, "alwaysSend entries never count against the budget")
}

func TestSelect_DisabledAndGreetingExcluded(t *testing.T) {
	disabled := entry("off", "tavern")
	disabled.Enabled = false
	greeting := entry("hello", "tavern")
	greeting.Position = world.PosGreeting
	greeting.AlwaysSend = true

	sel := Select([]world.WorldEntry{disabled, greeting}, []string{"the tavern"}, emptyState(), 0, 0)
	assert.Empty(t, sel.AlwaysSend)
	assert.Empty(t, sel.Triggered)
}

func TestSelect_ConditionsGateMatching(t *testing.T) {
	e := entry("night-market", "market")
	e.Conditions = []world.Condition{{VariableID: "timeOfDay", Operator: world.OpEq, Value: "night"}}

	state := emptyState()
	state.Variables["timeOfDay"] = "day"
	sel := Select([]world.WorldEntry{e}, []string{"the market"}, state, 0, 0)
	assert.Empty(t, sel.Triggered, "failing condition must suppress a keyword match")

	state.Variables["timeOfDay"] = "night"
	sel = Select([]world.WorldEntry{e}, []string{"the market"}, state, 0, 0)
	assert.Equal(t, []string{"night-market"}, ids(sel.Triggered))
}

func TestSelect_SecondaryKeywordLogic(t *testing.T) {
	buffer := "the dragon guards its gold"

	cases := []struct {
		logic     world.SecondaryLogic
		secondary []string
		want      bool
	}{
		{world.SecondaryAndAny, []string{"gold", "silver"}, true},
		{world.SecondaryAndAny, []string{"silver"}, false},
		{world.SecondaryAndAll, []string{"gold", "guards"}, true},
		{world.SecondaryAndAll, []string{"gold", "silver"}, false},
		{world.SecondaryNotAny, []string{"silver"}, true},
		{world.SecondaryNotAny, []string{"gold"}, false},
		{world.SecondaryNotAll, []string{"gold", "silver"}, true},
		{world.SecondaryNotAll, []string{"gold", "guards"}, false},
	}
	for _, tc := range cases {
		e := entry("e", "dragon")
		e.SecondaryKeywords = tc.secondary
		e.SecondaryKeywordLogic = tc.logic

		sel := Select([]world.WorldEntry{e}, []string{buffer}, emptyState(), 0, 0)
		if tc.want {
			assert.Len(t, sel.Triggered, 1, "%s %v should fire", tc.logic, tc.secondary)
		} else {
			assert.Empty(t, sel.Triggered, "%s %v should not fire", tc.logic, tc.secondary)
		}
	}
}

func TestSelect_SecondaryMatchRaisesScore(t *testing.T) {
	base := entry("plain", "dragon")
	base.Group = "duo"
	boosted := entry("boosted", "dragon")
	boosted.Group = "duo"
	boosted.SecondaryKeywords = []string{"gold"}
	boosted.SecondaryKeywordLogic = world.SecondaryAndAny

	sel := Select([]world.WorldEntry{base, boosted},
		[]string{"the dragon guards its gold"}, emptyState(), 0, 0)

	require.Len(t, sel.Triggered, 1)
	assert.Equal(t, "boosted", sel.Triggered[0].ID,
		"secondary pass adds one point, winning the group")
}

func TestSelect_GroupTieFallsToPriority(t *testing.T) {
	a := entry("a", "dragon")
	a.Group = "faction"
	a.Priority = 5
	b := entry("b", "dragon")
	b.Group = "faction"
	b.Priority = 9

	sel := Select([]world.WorldEntry{a, b}, []string{"a dragon appears"}, emptyState(), 0, 0)
	require.Len(t, sel.Triggered, 1)
	assert.Equal(t, "b", sel.Triggered[0].ID)
}

func TestSelect_OrderingPriorityThenScore(t *testing.T) {
	low := entry("low", "dragon")
	low.Priority = 1
	high := entry("high", "dragon")
	high.Priority = 10
	mid := entry("mid", "dragon", "cave", "gold")
	mid.Priority = 5

	sel := Select([]world.WorldEntry{low, mid, high},
		[]string{"the dragon sleeps in a cave of gold"}, emptyState(), 0, 0)

	assert.Equal(t, []string{"high", "mid", "low"}, ids(sel.Triggered))
}

func TestSelect_Recursion(t *testing.T) {
	opener := entry("opener", "dragon")
	opener.Content = "The dragon hoards ancient treasure."
	chained := entry("chained", "treasure")

	// Depth 0: only the message buffer is scanned.
	sel := Select([]world.WorldEntry{opener, chained}, []string{"a dragon!"}, emptyState(), 0, 0)
	assert.ElementsMatch(t, []string{"opener"}, ids(sel.Triggered))

	// Depth 1: opener's content re-enters the buffer and fires chained.
	sel = Select([]world.WorldEntry{opener, chained}, []string{"a dragon!"}, emptyState(), 0, 1)
	assert.ElementsMatch(t, []string{"opener", "chained"}, ids(sel.Triggered))
}

func TestSelect_PreventRecursion(t *testing.T) {
	opener := entry("opener", "dragon")
	opener.Content = "The dragon hoards ancient treasure."
	opener.PreventRecursion = true
	chained := entry("chained", "treasure")

	sel := Select([]world.WorldEntry{opener, chained}, []string{"a dragon!"}, emptyState(), 0, 3)
	assert.ElementsMatch(t, []string{"opener"}, ids(sel.Triggered),
		"preventRecursion content must not feed later passes")
}

func TestSelect_ExcludeRecursion(t *testing.T) {
	opener := entry("opener", "dragon")
	opener.Content = "The dragon hoards ancient treasure."
	shy := entry("shy", "treasure")
	shy.ExcludeRecursion = true

	sel := Select([]world.WorldEntry{opener, shy}, []string{"a dragon!"}, emptyState(), 0, 3)
	assert.ElementsMatch(t, []string{"opener"}, ids(sel.Triggered),
		"excludeRecursion entries only activate at depth 0")

	sel = Select([]world.WorldEntry{opener, shy}, []string{"dragon treasure"}, emptyState(), 0, 3)
	assert.ElementsMatch(t, []string{"opener", "shy"}, ids(sel.Triggered))
}

func TestSelect_BudgetSoftCap(t *testing.T) {
	big := entry("big", "dragon")
	big.Content = strings.Repeat("lore ", 200) // ~250 tokens
	big.Priority = 10
	small := entry("small", "dragon")
	small.Content = "short"
	small.Priority = 1

	// Budget below the big entry's cost: it is still admitted as the first
	// pick, and the small one fits in what notionally remains.
	sel := Select([]world.WorldEntry{big, small}, []string{"dragon"}, emptyState(), 100, 0)
	assert.Equal(t, []string{"big"}, ids(sel.Triggered),
		"first entry exceeds the budget alone; later entries are skipped")

	// A budget that fits both admits both.
	sel = Select([]world.WorldEntry{big, small}, []string{"dragon"}, emptyState(), 1000, 0)
	assert.Equal(t, []string{"big", "small"}, ids(sel.Triggered))
}

func TestSelect_BudgetSkipsThenFits(t *testing.T) {
	a := entry("a", "dragon")
	a.Content = strings.Repeat("x", 400) // 100 tokens
	a.Priority = 10
	b := entry("b", "dragon")
	b.Content = strings.Repeat("y", 400) // 100 tokens
	b.Priority = 5
	c := entry("c", "dragon")
	c.Content = strings.Repeat("z", 40) // 10 tokens
	c.Priority = 1

	sel := Select([]world.WorldEntry{a, b, c}, []string{"dragon"}, emptyState(), 120, 0)
	assert.Equal(t, []string{"a", "c"}, ids(sel.Triggered),
		"greedy fill skips what does not fit but keeps trying smaller entries")
	assert.Equal(t, 110, sel.TriggeredTokens)
}

func TestSelect_WholeWordEntry(t *testing.T) {
	e := entry("inn", "inn")
	e.MatchWholeWords = true

	sel := Select([]world.WorldEntry{e}, []string{"dinner time"}, emptyState(), 0, 0)
	assert.Empty(t, sel.Triggered, `"inn" inside "dinner" must not fire a whole-word entry`)

	sel = Select([]world.WorldEntry{e}, []string{"the inn is warm"}, emptyState(), 0, 0)
	assert.Equal(t, []string{"inn"}, ids(sel.Triggered))
}

func TestEstimateTokens(t *testing.T) {
	assert.Equal(t, 0, EstimateTokens(""))
	assert.Equal(t, 1, EstimateTokens("abc"))
	assert.Equal(t, 1, EstimateTokens("abcd"))
	assert.Equal(t, 2, EstimateTokens("abcde"))
}
