package parse

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fablekit/fablekit/pkg/world"
)

func TestParseDirectives_SubtractShorthand(t *testing.T) {
	res := ParseDirectives("You strike the troll. [health: -15] The troll roars.")

	require.Len(t, res.Effects, 1)
	assert.Equal(t, world.Effect{
		VariableID: "health",
		Operation:  world.OpSubtract,
		Value:      float64(15),
	}, res.Effects[0])
	assert.Equal(t, "You strike the troll. The troll roars.", res.CleanText)
}

func TestParseDirectives_Shorthands(t *testing.T) {
	cases := []struct {
		in   string
		want world.Effect
	}{
		{"[gold: +5]", world.Effect{VariableID: "gold", Operation: world.OpAdd, Value: float64(5)}},
		{"[score: *2]", world.Effect{VariableID: "score", Operation: world.OpMultiply, Value: float64(2)}},
		{"[hasKey: toggle]", world.Effect{VariableID: "hasKey", Operation: world.OpToggle}},
		{"[health: set 100]", world.Effect{VariableID: "health", Operation: world.OpSet, Value: float64(100)}},
		{"[mood: set \"wary\"]", world.Effect{VariableID: "mood", Operation: world.OpSet, Value: "wary"}},
		{"[alive: true]", world.Effect{VariableID: "alive", Operation: world.OpSet, Value: true}},
		{"[gold: 50]", world.Effect{VariableID: "gold", Operation: world.OpSet, Value: float64(50)}},
		{"[journal: append \" Day 2.\"]", world.Effect{VariableID: "journal", Operation: world.OpAppend, Value: " Day 2."}},
	}
	for _, tc := range cases {
		res := ParseDirectives(tc.in)
		require.Len(t, res.Effects, 1, "input %q", tc.in)
		assert.Equal(t, tc.want, res.Effects[0], "input %q", tc.in)
	}
}

func TestParseDirectives_BracketInsideQuotedValue(t *testing.T) {
	res := ParseDirectives(`The sign creaks. [note: set "exit ] ahead"] You read it twice.`)

	require.Len(t, res.Effects, 1)
	assert.Equal(t, world.Effect{
		VariableID: "note",
		Operation:  world.OpSet,
		Value:      "exit ] ahead",
	}, res.Effects[0])
	assert.Equal(t, "The sign creaks. You read it twice.", res.CleanText)
}

func TestParseDirectives_InvalidDropped(t *testing.T) {
	cases := []string{
		"[health: ]",
		"[health: -abc]",
		"[health: frobnicate 5]",
		"[health: unquoted words]",
	}
	for _, in := range cases {
		res := ParseDirectives(in)
		assert.Empty(t, res.Effects, "input %q should parse to nothing", in)
		assert.Empty(t, res.CleanText, "the malformed token is still stripped: %q", in)
	}
}

func TestParseDirectives_Audio(t *testing.T) {
	res := ParseDirectives("The battle begins! [audio: battle-theme play] Swords clash. [Audio: ambience volume 0.5]")

	require.Len(t, res.AudioEffects, 2)
	assert.Equal(t, "battle-theme", res.AudioEffects[0].TrackID)
	assert.Equal(t, world.AudioPlay, res.AudioEffects[0].Action)
	assert.Nil(t, res.AudioEffects[0].Volume)

	assert.Equal(t, "ambience", res.AudioEffects[1].TrackID)
	assert.Equal(t, world.AudioVolume, res.AudioEffects[1].Action)
	require.NotNil(t, res.AudioEffects[1].Volume)
	assert.InDelta(t, 0.5, *res.AudioEffects[1].Volume, 0.0001)

	assert.Equal(t, "The battle begins! Swords clash.", res.CleanText)
	assert.Empty(t, res.Effects, "audio tokens must not leak into state effects")
}

func TestParseDirectives_MultipleLinesAndTidy(t *testing.T) {
	res := ParseDirectives("Coins spill everywhere [gold: +10] , glittering.\n[mood: set \"greedy\"]\nYou scoop them up.")

	assert.Len(t, res.Effects, 2)
	assert.Equal(t, "Coins spill everywhere, glittering.\n\nYou scoop them up.", res.CleanText)
}

func TestParseDirectives_NoDirectives(t *testing.T) {
	res := ParseDirectives("Just a quiet evening by the fire.")
	assert.Empty(t, res.Effects)
	assert.Empty(t, res.AudioEffects)
	assert.Equal(t, "Just a quiet evening by the fire.", res.CleanText)
}

func TestParseValue(t *testing.T) {
	cases := []struct {
		in     string
		want   any
		wantOK bool
	}{
		{`"hello world"`, "hello world", true},
		{`"escaped \"quote\""`, `escaped "quote"`, true},
		{"true", true, true},
		{"false", false, true},
		{"42", float64(42), true},
		{"-3.5", float64(-3.5), true},
		{"", nil, false},
		{"bareword", nil, false},
		{`"unterminated`, nil, false},
	}
	for _, tc := range cases {
		got, ok := parseValue(tc.in)
		assert.Equal(t, tc.wantOK, ok, "input %q", tc.in)
		if tc.wantOK {
			assert.Equal(t, tc.want, got, "input %q", tc.in)
		}
	}
}
