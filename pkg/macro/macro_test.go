package macro

import (
	"strconv"
	"strings"
	"testing"

	"github.com/fablekit/fablekit/pkg/world"
)

func testWorld() *world.WorldDefinition {
	return &world.WorldDefinition{
		Name: "The Hollow Keep",
		Settings: world.Settings{
			CharacterName: "Warden Sel",
			UserName:      "Traveler",
			Model:         "test-model",
		},
	}
}

func testState() *world.GameState {
	return &world.GameState{
		Variables: map[string]any{
			"health": float64(80),
			"mood":   "wary",
		},
		TurnCount: 3,
		Metadata:  map[string]any{},
	}
}

func TestExpand_Names(t *testing.T) {
	w, s := testWorld(), testState()
	if got := Expand("{{char}} eyes {{user}}.", w, s); got != "Warden Sel eyes Traveler." {
		t.Errorf("got %q", got)
	}

	w.Settings.CharacterName = ""
	if got := Expand("{{char}}", w, s); got != "The Hollow Keep" {
		t.Errorf("char falls back to world name, got %q", got)
	}
	w.Name = ""
	if got := Expand("{{char}} and {{user}}", w, &world.GameState{Metadata: map[string]any{}}); got != "Character and Traveler" {
		t.Errorf("final fallbacks, got %q", got)
	}
}

func TestExpand_Variables(t *testing.T) {
	got := Expand("Health {{health}}, mood {{mood}}.", testWorld(), testState())
	if got != "Health 80, mood wary." {
		t.Errorf("got %q", got)
	}
}

func TestExpand_UnknownStaysVerbatim(t *testing.T) {
	cases := []string{
		"{{nonexistent}}",
		"{{frobnicate::a::b}}",
		"{{not an identifier}}",
	}
	for _, in := range cases {
		if got := Expand(in, testWorld(), testState()); got != in {
			t.Errorf("Expand(%q) = %q, want verbatim", in, got)
		}
	}
}

func TestExpand_UnterminatedToken(t *testing.T) {
	in := "hello {{broken"
	if got := Expand(in, testWorld(), testState()); got != in {
		t.Errorf("got %q, want input unchanged", got)
	}
}

func TestExpand_Comment(t *testing.T) {
	got := Expand("before{{// authorial note}}after", testWorld(), testState())
	if got != "beforeafter" {
		t.Errorf("got %q", got)
	}
}

func TestExpand_Trim(t *testing.T) {
	got := Expand("Hello {{trim}} world", testWorld(), testState())
	if got != "Helloworld" {
		t.Errorf("got %q", got)
	}
	got = Expand("a\n  {{trim}}\n\nb", testWorld(), testState())
	if got != "ab" {
		t.Errorf("trim should eat newlines too, got %q", got)
	}
}

func TestExpand_TurnCount(t *testing.T) {
	if got := Expand("Turn {{turnCount}}", testWorld(), testState()); got != "Turn 3" {
		t.Errorf("got %q", got)
	}
}

func TestExpand_PickIsStablePerPositionAndTurn(t *testing.T) {
	w, s := testWorld(), testState()
	tpl := "{{pick::rain::snow::fog}} and {{pick::rain::snow::fog}}"

	first := Expand(tpl, w, s)
	for i := 0; i < 10; i++ {
		if got := Expand(tpl, w, s); got != first {
			t.Fatalf("pick not stable within a turn: %q vs %q", got, first)
		}
	}

	// Different turns may (and across enough turns, must) differ.
	results := map[string]bool{}
	for turn := 0; turn < 30; turn++ {
		s.TurnCount = turn
		results[Expand("{{pick::rain::snow::fog}}", w, s)] = true
	}
	if len(results) < 2 {
		t.Error("pick should vary across turns")
	}
	for r := range results {
		if r != "rain" && r != "snow" && r != "fog" {
			t.Errorf("pick produced a value outside its options: %q", r)
		}
	}
}

func TestExpand_RandomDrawsFromOptions(t *testing.T) {
	for i := 0; i < 20; i++ {
		got := Expand("{{random::a::b}}", testWorld(), testState())
		if got != "a" && got != "b" {
			t.Fatalf("random produced %q", got)
		}
	}
}

func TestExpand_Roll(t *testing.T) {
	for i := 0; i < 50; i++ {
		got := Expand("{{roll::2d6+3}}", testWorld(), testState())
		n, err := strconv.Atoi(got)
		if err != nil {
			t.Fatalf("roll output %q is not a number", got)
		}
		if n < 5 || n > 15 {
			t.Fatalf("2d6+3 = %d out of range", n)
		}
	}
	// Bare d20.
	got := Expand("{{roll::d20}}", testWorld(), testState())
	if n, err := strconv.Atoi(got); err != nil || n < 1 || n > 20 {
		t.Errorf("d20 rolled %q", got)
	}
	// Malformed specs stay verbatim.
	if got := Expand("{{roll::banana}}", testWorld(), testState()); got != "{{roll::banana}}" {
		t.Errorf("got %q", got)
	}
}

func TestExpand_Metadata(t *testing.T) {
	s := testState()
	s.Metadata[world.MetaLastUserMessage] = "open the door"

	if got := Expand("{{lastUserMessage}}", testWorld(), s); got != "open the door" {
		t.Errorf("got %q", got)
	}
	if got := Expand("{{model}}", testWorld(), s); got != "test-model" {
		t.Errorf("model falls back to settings, got %q", got)
	}
}

func TestExpand_IdleWithoutTimestamp(t *testing.T) {
	if got := Expand("{{idle}}", testWorld(), testState()); got != "just now" {
		t.Errorf("got %q", got)
	}
}

func TestExpand_ClockShapes(t *testing.T) {
	got := Expand("{{isodate}}", testWorld(), testState())
	if len(got) != 10 || strings.Count(got, "-") != 2 {
		t.Errorf("isodate shape wrong: %q", got)
	}
	got = Expand("{{isotime}}", testWorld(), testState())
	if len(got) != 8 || strings.Count(got, ":") != 2 {
		t.Errorf("isotime shape wrong: %q", got)
	}
}
