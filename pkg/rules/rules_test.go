package rules

import (
	"testing"

	"github.com/fablekit/fablekit/pkg/world"
)

func stateWith(vars map[string]any) *world.GameState {
	return &world.GameState{Variables: vars, Metadata: map[string]any{}}
}

func TestEvaluate_ConditionRulesFire(t *testing.T) {
	rls := []world.Rule{
		{
			ID:         "low-health",
			Trigger:    world.TriggerCondition,
			Conditions: []world.Condition{{VariableID: "health", Operator: world.OpLt, Value: float64(20)}},
			Effects:    []world.Effect{{VariableID: "mood", Operation: world.OpSet, Value: "desperate"}},
			AudioEffects: []world.AudioEffect{
				{TrackID: "heartbeat", Action: world.AudioPlay},
			},
		},
		{
			ID:         "rich",
			Trigger:    world.TriggerCondition,
			Conditions: []world.Condition{{VariableID: "gold", Operator: world.OpGte, Value: float64(100)}},
			Effects:    []world.Effect{{VariableID: "mood", Operation: world.OpSet, Value: "smug"}},
		},
	}

	res := Evaluate(stateWith(map[string]any{"health": float64(10), "gold": float64(5)}), rls)
	if len(res.Effects) != 1 || res.Effects[0].Value != "desperate" {
		t.Fatalf("expected only low-health to fire, got %+v", res.Effects)
	}
	if len(res.AudioEffects) != 1 || res.AudioEffects[0].TrackID != "heartbeat" {
		t.Fatalf("expected heartbeat audio, got %+v", res.AudioEffects)
	}
}

func TestEvaluate_PriorityOrdersEffects(t *testing.T) {
	rls := []world.Rule{
		{
			ID: "second", Trigger: world.TriggerCondition, Priority: 1,
			Effects: []world.Effect{{VariableID: "log", Operation: world.OpAppend, Value: "b"}},
		},
		{
			ID: "first", Trigger: world.TriggerCondition, Priority: 9,
			Effects: []world.Effect{{VariableID: "log", Operation: world.OpAppend, Value: "a"}},
		},
	}
	res := Evaluate(stateWith(map[string]any{}), rls)
	if len(res.Effects) != 2 || res.Effects[0].Value != "a" || res.Effects[1].Value != "b" {
		t.Fatalf("effects not in priority order: %+v", res.Effects)
	}
}

func TestEvaluate_EmptyTriggerIsCondition(t *testing.T) {
	rls := []world.Rule{{
		ID:      "legacy",
		Effects: []world.Effect{{VariableID: "x", Operation: world.OpSet, Value: float64(1)}},
	}}
	res := Evaluate(stateWith(map[string]any{}), rls)
	if len(res.Effects) != 1 {
		t.Fatal("rules without a trigger should behave as condition-triggered")
	}
}

func TestEvaluate_ActionRulesIgnored(t *testing.T) {
	rls := []world.Rule{{
		ID:      "on-rest",
		Trigger: world.TriggerAction, ActionID: "rest",
		Effects: []world.Effect{{VariableID: "health", Operation: world.OpAdd, Value: float64(50)}},
	}}
	res := Evaluate(stateWith(map[string]any{"health": float64(10)}), rls)
	if len(res.Effects) != 0 {
		t.Fatal("action-triggered rules must not fire on the condition pass")
	}
}

func TestEvaluateAction_FiltersByActionID(t *testing.T) {
	rls := []world.Rule{
		{
			ID: "on-rest", Trigger: world.TriggerAction, ActionID: "rest",
			Effects: []world.Effect{{VariableID: "health", Operation: world.OpAdd, Value: float64(30)}},
		},
		{
			ID: "on-pray", Trigger: world.TriggerAction, ActionID: "pray",
			Effects: []world.Effect{{VariableID: "faith", Operation: world.OpAdd, Value: float64(1)}},
		},
	}
	res := EvaluateAction("rest", stateWith(map[string]any{"health": float64(10)}), rls, nil)
	if len(res.Effects) != 1 || res.Effects[0].VariableID != "health" {
		t.Fatalf("expected only the rest rule, got %+v", res.Effects)
	}
}

func TestEvaluateAction_NotifyAlways(t *testing.T) {
	vars := []world.Variable{{ID: "gold", Name: "Gold", Type: world.VarNumber}}
	rls := []world.Rule{{
		ID: "on-beg", Trigger: world.TriggerAction, ActionID: "beg",
		Effects:              []world.Effect{{VariableID: "gold", Operation: world.OpAdd, Value: float64(1)}},
		Notification:         world.NotifyAlways,
		NotificationTemplate: "The beggar's purse holds {gold} coins.",
	}}

	res := EvaluateAction("beg", stateWith(map[string]any{"gold": float64(4)}), rls, vars)
	if len(res.Notifications) != 1 {
		t.Fatal("expected one notification")
	}
	// Always notifications interpolate against the pre-effect state.
	if got := res.Notifications[0]; got != "The beggar's purse holds 4 coins." {
		t.Errorf("got %q", got)
	}
}

func TestEvaluateAction_NotifyConditionalUsesPreview(t *testing.T) {
	vars := []world.Variable{{ID: "gold", Name: "Gold", Type: world.VarNumber}}
	rls := []world.Rule{{
		ID: "jackpot", Trigger: world.TriggerAction, ActionID: "gamble",
		Effects:                []world.Effect{{VariableID: "gold", Operation: world.OpAdd, Value: float64(10)}},
		Notification:           world.NotifyConditional,
		NotificationTemplate:   "Rich at last: {Gold} gold!",
		NotificationConditions: []world.Condition{{VariableID: "gold", Operator: world.OpGte, Value: float64(100)}},
	}}

	// 95 + 10 crosses the threshold only on the preview state.
	state := stateWith(map[string]any{"gold": float64(95)})
	res := EvaluateAction("gamble", state, rls, vars)
	if len(res.Notifications) != 1 {
		t.Fatal("conditional notification should fire against the preview")
	}
	if got := res.Notifications[0]; got != "Rich at last: 105 gold!" {
		t.Errorf("got %q", got)
	}
	if state.Variables["gold"] != float64(95) {
		t.Error("evaluation must not mutate the real state")
	}

	// Far from the threshold: silent.
	res = EvaluateAction("gamble", stateWith(map[string]any{"gold": float64(5)}), rls, vars)
	if len(res.Notifications) != 0 {
		t.Fatal("conditional notification should stay silent below the threshold")
	}
}

func TestInterpolate_NameAndIDResolution(t *testing.T) {
	state := stateWith(map[string]any{"playerGold": float64(12)})
	names := map[string]string{"gold": "playerGold"}

	cases := []struct {
		in   string
		want string
	}{
		{"You have {playerGold}.", "You have 12."},
		{"You have {Gold}.", "You have 12."},
		{"You have {gOLD}.", "You have 12."},
		{"Unknown {mana} stays.", "Unknown {mana} stays."},
	}
	for _, c := range cases {
		if got := interpolate(c.in, state, names); got != c.want {
			t.Errorf("interpolate(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}
