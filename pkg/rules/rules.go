// Package rules evaluates declarative condition-to-effect rules against a
// game state snapshot. Evaluation is pure: rules contribute effects to the
// result, they never mutate state themselves.
package rules

import (
	"regexp"
	"sort"
	"strings"

	"github.com/fablekit/fablekit/pkg/world"
)

// Result accumulates the output of one evaluation pass.
type Result struct {
	Effects       []world.Effect
	AudioEffects  []world.AudioEffect
	Notifications []string
}

// Evaluate runs every condition-triggered rule whose conditions pass, in
// priority order, and collects their effects. Rules fire independently of
// each other; there is no cross-rule short-circuit.
func Evaluate(state *world.GameState, rls []world.Rule) Result {
	var res Result
	for _, r := range byPriority(rls, world.TriggerCondition, "") {
		if !world.EvalConditions(r.Conditions, r.ConditionLogic, state) {
			continue
		}
		res.Effects = append(res.Effects, r.Effects...)
		res.AudioEffects = append(res.AudioEffects, r.AudioEffects...)
	}
	return res
}

// EvaluateAction runs the action-triggered rules bound to actionID. Each rule
// that passes its pre-conditions contributes effects and independently
// decides whether to notify the model, per its notification policy.
// Conditional notifications are checked against a throwaway snapshot with
// the effects accumulated so far applied.
func EvaluateAction(actionID string, state *world.GameState, rls []world.Rule, variables []world.Variable) Result {
	vars := make(map[string]*world.Variable, len(variables))
	names := make(map[string]string, len(variables))
	for i := range variables {
		vars[variables[i].ID] = &variables[i]
		names[strings.ToLower(variables[i].Name)] = variables[i].ID
	}

	var res Result
	for _, r := range byPriority(rls, world.TriggerAction, actionID) {
		if !world.EvalConditions(r.Conditions, r.ConditionLogic, state) {
			continue
		}
		res.Effects = append(res.Effects, r.Effects...)
		res.AudioEffects = append(res.AudioEffects, r.AudioEffects...)

		switch r.Notification {
		case world.NotifyAlways:
			res.Notifications = append(res.Notifications,
				interpolate(r.NotificationTemplate, state, names))
		case world.NotifyConditional:
			preview := applyToSnapshot(state, res.Effects, vars)
			if world.EvalConditions(r.NotificationConditions, r.ConditionLogic, preview) {
				res.Notifications = append(res.Notifications,
					interpolate(r.NotificationTemplate, preview, names))
			}
		}
	}
	return res
}

// byPriority filters rules by trigger (and action id), sorted by priority
// descending with source order as the stable tie-break.
func byPriority(rls []world.Rule, trigger world.Trigger, actionID string) []world.Rule {
	var out []world.Rule
	for _, r := range rls {
		t := r.Trigger
		if t == "" {
			t = world.TriggerCondition
		}
		if t != trigger {
			continue
		}
		if trigger == world.TriggerAction && r.ActionID != actionID {
			continue
		}
		out = append(out, r)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Priority > out[j].Priority
	})
	return out
}

// applyToSnapshot applies effects to a clone of state, leaving the original
// untouched. Unknown variable ids are ignored, matching the state manager.
func applyToSnapshot(state *world.GameState, effects []world.Effect, vars map[string]*world.Variable) *world.GameState {
	preview := state.Clone()
	for _, eff := range effects {
		v, ok := vars[eff.VariableID]
		if !ok {
			continue
		}
		next, changed := world.ApplyEffect(preview.Variables[eff.VariableID], v, eff)
		if changed {
			preview.Variables[eff.VariableID] = next
		}
	}
	return preview
}

var placeholderPattern = regexp.MustCompile(`\{([^{}]+)\}`)

// interpolate resolves {variableId} directly, or {Variable Name}
// case-insensitively via the name index. Unresolved placeholders stay
// literal.
func interpolate(template string, state *world.GameState, names map[string]string) string {
	return placeholderPattern.ReplaceAllStringFunc(template, func(tok string) string {
		key := strings.TrimSpace(tok[1 : len(tok)-1])
		if v, ok := state.Variables[key]; ok {
			return world.Stringify(v)
		}
		if id, ok := names[strings.ToLower(key)]; ok {
			if v, ok := state.Variables[id]; ok {
				return world.Stringify(v)
			}
		}
		return tok
	})
}
