package parse

import (
	"encoding/json"
	"strings"

	"github.com/fablekit/fablekit/pkg/world"
)

// structuredResponse is the JSON contract the model is steered to produce.
type structuredResponse struct {
	Narrative     any                 `json:"narrative"`
	StateChanges  []world.Effect      `json:"stateChanges"`
	Choices       []string            `json:"choices"`
	AudioTriggers []world.AudioEffect `json:"audioTriggers"`
}

// ParseStructured parses a model reply as a structured JSON response.
// If the text is not valid JSON, or narrative is missing or not a string,
// it returns the raw text untouched with zero effects and ok=false so the
// caller can retry with the directive parser. Invalid state changes are
// dropped individually, never rejected wholesale.
func ParseStructured(raw string) (Result, bool) {
	fallback := Result{CleanText: raw}

	cleaned := stripCodeFence(strings.TrimSpace(raw))
	if cleaned == "" || cleaned[0] != '{' {
		return fallback, false
	}

	var resp structuredResponse
	if err := json.Unmarshal([]byte(cleaned), &resp); err != nil {
		return fallback, false
	}
	narrative, ok := resp.Narrative.(string)
	if !ok {
		return fallback, false
	}

	res := Result{CleanText: narrative, Choices: resp.Choices}
	for _, eff := range resp.StateChanges {
		if eff.VariableID == "" || !world.IsValidOperation(string(eff.Operation)) {
			continue
		}
		// Every operation except toggle needs an operand.
		if eff.Value == nil && eff.Operation != world.OpToggle {
			continue
		}
		res.Effects = append(res.Effects, eff)
	}
	for _, ae := range resp.AudioTriggers {
		if ae.TrackID == "" || !world.IsValidAudioAction(string(ae.Action)) {
			continue
		}
		res.AudioEffects = append(res.AudioEffects, ae)
	}
	return res, true
}

// stripCodeFence removes a markdown code block wrapper (```json ... ```)
// that models routinely add around JSON output.
func stripCodeFence(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	lines := strings.Split(s, "\n")
	if len(lines) > 0 {
		lines = lines[1:]
	}
	if len(lines) > 0 && strings.HasPrefix(strings.TrimSpace(lines[len(lines)-1]), "```") {
		lines = lines[:len(lines)-1]
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

// Schema builds a JSON-Schema description of the structured response for a
// specific world, enumerating live variable ids, valid operations, and audio
// track ids, so a generation provider can constrain its output.
func Schema(w *world.WorldDefinition) map[string]any {
	varIDs := make([]string, 0, len(w.Variables))
	for _, v := range w.Variables {
		varIDs = append(varIDs, v.ID)
	}
	ops := make([]string, 0, len(world.Operations))
	for _, op := range world.Operations {
		ops = append(ops, string(op))
	}

	// value is required but nullable: toggle takes no operand, and strict
	// schema modes want every property listed in required.
	stateChange := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"variableId": map[string]any{"type": "string", "enum": varIDs},
			"operation":  map[string]any{"type": "string", "enum": ops},
			"value":      map[string]any{"type": []string{"number", "string", "boolean", "null"}},
		},
		"required": []string{"variableId", "operation", "value"},
	}

	props := map[string]any{
		"narrative": map[string]any{"type": "string"},
		"stateChanges": map[string]any{
			"type":  "array",
			"items": stateChange,
		},
		"choices": map[string]any{
			"type":  "array",
			"items": map[string]any{"type": "string"},
		},
	}

	if len(w.AudioTracks) > 0 {
		trackIDs := make([]string, 0, len(w.AudioTracks))
		for _, t := range w.AudioTracks {
			trackIDs = append(trackIDs, t.ID)
		}
		actions := make([]string, 0, len(world.AudioActions))
		for _, a := range world.AudioActions {
			actions = append(actions, string(a))
		}
		props["audioTriggers"] = map[string]any{
			"type": "array",
			"items": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"trackId":      map[string]any{"type": "string", "enum": trackIDs},
					"action":       map[string]any{"type": "string", "enum": actions},
					"volume":       map[string]any{"type": "number"},
					"fadeDuration": map[string]any{"type": "number"},
				},
				"required": []string{"trackId", "action"},
			},
		}
	}

	return map[string]any{
		"type":                 "object",
		"properties":           props,
		"required":             []string{"narrative"},
		"additionalProperties": false,
	}
}
