// Package migrate normalizes persisted World Definition documents of any
// historical schema version to the current version. The chain is strictly
// ordered and idempotent: each step is a pure function over the raw JSON
// document, guarded by a version check, so re-running the chain on a current
// document is a no-op.
package migrate

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/fablekit/fablekit/pkg/world"
)

// referenceContext is the assumed model context, in tokens, used when
// converting a flat v1 lorebook token budget into a percentage.
const referenceContext = 4096

type step struct {
	from  int
	to    int
	apply func(doc map[string]any)
}

// chain is dispatched on the document's major version tag, lowest first.
var chain = []step{
	{from: 1, to: 2, apply: v1to2},
	{from: 2, to: 3, apply: v2to3},
	{from: 3, to: 4, apply: v3to4},
	{from: 4, to: 5, apply: v4to5},
}

// Apply migrates a raw document in place to the current version.
// Documents without a version tag are treated as v1.
func Apply(doc map[string]any) map[string]any {
	if doc == nil {
		return doc
	}
	for _, st := range chain {
		if majorVersion(doc) == st.from {
			st.apply(doc)
			doc["version"] = fmt.Sprintf("%d.0.0", st.to)
		}
	}
	return doc
}

// Load unmarshals raw JSON, migrates it, and decodes the normalized document
// into the current types. This is the single entry point for reading a
// persisted world.
func Load(data []byte) (*world.WorldDefinition, error) {
	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("migrate: invalid world document: %w", err)
	}
	Apply(doc)

	normalized, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("migrate: re-encode failed: %w", err)
	}
	var w world.WorldDefinition
	if err := json.Unmarshal(normalized, &w); err != nil {
		return nil, fmt.Errorf("migrate: decode failed: %w", err)
	}
	return &w, nil
}

func majorVersion(doc map[string]any) int {
	raw, _ := doc["version"].(string)
	if raw == "" {
		return 1
	}
	major, _, _ := strings.Cut(raw, ".")
	n, err := strconv.Atoi(major)
	if err != nil || n < 1 {
		return 1
	}
	return n
}

// v1to2 lowers legacy characters[], lorebookEntries[], and
// settings.systemPrompt/greeting into WorldEntry records at canonical
// positions. Synthetic priorities descend with source order so the original
// ordering survives the priority sort.
func v1to2(doc map[string]any) {
	entries := asSlice(doc["entries"])
	settings := asMap(doc, "settings")
	priority := 100

	if sp, ok := settings["systemPrompt"].(string); ok && sp != "" {
		entries = append(entries, legacyEntry("system-prompt", "System Prompt", sp,
			"system", "top", priority, true))
		priority--
	}

	for i, raw := range asSlice(doc["characters"]) {
		ch, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		name, _ := ch["name"].(string)
		content, _ := ch["description"].(string)
		if p, ok := ch["personality"].(string); ok && p != "" {
			if content != "" {
				content += "\n\n"
			}
			content += p
		}
		entries = append(entries, legacyEntry(
			fmt.Sprintf("character-%d", i+1), name, content,
			"character", "character", priority, true))
		priority--
	}

	for i, raw := range asSlice(doc["lorebookEntries"]) {
		le, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		name, _ := le["name"].(string)
		content, _ := le["content"].(string)
		entry := legacyEntry(
			fmt.Sprintf("lorebook-%d", i+1), name, content,
			"lore", legacyLorebookPosition(le["position"]), priority, false)
		priority--
		if kws := stringSlice(le["keys"]); len(kws) > 0 {
			entry["keywords"] = kws
		} else if kws := stringSlice(le["keywords"]); len(kws) > 0 {
			entry["keywords"] = kws
		}
		if constant, _ := le["constant"].(bool); constant {
			entry["alwaysSend"] = true
		}
		entries = append(entries, entry)
	}

	if greeting, ok := settings["greeting"].(string); ok && greeting != "" {
		entries = append(entries, legacyEntry("greeting", "Greeting", greeting,
			"greeting", "greeting", priority, true))
	}

	// Flat token budget becomes a percentage of the reference context when no
	// percentage is already set.
	if _, ok := settings["lorebookBudgetPercent"]; !ok {
		if budget, ok := world.ToNumber(settings["lorebookTokenBudget"]); ok && budget > 0 {
			settings["lorebookBudgetPercent"] = math.Min(100, math.Round(budget/referenceContext*100))
		}
	}

	doc["entries"] = entries
	delete(doc, "characters")
	delete(doc, "lorebookEntries")
	delete(settings, "systemPrompt")
	delete(settings, "greeting")
	delete(settings, "lorebookTokenBudget")
}

// v2to3 merges the abandoned insertionOrder ordering (and numeric groups that
// were used the same way) into priority, then drops the legacy fields.
func v2to3(doc map[string]any) {
	for _, raw := range asSlice(doc["entries"]) {
		entry, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		order, hasOrder := world.ToNumber(entry["insertionOrder"])
		if !hasOrder {
			if n, ok := world.ToNumber(entry["group"]); ok {
				order, hasOrder = n, true
				delete(entry, "group")
			}
		}
		if !hasOrder {
			continue
		}
		prio, _ := world.ToNumber(entry["priority"])
		entry["priority"] = (1000 - order*10) + prio
		delete(entry, "insertionOrder")
	}
}

// v3to4 maps the retired layoutMode setting onto uiMode.
func v3to4(doc map[string]any) {
	settings := asMap(doc, "settings")
	layout, hasLayout := settings["layoutMode"].(string)
	if !hasLayout {
		return
	}
	switch {
	case layout == "immersive":
		settings["uiMode"] = "persistent"
	case len(asSlice(settings["displayTransforms"])) > 0:
		settings["uiMode"] = "per-reply"
	default:
		settings["uiMode"] = "chat"
	}
	delete(settings, "layoutMode")
}

// v4to5 lowers uiMode "persistent" into the fullScreenComponent flag.
// uiMode itself stays on the document but nothing reads it anymore.
func v4to5(doc map[string]any) {
	settings := asMap(doc, "settings")
	if mode, _ := settings["uiMode"].(string); mode == "persistent" {
		settings["fullScreenComponent"] = true
	}
}

func legacyEntry(id, name, content, role, position string, priority int, alwaysSend bool) map[string]any {
	return map[string]any{
		"id":         id,
		"name":       name,
		"content":    content,
		"role":       role,
		"position":   position,
		"priority":   priority,
		"enabled":    true,
		"alwaysSend": alwaysSend,
		"keywords":   []any{},
	}
}

// legacyLorebookPosition maps the old lorebook position encoding (numeric
// slots or freeform strings) onto a canonical Position.
func legacyLorebookPosition(v any) string {
	if n, ok := world.ToNumber(v); ok {
		if n == 0 {
			return string(world.PosBeforeChar)
		}
		return string(world.PosAfterChar)
	}
	if s, ok := v.(string); ok {
		switch world.Position(s) {
		case world.PosTop, world.PosBeforeChar, world.PosCharacter,
			world.PosAfterChar, world.PosPersona, world.PosBottom,
			world.PosDepth, world.PosPostHistory:
			return s
		}
	}
	return string(world.PosBottom)
}

func asSlice(v any) []any {
	s, _ := v.([]any)
	return s
}

// asMap returns doc[key] as a map, installing an empty one when absent so
// steps can write through it.
func asMap(doc map[string]any, key string) map[string]any {
	if m, ok := doc[key].(map[string]any); ok {
		return m
	}
	m := map[string]any{}
	doc[key] = m
	return m
}

func stringSlice(v any) []string {
	raw, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		if s, ok := item.(string); ok && s != "" {
			out = append(out, s)
		}
	}
	return out
}
