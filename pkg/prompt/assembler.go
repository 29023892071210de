// Package prompt composes the final prompt surfaces from a world definition,
// the current game state, and the lorebook selection for this turn: the
// system prompt, the greeting, mid-history depth injections, and
// post-history instruction blocks.
package prompt

import (
	"fmt"
	"sort"
	"strings"

	"github.com/fablekit/fablekit/pkg/macro"
	"github.com/fablekit/fablekit/pkg/match"
	"github.com/fablekit/fablekit/pkg/world"
)

// DepthInjection is an entry spliced into the message list depth messages
// from the end. The chat-history router (external) does the splicing.
type DepthInjection struct {
	Content string
	Depth   int
}

// Assembler builds prompt surfaces for one turn. It is cheap to construct
// and holds no mutable state of its own.
type Assembler struct {
	def      *world.WorldDefinition
	state    *world.GameState
	selected []world.WorldEntry
}

// New creates an assembler over the turn's entry selection: alwaysSend
// entries united with triggered ones, deduplicated by id with alwaysSend
// winning ties.
func New(def *world.WorldDefinition, state *world.GameState, sel match.Selection) *Assembler {
	seen := make(map[string]bool, len(sel.AlwaysSend)+len(sel.Triggered))
	selected := make([]world.WorldEntry, 0, len(sel.AlwaysSend)+len(sel.Triggered))
	for _, e := range sel.AlwaysSend {
		if !seen[e.ID] {
			seen[e.ID] = true
			selected = append(selected, e)
		}
	}
	for _, e := range sel.Triggered {
		if !seen[e.ID] {
			seen[e.ID] = true
			selected = append(selected, e)
		}
	}
	return &Assembler{def: def, state: state, selected: selected}
}

// SystemPrompt renders the system prompt: selected entries grouped by
// position in the fixed slot order, each slot sorted by priority descending,
// macro-expanded, joined with blank lines, followed by the variable state
// summary and the machine-readable output-format instructions.
func (a *Assembler) SystemPrompt() string {
	var blocks []string
	for _, slot := range world.SystemSlots {
		for _, e := range a.slotEntries(slot) {
			if content := macro.Expand(e.Content, a.def, a.state); strings.TrimSpace(content) != "" {
				blocks = append(blocks, content)
			}
		}
	}

	if summary := a.stateSummary(); summary != "" {
		blocks = append(blocks, summary)
	}
	if instructions := a.formatInstructions(); instructions != "" {
		blocks = append(blocks, instructions)
	}
	return strings.Join(blocks, "\n\n")
}

// Greeting renders the world's enabled greeting entries. Greeting entries
// never participate in matching or the system prompt, so they are read
// straight from the definition.
func (a *Assembler) Greeting() string {
	var parts []string
	for _, e := range sortByPriority(entriesAt(a.def.Entries, world.PosGreeting)) {
		if !e.Enabled {
			continue
		}
		if content := macro.Expand(e.Content, a.def, a.state); strings.TrimSpace(content) != "" {
			parts = append(parts, content)
		}
	}
	return strings.Join(parts, "\n\n")
}

// DepthInjections returns the selected depth entries for mid-history
// splicing, highest priority first. Entries missing a depth value fall back
// to depth 0 (immediately before the latest message).
func (a *Assembler) DepthInjections() []DepthInjection {
	var out []DepthInjection
	for _, e := range sortByPriority(entriesAt(a.selected, world.PosDepth)) {
		depth := 0
		if e.Depth != nil {
			depth = *e.Depth
		}
		out = append(out, DepthInjection{
			Content: macro.Expand(e.Content, a.def, a.state),
			Depth:   depth,
		})
	}
	return out
}

// PostHistory returns the selected post-history instruction blocks,
// highest priority first.
func (a *Assembler) PostHistory() []string {
	var out []string
	for _, e := range sortByPriority(entriesAt(a.selected, world.PosPostHistory)) {
		out = append(out, macro.Expand(e.Content, a.def, a.state))
	}
	return out
}

func (a *Assembler) slotEntries(pos world.Position) []world.WorldEntry {
	return sortByPriority(entriesAt(a.selected, pos))
}

func entriesAt(entries []world.WorldEntry, pos world.Position) []world.WorldEntry {
	var out []world.WorldEntry
	for _, e := range entries {
		if e.Position == pos {
			out = append(out, e)
		}
	}
	return out
}

func sortByPriority(entries []world.WorldEntry) []world.WorldEntry {
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Priority > entries[j].Priority
	})
	return entries
}

// stateSummary renders the "name: value" variable listing, empty when the
// world declares no variables.
func (a *Assembler) stateSummary() string {
	if len(a.def.Variables) == 0 {
		return ""
	}
	var sb strings.Builder
	sb.WriteString("Current state:\n")
	for _, v := range a.def.Variables {
		val, ok := a.state.Variables[v.ID]
		if !ok {
			val = v.DefaultValue
		}
		fmt.Fprintf(&sb, "%s: %s\n", v.Name, world.Stringify(val))
	}
	return strings.TrimRight(sb.String(), "\n")
}

// formatInstructions tells the model how to emit state changes: the
// [variableId: operation value] directive grammar, or the structured JSON
// contract when the world runs in structured mode.
func (a *Assembler) formatInstructions() string {
	if len(a.def.Variables) == 0 && len(a.def.AudioTracks) == 0 {
		return ""
	}
	if a.def.Settings.StructuredOutput {
		return a.structuredInstructions()
	}
	return a.directiveInstructions()
}

func (a *Assembler) directiveInstructions() string {
	var sb strings.Builder
	sb.WriteString("To change game state, embed directives in your reply using this exact grammar:\n")
	sb.WriteString("[variableId: operation value]\n")
	sb.WriteString("Operations: set, add, subtract, multiply, toggle, append. ")
	sb.WriteString("Shorthand: [health: -10] subtracts, [gold: +5] adds, [score: *2] multiplies, [hasKey: toggle] flips a boolean.\n")
	sb.WriteString("Values may be numbers, true/false, or double-quoted strings.\n")

	if len(a.def.Variables) > 0 {
		sb.WriteString("Variables:\n")
		for _, v := range a.def.Variables {
			fmt.Fprintf(&sb, "- %s (%s", v.ID, v.Type)
			if v.Min != nil || v.Max != nil {
				fmt.Fprintf(&sb, ", range %s..%s", boundStr(v.Min), boundStr(v.Max))
			}
			sb.WriteString(")\n")
		}
	}

	if len(a.def.AudioTracks) > 0 {
		sb.WriteString("To control audio: [audio: trackId play|stop|crossfade|volume amount]\n")
		sb.WriteString("Tracks: ")
		ids := make([]string, 0, len(a.def.AudioTracks))
		for _, t := range a.def.AudioTracks {
			ids = append(ids, t.ID)
		}
		sb.WriteString(strings.Join(ids, ", "))
		sb.WriteString("\n")
	}
	return strings.TrimRight(sb.String(), "\n")
}

func (a *Assembler) structuredInstructions() string {
	var sb strings.Builder
	sb.WriteString("Respond ONLY with a JSON object of this shape. No markdown, no explanation. Start with { and end with }.\n")
	sb.WriteString(`{"narrative": "your story text", "stateChanges": [{"variableId": "...", "operation": "...", "value": ...}], "choices": ["..."]`)
	if len(a.def.AudioTracks) > 0 {
		sb.WriteString(`, "audioTriggers": [{"trackId": "...", "action": "play|stop|crossfade|volume", "volume": 0.5}]`)
	}
	sb.WriteString("}\n")

	if len(a.def.Variables) > 0 {
		sb.WriteString("Valid variableId values:\n")
		for _, v := range a.def.Variables {
			fmt.Fprintf(&sb, "- %s (%s)\n", v.ID, v.Type)
		}
		sb.WriteString("Valid operations: set, add, subtract, multiply, toggle, append.\n")
	}
	if len(a.def.AudioTracks) > 0 {
		sb.WriteString("Valid trackId values: ")
		ids := make([]string, 0, len(a.def.AudioTracks))
		for _, t := range a.def.AudioTracks {
			ids = append(ids, t.ID)
		}
		sb.WriteString(strings.Join(ids, ", "))
		sb.WriteString("\n")
	}
	return strings.TrimRight(sb.String(), "\n")
}

func boundStr(b *float64) string {
	if b == nil {
		return ""
	}
	return world.Stringify(*b)
}
