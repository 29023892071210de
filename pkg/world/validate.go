package world

import (
	"fmt"
	"strings"

	"github.com/orsinium-labs/stopwords"
)

// Severity classifies a validation issue. Nothing here is fatal: the engine
// degrades around referential inconsistency, these reports exist so authors
// can fix their documents.
type Severity string

const (
	SeverityWarn Severity = "warning"
	SeverityInfo Severity = "info"
)

const (
	codeOrphanVariable  = "orphaned_variable_reference"
	codeEmptyContent    = "empty_entry_content"
	codeUnusedVariable  = "unused_variable"
	codeMissingDepth    = "depth_entry_missing_depth"
	codeOrphanTrack     = "orphaned_track_reference"
	codeStopwordKeyword = "stopword_keyword"
	codeDuplicateID     = "duplicate_id"
)

// Issue is one non-fatal finding about a World Definition.
type Issue struct {
	Severity Severity
	Code     string
	Subject  string // entry/rule/component/variable id
	Message  string
}

// Report collects validation issues for one document.
type Report struct {
	Issues []Issue
}

func (r *Report) add(sev Severity, code, subject, format string, args ...any) {
	r.Issues = append(r.Issues, Issue{
		Severity: sev,
		Code:     code,
		Subject:  subject,
		Message:  fmt.Sprintf(format, args...),
	})
}

// english flags lorebook keywords that would fire on nearly every message.
var english = stopwords.MustGet("en")

// Validate runs referential consistency checks over a migrated document.
// The returned report never blocks assembly or state mutation.
func Validate(w *WorldDefinition) *Report {
	r := &Report{}

	vars := make(map[string]bool, len(w.Variables))
	for _, v := range w.Variables {
		if vars[v.ID] {
			r.add(SeverityWarn, codeDuplicateID, v.ID, "variable id %q declared more than once", v.ID)
		}
		vars[v.ID] = true
	}
	tracks := make(map[string]bool, len(w.AudioTracks))
	for _, t := range w.AudioTracks {
		tracks[t.ID] = true
	}

	used := map[string]bool{}
	checkConds := func(subject string, conds []Condition) {
		for _, c := range conds {
			used[c.VariableID] = true
			if !vars[c.VariableID] {
				r.add(SeverityWarn, codeOrphanVariable, subject,
					"condition references unknown variable %q", c.VariableID)
			}
		}
	}

	seenEntries := map[string]bool{}
	for _, e := range w.Entries {
		if seenEntries[e.ID] {
			r.add(SeverityWarn, codeDuplicateID, e.ID, "entry id %q declared more than once", e.ID)
		}
		seenEntries[e.ID] = true

		if e.Enabled && strings.TrimSpace(e.Content) == "" {
			r.add(SeverityWarn, codeEmptyContent, e.ID, "enabled entry %q has no content", e.ID)
		}
		if e.Position == PosDepth && e.Depth == nil {
			r.add(SeverityWarn, codeMissingDepth, e.ID, "entry %q has position depth but no depth value", e.ID)
		}
		checkConds(e.ID, e.Conditions)

		for _, kw := range append(append([]string{}, e.Keywords...), e.SecondaryKeywords...) {
			word := strings.ToLower(strings.TrimSpace(kw))
			if word != "" && !strings.Contains(word, " ") && english.Contains(word) {
				r.add(SeverityInfo, codeStopwordKeyword, e.ID,
					"keyword %q is a common word and will match almost any message", kw)
			}
		}
	}

	for _, rule := range w.Rules {
		checkConds(rule.ID, rule.Conditions)
		checkConds(rule.ID, rule.NotificationConditions)
		for _, eff := range rule.Effects {
			used[eff.VariableID] = true
			if !vars[eff.VariableID] {
				r.add(SeverityWarn, codeOrphanVariable, rule.ID,
					"effect references unknown variable %q", eff.VariableID)
			}
		}
		for _, ae := range rule.AudioEffects {
			if !tracks[ae.TrackID] {
				r.add(SeverityWarn, codeOrphanTrack, rule.ID,
					"audio effect references unknown track %q", ae.TrackID)
			}
		}
	}

	for _, c := range w.Components {
		if c.VariableID != "" {
			used[c.VariableID] = true
			if !vars[c.VariableID] {
				r.add(SeverityWarn, codeOrphanVariable, c.ID,
					"component references unknown variable %q", c.VariableID)
			}
		}
	}

	for _, v := range w.Variables {
		if !used[v.ID] {
			r.add(SeverityInfo, codeUnusedVariable, v.ID,
				"variable %q is never referenced by an entry, rule, or component", v.ID)
		}
	}

	return r
}
