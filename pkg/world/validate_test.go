package world

import "testing"

func hasIssue(r *Report, code, subject string) bool {
	for _, i := range r.Issues {
		if i.Code == code && i.Subject == subject {
			return true
		}
	}
	return false
}

func TestValidate_OrphanedReferences(t *testing.T) {
	w := &WorldDefinition{
		Variables: []Variable{{ID: "health", Name: "Health", Type: VarNumber}},
		Entries: []WorldEntry{{
			ID: "e1", Content: "lore", Enabled: true,
			Conditions: []Condition{{VariableID: "mana", Operator: OpGt, Value: float64(0)}},
		}},
		Rules: []Rule{{
			ID:      "r1",
			Effects: []Effect{{VariableID: "stamina", Operation: OpAdd, Value: float64(1)}},
			AudioEffects: []AudioEffect{
				{TrackID: "ghost-track", Action: AudioPlay},
			},
		}},
		Components: []GameComponent{{ID: "c1", Type: "meter", VariableID: "health"}},
	}
	r := Validate(w)

	if !hasIssue(r, "orphaned_variable_reference", "e1") {
		t.Error("expected orphan warning for entry condition on unknown variable")
	}
	if !hasIssue(r, "orphaned_variable_reference", "r1") {
		t.Error("expected orphan warning for rule effect on unknown variable")
	}
	if !hasIssue(r, "orphaned_track_reference", "r1") {
		t.Error("expected orphan warning for audio effect on unknown track")
	}
	// health is referenced by the component, so no unused warning.
	if hasIssue(r, "unused_variable", "health") {
		t.Error("health is referenced and should not be flagged unused")
	}
}

func TestValidate_EntryShape(t *testing.T) {
	w := &WorldDefinition{
		Entries: []WorldEntry{
			{ID: "blank", Content: "   ", Enabled: true},
			{ID: "deep", Content: "x", Enabled: true, Position: PosDepth},
			{ID: "dup", Content: "x", Enabled: true},
			{ID: "dup", Content: "y", Enabled: true},
		},
	}
	r := Validate(w)

	if !hasIssue(r, "empty_entry_content", "blank") {
		t.Error("expected empty-content warning")
	}
	if !hasIssue(r, "depth_entry_missing_depth", "deep") {
		t.Error("expected missing-depth warning")
	}
	if !hasIssue(r, "duplicate_id", "dup") {
		t.Error("expected duplicate-id warning")
	}
}

func TestValidate_StopwordKeyword(t *testing.T) {
	w := &WorldDefinition{
		Entries: []WorldEntry{{
			ID: "e1", Content: "x", Enabled: true,
			Keywords: []string{"the", "dragon"},
		}},
	}
	r := Validate(w)

	if !hasIssue(r, "stopword_keyword", "e1") {
		t.Error(`keyword "the" should be flagged as a stopword`)
	}
	for _, i := range r.Issues {
		if i.Code == "stopword_keyword" && i.Severity != SeverityInfo {
			t.Errorf("stopword finding should be info severity, got %s", i.Severity)
		}
	}
}

func TestValidate_UnusedVariable(t *testing.T) {
	w := &WorldDefinition{
		Variables: []Variable{{ID: "forgotten", Name: "Forgotten", Type: VarNumber}},
	}
	r := Validate(w)
	if !hasIssue(r, "unused_variable", "forgotten") {
		t.Error("expected unused-variable note")
	}
}

func TestValidate_CleanWorld(t *testing.T) {
	w := &WorldDefinition{
		Variables: []Variable{{ID: "gold", Name: "Gold", Type: VarNumber}},
		Entries: []WorldEntry{{
			ID: "e1", Content: "The market.", Enabled: true,
			Keywords:   []string{"market"},
			Conditions: []Condition{{VariableID: "gold", Operator: OpGt, Value: float64(0)}},
		}},
	}
	if r := Validate(w); len(r.Issues) != 0 {
		t.Errorf("clean world produced issues: %+v", r.Issues)
	}
}
