package engine

import (
	"reflect"
	"testing"
)

func TestDiffChanges(t *testing.T) {
	old := map[string]any{"title": "Fix heater", "priority": "normal", "status": "new"}
	updated := map[string]any{"title": "Fix heater", "priority": "urgent", "status": "new"}

	changes := DiffChanges(old, updated, []string{"title", "priority"})

	// Untouched-in-value fields are dropped even when named.
	if _, ok := changes["title"]; ok {
		t.Error("unchanged field recorded")
	}
	want := map[string]any{"old": "normal", "new": "urgent"}
	if !reflect.DeepEqual(changes["priority"], want) {
		t.Errorf("priority change = %v, want %v", changes["priority"], want)
	}
}

func TestDiffChangesNullTransitions(t *testing.T) {
	old := map[string]any{"technician_id": nil}
	updated := map[string]any{"technician_id": "t-1"}

	changes := DiffChanges(old, updated, []string{"technician_id"})
	got, ok := changes["technician_id"].(map[string]any)
	if !ok {
		t.Fatalf("changes = %v", changes)
	}
	if got["old"] != nil || got["new"] != "t-1" {
		t.Errorf("change = %v", got)
	}
}
