package engine

import (
	"reflect"
	"regexp"
	"testing"

	"fieldserve-backend/internal/metadata"
)

func TestBuildInsertClause(t *testing.T) {
	columns, placeholders, values, err := BuildInsertClause(map[string]any{
		"name":     "  Acme  ",
		"settings": map[string]any{"tier": "gold"},
		"active":   true,
	}, UpdateOptions{JSONBFields: []string{"settings"}, TrimFields: []string{"name"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !reflect.DeepEqual(columns, []string{"active", "name", "settings"}) {
		t.Errorf("columns = %v", columns)
	}
	if !reflect.DeepEqual(placeholders, []string{"$1", "$2", "$3::jsonb"}) {
		t.Errorf("placeholders = %v", placeholders)
	}
	if values[0] != true || values[1] != "Acme" {
		t.Errorf("values = %v", values)
	}
	if values[2] != `{"tier":"gold"}` {
		t.Errorf("jsonb value = %v", values[2])
	}
}

func TestBuildInsertClauseNilJSONB(t *testing.T) {
	_, placeholders, values, err := BuildInsertClause(map[string]any{
		"settings": nil,
	}, UpdateOptions{JSONBFields: []string{"settings"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if placeholders[0] != "$1" {
		t.Errorf("placeholder = %s, nil should bind without a cast", placeholders[0])
	}
	if values[0] != nil {
		t.Errorf("value = %v", values[0])
	}
}

func TestGenerateIdentity(t *testing.T) {
	pattern := regexp.MustCompile(`^WO-[0-9A-F]{8}$`)
	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		id := GenerateIdentity("WO")
		if !pattern.MatchString(id) {
			t.Fatalf("identity %q does not match prefix-hex shape", id)
		}
		if seen[id] {
			t.Fatalf("identity %q repeated", id)
		}
		seen[id] = true
	}
}

func TestCheckRequiredFields(t *testing.T) {
	meta := &metadata.EntityMetadata{
		EntityName:     "work_order",
		RequiredFields: []string{"customer_id", "title"},
	}

	if details := CheckRequiredFields(meta, map[string]any{"customer_id": "c-1", "title": "Fix"}); len(details) != 0 {
		t.Errorf("unexpected details: %v", details)
	}

	// Missing and explicit nil both count, and the batch is complete.
	details := CheckRequiredFields(meta, map[string]any{"customer_id": nil})
	if len(details) != 2 {
		t.Fatalf("details = %v", details)
	}
	if details[0].Field != "customer_id" || details[1].Field != "title" {
		t.Errorf("details = %v", details)
	}
	for _, d := range details {
		if d.Rule != "required" {
			t.Errorf("rule = %q", d.Rule)
		}
	}
}
