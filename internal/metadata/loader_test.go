package metadata

import (
	"os"
	"path/filepath"
	"testing"
)

func TestMergeCatalogsReplacesWholesale(t *testing.T) {
	base := []*EntityMetadata{
		{EntityName: "alpha", TableName: "alphas", JSONBFields: []string{"payload"}},
		{EntityName: "beta", TableName: "betas"},
	}
	overlay := []*EntityMetadata{
		{EntityName: "alpha", TableName: "alphas_v2"},
		{EntityName: "gamma", TableName: "gammas"},
	}

	merged := MergeCatalogs(base, overlay)
	if len(merged) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(merged))
	}

	// Base order is preserved; the replaced entry sits where the original was.
	if merged[0].EntityName != "alpha" || merged[1].EntityName != "beta" || merged[2].EntityName != "gamma" {
		t.Errorf("order = %s, %s, %s", merged[0].EntityName, merged[1].EntityName, merged[2].EntityName)
	}

	// Replacement is wholesale: nothing from the base entry survives.
	if merged[0].TableName != "alphas_v2" {
		t.Errorf("tableName = %s, want alphas_v2", merged[0].TableName)
	}
	if len(merged[0].JSONBFields) != 0 {
		t.Errorf("overlay entry inherited base jsonbFields %v", merged[0].JSONBFields)
	}
}

func TestLoadCatalogFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	doc := `entities:
  - entity_name: ticket
    table_name: tickets
    primary_key: id
    identity_field: subject
    category: simple
    required_fields: [subject]
    immutable_fields: [updated_at]
    trim_fields: [subject]
    status_flow:
      field: state
      initial: open
      transitions:
        - from: open
          to: closed
        - from: [open, closed]
          to: archived
`
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}

	entries, err := LoadCatalogFile(path)
	if err != nil {
		t.Fatalf("LoadCatalogFile: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}

	e := entries[0]
	if e.EntityName != "ticket" || e.TableName != "tickets" {
		t.Errorf("entry = %s/%s", e.EntityName, e.TableName)
	}
	if e.StatusFlow == nil {
		t.Fatal("status flow not parsed")
	}
	// Scalar and list "from" both decode.
	if got := e.StatusFlow.Transitions[0].From; len(got) != 1 || got[0] != "open" {
		t.Errorf("scalar from = %v", got)
	}
	if got := e.StatusFlow.Transitions[1].From; len(got) != 2 {
		t.Errorf("list from = %v", got)
	}
}

func TestLoadCatalogFileRejectsNamelessEntry(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	if err := os.WriteFile(path, []byte("entities:\n  - table_name: orphans\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadCatalogFile(path); err == nil {
		t.Fatal("expected error for entry without entity_name")
	}
}

func TestLoadRegistryWithoutOverlay(t *testing.T) {
	reg, err := LoadRegistry("")
	if err != nil {
		t.Fatalf("LoadRegistry: %v", err)
	}
	if len(reg.EntityNames()) != len(DefaultRegistry().EntityNames()) {
		t.Error("empty path should yield the built-in catalog")
	}
}

func TestLoadRegistryMissingFile(t *testing.T) {
	if _, err := LoadRegistry(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("expected error for missing overlay file")
	}
}
