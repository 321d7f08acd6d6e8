package metadata

import (
	"errors"
	"reflect"
	"strings"
	"testing"
)

func TestDefaultRegistryIsValid(t *testing.T) {
	if err := DefaultRegistry().Check(); err != nil {
		t.Fatalf("built-in catalog failed validation: %v", err)
	}
}

func TestRegistryCompleteness(t *testing.T) {
	reg := DefaultRegistry()

	names := reg.EntityNames()
	if len(names) != 12 {
		t.Fatalf("expected 12 entities, got %d: %v", len(names), names)
	}

	for _, name := range names {
		e, err := reg.Get(name)
		if err != nil {
			t.Fatalf("Get(%s): %v", name, err)
		}
		if e.TableName == "" {
			t.Errorf("%s: empty tableName", name)
		}
		if e.IdentityField == "" {
			t.Errorf("%s: empty identityField", name)
		}

		// technician extends user and shares its primary key; everything
		// else uses a surrogate id.
		if name == "technician" {
			if e.PrimaryKey != "user_id" {
				t.Errorf("technician primaryKey = %s, want user_id", e.PrimaryKey)
			}
		} else if e.PrimaryKey != "id" {
			t.Errorf("%s primaryKey = %s, want id", name, e.PrimaryKey)
		}

		for _, f := range e.RequiredFields {
			if f == "id" || f == "created_at" || f == "updated_at" {
				t.Errorf("%s: requiredFields contains server-stamped column %s", name, f)
			}
		}
	}
}

func TestRegistryUnknownEntity(t *testing.T) {
	reg := DefaultRegistry()

	_, err := reg.Get("spaceship")
	if err == nil {
		t.Fatal("expected error for unknown entity")
	}
	var unknown *UnknownEntityError
	if !errors.As(err, &unknown) {
		t.Fatalf("expected *UnknownEntityError, got %T", err)
	}
	if unknown.Name != "spaceship" {
		t.Errorf("Name = %s", unknown.Name)
	}
	if !strings.Contains(err.Error(), "spaceship") {
		t.Errorf("error message %q does not name the entity", err.Error())
	}
}

func TestBusinessSystemPartition(t *testing.T) {
	reg := DefaultRegistry()

	business := reg.BusinessEntityNames()
	system := reg.SystemEntityNames()
	if len(business)+len(system) != len(reg.EntityNames()) {
		t.Errorf("partition mismatch: %d business + %d system != %d total",
			len(business), len(system), len(reg.EntityNames()))
	}

	wantSystem := []string{"attachment", "audit_log"}
	if !reflect.DeepEqual(system, wantSystem) {
		t.Errorf("system entities = %v, want %v", system, wantSystem)
	}
	for _, name := range business {
		if !reg.IsBusinessEntity(name) {
			t.Errorf("IsBusinessEntity(%s) = false", name)
		}
	}
	if reg.IsBusinessEntity("audit_log") {
		t.Error("audit_log should not be a business entity")
	}
	if reg.IsBusinessEntity("no_such_thing") {
		t.Error("unknown entity should not be a business entity")
	}
}

func TestEntitiesByCategory(t *testing.T) {
	reg := DefaultRegistry()

	groups := reg.EntitiesByCategory()
	total := 0
	for _, names := range groups {
		total += len(names)
	}
	if total != len(reg.EntityNames()) {
		t.Errorf("grouping covers %d entities, want %d", total, len(reg.EntityNames()))
	}

	if !reflect.DeepEqual(groups[CategoryHuman], []string{"customer", "user"}) {
		t.Errorf("human entities = %v", groups[CategoryHuman])
	}
	if !reflect.DeepEqual(groups[CategorySystem], []string{"attachment", "audit_log"}) {
		t.Errorf("system entities = %v", groups[CategorySystem])
	}
	wantComputed := []string{"contract", "invoice", "payment", "technician", "work_order"}
	if !reflect.DeepEqual(groups[CategoryComputed], wantComputed) {
		t.Errorf("computed entities = %v, want %v", groups[CategoryComputed], wantComputed)
	}
}

func TestEntitiesWithFeature(t *testing.T) {
	reg := DefaultRegistry()

	withFlow := reg.EntitiesWithFeature(FeatureStatusFlow)
	if !reflect.DeepEqual(withFlow, []string{"invoice", "work_order"}) {
		t.Errorf("status flow entities = %v", withFlow)
	}

	withAccess := reg.EntitiesWithFeature(FeatureFieldAccess)
	want := []string{"inventory_item", "technician", "user", "work_order"}
	if !reflect.DeepEqual(withAccess, want) {
		t.Errorf("field access entities = %v, want %v", withAccess, want)
	}

	if got := reg.EntitiesWithFeature(Feature("bogus")); len(got) != 0 {
		t.Errorf("unknown feature matched %v", got)
	}
}

func TestRegistryDuplicateNames(t *testing.T) {
	reg := New([]*EntityMetadata{
		{EntityName: "widget", TableName: "widgets", PrimaryKey: "id", IdentityField: "name", Category: CategorySystem, ImmutableFields: []string{"updated_at"}},
		{EntityName: "widget", TableName: "widgets_v2", PrimaryKey: "id", IdentityField: "name", Category: CategorySystem, ImmutableFields: []string{"updated_at"}},
	})

	// Last entry wins for lookups.
	e, err := reg.Get("widget")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if e.TableName != "widgets_v2" {
		t.Errorf("tableName = %s, want widgets_v2", e.TableName)
	}

	// EntityNames stays duplicate-free.
	if names := reg.EntityNames(); len(names) != 1 {
		t.Errorf("names = %v, want one entry", names)
	}

	// But Validate reports the collision.
	problems := reg.Validate()
	found := false
	for _, p := range problems {
		if strings.Contains(p, "duplicate") {
			found = true
		}
	}
	if !found {
		t.Errorf("expected a duplicate-name problem, got %v", problems)
	}
}
