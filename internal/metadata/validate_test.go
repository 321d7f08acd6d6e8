package metadata

import (
	"strings"
	"testing"
)

// validEntity returns the smallest entry that passes validation; tests break
// one invariant at a time.
func validEntity() *EntityMetadata {
	return &EntityMetadata{
		EntityName:      "gadget",
		TableName:       "gadgets",
		PrimaryKey:      "id",
		RequiredFields:  []string{"name"},
		IdentityField:   "name",
		Category:        CategorySimple,
		RLSResource:     "gadgets",
		ImmutableFields: []string{"updated_at"},
		Policies: []AccessPolicy{
			{Roles: []string{"manager"}, Actions: []string{"read"}},
		},
	}
}

func problemsFor(t *testing.T, e *EntityMetadata) []string {
	t.Helper()
	return New([]*EntityMetadata{e}).Validate()
}

func expectProblem(t *testing.T, e *EntityMetadata, fragment string) {
	t.Helper()
	problems := problemsFor(t, e)
	for _, p := range problems {
		if strings.Contains(p, fragment) {
			return
		}
	}
	t.Errorf("expected a problem containing %q, got %v", fragment, problems)
}

func TestValidateCleanEntity(t *testing.T) {
	if problems := problemsFor(t, validEntity()); len(problems) != 0 {
		t.Fatalf("expected no problems, got %v", problems)
	}
}

func TestValidateNamingConventions(t *testing.T) {
	e := validEntity()
	e.EntityName = "CamelGadget"
	expectProblem(t, e, "lowercase")

	e = validEntity()
	e.TableName = ""
	expectProblem(t, e, "tableName is required")
}

func TestValidatePrimaryKey(t *testing.T) {
	e := validEntity()
	e.PrimaryKey = ""
	expectProblem(t, e, "primaryKey is required")

	// A non-id primary key is only legal when a foreign key covers it.
	e = validEntity()
	e.PrimaryKey = "owner_id"
	expectProblem(t, e, "no foreign key covers it")

	e = validEntity()
	e.PrimaryKey = "owner_id"
	e.RequiredFields = []string{"owner_id"}
	e.ForeignKeys = []ForeignKey{{Field: "owner_id", RelatedEntity: "gadget"}}
	if problems := problemsFor(t, e); len(problems) != 0 {
		t.Errorf("shared primary key with covering FK should be valid, got %v", problems)
	}
}

func TestValidateRequiredFields(t *testing.T) {
	e := validEntity()
	e.RequiredFields = []string{"name", "id"}
	expectProblem(t, e, "must not contain the primary key")

	e = validEntity()
	e.RequiredFields = []string{"name", "updated_at"}
	expectProblem(t, e, "timestamp column")

	e = validEntity()
	e.RequiredFields = []string{"name", "name"}
	expectProblem(t, e, "twice")
}

func TestValidateComputedIdentity(t *testing.T) {
	e := validEntity()
	e.Category = CategoryComputed
	expectProblem(t, e, "identityPrefix")

	// Prefix on a non-computed entity is drift the other way.
	e = validEntity()
	e.IdentityPrefix = "GD"
	expectProblem(t, e, "only valid for computed")

	// A generated identity cannot also be required input.
	e = validEntity()
	e.Category = CategoryComputed
	e.IdentityPrefix = "GD"
	e.RequiredFields = []string{"name"}
	expectProblem(t, e, "must not be required on create")
}

func TestValidatePolicyPairing(t *testing.T) {
	e := validEntity()
	e.Policies = nil
	expectProblem(t, e, "no access policies")

	e = validEntity()
	e.RLSResource = ""
	expectProblem(t, e, "require an rlsResource")
}

func TestValidateImmutables(t *testing.T) {
	e := validEntity()
	e.ImmutableFields = []string{"updated_at", "created_at"}
	expectProblem(t, e, "universal immutable")

	e = validEntity()
	e.ImmutableFields = nil
	expectProblem(t, e, "must include updated_at")
}

func TestValidateForeignKeys(t *testing.T) {
	e := validEntity()
	e.ForeignKeys = []ForeignKey{{Field: "owner_id", RelatedEntity: "nowhere"}}
	expectProblem(t, e, "unregistered entity")

	e = validEntity()
	e.ForeignKeys = []ForeignKey{{Field: "owner_id"}}
	expectProblem(t, e, "no relatedEntity")
}

func TestValidateRules(t *testing.T) {
	e := validEntity()
	e.Rules = []ValidationRule{{Field: "name", Message: "bad"}}
	expectProblem(t, e, "empty expression")

	e = validEntity()
	e.Rules = []ValidationRule{{Field: "name", Expr: "true"}}
	expectProblem(t, e, "no message")
}

func TestValidateStatusFlow(t *testing.T) {
	flow := func() *StatusFlow {
		return &StatusFlow{
			Field:   "status",
			Initial: "open",
			Transitions: []Transition{
				{From: TransitionFrom{"open"}, To: "done"},
			},
		}
	}

	// The flow field must be immutable so only transitions change it.
	e := validEntity()
	e.StatusFlow = flow()
	expectProblem(t, e, "must be declared immutable")

	e = validEntity()
	e.ImmutableFields = []string{"status", "updated_at"}
	e.StatusFlow = flow()
	if problems := problemsFor(t, e); len(problems) != 0 {
		t.Errorf("expected clean flow, got %v", problems)
	}

	e = validEntity()
	e.ImmutableFields = []string{"status", "updated_at"}
	e.StatusFlow = flow()
	e.StatusFlow.Initial = ""
	expectProblem(t, e, "initial state")

	e = validEntity()
	e.ImmutableFields = []string{"status", "updated_at"}
	e.StatusFlow = flow()
	e.StatusFlow.Transitions = nil
	expectProblem(t, e, "no transitions")

	e = validEntity()
	e.ImmutableFields = []string{"status", "updated_at"}
	e.StatusFlow = flow()
	e.StatusFlow.Transitions = []Transition{{To: "done"}}
	expectProblem(t, e, "missing from/to")
}
