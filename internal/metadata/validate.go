package metadata

import (
	"fmt"
	"regexp"
)

// identPattern is the shape every entity, table, and column name must have:
// lowercase, underscore-separated, no camelCase.
var identPattern = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

var validCategories = map[Category]bool{
	CategoryHuman:    true,
	CategorySimple:   true,
	CategoryComputed: true,
	CategorySystem:   true,
}

// universalImmutables are the columns no entity may let a client overwrite;
// the update clause builder enforces them on its own, so re-declaring them
// per entity is flagged as drift.
var universalImmutables = map[string]bool{
	"id":         true,
	"created_at": true,
}

// Validate checks every registered entity against the catalog invariants and
// returns one message per violation. It never stops at the first problem: the
// caller gets the complete list, and an empty result means the catalog is
// valid. Check wraps it for fail-fast startup use.
func (r *Registry) Validate() []string {
	problems := make([]string, 0)
	for _, name := range r.duplicates {
		problems = append(problems, fmt.Sprintf("%s: duplicate entity name", name))
	}
	for _, name := range r.names {
		problems = append(problems, r.validateEntity(r.entities[name])...)
	}
	return problems
}

func (r *Registry) validateEntity(e *EntityMetadata) []string {
	var problems []string
	fail := func(format string, args ...any) {
		problems = append(problems, fmt.Sprintf("%s: %s", e.EntityName, fmt.Sprintf(format, args...)))
	}

	if !identPattern.MatchString(e.EntityName) {
		fail("entityName %q must be lowercase underscore-separated", e.EntityName)
	}
	if e.TableName == "" {
		fail("tableName is required")
	} else if !identPattern.MatchString(e.TableName) {
		fail("tableName %q must be lowercase underscore-separated", e.TableName)
	}
	if e.IdentityField == "" {
		fail("identityField is required")
	}
	if !validCategories[e.Category] {
		fail("category %q is not one of human, simple, computed, system", e.Category)
	}

	// The primary key is "id" everywhere except the shared-primary-key
	// pattern, where the key column must be declared as a foreign key to the
	// entity it mirrors.
	switch {
	case e.PrimaryKey == "":
		fail("primaryKey is required")
	case e.PrimaryKey != "id" && e.ForeignKeyOn(e.PrimaryKey) == nil:
		fail("primaryKey %q is not \"id\" and no foreign key covers it", e.PrimaryKey)
	}

	// The generated primary key and timestamp columns are the engine's to
	// fill, never the client's. A shared primary key (technician.user_id) is
	// the one key a client must supply, so only the literal "id" is banned.
	seen := make(map[string]bool, len(e.RequiredFields))
	for _, f := range e.RequiredFields {
		switch {
		case f == "id":
			fail("requiredFields must not contain the primary key %q", f)
		case f == "created_at" || f == "updated_at":
			fail("requiredFields must not contain timestamp column %q", f)
		case !identPattern.MatchString(f):
			fail("requiredFields entry %q must be lowercase underscore-separated", f)
		case seen[f]:
			fail("requiredFields lists %q twice", f)
		}
		seen[f] = true
	}
	if e.Category == CategoryComputed {
		if e.IdentityPrefix == "" {
			fail("computed entity needs an identityPrefix to generate %s", e.IdentityField)
		}
		if seen[e.IdentityField] {
			fail("generated identity field %q must not be required on create", e.IdentityField)
		}
	} else if e.IdentityPrefix != "" {
		fail("identityPrefix is only valid for computed entities")
	}

	if e.IsBusiness() && len(e.Policies) == 0 {
		fail("business entity (rlsResource %q) declares no access policies", e.RLSResource)
	}
	if !e.IsBusiness() && len(e.Policies) > 0 {
		fail("access policies require an rlsResource")
	}

	immutable := make(map[string]bool, len(e.ImmutableFields))
	for _, f := range e.ImmutableFields {
		if universalImmutables[f] {
			fail("immutableFields repeats universal immutable %q", f)
		}
		immutable[f] = true
	}
	if !immutable["updated_at"] {
		fail("immutableFields must include updated_at (the engine stamps it)")
	}

	for _, fk := range e.ForeignKeys {
		if fk.Field == "" {
			fail("foreign key with empty field")
			continue
		}
		if fk.RelatedEntity == "" {
			fail("foreign key %q has no relatedEntity", fk.Field)
			continue
		}
		if _, ok := r.entities[fk.RelatedEntity]; !ok {
			fail("foreign key %q references unregistered entity %q", fk.Field, fk.RelatedEntity)
		}
	}

	for _, rule := range e.Rules {
		if rule.Expr == "" {
			fail("validation rule on %q has an empty expression", rule.Field)
		}
		if rule.Message == "" {
			fail("validation rule on %q has no message", rule.Field)
		}
	}

	if flow := e.StatusFlow; flow != nil {
		if flow.Field == "" {
			fail("statusFlow needs a field")
		} else if !immutable[flow.Field] {
			fail("statusFlow field %q must be declared immutable (it changes only through transitions)", flow.Field)
		}
		if flow.Initial == "" {
			fail("statusFlow needs an initial state")
		}
		if len(flow.Transitions) == 0 {
			fail("statusFlow declares no transitions")
		}
		for i, t := range flow.Transitions {
			if len(t.From) == 0 || t.To == "" {
				fail("statusFlow transition %d is missing from/to states", i)
				continue
			}
			for _, from := range t.From {
				if from == "" {
					fail("statusFlow transition %d has an empty from state", i)
				}
			}
		}
	}

	return problems
}
