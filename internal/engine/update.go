package engine

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// universalImmutables are columns no entity may ever let a client overwrite.
// Entity-specific immutables are passed in per call; these two apply always.
var universalImmutables = []string{"id", "created_at"}

// UpdateOptions carries the per-entity write configuration the builder needs.
// It is supplied by the caller (normally from entity metadata) so the builder
// stays usable without any registry in sight.
type UpdateOptions struct {
	// JSONBFields are columns whose values are serialized to JSON text and
	// bound with an explicit ::jsonb cast.
	JSONBFields []string
	// TrimFields are string columns whose values lose leading and trailing
	// whitespace before binding. Non-string values pass through untouched.
	TrimFields []string
}

// UpdateClause is the result of BuildUpdateClause: a parameterized SET clause
// body plus its bound values. Updates[i] always binds Values[i] as $i+1, so
// callers appending further parameters (a WHERE id, typically) continue
// numbering from len(Values)+1.
type UpdateClause struct {
	HasUpdates bool
	Updates    []string
	Values     []any
}

// SetClause joins the assignment fragments into the SQL SET clause body.
func (u *UpdateClause) SetClause() string {
	return strings.Join(u.Updates, ", ")
}

// BuildUpdateClause turns a partial-update payload into a parameterized SET
// clause. A key absent from data means "leave the column alone"; a present
// key with a nil value means "set the column to NULL" and is bound like any
// other value.
//
// Keys naming an immutable column (universal id/created_at plus the caller's
// immutableFields) are collected and rejected as one batch: the returned
// *AppError names every violated field, never just the first. No clause is
// produced when any violation is present.
//
// An input that leaves no candidates after filtering yields HasUpdates=false
// with empty Updates/Values; that is not an error. Callers check HasUpdates
// before running a write so no UPDATE ever executes with an empty SET list.
func BuildUpdateClause(data map[string]any, immutableFields []string, opts UpdateOptions) (*UpdateClause, error) {
	immutable := make(map[string]bool, len(universalImmutables)+len(immutableFields))
	for _, f := range universalImmutables {
		immutable[f] = true
	}
	for _, f := range immutableFields {
		immutable[f] = true
	}

	// Assignments are emitted in lexical field order: Go maps carry no
	// insertion order, and deterministic output keeps SQL logs and tests
	// stable across runs.
	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var violations []string
	var candidates []string
	for _, k := range keys {
		if immutable[k] {
			violations = append(violations, k)
			continue
		}
		candidates = append(candidates, k)
	}
	if len(violations) > 0 {
		return nil, ImmutableFieldError(violations)
	}

	jsonb := toSet(opts.JSONBFields)
	trim := toSet(opts.TrimFields)

	clause := &UpdateClause{
		Updates: make([]string, 0, len(candidates)),
		Values:  make([]any, 0, len(candidates)),
	}
	for _, k := range candidates {
		v := data[k]
		if trim[k] {
			if s, ok := v.(string); ok {
				v = strings.TrimSpace(s)
			}
		}
		idx := len(clause.Values) + 1
		switch {
		case jsonb[k] && v != nil:
			encoded, err := json.Marshal(v)
			if err != nil {
				return nil, InvalidInputError(fmt.Sprintf("field %s is not JSON-serializable", k))
			}
			clause.Updates = append(clause.Updates, fmt.Sprintf("%s = $%d::jsonb", k, idx))
			clause.Values = append(clause.Values, string(encoded))
		default:
			// A nil value in a jsonb column binds as an untyped NULL; the
			// cast is only needed when there is JSON text to convert.
			clause.Updates = append(clause.Updates, fmt.Sprintf("%s = $%d", k, idx))
			clause.Values = append(clause.Values, v)
		}
	}
	clause.HasUpdates = len(clause.Updates) > 0
	return clause, nil
}

func toSet(fields []string) map[string]bool {
	if len(fields) == 0 {
		return nil
	}
	set := make(map[string]bool, len(fields))
	for _, f := range fields {
		set[f] = true
	}
	return set
}
