package engine

import (
	"fmt"
	"strings"

	"fieldserve-backend/internal/metadata"
)

// planTransition validates a requested status change against the entity's
// flow: the edge must exist, the user must hold one of the edge's roles, and
// the guard must pass against the would-be row state.
func planTransition(meta *metadata.EntityMetadata, user *metadata.UserContext, current map[string]any, target string) error {
	flow := meta.StatusFlow
	if flow == nil {
		return InvalidInputError(fmt.Sprintf("%s has no status flow", meta.EntityName))
	}

	from, _ := current[flow.Field].(string)
	t := flow.Find(from, target)
	if t == nil {
		targets := flow.TargetsFrom(from)
		if len(targets) == 0 {
			return InvalidInputError(fmt.Sprintf("No transition from %s; %s is final", from, from))
		}
		return InvalidInputError(fmt.Sprintf(
			"No transition from %s to %s; allowed: %s", from, target, strings.Join(targets, ", ")))
	}

	if len(t.Roles) > 0 && !user.IsAdmin() && !user.HasAnyRole(t.Roles) {
		return ForbiddenError(fmt.Sprintf("Role not allowed to move %s to %s", meta.EntityName, target))
	}

	next := make(map[string]any, len(current))
	for k, v := range current {
		next[k] = v
	}
	next[flow.Field] = target

	ok, err := EvaluateGuard(t, next, current)
	if err != nil {
		return InvalidInputError(fmt.Sprintf("Transition guard failed: %v", err))
	}
	if !ok {
		return InvalidInputError(fmt.Sprintf("Transition to %s is not allowed for this record", target))
	}

	return nil
}

// transitionImmutables is the immutable set for the internal status write:
// the entity's own immutables minus the flow field, which only this path may
// touch.
func transitionImmutables(meta *metadata.EntityMetadata) []string {
	flow := meta.StatusFlow
	out := make([]string, 0, len(meta.ImmutableFields))
	for _, f := range meta.ImmutableFields {
		if flow != nil && f == flow.Field {
			continue
		}
		out = append(out, f)
	}
	return out
}
