package engine

import (
	"fmt"
	"sort"
	"strings"

	"fieldserve-backend/internal/metadata"
)

// CheckPermission verifies that the user may perform the action on the
// entity. Admin bypasses the policy scan; otherwise any policy granting one
// of the user's roles the action is enough. System entities carry no
// policies and are reachable only through their dedicated handlers, so the
// generic engine refuses them for everyone but admin.
func CheckPermission(user *metadata.UserContext, meta *metadata.EntityMetadata, action string) error {
	if user == nil {
		return UnauthorizedError("")
	}
	if user.IsAdmin() {
		return nil
	}
	for _, p := range meta.Policies {
		if hasRoleIntersection(user.Roles, p.Roles) && containsString(p.Actions, action) {
			return nil
		}
	}
	return ForbiddenError(fmt.Sprintf("No permission for %s on %s", action, meta.EntityName))
}

// ReadFilters returns the row-level security filters to AND into queries for
// the user. Admin sees every row. When several policies match, a policy
// without a row filter wins (the user's broadest grant applies); otherwise
// every matched filter is returned and rows must satisfy all of them.
func ReadFilters(user *metadata.UserContext, meta *metadata.EntityMetadata, action string) []RowFilter {
	if user == nil || user.IsAdmin() {
		return nil
	}
	var filters []RowFilter
	for _, p := range meta.Policies {
		if !hasRoleIntersection(user.Roles, p.Roles) || !containsString(p.Actions, action) {
			continue
		}
		if p.RowFilter == "" {
			return nil
		}
		filters = append(filters, RowFilter{Template: p.RowFilter, UserID: user.ID})
	}
	return filters
}

// CheckWritableFields rejects a payload naming columns the user's roles may
// not write. Violations are collected as a batch; admin gets no bypass here,
// a field-access entry with an empty role list locks the column for everyone.
func CheckWritableFields(user *metadata.UserContext, meta *metadata.EntityMetadata, data map[string]any) error {
	if len(meta.FieldAccess) == 0 {
		return nil
	}
	var denied []string
	for field := range data {
		access, ok := meta.FieldAccess[field]
		if !ok || access.Write == nil {
			continue
		}
		if !roleAllowed(user, access.Write) {
			denied = append(denied, field)
		}
	}
	if len(denied) == 0 {
		return nil
	}
	sort.Strings(denied)
	details := make([]ErrorDetail, len(denied))
	for i, f := range denied {
		details[i] = ErrorDetail{Field: f, Rule: "field_access", Message: fmt.Sprintf("%s is not writable", f)}
	}
	return &AppError{
		Code:    "FORBIDDEN",
		Status:  403,
		Message: fmt.Sprintf("Fields not writable: %s", strings.Join(denied, ", ")),
		Details: details,
	}
}

// FilterReadable strips columns the user's roles may not read from each row.
// Stripping is silent: a response never reveals which columns exist behind a
// field-access rule.
func FilterReadable(user *metadata.UserContext, meta *metadata.EntityMetadata, rows []map[string]any) {
	if len(meta.FieldAccess) == 0 {
		return
	}
	for field, access := range meta.FieldAccess {
		if access.Read == nil || roleAllowed(user, access.Read) {
			continue
		}
		for _, row := range rows {
			delete(row, field)
		}
	}
}

// roleAllowed is the field-access role check: the list is explicit, an empty
// list allows no one. Contrast with UserContext.HasAnyRole, where an empty
// list means "any authenticated user".
func roleAllowed(user *metadata.UserContext, roles []string) bool {
	if user == nil {
		return false
	}
	for _, r := range roles {
		if user.HasRole(r) {
			return true
		}
	}
	return false
}

func hasRoleIntersection(userRoles, policyRoles []string) bool {
	for _, ur := range userRoles {
		for _, pr := range policyRoles {
			if strings.EqualFold(ur, pr) {
				return true
			}
		}
	}
	return false
}

func containsString(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}
