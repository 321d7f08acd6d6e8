package engine

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"fieldserve-backend/internal/metadata"
)

// validIdent guards every column name interpolated into SQL text. Filter and
// sort fields come straight from the query string, so anything that is not a
// plain lowercase identifier is rejected before it can reach a statement.
var validIdent = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

type QueryPlan struct {
	Meta       *metadata.EntityMetadata
	Filters    []WhereClause
	RowFilters []RowFilter
	Search     string
	Sorts      []OrderClause
	Page       int
	PerPage    int
	Includes   []string
}

type WhereClause struct {
	Field    string
	Operator string
	Value    any
}

// RowFilter is a row-level security condition taken from an access policy.
// Template is a SQL condition over the entity's own columns; the only
// substitution is $user.id, replaced with a bound parameter at build time.
type RowFilter struct {
	Template string
	UserID   string
}

type QueryResult struct {
	SQL    string
	Params []any
}

type paramBuilder struct {
	params []any
	n      int
}

func (p *paramBuilder) Add(v any) string {
	p.n++
	p.params = append(p.params, v)
	return fmt.Sprintf("$%d", p.n)
}

// reservedQueryKeys are list parameters with meanings of their own; a bare
// query key outside this set is shorthand for an equality filter.
var reservedQueryKeys = map[string]struct{}{
	"q":        {},
	"sort":     {},
	"page":     {},
	"per_page": {},
	"include":  {},
}

// ParseQueryParams parses Fiber query parameters into a QueryPlan.
// Filters accept filter[field]=v, filter[field.op]=v, and bare field=v
// spellings; sort takes a comma list with a leading - for descending.
func ParseQueryParams(c *fiber.Ctx, meta *metadata.EntityMetadata, reg *metadata.Registry) (*QueryPlan, error) {
	plan := &QueryPlan{
		Meta:    meta,
		Page:    1,
		PerPage: 25,
	}

	for key, val := range c.Queries() {
		if strings.HasPrefix(key, "filter[") && strings.HasSuffix(key, "]") {
			inner := key[7 : len(key)-1]
			field, op := parseFilterKey(inner)

			if !validIdent.MatchString(field) {
				return nil, UnknownFieldError(fmt.Sprintf("Invalid filter field: %s", field))
			}
			if !knownOperator(op) {
				return nil, InvalidInputError(fmt.Sprintf("Unknown filter operator: %s", op))
			}

			plan.Filters = append(plan.Filters, WhereClause{
				Field:    field,
				Operator: op,
				Value:    coerceValue(val, op),
			})
			continue
		}

		if _, reserved := reservedQueryKeys[key]; reserved {
			continue
		}
		if !validIdent.MatchString(key) {
			continue
		}
		plan.Filters = append(plan.Filters, WhereClause{
			Field:    key,
			Operator: "eq",
			Value:    coerceSingleValue(val),
		})
	}

	if q := strings.TrimSpace(c.Query("q")); q != "" {
		plan.Search = q
	}

	if sortParam := c.Query("sort"); sortParam != "" {
		for _, part := range strings.Split(sortParam, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			dir := "ASC"
			field := part
			if strings.HasPrefix(part, "-") {
				dir = "DESC"
				field = part[1:]
			}
			if !validIdent.MatchString(field) {
				return nil, UnknownFieldError(fmt.Sprintf("Invalid sort field: %s", field))
			}
			plan.Sorts = append(plan.Sorts, OrderClause{Field: field, Dir: dir})
		}
	}

	if p := c.Query("page"); p != "" {
		if v, err := strconv.Atoi(p); err == nil && v > 0 {
			plan.Page = v
		}
	}
	if pp := c.Query("per_page"); pp != "" {
		if v, err := strconv.Atoi(pp); err == nil && v > 0 {
			plan.PerPage = v
			if plan.PerPage > 100 {
				plan.PerPage = 100
			}
		}
	}

	if inc := c.Query("include"); inc != "" {
		for _, name := range strings.Split(inc, ",") {
			name = strings.TrimSpace(name)
			if name == "" {
				continue
			}
			if resolveInclude(reg, meta, name) == nil {
				return nil, UnknownFieldError(fmt.Sprintf("Unknown include: %s", name))
			}
			plan.Includes = append(plan.Includes, name)
		}
	}

	return plan, nil
}

type OrderClause struct {
	Field string
	Dir   string // ASC or DESC
}

// BuildSelectSQL builds a parameterized SELECT statement from the query plan.
func BuildSelectSQL(plan *QueryPlan) QueryResult {
	pb := &paramBuilder{}

	sql := fmt.Sprintf("SELECT * FROM %s", plan.Meta.TableName)
	if where := buildWhere(plan, pb); where != "" {
		sql += " WHERE " + where
	}

	if len(plan.Sorts) > 0 {
		var orderParts []string
		for _, s := range plan.Sorts {
			orderParts = append(orderParts, fmt.Sprintf("%s %s", s.Field, s.Dir))
		}
		sql += " ORDER BY " + strings.Join(orderParts, ", ")
	} else {
		sql += fmt.Sprintf(" ORDER BY %s", plan.Meta.PrimaryKey)
	}

	limit := pb.Add(plan.PerPage)
	offset := pb.Add((plan.Page - 1) * plan.PerPage)
	sql += fmt.Sprintf(" LIMIT %s OFFSET %s", limit, offset)

	return QueryResult{SQL: sql, Params: pb.params}
}

// BuildCountSQL builds a COUNT query with the same filters as the select.
func BuildCountSQL(plan *QueryPlan) QueryResult {
	pb := &paramBuilder{}
	sql := fmt.Sprintf("SELECT COUNT(*) AS count FROM %s", plan.Meta.TableName)
	if where := buildWhere(plan, pb); where != "" {
		sql += " WHERE " + where
	}
	return QueryResult{SQL: sql, Params: pb.params}
}

func buildWhere(plan *QueryPlan, pb *paramBuilder) string {
	var where []string
	for _, f := range plan.Filters {
		where = append(where, buildWhereClause(f, pb))
	}
	if plan.Search != "" && len(plan.Meta.SearchableFields) > 0 {
		where = append(where, buildSearchClause(plan.Meta.SearchableFields, plan.Search, pb))
	}
	for _, rf := range plan.RowFilters {
		where = append(where, buildRowFilter(rf, pb))
	}
	return strings.Join(where, " AND ")
}

func buildWhereClause(f WhereClause, pb *paramBuilder) string {
	switch f.Operator {
	case "eq", "":
		return fmt.Sprintf("%s = %s", f.Field, pb.Add(f.Value))
	case "neq":
		return fmt.Sprintf("%s != %s", f.Field, pb.Add(f.Value))
	case "gt":
		return fmt.Sprintf("%s > %s", f.Field, pb.Add(f.Value))
	case "gte":
		return fmt.Sprintf("%s >= %s", f.Field, pb.Add(f.Value))
	case "lt":
		return fmt.Sprintf("%s < %s", f.Field, pb.Add(f.Value))
	case "lte":
		return fmt.Sprintf("%s <= %s", f.Field, pb.Add(f.Value))
	case "in":
		return fmt.Sprintf("%s = ANY(%s)", f.Field, pb.Add(f.Value))
	case "not_in":
		return fmt.Sprintf("%s != ALL(%s)", f.Field, pb.Add(f.Value))
	case "like":
		return fmt.Sprintf("%s ILIKE %s", f.Field, pb.Add(f.Value))
	case "null":
		if b, _ := f.Value.(bool); !b {
			return fmt.Sprintf("%s IS NOT NULL", f.Field)
		}
		return fmt.Sprintf("%s IS NULL", f.Field)
	default:
		return fmt.Sprintf("%s = %s", f.Field, pb.Add(f.Value))
	}
}

// buildSearchClause matches the free-text term against every searchable
// field, case-insensitively. One parameter is shared across the ORs.
func buildSearchClause(fields []string, term string, pb *paramBuilder) string {
	placeholder := pb.Add("%" + term + "%")
	parts := make([]string, len(fields))
	for i, f := range fields {
		parts[i] = fmt.Sprintf("%s ILIKE %s", f, placeholder)
	}
	if len(parts) == 1 {
		return parts[0]
	}
	return "(" + strings.Join(parts, " OR ") + ")"
}

func buildRowFilter(rf RowFilter, pb *paramBuilder) string {
	placeholder := pb.Add(rf.UserID)
	return "(" + strings.ReplaceAll(rf.Template, "$user.id", placeholder) + ")"
}

func knownOperator(op string) bool {
	switch op {
	case "eq", "neq", "gt", "gte", "lt", "lte", "in", "not_in", "like", "null":
		return true
	}
	return false
}

// parseFilterKey splits "amount.gte" into ("amount", "gte"), defaulting the
// operator to eq.
func parseFilterKey(key string) (string, string) {
	parts := strings.SplitN(key, ".", 2)
	if len(parts) == 2 {
		return parts[0], parts[1]
	}
	return key, "eq"
}

// coerceValue converts query string values to Go types by shape: booleans
// and numbers are recognized, everything else stays a string. The metadata
// catalog carries no per-column types, so shape is all there is to go on;
// a filter on a numeric-looking text column needs an explicit like operator.
func coerceValue(val string, op string) any {
	if op == "in" || op == "not_in" {
		parts := strings.Split(val, ",")
		ints := make([]int64, 0, len(parts))
		strs := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			strs = append(strs, p)
			if n, err := strconv.ParseInt(p, 10, 64); err == nil {
				ints = append(ints, n)
			}
		}
		// a uniform integer list binds as int[], anything mixed as text[]
		if len(ints) == len(parts) {
			return ints
		}
		return strs
	}
	if op == "null" {
		b, err := strconv.ParseBool(val)
		return err == nil && b || val == ""
	}
	if op == "like" {
		return "%" + val + "%"
	}
	return coerceSingleValue(val)
}

func coerceSingleValue(val string) any {
	if val == "true" || val == "false" {
		return val == "true"
	}
	if n, err := strconv.ParseInt(val, 10, 64); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(val, 64); err == nil {
		return f
	}
	return val
}
