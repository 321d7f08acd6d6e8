package engine

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"

	"fieldserve-backend/internal/metadata"
	"fieldserve-backend/internal/store"
)

// BuildInsertClause renders a payload into the column, placeholder, and
// value lists of an INSERT. It shares the update builder's per-field
// treatment: trim before serialize, JSON text with a ::jsonb cast for jsonb
// columns (except nil), lexical column order, contiguous 1-based parameters.
func BuildInsertClause(data map[string]any, opts UpdateOptions) (columns, placeholders []string, values []any, err error) {
	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	jsonb := toSet(opts.JSONBFields)
	trim := toSet(opts.TrimFields)

	for _, k := range keys {
		v := data[k]
		if trim[k] {
			if s, ok := v.(string); ok {
				v = strings.TrimSpace(s)
			}
		}
		idx := len(values) + 1
		columns = append(columns, k)
		if jsonb[k] && v != nil {
			encoded, merr := json.Marshal(v)
			if merr != nil {
				return nil, nil, nil, InvalidInputError(fmt.Sprintf("field %s is not JSON-serializable", k))
			}
			placeholders = append(placeholders, fmt.Sprintf("$%d::jsonb", idx))
			values = append(values, string(encoded))
			continue
		}
		placeholders = append(placeholders, fmt.Sprintf("$%d", idx))
		values = append(values, v)
	}
	return columns, placeholders, values, nil
}

// GenerateIdentity produces a display identity like WO-9F2C41D8: the
// entity's prefix plus eight uppercase hex characters of a fresh UUID.
func GenerateIdentity(prefix string) string {
	u := uuid.New()
	return prefix + "-" + strings.ToUpper(hex.EncodeToString(u[:4]))
}

// CheckRequiredFields reports every required field that is missing or nil in
// the payload, as one batch.
func CheckRequiredFields(meta *metadata.EntityMetadata, data map[string]any) []ErrorDetail {
	var details []ErrorDetail
	for _, f := range meta.RequiredFields {
		if v, ok := data[f]; !ok || v == nil {
			details = append(details, ErrorDetail{
				Field:   f,
				Rule:    "required",
				Message: fmt.Sprintf("%s is required", f),
			})
		}
	}
	return details
}

// fetchRecord loads one row by primary key, narrowed by any row-level
// security filters. ErrNotFound covers both a missing row and a row the
// filters hide; callers must not distinguish the two.
func fetchRecord(ctx context.Context, q store.Querier, meta *metadata.EntityMetadata, id string, filters []RowFilter) (map[string]any, error) {
	pb := &paramBuilder{}
	sql := fmt.Sprintf("SELECT * FROM %s WHERE %s = %s", meta.TableName, meta.PrimaryKey, pb.Add(id))
	for _, rf := range filters {
		sql += " AND " + buildRowFilter(rf, pb)
	}
	return store.QueryRow(ctx, q, sql, pb.params...)
}
