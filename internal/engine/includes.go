package engine

import (
	"context"
	"fmt"

	"fieldserve-backend/internal/metadata"
	"fieldserve-backend/internal/store"
)

// includeRelation is a resolved include: either a belongs-to (this entity
// declares a foreign key to the related one, the row gets a single object)
// or a has-many (the related entity points back here, the row gets a list).
type includeRelation struct {
	Name      string
	Related   *metadata.EntityMetadata
	FKField   string
	BelongsTo bool
}

// resolveInclude maps an include name (a registered entity name) onto the
// foreign-key edge connecting it to meta, or nil when no edge exists.
// Belongs-to wins when both directions would match.
func resolveInclude(reg *metadata.Registry, meta *metadata.EntityMetadata, name string) *includeRelation {
	related, err := reg.Get(name)
	if err != nil {
		return nil
	}
	for _, fk := range meta.ForeignKeys {
		if fk.RelatedEntity == name {
			return &includeRelation{Name: name, Related: related, FKField: fk.Field, BelongsTo: true}
		}
	}
	for _, fk := range related.ForeignKeys {
		if fk.RelatedEntity == meta.EntityName {
			return &includeRelation{Name: name, Related: related, FKField: fk.Field}
		}
	}
	return nil
}

// LoadIncludes fetches related rows for every include and attaches them to
// the parent rows, one batched query per include. The caller has already
// checked read permission on each included entity; field-access stripping
// for the related entity is applied here.
func LoadIncludes(ctx context.Context, q store.Querier, reg *metadata.Registry, user *metadata.UserContext, meta *metadata.EntityMetadata, rows []map[string]any, includes []string) error {
	if len(rows) == 0 || len(includes) == 0 {
		return nil
	}
	for _, name := range includes {
		rel := resolveInclude(reg, meta, name)
		if rel == nil {
			continue
		}
		var err error
		if rel.BelongsTo {
			err = loadBelongsTo(ctx, q, user, meta, rel, rows)
		} else {
			err = loadHasMany(ctx, q, user, meta, rel, rows)
		}
		if err != nil {
			return fmt.Errorf("load include %s: %w", name, err)
		}
	}
	return nil
}

func loadBelongsTo(ctx context.Context, q store.Querier, user *metadata.UserContext, meta *metadata.EntityMetadata, rel *includeRelation, rows []map[string]any) error {
	ids := collectValues(rows, rel.FKField)
	if len(ids) == 0 {
		for _, row := range rows {
			row[rel.Name] = nil
		}
		return nil
	}

	sql := fmt.Sprintf("SELECT * FROM %s WHERE %s::text = ANY($1)", rel.Related.TableName, rel.Related.PrimaryKey)
	relatedRows, err := store.QueryRows(ctx, q, sql, ids)
	if err != nil {
		return err
	}
	FilterReadable(user, rel.Related, relatedRows)

	byPK := make(map[string]map[string]any, len(relatedRows))
	for _, r := range relatedRows {
		byPK[fmt.Sprintf("%v", r[rel.Related.PrimaryKey])] = r
	}
	for _, row := range rows {
		v := row[rel.FKField]
		if v == nil {
			row[rel.Name] = nil
			continue
		}
		row[rel.Name] = byPK[fmt.Sprintf("%v", v)]
	}
	return nil
}

func loadHasMany(ctx context.Context, q store.Querier, user *metadata.UserContext, meta *metadata.EntityMetadata, rel *includeRelation, rows []map[string]any) error {
	parentIDs := collectValues(rows, meta.PrimaryKey)
	if len(parentIDs) == 0 {
		return nil
	}

	sql := fmt.Sprintf("SELECT * FROM %s WHERE %s::text = ANY($1)", rel.Related.TableName, rel.FKField)
	childRows, err := store.QueryRows(ctx, q, sql, parentIDs)
	if err != nil {
		return err
	}
	FilterReadable(user, rel.Related, childRows)

	grouped := make(map[string][]map[string]any)
	for _, child := range childRows {
		fk := fmt.Sprintf("%v", child[rel.FKField])
		grouped[fk] = append(grouped[fk], child)
	}
	for _, row := range rows {
		pk := fmt.Sprintf("%v", row[meta.PrimaryKey])
		children := grouped[pk]
		if children == nil {
			children = []map[string]any{}
		}
		row[rel.Name] = children
	}
	return nil
}

func collectValues(rows []map[string]any, field string) []string {
	seen := make(map[string]bool)
	var values []string
	for _, row := range rows {
		v := row[field]
		if v == nil {
			continue
		}
		s := fmt.Sprintf("%v", v)
		if !seen[s] {
			seen[s] = true
			values = append(values, s)
		}
	}
	return values
}
