package metadata

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// catalogFile is the shape of a catalog overlay: entity entries under a
// top-level "entities" key, each the YAML rendering of EntityMetadata.
type catalogFile struct {
	Entities []*EntityMetadata `yaml:"entities"`
}

// LoadCatalogFile reads entity declarations from a YAML overlay file.
func LoadCatalogFile(path string) ([]*EntityMetadata, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog %s: %w", path, err)
	}
	var file catalogFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("parse catalog %s: %w", path, err)
	}
	for i, e := range file.Entities {
		if e == nil || e.EntityName == "" {
			return nil, fmt.Errorf("parse catalog %s: entry %d has no entity_name", path, i)
		}
	}
	return file.Entities, nil
}

// MergeCatalogs overlays entries onto base: an overlay entry with the same
// entityName replaces the base entry wholesale, anything else is appended.
// Replacement is deliberate (no per-field merging) so an overlay entry is
// always self-contained and passes validation on its own.
func MergeCatalogs(base, overlay []*EntityMetadata) []*EntityMetadata {
	replaced := make(map[string]*EntityMetadata, len(overlay))
	for _, e := range overlay {
		replaced[e.EntityName] = e
	}
	merged := make([]*EntityMetadata, 0, len(base)+len(overlay))
	for _, e := range base {
		if o, ok := replaced[e.EntityName]; ok {
			merged = append(merged, o)
			delete(replaced, e.EntityName)
			continue
		}
		merged = append(merged, e)
	}
	for _, e := range overlay {
		if _, stillNew := replaced[e.EntityName]; stillNew {
			merged = append(merged, e)
			delete(replaced, e.EntityName)
		}
	}
	return merged
}

// LoadRegistry builds a registry from the built-in catalog, merged with the
// overlay at path when path is non-empty. The result is unvalidated; callers
// run Check (serve) or Validate (the validate command) on it.
func LoadRegistry(path string) (*Registry, error) {
	entries := BuiltinCatalog()
	if path != "" {
		overlay, err := LoadCatalogFile(path)
		if err != nil {
			return nil, err
		}
		entries = MergeCatalogs(entries, overlay)
	}
	return New(entries), nil
}
