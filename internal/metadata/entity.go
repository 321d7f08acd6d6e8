package metadata

// Category classifies how an entity's identity is shaped.
type Category string

const (
	CategoryHuman    Category = "human"    // person-like, has first/last name
	CategorySimple   Category = "simple"   // single name field
	CategoryComputed Category = "computed" // identity generated from other fields
	CategorySystem   Category = "system"   // infrastructure table, no business policy
)

// Feature names an optional metadata attribute that EntitiesWithFeature can
// query for. The spelling matches the metadata attribute it inspects.
type Feature string

const (
	FeatureForeignKeys      Feature = "foreignKeys"
	FeatureSearchableFields Feature = "searchableFields"
	FeatureIdentityUnique   Feature = "identityFieldUnique"
	FeatureJSONBFields      Feature = "jsonbFields"
	FeatureTrimFields       Feature = "trimFields"
	FeatureFieldAccess      Feature = "fieldAccess"
	FeatureStatusFlow       Feature = "statusFlow"
	FeatureRules            Feature = "rules"
	FeaturePolicies         Feature = "policies"
)

// ForeignKey declares that a column references another entity's primary key.
type ForeignKey struct {
	Field         string `json:"field" yaml:"field"`
	RelatedEntity string `json:"related_entity" yaml:"related_entity"`
}

// FieldAccess restricts a single column to the listed roles. An absent entry
// means the column is unrestricted; a present entry with an empty list means
// no role at all, admin included. Read applies to responses, Write to
// create/update payloads.
type FieldAccess struct {
	Read  []string `json:"read" yaml:"read"`
	Write []string `json:"write" yaml:"write"`
}

// AccessPolicy grants roles a set of actions on the entity. RowFilter
// optionally narrows reads to matching rows; it is a SQL condition over the
// entity's own columns where the only substitution is $user.id.
type AccessPolicy struct {
	Roles     []string `json:"roles" yaml:"roles"`
	Actions   []string `json:"actions" yaml:"actions"`
	RowFilter string   `json:"row_filter,omitempty" yaml:"row_filter,omitempty"`
}

// ValidationRule is a boolean expression over {record, old, action}.
// A false result is reported as a violation on Field with Message.
type ValidationRule struct {
	Field   string `json:"field,omitempty" yaml:"field,omitempty"`
	Expr    string `json:"expr" yaml:"expr"`
	Message string `json:"message" yaml:"message"`

	// Compiled holds the compiled expression program (not serialized).
	Compiled any `json:"-" yaml:"-"`
}

// EntityMetadata describes one entity: where it is stored, how it is
// identified, and the policy the generic engine enforces for it. Entries are
// constructed once at startup and never mutated afterwards.
type EntityMetadata struct {
	EntityName          string   `json:"entity_name" yaml:"entity_name"`
	TableName           string   `json:"table_name" yaml:"table_name"`
	PrimaryKey          string   `json:"primary_key" yaml:"primary_key"`
	RequiredFields      []string `json:"required_fields" yaml:"required_fields"`
	IdentityField       string   `json:"identity_field" yaml:"identity_field"`
	IdentityFieldUnique bool     `json:"identity_field_unique,omitempty" yaml:"identity_field_unique,omitempty"`
	IdentityPrefix      string   `json:"identity_prefix,omitempty" yaml:"identity_prefix,omitempty"`
	Category            Category `json:"category" yaml:"category"`
	RLSResource         string   `json:"rls_resource,omitempty" yaml:"rls_resource,omitempty"`

	ImmutableFields  []string               `json:"immutable_fields,omitempty" yaml:"immutable_fields,omitempty"`
	JSONBFields      []string               `json:"jsonb_fields,omitempty" yaml:"jsonb_fields,omitempty"`
	TrimFields       []string               `json:"trim_fields,omitempty" yaml:"trim_fields,omitempty"`
	SearchableFields []string               `json:"searchable_fields,omitempty" yaml:"searchable_fields,omitempty"`
	ForeignKeys      []ForeignKey           `json:"foreign_keys,omitempty" yaml:"foreign_keys,omitempty"`
	FieldAccess      map[string]FieldAccess `json:"field_access,omitempty" yaml:"field_access,omitempty"`
	Policies         []AccessPolicy         `json:"policies,omitempty" yaml:"policies,omitempty"`
	Rules            []ValidationRule       `json:"rules,omitempty" yaml:"rules,omitempty"`
	StatusFlow       *StatusFlow            `json:"status_flow,omitempty" yaml:"status_flow,omitempty"`
}

// IsBusiness reports whether the entity participates in row-level security.
// An entity is a business entity iff it declares an RLS resource.
func (e *EntityMetadata) IsBusiness() bool {
	return e.RLSResource != ""
}

// ForeignKeyOn returns the foreign key declared on the given column, or nil.
func (e *EntityMetadata) ForeignKeyOn(field string) *ForeignKey {
	for i := range e.ForeignKeys {
		if e.ForeignKeys[i].Field == field {
			return &e.ForeignKeys[i]
		}
	}
	return nil
}

// HasFeature reports whether the named optional attribute is non-empty.
func (e *EntityMetadata) HasFeature(f Feature) bool {
	switch f {
	case FeatureForeignKeys:
		return len(e.ForeignKeys) > 0
	case FeatureSearchableFields:
		return len(e.SearchableFields) > 0
	case FeatureIdentityUnique:
		return e.IdentityFieldUnique
	case FeatureJSONBFields:
		return len(e.JSONBFields) > 0
	case FeatureTrimFields:
		return len(e.TrimFields) > 0
	case FeatureFieldAccess:
		return len(e.FieldAccess) > 0
	case FeatureStatusFlow:
		return e.StatusFlow != nil
	case FeatureRules:
		return len(e.Rules) > 0
	case FeaturePolicies:
		return len(e.Policies) > 0
	default:
		return false
	}
}
