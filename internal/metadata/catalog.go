package metadata

// builtinCatalog is the compiled-in entity catalog. A YAML overlay (see
// loader.go) may replace or extend these entries at startup; after the
// registry is built the catalog is read-only.
//
// Conventions the validator enforces: every entity stamps updated_at
// server-side (so it is declared immutable everywhere), computed entities
// have their identity generated from IdentityPrefix, and a status flow's
// field is only writable through the transition endpoint.
var builtinCatalog = []*EntityMetadata{
	{
		EntityName:          "user",
		TableName:           "users",
		PrimaryKey:          "id",
		RequiredFields:      []string{"email", "first_name", "last_name", "role_id"},
		IdentityField:       "email",
		IdentityFieldUnique: true,
		Category:            CategoryHuman,
		RLSResource:         "users",
		ImmutableFields:     []string{"email", "password_hash", "updated_at"},
		JSONBFields:         []string{"preferences"},
		TrimFields:          []string{"first_name", "last_name", "phone"},
		SearchableFields:    []string{"email", "first_name", "last_name"},
		ForeignKeys: []ForeignKey{
			{Field: "role_id", RelatedEntity: "role"},
		},
		FieldAccess: map[string]FieldAccess{
			"password_hash": {Read: []string{}, Write: []string{}},
		},
		Policies: []AccessPolicy{
			{Roles: []string{"manager", "dispatcher"}, Actions: []string{"read"}},
		},
		Rules: []ValidationRule{
			{
				Field:   "email",
				Expr:    `record.email == nil or record.email matches "^[^@\\s]+@[^@\\s]+$"`,
				Message: "must be a valid email address",
			},
		},
	},
	{
		EntityName:       "customer",
		TableName:        "customers",
		PrimaryKey:       "id",
		RequiredFields:   []string{"first_name", "last_name", "email"},
		IdentityField:    "email",
		Category:         CategoryHuman,
		RLSResource:      "customers",
		ImmutableFields:  []string{"updated_at"},
		JSONBFields:      []string{"address"},
		TrimFields:       []string{"first_name", "last_name", "email", "phone", "company_name"},
		SearchableFields: []string{"first_name", "last_name", "email", "company_name"},
		Policies: []AccessPolicy{
			{Roles: []string{"manager"}, Actions: []string{"read", "create", "update", "delete"}},
			{Roles: []string{"dispatcher"}, Actions: []string{"read", "create", "update"}},
			{Roles: []string{"technician"}, Actions: []string{"read"}},
		},
		Rules: []ValidationRule{
			{
				Field:   "email",
				Expr:    `record.email == nil or record.email matches "^[^@\\s]+@[^@\\s]+$"`,
				Message: "must be a valid email address",
			},
		},
	},
	{
		EntityName:          "role",
		TableName:           "roles",
		PrimaryKey:          "id",
		RequiredFields:      []string{"name"},
		IdentityField:       "name",
		IdentityFieldUnique: true,
		Category:            CategorySimple,
		RLSResource:         "roles",
		ImmutableFields:     []string{"name", "updated_at"},
		JSONBFields:         []string{"permissions"},
		TrimFields:          []string{"description"},
		SearchableFields:    []string{"name"},
		Policies: []AccessPolicy{
			{Roles: []string{"manager", "dispatcher", "technician"}, Actions: []string{"read"}},
		},
	},
	{
		EntityName:          "service",
		TableName:           "services",
		PrimaryKey:          "id",
		RequiredFields:      []string{"name", "rate"},
		IdentityField:       "name",
		IdentityFieldUnique: true,
		Category:            CategorySimple,
		RLSResource:         "services",
		ImmutableFields:     []string{"updated_at"},
		TrimFields:          []string{"name", "description"},
		SearchableFields:    []string{"name", "description"},
		Policies: []AccessPolicy{
			{Roles: []string{"manager"}, Actions: []string{"read", "create", "update", "delete"}},
			{Roles: []string{"dispatcher", "technician"}, Actions: []string{"read"}},
		},
		Rules: []ValidationRule{
			{
				Field:   "rate",
				Expr:    `record.rate == nil or float(record.rate) >= 0`,
				Message: "must not be negative",
			},
		},
	},
	{
		EntityName:       "inventory_item",
		TableName:        "inventory_items",
		PrimaryKey:       "id",
		RequiredFields:   []string{"name", "sku"},
		IdentityField:    "name",
		Category:         CategorySimple,
		RLSResource:      "inventory",
		ImmutableFields:  []string{"sku", "updated_at"},
		JSONBFields:      []string{"attributes"},
		TrimFields:       []string{"name", "sku", "description"},
		SearchableFields: []string{"name", "sku", "description"},
		FieldAccess: map[string]FieldAccess{
			"cost_price": {Read: []string{"admin", "manager"}, Write: []string{"admin", "manager"}},
		},
		Policies: []AccessPolicy{
			{Roles: []string{"manager"}, Actions: []string{"read", "create", "update", "delete"}},
			{Roles: []string{"dispatcher"}, Actions: []string{"read", "update"}},
			{Roles: []string{"technician"}, Actions: []string{"read"}},
		},
		Rules: []ValidationRule{
			{
				Field:   "quantity",
				Expr:    `record.quantity == nil or int(record.quantity) >= 0`,
				Message: "must not be negative",
			},
		},
	},
	{
		// Shared primary key: a technician row is an extension of its user
		// row, so user_id doubles as the primary key and the foreign key.
		EntityName:          "technician",
		TableName:           "technicians",
		PrimaryKey:          "user_id",
		RequiredFields:      []string{"user_id"},
		IdentityField:       "employee_number",
		IdentityFieldUnique: true,
		IdentityPrefix:      "EMP",
		Category:            CategoryComputed,
		RLSResource:         "technicians",
		ImmutableFields:     []string{"user_id", "employee_number", "updated_at"},
		JSONBFields:         []string{"certifications"},
		TrimFields:          []string{"specialty"},
		SearchableFields:    []string{"employee_number", "specialty"},
		ForeignKeys: []ForeignKey{
			{Field: "user_id", RelatedEntity: "user"},
		},
		FieldAccess: map[string]FieldAccess{
			"hourly_rate": {Read: []string{"admin", "manager"}, Write: []string{"admin", "manager"}},
		},
		Policies: []AccessPolicy{
			{Roles: []string{"manager"}, Actions: []string{"read", "create", "update", "delete"}},
			{Roles: []string{"dispatcher", "technician"}, Actions: []string{"read"}},
		},
	},
	{
		EntityName:          "work_order",
		TableName:           "work_orders",
		PrimaryKey:          "id",
		RequiredFields:      []string{"customer_id", "title"},
		IdentityField:       "order_number",
		IdentityFieldUnique: true,
		IdentityPrefix:      "WO",
		Category:            CategoryComputed,
		RLSResource:         "work_orders",
		ImmutableFields:     []string{"order_number", "status", "customer_id", "updated_at"},
		JSONBFields:         []string{"checklist"},
		TrimFields:          []string{"title", "description"},
		SearchableFields:    []string{"order_number", "title", "description"},
		ForeignKeys: []ForeignKey{
			{Field: "customer_id", RelatedEntity: "customer"},
			{Field: "technician_id", RelatedEntity: "technician"},
			{Field: "contract_id", RelatedEntity: "contract"},
		},
		FieldAccess: map[string]FieldAccess{
			"internal_notes": {
				Read:  []string{"admin", "manager", "dispatcher"},
				Write: []string{"admin", "manager", "dispatcher"},
			},
		},
		Policies: []AccessPolicy{
			{Roles: []string{"manager"}, Actions: []string{"read", "create", "update", "delete"}},
			{Roles: []string{"dispatcher"}, Actions: []string{"read", "create", "update"}},
			{Roles: []string{"technician"}, Actions: []string{"read", "update"}, RowFilter: "technician_id = $user.id"},
		},
		Rules: []ValidationRule{
			{
				Field:   "priority",
				Expr:    `record.priority == nil or record.priority in ["low", "normal", "high", "urgent"]`,
				Message: "must be one of low, normal, high, urgent",
			},
		},
		StatusFlow: &StatusFlow{
			Field:   "status",
			Initial: "new",
			Transitions: []Transition{
				{From: TransitionFrom{"new"}, To: "assigned", Roles: []string{"admin", "manager", "dispatcher"}, Guard: `record.technician_id != nil`},
				{From: TransitionFrom{"assigned"}, To: "in_progress", Roles: []string{"admin", "manager", "dispatcher", "technician"}},
				{From: TransitionFrom{"in_progress"}, To: "on_hold", Roles: []string{"admin", "manager", "dispatcher", "technician"}},
				{From: TransitionFrom{"on_hold"}, To: "in_progress", Roles: []string{"admin", "manager", "dispatcher", "technician"}},
				{From: TransitionFrom{"in_progress"}, To: "completed", Roles: []string{"admin", "manager", "dispatcher", "technician"}},
				{From: TransitionFrom{"completed"}, To: "closed", Roles: []string{"admin", "manager"}},
				{From: TransitionFrom{"new", "assigned", "in_progress", "on_hold"}, To: "cancelled", Roles: []string{"admin", "manager", "dispatcher"}},
			},
		},
	},
	{
		EntityName:          "contract",
		TableName:           "contracts",
		PrimaryKey:          "id",
		RequiredFields:      []string{"customer_id", "start_date", "end_date"},
		IdentityField:       "contract_number",
		IdentityFieldUnique: true,
		IdentityPrefix:      "CT",
		Category:            CategoryComputed,
		RLSResource:         "contracts",
		ImmutableFields:     []string{"contract_number", "customer_id", "updated_at"},
		JSONBFields:         []string{"terms"},
		TrimFields:          []string{"title"},
		SearchableFields:    []string{"contract_number", "title"},
		ForeignKeys: []ForeignKey{
			{Field: "customer_id", RelatedEntity: "customer"},
		},
		Policies: []AccessPolicy{
			{Roles: []string{"manager"}, Actions: []string{"read", "create", "update", "delete"}},
			{Roles: []string{"dispatcher"}, Actions: []string{"read"}},
		},
		Rules: []ValidationRule{
			{
				Field:   "end_date",
				Expr:    `record.end_date == nil or record.start_date == nil or record.end_date > record.start_date`,
				Message: "must be after start_date",
			},
		},
	},
	{
		EntityName:          "invoice",
		TableName:           "invoices",
		PrimaryKey:          "id",
		RequiredFields:      []string{"work_order_id", "customer_id", "amount"},
		IdentityField:       "invoice_number",
		IdentityFieldUnique: true,
		IdentityPrefix:      "INV",
		Category:            CategoryComputed,
		RLSResource:         "invoices",
		ImmutableFields:     []string{"invoice_number", "status", "work_order_id", "customer_id", "updated_at"},
		JSONBFields:         []string{"line_items"},
		SearchableFields:    []string{"invoice_number"},
		ForeignKeys: []ForeignKey{
			{Field: "work_order_id", RelatedEntity: "work_order"},
			{Field: "customer_id", RelatedEntity: "customer"},
		},
		Policies: []AccessPolicy{
			{Roles: []string{"manager"}, Actions: []string{"read", "create", "update", "delete"}},
			{Roles: []string{"dispatcher"}, Actions: []string{"read"}},
		},
		Rules: []ValidationRule{
			{
				Field:   "amount",
				Expr:    `record.amount == nil or float(record.amount) >= 0`,
				Message: "must not be negative",
			},
		},
		StatusFlow: &StatusFlow{
			Field:   "status",
			Initial: "draft",
			Transitions: []Transition{
				{From: TransitionFrom{"draft"}, To: "sent", Roles: []string{"admin", "manager"}},
				{From: TransitionFrom{"sent"}, To: "paid", Roles: []string{"admin", "manager"}},
				{From: TransitionFrom{"sent"}, To: "overdue", Roles: []string{"admin", "manager"}},
				{From: TransitionFrom{"draft", "sent"}, To: "void", Roles: []string{"admin", "manager"}},
			},
		},
	},
	{
		EntityName:          "payment",
		TableName:           "payments",
		PrimaryKey:          "id",
		RequiredFields:      []string{"invoice_id", "amount", "method"},
		IdentityField:       "payment_number",
		IdentityFieldUnique: true,
		IdentityPrefix:      "PAY",
		Category:            CategoryComputed,
		RLSResource:         "payments",
		ImmutableFields:     []string{"payment_number", "invoice_id", "amount", "method", "updated_at"},
		TrimFields:          []string{"reference"},
		SearchableFields:    []string{"payment_number", "reference"},
		ForeignKeys: []ForeignKey{
			{Field: "invoice_id", RelatedEntity: "invoice"},
		},
		Policies: []AccessPolicy{
			{Roles: []string{"manager"}, Actions: []string{"read", "create", "update", "delete"}},
			{Roles: []string{"dispatcher"}, Actions: []string{"read"}},
		},
		Rules: []ValidationRule{
			{
				Field:   "amount",
				Expr:    `record.amount == nil or float(record.amount) > 0`,
				Message: "must be positive",
			},
			{
				Field:   "method",
				Expr:    `record.method == nil or record.method in ["cash", "card", "bank_transfer", "check"]`,
				Message: "must be one of cash, card, bank_transfer, check",
			},
		},
	},
	{
		// Rows are written by the upload handler, never through generic CRUD,
		// so everything except free-form notes is locked down.
		EntityName:      "attachment",
		TableName:       "attachments",
		PrimaryKey:      "id",
		RequiredFields:  []string{"entity_type", "entity_id", "file_name", "storage_key"},
		IdentityField:   "file_name",
		Category:        CategorySystem,
		ImmutableFields: []string{"entity_type", "entity_id", "file_name", "storage_key", "file_size", "content_type", "uploaded_by", "updated_at"},
		ForeignKeys: []ForeignKey{
			{Field: "uploaded_by", RelatedEntity: "user"},
		},
	},
	{
		// Insert-only trail written by the engine after successful writes.
		EntityName:      "audit_log",
		TableName:       "audit_logs",
		PrimaryKey:      "id",
		RequiredFields:  []string{"entity_type", "action"},
		IdentityField:   "action",
		Category:        CategorySystem,
		ImmutableFields: []string{"entity_type", "entity_id", "action", "actor_id", "changes", "updated_at"},
		JSONBFields:     []string{"changes"},
		ForeignKeys: []ForeignKey{
			{Field: "actor_id", RelatedEntity: "user"},
		},
	},
}

// BuiltinCatalog returns a fresh copy of the compiled-in entity entries.
func BuiltinCatalog() []*EntityMetadata {
	out := make([]*EntityMetadata, len(builtinCatalog))
	copy(out, builtinCatalog)
	return out
}

// DefaultRegistry builds a registry over the built-in catalog.
func DefaultRegistry() *Registry {
	return New(BuiltinCatalog())
}
