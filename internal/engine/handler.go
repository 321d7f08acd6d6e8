package engine

import (
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"fieldserve-backend/internal/metadata"
	"fieldserve-backend/internal/store"
)

// Handler serves the generic CRUD surface: every business entity in the
// registry gets list, get, create, update, delete, search, lookup, and
// (when a status flow is declared) status endpoints, all driven by metadata.
type Handler struct {
	store    *store.Store
	registry *metadata.Registry
}

func NewHandler(s *store.Store, reg *metadata.Registry) *Handler {
	return &Handler{store: s, registry: reg}
}

// List handles GET /api/:entity
func (h *Handler) List(c *fiber.Ctx) error {
	meta, err := h.resolveEntity(c)
	if err != nil {
		return err
	}

	user := getUser(c)
	if err := CheckPermission(user, meta, "read"); err != nil {
		return err
	}

	plan, err := ParseQueryParams(c, meta, h.registry)
	if err != nil {
		return err
	}
	plan.RowFilters = ReadFilters(user, meta, "read")

	for _, name := range plan.Includes {
		rel := resolveInclude(h.registry, meta, name)
		if err := CheckPermission(user, rel.Related, "read"); err != nil {
			return err
		}
	}

	qr := BuildSelectSQL(plan)
	rows, err := store.QueryRows(c.Context(), h.store.DB, qr.SQL, qr.Params...)
	if err != nil {
		return h.mapReadError(fmt.Errorf("list %s: %w", meta.EntityName, err))
	}

	cr := BuildCountSQL(plan)
	countRow, err := store.QueryRow(c.Context(), h.store.DB, cr.SQL, cr.Params...)
	if err != nil {
		return fmt.Errorf("count %s: %w", meta.EntityName, err)
	}

	if err := LoadIncludes(c.Context(), h.store.DB, h.registry, user, meta, rows, plan.Includes); err != nil {
		return err
	}
	FilterReadable(user, meta, rows)

	if rows == nil {
		rows = []map[string]any{}
	}
	return c.JSON(fiber.Map{
		"data": rows,
		"meta": fiber.Map{
			"page":     plan.Page,
			"per_page": plan.PerPage,
			"total":    countRow["count"],
		},
	})
}

// GetByID handles GET /api/:entity/:id
func (h *Handler) GetByID(c *fiber.Ctx) error {
	meta, err := h.resolveEntity(c)
	if err != nil {
		return err
	}

	user := getUser(c)
	if err := CheckPermission(user, meta, "read"); err != nil {
		return err
	}

	id := c.Params("id")
	row, err := fetchRecord(c.Context(), h.store.DB, meta, id, ReadFilters(user, meta, "read"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return NotFoundError(meta.EntityName, id)
		}
		return fmt.Errorf("get %s/%s: %w", meta.EntityName, id, err)
	}

	if includes := parseIncludeParam(c); len(includes) > 0 {
		rows := []map[string]any{row}
		for _, name := range includes {
			rel := resolveInclude(h.registry, meta, name)
			if rel == nil {
				return UnknownFieldError(fmt.Sprintf("Unknown include: %s", name))
			}
			if err := CheckPermission(user, rel.Related, "read"); err != nil {
				return err
			}
		}
		if err := LoadIncludes(c.Context(), h.store.DB, h.registry, user, meta, rows, includes); err != nil {
			return err
		}
		row = rows[0]
	}

	FilterReadable(user, meta, []map[string]any{row})
	return c.JSON(fiber.Map{"data": row})
}

// Create handles POST /api/:entity
func (h *Handler) Create(c *fiber.Ctx) error {
	meta, err := h.resolveEntity(c)
	if err != nil {
		return err
	}

	user := getUser(c)
	if err := CheckPermission(user, meta, "create"); err != nil {
		return err
	}

	var body map[string]any
	if err := c.BodyParser(&body); err != nil {
		return InvalidInputError("Invalid JSON body")
	}
	if body == nil {
		body = map[string]any{}
	}

	if violations := createImmutableViolations(meta, body); len(violations) > 0 {
		return ImmutableFieldError(violations)
	}
	if err := CheckWritableFields(user, meta, body); err != nil {
		return err
	}
	if details := CheckRequiredFields(meta, body); len(details) > 0 {
		return ValidationError(details)
	}

	// Server-side stamps: generated primary key (except the shared-PK
	// pattern, where the client supplies it), generated identity for
	// computed entities, and the flow's initial state.
	if meta.PrimaryKey == "id" {
		body["id"] = uuid.New().String()
	}
	if meta.Category == metadata.CategoryComputed {
		body[meta.IdentityField] = GenerateIdentity(meta.IdentityPrefix)
	}
	if meta.StatusFlow != nil {
		body[meta.StatusFlow.Field] = meta.StatusFlow.Initial
	}

	if details := EvaluateRules(meta, body, nil, "create"); len(details) > 0 {
		return ValidationError(details)
	}

	columns, placeholders, values, err := BuildInsertClause(body, writeOptions(meta))
	if err != nil {
		return err
	}
	insertSQL := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) RETURNING *",
		meta.TableName, strings.Join(columns, ", "), strings.Join(placeholders, ", "))

	var record map[string]any
	txErr := h.store.WithTx(c.Context(), func(tx *sql.Tx) error {
		rows, err := store.QueryRows(c.Context(), tx, insertSQL, values...)
		if err != nil {
			return store.MapError(err)
		}
		if len(rows) == 0 {
			return fmt.Errorf("insert %s returned no row", meta.TableName)
		}
		record = rows[0]
		entityID := fmt.Sprintf("%v", record[meta.PrimaryKey])
		return WriteAudit(c.Context(), tx, user, meta.EntityName, entityID, "create", nil)
	})
	if txErr != nil {
		return h.mapWriteError(txErr)
	}

	FilterReadable(user, meta, []map[string]any{record})
	return c.Status(201).JSON(fiber.Map{"data": record})
}

// Update handles PATCH and PUT /api/:entity/:id. The payload is partial:
// absent fields stay untouched, explicit nulls clear the column, and any
// write to an immutable field rejects the whole request.
func (h *Handler) Update(c *fiber.Ctx) error {
	meta, err := h.resolveEntity(c)
	if err != nil {
		return err
	}

	user := getUser(c)
	if err := CheckPermission(user, meta, "update"); err != nil {
		return err
	}

	id := c.Params("id")
	current, err := fetchRecord(c.Context(), h.store.DB, meta, id, ReadFilters(user, meta, "update"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return NotFoundError(meta.EntityName, id)
		}
		return fmt.Errorf("fetch %s/%s: %w", meta.EntityName, id, err)
	}

	var body map[string]any
	if err := c.BodyParser(&body); err != nil {
		return InvalidInputError("Invalid JSON body")
	}

	if err := CheckWritableFields(user, meta, body); err != nil {
		return err
	}

	clause, err := BuildUpdateClause(body, meta.ImmutableFields, writeOptions(meta))
	if err != nil {
		return err
	}
	if !clause.HasUpdates {
		// Nothing survived filtering; running an UPDATE with an empty SET
		// list is the bug this path prevents.
		FilterReadable(user, meta, []map[string]any{current})
		return c.JSON(fiber.Map{"data": current})
	}

	merged := make(map[string]any, len(current)+len(body))
	for k, v := range current {
		merged[k] = v
	}
	for k, v := range body {
		merged[k] = v
	}
	if details := EvaluateRules(meta, merged, current, "update"); len(details) > 0 {
		return ValidationError(details)
	}

	record, txErr := h.executeUpdate(c, meta, user, id, clause, current, body)
	if txErr != nil {
		return h.mapWriteError(txErr)
	}

	FilterReadable(user, meta, []map[string]any{record})
	return c.JSON(fiber.Map{"data": record})
}

// executeUpdate runs the UPDATE built from clause plus the server-side
// updated_at stamp, and the audit row, in one transaction. The WHERE
// parameter continues the clause's numbering at len(Values)+1.
func (h *Handler) executeUpdate(c *fiber.Ctx, meta *metadata.EntityMetadata, user *metadata.UserContext, id string, clause *UpdateClause, current, body map[string]any) (map[string]any, error) {
	updateSQL := fmt.Sprintf("UPDATE %s SET %s, updated_at = NOW() WHERE %s = $%d RETURNING *",
		meta.TableName, clause.SetClause(), meta.PrimaryKey, len(clause.Values)+1)
	args := append(append([]any{}, clause.Values...), id)

	var record map[string]any
	err := h.store.WithTx(c.Context(), func(tx *sql.Tx) error {
		rows, err := store.QueryRows(c.Context(), tx, updateSQL, args...)
		if err != nil {
			return store.MapError(err)
		}
		if len(rows) == 0 {
			return store.ErrNotFound
		}
		record = rows[0]

		touched := make([]string, 0, len(body))
		for k := range body {
			touched = append(touched, k)
		}
		sort.Strings(touched)
		return WriteAudit(c.Context(), tx, user, meta.EntityName, id, "update", DiffChanges(current, record, touched))
	})
	return record, err
}

// Delete handles DELETE /api/:entity/:id
func (h *Handler) Delete(c *fiber.Ctx) error {
	meta, err := h.resolveEntity(c)
	if err != nil {
		return err
	}

	user := getUser(c)
	if err := CheckPermission(user, meta, "delete"); err != nil {
		return err
	}

	id := c.Params("id")
	if _, err := fetchRecord(c.Context(), h.store.DB, meta, id, ReadFilters(user, meta, "delete")); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return NotFoundError(meta.EntityName, id)
		}
		return fmt.Errorf("fetch %s/%s: %w", meta.EntityName, id, err)
	}

	txErr := h.store.WithTx(c.Context(), func(tx *sql.Tx) error {
		deleteSQL := fmt.Sprintf("DELETE FROM %s WHERE %s = $1", meta.TableName, meta.PrimaryKey)
		affected, err := store.Exec(c.Context(), tx, deleteSQL, id)
		if err != nil {
			return store.MapError(err)
		}
		if affected == 0 {
			return store.ErrNotFound
		}
		return WriteAudit(c.Context(), tx, user, meta.EntityName, id, "delete", nil)
	})
	if txErr != nil {
		if errors.Is(txErr, store.ErrNotFound) {
			return NotFoundError(meta.EntityName, id)
		}
		return h.mapWriteError(txErr)
	}

	return c.JSON(fiber.Map{"data": fiber.Map{"id": id}})
}

// Search handles GET /api/:entity/search?q=
func (h *Handler) Search(c *fiber.Ctx) error {
	meta, err := h.resolveEntity(c)
	if err != nil {
		return err
	}
	if len(meta.SearchableFields) == 0 {
		return InvalidInputError(fmt.Sprintf("%s is not searchable", meta.EntityName))
	}
	if strings.TrimSpace(c.Query("q")) == "" {
		return InvalidInputError("Query parameter q is required")
	}
	return h.List(c)
}

// Lookup handles GET /api/:entity/lookup?value=, an equality match on the
// entity's identity field.
func (h *Handler) Lookup(c *fiber.Ctx) error {
	meta, err := h.resolveEntity(c)
	if err != nil {
		return err
	}

	user := getUser(c)
	if err := CheckPermission(user, meta, "read"); err != nil {
		return err
	}

	value := c.Query("value")
	if value == "" {
		return InvalidInputError("Query parameter value is required")
	}

	pb := &paramBuilder{}
	sql := fmt.Sprintf("SELECT * FROM %s WHERE %s = %s", meta.TableName, meta.IdentityField, pb.Add(value))
	for _, rf := range ReadFilters(user, meta, "read") {
		sql += " AND " + buildRowFilter(rf, pb)
	}

	row, err := store.QueryRow(c.Context(), h.store.DB, sql, pb.params...)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return NotFoundError(meta.EntityName, value)
		}
		return fmt.Errorf("lookup %s: %w", meta.EntityName, err)
	}

	FilterReadable(user, meta, []map[string]any{row})
	return c.JSON(fiber.Map{"data": row})
}

// ChangeStatus handles POST /api/:entity/:id/status. The flow field is
// immutable to generic updates; this is the only path that moves it, and
// only along declared transitions.
func (h *Handler) ChangeStatus(c *fiber.Ctx) error {
	meta, err := h.resolveEntity(c)
	if err != nil {
		return err
	}

	user := getUser(c)
	if err := CheckPermission(user, meta, "update"); err != nil {
		return err
	}

	var body struct {
		Status string `json:"status"`
	}
	if err := c.BodyParser(&body); err != nil || body.Status == "" {
		return InvalidInputError("Body must carry a status field")
	}

	id := c.Params("id")
	current, err := fetchRecord(c.Context(), h.store.DB, meta, id, ReadFilters(user, meta, "update"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return NotFoundError(meta.EntityName, id)
		}
		return fmt.Errorf("fetch %s/%s: %w", meta.EntityName, id, err)
	}

	if err := planTransition(meta, user, current, body.Status); err != nil {
		return err
	}

	flowField := meta.StatusFlow.Field
	clause, err := BuildUpdateClause(map[string]any{flowField: body.Status}, transitionImmutables(meta), writeOptions(meta))
	if err != nil {
		return err
	}

	record, txErr := h.executeUpdate(c, meta, user, id, clause, current, map[string]any{flowField: body.Status})
	if txErr != nil {
		return h.mapWriteError(txErr)
	}

	FilterReadable(user, meta, []map[string]any{record})
	return c.JSON(fiber.Map{"data": record})
}

// --- helpers ---

func (h *Handler) resolveEntity(c *fiber.Ctx) (*metadata.EntityMetadata, error) {
	name := c.Params("entity")
	meta, err := h.registry.Get(name)
	if err != nil {
		return nil, UnknownEntityError(name)
	}
	return meta, nil
}

func getUser(c *fiber.Ctx) *metadata.UserContext {
	user, _ := c.Locals("user").(*metadata.UserContext)
	return user
}

// writeOptions extracts the builder configuration from entity metadata. The
// builder itself never sees the registry; this is the only coupling point.
func writeOptions(meta *metadata.EntityMetadata) UpdateOptions {
	return UpdateOptions{
		JSONBFields: meta.JSONBFields,
		TrimFields:  meta.TrimFields,
	}
}

// createImmutableViolations lists payload keys the client may not supply on
// create: the universal immutables plus declared immutables that are not
// also required. A field that is both immutable and required (a user's
// email, a technician's user_id) is writable exactly once, at creation.
func createImmutableViolations(meta *metadata.EntityMetadata, data map[string]any) []string {
	required := toSet(meta.RequiredFields)
	banned := map[string]bool{"id": true, "created_at": true, "updated_at": true}
	for _, f := range meta.ImmutableFields {
		if !required[f] {
			banned[f] = true
		}
	}

	var violations []string
	for k := range data {
		if banned[k] {
			violations = append(violations, k)
		}
	}
	sort.Strings(violations)
	return violations
}

func parseIncludeParam(c *fiber.Ctx) []string {
	inc := c.Query("include")
	if inc == "" {
		return nil
	}
	var includes []string
	for _, name := range strings.Split(inc, ",") {
		if name = strings.TrimSpace(name); name != "" {
			includes = append(includes, name)
		}
	}
	return includes
}

func (h *Handler) mapReadError(err error) error {
	mapped := store.MapError(err)
	if errors.Is(mapped, store.ErrUndefinedColumn) {
		return UnknownFieldError("Query names a column the entity does not have")
	}
	return err
}

func (h *Handler) mapWriteError(err error) error {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	switch {
	case errors.Is(err, store.ErrUniqueViolation):
		msg := "A record with this value already exists"
		if detail := store.ConstraintDetail(err); detail != "" {
			msg = detail
		}
		return ConflictError(msg)
	case errors.Is(err, store.ErrForeignKeyViolation):
		msg := "A referenced record does not exist"
		if detail := store.ConstraintDetail(err); detail != "" {
			msg = detail
		}
		return ConflictError(msg)
	case errors.Is(err, store.ErrUndefinedColumn):
		return UnknownFieldError("Payload names a column the entity does not have")
	}
	return err
}
