package engine

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"fieldserve-backend/internal/metadata"
	"fieldserve-backend/internal/storage"
	"fieldserve-backend/internal/store"
)

// FileHandler serves attachments: file payloads live in FileStorage under a
// generated key, their metadata in the attachments table. Attachment rows
// are never written through the generic CRUD path; this handler is the only
// writer.
type FileHandler struct {
	store    *store.Store
	registry *metadata.Registry
	storage  storage.FileStorage
	maxSize  int64
}

func NewFileHandler(s *store.Store, reg *metadata.Registry, fs storage.FileStorage, maxSize int64) *FileHandler {
	return &FileHandler{store: s, registry: reg, storage: fs, maxSize: maxSize}
}

// Upload handles POST /api/:entity/:id/attachments (multipart form, field
// "file"). Attaching requires update permission on the parent record.
func (h *FileHandler) Upload(c *fiber.Ctx) error {
	name := c.Params("entity")
	meta, err := h.registry.Get(name)
	if err != nil {
		return UnknownEntityError(name)
	}
	if !meta.IsBusiness() {
		return InvalidInputError(fmt.Sprintf("%s does not take attachments", name))
	}

	user := getUser(c)
	if err := CheckPermission(user, meta, "update"); err != nil {
		return err
	}

	id := c.Params("id")
	if _, err := fetchRecord(c.Context(), h.store.DB, meta, id, ReadFilters(user, meta, "update")); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return NotFoundError(meta.EntityName, id)
		}
		return fmt.Errorf("fetch %s/%s: %w", meta.EntityName, id, err)
	}

	file, err := c.FormFile("file")
	if err != nil {
		return InvalidInputError("Missing file in form data")
	}
	if file.Size > h.maxSize {
		return NewAppError("FILE_TOO_LARGE", 413,
			fmt.Sprintf("File too large: %d bytes (max %d)", file.Size, h.maxSize))
	}

	src, err := file.Open()
	if err != nil {
		return fmt.Errorf("open uploaded file: %w", err)
	}
	defer src.Close()

	storageKey := uuid.New().String()
	contentType := file.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	storagePath, err := h.storage.Save(c.Context(), storageKey, file.Filename, src)
	if err != nil {
		return fmt.Errorf("save file: %w", err)
	}

	var uploadedBy any
	if user != nil && user.ID != "" {
		uploadedBy = user.ID
	}

	attachmentID := uuid.New().String()
	txErr := h.store.WithTx(c.Context(), func(tx *sql.Tx) error {
		_, err := store.Exec(c.Context(), tx,
			`INSERT INTO attachments (id, entity_type, entity_id, file_name, storage_key, storage_path, file_size, content_type, uploaded_by)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
			attachmentID, meta.EntityName, id, file.Filename, storageKey, storagePath, file.Size, contentType, uploadedBy)
		if err != nil {
			return store.MapError(err)
		}
		return WriteAudit(c.Context(), tx, user, meta.EntityName, id, "attach",
			map[string]any{"attachment_id": attachmentID, "file_name": file.Filename})
	})
	if txErr != nil {
		// keep storage and rows consistent when the row write fails
		_ = h.storage.Delete(c.Context(), storagePath)
		var appErr *AppError
		if errors.As(txErr, &appErr) {
			return appErr
		}
		return fmt.Errorf("insert attachment: %w", txErr)
	}

	return c.Status(201).JSON(fiber.Map{
		"data": fiber.Map{
			"id":           attachmentID,
			"entity_type":  meta.EntityName,
			"entity_id":    id,
			"file_name":    file.Filename,
			"file_size":    file.Size,
			"content_type": contentType,
		},
	})
}

// Download handles GET /api/attachments/:id/download. Reading an attachment
// requires read permission on the entity it is attached to.
func (h *FileHandler) Download(c *fiber.Ctx) error {
	row, meta, err := h.loadAttachment(c)
	if err != nil {
		return err
	}
	if err := CheckPermission(getUser(c), meta, "read"); err != nil {
		return err
	}

	storagePath, _ := row["storage_path"].(string)
	fileName, _ := row["file_name"].(string)
	contentType, _ := row["content_type"].(string)

	reader, err := h.storage.Open(c.Context(), storagePath)
	if err != nil {
		return fmt.Errorf("open stored file: %w", err)
	}

	c.Set("Content-Type", contentType)
	c.Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, fileName))
	return c.SendStream(reader)
}

// Delete handles DELETE /api/attachments/:id, requiring update permission on
// the parent entity.
func (h *FileHandler) Delete(c *fiber.Ctx) error {
	row, meta, err := h.loadAttachment(c)
	if err != nil {
		return err
	}
	user := getUser(c)
	if err := CheckPermission(user, meta, "update"); err != nil {
		return err
	}

	id := c.Params("id")
	storagePath, _ := row["storage_path"].(string)
	entityID := fmt.Sprintf("%v", row["entity_id"])

	txErr := h.store.WithTx(c.Context(), func(tx *sql.Tx) error {
		if _, err := store.Exec(c.Context(), tx, "DELETE FROM attachments WHERE id = $1", id); err != nil {
			return store.MapError(err)
		}
		return WriteAudit(c.Context(), tx, user, meta.EntityName, entityID, "detach",
			map[string]any{"attachment_id": id})
	})
	if txErr != nil {
		return fmt.Errorf("delete attachment: %w", txErr)
	}

	if err := h.storage.Delete(c.Context(), storagePath); err != nil {
		return fmt.Errorf("delete stored file: %w", err)
	}

	return c.JSON(fiber.Map{"data": fiber.Map{"id": id}})
}

func (h *FileHandler) loadAttachment(c *fiber.Ctx) (map[string]any, *metadata.EntityMetadata, error) {
	id := c.Params("id")
	row, err := store.QueryRow(c.Context(), h.store.DB,
		"SELECT id, entity_type, entity_id, file_name, storage_key, storage_path, file_size, content_type FROM attachments WHERE id = $1", id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, nil, NotFoundError("attachment", id)
		}
		return nil, nil, fmt.Errorf("fetch attachment %s: %w", id, err)
	}

	entityType, _ := row["entity_type"].(string)
	meta, err := h.registry.Get(entityType)
	if err != nil {
		return nil, nil, fmt.Errorf("attachment %s references unknown entity %s", id, entityType)
	}
	return row, meta, nil
}
