package engine

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"fieldserve-backend/internal/metadata"
	"fieldserve-backend/internal/store"
)

// WriteAudit inserts one audit_logs row. It runs inside the same transaction
// as the write it records, so a failed write never leaves a trail and a
// failed trail rolls the write back.
func WriteAudit(ctx context.Context, q store.Querier, user *metadata.UserContext, entityType, entityID, action string, changes map[string]any) error {
	var actorID any
	if user != nil && user.ID != "" {
		actorID = user.ID
	}

	var changesJSON any
	if len(changes) > 0 {
		encoded, err := json.Marshal(changes)
		if err != nil {
			return fmt.Errorf("encode audit changes: %w", err)
		}
		changesJSON = string(encoded)
	}

	_, err := store.Exec(ctx, q,
		`INSERT INTO audit_logs (id, entity_type, entity_id, action, actor_id, changes)
		 VALUES ($1, $2, $3, $4, $5, $6::jsonb)`,
		uuid.New().String(), entityType, entityID, action, actorID, changesJSON)
	if err != nil {
		return fmt.Errorf("insert audit_logs: %w", err)
	}
	return nil
}

// DiffChanges builds the old→new change set for an update's audit row,
// covering only the touched fields.
func DiffChanges(old, updated map[string]any, touched []string) map[string]any {
	changes := make(map[string]any, len(touched))
	for _, f := range touched {
		before := old[f]
		after := updated[f]
		if fmt.Sprintf("%v", before) == fmt.Sprintf("%v", after) {
			continue
		}
		changes[f] = map[string]any{"old": before, "new": after}
	}
	return changes
}
