package engine

import (
	"errors"
	"reflect"
	"strings"
	"testing"

	"fieldserve-backend/internal/metadata"
)

func flowMeta() *metadata.EntityMetadata {
	return &metadata.EntityMetadata{
		EntityName:      "work_order",
		TableName:       "work_orders",
		PrimaryKey:      "id",
		ImmutableFields: []string{"order_number", "status", "customer_id", "updated_at"},
		StatusFlow: &metadata.StatusFlow{
			Field:   "status",
			Initial: "new",
			Transitions: []metadata.Transition{
				{From: metadata.TransitionFrom{"new"}, To: "assigned", Roles: []string{"admin", "manager", "dispatcher"}, Guard: `record.technician_id != nil`},
				{From: metadata.TransitionFrom{"assigned"}, To: "in_progress", Roles: []string{"admin", "manager", "dispatcher", "technician"}},
				{From: metadata.TransitionFrom{"in_progress"}, To: "completed"},
				{From: metadata.TransitionFrom{"completed"}, To: "closed", Roles: []string{"admin", "manager"}},
			},
		},
	}
}

func appStatus(t *testing.T, err error) int {
	t.Helper()
	var appErr *AppError
	if !errors.As(err, &appErr) {
		t.Fatalf("expected *AppError, got %T: %v", err, err)
	}
	return appErr.Status
}

func TestPlanTransitionLegalEdge(t *testing.T) {
	meta := flowMeta()
	current := map[string]any{"id": "wo-1", "status": "assigned"}

	if err := planTransition(meta, userWith("technician"), current, "in_progress"); err != nil {
		t.Fatalf("legal edge rejected: %v", err)
	}
}

func TestPlanTransitionUnknownEdge(t *testing.T) {
	meta := flowMeta()
	current := map[string]any{"status": "new"}

	err := planTransition(meta, userWith("manager"), current, "completed")
	if err == nil {
		t.Fatal("expected rejection for undeclared edge")
	}
	if got := appStatus(t, err); got != 400 {
		t.Errorf("status = %d, want 400", got)
	}
	// The message tells the caller where it could have gone instead.
	if !strings.Contains(err.Error(), "assigned") {
		t.Errorf("message %q should list allowed targets", err.Error())
	}
}

func TestPlanTransitionFinalState(t *testing.T) {
	meta := flowMeta()
	err := planTransition(meta, userWith("admin"), map[string]any{"status": "closed"}, "new")
	if err == nil {
		t.Fatal("expected rejection out of final state")
	}
	if !strings.Contains(err.Error(), "final") {
		t.Errorf("message = %q", err.Error())
	}
}

func TestPlanTransitionRoleGate(t *testing.T) {
	meta := flowMeta()
	current := map[string]any{"status": "completed"}

	err := planTransition(meta, userWith("technician"), current, "closed")
	if err == nil {
		t.Fatal("technician should not close")
	}
	if got := appStatus(t, err); got != 403 {
		t.Errorf("status = %d, want 403", got)
	}

	if err := planTransition(meta, userWith("manager"), current, "closed"); err != nil {
		t.Errorf("manager close: %v", err)
	}
	// Admin passes every role gate.
	if err := planTransition(meta, userWith("admin"), current, "closed"); err != nil {
		t.Errorf("admin close: %v", err)
	}

	// An edge without roles is open to any authenticated user.
	if err := planTransition(meta, userWith("technician"), map[string]any{"status": "in_progress"}, "completed"); err != nil {
		t.Errorf("open edge: %v", err)
	}
}

func TestPlanTransitionGuard(t *testing.T) {
	meta := flowMeta()

	// new → assigned requires a technician on the record.
	err := planTransition(meta, userWith("dispatcher"), map[string]any{"status": "new"}, "assigned")
	if err == nil {
		t.Fatal("guard should reject assignment without technician_id")
	}
	if got := appStatus(t, err); got != 400 {
		t.Errorf("status = %d, want 400", got)
	}

	current := map[string]any{"status": "new", "technician_id": "t-9"}
	if err := planTransition(meta, userWith("dispatcher"), current, "assigned"); err != nil {
		t.Errorf("guarded edge with technician: %v", err)
	}
	// planTransition evaluates against a copy; the loaded row is untouched.
	if current["status"] != "new" {
		t.Errorf("current mutated: %v", current)
	}
}

func TestPlanTransitionNoFlow(t *testing.T) {
	meta := &metadata.EntityMetadata{EntityName: "customer"}
	err := planTransition(meta, userWith("admin"), map[string]any{}, "anything")
	if err == nil {
		t.Fatal("expected rejection for entity without a flow")
	}
	if got := appStatus(t, err); got != 400 {
		t.Errorf("status = %d, want 400", got)
	}
}

func TestTransitionImmutables(t *testing.T) {
	meta := flowMeta()
	got := transitionImmutables(meta)
	// The flow field is the one immutable the transition write may touch.
	want := []string{"order_number", "customer_id", "updated_at"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("immutables = %v, want %v", got, want)
	}
}
