package store

import (
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
)

func TestNormalizeValue(t *testing.T) {
	if got := normalizeValue(nil); got != nil {
		t.Errorf("nil = %v", got)
	}
	if got := normalizeValue([]byte(`{"a":1}`)); got != `{"a":1}` {
		t.Errorf("bytes = %v", got)
	}

	raw := [16]byte{0x12, 0x34, 0x56, 0x78, 0x9a, 0xbc, 0xde, 0xf0, 0x12, 0x34, 0x56, 0x78, 0x9a, 0xbc, 0xde, 0xf0}
	if got := normalizeValue(raw); got != "12345678-9abc-def0-1234-56789abcdef0" {
		t.Errorf("uuid = %v", got)
	}

	ts := time.Date(2026, 3, 1, 12, 30, 0, 0, time.FixedZone("CET", 3600))
	if got := normalizeValue(ts); got != "2026-03-01T11:30:00Z" {
		t.Errorf("time = %v", got)
	}

	if got := normalizeValue(int64(7)); got != int64(7) {
		t.Errorf("passthrough = %v", got)
	}
}

func TestMapError(t *testing.T) {
	if MapError(nil) != nil {
		t.Error("nil should stay nil")
	}
	if !errors.Is(MapError(sql.ErrNoRows), ErrNotFound) {
		t.Error("ErrNoRows should map to ErrNotFound")
	}

	unique := &pgconn.PgError{Code: "23505", Detail: "Key (email) already exists."}
	mapped := MapError(unique)
	if !errors.Is(mapped, ErrUniqueViolation) {
		t.Error("23505 should map to ErrUniqueViolation")
	}
	// The driver error stays reachable for detail extraction.
	if ConstraintDetail(mapped) != "Key (email) already exists." {
		t.Errorf("detail = %q", ConstraintDetail(mapped))
	}

	if !errors.Is(MapError(&pgconn.PgError{Code: "23503"}), ErrForeignKeyViolation) {
		t.Error("23503 should map to ErrForeignKeyViolation")
	}
	if !errors.Is(MapError(&pgconn.PgError{Code: "42703"}), ErrUndefinedColumn) {
		t.Error("42703 should map to ErrUndefinedColumn")
	}

	other := errors.New("boom")
	if MapError(other) != other {
		t.Error("unrelated errors pass through")
	}
}
