package storage

import (
	"database/sql"
	"errors"
	"testing"

	"github.com/lib/pq"
)

func TestCheckDuplicate(t *testing.T) {
	unique := &pq.Error{Code: "23505", Constraint: "seed_keys_client_id_name_key"}
	if err := checkDuplicate(unique); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate for a unique violation, got %v", err)
	}

	foreignKey := &pq.Error{Code: "23503"}
	if err := checkDuplicate(foreignKey); err != foreignKey {
		t.Fatalf("other postgres errors must pass through, got %v", err)
	}
	if err := checkDuplicate(sql.ErrNoRows); err != sql.ErrNoRows {
		t.Fatalf("non-postgres errors must pass through, got %v", err)
	}
	if err := checkDuplicate(nil); err != nil {
		t.Fatalf("expected nil, got %v", err)
	}
}
