package utils

import (
	"testing"

	"github.com/google/uuid"
)

func TestNewRowUUID(t *testing.T) {
	id := NewRowUUID()

	parsed, err := uuid.Parse(id)
	if err != nil {
		t.Fatalf("generated id %q does not parse: %v", id, err)
	}
	if parsed.Version() != 7 {
		t.Errorf("id version = %d, want 7", parsed.Version())
	}
	if NewRowUUID() == id {
		t.Error("consecutive ids must differ")
	}
}
