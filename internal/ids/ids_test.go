package ids

import (
	"testing"

	"github.com/google/uuid"
)

func TestNewConnKeyUnique(t *testing.T) {
	seen := make(map[string]struct{})
	for i := 0; i < 1000; i++ {
		k := NewConnKey()
		if k == "" {
			t.Fatalf("empty key")
		}
		if _, dup := seen[k]; dup {
			t.Fatalf("duplicate key %q after %d draws", k, i)
		}
		seen[k] = struct{}{}
	}
}

func TestRoomAndRequestIDsAreUUIDs(t *testing.T) {
	for _, id := range []string{NewRoomID(), NewRequestID()} {
		if _, err := uuid.Parse(id); err != nil {
			t.Fatalf("expected uuid, got %q: %v", id, err)
		}
	}
	if NewRoomID() == NewRoomID() {
		t.Fatalf("room ids must differ")
	}
}
