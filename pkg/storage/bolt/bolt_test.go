package bolt

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"chat-to-rich/pkg/storage"
)

func newTestBackend(t *testing.T, path string) *BoltBackend {
	t.Helper()

	b, err := NewBoltBackend(BoltBackendConfig{Path: path})
	if err != nil {
		t.Fatalf("NewBoltBackend failed: %v", err)
	}
	return b
}

func TestNewBoltBackend_RequiresPath(t *testing.T) {
	if _, err := NewBoltBackend(BoltBackendConfig{}); !errors.Is(err, storage.ErrInvalidValue) {
		t.Errorf("Expected ErrInvalidValue, got %v", err)
	}
}

func TestBoltBackend_SetGetDelete(t *testing.T) {
	b := newTestBackend(t, filepath.Join(t.TempDir(), "nested", "ledger.db"))
	defer b.Close()

	ctx := context.Background()

	if b.Name() != "bolt" {
		t.Errorf("Expected default name 'bolt', got %q", b.Name())
	}

	if _, err := b.Get(ctx, storage.DefaultSnapshotKey); !storage.IsNotFound(err) {
		t.Errorf("Expected ErrKeyNotFound on empty database, got %v", err)
	}

	if err := b.Set(ctx, storage.DefaultSnapshotKey, []byte(`{"a":1}`)); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	got, err := b.Get(ctx, storage.DefaultSnapshotKey)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if string(got) != `{"a":1}` {
		t.Errorf("Expected stored payload, got %q", got)
	}

	if err := b.Delete(ctx, storage.DefaultSnapshotKey); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := b.Get(ctx, storage.DefaultSnapshotKey); !storage.IsNotFound(err) {
		t.Errorf("Expected ErrKeyNotFound after delete, got %v", err)
	}
}

func TestBoltBackend_SurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.db")
	ctx := context.Background()

	b := newTestBackend(t, path)
	if err := b.Set(ctx, "snap", []byte("durable")); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if err := b.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	reopened := newTestBackend(t, path)
	defer reopened.Close()

	got, err := reopened.Get(ctx, "snap")
	if err != nil {
		t.Fatalf("Get after reopen failed: %v", err)
	}
	if string(got) != "durable" {
		t.Errorf("Expected 'durable', got %q", got)
	}
}

func TestBoltBackend_InvalidInput(t *testing.T) {
	b := newTestBackend(t, filepath.Join(t.TempDir(), "ledger.db"))
	defer b.Close()

	ctx := context.Background()

	if err := b.Set(ctx, " padded", []byte("x")); !errors.Is(err, storage.ErrInvalidKey) {
		t.Errorf("Expected ErrInvalidKey, got %v", err)
	}
	if err := b.Set(ctx, "key", nil); !errors.Is(err, storage.ErrInvalidValue) {
		t.Errorf("Expected ErrInvalidValue, got %v", err)
	}
}
