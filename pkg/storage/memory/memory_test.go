package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"chat-to-rich/pkg/storage"
)

func TestMemoryBackend_Get(t *testing.T) {
	backend := NewMemoryBackend(MemoryBackendConfig{Name: "test"})
	defer backend.Close()

	ctx := context.Background()

	// Test Get non-existent key
	_, err := backend.Get(ctx, "nonexistent")
	if !storage.IsNotFound(err) {
		t.Errorf("Expected ErrKeyNotFound, got %v", err)
	}

	// Test Set and Get
	if err := backend.Set(ctx, "key1", []byte("value1")); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	value, err := backend.Get(ctx, "key1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if string(value) != "value1" {
		t.Errorf("Expected 'value1', got %q", value)
	}
}

func TestMemoryBackend_SetOverwrites(t *testing.T) {
	backend := NewMemoryBackend(MemoryBackendConfig{})
	defer backend.Close()

	ctx := context.Background()

	backend.Set(ctx, "snap", []byte("v1"))
	backend.Set(ctx, "snap", []byte("v2"))

	value, err := backend.Get(ctx, "snap")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if string(value) != "v2" {
		t.Errorf("Expected latest payload 'v2', got %q", value)
	}
	if v := backend.Version("snap"); v != 2 {
		t.Errorf("Expected version 2, got %d", v)
	}
}

func TestMemoryBackend_CopiesPayload(t *testing.T) {
	backend := NewMemoryBackend(MemoryBackendConfig{})
	defer backend.Close()

	ctx := context.Background()

	buf := []byte("original")
	backend.Set(ctx, "key", buf)
	buf[0] = 'X'

	got, _ := backend.Get(ctx, "key")
	if string(got) != "original" {
		t.Errorf("Stored payload was aliased: %q", got)
	}

	got[0] = 'Y'
	again, _ := backend.Get(ctx, "key")
	if string(again) != "original" {
		t.Errorf("Returned payload was aliased: %q", again)
	}
}

func TestMemoryBackend_Delete(t *testing.T) {
	backend := NewMemoryBackend(MemoryBackendConfig{Name: "test"})
	defer backend.Close()

	ctx := context.Background()

	if err := backend.Set(ctx, "key1", []byte("value1")); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	if err := backend.Delete(ctx, "key1"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}

	if _, err := backend.Get(ctx, "key1"); !storage.IsNotFound(err) {
		t.Errorf("Expected ErrKeyNotFound after delete, got %v", err)
	}

	// Deleting a missing key is fine
	if err := backend.Delete(ctx, "key1"); err != nil {
		t.Errorf("Delete of missing key failed: %v", err)
	}
}

func TestMemoryBackend_InvalidInput(t *testing.T) {
	backend := NewMemoryBackend(MemoryBackendConfig{})
	defer backend.Close()

	ctx := context.Background()

	if err := backend.Set(ctx, "", []byte("x")); !errors.Is(err, storage.ErrInvalidKey) {
		t.Errorf("Expected ErrInvalidKey for empty key, got %v", err)
	}
	if err := backend.Set(ctx, "key", nil); !errors.Is(err, storage.ErrInvalidValue) {
		t.Errorf("Expected ErrInvalidValue for nil payload, got %v", err)
	}
	if _, err := backend.Get(ctx, "bad\nkey"); !errors.Is(err, storage.ErrInvalidKey) {
		t.Errorf("Expected ErrInvalidKey for control character, got %v", err)
	}
}

func TestMemoryBackend_Closed(t *testing.T) {
	backend := NewMemoryBackend(MemoryBackendConfig{})
	backend.Close()

	ctx := context.Background()

	if err := backend.Set(ctx, "key", []byte("x")); !errors.Is(err, storage.ErrClosed) {
		t.Errorf("Expected ErrClosed, got %v", err)
	}
	if _, err := backend.Get(ctx, "key"); !errors.Is(err, storage.ErrClosed) {
		t.Errorf("Expected ErrClosed, got %v", err)
	}
}

func TestMemoryBackend_CancelledContext(t *testing.T) {
	backend := NewMemoryBackend(MemoryBackendConfig{})
	defer backend.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := backend.Set(ctx, "key", []byte("x")); !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
}

func TestMemoryBackend_Stats(t *testing.T) {
	backend := NewMemoryBackend(MemoryBackendConfig{})
	defer backend.Close()

	ctx := context.Background()
	backend.Set(ctx, "a", []byte("123"))
	backend.Set(ctx, "b", []byte("4567"))

	stats := backend.Stats()
	if stats.Keys != 2 {
		t.Errorf("Expected 2 keys, got %d", stats.Keys)
	}
	if stats.Bytes != 7 {
		t.Errorf("Expected 7 bytes, got %d", stats.Bytes)
	}
	if stats.LastWrite.IsZero() {
		t.Error("Expected LastWrite to be set")
	}
}

func TestMemoryBackend_Concurrent(t *testing.T) {
	backend := NewMemoryBackend(MemoryBackendConfig{})
	defer backend.Close()

	ctx := context.Background()
	var wg sync.WaitGroup

	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			key := fmt.Sprintf("key%d", i%5)
			backend.Set(ctx, key, []byte(fmt.Sprintf("v%d", i)))
			backend.Get(ctx, key)
		}(i)
	}

	wg.Wait()

	if stats := backend.Stats(); stats.Keys != 5 {
		t.Errorf("Expected 5 keys, got %d", stats.Keys)
	}
}
