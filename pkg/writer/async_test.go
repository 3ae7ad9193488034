package writer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	metricsmemory "chat-to-rich/pkg/metrics/memory"
	"chat-to-rich/pkg/storage/memory"
	"chat-to-rich/pkg/storage/mock"
)

// gatedBackend blocks every Set until release is closed and reports when a Set starts.
func gatedBackend(name string) (*mock.MockBackend, chan struct{}, chan string, *sync.Map) {
	release := make(chan struct{})
	started := make(chan string, 16)
	stored := &sync.Map{}

	b := mock.NewMockBackend(name)
	b.SetFunc = func(ctx context.Context, key string, value []byte) error {
		started <- string(value)
		<-release
		stored.Store(key, string(value))
		return nil
	}
	return b, release, started, stored
}

func TestNewAsyncWriter_Defaults(t *testing.T) {
	w := NewAsyncWriter(mock.NewMockBackend("bolt"), AsyncWriterConfig{})
	defer w.Close()

	if w.config.MaxPendingKeys != 64 {
		t.Errorf("Expected default MaxPendingKeys 64, got %d", w.config.MaxPendingKeys)
	}
	if w.config.WriteTimeout != 5*time.Second {
		t.Errorf("Expected default WriteTimeout 5s, got %v", w.config.WriteTimeout)
	}
	if w.Name() != "bolt" {
		t.Errorf("Expected name 'bolt', got %q", w.Name())
	}
}

func TestAsyncWriter_WriteAndFlush(t *testing.T) {
	backend := memory.NewMemoryBackend(memory.MemoryBackendConfig{Name: "local"})
	w := NewAsyncWriter(backend, AsyncWriterConfig{})
	defer w.Close()

	ctx := context.Background()
	for i := 1; i <= 20; i++ {
		if err := w.Write(ctx, "snap", []byte(fmt.Sprintf("v%d", i))); err != nil {
			t.Fatalf("Write %d failed: %v", i, err)
		}
	}

	if err := w.Flush(time.Second); err != nil {
		t.Fatalf("Flush failed: %v", err)
	}

	got, err := backend.Get(ctx, "snap")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if string(got) != "v20" {
		t.Errorf("Expected latest payload 'v20', got %q", got)
	}

	stats := w.Stats()
	if stats.TotalWrites != 20 {
		t.Errorf("Expected 20 accepted writes, got %d", stats.TotalWrites)
	}
	if stats.CompletedWrites+stats.CoalescedWrites != 20 {
		t.Errorf("Expected every write to be completed or coalesced, got %+v", stats)
	}
	if stats.QueueDepth != 0 {
		t.Errorf("Expected empty queue after flush, got %d", stats.QueueDepth)
	}
	if stats.LastWriteAt.IsZero() || !stats.Healthy() {
		t.Errorf("Expected a healthy writer with a last write time, got %+v", stats)
	}
}

func TestAsyncWriter_LatestWriteWins(t *testing.T) {
	backend, release, started, stored := gatedBackend("slow")
	collector := metricsmemory.NewMemoryCollector()
	w := NewAsyncWriterWithMetrics(backend, AsyncWriterConfig{}, collector)
	defer w.Close()

	ctx := context.Background()
	w.Write(ctx, "snap", []byte("v1"))
	if v := <-started; v != "v1" {
		t.Fatalf("Expected v1 in flight, got %q", v)
	}

	// v2 is replaced by v3 before the worker gets to it
	w.Write(ctx, "snap", []byte("v2"))
	w.Write(ctx, "snap", []byte("v3"))

	close(release)
	if err := w.Flush(time.Second); err != nil {
		t.Fatalf("Flush failed: %v", err)
	}

	if v, _ := stored.Load("snap"); v != "v3" {
		t.Errorf("Expected 'v3' to win, got %v", v)
	}
	if backend.SetCalls() != 2 {
		t.Errorf("Expected 2 backend writes (v1, v3), got %d", backend.SetCalls())
	}
	if w.Stats().CoalescedWrites != 1 {
		t.Errorf("Expected 1 coalesced write, got %d", w.Stats().CoalescedWrites)
	}
	if bm := collector.Backend("slow"); bm == nil || bm.CoalescedWrites != 1 || bm.AsyncWrites != 2 {
		t.Errorf("Unexpected metrics: %+v", bm)
	}
}

func TestAsyncWriter_QueueFull(t *testing.T) {
	backend, release, started, _ := gatedBackend("slow")
	w := NewAsyncWriter(backend, AsyncWriterConfig{MaxPendingKeys: 1})
	defer w.Close()
	defer close(release)

	ctx := context.Background()
	if err := w.Write(ctx, "a", []byte("1")); err != nil {
		t.Fatalf("Write a failed: %v", err)
	}
	<-started

	if err := w.Write(ctx, "b", []byte("1")); err != nil {
		t.Fatalf("Write b failed: %v", err)
	}
	if err := w.Write(ctx, "c", []byte("1")); !errors.Is(err, ErrQueueFull) {
		t.Errorf("Expected ErrQueueFull, got %v", err)
	}
	if err := w.Write(ctx, "b", []byte("2")); err != nil {
		t.Errorf("Rewriting a pending key should not be rejected, got %v", err)
	}

	if w.Stats().DroppedWrites != 1 {
		t.Errorf("Expected 1 dropped write, got %d", w.Stats().DroppedWrites)
	}
}

func TestAsyncWriter_FlushTimeout(t *testing.T) {
	backend, release, started, _ := gatedBackend("slow")
	w := NewAsyncWriter(backend, AsyncWriterConfig{})
	defer w.Close()
	defer close(release)

	w.Write(context.Background(), "snap", []byte("v1"))
	<-started

	if err := w.Flush(20 * time.Millisecond); !errors.Is(err, ErrFlushTimeout) {
		t.Errorf("Expected ErrFlushTimeout, got %v", err)
	}
}

func TestAsyncWriter_FailuresAreCounted(t *testing.T) {
	backend := mock.NewFailingBackend("redis", errors.New("dial tcp: refused"))
	w := NewAsyncWriter(backend, AsyncWriterConfig{})
	defer w.Close()

	w.Write(context.Background(), "snap", []byte("v1"))
	if err := w.Flush(time.Second); err != nil {
		t.Fatalf("Flush failed: %v", err)
	}

	stats := w.Stats()
	if stats.FailedWrites != 1 {
		t.Errorf("Expected 1 failed write, got %d", stats.FailedWrites)
	}
	if stats.LastError == "" || stats.Healthy() {
		t.Errorf("Expected last error to be recorded, got %+v", stats)
	}
}

func TestAsyncWriter_CloseDrains(t *testing.T) {
	backend := memory.NewMemoryBackend(memory.MemoryBackendConfig{Name: "local"})
	w := NewAsyncWriter(backend, AsyncWriterConfig{})

	ctx := context.Background()
	w.Write(ctx, "a", []byte("1"))
	w.Write(ctx, "b", []byte("2"))

	if err := w.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Errorf("Second Close failed: %v", err)
	}

	for key, want := range map[string]string{"a": "1", "b": "2"} {
		got, err := backend.Get(ctx, key)
		if err != nil || string(got) != want {
			t.Errorf("Expected %s=%s after Close, got %q, %v", key, want, got, err)
		}
	}

	if err := w.Write(ctx, "a", []byte("3")); !errors.Is(err, ErrWriterClosed) {
		t.Errorf("Expected ErrWriterClosed, got %v", err)
	}
}

func TestAsyncWriter_RejectsBadInput(t *testing.T) {
	w := NewAsyncWriter(mock.NewMockBackend("bolt"), AsyncWriterConfig{})
	defer w.Close()

	if err := w.Write(context.Background(), "", []byte("v")); err == nil {
		t.Error("Expected error for empty key")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := w.Write(ctx, "snap", []byte("v")); !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
}
