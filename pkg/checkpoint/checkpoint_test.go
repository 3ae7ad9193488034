package checkpoint

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"chat-to-rich/pkg/ledger"
	"chat-to-rich/pkg/writer"
)

type countingStore struct {
	n atomic.Int64
}

func (c *countingStore) Persist() {
	c.n.Add(1)
}

type fixedStats writer.AsyncWriterStats

func (f fixedStats) Stats() writer.AsyncWriterStats {
	return writer.AsyncWriterStats(f)
}

func TestNew_InvalidSchedule(t *testing.T) {
	for _, schedule := range []string{"", "every minute", "* * *", "@every"} {
		if _, err := New(&countingStore{}, schedule); err == nil {
			t.Errorf("Expected error for schedule %q", schedule)
		}
	}
}

func TestRun(t *testing.T) {
	store := &countingStore{}
	s, err := New(store, "@every 1h", WithStats(fixedStats{CompletedWrites: 3}))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	s.Run()
	s.Run()

	if store.n.Load() != 2 || s.Runs() != 2 {
		t.Errorf("Expected 2 checkpoints, got store=%d runs=%d", store.n.Load(), s.Runs())
	}
}

func TestRun_UnhealthyWriter(t *testing.T) {
	store := &countingStore{}
	s, err := New(store, "*/5 * * * *", WithStats(fixedStats{FailedWrites: 1, LastError: "redis: connection refused"}))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	s.Run()
	if store.n.Load() != 1 {
		t.Error("Expected a checkpoint even when the writer is unhealthy")
	}
}

func TestScheduler_FiresOnSchedule(t *testing.T) {
	if testing.Short() {
		t.Skip("waits for the cron tick")
	}

	store := &countingStore{}
	s, err := New(store, "@every 1s")
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	s.Start()

	deadline := time.Now().Add(3 * time.Second)
	for store.n.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(50 * time.Millisecond)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := s.Stop(ctx); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}

	if store.n.Load() == 0 {
		t.Fatal("Expected at least one scheduled checkpoint")
	}

	after := store.n.Load()
	time.Sleep(1200 * time.Millisecond)
	if store.n.Load() != after {
		t.Error("Expected no checkpoints after Stop")
	}
}

func TestScheduler_PersistsLedger(t *testing.T) {
	var saves atomic.Int64
	store := ledger.NewStore(ledger.Config{Persister: persisterFunc(func() { saves.Add(1) })})

	s, err := New(store, "@daily")
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	s.Run()

	if saves.Load() != 1 {
		t.Errorf("Expected one save from the checkpoint, got %d", saves.Load())
	}
}

type persisterFunc func()

func (f persisterFunc) Save(ctx context.Context, state ledger.AppState) error {
	f()
	return nil
}

func (f persisterFunc) Load(ctx context.Context) (ledger.AppState, bool, error) {
	return ledger.AppState{}, false, nil
}
