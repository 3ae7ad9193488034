package snapshot

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"chat-to-rich/pkg/ledger"
	"chat-to-rich/pkg/storage"
	"chat-to-rich/pkg/storage/memory"
	"chat-to-rich/pkg/storage/mock"

	"github.com/shopspring/decimal"
)

func newRepo(t *testing.T, backend storage.Backend) *Repository {
	t.Helper()
	repo, err := New(backend, Config{})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	t.Cleanup(func() { _ = repo.Close() })
	return repo
}

func TestNew_Validation(t *testing.T) {
	if _, err := New(nil, Config{}); !errors.Is(err, storage.ErrInvalidValue) {
		t.Errorf("Expected ErrInvalidValue for nil backend, got %v", err)
	}
	if _, err := New(mock.NewMockBackend("m"), Config{Key: " padded "}); !errors.Is(err, storage.ErrInvalidKey) {
		t.Errorf("Expected ErrInvalidKey, got %v", err)
	}

	repo := newRepo(t, mock.NewMockBackend("m"))
	if repo.Key() != storage.DefaultSnapshotKey {
		t.Errorf("Expected default key, got %q", repo.Key())
	}
}

func TestRepository_LoadEmpty(t *testing.T) {
	repo := newRepo(t, memory.NewMemoryBackend(memory.MemoryBackendConfig{}))

	_, ok, err := repo.Load(context.Background())
	if err != nil || ok {
		t.Errorf("Expected (false, nil) for empty slot, got (%v, %v)", ok, err)
	}
}

func TestRepository_StoreRoundTrip(t *testing.T) {
	backend := memory.NewMemoryBackend(memory.MemoryBackendConfig{Name: "local"})
	repo := newRepo(t, backend)

	store := ledger.NewStore(ledger.Config{Persister: repo})
	tx := store.AddTransaction(ledger.NewTransaction{
		Title: "Coffee for", Amount: decimal.RequireFromString("5"), Category: ledger.CategoryFood, Type: ledger.Expense,
	})
	store.ConfirmTransaction(tx.ID)
	store.AddChatMessage(ledger.NewChatMessage{Content: "Bought coffee for $5", Type: ledger.MessageUser})

	if err := repo.Flush(time.Second); err != nil {
		t.Fatalf("Flush failed: %v", err)
	}

	restored := ledger.NewStore(ledger.Config{Persister: repo})
	if err := restored.Load(context.Background()); err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	stats := restored.Stats()
	if !stats.CurrentBalance.Equal(decimal.RequireFromString("-5")) {
		t.Errorf("Expected balance -5, got %s", stats.CurrentBalance)
	}
	if stats.Streak != 1 {
		t.Errorf("Expected streak 1, got %d", stats.Streak)
	}
	if len(restored.Transactions()) != 1 || len(restored.ChatHistory()) != 1 {
		t.Errorf("Expected 1 transaction and 1 message, got %d and %d",
			len(restored.Transactions()), len(restored.ChatHistory()))
	}
}

func TestRepository_LatestSnapshotWins(t *testing.T) {
	backend := memory.NewMemoryBackend(memory.MemoryBackendConfig{})
	repo := newRepo(t, backend)
	store := ledger.NewStore(ledger.Config{Persister: repo})

	for i := 0; i < 50; i++ {
		store.AddTransaction(ledger.NewTransaction{
			Title: "tick", Amount: decimal.NewFromInt(1), Category: ledger.CategoryOther, Type: ledger.Income, IsConfirmed: true,
		})
	}
	if err := repo.Flush(time.Second); err != nil {
		t.Fatalf("Flush failed: %v", err)
	}

	state, ok, err := repo.Load(context.Background())
	if err != nil || !ok {
		t.Fatalf("Load failed: ok=%v err=%v", ok, err)
	}
	if len(state.Transactions) != 50 {
		t.Errorf("Expected the newest snapshot with 50 transactions, got %d", len(state.Transactions))
	}
	if !state.UserStats.TotalIncome.Equal(decimal.NewFromInt(50)) {
		t.Errorf("Expected total income 50, got %s", state.UserStats.TotalIncome)
	}
}

func TestRepository_LoadMalformed(t *testing.T) {
	backend := memory.NewMemoryBackend(memory.MemoryBackendConfig{})
	if err := backend.Set(context.Background(), storage.DefaultSnapshotKey, []byte(`{"userStats":`)); err != nil {
		t.Fatal(err)
	}
	repo := newRepo(t, backend)

	_, ok, err := repo.Load(context.Background())
	if ok {
		t.Error("Expected ok=false for malformed snapshot")
	}
	if !errors.Is(err, ErrMalformed) || !errors.Is(err, ledger.ErrMalformedSnapshot) {
		t.Errorf("Expected ErrMalformed wrapping ErrMalformedSnapshot, got %v", err)
	}

	store := ledger.NewStore(ledger.Config{Persister: repo})
	if err := store.Load(context.Background()); err == nil {
		t.Error("Expected store.Load to report the malformed snapshot")
	}
	if !store.Stats().MonthlyBudget.Equal(ledger.DefaultMonthlyBudget) {
		t.Error("Expected defaults to stay after a malformed load")
	}
}

func TestRepository_LoadBackendError(t *testing.T) {
	repo := newRepo(t, mock.NewFailingBackend("remote", storage.ErrLayerUnavailable))

	_, _, err := repo.Load(context.Background())
	if !errors.Is(err, storage.ErrLayerUnavailable) {
		t.Errorf("Expected ErrLayerUnavailable, got %v", err)
	}
}

func TestRepository_ConcurrentLoadsShareRead(t *testing.T) {
	release := make(chan struct{})
	var reads atomic.Int64

	backend := mock.NewMockBackend("slow")
	backend.GetFunc = func(ctx context.Context, key string) ([]byte, error) {
		reads.Add(1)
		<-release
		return ledger.EncodeState(ledger.InitialState())
	}
	repo := newRepo(t, backend)

	var wg sync.WaitGroup
	errs := make(chan error, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, ok, err := repo.Load(context.Background())
			if err == nil && !ok {
				err = errors.New("expected a snapshot")
			}
			errs <- err
		}()
	}

	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			t.Errorf("Load failed: %v", err)
		}
	}
	if n := reads.Load(); n >= 10 {
		t.Errorf("Expected concurrent loads to share reads, got %d reads", n)
	}
}

func TestRepository_SaveFailureIsCounted(t *testing.T) {
	repo := newRepo(t, mock.NewFailingBackend("broken", storage.ErrLayerUnavailable))

	if err := repo.Save(context.Background(), ledger.InitialState()); err != nil {
		t.Fatalf("Save should only queue, got %v", err)
	}
	if err := repo.Flush(time.Second); err != nil {
		t.Fatalf("Flush failed: %v", err)
	}

	stats := repo.Stats()
	if stats.FailedWrites != 1 || stats.Healthy() {
		t.Errorf("Expected one failed write and unhealthy stats, got %+v", stats)
	}
}

func TestRepository_SaveAfterClose(t *testing.T) {
	repo, err := New(memory.NewMemoryBackend(memory.MemoryBackendConfig{}), Config{})
	if err != nil {
		t.Fatal(err)
	}
	if err := repo.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	if err := repo.Save(context.Background(), ledger.InitialState()); err == nil {
		t.Error("Expected Save after Close to fail")
	}
}

func TestRepository_Clear(t *testing.T) {
	backend := memory.NewMemoryBackend(memory.MemoryBackendConfig{})
	repo := newRepo(t, backend)

	if err := repo.Save(context.Background(), ledger.InitialState()); err != nil {
		t.Fatal(err)
	}
	if err := repo.Clear(context.Background()); err != nil {
		t.Fatalf("Clear failed: %v", err)
	}

	if _, ok, err := repo.Load(context.Background()); ok || err != nil {
		t.Errorf("Expected empty slot after Clear, got ok=%v err=%v", ok, err)
	}
}

func TestRepository_ProfileKey(t *testing.T) {
	backend := memory.NewMemoryBackend(memory.MemoryBackendConfig{})
	key, err := storage.SnapshotKey("alice")
	if err != nil {
		t.Fatal(err)
	}

	repo, err := New(backend, Config{Key: key})
	if err != nil {
		t.Fatal(err)
	}
	defer repo.Close()

	if err := repo.Save(context.Background(), ledger.InitialState()); err != nil {
		t.Fatal(err)
	}
	if err := repo.Flush(time.Second); err != nil {
		t.Fatal(err)
	}

	if _, err := backend.Get(context.Background(), "chat-to-rich:alice:snapshot"); err != nil {
		t.Errorf("Expected snapshot under profile key, got %v", err)
	}
	if _, err := backend.Get(context.Background(), storage.DefaultSnapshotKey); !storage.IsNotFound(err) {
		t.Errorf("Expected default slot untouched, got %v", err)
	}
}
