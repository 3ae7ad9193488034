package chain

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"chat-to-rich/pkg/storage"
	"chat-to-rich/pkg/storage/memory"
	"chat-to-rich/pkg/storage/mock"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name        string
		backends    []storage.Backend
		expectError bool
		expectedLen int
	}{
		{
			name:        "empty backends",
			backends:    []storage.Backend{},
			expectError: true,
		},
		{
			name:        "single backend",
			backends:    []storage.Backend{mock.NewMockBackend("bolt")},
			expectedLen: 1,
		},
		{
			name: "local and remote",
			backends: []storage.Backend{
				mock.NewMockBackend("bolt"),
				mock.NewMockBackend("redis"),
			},
			expectedLen: 2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := New(tt.backends...)

			if tt.expectError {
				if err == nil {
					t.Error("Expected error but got none")
				}
				return
			}

			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}

			if c.Len() != tt.expectedLen {
				t.Errorf("Expected length %d, got %d", tt.expectedLen, c.Len())
			}
		})
	}
}

func TestChain_Get_PrimaryHit(t *testing.T) {
	primary := mock.NewMockBackend("bolt")
	primary.GetFunc = func(ctx context.Context, key string) ([]byte, error) {
		return []byte("local"), nil
	}
	secondary := mock.NewMockBackend("redis")

	c, _ := New(primary, secondary)

	got, err := c.Get(context.Background(), "snap")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if string(got) != "local" {
		t.Errorf("Expected 'local', got %q", got)
	}
	if secondary.GetCalls() != 0 {
		t.Errorf("Secondary should not be read on primary hit, got %d calls", secondary.GetCalls())
	}
}

func TestChain_Get_FallbackRepairsPrimary(t *testing.T) {
	primary := memory.NewMemoryBackend(memory.MemoryBackendConfig{Name: "local"})
	secondary := memory.NewMemoryBackend(memory.MemoryBackendConfig{Name: "remote"})

	ctx := context.Background()
	secondary.Set(ctx, "snap", []byte("from-remote"))

	c, _ := New(primary, secondary)

	got, err := c.Get(ctx, "snap")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if string(got) != "from-remote" {
		t.Errorf("Expected 'from-remote', got %q", got)
	}

	repaired, err := primary.Get(ctx, "snap")
	if err != nil || string(repaired) != "from-remote" {
		t.Errorf("Expected primary to be repaired, got %q, %v", repaired, err)
	}
}

func TestChain_Get_SkipsFailingBackend(t *testing.T) {
	broken := mock.NewFailingBackend("bolt", storage.ErrLayerUnavailable)
	healthy := mock.NewMockBackend("redis")
	healthy.GetFunc = func(ctx context.Context, key string) ([]byte, error) {
		return []byte("ok"), nil
	}

	c, _ := New(broken, healthy)

	got, err := c.Get(context.Background(), "snap")
	if err != nil || string(got) != "ok" {
		t.Errorf("Expected fallback to healthy backend, got %q, %v", got, err)
	}
}

func TestChain_Get_AllMiss(t *testing.T) {
	c, _ := New(mock.NewMockBackend("a"), mock.NewMockBackend("b"))

	if _, err := c.Get(context.Background(), "snap"); !storage.IsNotFound(err) {
		t.Errorf("Expected ErrKeyNotFound, got %v", err)
	}
}

func TestChain_Get_FailureWinsOverMiss(t *testing.T) {
	diskErr := errors.New("disk io error")

	orders := map[string]func() (storage.Backend, storage.Backend){
		"failing primary": func() (storage.Backend, storage.Backend) {
			return mock.NewFailingBackend("bolt", diskErr), mock.NewMockBackend("redis")
		},
		"failing secondary": func() (storage.Backend, storage.Backend) {
			return mock.NewMockBackend("bolt"), mock.NewFailingBackend("redis", diskErr)
		},
	}

	for name, build := range orders {
		t.Run(name, func(t *testing.T) {
			c, _ := New(build())
			_, err := c.Get(context.Background(), "snap")
			if !errors.Is(err, diskErr) {
				t.Errorf("Expected the backend failure, got %v", err)
			}
			if storage.IsNotFound(err) {
				t.Error("A failing member must not be reported as a miss")
			}
		})
	}
}

func TestChain_Get_CancelledContext(t *testing.T) {
	c, _ := New(mock.NewMockBackend("a"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := c.Get(ctx, "snap"); !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
}

func TestChain_Get_SingleFlight(t *testing.T) {
	var calls int64
	slow := mock.NewMockBackend("slow")
	slow.GetFunc = func(ctx context.Context, key string) ([]byte, error) {
		atomic.AddInt64(&calls, 1)
		time.Sleep(50 * time.Millisecond)
		return []byte("v"), nil
	}

	c, _ := New(slow)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := c.Get(context.Background(), "snap"); err != nil {
				t.Errorf("Get failed: %v", err)
			}
		}()
	}
	wg.Wait()

	if n := atomic.LoadInt64(&calls); n >= 10 {
		t.Errorf("Expected concurrent Gets to be collapsed, got %d backend calls", n)
	}
}

func TestChain_Set_WritesAllAndJoinsErrors(t *testing.T) {
	ok := mock.NewMockBackend("bolt")
	broken := mock.NewFailingBackend("redis", errors.New("dial tcp: refused"))

	c, _ := New(ok, broken)

	err := c.Set(context.Background(), "snap", []byte("v"))
	if err == nil {
		t.Fatal("Expected error from failing backend")
	}
	if ok.SetCalls() != 1 || broken.SetCalls() != 1 {
		t.Errorf("Expected both backends to be written, got %d and %d", ok.SetCalls(), broken.SetCalls())
	}
}

func TestChain_DeleteAndClose(t *testing.T) {
	a := mock.NewMockBackend("a")
	b := mock.NewMockBackend("b")
	c, _ := New(a, b)

	if err := c.Delete(context.Background(), "snap"); err != nil {
		t.Errorf("Delete failed: %v", err)
	}
	if err := c.Close(); err != nil {
		t.Errorf("Close failed: %v", err)
	}
	if a.DeleteCalls() != 1 || b.DeleteCalls() != 1 || a.CloseCalls() != 1 || b.CloseCalls() != 1 {
		t.Error("Expected Delete and Close to reach every backend")
	}
}

func TestChain_Name(t *testing.T) {
	c, _ := New(mock.NewMockBackend("bolt"), mock.NewMockBackend("redis"))

	if c.Name() != "bolt+redis" {
		t.Errorf("Expected 'bolt+redis', got %q", c.Name())
	}
	if c.String() != "chain(2 backends): bolt -> redis" {
		t.Errorf("Unexpected String(): %q", c.String())
	}
	if len(c.Backends()) != 2 {
		t.Errorf("Expected 2 backends, got %d", len(c.Backends()))
	}
}
