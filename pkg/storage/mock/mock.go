package mock

import (
	"context"
	"sync/atomic"

	"chat-to-rich/pkg/storage"
)

// MockBackend is a mock implementation of storage.Backend for testing.
// It allows injecting custom behavior for each method and tracks call counts.
type MockBackend struct {
	// Function hooks - set these to customize behavior
	GetFunc    func(ctx context.Context, key string) ([]byte, error)
	SetFunc    func(ctx context.Context, key string, value []byte) error
	DeleteFunc func(ctx context.Context, key string) error
	NameFunc   func() string
	CloseFunc  func() error

	// Call tracking (must use atomic operations for race-free access)
	getCalls    int64
	setCalls    int64
	deleteCalls int64
	closeCalls  int64
}

// Get implements storage.Backend.Get. Without a hook it reports a missing key.
func (m *MockBackend) Get(ctx context.Context, key string) ([]byte, error) {
	atomic.AddInt64(&m.getCalls, 1)
	if m.GetFunc != nil {
		return m.GetFunc(ctx, key)
	}
	return nil, storage.ErrKeyNotFound
}

// Set implements storage.Backend.Set.
func (m *MockBackend) Set(ctx context.Context, key string, value []byte) error {
	atomic.AddInt64(&m.setCalls, 1)
	if m.SetFunc != nil {
		return m.SetFunc(ctx, key, value)
	}
	return nil
}

// Delete implements storage.Backend.Delete.
func (m *MockBackend) Delete(ctx context.Context, key string) error {
	atomic.AddInt64(&m.deleteCalls, 1)
	if m.DeleteFunc != nil {
		return m.DeleteFunc(ctx, key)
	}
	return nil
}

// Name implements storage.Backend.Name.
func (m *MockBackend) Name() string {
	if m.NameFunc != nil {
		return m.NameFunc()
	}
	return "mock"
}

// Close implements storage.Backend.Close.
func (m *MockBackend) Close() error {
	atomic.AddInt64(&m.closeCalls, 1)
	if m.CloseFunc != nil {
		return m.CloseFunc()
	}
	return nil
}

// GetCalls returns the number of Get calls (thread-safe).
func (m *MockBackend) GetCalls() int {
	return int(atomic.LoadInt64(&m.getCalls))
}

// SetCalls returns the number of Set calls (thread-safe).
func (m *MockBackend) SetCalls() int {
	return int(atomic.LoadInt64(&m.setCalls))
}

// DeleteCalls returns the number of Delete calls (thread-safe).
func (m *MockBackend) DeleteCalls() int {
	return int(atomic.LoadInt64(&m.deleteCalls))
}

// CloseCalls returns the number of Close calls (thread-safe).
func (m *MockBackend) CloseCalls() int {
	return int(atomic.LoadInt64(&m.closeCalls))
}

// NewMockBackend creates a MockBackend with the given name and default behavior.
func NewMockBackend(name string) *MockBackend {
	return &MockBackend{
		NameFunc: func() string { return name },
	}
}

// NewFailingBackend creates a MockBackend whose every operation returns err.
func NewFailingBackend(name string, err error) *MockBackend {
	return &MockBackend{
		NameFunc: func() string { return name },
		GetFunc: func(ctx context.Context, key string) ([]byte, error) {
			return nil, err
		},
		SetFunc: func(ctx context.Context, key string, value []byte) error {
			return err
		},
		DeleteFunc: func(ctx context.Context, key string) error {
			return err
		},
	}
}
