package memory

import (
	"sync"
	"time"

	"chat-to-rich/pkg/metrics"
)

// MemoryCollector implements MetricsCollector in memory, for tests and the /status endpoint.
type MemoryCollector struct {
	mu sync.RWMutex

	backends  map[string]*BackendMetrics
	mutations map[string]int64
	balance   float64
}

// BackendMetrics holds the counters for one storage backend.
type BackendMetrics struct {
	Hits    int64
	Misses  int64
	Sets    int64
	Deletes int64
	Errors  int64

	// ErrorsByType is keyed by storage.ClassifyError labels.
	ErrorsByType map[string]int64

	CircuitState metrics.CircuitState
	CircuitOpens int64

	QueueDepth      int
	CoalescedWrites int64
	DroppedWrites   int64
	AsyncWrites     int64
	AsyncErrors     int64

	LastGet   time.Duration
	LastSet   time.Duration
	LastAsync time.Duration
}

// Snapshot is a point-in-time copy of everything collected.
type Snapshot struct {
	Backends  map[string]BackendMetrics
	Mutations map[string]int64
	Balance   float64
}

// NewMemoryCollector creates an empty collector.
func NewMemoryCollector() *MemoryCollector {
	return &MemoryCollector{
		backends:  make(map[string]*BackendMetrics),
		mutations: make(map[string]int64),
	}
}

// backend must be called with mu held.
func (mc *MemoryCollector) backend(name string) *BackendMetrics {
	bm, ok := mc.backends[name]
	if !ok {
		bm = &BackendMetrics{ErrorsByType: make(map[string]int64)}
		mc.backends[name] = bm
	}
	return bm
}

// RecordGet records a snapshot read.
func (mc *MemoryCollector) RecordGet(backend string, found bool, duration time.Duration) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	bm := mc.backend(backend)
	if found {
		bm.Hits++
	} else {
		bm.Misses++
	}
	bm.LastGet = duration
}

// RecordSet records a snapshot write.
func (mc *MemoryCollector) RecordSet(backend string, success bool, duration time.Duration) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	bm := mc.backend(backend)
	bm.Sets++
	if !success {
		bm.Errors++
	}
	bm.LastSet = duration
}

// RecordDelete records a snapshot delete.
func (mc *MemoryCollector) RecordDelete(backend string, success bool, duration time.Duration) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	bm := mc.backend(backend)
	bm.Deletes++
	if !success {
		bm.Errors++
	}
}

// RecordError records a classified error.
func (mc *MemoryCollector) RecordError(backend, operation, errorType string) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	mc.backend(backend).ErrorsByType[errorType]++
}

// RecordCircuitState records a breaker transition; opens are counted on entry only.
func (mc *MemoryCollector) RecordCircuitState(backend string, state metrics.CircuitState) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	bm := mc.backend(backend)
	if bm.CircuitState != metrics.CircuitOpen && state == metrics.CircuitOpen {
		bm.CircuitOpens++
	}
	bm.CircuitState = state
}

// RecordQueueDepth records how many snapshots are waiting.
func (mc *MemoryCollector) RecordQueueDepth(backend string, depth int) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	mc.backend(backend).QueueDepth = depth
}

// RecordWriteCoalesced records a superseded snapshot.
func (mc *MemoryCollector) RecordWriteCoalesced(backend string) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	mc.backend(backend).CoalescedWrites++
}

// RecordWriteDropped records a rejected snapshot.
func (mc *MemoryCollector) RecordWriteDropped(backend string) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	mc.backend(backend).DroppedWrites++
}

// RecordAsyncWrite records a snapshot written in the background.
func (mc *MemoryCollector) RecordAsyncWrite(backend string, success bool, duration time.Duration) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	bm := mc.backend(backend)
	bm.AsyncWrites++
	if !success {
		bm.AsyncErrors++
	}
	bm.LastAsync = duration
}

// RecordMutation records a ledger mutation.
func (mc *MemoryCollector) RecordMutation(operation string) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	mc.mutations[operation]++
}

// RecordBalance records the current balance.
func (mc *MemoryCollector) RecordBalance(balance float64) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	mc.balance = balance
}

// Snapshot returns a deep copy of the current state.
func (mc *MemoryCollector) Snapshot() Snapshot {
	mc.mu.RLock()
	defer mc.mu.RUnlock()

	s := Snapshot{
		Backends:  make(map[string]BackendMetrics, len(mc.backends)),
		Mutations: make(map[string]int64, len(mc.mutations)),
		Balance:   mc.balance,
	}
	for name, bm := range mc.backends {
		c := *bm
		c.ErrorsByType = make(map[string]int64, len(bm.ErrorsByType))
		for k, v := range bm.ErrorsByType {
			c.ErrorsByType[k] = v
		}
		s.Backends[name] = c
	}
	for op, n := range mc.mutations {
		s.Mutations[op] = n
	}
	return s
}

// Backend returns a copy of one backend's metrics, or nil if nothing was recorded for it.
func (mc *MemoryCollector) Backend(name string) *BackendMetrics {
	mc.mu.RLock()
	defer mc.mu.RUnlock()

	bm, ok := mc.backends[name]
	if !ok {
		return nil
	}
	c := *bm
	c.ErrorsByType = make(map[string]int64, len(bm.ErrorsByType))
	for k, v := range bm.ErrorsByType {
		c.ErrorsByType[k] = v
	}
	return &c
}

// Reset clears all collected metrics.
func (mc *MemoryCollector) Reset() {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	mc.backends = make(map[string]*BackendMetrics)
	mc.mutations = make(map[string]int64)
	mc.balance = 0
}
