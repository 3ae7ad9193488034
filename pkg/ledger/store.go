package ledger

import (
	"context"
	"sync"
	"time"

	"chat-to-rich/pkg/logging"
	"chat-to-rich/pkg/metrics"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Persister stores and restores whole AppState snapshots.
// Save must not block on I/O; the store calls it while holding its lock
// so snapshots reach the persister in mutation order.
type Persister interface {
	Save(ctx context.Context, state AppState) error
	// Load returns ok=false when no snapshot has been stored yet.
	Load(ctx context.Context) (state AppState, ok bool, err error)
}

// Config configures a Store. Every field is optional.
type Config struct {
	// Persister receives a snapshot after every mutation. Nil keeps the ledger in memory only.
	Persister Persister

	// Clock returns the current time. Defaults to time.Now.
	Clock func() time.Time

	// NewID generates transaction and message ids. Defaults to random UUIDs.
	NewID func() string

	// MonthlyBudget overrides DefaultMonthlyBudget for a fresh ledger.
	MonthlyBudget *decimal.Decimal

	Metrics metrics.MetricsCollector
	Logger  *logging.Logger
}

// Store owns the transaction ledger, chat history, statistics and mood of one session.
// Every operation is atomic: no caller observes stats that disagree with the transactions.
type Store struct {
	mu    sync.RWMutex
	state AppState

	persister Persister
	clock     func() time.Time
	newID     func() string
	metrics   metrics.MetricsCollector
	logger    *logging.Logger
}

// NewStore returns a store holding the initial state.
func NewStore(config Config) *Store {
	s := &Store{
		state:     InitialState(),
		persister: config.Persister,
		clock:     config.Clock,
		newID:     config.NewID,
		metrics:   config.Metrics,
		logger:    config.Logger,
	}
	if s.clock == nil {
		s.clock = time.Now
	}
	if s.newID == nil {
		s.newID = uuid.NewString
	}
	if s.metrics == nil {
		s.metrics = metrics.NoOpCollector{}
	}
	if s.logger == nil {
		s.logger = logging.Component("ledger")
	}
	if config.MonthlyBudget != nil {
		s.state.UserStats.MonthlyBudget = *config.MonthlyBudget
		s.state.PetMood = ComputeMood(s.state.UserStats)
	}
	return s
}

// AddTransaction appends a transaction with a fresh id.
// A confirmed transaction is applied to the stats immediately.
func (s *Store) AddTransaction(data NewTransaction) Transaction {
	s.mu.Lock()
	defer s.mu.Unlock()

	t := Transaction{
		ID:          s.newID(),
		Title:       data.Title,
		Amount:      data.Amount,
		Category:    data.Category,
		Type:        data.Type,
		Date:        data.Date,
		IsConfirmed: data.IsConfirmed,
	}
	if t.Date.IsZero() {
		t.Date = s.clock()
	}

	s.state.Transactions = append(s.state.Transactions, t)
	if t.IsConfirmed {
		s.state.UserStats.add(t, 1)
	}

	s.changedLocked("add_transaction")
	return t
}

// UpdateTransaction replaces the fields present in update.
// The stats are reconciled: the old version's contribution is reversed if it was confirmed
// and the new version's applied if it is. Confirming through an update also counts toward
// the streak. Returns false if id is unknown.
func (s *Store) UpdateTransaction(id string, update TransactionUpdate) (Transaction, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexLocked(id)
	if i < 0 {
		return Transaction{}, false
	}

	old := s.state.Transactions[i]
	updated := update.apply(old)
	updated.ID = old.ID
	s.state.Transactions[i] = updated

	if old.IsConfirmed {
		s.state.UserStats.add(old, -1)
	}
	if updated.IsConfirmed {
		s.state.UserStats.add(updated, 1)
	}
	if !old.IsConfirmed && updated.IsConfirmed {
		s.updateStreakLocked()
	}

	s.changedLocked("update_transaction")
	return updated, true
}

// DeleteTransaction removes a transaction and reverses its contribution if it was confirmed.
// Returns false if id is unknown.
func (s *Store) DeleteTransaction(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexLocked(id)
	if i < 0 {
		return false
	}

	t := s.state.Transactions[i]
	s.state.Transactions = append(s.state.Transactions[:i:i], s.state.Transactions[i+1:]...)
	if t.IsConfirmed {
		s.state.UserStats.add(t, -1)
	}

	s.changedLocked("delete_transaction")
	return true
}

// ConfirmTransaction applies a pending transaction to the stats and advances the streak.
// It is a no-op returning false when id is unknown or already confirmed.
func (s *Store) ConfirmTransaction(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexLocked(id)
	if i < 0 || s.state.Transactions[i].IsConfirmed {
		return false
	}

	s.state.Transactions[i].IsConfirmed = true
	s.state.UserStats.add(s.state.Transactions[i], 1)
	s.updateStreakLocked()

	s.changedLocked("confirm_transaction")
	return true
}

// AddChatMessage appends a message with a fresh id and the current time.
func (s *Store) AddChatMessage(data NewChatMessage) ChatMessage {
	s.mu.Lock()
	defer s.mu.Unlock()

	m := ChatMessage{
		ID:        s.newID(),
		Content:   data.Content,
		Type:      data.Type,
		Timestamp: s.clock(),
	}
	if data.Transaction != nil {
		t := *data.Transaction
		m.Transaction = &t
	}

	s.state.ChatHistory = append(s.state.ChatHistory, m)

	s.metrics.RecordMutation("add_chat_message")
	s.persistLocked("add_chat_message")
	return m.clone()
}

// UpdateStreak records activity today:
// first activity or a gap of more than one day sets the streak to 1,
// activity the day after the last one increments it, and same-day activity keeps it.
func (s *Store) UpdateStreak() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.updateStreakLocked()
	s.metrics.RecordMutation("update_streak")
	s.persistLocked("update_streak")
}

func (s *Store) updateStreakLocked() {
	now := s.clock()
	s.state.UserStats.Streak = nextStreak(s.state.UserStats.Streak, s.state.UserStats.LastActivityDate, now)
	s.state.UserStats.LastActivityDate = &now
}

// SetMonthlyBudget changes the budget used by MoneyLeftToSpend and the mood.
func (s *Store) SetMonthlyBudget(budget decimal.Decimal) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.state.UserStats.MonthlyBudget = budget
	s.changedLocked("set_monthly_budget")
}

// Load replaces the state with the persisted snapshot, if there is one.
// When nothing is stored, or the snapshot can't be read, the current state is kept
// and the error is logged and returned.
func (s *Store) Load(ctx context.Context) error {
	if s.persister == nil {
		return nil
	}

	state, ok, err := s.persister.Load(ctx)
	if err != nil {
		s.logger.Error("failed to load snapshot, keeping defaults", zap.Error(err))
		return err
	}
	if !ok {
		s.logger.Info("no snapshot stored, starting fresh")
		return nil
	}

	if state.Transactions == nil {
		state.Transactions = []Transaction{}
	}
	if state.ChatHistory == nil {
		state.ChatHistory = []ChatMessage{}
	}
	state.PetMood = ComputeMood(state.UserStats)

	s.mu.Lock()
	s.state = state
	s.mu.Unlock()

	s.metrics.RecordBalance(state.UserStats.CurrentBalance.InexactFloat64())
	s.logger.Info("snapshot loaded",
		zap.Int("transactions", len(state.Transactions)),
		zap.Int("messages", len(state.ChatHistory)),
		zap.String("balance", state.UserStats.CurrentBalance.String()),
	)
	return nil
}

// Persist hands the current state to the persister without mutating it.
func (s *Store) Persist() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.persistLocked("checkpoint")
}

// changedLocked recomputes the mood, reports metrics and persists after a stats-affecting mutation.
func (s *Store) changedLocked(op string) {
	s.state.PetMood = ComputeMood(s.state.UserStats)
	s.metrics.RecordMutation(op)
	s.metrics.RecordBalance(s.state.UserStats.CurrentBalance.InexactFloat64())
	s.persistLocked(op)
}

func (s *Store) persistLocked(op string) {
	if s.persister == nil {
		return
	}
	if err := s.persister.Save(context.Background(), s.state.Clone()); err != nil {
		s.logger.Error("failed to persist snapshot",
			zap.String("operation", op),
			zap.Error(err),
		)
	}
}

func (s *Store) indexLocked(id string) int {
	for i := range s.state.Transactions {
		if s.state.Transactions[i].ID == id {
			return i
		}
	}
	return -1
}
