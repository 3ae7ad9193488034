package ledger

import (
	"sort"

	"github.com/shopspring/decimal"
)

// DefaultRecentLimit is used by RecentTransactions when n <= 0.
const DefaultRecentLimit = 5

// CategoryTotal is the confirmed expense total of one category.
type CategoryTotal struct {
	Category Category        `json:"category"`
	Name     string          `json:"name"`
	Total    decimal.Decimal `json:"total"`
	Count    int             `json:"count"`
}

// Stats returns a copy of the current statistics.
func (s *Store) Stats() UserStats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.state.UserStats.clone()
}

// Mood returns the current mood.
func (s *Store) Mood() PetMood {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.state.PetMood.clone()
}

// Transactions returns a copy of every transaction in insertion order.
func (s *Store) Transactions() []Transaction {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Transaction, len(s.state.Transactions))
	copy(out, s.state.Transactions)
	return out
}

// Transaction looks up a transaction by id.
func (s *Store) Transaction(id string) (Transaction, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if i := s.indexLocked(id); i >= 0 {
		return s.state.Transactions[i], true
	}
	return Transaction{}, false
}

// ChatHistory returns a copy of the chat history in order.
func (s *Store) ChatHistory() []ChatMessage {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]ChatMessage, len(s.state.ChatHistory))
	for i, m := range s.state.ChatHistory {
		out[i] = m.clone()
	}
	return out
}

// Snapshot returns a deep copy of the whole state.
func (s *Store) Snapshot() AppState {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.state.Clone()
}

// MoneyLeftToSpend is the monthly budget minus all confirmed expenses.
func (s *Store) MoneyLeftToSpend() decimal.Decimal {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.state.UserStats.MonthlyBudget.Sub(s.state.UserStats.TotalExpenses)
}

// CurrentMonthExpenses sums confirmed expenses dated in the current calendar month.
func (s *Store) CurrentMonthExpenses() decimal.Decimal {
	s.mu.RLock()
	defer s.mu.RUnlock()

	now := s.clock()
	year, month, _ := now.Date()

	total := decimal.Zero
	for _, t := range s.state.Transactions {
		if t.Type != Expense || !t.IsConfirmed {
			continue
		}
		y, m, _ := t.Date.In(now.Location()).Date()
		if y == year && m == month {
			total = total.Add(t.Amount)
		}
	}
	return total
}

// RecentTransactions returns the n newest confirmed transactions, newest first.
func (s *Store) RecentTransactions(n int) []Transaction {
	if n <= 0 {
		n = DefaultRecentLimit
	}

	s.mu.RLock()
	confirmed := make([]Transaction, 0, len(s.state.Transactions))
	for _, t := range s.state.Transactions {
		if t.IsConfirmed {
			confirmed = append(confirmed, t)
		}
	}
	s.mu.RUnlock()

	sort.SliceStable(confirmed, func(i, j int) bool {
		return confirmed[i].Date.After(confirmed[j].Date)
	})

	if len(confirmed) > n {
		confirmed = confirmed[:n]
	}
	return confirmed
}

// TodayTransactions returns every transaction, confirmed or not, dated today.
func (s *Store) TodayTransactions() []Transaction {
	s.mu.RLock()
	defer s.mu.RUnlock()

	now := s.clock()
	out := []Transaction{}
	for _, t := range s.state.Transactions {
		if sameDay(t.Date, now) {
			out = append(out, t)
		}
	}
	return out
}

// CategoryBreakdown returns confirmed expense totals per category in category order,
// skipping categories with no expenses.
func (s *Store) CategoryBreakdown() []CategoryTotal {
	s.mu.RLock()
	defer s.mu.RUnlock()

	totals := make(map[Category]*CategoryTotal)
	for _, t := range s.state.Transactions {
		if t.Type != Expense || !t.IsConfirmed {
			continue
		}
		ct, ok := totals[t.Category]
		if !ok {
			ct = &CategoryTotal{Category: t.Category, Name: t.Category.DisplayName(), Total: decimal.Zero}
			totals[t.Category] = ct
		}
		ct.Total = ct.Total.Add(t.Amount)
		ct.Count++
	}

	out := make([]CategoryTotal, 0, len(totals))
	for _, c := range Categories {
		if ct, ok := totals[c]; ok {
			out = append(out, *ct)
		}
	}
	return out
}
