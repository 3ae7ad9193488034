package ledger

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ErrInvalidTransaction is returned by NewTransaction.Validate and TransactionUpdate.Validate.
var ErrInvalidTransaction = errors.New("ledger: invalid transaction")

// DefaultMonthlyBudget is the budget a fresh ledger starts with.
var DefaultMonthlyBudget = decimal.NewFromInt(3000)

// Category is one of a fixed set of spending buckets.
type Category string

const (
	CategoryFood          Category = "food"
	CategoryTransport     Category = "transport"
	CategoryShopping      Category = "shopping"
	CategoryEntertainment Category = "entertainment"
	CategoryBills         Category = "bills"
	CategoryHealth        Category = "health"
	CategoryIncome        Category = "income"
	CategoryOther         Category = "other"
)

// Categories lists every category in display order.
var Categories = []Category{
	CategoryFood,
	CategoryTransport,
	CategoryShopping,
	CategoryEntertainment,
	CategoryBills,
	CategoryHealth,
	CategoryIncome,
	CategoryOther,
}

var categoryNames = map[Category]string{
	CategoryFood:          "Food & Dining",
	CategoryTransport:     "Transport",
	CategoryShopping:      "Shopping",
	CategoryEntertainment: "Entertainment",
	CategoryBills:         "Bills & Utilities",
	CategoryHealth:        "Health & Fitness",
	CategoryIncome:        "Income",
	CategoryOther:         "Other",
}

// Valid reports whether c is a known category.
func (c Category) Valid() bool {
	_, ok := categoryNames[c]
	return ok
}

// DisplayName returns the human label for c, e.g. "Food & Dining".
func (c Category) DisplayName() string {
	if name, ok := categoryNames[c]; ok {
		return name
	}
	return categoryNames[CategoryOther]
}

// ParseCategory accepts a category id in any case.
func ParseCategory(s string) (Category, error) {
	c := Category(strings.ToLower(strings.TrimSpace(s)))
	if !c.Valid() {
		return "", fmt.Errorf("%w: unknown category %q", ErrInvalidTransaction, s)
	}
	return c, nil
}

// TransactionType is the direction of a transaction.
type TransactionType string

const (
	Income  TransactionType = "income"
	Expense TransactionType = "expense"
)

// Valid reports whether t is income or expense.
func (t TransactionType) Valid() bool {
	return t == Income || t == Expense
}

// ParseTransactionType accepts "income" or "expense" in any case.
func ParseTransactionType(s string) (TransactionType, error) {
	t := TransactionType(strings.ToLower(strings.TrimSpace(s)))
	if !t.Valid() {
		return "", fmt.Errorf("%w: unknown type %q", ErrInvalidTransaction, s)
	}
	return t, nil
}

// Transaction is a single ledger entry. Only confirmed transactions count toward UserStats.
type Transaction struct {
	ID          string          `json:"id"`
	Title       string          `json:"title"`
	Amount      decimal.Decimal `json:"amount"`
	Category    Category        `json:"category"`
	Type        TransactionType `json:"type"`
	Date        time.Time       `json:"date"`
	IsConfirmed bool            `json:"isConfirmed"`
}

// NewTransaction is the input to Store.AddTransaction. A zero Date means now.
type NewTransaction struct {
	Title       string          `json:"title"`
	Amount      decimal.Decimal `json:"amount"`
	Category    Category        `json:"category"`
	Type        TransactionType `json:"type"`
	Date        time.Time       `json:"date"`
	IsConfirmed bool            `json:"isConfirmed"`
}

// Validate rejects input the store should never see: an empty title,
// a non-positive amount, or an unknown category or type.
func (n NewTransaction) Validate() error {
	if strings.TrimSpace(n.Title) == "" {
		return fmt.Errorf("%w: title is required", ErrInvalidTransaction)
	}
	if !n.Amount.IsPositive() {
		return fmt.Errorf("%w: amount must be positive", ErrInvalidTransaction)
	}
	if !n.Category.Valid() {
		return fmt.Errorf("%w: unknown category %q", ErrInvalidTransaction, n.Category)
	}
	if !n.Type.Valid() {
		return fmt.Errorf("%w: unknown type %q", ErrInvalidTransaction, n.Type)
	}
	return nil
}

// TransactionUpdate carries the fields to change on an existing transaction. Nil fields are kept.
type TransactionUpdate struct {
	Title       *string          `json:"title,omitempty"`
	Amount      *decimal.Decimal `json:"amount,omitempty"`
	Category    *Category        `json:"category,omitempty"`
	Type        *TransactionType `json:"type,omitempty"`
	Date        *time.Time       `json:"date,omitempty"`
	IsConfirmed *bool            `json:"isConfirmed,omitempty"`
}

// Validate applies the same rules as NewTransaction.Validate to the fields present.
func (u TransactionUpdate) Validate() error {
	if u.Title != nil && strings.TrimSpace(*u.Title) == "" {
		return fmt.Errorf("%w: title is required", ErrInvalidTransaction)
	}
	if u.Amount != nil && !u.Amount.IsPositive() {
		return fmt.Errorf("%w: amount must be positive", ErrInvalidTransaction)
	}
	if u.Category != nil && !u.Category.Valid() {
		return fmt.Errorf("%w: unknown category %q", ErrInvalidTransaction, *u.Category)
	}
	if u.Type != nil && !u.Type.Valid() {
		return fmt.Errorf("%w: unknown type %q", ErrInvalidTransaction, *u.Type)
	}
	return nil
}

// apply returns t with the present fields of u replaced.
func (u TransactionUpdate) apply(t Transaction) Transaction {
	if u.Title != nil {
		t.Title = *u.Title
	}
	if u.Amount != nil {
		t.Amount = *u.Amount
	}
	if u.Category != nil {
		t.Category = *u.Category
	}
	if u.Type != nil {
		t.Type = *u.Type
	}
	if u.Date != nil {
		t.Date = *u.Date
	}
	if u.IsConfirmed != nil {
		t.IsConfirmed = *u.IsConfirmed
	}
	return t
}

// UserStats are the running totals derived from confirmed transactions.
// CurrentBalance always equals TotalIncome minus TotalExpenses.
type UserStats struct {
	CurrentBalance   decimal.Decimal `json:"currentBalance"`
	MonthlyBudget    decimal.Decimal `json:"monthlyBudget"`
	TotalExpenses    decimal.Decimal `json:"totalExpenses"`
	TotalIncome      decimal.Decimal `json:"totalIncome"`
	Streak           int             `json:"streak"`
	LastActivityDate *time.Time      `json:"lastActivityDate"`
}

// add applies t's contribution to the totals; sign is +1 to apply and -1 to reverse.
func (s *UserStats) add(t Transaction, sign int64) {
	amount := t.Amount.Mul(decimal.NewFromInt(sign))
	switch t.Type {
	case Income:
		s.TotalIncome = s.TotalIncome.Add(amount)
		s.CurrentBalance = s.CurrentBalance.Add(amount)
	case Expense:
		s.TotalExpenses = s.TotalExpenses.Add(amount)
		s.CurrentBalance = s.CurrentBalance.Sub(amount)
	}
}

// Expression is the mood the pet shows.
type Expression string

const (
	Rich    Expression = "rich"
	Poor    Expression = "poor"
	Neutral Expression = "neutral"
)

// Accessory tags the pet wears for a mood.
const (
	AccessorySunglasses  = "sunglasses"
	AccessoryGoldChain   = "gold-chain"
	AccessoryBeggingBowl = "begging-bowl"
)

// PetMood is derived from UserStats by ComputeMood.
type PetMood struct {
	Expression  Expression `json:"expression"`
	Accessories []string   `json:"accessories"`
}

// MessageType tags a chat message.
type MessageType string

const (
	MessageUser            MessageType = "user"
	MessageSystem          MessageType = "system"
	MessageTransactionCard MessageType = "transaction-card"
)

// Valid reports whether m is a known message type.
func (m MessageType) Valid() bool {
	return m == MessageUser || m == MessageSystem || m == MessageTransactionCard
}

// ChatMessage is one entry of the append-only chat history.
type ChatMessage struct {
	ID          string       `json:"id"`
	Content     string       `json:"content"`
	Type        MessageType  `json:"type"`
	Timestamp   time.Time    `json:"timestamp"`
	Transaction *Transaction `json:"transaction,omitempty"`
}

// NewChatMessage is the input to Store.AddChatMessage.
type NewChatMessage struct {
	Content     string
	Type        MessageType
	Transaction *Transaction
}

// AppState is the unit of persistence.
type AppState struct {
	UserStats    UserStats     `json:"userStats"`
	Transactions []Transaction `json:"transactions"`
	ChatHistory  []ChatMessage `json:"chatHistory"`
	PetMood      PetMood       `json:"petMood"`
}

// InitialState returns the state of a first run.
func InitialState() AppState {
	stats := UserStats{
		CurrentBalance: decimal.Zero,
		MonthlyBudget:  DefaultMonthlyBudget,
		TotalExpenses:  decimal.Zero,
		TotalIncome:    decimal.Zero,
	}
	return AppState{
		UserStats:    stats,
		Transactions: []Transaction{},
		ChatHistory:  []ChatMessage{},
		PetMood:      ComputeMood(stats),
	}
}

// Clone returns a deep copy of s.
func (s AppState) Clone() AppState {
	out := AppState{
		UserStats:    s.UserStats.clone(),
		Transactions: make([]Transaction, len(s.Transactions)),
		ChatHistory:  make([]ChatMessage, len(s.ChatHistory)),
		PetMood:      s.PetMood.clone(),
	}
	copy(out.Transactions, s.Transactions)
	for i, m := range s.ChatHistory {
		out.ChatHistory[i] = m.clone()
	}
	return out
}

func (s UserStats) clone() UserStats {
	if s.LastActivityDate != nil {
		d := *s.LastActivityDate
		s.LastActivityDate = &d
	}
	return s
}

func (m PetMood) clone() PetMood {
	acc := make([]string, len(m.Accessories))
	copy(acc, m.Accessories)
	m.Accessories = acc
	return m
}

func (m ChatMessage) clone() ChatMessage {
	if m.Transaction != nil {
		t := *m.Transaction
		m.Transaction = &t
	}
	return m
}
