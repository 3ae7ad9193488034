package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"chat-to-rich/pkg/ledger"
	"chat-to-rich/pkg/logging"
	"chat-to-rich/pkg/parser"

	"go.uber.org/zap"
)

var (
	// ErrEmptyMessage is returned by Send for blank input. Nothing is recorded.
	ErrEmptyMessage = errors.New("chat: message is empty")

	// ErrTransactionNotFound is returned when an id doesn't name a transaction.
	ErrTransactionNotFound = errors.New("chat: transaction not found")
)

// Exchange is everything one Send added to the ledger.
type Exchange struct {
	Message ledger.ChatMessage `json:"message"`
	Reply   ledger.ChatMessage `json:"reply"`

	// Card and Draft are set when the message contained a positive amount.
	Card  *ledger.ChatMessage `json:"card,omitempty"`
	Draft *ledger.Transaction `json:"draft,omitempty"`
}

// Service drives a conversation: it records what the user typed, replies,
// and turns amounts into unconfirmed transactions the user can confirm, edit or discard.
type Service struct {
	store  *ledger.Store
	parser *parser.Parser
	delay  time.Duration
	logger *logging.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithReplyDelay waits d before replying, like a person typing.
func WithReplyDelay(d time.Duration) Option {
	return func(s *Service) {
		s.delay = d
	}
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(s *Service) {
		s.logger = l
	}
}

// NewService creates a chat service over store. A nil parser uses the default rules.
func NewService(store *ledger.Store, p *parser.Parser, opts ...Option) *Service {
	if p == nil {
		p = parser.NewDefault()
	}
	s := &Service{
		store:  store,
		parser: p,
		logger: logging.Component("chat"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Store returns the ledger the service writes to.
func (s *Service) Store() *ledger.Store {
	return s.store
}

// Send records text as a user message and answers it.
// If ctx ends during the reply delay, the user message stays recorded and ctx.Err() is returned.
func (s *Service) Send(ctx context.Context, text string) (Exchange, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Exchange{}, ErrEmptyMessage
	}

	ex := Exchange{
		Message: s.store.AddChatMessage(ledger.NewChatMessage{Content: text, Type: ledger.MessageUser}),
	}

	if err := s.wait(ctx); err != nil {
		return ex, err
	}

	res := s.parser.Parse(text)
	ex.Reply = s.store.AddChatMessage(ledger.NewChatMessage{Content: res.Acknowledgment, Type: ledger.MessageSystem})

	if res.Draft == nil {
		s.logger.Debug("message without amount", zap.String("message_id", ex.Message.ID))
		return ex, nil
	}

	tx := s.store.AddTransaction(res.Draft.NewTransaction(time.Time{}))
	card := s.store.AddChatMessage(ledger.NewChatMessage{Type: ledger.MessageTransactionCard, Transaction: &tx})
	ex.Draft = &tx
	ex.Card = &card

	s.logger.Debug("draft created",
		zap.String("transaction_id", tx.ID),
		zap.String("category", string(tx.Category)),
		zap.String("type", string(tx.Type)),
		zap.String("amount", tx.Amount.String()),
	)
	return ex, nil
}

func (s *Service) wait(ctx context.Context) error {
	if s.delay <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(s.delay)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Add records a transaction entered directly rather than through a message.
func (s *Service) Add(n ledger.NewTransaction) (ledger.Transaction, error) {
	n.Title = strings.TrimSpace(n.Title)
	if err := n.Validate(); err != nil {
		return ledger.Transaction{}, err
	}
	return s.store.AddTransaction(n), nil
}

// Confirm applies a draft to the stats. Confirming twice is not an error.
func (s *Service) Confirm(id string) (ledger.Transaction, error) {
	if s.store.ConfirmTransaction(id) {
		s.logger.Info("transaction confirmed", zap.String("transaction_id", id))
	}
	t, ok := s.store.Transaction(id)
	if !ok {
		return ledger.Transaction{}, fmt.Errorf("%w: %s", ErrTransactionNotFound, id)
	}
	return t, nil
}

// Edit changes a transaction. Setting IsConfirmed confirms it with the edited values.
func (s *Service) Edit(id string, update ledger.TransactionUpdate) (ledger.Transaction, error) {
	if update.Title != nil {
		title := strings.TrimSpace(*update.Title)
		update.Title = &title
	}
	if err := update.Validate(); err != nil {
		return ledger.Transaction{}, err
	}

	t, ok := s.store.UpdateTransaction(id, update)
	if !ok {
		return ledger.Transaction{}, fmt.Errorf("%w: %s", ErrTransactionNotFound, id)
	}
	return t, nil
}

// Discard deletes a transaction, reversing its effect if it was confirmed.
func (s *Service) Discard(id string) error {
	if !s.store.DeleteTransaction(id) {
		return fmt.Errorf("%w: %s", ErrTransactionNotFound, id)
	}
	s.logger.Info("transaction discarded", zap.String("transaction_id", id))
	return nil
}
