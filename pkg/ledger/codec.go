package ledger

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrMalformedSnapshot is returned by DecodeState for payloads that don't have the snapshot shape.
var ErrMalformedSnapshot = errors.New("ledger: malformed snapshot")

// EncodeState serializes state as the snapshot JSON document.
// Amounts are JSON strings and dates RFC 3339 text.
func EncodeState(state AppState) ([]byte, error) {
	if state.Transactions == nil {
		state.Transactions = []Transaction{}
	}
	if state.ChatHistory == nil {
		state.ChatHistory = []ChatMessage{}
	}
	if state.PetMood.Accessories == nil {
		state.PetMood.Accessories = []string{}
	}
	return json.Marshal(state)
}

// wireState detects missing top-level keys.
type wireState struct {
	UserStats    *UserStats     `json:"userStats"`
	Transactions *[]Transaction `json:"transactions"`
	ChatHistory  *[]ChatMessage `json:"chatHistory"`
	PetMood      *PetMood       `json:"petMood"`
}

// DecodeState parses a snapshot document. Numeric amounts written by older versions
// decode as well as string amounts. The stored mood is returned as-is;
// Store.Load recomputes it.
func DecodeState(data []byte) (AppState, error) {
	var w wireState
	if err := json.Unmarshal(data, &w); err != nil {
		return AppState{}, fmt.Errorf("%w: %v", ErrMalformedSnapshot, err)
	}

	switch {
	case w.UserStats == nil:
		return AppState{}, fmt.Errorf("%w: missing userStats", ErrMalformedSnapshot)
	case w.Transactions == nil:
		return AppState{}, fmt.Errorf("%w: missing transactions", ErrMalformedSnapshot)
	case w.ChatHistory == nil:
		return AppState{}, fmt.Errorf("%w: missing chatHistory", ErrMalformedSnapshot)
	}

	state := AppState{
		UserStats:    *w.UserStats,
		Transactions: *w.Transactions,
		ChatHistory:  *w.ChatHistory,
	}
	if w.PetMood != nil {
		state.PetMood = *w.PetMood
	} else {
		state.PetMood = ComputeMood(state.UserStats)
	}

	if state.UserStats.Streak < 0 {
		return AppState{}, fmt.Errorf("%w: negative streak", ErrMalformedSnapshot)
	}
	for i, t := range state.Transactions {
		if err := validateStored(t); err != nil {
			return AppState{}, fmt.Errorf("%w: transaction %d: %v", ErrMalformedSnapshot, i, err)
		}
	}
	for i, m := range state.ChatHistory {
		if m.ID == "" || !m.Type.Valid() {
			return AppState{}, fmt.Errorf("%w: chat message %d: bad id or type %q", ErrMalformedSnapshot, i, m.Type)
		}
		if m.Transaction != nil {
			if err := validateStored(*m.Transaction); err != nil {
				return AppState{}, fmt.Errorf("%w: chat message %d: %v", ErrMalformedSnapshot, i, err)
			}
		}
	}

	return state, nil
}

// validateStored checks what a stored transaction needs to be usable.
// It is looser than NewTransaction.Validate: history may hold zero amounts or blank titles.
func validateStored(t Transaction) error {
	if t.ID == "" {
		return errors.New("missing id")
	}
	if !t.Category.Valid() {
		return fmt.Errorf("unknown category %q", t.Category)
	}
	if !t.Type.Valid() {
		return fmt.Errorf("unknown type %q", t.Type)
	}
	if t.Amount.IsNegative() {
		return errors.New("negative amount")
	}
	return nil
}
