package storage

import (
	"fmt"
	"strings"
	"unicode"
)

// DefaultSnapshotKey is the slot the ledger snapshot lives in when no profile is configured.
const DefaultSnapshotKey = "@chat-to-rich-data"

// MaxKeyLength is the longest key any backend accepts.
const MaxKeyLength = 250

// ValidateKey checks that key can be used with every backend.
//
// Rules:
// - Non-empty string
// - At most MaxKeyLength bytes
// - No control characters
// - No leading or trailing whitespace
func ValidateKey(key string) error {
	if key == "" {
		return ErrInvalidKey
	}

	if len(key) > MaxKeyLength {
		return fmt.Errorf("%w: key too long (max %d characters)", ErrInvalidKey, MaxKeyLength)
	}

	for _, r := range key {
		if unicode.IsControl(r) {
			return fmt.Errorf("%w: key contains control character", ErrInvalidKey)
		}
	}

	if strings.TrimSpace(key) != key {
		return fmt.Errorf("%w: key has leading or trailing whitespace", ErrInvalidKey)
	}

	return nil
}

// KeyPattern builds namespaced keys such as "chat-to-rich:alice:snapshot".
type KeyPattern struct {
	prefix    string
	separator string
}

// NewKeyPattern creates a key pattern with the given prefix and separator (":" when empty).
func NewKeyPattern(prefix, separator string) *KeyPattern {
	if separator == "" {
		separator = ":"
	}
	return &KeyPattern{
		prefix:    prefix,
		separator: separator,
	}
}

// Build joins the prefix and parts with the separator.
// Example: NewKeyPattern("chat-to-rich", "").Build("alice", "snapshot") -> "chat-to-rich:alice:snapshot"
func (kp *KeyPattern) Build(parts ...string) string {
	var b strings.Builder
	b.WriteString(kp.prefix)
	for _, part := range parts {
		b.WriteString(kp.separator)
		b.WriteString(part)
	}
	return b.String()
}

// SnapshotKey returns the slot key for a profile. An empty profile maps to DefaultSnapshotKey
// so single-user installs keep reading the historical slot.
func SnapshotKey(profile string) (string, error) {
	profile = strings.TrimSpace(profile)
	if profile == "" {
		return DefaultSnapshotKey, nil
	}

	key := NewKeyPattern("chat-to-rich", ":").Build(profile, "snapshot")
	if err := ValidateKey(key); err != nil {
		return "", err
	}
	return key, nil
}
