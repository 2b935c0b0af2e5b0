package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Store errors.
var (
	ErrNotFound   = errors.New("message not found")
	ErrExists     = errors.New("message already exists")
	ErrInvalidKey = errors.New("invalid conversation key")
)

// ConversationKey addresses one conversation of one user.
type ConversationKey struct {
	UserID         string
	ConversationID string
}

// Path returns users/{uid}/conversations/{cid}.
func (k ConversationKey) Path() string {
	return fmt.Sprintf("users/%s/conversations/%s", k.UserID, k.ConversationID)
}

// reservedChars separate path segments and backend key parts, so ids must
// not contain them.
const reservedChars = ":/"

// Validate reports whether both ids are set and free of separators.
func (k ConversationKey) Validate() error {
	if k.UserID == "" || k.ConversationID == "" {
		return fmt.Errorf("%w: user and conversation ids are required, got %q/%q", ErrInvalidKey, k.UserID, k.ConversationID)
	}
	if strings.ContainsAny(k.UserID, reservedChars) || strings.ContainsAny(k.ConversationID, reservedChars) {
		return fmt.Errorf("%w: ids must not contain %q, got %q/%q", ErrInvalidKey, reservedChars, k.UserID, k.ConversationID)
	}
	return nil
}

// ValidateID reports whether id is a usable message id.
func ValidateID(id string) error {
	if id == "" || strings.ContainsAny(id, reservedChars) {
		return fmt.Errorf("%w: message id must be set and not contain %q, got %q", ErrInvalidKey, reservedChars, id)
	}
	return nil
}

// Message is one stored conversation turn.
type Message struct {
	ID             string    `json:"id"`
	UserID         string    `json:"uid"`
	ConversationID string    `json:"cid"`
	Role           string    `json:"role"`
	Content        string    `json:"content"`
	Summary        string    `json:"summary,omitempty"`
	CreatedAt      time.Time `json:"createdAt"`
}

// Key returns the conversation the message belongs to.
func (m *Message) Key() ConversationKey {
	return ConversationKey{UserID: m.UserID, ConversationID: m.ConversationID}
}

// Path returns users/{uid}/conversations/{cid}/messages/{mid}.
func (m *Message) Path() string {
	return m.Key().Path() + "/messages/" + m.ID
}

// MessageStore persists conversation messages.
type MessageStore interface {
	// Append stores a new message, filling a missing ID and CreatedAt.
	Append(ctx context.Context, msg *Message) error

	// Get returns one message.
	Get(ctx context.Context, key ConversationKey, id string) (*Message, error)

	// Recent returns the last n messages of a conversation in ascending
	// creation order.
	Recent(ctx context.Context, key ConversationKey, n int) ([]*Message, error)

	// SetSummary writes summary on a message only if it has none yet. It
	// reports whether the write was applied.
	SetSummary(ctx context.Context, key ConversationKey, id, summary string) (bool, error)

	// Close releases backend resources.
	Close() error
}

// Prepare validates msg and fills a missing ID (a UUID) and CreatedAt.
func Prepare(msg *Message, now time.Time) error {
	if err := msg.Key().Validate(); err != nil {
		return err
	}
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if err := ValidateID(msg.ID); err != nil {
		return err
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = now.UTC()
	}
	return nil
}
