package store

import (
	"context"
	"time"
)

// PublishingStore wraps a MessageStore and publishes a create event after
// each successful Append.
type PublishingStore struct {
	MessageStore
	publisher Publisher
	now       func() time.Time
}

// NewPublishingStore wraps s.
func NewPublishingStore(s MessageStore, p Publisher) *PublishingStore {
	return &PublishingStore{MessageStore: s, publisher: p, now: time.Now}
}

// Append prepares and stores msg, then publishes it.
func (s *PublishingStore) Append(ctx context.Context, msg *Message) error {
	if err := Prepare(msg, s.now()); err != nil {
		return err
	}
	if err := s.MessageStore.Append(ctx, msg); err != nil {
		return err
	}
	snapshot := *msg
	s.publisher.Publish(ctx, &snapshot)
	return nil
}
