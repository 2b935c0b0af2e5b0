package redis

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/smallnest/campusrag/store"
)

// setSummaryScript writes the summary field only when the message exists and
// has no summary. It returns -1 for a missing message, 0 when a summary is
// already present and 1 when applied.
var setSummaryScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
	return -1
end
local current = redis.call('HGET', KEYS[1], 'summary')
if current and current ~= '' then
	return 0
end
redis.call('HSET', KEYS[1], 'summary', ARGV[1])
return 1
`)

// RedisMessageStore implements store.MessageStore using Redis. Each message is
// a hash and each conversation a sorted set scored by creation time in
// milliseconds. Members are "<seq>:<id>" with seq a zero-padded per
// conversation counter, so messages created in the same millisecond keep
// their insertion order.
type RedisMessageStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
	now    func() time.Time
}

// RedisOptions configuration for Redis connection
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
	Prefix   string        // Key prefix, default "campusrag:"
	TTL      time.Duration // Expiration for conversations, default 0 (no expiration)
}

func (o RedisOptions) prefix() string {
	if o.Prefix == "" {
		return "campusrag:"
	}
	return o.Prefix
}

func (o RedisOptions) client() *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     o.Addr,
		Password: o.Password,
		DB:       o.DB,
	})
}

// NewRedisMessageStore creates a new Redis message store
func NewRedisMessageStore(opts RedisOptions) *RedisMessageStore {
	return &RedisMessageStore{
		client: opts.client(),
		prefix: opts.prefix(),
		ttl:    opts.TTL,
		now:    time.Now,
	}
}

func (s *RedisMessageStore) messageKey(key store.ConversationKey, id string) string {
	return fmt.Sprintf("%smsg:%s:%s:%s", s.prefix, key.UserID, key.ConversationID, id)
}

func (s *RedisMessageStore) conversationKey(key store.ConversationKey) string {
	return fmt.Sprintf("%sconv:%s:%s", s.prefix, key.UserID, key.ConversationID)
}

func (s *RedisMessageStore) sequenceKey(key store.ConversationKey) string {
	return fmt.Sprintf("%sseq:%s:%s", s.prefix, key.UserID, key.ConversationID)
}

// memberID strips the sequence prefix from a sorted set member.
func memberID(member string) string {
	_, id, ok := strings.Cut(member, ":")
	if !ok {
		return member
	}
	return id
}

func checkKey(key store.ConversationKey, id string) error {
	if err := key.Validate(); err != nil {
		return err
	}
	return store.ValidateID(id)
}

// Append stores a message
func (s *RedisMessageStore) Append(ctx context.Context, msg *store.Message) error {
	if err := store.Prepare(msg, s.now()); err != nil {
		return err
	}

	key := s.messageKey(msg.Key(), msg.ID)
	exists, err := s.client.Exists(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("failed to check message in redis: %w", err)
	}
	if exists > 0 {
		return fmt.Errorf("%w: %s", store.ErrExists, msg.ID)
	}

	seq, err := s.client.Incr(ctx, s.sequenceKey(msg.Key())).Result()
	if err != nil {
		return fmt.Errorf("failed to allocate message sequence: %w", err)
	}

	convKey := s.conversationKey(msg.Key())
	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, key, map[string]any{
		"id":        msg.ID,
		"uid":       msg.UserID,
		"cid":       msg.ConversationID,
		"role":      msg.Role,
		"content":   msg.Content,
		"summary":   msg.Summary,
		"createdAt": msg.CreatedAt.UTC().Format(time.RFC3339Nano),
	})
	pipe.ZAdd(ctx, convKey, redis.Z{
		Score:  float64(msg.CreatedAt.UnixMilli()),
		Member: fmt.Sprintf("%020d:%s", seq, msg.ID),
	})
	if s.ttl > 0 {
		pipe.Expire(ctx, key, s.ttl)
		pipe.Expire(ctx, convKey, s.ttl)
		pipe.Expire(ctx, s.sequenceKey(msg.Key()), s.ttl)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save message to redis: %w", err)
	}
	return nil
}

// Get retrieves a message by ID
func (s *RedisMessageStore) Get(ctx context.Context, key store.ConversationKey, id string) (*store.Message, error) {
	if err := checkKey(key, id); err != nil {
		return nil, err
	}
	fields, err := s.client.HGetAll(ctx, s.messageKey(key, id)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load message from redis: %w", err)
	}
	if len(fields) == 0 {
		return nil, store.ErrNotFound
	}
	return decodeMessage(fields)
}

// Recent returns the last n messages of a conversation, oldest first
func (s *RedisMessageStore) Recent(ctx context.Context, key store.ConversationKey, n int) ([]*store.Message, error) {
	if err := key.Validate(); err != nil {
		return nil, err
	}
	stop := int64(-1)
	if n > 0 {
		stop = int64(n - 1)
	}
	ids, err := s.client.ZRevRange(ctx, s.conversationKey(key), 0, stop).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list messages for %s: %w", key.Path(), err)
	}
	if len(ids) == 0 {
		return []*store.Message{}, nil
	}
	slices.Reverse(ids)

	pipe := s.client.Pipeline()
	cmds := make([]*redis.MapStringStringCmd, len(ids))
	for i, member := range ids {
		cmds[i] = pipe.HGetAll(ctx, s.messageKey(key, memberID(member)))
	}
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("failed to fetch messages: %w", err)
	}

	messages := make([]*store.Message, 0, len(ids))
	for _, cmd := range cmds {
		fields := cmd.Val()
		if len(fields) == 0 {
			// Expired between the index read and the fetch.
			continue
		}
		msg, err := decodeMessage(fields)
		if err != nil {
			return nil, err
		}
		messages = append(messages, msg)
	}
	return messages, nil
}

// SetSummary writes a summary on a message that has none
func (s *RedisMessageStore) SetSummary(ctx context.Context, key store.ConversationKey, id, summary string) (bool, error) {
	if err := checkKey(key, id); err != nil {
		return false, err
	}
	res, err := setSummaryScript.Run(ctx, s.client, []string{s.messageKey(key, id)}, summary).Int()
	if err != nil {
		return false, fmt.Errorf("failed to set summary: %w", err)
	}
	switch res {
	case -1:
		return false, store.ErrNotFound
	case 1:
		return true, nil
	default:
		return false, nil
	}
}

// Close closes the client
func (s *RedisMessageStore) Close() error {
	return s.client.Close()
}

func decodeMessage(fields map[string]string) (*store.Message, error) {
	createdAt, err := time.Parse(time.RFC3339Nano, fields["createdAt"])
	if err != nil {
		return nil, fmt.Errorf("failed to parse createdAt of message %s: %w", fields["id"], err)
	}
	return &store.Message{
		ID:             fields["id"],
		UserID:         fields["uid"],
		ConversationID: fields["cid"],
		Role:           fields["role"],
		Content:        fields["content"],
		Summary:        fields["summary"],
		CreatedAt:      createdAt,
	}, nil
}
