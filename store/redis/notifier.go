package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/smallnest/campusrag/log"
	"github.com/smallnest/campusrag/store"
)

// Notifier publishes message-created events on a Redis channel so that other
// processes can react to them.
type Notifier struct {
	client  *redis.Client
	channel string
	logger  log.Logger
}

// NewNotifier creates a Notifier publishing on "<prefix>messages".
func NewNotifier(opts RedisOptions, logger log.Logger) *Notifier {
	return &Notifier{
		client:  opts.client(),
		channel: opts.prefix() + "messages",
		logger:  log.OrDefault(logger),
	}
}

// Publish implements store.Publisher. Failures are logged.
func (n *Notifier) Publish(ctx context.Context, msg *store.Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		n.logger.Error("redis.notify_failed mid=%s err=%v", msg.ID, err)
		return
	}
	if err := n.client.Publish(ctx, n.channel, data).Err(); err != nil {
		n.logger.Error("redis.notify_failed mid=%s err=%v", msg.ID, err)
	}
}

// Close closes the client
func (n *Notifier) Close() error {
	return n.client.Close()
}

// Listener relays events from a Notifier channel to a local publisher,
// typically a store.Bus.
type Listener struct {
	client  *redis.Client
	channel string
	logger  log.Logger
	pubsub  *redis.PubSub
	done    chan struct{}
}

// NewListener creates a Listener on "<prefix>messages".
func NewListener(opts RedisOptions, logger log.Logger) *Listener {
	return &Listener{
		client:  opts.client(),
		channel: opts.prefix() + "messages",
		logger:  log.OrDefault(logger),
		done:    make(chan struct{}),
	}
}

// Start subscribes and relays messages to target until ctx is done or Close
// is called. It returns once the subscription is confirmed.
func (l *Listener) Start(ctx context.Context, target store.Publisher) error {
	l.pubsub = l.client.Subscribe(ctx, l.channel)
	if _, err := l.pubsub.Receive(ctx); err != nil {
		_ = l.pubsub.Close()
		l.pubsub = nil
		return fmt.Errorf("failed to subscribe to %s: %w", l.channel, err)
	}

	ch := l.pubsub.Channel()
	go func() {
		defer close(l.done)
		for {
			select {
			case <-ctx.Done():
				return
			case m, ok := <-ch:
				if !ok {
					return
				}
				var msg store.Message
				if err := json.Unmarshal([]byte(m.Payload), &msg); err != nil {
					l.logger.Warn("redis.listen_decode_failed err=%v", err)
					continue
				}
				target.Publish(ctx, &msg)
			}
		}
	}()
	return nil
}

// Close stops the subscription and closes the client.
func (l *Listener) Close() error {
	if l.pubsub != nil {
		_ = l.pubsub.Close()
		<-l.done
	}
	return l.client.Close()
}
