package store

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/smallnest/campusrag/log"
)

// MessagePattern is the path pattern of message create events.
const MessagePattern = "users/{uid}/conversations/{cid}/messages/{mid}"

// Event announces a created message.
type Event struct {
	Path string
	// Params holds the values bound to the {name} segments of the pattern.
	Params  map[string]string
	Message *Message
}

// Handler reacts to a create event.
type Handler func(ctx context.Context, ev Event) error

// Subscriber registers create handlers on a path pattern.
type Subscriber interface {
	OnCreate(pattern string, h Handler) error
}

// Publisher announces created messages.
type Publisher interface {
	Publish(ctx context.Context, msg *Message)
}

type subscription struct {
	pattern []string
	handler Handler
}

// Bus is an in-process event dispatcher. Handlers run on their own goroutine
// with a context detached from the publisher's cancellation.
type Bus struct {
	mu     sync.RWMutex
	subs   []subscription
	wg     sync.WaitGroup
	logger log.Logger
}

var (
	_ Subscriber = (*Bus)(nil)
	_ Publisher  = (*Bus)(nil)
)

// NewBus creates a Bus. A nil logger selects the package default.
func NewBus(logger log.Logger) *Bus {
	return &Bus{logger: log.OrDefault(logger)}
}

// OnCreate registers h for events whose path matches pattern.
func (b *Bus) OnCreate(pattern string, h Handler) error {
	segs, err := parsePattern(pattern)
	if err != nil {
		return err
	}
	b.mu.Lock()
	b.subs = append(b.subs, subscription{pattern: segs, handler: h})
	b.mu.Unlock()
	return nil
}

// Publish dispatches a create event for msg to every matching handler.
func (b *Bus) Publish(ctx context.Context, msg *Message) {
	path := msg.Path()

	b.mu.RLock()
	subs := append([]subscription(nil), b.subs...)
	b.mu.RUnlock()

	detached := context.WithoutCancel(ctx)
	for _, sub := range subs {
		params, ok := match(sub.pattern, path)
		if !ok {
			continue
		}
		ev := Event{Path: path, Params: params, Message: msg}
		b.wg.Add(1)
		go func(h Handler) {
			defer b.wg.Done()
			if err := h(detached, ev); err != nil {
				b.logger.Error("store.event_handler_failed path=%s err=%v", ev.Path, err)
			}
		}(sub.handler)
	}
}

// Wait blocks until every dispatched handler has returned.
func (b *Bus) Wait() {
	b.wg.Wait()
}

// MatchPath matches path against pattern and returns the bound parameters.
func MatchPath(pattern, path string) (map[string]string, bool) {
	segs, err := parsePattern(pattern)
	if err != nil {
		return nil, false
	}
	return match(segs, path)
}

func parsePattern(pattern string) ([]string, error) {
	segs := strings.Split(strings.Trim(pattern, "/"), "/")
	for _, s := range segs {
		if s == "" {
			return nil, fmt.Errorf("invalid event pattern %q: empty segment", pattern)
		}
		if strings.HasPrefix(s, "{") != strings.HasSuffix(s, "}") || s == "{}" {
			return nil, fmt.Errorf("invalid event pattern %q: bad parameter %q", pattern, s)
		}
	}
	return segs, nil
}

func match(pattern []string, path string) (map[string]string, bool) {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	if len(parts) != len(pattern) {
		return nil, false
	}
	params := make(map[string]string)
	for i, seg := range pattern {
		if strings.HasPrefix(seg, "{") {
			if parts[i] == "" {
				return nil, false
			}
			params[seg[1:len(seg)-1]] = parts[i]
			continue
		}
		if seg != parts[i] {
			return nil, false
		}
	}
	return params, true
}
