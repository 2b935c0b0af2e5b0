// Package redis provides a Redis-backed store.MessageStore and a pub/sub
// relay for message-created events.
//
// Messages are hashes under "<prefix>msg:<uid>:<cid>:<mid>". Ids may not
// contain ':' or '/' (store.ErrInvalidKey), so keys of different users never
// collide. Each conversation keeps a sorted set "<prefix>conv:<uid>:<cid>"
// scored by creation time in milliseconds, which serves Recent; members carry
// a per-conversation sequence from "<prefix>seq:<uid>:<cid>" to break ties.
// SetSummary runs as a Lua script so the write only lands when the message
// has no summary yet.
//
// # Basic Usage
//
//	s := redis.NewRedisMessageStore(redis.RedisOptions{
//		Addr:   "localhost:6379",
//		Prefix: "campusrag:",
//		TTL:    30 * 24 * time.Hour,
//	})
//	defer s.Close()
//
// # Events Across Processes
//
// A Notifier publishes each appended message on "<prefix>messages". A
// Listener in another process relays them to its local store.Bus:
//
//	notifier := redis.NewNotifier(opts, logger)
//	messages := store.NewPublishingStore(s, notifier)
//
//	bus := store.NewBus(logger)
//	listener := redis.NewListener(opts, logger)
//	if err := listener.Start(ctx, bus); err != nil {
//		return err
//	}
package redis
