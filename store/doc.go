// Package store persists conversation messages and delivers new-message events.
//
// A MessageStore keeps the messages of each conversation, addressed by a
// ConversationKey, ordered by creation time. Each message may carry the
// rolling summary computed after it was written; SetSummary only fills an
// empty summary so a retried trigger never overwrites an earlier result.
//
// Backends:
//
//	store/memory    in-process maps, for tests and single-node runs
//	store/redis     hashes plus a sorted-set index per conversation
//	store/postgres  pgx connection pool
//	store/sqlite    mattn/go-sqlite3 file database
//
// New messages are announced as create events on the path pattern
// users/{uid}/conversations/{cid}/messages/{mid}. Wrap any backend in a
// PublishingStore to publish on a Bus, and register handlers with OnCreate:
//
//	bus := store.NewBus(nil)
//	s := store.NewPublishingStore(memory.NewMemoryMessageStore(), bus)
//	bus.OnCreate(store.MessagePattern, func(ctx context.Context, ev store.Event) error {
//		// ev.Params["uid"], ev.Params["cid"], ev.Params["mid"]
//		return nil
//	})
//
// Delivery is at-least-once and handlers must be idempotent.
package store
