package postgres

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/smallnest/campusrag/store"
)

// uniqueViolation is the SQLSTATE of a duplicate primary key.
const uniqueViolation = "23505"

// DBPool defines the interface for database connection pool
type DBPool interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

// PostgresMessageStore implements store.MessageStore using PostgreSQL
type PostgresMessageStore struct {
	pool      DBPool
	tableName string
	now       func() time.Time
}

// PostgresOptions configuration for Postgres connection
type PostgresOptions struct {
	ConnString string
	TableName  string // Default "messages"
}

// NewPostgresMessageStore creates a new Postgres message store
func NewPostgresMessageStore(ctx context.Context, opts PostgresOptions) (*PostgresMessageStore, error) {
	pool, err := pgxpool.New(ctx, opts.ConnString)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}
	return NewPostgresMessageStoreWithPool(pool, opts.TableName), nil
}

// NewPostgresMessageStoreWithPool creates a new Postgres message store with an existing pool
// Useful for testing with mocks
func NewPostgresMessageStoreWithPool(pool DBPool, tableName string) *PostgresMessageStore {
	if tableName == "" {
		tableName = "messages"
	}
	return &PostgresMessageStore{
		pool:      pool,
		tableName: tableName,
		now:       time.Now,
	}
}

// InitSchema creates the necessary table if it doesn't exist
func (s *PostgresMessageStore) InitSchema(ctx context.Context) error {
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id TEXT NOT NULL,
			user_id TEXT NOT NULL,
			conversation_id TEXT NOT NULL,
			role TEXT NOT NULL,
			content TEXT NOT NULL,
			summary TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL,
			PRIMARY KEY (user_id, conversation_id, id)
		);
		CREATE INDEX IF NOT EXISTS idx_%s_conversation ON %s (user_id, conversation_id, created_at);
	`, s.tableName, s.tableName, s.tableName)

	_, err := s.pool.Exec(ctx, query)
	if err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// Close closes the connection pool
func (s *PostgresMessageStore) Close() error {
	s.pool.Close()
	return nil
}

// Append stores a message
func (s *PostgresMessageStore) Append(ctx context.Context, msg *store.Message) error {
	if err := store.Prepare(msg, s.now()); err != nil {
		return err
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (id, user_id, conversation_id, role, content, summary, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, s.tableName)

	_, err := s.pool.Exec(ctx, query,
		msg.ID,
		msg.UserID,
		msg.ConversationID,
		msg.Role,
		msg.Content,
		msg.Summary,
		msg.CreatedAt,
	)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return fmt.Errorf("%w: %s", store.ErrExists, msg.ID)
	}
	if err != nil {
		return fmt.Errorf("failed to save message: %w", err)
	}
	return nil
}

// Get retrieves a message by ID
func (s *PostgresMessageStore) Get(ctx context.Context, key store.ConversationKey, id string) (*store.Message, error) {
	query := fmt.Sprintf(`
		SELECT id, user_id, conversation_id, role, content, summary, created_at
		FROM %s
		WHERE user_id = $1 AND conversation_id = $2 AND id = $3
	`, s.tableName)

	msg, err := scanMessage(s.pool.QueryRow(ctx, query, key.UserID, key.ConversationID, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("failed to load message: %w", err)
	}
	return msg, nil
}

// Recent returns the last n messages of a conversation, oldest first
func (s *PostgresMessageStore) Recent(ctx context.Context, key store.ConversationKey, n int) ([]*store.Message, error) {
	limit := ""
	args := []any{key.UserID, key.ConversationID}
	if n > 0 {
		limit = " LIMIT $3"
		args = append(args, n)
	}
	query := fmt.Sprintf(`
		SELECT id, user_id, conversation_id, role, content, summary, created_at
		FROM %s
		WHERE user_id = $1 AND conversation_id = $2
		ORDER BY created_at DESC, id DESC%s
	`, s.tableName, limit)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	defer rows.Close()

	messages := []*store.Message{}
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan message row: %w", err)
		}
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating message rows: %w", err)
	}

	slices.Reverse(messages)
	return messages, nil
}

// SetSummary writes a summary on a message that has none
func (s *PostgresMessageStore) SetSummary(ctx context.Context, key store.ConversationKey, id, summary string) (bool, error) {
	query := fmt.Sprintf(`
		UPDATE %s SET summary = $4
		WHERE user_id = $1 AND conversation_id = $2 AND id = $3 AND summary = ''
	`, s.tableName)

	tag, err := s.pool.Exec(ctx, query, key.UserID, key.ConversationID, id, summary)
	if err != nil {
		return false, fmt.Errorf("failed to set summary: %w", err)
	}
	if tag.RowsAffected() == 1 {
		return true, nil
	}

	var one int
	exists := fmt.Sprintf("SELECT 1 FROM %s WHERE user_id = $1 AND conversation_id = $2 AND id = $3", s.tableName)
	if err := s.pool.QueryRow(ctx, exists, key.UserID, key.ConversationID, id).Scan(&one); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, store.ErrNotFound
		}
		return false, fmt.Errorf("failed to check message: %w", err)
	}
	return false, nil
}

func scanMessage(row pgx.Row) (*store.Message, error) {
	var msg store.Message
	err := row.Scan(
		&msg.ID,
		&msg.UserID,
		&msg.ConversationID,
		&msg.Role,
		&msg.Content,
		&msg.Summary,
		&msg.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &msg, nil
}
