package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/mattn/go-sqlite3"
	"github.com/smallnest/campusrag/store"
)

// SqliteMessageStore implements store.MessageStore using SQLite
type SqliteMessageStore struct {
	db        *sql.DB
	tableName string
	now       func() time.Time
}

// SqliteOptions configuration for SQLite connection
type SqliteOptions struct {
	Path      string
	TableName string // Default "messages"
}

// NewSqliteMessageStore creates a new SQLite message store
func NewSqliteMessageStore(opts SqliteOptions) (*SqliteMessageStore, error) {
	db, err := sql.Open("sqlite3", opts.Path)
	if err != nil {
		return nil, fmt.Errorf("unable to open database: %w", err)
	}

	tableName := opts.TableName
	if tableName == "" {
		tableName = "messages"
	}

	s := &SqliteMessageStore{
		db:        db,
		tableName: tableName,
		now:       time.Now,
	}

	if err := s.InitSchema(context.Background()); err != nil {
		db.Close()
		return nil, err
	}

	return s, nil
}

// InitSchema creates the necessary table if it doesn't exist
func (s *SqliteMessageStore) InitSchema(ctx context.Context) error {
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id TEXT NOT NULL,
			user_id TEXT NOT NULL,
			conversation_id TEXT NOT NULL,
			role TEXT NOT NULL,
			content TEXT NOT NULL,
			summary TEXT NOT NULL DEFAULT '',
			created_at DATETIME NOT NULL,
			PRIMARY KEY (user_id, conversation_id, id)
		);
		CREATE INDEX IF NOT EXISTS idx_%s_conversation ON %s (user_id, conversation_id, created_at);
	`, s.tableName, s.tableName, s.tableName)

	_, err := s.db.ExecContext(ctx, query)
	if err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// Close closes the database connection
func (s *SqliteMessageStore) Close() error {
	return s.db.Close()
}

// Append stores a message
func (s *SqliteMessageStore) Append(ctx context.Context, msg *store.Message) error {
	if err := store.Prepare(msg, s.now()); err != nil {
		return err
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (id, user_id, conversation_id, role, content, summary, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, s.tableName)

	_, err := s.db.ExecContext(ctx, query,
		msg.ID,
		msg.UserID,
		msg.ConversationID,
		msg.Role,
		msg.Content,
		msg.Summary,
		msg.CreatedAt.UTC(),
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: %s", store.ErrExists, msg.ID)
	}
	if err != nil {
		return fmt.Errorf("failed to save message: %w", err)
	}
	return nil
}

// Get retrieves a message by ID
func (s *SqliteMessageStore) Get(ctx context.Context, key store.ConversationKey, id string) (*store.Message, error) {
	query := fmt.Sprintf(`
		SELECT id, user_id, conversation_id, role, content, summary, created_at
		FROM %s
		WHERE user_id = ? AND conversation_id = ? AND id = ?
	`, s.tableName)

	msg, err := scanMessage(s.db.QueryRowContext(ctx, query, key.UserID, key.ConversationID, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("failed to load message: %w", err)
	}
	return msg, nil
}

// Recent returns the last n messages of a conversation, oldest first
func (s *SqliteMessageStore) Recent(ctx context.Context, key store.ConversationKey, n int) ([]*store.Message, error) {
	if n <= 0 {
		n = -1 // no limit
	}
	query := fmt.Sprintf(`
		SELECT id, user_id, conversation_id, role, content, summary, created_at
		FROM %s
		WHERE user_id = ? AND conversation_id = ?
		ORDER BY created_at DESC, rowid DESC
		LIMIT ?
	`, s.tableName)

	rows, err := s.db.QueryContext(ctx, query, key.UserID, key.ConversationID, n)
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
func (s *SqliteMessageStore) SetSummary(ctx context.Context, key store.ConversationKey, id, summary string) (bool, error) {
	query := fmt.Sprintf(`
		UPDATE %s SET summary = ?
		WHERE user_id = ? AND conversation_id = ? AND id = ? AND summary = ''
	`, s.tableName)

	res, err := s.db.ExecContext(ctx, query, summary, key.UserID, key.ConversationID, id)
	if err != nil {
		return false, fmt.Errorf("failed to set summary: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}
	if affected == 1 {
		return true, nil
	}

	if _, err := s.Get(ctx, key, id); err != nil {
		return false, err
	}
	return false, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMessage(row rowScanner) (*store.Message, error) {
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

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	return sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey ||
		sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
}
