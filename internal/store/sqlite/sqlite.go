package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/vovakirdan/wirechat-rooms/internal/store"
)

//go:embed schema.sql
var schema string

// SQLiteStore implements store.Store for SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// New creates a new SQLite store and applies the schema.
// dbPath is the path to the SQLite database file.
func New(dbPath string) (*SQLiteStore, error) {
	return NewWithSetup(dbPath, Migrate)
}

// NewWithSetup creates a new SQLite store and runs a setup function.
// Useful for tests to apply a custom schema.
func NewWithSetup(dbPath string, setup func(*sql.DB) error) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// SQLite works best with a single connection; it also keeps :memory: databases shared.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if setup != nil {
		if err := setup(db); err != nil {
			db.Close()
			return nil, fmt.Errorf("setup: %w", err)
		}
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Migrate applies the embedded schema. It is safe to run repeatedly.
func Migrate(db *sql.DB) error {
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// ==== SessionStore implementation ====

// PutSession records a session unless the key is already present.
func (s *SQLiteStore) PutSession(ctx context.Context, sess *store.Session) error {
	query := `
		INSERT OR IGNORE INTO sessions (conn_key, username, joined_at)
		VALUES (?, ?, ?)
	`
	if _, err := s.db.ExecContext(ctx, query, sess.Key, sess.Username, sess.JoinedAt.UnixNano()); err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

// GetSession retrieves a session by connection key.
func (s *SQLiteStore) GetSession(ctx context.Context, key string) (*store.Session, error) {
	query := `
		SELECT conn_key, username, joined_at
		FROM sessions
		WHERE conn_key = ?
	`
	var sess store.Session
	var joinedAt int64
	err := s.db.QueryRowContext(ctx, query, key).Scan(&sess.Key, &sess.Username, &joinedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("session %s: %w", key, store.ErrNotFound)
		}
		return nil, fmt.Errorf("query session: %w", err)
	}
	sess.JoinedAt = time.Unix(0, joinedAt)

	return &sess, nil
}

// DeleteSession removes a session.
func (s *SQLiteStore) DeleteSession(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE conn_key = ?`, key); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// ==== RoomStore implementation ====

// CreateRoom inserts the room and the owner's membership in one transaction.
func (s *SQLiteStore) CreateRoom(ctx context.Context, room *store.Room) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback() //nolint:errcheck // no-op after commit
	}()

	createdAt := room.CreatedAt.UnixNano()

	roomQuery := `
		INSERT INTO rooms (id, name, owner_key, created_at)
		VALUES (?, ?, ?, ?)
	`
	if _, err := tx.ExecContext(ctx, roomQuery, room.ID, room.Name, room.OwnerKey, createdAt); err != nil {
		return fmt.Errorf("insert room: %w", err)
	}

	memberQuery := `
		INSERT OR IGNORE INTO room_members (room_id, conn_key, joined_at)
		VALUES (?, ?, ?)
	`
	if _, err := tx.ExecContext(ctx, memberQuery, room.ID, room.OwnerKey, createdAt); err != nil {
		return fmt.Errorf("add owner to members: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// GetRoom retrieves a room by ID.
func (s *SQLiteStore) GetRoom(ctx context.Context, id string) (*store.Room, error) {
	query := `
		SELECT id, name, owner_key, created_at
		FROM rooms
		WHERE id = ?
	`
	var room store.Room
	var createdAt int64
	err := s.db.QueryRowContext(ctx, query, id).Scan(&room.ID, &room.Name, &room.OwnerKey, &createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("room %s: %w", id, store.ErrNotFound)
		}
		return nil, fmt.Errorf("query room: %w", err)
	}
	room.CreatedAt = time.Unix(0, createdAt)

	return &room, nil
}

// DeleteRoom removes the room record.
func (s *SQLiteStore) DeleteRoom(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM rooms WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete room: %w", err)
	}
	return nil
}

// ListRoomsByOwner lists rooms created by the given connection.
func (s *SQLiteStore) ListRoomsByOwner(ctx context.Context, ownerKey string) ([]*store.Room, error) {
	query := `
		SELECT id, name, owner_key, created_at
		FROM rooms
		WHERE owner_key = ?
		ORDER BY created_at ASC
	`
	rows, err := s.db.QueryContext(ctx, query, ownerKey)
	if err != nil {
		return nil, fmt.Errorf("query rooms: %w", err)
	}
	defer rows.Close()

	var rooms []*store.Room
	for rows.Next() {
		var room store.Room
		var createdAt int64
		if err := rows.Scan(&room.ID, &room.Name, &room.OwnerKey, &createdAt); err != nil {
			return nil, fmt.Errorf("scan room: %w", err)
		}
		room.CreatedAt = time.Unix(0, createdAt)
		rooms = append(rooms, &room)
	}

	return rooms, rows.Err()
}

// AddMember adds a connection to a room.
func (s *SQLiteStore) AddMember(ctx context.Context, roomID, connKey string) error {
	query := `
		INSERT OR IGNORE INTO room_members (room_id, conn_key, joined_at)
		VALUES (?, ?, ?)
	`
	if _, err := s.db.ExecContext(ctx, query, roomID, connKey, time.Now().UnixNano()); err != nil {
		return fmt.Errorf("insert room member: %w", err)
	}
	return nil
}

// RemoveMember removes a connection from a room.
func (s *SQLiteStore) RemoveMember(ctx context.Context, roomID, connKey string) error {
	query := `
		DELETE FROM room_members
		WHERE room_id = ? AND conn_key = ?
	`
	if _, err := s.db.ExecContext(ctx, query, roomID, connKey); err != nil {
		return fmt.Errorf("delete room member: %w", err)
	}
	return nil
}

// IsMember checks if the connection is a member of the room.
func (s *SQLiteStore) IsMember(ctx context.Context, roomID, connKey string) (bool, error) {
	query := `
		SELECT 1 FROM room_members
		WHERE room_id = ? AND conn_key = ?
	`
	var exists int
	err := s.db.QueryRowContext(ctx, query, roomID, connKey).Scan(&exists)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("query membership: %w", err)
	}

	return true, nil
}

// ListMembers lists all members of a room.
func (s *SQLiteStore) ListMembers(ctx context.Context, roomID string) ([]string, error) {
	query := `
		SELECT conn_key FROM room_members
		WHERE room_id = ?
		ORDER BY joined_at ASC, rowid ASC
	`
	return s.queryKeys(ctx, query, roomID)
}

// ListMemberRooms lists the rooms a connection belongs to.
func (s *SQLiteStore) ListMemberRooms(ctx context.Context, connKey string) ([]string, error) {
	query := `
		SELECT room_id FROM room_members
		WHERE conn_key = ?
		ORDER BY joined_at ASC, rowid ASC
	`
	return s.queryKeys(ctx, query, connKey)
}

// DeleteMembers removes every membership of a room.
func (s *SQLiteStore) DeleteMembers(ctx context.Context, roomID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM room_members WHERE room_id = ?`, roomID); err != nil {
		return fmt.Errorf("delete room members: %w", err)
	}
	return nil
}

func (s *SQLiteStore) queryKeys(ctx context.Context, query string, arg string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("query members: %w", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("scan member: %w", err)
		}
		keys = append(keys, key)
	}

	return keys, rows.Err()
}

// ==== MessageStore implementation ====

// AppendMessage persists a message to storage.
func (s *SQLiteStore) AppendMessage(ctx context.Context, msg *store.Message) error {
	query := `
		INSERT INTO messages (room_id, author_key, author_name, content, ts)
		VALUES (?, ?, ?, ?, ?)
	`
	result, err := s.db.ExecContext(ctx, query, msg.RoomID, msg.AuthorKey, msg.AuthorName, msg.Content, msg.Timestamp.UnixNano())
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("get last insert id: %w", err)
	}

	msg.ID = id
	return nil
}

// ListMessages returns the room history in chronological order.
func (s *SQLiteStore) ListMessages(ctx context.Context, roomID string) ([]*store.Message, error) {
	query := `
		SELECT id, room_id, author_key, author_name, content, ts
		FROM messages
		WHERE room_id = ?
		ORDER BY ts ASC, id ASC
	`
	rows, err := s.db.QueryContext(ctx, query, roomID)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()

	var messages []*store.Message
	for rows.Next() {
		var msg store.Message
		var ts int64
		if err := rows.Scan(&msg.ID, &msg.RoomID, &msg.AuthorKey, &msg.AuthorName, &msg.Content, &ts); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		msg.Timestamp = time.Unix(0, ts)
		messages = append(messages, &msg)
	}

	return messages, rows.Err()
}

// DeleteMessages removes the history of a room.
func (s *SQLiteStore) DeleteMessages(ctx context.Context, roomID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM messages WHERE room_id = ?`, roomID); err != nil {
		return fmt.Errorf("delete messages: %w", err)
	}
	return nil
}

var _ store.Store = (*SQLiteStore)(nil)
