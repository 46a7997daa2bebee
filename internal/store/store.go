package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a keyed record does not exist.
var ErrNotFound = errors.New("not found")

// Session represents one live connection and the username it declared.
type Session struct {
	Key      string
	Username string
	JoinedAt time.Time
}

// Room represents a chat room.
type Room struct {
	ID        string
	Name      string
	OwnerKey  string // connection key of the creator
	CreatedAt time.Time
}

// Message represents a persisted chat message.
type Message struct {
	ID         int64
	RoomID     string
	AuthorKey  string
	AuthorName string
	Content    string
	Timestamp  time.Time
}

// SessionStore handles connection session persistence.
type SessionStore interface {
	// PutSession records a session. It is a no-op if the key already exists.
	PutSession(ctx context.Context, s *Session) error

	// GetSession retrieves a session by connection key.
	GetSession(ctx context.Context, key string) (*Session, error)

	// DeleteSession removes a session. Deleting an absent session is not an error.
	DeleteSession(ctx context.Context, key string) error
}

// RoomStore handles room and membership persistence.
type RoomStore interface {
	// CreateRoom stores the room and registers its owner as the first member
	// in a single write, so the room is never visible without members.
	CreateRoom(ctx context.Context, room *Room) error

	// GetRoom retrieves a room by ID.
	GetRoom(ctx context.Context, id string) (*Room, error)

	// DeleteRoom removes the room record. Idempotent.
	DeleteRoom(ctx context.Context, id string) error

	// ListRoomsByOwner lists rooms created by the given connection.
	ListRoomsByOwner(ctx context.Context, ownerKey string) ([]*Room, error)

	// AddMember adds a connection to a room. Idempotent.
	AddMember(ctx context.Context, roomID, connKey string) error

	// RemoveMember removes a connection from a room. Idempotent.
	RemoveMember(ctx context.Context, roomID, connKey string) error

	// IsMember checks if the connection is a member of the room.
	IsMember(ctx context.Context, roomID, connKey string) (bool, error)

	// ListMembers lists member connection keys of a room ordered by join time.
	ListMembers(ctx context.Context, roomID string) ([]string, error)

	// ListMemberRooms lists the IDs of rooms the connection belongs to.
	ListMemberRooms(ctx context.Context, connKey string) ([]string, error)

	// DeleteMembers removes every membership of a room. Idempotent.
	DeleteMembers(ctx context.Context, roomID string) error
}

// MessageStore handles message persistence.
type MessageStore interface {
	// AppendMessage persists a message and sets its ID.
	AppendMessage(ctx context.Context, msg *Message) error

	// ListMessages returns the room history ordered by timestamp ascending.
	ListMessages(ctx context.Context, roomID string) ([]*Message, error)

	// DeleteMessages removes the whole history of a room. Idempotent.
	DeleteMessages(ctx context.Context, roomID string) error
}

// Store aggregates all storage interfaces.
type Store interface {
	SessionStore
	RoomStore
	MessageStore

	// Close closes the underlying connection.
	Close() error
}
