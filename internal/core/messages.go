package core

import (
	"context"
	"fmt"
	"time"

	"github.com/vovakirdan/wirechat-rooms/internal/proto"
	"github.com/vovakirdan/wirechat-rooms/internal/store"
)

// MessageLog is the append-only history of every room.
type MessageLog struct {
	messages store.MessageStore
	now      func() time.Time
}

// NewMessageLog constructs a MessageLog.
func NewMessageLog(messages store.MessageStore, now func() time.Time) *MessageLog {
	if now == nil {
		now = time.Now
	}
	return &MessageLog{messages: messages, now: now}
}

// Append validates and stores a message. A zero ts is replaced by the current time.
func (l *MessageLog) Append(ctx context.Context, roomID, authorKey, authorName, content string, ts time.Time) (*store.Message, error) {
	if err := proto.ValidateContent(content); err != nil {
		return nil, invalidContent(err)
	}
	if ts.IsZero() {
		ts = l.now()
	}
	msg := &store.Message{
		RoomID:     roomID,
		AuthorKey:  authorKey,
		AuthorName: authorName,
		Content:    content,
		Timestamp:  ts,
	}
	if err := l.messages.AppendMessage(ctx, msg); err != nil {
		return nil, fmt.Errorf("append message: %w", err)
	}
	return msg, nil
}

// History returns the messages of a room in ascending timestamp order.
func (l *MessageLog) History(ctx context.Context, roomID string) ([]*store.Message, error) {
	history, err := l.messages.ListMessages(ctx, roomID)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}
	return history, nil
}

// Purge drops the history of a room.
func (l *MessageLog) Purge(ctx context.Context, roomID string) error {
	if err := l.messages.DeleteMessages(ctx, roomID); err != nil {
		return fmt.Errorf("purge history: %w", err)
	}
	return nil
}
