package core

import "github.com/vovakirdan/wirechat-rooms/internal/store"

// EventKind is a notification the core pushes to room members.
type EventKind int

const (
	// EventChatMessage delivers a new chat message.
	EventChatMessage EventKind = iota
	// EventMemberJoined asks members to refresh their membership view after a join.
	EventMemberJoined
	// EventMemberLeft asks members to refresh their membership view after a leave.
	EventMemberLeft
	// EventRoomClosed tells members the room was closed.
	EventRoomClosed
)

// CloseReasonOwnerLeft is the reason attached to rooms closed by their owner leaving.
const CloseReasonOwnerLeft = "owner-left"

// Event is sent to connections to describe what happened in a room.
type Event struct {
	Kind    EventKind
	Room    string
	User    string         // username, for EventMemberJoined
	Message *store.Message // for EventChatMessage
	Reason  string         // for EventRoomClosed
}

func (k EventKind) String() string {
	switch k {
	case EventChatMessage:
		return "chat_message"
	case EventMemberJoined:
		return "member_joined"
	case EventMemberLeft:
		return "member_left"
	case EventRoomClosed:
		return "room_closed"
	default:
		return "unknown"
	}
}
