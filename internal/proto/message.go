package proto

import "time"

const (
	ProtocolVersion = 1

	ActionEnterRoom        = "enterRoom"
	ActionLeaveRoom        = "leaveRoom"
	ActionSendMessage      = "sendMessage"
	ActionQueryRoomMembers = "queryRoomMembers"

	EnterTypeCreate = "create"
	EnterTypeJoin   = "join"

	FrameReply        = "REPLY"
	FrameMessage      = "MESSAGE"
	FrameMemberJoined = "MEMBER_JOINED"
	FrameMemberLeft   = "MEMBER_LEFT"
	FrameRoomClosed   = "ROOM_CLOSED"

	ReasonOwnerLeft = "owner-left"
)

// Request is the envelope for every message coming from the client.
// Only the fields relevant to Action are set.
type Request struct {
	RequestID  string     `json:"requestId"`
	Action     string     `json:"action"`
	Type       string     `json:"type,omitempty"`
	RoomName   string     `json:"roomName,omitempty"`
	ChatroomID string     `json:"chatroomId,omitempty"`
	Content    string     `json:"content,omitempty"`
	Username   string     `json:"username,omitempty"`
	Timestamp  *time.Time `json:"timestamp,omitempty"`
}

// Reply is the direct answer to a Request; it echoes RequestID.
type Reply struct {
	Type        string        `json:"type"`
	RequestID   string        `json:"requestId"`
	ChatroomID  string        `json:"chatroomId,omitempty"`
	Message     string        `json:"message,omitempty"`
	Messages    []ChatMessage `json:"messages"`
	RoomDetails *RoomDetails  `json:"roomDetails,omitempty"`
	Members     []string      `json:"members"`
	Error       *Error        `json:"error,omitempty"`
}

// RoomDetails describes a room to clients.
type RoomDetails struct {
	ID        string    `json:"id"`
	RoomName  string    `json:"roomName"`
	Owner     string    `json:"owner"`
	CreatedAt time.Time `json:"createdAt"`
}

// ChatMessage is pushed to room members, and listed in join history.
type ChatMessage struct {
	Type       string    `json:"type,omitempty"`
	ChatroomID string    `json:"chatroomId"`
	Content    string    `json:"content"`
	Username   string    `json:"username"`
	UserID     string    `json:"userId"`
	Timestamp  time.Time `json:"timestamp"`
}

// MemberJoined tells members to refresh their membership view.
type MemberJoined struct {
	Type       string `json:"type"`
	ChatroomID string `json:"chatroomId"`
	Username   string `json:"username,omitempty"`
}

// MemberLeft tells remaining members that someone left.
type MemberLeft struct {
	Type       string `json:"type"`
	ChatroomID string `json:"chatroomId"`
}

// RoomClosed tells members the room no longer exists.
type RoomClosed struct {
	Type       string `json:"type"`
	ChatroomID string `json:"chatroomId"`
	Reason     string `json:"reason,omitempty"`
}

// Error describes a failed request.
type Error struct {
	Code string `json:"code"`
	Msg  string `json:"msg"`
}

func (e *Error) Error() string {
	return e.Code + ": " + e.Msg
}
