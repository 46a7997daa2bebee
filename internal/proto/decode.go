package proto

import (
	"encoding/json"
	"fmt"
)

// Frame is one decoded server-to-client message:
// *Reply, *ChatMessage, *MemberJoined, *MemberLeft or *RoomClosed.
type Frame interface {
	frameType() string
}

func (*Reply) frameType() string        { return FrameReply }
func (*ChatMessage) frameType() string  { return FrameMessage }
func (*MemberJoined) frameType() string { return FrameMemberJoined }
func (*MemberLeft) frameType() string   { return FrameMemberLeft }
func (*RoomClosed) frameType() string   { return FrameRoomClosed }

// Decode parses a raw server frame using its type discriminant.
func Decode(data []byte) (Frame, error) {
	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, fmt.Errorf("decode frame header: %w", err)
	}

	var frame Frame
	switch head.Type {
	case FrameReply:
		frame = &Reply{}
	case FrameMessage:
		frame = &ChatMessage{}
	case FrameMemberJoined:
		frame = &MemberJoined{}
	case FrameMemberLeft:
		frame = &MemberLeft{}
	case FrameRoomClosed:
		frame = &RoomClosed{}
	default:
		return nil, fmt.Errorf("unknown frame type %q", head.Type)
	}

	if err := json.Unmarshal(data, frame); err != nil {
		return nil, fmt.Errorf("decode %s frame: %w", head.Type, err)
	}
	return frame, nil
}
