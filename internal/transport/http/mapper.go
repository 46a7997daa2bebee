package http

import (
	"context"
	"fmt"
	"time"

	"github.com/vovakirdan/wirechat-rooms/internal/core"
	"github.com/vovakirdan/wirechat-rooms/internal/proto"
	"github.com/vovakirdan/wirechat-rooms/internal/store"
)

// handleRequest runs one client request and builds the reply that echoes its id.
func (h *WSHandler) handleRequest(ctx context.Context, connKey string, req *proto.Request) proto.Reply {
	reply := proto.Reply{Type: proto.FrameReply, RequestID: req.RequestID, ChatroomID: req.ChatroomID}

	var err error
	switch req.Action {
	case proto.ActionEnterRoom:
		err = h.enterRoom(ctx, connKey, req, &reply)
	case proto.ActionLeaveRoom:
		var outcome core.LeaveOutcome
		if outcome, err = h.svc.LeaveRoom(ctx, connKey, req.ChatroomID); err == nil {
			reply.Message = outcome.String()
		}
	case proto.ActionSendMessage:
		var ts time.Time
		if req.Timestamp != nil {
			ts = *req.Timestamp
		}
		_, err = h.svc.SendMessage(ctx, connKey, core.SendRequest{
			RoomID:    req.ChatroomID,
			Content:   req.Content,
			Username:  req.Username,
			Timestamp: ts,
		})
		if err == nil {
			reply.Message = "Message sent"
		}
	case proto.ActionQueryRoomMembers:
		var members []core.Member
		if members, err = h.svc.QueryMembers(ctx, connKey, req.ChatroomID); err == nil {
			reply.Members = usernames(members)
		}
	default:
		err = core.BadRequest("unknown action %q", req.Action)
	}

	if err != nil {
		ce := core.AsCoreError(err)
		if ce.Code == core.ErrCodeInternal {
			h.log.Error().Err(err).Str("conn", connKey).Str("action", req.Action).Msg("request failed")
		}
		return errorReply(req.RequestID, &proto.Error{Code: ce.Code, Msg: ce.Message})
	}
	return reply
}

func (h *WSHandler) enterRoom(ctx context.Context, connKey string, req *proto.Request, reply *proto.Reply) error {
	switch req.Type {
	case proto.EnterTypeCreate:
		room, err := h.svc.CreateRoom(ctx, connKey, req.RoomName)
		if err != nil {
			return err
		}
		reply.ChatroomID = room.ID
		reply.Message = fmt.Sprintf("Room '%s' created", room.Name)
		reply.RoomDetails = roomDetails(ctx, h.svc, room)
	case proto.EnterTypeJoin:
		res, err := h.svc.JoinRoom(ctx, connKey, req.ChatroomID)
		if err != nil {
			return err
		}
		reply.ChatroomID = res.Room.ID
		reply.Message = fmt.Sprintf("Joined room '%s'", res.Room.ID)
		reply.Messages = chatMessages(res.History)
		reply.RoomDetails = roomDetails(ctx, h.svc, res.Room)
	default:
		return core.BadRequest("type must be %q or %q", proto.EnterTypeCreate, proto.EnterTypeJoin)
	}
	return nil
}

func errorReply(requestID string, e *proto.Error) proto.Reply {
	return proto.Reply{Type: proto.FrameReply, RequestID: requestID, Error: e}
}

// roomDetails describes room with the owner's display name.
func roomDetails(ctx context.Context, svc *core.Service, room *store.Room) *proto.RoomDetails {
	owner, err := svc.Registry.DisplayName(ctx, room.OwnerKey)
	if err != nil {
		owner = core.DefaultUsername
	}
	return &proto.RoomDetails{
		ID:        room.ID,
		RoomName:  room.Name,
		Owner:     owner,
		CreatedAt: room.CreatedAt,
	}
}

func chatMessage(msg *store.Message) proto.ChatMessage {
	return proto.ChatMessage{
		ChatroomID: msg.RoomID,
		Content:    msg.Content,
		Username:   msg.AuthorName,
		UserID:     msg.AuthorKey,
		Timestamp:  msg.Timestamp,
	}
}

func chatMessages(history []*store.Message) []proto.ChatMessage {
	out := make([]proto.ChatMessage, 0, len(history))
	for _, msg := range history {
		out = append(out, chatMessage(msg))
	}
	return out
}

func usernames(members []core.Member) []string {
	out := make([]string, 0, len(members))
	for _, m := range members {
		out = append(out, m.Username)
	}
	return out
}

func frameFromEvent(event *core.Event) (any, bool) {
	switch event.Kind {
	case core.EventChatMessage:
		if event.Message == nil {
			return nil, false
		}
		frame := chatMessage(event.Message)
		frame.Type = proto.FrameMessage
		return frame, true
	case core.EventMemberJoined:
		return proto.MemberJoined{Type: proto.FrameMemberJoined, ChatroomID: event.Room, Username: event.User}, true
	case core.EventMemberLeft:
		return proto.MemberLeft{Type: proto.FrameMemberLeft, ChatroomID: event.Room}, true
	case core.EventRoomClosed:
		return proto.RoomClosed{Type: proto.FrameRoomClosed, ChatroomID: event.Room, Reason: event.Reason}, true
	default:
		return nil, false
	}
}
