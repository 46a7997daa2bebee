package core

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/vovakirdan/wirechat-rooms/internal/store"
)

// LeaveOutcome tells the caller what LeaveRoom did.
type LeaveOutcome int

const (
	// LeftNotMember means the caller was not in the room, or the room does not exist.
	LeftNotMember LeaveOutcome = iota
	// LeftAsMember means the caller was removed and the room lives on.
	LeftAsMember
	// LeftRoomClosed means the caller owned the room and it was closed.
	LeftRoomClosed
)

func (o LeaveOutcome) String() string {
	switch o {
	case LeftAsMember:
		return "Member left"
	case LeftRoomClosed:
		return "Owner left, room closed"
	default:
		return "Not a member"
	}
}

type closeStep struct {
	name string
	run  func(ctx context.Context, roomID string) error
}

// LeaveRoom removes connKey from roomID. When connKey owns the room, the room is closed:
// every member is told, then memberships, history and the room record are deleted in that order,
// followed by one more pass over memberships and history.
// Each step is idempotent, so a failed close can be retried by leaving again.
func (s *Service) LeaveRoom(ctx context.Context, connKey, roomID string) (LeaveOutcome, error) {
	if strings.TrimSpace(roomID) == "" {
		return LeftNotMember, BadRequest("chatroomId is required")
	}

	room, err := s.Rooms.GetRoom(ctx, roomID)
	if err != nil {
		if errors.Is(err, ErrRoomNotFound) {
			// Drop a membership left behind by a join that raced the room's close.
			if err := s.Rooms.RemoveMember(ctx, roomID, connKey); err != nil {
				return LeftNotMember, err
			}
			return LeftNotMember, nil
		}
		return LeftNotMember, err
	}

	if room.OwnerKey == connKey {
		if err := s.closeRoom(ctx, room); err != nil {
			return LeftNotMember, err
		}
		return LeftRoomClosed, nil
	}

	ok, err := s.Rooms.IsMember(ctx, roomID, connKey)
	if err != nil {
		return LeftNotMember, err
	}
	if !ok {
		return LeftNotMember, nil
	}
	if err := s.Rooms.RemoveMember(ctx, roomID, connKey); err != nil {
		return LeftNotMember, err
	}

	s.Fanout.Broadcast(ctx, roomID, &Event{Kind: EventMemberLeft, Room: roomID}, "")
	s.log.Info().Str("room", roomID).Str("conn", connKey).Msg("member left")
	return LeftAsMember, nil
}

func (s *Service) closeRoom(ctx context.Context, room *store.Room) error {
	report := s.Fanout.Broadcast(ctx, room.ID, &Event{
		Kind:   EventRoomClosed,
		Room:   room.ID,
		Reason: CloseReasonOwnerLeft,
	}, "")

	steps := []closeStep{
		{"delete memberships", s.Rooms.rooms.DeleteMembers},
		{"delete history", s.Messages.Purge},
		{"delete room", s.Rooms.rooms.DeleteRoom},
		// A join or send that passed its room check before the delete may have written after
		// the first two steps. Once the room is gone those writers undo themselves, so a second
		// pass leaves nothing behind.
		{"sweep memberships", s.Rooms.rooms.DeleteMembers},
		{"sweep history", s.Messages.Purge},
	}
	for _, step := range steps {
		if err := step.run(ctx, room.ID); err != nil {
			s.log.Error().Err(err).Str("room", room.ID).Str("step", step.name).Msg("room close interrupted")
			return fmt.Errorf("close room %s: %s: %w", room.ID, step.name, err)
		}
	}

	s.log.Info().
		Str("room", room.ID).
		Str("owner", room.OwnerKey).
		Int("notified", report.Delivered).
		Msg("room closed")
	return nil
}
