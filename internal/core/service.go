package core

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/vovakirdan/wirechat-rooms/internal/store"
)

// Options tune a Service.
type Options struct {
	// FanoutConcurrency bounds parallel deliveries per broadcast. Zero or one is sequential.
	FanoutConcurrency int
	// Now overrides the clock, for tests.
	Now func() time.Time
}

// Service implements the chat operations on top of a Store and a Gateway.
// It keeps no state of its own, so any number of processes may share one Store.
type Service struct {
	Registry *Registry
	Rooms    *RoomIndex
	Messages *MessageLog
	Fanout   *Fanout

	now func() time.Time
	log zerolog.Logger
}

// NewService wires the registry, room index, message log and fanout.
func NewService(st store.Store, gw Gateway, logger *zerolog.Logger, opts Options) *Service {
	l := zerolog.Nop()
	if logger != nil {
		l = *logger
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	registry := NewRegistry(st, l, now)
	rooms := NewRoomIndex(st, registry, l, now)

	return &Service{
		Registry: registry,
		Rooms:    rooms,
		Messages: NewMessageLog(st, now),
		Fanout:   NewFanout(rooms, gw, opts.FanoutConcurrency, l),
		now:      now,
		log:      l.With().Str("component", "service").Logger(),
	}
}

// JoinResult is returned by JoinRoom.
type JoinResult struct {
	Room    *store.Room
	History []*store.Message
}

// SendRequest describes a message to post.
type SendRequest struct {
	RoomID    string
	Content   string
	Username  string
	Timestamp time.Time
}

// Connect registers a new connection.
func (s *Service) Connect(ctx context.Context, connKey, username string) error {
	return s.Registry.Register(ctx, connKey, username)
}

// CreateRoom creates a room owned by connKey.
func (s *Service) CreateRoom(ctx context.Context, connKey, name string) (*store.Room, error) {
	return s.Rooms.CreateRoom(ctx, name, connKey)
}

// JoinRoom adds connKey to an existing room, notifies the other members and returns the history.
func (s *Service) JoinRoom(ctx context.Context, connKey, roomID string) (*JoinResult, error) {
	if strings.TrimSpace(roomID) == "" {
		return nil, BadRequest("chatroomId is required")
	}

	room, err := s.Rooms.GetRoom(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if err := s.Rooms.AddMember(ctx, roomID, connKey); err != nil {
		return nil, err
	}
	// The owner may have closed the room between the lookup and the insert.
	if _, err := s.Rooms.GetRoom(ctx, roomID); err != nil {
		if errors.Is(err, ErrRoomNotFound) {
			if rmErr := s.Rooms.RemoveMember(ctx, roomID, connKey); rmErr != nil {
				return nil, errors.Join(err, rmErr)
			}
		}
		return nil, err
	}

	name, err := s.Registry.DisplayName(ctx, connKey)
	if err != nil {
		return nil, err
	}
	s.Fanout.Broadcast(ctx, roomID, &Event{Kind: EventMemberJoined, Room: roomID, User: name}, connKey)

	history, err := s.Messages.History(ctx, roomID)
	if err != nil {
		return nil, err
	}

	s.log.Info().Str("room", roomID).Str("conn", connKey).Msg("member joined")
	return &JoinResult{Room: room, History: history}, nil
}

// SendMessage stores a message from connKey and pushes it to every other member.
func (s *Service) SendMessage(ctx context.Context, connKey string, req SendRequest) (*store.Message, error) {
	if strings.TrimSpace(req.RoomID) == "" {
		return nil, BadRequest("chatroomId is required")
	}

	if _, err := s.Rooms.GetRoom(ctx, req.RoomID); err != nil {
		return nil, err
	}
	ok, err := s.Rooms.IsMember(ctx, req.RoomID, connKey)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotInRoom
	}

	author := strings.TrimSpace(req.Username)
	if author == "" {
		if author, err = s.Registry.DisplayName(ctx, connKey); err != nil {
			return nil, err
		}
	}

	msg, err := s.Messages.Append(ctx, req.RoomID, connKey, author, req.Content, req.Timestamp)
	if err != nil {
		return nil, err
	}
	if _, err := s.Rooms.GetRoom(ctx, req.RoomID); err != nil {
		if errors.Is(err, ErrRoomNotFound) {
			if purgeErr := s.Messages.Purge(ctx, req.RoomID); purgeErr != nil {
				return nil, errors.Join(err, purgeErr)
			}
		}
		return nil, err
	}

	report := s.Fanout.Broadcast(ctx, req.RoomID, &Event{Kind: EventChatMessage, Room: req.RoomID, Message: msg}, connKey)
	s.log.Debug().
		Str("room", req.RoomID).
		Str("conn", connKey).
		Int("delivered", report.Delivered).
		Int("failed", report.Failed).
		Msg("message sent")
	return msg, nil
}

// QueryMembers lists the usernames of the members of roomID. A missing room has no members.
func (s *Service) QueryMembers(ctx context.Context, connKey, roomID string) ([]Member, error) {
	if strings.TrimSpace(roomID) == "" {
		return nil, BadRequest("chatroomId is required")
	}
	members, err := s.Rooms.ListMemberUsernames(ctx, roomID)
	if err != nil {
		return nil, err
	}
	return members, nil
}

// Disconnect removes every trace of connKey: owned rooms are closed, other memberships dropped,
// and the session forgotten. Failures are collected and the remaining steps still run.
func (s *Service) Disconnect(ctx context.Context, connKey string) error {
	var errs []error

	owned, err := s.Rooms.OwnedBy(ctx, connKey)
	if err != nil {
		errs = append(errs, err)
	}
	for _, room := range owned {
		if _, err := s.LeaveRoom(ctx, connKey, room.ID); err != nil {
			errs = append(errs, err)
		}
	}

	joined, err := s.Rooms.RoomsOf(ctx, connKey)
	if err != nil {
		errs = append(errs, err)
	}
	for _, roomID := range joined {
		if _, err := s.LeaveRoom(ctx, connKey, roomID); err != nil {
			errs = append(errs, err)
		}
	}

	if err := s.Registry.Forget(ctx, connKey); err != nil {
		errs = append(errs, err)
	}

	if err := errors.Join(errs...); err != nil {
		s.log.Error().Err(err).Str("conn", connKey).Msg("disconnect cleanup incomplete")
		return err
	}
	s.log.Debug().Str("conn", connKey).Int("owned", len(owned)).Int("joined", len(joined)).Msg("connection cleaned up")
	return nil
}
