package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"
	"github.com/vovakirdan/wirechat-rooms/internal/ids"
	"github.com/vovakirdan/wirechat-rooms/internal/store"
)

// MaxRoomNameLength bounds room names, in runes.
const MaxRoomNameLength = 100

// Member is a room member with its resolved display name.
type Member struct {
	Key      string
	Username string
}

// RoomIndex owns room records and the room -> members index.
type RoomIndex struct {
	rooms    store.RoomStore
	registry *Registry
	now      func() time.Time
	log      zerolog.Logger
}

// NewRoomIndex constructs a RoomIndex.
func NewRoomIndex(rooms store.RoomStore, registry *Registry, logger zerolog.Logger, now func() time.Time) *RoomIndex {
	if now == nil {
		now = time.Now
	}
	return &RoomIndex{
		rooms:    rooms,
		registry: registry,
		now:      now,
		log:      logger.With().Str("component", "rooms").Logger(),
	}
}

// CreateRoom creates a room owned by ownerKey with the owner as its first member.
func (x *RoomIndex) CreateRoom(ctx context.Context, name, ownerKey string) (*store.Room, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, BadRequest("roomName is required")
	}
	if utf8.RuneCountInString(name) > MaxRoomNameLength {
		return nil, BadRequest("roomName must be at most %d characters", MaxRoomNameLength)
	}

	room := &store.Room{
		ID:        ids.NewRoomID(),
		Name:      name,
		OwnerKey:  ownerKey,
		CreatedAt: x.now(),
	}
	if err := x.rooms.CreateRoom(ctx, room); err != nil {
		return nil, fmt.Errorf("create room: %w", err)
	}
	x.log.Info().Str("room", room.ID).Str("name", name).Str("owner", ownerKey).Msg("room created")
	return room, nil
}

// GetRoom returns the room or ErrRoomNotFound.
func (x *RoomIndex) GetRoom(ctx context.Context, roomID string) (*store.Room, error) {
	room, err := x.rooms.GetRoom(ctx, roomID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrRoomNotFound
		}
		return nil, fmt.Errorf("get room: %w", err)
	}
	return room, nil
}

// AddMember adds connKey to the room. Adding an existing member changes nothing.
func (x *RoomIndex) AddMember(ctx context.Context, roomID, connKey string) error {
	if err := x.rooms.AddMember(ctx, roomID, connKey); err != nil {
		return fmt.Errorf("add member: %w", err)
	}
	return nil
}

// RemoveMember removes connKey from the room. Removing a non-member changes nothing.
func (x *RoomIndex) RemoveMember(ctx context.Context, roomID, connKey string) error {
	if err := x.rooms.RemoveMember(ctx, roomID, connKey); err != nil {
		return fmt.Errorf("remove member: %w", err)
	}
	return nil
}

// IsMember reports whether connKey belongs to the room.
func (x *RoomIndex) IsMember(ctx context.Context, roomID, connKey string) (bool, error) {
	ok, err := x.rooms.IsMember(ctx, roomID, connKey)
	if err != nil {
		return false, fmt.Errorf("check membership: %w", err)
	}
	return ok, nil
}

// ListMembers returns the connection keys of the room, each at most once.
func (x *RoomIndex) ListMembers(ctx context.Context, roomID string) ([]string, error) {
	keys, err := x.rooms.ListMembers(ctx, roomID)
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	seen := make(map[string]struct{}, len(keys))
	out := keys[:0]
	for _, k := range keys {
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	return out, nil
}

// ListMemberUsernames resolves the members of a room to display names.
// Members whose session is gone are skipped.
func (x *RoomIndex) ListMemberUsernames(ctx context.Context, roomID string) ([]Member, error) {
	keys, err := x.ListMembers(ctx, roomID)
	if err != nil {
		return nil, err
	}
	members := make([]Member, 0, len(keys))
	for _, k := range keys {
		name, ok, err := x.registry.Username(ctx, k)
		if err != nil {
			return nil, err
		}
		if !ok {
			x.log.Debug().Str("room", roomID).Str("conn", k).Msg("skipping stale member")
			continue
		}
		members = append(members, Member{Key: k, Username: name})
	}
	return members, nil
}

// RoomsOf returns the rooms connKey belongs to.
func (x *RoomIndex) RoomsOf(ctx context.Context, connKey string) ([]string, error) {
	roomIDs, err := x.rooms.ListMemberRooms(ctx, connKey)
	if err != nil {
		return nil, fmt.Errorf("list member rooms: %w", err)
	}
	return roomIDs, nil
}

// OwnedBy returns the rooms created by connKey that still exist.
func (x *RoomIndex) OwnedBy(ctx context.Context, connKey string) ([]*store.Room, error) {
	rooms, err := x.rooms.ListRoomsByOwner(ctx, connKey)
	if err != nil {
		return nil, fmt.Errorf("list owned rooms: %w", err)
	}
	return rooms, nil
}
