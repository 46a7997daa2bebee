// Package memory is an in-process store.Store used by tests and by the
// "memory" store driver for single-node development runs.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/vovakirdan/wirechat-rooms/internal/store"
)

type member struct {
	key      string
	joinedAt time.Time
	seq      int64
}

// Store keeps all records in maps guarded by a single RWMutex.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]store.Session
	rooms    map[string]store.Room
	members  map[string]map[string]member // roomID -> connKey -> member
	messages map[string][]store.Message   // roomID -> messages
	seq      int64
	now      func() time.Time
}

// New creates an empty store.
func New() *Store {
	return &Store{
		sessions: make(map[string]store.Session),
		rooms:    make(map[string]store.Room),
		members:  make(map[string]map[string]member),
		messages: make(map[string][]store.Message),
		now:      time.Now,
	}
}

// Close is a no-op.
func (s *Store) Close() error { return nil }

func (s *Store) PutSession(_ context.Context, sess *store.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[sess.Key]; ok {
		return nil
	}
	s.sessions[sess.Key] = *sess
	return nil
}

func (s *Store) GetSession(_ context.Context, key string) (*store.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[key]
	if !ok {
		return nil, fmt.Errorf("session %s: %w", key, store.ErrNotFound)
	}
	return &sess, nil
}

func (s *Store) DeleteSession(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.sessions, key)
	return nil
}

func (s *Store) CreateRoom(_ context.Context, room *store.Room) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.rooms[room.ID]; ok {
		return fmt.Errorf("insert room: duplicate id %s", room.ID)
	}
	s.rooms[room.ID] = *room
	s.addMemberLocked(room.ID, room.OwnerKey, room.CreatedAt)
	return nil
}

func (s *Store) GetRoom(_ context.Context, id string) (*store.Room, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	room, ok := s.rooms[id]
	if !ok {
		return nil, fmt.Errorf("room %s: %w", id, store.ErrNotFound)
	}
	return &room, nil
}

func (s *Store) DeleteRoom(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.rooms, id)
	return nil
}

func (s *Store) ListRoomsByOwner(_ context.Context, ownerKey string) ([]*store.Room, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var rooms []*store.Room
	for _, room := range s.rooms {
		if room.OwnerKey == ownerKey {
			r := room
			rooms = append(rooms, &r)
		}
	}
	sort.Slice(rooms, func(i, j int) bool { return rooms[i].CreatedAt.Before(rooms[j].CreatedAt) })
	return rooms, nil
}

func (s *Store) AddMember(_ context.Context, roomID, connKey string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.addMemberLocked(roomID, connKey, s.now())
	return nil
}

func (s *Store) addMemberLocked(roomID, connKey string, at time.Time) {
	set, ok := s.members[roomID]
	if !ok {
		set = make(map[string]member)
		s.members[roomID] = set
	}
	if _, exists := set[connKey]; exists {
		return
	}
	s.seq++
	set[connKey] = member{key: connKey, joinedAt: at, seq: s.seq}
}

func (s *Store) RemoveMember(_ context.Context, roomID, connKey string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if set, ok := s.members[roomID]; ok {
		delete(set, connKey)
		if len(set) == 0 {
			delete(s.members, roomID)
		}
	}
	return nil
}

func (s *Store) IsMember(_ context.Context, roomID, connKey string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.members[roomID][connKey]
	return ok, nil
}

func (s *Store) ListMembers(_ context.Context, roomID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	set := s.members[roomID]
	list := make([]member, 0, len(set))
	for _, m := range set {
		list = append(list, m)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].seq < list[j].seq })

	keys := make([]string, 0, len(list))
	for _, m := range list {
		keys = append(keys, m.key)
	}
	return keys, nil
}

func (s *Store) ListMemberRooms(_ context.Context, connKey string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	type entry struct {
		roomID string
		seq    int64
	}
	var entries []entry
	for roomID, set := range s.members {
		if m, ok := set[connKey]; ok {
			entries = append(entries, entry{roomID: roomID, seq: m.seq})
		}
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].seq < entries[j].seq })

	ids := make([]string, 0, len(entries))
	for _, e := range entries {
		ids = append(ids, e.roomID)
	}
	return ids, nil
}

func (s *Store) DeleteMembers(_ context.Context, roomID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.members, roomID)
	return nil
}

func (s *Store) AppendMessage(_ context.Context, msg *store.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.seq++
	msg.ID = s.seq
	s.messages[msg.RoomID] = append(s.messages[msg.RoomID], *msg)
	return nil
}

func (s *Store) ListMessages(_ context.Context, roomID string) ([]*store.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	history := s.messages[roomID]
	out := make([]*store.Message, 0, len(history))
	for i := range history {
		m := history[i]
		out = append(out, &m)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Timestamp.Equal(out[j].Timestamp) {
			return out[i].ID < out[j].ID
		}
		return out[i].Timestamp.Before(out[j].Timestamp)
	})
	return out, nil
}

func (s *Store) DeleteMessages(_ context.Context, roomID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.messages, roomID)
	return nil
}

var _ store.Store = (*Store)(nil)
