// Package redis implements store.Store on top of Redis keys, sorted sets and lists.
//
// Layout (all keys share the configured prefix):
//
//	session:{key}           JSON session, written with SETNX
//	room:{id}               JSON room record
//	room:{id}:members       ZSET conn keys scored by join time
//	room:{id}:messages      LIST of JSON messages
//	conn:{key}:rooms        ZSET room ids the connection belongs to
//	owner:{key}:rooms       SET room ids the connection owns
//	message:seq             message id counter
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/vovakirdan/wirechat-rooms/internal/store"
)

// Options configures the Redis connection.
type Options struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
}

// RedisStore implements store.Store for Redis.
type RedisStore struct {
	client *goredis.Client
	prefix string
}

// New connects to Redis and verifies the connection.
func New(ctx context.Context, opts Options) (*RedisStore, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return NewWithClient(client, opts.Prefix), nil
}

// NewWithClient wraps an existing client.
func NewWithClient(client *goredis.Client, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "wirechat:"
	}
	return &RedisStore{client: client, prefix: prefix}
}

// Close closes the Redis client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

func (s *RedisStore) sessionKey(key string) string   { return s.prefix + "session:" + key }
func (s *RedisStore) roomKey(id string) string        { return s.prefix + "room:" + id }
func (s *RedisStore) membersKey(id string) string     { return s.prefix + "room:" + id + ":members" }
func (s *RedisStore) messagesKey(id string) string    { return s.prefix + "room:" + id + ":messages" }
func (s *RedisStore) connRoomsKey(key string) string  { return s.prefix + "conn:" + key + ":rooms" }
func (s *RedisStore) ownerRoomsKey(key string) string { return s.prefix + "owner:" + key + ":rooms" }
func (s *RedisStore) seqKey() string                  { return s.prefix + "message:seq" }

type sessionRecord struct {
	Key      string `json:"key"`
	Username string `json:"username"`
	JoinedAt int64  `json:"joined_at"`
}

type roomRecord struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	OwnerKey  string `json:"owner_key"`
	CreatedAt int64  `json:"created_at"`
}

type messageRecord struct {
	ID         int64  `json:"id"`
	RoomID     string `json:"room_id"`
	AuthorKey  string `json:"author_key"`
	AuthorName string `json:"author_name"`
	Content    string `json:"content"`
	Timestamp  int64  `json:"ts"`
}

// ==== SessionStore implementation ====

func (s *RedisStore) PutSession(ctx context.Context, sess *store.Session) error {
	data, err := json.Marshal(sessionRecord{Key: sess.Key, Username: sess.Username, JoinedAt: sess.JoinedAt.UnixNano()})
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	if err := s.client.SetNX(ctx, s.sessionKey(sess.Key), data, 0).Err(); err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

func (s *RedisStore) GetSession(ctx context.Context, key string) (*store.Session, error) {
	data, err := s.client.Get(ctx, s.sessionKey(key)).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, fmt.Errorf("session %s: %w", key, store.ErrNotFound)
		}
		return nil, fmt.Errorf("get session: %w", err)
	}
	var rec sessionRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("unmarshal session: %w", err)
	}
	return &store.Session{Key: rec.Key, Username: rec.Username, JoinedAt: time.Unix(0, rec.JoinedAt)}, nil
}

func (s *RedisStore) DeleteSession(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.sessionKey(key)).Err(); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// ==== RoomStore implementation ====

// CreateRoom writes the room record and the owner membership in one MULTI/EXEC.
func (s *RedisStore) CreateRoom(ctx context.Context, room *store.Room) error {
	data, err := json.Marshal(roomRecord{
		ID:        room.ID,
		Name:      room.Name,
		OwnerKey:  room.OwnerKey,
		CreatedAt: room.CreatedAt.UnixNano(),
	})
	if err != nil {
		return fmt.Errorf("marshal room: %w", err)
	}

	score := float64(room.CreatedAt.UnixNano())
	_, err = s.client.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.Set(ctx, s.roomKey(room.ID), data, 0)
		pipe.ZAddNX(ctx, s.membersKey(room.ID), goredis.Z{Score: score, Member: room.OwnerKey})
		pipe.ZAddNX(ctx, s.connRoomsKey(room.OwnerKey), goredis.Z{Score: score, Member: room.ID})
		pipe.SAdd(ctx, s.ownerRoomsKey(room.OwnerKey), room.ID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("insert room: %w", err)
	}
	return nil
}

func (s *RedisStore) GetRoom(ctx context.Context, id string) (*store.Room, error) {
	data, err := s.client.Get(ctx, s.roomKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, fmt.Errorf("room %s: %w", id, store.ErrNotFound)
		}
		return nil, fmt.Errorf("get room: %w", err)
	}
	return decodeRoom(data)
}

func decodeRoom(data []byte) (*store.Room, error) {
	var rec roomRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("unmarshal room: %w", err)
	}
	return &store.Room{
		ID:        rec.ID,
		Name:      rec.Name,
		OwnerKey:  rec.OwnerKey,
		CreatedAt: time.Unix(0, rec.CreatedAt),
	}, nil
}

func (s *RedisStore) DeleteRoom(ctx context.Context, id string) error {
	room, err := s.GetRoom(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		return err
	}
	_, err = s.client.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.Del(ctx, s.roomKey(id))
		pipe.SRem(ctx, s.ownerRoomsKey(room.OwnerKey), id)
		return nil
	})
	if err != nil {
		return fmt.Errorf("delete room: %w", err)
	}
	return nil
}

func (s *RedisStore) ListRoomsByOwner(ctx context.Context, ownerKey string) ([]*store.Room, error) {
	ids, err := s.client.SMembers(ctx, s.ownerRoomsKey(ownerKey)).Result()
	if err != nil {
		return nil, fmt.Errorf("query owned rooms: %w", err)
	}

	rooms := make([]*store.Room, 0, len(ids))
	for _, id := range ids {
		room, err := s.GetRoom(ctx, id)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				continue
			}
			return nil, err
		}
		rooms = append(rooms, room)
	}
	sort.Slice(rooms, func(i, j int) bool { return rooms[i].CreatedAt.Before(rooms[j].CreatedAt) })
	return rooms, nil
}

func (s *RedisStore) AddMember(ctx context.Context, roomID, connKey string) error {
	score := float64(time.Now().UnixNano())
	_, err := s.client.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.ZAddNX(ctx, s.membersKey(roomID), goredis.Z{Score: score, Member: connKey})
		pipe.ZAddNX(ctx, s.connRoomsKey(connKey), goredis.Z{Score: score, Member: roomID})
		return nil
	})
	if err != nil {
		return fmt.Errorf("insert room member: %w", err)
	}
	return nil
}

func (s *RedisStore) RemoveMember(ctx context.Context, roomID, connKey string) error {
	_, err := s.client.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.ZRem(ctx, s.membersKey(roomID), connKey)
		pipe.ZRem(ctx, s.connRoomsKey(connKey), roomID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("delete room member: %w", err)
	}
	return nil
}

func (s *RedisStore) IsMember(ctx context.Context, roomID, connKey string) (bool, error) {
	err := s.client.ZScore(ctx, s.membersKey(roomID), connKey).Err()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return false, nil
		}
		return false, fmt.Errorf("query membership: %w", err)
	}
	return true, nil
}

func (s *RedisStore) ListMembers(ctx context.Context, roomID string) ([]string, error) {
	keys, err := s.client.ZRange(ctx, s.membersKey(roomID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("query members: %w", err)
	}
	return keys, nil
}

func (s *RedisStore) ListMemberRooms(ctx context.Context, connKey string) ([]string, error) {
	ids, err := s.client.ZRange(ctx, s.connRoomsKey(connKey), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("query member rooms: %w", err)
	}
	return ids, nil
}

func (s *RedisStore) DeleteMembers(ctx context.Context, roomID string) error {
	keys, err := s.ListMembers(ctx, roomID)
	if err != nil {
		return err
	}
	_, err = s.client.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		for _, key := range keys {
			pipe.ZRem(ctx, s.connRoomsKey(key), roomID)
		}
		pipe.Del(ctx, s.membersKey(roomID))
		return nil
	})
	if err != nil {
		return fmt.Errorf("delete room members: %w", err)
	}
	return nil
}

// ==== MessageStore implementation ====

func (s *RedisStore) AppendMessage(ctx context.Context, msg *store.Message) error {
	id, err := s.client.Incr(ctx, s.seqKey()).Result()
	if err != nil {
		return fmt.Errorf("next message id: %w", err)
	}
	data, err := json.Marshal(messageRecord{
		ID:         id,
		RoomID:     msg.RoomID,
		AuthorKey:  msg.AuthorKey,
		AuthorName: msg.AuthorName,
		Content:    msg.Content,
		Timestamp:  msg.Timestamp.UnixNano(),
	})
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}
	if err := s.client.RPush(ctx, s.messagesKey(msg.RoomID), data).Err(); err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	msg.ID = id
	return nil
}

func (s *RedisStore) ListMessages(ctx context.Context, roomID string) ([]*store.Message, error) {
	raw, err := s.client.LRange(ctx, s.messagesKey(roomID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}

	messages := make([]*store.Message, 0, len(raw))
	for _, item := range raw {
		var rec messageRecord
		if err := json.Unmarshal([]byte(item), &rec); err != nil {
			return nil, fmt.Errorf("unmarshal message: %w", err)
		}
		messages = append(messages, &store.Message{
			ID:         rec.ID,
			RoomID:     rec.RoomID,
			AuthorKey:  rec.AuthorKey,
			AuthorName: rec.AuthorName,
			Content:    rec.Content,
			Timestamp:  time.Unix(0, rec.Timestamp),
		})
	}
	sort.SliceStable(messages, func(i, j int) bool {
		if messages[i].Timestamp.Equal(messages[j].Timestamp) {
			return messages[i].ID < messages[j].ID
		}
		return messages[i].Timestamp.Before(messages[j].Timestamp)
	})
	return messages, nil
}

func (s *RedisStore) DeleteMessages(ctx context.Context, roomID string) error {
	if err := s.client.Del(ctx, s.messagesKey(roomID)).Err(); err != nil {
		return fmt.Errorf("delete messages: %w", err)
	}
	return nil
}

var _ store.Store = (*RedisStore)(nil)
