package core

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/vovakirdan/wirechat-rooms/internal/store/memory"
)

func TestCreateRoomOwnerIsMember(t *testing.T) {
	svc, _ := newTestService(t, nil)
	ctx := context.Background()
	mustConnect(t, svc, "alice", "Alice")

	room := mustCreate(t, svc, "alice", "  general  ")
	if room.Name != "general" || room.OwnerKey != "alice" || room.ID == "" {
		t.Fatalf("unexpected room: %+v", room)
	}

	members, err := svc.QueryMembers(ctx, "alice", room.ID)
	if err != nil {
		t.Fatalf("query members: %v", err)
	}
	if len(members) != 1 || members[0].Username != "Alice" {
		t.Fatalf("expected [Alice], got %+v", members)
	}
}

func TestCreateRoomRejectsBadNames(t *testing.T) {
	svc, _ := newTestService(t, nil)

	for _, name := range []string{"", "   ", strings.Repeat("x", MaxRoomNameLength+1)} {
		_, err := svc.CreateRoom(context.Background(), "alice", name)
		if AsCoreError(err).Code != ErrCodeBadRequest {
			t.Fatalf("name %q: expected bad_request, got %v", name, err)
		}
	}
}

func TestCreateRoomIDsAreUnique(t *testing.T) {
	svc, _ := newTestService(t, nil)
	a := mustCreate(t, svc, "alice", "same")
	b := mustCreate(t, svc, "alice", "same")
	if a.ID == b.ID {
		t.Fatalf("expected distinct room ids")
	}
}

func TestJoinMissingRoom(t *testing.T) {
	svc, _ := newTestService(t, nil)

	_, err := svc.JoinRoom(context.Background(), "bob", "nope")
	if !errors.Is(err, ErrRoomNotFound) {
		t.Fatalf("expected ErrRoomNotFound, got %v", err)
	}
	if _, err := svc.JoinRoom(context.Background(), "bob", ""); AsCoreError(err).Code != ErrCodeBadRequest {
		t.Fatalf("expected bad_request for empty id, got %v", err)
	}
}

func TestJoinNotifiesOthersAndReturnsHistory(t *testing.T) {
	svc, gw := newTestService(t, nil)
	ctx := context.Background()
	mustConnect(t, svc, "alice", "Alice")
	mustConnect(t, svc, "bob", "Bob")

	room := mustCreate(t, svc, "alice", "general")
	for _, text := range []string{"one", "two"} {
		if _, err := svc.SendMessage(ctx, "alice", SendRequest{RoomID: room.ID, Content: text}); err != nil {
			t.Fatalf("send: %v", err)
		}
	}

	res := mustJoin(t, svc, "bob", room.ID)
	if res.Room.ID != room.ID {
		t.Fatalf("unexpected room in join result: %+v", res.Room)
	}
	if len(res.History) != 2 || res.History[0].Content != "one" || res.History[1].Content != "two" {
		t.Fatalf("unexpected history: %+v", res.History)
	}

	evs := gw.events("alice")
	if len(evs) != 1 || evs[0].Kind != EventMemberJoined || evs[0].User != "Bob" {
		t.Fatalf("expected one member_joined for alice, got %+v", evs)
	}
	if len(gw.events("bob")) != 0 {
		t.Fatalf("joiner must not be notified of its own join")
	}
}

func TestJoinTwiceKeepsOneMembership(t *testing.T) {
	svc, _ := newTestService(t, nil)
	mustConnect(t, svc, "alice", "Alice")
	mustConnect(t, svc, "bob", "Bob")
	room := mustCreate(t, svc, "alice", "general")

	mustJoin(t, svc, "bob", room.ID)
	mustJoin(t, svc, "bob", room.ID)
	mustJoin(t, svc, "alice", room.ID)

	members, err := svc.QueryMembers(context.Background(), "bob", room.ID)
	if err != nil {
		t.Fatalf("query members: %v", err)
	}
	if len(members) != 2 || members[0].Username != "Alice" || members[1].Username != "Bob" {
		t.Fatalf("expected [Alice Bob], got %+v", members)
	}
}

func TestSendMessageDeliversToOthersOnly(t *testing.T) {
	svc, gw := newTestService(t, nil)
	ctx := context.Background()
	for _, k := range []string{"alice", "bob", "carol"} {
		mustConnect(t, svc, k, strings.ToUpper(k[:1])+k[1:])
	}
	room := mustCreate(t, svc, "alice", "general")
	mustJoin(t, svc, "bob", room.ID)
	mustJoin(t, svc, "carol", room.ID)
	gw.reset()

	msg, err := svc.SendMessage(ctx, "bob", SendRequest{RoomID: room.ID, Content: "hello"})
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if msg.AuthorName != "Bob" || msg.AuthorKey != "bob" || msg.ID == 0 {
		t.Fatalf("unexpected stored message: %+v", msg)
	}

	for _, k := range []string{"alice", "carol"} {
		evs := gw.events(k)
		if len(evs) != 1 || evs[0].Kind != EventChatMessage || evs[0].Message.Content != "hello" {
			t.Fatalf("%s: expected one chat message, got %+v", k, evs)
		}
	}
	if len(gw.events("bob")) != 0 {
		t.Fatalf("sender must not receive its own message")
	}
}

func TestSendMessageValidation(t *testing.T) {
	svc, _ := newTestService(t, nil)
	ctx := context.Background()
	mustConnect(t, svc, "alice", "Alice")
	room := mustCreate(t, svc, "alice", "general")

	tests := []struct {
		name    string
		key     string
		req     SendRequest
		code    string
		wantErr bool
	}{
		{"missing room id", "alice", SendRequest{Content: "hi"}, ErrCodeBadRequest, true},
		{"unknown room", "alice", SendRequest{RoomID: "nope", Content: "hi"}, ErrCodeRoomNotFound, true},
		{"not a member", "mallory", SendRequest{RoomID: room.ID, Content: "hi"}, ErrCodeNotInRoom, true},
		{"empty", "alice", SendRequest{RoomID: room.ID, Content: ""}, ErrCodeInvalidContent, true},
		{"whitespace", "alice", SendRequest{RoomID: room.ID, Content: " \t\n"}, ErrCodeInvalidContent, true},
		{"too long", "alice", SendRequest{RoomID: room.ID, Content: strings.Repeat("a", 1000)}, ErrCodeInvalidContent, true},
		{"longest allowed", "alice", SendRequest{RoomID: room.ID, Content: strings.Repeat("a", 999)}, "", false},
		{"multibyte counted as runes", "alice", SendRequest{RoomID: room.ID, Content: strings.Repeat("é", 999)}, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.SendMessage(ctx, tt.key, tt.req)
			if !tt.wantErr {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if got := AsCoreError(err); got == nil || got.Code != tt.code {
				t.Fatalf("expected %s, got %v", tt.code, err)
			}
		})
	}
}

func TestSendMessageAuthorFallback(t *testing.T) {
	svc, _ := newTestService(t, nil)
	ctx := context.Background()
	mustConnect(t, svc, "alice", "Alice")
	room := mustCreate(t, svc, "alice", "general")
	// "ghost" joins without ever registering a session.
	mustJoin(t, svc, "ghost", room.ID)

	tests := []struct {
		key, username, want string
	}{
		{"alice", "Alicia", "Alicia"},
		{"alice", "", "Alice"},
		{"ghost", "  ", DefaultUsername},
	}
	for _, tt := range tests {
		msg, err := svc.SendMessage(ctx, tt.key, SendRequest{RoomID: room.ID, Content: "hi", Username: tt.username})
		if err != nil {
			t.Fatalf("send: %v", err)
		}
		if msg.AuthorName != tt.want {
			t.Fatalf("key %s username %q: expected %q, got %q", tt.key, tt.username, tt.want, msg.AuthorName)
		}
	}
}

func TestSendMessageHonoursClientTimestamp(t *testing.T) {
	svc, _ := newTestService(t, nil)
	ctx := context.Background()
	mustConnect(t, svc, "alice", "Alice")
	room := mustCreate(t, svc, "alice", "general")

	early := time.Date(2020, 5, 1, 8, 0, 0, 0, time.UTC)
	if _, err := svc.SendMessage(ctx, "alice", SendRequest{RoomID: room.ID, Content: "late"}); err != nil {
		t.Fatalf("send: %v", err)
	}
	if _, err := svc.SendMessage(ctx, "alice", SendRequest{RoomID: room.ID, Content: "early", Timestamp: early}); err != nil {
		t.Fatalf("send: %v", err)
	}

	history, err := svc.Messages.History(ctx, room.ID)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(history) != 2 || history[0].Content != "early" || !history[0].Timestamp.Equal(early) {
		t.Fatalf("expected client-timestamped message first, got %+v", history)
	}
}

func TestQueryMembersMissingRoomIsEmpty(t *testing.T) {
	svc, _ := newTestService(t, nil)

	members, err := svc.QueryMembers(context.Background(), "alice", "gone")
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(members) != 0 {
		t.Fatalf("expected no members, got %+v", members)
	}
}

func TestQueryMembersSkipsStaleConnections(t *testing.T) {
	st := memory.New()
	svc, _ := newTestService(t, st)
	ctx := context.Background()
	mustConnect(t, svc, "alice", "Alice")
	mustConnect(t, svc, "bob", "Bob")
	room := mustCreate(t, svc, "alice", "general")
	mustJoin(t, svc, "bob", room.ID)

	if err := st.DeleteSession(ctx, "bob"); err != nil {
		t.Fatalf("delete session: %v", err)
	}

	members, err := svc.QueryMembers(ctx, "alice", room.ID)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(members) != 1 || members[0].Key != "alice" {
		t.Fatalf("expected only alice, got %+v", members)
	}
}

func TestConnectFirstUsernameWins(t *testing.T) {
	svc, _ := newTestService(t, nil)
	ctx := context.Background()
	mustConnect(t, svc, "c1", "first")
	mustConnect(t, svc, "c1", "second")
	mustConnect(t, svc, "c2", "")

	if name, _ := svc.Registry.DisplayName(ctx, "c1"); name != "first" {
		t.Fatalf("expected first, got %q", name)
	}
	if name, _ := svc.Registry.DisplayName(ctx, "c2"); name != DefaultUsername {
		t.Fatalf("expected default name, got %q", name)
	}
	if name, _ := svc.Registry.DisplayName(ctx, "unknown"); name != DefaultUsername {
		t.Fatalf("expected default name for unknown, got %q", name)
	}
}

func TestAsCoreErrorHidesInternalErrors(t *testing.T) {
	if AsCoreError(nil) != nil {
		t.Fatalf("nil must stay nil")
	}
	ce := AsCoreError(errors.New("disk on fire"))
	if ce.Code != ErrCodeInternal || strings.Contains(ce.Message, "disk") {
		t.Fatalf("unexpected mapping: %+v", ce)
	}
	wrapped := AsCoreError(errors.Join(errors.New("ctx"), ErrNotInRoom))
	if wrapped.Code != ErrCodeNotInRoom {
		t.Fatalf("expected not_in_room through wrapping, got %+v", wrapped)
	}
}
