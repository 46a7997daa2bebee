// Package storetest holds the behaviour every store.Store implementation must share.
package storetest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/vovakirdan/wirechat-rooms/internal/store"
)

// Factory returns a fresh, empty store. The suite closes it.
type Factory func(t *testing.T) store.Store

// Run executes the contract suite against stores built by newStore.
func Run(t *testing.T, newStore Factory) {
	t.Helper()

	tests := []struct {
		name string
		fn   func(t *testing.T, st store.Store)
	}{
		{"SessionInsertIfAbsent", testSessionInsertIfAbsent},
		{"CreateRoomRegistersOwner", testCreateRoomRegistersOwner},
		{"AddMemberIdempotent", testAddMemberIdempotent},
		{"RemoveMemberIdempotent", testRemoveMemberIdempotent},
		{"MemberRoomsIndex", testMemberRoomsIndex},
		{"MessagesOrderedByTimestamp", testMessagesOrdered},
		{"DeleteRoomCascadeSteps", testDeleteCascadeSteps},
		{"ListRoomsByOwner", testListRoomsByOwner},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := newStore(t)
			defer st.Close()
			tt.fn(t, st)
		})
	}
}

func newRoom(id, owner string) *store.Room {
	return &store.Room{ID: id, Name: "room-" + id, OwnerKey: owner, CreatedAt: time.Now()}
}

func testSessionInsertIfAbsent(t *testing.T, st store.Store) {
	ctx := context.Background()

	if err := st.PutSession(ctx, &store.Session{Key: "c1", Username: "alice", JoinedAt: time.Now()}); err != nil {
		t.Fatalf("put session: %v", err)
	}
	if err := st.PutSession(ctx, &store.Session{Key: "c1", Username: "mallory", JoinedAt: time.Now()}); err != nil {
		t.Fatalf("second put session: %v", err)
	}

	sess, err := st.GetSession(ctx, "c1")
	if err != nil {
		t.Fatalf("get session: %v", err)
	}
	if sess.Username != "alice" {
		t.Fatalf("expected first username to stick, got %q", sess.Username)
	}

	if err := st.DeleteSession(ctx, "c1"); err != nil {
		t.Fatalf("delete session: %v", err)
	}
	if _, err := st.GetSession(ctx, "c1"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
	if err := st.DeleteSession(ctx, "c1"); err != nil {
		t.Fatalf("deleting absent session should be a no-op: %v", err)
	}
}

func testCreateRoomRegistersOwner(t *testing.T, st store.Store) {
	ctx := context.Background()

	if err := st.CreateRoom(ctx, newRoom("r1", "owner")); err != nil {
		t.Fatalf("create room: %v", err)
	}

	room, err := st.GetRoom(ctx, "r1")
	if err != nil {
		t.Fatalf("get room: %v", err)
	}
	if room.OwnerKey != "owner" || room.Name != "room-r1" {
		t.Fatalf("unexpected room: %+v", room)
	}

	members, err := st.ListMembers(ctx, "r1")
	if err != nil {
		t.Fatalf("list members: %v", err)
	}
	if len(members) != 1 || members[0] != "owner" {
		t.Fatalf("expected owner as sole member, got %v", members)
	}

	if _, err := st.GetRoom(ctx, "missing"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for missing room, got %v", err)
	}
}

func testAddMemberIdempotent(t *testing.T, st store.Store) {
	ctx := context.Background()

	if err := st.CreateRoom(ctx, newRoom("r1", "owner")); err != nil {
		t.Fatalf("create room: %v", err)
	}
	for i := 0; i < 2; i++ {
		if err := st.AddMember(ctx, "r1", "bob"); err != nil {
			t.Fatalf("add member #%d: %v", i+1, err)
		}
	}
	if err := st.AddMember(ctx, "r1", "owner"); err != nil {
		t.Fatalf("re-add owner: %v", err)
	}

	members, err := st.ListMembers(ctx, "r1")
	if err != nil {
		t.Fatalf("list members: %v", err)
	}
	if len(members) != 2 || members[0] != "owner" || members[1] != "bob" {
		t.Fatalf("expected [owner bob], got %v", members)
	}

	ok, err := st.IsMember(ctx, "r1", "bob")
	if err != nil || !ok {
		t.Fatalf("expected bob to be a member, ok=%v err=%v", ok, err)
	}
}

func testRemoveMemberIdempotent(t *testing.T, st store.Store) {
	ctx := context.Background()

	if err := st.CreateRoom(ctx, newRoom("r1", "owner")); err != nil {
		t.Fatalf("create room: %v", err)
	}
	if err := st.RemoveMember(ctx, "r1", "stranger"); err != nil {
		t.Fatalf("remove non-member: %v", err)
	}
	if err := st.RemoveMember(ctx, "ghost-room", "stranger"); err != nil {
		t.Fatalf("remove from unknown room: %v", err)
	}

	members, err := st.ListMembers(ctx, "r1")
	if err != nil {
		t.Fatalf("list members: %v", err)
	}
	if len(members) != 1 || members[0] != "owner" {
		t.Fatalf("member set changed: %v", members)
	}

	ok, err := st.IsMember(ctx, "r1", "stranger")
	if err != nil || ok {
		t.Fatalf("expected stranger not to be a member, ok=%v err=%v", ok, err)
	}
}

func testMemberRoomsIndex(t *testing.T, st store.Store) {
	ctx := context.Background()

	for _, id := range []string{"r1", "r2"} {
		if err := st.CreateRoom(ctx, newRoom(id, "owner-"+id)); err != nil {
			t.Fatalf("create room %s: %v", id, err)
		}
		if err := st.AddMember(ctx, id, "bob"); err != nil {
			t.Fatalf("add member: %v", err)
		}
	}

	rooms, err := st.ListMemberRooms(ctx, "bob")
	if err != nil {
		t.Fatalf("list member rooms: %v", err)
	}
	if len(rooms) != 2 {
		t.Fatalf("expected 2 rooms, got %v", rooms)
	}

	if err := st.RemoveMember(ctx, "r1", "bob"); err != nil {
		t.Fatalf("remove member: %v", err)
	}
	rooms, err = st.ListMemberRooms(ctx, "bob")
	if err != nil {
		t.Fatalf("list member rooms: %v", err)
	}
	if len(rooms) != 1 || rooms[0] != "r2" {
		t.Fatalf("expected [r2], got %v", rooms)
	}
}

func testMessagesOrdered(t *testing.T, st store.Store) {
	ctx := context.Background()

	base := time.Now()
	inputs := []struct {
		content string
		ts      time.Time
	}{
		{"second", base.Add(2 * time.Millisecond)},
		{"first", base.Add(time.Millisecond)},
		{"third", base.Add(3 * time.Millisecond)},
	}
	for _, in := range inputs {
		msg := &store.Message{RoomID: "r1", AuthorKey: "c1", AuthorName: "alice", Content: in.content, Timestamp: in.ts}
		if err := st.AppendMessage(ctx, msg); err != nil {
			t.Fatalf("append message: %v", err)
		}
		if msg.ID == 0 {
			t.Fatalf("expected message id to be set")
		}
	}

	history, err := st.ListMessages(ctx, "r1")
	if err != nil {
		t.Fatalf("list messages: %v", err)
	}
	want := []string{"first", "second", "third"}
	if len(history) != len(want) {
		t.Fatalf("expected %d messages, got %d", len(want), len(history))
	}
	for i, msg := range history {
		if msg.Content != want[i] {
			t.Fatalf("message %d: expected %q, got %q", i, want[i], msg.Content)
		}
		if msg.AuthorName != "alice" {
			t.Fatalf("author name not preserved: %+v", msg)
		}
	}

	other, err := st.ListMessages(ctx, "r2")
	if err != nil {
		t.Fatalf("list other room: %v", err)
	}
	if len(other) != 0 {
		t.Fatalf("expected empty history for other room, got %d", len(other))
	}
}

func testDeleteCascadeSteps(t *testing.T, st store.Store) {
	ctx := context.Background()

	if err := st.CreateRoom(ctx, newRoom("r1", "owner")); err != nil {
		t.Fatalf("create room: %v", err)
	}
	if err := st.AddMember(ctx, "r1", "bob"); err != nil {
		t.Fatalf("add member: %v", err)
	}
	if err := st.AppendMessage(ctx, &store.Message{RoomID: "r1", AuthorKey: "owner", AuthorName: "o", Content: "hi", Timestamp: time.Now()}); err != nil {
		t.Fatalf("append: %v", err)
	}

	// Run the steps twice: every one of them must be idempotent.
	for i := 0; i < 2; i++ {
		if err := st.DeleteMembers(ctx, "r1"); err != nil {
			t.Fatalf("delete members: %v", err)
		}
		if err := st.DeleteMessages(ctx, "r1"); err != nil {
			t.Fatalf("delete messages: %v", err)
		}
		if err := st.DeleteRoom(ctx, "r1"); err != nil {
			t.Fatalf("delete room: %v", err)
		}
	}

	if _, err := st.GetRoom(ctx, "r1"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected room to be gone, got %v", err)
	}
	members, err := st.ListMembers(ctx, "r1")
	if err != nil || len(members) != 0 {
		t.Fatalf("expected no members, got %v (err %v)", members, err)
	}
	history, err := st.ListMessages(ctx, "r1")
	if err != nil || len(history) != 0 {
		t.Fatalf("expected no messages, got %d (err %v)", len(history), err)
	}
	rooms, err := st.ListMemberRooms(ctx, "bob")
	if err != nil || len(rooms) != 0 {
		t.Fatalf("expected bob to belong to no rooms, got %v (err %v)", rooms, err)
	}
	owned, err := st.ListRoomsByOwner(ctx, "owner")
	if err != nil || len(owned) != 0 {
		t.Fatalf("expected no owned rooms, got %d (err %v)", len(owned), err)
	}
}

func testListRoomsByOwner(t *testing.T, st store.Store) {
	ctx := context.Background()

	if err := st.CreateRoom(ctx, newRoom("r1", "alice")); err != nil {
		t.Fatalf("create r1: %v", err)
	}
	if err := st.CreateRoom(ctx, newRoom("r2", "bob")); err != nil {
		t.Fatalf("create r2: %v", err)
	}

	rooms, err := st.ListRoomsByOwner(ctx, "alice")
	if err != nil {
		t.Fatalf("list rooms: %v", err)
	}
	if len(rooms) != 1 || rooms[0].ID != "r1" {
		t.Fatalf("expected [r1], got %+v", rooms)
	}
}
