package core

import (
	"context"
	"fmt"
	"testing"
)

func TestFanoutIsolatesFailedRecipient(t *testing.T) {
	for _, concurrency := range []int{1, 4} {
		t.Run(fmt.Sprintf("concurrency=%d", concurrency), func(t *testing.T) {
			svc, gw := newTestService(t, nil)
			svc.Fanout.concurrency = concurrency
			ctx := context.Background()

			room := mustCreate(t, svc, "a", "general")
			mustJoin(t, svc, "b", room.ID)
			mustJoin(t, svc, "c", room.ID)
			gw.reset()
			gw.failFor("b", ErrConnectionGone)

			report := svc.Fanout.Broadcast(ctx, room.ID, &Event{Kind: EventMemberLeft, Room: room.ID}, "")
			if report.Recipients != 3 || report.Delivered != 2 || report.Failed != 1 {
				t.Fatalf("unexpected report %+v", report)
			}
			for _, k := range []string{"a", "c"} {
				if !equalKinds(gw.kinds(k), []EventKind{EventMemberLeft}) {
					t.Fatalf("%s: expected delivery despite b failing, got %v", k, gw.kinds(k))
				}
			}
		})
	}
}

func TestFanoutExcludesSender(t *testing.T) {
	svc, gw := newTestService(t, nil)
	room := mustCreate(t, svc, "a", "general")
	mustJoin(t, svc, "b", room.ID)
	gw.reset()

	report := svc.Fanout.Broadcast(context.Background(), room.ID, &Event{Kind: EventChatMessage}, "a")
	if report.Recipients != 1 || report.Delivered != 1 {
		t.Fatalf("unexpected report %+v", report)
	}
	if len(gw.events("a")) != 0 {
		t.Fatalf("excluded connection received an event")
	}
}

func TestFanoutEmptyRoom(t *testing.T) {
	svc, _ := newTestService(t, nil)

	report := svc.Fanout.Broadcast(context.Background(), "nobody-here", &Event{Kind: EventChatMessage}, "")
	if report != (Report{}) {
		t.Fatalf("expected empty report, got %+v", report)
	}
}

func TestFanoutThroughHub(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hub := NewHub(nil)
	go hub.Run(ctx)

	svc, _ := newTestService(t, nil)
	svc.Fanout.gw = hub

	alice := NewClient("a", "alice", 4)
	bob := NewClient("b", "bob", 4)
	hub.RegisterClient(alice)
	hub.RegisterClient(bob)

	room := mustCreate(t, svc, "a", "general")
	mustJoin(t, svc, "b", room.ID)
	if _, err := svc.SendMessage(ctx, "a", SendRequest{RoomID: room.ID, Content: "hi"}); err != nil {
		t.Fatalf("send: %v", err)
	}

	ev := mustEvent(t, bob.Events, EventChatMessage)
	if ev.Message.Content != "hi" || ev.Room != room.ID {
		t.Fatalf("unexpected event %+v", ev)
	}
	joined := mustEvent(t, alice.Events, EventMemberJoined)
	if joined.User != DefaultUsername {
		t.Fatalf("expected unregistered bob to join as %q, got %q", DefaultUsername, joined.User)
	}
}
