package core

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/vovakirdan/wirechat-rooms/internal/store"
	"github.com/vovakirdan/wirechat-rooms/internal/store/memory"
)

func mustEvent(t *testing.T, ch <-chan *Event, kind EventKind) *Event {
	t.Helper()

	timeout := time.After(2 * time.Second)
	for {
		select {
		case ev, ok := <-ch:
			if !ok {
				t.Fatalf("channel closed while waiting for %v", kind)
			}
			if ev != nil && ev.Kind == kind {
				return ev
			}
		case <-timeout:
			t.Fatalf("expected event kind %v not received", kind)
			return nil
		}
	}
}

// recordingGateway stores deliveries per connection and can fail chosen connections.
type recordingGateway struct {
	mu   sync.Mutex
	got  map[string][]*Event
	fail map[string]error
}

func newRecordingGateway() *recordingGateway {
	return &recordingGateway{
		got:  make(map[string][]*Event),
		fail: make(map[string]error),
	}
}

func (g *recordingGateway) Deliver(_ context.Context, key string, ev *Event) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if err := g.fail[key]; err != nil {
		return err
	}
	g.got[key] = append(g.got[key], ev)
	return nil
}

func (g *recordingGateway) failFor(key string, err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.fail[key] = err
}

func (g *recordingGateway) events(key string) []*Event {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]*Event(nil), g.got[key]...)
}

func (g *recordingGateway) kinds(key string) []EventKind {
	var out []EventKind
	for _, ev := range g.events(key) {
		out = append(out, ev.Kind)
	}
	return out
}

func (g *recordingGateway) reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.got = make(map[string][]*Event)
}

// stepClock advances by one millisecond on every call.
func stepClock() func() time.Time {
	var mu sync.Mutex
	cur := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		cur = cur.Add(time.Millisecond)
		return cur
	}
}

func newTestService(t *testing.T, st store.Store) (*Service, *recordingGateway) {
	t.Helper()

	if st == nil {
		st = memory.New()
	}
	gw := newRecordingGateway()
	logger := zerolog.Nop()
	svc := NewService(st, gw, &logger, Options{Now: stepClock()})
	return svc, gw
}

func mustConnect(t *testing.T, svc *Service, key, name string) {
	t.Helper()
	if err := svc.Connect(context.Background(), key, name); err != nil {
		t.Fatalf("connect %s: %v", key, err)
	}
}

func mustCreate(t *testing.T, svc *Service, owner, name string) *store.Room {
	t.Helper()
	room, err := svc.CreateRoom(context.Background(), owner, name)
	if err != nil {
		t.Fatalf("create room: %v", err)
	}
	return room
}

func mustJoin(t *testing.T, svc *Service, key, roomID string) *JoinResult {
	t.Helper()
	res, err := svc.JoinRoom(context.Background(), key, roomID)
	if err != nil {
		t.Fatalf("%s join %s: %v", key, roomID, err)
	}
	return res
}

func equalKinds(a, b []EventKind) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
