package app

import (
	"context"
	"errors"
	"net"
	"net/http"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/wirechat-rooms/internal/client"
	"github.com/vovakirdan/wirechat-rooms/internal/config"
	"github.com/vovakirdan/wirechat-rooms/internal/store"
	"github.com/vovakirdan/wirechat-rooms/internal/store/memory"
	"github.com/vovakirdan/wirechat-rooms/internal/store/sqlite"
)

func TestOpenStoreDrivers(t *testing.T) {
	ctx := context.Background()

	st, err := OpenStore(ctx, config.StoreConfig{Driver: config.DriverMemory})
	if err != nil {
		t.Fatalf("memory: %v", err)
	}
	if _, ok := st.(*memory.Store); !ok {
		t.Fatalf("expected memory store, got %T", st)
	}

	st, err = OpenStore(ctx, config.StoreConfig{Driver: config.DriverSQLite, SQLitePath: filepath.Join(t.TempDir(), "chat.db")})
	if err != nil {
		t.Fatalf("sqlite: %v", err)
	}
	defer st.Close()
	if _, ok := st.(*sqlite.SQLiteStore); !ok {
		t.Fatalf("expected sqlite store, got %T", st)
	}

	if _, err := OpenStore(ctx, config.StoreConfig{Driver: "postgres"}); err == nil {
		t.Fatalf("expected error for unknown driver")
	}
}

func freeAddr(t *testing.T) string {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := l.Addr().String()
	_ = l.Close()
	return addr
}

func TestRunServesUntilCancelled(t *testing.T) {
	cfg := config.Default()
	cfg.Addr = freeAddr(t)
	cfg.ShutdownTimeout = time.Second
	cfg.Store.Driver = config.DriverMemory
	logger := zerolog.Nop()

	ctx, cancel := context.WithCancel(context.Background())
	application, err := New(ctx, &cfg, &logger)
	if err != nil {
		t.Fatalf("new app: %v", err)
	}

	done := make(chan error, 1)
	go func() { done <- application.Run(ctx) }()

	deadline := time.Now().Add(3 * time.Second)
	for {
		resp, err := http.Get("http://" + cfg.Addr + "/health")
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode != http.StatusOK {
				t.Fatalf("health status %d", resp.StatusCode)
			}
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("server never became ready: %v", err)
		}
		time.Sleep(20 * time.Millisecond)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("run returned error: %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatalf("run did not stop after cancel")
	}
}

func waitHealthy(t *testing.T, addr string) {
	t.Helper()

	deadline := time.Now().Add(3 * time.Second)
	for {
		resp, err := http.Get("http://" + addr + "/health")
		if err == nil {
			resp.Body.Close()
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("server never became ready: %v", err)
		}
		time.Sleep(20 * time.Millisecond)
	}
}

func TestShutdownFinishesConnectionCleanupBeforeClosingStore(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "chat.db")

	cfg := config.Default()
	cfg.Addr = freeAddr(t)
	cfg.ShutdownTimeout = 3 * time.Second
	cfg.Store.Driver = config.DriverSQLite
	cfg.Store.SQLitePath = dbPath
	logger := zerolog.Nop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	application, err := New(ctx, &cfg, &logger)
	if err != nil {
		t.Fatalf("new app: %v", err)
	}

	done := make(chan error, 1)
	go func() { done <- application.Run(ctx) }()
	waitHealthy(t, cfg.Addr)

	dialCtx, dialCancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer dialCancel()
	conn, err := client.Dial(dialCtx, "ws://"+cfg.Addr+"/ws", "alice", client.WithTimeout(3*time.Second))
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	room, err := conn.CreateRoom(dialCtx, "lobby")
	if err != nil {
		t.Fatalf("create room: %v", err)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("run returned error: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("run did not stop after cancel")
	}

	st, err := OpenStore(context.Background(), config.StoreConfig{Driver: config.DriverSQLite, SQLitePath: dbPath})
	if err != nil {
		t.Fatalf("reopen store: %v", err)
	}
	defer st.Close()

	if _, err := st.GetRoom(context.Background(), room.ID); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected room owned by the closed connection to be gone, got %v", err)
	}
	members, err := st.ListMembers(context.Background(), room.ID)
	if err != nil || len(members) != 0 {
		t.Fatalf("expected no members left, got %v (err %v)", members, err)
	}
}
