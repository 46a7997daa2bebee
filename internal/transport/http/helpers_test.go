package http

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/wirechat-rooms/internal/client"
	"github.com/vovakirdan/wirechat-rooms/internal/config"
	"github.com/vovakirdan/wirechat-rooms/internal/core"
	"github.com/vovakirdan/wirechat-rooms/internal/proto"
	"github.com/vovakirdan/wirechat-rooms/internal/store/memory"
)

type testEnv struct {
	ts  *httptest.Server
	svc *core.Service
	hub *core.Hub
}

func startTestServer(t *testing.T, tweak func(*config.Config)) *testEnv {
	t.Helper()

	cfg := config.Default()
	cfg.Store.Driver = config.DriverMemory
	if tweak != nil {
		tweak(&cfg)
	}

	logger := zerolog.Nop()
	hub := core.NewHub(&logger)
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)

	svc := core.NewService(memory.New(), hub, &logger, core.Options{FanoutConcurrency: cfg.FanoutConcurrency})
	server := NewServer(svc, hub, &cfg, &logger)

	ts := httptest.NewServer(server.Handler)
	t.Cleanup(func() {
		ts.Close()
		cancel()
	})

	return &testEnv{ts: ts, svc: svc, hub: hub}
}

func (e *testEnv) wsURL() string {
	return strings.Replace(e.ts.URL, "http", "ws", 1) + "/ws"
}

// frameSink collects pushes delivered to a client.
type frameSink chan proto.Frame

func (s frameSink) handle(f proto.Frame) {
	select {
	case s <- f:
	default:
	}
}

func (e *testEnv) dial(t *testing.T, username string) (*client.Conn, frameSink) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	sink := make(frameSink, 32)
	conn, err := client.Dial(ctx, e.wsURL(), username,
		client.WithTimeout(3*time.Second),
		client.WithEventHandler(sink.handle),
	)
	if err != nil {
		t.Fatalf("dial %s: %v", username, err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn, sink
}

func waitFrame[T proto.Frame](t *testing.T, sink frameSink) T {
	t.Helper()

	timeout := time.After(3 * time.Second)
	for {
		select {
		case f := <-sink:
			if v, ok := f.(T); ok {
				return v
			}
		case <-timeout:
			var zero T
			t.Fatalf("no %T frame received", zero)
			return zero
		}
	}
}
