package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	stdhttp "net/http"
	"strconv"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/wirechat-rooms/internal/config"
	"github.com/vovakirdan/wirechat-rooms/internal/core"
	"github.com/vovakirdan/wirechat-rooms/internal/ids"
	"github.com/vovakirdan/wirechat-rooms/internal/proto"
)

const (
	errCodeUnsupportedVersion = "unsupported_version"
	errCodeRateLimited        = "rate_limited"

	cleanupTimeout = 10 * time.Second
)

// WSHandler upgrades HTTP connections and bridges them to core.Service.
type WSHandler struct {
	svc             *core.Service
	hub             *core.Hub
	outboxSize      int
	maxMessageBytes int64
	ratePerMinute   int
	log             *zerolog.Logger

	active sync.WaitGroup
}

// NewWSHandler builds a new WebSocket handler.
func NewWSHandler(svc *core.Service, hub *core.Hub, cfg *config.Config, logger *zerolog.Logger) *WSHandler {
	return &WSHandler{
		svc:             svc,
		hub:             hub,
		outboxSize:      cfg.OutboxSize,
		maxMessageBytes: cfg.MaxMessageBytes,
		ratePerMinute:   cfg.RateLimitPerMinute,
		log:             logger,
	}
}

// Wait blocks until every connection served so far has run its cleanup, or ctx is done.
func (h *WSHandler) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		h.active.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (h *WSHandler) ServeHTTP(w stdhttp.ResponseWriter, r *stdhttp.Request) {
	h.active.Add(1)
	defer h.active.Done()

	ctx := r.Context()
	query := r.URL.Query()

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		h.log.Error().Err(err).Msg("ws accept error")
		return
	}
	defer conn.CloseNow()

	if v := query.Get("protocol"); v != "" {
		if n, err := strconv.Atoi(v); err != nil || n != proto.ProtocolVersion {
			h.rejectVersion(ctx, conn, v)
			return
		}
	}
	if h.maxMessageBytes > 0 {
		conn.SetReadLimit(h.maxMessageBytes)
	}

	username := query.Get("username")
	key := ids.NewConnKey()
	if err := h.svc.Connect(ctx, key, username); err != nil {
		h.log.Error().Err(err).Str("conn", key).Msg("register connection")
		conn.Close(websocket.StatusInternalError, "internal error")
		return
	}

	client := core.NewClient(key, username, h.outboxSize)
	h.hub.RegisterClient(client)
	defer h.cleanup(ctx, client)

	h.log.Info().Str("conn", key).Str("user", client.Name).Msg("connection opened")

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	errCh := make(chan error, 2)
	go func() {
		errCh <- h.readLoop(ctx, conn, client)
	}()
	go func() {
		errCh <- h.writeLoop(ctx, conn, client)
	}()

	err = <-errCh
	cancel() // stop the other goroutine
	<-errCh

	status := websocket.StatusNormalClosure
	reason := "closing"
	if err != nil && !errors.Is(err, context.Canceled) {
		if errors.Is(err, io.EOF) {
			err = nil
		}
		if s := websocket.CloseStatus(err); s != -1 {
			status = s
		}
		if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway {
			err = nil
		}
		if err != nil {
			if status == websocket.StatusNormalClosure {
				status = websocket.StatusInternalError
			}
			reason = "connection error"
			h.log.Warn().Err(err).Str("conn", key).Msg("ws connection closed with error")
		}
	}

	conn.Close(status, reason)
}

// cleanup drops the connection from the hub, then removes its rooms and memberships.
func (h *WSHandler) cleanup(parent context.Context, client *core.Client) {
	h.hub.UnregisterClient(client)

	ctx, cancel := context.WithTimeout(context.WithoutCancel(parent), cleanupTimeout)
	defer cancel()

	if err := h.svc.Disconnect(ctx, client.ID); err != nil {
		h.log.Error().Err(err).Str("conn", client.ID).Msg("disconnect cleanup failed")
		return
	}
	h.log.Info().Str("conn", client.ID).Msg("connection closed")
}

func (h *WSHandler) rejectVersion(ctx context.Context, conn *websocket.Conn, got string) {
	h.log.Warn().Str("protocol", got).Int("supported", proto.ProtocolVersion).Msg("unsupported protocol version")

	reply := proto.Reply{
		Type: proto.FrameReply,
		Error: &proto.Error{
			Code: errCodeUnsupportedVersion,
			Msg:  "supported protocol version is " + strconv.Itoa(proto.ProtocolVersion),
		},
	}
	if err := wsjson.Write(ctx, conn, reply); err != nil {
		h.log.Debug().Err(err).Msg("write version error")
	}
	conn.Close(websocket.StatusPolicyViolation, "unsupported protocol version")
}

func (h *WSHandler) readLoop(ctx context.Context, conn *websocket.Conn, client *core.Client) error {
	limiter := newRateLimiter(h.ratePerMinute)

	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			h.log.Debug().Err(err).Str("conn", client.ID).Msg("read ws request")
			return err
		}

		var req proto.Request
		var reply proto.Reply
		switch {
		case json.Unmarshal(data, &req) != nil:
			reply = errorReply("", &proto.Error{Code: core.ErrCodeBadRequest, Msg: "invalid JSON"})
		case !limiter.Allow():
			reply = errorReply(req.RequestID, &proto.Error{Code: errCodeRateLimited, Msg: "too many requests"})
		default:
			reply = h.handleRequest(ctx, client.ID, &req)
		}

		if err := wsjson.Write(ctx, conn, reply); err != nil {
			h.log.Error().Err(err).Str("conn", client.ID).Msg("write ws reply")
			return err
		}
	}
}

func (h *WSHandler) writeLoop(ctx context.Context, conn *websocket.Conn, client *core.Client) error {
	for {
		select {
		case event, ok := <-client.Events:
			if !ok {
				return nil
			}
			frame, ok := frameFromEvent(event)
			if !ok {
				h.log.Warn().Str("conn", client.ID).Str("event", event.Kind.String()).Msg("dropping unmappable event")
				continue
			}
			if err := wsjson.Write(ctx, conn, frame); err != nil {
				h.log.Error().Err(err).Str("conn", client.ID).Msg("write ws event")
				return err
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
