// Package client is a Go client for the chat server. One Conn multiplexes any
// number of concurrent requests over a single WebSocket, matching replies to
// requests by id and handing server pushes to an event handler.
package client

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/rs/zerolog"
	"github.com/vovakirdan/wirechat-rooms/internal/ids"
	"github.com/vovakirdan/wirechat-rooms/internal/proto"
)

// DefaultTimeout bounds the wait for a reply.
const DefaultTimeout = 10 * time.Second

// EventHandler receives every frame that is not a reply to a pending request:
// *proto.ChatMessage, *proto.MemberJoined, *proto.MemberLeft, *proto.RoomClosed,
// or an uncorrelated *proto.Reply. It runs on the read goroutine.
type EventHandler func(proto.Frame)

// Option configures a Conn.
type Option func(*Conn)

// WithTimeout sets the per-request reply deadline.
func WithTimeout(d time.Duration) Option {
	return func(c *Conn) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithLogger sets the logger used for dropped and undecodable frames.
func WithLogger(logger zerolog.Logger) Option {
	return func(c *Conn) {
		c.log = logger
	}
}

// WithEventHandler registers the handler before the read loop starts.
func WithEventHandler(h EventHandler) Option {
	return func(c *Conn) {
		c.handler = h
	}
}

// Conn is one connection to the server.
type Conn struct {
	ws       *websocket.Conn
	username string
	timeout  time.Duration
	pending  *pending
	log      zerolog.Logger

	mu      sync.RWMutex
	handler EventHandler

	cancel    context.CancelFunc
	done      chan struct{}
	closeOnce sync.Once
	err       error
}

// JoinResult is the server's answer to a join.
type JoinResult struct {
	Room    *proto.RoomDetails
	History []proto.ChatMessage
}

// Dial connects to the WebSocket endpoint at rawURL, declaring username.
func Dial(ctx context.Context, rawURL, username string, opts ...Option) (*Conn, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse url: %w", err)
	}
	q := u.Query()
	if username != "" {
		q.Set("username", username)
	}
	q.Set("protocol", strconv.Itoa(proto.ProtocolVersion))
	u.RawQuery = q.Encode()

	ws, _, err := websocket.Dial(ctx, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("dial: %w", err)
	}

	c := &Conn{
		ws:       ws,
		username: username,
		timeout:  DefaultTimeout,
		pending:  newPending(),
		log:      zerolog.Nop(),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}

	readCtx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	go c.readLoop(readCtx)

	return c, nil
}

// OnEvent replaces the event handler. A nil handler drops pushes.
func (c *Conn) OnEvent(h EventHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handler = h
}

func (c *Conn) eventHandler() EventHandler {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.handler
}

// Done is closed once the connection is gone.
func (c *Conn) Done() <-chan struct{} {
	return c.done
}

// Err returns the error that ended the connection, after Done is closed.
func (c *Conn) Err() error {
	<-c.done
	return c.err
}

// Username returns the name declared at dial time.
func (c *Conn) Username() string {
	return c.username
}

// Close closes the connection and fails every pending request.
func (c *Conn) Close() error {
	select {
	case <-c.done:
		c.cancel()
		return nil
	default:
	}

	err := c.ws.Close(websocket.StatusNormalClosure, "bye")
	c.cancel()
	<-c.done
	if err != nil && !isClosedErr(err) {
		return fmt.Errorf("close: %w", err)
	}
	return nil
}

func (c *Conn) readLoop(ctx context.Context) {
	for {
		_, data, err := c.ws.Read(ctx)
		if err != nil {
			c.shutdown(err)
			return
		}

		frame, err := proto.Decode(data)
		if err != nil {
			c.log.Warn().Err(err).Msg("dropping undecodable frame")
			continue
		}

		if reply, ok := frame.(*proto.Reply); ok && reply.RequestID != "" {
			if !c.pending.resolve(reply) {
				c.log.Debug().Str("request_id", reply.RequestID).Msg("dropping reply with no pending request")
			}
			continue
		}

		if h := c.eventHandler(); h != nil {
			h(frame)
		}
	}
}

func (c *Conn) shutdown(err error) {
	c.closeOnce.Do(func() {
		c.err = err
		c.pending.failAll(ErrDisconnected)
		c.OnEvent(nil)
		close(c.done)
		c.log.Debug().Err(err).Msg("connection closed")
	})
}

// Do sends req with a fresh request id and waits for the matching reply.
// An error reply is returned as *RemoteError.
func (c *Conn) Do(ctx context.Context, req *proto.Request) (*proto.Reply, error) {
	req.RequestID = ids.NewRequestID()
	wait := c.pending.add(req.RequestID)

	select {
	case <-c.done:
		c.pending.remove(req.RequestID)
		return nil, ErrDisconnected
	default:
	}

	if err := wsjson.Write(ctx, c.ws, req); err != nil {
		c.pending.remove(req.RequestID)
		if isClosedErr(err) {
			return nil, ErrDisconnected
		}
		return nil, fmt.Errorf("send %s: %w", req.Action, err)
	}

	timer := time.NewTimer(c.timeout)
	defer timer.Stop()

	select {
	case res := <-wait:
		if res.err != nil {
			return nil, res.err
		}
		if res.reply.Error != nil {
			return res.reply, &RemoteError{Code: res.reply.Error.Code, Message: res.reply.Error.Msg}
		}
		return res.reply, nil
	case <-timer.C:
		c.pending.remove(req.RequestID)
		return nil, ErrTimeout
	case <-ctx.Done():
		c.pending.remove(req.RequestID)
		return nil, ctx.Err()
	}
}

// CreateRoom creates a room owned by this connection.
func (c *Conn) CreateRoom(ctx context.Context, name string) (*proto.RoomDetails, error) {
	if strings.TrimSpace(name) == "" {
		return nil, fmt.Errorf("roomName: %w", ErrMissingField)
	}
	reply, err := c.Do(ctx, &proto.Request{
		Action:   proto.ActionEnterRoom,
		Type:     proto.EnterTypeCreate,
		RoomName: name,
	})
	if err != nil {
		return nil, err
	}
	if reply.RoomDetails == nil {
		return nil, errors.New("create room: reply without room details")
	}
	return reply.RoomDetails, nil
}

// JoinRoom joins an existing room and returns its details and history.
func (c *Conn) JoinRoom(ctx context.Context, roomID string) (*JoinResult, error) {
	if roomID == "" {
		return nil, fmt.Errorf("chatroomId: %w", ErrMissingField)
	}
	reply, err := c.Do(ctx, &proto.Request{
		Action:     proto.ActionEnterRoom,
		Type:       proto.EnterTypeJoin,
		ChatroomID: roomID,
	})
	if err != nil {
		return nil, err
	}
	return &JoinResult{Room: reply.RoomDetails, History: reply.Messages}, nil
}

// LeaveRoom leaves a room and returns the server's description of what happened.
func (c *Conn) LeaveRoom(ctx context.Context, roomID string) (string, error) {
	if roomID == "" {
		return "", fmt.Errorf("chatroomId: %w", ErrMissingField)
	}
	reply, err := c.Do(ctx, &proto.Request{
		Action:     proto.ActionLeaveRoom,
		ChatroomID: roomID,
	})
	if err != nil {
		return "", err
	}
	return reply.Message, nil
}

// SendMessage posts content to a room. Invalid content is rejected without contacting the server.
func (c *Conn) SendMessage(ctx context.Context, roomID, content string) error {
	if roomID == "" {
		return fmt.Errorf("chatroomId: %w", ErrMissingField)
	}
	if err := proto.ValidateContent(content); err != nil {
		return err
	}
	now := time.Now().UTC()
	_, err := c.Do(ctx, &proto.Request{
		Action:     proto.ActionSendMessage,
		ChatroomID: roomID,
		Content:    content,
		Username:   c.username,
		Timestamp:  &now,
	})
	return err
}

// QueryRoomMembers lists the usernames of a room's members.
func (c *Conn) QueryRoomMembers(ctx context.Context, roomID string) ([]string, error) {
	if roomID == "" {
		return nil, fmt.Errorf("chatroomId: %w", ErrMissingField)
	}
	reply, err := c.Do(ctx, &proto.Request{
		Action:     proto.ActionQueryRoomMembers,
		ChatroomID: roomID,
	})
	if err != nil {
		return nil, err
	}
	return reply.Members, nil
}

func isClosedErr(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, net.ErrClosed) {
		return true
	}
	switch websocket.CloseStatus(err) {
	case websocket.StatusNormalClosure, websocket.StatusGoingAway:
		return true
	}
	return false
}
