package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/vovakirdan/wirechat-rooms/internal/client"
	"github.com/vovakirdan/wirechat-rooms/internal/proto"
)

func main() {
	if err := run(); err != nil {
		log.Printf("ws_smoke: %v", err)
		os.Exit(1)
	}
}

// run drives create -> join -> send -> leave with two connections and checks the pushes.
func run() error {
	addr := flag.String("addr", "ws://localhost:8080/ws", "WebSocket address")
	room := flag.String("room", "smoke", "room name")
	text := flag.String("text", "hello from smoke test", "message text to send")
	timeout := flag.Duration("timeout", 5*time.Second, "total timeout for the run")
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	pushes := make(chan proto.Frame, 16)
	owner, err := client.Dial(ctx, *addr, "smoke-owner")
	if err != nil {
		return fmt.Errorf("dial owner: %w", err)
	}
	defer owner.Close()

	guest, err := client.Dial(ctx, *addr, "smoke-guest", client.WithEventHandler(func(f proto.Frame) { pushes <- f }))
	if err != nil {
		return fmt.Errorf("dial guest: %w", err)
	}
	defer guest.Close()

	details, err := owner.CreateRoom(ctx, *room)
	if err != nil {
		return fmt.Errorf("create room: %w", err)
	}
	fmt.Printf("created room %s (%s)\n", details.RoomName, details.ID)

	if _, err := guest.JoinRoom(ctx, details.ID); err != nil {
		return fmt.Errorf("join room: %w", err)
	}
	if err := owner.SendMessage(ctx, details.ID, *text); err != nil {
		return fmt.Errorf("send message: %w", err)
	}
	msg, err := await[*proto.ChatMessage](ctx, pushes)
	if err != nil {
		return err
	}
	fmt.Printf("guest received: %s: %s\n", msg.Username, msg.Content)

	members, err := guest.QueryRoomMembers(ctx, details.ID)
	if err != nil {
		return fmt.Errorf("query members: %w", err)
	}
	fmt.Printf("members: %v\n", members)

	result, err := owner.LeaveRoom(ctx, details.ID)
	if err != nil {
		return fmt.Errorf("leave room: %w", err)
	}
	fmt.Println(result)

	closed, err := await[*proto.RoomClosed](ctx, pushes)
	if err != nil {
		return err
	}
	fmt.Printf("guest saw room %s closed (%s)\n", closed.ChatroomID, closed.Reason)
	return nil
}

func await[T proto.Frame](ctx context.Context, frames <-chan proto.Frame) (T, error) {
	for {
		select {
		case f := <-frames:
			if v, ok := f.(T); ok {
				return v, nil
			}
		case <-ctx.Done():
			var zero T
			return zero, fmt.Errorf("waiting for %T: %w", zero, ctx.Err())
		}
	}
}
