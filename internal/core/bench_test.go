package core

import (
	"context"
	"strconv"
	"testing"

	"github.com/rs/zerolog"
	"github.com/vovakirdan/wirechat-rooms/internal/store/memory"
)

func benchmarkRoomBroadcast(b *testing.B, recipients, concurrency int) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hub := NewHub(nil)
	go hub.Run(ctx)

	logger := zerolog.Nop()
	svc := NewService(memory.New(), hub, &logger, Options{FanoutConcurrency: concurrency})

	sender := NewClient("sender", "sender", 0)
	hub.RegisterClient(sender)
	room, err := svc.CreateRoom(ctx, sender.ID, "bench")
	if err != nil {
		b.Fatalf("create room: %v", err)
	}

	clients := make([]*Client, 0, recipients)
	for i := range recipients {
		c := NewClient("c"+strconv.Itoa(i), "client", 0)
		hub.RegisterClient(c)
		if _, err := svc.JoinRoom(ctx, c.ID, room.ID); err != nil {
			b.Fatalf("join: %v", err)
		}
		clients = append(clients, c)
	}

	// Drain events for all but the first recipient to avoid channel backpressure.
	target := clients[0]
	for _, c := range clients[1:] {
		go func(cl *Client) {
			for range cl.Events {
			}
		}(c)
	}
	for len(target.Events) > 0 {
		<-target.Events
	}

	b.ReportAllocs()
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		if _, err := svc.SendMessage(ctx, sender.ID, SendRequest{RoomID: room.ID, Content: "payload"}); err != nil {
			b.Fatalf("send: %v", err)
		}
		<-target.Events
	}
}

func BenchmarkRoomBroadcast_10(b *testing.B)           { benchmarkRoomBroadcast(b, 10, 1) }
func BenchmarkRoomBroadcast_100(b *testing.B)          { benchmarkRoomBroadcast(b, 100, 1) }
func BenchmarkRoomBroadcast_500(b *testing.B)          { benchmarkRoomBroadcast(b, 500, 1) }
func BenchmarkRoomBroadcast_500_Parallel(b *testing.B) { benchmarkRoomBroadcast(b, 500, 8) }
