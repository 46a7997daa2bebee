package core

import (
	"context"
	"sync/atomic"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// Report summarizes a broadcast.
type Report struct {
	Recipients int
	Delivered  int
	Failed     int
}

// Fanout delivers one event to every member of a room.
// A failed delivery never stops delivery to the remaining members.
type Fanout struct {
	rooms       *RoomIndex
	gw          Gateway
	concurrency int
	log         zerolog.Logger
}

// NewFanout constructs a Fanout. concurrency <= 1 delivers sequentially.
func NewFanout(rooms *RoomIndex, gw Gateway, concurrency int, logger zerolog.Logger) *Fanout {
	return &Fanout{
		rooms:       rooms,
		gw:          gw,
		concurrency: concurrency,
		log:         logger.With().Str("component", "fanout").Logger(),
	}
}

// Broadcast sends ev to every member of roomID except exclude.
// Member lookup failures are logged and reported as an empty broadcast.
func (f *Fanout) Broadcast(ctx context.Context, roomID string, ev *Event, exclude string) Report {
	keys, err := f.rooms.ListMembers(ctx, roomID)
	if err != nil {
		f.log.Error().Err(err).Str("room", roomID).Str("event", ev.Kind.String()).Msg("broadcast: member lookup failed")
		return Report{}
	}
	if exclude != "" {
		filtered := keys[:0]
		for _, k := range keys {
			if k != exclude {
				filtered = append(filtered, k)
			}
		}
		keys = filtered
	}
	return f.deliver(ctx, roomID, keys, ev)
}

func (f *Fanout) deliver(ctx context.Context, roomID string, keys []string, ev *Event) Report {
	var delivered, failed atomic.Int64

	send := func(key string) {
		if err := f.gw.Deliver(ctx, key, ev); err != nil {
			failed.Add(1)
			f.log.Warn().Err(err).Str("room", roomID).Str("conn", key).Str("event", ev.Kind.String()).Msg("delivery failed")
			return
		}
		delivered.Add(1)
	}

	if f.concurrency <= 1 || len(keys) <= 1 {
		for _, k := range keys {
			send(k)
		}
	} else {
		var g errgroup.Group
		g.SetLimit(f.concurrency)
		for _, k := range keys {
			g.Go(func() error {
				send(k)
				return nil
			})
		}
		_ = g.Wait() //nolint:errcheck // send never returns an error
	}

	return Report{
		Recipients: len(keys),
		Delivered:  int(delivered.Load()),
		Failed:     int(failed.Load()),
	}
}
