package core

import "context"

// Gateway delivers events to a single live connection.
// Implementations must not block on a slow connection.
type Gateway interface {
	Deliver(ctx context.Context, connKey string, ev *Event) error
}
