package core

// DefaultOutboxSize is the event buffer of a connection when none is configured.
const DefaultOutboxSize = 64

// Client is a live connection as seen by the Hub.
type Client struct {
	ID     string
	Name   string
	Events chan *Event
}

// NewClient constructs a client with an initialized event buffer.
func NewClient(id, name string, outbox int) *Client {
	if name == "" {
		name = DefaultUsername
	}
	if outbox <= 0 {
		outbox = DefaultOutboxSize
	}
	return &Client{
		ID:     id,
		Name:   name,
		Events: make(chan *Event, outbox),
	}
}
