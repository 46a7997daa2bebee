package client

import (
	"errors"
	"fmt"
)

var (
	// ErrTimeout is returned when no reply arrives before the request deadline.
	ErrTimeout = errors.New("request timed out")
	// ErrDisconnected is returned for requests pending when the connection closed,
	// and for every request issued after that.
	ErrDisconnected = errors.New("connection closed")
	// ErrMissingField is returned when a required request field is empty.
	ErrMissingField = errors.New("missing required field")
)

// RemoteError is an error reply from the server.
type RemoteError struct {
	Code    string
	Message string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}
