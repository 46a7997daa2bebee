// Package ids generates identifiers for connections, rooms and requests.
package ids

import (
	"crypto/rand"
	"encoding/hex"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// NewConnKey returns a best-effort unique key for a live connection.
func NewConnKey() string {
	const size = 12

	buf := make([]byte, size)
	if _, err := rand.Read(buf); err == nil {
		return hex.EncodeToString(buf)
	}

	// Fallback to timestamp if crypto/rand is unavailable.
	return "c" + strconv.FormatInt(time.Now().UnixNano(), 36)
}

// NewRoomID returns a new room identifier.
func NewRoomID() string {
	return uuid.NewString()
}

// NewRequestID returns a correlation id for a client request.
func NewRequestID() string {
	return uuid.NewString()
}
