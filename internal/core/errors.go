package core

import (
	"errors"
	"fmt"

	"github.com/vovakirdan/wirechat-rooms/internal/proto"
)

// Error codes for domain errors.
const (
	ErrCodeRoomNotFound   = "room_not_found"
	ErrCodeNotInRoom      = "not_in_room"
	ErrCodeBadRequest     = "bad_request"
	ErrCodeInvalidContent = "invalid_content"
	ErrCodeInternal       = "internal"
)

var (
	ErrRoomNotFound = coreError(ErrCodeRoomNotFound, "room not found")
	ErrNotInRoom    = coreError(ErrCodeNotInRoom, "not in room")

	// ErrConnectionGone is reported by a Gateway when the target connection no longer exists.
	ErrConnectionGone = errors.New("connection gone")
	// ErrSlowConsumer is reported by a Gateway when the connection cannot accept more events.
	ErrSlowConsumer = errors.New("slow consumer")
)

// CoreError wraps a code and human-readable message.
type CoreError struct {
	Code    string
	Message string
}

func (e *CoreError) Error() string {
	return e.Message
}

// Is matches any CoreError with the same code.
func (e *CoreError) Is(target error) bool {
	var other *CoreError
	if !errors.As(target, &other) {
		return false
	}
	return e.Code == other.Code
}

func coreError(code, msg string) *CoreError {
	return &CoreError{Code: code, Message: msg}
}

// BadRequest reports a missing or malformed request field.
func BadRequest(format string, args ...any) *CoreError {
	return coreError(ErrCodeBadRequest, fmt.Sprintf(format, args...))
}

func invalidContent(err error) *CoreError {
	return coreError(ErrCodeInvalidContent, err.Error())
}

// AsCoreError maps any error returned by Service to a CoreError.
// Unknown errors become a generic internal error so store details never leak.
func AsCoreError(err error) *CoreError {
	if err == nil {
		return nil
	}
	var ce *CoreError
	if errors.As(err, &ce) {
		return ce
	}
	if errors.Is(err, proto.ErrContentEmpty) || errors.Is(err, proto.ErrContentTooLong) {
		return invalidContent(err)
	}
	return coreError(ErrCodeInternal, "internal server error")
}
