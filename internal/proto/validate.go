package proto

import (
	"errors"
	"strings"
	"unicode/utf8"
)

// MaxContentLength is the exclusive upper bound on message length, in runes.
const MaxContentLength = 1000

var (
	ErrContentEmpty   = errors.New("message content cannot be empty")
	ErrContentTooLong = errors.New("message content must be shorter than 1000 characters")
)

// ValidateContent checks chat message content before it is sent or stored.
func ValidateContent(content string) error {
	if strings.TrimSpace(content) == "" {
		return ErrContentEmpty
	}
	if utf8.RuneCountInString(content) >= MaxContentLength {
		return ErrContentTooLong
	}
	return nil
}
