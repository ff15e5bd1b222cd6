package core

import "errors"

// Error codes for domain errors.
const (
	ErrCodeBadRequest         = "bad_request"
	ErrCodeNotInRoom          = "not_in_room"
	ErrCodeUnauthorized       = "unauthorized"
	ErrCodeUnsupportedVersion = "unsupported_version"
	ErrCodeRateLimited        = "rate_limited"
	ErrCodeInvalidMessage     = "invalid_message"
)

var (
	ErrBadRequest         = errors.New("bad request")
	ErrNotInRoom          = errors.New("not in room")
	ErrEmptyBoardID       = errors.New("board id is required")
	ErrBoardIDTooLong     = errors.New("board id is too long")
	ErrMissingElementID   = errors.New("element id is required")
	ErrDuplicateElementID = errors.New("duplicate element id")
	ErrHubClosed          = errors.New("hub closed")
)

// CoreError wraps a code and human-readable message.
type CoreError struct {
	Code    string
	Message string
}

func (e *CoreError) Error() string {
	return e.Message
}

func coreError(code, msg string) *CoreError {
	return &CoreError{Code: code, Message: msg}
}
