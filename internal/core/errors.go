package core

import "errors"

// Error codes surfaced to the originating connection.
const (
	ErrCodeBadRequest     = "bad_request"
	ErrCodeUnknownEvent   = "unknown_event"
	ErrCodeNotIdentified  = "not_identified"
	ErrCodeDeliveryFailed = "delivery_failed"
	ErrCodeRateLimited    = "rate_limited"
)

var (
	ErrSessionClosed = errors.New("session closed")
	ErrHubStopped    = errors.New("hub stopped")
	ErrUnknownEvent  = errors.New("unknown event")
	ErrBadPayload    = errors.New("bad payload")

	errNoMessageStore = errors.New("message store not configured")
)

// CoreError wraps a code and human-readable message.
type CoreError struct {
	Code     string
	Message  string
	ClientID string // echoes the client's correlation id when known
	Err      error
}

func (e *CoreError) Error() string {
	return e.Message
}

func (e *CoreError) Unwrap() error {
	return e.Err
}

// NewCoreError builds an error surfaced to the originating connection.
func NewCoreError(code, msg string) *CoreError {
	return &CoreError{Code: code, Message: msg}
}

func badRequest(msg string, err error) *CoreError {
	return &CoreError{Code: ErrCodeBadRequest, Message: msg, Err: errors.Join(ErrBadPayload, err)}
}
