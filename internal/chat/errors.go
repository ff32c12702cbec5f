package chat

import "errors"

var (
	// ErrLoadFailed is surfaced once the history load has exhausted its
	// retry budget. The session stays up read-only; no further automatic
	// retries are made.
	ErrLoadFailed = errors.New("message history load failed")
	// ErrEmptyMessage rejects empty or whitespace-only input. Callers
	// treat it as a no-op rather than a user-visible error.
	ErrEmptyMessage = errors.New("empty message")
	// ErrSendInFlight rejects a send while another send by the same
	// session is outstanding. Rejected, not queued.
	ErrSendInFlight = errors.New("send already in flight")
	// ErrSessionClosed is returned by operations on a closed session.
	ErrSessionClosed = errors.New("session closed")
)
