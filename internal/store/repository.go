package store

import "context"

type BuzzRepository interface {
	Ping() error
	CreateMessage(params CreateMessageParams) (Message, error)
	ListMessages(limit int) ([]Message, error)
	GetProfile(id string) (Profile, error)
	UpdateProfile(params UpdateProfileParams) (Profile, error)
	// Subscribe returns a stream of change events for the messages and
	// profiles tables. The stream is closed when ctx is cancelled. Events
	// may be delivered more than once across reconnects; consumers must be
	// idempotent.
	Subscribe(ctx context.Context) (<-chan ChangeEvent, error)
	Close() error
}
