package chat

import (
	"context"
	"log"

	"github.com/ET2780/buti-buzz-hub/internal/store"
)

// ChangeFeed consumes the store's change-subscription stream and fans events
// out to typed callbacks. It does no filtering or deduplication of its own;
// delivery to consumers follows observation order and consumers are expected
// to be idempotent.
type ChangeFeed struct {
	log  *log.Logger
	repo store.BuzzRepository

	onInsert        []func(store.Message)
	onProfileUpdate []func(store.Profile)
}

func NewChangeFeed(logger *log.Logger, repo store.BuzzRepository) *ChangeFeed {
	return &ChangeFeed{
		log:  logger,
		repo: repo,
	}
}

// OnInsert registers a callback for newly created message rows. Must be
// called before Run.
func (f *ChangeFeed) OnInsert(fn func(store.Message)) {
	f.onInsert = append(f.onInsert, fn)
}

// OnProfileUpdate registers a callback for profile row changes, delivered
// for every user with no relevance filtering. Must be called before Run.
func (f *ChangeFeed) OnProfileUpdate(fn func(store.Profile)) {
	f.onProfileUpdate = append(f.onProfileUpdate, fn)
}

// Run subscribes to the store and dispatches events until ctx is cancelled
// or the stream closes. Malformed or unknown events are logged and dropped;
// a missed event self-heals on the next one.
func (f *ChangeFeed) Run(ctx context.Context) error {
	events, err := f.repo.Subscribe(ctx)
	if err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-events:
			if !ok {
				return nil
			}
			f.dispatch(event)
		}
	}
}

func (f *ChangeFeed) dispatch(event store.ChangeEvent) {
	switch event.Event {
	case store.EventMessageInsert:
		if event.Message == nil {
			f.log.Println("message insert event with no row")
			return
		}
		for _, fn := range f.onInsert {
			fn(*event.Message)
		}
	case store.EventProfileUpdate:
		if event.Profile == nil {
			f.log.Println("profile update event with no row")
			return
		}
		for _, fn := range f.onProfileUpdate {
			fn(*event.Profile)
		}
	default:
		f.log.Printf("dropping unknown change event %q", event.Event)
	}
}
