package chat

import (
	"context"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/teris-io/shortid"

	"github.com/ET2780/buti-buzz-hub/internal/store"
	"github.com/ET2780/buti-buzz-hub/internal/types"
)

// Session wires the history loader, change feed, reconciler and presence
// tracker into one read model for a single connected user, plus the send
// operation. It is the only surface the rendering layer talks to.
type Session struct {
	log        *log.Logger
	repo       store.BuzzRepository
	user       types.Profile
	reconciler *Reconciler
	presence   *PresenceTracker
	feed       *ChangeFeed
	loader     *HistoryLoader

	cancel context.CancelFunc

	mu      sync.Mutex
	draft   string
	sending bool
	connErr error
	sendErr error
	closed  bool
}

func NewSession(logger *log.Logger, repo store.BuzzRepository, user types.Profile) *Session {
	s := &Session{
		log:        logger,
		repo:       repo,
		user:       user,
		reconciler: NewReconciler(logger, repo),
		presence:   NewPresenceTracker(logger),
		feed:       NewChangeFeed(logger, repo),
		loader:     NewHistoryLoader(logger, repo),
	}

	s.feed.OnInsert(s.reconciler.ApplyInsert)
	s.feed.OnProfileUpdate(s.handleProfileUpdate)

	return s
}

// Start loads the history into the reconciler, starts the change feed and
// announces the local user's presence. A failed load after all retries
// leaves the session up read-only with ConnectionError set.
func (s *Session) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	history, err := s.loader.Load(ctx)
	if err != nil {
		s.mu.Lock()
		s.connErr = err
		s.mu.Unlock()
		return err
	}

	s.reconciler.Initialize(history)

	go func() {
		if err := s.feed.Run(ctx); err != nil && ctx.Err() == nil {
			s.log.Println("change feed:", err)
		}
	}()

	s.presence.Announce(presenceEntryFor(s.localUser()))
	return nil
}

// localUser copies the local profile under the lock; the feed goroutine
// updates it on own-profile changes.
func (s *Session) localUser() types.Profile {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.user
}

// Send persists the current draft as a new message. Empty or whitespace-only
// drafts are a no-op; a second send while one is outstanding is rejected,
// not queued. The draft is cleared only on success, and no optimistic
// message is appended: the message shows up once the insert feed delivers it
// back.
func (s *Session) Send() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	text := strings.TrimSpace(s.draft)
	if text == "" {
		s.mu.Unlock()
		return ErrEmptyMessage
	}
	if s.sending {
		s.mu.Unlock()
		return ErrSendInFlight
	}
	s.sending = true
	s.sendErr = nil
	senderId := s.user.Id
	s.mu.Unlock()

	id, err := shortid.Generate()
	if err == nil {
		_, err = s.repo.CreateMessage(store.CreateMessageParams{
			Id:       id,
			Text:     text,
			SenderId: senderId,
		})
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.sending = false

	if err != nil {
		// keep the draft so the user can retry
		s.sendErr = err
		s.log.Println("send:", err)
		return err
	}

	s.draft = ""
	return nil
}

// SetDraft replaces the outgoing-text buffer.
func (s *Session) SetDraft(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.draft = text
}

func (s *Session) Draft() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.draft
}

// Messages returns the reconciler's canonical ordered collection.
func (s *Session) Messages() []types.Message {
	return s.reconciler.Messages()
}

// OnMessages registers an observer for message collection changes.
func (s *Session) OnMessages(fn func([]types.Message)) {
	s.reconciler.OnChange(fn)
}

// OnRoster registers an observer for roster changes.
func (s *Session) OnRoster(fn func([]types.PresenceEntry)) {
	s.presence.OnSync(fn)
}

// Presence exposes the session's roster tracker so a transport can feed
// roster syncs into it.
func (s *Session) Presence() *PresenceTracker {
	return s.presence
}

// ActiveUsers is the roster size excluding the local viewer.
func (s *Session) ActiveUsers() int {
	localId := s.localUser().Id
	n := 0
	for _, entry := range s.presence.Roster() {
		if entry.UserId == localId {
			continue
		}
		n++
	}
	return n
}

// ConnectionError reports the terminal history-load failure, if any.
func (s *Session) ConnectionError() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connErr
}

// SendError reports the last failed send, cleared on the next send attempt.
func (s *Session) SendError() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sendErr
}

// UpdateProfile persists profile edits and re-announces presence under the
// same id so the roster picks up the new attributes.
func (s *Session) UpdateProfile(params store.UpdateProfileParams) error {
	params.Id = s.localUser().Id
	updated, err := s.repo.UpdateProfile(params)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.user = profileFromRow(updated)
	user := s.user
	s.mu.Unlock()

	s.presence.Announce(presenceEntryFor(user))
	return nil
}

// Close cancels the feed subscription and removes the local user from the
// roster.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()

	if s.cancel != nil {
		s.cancel()
	}
	s.presence.Leave(s.localUser().Id)
}

// handleProfileUpdate overlays the change onto held messages and, when the
// change is the local user's own profile, re-announces presence.
func (s *Session) handleProfileUpdate(profile store.Profile) {
	s.reconciler.ApplyProfileChange(profile)

	s.mu.Lock()
	local := profile.Id == s.user.Id
	if local {
		s.user = profileFromRow(profile)
	}
	user := s.user
	s.mu.Unlock()

	if local {
		s.presence.Announce(presenceEntryFor(user))
	}
}

func presenceEntryFor(p types.Profile) types.PresenceEntry {
	avatar := p.Avatar
	if avatar == "" {
		avatar = types.DefaultAvatar
	}
	if p.Admin() {
		avatar = types.AdminAvatar
	}

	name := p.Name
	if name == "" {
		name = types.DefaultName
	}

	return types.PresenceEntry{
		UserId:      p.Id,
		Name:        name,
		Avatar:      avatar,
		IsAdmin:     p.Admin(),
		Tags:        p.Tags,
		OnlineSince: time.Now().UTC(),
	}
}
