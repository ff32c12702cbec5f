package chat

import (
	"log"
	"sync"

	"github.com/ET2780/buti-buzz-hub/internal/store"
	"github.com/ET2780/buti-buzz-hub/internal/types"
)

// ProfileSource resolves a sender's profile at insert time. Satisfied by
// store.BuzzRepository.
type ProfileSource interface {
	GetProfile(id string) (store.Profile, error)
}

// Reconciler owns the canonical ordered list of chat messages for one
// session. It merges message inserts and profile updates arriving from
// independent streams into a single consistent view. All mutations are
// serialized under one mutex so an index rebuild never races an insert.
type Reconciler struct {
	log      *log.Logger
	profiles ProfileSource

	// notifyMu is held across a mutation and its observer delivery so
	// snapshots reach observers in mutation order; mu alone guards the
	// state and is released before callbacks run.
	notifyMu sync.Mutex

	mu       sync.Mutex
	messages []types.Message
	// byId guards against duplicate delivery of the same row.
	byId map[string]struct{}
	// senderIdx maps sender id to the indices of their messages so a
	// profile change touches only the affected entries.
	senderIdx    map[string][]int
	profileCache map[string]types.Profile
	observers    []func([]types.Message)
}

func NewReconciler(logger *log.Logger, profiles ProfileSource) *Reconciler {
	return &Reconciler{
		log:          logger,
		profiles:     profiles,
		byId:         make(map[string]struct{}),
		senderIdx:    make(map[string][]int),
		profileCache: make(map[string]types.Profile),
	}
}

// OnChange registers an observer invoked with a copy of the full message
// list after every mutation that changed it.
func (r *Reconciler) OnChange(fn func([]types.Message)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.observers = append(r.observers, fn)
}

// Initialize replaces all state with the loaded history, rebuilding the
// sender index. Safe to call again on reconnect: it is a wholesale reset,
// not an append.
func (r *Reconciler) Initialize(history []store.Message) {
	r.notifyMu.Lock()
	defer r.notifyMu.Unlock()

	r.mu.Lock()

	r.messages = r.messages[:0]
	r.byId = make(map[string]struct{})
	r.senderIdx = make(map[string][]int)

	for _, row := range history {
		r.appendLocked(row)
	}

	snapshot := r.snapshotLocked()
	r.mu.Unlock()

	r.notify(snapshot)
}

// ApplyInsert folds one newly delivered row into the collection. A row whose
// id is already present is a no-op, so duplicate delivery across feed
// reconnects is harmless.
func (r *Reconciler) ApplyInsert(row store.Message) {
	r.notifyMu.Lock()
	defer r.notifyMu.Unlock()

	r.mu.Lock()

	if _, ok := r.byId[row.Id]; ok {
		r.mu.Unlock()
		return
	}

	r.appendLocked(row)
	snapshot := r.snapshotLocked()
	r.mu.Unlock()

	r.notify(snapshot)
}

// ApplyProfileChange replaces the sender snapshot on every message from the
// given sender. Message id, text and timestamp are untouched and the
// collection is never reordered.
func (r *Reconciler) ApplyProfileChange(profile store.Profile) {
	r.notifyMu.Lock()
	defer r.notifyMu.Unlock()

	r.mu.Lock()

	p := profileFromRow(profile)
	r.profileCache[p.Id] = p

	indices := r.senderIdx[p.Id]
	for _, i := range indices {
		r.messages[i].Sender = snapshotFor(p)
	}

	if len(indices) == 0 {
		// nothing held for this sender yet; the cached profile still
		// serves future inserts
		r.mu.Unlock()
		return
	}

	snapshot := r.snapshotLocked()
	r.mu.Unlock()

	r.notify(snapshot)
}

// Messages returns a copy of the canonical ordered collection.
func (r *Reconciler) Messages() []types.Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshotLocked()
}

func (r *Reconciler) appendLocked(row store.Message) {
	msg := types.Message{
		Id:          row.Id,
		Text:        row.Text,
		SenderId:    row.SenderId,
		IsAutomated: row.IsAutomated,
		CreatedAt:   row.CreatedAt,
	}

	if row.IsAutomated {
		// automated rows carry their snapshot inline and skip profile
		// resolution
		msg.Sender = types.SenderSnapshot{
			Name:   row.SenderName,
			Avatar: row.SenderAvatar,
		}
		if msg.Sender.Name == "" {
			msg.Sender.Name = types.DefaultName
		}
		if msg.Sender.Avatar == "" {
			msg.Sender.Avatar = types.DefaultAvatar
		}
	} else {
		msg.Sender = snapshotFor(r.resolveProfileLocked(row.SenderId))
	}

	r.messages = append(r.messages, msg)
	r.byId[row.Id] = struct{}{}
	r.senderIdx[row.SenderId] = append(r.senderIdx[row.SenderId], len(r.messages)-1)
}

// resolveProfileLocked returns the cached profile for id, fetching on demand.
// A missing or failing profile degrades to zero values; snapshotFor fills in
// the placeholder name and default glyph.
func (r *Reconciler) resolveProfileLocked(id string) types.Profile {
	if p, ok := r.profileCache[id]; ok {
		return p
	}

	row, err := r.profiles.GetProfile(id)
	if err != nil {
		r.log.Printf("resolve profile %q: %v", id, err)
		return types.Profile{Id: id}
	}

	p := profileFromRow(row)
	r.profileCache[id] = p
	return p
}

func (r *Reconciler) snapshotLocked() []types.Message {
	out := make([]types.Message, len(r.messages))
	copy(out, r.messages)
	return out
}

func (r *Reconciler) notify(messages []types.Message) {
	r.mu.Lock()
	observers := make([]func([]types.Message), len(r.observers))
	copy(observers, r.observers)
	r.mu.Unlock()

	for _, fn := range observers {
		fn(messages)
	}
}

// snapshotFor derives the display snapshot for a sender. Admin senders
// always show the fixed administrative image; non-admin senders fall back to
// the default glyph and placeholder name when their profile is empty.
func snapshotFor(p types.Profile) types.SenderSnapshot {
	s := types.SenderSnapshot{
		Name:         p.Name,
		Avatar:       p.Avatar,
		IsAdmin:      p.Admin(),
		Tags:         p.Tags,
		CustomStatus: p.CustomStatus,
	}

	if s.Name == "" {
		s.Name = types.DefaultName
	}
	if s.Avatar == "" {
		s.Avatar = types.DefaultAvatar
	}
	if s.IsAdmin {
		s.Avatar = types.AdminAvatar
	}

	return s
}

func profileFromRow(row store.Profile) types.Profile {
	return types.Profile{
		Id:           row.Id,
		Name:         row.Name,
		Avatar:       row.Avatar,
		Tags:         row.Tags,
		CustomStatus: row.CustomStatus,
		IsAdmin:      row.IsAdmin,
		UpdatedAt:    row.UpdatedAt,
	}
}
