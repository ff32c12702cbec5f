package chat

import (
	"log"
	"sort"
	"sync"
	"time"

	"github.com/ET2780/buti-buzz-hub/internal/types"
)

// PresenceTracker maintains the shared roster for one room. Announcements
// are last-writer-wins per user id, and every roster change hands observers
// the entire current roster rather than a delta.
type PresenceTracker struct {
	log *log.Logger

	// notifyMu is held across a roster change and its observer delivery
	// so roster snapshots reach observers in change order; mu alone
	// guards the state and is released before callbacks run.
	notifyMu sync.Mutex

	mu        sync.Mutex
	roster    map[string]types.PresenceEntry
	observers []func([]types.PresenceEntry)
}

func NewPresenceTracker(logger *log.Logger) *PresenceTracker {
	return &PresenceTracker{
		log:    logger,
		roster: make(map[string]types.PresenceEntry),
	}
}

// OnSync registers an observer invoked with the full roster after every
// change.
func (pt *PresenceTracker) OnSync(fn func([]types.PresenceEntry)) {
	pt.mu.Lock()
	defer pt.mu.Unlock()
	pt.observers = append(pt.observers, fn)
}

// Announce publishes an entry under its user id, overwriting any stale prior
// entry for the same id. A re-announcement keeps the original online-since
// time so profile edits don't reset it.
func (pt *PresenceTracker) Announce(entry types.PresenceEntry) {
	pt.notifyMu.Lock()
	defer pt.notifyMu.Unlock()

	pt.mu.Lock()

	if prior, ok := pt.roster[entry.UserId]; ok {
		entry.OnlineSince = prior.OnlineSince
	} else if entry.OnlineSince.IsZero() {
		entry.OnlineSince = time.Now().UTC()
	}

	pt.roster[entry.UserId] = entry
	snapshot := pt.rosterLocked()
	pt.mu.Unlock()

	pt.notify(snapshot)
}

// Leave removes the entry for the given user id, if present.
func (pt *PresenceTracker) Leave(userId string) {
	pt.notifyMu.Lock()
	defer pt.notifyMu.Unlock()

	pt.mu.Lock()

	if _, ok := pt.roster[userId]; !ok {
		pt.mu.Unlock()
		return
	}

	delete(pt.roster, userId)
	snapshot := pt.rosterLocked()
	pt.mu.Unlock()

	pt.notify(snapshot)
}

// Roster returns the current roster, ordered by online-since then user id
// for stable output.
func (pt *PresenceTracker) Roster() []types.PresenceEntry {
	pt.mu.Lock()
	defer pt.mu.Unlock()
	return pt.rosterLocked()
}

func (pt *PresenceTracker) rosterLocked() []types.PresenceEntry {
	entries := make([]types.PresenceEntry, 0, len(pt.roster))
	for _, entry := range pt.roster {
		entries = append(entries, entry)
	}

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].OnlineSince.Equal(entries[j].OnlineSince) {
			return entries[i].UserId < entries[j].UserId
		}
		return entries[i].OnlineSince.Before(entries[j].OnlineSince)
	})

	return entries
}

func (pt *PresenceTracker) notify(roster []types.PresenceEntry) {
	pt.mu.Lock()
	observers := make([]func([]types.PresenceEntry), len(pt.observers))
	copy(observers, pt.observers)
	pt.mu.Unlock()

	for _, fn := range observers {
		fn(roster)
	}
}
