package chat

import (
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ET2780/buti-buzz-hub/internal/testutil"
	"github.com/ET2780/buti-buzz-hub/internal/types"
)

func TestPresenceTrackerLastWriterWins(t *testing.T) {
	pt := NewPresenceTracker(testutil.TestLogger(t))

	pt.Announce(types.PresenceEntry{UserId: "u1", Name: "Dana", Avatar: "🍵"})
	pt.Announce(types.PresenceEntry{UserId: "u1", Name: "Dana K", Avatar: "🌊"})

	roster := pt.Roster()
	assert.Len(t, roster, 1, "expected exactly one entry per user id")
	assert.Equal(t, "Dana K", roster[0].Name, "expected latest attributes to win")
	assert.Equal(t, "🌊", roster[0].Avatar)
}

func TestPresenceTrackerReannounceKeepsOnlineSince(t *testing.T) {
	pt := NewPresenceTracker(testutil.TestLogger(t))

	pt.Announce(types.PresenceEntry{UserId: "u1", Name: "Dana"})
	first := pt.Roster()[0].OnlineSince
	assert.False(t, first.IsZero(), "expected online-since to be stamped on announce")

	pt.Announce(types.PresenceEntry{UserId: "u1", Name: "Dana K"})
	assert.Equal(t, first, pt.Roster()[0].OnlineSince,
		"expected profile edits not to reset online-since")
}

func TestPresenceTrackerLeave(t *testing.T) {
	pt := NewPresenceTracker(testutil.TestLogger(t))

	pt.Announce(types.PresenceEntry{UserId: "u1", Name: "Dana"})
	pt.Announce(types.PresenceEntry{UserId: "u2", Name: "Omri"})
	pt.Leave("u1")

	roster := pt.Roster()
	assert.Len(t, roster, 1)
	assert.Equal(t, "u2", roster[0].UserId)

	// leaving twice is harmless
	pt.Leave("u1")
	assert.Len(t, pt.Roster(), 1)
}

func TestPresenceTrackerRosterOrder(t *testing.T) {
	pt := NewPresenceTracker(testutil.TestLogger(t))

	base := time.Now().UTC()
	pt.Announce(types.PresenceEntry{UserId: "u2", Name: "Omri", OnlineSince: base.Add(time.Second)})
	pt.Announce(types.PresenceEntry{UserId: "u1", Name: "Dana", OnlineSince: base})

	roster := pt.Roster()
	assert.Equal(t, "u1", roster[0].UserId, "expected roster ordered by online-since")
	assert.Equal(t, "u2", roster[1].UserId)
}

func TestPresenceTrackerConcurrentAnnounceOrdering(t *testing.T) {
	pt := NewPresenceTracker(testutil.TestLogger(t))

	var mu sync.Mutex
	var sizes []int
	pt.OnSync(func(roster []types.PresenceEntry) {
		mu.Lock()
		sizes = append(sizes, len(roster))
		mu.Unlock()
	})

	const n = 50
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			pt.Announce(types.PresenceEntry{UserId: "u" + strconv.Itoa(i)})
		}(i)
	}
	wg.Wait()

	// announcements only grow the roster, so delivered snapshots must
	// never shrink; an inverted delivery would leave a stale, smaller
	// roster as an observer's last word
	mu.Lock()
	defer mu.Unlock()
	require.Len(t, sizes, n)
	for i := 1; i < len(sizes); i++ {
		assert.GreaterOrEqual(t, sizes[i], sizes[i-1],
			"expected roster snapshots delivered in change order")
	}
	assert.Equal(t, n, sizes[len(sizes)-1], "expected the final snapshot to be the full roster")
}

func TestPresenceTrackerOnSync(t *testing.T) {
	pt := NewPresenceTracker(testutil.TestLogger(t))

	var syncs [][]types.PresenceEntry
	pt.OnSync(func(roster []types.PresenceEntry) {
		syncs = append(syncs, roster)
	})

	pt.Announce(types.PresenceEntry{UserId: "u1", Name: "Dana"})
	pt.Announce(types.PresenceEntry{UserId: "u2", Name: "Omri"})
	pt.Leave("u1")

	assert.Len(t, syncs, 3, "expected a full-roster sync on every change")
	assert.Len(t, syncs[0], 1)
	assert.Len(t, syncs[1], 2, "expected the entire roster, not a delta")
	assert.Len(t, syncs[2], 1)
	assert.Equal(t, "u2", syncs[2][0].UserId)
}
