package chat

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/ET2780/buti-buzz-hub/internal/store"
	"github.com/ET2780/buti-buzz-hub/internal/testutil"
	"github.com/ET2780/buti-buzz-hub/internal/types"
)

func newTestSession(t *testing.T, db store.BuzzRepository) *Session {
	return NewSession(testutil.TestLogger(t), db, types.Profile{Id: "u1", Name: "Dana", Avatar: "🍵"})
}

func TestSessionSend(t *testing.T) {
	db := &store.MockBuzzRepository{}
	defer db.AssertExpectations(t)
	db.On("CreateMessage", mock.MatchedBy(func(params store.CreateMessageParams) bool {
		return params.Text == "hello" && params.SenderId == "u1" && params.Id != ""
	})).Return(store.Message{Id: "m1"}, nil).Once()

	s := newTestSession(t, db)
	s.SetDraft("  hello  ")

	err := s.Send()
	assert.NoError(t, err)
	assert.Empty(t, s.Draft(), "expected draft cleared on success")
	assert.NoError(t, s.SendError())
	assert.Empty(t, s.Messages(), "expected no optimistic append; the insert feed delivers the message")
}

func TestSessionSend_EmptyInput(t *testing.T) {
	db := &store.MockBuzzRepository{}
	defer db.AssertExpectations(t)

	s := newTestSession(t, db)

	s.SetDraft("   \n\t ")
	err := s.Send()
	assert.ErrorIs(t, err, ErrEmptyMessage)
	db.AssertNotCalled(t, "CreateMessage", mock.Anything)
}

func TestSessionSend_SingleFlight(t *testing.T) {
	db := &store.MockBuzzRepository{}
	release := make(chan struct{})
	db.On("CreateMessage", mock.Anything).
		Run(func(args mock.Arguments) { <-release }).
		Return(store.Message{Id: "m1"}, nil).
		Once()

	s := newTestSession(t, db)
	s.SetDraft("hi")

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		assert.NoError(t, s.Send())
	}()

	// wait for the first send to enter flight
	assert.Eventually(t, func() bool {
		s.mu.Lock()
		defer s.mu.Unlock()
		return s.sending
	}, time.Second, time.Millisecond)

	err := s.Send()
	assert.ErrorIs(t, err, ErrSendInFlight, "expected concurrent send rejected, not queued")

	close(release)
	wg.Wait()

	db.AssertNumberOfCalls(t, "CreateMessage", 1)
}

func TestSessionSend_FailureKeepsDraft(t *testing.T) {
	db := &store.MockBuzzRepository{}
	sendErr := errors.New("insert failed")
	db.On("CreateMessage", mock.Anything).Return(store.Message{}, sendErr).Once()

	s := newTestSession(t, db)
	s.SetDraft("hello")

	err := s.Send()
	assert.ErrorIs(t, err, sendErr)
	assert.Equal(t, "hello", s.Draft(), "expected draft preserved for retry")
	assert.ErrorIs(t, s.SendError(), sendErr)

	// the next attempt clears the surfaced error
	db.On("CreateMessage", mock.Anything).Return(store.Message{Id: "m1"}, nil).Once()
	assert.NoError(t, s.Send())
	assert.NoError(t, s.SendError())
}

func TestSessionStart(t *testing.T) {
	db := &store.MockBuzzRepository{}
	history := []store.Message{
		{Id: "m1", Text: "hello", SenderId: "u2", CreatedAt: time.Now().UTC()},
	}
	db.On("ListMessages", historyLimit).Return(history, nil).Once()
	db.On("GetProfile", "u2").Return(store.Profile{Id: "u2", Name: "Omri"}, nil).Once()

	events := make(chan store.ChangeEvent)
	db.On("Subscribe", mock.Anything).Return(events, nil).Once()

	s := newTestSession(t, db)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	err := s.Start(ctx)
	assert.NoError(t, err)
	assert.NoError(t, s.ConnectionError())

	messages := s.Messages()
	assert.Len(t, messages, 1)
	assert.Equal(t, "Omri", messages[0].Sender.Name)

	roster := s.Presence().Roster()
	assert.Len(t, roster, 1, "expected local user announced on start")
	assert.Equal(t, "u1", roster[0].UserId)
	assert.Equal(t, 0, s.ActiveUsers(), "expected active users to exclude the local viewer")

	// an insert delivered by the feed lands in the collection
	events <- store.ChangeEvent{
		Event: store.EventMessageInsert,
		Message: &store.Message{
			Id: "m2", Text: "hi", SenderId: "u2", CreatedAt: time.Now().UTC(),
		},
	}
	assert.Eventually(t, func() bool {
		return len(s.Messages()) == 2
	}, time.Second, time.Millisecond)

	s.Close()
	assert.Empty(t, s.Presence().Roster(), "expected close to remove the local roster entry")
}

func TestSessionStart_LoadFailure(t *testing.T) {
	db := &store.MockBuzzRepository{}
	db.On("ListMessages", historyLimit).Return(nil, errors.New("connection refused")).Times(historyAttempts)

	s := newTestSession(t, db)
	s.loader.retryDelay = time.Millisecond

	err := s.Start(context.Background())
	assert.ErrorIs(t, err, ErrLoadFailed)
	assert.ErrorIs(t, s.ConnectionError(), ErrLoadFailed,
		"expected terminal load error surfaced on the session")
	db.AssertNotCalled(t, "Subscribe", mock.Anything)
}

func TestSessionOwnProfileUpdateReannounces(t *testing.T) {
	db := &store.MockBuzzRepository{}
	db.On("ListMessages", historyLimit).Return([]store.Message{}, nil).Once()

	events := make(chan store.ChangeEvent)
	db.On("Subscribe", mock.Anything).Return(events, nil).Once()

	s := newTestSession(t, db)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	assert.NoError(t, s.Start(ctx))

	events <- store.ChangeEvent{
		Event:   store.EventProfileUpdate,
		Profile: &store.Profile{Id: "u1", Name: "Dana K", Avatar: "🌊"},
	}

	assert.Eventually(t, func() bool {
		roster := s.Presence().Roster()
		return len(roster) == 1 && roster[0].Name == "Dana K"
	}, time.Second, time.Millisecond, "expected local profile edit to re-announce presence")
}

func TestSessionConcurrentProfileUpdatesAndSends(t *testing.T) {
	db := &store.MockBuzzRepository{}
	db.On("ListMessages", historyLimit).Return([]store.Message{}, nil).Once()
	db.On("CreateMessage", mock.Anything).Return(store.Message{Id: "m1"}, nil)

	events := make(chan store.ChangeEvent)
	db.On("Subscribe", mock.Anything).Return(events, nil).Once()

	s := newTestSession(t, db)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	assert.NoError(t, s.Start(ctx))

	// own-profile updates arriving on the feed goroutine must not race
	// sends and roster reads on the caller side
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 100; i++ {
			events <- store.ChangeEvent{
				Event:   store.EventProfileUpdate,
				Profile: &store.Profile{Id: "u1", Name: "Dana " + strconv.Itoa(i)},
			}
		}
	}()

	for i := 0; i < 100; i++ {
		s.SetDraft("hi")
		assert.NoError(t, s.Send())
		s.ActiveUsers()
	}
	wg.Wait()

	s.Close()
	assert.Empty(t, s.Presence().Roster())
}

func TestSessionActiveUsers(t *testing.T) {
	db := &store.MockBuzzRepository{}
	s := newTestSession(t, db)

	s.Presence().Announce(types.PresenceEntry{UserId: "u1", Name: "Dana"})
	s.Presence().Announce(types.PresenceEntry{UserId: "u2", Name: "Omri"})
	s.Presence().Announce(types.PresenceEntry{UserId: "u3", Name: "Noa"})

	assert.Equal(t, 2, s.ActiveUsers(), "expected roster size excluding the local viewer")
}

func TestSessionUpdateProfile(t *testing.T) {
	db := &store.MockBuzzRepository{}
	defer db.AssertExpectations(t)
	db.On("UpdateProfile", mock.MatchedBy(func(params store.UpdateProfileParams) bool {
		return params.Id == "u1" && params.Name == "Dana K"
	})).Return(store.Profile{Id: "u1", Name: "Dana K", Avatar: "🌊"}, nil).Once()

	s := newTestSession(t, db)
	err := s.UpdateProfile(store.UpdateProfileParams{Name: "Dana K", Avatar: "🌊"})
	assert.NoError(t, err)

	roster := s.Presence().Roster()
	assert.Len(t, roster, 1)
	assert.Equal(t, "Dana K", roster[0].Name)
	assert.Equal(t, "🌊", roster[0].Avatar)
}
