package chat

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/ET2780/buti-buzz-hub/internal/store"
	"github.com/ET2780/buti-buzz-hub/internal/testutil"
)

func newTestHistoryLoader(t *testing.T, repo store.BuzzRepository) *HistoryLoader {
	h := NewHistoryLoader(testutil.TestLogger(t), repo)
	h.retryDelay = time.Millisecond
	return h
}

func TestHistoryLoaderLoad(t *testing.T) {
	db := &store.MockBuzzRepository{}
	defer db.AssertExpectations(t)

	history := []store.Message{
		{Id: "m1", Text: "hello", SenderId: "u1"},
		{Id: "m2", Text: "hi", SenderId: "u2"},
	}
	db.On("ListMessages", historyLimit).Return(history, nil).Once()

	h := newTestHistoryLoader(t, db)
	messages, err := h.Load(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, history, messages)
}

func TestHistoryLoaderLoad_RetriesThenSucceeds(t *testing.T) {
	db := &store.MockBuzzRepository{}
	defer db.AssertExpectations(t)

	db.On("ListMessages", historyLimit).Return(nil, errors.New("connection refused")).Twice()
	db.On("ListMessages", historyLimit).Return([]store.Message{{Id: "m1"}}, nil).Once()

	h := newTestHistoryLoader(t, db)
	messages, err := h.Load(context.Background())
	assert.NoError(t, err, "expected a successful retry to recover")
	assert.Len(t, messages, 1)
}

func TestHistoryLoaderLoad_RetryExhaustion(t *testing.T) {
	db := &store.MockBuzzRepository{}
	defer db.AssertExpectations(t)

	db.On("ListMessages", historyLimit).Return(nil, errors.New("connection refused")).Times(historyAttempts)

	h := newTestHistoryLoader(t, db)
	messages, err := h.Load(context.Background())
	assert.ErrorIs(t, err, ErrLoadFailed, "expected exactly one terminal error after %d attempts", historyAttempts)
	assert.Nil(t, messages)
	db.AssertNumberOfCalls(t, "ListMessages", historyAttempts)
}

func TestHistoryLoaderLoad_ContextCancelled(t *testing.T) {
	db := &store.MockBuzzRepository{}
	db.On("ListMessages", historyLimit).Return(nil, errors.New("connection refused"))

	h := NewHistoryLoader(testutil.TestLogger(t), db)
	h.retryDelay = time.Minute

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	_, err := h.Load(ctx)
	assert.ErrorIs(t, err, context.Canceled, "expected cancellation during the retry delay")
}
