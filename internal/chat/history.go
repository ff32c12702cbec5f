package chat

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/ET2780/buti-buzz-hub/internal/store"
)

const (
	historyAttempts   = 3
	historyRetryDelay = 2 * time.Second
	historyLimit      = 500
)

// HistoryLoader fetches the full message history once per session. The load
// is one-shot: a reconnect issues a fresh Load rather than resuming.
type HistoryLoader struct {
	log  *log.Logger
	repo store.BuzzRepository
	// retryDelay is overridable in tests.
	retryDelay time.Duration
}

func NewHistoryLoader(logger *log.Logger, repo store.BuzzRepository) *HistoryLoader {
	return &HistoryLoader{
		log:        logger,
		repo:       repo,
		retryDelay: historyRetryDelay,
	}
}

// Load fetches the message history, retrying failed attempts with a fixed
// delay. Once the attempt budget is exhausted it returns ErrLoadFailed
// wrapping the last failure; no further automatic retries happen.
func (h *HistoryLoader) Load(ctx context.Context) ([]store.Message, error) {
	var lastErr error

	for attempt := 1; attempt <= historyAttempts; attempt++ {
		messages, err := h.repo.ListMessages(historyLimit)
		if err == nil {
			return messages, nil
		}

		lastErr = err
		h.log.Printf("history load attempt %d/%d failed: %v", attempt, historyAttempts, err)

		if attempt == historyAttempts {
			break
		}

		select {
		case <-time.After(h.retryDelay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	return nil, fmt.Errorf("%w: %v", ErrLoadFailed, lastErr)
}
