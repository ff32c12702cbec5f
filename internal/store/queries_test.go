package store

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func Test_listMessagesQuery_SelectsNewestFirst(t *testing.T) {
	// the history load is capped, so the query must select the newest
	// rows; selecting ascending would pin every session to the oldest
	// rows once the table outgrows the cap. ListMessages reverses the
	// result back into chronological order.
	assert.True(t, strings.Contains(listMessagesQuery, "ORDER BY created_at DESC"),
		"expected the history query to select the most recent messages")
	assert.True(t, strings.Contains(listMessagesQuery, "LIMIT $1"))
}
