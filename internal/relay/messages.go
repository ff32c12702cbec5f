package relay

import (
	"time"

	"github.com/ET2780/buti-buzz-hub/internal/types"
)

// Event types on the relay wire. Server to client: users (full roster),
// previous_messages (full history, sent once per connection), message
// (single broadcast message). Client to server: message.
const (
	EventUsers            = "users"
	EventPreviousMessages = "previous_messages"
	EventMessage          = "message"
)

type ServerEvent struct {
	Type     string                `json:"type"`
	Users    []types.PresenceEntry `json:"users,omitempty"`
	Messages []types.Message       `json:"messages,omitempty"`
	Message  *types.Message        `json:"message,omitempty"`
}

type ClientEvent struct {
	Type    string   `json:"type"`
	Message *Publish `json:"message,omitempty"`
}

type Publish struct {
	Text   string `json:"text"`
	Sender string `json:"sender"`
	// IsAutomated is honored only on admin connections.
	IsAutomated bool `json:"is_automated,omitempty"`
}

func UsersEvent(roster []types.PresenceEntry) *ServerEvent {
	return &ServerEvent{
		Type:  EventUsers,
		Users: roster,
	}
}

func PreviousMessagesEvent(messages []types.Message) *ServerEvent {
	return &ServerEvent{
		Type:     EventPreviousMessages,
		Messages: messages,
	}
}

func MessageEvent(msg types.Message) *ServerEvent {
	return &ServerEvent{
		Type:    EventMessage,
		Message: &msg,
	}
}

func Now() time.Time {
	return time.Now().UTC().Round(time.Millisecond)
}
