package store

import "time"

// Event types carried by ChangeEvent.
const (
	EventMessageInsert = "message_insert"
	EventProfileUpdate = "profile_update"
)

type Message struct {
	Id          string
	Text        string
	SenderId    string
	IsAutomated bool
	// SenderName and SenderAvatar are only populated for automated
	// messages, which carry their sender snapshot inline.
	SenderName   string
	SenderAvatar string
	CreatedAt    time.Time
}

type Profile struct {
	Id           string
	Name         string
	Avatar       string
	Tags         []string
	CustomStatus string
	IsAdmin      bool
	UpdatedAt    time.Time
}

type CreateMessageParams struct {
	Id           string
	Text         string
	SenderId     string
	IsAutomated  bool
	SenderName   string
	SenderAvatar string
}

type UpdateProfileParams struct {
	Id           string
	Name         string
	Avatar       string
	Tags         []string
	CustomStatus string
}

// ChangeEvent is one notification from the store's change feed. Exactly one
// of Message or Profile is set, according to Event.
type ChangeEvent struct {
	Event   string
	Message *Message
	Profile *Profile
}
