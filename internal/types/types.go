package types

import (
	"slices"
	"time"
)

const (
	// DefaultName is used when a sender's profile has no display name.
	DefaultName = "Buzzer"
	// DefaultAvatar is used when a sender's profile has no avatar set.
	DefaultAvatar = "☕"
	// AdminAvatar is the fixed image shown for admin senders regardless of
	// the avatar stored on their profile.
	AdminAvatar = "/images/buti-logo.png"
	// AdminTag marks a profile as an admin when present in its tag set.
	AdminTag = "admin"
)

// SenderSnapshot is a copy of a profile's display attributes embedded in a
// message. It is replaced in place when the sender's profile changes; the
// message it is attached to never changes otherwise.
type SenderSnapshot struct {
	Name         string   `json:"name"`
	Avatar       string   `json:"avatar"`
	IsAdmin      bool     `json:"is_admin"`
	Tags         []string `json:"tags,omitempty"`
	CustomStatus string   `json:"custom_status,omitempty"`
}

type Message struct {
	Id          string         `json:"id"`
	Text        string         `json:"text"`
	SenderId    string         `json:"sender_id"`
	IsAutomated bool           `json:"is_automated,omitempty"`
	Sender      SenderSnapshot `json:"sender"`
	CreatedAt   time.Time      `json:"created_at"`
}

type Profile struct {
	Id           string    `json:"id"`
	Name         string    `json:"name"`
	Avatar       string    `json:"avatar"`
	Tags         []string  `json:"tags,omitempty"`
	CustomStatus string    `json:"custom_status,omitempty"`
	IsAdmin      bool      `json:"is_admin"`
	UpdatedAt    time.Time `json:"updated_at,omitempty"`
}

// Admin reports whether the profile carries the admin flag or the admin tag.
func (p Profile) Admin() bool {
	return p.IsAdmin || slices.Contains(p.Tags, AdminTag)
}

type PresenceEntry struct {
	UserId      string    `json:"user_id"`
	Name        string    `json:"name"`
	Avatar      string    `json:"avatar"`
	IsAdmin     bool      `json:"is_admin"`
	Tags        []string  `json:"tags,omitempty"`
	OnlineSince time.Time `json:"online_since"`
}
