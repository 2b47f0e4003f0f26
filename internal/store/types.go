package store

import (
	"time"

	"go.mau.fi/whatsmeow/proto/waE2E"
)

// Message is the canonical record kept in the in-memory log. It never
// mutates after insertion.
type Message struct {
	ID           string     `json:"id"`
	ChatJID      string     `json:"from"`
	IsGroup      bool       `json:"isGroup"`
	Sender       string     `json:"sender"`
	SenderNumber string     `json:"senderNumber"`
	GroupJID     string     `json:"groupId,omitempty"`
	GroupName    string     `json:"groupName,omitempty"`
	Content      string     `json:"content"`
	Type         string     `json:"type"`
	Timestamp    string     `json:"timestamp"`
	HasMedia     bool       `json:"hasMedia"`
	Media        *MediaInfo `json:"media,omitempty"`
}

// Time parses the message timestamp. Zero time on malformed input.
func (m *Message) Time() time.Time {
	t, err := time.Parse(time.RFC3339, m.Timestamp)
	if err != nil {
		return time.Time{}
	}
	return t
}

// MediaInfo describes the media attached to a message, as declared by the
// transport payload.
type MediaInfo struct {
	Type     string `json:"type"`
	Mimetype string `json:"mimetype"`
	FileName string `json:"fileName,omitempty"`
	FileSize uint64 `json:"fileSize,omitempty"`
	Caption  string `json:"caption,omitempty"`
}

// RawMessage is the original transport event retained per message id so
// media bytes can be resolved later. It is a lookup-only side record, not
// part of the canonical Message.
type RawMessage struct {
	ID        string
	ChatJID   string
	SenderJID string
	PushName  string
	FromMe    bool
	Timestamp time.Time
	Payload   *waE2E.Message
}

// Contact is the latest known record for an individual endpoint.
type Contact struct {
	JID      string
	Name     string
	Notify   string
	Verified string
	Number   string
}

// DisplayName resolves the contact's display name: explicit name, then the
// network push name, then the business verified name, then the number.
func (c *Contact) DisplayName() string {
	switch {
	case c.Name != "":
		return c.Name
	case c.Notify != "":
		return c.Notify
	case c.Verified != "":
		return c.Verified
	default:
		return c.Number
	}
}

// ContactSummary is the projection returned by directory listings.
type ContactSummary struct {
	JID    string `json:"id"`
	Name   string `json:"name"`
	Number string `json:"number"`
}

// Group is the latest known metadata for a group endpoint.
type Group struct {
	JID          string    `json:"id"`
	Name         string    `json:"name"`
	Participants []string  `json:"participants"`
	CreatedAt    time.Time `json:"creation"`
	Description  string    `json:"desc,omitempty"`
}
