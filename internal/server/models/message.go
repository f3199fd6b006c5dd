package models

import "time"

// Message is one immutable record in a conversation stream. Exactly one of
// RecipientID/GroupID is set, consistent with ConversationKey. Body may be
// empty when an attachment is present. CreatedAt is server-stamped UTC and is
// both the sort key and the display time; ties sort by ID.
type Message struct {
	ID              string
	ConversationKey string
	SenderID        string
	RecipientID     string
	GroupID         string
	Body            string

	AttachmentURL  string
	AttachmentKey  string
	AttachmentType string

	CreatedAt time.Time
}

// HasAttachment reports whether the message carries an attachment reference.
func (m *Message) HasAttachment() bool {
	return m.AttachmentKey != "" || m.AttachmentURL != ""
}
