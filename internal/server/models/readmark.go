package models

import "time"

// ReadMark records how far a member has read into a conversation.
type ReadMark struct {
	MemberID        string
	ConversationKey string
	LastReadAt      time.Time
}

// UnreadCount is one row of the per-conversation unread aggregate.
type UnreadCount struct {
	ConversationKey string
	Count           int64
}
