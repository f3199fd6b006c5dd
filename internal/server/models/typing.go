package models

import "time"

// TypingSignal marks a member as composing in a conversation. A signal is
// active only while UpdatedAt is within the configured TTL; rows older than
// that are stale and ignored.
type TypingSignal struct {
	ConversationKey string
	MemberID        string
	UpdatedAt       time.Time
}
