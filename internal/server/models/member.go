// Package models defines server-side data models persisted in the database.
package models

import "time"

// Member is a registered account. ID is the registration email, lowercased at
// the boundary, and serves as the primary key everywhere a member is
// referenced.
type Member struct {
	ID           string
	DisplayName  string
	PasswordHash string
	Role         string
	// LastActive is the most recent presence heartbeat; zero when the member
	// has never reported in.
	LastActive time.Time
	// WorkSchedule is an opaque JSON document owned by the client.
	WorkSchedule []byte
	CreatedAt    time.Time
}
