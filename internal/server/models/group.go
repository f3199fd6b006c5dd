package models

import "time"

// Group is a named conversation with an explicit member set. Members holds
// lowercased member ids without duplicates and always contains CreatorID.
type Group struct {
	ID        string
	Name      string
	CreatorID string
	Members   []string
	CreatedAt time.Time
}

// HasMember reports whether the (already normalized) id is in the member set.
func (g *Group) HasMember(id string) bool {
	for _, m := range g.Members {
		if m == id {
			return true
		}
	}
	return false
}
