package domain

import "time"

// Group is a named set of member user IDs. Membership at delivery time, not
// at send time, decides who receives a group message.
type Group struct {
	ID        string
	Name      string
	Members   []string
	Picture   string
	CreatedAt time.Time
}

// HasMember reports whether userID currently belongs to the group.
func (g Group) HasMember(userID string) bool {
	for _, id := range g.Members {
		if id == userID {
			return true
		}
	}
	return false
}
