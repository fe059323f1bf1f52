package models

import (
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Room is a conversation between a fixed set of participants.
type Room struct {
	ID        uuid.UUID   `json:"id" db:"id"`
	CreatedAt time.Time   `json:"createdAt" db:"created_at"`
	Members   []uuid.UUID `json:"members"` // Not in rooms table
}

// HasMember reports whether userID is among the room's members.
func (r *Room) HasMember(userID uuid.UUID) bool {
	for _, id := range r.Members {
		if id == userID {
			return true
		}
	}
	return false
}

// MembersKey returns the order-independent key identifying the room with exactly these members.
func MembersKey(members []uuid.UUID) string {
	ids := make([]string, len(members))
	for i, id := range members {
		ids[i] = id.String()
	}
	sort.Strings(ids)
	return strings.Join(ids, ":")
}

// PairKey is MembersKey for a two-party room; PairKey(a, b) == PairKey(b, a).
func PairKey(a, b uuid.UUID) string {
	return MembersKey([]uuid.UUID{a, b})
}
