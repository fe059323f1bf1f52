package models

import (
	"time"

	"github.com/google/uuid"
)

// Message is a single append-only entry of a room. Read only ever goes from false to true.
type Message struct {
	ID        string    `json:"id" db:"id"` // ULID
	RoomID    uuid.UUID `json:"roomId" db:"room_id"`
	AuthorID  uuid.UUID `json:"authorId" db:"author_id"`
	Payload   string    `json:"payload" db:"payload"`
	Read      bool      `json:"read" db:"is_read"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
}
