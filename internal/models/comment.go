package models

import (
	"time"

	"github.com/google/uuid"
)

type Comment struct {
	ID        uuid.UUID `json:"id" db:"id"`
	PostID    uuid.UUID `json:"postId" db:"post_id"`
	AuthorID  uuid.UUID `json:"authorId" db:"author_id"`
	Payload   string    `json:"payload" db:"payload"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
}
