package models

import (
	"time"

	"github.com/google/uuid"
)

type Post struct {
	ID        uuid.UUID `json:"id" db:"id"`
	AuthorID  uuid.UUID `json:"authorId" db:"author_id"`
	Caption   string    `json:"caption" db:"caption"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
}
