package api

import (
	"time"

	"gator-social/internal/models"
	"gator-social/internal/pagination"

	"github.com/google/uuid"
)

// Result is embedded in every operation output. Failures carry a code from
// utils and a message safe to show to the caller.
type Result struct {
	Ok    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
	Code  string `json:"code,omitempty"`
}

// RoomView is a room as its members see it.
type RoomView struct {
	ID          uuid.UUID       `json:"id"`
	CreatedAt   time.Time       `json:"createdAt"`
	Users       []*models.User  `json:"users"`
	UnreadTotal int             `json:"unreadTotal"`
	LastMessage *models.Message `json:"lastMessage,omitempty"`
}

// PostView decorates a post with what the viewer needs to render it.
type PostView struct {
	*models.Post
	IsLiked bool `json:"isLiked"`
	IsMine  bool `json:"isMine"`
}

// UserView decorates a user with the viewer's relation to them.
type UserView struct {
	*models.User
	IsFollowing bool `json:"isFollowing"`
	IsMe        bool `json:"isMe"`
}

type CreateMessageRoomOutput struct {
	Result
	Room *RoomView `json:"room,omitempty"`
}

type SendMessageOutput struct {
	Result
	Message *models.Message `json:"message,omitempty"`
}

type SeeRoomOutput struct {
	Result
	Room *RoomView `json:"room,omitempty"`
}

type SeeRoomsOutput struct {
	Result
	Rooms []*RoomView `json:"rooms,omitempty"`
}

type MessagePageOutput struct {
	Result
	*pagination.Page[*models.Message]
}

type PostPageOutput struct {
	Result
	*pagination.Page[*PostView]
}

type UserPageOutput struct {
	Result
	*pagination.Page[*UserView]
}

type CommentPageOutput struct {
	Result
	*pagination.Page[*models.Comment]
}
