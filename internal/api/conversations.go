package api

import (
	"context"
	"sort"
	"time"

	"gator-social/internal/models"
	"gator-social/internal/pagination"
	"gator-social/internal/presence"
	"gator-social/internal/utils"

	"github.com/google/uuid"
)

// CreateMessageRoom opens a room between the viewer and userID.
func (s *Service) CreateMessageRoom(ctx context.Context, viewerID, userID uuid.UUID) CreateMessageRoomOutput {
	start := time.Now()
	room, err := retryTransient(ctx, s.retryInterval, func(ctx context.Context) (*models.Room, error) {
		return s.rooms.Create(ctx, viewerID, userID)
	})
	if err != nil {
		return CreateMessageRoomOutput{Result: s.finish("createMessageRoom", start, err)}
	}

	// The room is committed; a failing read below is retried on its own and
	// must not reach Create again.
	view, err := retryTransient(ctx, s.retryInterval, func(ctx context.Context) (*RoomView, error) {
		return s.roomView(ctx, room, viewerID)
	})
	return CreateMessageRoomOutput{Result: s.finish("createMessageRoom", start, err), Room: view}
}

// SendMessage appends payload to roomID as the viewer and notifies the room's subscribers.
func (s *Service) SendMessage(ctx context.Context, viewerID, roomID uuid.UUID, payload string) SendMessageOutput {
	start := time.Now()
	msg, err := retryTransient(ctx, s.retryInterval, func(ctx context.Context) (*models.Message, error) {
		return s.ledger.Append(ctx, roomID, viewerID, payload)
	})
	return SendMessageOutput{Result: s.finish("sendMessage", start, err), Message: msg}
}

// ReadMessage marks messageID read on behalf of the viewer.
func (s *Service) ReadMessage(ctx context.Context, viewerID uuid.UUID, messageID string) Result {
	start := time.Now()
	_, err := retryTransient(ctx, s.retryInterval, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, s.ledger.MarkRead(ctx, messageID, viewerID)
	})
	return s.finish("readMessage", start, err)
}

// SeeRoom returns roomID if the viewer is one of its members. Other rooms are reported as not found.
func (s *Service) SeeRoom(ctx context.Context, viewerID, roomID uuid.UUID) SeeRoomOutput {
	start := time.Now()
	view, err := retryTransient(ctx, s.retryInterval, func(ctx context.Context) (*RoomView, error) {
		room, err := s.rooms.FindOrFail(ctx, roomID)
		if err != nil {
			return nil, err
		}
		if !room.HasMember(viewerID) {
			return nil, utils.NewNotFoundError("message room")
		}
		return s.roomView(ctx, room, viewerID)
	})
	return SeeRoomOutput{Result: s.finish("seeRoom", start, err), Room: view}
}

// SeeRooms lists the viewer's rooms, most recently active first.
func (s *Service) SeeRooms(ctx context.Context, viewerID uuid.UUID) SeeRoomsOutput {
	start := time.Now()
	views, err := retryTransient(ctx, s.retryInterval, func(ctx context.Context) ([]*RoomView, error) {
		list, err := s.rooms.ListForUser(ctx, viewerID)
		if err != nil {
			return nil, err
		}
		views := make([]*RoomView, 0, len(list))
		for _, room := range list {
			view, err := s.roomView(ctx, room, viewerID)
			if err != nil {
				return nil, err
			}
			views = append(views, view)
		}
		sortByActivity(views)
		return views, nil
	})
	return SeeRoomsOutput{Result: s.finish("seeRooms", start, err), Rooms: views}
}

// SeeRoomMessages pages through a room's messages, newest first.
func (s *Service) SeeRoomMessages(ctx context.Context, viewerID, roomID uuid.UUID, w pagination.Window) MessagePageOutput {
	start := time.Now()
	page, err := retryTransient(ctx, s.retryInterval, func(ctx context.Context) (*pagination.Page[*models.Message], error) {
		w, err := s.window(w)
		if err != nil {
			return nil, err
		}
		page, err := s.ledger.History(ctx, roomID, viewerID, w)
		if err != nil {
			return nil, err
		}
		return &page, nil
	})
	return MessagePageOutput{Result: s.finish("seeRoomMessages", start, err), Page: page}
}

// SubscribeToRoomUpdates opens a live stream of roomID's new messages for the viewer.
// Membership is checked for every message, not at subscribe time. The caller
// must Close the subscription.
func (s *Service) SubscribeToRoomUpdates(ctx context.Context, viewerID, roomID uuid.UUID) (*presence.Subscription, Result) {
	start := time.Now()
	sub, err := s.notifier.Subscribe(ctx, roomID, viewerID)
	return sub, s.finish("subscribeToRoomUpdates", start, err)
}

func (s *Service) roomView(ctx context.Context, room *models.Room, viewerID uuid.UUID) (*RoomView, error) {
	view := &RoomView{
		ID:        room.ID,
		CreatedAt: room.CreatedAt,
		Users:     make([]*models.User, 0, len(room.Members)),
	}
	for _, memberID := range room.Members {
		user, err := s.store.GetUser(ctx, memberID)
		if err != nil {
			return nil, err
		}
		view.Users = append(view.Users, user)
	}

	unread, err := s.ledger.UnreadCountFor(ctx, room.ID, viewerID)
	if err != nil {
		return nil, err
	}
	view.UnreadTotal = unread

	last, err := s.ledger.LastMessage(ctx, room.ID)
	if err != nil {
		return nil, err
	}
	view.LastMessage = last
	return view, nil
}

// sortByActivity orders rooms by their last message, falling back to creation time.
func sortByActivity(views []*RoomView) {
	activity := func(v *RoomView) time.Time {
		if v.LastMessage != nil {
			return v.LastMessage.CreatedAt
		}
		return v.CreatedAt
	}
	sort.SliceStable(views, func(i, j int) bool {
		return activity(views[i]).After(activity(views[j]))
	})
}
