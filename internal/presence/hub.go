package presence

import (
	"gator-social/internal/models"
	"gator-social/internal/utils"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Messages understood by the hub actor.
type (
	registerMsg struct {
		Sub *Subscription
	}

	unregisterMsg struct {
		Sub *Subscription
	}

	publishMsg struct {
		Message *models.Message
	}

	countMsg struct {
		RoomID uuid.UUID
	}
)

// hubActor keeps the registry of open subscriptions by room and hands every
// published message to the inboxes of that room's subscriptions. The mailbox
// serializes registry changes with fan-out, so no locking is needed.
type hubActor struct {
	rooms   map[uuid.UUID]map[*Subscription]struct{}
	metrics *utils.MetricsCollector
	logger  zerolog.Logger
}

func newHubActor(metrics *utils.MetricsCollector, logger zerolog.Logger) actor.Actor {
	return &hubActor{
		rooms:   make(map[uuid.UUID]map[*Subscription]struct{}),
		metrics: metrics,
		logger:  logger,
	}
}

func (h *hubActor) Receive(context actor.Context) {
	switch msg := context.Message().(type) {
	case *actor.Started:
		h.logger.Debug().Msg("presence hub started")

	case *registerMsg:
		subs, ok := h.rooms[msg.Sub.RoomID]
		if !ok {
			subs = make(map[*Subscription]struct{})
			h.rooms[msg.Sub.RoomID] = subs
		}
		subs[msg.Sub] = struct{}{}
		h.logger.Debug().
			Str("room_id", msg.Sub.RoomID.String()).
			Str("user_id", msg.Sub.UserID.String()).
			Int("room_subscriptions", len(subs)).
			Msg("subscription registered")
		context.Respond(len(subs))

	case *unregisterMsg:
		if subs, ok := h.rooms[msg.Sub.RoomID]; ok {
			delete(subs, msg.Sub)
			if len(subs) == 0 {
				delete(h.rooms, msg.Sub.RoomID)
			}
		}

	case *publishMsg:
		for sub := range h.rooms[msg.Message.RoomID] {
			if sub.ctx.Err() != nil {
				continue
			}
			select {
			case sub.inbox <- msg.Message:
			default:
				h.metrics.RecordDelivery("dropped")
				h.logger.Warn().
					Str("room_id", sub.RoomID.String()).
					Str("user_id", sub.UserID.String()).
					Str("message_id", msg.Message.ID).
					Msg("subscription inbox full, message dropped")
			}
		}

	case *countMsg:
		context.Respond(len(h.rooms[msg.RoomID]))

	case *actor.Stopping:
		for _, subs := range h.rooms {
			for sub := range subs {
				sub.cancel()
			}
		}
		h.rooms = make(map[uuid.UUID]map[*Subscription]struct{})
		h.logger.Debug().Msg("presence hub stopping, subscriptions closed")
	}
}
