// Package presence fans newly appended messages out to live room subscribers.
//
// Delivery is in-process, best-effort and at-most-once: there is no replay for
// subscribers that connect after a publish, and a subscriber that falls more
// than its buffer behind loses the overflow. Room membership is re-checked for
// every event, so a user who leaves a room stops receiving it without
// unsubscribing.
package presence

import (
	"context"
	"fmt"
	"time"

	"gator-social/internal/models"
	"gator-social/internal/utils"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	DefaultBuffer   = 64
	registerTimeout = 5 * time.Second
)

// MembershipChecker answers whether a user currently belongs to a room.
type MembershipChecker interface {
	IsMember(ctx context.Context, roomID, userID uuid.UUID) (bool, error)
}

// Notifier is the broker handle publishers and subscribers share.
type Notifier struct {
	root       *actor.RootContext
	hub        *actor.PID
	membership MembershipChecker
	buffer     int
	metrics    *utils.MetricsCollector
	logger     zerolog.Logger
}

// NewNotifier spawns the hub actor on system. buffer bounds each subscription's
// backlog; values below 1 use DefaultBuffer.
func NewNotifier(system *actor.ActorSystem, membership MembershipChecker, buffer int, metrics *utils.MetricsCollector, logger zerolog.Logger) *Notifier {
	if buffer < 1 {
		buffer = DefaultBuffer
	}
	logger = logger.With().Str("component", "presence").Logger()

	props := actor.PropsFromProducer(func() actor.Actor {
		return newHubActor(metrics, logger)
	})
	return &Notifier{
		root:       system.Root,
		hub:        system.Root.Spawn(props),
		membership: membership,
		buffer:     buffer,
		metrics:    metrics,
		logger:     logger,
	}
}

// Publish hands msg to every open subscription of its room without waiting for delivery.
// Calls are delivered to the hub in order.
func (n *Notifier) Publish(msg *models.Message) {
	n.root.Send(n.hub, &publishMsg{Message: msg})
}

// Subscribe opens a stream of the messages published to roomID from now on
// that userID is a member for at delivery time. The stream ends when ctx is
// cancelled or the subscription is closed.
func (n *Notifier) Subscribe(ctx context.Context, roomID, userID uuid.UUID) (*Subscription, error) {
	subCtx, cancel := context.WithCancel(ctx)
	sub := &Subscription{
		RoomID: roomID,
		UserID: userID,
		ctx:    subCtx,
		cancel: cancel,
		inbox:  make(chan *models.Message, n.buffer),
		events: make(chan *models.Message),
	}

	if _, err := n.root.RequestFuture(n.hub, &registerMsg{Sub: sub}, registerTimeout).Result(); err != nil {
		cancel()
		return nil, utils.NewAppError(utils.ErrTransient, "failed to register room subscription", err)
	}

	n.metrics.SubscriptionOpened()
	go n.deliver(sub)
	return sub, nil
}

// SubscriberCount reports how many subscriptions are registered for roomID.
func (n *Notifier) SubscriberCount(roomID uuid.UUID) (int, error) {
	res, err := n.root.RequestFuture(n.hub, &countMsg{RoomID: roomID}, registerTimeout).Result()
	if err != nil {
		return 0, err
	}
	count, ok := res.(int)
	if !ok {
		return 0, fmt.Errorf("unexpected hub response %T", res)
	}
	return count, nil
}

// Shutdown stops the hub, ending every open subscription.
func (n *Notifier) Shutdown() {
	n.root.StopFuture(n.hub).Wait()
}

// deliver runs the filter for each queued message and forwards the matches.
func (n *Notifier) deliver(sub *Subscription) {
	defer func() {
		n.root.Send(n.hub, &unregisterMsg{Sub: sub})
		close(sub.events)
		n.metrics.SubscriptionClosed()
	}()

	for {
		select {
		case <-sub.ctx.Done():
			return
		case msg := <-sub.inbox:
			if sub.ctx.Err() != nil {
				return
			}
			if msg.RoomID != sub.RoomID {
				n.metrics.RecordDelivery("filtered")
				continue
			}
			member, err := n.membership.IsMember(sub.ctx, sub.RoomID, sub.UserID)
			if err != nil {
				if sub.ctx.Err() != nil {
					return
				}
				n.logger.Error().Err(err).
					Str("room_id", sub.RoomID.String()).
					Str("user_id", sub.UserID.String()).
					Msg("membership check failed, event skipped")
				n.metrics.RecordDelivery("filtered")
				continue
			}
			if !member {
				n.metrics.RecordDelivery("filtered")
				continue
			}

			select {
			case sub.events <- msg:
				n.metrics.RecordDelivery("delivered")
			case <-sub.ctx.Done():
				return
			}
		}
	}
}

// Subscription is one live stream of a room's messages for one user.
type Subscription struct {
	RoomID uuid.UUID
	UserID uuid.UUID

	ctx    context.Context
	cancel context.CancelFunc
	inbox  chan *models.Message
	events chan *models.Message
}

// Events yields matching messages in publish order and is closed when the subscription ends.
func (s *Subscription) Events() <-chan *models.Message {
	return s.events
}

// Done is closed once the subscription has been cancelled.
func (s *Subscription) Done() <-chan struct{} {
	return s.ctx.Done()
}

// Close cancels the subscription. It never waits for an in-flight delivery.
func (s *Subscription) Close() {
	s.cancel()
}
