// Package messages is the append-only log of room messages and its read-state aggregates.
package messages

import (
	"context"
	"crypto/rand"
	"io"
	"strings"
	"sync"
	"time"

	"gator-social/internal/models"
	"gator-social/internal/pagination"
	"gator-social/internal/utils"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"
)

// MaxPayloadLength bounds a single message body, in bytes.
const MaxPayloadLength = 4000

// Store is the slice of the persistence gateway a Ledger needs.
type Store interface {
	GetRoom(ctx context.Context, id uuid.UUID) (*models.Room, error)
	SaveMessage(ctx context.Context, msg *models.Message) error
	MarkMessageRead(ctx context.Context, messageID string, readerID uuid.UUID) (bool, error)
	CountUnread(ctx context.Context, roomID, excludingUserID uuid.UUID) (int, error)
	GetLastMessage(ctx context.Context, roomID uuid.UUID) (*models.Message, error)
	ListRoomMessages(ctx context.Context, roomID uuid.UUID, w pagination.Window) ([]*models.Message, error)
}

// Publisher receives every message after it has been stored.
type Publisher interface {
	Publish(msg *models.Message)
}

// Ledger appends messages and answers unread and last-message queries.
//
// Appends to one room are serialized and published while still holding the
// room's lock, so subscribers see a room's messages in commit order.
type Ledger struct {
	store     Store
	publisher Publisher
	logger    zerolog.Logger

	mu    sync.Mutex
	rooms map[uuid.UUID]*roomLock

	idMu    sync.Mutex
	entropy io.Reader
}

type roomLock struct {
	sync.Mutex
	refs int
}

func NewLedger(store Store, publisher Publisher, logger zerolog.Logger) *Ledger {
	return &Ledger{
		store:     store,
		publisher: publisher,
		logger:    logger.With().Str("component", "messages").Logger(),
		rooms:     make(map[uuid.UUID]*roomLock),
		entropy:   ulid.Monotonic(rand.Reader, 0),
	}
}

// Append stores payload as authorID's message in roomID and publishes it.
func (l *Ledger) Append(ctx context.Context, roomID, authorID uuid.UUID, payload string) (*models.Message, error) {
	if strings.TrimSpace(payload) == "" {
		return nil, utils.NewValidationError("message payload must not be empty")
	}
	if len(payload) > MaxPayloadLength {
		return nil, utils.NewValidationError("message payload exceeds %d bytes", MaxPayloadLength)
	}

	unlock := l.lockRoom(roomID)
	defer unlock()

	room, err := l.store.GetRoom(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if !room.HasMember(authorID) {
		return nil, utils.NewUnauthorizedError("only room members can send messages")
	}

	msg := &models.Message{
		RoomID:   roomID,
		AuthorID: authorID,
		Payload:  payload,
	}
	msg.ID, msg.CreatedAt = l.nextID()

	if err := l.store.SaveMessage(ctx, msg); err != nil {
		return nil, err
	}
	l.publisher.Publish(msg)

	l.logger.Debug().
		Str("room_id", roomID.String()).
		Str("message_id", msg.ID).
		Msg("message appended")
	return msg, nil
}

// MarkRead flags messageID as read by readerID. It fails with NotFound unless the
// message sits in one of readerID's rooms and was written by someone else.
// Marking an already read message succeeds again.
func (l *Ledger) MarkRead(ctx context.Context, messageID string, readerID uuid.UUID) error {
	ok, err := l.store.MarkMessageRead(ctx, messageID, readerID)
	if err != nil {
		return err
	}
	if !ok {
		return utils.NewNotFoundError("message")
	}
	return nil
}

// UnreadCountFor counts roomID's unread messages not written by viewerID.
func (l *Ledger) UnreadCountFor(ctx context.Context, roomID, viewerID uuid.UUID) (int, error) {
	return l.store.CountUnread(ctx, roomID, viewerID)
}

// LastMessage returns the room's newest message, or nil for an empty room.
func (l *Ledger) LastMessage(ctx context.Context, roomID uuid.UUID) (*models.Message, error) {
	return l.store.GetLastMessage(ctx, roomID)
}

// History pages through a room's messages, newest first. Only members may read it.
func (l *Ledger) History(ctx context.Context, roomID, viewerID uuid.UUID, w pagination.Window) (pagination.Page[*models.Message], error) {
	room, err := l.store.GetRoom(ctx, roomID)
	if err != nil {
		return pagination.Page[*models.Message]{}, err
	}
	if !room.HasMember(viewerID) {
		return pagination.Page[*models.Message]{}, utils.NewUnauthorizedError("only room members can read messages")
	}

	rows, err := l.store.ListRoomMessages(ctx, roomID, w)
	if err != nil {
		return pagination.Page[*models.Message]{}, err
	}
	return pagination.Trim(rows, w, func(m *models.Message) string { return m.ID }), nil
}

// nextID returns a ULID and the creation time it encodes.
func (l *Ledger) nextID() (string, time.Time) {
	l.idMu.Lock()
	defer l.idMu.Unlock()

	now := time.Now().UTC().Truncate(time.Microsecond)
	return ulid.MustNew(ulid.Timestamp(now), l.entropy).String(), now
}

func (l *Ledger) lockRoom(roomID uuid.UUID) func() {
	l.mu.Lock()
	lock, ok := l.rooms[roomID]
	if !ok {
		lock = &roomLock{}
		l.rooms[roomID] = lock
	}
	lock.refs++
	l.mu.Unlock()

	lock.Lock()
	return func() {
		lock.Unlock()

		l.mu.Lock()
		lock.refs--
		if lock.refs == 0 {
			delete(l.rooms, roomID)
		}
		l.mu.Unlock()
	}
}
