// Package rooms owns two-party conversation rooms and their membership.
package rooms

import (
	"context"

	"gator-social/internal/models"
	"gator-social/internal/utils"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Store is the slice of the persistence gateway a Directory needs.
type Store interface {
	GetUser(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetRoom(ctx context.Context, id uuid.UUID) (*models.Room, error)
	FindRoomByMembers(ctx context.Context, memberIDs []uuid.UUID) (*models.Room, error)
	CreateRoom(ctx context.Context, memberIDs []uuid.UUID) (*models.Room, error)
	GetRoomsByUser(ctx context.Context, userID uuid.UUID) ([]*models.Room, error)
	IsRoomMember(ctx context.Context, roomID, userID uuid.UUID) (bool, error)
}

// Directory creates and looks up rooms. At most one room exists per pair of users;
// the store enforces that with a unique key on the member set.
type Directory struct {
	store  Store
	logger zerolog.Logger
}

func NewDirectory(store Store, logger zerolog.Logger) *Directory {
	return &Directory{
		store:  store,
		logger: logger.With().Str("component", "rooms").Logger(),
	}
}

// FindOrFail returns the room or a NotFound error.
func (d *Directory) FindOrFail(ctx context.Context, roomID uuid.UUID) (*models.Room, error) {
	return d.store.GetRoom(ctx, roomID)
}

// FindByMembers returns the room whose members are exactly a and b, or nil.
func (d *Directory) FindByMembers(ctx context.Context, a, b uuid.UUID) (*models.Room, error) {
	return d.store.FindRoomByMembers(ctx, []uuid.UUID{a, b})
}

// Create opens a room between initiator and other.
func (d *Directory) Create(ctx context.Context, initiator, other uuid.UUID) (*models.Room, error) {
	if initiator == other {
		return nil, utils.NewValidationError("cannot open a room with yourself")
	}
	if _, err := d.store.GetUser(ctx, other); err != nil {
		return nil, err
	}

	// Fast path only; two racing creators both get past it and the insert decides.
	existing, err := d.store.FindRoomByMembers(ctx, []uuid.UUID{initiator, other})
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, utils.NewConflictError("a room with this user already exists")
	}

	room, err := d.store.CreateRoom(ctx, []uuid.UUID{initiator, other})
	if err != nil {
		if utils.IsErrorCode(err, utils.ErrDuplicate) {
			return nil, utils.NewConflictError("a room with this user already exists")
		}
		return nil, err
	}

	d.logger.Info().
		Str("room_id", room.ID.String()).
		Str("initiator", initiator.String()).
		Str("other", other.String()).
		Msg("room created")
	return room, nil
}

// ListForUser returns every room userID is a member of.
func (d *Directory) ListForUser(ctx context.Context, userID uuid.UUID) ([]*models.Room, error) {
	return d.store.GetRoomsByUser(ctx, userID)
}

// IsMember reports whether userID currently belongs to roomID.
func (d *Directory) IsMember(ctx context.Context, roomID, userID uuid.UUID) (bool, error) {
	return d.store.IsRoomMember(ctx, roomID, userID)
}
