package database

import (
	"context"
	"time"

	"gator-social/internal/models"
	"gator-social/internal/utils"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

type roomRow struct {
	ID        uuid.UUID `db:"id"`
	PairKey   string    `db:"pair_key"`
	CreatedAt time.Time `db:"created_at"`
}

type memberRow struct {
	RoomID uuid.UUID `db:"room_id"`
	UserID uuid.UUID `db:"user_id"`
}

// CreateRoom stores a room with exactly memberIDs as participants in one transaction.
// A room for the same member set already existing is reported as ErrDuplicate,
// and an unknown member as ErrNotFound; in both cases nothing is written.
func (s *SQLStore) CreateRoom(ctx context.Context, memberIDs []uuid.UUID) (*models.Room, error) {
	room := &models.Room{
		ID:        uuid.New(),
		CreatedAt: now(),
		Members:   append([]uuid.UUID(nil), memberIDs...),
	}

	tx, err := s.DB.BeginTxx(ctx, nil)
	if err != nil {
		return nil, wrapError(err, "failed to begin transaction for create room")
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, s.q(`INSERT INTO rooms (id, pair_key, created_at) VALUES (?, ?, ?)`),
		room.ID, models.MembersKey(memberIDs), room.CreatedAt)
	if err != nil {
		return nil, wrapError(err, "failed to create room")
	}

	for _, userID := range memberIDs {
		_, err = tx.ExecContext(ctx, s.q(`INSERT INTO room_members (room_id, user_id) VALUES (?, ?)`), room.ID, userID)
		if err != nil {
			if classify(err) == utils.ErrNotFound {
				return nil, utils.NewAppError(utils.ErrNotFound, "room member not found: "+userID.String(), err)
			}
			return nil, wrapError(err, "failed to add room member")
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, wrapError(err, "failed to commit create room transaction")
	}
	return room, nil
}

// GetRoom fetches a room and its members.
func (s *SQLStore) GetRoom(ctx context.Context, id uuid.UUID) (*models.Room, error) {
	var row roomRow
	err := s.DB.GetContext(ctx, &row, s.q(`SELECT id, pair_key, created_at FROM rooms WHERE id = ?`), id)
	if err != nil {
		if isNoRows(err) {
			return nil, utils.NewAppError(utils.ErrNotFound, "room not found", err)
		}
		return nil, wrapError(err, "failed to query room by id")
	}
	rooms, err := s.withMembers(ctx, []roomRow{row})
	if err != nil {
		return nil, err
	}
	return rooms[0], nil
}

// FindRoomByMembers returns the room whose participants are exactly memberIDs, or nil if there is none.
func (s *SQLStore) FindRoomByMembers(ctx context.Context, memberIDs []uuid.UUID) (*models.Room, error) {
	var row roomRow
	err := s.DB.GetContext(ctx, &row, s.q(`SELECT id, pair_key, created_at FROM rooms WHERE pair_key = ?`), models.MembersKey(memberIDs))
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, wrapError(err, "failed to query room by members")
	}
	rooms, err := s.withMembers(ctx, []roomRow{row})
	if err != nil {
		return nil, err
	}
	return rooms[0], nil
}

// GetRoomsByUser lists every room userID participates in, newest first.
func (s *SQLStore) GetRoomsByUser(ctx context.Context, userID uuid.UUID) ([]*models.Room, error) {
	query := `
		SELECT r.id, r.pair_key, r.created_at
		FROM rooms r JOIN room_members m ON m.room_id = r.id
		WHERE m.user_id = ?
		ORDER BY r.created_at DESC, r.id DESC
	`
	rows := []roomRow{}
	if err := s.DB.SelectContext(ctx, &rows, s.q(query), userID); err != nil {
		return nil, wrapError(err, "failed to query rooms by user")
	}
	return s.withMembers(ctx, rows)
}

// IsRoomMember reports whether userID participates in roomID.
func (s *SQLStore) IsRoomMember(ctx context.Context, roomID, userID uuid.UUID) (bool, error) {
	var n int
	err := s.DB.GetContext(ctx, &n, s.q(`SELECT COUNT(*) FROM room_members WHERE room_id = ? AND user_id = ?`), roomID, userID)
	if err != nil {
		return false, wrapError(err, "failed to check room membership")
	}
	return n > 0, nil
}

// withMembers loads the participants of rows with a single query.
func (s *SQLStore) withMembers(ctx context.Context, rows []roomRow) ([]*models.Room, error) {
	rooms := make([]*models.Room, 0, len(rows))
	if len(rows) == 0 {
		return rooms, nil
	}

	ids := make([]uuid.UUID, len(rows))
	byID := make(map[uuid.UUID]*models.Room, len(rows))
	for i, row := range rows {
		ids[i] = row.ID
		room := &models.Room{ID: row.ID, CreatedAt: row.CreatedAt, Members: []uuid.UUID{}}
		byID[row.ID] = room
		rooms = append(rooms, room)
	}

	query, args, err := sqlx.In(`SELECT room_id, user_id FROM room_members WHERE room_id IN (?) ORDER BY user_id`, ids)
	if err != nil {
		return nil, utils.NewAppError(utils.ErrDatabase, "failed to build room members query", err)
	}
	members := []memberRow{}
	if err := s.DB.SelectContext(ctx, &members, s.q(query), args...); err != nil {
		return nil, wrapError(err, "failed to query room members")
	}
	for _, m := range members {
		if room, ok := byID[m.RoomID]; ok {
			room.Members = append(room.Members, m.UserID)
		}
	}
	return rooms, nil
}
