package database

import (
	"context"

	"gator-social/internal/models"
	"gator-social/internal/pagination"
	"gator-social/internal/utils"

	"github.com/google/uuid"
)

const messageColumns = `id, room_id, author_id, payload, is_read, created_at`

// SaveMessage appends a message to its room. The caller assigns the id.
func (s *SQLStore) SaveMessage(ctx context.Context, msg *models.Message) error {
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = now()
	}

	query := `
		INSERT INTO messages (id, room_id, author_id, payload, is_read, created_at)
		VALUES (:id, :room_id, :author_id, :payload, :is_read, :created_at)
	`
	if _, err := s.DB.NamedExecContext(ctx, query, msg); err != nil {
		return wrapError(err, "failed to save message")
	}
	return nil
}

// GetMessage fetches a message by id.
func (s *SQLStore) GetMessage(ctx context.Context, id string) (*models.Message, error) {
	var msg models.Message
	err := s.DB.GetContext(ctx, &msg, s.q(`SELECT `+messageColumns+` FROM messages WHERE id = ?`), id)
	if err != nil {
		if isNoRows(err) {
			return nil, utils.NewAppError(utils.ErrNotFound, "message not found", err)
		}
		return nil, wrapError(err, "failed to query message by id")
	}
	return &msg, nil
}

// MarkMessageRead sets the read flag of messageID on behalf of readerID in a single statement.
// It matches only when readerID is a member of the message's room and not its author, and
// reports whether such a message exists. Marking an already read message matches again.
func (s *SQLStore) MarkMessageRead(ctx context.Context, messageID string, readerID uuid.UUID) (bool, error) {
	query := `
		UPDATE messages SET is_read = TRUE
		WHERE id = ? AND author_id <> ?
		AND EXISTS (
			SELECT 1 FROM room_members m WHERE m.room_id = messages.room_id AND m.user_id = ?
		)
	`
	result, err := s.DB.ExecContext(ctx, s.q(query), messageID, readerID, readerID)
	if err != nil {
		return false, wrapError(err, "failed to mark message read")
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, wrapError(err, "failed to get rows affected after update")
	}
	return rowsAffected > 0, nil
}

// CountUnread counts the unread messages of roomID not written by excludingUserID.
func (s *SQLStore) CountUnread(ctx context.Context, roomID, excludingUserID uuid.UUID) (int, error) {
	var n int
	query := `SELECT COUNT(*) FROM messages WHERE room_id = ? AND is_read = FALSE AND author_id <> ?`
	if err := s.DB.GetContext(ctx, &n, s.q(query), roomID, excludingUserID); err != nil {
		return 0, wrapError(err, "failed to count unread messages")
	}
	return n, nil
}

// GetLastMessage returns the newest message of roomID, or nil if the room is empty.
func (s *SQLStore) GetLastMessage(ctx context.Context, roomID uuid.UUID) (*models.Message, error) {
	var msg models.Message
	query := `SELECT ` + messageColumns + ` FROM messages WHERE room_id = ? ORDER BY created_at DESC, id DESC LIMIT 1`
	if err := s.DB.GetContext(ctx, &msg, s.q(query), roomID); err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, wrapError(err, "failed to query last message")
	}
	return &msg, nil
}

// ListRoomMessages lists a room's messages newest first.
func (s *SQLStore) ListRoomMessages(ctx context.Context, roomID uuid.UUID, w pagination.Window) ([]*models.Message, error) {
	a, err := s.loadAnchor(ctx, w, `SELECT created_at, id FROM messages WHERE id = ? AND room_id = ?`, w.After, roomID)
	if err != nil {
		return nil, err
	}

	query := `SELECT ` + messageColumns + ` FROM messages WHERE room_id = ?`
	args := []any{roomID}
	if a != nil {
		query += ` AND (created_at < ? OR (created_at = ? AND id < ?))`
		args = append(args, a.CreatedAt.UTC(), a.CreatedAt.UTC(), a.ID)
	}
	query += ` ORDER BY created_at DESC, id DESC LIMIT ?`
	args = append(args, w.Limit())

	messages := []*models.Message{}
	if err := s.DB.SelectContext(ctx, &messages, s.q(query), args...); err != nil {
		return nil, wrapError(err, "failed to list room messages")
	}
	return messages, nil
}
