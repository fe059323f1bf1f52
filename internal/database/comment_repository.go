package database

import (
	"context"

	"gator-social/internal/models"
	"gator-social/internal/pagination"

	"github.com/google/uuid"
)

// SaveComment inserts a comment. A missing post or author is reported as ErrNotFound.
func (s *SQLStore) SaveComment(ctx context.Context, comment *models.Comment) error {
	if comment.ID == uuid.Nil {
		comment.ID = uuid.New()
	}
	if comment.CreatedAt.IsZero() {
		comment.CreatedAt = now()
	}

	query := `
		INSERT INTO comments (id, post_id, author_id, payload, created_at)
		VALUES (:id, :post_id, :author_id, :payload, :created_at)
	`
	if _, err := s.DB.NamedExecContext(ctx, query, comment); err != nil {
		return wrapError(err, "failed to save comment")
	}
	return nil
}

// ListComments lists a post's comments in conversation order, oldest first.
func (s *SQLStore) ListComments(ctx context.Context, postID uuid.UUID, w pagination.Window) ([]*models.Comment, error) {
	cursorID, err := parseCursor(w)
	if err != nil {
		return nil, err
	}
	a, err := s.loadAnchor(ctx, w, `SELECT created_at, id FROM comments WHERE id = ? AND post_id = ?`, cursorID, postID)
	if err != nil {
		return nil, err
	}

	query := `SELECT id, post_id, author_id, payload, created_at FROM comments WHERE post_id = ?`
	args := []any{postID}
	if a != nil {
		query += ` AND (created_at > ? OR (created_at = ? AND id > ?))`
		args = append(args, a.CreatedAt.UTC(), a.CreatedAt.UTC(), cursorID)
	}
	query += ` ORDER BY created_at ASC, id ASC LIMIT ?`
	args = append(args, w.Limit())

	comments := []*models.Comment{}
	if err := s.DB.SelectContext(ctx, &comments, s.q(query), args...); err != nil {
		return nil, wrapError(err, "failed to list comments")
	}
	return comments, nil
}
