// internal/database/post_repository.go
package database

import (
	"context"

	"gator-social/internal/models"
	"gator-social/internal/pagination"
	"gator-social/internal/utils"

	"github.com/google/uuid"
)

const postColumns = `p.id, p.author_id, p.caption, p.created_at`

// SavePost inserts a new post. A missing author is reported as ErrNotFound.
func (s *SQLStore) SavePost(ctx context.Context, post *models.Post) error {
	if post.ID == uuid.Nil {
		post.ID = uuid.New()
	}
	if post.CreatedAt.IsZero() {
		post.CreatedAt = now()
	}

	query := `
		INSERT INTO posts (id, author_id, caption, created_at)
		VALUES (:id, :author_id, :caption, :created_at)
	`
	if _, err := s.DB.NamedExecContext(ctx, query, post); err != nil {
		return wrapError(err, "failed to save post")
	}
	return nil
}

// GetPost fetches a post by id.
func (s *SQLStore) GetPost(ctx context.Context, id uuid.UUID) (*models.Post, error) {
	var post models.Post
	err := s.DB.GetContext(ctx, &post, s.q(`SELECT `+postColumns+` FROM posts p WHERE p.id = ?`), id)
	if err != nil {
		if isNoRows(err) {
			return nil, utils.NewAppError(utils.ErrNotFound, "post not found", err)
		}
		return nil, wrapError(err, "failed to query post by id")
	}
	return &post, nil
}

// postAnchor resolves a post cursor for the newest-first post listings. The
// anchor must satisfy the listing's own filter, so a post from outside the
// listing is an unknown cursor.
func (s *SQLStore) postAnchor(ctx context.Context, w pagination.Window, filter string, args []any) (*anchor, uuid.UUID, error) {
	cursorID, err := parseCursor(w)
	if err != nil {
		return nil, uuid.Nil, err
	}
	query := `SELECT p.created_at AS created_at, p.id AS id FROM posts p WHERE p.id = ? AND ` + filter
	a, err := s.loadAnchor(ctx, w, query, append([]any{cursorID}, args...)...)
	return a, cursorID, err
}

// feedFilter matches posts by the viewer or by anyone the viewer follows.
const feedFilter = `(p.author_id = ? OR p.author_id IN (
	SELECT e.object_id FROM edges e WHERE e.subject_id = ? AND e.kind = ?
))`

// ListFeed lists the viewer's own posts and the posts of everyone the viewer follows, newest first.
func (s *SQLStore) ListFeed(ctx context.Context, viewerID uuid.UUID, w pagination.Window) ([]*models.Post, error) {
	args := []any{viewerID, viewerID, models.EdgeFollow}
	a, cursorID, err := s.postAnchor(ctx, w, feedFilter, args)
	if err != nil {
		return nil, err
	}
	return s.selectPosts(ctx, feedFilter, args, a, cursorID, w, "failed to query feed")
}

const captionFilter = `LOWER(p.caption) LIKE ? ESCAPE '\'`

// SearchPosts lists posts whose caption contains keyword, case-insensitively, newest first.
func (s *SQLStore) SearchPosts(ctx context.Context, keyword string, w pagination.Window) ([]*models.Post, error) {
	args := []any{likePattern(keyword)}
	a, cursorID, err := s.postAnchor(ctx, w, captionFilter, args)
	if err != nil {
		return nil, err
	}
	return s.selectPosts(ctx, captionFilter, args, a, cursorID, w, "failed to search posts")
}

func (s *SQLStore) selectPosts(ctx context.Context, filter string, args []any, a *anchor, cursorID uuid.UUID, w pagination.Window, failure string) ([]*models.Post, error) {
	query := `SELECT ` + postColumns + ` FROM posts p WHERE ` + filter
	args = append([]any{}, args...)
	if a != nil {
		query += ` AND (p.created_at < ? OR (p.created_at = ? AND p.id < ?))`
		args = append(args, a.CreatedAt.UTC(), a.CreatedAt.UTC(), cursorID)
	}
	query += ` ORDER BY p.created_at DESC, p.id DESC LIMIT ?`
	args = append(args, w.Limit())

	posts := []*models.Post{}
	if err := s.DB.SelectContext(ctx, &posts, s.q(query), args...); err != nil {
		return nil, wrapError(err, failure)
	}
	return posts, nil
}

// ListPostLikes lists the users who like postID, most recent like first.
func (s *SQLStore) ListPostLikes(ctx context.Context, postID uuid.UUID, w pagination.Window) ([]*models.User, error) {
	return s.listEdgeUsers(ctx, w, edgeUsersQuery{
		join:      `e.subject_id = u.id`,
		filter:    `e.object_id = ?`,
		anchorCol: `e.subject_id`,
		anchorKey: `object_id`,
		anchorSub: `subject_id`,
		ownerID:   postID,
		kind:      models.EdgeLike,
	})
}
