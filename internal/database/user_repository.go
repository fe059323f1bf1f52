package database

import (
	"context"
	"fmt"

	"gator-social/internal/models"
	"gator-social/internal/pagination"
	"gator-social/internal/utils"

	"github.com/google/uuid"
)

const userColumns = `u.id, u.username, u.email, u.bio, u.created_at`

// SaveUser inserts a new user.
func (s *SQLStore) SaveUser(ctx context.Context, user *models.User) error {
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now()
	}

	query := `
		INSERT INTO users (id, username, email, bio, created_at)
		VALUES (:id, :username, :email, :bio, :created_at)
	`
	if _, err := s.DB.NamedExecContext(ctx, query, user); err != nil {
		return wrapError(err, fmt.Sprintf("failed to save user %s", user.Username))
	}
	return nil
}

// GetUser fetches a user by id.
func (s *SQLStore) GetUser(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var user models.User
	err := s.DB.GetContext(ctx, &user, s.q(`SELECT `+userColumns+` FROM users u WHERE u.id = ?`), id)
	if err != nil {
		if isNoRows(err) {
			return nil, utils.NewAppError(utils.ErrNotFound, "user not found", err)
		}
		return nil, wrapError(err, "failed to query user by id")
	}
	return &user, nil
}

// GetUserByUsername fetches a user by exact username.
func (s *SQLStore) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	var user models.User
	err := s.DB.GetContext(ctx, &user, s.q(`SELECT `+userColumns+` FROM users u WHERE u.username = ?`), username)
	if err != nil {
		if isNoRows(err) {
			return nil, utils.NewAppError(utils.ErrNotFound, "user not found", err)
		}
		return nil, wrapError(err, "failed to query user by username")
	}
	return &user, nil
}

// SearchUsers lists users whose username contains keyword, case-insensitively, in alphabetical order.
func (s *SQLStore) SearchUsers(ctx context.Context, keyword string, w pagination.Window) ([]*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users u WHERE LOWER(u.username) LIKE ? ESCAPE '\'`
	args := []any{likePattern(keyword)}

	if w.HasCursor() {
		cursorID, err := parseCursor(w)
		if err != nil {
			return nil, err
		}
		var after string
		err = s.DB.GetContext(ctx, &after, s.q(`SELECT username FROM users WHERE id = ?`), cursorID)
		if err != nil {
			if isNoRows(err) {
				return nil, pagination.ErrUnknownCursor(w.After)
			}
			return nil, wrapError(err, "failed to resolve page cursor")
		}
		// usernames are unique, so they order users totally on their own
		query += ` AND u.username > ?`
		args = append(args, after)
	}
	query += ` ORDER BY u.username ASC LIMIT ?`
	args = append(args, w.Limit())

	users := []*models.User{}
	if err := s.DB.SelectContext(ctx, &users, s.q(query), args...); err != nil {
		return nil, wrapError(err, "failed to search users")
	}
	return users, nil
}

// ListFollowers lists the users following userID, most recent follow first.
func (s *SQLStore) ListFollowers(ctx context.Context, userID uuid.UUID, w pagination.Window) ([]*models.User, error) {
	return s.listEdgeUsers(ctx, w, edgeUsersQuery{
		join:      `e.subject_id = u.id`,
		filter:    `e.object_id = ?`,
		anchorCol: `e.subject_id`,
		anchorKey: `object_id`,
		anchorSub: `subject_id`,
		ownerID:   userID,
		kind:      models.EdgeFollow,
	})
}

// ListFollowing lists the users userID follows, most recent follow first.
func (s *SQLStore) ListFollowing(ctx context.Context, userID uuid.UUID, w pagination.Window) ([]*models.User, error) {
	return s.listEdgeUsers(ctx, w, edgeUsersQuery{
		join:      `e.object_id = u.id`,
		filter:    `e.subject_id = ?`,
		anchorCol: `e.object_id`,
		anchorKey: `subject_id`,
		anchorSub: `object_id`,
		ownerID:   userID,
		kind:      models.EdgeFollow,
	})
}

// edgeUsersQuery describes a listing of the users on one side of an edge set,
// ordered by when the edge was created.
type edgeUsersQuery struct {
	join      string // joins users u to edges e
	filter    string // restricts e to the owner's edges
	anchorCol string // edge column holding the listed user's id
	anchorKey string // edge column matched against ownerID when resolving the cursor
	anchorSub string // edge column matched against the cursor
	ownerID   uuid.UUID
	kind      models.EdgeKind
}

func (s *SQLStore) listEdgeUsers(ctx context.Context, w pagination.Window, eq edgeUsersQuery) ([]*models.User, error) {
	cursorID, err := parseCursor(w)
	if err != nil {
		return nil, err
	}
	a, err := s.loadAnchor(ctx, w,
		fmt.Sprintf(`SELECT created_at, %s AS id FROM edges WHERE %s = ? AND %s = ? AND kind = ?`,
			eq.anchorSub, eq.anchorKey, eq.anchorSub),
		eq.ownerID, cursorID, eq.kind)
	if err != nil {
		return nil, err
	}

	query := `SELECT ` + userColumns + ` FROM users u JOIN edges e ON ` + eq.join +
		` WHERE ` + eq.filter + ` AND e.kind = ?`
	args := []any{eq.ownerID, eq.kind}
	if a != nil {
		query += ` AND (e.created_at < ? OR (e.created_at = ? AND ` + eq.anchorCol + ` < ?))`
		args = append(args, a.CreatedAt.UTC(), a.CreatedAt.UTC(), cursorID)
	}
	query += ` ORDER BY e.created_at DESC, ` + eq.anchorCol + ` DESC LIMIT ?`
	args = append(args, w.Limit())

	users := []*models.User{}
	if err := s.DB.SelectContext(ctx, &users, s.q(query), args...); err != nil {
		return nil, wrapError(err, "failed to list related users")
	}
	return users, nil
}
