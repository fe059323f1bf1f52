package api

import (
	"context"
	"time"

	"gator-social/internal/models"
	"gator-social/internal/pagination"
	"gator-social/internal/utils"

	"github.com/google/uuid"
)

var errEmptyKeyword = utils.NewValidationError("search keyword must not be empty")

// ToggleLike likes postID for the viewer, or unlikes it if already liked.
func (s *Service) ToggleLike(ctx context.Context, viewerID, postID uuid.UUID) Result {
	return s.toggle(ctx, "toggleLike", viewerID, postID, models.EdgeLike)
}

// ToggleFollow follows userID for the viewer, or unfollows if already following.
func (s *Service) ToggleFollow(ctx context.Context, viewerID, userID uuid.UUID) Result {
	return s.toggle(ctx, "toggleFollow", viewerID, userID, models.EdgeFollow)
}

func (s *Service) toggle(ctx context.Context, operation string, subjectID, objectID uuid.UUID, kind models.EdgeKind) Result {
	start := time.Now()
	state, err := retryTransient(ctx, s.retryInterval, func(ctx context.Context) (models.ToggleState, error) {
		return s.toggler.Toggle(ctx, subjectID, objectID, kind)
	})
	if err == nil {
		s.logger.Debug().
			Str("operation", operation).
			Str("subject_id", subjectID.String()).
			Str("object_id", objectID.String()).
			Str("state", string(state)).
			Msg("edge toggled")
	}
	return s.finish(operation, start, err)
}

// SeeFeed pages through the viewer's posts and the posts of the users they follow.
func (s *Service) SeeFeed(ctx context.Context, viewerID uuid.UUID, w pagination.Window) PostPageOutput {
	return s.postPage(ctx, "seeFeed", viewerID, w, func(ctx context.Context, w pagination.Window) ([]*models.Post, error) {
		return s.store.ListFeed(ctx, viewerID, w)
	})
}

// SearchPosts pages through the posts whose caption contains keyword.
func (s *Service) SearchPosts(ctx context.Context, viewerID uuid.UUID, keyword string, w pagination.Window) PostPageOutput {
	return s.postPage(ctx, "searchPosts", viewerID, w, func(ctx context.Context, w pagination.Window) ([]*models.Post, error) {
		if keyword == "" {
			return nil, errEmptyKeyword
		}
		return s.store.SearchPosts(ctx, keyword, w)
	})
}

// SearchUsers pages alphabetically through the users whose username contains keyword.
func (s *Service) SearchUsers(ctx context.Context, viewerID uuid.UUID, keyword string, w pagination.Window) UserPageOutput {
	return s.userPage(ctx, "searchUsers", viewerID, w, func(ctx context.Context, w pagination.Window) ([]*models.User, error) {
		if keyword == "" {
			return nil, errEmptyKeyword
		}
		return s.store.SearchUsers(ctx, keyword, w)
	})
}

// SeeFollowers pages through the users following username.
func (s *Service) SeeFollowers(ctx context.Context, viewerID uuid.UUID, username string, w pagination.Window) UserPageOutput {
	return s.userPage(ctx, "seeFollowers", viewerID, w, func(ctx context.Context, w pagination.Window) ([]*models.User, error) {
		user, err := s.store.GetUserByUsername(ctx, username)
		if err != nil {
			return nil, err
		}
		return s.store.ListFollowers(ctx, user.ID, w)
	})
}

// SeeFollowing pages through the users username follows.
func (s *Service) SeeFollowing(ctx context.Context, viewerID uuid.UUID, username string, w pagination.Window) UserPageOutput {
	return s.userPage(ctx, "seeFollowing", viewerID, w, func(ctx context.Context, w pagination.Window) ([]*models.User, error) {
		user, err := s.store.GetUserByUsername(ctx, username)
		if err != nil {
			return nil, err
		}
		return s.store.ListFollowing(ctx, user.ID, w)
	})
}

// SeePostLikes pages through the users who like postID.
func (s *Service) SeePostLikes(ctx context.Context, viewerID, postID uuid.UUID, w pagination.Window) UserPageOutput {
	return s.userPage(ctx, "seePostLikes", viewerID, w, func(ctx context.Context, w pagination.Window) ([]*models.User, error) {
		if _, err := s.store.GetPost(ctx, postID); err != nil {
			return nil, err
		}
		return s.store.ListPostLikes(ctx, postID, w)
	})
}

// SeeComments pages through postID's comments, oldest first.
func (s *Service) SeeComments(ctx context.Context, postID uuid.UUID, w pagination.Window) CommentPageOutput {
	start := time.Now()
	page, err := retryTransient(ctx, s.retryInterval, func(ctx context.Context) (*pagination.Page[*models.Comment], error) {
		w, err := s.window(w)
		if err != nil {
			return nil, err
		}
		if _, err := s.store.GetPost(ctx, postID); err != nil {
			return nil, err
		}
		rows, err := s.store.ListComments(ctx, postID, w)
		if err != nil {
			return nil, err
		}
		page := pagination.Trim(rows, w, func(c *models.Comment) string { return c.ID.String() })
		return &page, nil
	})
	return CommentPageOutput{Result: s.finish("seeComments", start, err), Page: page}
}

type postLister func(ctx context.Context, w pagination.Window) ([]*models.Post, error)

func (s *Service) postPage(ctx context.Context, operation string, viewerID uuid.UUID, w pagination.Window, list postLister) PostPageOutput {
	start := time.Now()
	page, err := retryTransient(ctx, s.retryInterval, func(ctx context.Context) (*pagination.Page[*PostView], error) {
		w, err := s.window(w)
		if err != nil {
			return nil, err
		}
		rows, err := list(ctx, w)
		if err != nil {
			return nil, err
		}
		posts := pagination.Trim(rows, w, func(p *models.Post) string { return p.ID.String() })

		page := &pagination.Page[*PostView]{
			Items:       make([]*PostView, 0, len(posts.Items)),
			HasNextPage: posts.HasNextPage,
			EndCursor:   posts.EndCursor,
		}
		for _, post := range posts.Items {
			liked, err := s.toggler.Exists(ctx, viewerID, post.ID, models.EdgeLike)
			if err != nil {
				return nil, err
			}
			page.Items = append(page.Items, &PostView{Post: post, IsLiked: liked, IsMine: post.AuthorID == viewerID})
		}
		return page, nil
	})
	return PostPageOutput{Result: s.finish(operation, start, err), Page: page}
}

type userLister func(ctx context.Context, w pagination.Window) ([]*models.User, error)

func (s *Service) userPage(ctx context.Context, operation string, viewerID uuid.UUID, w pagination.Window, list userLister) UserPageOutput {
	start := time.Now()
	page, err := retryTransient(ctx, s.retryInterval, func(ctx context.Context) (*pagination.Page[*UserView], error) {
		w, err := s.window(w)
		if err != nil {
			return nil, err
		}
		rows, err := list(ctx, w)
		if err != nil {
			return nil, err
		}
		users := pagination.Trim(rows, w, func(u *models.User) string { return u.ID.String() })

		page := &pagination.Page[*UserView]{
			Items:       make([]*UserView, 0, len(users.Items)),
			HasNextPage: users.HasNextPage,
			EndCursor:   users.EndCursor,
		}
		for _, user := range users.Items {
			view := &UserView{User: user, IsMe: user.ID == viewerID}
			if !view.IsMe {
				view.IsFollowing, err = s.toggler.Exists(ctx, viewerID, user.ID, models.EdgeFollow)
				if err != nil {
					return nil, err
				}
			}
			page.Items = append(page.Items, view)
		}
		return page, nil
	})
	return UserPageOutput{Result: s.finish(operation, start, err), Page: page}
}
