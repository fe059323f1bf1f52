package database_test

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"gator-social/internal/config"
	"gator-social/internal/database"
	"gator-social/internal/database/dbtest"
	"gator-social/internal/models"
	"gator-social/internal/pagination"
	"gator-social/internal/utils"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSaveUserDuplicateUsername(t *testing.T) {
	store := dbtest.NewStore(t)
	ctx := context.Background()

	dbtest.User(t, store, "alice")
	err := store.SaveUser(ctx, &models.User{Username: "alice", Email: "other@example.com"})
	assert.True(t, utils.IsErrorCode(err, utils.ErrDuplicate), "got %v", err)

	_, err = store.GetUser(ctx, uuid.New())
	assert.True(t, utils.IsErrorCode(err, utils.ErrNotFound))
}

func TestCreateRoomIsUniquePerMemberSet(t *testing.T) {
	store := dbtest.NewStore(t)
	ctx := context.Background()
	a := dbtest.User(t, store, "a")
	b := dbtest.User(t, store, "b")

	room, err := store.CreateRoom(ctx, []uuid.UUID{a.ID, b.ID})
	require.NoError(t, err)
	assert.ElementsMatch(t, []uuid.UUID{a.ID, b.ID}, room.Members)

	_, err = store.CreateRoom(ctx, []uuid.UUID{b.ID, a.ID})
	assert.True(t, utils.IsErrorCode(err, utils.ErrDuplicate), "got %v", err)

	found, err := store.FindRoomByMembers(ctx, []uuid.UUID{b.ID, a.ID})
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, room.ID, found.ID)
	assert.ElementsMatch(t, room.Members, found.Members)

	c := dbtest.User(t, store, "c")
	missing, err := store.FindRoomByMembers(ctx, []uuid.UUID{a.ID, c.ID})
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestCreateRoomUnknownMemberWritesNothing(t *testing.T) {
	store := dbtest.NewStore(t)
	ctx := context.Background()
	a := dbtest.User(t, store, "a")
	ghost := uuid.New()

	_, err := store.CreateRoom(ctx, []uuid.UUID{a.ID, ghost})
	assert.True(t, utils.IsErrorCode(err, utils.ErrNotFound), "got %v", err)

	rooms, err := store.GetRoomsByUser(ctx, a.ID)
	require.NoError(t, err)
	assert.Empty(t, rooms)

	found, err := store.FindRoomByMembers(ctx, []uuid.UUID{a.ID, ghost})
	require.NoError(t, err)
	assert.Nil(t, found)
}

func TestConcurrentCreateRoomYieldsOneRoom(t *testing.T) {
	store := dbtest.NewStore(t)
	ctx := context.Background()
	a := dbtest.User(t, store, "a")
	b := dbtest.User(t, store, "b")

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		created int
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := store.CreateRoom(ctx, []uuid.UUID{a.ID, b.ID})
			if err == nil {
				mu.Lock()
				created++
				mu.Unlock()
				return
			}
			assert.True(t, utils.IsErrorCode(err, utils.ErrDuplicate), "got %v", err)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, created)
	rooms, err := store.GetRoomsByUser(ctx, a.ID)
	require.NoError(t, err)
	assert.Len(t, rooms, 1)
}

func TestMarkMessageRead(t *testing.T) {
	store := dbtest.NewStore(t)
	ctx := context.Background()
	a := dbtest.User(t, store, "a")
	b := dbtest.User(t, store, "b")
	outsider := dbtest.User(t, store, "outsider")
	room, err := store.CreateRoom(ctx, []uuid.UUID{a.ID, b.ID})
	require.NoError(t, err)

	msg := &models.Message{ID: ulid.Make().String(), RoomID: room.ID, AuthorID: a.ID, Payload: "hi"}
	require.NoError(t, store.SaveMessage(ctx, msg))

	unread, err := store.CountUnread(ctx, room.ID, b.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, unread)

	for _, reader := range []uuid.UUID{a.ID, outsider.ID} {
		ok, err := store.MarkMessageRead(ctx, msg.ID, reader)
		require.NoError(t, err)
		assert.False(t, ok, "author and non-members cannot mark read")
	}
	ok, err := store.MarkMessageRead(ctx, "missing", b.ID)
	require.NoError(t, err)
	assert.False(t, ok)

	for i := 0; i < 2; i++ {
		ok, err = store.MarkMessageRead(ctx, msg.ID, b.ID)
		require.NoError(t, err)
		assert.True(t, ok)
	}

	got, err := store.GetMessage(ctx, msg.ID)
	require.NoError(t, err)
	assert.True(t, got.Read)
	unread, err = store.CountUnread(ctx, room.ID, b.ID)
	require.NoError(t, err)
	assert.Zero(t, unread)
}

func TestListRoomMessagesPages(t *testing.T) {
	store := dbtest.NewStore(t)
	ctx := context.Background()
	a := dbtest.User(t, store, "a")
	b := dbtest.User(t, store, "b")
	room, err := store.CreateRoom(ctx, []uuid.UUID{a.ID, b.ID})
	require.NoError(t, err)

	var want []string
	for i := 0; i < 7; i++ {
		msg := &models.Message{
			ID:        ulid.Make().String(),
			RoomID:    room.ID,
			AuthorID:  a.ID,
			Payload:   fmt.Sprintf("m%d", i),
			CreatedAt: dbtest.Epoch.Add(time.Duration(i/2) * time.Second), // pairs share a timestamp
		}
		require.NoError(t, store.SaveMessage(ctx, msg))
		want = append([]string{msg.ID}, want...)
	}

	last, err := store.GetLastMessage(ctx, room.ID)
	require.NoError(t, err)
	assert.Equal(t, want[0], last.ID)

	var got []string
	w := pagination.Window{Size: 3}
	for {
		rows, err := store.ListRoomMessages(ctx, room.ID, w)
		require.NoError(t, err)
		page := pagination.Trim(rows, w, func(m *models.Message) string { return m.ID })
		for _, m := range page.Items {
			got = append(got, m.ID)
		}
		if !page.HasNextPage {
			break
		}
		w.After = page.EndCursor
	}
	assert.Equal(t, want, got)

	_, err = store.ListRoomMessages(ctx, room.ID, pagination.Window{Size: 3, After: "nope"})
	assert.True(t, utils.IsErrorCode(err, utils.ErrInvalidInput))
}

func TestEdgeLifecycle(t *testing.T) {
	store := dbtest.NewStore(t)
	ctx := context.Background()
	a := dbtest.User(t, store, "a")
	post := dbtest.Post(t, store, a.ID, "hello", 0)

	edge := &models.Edge{SubjectID: a.ID, ObjectID: post.ID, Kind: models.EdgeLike}
	require.NoError(t, store.CreateEdge(ctx, edge))
	err := store.CreateEdge(ctx, &models.Edge{SubjectID: a.ID, ObjectID: post.ID, Kind: models.EdgeLike})
	assert.True(t, utils.IsErrorCode(err, utils.ErrDuplicate), "got %v", err)

	exists, err := store.EdgeExists(ctx, a.ID, post.ID, models.EdgeLike)
	require.NoError(t, err)
	assert.True(t, exists)
	exists, err = store.EdgeExists(ctx, a.ID, post.ID, models.EdgeFollow)
	require.NoError(t, err)
	assert.False(t, exists, "kinds are independent")

	removed, err := store.DeleteEdge(ctx, a.ID, post.ID, models.EdgeLike)
	require.NoError(t, err)
	assert.True(t, removed)
	removed, err = store.DeleteEdge(ctx, a.ID, post.ID, models.EdgeLike)
	require.NoError(t, err)
	assert.False(t, removed)
}

func TestListFeedIncludesFollowedAuthors(t *testing.T) {
	store := dbtest.NewStore(t)
	ctx := context.Background()
	viewer := dbtest.User(t, store, "viewer")
	followed := dbtest.User(t, store, "followed")
	stranger := dbtest.User(t, store, "stranger")

	own := dbtest.Post(t, store, viewer.ID, "own", 1*time.Second)
	theirs := dbtest.Post(t, store, followed.ID, "theirs", 2*time.Second)
	dbtest.Post(t, store, stranger.ID, "hidden", 3*time.Second)
	require.NoError(t, store.CreateEdge(ctx, &models.Edge{SubjectID: viewer.ID, ObjectID: followed.ID, Kind: models.EdgeFollow}))

	posts, err := store.ListFeed(ctx, viewer.ID, pagination.Window{Size: 10})
	require.NoError(t, err)
	require.Len(t, posts, 2)
	assert.Equal(t, theirs.ID, posts[0].ID)
	assert.Equal(t, own.ID, posts[1].ID)

	posts, err = store.ListFeed(ctx, viewer.ID, pagination.Window{Size: 10, After: theirs.ID.String()})
	require.NoError(t, err)
	require.Len(t, posts, 1)
	assert.Equal(t, own.ID, posts[0].ID)
}

func TestListFeedPagesAcrossEqualTimestamps(t *testing.T) {
	store := dbtest.NewStore(t)
	ctx := context.Background()
	viewer := dbtest.User(t, store, "viewer")
	followed := dbtest.User(t, store, "followed")
	stranger := dbtest.User(t, store, "stranger")
	require.NoError(t, store.CreateEdge(ctx, &models.Edge{SubjectID: viewer.ID, ObjectID: followed.ID, Kind: models.EdgeFollow}))

	var want []*models.Post
	for i := 0; i < 8; i++ {
		author := viewer.ID
		if i%2 == 1 {
			author = followed.ID
		}
		// groups of three share a timestamp
		want = append(want, dbtest.Post(t, store, author, fmt.Sprintf("p%d", i), time.Duration(i/3)*time.Second))
		dbtest.Post(t, store, stranger.ID, fmt.Sprintf("s%d", i), time.Duration(i/3)*time.Second)
	}
	slices.SortFunc(want, func(a, b *models.Post) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(b.ID.String(), a.ID.String())
	})

	var got []uuid.UUID
	w := pagination.Window{Size: 3}
	for {
		rows, err := store.ListFeed(ctx, viewer.ID, w)
		require.NoError(t, err)
		page := pagination.Trim(rows, w, func(p *models.Post) string { return p.ID.String() })
		for _, p := range page.Items {
			got = append(got, p.ID)
		}
		if !page.HasNextPage {
			break
		}
		w.After = page.EndCursor
	}

	wantIDs := make([]uuid.UUID, 0, len(want))
	for _, p := range want {
		wantIDs = append(wantIDs, p.ID)
	}
	assert.Equal(t, wantIDs, got)
}

func TestPostListingsRejectForeignCursor(t *testing.T) {
	store := dbtest.NewStore(t)
	ctx := context.Background()
	alice := dbtest.User(t, store, "alice")
	bob := dbtest.User(t, store, "bob")
	dbtest.Post(t, store, alice.ID, "cats one", 0)
	dbtest.Post(t, store, alice.ID, "cats two", time.Second)
	dogs := dbtest.Post(t, store, bob.ID, "dogs", 2*time.Second)

	_, err := store.SearchPosts(ctx, "cats", pagination.Window{Size: 10, After: dogs.ID.String()})
	assert.True(t, utils.IsErrorCode(err, utils.ErrInvalidInput), "got %v", err)

	_, err = store.ListFeed(ctx, alice.ID, pagination.Window{Size: 10, After: dogs.ID.String()})
	assert.True(t, utils.IsErrorCode(err, utils.ErrInvalidInput), "got %v", err)

	// once alice follows bob, his post is part of her feed
	require.NoError(t, store.CreateEdge(ctx, &models.Edge{SubjectID: alice.ID, ObjectID: bob.ID, Kind: models.EdgeFollow}))
	posts, err := store.ListFeed(ctx, alice.ID, pagination.Window{Size: 10, After: dogs.ID.String()})
	require.NoError(t, err)
	assert.Len(t, posts, 2)
}

func TestOpenRejectsNonDatabaseFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "garbage.db")
	require.NoError(t, os.WriteFile(path, []byte(strings.Repeat("not a database ", 512)), 0o600))

	store, err := database.Open(context.Background(), &config.DatabaseConfig{Type: "sqlite", URI: path})
	assert.Error(t, err)
	assert.Nil(t, store)
}

func TestSearchEscapesWildcards(t *testing.T) {
	store := dbtest.NewStore(t)
	ctx := context.Background()
	a := dbtest.User(t, store, "Gator_Fan")
	dbtest.User(t, store, "gatorXfan")
	dbtest.Post(t, store, a.ID, "100% swamp", 0)
	dbtest.Post(t, store, a.ID, "100 swamps", time.Second)

	users, err := store.SearchUsers(ctx, "gator_", pagination.Window{Size: 10})
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, a.ID, users[0].ID)

	posts, err := store.SearchPosts(ctx, "0%", pagination.Window{Size: 10})
	require.NoError(t, err)
	require.Len(t, posts, 1)
	assert.Equal(t, "100% swamp", posts[0].Caption)
}

func TestSearchUsersAlphabeticalPages(t *testing.T) {
	store := dbtest.NewStore(t)
	ctx := context.Background()
	for _, name := range []string{"gary", "gabe", "gil", "bob"} {
		dbtest.User(t, store, name)
	}

	users, err := store.SearchUsers(ctx, "G", pagination.Window{Size: 2})
	require.NoError(t, err)
	page := pagination.Trim(users, pagination.Window{Size: 2}, func(u *models.User) string { return u.ID.String() })
	require.Len(t, page.Items, 2)
	assert.Equal(t, "gabe", page.Items[0].Username)
	assert.Equal(t, "gary", page.Items[1].Username)
	assert.True(t, page.HasNextPage)

	users, err = store.SearchUsers(ctx, "G", pagination.Window{Size: 2, After: page.EndCursor})
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, "gil", users[0].Username)
}

func TestFollowListsAndLikes(t *testing.T) {
	store := dbtest.NewStore(t)
	ctx := context.Background()
	star := dbtest.User(t, store, "star")
	fans := []*models.User{dbtest.User(t, store, "f1"), dbtest.User(t, store, "f2"), dbtest.User(t, store, "f3")}
	post := dbtest.Post(t, store, star.ID, "look", 0)

	for i, fan := range fans {
		at := dbtest.Epoch.Add(time.Duration(i) * time.Minute)
		require.NoError(t, store.CreateEdge(ctx, &models.Edge{SubjectID: fan.ID, ObjectID: star.ID, Kind: models.EdgeFollow, CreatedAt: at}))
		require.NoError(t, store.CreateEdge(ctx, &models.Edge{SubjectID: fan.ID, ObjectID: post.ID, Kind: models.EdgeLike, CreatedAt: at}))
	}

	followers, err := store.ListFollowers(ctx, star.ID, pagination.Window{Size: 2})
	require.NoError(t, err)
	require.Len(t, followers, 3, "Limit fetches one extra row")
	assert.Equal(t, fans[2].ID, followers[0].ID)
	assert.Equal(t, fans[1].ID, followers[1].ID)

	followers, err = store.ListFollowers(ctx, star.ID, pagination.Window{Size: 2, After: fans[1].ID.String()})
	require.NoError(t, err)
	require.Len(t, followers, 1)
	assert.Equal(t, fans[0].ID, followers[0].ID)

	following, err := store.ListFollowing(ctx, fans[0].ID, pagination.Window{Size: 5})
	require.NoError(t, err)
	require.Len(t, following, 1)
	assert.Equal(t, star.ID, following[0].ID)

	likers, err := store.ListPostLikes(ctx, post.ID, pagination.Window{Size: 5})
	require.NoError(t, err)
	assert.Len(t, likers, 3)

	_, err = store.ListFollowers(ctx, star.ID, pagination.Window{Size: 2, After: star.ID.String()})
	assert.True(t, utils.IsErrorCode(err, utils.ErrInvalidInput), "a non-follower is not a cursor")
}

func TestListCommentsOldestFirst(t *testing.T) {
	store := dbtest.NewStore(t)
	ctx := context.Background()
	a := dbtest.User(t, store, "a")
	post := dbtest.Post(t, store, a.ID, "p", 0)

	var ids []uuid.UUID
	for i := 0; i < 3; i++ {
		c := &models.Comment{PostID: post.ID, AuthorID: a.ID, Payload: fmt.Sprint(i), CreatedAt: dbtest.Epoch.Add(time.Duration(i) * time.Second)}
		require.NoError(t, store.SaveComment(ctx, c))
		ids = append(ids, c.ID)
	}

	comments, err := store.ListComments(ctx, post.ID, pagination.Window{Size: 5, After: ids[0].String()})
	require.NoError(t, err)
	require.Len(t, comments, 2)
	assert.Equal(t, ids[1], comments[0].ID)
	assert.Equal(t, ids[2], comments[1].ID)

	err = store.SaveComment(ctx, &models.Comment{PostID: uuid.New(), AuthorID: a.ID, Payload: "x"})
	assert.True(t, utils.IsErrorCode(err, utils.ErrNotFound), "got %v", err)
}
