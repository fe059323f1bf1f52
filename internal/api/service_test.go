package api

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"gator-social/internal/database"
	"gator-social/internal/database/dbtest"
	"gator-social/internal/messages"
	"gator-social/internal/models"
	"gator-social/internal/pagination"
	"gator-social/internal/presence"
	"gator-social/internal/relations"
	"gator-social/internal/rooms"
	"gator-social/internal/utils"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func wire(t *testing.T, store database.DBAdapter) *Service {
	t.Helper()
	logger := zerolog.Nop()
	metrics := utils.NewMetricsCollector(nil)
	directory := rooms.NewDirectory(store, logger)
	notifier := presence.NewNotifier(actor.NewActorSystem(), directory, 16, metrics, logger)
	t.Cleanup(notifier.Shutdown)

	return NewService(Deps{
		Store:         store,
		Rooms:         directory,
		Ledger:        messages.NewLedger(store, notifier, logger),
		Notifier:      notifier,
		Toggler:       relations.NewToggler(store, logger),
		Metrics:       metrics,
		Logger:        logger,
		RetryInterval: time.Millisecond,
	})
}

func TestRoomScenario(t *testing.T) {
	store := dbtest.NewStore(t)
	svc := wire(t, store)
	ctx := context.Background()
	u1 := dbtest.User(t, store, "u1")
	u2 := dbtest.User(t, store, "u2")

	created := svc.CreateMessageRoom(ctx, u1.ID, u2.ID)
	require.True(t, created.Ok, created.Error)
	roomID := created.Room.ID
	assert.Len(t, created.Room.Users, 2)

	sent := svc.SendMessage(ctx, u1.ID, roomID, "hi")
	require.True(t, sent.Ok, sent.Error)

	forU2 := svc.SeeRoom(ctx, u2.ID, roomID)
	require.True(t, forU2.Ok, forU2.Error)
	assert.Equal(t, 1, forU2.Room.UnreadTotal)
	require.NotNil(t, forU2.Room.LastMessage)
	assert.Equal(t, "hi", forU2.Room.LastMessage.Payload)

	forU1 := svc.SeeRoom(ctx, u1.ID, roomID)
	require.True(t, forU1.Ok)
	assert.Equal(t, 0, forU1.Room.UnreadTotal)

	read := svc.ReadMessage(ctx, u2.ID, sent.Message.ID)
	require.True(t, read.Ok, read.Error)
	forU2 = svc.SeeRoom(ctx, u2.ID, roomID)
	assert.Equal(t, 0, forU2.Room.UnreadTotal)

	again := svc.CreateMessageRoom(ctx, u2.ID, u1.ID)
	assert.False(t, again.Ok)
	assert.Equal(t, utils.ErrConflict, again.Code)
	assert.NotEmpty(t, again.Error)
}

func TestLikeScenario(t *testing.T) {
	store := dbtest.NewStore(t)
	svc := wire(t, store)
	ctx := context.Background()
	u1 := dbtest.User(t, store, "u1")
	post := dbtest.Post(t, store, u1.ID, "p", 0)

	require.True(t, svc.ToggleLike(ctx, u1.ID, post.ID).Ok)
	exists, err := svc.toggler.Exists(ctx, u1.ID, post.ID, models.EdgeLike)
	require.NoError(t, err)
	assert.True(t, exists)

	require.True(t, svc.ToggleLike(ctx, u1.ID, post.ID).Ok)
	exists, err = svc.toggler.Exists(ctx, u1.ID, post.ID, models.EdgeLike)
	require.NoError(t, err)
	assert.False(t, exists)

	missing := svc.ToggleLike(ctx, u1.ID, uuid.New())
	assert.False(t, missing.Ok)
	assert.Equal(t, utils.ErrNotFound, missing.Code)
}

func TestSeeRoomHidesOtherRooms(t *testing.T) {
	store := dbtest.NewStore(t)
	svc := wire(t, store)
	ctx := context.Background()
	u1 := dbtest.User(t, store, "u1")
	u2 := dbtest.User(t, store, "u2")
	u3 := dbtest.User(t, store, "u3")

	created := svc.CreateMessageRoom(ctx, u1.ID, u2.ID)
	require.True(t, created.Ok)

	out := svc.SeeRoom(ctx, u3.ID, created.Room.ID)
	assert.False(t, out.Ok)
	assert.Equal(t, utils.ErrNotFound, out.Code)
	assert.Nil(t, out.Room)

	sent := svc.SendMessage(ctx, u3.ID, created.Room.ID, "intrude")
	assert.Equal(t, utils.ErrUnauthorized, sent.Code)

	rooms := svc.SeeRooms(ctx, u3.ID)
	require.True(t, rooms.Ok)
	assert.Empty(t, rooms.Rooms)
}

func TestSeeRoomsMostRecentlyActiveFirst(t *testing.T) {
	store := dbtest.NewStore(t)
	svc := wire(t, store)
	ctx := context.Background()
	me := dbtest.User(t, store, "me")
	a := dbtest.User(t, store, "a")
	b := dbtest.User(t, store, "b")

	withA := svc.CreateMessageRoom(ctx, me.ID, a.ID)
	require.True(t, withA.Ok)
	withB := svc.CreateMessageRoom(ctx, me.ID, b.ID)
	require.True(t, withB.Ok)
	time.Sleep(2 * time.Millisecond)
	require.True(t, svc.SendMessage(ctx, a.ID, withA.Room.ID, "ping").Ok)

	out := svc.SeeRooms(ctx, me.ID)
	require.True(t, out.Ok)
	require.Len(t, out.Rooms, 2)
	assert.Equal(t, withA.Room.ID, out.Rooms[0].ID)
	assert.Equal(t, 1, out.Rooms[0].UnreadTotal)
}

func TestSubscribeReceivesSentMessages(t *testing.T) {
	store := dbtest.NewStore(t)
	svc := wire(t, store)
	ctx := context.Background()
	u1 := dbtest.User(t, store, "u1")
	u2 := dbtest.User(t, store, "u2")
	room := svc.CreateMessageRoom(ctx, u1.ID, u2.ID)
	require.True(t, room.Ok)

	sub, res := svc.SubscribeToRoomUpdates(ctx, u2.ID, room.Room.ID)
	require.True(t, res.Ok)
	defer sub.Close()

	sent := svc.SendMessage(ctx, u1.ID, room.Room.ID, "live")
	require.True(t, sent.Ok)

	select {
	case msg := <-sub.Events():
		assert.Equal(t, sent.Message.ID, msg.ID)
	case <-time.After(2 * time.Second):
		t.Fatal("no live update")
	}
}

func TestListingsValidateWindow(t *testing.T) {
	store := dbtest.NewStore(t)
	svc := wire(t, store)
	ctx := context.Background()
	u1 := dbtest.User(t, store, "u1")

	out := svc.SeeFeed(ctx, u1.ID, pagination.Window{Size: 1000})
	assert.Equal(t, utils.ErrInvalidInput, out.Code)

	out = svc.SeeFeed(ctx, u1.ID, pagination.Window{After: uuid.NewString()})
	assert.Equal(t, utils.ErrInvalidInput, out.Code)

	users := svc.SearchUsers(ctx, u1.ID, "", pagination.Window{})
	assert.Equal(t, utils.ErrInvalidInput, users.Code)

	followers := svc.SeeFollowers(ctx, u1.ID, "nobody", pagination.Window{})
	assert.Equal(t, utils.ErrNotFound, followers.Code)
}

func TestFeedAndUserViews(t *testing.T) {
	store := dbtest.NewStore(t)
	svc := wire(t, store)
	ctx := context.Background()
	me := dbtest.User(t, store, "gator_me")
	friend := dbtest.User(t, store, "gator_friend")
	mine := dbtest.Post(t, store, me.ID, "mine", 0)
	theirs := dbtest.Post(t, store, friend.ID, "theirs", time.Second)

	require.True(t, svc.ToggleFollow(ctx, me.ID, friend.ID).Ok)
	require.True(t, svc.ToggleLike(ctx, me.ID, theirs.ID).Ok)

	feed := svc.SeeFeed(ctx, me.ID, pagination.Window{Size: 1})
	require.True(t, feed.Ok, feed.Error)
	require.Len(t, feed.Items, 1)
	assert.Equal(t, theirs.ID, feed.Items[0].ID)
	assert.True(t, feed.Items[0].IsLiked)
	assert.False(t, feed.Items[0].IsMine)
	assert.True(t, feed.HasNextPage)

	feed = svc.SeeFeed(ctx, me.ID, pagination.Window{Size: 1, After: feed.EndCursor})
	require.True(t, feed.Ok, feed.Error)
	require.Len(t, feed.Items, 1)
	assert.Equal(t, mine.ID, feed.Items[0].ID)
	assert.True(t, feed.Items[0].IsMine)
	assert.False(t, feed.HasNextPage)

	users := svc.SearchUsers(ctx, me.ID, "gator", pagination.Window{})
	require.True(t, users.Ok, users.Error)
	require.Len(t, users.Items, 2)
	assert.Equal(t, "gator_friend", users.Items[0].Username)
	assert.True(t, users.Items[0].IsFollowing)
	assert.True(t, users.Items[1].IsMe)

	likes := svc.SeePostLikes(ctx, friend.ID, theirs.ID, pagination.Window{})
	require.True(t, likes.Ok)
	require.Len(t, likes.Items, 1)
	assert.Equal(t, me.ID, likes.Items[0].ID)

	following := svc.SeeFollowing(ctx, friend.ID, "gator_me", pagination.Window{})
	require.True(t, following.Ok)
	require.Len(t, following.Items, 1)
	assert.Equal(t, friend.ID, following.Items[0].ID)
	assert.True(t, following.Items[0].IsMe)

	comments := svc.SeeComments(ctx, uuid.New(), pagination.Window{})
	assert.Equal(t, utils.ErrNotFound, comments.Code)
}

// flakyStore fails GetRoom with a transient error the first failures times.
type flakyStore struct {
	database.DBAdapter
	failures int32
	calls    atomic.Int32
}

func (f *flakyStore) GetRoom(ctx context.Context, id uuid.UUID) (*models.Room, error) {
	if f.calls.Add(1) <= f.failures {
		return nil, utils.NewAppError(utils.ErrTransient, "failed to query room by id", errors.New("connection reset by peer"))
	}
	return f.DBAdapter.GetRoom(ctx, id)
}

func TestTransientFailureIsRetriedOnce(t *testing.T) {
	store := dbtest.NewStore(t)
	u1 := dbtest.User(t, store, "u1")
	u2 := dbtest.User(t, store, "u2")
	room, err := store.CreateRoom(context.Background(), []uuid.UUID{u1.ID, u2.ID})
	require.NoError(t, err)

	once := &flakyStore{DBAdapter: store, failures: 1}
	out := wire(t, once).SendMessage(context.Background(), u1.ID, room.ID, "hi")
	assert.True(t, out.Ok, out.Error)
	assert.Equal(t, int32(2), once.calls.Load())

	twice := &flakyStore{DBAdapter: store, failures: 2}
	out = wire(t, twice).SendMessage(context.Background(), u1.ID, room.ID, "hi")
	assert.False(t, out.Ok)
	assert.Equal(t, utils.ErrTransient, out.Code)
	assert.NotContains(t, out.Error, "connection reset", "driver details stay internal")
	assert.Equal(t, int32(2), twice.calls.Load())
}

func TestLogicalFailureIsNotRetried(t *testing.T) {
	store := dbtest.NewStore(t)
	u1 := dbtest.User(t, store, "u1")

	counting := &flakyStore{DBAdapter: store}
	out := wire(t, counting).SendMessage(context.Background(), u1.ID, uuid.New(), "hi")
	assert.Equal(t, utils.ErrNotFound, out.Code)
	assert.Equal(t, int32(1), counting.calls.Load())
}

// unreadFlakyStore fails CountUnread with a transient error the first failures times.
type unreadFlakyStore struct {
	database.DBAdapter
	failures int32
	calls    atomic.Int32
}

func (f *unreadFlakyStore) CountUnread(ctx context.Context, roomID, excludingUserID uuid.UUID) (int, error) {
	if f.calls.Add(1) <= f.failures {
		return 0, utils.NewAppError(utils.ErrTransient, "failed to count unread messages", errors.New("connection reset by peer"))
	}
	return f.DBAdapter.CountUnread(ctx, roomID, excludingUserID)
}

func TestCreateMessageRoomRetriesViewWithoutRecreating(t *testing.T) {
	store := dbtest.NewStore(t)
	ctx := context.Background()
	u1 := dbtest.User(t, store, "u1")
	u2 := dbtest.User(t, store, "u2")

	flaky := &unreadFlakyStore{DBAdapter: store, failures: 1}
	svc := wire(t, flaky)

	created := svc.CreateMessageRoom(ctx, u1.ID, u2.ID)
	require.True(t, created.Ok, "%s: %s", created.Code, created.Error)
	require.NotNil(t, created.Room)
	assert.Len(t, created.Room.Users, 2)
	assert.Equal(t, int32(2), flaky.calls.Load())

	rooms, err := store.GetRoomsByUser(ctx, u1.ID)
	require.NoError(t, err)
	require.Len(t, rooms, 1)
	assert.Equal(t, rooms[0].ID, created.Room.ID)

	again := svc.CreateMessageRoom(ctx, u2.ID, u1.ID)
	assert.Equal(t, utils.ErrConflict, again.Code)
}
