package rooms

import (
	"context"
	"sync"
	"testing"

	"gator-social/internal/database"
	"gator-social/internal/database/dbtest"
	"gator-social/internal/models"
	"gator-social/internal/utils"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateTwiceInEitherOrderConflicts(t *testing.T) {
	store := dbtest.NewStore(t)
	dir := NewDirectory(store, zerolog.Nop())
	ctx := context.Background()
	u1 := dbtest.User(t, store, "u1")
	u2 := dbtest.User(t, store, "u2")

	room, err := dir.Create(ctx, u1.ID, u2.ID)
	require.NoError(t, err)

	_, err = dir.Create(ctx, u2.ID, u1.ID)
	assert.True(t, utils.IsErrorCode(err, utils.ErrConflict), "got %v", err)
	_, err = dir.Create(ctx, u1.ID, u2.ID)
	assert.True(t, utils.IsErrorCode(err, utils.ErrConflict), "got %v", err)

	found, err := dir.FindByMembers(ctx, u2.ID, u1.ID)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, room.ID, found.ID)

	for _, u := range []*models.User{u1, u2} {
		rooms, err := dir.ListForUser(ctx, u.ID)
		require.NoError(t, err)
		assert.Len(t, rooms, 1)
	}
}

func TestCreateValidatesParticipants(t *testing.T) {
	store := dbtest.NewStore(t)
	dir := NewDirectory(store, zerolog.Nop())
	ctx := context.Background()
	u1 := dbtest.User(t, store, "u1")

	_, err := dir.Create(ctx, u1.ID, uuid.New())
	assert.True(t, utils.IsErrorCode(err, utils.ErrNotFound), "got %v", err)

	_, err = dir.Create(ctx, u1.ID, u1.ID)
	assert.True(t, utils.IsErrorCode(err, utils.ErrInvalidInput), "got %v", err)
}

func TestFindOrFail(t *testing.T) {
	store := dbtest.NewStore(t)
	dir := NewDirectory(store, zerolog.Nop())
	ctx := context.Background()
	u1 := dbtest.User(t, store, "u1")
	u2 := dbtest.User(t, store, "u2")
	u3 := dbtest.User(t, store, "u3")

	room, err := dir.Create(ctx, u1.ID, u2.ID)
	require.NoError(t, err)

	got, err := dir.FindOrFail(ctx, room.ID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []uuid.UUID{u1.ID, u2.ID}, got.Members)

	_, err = dir.FindOrFail(ctx, uuid.New())
	assert.True(t, utils.IsErrorCode(err, utils.ErrNotFound))

	member, err := dir.IsMember(ctx, room.ID, u3.ID)
	require.NoError(t, err)
	assert.False(t, member)
}

// blindStore never finds an existing room, so every creator reaches the insert.
type blindStore struct {
	database.DBAdapter
}

func (blindStore) FindRoomByMembers(ctx context.Context, memberIDs []uuid.UUID) (*models.Room, error) {
	return nil, nil
}

func TestConcurrentCreateYieldsOneRoom(t *testing.T) {
	store := dbtest.NewStore(t)
	dir := NewDirectory(blindStore{DBAdapter: store}, zerolog.Nop())
	ctx := context.Background()
	u1 := dbtest.User(t, store, "u1")
	u2 := dbtest.User(t, store, "u2")

	const n = 8
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			a, b := u1.ID, u2.ID
			if i%2 == 1 {
				a, b = b, a
			}
			_, err := dir.Create(ctx, a, b)
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)

	created := 0
	for err := range errs {
		if err == nil {
			created++
			continue
		}
		assert.True(t, utils.IsErrorCode(err, utils.ErrConflict), "got %v", err)
	}
	assert.Equal(t, 1, created)

	rooms, err := store.GetRoomsByUser(ctx, u1.ID)
	require.NoError(t, err)
	assert.Len(t, rooms, 1)
}
