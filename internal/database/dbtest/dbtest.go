// Package dbtest opens throwaway SQLite stores and seeds them for package tests.
package dbtest

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"gator-social/internal/config"
	"gator-social/internal/database"
	"gator-social/internal/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

// NewStore opens a migrated store backed by a file in t's temp dir.
func NewStore(t *testing.T) *database.SQLStore {
	t.Helper()

	cfg := &config.DatabaseConfig{Type: "sqlite", URI: filepath.Join(t.TempDir(), "gator.db")}
	store, err := database.Open(context.Background(), cfg)
	require.NoError(t, err, "open test store")
	t.Cleanup(func() {
		require.NoError(t, store.Close(context.Background()), "close test store")
	})
	return store
}

// Epoch is a fixed base time for rows whose ordering a test asserts on.
var Epoch = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

// User saves a user named name.
func User(t *testing.T, store database.DBAdapter, name string) *models.User {
	t.Helper()

	user := &models.User{
		ID:       uuid.New(),
		Username: name,
		Email:    fmt.Sprintf("%s@example.com", name),
	}
	require.NoError(t, store.SaveUser(context.Background(), user))
	return user
}

// Post saves a post by authorID created offset after Epoch.
func Post(t *testing.T, store database.DBAdapter, authorID uuid.UUID, caption string, offset time.Duration) *models.Post {
	t.Helper()

	post := &models.Post{
		ID:        uuid.New(),
		AuthorID:  authorID,
		Caption:   caption,
		CreatedAt: Epoch.Add(offset),
	}
	require.NoError(t, store.SavePost(context.Background(), post))
	return post
}
