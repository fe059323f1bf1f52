// internal/database/database.go
package database

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gator-social/internal/config"
	"gator-social/internal/models"
	"gator-social/internal/pagination"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

// DBAdapter defines the persistence operations the conversation and relationship core relies on.
// Get* methods report a missing row as utils.ErrNotFound; Find* methods return (nil, nil).
type DBAdapter interface {
	// Connection
	Close(ctx context.Context) error
	Ping(ctx context.Context) error

	// User methods
	SaveUser(ctx context.Context, user *models.User) error
	GetUser(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
	SearchUsers(ctx context.Context, keyword string, w pagination.Window) ([]*models.User, error)
	ListFollowers(ctx context.Context, userID uuid.UUID, w pagination.Window) ([]*models.User, error)
	ListFollowing(ctx context.Context, userID uuid.UUID, w pagination.Window) ([]*models.User, error)

	// Post methods
	SavePost(ctx context.Context, post *models.Post) error
	GetPost(ctx context.Context, id uuid.UUID) (*models.Post, error)
	ListFeed(ctx context.Context, viewerID uuid.UUID, w pagination.Window) ([]*models.Post, error)
	SearchPosts(ctx context.Context, keyword string, w pagination.Window) ([]*models.Post, error)
	ListPostLikes(ctx context.Context, postID uuid.UUID, w pagination.Window) ([]*models.User, error)

	// Comment methods
	SaveComment(ctx context.Context, comment *models.Comment) error
	ListComments(ctx context.Context, postID uuid.UUID, w pagination.Window) ([]*models.Comment, error)

	// Room methods
	CreateRoom(ctx context.Context, memberIDs []uuid.UUID) (*models.Room, error)
	GetRoom(ctx context.Context, id uuid.UUID) (*models.Room, error)
	FindRoomByMembers(ctx context.Context, memberIDs []uuid.UUID) (*models.Room, error)
	GetRoomsByUser(ctx context.Context, userID uuid.UUID) ([]*models.Room, error)
	IsRoomMember(ctx context.Context, roomID, userID uuid.UUID) (bool, error)

	// Message methods
	SaveMessage(ctx context.Context, msg *models.Message) error
	GetMessage(ctx context.Context, id string) (*models.Message, error)
	MarkMessageRead(ctx context.Context, messageID string, readerID uuid.UUID) (bool, error)
	CountUnread(ctx context.Context, roomID, excludingUserID uuid.UUID) (int, error)
	GetLastMessage(ctx context.Context, roomID uuid.UUID) (*models.Message, error)
	ListRoomMessages(ctx context.Context, roomID uuid.UUID, w pagination.Window) ([]*models.Message, error)

	// Edge methods
	EdgeExists(ctx context.Context, subjectID, objectID uuid.UUID, kind models.EdgeKind) (bool, error)
	CreateEdge(ctx context.Context, edge *models.Edge) error
	DeleteEdge(ctx context.Context, subjectID, objectID uuid.UUID, kind models.EdgeKind) (bool, error)
}

var _ DBAdapter = (*SQLStore)(nil)

// SQLStore implements DBAdapter on PostgreSQL or SQLite through sqlx.
type SQLStore struct {
	DB *sqlx.DB
}

// Open connects to the database described by cfg and applies the schema.
func Open(ctx context.Context, cfg *config.DatabaseConfig) (*SQLStore, error) {
	var (
		store *SQLStore
		err   error
	)
	switch cfg.Type {
	case "postgres":
		store, err = NewPostgresDB(cfg.URI)
	case "sqlite":
		store, err = NewSQLiteDB(cfg.URI)
	default:
		return nil, fmt.Errorf("unsupported database type %q", cfg.Type)
	}
	if err != nil {
		return nil, err
	}
	if err := store.InitializeTables(ctx); err != nil {
		if closeErr := store.Close(ctx); closeErr != nil {
			err = errors.Join(err, fmt.Errorf("failed to close database: %w", closeErr))
		}
		return nil, err
	}
	return store, nil
}

// NewPostgresDB creates a new PostgreSQL database connection
func NewPostgresDB(connectionString string) (*SQLStore, error) {
	db, err := sqlx.Connect("postgres", connectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL: %v", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	return &SQLStore{DB: db}, nil
}

// NewSQLiteDB opens (creating if needed) a SQLite database file.
// SQLite allows one writer at a time, so the pool is capped at a single connection.
func NewSQLiteDB(path string) (*SQLStore, error) {
	dsn := fmt.Sprintf("file:%s?_foreign_keys=on&_busy_timeout=5000&_txlock=immediate", path)
	db, err := sqlx.Connect("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database %s: %v", path, err)
	}
	db.SetMaxOpenConns(1)

	return &SQLStore{DB: db}, nil
}

// Close closes the database connection
func (s *SQLStore) Close(ctx context.Context) error {
	return s.DB.Close()
}

func (s *SQLStore) Ping(ctx context.Context) error {
	return s.DB.PingContext(ctx)
}

func (s *SQLStore) isPostgres() bool {
	return s.DB.DriverName() == "postgres"
}

// q rebinds ? placeholders for the active driver.
func (s *SQLStore) q(query string) string {
	return s.DB.Rebind(query)
}

// now is the creation timestamp for new rows, at the precision both backends keep.
func now() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id {{uuid}} PRIMARY KEY,
		username VARCHAR(50) UNIQUE NOT NULL,
		email VARCHAR(100) UNIQUE NOT NULL,
		bio TEXT NOT NULL DEFAULT '',
		created_at {{timestamp}} NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS posts (
		id {{uuid}} PRIMARY KEY,
		author_id {{uuid}} NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		caption TEXT NOT NULL,
		created_at {{timestamp}} NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_posts_author_time ON posts (author_id, created_at)`,
	`CREATE TABLE IF NOT EXISTS comments (
		id {{uuid}} PRIMARY KEY,
		post_id {{uuid}} NOT NULL REFERENCES posts(id) ON DELETE CASCADE,
		author_id {{uuid}} NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		payload TEXT NOT NULL,
		created_at {{timestamp}} NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_comments_post_time ON comments (post_id, created_at)`,
	// pair_key holds models.MembersKey, so a second room for the same members fails to insert.
	`CREATE TABLE IF NOT EXISTS rooms (
		id {{uuid}} PRIMARY KEY,
		pair_key TEXT UNIQUE NOT NULL,
		created_at {{timestamp}} NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS room_members (
		room_id {{uuid}} NOT NULL REFERENCES rooms(id) ON DELETE CASCADE,
		user_id {{uuid}} NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		PRIMARY KEY (room_id, user_id)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_room_members_user ON room_members (user_id)`,
	`CREATE TABLE IF NOT EXISTS messages (
		id VARCHAR(26) PRIMARY KEY,
		room_id {{uuid}} NOT NULL REFERENCES rooms(id) ON DELETE CASCADE,
		author_id {{uuid}} NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		payload TEXT NOT NULL,
		is_read BOOLEAN NOT NULL DEFAULT FALSE,
		created_at {{timestamp}} NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_messages_room_time ON messages (room_id, created_at)`,
	// object_id is a post for likes and a user for follows, so it carries no foreign key.
	`CREATE TABLE IF NOT EXISTS edges (
		subject_id {{uuid}} NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		object_id {{uuid}} NOT NULL,
		kind VARCHAR(20) NOT NULL,
		created_at {{timestamp}} NOT NULL,
		PRIMARY KEY (subject_id, object_id, kind)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_edges_object ON edges (object_id, kind, created_at)`,
}

// InitializeTables creates all necessary tables if they don't exist
func (s *SQLStore) InitializeTables(ctx context.Context) error {
	types := strings.NewReplacer("{{uuid}}", "TEXT", "{{timestamp}}", "TIMESTAMP")
	if s.isPostgres() {
		types = strings.NewReplacer("{{uuid}}", "UUID", "{{timestamp}}", "TIMESTAMP WITH TIME ZONE")
	}

	for _, stmt := range schema {
		if _, err := s.DB.ExecContext(ctx, types.Replace(stmt)); err != nil {
			return fmt.Errorf("failed to apply schema statement %q: %v", firstLine(stmt), err)
		}
	}
	return nil
}

func firstLine(stmt string) string {
	if i := strings.IndexByte(stmt, '\n'); i >= 0 {
		return stmt[:i]
	}
	return stmt
}

// anchor is the sort key of the item a keyset window starts after.
type anchor struct {
	CreatedAt time.Time `db:"created_at"`
	ID        string    `db:"id"`
}

// loadAnchor resolves w.After with query, which must select created_at and id.
func (s *SQLStore) loadAnchor(ctx context.Context, w pagination.Window, query string, args ...any) (*anchor, error) {
	if !w.HasCursor() {
		return nil, nil
	}
	var a anchor
	if err := s.DB.GetContext(ctx, &a, s.q(query), args...); err != nil {
		if isNoRows(err) {
			return nil, pagination.ErrUnknownCursor(w.After)
		}
		return nil, wrapError(err, "failed to resolve page cursor")
	}
	return &a, nil
}

// parseCursor turns a cursor into the uuid it names; a malformed one is a validation error.
func parseCursor(w pagination.Window) (uuid.UUID, error) {
	if !w.HasCursor() {
		return uuid.Nil, nil
	}
	id, err := uuid.Parse(w.After)
	if err != nil {
		return uuid.Nil, pagination.ErrUnknownCursor(w.After)
	}
	return id, nil
}

// likePattern builds a case-insensitive contains pattern, escaping LIKE wildcards.
func likePattern(keyword string) string {
	escaped := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(strings.ToLower(keyword))
	return "%" + escaped + "%"
}
