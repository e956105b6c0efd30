package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Scriptzstarling/meme-Forge/core"
	"github.com/oklog/ulid/v2"
	"github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"
)

type sqliteStore struct {
	db *sql.DB
}

// NewStore opens (and migrates) a SQLite-backed meme store.
func NewStore(dataSourceName string) (*sqliteStore, error) {
	db, err := sql.Open("sqlite", dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	// a single connection keeps ":memory:" databases shared
	db.SetMaxOpenConns(1)

	memeTableStmt := `
	CREATE TABLE IF NOT EXISTS memes (
		id TEXT NOT NULL,
		user_id TEXT NOT NULL,
		name TEXT,
		width INTEGER,
		height INTEGER,
		background TEXT,
		layers BLOB,
		image BLOB,
		created_at DATETIME,
		PRIMARY KEY (user_id, id)
	);`
	if _, err = db.Exec(memeTableStmt); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create memes table: %w", err)
	}

	return &sqliteStore{db}, nil
}

func (s *sqliteStore) Close() error {
	return s.db.Close()
}

func (s *sqliteStore) List(ctx context.Context, userID string) ([]*core.Meme, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, name, width, height, background, layers, created_at FROM memes WHERE user_id = ? ORDER BY created_at DESC, id DESC",
		userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	memes := []*core.Meme{}
	for rows.Next() {
		meme := core.Meme{UserID: userID}
		var layers []byte
		if err := rows.Scan(&meme.ID, &meme.Name, &meme.Width, &meme.Height, &meme.Background, &layers, &meme.CreatedAt); err != nil {
			return nil, err
		}
		meme.Layers = layers
		memes = append(memes, &meme)
	}
	return memes, rows.Err()
}

func (s *sqliteStore) Get(ctx context.Context, userID, id string) (*core.Meme, error) {
	meme := core.Meme{ID: id, UserID: userID}
	var layers []byte
	err := s.db.QueryRowContext(ctx,
		"SELECT name, width, height, background, layers, image, created_at FROM memes WHERE user_id = ? AND id = ?",
		userID, id).Scan(&meme.Name, &meme.Width, &meme.Height, &meme.Background, &layers, &meme.Image, &meme.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", core.ErrMemeNotFound, id)
		}
		return nil, err
	}
	meme.Layers = layers
	return &meme, nil
}

func (s *sqliteStore) Save(ctx context.Context, meme *core.Meme) error {
	if meme.UserID == "" {
		return fmt.Errorf("UserID cannot be empty")
	}
	if meme.ID == "" {
		meme.ID = ulid.Make().String()
	}
	if meme.CreatedAt.IsZero() {
		meme.CreatedAt = time.Now()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO memes (id, user_id, name, width, height, background, layers, image, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (user_id, id) DO UPDATE SET
			name = excluded.name, width = excluded.width, height = excluded.height,
			background = excluded.background, layers = excluded.layers, image = excluded.image`,
		meme.ID, meme.UserID, meme.Name, meme.Width, meme.Height, meme.Background, []byte(meme.Layers), meme.Image, meme.CreatedAt)
	if err != nil {
		logrus.WithFields(logrus.Fields{"user_id": meme.UserID, "meme_id": meme.ID, "error": err}).Error("Failed to save meme")
		return err
	}
	return nil
}

func (s *sqliteStore) Delete(ctx context.Context, userID, id string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM memes WHERE user_id = ? AND id = ?", userID, id)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %s", core.ErrMemeNotFound, id)
	}
	return nil
}
