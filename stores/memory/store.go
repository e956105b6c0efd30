package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/Scriptzstarling/meme-Forge/core"
	"github.com/oklog/ulid/v2"
	"github.com/sirupsen/logrus"
)

// memStore implements MemeStore in memory. The outer map is keyed by userID,
// the inner one by meme ID.
type memStore struct {
	mu    sync.RWMutex
	memes map[string]map[string]*core.Meme
}

// NewStore creates a new in-memory store.
func NewStore() *memStore {
	return &memStore{memes: make(map[string]map[string]*core.Meme)}
}

// List returns metadata for all memes owned by a user, newest first.
func (s *memStore) List(ctx context.Context, userID string) ([]*core.Meme, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	userMemes := s.memes[userID]
	memes := make([]*core.Meme, 0, len(userMemes))
	for _, m := range userMemes {
		// copy without the PNG bytes for the list view
		listMeme := *m
		listMeme.Image = nil
		memes = append(memes, &listMeme)
	}
	sortNewestFirst(memes)

	logrus.WithField("user_id", userID).Debugf("Listed %d memes", len(memes))
	return memes, nil
}

// Get returns a single meme by its ID, ensuring it belongs to the user.
func (s *memStore) Get(ctx context.Context, userID, id string) (*core.Meme, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m, ok := s.memes[userID][id]
	if !ok {
		logrus.WithFields(logrus.Fields{"user_id": userID, "meme_id": id}).Warn("Meme not found for user")
		return nil, fmt.Errorf("%w: %s", core.ErrMemeNotFound, id)
	}
	out := *m
	return &out, nil
}

// Save stores a meme, assigning a ULID when the ID is empty.
func (s *memStore) Save(ctx context.Context, meme *core.Meme) error {
	if meme.UserID == "" {
		return fmt.Errorf("UserID cannot be empty")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if meme.ID == "" {
		meme.ID = ulid.Make().String()
	}
	if meme.CreatedAt.IsZero() {
		meme.CreatedAt = time.Now()
	}

	userMemes, ok := s.memes[meme.UserID]
	if !ok {
		userMemes = make(map[string]*core.Meme)
		s.memes[meme.UserID] = userMemes
	}
	stored := *meme
	userMemes[meme.ID] = &stored

	logrus.WithFields(logrus.Fields{"user_id": meme.UserID, "meme_id": meme.ID}).Info("Meme saved successfully")
	return nil
}

// Delete removes a meme, ensuring it belongs to the user.
func (s *memStore) Delete(ctx context.Context, userID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	log := logrus.WithFields(logrus.Fields{"user_id": userID, "meme_id": id})
	if _, ok := s.memes[userID][id]; !ok {
		log.Warn("Meme not found for deletion")
		return fmt.Errorf("%w: %s", core.ErrMemeNotFound, id)
	}
	delete(s.memes[userID], id)
	log.Info("Meme deleted successfully")
	return nil
}

func sortNewestFirst(memes []*core.Meme) {
	sort.Slice(memes, func(i, j int) bool {
		if memes[i].CreatedAt.Equal(memes[j].CreatedAt) {
			return memes[i].ID > memes[j].ID
		}
		return memes[i].CreatedAt.After(memes[j].CreatedAt)
	})
}
