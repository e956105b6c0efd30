package filesystem

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/Scriptzstarling/meme-Forge/core"
	"github.com/oklog/ulid/v2"
	"github.com/sirupsen/logrus"
)

// fsStore keeps one JSON file per meme under <basePath>/<userID>/<memeID>.
type fsStore struct {
	basePath string
}

// NewStore creates a new filesystem-based store.
func NewStore(basePath string) (*fsStore, error) {
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create base directory: %w", err)
	}
	return &fsStore{basePath: basePath}, nil
}

// userDir resolves a user's directory and rejects user ids that would
// escape basePath or name it directly.
func (s *fsStore) userDir(userID string) (string, error) {
	absBase, err := filepath.Abs(s.basePath)
	if err != nil {
		return "", err
	}
	absUser, err := filepath.Abs(filepath.Join(s.basePath, userID))
	if err != nil {
		return "", err
	}
	if !containedIn(absUser, absBase) {
		return "", fmt.Errorf("invalid user path: access denied")
	}
	return absUser, nil
}

// memePath resolves the file of a meme and rejects ids escaping the user's
// directory.
func (s *fsStore) memePath(userID, id string) (string, error) {
	userPath, err := s.userDir(userID)
	if err != nil {
		return "", err
	}
	absFilePath, err := filepath.Abs(filepath.Join(userPath, id))
	if err != nil {
		return "", err
	}
	if !containedIn(absFilePath, userPath) {
		return "", fmt.Errorf("invalid path: access denied")
	}
	return absFilePath, nil
}

func containedIn(path, dir string) bool {
	return strings.HasPrefix(path, dir+string(filepath.Separator))
}

func (s *fsStore) List(ctx context.Context, userID string) ([]*core.Meme, error) {
	userPath, err := s.userDir(userID)
	if err != nil {
		return nil, err
	}
	log := logrus.WithField("user_id", userID).WithField("path", userPath)

	files, err := os.ReadDir(userPath)
	if err != nil {
		if os.IsNotExist(err) {
			log.Debug("User directory does not exist, returning empty list.")
			return []*core.Meme{}, nil
		}
		log.WithError(err).Error("Failed to read user directory")
		return nil, err
	}

	memes := make([]*core.Meme, 0, len(files))
	for _, file := range files {
		if file.IsDir() {
			continue
		}
		data, err := os.ReadFile(filepath.Join(userPath, file.Name()))
		if err != nil {
			log.WithError(err).Warnf("Failed to read meme file %s, skipping", file.Name())
			continue
		}
		var meme core.Meme
		if err := json.Unmarshal(data, &meme); err != nil {
			log.WithError(err).Warnf("Failed to unmarshal meme file %s, skipping", file.Name())
			continue
		}
		// the list view carries no image bytes
		meme.Image = nil
		meme.UserID = userID
		memes = append(memes, &meme)
	}
	sort.Slice(memes, func(i, j int) bool {
		return memes[i].CreatedAt.After(memes[j].CreatedAt)
	})

	log.Debugf("Listed %d memes", len(memes))
	return memes, nil
}

func (s *fsStore) Get(ctx context.Context, userID, id string) (*core.Meme, error) {
	filePath, err := s.memePath(userID, id)
	if err != nil {
		return nil, err
	}
	log := logrus.WithFields(logrus.Fields{"user_id": userID, "meme_id": id, "path": filePath})

	data, err := os.ReadFile(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			log.Warn("Meme file not found")
			return nil, fmt.Errorf("%w: %s", core.ErrMemeNotFound, id)
		}
		log.WithError(err).Error("Failed to read meme file")
		return nil, err
	}

	var meme core.Meme
	if err := json.Unmarshal(data, &meme); err != nil {
		log.WithError(err).Error("Failed to unmarshal meme data")
		return nil, err
	}
	meme.UserID = userID
	return &meme, nil
}

func (s *fsStore) Save(ctx context.Context, meme *core.Meme) error {
	if meme.UserID == "" {
		return fmt.Errorf("UserID cannot be empty")
	}
	if meme.ID == "" {
		meme.ID = ulid.Make().String()
	}
	if meme.CreatedAt.IsZero() {
		meme.CreatedAt = time.Now()
	}

	filePath, err := s.memePath(meme.UserID, meme.ID)
	if err != nil {
		return err
	}
	log := logrus.WithFields(logrus.Fields{"user_id": meme.UserID, "meme_id": meme.ID, "path": filePath})

	if err := os.MkdirAll(filepath.Dir(filePath), 0755); err != nil {
		log.WithError(err).Error("Failed to create user directory")
		return err
	}

	data, err := json.Marshal(meme)
	if err != nil {
		log.WithError(err).Error("Failed to marshal meme for saving")
		return err
	}
	if err := os.WriteFile(filePath, data, 0644); err != nil {
		log.WithError(err).Error("Failed to write meme file")
		return err
	}

	log.Info("Meme saved successfully")
	return nil
}

func (s *fsStore) Delete(ctx context.Context, userID, id string) error {
	filePath, err := s.memePath(userID, id)
	if err != nil {
		return err
	}
	log := logrus.WithFields(logrus.Fields{"user_id": userID, "meme_id": id, "path": filePath})

	if err := os.Remove(filePath); err != nil {
		if os.IsNotExist(err) {
			log.Warn("Meme file not found for deletion")
			return fmt.Errorf("%w: %s", core.ErrMemeNotFound, id)
		}
		log.WithError(err).Error("Failed to delete meme file")
		return err
	}

	log.Info("Meme deleted successfully")
	return nil
}
