package aws

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path"
	"sort"
	"time"

	"github.com/Scriptzstarling/meme-Forge/core"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/oklog/ulid/v2"
	"github.com/sirupsen/logrus"
)

// objectAPI is the part of the S3 client the store uses.
type objectAPI interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

// s3Store keeps one JSON object per meme under the key <userID>/<memeID>.
type s3Store struct {
	s3Client objectAPI
	bucket   string
}

// NewStore creates a new S3-based store from the default AWS config chain.
func NewStore(ctx context.Context, bucketName string) (*s3Store, error) {
	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("unable to load SDK config: %w", err)
	}
	return newStore(s3.NewFromConfig(cfg), bucketName), nil
}

func newStore(client objectAPI, bucketName string) *s3Store {
	return &s3Store{s3Client: client, bucket: bucketName}
}

func (s *s3Store) getMemeKey(userID, memeID string) (string, error) {
	// the id must be a plain name, not a path
	if path.Base(memeID) != memeID {
		return "", fmt.Errorf("invalid meme id: must not be a path")
	}
	if memeID == "" || memeID == "." || memeID == ".." {
		return "", fmt.Errorf("invalid meme id: must not be empty or a dot directory")
	}
	return path.Join(userID, memeID), nil
}

func (s *s3Store) List(ctx context.Context, userID string) ([]*core.Meme, error) {
	prefix := userID + "/"
	log := logrus.WithField("user_id", userID)

	memes := []*core.Meme{}
	paginator := s3.NewListObjectsV2Paginator(s.s3Client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(prefix),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list memes for user %s: %w", userID, err)
		}
		for _, object := range page.Contents {
			meme, err := s.read(ctx, aws.ToString(object.Key))
			if err != nil {
				log.WithFields(logrus.Fields{"key": aws.ToString(object.Key), "error": err}).Warn("Skipping unreadable meme")
				continue
			}
			meme.Image = nil
			meme.UserID = userID
			memes = append(memes, meme)
		}
	}
	sort.Slice(memes, func(i, j int) bool {
		return memes[i].CreatedAt.After(memes[j].CreatedAt)
	})
	return memes, nil
}

func (s *s3Store) read(ctx context.Context, key string) (*core.Meme, error) {
	resp, err := s.s3Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read meme data: %w", err)
	}
	var meme core.Meme
	if err := json.Unmarshal(data, &meme); err != nil {
		return nil, fmt.Errorf("failed to unmarshal meme data: %w", err)
	}
	return &meme, nil
}

func (s *s3Store) Get(ctx context.Context, userID, id string) (*core.Meme, error) {
	key, err := s.getMemeKey(userID, id)
	if err != nil {
		return nil, err
	}
	meme, err := s.read(ctx, key)
	if err != nil {
		var nsk *s3types.NoSuchKey
		if errors.As(err, &nsk) {
			return nil, fmt.Errorf("%w: %s", core.ErrMemeNotFound, id)
		}
		return nil, fmt.Errorf("failed to get meme %s: %w", id, err)
	}
	meme.UserID = userID
	return meme, nil
}

func (s *s3Store) Save(ctx context.Context, meme *core.Meme) error {
	if meme.UserID == "" {
		return fmt.Errorf("UserID cannot be empty")
	}
	if meme.ID == "" {
		meme.ID = ulid.Make().String()
	}
	key, err := s.getMemeKey(meme.UserID, meme.ID)
	if err != nil {
		return err
	}
	if meme.CreatedAt.IsZero() {
		meme.CreatedAt = time.Now()
	}

	data, err := json.Marshal(meme)
	if err != nil {
		return fmt.Errorf("failed to marshal meme: %w", err)
	}
	_, err = s.s3Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("failed to save meme %s: %w", meme.ID, err)
	}
	return nil
}

func (s *s3Store) Delete(ctx context.Context, userID, id string) error {
	key, err := s.getMemeKey(userID, id)
	if err != nil {
		return err
	}
	_, err = s.s3Client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("failed to delete meme %s: %w", id, err)
	}
	return nil
}
