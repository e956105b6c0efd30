package stores

import (
	"context"
	"fmt"

	"github.com/Scriptzstarling/meme-Forge/config"
	"github.com/Scriptzstarling/meme-Forge/core"
	"github.com/Scriptzstarling/meme-Forge/stores/aws"
	"github.com/Scriptzstarling/meme-Forge/stores/filesystem"
	"github.com/Scriptzstarling/meme-Forge/stores/memory"
	"github.com/Scriptzstarling/meme-Forge/stores/sqlite"
	"github.com/sirupsen/logrus"
)

// GetStore builds the meme store selected by cfg.Type.
func GetStore(ctx context.Context, cfg config.Storage) (core.MemeStore, error) {
	var (
		store core.MemeStore
		err   error
	)
	storageField := logrus.Fields{
		"storageType": cfg.Type,
	}

	switch cfg.Type {
	case "filesystem":
		storageField["basePath"] = cfg.LocalPath
		store, err = filesystem.NewStore(cfg.LocalPath)
	case "sqlite":
		storageField["dataSourceName"] = cfg.DataSourceName
		store, err = sqlite.NewStore(cfg.DataSourceName)
	case "s3":
		if cfg.S3Bucket == "" {
			return nil, fmt.Errorf("S3_BUCKET_NAME must be set for s3 storage type")
		}
		storageField["bucketName"] = cfg.S3Bucket
		store, err = aws.NewStore(ctx, cfg.S3Bucket)
	default:
		store = memory.NewStore()
		storageField["storageType"] = "in-memory"
	}
	if err != nil {
		return nil, err
	}
	logrus.WithFields(storageField).Info("Use storage")
	return store, nil
}
