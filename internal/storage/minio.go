package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/jonymoraes/mediaserver/internal/logger"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

var _ Storage = (*MinIOStorage)(nil)

type MinIOStorage struct {
	client *minio.Client
	bucket string
	config *Config
}

func NewMinIOStorage(cfg *Config) (*MinIOStorage, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}

	return &MinIOStorage{
		client: client,
		bucket: cfg.Bucket,
		config: cfg,
	}, nil
}

func (s *MinIOStorage) EnsureBucket(ctx context.Context) error {
	log := logger.FromContext(ctx)

	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("failed to check bucket existence: %w", err)
	}

	if !exists {
		log.Info("creating bucket", "bucket", s.bucket, "region", s.config.Region)
		err = s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{
			Region: s.config.Region,
		})
		if err != nil {
			return fmt.Errorf("failed to create bucket: %w", err)
		}
	}

	return nil
}

// Publish uploads the local file and removes it once the object is stored.
func (s *MinIOStorage) Publish(ctx context.Context, key, localPath, contentType string) error {
	if err := validateKey(key); err != nil {
		return err
	}

	log := logger.FromContext(ctx)
	start := time.Now()

	info, err := s.client.FPutObject(ctx, s.bucket, key, localPath, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		log.Error("storage upload failed", "key", key, "error", err)
		return fmt.Errorf("upload to %s: %w", key, err)
	}

	if err := os.Remove(localPath); err != nil && !os.IsNotExist(err) {
		log.Warn("failed to remove local file after upload", "path", localPath, "error", err)
	}

	log.Debug("storage upload completed", "key", key, "size", info.Size, "content_type", contentType, "duration_ms", time.Since(start).Milliseconds())
	return nil
}

func (s *MinIOStorage) Delete(ctx context.Context, key string) error {
	if err := validateKey(key); err != nil {
		return err
	}

	err := s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{})
	if err != nil && !isNotFoundError(err) {
		logger.FromContext(ctx).Error("storage delete failed", "key", key, "error", err)
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}

func (s *MinIOStorage) Exists(ctx context.Context, key string) (bool, error) {
	_, err := s.client.StatObject(ctx, s.bucket, key, minio.StatObjectOptions{})
	if err != nil {
		if isNotFoundError(err) {
			return false, nil
		}
		return false, fmt.Errorf("check exists %s: %w", key, err)
	}
	return true, nil
}

func (s *MinIOStorage) listFolder(ctx context.Context, folder string) <-chan minio.ObjectInfo {
	return s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{
		Prefix:    folder + "/",
		Recursive: true,
	})
}

// DeleteFolder removes every object under the folder prefix in bulk.
func (s *MinIOStorage) DeleteFolder(ctx context.Context, folder string) error {
	if err := validateFolder(folder); err != nil {
		return err
	}

	objects := make(chan minio.ObjectInfo)
	var listErr error
	go func() {
		defer close(objects)
		for obj := range s.listFolder(ctx, folder) {
			if obj.Err != nil {
				listErr = obj.Err
				return
			}
			objects <- obj
		}
	}()

	var errs []error
	for rerr := range s.client.RemoveObjects(ctx, s.bucket, objects, minio.RemoveObjectsOptions{}) {
		if !isNotFoundError(rerr.Err) {
			errs = append(errs, fmt.Errorf("%s: %w", rerr.ObjectName, rerr.Err))
		}
	}
	if listErr != nil {
		errs = append(errs, fmt.Errorf("list %s: %w", folder, listErr))
	}
	if err := errors.Join(errs...); err != nil {
		logger.FromContext(ctx).Error("storage folder delete failed", "folder", folder, "error", err)
		return fmt.Errorf("delete folder %s: %w", folder, err)
	}
	return nil
}

// MoveFolder copies each object to the new prefix and removes the source.
// Objects already copied stay in place if a later copy fails, so a retry
// picks up where it stopped.
func (s *MinIOStorage) MoveFolder(ctx context.Context, from, to string) error {
	if err := validateFolder(from); err != nil {
		return err
	}
	if err := validateFolder(to); err != nil {
		return err
	}

	log := logger.FromContext(ctx)
	moved := 0
	for obj := range s.listFolder(ctx, from) {
		if obj.Err != nil {
			return fmt.Errorf("list %s: %w", from, obj.Err)
		}
		dst := to + strings.TrimPrefix(obj.Key, from)
		_, err := s.client.CopyObject(ctx,
			minio.CopyDestOptions{Bucket: s.bucket, Object: dst},
			minio.CopySrcOptions{Bucket: s.bucket, Object: obj.Key},
		)
		if err != nil {
			return fmt.Errorf("copy %s to %s: %w", obj.Key, dst, err)
		}
		if err := s.client.RemoveObject(ctx, s.bucket, obj.Key, minio.RemoveObjectOptions{}); err != nil && !isNotFoundError(err) {
			return fmt.Errorf("remove %s: %w", obj.Key, err)
		}
		moved++
	}
	log.Info("storage folder moved", "from", from, "to", to, "objects", moved)
	return nil
}

func (s *MinIOStorage) HealthCheck(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("storage health check failed: %w", err)
	}
	if !exists {
		return fmt.Errorf("bucket %s does not exist", s.bucket)
	}
	return nil
}

func isNotFoundError(err error) bool {
	if err == nil {
		return false
	}
	errResp := minio.ToErrorResponse(err)
	return errResp.Code == "NoSuchKey"
}
