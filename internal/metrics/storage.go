package metrics

import (
	"context"
	"os"
	"time"

	"github.com/jonymoraes/mediaserver/internal/storage"
)

// InstrumentedStorage records operation counts, latency and published bytes
// for any Storage backend.
type InstrumentedStorage struct {
	storage.Storage
}

func NewInstrumentedStorage(s storage.Storage) *InstrumentedStorage {
	return &InstrumentedStorage{Storage: s}
}

func observe(operation string, start time.Time, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	StorageOperationsTotal.WithLabelValues(operation, status).Inc()
	StorageOperationDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}

func (s *InstrumentedStorage) Publish(ctx context.Context, key, localPath, contentType string) error {
	var size int64
	if info, err := os.Stat(localPath); err == nil {
		size = info.Size()
	}

	start := time.Now()
	err := s.Storage.Publish(ctx, key, localPath, contentType)
	observe("publish", start, err)
	if err == nil {
		StorageBytesTotal.WithLabelValues("publish").Add(float64(size))
	}
	return err
}

func (s *InstrumentedStorage) Delete(ctx context.Context, key string) error {
	start := time.Now()
	err := s.Storage.Delete(ctx, key)
	observe("delete", start, err)
	return err
}

func (s *InstrumentedStorage) Exists(ctx context.Context, key string) (bool, error) {
	start := time.Now()
	exists, err := s.Storage.Exists(ctx, key)
	observe("exists", start, err)
	return exists, err
}

func (s *InstrumentedStorage) DeleteFolder(ctx context.Context, folder string) error {
	start := time.Now()
	err := s.Storage.DeleteFolder(ctx, folder)
	observe("delete_folder", start, err)
	return err
}

func (s *InstrumentedStorage) MoveFolder(ctx context.Context, from, to string) error {
	start := time.Now()
	err := s.Storage.MoveFolder(ctx, from, to)
	observe("move_folder", start, err)
	return err
}
