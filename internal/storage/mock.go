package storage

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
)

// MemoryStorage is an in-memory implementation of Storage for testing.
// It is safe for concurrent use.
type MemoryStorage struct {
	files map[string]memoryFile
	mu    sync.RWMutex

	// DeleteErrs makes Delete fail for specific keys.
	DeleteErrs map[string]error
	deletes    []string
}

type memoryFile struct {
	data        []byte
	contentType string
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		files:      make(map[string]memoryFile),
		DeleteErrs: make(map[string]error),
	}
}

var _ Storage = (*MemoryStorage)(nil)

// Publish copies the local file into memory. The local file is left in place.
func (s *MemoryStorage) Publish(ctx context.Context, key, localPath, contentType string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := validateKey(key); err != nil {
		return err
	}

	data, err := os.ReadFile(localPath)
	if err != nil {
		return fmt.Errorf("read %s: %w", localPath, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.files[key] = memoryFile{data: data, contentType: contentType}
	return nil
}

// Put stores data at key directly (test helper).
func (s *MemoryStorage) Put(key string, data []byte, contentType string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.files[key] = memoryFile{data: data, contentType: contentType}
}

func (s *MemoryStorage) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.deletes = append(s.deletes, key)
	if err, ok := s.DeleteErrs[key]; ok {
		return err
	}
	delete(s.files, key)
	return nil
}

func (s *MemoryStorage) Exists(ctx context.Context, key string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	_, exists := s.files[key]
	return exists, nil
}

func (s *MemoryStorage) DeleteFolder(ctx context.Context, folder string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := validateFolder(folder); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	prefix := folder + "/"
	for key := range s.files {
		if strings.HasPrefix(key, prefix) {
			delete(s.files, key)
		}
	}
	return nil
}

func (s *MemoryStorage) MoveFolder(ctx context.Context, from, to string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := validateFolder(from); err != nil {
		return err
	}
	if err := validateFolder(to); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	prefix := from + "/"
	for key, file := range s.files {
		if strings.HasPrefix(key, prefix) {
			s.files[to+"/"+strings.TrimPrefix(key, prefix)] = file
			delete(s.files, key)
		}
	}
	return nil
}

func (s *MemoryStorage) HealthCheck(ctx context.Context) error {
	return ctx.Err()
}

// GetData returns the raw data for a key (test helper).
func (s *MemoryStorage) GetData(key string) ([]byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	file, exists := s.files[key]
	if !exists {
		return nil, false
	}
	return file.data, true
}

// GetContentType returns the content type for a key (test helper).
func (s *MemoryStorage) GetContentType(key string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	file, exists := s.files[key]
	if !exists {
		return "", false
	}
	return file.contentType, true
}

// Deletes returns every key Delete was called with (test helper).
func (s *MemoryStorage) Deletes() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.deletes...)
}

// Count returns the number of stored files (test helper).
func (s *MemoryStorage) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.files)
}
