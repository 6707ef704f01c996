package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/jonymoraes/mediaserver/internal/logger"
)

var _ Storage = (*LocalStorage)(nil)

// LocalStorage keeps media on the local filesystem under root, which is the
// directory served as static content.
type LocalStorage struct {
	root string
}

func NewLocalStorage(root string) (*LocalStorage, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve storage root: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("create storage root: %w", err)
	}
	return &LocalStorage{root: abs}, nil
}

// Path returns the absolute filesystem path of key.
func (s *LocalStorage) Path(key string) string {
	return filepath.Join(s.root, filepath.FromSlash(key))
}

func (s *LocalStorage) Root() string {
	return s.root
}

func (s *LocalStorage) Publish(ctx context.Context, key, localPath, contentType string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := validateKey(key); err != nil {
		return err
	}

	dst := s.Path(key)
	src, err := filepath.Abs(localPath)
	if err != nil {
		return fmt.Errorf("resolve %s: %w", localPath, err)
	}
	if src == dst {
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("create directory for %s: %w", key, err)
	}

	start := time.Now()
	if err := os.Rename(src, dst); err != nil {
		// Rename fails across devices; fall back to copy and remove.
		if err := copyFile(src, dst); err != nil {
			return fmt.Errorf("publish %s: %w", key, err)
		}
		_ = os.Remove(src)
	}

	logger.FromContext(ctx).Debug("storage publish completed", "key", key, "content_type", contentType, "duration_ms", time.Since(start).Milliseconds())
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer func() { _ = in.Close() }()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}

func (s *LocalStorage) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := validateKey(key); err != nil {
		return err
	}

	err := os.Remove(s.Path(key))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		if errors.Is(err, fs.ErrPermission) {
			return fmt.Errorf("delete %s: %w", key, ErrAccessDenied)
		}
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}

func (s *LocalStorage) Exists(ctx context.Context, key string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if err := validateKey(key); err != nil {
		return false, err
	}

	_, err := os.Stat(s.Path(key))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, fmt.Errorf("check exists %s: %w", key, err)
}

func (s *LocalStorage) DeleteFolder(ctx context.Context, folder string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := validateFolder(folder); err != nil {
		return err
	}
	if err := os.RemoveAll(s.Path(folder)); err != nil {
		return fmt.Errorf("delete folder %s: %w", folder, err)
	}
	return nil
}

// MoveFolder renames the directory. A missing source is not an error; the
// destination must not exist yet.
func (s *LocalStorage) MoveFolder(ctx context.Context, from, to string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := validateFolder(from); err != nil {
		return err
	}
	if err := validateFolder(to); err != nil {
		return err
	}

	if _, err := os.Stat(s.Path(to)); err == nil {
		return fmt.Errorf("move folder %s: destination %s exists", from, to)
	}
	if err := os.Rename(s.Path(from), s.Path(to)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("move folder %s to %s: %w", from, to, err)
	}
	return nil
}

func (s *LocalStorage) HealthCheck(ctx context.Context) error {
	info, err := os.Stat(s.root)
	if err != nil {
		return fmt.Errorf("storage root unavailable: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("storage root %s is not a directory", s.root)
	}
	return nil
}
