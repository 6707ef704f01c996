package storage

import (
	"context"
	"errors"
	"path"
	"strings"
)

var (
	ErrNotFound     = errors.New("storage: file not found")
	ErrInvalidKey   = errors.New("storage: invalid key")
	ErrAccessDenied = errors.New("storage: access denied")
)

// Storage holds processed media under keys of the form "<folder>/<filename>".
type Storage interface {
	// Publish makes the file at localPath available under key. The local
	// file may be moved or removed.
	Publish(ctx context.Context, key, localPath, contentType string) error
	// Delete removes key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
	// DeleteFolder removes every key under folder. An empty or absent
	// folder is not an error.
	DeleteFolder(ctx context.Context, folder string) error
	// MoveFolder moves every key under from to the same name under to.
	MoveFolder(ctx context.Context, from, to string) error
	HealthCheck(ctx context.Context) error
}

type Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
	Region    string
}

// Key joins an account folder and a filename into a storage key.
func Key(folder, filename string) string {
	return path.Join(folder, filename)
}

func validateFolder(folder string) error {
	if strings.Contains(folder, "/") {
		return ErrInvalidKey
	}
	return validateKey(folder)
}

func validateKey(key string) error {
	if key == "" || strings.HasPrefix(key, "/") {
		return ErrInvalidKey
	}
	for _, part := range strings.Split(key, "/") {
		if part == ".." {
			return ErrInvalidKey
		}
	}
	return nil
}
