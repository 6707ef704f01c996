package cli

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/jonymoraes/mediaserver/internal/apperror"
	"github.com/jonymoraes/mediaserver/internal/models"
	"github.com/jonymoraes/mediaserver/internal/naming"
)

// incomingDir holds uploads waiting for a worker, outside the published
// account folders.
const incomingDir = ".incoming"

func parseKind(s string) (models.MediaKind, error) {
	k := models.MediaKind(s)
	if !k.Valid() {
		return "", apperror.Invalid(fmt.Sprintf("unknown media kind %q (want image or video)", s))
	}
	return k, nil
}

// stageUpload copies src into the account's incoming folder under a
// sanitized, collision-free name and returns the staged path.
func stageUpload(root, folder, src string) (path string, size int64, err error) {
	in, err := os.Open(src)
	if err != nil {
		return "", 0, fmt.Errorf("open upload: %w", err)
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return "", 0, fmt.Errorf("stat upload: %w", err)
	}
	if info.IsDir() {
		return "", 0, apperror.Invalid(src + " is a directory")
	}

	dir := filepath.Join(root, incomingDir, folder)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", 0, fmt.Errorf("create incoming folder: %w", err)
	}
	path = filepath.Join(dir, naming.AvailableFilename(dir, naming.SanitizeFilename(filepath.Base(src))))

	out, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return "", 0, fmt.Errorf("create staged upload: %w", err)
	}
	size, err = io.Copy(out, in)
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(path)
		return "", 0, fmt.Errorf("copy upload: %w", err)
	}
	return path, size, nil
}

func formatSize(bytes int64) string {
	const (
		KB = 1024
		MB = KB * 1024
		GB = MB * 1024
	)

	switch {
	case bytes >= GB:
		return fmt.Sprintf("%.1f GB", float64(bytes)/GB)
	case bytes >= MB:
		return fmt.Sprintf("%.1f MB", float64(bytes)/MB)
	case bytes >= KB:
		return fmt.Sprintf("%.1f KB", float64(bytes)/KB)
	default:
		return fmt.Sprintf("%d B", bytes)
	}
}

func formatCount(n int64) string {
	return strconv.FormatInt(n, 10)
}
