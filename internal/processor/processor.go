// Package processor holds the contracts shared by the image and video
// transforms. Transforms read an input file from disk and write their
// output next to it.
package processor

import (
	"errors"
	"os"
)

var (
	ErrUnsupportedType  = errors.New("processor: unsupported file type")
	ErrProcessingFailed = errors.New("processor: processing failed")
	ErrInvalidConfig    = errors.New("processor: invalid configuration")
	ErrCorruptedFile    = errors.New("processor: file appears corrupted")
	ErrCanceled         = errors.New("processor: canceled")
)

// CancelCheck reports whether the job has been asked to stop. It must be
// cheap and safe to call from any goroutine.
type CancelCheck func() bool

// ProgressFunc receives a percentage in [0,100] and a stage label.
type ProgressFunc func(percentage int, stage string)

// Canceled returns true when check is set and reports cancellation.
func (c CancelCheck) Canceled() bool {
	return c != nil && c()
}

func (f ProgressFunc) Report(percentage int, stage string) {
	if f != nil {
		f(percentage, stage)
	}
}

// Result describes a finished transform.
type Result struct {
	Path        string
	Filename    string
	ContentType string
	Size        int64
	Width       int
	Height      int
	Duration    float64
}

// RemoveQuietly deletes path, ignoring a missing file. Other errors are
// returned so callers may log them.
func RemoveQuietly(path string) error {
	if path == "" {
		return nil
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}
