// Package video transcodes uploaded videos with ffmpeg.
package video

import (
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/jonymoraes/mediaserver/internal/config"
	"github.com/jonymoraes/mediaserver/internal/naming"
)

var (
	ErrTranscodeFailed = errors.New("video: transcoding failed")
	ErrFFmpegNotFound  = errors.New("video: ffmpeg not found in PATH")
	ErrFFprobeNotFound = errors.New("video: ffprobe not found in PATH")
	ErrInvalidVideo    = errors.New("video: invalid or corrupted video file")
)

// Progress stages reported while processing.
const (
	StageStarting    = "starting"
	StageValidating  = "validating"
	StagePreparing   = "preparing"
	StageTranscoding = "transcoding"
	StageExecuting   = "executing"
	StageFinalizing  = "finalizing"
	StageCompleted   = "completed"
)

// Codec is the ffmpeg encoder pair for an output format. An empty Audio
// drops the audio stream.
type Codec struct {
	Video string
	Audio string
	Mime  string
}

var DefaultFormats = map[string]Codec{
	"mp4":  {Video: "libx264", Audio: "aac", Mime: "video/mp4"},
	"webm": {Video: "libvpx-vp9", Audio: "libopus", Mime: "video/webm"},
	"gif":  {Video: "gif", Mime: "image/gif"},
}

// SupportedTypes lists the accepted input MIME types.
var SupportedTypes = []string{
	"video/mp4",
	"video/webm",
	"video/quicktime",
	"video/x-matroska",
}

// SupportedExtensions lists the accepted input file extensions.
var SupportedExtensions = []string{".mp4", ".webm", ".mov", ".mkv"}

type Config struct {
	FFmpegPath  string
	FFprobePath string
	// Bitrate is the target video bitrate passed to -b:v.
	Bitrate string
	// PollInterval is how often a running transcode checks for
	// cancellation.
	PollInterval time.Duration
	// KillGrace is how long ffmpeg may take to exit after SIGINT before it
	// is killed.
	KillGrace time.Duration
}

func DefaultConfig() Config {
	return Config{
		FFmpegPath:   "ffmpeg",
		FFprobePath:  "ffprobe",
		Bitrate:      "1M",
		PollInterval: 500 * time.Millisecond,
		KillGrace:    5 * time.Second,
	}
}

type Processor struct {
	cfg     Config
	formats FormatTable
}

// New verifies that ffmpeg and ffprobe are runnable and merges extra
// formats into the default table.
func New(cfg Config, extra map[string]config.VideoProfile) (*Processor, error) {
	def := DefaultConfig()
	if cfg.FFmpegPath == "" {
		cfg.FFmpegPath = def.FFmpegPath
	}
	if cfg.FFprobePath == "" {
		cfg.FFprobePath = def.FFprobePath
	}
	if cfg.Bitrate == "" {
		cfg.Bitrate = def.Bitrate
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = def.PollInterval
	}
	if cfg.KillGrace <= 0 {
		cfg.KillGrace = def.KillGrace
	}

	ffmpeg, err := exec.LookPath(cfg.FFmpegPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFFmpegNotFound, err)
	}
	ffprobe, err := exec.LookPath(cfg.FFprobePath)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFFprobeNotFound, err)
	}
	cfg.FFmpegPath, cfg.FFprobePath = ffmpeg, ffprobe

	return &Processor{cfg: cfg, formats: NewFormatTable(extra)}, nil
}

func (p *Processor) Lookup(format string) (Codec, bool) {
	return p.formats.Lookup(format)
}

// Formats returns the known output formats in sorted order.
func (p *Processor) Formats() []string {
	return p.formats.Names()
}

// FormatTable maps lower-case format names to codecs.
type FormatTable map[string]Codec

// NewFormatTable merges extra formats over DefaultFormats.
func NewFormatTable(extra map[string]config.VideoProfile) FormatTable {
	t := make(FormatTable, len(DefaultFormats)+len(extra))
	for name, c := range DefaultFormats {
		t[name] = c
	}
	for name, vp := range extra {
		t[strings.ToLower(name)] = Codec{Video: vp.Video, Audio: vp.Audio, Mime: vp.Mime}
	}
	return t
}

func (t FormatTable) Lookup(format string) (Codec, bool) {
	c, ok := t[strings.ToLower(format)]
	return c, ok
}

func (t FormatTable) Names() []string {
	names := make([]string, 0, len(t))
	for name := range t {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// OutputPath picks a collision-free output path in the input's directory,
// named after the sanitized upload name with the target extension.
func OutputPath(inputPath, filename, format string) string {
	dir := filepath.Dir(inputPath)
	if filename == "" {
		filename = filepath.Base(inputPath)
	}
	candidate := naming.SanitizeFilename(naming.ReplaceExt(filepath.Base(filename), "."+strings.ToLower(format)))
	return filepath.Join(dir, naming.AvailableFilename(dir, candidate))
}

// BuildArgs returns the ffmpeg arguments for one transcode.
func BuildArgs(input, output string, c Codec, bitrate string) []string {
	args := []string{"-y", "-i", input, "-c:v", c.Video, "-b:v", bitrate}
	if c.Audio == "" {
		args = append(args, "-an")
	} else {
		args = append(args, "-c:a", c.Audio)
	}
	return append(args, output)
}
