package video

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/jonymoraes/mediaserver/internal/processor"
)

// stderrTail bounds how much ffmpeg output is kept for error messages.
const stderrTail = 20

var timePattern = regexp.MustCompile(`time=(\d+):(\d+):(\d+\.\d+)`)

// Metadata is the subset of ffprobe output the pipeline needs.
type Metadata struct {
	Duration float64
	Width    int
	Height   int
	HasAudio bool
}

type ffprobeOutput struct {
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
	Streams []struct {
		CodecType string `json:"codec_type"`
		Width     int    `json:"width"`
		Height    int    `json:"height"`
	} `json:"streams"`
}

// Probe reads the container duration and first video stream size.
func (p *Processor) Probe(ctx context.Context, path string) (*Metadata, error) {
	args := []string{
		"-v", "error",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		path,
	}

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, p.cfg.FFprobePath, args...)
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("%w: ffprobe: %v: %s", ErrInvalidVideo, err, strings.TrimSpace(stderr.String()))
	}
	return parseProbe(out)
}

func parseProbe(out []byte) (*Metadata, error) {
	var probe ffprobeOutput
	if err := json.Unmarshal(out, &probe); err != nil {
		return nil, fmt.Errorf("%w: parse ffprobe output: %v", ErrInvalidVideo, err)
	}

	d, err := strconv.ParseFloat(strings.TrimSpace(probe.Format.Duration), 64)
	if err != nil || math.IsNaN(d) || d <= 0 {
		return nil, fmt.Errorf("%w: could not read duration %q", ErrInvalidVideo, probe.Format.Duration)
	}

	m := &Metadata{Duration: d}
	for _, s := range probe.Streams {
		switch s.CodecType {
		case "video":
			if m.Width == 0 {
				m.Width, m.Height = s.Width, s.Height
			}
		case "audio":
			m.HasAudio = true
		}
	}
	return m, nil
}

// ParseTime extracts the "time=HH:MM:SS.ss" position from an ffmpeg
// status line, in seconds.
func ParseTime(line string) (float64, bool) {
	m := timePattern.FindStringSubmatch(line)
	if m == nil {
		return 0, false
	}
	hh, _ := strconv.Atoi(m[1])
	mm, _ := strconv.Atoi(m[2])
	ss, err := strconv.ParseFloat(m[3], 64)
	if err != nil {
		return 0, false
	}
	return float64(hh*3600+mm*60) + ss, true
}

// Percentage maps the transcode position into the 15..95 progress band.
func Percentage(current, duration float64) int {
	if duration <= 0 {
		return 15
	}
	return min(95, int(math.Floor(current/duration*65))+15)
}

// scanStatusLines splits on \n and on the \r ffmpeg uses to redraw its
// status line.
func scanStatusLines(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	if i := bytes.IndexAny(data, "\r\n"); i >= 0 {
		return i + 1, data[:i], nil
	}
	if atEOF {
		return len(data), data, nil
	}
	return 0, nil, nil
}

// Transcode runs ffmpeg from input to output, reporting progress parsed
// from stderr. When canceled reports true or ctx ends, ffmpeg receives
// SIGINT and is killed if it has not exited after KillGrace; the partial
// output is removed and processor.ErrCanceled returned.
func (p *Processor) Transcode(ctx context.Context, input, output string, c Codec, duration float64, progress processor.ProgressFunc, canceled processor.CancelCheck) error {
	if canceled.Canceled() || ctx.Err() != nil {
		return processor.ErrCanceled
	}
	if err := os.MkdirAll(filepath.Dir(output), 0o755); err != nil {
		return fmt.Errorf("%w: create output dir: %v", ErrTranscodeFailed, err)
	}

	cmd := exec.Command(p.cfg.FFmpegPath, BuildArgs(input, output, c, p.cfg.Bitrate)...)
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrTranscodeFailed, err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("%w: start ffmpeg: %v", ErrTranscodeFailed, err)
	}

	tail := &lineTail{max: stderrTail}
	done := make(chan error, 1)
	go func() {
		readStatus(stderr, duration, progress, tail)
		done <- cmd.Wait()
	}()

	var (
		interrupted bool
		killTimer   *time.Timer
	)
	interrupt := func() {
		if interrupted {
			return
		}
		interrupted = true
		_ = cmd.Process.Signal(os.Interrupt)
		killTimer = time.AfterFunc(p.cfg.KillGrace, func() { _ = cmd.Process.Kill() })
	}

	ticker := time.NewTicker(p.cfg.PollInterval)
	defer ticker.Stop()
	ctxDone := ctx.Done()

	for {
		select {
		case err := <-done:
			if killTimer != nil {
				killTimer.Stop()
			}
			if interrupted || canceled.Canceled() {
				_ = processor.RemoveQuietly(output)
				return processor.ErrCanceled
			}
			if err != nil {
				_ = processor.RemoveQuietly(output)
				return fmt.Errorf("%w: %v: %s", ErrTranscodeFailed, err, tail.String())
			}
			return nil
		case <-ctxDone:
			ctxDone = nil
			interrupt()
		case <-ticker.C:
			if canceled.Canceled() {
				interrupt()
			}
		}
	}
}

// readStatus consumes ffmpeg stderr, reporting each progress change once.
func readStatus(r io.Reader, duration float64, progress processor.ProgressFunc, tail *lineTail) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	sc.Split(scanStatusLines)

	last := -1
	for sc.Scan() {
		line := sc.Text()
		if line == "" {
			continue
		}
		tail.add(line)
		if cur, ok := ParseTime(line); ok {
			if pct := Percentage(cur, duration); pct != last {
				last = pct
				progress.Report(pct, StageTranscoding)
			}
		}
	}
	// drain so ffmpeg never blocks on a full pipe
	_, _ = io.Copy(io.Discard, r)
}

type lineTail struct {
	mu    sync.Mutex
	max   int
	lines []string
}

func (t *lineTail) add(line string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.lines = append(t.lines, line)
	if len(t.lines) > t.max {
		t.lines = t.lines[len(t.lines)-t.max:]
	}
}

func (t *lineTail) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return strings.Join(t.lines, "\n")
}

// Process transcodes the upload at inputPath into format. It reports 15
// after probing, 15..95 while transcoding and 82 once the original input
// has been removed. On failure or cancellation the partial output is
// removed and the input is left for the caller to clean up.
func (p *Processor) Process(ctx context.Context, inputPath, filename, format string, progress processor.ProgressFunc, canceled processor.CancelCheck) (*processor.Result, error) {
	codec, ok := p.Lookup(format)
	if !ok {
		return nil, fmt.Errorf("%w: unknown video format %q", processor.ErrInvalidConfig, format)
	}

	meta, err := p.Probe(ctx, inputPath)
	if err != nil {
		return nil, err
	}
	progress.Report(15, StagePreparing)

	output := OutputPath(inputPath, filename, format)
	if err := p.Transcode(ctx, inputPath, output, codec, meta.Duration, progress, canceled); err != nil {
		return nil, err
	}

	if output != inputPath {
		if err := processor.RemoveQuietly(inputPath); err != nil {
			return nil, fmt.Errorf("%w: remove original: %v", ErrTranscodeFailed, err)
		}
	}
	progress.Report(82, StageExecuting)

	info, err := os.Stat(output)
	if err != nil {
		return nil, fmt.Errorf("%w: stat output: %v", ErrTranscodeFailed, err)
	}

	return &processor.Result{
		Path:        output,
		Filename:    filepath.Base(output),
		ContentType: codec.Mime,
		Size:        info.Size(),
		Width:       meta.Width,
		Height:      meta.Height,
		Duration:    meta.Duration,
	}, nil
}
