package output

import (
	"fmt"
	"io"
	"time"

	"github.com/schollz/progressbar/v3"
)

// JobProgress draws a 0-100 bar fed by job progress events.
type JobProgress struct {
	bar     *progressbar.ProgressBar
	out     io.Writer
	started time.Time
}

// NewJobProgress returns a bar writing to out. A quiet bar accepts updates
// and draws nothing.
func NewJobProgress(out io.Writer, description string, quiet bool) *JobProgress {
	p := &JobProgress{out: out, started: time.Now()}
	if quiet {
		return p
	}

	p.bar = progressbar.NewOptions(100,
		progressbar.OptionSetDescription(description),
		progressbar.OptionSetWriter(out),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetWidth(30),
		progressbar.OptionThrottle(65*time.Millisecond),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionOnCompletion(func() {
			_, _ = fmt.Fprint(out, "\n")
		}),
		progressbar.OptionSetRenderBlankState(true),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "[green]=[reset]",
			SaucerHead:    "[green]>[reset]",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
	)
	return p
}

// Update moves the bar to percentage and shows stage next to it. Progress
// never moves backwards.
func (p *JobProgress) Update(percentage int, stage string) {
	if p.bar == nil {
		return
	}
	if stage != "" {
		p.bar.Describe(stage)
	}
	if percentage > int(p.bar.State().CurrentNum) {
		_ = p.bar.Set(min(percentage, 100))
	}
}

func (p *JobProgress) Finish() {
	if p.bar != nil {
		_ = p.bar.Finish()
	}
}

// Abandon stops drawing without filling the bar.
func (p *JobProgress) Abandon() {
	if p.bar != nil {
		_ = p.bar.Exit()
		_, _ = fmt.Fprint(p.out, "\n")
	}
}

func (p *JobProgress) Duration() time.Duration {
	return time.Since(p.started)
}
