// Package output renders mediactl results for humans or, with --json, for
// scripts.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
)

type Printer struct {
	out     io.Writer
	errOut  io.Writer
	json    bool
	quiet   bool
	noColor bool
}

type Option func(*Printer)

func WithJSON(json bool) Option {
	return func(p *Printer) { p.json = json }
}

func WithQuiet(quiet bool) Option {
	return func(p *Printer) { p.quiet = quiet }
}

func WithNoColor(noColor bool) Option {
	return func(p *Printer) { p.noColor = noColor }
}

func WithOutput(out io.Writer) Option {
	return func(p *Printer) { p.out = out }
}

func WithErrOutput(errOut io.Writer) Option {
	return func(p *Printer) { p.errOut = errOut }
}

func New(opts ...Option) *Printer {
	p := &Printer{out: os.Stdout, errOut: os.Stderr}
	for _, opt := range opts {
		opt(p)
	}
	if p.noColor {
		color.NoColor = true
	}
	return p
}

var (
	successIcon = color.GreenString("✓")
	errorIcon   = color.RedString("✗")
	warnIcon    = color.YellowString("!")
	infoIcon    = color.CyanString("→")
)

func (p *Printer) IsJSON() bool { return p.json }

// Quiet reports whether human output is suppressed.
func (p *Printer) Quiet() bool { return p.quiet || p.json }

func (p *Printer) Out() io.Writer { return p.out }

func (p *Printer) Success(format string, args ...any) {
	if p.Quiet() {
		return
	}
	fmt.Fprintf(p.out, "%s %s\n", successIcon, fmt.Sprintf(format, args...))
}

func (p *Printer) Error(format string, args ...any) {
	if p.json {
		return
	}
	fmt.Fprintf(p.errOut, "%s %s\n", errorIcon, fmt.Sprintf(format, args...))
}

func (p *Printer) Warn(format string, args ...any) {
	if p.Quiet() {
		return
	}
	fmt.Fprintf(p.out, "%s %s\n", warnIcon, fmt.Sprintf(format, args...))
}

func (p *Printer) Info(format string, args ...any) {
	if p.Quiet() {
		return
	}
	fmt.Fprintf(p.out, "%s %s\n", infoIcon, fmt.Sprintf(format, args...))
}

func (p *Printer) Section(title string) {
	if p.Quiet() {
		return
	}
	fmt.Fprintf(p.out, "\n%s\n", color.New(color.Bold, color.FgCyan).Sprint(title))
}

func (p *Printer) KeyValue(key, value string) {
	if p.Quiet() {
		return
	}
	fmt.Fprintf(p.out, "  %s: %s\n", color.HiBlackString(key), value)
}

func (p *Printer) JSON(v any) error {
	enc := json.NewEncoder(p.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// Result prints v as JSON in --json mode and otherwise calls human.
func (p *Printer) Result(v any, human func()) error {
	if p.json {
		return p.JSON(v)
	}
	if !p.quiet {
		human()
	}
	return nil
}

// Status colors a job or media status.
func Status(s string) string {
	switch s {
	case "done", "active", "completed", "healthy":
		return color.GreenString(s)
	case "canceled", "temporary", "pending":
		return color.YellowString(s)
	case "failed", "deleted", "unhealthy":
		return color.RedString(s)
	}
	return color.CyanString(s)
}
