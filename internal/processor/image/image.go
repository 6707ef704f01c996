// Package image resizes uploaded images to a named context size and
// re-encodes them as WebP.
package image

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"sort"

	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp"

	"github.com/jonymoraes/mediaserver/internal/config"
	"github.com/jonymoraes/mediaserver/internal/naming"
	"github.com/jonymoraes/mediaserver/internal/processor"
)

const (
	OutputMime      = "image/webp"
	outputExt       = ".webp"
	DefaultQuality  = 100
	FallbackContext = "generic"
)

// Size is the bounding box an image is fitted into.
type Size struct {
	Width   int
	Height  int
	Quality int
}

// DefaultContexts maps upload contexts to their bounding boxes.
var DefaultContexts = map[string]Size{
	"avatar":     {Width: 400, Height: 400},
	"product":    {Width: 2048, Height: 2048},
	"article":    {Width: 1200, Height: 630},
	"banner":     {Width: 1920, Height: 1080},
	"carousel":   {Width: 1920, Height: 1080},
	"slideshow":  {Width: 1920, Height: 1080},
	"generic":    {Width: 1280, Height: 720},
	"document":   {Width: 1920, Height: 1080},
	"attachment": {Width: 1000, Height: 1000},
}

// SupportedTypes lists the accepted input MIME types.
var SupportedTypes = []string{
	"image/jpeg",
	"image/png",
	"image/webp",
	"image/gif",
}

// SupportedExtensions lists the accepted input file extensions.
var SupportedExtensions = []string{".jpg", ".jpeg", ".png", ".webp", ".gif"}

type Processor struct {
	contexts map[string]Size
}

// New builds a processor from the default context table extended (or
// overridden) by extra.
func New(extra map[string]config.ImageProfile) *Processor {
	contexts := make(map[string]Size, len(DefaultContexts)+len(extra))
	for name, s := range DefaultContexts {
		contexts[name] = s
	}
	for name, p := range extra {
		contexts[name] = Size{Width: p.Width, Height: p.Height, Quality: p.Quality}
	}
	return &Processor{contexts: contexts}
}

func (p *Processor) Lookup(name string) (Size, bool) {
	s, ok := p.contexts[name]
	if ok && s.Quality <= 0 {
		s.Quality = DefaultQuality
	}
	return s, ok
}

// Resolve returns the size for name, or the fallback context's size when
// name is unknown.
func (p *Processor) Resolve(name string) Size {
	if s, ok := p.Lookup(name); ok {
		return s
	}
	s, ok := p.Lookup(FallbackContext)
	if !ok {
		s = DefaultContexts[FallbackContext]
		s.Quality = DefaultQuality
	}
	return s
}

// Contexts returns the known context names in sorted order.
func (p *Processor) Contexts() []string {
	names := make([]string, 0, len(p.contexts))
	for name := range p.contexts {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Process fits the image at inputPath inside the context's bounding box
// without enlarging it, encodes it as WebP and writes it beside the input
// under a collision-free name. The input is removed once the output is in
// place. Cancellation is checked before the output is written.
func (p *Processor) Process(ctx context.Context, inputPath, contextName string, canceled processor.CancelCheck) (*processor.Result, error) {
	size := p.Resolve(contextName)
	if canceled.Canceled() || ctx.Err() != nil {
		return nil, processor.ErrCanceled
	}

	img, err := imaging.Open(inputPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", processor.ErrCorruptedFile, err)
	}

	fitted := fit(img, size.Width, size.Height)

	var buf bytes.Buffer
	if err := webp.Encode(&buf, fitted, &webp.Options{Quality: float32(size.Quality)}); err != nil {
		return nil, fmt.Errorf("%w: encode webp: %v", processor.ErrProcessingFailed, err)
	}

	if canceled.Canceled() || ctx.Err() != nil {
		return nil, processor.ErrCanceled
	}

	dir := filepath.Dir(inputPath)
	name := naming.AvailableFilename(dir, naming.ReplaceExt(filepath.Base(inputPath), outputExt))
	outputPath := filepath.Join(dir, name)

	if err := os.WriteFile(outputPath, buf.Bytes(), 0o644); err != nil {
		return nil, fmt.Errorf("%w: write output: %v", processor.ErrProcessingFailed, err)
	}
	if outputPath != inputPath {
		_ = processor.RemoveQuietly(inputPath)
	}

	b := fitted.Bounds()
	return &processor.Result{
		Path:        outputPath,
		Filename:    name,
		ContentType: OutputMime,
		Size:        int64(buf.Len()),
		Width:       b.Dx(),
		Height:      b.Dy(),
	}, nil
}

// fit scales img down to fit inside width x height, keeping the aspect
// ratio. Images already inside the box are returned unchanged.
func fit(img image.Image, width, height int) image.Image {
	b := img.Bounds()
	if b.Dx() <= width && b.Dy() <= height {
		return img
	}
	return imaging.Fit(img, width, height, imaging.Lanczos)
}
