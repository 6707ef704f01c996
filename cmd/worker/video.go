//go:build !workers_basic

package main

import (
	"log/slog"

	"github.com/abdul-hamid-achik/job-queue/pkg/worker"

	"github.com/jonymoraes/mediaserver/internal/config"
	"github.com/jonymoraes/mediaserver/internal/processor/video"
	mediaworker "github.com/jonymoraes/mediaserver/internal/worker"
)

// openVideoProcessor returns nil when ffmpeg is not installed; video jobs
// are then rejected at validation.
func openVideoProcessor(cfg *config.Config, profiles *config.Profiles, log *slog.Logger) *video.Processor {
	vcfg := video.DefaultConfig()
	vcfg.FFmpegPath = cfg.FFmpegPath
	vcfg.FFprobePath = cfg.FFprobePath

	p, err := video.New(vcfg, profiles.VideoFormats)
	if err != nil {
		log.Warn("video processor unavailable (ffmpeg not found)", "error", err)
		return nil
	}
	return p
}

func registerVideoHandler(registry *worker.Registry, deps *mediaworker.Dependencies) error {
	return registry.Register(mediaworker.TypeVideo, mediaworker.VideoHandler(deps))
}
