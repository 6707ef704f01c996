//go:build workers_basic

package main

import (
	"log/slog"

	"github.com/abdul-hamid-achik/job-queue/pkg/worker"

	"github.com/jonymoraes/mediaserver/internal/config"
	"github.com/jonymoraes/mediaserver/internal/processor/video"
	mediaworker "github.com/jonymoraes/mediaserver/internal/worker"
)

func openVideoProcessor(_ *config.Config, _ *config.Profiles, log *slog.Logger) *video.Processor {
	log.Info("video processing disabled (workers_basic build tag)")
	return nil
}

func registerVideoHandler(*worker.Registry, *mediaworker.Dependencies) error {
	return nil
}
