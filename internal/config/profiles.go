package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Profiles extends the built-in image context and video format tables.
//
//	image_contexts:
//	  thumbnail: {width: 320, height: 320}
//	video_formats:
//	  mkv: {video: libx264, audio: aac, mime: video/x-matroska}
type Profiles struct {
	ImageContexts map[string]ImageProfile `yaml:"image_contexts"`
	VideoFormats  map[string]VideoProfile `yaml:"video_formats"`
}

type ImageProfile struct {
	Width   int `yaml:"width"`
	Height  int `yaml:"height"`
	Quality int `yaml:"quality"`
}

type VideoProfile struct {
	Video string `yaml:"video"`
	Audio string `yaml:"audio"`
	Mime  string `yaml:"mime"`
}

func LoadProfiles(path string) (*Profiles, error) {
	if path == "" {
		return &Profiles{}, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read profiles file: %w", err)
	}

	var p Profiles
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("failed to parse profiles file: %w", err)
	}

	for name, ip := range p.ImageContexts {
		if ip.Width < 1 || ip.Height < 1 {
			return nil, fmt.Errorf("image context %q: width and height must be positive", name)
		}
		if ip.Quality < 0 || ip.Quality > 100 {
			return nil, fmt.Errorf("image context %q: quality must be between 0 and 100", name)
		}
	}
	for name, vp := range p.VideoFormats {
		if vp.Video == "" || vp.Mime == "" {
			return nil, fmt.Errorf("video format %q: video codec and mime are required", name)
		}
	}

	return &p, nil
}
