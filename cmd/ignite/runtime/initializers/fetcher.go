package initializers

import (
	"context"
	"fmt"
	"strings"

	"github.com/harunnryd/ignite/internal/artifact"
	"github.com/harunnryd/ignite/internal/config"
)

type FetcherInitializer struct{}

func NewFetcherInitializer() *FetcherInitializer {
	return &FetcherInitializer{}
}

func (fi *FetcherInitializer) Name() string {
	return "fetcher"
}

func (fi *FetcherInitializer) Dependencies() []string {
	return []string{}
}

func (fi *FetcherInitializer) Initialize(ctx context.Context, cfg *config.Config) (interface{}, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is nil")
	}

	timeout, err := config.DurationOrDefault(cfg.Artifact.Timeout, config.DefaultArtifactTimeout)
	if err != nil {
		return nil, fmt.Errorf("parse artifact timeout: %w", err)
	}
	maxBytes := cfg.Artifact.MaxBytes
	if maxBytes <= 0 {
		maxBytes = config.DefaultArtifactMaxBytes
	}

	var sources []artifact.Source
	// The s3 scheme is only served when an endpoint is configured.
	if strings.TrimSpace(cfg.Artifact.S3.Endpoint) != "" {
		sources = append(sources, artifact.NewS3Source(cfg.Artifact.S3))
	}

	return artifact.NewFetcher(artifact.Options{
		Base:     cfg.Artifact.Base,
		Timeout:  timeout,
		MaxBytes: maxBytes,
	}, sources...), nil
}
