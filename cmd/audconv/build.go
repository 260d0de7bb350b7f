// SPDX-License-Identifier: EPL-2.0

package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ik5/audconv"
	"github.com/ik5/audconv/audio"
	"github.com/ik5/audconv/codec"
	"github.com/ik5/audconv/internal/config"
	"github.com/ik5/audconv/spectrum"
	"github.com/ik5/audconv/storage"
	"github.com/ik5/audconv/storage/fsstore"
	"github.com/ik5/audconv/storage/memstore"
	"github.com/ik5/audconv/storage/postgres"
)

// buildCodec returns the native codec, chained to ffmpeg when it is
// enabled and can be found.
func buildCodec(cfg config.FFmpegConfig, logger *slog.Logger) codec.Codec {
	native := codec.NewNative(nil)
	if !cfg.Enabled {
		return native
	}

	ext, err := codec.NewExternal(cfg.Path,
		codec.WithTimeout(cfg.GetTimeoutDuration()),
		codec.WithMP3Bitrate(cfg.MP3Bitrate),
		codec.WithTempDir(cfg.TempDir),
		codec.WithExternalLogger(logger),
	)
	if err != nil {
		logger.Warn("ffmpeg unavailable, only native formats are supported", slog.Any("error", err))
		return native
	}

	logger.Info("ffmpeg enabled", slog.String("path", ext.Path()))
	return codec.NewChain(native, ext, logger)
}

func pipelineOptions(cfg config.PipelineConfig, logger *slog.Logger) []audconv.Option {
	quality := audio.QualitySinc
	if cfg.ResampleMode == "cubic" {
		quality = audio.QualityCubic
	}

	return []audconv.Option{
		audconv.WithLogger(logger),
		audconv.WithAnalyzer(spectrum.NewAnalyzer(cfg.SpectrumPoints)),
		audconv.WithResampleOptions(audio.WithQuality(quality)),
	}
}

func limits(cfg *config.Config) audconv.Limits {
	return audconv.Limits{
		MaxSampleRate: cfg.Pipeline.MaxSampleRate,
		MaxBytes:      cfg.HTTP.MaxUploadBytes(),
	}
}

// buildStores opens the configured stores. The returned func releases them.
func buildStores(ctx context.Context, cfg config.StorageConfig, logger *slog.Logger) (storage.ObjectStore, storage.MetadataStore, func(), error) {
	closers := []func(){}
	release := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	var objects storage.ObjectStore
	switch cfg.Objects {
	case "filesystem":
		var opts []fsstore.Option
		if cfg.BaseURL != "" {
			opts = append(opts, fsstore.WithBaseURL(cfg.BaseURL))
		}
		fs, err := fsstore.New(cfg.Dir, opts...)
		if err != nil {
			return nil, nil, release, err
		}
		logger.Info("object store ready", slog.String("dir", fs.Dir()))
		objects = fs
	default:
		objects = memstore.NewObjects()
	}

	var meta storage.MetadataStore
	switch cfg.Metadata {
	case "postgres":
		pg, err := postgres.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, release, fmt.Errorf("metadata store: %w", err)
		}
		closers = append(closers, func() { _ = pg.Close() })
		logger.Info("metadata store ready", slog.String("table", pg.Table()))
		meta = pg
	default:
		meta = memstore.NewRecords()
	}

	return objects, meta, release, nil
}
