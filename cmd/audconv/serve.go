// SPDX-License-Identifier: EPL-2.0

package main

import (
	"context"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/ik5/audconv"
	"github.com/ik5/audconv/internal/metrics"
	"github.com/ik5/audconv/internal/server"
	"github.com/ik5/audconv/library"
)

// ServeCmd runs the HTTP API until interrupted.
type ServeCmd struct {
	Addr string `help:"Listen address, overrides http.address"`
}

func (c *ServeCmd) Run(a *app) error {
	cfg := a.cfg
	if c.Addr != "" {
		cfg.HTTP.Address = c.Addr
	}
	logger := a.logger

	ctx := a.ctx

	objects, meta, release, err := buildStores(ctx, cfg.Storage, logger)
	defer release()
	if err != nil {
		return err
	}

	m := metrics.NewMetrics(prometheus.DefaultRegisterer)
	cdc := buildCodec(cfg.FFmpeg, logger)

	opts := append(pipelineOptions(cfg.Pipeline, logger), audconv.WithObserver(m.ObserveStage))
	pipeline := audconv.New(cdc, opts...)

	lib := library.New(objects, meta,
		library.WithLogger(logger),
		library.WithCodec(cdc),
	)

	srv := server.New(server.Config{
		Address:         cfg.HTTP.Address,
		ReadTimeout:     cfg.HTTP.GetReadTimeout(),
		WriteTimeout:    cfg.HTTP.GetWriteTimeout(),
		CORSOrigin:      cfg.HTTP.CORSOrigin,
		Limits:          limits(cfg),
		MaxConcurrent:   cfg.Pipeline.MaxConcurrent,
		ConversionLimit: cfg.HTTP.GetWriteTimeout(),
		CodecName:       cdc.Name(),
	}, logger, pipeline, lib, m, prometheus.DefaultGatherer)

	if err := srv.Start(); err != nil {
		return err
	}

	logger.Info("Service started successfully, waiting for signals...",
		slog.String("address", srv.Addr()),
		slog.String("codec", cdc.Name()),
	)

	<-ctx.Done()
	logger.Info("Received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.GetShutdownTimeout())
	defer cancel()

	if err := srv.Stop(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", slog.Any("error", err))
		return err
	}

	logger.Info("Service stopped")
	return nil
}
