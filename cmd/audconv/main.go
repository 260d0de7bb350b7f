// SPDX-License-Identifier: EPL-2.0

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"

	"github.com/ik5/audconv/internal/cli"
	"github.com/ik5/audconv/internal/config"
)

var (
	version = "0.1.0"
)

// CLI defines the command-line interface
type CLI struct {
	Config  string           `short:"c" type:"path" help:"Path to YAML config file (optional)"`
	EnvFile string           `name:"env-file" type:"path" default:".env" help:"Read AUDCONV_* variables from this file when it exists"`
	Version kong.VersionFlag `short:"v" help:"Show version information"`

	Serve   ServeCmd   `cmd:"" help:"Run the HTTP API"`
	Convert ConvertCmd `cmd:"" help:"Convert one audio file"`
}

// app carries what every command needs.
type app struct {
	ctx    context.Context
	cfg    *config.Config
	logger *slog.Logger
}

func main() {
	cliArgs := &CLI{}
	kctx := kong.Parse(cliArgs,
		kong.Name("audconv"),
		kong.Description("Audio transcoding and spectral analysis"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{Compact: true}),
		kong.Vars{
			"version": version,
		},
	)

	if err := config.LoadDotEnv(cliArgs.EnvFile); err != nil {
		cli.PrintError(os.Stderr, err.Error())
		os.Exit(1)
	}

	cfg, err := config.Load(cliArgs.Config)
	if err != nil {
		cli.PrintError(os.Stderr, err.Error())
		os.Exit(1)
	}

	logger, closeLog := initLogger(cfg.Logging)
	defer closeLog()
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err = kctx.Run(&app{ctx: ctx, cfg: cfg, logger: logger})
	stop()
	if err != nil {
		cli.PrintError(os.Stderr, err.Error())
		closeLog()
		os.Exit(1)
	}
}

func initLogger(cfg config.LoggingConfig) (*slog.Logger, func()) {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: level == slog.LevelDebug,
	}

	output := os.Stderr
	closer := func() {}
	switch cfg.Output {
	case "stderr", "":
	case "stdout":
		output = os.Stdout
	default:
		file, err := os.OpenFile(cfg.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to open log file %s: %v, falling back to stderr\n", cfg.Output, err)
		} else {
			output = file
			closer = func() { _ = file.Close() }
		}
	}

	var handler slog.Handler
	switch cfg.Format {
	case "json":
		handler = slog.NewJSONHandler(output, opts)
	default:
		handler = slog.NewTextHandler(output, opts)
	}

	return slog.New(handler), closer
}
