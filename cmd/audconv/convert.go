// SPDX-License-Identifier: EPL-2.0

package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ik5/audconv"
	"github.com/ik5/audconv/internal/cli"
)

// ConvertCmd runs one file through the pipeline and writes the result.
type ConvertCmd struct {
	Input  string `arg:"" type:"existingfile" help:"Audio file to convert"`
	Output string `short:"o" type:"path" help:"Output file (default: <input>_processed.<format> next to the input)"`
	Rate   string `short:"r" help:"Target sample rate in Hz (default: keep)"`
	Depth  string `short:"d" help:"Target bit depth: 8, 16, 24 or float (default: float)"`
	Format string `short:"f" default:"wav" enum:"wav,mp3" help:"Output container"`
}

func (c *ConvertCmd) Run(a *app) error {
	data, err := os.ReadFile(c.Input)
	if err != nil {
		return err
	}

	req, err := audconv.ParseRequest(audconv.Form{
		Present:    true,
		Data:       data,
		Filename:   filepath.Base(c.Input),
		SampleRate: c.Rate,
		BitDepth:   c.Depth,
		Format:     c.Format,
	}, limits(a.cfg))
	if err != nil {
		return err
	}

	cdc := buildCodec(a.cfg.FFmpeg, a.logger)
	pipeline := audconv.New(cdc, pipelineOptions(a.cfg.Pipeline, a.logger)...)

	start := time.Now()
	res, err := pipeline.Convert(a.ctx, req)
	if err != nil {
		return err
	}

	out := c.Output
	if out == "" {
		out = filepath.Join(filepath.Dir(c.Input), res.DownloadFilename)
	}
	if err := os.WriteFile(out, res.Data, 0o644); err != nil {
		return err
	}

	origFreq, _, _ := res.OriginalSpectrum.Peak()
	procFreq, _, _ := res.ProcessedSpectrum.Peak()

	cli.PrintSummary(os.Stdout, "audconv", []cli.Field{
		{Key: "Input", Value: c.Input},
		{Key: "Output", Value: out},
		{Key: "Codec", Value: cdc.Name()},
		{Key: "Sample rate", Value: fmt.Sprintf("%d Hz -> %d Hz", res.SourceRate, res.SampleRate)},
		{Key: "Bit depth", Value: res.BitDepth.String()},
		{Key: "Duration", Value: res.Duration.Round(time.Millisecond).String()},
		{Key: "Peak", Value: fmt.Sprintf("%.1f Hz -> %.1f Hz", origFreq, procFreq)},
		{Key: "Size", Value: fmt.Sprintf("%d bytes", len(res.Data))},
		{Key: "Elapsed", Value: time.Since(start).Round(time.Millisecond).String()},
	})
	return nil
}
