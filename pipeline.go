// SPDX-License-Identifier: EPL-2.0

package audconv

import (
	"context"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/ik5/audconv/audio"
	"github.com/ik5/audconv/codec"
	"github.com/ik5/audconv/spectrum"
)

// Result is the outcome of a successful conversion.
type Result struct {
	OriginalSpectrum  spectrum.Summary
	ProcessedSpectrum spectrum.Summary

	Data             []byte
	MimeType         string
	Format           codec.OutputFormat
	DownloadFilename string

	// SampleRate and BitDepth are what was actually applied to the output.
	SampleRate int
	BitDepth   audio.BitDepth

	SourceRate int
	Duration   time.Duration
}

// ObserverFunc is told about every stage the pipeline enters.
type ObserverFunc func(ctx context.Context, stage Stage)

type Option func(*Pipeline)

// WithAnalyzer replaces the default 512 point analyzer.
func WithAnalyzer(a *spectrum.Analyzer) Option {
	return func(p *Pipeline) {
		if a != nil {
			p.analyzer = a
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(p *Pipeline) {
		if l != nil {
			p.logger = l
		}
	}
}

func WithObserver(fn ObserverFunc) Option {
	return func(p *Pipeline) { p.observers = append(p.observers, fn) }
}

// WithResampleOptions tunes the resampler used by every conversion.
func WithResampleOptions(opts ...audio.ResampleOption) Option {
	return func(p *Pipeline) { p.resample = append(p.resample, opts...) }
}

// Pipeline runs conversions. It is safe for concurrent use; a conversion
// shares nothing with any other.
type Pipeline struct {
	codec     codec.Codec
	analyzer  *spectrum.Analyzer
	logger    *slog.Logger
	observers []ObserverFunc
	resample  []audio.ResampleOption
}

func New(c codec.Codec, opts ...Option) *Pipeline {
	p := &Pipeline{
		codec:    c,
		analyzer: spectrum.NewAnalyzer(spectrum.DefaultMaxPoints),
		logger:   slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Convert runs req through every stage. On failure no partial result is
// returned and the error is a *StageError.
func (p *Pipeline) Convert(ctx context.Context, req *Request) (*Result, error) {
	start := time.Now()
	p.enter(ctx, StageReceived)

	format := req.Format
	if format == "" {
		format = codec.OutputWAV
	}

	log := p.logger.With(
		slog.String("filename", req.Filename),
		slog.Int("bytes", len(req.Data)),
	)

	fail := func(stage Stage, err error) (*Result, error) {
		p.enter(ctx, StageFailed)
		log.WarnContext(ctx, "conversion failed",
			slog.String("stage", stage.String()),
			slog.Any("error", err),
		)
		return nil, &StageError{Stage: stage, Err: err}
	}

	decoded, err := p.codec.Decode(ctx, req.Data, codec.Hint{Filename: req.Filename, ContentType: req.ContentType})
	if err != nil {
		return fail(StageDecoded, err)
	}
	p.enter(ctx, StageDecoded)

	original := p.analyzer.Analyze(decoded)
	p.enter(ctx, StageAnalyzedOriginal)

	transformed, err := p.transform(decoded, req)
	if err != nil {
		return fail(StageTransformed, err)
	}
	p.enter(ctx, StageTransformed)

	processed := p.analyzer.Analyze(transformed)
	p.enter(ctx, StageAnalyzedProcessed)

	enc, err := p.codec.Encode(ctx, transformed, format)
	if err != nil {
		return fail(StageEncoded, err)
	}
	p.enter(ctx, StageEncoded)

	res := &Result{
		OriginalSpectrum:  original,
		ProcessedSpectrum: processed,
		Data:              enc.Data,
		MimeType:          enc.MimeType,
		Format:            enc.Format,
		DownloadFilename:  DownloadFilename(req.Filename, enc.Format),
		SampleRate:        transformed.SampleRate,
		BitDepth:          transformed.Depth,
		SourceRate:        decoded.SampleRate,
		Duration:          transformed.Duration(),
	}
	p.enter(ctx, StageComplete)

	log.InfoContext(ctx, "conversion complete",
		slog.Int("source_rate", res.SourceRate),
		slog.Int("sample_rate", res.SampleRate),
		slog.String("bit_depth", res.BitDepth.String()),
		slog.String("format", string(res.Format)),
		slog.Duration("elapsed", time.Since(start)),
	)

	return res, nil
}

// transform applies the requested rate and then the requested depth. Both
// steps are skipped when not asked for, and the input is never modified.
func (p *Pipeline) transform(buf *audio.Buffer, req *Request) (*audio.Buffer, error) {
	out := buf

	if req.TargetRate != 0 && req.TargetRate != buf.SampleRate {
		r, err := audio.Resample(buf, req.TargetRate, p.resample...)
		if err != nil {
			return nil, err
		}
		out = r
	}

	if req.TargetDepth != audio.DepthFloat {
		q, err := audio.Quantize(out, req.TargetDepth)
		if err != nil {
			return nil, err
		}
		out = q
	}

	return out, nil
}

func (p *Pipeline) enter(ctx context.Context, s Stage) {
	for _, fn := range p.observers {
		fn(ctx, s)
	}
}

// DownloadFilename derives the attachment name for a converted upload.
func DownloadFilename(original string, format codec.OutputFormat) string {
	base := filepath.Base(strings.ReplaceAll(original, "\\", "/"))
	base = strings.TrimSuffix(base, filepath.Ext(base))
	if base == "" || base == "." || base == "/" {
		base = "audio"
	}
	return base + "_processed" + format.Extension()
}
