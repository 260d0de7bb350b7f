// SPDX-License-Identifier: EPL-2.0

package codec

import (
	"context"
	"errors"
	"log/slog"

	"github.com/ik5/audconv/audio"
	"github.com/ik5/audconv/failure"
)

// Chain tries primary first and hands over to fallback for what primary
// cannot do: inputs it reports as UnsupportedFormat, and output formats it
// has no encoder for. Any other primary failure is final.
type Chain struct {
	primary  Codec
	fallback Codec
	logger   *slog.Logger
}

// NewChain returns a Chain. A nil fallback makes the Chain behave as primary.
func NewChain(primary, fallback Codec, logger *slog.Logger) *Chain {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Chain{primary: primary, fallback: fallback, logger: logger}
}

func (c *Chain) Name() string {
	if c.fallback == nil {
		return c.primary.Name()
	}
	return c.primary.Name() + "+" + c.fallback.Name()
}

func (c *Chain) Decode(ctx context.Context, data []byte, hint Hint) (*audio.Buffer, error) {
	buf, err := c.primary.Decode(ctx, data, hint)
	if err == nil || c.fallback == nil || !errors.Is(err, failure.ErrUnsupportedFormat) {
		return buf, err
	}

	c.logger.DebugContext(ctx, "delegating decode",
		slog.String("from", c.primary.Name()),
		slog.String("to", c.fallback.Name()),
		slog.String("reason", failure.DetailOf(err)),
	)

	return c.fallback.Decode(ctx, data, hint)
}

func (c *Chain) Encode(ctx context.Context, buf *audio.Buffer, format OutputFormat) (*Encoded, error) {
	enc, err := c.primary.Encode(ctx, buf, format)
	if err == nil || c.fallback == nil || !errors.Is(err, ErrNoEncoder) {
		return enc, err
	}

	c.logger.DebugContext(ctx, "delegating encode",
		slog.String("format", string(format)),
		slog.String("to", c.fallback.Name()),
	)

	return c.fallback.Encode(ctx, buf, format)
}
