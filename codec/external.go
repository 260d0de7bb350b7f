// SPDX-License-Identifier: EPL-2.0

package codec

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/ik5/audconv/audio"
	"github.com/ik5/audconv/failure"
	"github.com/ik5/audconv/formats/wav"
)

const (
	defaultMP3Bitrate = "192k"
	defaultWaitDelay  = 5 * time.Second
)

// External runs ffmpeg for decoding and encoding.
//
// Each call works in its own scratch directory which is removed before the
// call returns, whatever the outcome. A cancelled context kills the process.
type External struct {
	path       string
	timeout    time.Duration
	mp3Bitrate string
	tempDir    string
	logger     *slog.Logger
}

type ExternalOption func(*External)

// WithTimeout bounds every ffmpeg invocation. Zero means no limit.
func WithTimeout(d time.Duration) ExternalOption {
	return func(e *External) { e.timeout = d }
}

// WithMP3Bitrate sets the libmp3lame bitrate, e.g. "128k".
func WithMP3Bitrate(b string) ExternalOption {
	return func(e *External) {
		if b != "" {
			e.mp3Bitrate = b
		}
	}
}

// WithTempDir sets the parent of the scratch directories. Empty means os.TempDir.
func WithTempDir(dir string) ExternalOption {
	return func(e *External) { e.tempDir = dir }
}

func WithExternalLogger(l *slog.Logger) ExternalOption {
	return func(e *External) {
		if l != nil {
			e.logger = l
		}
	}
}

// NewExternal returns an External codec running the ffmpeg binary at path.
// A bare name is resolved through PATH.
func NewExternal(path string, opts ...ExternalOption) (*External, error) {
	if path == "" {
		path = "ffmpeg"
	}

	resolved, err := exec.LookPath(path)
	if err != nil {
		return nil, failure.Wrap(failure.ExternalToolFailure, "locate ffmpeg", err)
	}

	e := &External{
		path:       resolved,
		mp3Bitrate: defaultMP3Bitrate,
		logger:     slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(e)
	}

	return e, nil
}

func (*External) Name() string { return "ffmpeg" }

// Path is the resolved ffmpeg binary.
func (e *External) Path() string { return e.path }

// Decode converts data to 32-bit float WAV with ffmpeg and reads it natively.
// Channel count and sample rate are left as ffmpeg reports them.
func (e *External) Decode(ctx context.Context, data []byte, hint Hint) (*audio.Buffer, error) {
	const op = "ffmpeg decode"

	if len(data) == 0 {
		return nil, failure.New(failure.CorruptInput, op, "input is empty")
	}

	dir, err := os.MkdirTemp(e.tempDir, "audconv-decode-")
	if err != nil {
		return nil, failure.Wrap(failure.ExternalToolFailure, op, err)
	}
	defer os.RemoveAll(dir)

	ext := filepath.Ext(hint.Filename)
	if f := Sniff(data, hint); f != FormatUnknown {
		ext = "." + string(f)
	}
	in := filepath.Join(dir, "input"+sanitizeExt(ext))
	out := filepath.Join(dir, "output.wav")

	if err := os.WriteFile(in, data, 0o600); err != nil {
		return nil, failure.Wrap(failure.ExternalToolFailure, op, err)
	}

	err = e.run(ctx, op,
		"-i", in,
		"-vn",
		"-c:a", "pcm_f32le",
		"-f", "wav",
		out,
	)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(out)
	if err != nil {
		return nil, failure.Wrap(failure.ExternalToolFailure, op, err)
	}
	defer f.Close()

	src, err := wav.Decoder{}.Decode(f)
	if err != nil {
		return nil, &failure.Error{Kind: failure.ExternalToolFailure, Op: op, Detail: "unreadable ffmpeg output", Err: err}
	}

	buf, err := audio.Collect(src)
	if err != nil {
		return nil, &failure.Error{Kind: failure.ExternalToolFailure, Op: op, Detail: "unreadable ffmpeg output", Err: err}
	}

	return buf, nil
}

// Encode writes buf to a WAV at its own depth and has ffmpeg transcode it.
func (e *External) Encode(ctx context.Context, buf *audio.Buffer, format OutputFormat) (*Encoded, error) {
	const op = "ffmpeg encode"

	var codecArgs []string
	switch format {
	case OutputMP3:
		codecArgs = []string{"-c:a", "libmp3lame", "-b:a", e.mp3Bitrate, "-f", "mp3"}
	case OutputWAV:
		codecArgs = []string{"-c:a", pcmCodec(buf.Depth), "-f", "wav"}
	default:
		return nil, failure.New(failure.UnsupportedOutputFormat, op, "%q is not one of wav, mp3", string(format))
	}

	dir, err := os.MkdirTemp(e.tempDir, "audconv-encode-")
	if err != nil {
		return nil, failure.Wrap(failure.ExternalToolFailure, op, err)
	}
	defer os.RemoveAll(dir)

	in := filepath.Join(dir, "input.wav")
	out := filepath.Join(dir, "output"+format.Extension())

	var staged bytes.Buffer
	if err := wav.Encode(&staged, buf); err != nil {
		return nil, failure.Wrap(failure.EncodeFailure, op, err)
	}
	if err := os.WriteFile(in, staged.Bytes(), 0o600); err != nil {
		return nil, failure.Wrap(failure.ExternalToolFailure, op, err)
	}

	args := append([]string{"-i", in}, codecArgs...)
	if err := e.run(ctx, op, append(args, out)...); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(out)
	if err != nil {
		return nil, failure.Wrap(failure.ExternalToolFailure, op, err)
	}
	if len(data) == 0 {
		return nil, failure.New(failure.EncodeFailure, op, "ffmpeg produced no %s output", format)
	}

	return &Encoded{Data: data, MimeType: format.MimeType(), Format: format}, nil
}

func pcmCodec(d audio.BitDepth) string {
	switch d {
	case audio.Depth8:
		return "pcm_u8"
	case audio.Depth16:
		return "pcm_s16le"
	case audio.Depth24:
		return "pcm_s24le"
	default:
		return "pcm_f32le"
	}
}

// run executes ffmpeg with args. stderr is kept verbatim on failure.
func (e *External) run(ctx context.Context, op string, args ...string) error {
	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	full := append([]string{"-hide_banner", "-nostdin", "-loglevel", "error", "-y"}, args...)

	cmd := exec.CommandContext(ctx, e.path, full...)
	cmd.WaitDelay = defaultWaitDelay

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()

	e.logger.DebugContext(ctx, "ffmpeg finished",
		slog.String("op", op),
		slog.Duration("elapsed", time.Since(start)),
		slog.Bool("ok", err == nil),
	)

	if err == nil {
		return nil
	}

	if ctxErr := ctx.Err(); ctxErr != nil {
		detail := "ffmpeg was cancelled"
		if errors.Is(ctxErr, context.DeadlineExceeded) {
			detail = "ffmpeg timed out"
		}
		return &failure.Error{
			Kind:   failure.ExternalToolFailure,
			Op:     op,
			Detail: detail,
			Output: stderr.String(),
			Err:    ctxErr,
		}
	}

	var exitErr *exec.ExitError
	detail := err.Error()
	if errors.As(err, &exitErr) {
		detail = fmt.Sprintf("ffmpeg exited with status %d", exitErr.ExitCode())
	}

	return &failure.Error{
		Kind:   failure.ExternalToolFailure,
		Op:     op,
		Detail: detail,
		Output: stderr.String(),
		Err:    err,
	}
}

// sanitizeExt keeps ffmpeg's format probing away from user controlled names.
func sanitizeExt(ext string) string {
	ext = strings.ToLower(ext)
	if len(ext) < 2 || len(ext) > 6 {
		return ".bin"
	}
	for _, r := range ext[1:] {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') {
			return ".bin"
		}
	}
	return ext
}
