// SPDX-License-Identifier: EPL-2.0

package audconv

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/ik5/audconv/audio"
	"github.com/ik5/audconv/codec"
	"github.com/ik5/audconv/failure"
)

// Request is a validated conversion request.
type Request struct {
	Data        []byte
	Filename    string
	ContentType string

	// TargetRate of zero keeps the source rate.
	TargetRate int
	// TargetDepth of DepthFloat leaves the samples unquantized.
	TargetDepth audio.BitDepth
	Format      codec.OutputFormat
}

// Form holds the raw, untrusted request fields.
type Form struct {
	// Present is false when no file part was sent at all.
	Present     bool
	Data        []byte
	Filename    string
	ContentType string

	SampleRate string
	BitDepth   string
	Format     string
}

// Limits bound what ParseRequest accepts.
type Limits struct {
	MaxSampleRate int
	MaxBytes      int64
}

func DefaultLimits() Limits {
	return Limits{
		MaxSampleRate: 192000,
		MaxBytes:      100 << 20,
	}
}

// FieldError describes one rejected field.
type FieldError struct {
	Field   string       `json:"field"`
	Kind    failure.Kind `json:"kind"`
	Message string       `json:"message"`
}

// ValidationErrors collects every FieldError of a request.
// It unwraps to an InvalidRequest failure.
type ValidationErrors []FieldError

func (v ValidationErrors) Error() string {
	parts := make([]string, len(v))
	for i, fe := range v {
		parts[i] = fe.Field + ": " + fe.Message
	}
	return "invalid request: " + strings.Join(parts, "; ")
}

func (v ValidationErrors) Unwrap() error {
	return &failure.Error{Kind: failure.InvalidRequest, Op: "validate request", Detail: v.Error()}
}

// ParseRequest validates f against lim. Every bad field is reported, not
// just the first one.
func ParseRequest(f Form, lim Limits) (*Request, error) {
	var errs ValidationErrors
	add := func(field string, kind failure.Kind, format string, args ...any) {
		errs = append(errs, FieldError{Field: field, Kind: kind, Message: fmt.Sprintf(format, args...)})
	}

	if !f.Present {
		add("audio_file", failure.InvalidRequest, "no file was uploaded")
	}
	if lim.MaxBytes > 0 && int64(len(f.Data)) > lim.MaxBytes {
		add("audio_file", failure.InvalidRequest, "file is larger than %d bytes", lim.MaxBytes)
	}

	rate := 0
	if s := strings.TrimSpace(f.SampleRate); s != "" {
		n, err := strconv.Atoi(s)
		switch {
		case err != nil:
			add("sample_rate", failure.InvalidRate, "%q is not an integer", f.SampleRate)
		case n <= 0:
			add("sample_rate", failure.InvalidRate, "must be positive, got %d", n)
		case lim.MaxSampleRate > 0 && n > lim.MaxSampleRate:
			add("sample_rate", failure.InvalidRate, "must not exceed %d Hz, got %d", lim.MaxSampleRate, n)
		default:
			rate = n
		}
	}

	depth, err := audio.ParseBitDepth(f.BitDepth)
	if err != nil {
		add("bit_depth", failure.UnsupportedBitDepth, "%s", failure.DetailOf(err))
	}

	format, err := codec.ParseOutputFormat(f.Format)
	if err != nil {
		add("export_format", failure.UnsupportedOutputFormat, "%s", failure.DetailOf(err))
	}

	if len(errs) > 0 {
		return nil, errs
	}

	return &Request{
		Data:        f.Data,
		Filename:    f.Filename,
		ContentType: f.ContentType,
		TargetRate:  rate,
		TargetDepth: depth,
		Format:      format,
	}, nil
}

// AsValidationErrors extracts the field errors from err.
func AsValidationErrors(err error) (ValidationErrors, bool) {
	var v ValidationErrors
	ok := errors.As(err, &v)
	return v, ok
}
