// SPDX-License-Identifier: EPL-2.0

// Package failure defines the error taxonomy shared by every conversion stage.
//
// Each failure carries a machine-readable Kind and a human-readable detail.
// Errors from delegated tools keep the tool's diagnostic output verbatim in
// Output. Kinds can be matched with errors.Is against the package sentinels:
//
//	if errors.Is(err, failure.ErrCorruptInput) {
//	    // reject the upload
//	}
package failure

import (
	"errors"
	"fmt"
	"strings"
)

// Kind classifies a failure.
type Kind string

const (
	UnsupportedFormat       Kind = "UnsupportedFormat"
	CorruptInput            Kind = "CorruptInput"
	InvalidRate             Kind = "InvalidRate"
	UnsupportedBitDepth     Kind = "UnsupportedBitDepth"
	UnsupportedOutputFormat Kind = "UnsupportedOutputFormat"
	EncodeFailure           Kind = "EncodeFailure"
	ExternalToolFailure     Kind = "ExternalToolFailure"
	StorageFailure          Kind = "StorageFailure"
	NotFound                Kind = "NotFound"
	InvalidRequest          Kind = "InvalidRequest"
)

var (
	ErrUnsupportedFormat       = &Error{Kind: UnsupportedFormat}
	ErrCorruptInput            = &Error{Kind: CorruptInput}
	ErrInvalidRate             = &Error{Kind: InvalidRate}
	ErrUnsupportedBitDepth     = &Error{Kind: UnsupportedBitDepth}
	ErrUnsupportedOutputFormat = &Error{Kind: UnsupportedOutputFormat}
	ErrEncodeFailure           = &Error{Kind: EncodeFailure}
	ErrExternalToolFailure     = &Error{Kind: ExternalToolFailure}
	ErrStorageFailure          = &Error{Kind: StorageFailure}
	ErrNotFound                = &Error{Kind: NotFound}
	ErrInvalidRequest          = &Error{Kind: InvalidRequest}
)

// Error is a classified failure.
type Error struct {
	Kind Kind
	// Op names the operation that failed, e.g. "decode" or "ffmpeg encode".
	Op     string
	Detail string
	// Output is the verbatim diagnostic output of an external tool.
	Output string
	Err    error
}

func (e *Error) Error() string {
	var b strings.Builder
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(": ")
	}
	b.WriteString(string(e.Kind))
	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}
	if e.Err != nil && !strings.HasSuffix(e.Detail, e.Err.Error()) {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	if e.Output != "" {
		b.WriteString("\n")
		b.WriteString(e.Output)
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is a bare sentinel of the same kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Op == "" && t.Detail == "" && t.Err == nil
}

// New returns a failure of kind k for operation op.
func New(k Kind, op, format string, args ...any) *Error {
	return &Error{Kind: k, Op: op, Detail: fmt.Sprintf(format, args...)}
}

// Wrap classifies err as kind k. The detail is err's message.
func Wrap(k Kind, op string, err error) *Error {
	if err == nil {
		return nil
	}
	return &Error{Kind: k, Op: op, Detail: err.Error(), Err: err}
}

// KindOf returns the kind of the first *Error in err's chain, or "" if none.
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return ""
}

// DetailOf returns the detail of the first *Error in err's chain, falling back
// to err's message.
func DetailOf(err error) string {
	var fe *Error
	if errors.As(err, &fe) && fe.Detail != "" {
		return fe.Detail
	}
	if err == nil {
		return ""
	}
	return err.Error()
}
