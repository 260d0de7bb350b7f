// SPDX-License-Identifier: EPL-2.0

package server

import (
	"context"
	"errors"
	"net/http"

	"github.com/ik5/audconv"
	"github.com/ik5/audconv/failure"
	"github.com/ik5/audconv/library"
)

// errorBody is the JSON shape of every error response.
type errorBody struct {
	Kind   failure.Kind         `json:"kind"`
	Detail string               `json:"detail"`
	Fields []audconv.FieldError `json:"fields,omitempty"`
	Stage  string               `json:"stage,omitempty"`
	Output string               `json:"output,omitempty"`

	// Set when a save stored the object but not its record.
	OrphanedKey   string `json:"orphaned_key,omitempty"`
	ObjectRemoved *bool  `json:"object_removed,omitempty"`
}

var statusByKind = map[failure.Kind]int{
	failure.InvalidRequest:          http.StatusBadRequest,
	failure.InvalidRate:             http.StatusBadRequest,
	failure.UnsupportedBitDepth:     http.StatusBadRequest,
	failure.UnsupportedOutputFormat: http.StatusBadRequest,
	failure.UnsupportedFormat:       http.StatusUnsupportedMediaType,
	failure.CorruptInput:            http.StatusUnprocessableEntity,
	failure.NotFound:                http.StatusNotFound,
	failure.EncodeFailure:           http.StatusInternalServerError,
	failure.ExternalToolFailure:     http.StatusBadGateway,
	failure.StorageFailure:          http.StatusInternalServerError,
}

// StatusOf maps err to an HTTP status.
func StatusOf(err error) int {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, context.Canceled):
		// nginx's "client closed request"
		return 499
	}
	if status, ok := statusByKind[failure.KindOf(err)]; ok {
		return status
	}
	return http.StatusInternalServerError
}

func bodyOf(err error) errorBody {
	b := errorBody{Kind: failure.KindOf(err), Detail: failure.DetailOf(err)}
	if b.Kind == "" {
		switch {
		case errors.Is(err, context.DeadlineExceeded):
			b.Kind, b.Detail = "Timeout", "conversion took too long"
		case errors.Is(err, context.Canceled):
			b.Kind, b.Detail = "Cancelled", "request was cancelled"
		default:
			b.Kind, b.Detail = "Internal", "internal error"
		}
	}

	if verrs, ok := audconv.AsValidationErrors(err); ok {
		b.Detail = "request validation failed"
		b.Fields = verrs
	}
	if stage, ok := audconv.FailedStage(err); ok {
		b.Stage = stage.String()
	}

	var fe *failure.Error
	if errors.As(err, &fe) && fe.Kind == failure.ExternalToolFailure {
		b.Output = fe.Output
	}

	var orphan *library.OrphanedObjectError
	if errors.As(err, &orphan) {
		b.OrphanedKey = orphan.Key
		b.ObjectRemoved = &orphan.Cleaned
	}
	return b
}
