// SPDX-License-Identifier: EPL-2.0

// Package server implements the HTTP API.
//
//	POST   /api/upload_audio        convert an upload and keep it in the library
//	GET    /api/library             list stored conversions, newest first
//	GET    /api/library/{id}        one stored conversion
//	GET    /api/download_audio      stored audio, ?id=...&format=wav|mp3
//	DELETE /api/delete_audio/{id}   remove a stored conversion
//	GET    /health                  liveness
//	GET    /metrics                 Prometheus metrics
//
// Errors are JSON objects {"kind", "detail", "fields"} where kind is a
// failure.Kind.
package server
