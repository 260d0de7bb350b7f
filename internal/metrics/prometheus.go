// SPDX-License-Identifier: EPL-2.0

// Package metrics exposes Prometheus metrics for conversions and the HTTP
// API.
package metrics

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/ik5/audconv"
	"github.com/ik5/audconv/failure"
)

// Metrics contains all Prometheus metrics for the conversion service
type Metrics struct {
	// Conversion metrics
	Conversions         *prometheus.CounterVec
	StageFailures       *prometheus.CounterVec
	StageTransitions    *prometheus.CounterVec
	ConversionDuration  prometheus.Histogram
	ConversionsInFlight prometheus.Gauge
	UploadSize          prometheus.Histogram

	// Library metrics
	LibraryOperations *prometheus.CounterVec

	// HTTP API metrics
	HTTPRequests        *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	HTTPErrors          *prometheus.CounterVec
}

// NewMetrics creates all metrics and registers them with reg. A nil reg
// means the default registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)

	return &Metrics{
		Conversions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "audconv_conversions_total",
			Help: "Total number of conversions by outcome",
		}, []string{"outcome"}),
		StageFailures: f.NewCounterVec(prometheus.CounterOpts{
			Name: "audconv_stage_failures_total",
			Help: "Total number of failed conversions by stage and error kind",
		}, []string{"stage", "kind"}),
		StageTransitions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "audconv_stage_transitions_total",
			Help: "Total number of pipeline stages entered",
		}, []string{"stage"}),
		ConversionDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "audconv_conversion_duration_seconds",
			Help:    "Time spent converting one upload",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12), // 10ms to ~40s
		}),
		ConversionsInFlight: f.NewGauge(prometheus.GaugeOpts{
			Name: "audconv_conversions_in_flight",
			Help: "Current number of running conversions",
		}),
		UploadSize: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "audconv_upload_size_bytes",
			Help:    "Size of uploaded audio files",
			Buckets: prometheus.ExponentialBuckets(16*1024, 4, 8), // 16KB to ~256MB
		}),

		LibraryOperations: f.NewCounterVec(prometheus.CounterOpts{
			Name: "audconv_library_operations_total",
			Help: "Total number of library operations by operation and outcome",
		}, []string{"op", "outcome"}),

		HTTPRequests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "audconv_http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"method", "endpoint", "status_code"}),
		HTTPRequestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "audconv_http_request_duration_seconds",
			Help:    "HTTP request duration",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "endpoint"}),
		HTTPErrors: f.NewCounterVec(prometheus.CounterOpts{
			Name: "audconv_http_errors_total",
			Help: "Total number of HTTP errors",
		}, []string{"method", "endpoint", "error_type"}),
	}
}

// ObserveStage counts a stage transition. It has the shape of
// audconv.ObserverFunc.
func (m *Metrics) ObserveStage(_ context.Context, s audconv.Stage) {
	m.StageTransitions.WithLabelValues(s.String()).Inc()
}

// StartConversion marks a conversion as running. The returned func records
// its outcome and must be called exactly once.
func (m *Metrics) StartConversion(uploadBytes int) func(err error) {
	start := time.Now()
	m.ConversionsInFlight.Inc()
	m.UploadSize.Observe(float64(uploadBytes))

	return func(err error) {
		m.ConversionsInFlight.Dec()
		m.RecordConversion(time.Since(start), err)
	}
}

// RecordConversion records the outcome of one conversion
func (m *Metrics) RecordConversion(d time.Duration, err error) {
	m.ConversionDuration.Observe(d.Seconds())

	if err == nil {
		m.Conversions.WithLabelValues("success").Inc()
		return
	}

	outcome := "failure"
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		outcome = "cancelled"
	}
	m.Conversions.WithLabelValues(outcome).Inc()

	stage := "unknown"
	if s, ok := audconv.FailedStage(err); ok {
		stage = s.String()
	}
	kind := string(failure.KindOf(err))
	if kind == "" {
		kind = "unclassified"
	}
	m.StageFailures.WithLabelValues(stage, kind).Inc()
}

// RecordLibraryOperation records a library call
func (m *Metrics) RecordLibraryOperation(op string, err error) {
	outcome := "success"
	if err != nil {
		outcome = string(failure.KindOf(err))
		if outcome == "" {
			outcome = "error"
		}
	}
	m.LibraryOperations.WithLabelValues(op, outcome).Inc()
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, endpoint string, statusCode int, d time.Duration) {
	m.HTTPRequests.WithLabelValues(method, endpoint, strconv.Itoa(statusCode)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, endpoint).Observe(d.Seconds())

	if statusCode >= 400 {
		errorType := "client_error"
		if statusCode >= 500 {
			errorType = "server_error"
		}
		m.HTTPErrors.WithLabelValues(method, endpoint, errorType).Inc()
	}
}
