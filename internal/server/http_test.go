// SPDX-License-Identifier: EPL-2.0

package server

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ik5/audconv"
	"github.com/ik5/audconv/audio"
	"github.com/ik5/audconv/codec"
	"github.com/ik5/audconv/failure"
	"github.com/ik5/audconv/formats/wav"
	"github.com/ik5/audconv/internal/audiotest"
	"github.com/ik5/audconv/internal/metrics"
	"github.com/ik5/audconv/library"
	"github.com/ik5/audconv/storage"
	"github.com/ik5/audconv/storage/memstore"
)

type fixture struct {
	srv     *Server
	handler http.Handler
	objects *memstore.Objects
	reg     *prometheus.Registry
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	reg := prometheus.NewRegistry()
	m := metrics.NewMetrics(reg)
	native := codec.NewNative(nil)
	objs := memstore.NewObjects()
	lib := library.New(objs, memstore.NewRecords(), library.WithCodec(native))
	p := audconv.New(native, audconv.WithObserver(m.ObserveStage))

	srv := New(Config{
		CORSOrigin:    "*",
		Limits:        audconv.Limits{MaxSampleRate: 96000, MaxBytes: 1 << 20},
		MaxConcurrent: 2,
		CodecName:     native.Name(),
	}, nil, p, lib, m, reg)

	return &fixture{srv: srv, handler: srv.Handler(), objects: objs, reg: reg}
}

func toneWAV(t *testing.T) []byte {
	t.Helper()

	buf, err := audio.Quantize(&audio.Buffer{
		Samples:    audiotest.Sine(16000, 8000, 400, 0.5),
		SampleRate: 16000,
	}, audio.Depth16)
	require.NoError(t, err)

	var out bytes.Buffer
	require.NoError(t, wav.Encode(&out, buf))
	return out.Bytes()
}

func multipartBody(t *testing.T, file []byte, filename string, fields map[string]string) (*bytes.Buffer, string) {
	t.Helper()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	if file != nil {
		fw, err := mw.CreateFormFile("audio_file", filename)
		require.NoError(t, err)
		_, err = fw.Write(file)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	return &body, mw.FormDataContentType()
}

func (f *fixture) do(t *testing.T, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func (f *fixture) upload(t *testing.T, file []byte, fields map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	body, ct := multipartBody(t, file, "tone.wav", fields)
	req := httptest.NewRequest(http.MethodPost, "/api/upload_audio", body)
	req.Header.Set("Content-Type", ct)
	return f.do(t, req)
}

func decodeJSON[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestUploadListDownloadDelete(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	rec := f.upload(t, toneWAV(t), map[string]string{
		"sample_rate":   "8000",
		"bit_depth":     "8",
		"export_format": "wav",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))

	up := decodeJSON[uploadResponse](t, rec)
	assert.NotEmpty(t, up.ID)
	assert.Equal(t, 8000, up.SampleRate)
	assert.Equal(t, 16000, up.SourceSampleRate)
	assert.Equal(t, "8", up.BitDepth)
	assert.Equal(t, "audio/wav", up.ProcessedAudioMimetype)
	assert.Equal(t, "tone_processed.wav", up.DownloadFilename)
	assert.InDelta(t, 0.5, up.DurationSeconds, 1e-9)
	assert.Equal(t, up.OriginalSpectrum.Len(), len(up.OriginalSpectrum.Magnitudes))
	assert.LessOrEqual(t, up.ProcessedSpectrum.Len(), 512)
	assert.Contains(t, up.DownloadURL, up.ID)

	audioBytes, err := base64.StdEncoding.DecodeString(up.ProcessedAudioBase64)
	require.NoError(t, err)
	assert.Equal(t, "RIFF", string(audioBytes[:4]))
	assert.Len(t, audioBytes, 44+4000)

	// Listing
	rec = f.do(t, httptest.NewRequest(http.MethodGet, "/api/library", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	list := decodeJSON[[]storage.Record](t, rec)
	require.Len(t, list, 1)
	assert.Equal(t, up.ID, list[0].ID)
	assert.Equal(t, "tone.wav", list[0].OriginalFilename)

	rec = f.do(t, httptest.NewRequest(http.MethodGet, "/api/library/"+up.ID, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	one := decodeJSON[storage.Record](t, rec)
	assert.Equal(t, 8000, one.SampleRate)

	// Download
	rec = f.do(t, httptest.NewRequest(http.MethodGet, up.DownloadURL, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "audio/wav", rec.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename=tone_processed.wav`, rec.Header().Get("Content-Disposition"))
	assert.Equal(t, audioBytes, rec.Body.Bytes())

	// Delete
	rec = f.do(t, httptest.NewRequest(http.MethodDelete, "/api/delete_audio/"+up.ID, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, up.ID, decodeJSON[deleteResponse](t, rec).Deleted)
	assert.Equal(t, 0, f.objects.Len())

	rec = f.do(t, httptest.NewRequest(http.MethodDelete, "/api/delete_audio/"+up.ID, nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, failure.NotFound, decodeJSON[errorBody](t, rec).Kind)
}

func TestUploadValidation(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	rec := f.upload(t, nil, map[string]string{"sample_rate": "abc", "bit_depth": "12", "export_format": "ogg"})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	body := decodeJSON[errorBody](t, rec)
	assert.Equal(t, failure.InvalidRequest, body.Kind)
	var fields []string
	for _, fe := range body.Fields {
		fields = append(fields, fe.Field)
	}
	assert.Equal(t, []string{"audio_file", "sample_rate", "bit_depth", "export_format"}, fields)
}

func TestUploadFailures(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		file   []byte
		fields map[string]string
		status int
		kind   failure.Kind
		stage  string
	}{
		{"empty file", []byte{}, nil, http.StatusUnprocessableEntity, failure.CorruptInput, "decoded"},
		{"not audio", []byte("just some text, not a waveform"), nil, http.StatusUnsupportedMediaType, failure.UnsupportedFormat, "decoded"},
		{"mp3 without ffmpeg", nil, map[string]string{"export_format": "mp3"}, http.StatusInternalServerError, failure.EncodeFailure, "encoded"},
		{"rate above limit", nil, map[string]string{"sample_rate": "192000"}, http.StatusBadRequest, failure.InvalidRequest, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			f := newFixture(t)

			file := tt.file
			if file == nil {
				file = toneWAV(t)
			}
			body, ct := multipartBody(t, file, "clip.bin", tt.fields)
			req := httptest.NewRequest(http.MethodPost, "/api/upload_audio", body)
			req.Header.Set("Content-Type", ct)
			rec := f.do(t, req)

			require.Equal(t, tt.status, rec.Code, rec.Body.String())
			eb := decodeJSON[errorBody](t, rec)
			assert.Equal(t, tt.kind, eb.Kind)
			assert.Equal(t, tt.stage, eb.Stage)
			assert.NotEmpty(t, eb.Detail)
			assert.Equal(t, 0, f.objects.Len())
		})
	}
}

func TestUploadTooLarge(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	rec := f.upload(t, make([]byte, 3<<20), nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, failure.InvalidRequest, decodeJSON[errorBody](t, rec).Kind)
	assert.Equal(t, 0, f.objects.Len())
}

func TestUploadNotMultipart(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	req := httptest.NewRequest(http.MethodPost, "/api/upload_audio", strings.NewReader(`{"audio":"x"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := f.do(t, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, failure.InvalidRequest, decodeJSON[errorBody](t, rec).Kind)
}

var (
	errDB    = errors.New("db down")
	errStore = errors.New("s3 down")
)

// brokenRecords refuses every insert.
type brokenRecords struct{ *memstore.Records }

func (brokenRecords) Insert(context.Context, storage.Record) (string, error) { return "", errDB }

// stickyObjects stores objects but cannot delete them.
type stickyObjects struct{ *memstore.Objects }

func (stickyObjects) Delete(context.Context, string) error { return errStore }

func TestUploadOrphanedObjectIsReported(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		sticky  bool
		removed bool
		left    int
	}{
		{"object cleaned up", false, true, 0},
		{"object left behind", true, false, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			objs := memstore.NewObjects()
			var store storage.ObjectStore = objs
			if tt.sticky {
				store = stickyObjects{objs}
			}
			lib := library.New(store, brokenRecords{memstore.NewRecords()})
			srv := New(Config{}, nil, audconv.New(codec.NewNative(nil)), lib, nil, prometheus.NewRegistry())

			body, ct := multipartBody(t, toneWAV(t), "tone.wav", nil)
			req := httptest.NewRequest(http.MethodPost, "/api/upload_audio", body)
			req.Header.Set("Content-Type", ct)
			rec := httptest.NewRecorder()
			srv.Handler().ServeHTTP(rec, req)

			require.Equal(t, http.StatusInternalServerError, rec.Code)
			eb := decodeJSON[errorBody](t, rec)
			assert.Equal(t, failure.StorageFailure, eb.Kind)
			assert.Equal(t, "db down", eb.Detail)
			assert.True(t, strings.HasSuffix(eb.OrphanedKey, ".wav"), eb.OrphanedKey)
			require.NotNil(t, eb.ObjectRemoved)
			assert.Equal(t, tt.removed, *eb.ObjectRemoved)
			assert.Equal(t, tt.left, objs.Len())
		})
	}
}

func TestUploadStoreFailureWithoutOrphan(t *testing.T) {
	t.Parallel()

	eb := bodyOf(&failure.Error{Kind: failure.StorageFailure, Op: "library save", Detail: "disk full"})
	assert.Equal(t, "disk full", eb.Detail)
	assert.Empty(t, eb.OrphanedKey)
	assert.Nil(t, eb.ObjectRemoved)
}

func TestDeletePartial(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	up := decodeJSON[uploadResponse](t, f.upload(t, toneWAV(t), nil))

	// Lose the object behind the library's back.
	require.NoError(t, f.objects.Delete(context.Background(), up.ID+".wav"))

	rec := f.do(t, httptest.NewRequest(http.MethodDelete, "/api/delete_audio/"+up.ID, nil))
	require.Equal(t, http.StatusMultiStatus, rec.Code)
	resp := decodeJSON[deleteResponse](t, rec)
	assert.Equal(t, up.ID, resp.Deleted)
	assert.Equal(t, "object", resp.Missing)
	require.NotNil(t, resp.Warning)
	assert.Equal(t, failure.NotFound, resp.Warning.Kind)

	rec = f.do(t, httptest.NewRequest(http.MethodGet, "/api/library/"+up.ID, nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDeleteStrayObject(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	id := "0b9e4a1c-5d2f-4e3a-8b7c-6d5e4f3a2b1c"
	_, err := f.objects.Put(context.Background(), id+".wav", toneWAV(t), "audio/wav")
	require.NoError(t, err)

	rec := f.do(t, httptest.NewRequest(http.MethodDelete, "/api/delete_audio/"+id, nil))
	require.Equal(t, http.StatusMultiStatus, rec.Code)
	resp := decodeJSON[deleteResponse](t, rec)
	assert.Equal(t, "record", resp.Missing)
	assert.Equal(t, 0, f.objects.Len())

	rec = f.do(t, httptest.NewRequest(http.MethodDelete, "/api/delete_audio/"+id, nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDownloadErrors(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	rec := f.do(t, httptest.NewRequest(http.MethodGet, "/api/download_audio", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, httptest.NewRequest(http.MethodGet, "/api/download_audio?id=x&format=flac", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, failure.UnsupportedOutputFormat, decodeJSON[errorBody](t, rec).Kind)

	rec = f.do(t, httptest.NewRequest(http.MethodGet, "/api/download_audio?id=missing", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestEmptyLibraryIsArray(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	rec := f.do(t, httptest.NewRequest(http.MethodGet, "/api/library", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())
}

func TestCORSPreflight(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/upload_audio", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	rec := f.do(t, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, rec.Header().Get("Access-Control-Allow-Methods"), "DELETE")
}

func TestHealthAndMetrics(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	rec := f.do(t, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	health := decodeJSON[map[string]any](t, rec)
	assert.Equal(t, "ok", health["status"])
	assert.Equal(t, "native", health["codec"])

	rec = f.do(t, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `audconv_http_requests_total{endpoint="/health",method="GET",status_code="200"} 1`)
}

func TestStatusOf(t *testing.T) {
	t.Parallel()

	tests := []struct {
		err  error
		want int
	}{
		{failure.New(failure.InvalidRate, "", "x"), http.StatusBadRequest},
		{failure.New(failure.UnsupportedFormat, "", "x"), http.StatusUnsupportedMediaType},
		{failure.New(failure.CorruptInput, "", "x"), http.StatusUnprocessableEntity},
		{failure.New(failure.NotFound, "", "x"), http.StatusNotFound},
		{failure.New(failure.ExternalToolFailure, "", "x"), http.StatusBadGateway},
		{failure.New(failure.StorageFailure, "", "x"), http.StatusInternalServerError},
		{&audconv.StageError{Stage: audconv.StageDecoded, Err: context.DeadlineExceeded}, http.StatusGatewayTimeout},
		{io.ErrUnexpectedEOF, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, StatusOf(tt.err), "%v", tt.err)
	}
}

func TestExternalOutputIsExposed(t *testing.T) {
	t.Parallel()

	b := bodyOf(&failure.Error{Kind: failure.ExternalToolFailure, Op: "ffmpeg", Detail: "exit status 1", Output: "Invalid data found"})
	assert.Equal(t, "Invalid data found", b.Output)
	assert.Equal(t, "exit status 1", b.Detail)
}

func TestAcquireHonoursContext(t *testing.T) {
	t.Parallel()

	srv := New(Config{MaxConcurrent: 1}, nil, nil, nil, nil, prometheus.NewRegistry())
	release, err := srv.acquire(context.Background())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = srv.acquire(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	release()
	release, err = srv.acquire(context.Background())
	require.NoError(t, err)
	release()
}

func TestStartStop(t *testing.T) {
	t.Parallel()

	srv := New(Config{Address: "127.0.0.1:0"}, nil, nil, nil, nil, prometheus.NewRegistry())
	require.NoError(t, srv.Start())

	resp, err := http.Get("http://" + srv.Addr() + "/health")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, srv.Stop(ctx))
}
