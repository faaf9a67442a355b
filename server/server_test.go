package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"blogarize/config"
	"blogarize/pipeline"
	"blogarize/progress"
	"blogarize/types"
)

type fakeRunner struct {
	ran chan pipeline.Input
}

func (f *fakeRunner) Run(_ context.Context, in pipeline.Input, tracker *progress.Tracker) (*types.Result, error) {
	result := &types.Result{Title: "My Video"}
	tracker.Complete(result, "Completed.")
	f.ran <- in
	return result, nil
}

func newTestServer(t *testing.T) (*Server, *progress.Registry, *fakeRunner) {
	t.Helper()
	cfg := config.Default()
	cfg.Paths.Uploads = t.TempDir()
	registry := progress.NewRegistry()
	runner := &fakeRunner{ran: make(chan pipeline.Input, 1)}
	return New(cfg, registry, runner), registry, runner
}

func multipartBody(t *testing.T, fields map[string]string, fileName string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	if fileName != "" {
		fw, err := w.CreateFormFile("mp4_upload", fileName)
		require.NoError(t, err)
		_, err = fw.Write([]byte("video-bytes"))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return &buf, w.FormDataContentType()
}

func TestSubmitLinkAccepted(t *testing.T) {
	s, registry, runner := newTestServer(t)
	body, contentType := multipartBody(t, map[string]string{
		"youtube_link": "https://www.youtube.com/watch?v=abc123",
	}, "")

	req := httptest.NewRequest("POST", "/api/v1/jobs", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusAccepted, rec.Code)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "accepted", resp["status"])
	require.NotEmpty(t, resp["job_id"])

	_, ok := registry.Get(resp["job_id"])
	assert.True(t, ok, "a tracker exists as soon as the job is accepted")

	select {
	case in := <-runner.ran:
		assert.Equal(t, "https://www.youtube.com/watch?v=abc123", in.Link)
		assert.Nil(t, in.Upload)
	case <-time.After(2 * time.Second):
		t.Fatal("runner was never invoked")
	}
}

func TestSubmitUploadAccepted(t *testing.T) {
	s, _, runner := newTestServer(t)
	body, contentType := multipartBody(t, map[string]string{"mp4_size": "11"}, "my_video.mp4")

	req := httptest.NewRequest("POST", "/api/v1/jobs", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusAccepted, rec.Code)

	select {
	case in := <-runner.ran:
		assert.Equal(t, "my_video.mp4", in.UploadName)
		assert.Equal(t, int64(11), in.UploadSize)
		data, err := io.ReadAll(in.Upload)
		require.NoError(t, err)
		assert.Equal(t, "video-bytes", string(data))
	case <-time.After(2 * time.Second):
		t.Fatal("runner was never invoked")
	}
}

func TestSubmitBothInputsRejected(t *testing.T) {
	s, _, runner := newTestServer(t)
	body, contentType := multipartBody(t, map[string]string{
		"youtube_link": "https://www.youtube.com/watch?v=abc123",
	}, "my_video.mp4")

	req := httptest.NewRequest("POST", "/api/v1/jobs", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "only one input")
	assert.Empty(t, runner.ran, "no job starts on an invalid submission")
}

func TestSubmitNeitherInputRejected(t *testing.T) {
	s, _, _ := newTestServer(t)
	body, contentType := multipartBody(t, map[string]string{}, "")

	req := httptest.NewRequest("POST", "/api/v1/jobs", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSubmitRejectsNonMP4Upload(t *testing.T) {
	s, _, _ := newTestServer(t)
	body, contentType := multipartBody(t, nil, "document.pdf")

	req := httptest.NewRequest("POST", "/api/v1/jobs", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), ".mp4")
}

func TestSubmitRejectsMalformedLink(t *testing.T) {
	s, _, _ := newTestServer(t)
	body, contentType := multipartBody(t, map[string]string{"youtube_link": "not a url"}, "")

	req := httptest.NewRequest("POST", "/api/v1/jobs", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestJobSnapshot(t *testing.T) {
	s, registry, _ := newTestServer(t)
	tracker := registry.Create("job-1")
	tracker.Advance(types.StateTranscribed, "Transcription complete. Moving on to summarization.")

	req := httptest.NewRequest("GET", "/api/v1/jobs/job-1", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var snap progress.Snapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snap))
	assert.Equal(t, types.StateTranscribed, snap.State)
	assert.Equal(t, 37.5, snap.Progress)
}

func TestJobNotFound(t *testing.T) {
	s, _, _ := newTestServer(t)

	req := httptest.NewRequest("GET", "/api/v1/jobs/nope", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	req = httptest.NewRequest("GET", "/api/v1/jobs/nope/progress", nil)
	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestProgressStreamEndsOnCompletion(t *testing.T) {
	s, registry, _ := newTestServer(t)
	tracker := registry.Create("job-1")
	tracker.Complete(&types.Result{Title: "My Video"}, "Completed.")

	req := httptest.NewRequest("GET", "/api/v1/jobs/job-1/progress", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))

	events := strings.Split(strings.TrimSpace(rec.Body.String()), "\n\n")
	require.NotEmpty(t, events)
	for _, ev := range events {
		require.True(t, strings.HasPrefix(ev, "data: "))
		var update progress.Update
		require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(ev, "data: ")), &update))
		assert.Equal(t, 100.0, update.Progress)
		assert.Equal(t, "Completed.", update.CurrentStep)
	}
}

func TestProgressStreamEndsOnDisconnect(t *testing.T) {
	s, registry, _ := newTestServer(t)
	tracker := registry.Create("job-1")
	tracker.Advance(types.StateDownloaded, "YouTube video downloaded. Converting to audio...")

	ctx, cancel := context.WithCancel(context.Background())
	req := httptest.NewRequest("GET", "/api/v1/jobs/job-1/progress", nil).WithContext(ctx)
	rec := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		s.Handler().ServeHTTP(rec, req)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("handler did not stop after client disconnect")
	}
	assert.Contains(t, rec.Body.String(), "data: ")
}

func TestDownloadServesArtifact(t *testing.T) {
	s, _, _ := newTestServer(t)
	require.NoError(t, os.WriteFile(filepath.Join(s.cfg.Paths.Uploads, "my_video-blog.html"), []byte("<h1>Hi</h1>"), 0644))

	req := httptest.NewRequest("GET", "/download/my_video-blog.html", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "<h1>Hi</h1>", rec.Body.String())
}

func TestDownloadMissingFile(t *testing.T) {
	s, _, _ := newTestServer(t)

	req := httptest.NewRequest("GET", "/download/absent.html", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHealthz(t *testing.T) {
	s, _, _ := newTestServer(t)

	req := httptest.NewRequest("GET", "/healthz", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}
