package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"blogarize/config"
	"blogarize/pipeline"
	"blogarize/progress"
	"blogarize/types"
)

// Runner is the slice of the pipeline the server needs.
type Runner interface {
	Run(ctx context.Context, in pipeline.Input, tracker *progress.Tracker) (*types.Result, error)
}

// Server exposes the pipeline over HTTP: submit a job, poll its progress,
// fetch its artifacts.
type Server struct {
	cfg      *config.Config
	registry *progress.Registry
	runner   Runner
	validate *validator.Validate
	mux      *http.ServeMux
}

// submitForm mirrors the original submission form fields.
type submitForm struct {
	YouTubeLink string `validate:"omitempty,url"`
	UploadName  string
	UploadSize  int64 `validate:"min=0"`
}

func New(cfg *config.Config, registry *progress.Registry, runner Runner) *Server {
	s := &Server{
		cfg:      cfg,
		registry: registry,
		runner:   runner,
		validate: validator.New(),
		mux:      http.NewServeMux(),
	}
	s.mux.HandleFunc("POST /api/v1/jobs", s.handleSubmit)
	s.mux.HandleFunc("GET /api/v1/jobs/{id}", s.handleJob)
	s.mux.HandleFunc("GET /api/v1/jobs/{id}/progress", s.handleProgress)
	s.mux.HandleFunc("GET /download/{filename}", s.handleDownload)
	s.mux.HandleFunc("GET /healthz", s.handleHealth)
	return s
}

func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) Start() error {
	log.Printf("[server] listening on %s", s.cfg.Server.Addr)
	return http.ListenAndServe(s.cfg.Server.Addr, s.mux)
}

// handleSubmit accepts a multipart form with either a youtube_link field or
// an mp4_upload file (with its client-declared mp4_size). Supplying both or
// neither is a client error and no stage executes.
func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(512 << 20); err != nil {
		httpError(w, http.StatusBadRequest, "invalid multipart form: %v", err)
		return
	}

	form := submitForm{YouTubeLink: strings.TrimSpace(r.FormValue("youtube_link"))}

	var upload []byte
	file, header, err := r.FormFile("mp4_upload")
	switch {
	case err == nil:
		defer file.Close()
		upload, err = io.ReadAll(file)
		if err != nil {
			httpError(w, http.StatusBadRequest, "could not read upload: %v", err)
			return
		}
		form.UploadName = header.Filename
	case err == http.ErrMissingFile:
		// link-only submission
	default:
		httpError(w, http.StatusBadRequest, "invalid upload: %v", err)
		return
	}

	if sizeStr := r.FormValue("mp4_size"); sizeStr != "" {
		form.UploadSize, err = strconv.ParseInt(sizeStr, 10, 64)
		if err != nil {
			httpError(w, http.StatusBadRequest, "invalid mp4_size: %v", err)
			return
		}
	}

	if (form.YouTubeLink != "") == (upload != nil) {
		httpError(w, http.StatusBadRequest, "please provide only one input: either a YouTube link or an MP4 file")
		return
	}
	if form.UploadName != "" && !strings.EqualFold(filepath.Ext(form.UploadName), ".mp4") {
		httpError(w, http.StatusBadRequest, "invalid file format, please upload a .mp4 file")
		return
	}
	if err := s.validate.Struct(form); err != nil {
		httpError(w, http.StatusBadRequest, "invalid submission: %v", err)
		return
	}

	in := pipeline.Input{Link: form.YouTubeLink}
	if upload != nil {
		in.Upload = bytes.NewReader(upload)
		in.UploadName = form.UploadName
		in.UploadSize = form.UploadSize
	}

	jobID := uuid.NewString()
	tracker := s.registry.Create(jobID)
	log.Printf("[server] job %s submitted (link=%t upload=%t)", jobID, in.Link != "", upload != nil)

	// The job outlives this request; progress is observed through the
	// tracker, results through the job endpoint.
	go func() {
		if _, err := s.runner.Run(context.Background(), in, tracker); err != nil {
			log.Printf("[server] job %s failed: %v", jobID, err)
		}
	}()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(map[string]string{
		"job_id": jobID,
		"status": "accepted",
	})
}

func (s *Server) handleJob(w http.ResponseWriter, r *http.Request) {
	tracker, ok := s.registry.Get(r.PathValue("id"))
	if !ok {
		httpError(w, http.StatusNotFound, "job not found")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(tracker.Snapshot())
}

// handleProgress streams the job's progress as server-sent events at a fixed
// cadence. The stream ends when the job completes or fails, or when the
// client disconnects.
func (s *Server) handleProgress(w http.ResponseWriter, r *http.Request) {
	tracker, ok := s.registry.Get(r.PathValue("id"))
	if !ok {
		httpError(w, http.StatusNotFound, "job not found")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		httpError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	emit := func() {
		data, _ := json.Marshal(tracker.Update())
		fmt.Fprintf(w, "data: %s\n\n", data)
		flusher.Flush()
	}
	emit()

	ticker := time.NewTicker(s.cfg.ProgressCadence())
	defer ticker.Stop()
	for {
		select {
		case <-r.Context().Done():
			return
		case <-tracker.Done():
			emit() // final state, then end the subscription
			return
		case <-ticker.C:
			emit()
		}
	}
}

// handleDownload serves artifacts (blog, header image, transcript) from the
// uploads directory.
func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	name := filepath.Base(r.PathValue("filename"))
	if name == "." || name == "/" {
		httpError(w, http.StatusBadRequest, "invalid filename")
		return
	}
	http.ServeFile(w, r, filepath.Join(s.cfg.Paths.Uploads, name))
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func httpError(w http.ResponseWriter, code int, format string, args ...any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": fmt.Sprintf(format, args...)})
}
