package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"log/slog"

	"github.com/gorilla/mux"
	"github.com/rs/cors"

	"vodmill/internal/config"
	"vodmill/internal/jobs"
	"vodmill/internal/logging"
	"vodmill/internal/notify"
	"vodmill/internal/workflow"
)

const maxUploadMemory = 32 << 20

type apiServer struct {
	bind    string
	logger  *slog.Logger
	daemon  *Daemon
	cfg     *config.Config
	store   *jobs.Store
	manager *workflow.Manager
	hub     *notify.Hub

	listener net.Listener
	server   *http.Server
}

func newAPIServer(cfg *config.Config, d *Daemon, logger *slog.Logger) *apiServer {
	srv := &apiServer{
		bind:    strings.TrimSpace(cfg.Paths.APIBind),
		logger:  logging.WithComponent(logger, "api"),
		daemon:  d,
		cfg:     cfg,
		store:   d.store,
		manager: d.manager,
		hub:     d.hub,
	}

	router := mux.NewRouter()
	router.HandleFunc("/api/status", srv.handleStatus).Methods(http.MethodGet)
	router.HandleFunc("/api/videos", srv.handleUpload).Methods(http.MethodPost)
	router.HandleFunc("/api/videos", srv.handleList).Methods(http.MethodGet)
	router.HandleFunc("/api/videos/{id}", srv.handleGet).Methods(http.MethodGet)
	router.HandleFunc("/api/videos/{id}", srv.handleDelete).Methods(http.MethodDelete)
	router.HandleFunc("/api/events", srv.handleEvents).Methods(http.MethodGet)
	router.PathPrefix("/videos/").Handler(
		http.StripPrefix("/videos/", http.FileServer(http.Dir(cfg.Paths.OutputDir))))

	handler := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
	}).Handler(router)

	srv.server = &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return srv
}

func (s *apiServer) start(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	s.listener = listener

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("api server error", logging.Error(err))
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}()

	s.logger.Info("api server listening", logging.String("address", listener.Addr().String()))
	return nil
}

func (s *apiServer) stop() {
	if s.server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}
	if s.listener != nil {
		_ = s.listener.Close()
		s.listener = nil
	}
}

func (s *apiServer) addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

type jobPayload struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Filename  string `json:"filename"`
	Status    string `json:"status"`
	S3URL     string `json:"s3Url"`
	StreamURL string `json:"streamUrl,omitempty"`
	CreatedAt string `json:"createdAt"`
	UpdatedAt string `json:"updatedAt"`
}

type listPayload struct {
	Items    []jobPayload `json:"items"`
	Page     int          `json:"page"`
	PageSize int          `json:"pageSize"`
	Total    int          `json:"total"`
}

func (s *apiServer) jobToPayload(job jobs.Job) jobPayload {
	payload := jobPayload{
		ID:        job.ID,
		Title:     job.Title,
		Filename:  job.Filename,
		Status:    string(job.Status),
		S3URL:     job.RemoteURL,
		CreatedAt: job.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt: job.UpdatedAt.UTC().Format(time.RFC3339),
	}
	if job.Status == jobs.StatusFinished {
		payload.StreamURL = job.RemoteURL
		if payload.StreamURL == "" {
			payload.StreamURL = "/videos/" + job.ID + "/master.m3u8"
		}
	}
	return payload
}

func (s *apiServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	status := s.daemon.Status(r.Context())
	jobCounts := make(map[string]int, len(status.Jobs))
	for key, count := range status.Jobs {
		jobCounts[string(key)] = count
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"running":      status.Running,
		"pid":          status.PID,
		"jobDbPath":    status.JobDBPath,
		"lockFilePath": status.LockFilePath,
		"inFlight":     status.InFlight,
		"jobs":         jobCounts,
		"dependencies": status.Dependencies,
	})
}

func (s *apiServer) handleUpload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	file, header, err := r.FormFile("video")
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "missing video file field")
		return
	}
	defer file.Close()

	req, sourcePath, err := stageUpload(s.cfg, r, file, header)
	if err != nil {
		s.logger.Error("upload staging failed", logging.Error(err))
		s.writeError(w, http.StatusInternalServerError, "failed to store upload")
		return
	}

	// The encode must outlive the request, so Launch runs off the daemon
	// context rather than the request context.
	job, err := s.manager.Launch(s.daemon.ctx, req)
	if err != nil {
		s.logger.Error("job launch failed", logging.Error(err))
		s.writeError(w, http.StatusInternalServerError, "failed to create job")
		return
	}
	s.daemon.rememberSource(job.ID, sourcePath)

	s.logger.Info("upload accepted",
		logging.String(logging.FieldJobID, job.ID),
		logging.String("filename", job.Filename),
		logging.String("title", job.Title))
	s.writeJSON(w, http.StatusAccepted, s.jobToPayload(*job))
}

func (s *apiServer) handleList(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	opts := jobs.ListOptions{
		TitleFilter:   query.Get("title"),
		CaseSensitive: parseBool(query.Get("caseSensitive")),
	}
	if page, err := strconv.Atoi(query.Get("page")); err == nil {
		opts.Page = page
	}
	if size, err := strconv.Atoi(query.Get("pageSize")); err == nil {
		opts.PageSize = size
	}

	items, total, err := s.store.List(r.Context(), opts)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	payload := listPayload{
		Items:    make([]jobPayload, 0, len(items)),
		Page:     opts.Page,
		PageSize: opts.PageSize,
		Total:    total,
	}
	if payload.Page < 1 {
		payload.Page = 1
	}
	if payload.PageSize < 1 {
		payload.PageSize = 20
	}
	for _, job := range items {
		payload.Items = append(payload.Items, s.jobToPayload(job))
	}
	s.writeJSON(w, http.StatusOK, payload)
}

func (s *apiServer) handleGet(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	job, err := s.store.GetByID(r.Context(), id)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if job == nil {
		s.writeError(w, http.StatusNotFound, "video not found")
		return
	}
	s.writeJSON(w, http.StatusOK, s.jobToPayload(*job))
}

func (s *apiServer) handleDelete(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	job, err := s.store.GetByID(r.Context(), id)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if job == nil {
		s.writeError(w, http.StatusNotFound, "video not found")
		return
	}

	// Flag first so an in-flight encode cannot resurrect the record between
	// the DELETE below and its own terminal update.
	s.manager.MarkDeleted(id)

	if err := s.store.Delete(r.Context(), id); err != nil && !errors.Is(err, jobs.ErrNotFound) {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	removeArtifacts(s.daemon, s.manager, id, s.logger)

	s.hub.Deleted(id)
	s.logger.Info("video deleted", logging.String(logging.FieldJobID, id))
	w.WriteHeader(http.StatusNoContent)
}

func (s *apiServer) handleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		s.writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	events, cancel := s.hub.Subscribe()
	defer cancel()

	for {
		select {
		case <-r.Context().Done():
			return
		case evt, ok := <-events:
			if !ok {
				return
			}
			data, err := json.Marshal(evt)
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", evt.Kind, data)
			flusher.Flush()
		}
	}
}

func (s *apiServer) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Warn("failed to encode api response", logging.Error(err))
	}
}

func (s *apiServer) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}

func parseBool(value string) bool {
	return value == "1" || strings.EqualFold(value, "true")
}
