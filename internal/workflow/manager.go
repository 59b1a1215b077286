package workflow

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"

	"log/slog"

	"vodmill/internal/config"
	"vodmill/internal/encoding"
	"vodmill/internal/jobs"
	"vodmill/internal/logging"
	"vodmill/internal/notify"
	"vodmill/internal/offload"
	"vodmill/internal/quality"
)

// Request describes an accepted upload handed to the orchestrator.
type Request struct {
	Title      string
	Filename   string
	SourcePath string
	Qualities  []string
}

type encodeDriver interface {
	Encode(ctx context.Context, sourcePath, outputDir string, plan encoding.Plan) error
}

type offloader interface {
	Enabled() bool
	Offload(ctx context.Context, renditionDir, sourcePath, jobID string) (offload.Result, error)
}

// Manager owns the per-job state machine: created, encoding, offloading,
// terminal-finished, terminal-failed. Each job visits a state at most once and
// runs on its own goroutine; the Job Store is the only shared mutable state.
type Manager struct {
	cfg      *config.Config
	store    *jobs.Store
	driver   encodeDriver
	uploader offloader
	hub      *notify.Hub
	logger   *slog.Logger

	mu       sync.Mutex
	inflight map[string]*inflightJob
	wg       sync.WaitGroup
}

type inflightJob struct {
	deleted bool
}

// NewManager constructs the orchestrator.
func NewManager(cfg *config.Config, store *jobs.Store, driver encodeDriver, uploader offloader, hub *notify.Hub, logger *slog.Logger) *Manager {
	if hub == nil {
		hub = notify.NewHub()
	}
	return &Manager{
		cfg:      cfg,
		store:    store,
		driver:   driver,
		uploader: uploader,
		hub:      hub,
		logger:   logging.WithComponent(logger, "workflow"),
		inflight: make(map[string]*inflightJob),
	}
}

// OutputDir returns the rendition directory for a job id.
func (m *Manager) OutputDir(jobID string) string {
	return filepath.Join(m.cfg.Paths.OutputDir, jobID)
}

// Launch creates the job record and starts the encode in the background. The
// caller gets the processing job back immediately.
func (m *Manager) Launch(ctx context.Context, req Request) (*jobs.Job, error) {
	job, err := m.store.Create(ctx, req.Title, req.Filename)
	if err != nil {
		return nil, fmt.Errorf("create job: %w", err)
	}

	m.mu.Lock()
	m.inflight[job.ID] = &inflightJob{}
	m.mu.Unlock()

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		m.run(ctx, job, req)
	}()

	return job, nil
}

// MarkDeleted flags an in-flight job so its eventual completion becomes a
// no-op against the removed record. Returns true when the job was in flight.
func (m *Manager) MarkDeleted(jobID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	state, ok := m.inflight[jobID]
	if ok {
		state.deleted = true
	}
	return ok
}

// InFlight returns the number of jobs currently processing in this instance.
func (m *Manager) InFlight() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.inflight)
}

// Stop waits for all in-flight jobs to reach a terminal state.
func (m *Manager) Stop() {
	m.wg.Wait()
}

func (m *Manager) run(ctx context.Context, job *jobs.Job, req Request) {
	defer func() {
		m.mu.Lock()
		delete(m.inflight, job.ID)
		m.mu.Unlock()
	}()

	logger := m.logger.With(logging.String(logging.FieldJobID, job.ID))
	outputDir := m.OutputDir(job.ID)

	plan := encoding.BuildPlan(quality.Catalog(), req.Qualities)
	logger.Info("job started",
		logging.String("title", job.Title),
		logging.String("source", req.SourcePath),
		logging.Int("renditions", len(plan.Renditions)),
	)

	if err := m.driver.Encode(ctx, req.SourcePath, outputDir, plan); err != nil {
		logger.Error("encode failed", logging.Error(err))
		m.finish(ctx, logger, job.ID, jobs.StatusFailed, "")
		return
	}

	remoteURL := ""
	if m.uploader != nil && m.uploader.Enabled() {
		result, err := m.uploader.Offload(ctx, outputDir, req.SourcePath, job.ID)
		if err != nil {
			// Local renditions survive a failed offload, so the job still
			// finishes with local-only access.
			logger.Warn("offload failed, keeping local renditions", logging.Error(err))
		} else {
			remoteURL = result.RemoteURL
		}
	}

	m.finish(ctx, logger, job.ID, jobs.StatusFinished, remoteURL)
}

func (m *Manager) finish(ctx context.Context, logger *slog.Logger, jobID string, status jobs.Status, remoteURL string) {
	m.mu.Lock()
	state := m.inflight[jobID]
	deleted := state != nil && state.deleted
	m.mu.Unlock()

	if deleted {
		logger.Info("job deleted mid-encode, discarding result",
			logging.String(logging.FieldEventType, "completion_discarded"))
		return
	}

	updated, err := m.store.UpdateStatus(ctx, jobID, status, remoteURL)
	if err != nil {
		if errors.Is(err, jobs.ErrNotFound) || errors.Is(err, jobs.ErrFinalized) {
			logger.Warn("job vanished before completion", logging.Error(err))
			return
		}
		logger.Error("persist job status failed", logging.Error(err))
		return
	}

	logger.Info("job finished",
		logging.String("status", string(updated.Status)),
		logging.String("remote_url", updated.RemoteURL),
	)
	m.hub.StatusChanged(updated.ID, string(updated.Status), updated.RemoteURL)
}
