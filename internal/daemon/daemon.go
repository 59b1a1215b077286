package daemon

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"log/slog"

	"github.com/gofrs/flock"

	"vodmill/internal/config"
	"vodmill/internal/deps"
	"vodmill/internal/jobs"
	"vodmill/internal/logging"
	"vodmill/internal/notify"
	"vodmill/internal/workflow"
)

// Daemon owns the HTTP API server and enforces single-instance execution via
// a lock file next to the job database.
type Daemon struct {
	cfg     *config.Config
	logger  *slog.Logger
	store   *jobs.Store
	manager *workflow.Manager
	hub     *notify.Hub

	lockPath string
	lock     *flock.Flock

	api     *apiServer
	running atomic.Bool
	ctx     context.Context
	cancel  context.CancelFunc

	mu      sync.Mutex
	sources map[string]string
}

// Status represents daemon runtime information.
type Status struct {
	Running      bool
	PID          int
	JobDBPath    string
	LockFilePath string
	InFlight     int
	Jobs         map[jobs.Status]int
	Dependencies []deps.Status
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, store *jobs.Store, manager *workflow.Manager, hub *notify.Hub, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil || store == nil || manager == nil || hub == nil || logger == nil {
		return nil, errors.New("daemon requires config, store, manager, hub, and logger")
	}

	lockPath := filepath.Join(cfg.Paths.LogDir, "vodmilld.lock")
	d := &Daemon{
		cfg:      cfg,
		logger:   logging.WithComponent(logger, "daemon"),
		store:    store,
		manager:  manager,
		hub:      hub,
		lockPath: lockPath,
		lock:     flock.New(lockPath),
		sources:  make(map[string]string),
	}
	d.api = newAPIServer(cfg, d, d.logger)
	return d, nil
}

// Start acquires the daemon lock, reconciles jobs orphaned by a previous
// instance, and brings up the API listener. Reconciliation completes before
// the listener accepts traffic so clients never observe a stale processing
// status.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another vodmill daemon instance is already running")
	}

	d.ctx, d.cancel = context.WithCancel(ctx)

	recovered, err := d.store.ReconcileStuck(d.ctx)
	if err != nil {
		d.releaseLock()
		d.cancel()
		d.ctx = nil
		d.cancel = nil
		return fmt.Errorf("reconcile stuck jobs: %w", err)
	}
	if recovered > 0 {
		d.logger.Info("marked orphaned jobs as failed", logging.Int64("count", recovered))
	}

	for _, dep := range deps.Check(d.cfg) {
		if !dep.Available && !dep.Optional {
			d.logger.Warn("required dependency unavailable",
				logging.String("dependency", dep.Name),
				logging.String("detail", dep.Detail))
		}
	}

	if err := d.api.start(d.ctx); err != nil {
		d.releaseLock()
		d.cancel()
		d.ctx = nil
		d.cancel = nil
		return err
	}

	d.running.Store(true)
	d.logger.Info("vodmill daemon started",
		logging.String("lock", d.lockPath),
		logging.String("address", d.api.addr()))
	return nil
}

// Stop shuts down the API server, waits for in-flight encodes, and releases
// the daemon lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.api.stop()
	d.manager.Stop()
	d.releaseLock()
	d.ctx = nil
	d.running.Store(false)
	d.logger.Info("vodmill daemon stopped")
}

// Close stops the daemon and closes the job store.
func (d *Daemon) Close() error {
	d.Stop()
	if d.store != nil {
		return d.store.Close()
	}
	return nil
}

// Addr returns the address the API listener is bound to, or an empty string
// before Start.
func (d *Daemon) Addr() string {
	if d.api == nil {
		return ""
	}
	return d.api.addr()
}

// Status reports runtime information for the status endpoint and CLI.
func (d *Daemon) Status(ctx context.Context) Status {
	status := Status{
		Running:      d.running.Load(),
		PID:          os.Getpid(),
		JobDBPath:    d.store.Path(),
		LockFilePath: d.lockPath,
		InFlight:     d.manager.InFlight(),
		Dependencies: deps.Check(d.cfg),
	}
	counts, err := d.store.Stats(ctx)
	if err != nil {
		d.logger.Warn("job stats unavailable", logging.Error(err))
	} else {
		status.Jobs = counts
	}
	return status
}

func (d *Daemon) releaseLock() {
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
}

// rememberSource records where a job's uploaded source was staged so deletion
// can remove it. The mapping is in-memory only; after a restart, source
// cleanup for pre-existing jobs is best effort.
func (d *Daemon) rememberSource(jobID, path string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.sources[jobID] = path
}

func (d *Daemon) takeSource(jobID string) (string, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	path, ok := d.sources[jobID]
	delete(d.sources, jobID)
	return path, ok
}
