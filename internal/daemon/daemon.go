package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"

	"roost/internal/claims"
	"roost/internal/config"
	"roost/internal/fleet"
	"roost/internal/heartbeat"
	"roost/internal/locks"
	"roost/internal/logging"
	"roost/internal/notifications"
	"roost/internal/shadow"
	"roost/internal/store"
	"roost/internal/zones"
)

// Daemon owns the coordination components and enforces single-instance
// execution via a lock file.
type Daemon struct {
	cfg    *config.Config
	logger *slog.Logger

	store      *store.Resilient
	claims     *claims.Registry
	locks      *locks.Manager
	zones      *zones.Registry
	heartbeats *heartbeat.Monitor
	agents     *fleet.Registry
	shadows    *shadow.Controller
	notifier   notifications.Service

	sweepInterval time.Duration

	lockPath string
	lock     *flock.Flock

	running atomic.Bool
	ctx     context.Context
	cancel  context.CancelFunc
	done    chan struct{}
}

// Status represents daemon runtime information.
type Status struct {
	Running      bool
	PID          int
	DatabasePath string
	LockFilePath string
	Degraded     bool
}

// New constructs a daemon with all coordination components wired to the
// given backend.
func New(cfg *config.Config, backend store.Store, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil || backend == nil || logger == nil {
		return nil, errors.New("daemon requires config, store, and logger")
	}

	resilient := store.NewResilient(backend, logger)
	notifier := notifications.NewService(cfg)

	heartbeats := heartbeat.NewMonitor(
		resilient,
		logger,
		time.Duration(cfg.Coordination.HeartbeatTTLSeconds)*time.Second,
		cfg.Coordination.HistoryLimit,
	)
	agents := fleet.NewRegistry(resilient, logger)
	shadows := shadow.NewController(
		resilient,
		agents,
		heartbeats,
		notifier,
		logger,
		time.Duration(cfg.Coordination.StallThresholdMs)*time.Millisecond,
	)

	lockPath := filepath.Join(cfg.Paths.LogDir, "roostd.lock")
	return &Daemon{
		cfg:           cfg,
		logger:        logger,
		store:         resilient,
		claims:        claims.NewRegistry(resilient, logger, time.Duration(cfg.Coordination.ClaimStaleSeconds)*time.Second),
		locks:         locks.NewManager(resilient, logger),
		zones:         zones.NewRegistry(resilient, logger),
		heartbeats:    heartbeats,
		agents:        agents,
		shadows:       shadows,
		notifier:      notifier,
		sweepInterval: time.Duration(cfg.Coordination.SweepIntervalSeconds) * time.Second,
		lockPath:      lockPath,
		lock:          flock.New(lockPath),
	}, nil
}

// Start acquires the daemon lock and launches the stall sweep loop.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another roost daemon instance is already running")
	}

	d.ctx, d.cancel = context.WithCancel(ctx)
	d.done = make(chan struct{})
	go d.sweepLoop(d.ctx)

	d.running.Store(true)
	d.logger.Info("roost daemon started",
		logging.String("lock", d.lockPath),
		logging.Duration("sweep_interval", d.sweepInterval),
	)
	return nil
}

// Stop halts the sweep loop and releases the daemon lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	if d.done != nil {
		<-d.done
		d.done = nil
	}
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.ctx = nil
	d.running.Store(false)
	d.logger.Info("roost daemon stopped")
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	if d.store != nil {
		return d.store.Close()
	}
	return nil
}

func (d *Daemon) sweepLoop(ctx context.Context) {
	defer close(d.done)
	if d.sweepInterval <= 0 {
		<-ctx.Done()
		return
	}
	ticker := time.NewTicker(d.sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := d.shadows.Sweep(ctx); err != nil {
				d.logger.Error("stall sweep failed", logging.Error(err))
				if notifyErr := d.notifier.NotifyError(ctx, err, "stall sweep"); notifyErr != nil {
					d.logger.Warn("sweep failure notification failed", logging.Error(notifyErr))
				}
			}
		}
	}
}

// CheckStalls runs one on-demand stall sweep.
func (d *Daemon) CheckStalls(ctx context.Context) (shadow.SweepResult, error) {
	return d.shadows.Sweep(ctx)
}

// TestNotification triggers a test notification using the current configuration.
func (d *Daemon) TestNotification(ctx context.Context) (bool, string, error) {
	if d.cfg == nil {
		return false, "configuration unavailable", errors.New("configuration unavailable")
	}
	if strings.TrimSpace(d.cfg.Notifications.NtfyTopic) == "" {
		return false, "ntfy topic not configured", nil
	}
	if err := d.notifier.TestNotification(ctx); err != nil {
		return false, "failed to send notification", err
	}
	return true, "test notification sent", nil
}

// Status returns the current daemon status.
func (d *Daemon) Status() Status {
	return Status{
		Running:      d.running.Load(),
		PID:          os.Getpid(),
		DatabasePath: d.cfg.DatabasePath(),
		LockFilePath: d.lockPath,
		Degraded:     d.store.Degraded(),
	}
}
