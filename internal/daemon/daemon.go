package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/gofrs/flock"

	"shotsync/internal/clock"
	"shotsync/internal/config"
	"shotsync/internal/devremote"
	"shotsync/internal/hydrate"
	"shotsync/internal/kvstore"
	"shotsync/internal/livestate"
	"shotsync/internal/logging"
	"shotsync/internal/notifications"
	"shotsync/internal/projectstore"
	"shotsync/internal/queuestore"
	"shotsync/internal/reconcile"
	"shotsync/internal/remote"
	"shotsync/internal/replaylog"
	"shotsync/internal/syncqueue"
)

// Option overrides a collaborator, mainly for tests.
type Option func(*options)

type options struct {
	records  remote.RecordService
	blobs    remote.BlobStore
	clock    clock.Clock
	notifier notifications.Service
}

// WithRemote replaces the file-backed remote services.
func WithRemote(records remote.RecordService, blobs remote.BlobStore) Option {
	return func(o *options) {
		o.records = records
		o.blobs = blobs
	}
}

// WithClock replaces the wall clock.
func WithClock(c clock.Clock) Option {
	return func(o *options) { o.clock = c }
}

// WithNotifier replaces the configured notification service.
func WithNotifier(n notifications.Service) Option {
	return func(o *options) { o.notifier = n }
}

// Daemon coordinates the sync engines and enforces single-instance execution.
type Daemon struct {
	cfg      *config.Config
	logger   *slog.Logger
	clock    clock.Clock
	kv       *kvstore.Store
	projects *projectstore.Store
	live     *livestate.State
	replay   *replaylog.Log
	records  *replaylog.Deferring
	blobs    remote.BlobStore
	notifier notifications.Service

	queue      *syncqueue.Engine
	reconciler *reconcile.Engine
	loader     *hydrate.Loader

	lockPath string
	lock     *flock.Flock

	openMu  sync.Mutex
	opened  bool
	running atomic.Bool
	ctx     context.Context
	cancel  context.CancelFunc
}

// Status represents daemon runtime information.
type Status struct {
	Running        bool             `json:"running"`
	Queue          syncqueue.Status `json:"queue"`
	Reconciling    bool             `json:"reconciling"`
	Hydrating      bool             `json:"hydrating"`
	ActiveProject  string           `json:"activeProject,omitempty"`
	DeferredWrites int              `json:"deferredWrites"`
	StorePath      string           `json:"storePath"`
	LockFilePath   string           `json:"lockFilePath"`
}

// New opens the local store and constructs every engine. Nothing runs until
// Open or Start.
func New(cfg *config.Config, logger *slog.Logger, opts ...Option) (*Daemon, error) {
	if cfg == nil {
		return nil, errors.New("daemon requires config")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, err
	}
	if o.records == nil || o.blobs == nil {
		records, err := devremote.NewRecords(cfg.Paths.RecordsDir)
		if err != nil {
			return nil, err
		}
		blobs, err := devremote.NewBlobs(cfg.Paths.BlobDir)
		if err != nil {
			return nil, err
		}
		o.records, o.blobs = records, blobs
	}
	if o.clock == nil {
		o.clock = clock.Real()
	}
	if o.notifier == nil {
		o.notifier = notifications.NewService(cfg)
	}

	kv, err := kvstore.Open(cfg)
	if err != nil {
		return nil, fmt.Errorf("open local store: %w", err)
	}

	d := &Daemon{
		cfg:      cfg,
		logger:   logging.NewComponentLogger(logger, "daemon"),
		clock:    o.clock,
		kv:       kv,
		projects: projectstore.New(kv),
		blobs:    o.blobs,
		notifier: o.notifier,
		lockPath: cfg.LockPath(),
		lock:     flock.New(cfg.LockPath()),
	}
	d.live = livestate.New(d.projects, logger)
	d.replay = replaylog.New(kv, o.records, logger)
	d.queue = syncqueue.New(syncqueue.SettingsFromConfig(cfg), syncqueue.Deps{
		Store:     queuestore.New(kv),
		Records:   o.records,
		Blobs:     o.blobs,
		Live:      d.live,
		Snapshots: d.projects,
		Replay:    d.replay,
		Notifier:  o.notifier,
		Clock:     o.clock,
		Logger:    logger,
	})
	d.records = replaylog.NewDeferring(o.records, d.replay, d.queue)
	d.reconciler = reconcile.New(cfg, reconcile.Deps{
		Projects: d.projects,
		Records:  d.records,
		Queue:    d.queue,
		Notifier: o.notifier,
		Logger:   logger,
	})
	d.loader = hydrate.New(hydrate.Deps{
		Projects: d.projects,
		Records:  o.records,
		Blobs:    o.blobs,
		Conn:     d.queue,
		Notifier: o.notifier,
		Logger:   logger,
	})
	return d, nil
}

// Open acquires the single-instance lock and restores the persisted queue
// without starting the drain loop.
func (d *Daemon) Open(ctx context.Context) error {
	d.openMu.Lock()
	defer d.openMu.Unlock()
	if d.opened {
		return nil
	}
	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another shotsync instance is already using this data directory")
	}
	if err := d.queue.Load(ctx); err != nil {
		_ = d.lock.Unlock()
		return fmt.Errorf("restore upload queue: %w", err)
	}
	d.opened = true
	return nil
}

// Start opens the daemon and launches the upload queue drain loop.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}
	if err := d.Open(ctx); err != nil {
		return err
	}

	d.ctx, d.cancel = context.WithCancel(ctx)
	if err := d.queue.Start(d.ctx); err != nil {
		d.cancel()
		d.ctx = nil
		d.cancel = nil
		return fmt.Errorf("start upload queue: %w", err)
	}

	d.running.Store(true)
	d.logger.Info("shotsync daemon started", logging.String("lock", d.lockPath))
	return nil
}

// Stop stops background processing. The lock stays held until Close.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.queue.Stop()
	d.ctx = nil
	d.running.Store(false)
	d.logger.Info("shotsync daemon stopped")
}

// Close stops the daemon, releases the lock, and closes the local store.
func (d *Daemon) Close() error {
	d.Stop()
	d.openMu.Lock()
	if d.opened {
		if err := d.lock.Unlock(); err != nil {
			d.logger.Warn("failed to release daemon lock", logging.Error(err))
		}
		d.opened = false
	}
	d.openMu.Unlock()
	if d.kv != nil {
		return d.kv.Close()
	}
	return nil
}

// Status returns the current daemon status.
func (d *Daemon) Status(ctx context.Context) Status {
	deferred, err := d.replay.Len(ctx)
	if err != nil {
		d.logger.Warn("read replay log failed", logging.Error(err))
	}
	return Status{
		Running:        d.running.Load(),
		Queue:          d.queue.QueueStatus(),
		Reconciling:    d.reconciler.IsSyncInProgress(),
		Hydrating:      d.loader.IsProjectLoadInProgress(),
		ActiveProject:  d.live.ActiveProject(),
		DeferredWrites: deferred,
		StorePath:      d.kv.Path(),
		LockFilePath:   d.lockPath,
	}
}

// TestNotification sends a test notification using the current configuration.
func (d *Daemon) TestNotification(ctx context.Context) (bool, string, error) {
	if strings.TrimSpace(d.cfg.Notifications.NtfyTopic) == "" {
		return false, "ntfy topic not configured", nil
	}
	if err := d.notifier.Publish(ctx, notifications.EventTestNotification, nil); err != nil {
		return false, "failed to send notification", err
	}
	return true, "test notification sent", nil
}
