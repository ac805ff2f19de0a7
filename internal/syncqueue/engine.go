package syncqueue

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"shotsync/internal/clock"
	"shotsync/internal/config"
	"shotsync/internal/logging"
	"shotsync/internal/notifications"
	"shotsync/internal/queuestore"
	"shotsync/internal/remote"
	"shotsync/internal/runstate"
)

// LiveState is the view of the project the user has open.
type LiveState interface {
	ActiveProject() string
	ShotExists(projectID, shotID string) (exists, known bool)
	ProjectName(projectID string) string
	MarkAssetHosted(ctx context.Context, projectID, shotID, url string)
}

// SnapshotSource answers shot existence from the local project snapshot.
type SnapshotSource interface {
	ShotExists(ctx context.Context, projectID, shotID string) (bool, error)
}

// Replayer drains deferred record writes once connectivity returns.
type Replayer interface {
	Replay(ctx context.Context) (int, error)
}

// HostedEvent reports an asset that is now durably stored.
type HostedEvent struct {
	TaskID    string
	ProjectID string
	ShotID    string
	URL       string
	Migration bool
}

// HostedListener is called after a shot's asset has been uploaded.
type HostedListener func(ctx context.Context, event HostedEvent)

// Settings are the engine's timing and sizing knobs.
type Settings struct {
	DrainInterval  time.Duration
	BatchSize      int
	MaxRetries     int
	BackoffBase    time.Duration
	BackoffMax     time.Duration
	TaskTimeout    time.Duration
	QuiescentDelay time.Duration
}

// SettingsFromConfig reads Settings from the [sync] section.
func SettingsFromConfig(cfg *config.Config) Settings {
	return Settings{
		DrainInterval:  cfg.DrainInterval(),
		BatchSize:      cfg.Sync.BatchSize,
		MaxRetries:     cfg.Sync.MaxRetries,
		BackoffBase:    cfg.BackoffBase(),
		BackoffMax:     cfg.BackoffMax(),
		TaskTimeout:    cfg.TaskTimeout(),
		QuiescentDelay: cfg.QuiescentDelay(),
	}
}

// Deps are the collaborators the engine consumes. Live, Snapshots, Replay,
// Notifier, Clock, and Logger are optional.
type Deps struct {
	Store     *queuestore.Store
	Records   remote.RecordService
	Blobs     remote.BlobStore
	Live      LiveState
	Snapshots SnapshotSource
	Replay    Replayer
	Notifier  notifications.Service
	Clock     clock.Clock
	Logger    *slog.Logger
}

// Engine is the upload queue engine.
type Engine struct {
	settings  Settings
	store     *queuestore.Store
	records   remote.RecordService
	blobs     remote.BlobStore
	live      LiveState
	snapshots SnapshotSource
	replay    Replayer
	notifier  notifications.Service
	clock     clock.Clock
	logger    *slog.Logger
	newID     func() string

	mu         sync.Mutex
	tasks      []queuestore.Task
	tombstones []string
	ensured    map[string]bool
	online     bool
	holdUntil  time.Time
	replaying  bool
	listeners  []HostedListener

	drain runstate.Guard
	kick  chan struct{}

	runMu   sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// New constructs an engine. The engine starts online with an empty queue;
// call Load to restore persisted state.
func New(settings Settings, deps Deps) *Engine {
	if settings.BatchSize <= 0 {
		settings.BatchSize = 1
	}
	if settings.MaxRetries <= 0 {
		settings.MaxRetries = 1
	}
	if settings.DrainInterval <= 0 {
		settings.DrainInterval = 2 * time.Second
	}
	clk := deps.Clock
	if clk == nil {
		clk = clock.Real()
	}
	notifier := deps.Notifier
	if notifier == nil {
		notifier = notifications.NewService(&config.Config{})
	}
	return &Engine{
		settings:  settings,
		store:     deps.Store,
		records:   deps.Records,
		blobs:     deps.Blobs,
		live:      deps.Live,
		snapshots: deps.Snapshots,
		replay:    deps.Replay,
		notifier:  notifier,
		clock:     clk,
		logger:    logging.NewComponentLogger(deps.Logger, "syncqueue"),
		newID:     uuid.NewString,
		ensured:   make(map[string]bool),
		online:    true,
		kick:      make(chan struct{}, 1),
	}
}

// OnAssetHosted registers a listener for completed image uploads.
func (e *Engine) OnAssetHosted(fn HostedListener) {
	if fn == nil {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.listeners = append(e.listeners, fn)
}

// Load restores the persisted queue and tombstones. Tasks left in-progress by
// an interrupted process are returned to pending.
func (e *Engine) Load(ctx context.Context) error {
	tasks, tombstones, err := e.store.Load(ctx)
	if err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	reset := 0
	for i := range tasks {
		if tasks[i].Status == queuestore.StatusInProgress {
			tasks[i].Status = queuestore.StatusPending
			reset++
		}
	}
	e.tasks = tasks
	e.tombstones = tombstones
	if reset > 0 {
		e.logger.Info("reset interrupted uploads",
			logging.Int("count", reset),
			logging.String(logging.FieldEventType, "queue_recovered"),
		)
		return e.store.SaveAll(ctx, e.tasks, e.tombstones)
	}
	return nil
}

// Start runs the drain loop in the background until Stop or ctx ends.
func (e *Engine) Start(ctx context.Context) error {
	e.runMu.Lock()
	defer e.runMu.Unlock()
	if e.running {
		return errors.New("upload queue already running")
	}
	runCtx, cancel := context.WithCancel(ctx)
	e.cancel = cancel
	e.running = true
	e.wg.Add(1)
	go e.run(runCtx)
	return nil
}

// Stop prevents new drain passes and waits for the loop to exit. A pass that
// is already transferring is allowed to finish.
func (e *Engine) Stop() {
	e.runMu.Lock()
	if !e.running {
		e.runMu.Unlock()
		return
	}
	cancel := e.cancel
	e.running = false
	e.cancel = nil
	e.runMu.Unlock()

	cancel()
	e.wg.Wait()
}

// Kick requests a drain pass as soon as the loop is free.
func (e *Engine) Kick() {
	select {
	case e.kick <- struct{}{}:
	default:
	}
}

func (e *Engine) run(ctx context.Context) {
	defer e.wg.Done()
	ticker := e.clock.NewTicker(e.settings.DrainInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C():
		case <-e.kick:
		}
		if ctx.Err() != nil {
			return
		}
		e.DrainOnce(context.WithoutCancel(ctx))
	}
}

// Online reports the current connectivity flag.
func (e *Engine) Online() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.online
}

// SetOnline records a connectivity transition. Going offline suspends drain
// passes. Coming back online replays deferred record writes first; when any
// were applied, asset drains wait for the quiescent delay before resuming.
func (e *Engine) SetOnline(ctx context.Context, online bool) {
	e.mu.Lock()
	was := e.online
	e.online = online
	if online && !was {
		e.replaying = true
	}
	e.mu.Unlock()

	if was == online {
		return
	}
	if !online {
		e.logger.Info("connectivity lost; upload drains suspended",
			logging.String(logging.FieldEventType, "connectivity_offline"),
		)
		return
	}

	e.logger.Info("connectivity restored",
		logging.String(logging.FieldEventType, "connectivity_online"),
	)
	applied := 0
	if e.replay != nil {
		n, err := e.replay.Replay(ctx)
		applied = n
		if err != nil {
			logging.WarnWithContext(e.logger, "replay of deferred record writes incomplete",
				"replay_failed", append(logging.ErrorAttrs(err), logging.Int("applied", n))...)
		}
	}

	e.mu.Lock()
	e.replaying = false
	if applied > 0 && e.settings.QuiescentDelay > 0 {
		e.holdUntil = e.clock.Now().Add(e.settings.QuiescentDelay)
	}
	e.mu.Unlock()

	if applied > 0 && e.settings.QuiescentDelay > 0 {
		e.clock.AfterFunc(e.settings.QuiescentDelay, e.Kick)
		return
	}
	e.Kick()
}
