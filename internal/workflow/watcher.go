package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"

	"scenematch/internal/config"
	"scenematch/internal/fileinfo"
	"scenematch/internal/fileutil"
	"scenematch/internal/logging"
	"scenematch/internal/queue"
)

// Watcher polls the watch directory and feeds new video files through the
// processor. A file lock in the log directory enforces a single instance.
type Watcher struct {
	cfg       *config.Config
	processor *Processor
	store     *queue.Store
	logger    *slog.Logger
	lockPath  string
	lock      *flock.Flock
}

// NewWatcher constructs a watcher around an existing processor.
func NewWatcher(cfg *config.Config, processor *Processor, store *queue.Store, logger *slog.Logger) (*Watcher, error) {
	if cfg == nil || processor == nil || store == nil {
		return nil, errors.New("watcher requires config, processor, and store")
	}
	lockPath := filepath.Join(cfg.Paths.LogDir, "scenematch.lock")
	return &Watcher{
		cfg:       cfg,
		processor: processor,
		store:     store,
		logger:    logging.NewComponentLogger(logger, "watcher"),
		lockPath:  lockPath,
		lock:      flock.New(lockPath),
	}, nil
}

// Run acquires the instance lock and polls until the context is cancelled.
// Items abandoned mid-processing by a previous run are reset before the
// first scan.
func (w *Watcher) Run(ctx context.Context) error {
	ok, err := w.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another scenematch watcher is already running")
	}
	defer func() {
		if err := w.lock.Unlock(); err != nil {
			w.logger.Warn("failed to release watcher lock", logging.Error(err))
		}
	}()

	if reset, err := w.store.ResetStuck(ctx); err != nil {
		return fmt.Errorf("reset stuck items: %w", err)
	} else if reset > 0 {
		w.logger.Info("reset abandoned items", logging.Int("count", int(reset)))
	}

	interval := time.Duration(w.cfg.Workflow.PollInterval) * time.Second
	w.logger.Info("watcher started",
		logging.String("watch_dir", w.cfg.Paths.WatchDir),
		logging.String("lock", w.lockPath),
		logging.String("interval", interval.String()),
	)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		w.scanOnce(ctx)
		select {
		case <-ctx.Done():
			w.logger.Info("watcher stopped")
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// scanOnce processes every video file currently in the watch directory.
// Per-file failures are already recorded by the processor; the scan keeps
// going.
func (w *Watcher) scanOnce(ctx context.Context) {
	paths, err := fileutil.ScanFiles(w.cfg.Paths.WatchDir, fileinfo.IsVideoPath)
	if err != nil {
		w.logger.Warn("watch directory scan failed", logging.Error(err))
		return
	}
	if len(paths) == 0 {
		return
	}
	w.logger.Info("scan found files", logging.Int("count", len(paths)))
	if _, err := w.processor.ProcessBatch(ctx, paths); err != nil {
		w.logger.Warn("scan finished with failures", logging.Error(err))
	}
}
