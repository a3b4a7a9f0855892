package local

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"github.com/aretw0/lifecycle/pkg/core/worker"
	"github.com/bmatcuk/doublestar/v4"
	"github.com/fsnotify/fsnotify"
)

type watchWorker struct {
	*worker.BaseWorker
	storage *FileStorage
	pattern string
	notify  func(key string)
	watcher *fsnotify.Watcher
	delay   time.Duration
	cancel  context.CancelFunc

	mu     sync.Mutex
	timers map[string]*time.Timer
}

func newWatchWorker(s *FileStorage, pattern string, notify func(string), delay time.Duration) *watchWorker {
	return &watchWorker{
		BaseWorker: worker.NewBaseWorker("guest-storage-watcher"),
		storage:    s,
		pattern:    pattern,
		notify:     notify,
		delay:      delay,
		timers:     make(map[string]*time.Timer),
	}
}

func (w *watchWorker) Start(ctx context.Context) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}

	status := w.State().Status
	if status != worker.StatusCreated && status != worker.StatusPending {
		return fmt.Errorf("watcher already started (status: %s)", status)
	}

	if _, err := doublestar.Match(w.pattern, ""); err != nil {
		return fmt.Errorf("invalid watch pattern %q: %w", w.pattern, err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := watcher.Add(w.storage.Dir); err != nil {
		_ = watcher.Close()
		return fmt.Errorf("failed to watch %s: %w", w.storage.Dir, err)
	}
	w.watcher = watcher

	runCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel

	w.SetStatus(worker.StatusRunning)
	return w.StartFunc(runCtx, w.run)
}

func (w *watchWorker) Stop(ctx context.Context) error {
	if w.cancel != nil {
		w.StopRequested = true
		w.cancel()
	}

	return w.BaseWorker.Stop(ctx)
}

func (w *watchWorker) State() worker.State {
	return w.ExportState(func(s *worker.State) {
		s.Metadata = map[string]string{
			worker.MetadataType: string(worker.TypeGoroutine),
			"pattern":           w.pattern,
		}
	})
}

// keyFor maps a filesystem event to a storage key, or "" when it is irrelevant
// (temp files from atomic writes, other extensions, non-matching keys).
func (w *watchWorker) keyFor(event fsnotify.Event) string {
	base := filepath.Base(event.Name)
	if strings.HasPrefix(base, TempFilePrefix) || filepath.Ext(base) != blobExt {
		return ""
	}
	key := strings.TrimSuffix(base, blobExt)
	if ok, _ := doublestar.Match(w.pattern, key); !ok {
		return ""
	}
	return key
}

// schedule coalesces bursts of events per key (write + chmod + rename).
func (w *watchWorker) schedule(ctx context.Context, key string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if t, ok := w.timers[key]; ok {
		t.Stop()
	}
	w.timers[key] = time.AfterFunc(w.delay, func() {
		w.mu.Lock()
		delete(w.timers, key)
		w.mu.Unlock()

		if ctx.Err() != nil || w.storage.isOwnWrite(key) {
			return
		}
		w.storage.logger.Debug("guest storage changed externally", "key", key)
		w.notify(key)
	})
}

func (w *watchWorker) stopTimers() {
	w.mu.Lock()
	defer w.mu.Unlock()
	for key, t := range w.timers {
		t.Stop()
		delete(w.timers, key)
	}
}

func (w *watchWorker) run(ctx context.Context) (err error) {
	logger := w.storage.logger
	defer func() {
		if recovered := recover(); recovered != nil {
			panicErr := fmt.Errorf("watcher panic: %v", recovered)
			if logger.Enabled(ctx, slog.LevelDebug) {
				logger.Error("watcher panic", "error", panicErr, "stack", string(debug.Stack()))
			} else {
				logger.Error("watcher panic", "error", panicErr)
			}
			err = panicErr
		}
	}()
	defer w.watcher.Close()
	defer w.stopTimers()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-w.watcher.Events:
			if !ok {
				if w.StopRequested || ctx.Err() != nil {
					return nil
				}
				return fmt.Errorf("watcher events channel closed")
			}
			if key := w.keyFor(event); key != "" {
				w.schedule(ctx, key)
			}

		case wErr, ok := <-w.watcher.Errors:
			if !ok {
				if w.StopRequested || ctx.Err() != nil {
					return nil
				}
				return fmt.Errorf("watcher errors channel closed")
			}
			logger.Error("fsnotify error", "error", wErr)
		}
	}
}
