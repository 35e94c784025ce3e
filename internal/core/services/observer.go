package services

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/hiveboard/taskboard-backend/internal/core/domain"
	apperrors "github.com/hiveboard/taskboard-backend/internal/core/errors"
	"github.com/hiveboard/taskboard-backend/internal/core/ports"
)

// WatcherState is the lifecycle state of one collection watcher.
type WatcherState string

const (
	WatcherIdle         WatcherState = "idle"
	WatcherWatching     WatcherState = "watching"
	WatcherReconnecting WatcherState = "reconnecting"
	WatcherFailed       WatcherState = "failed"
)

// ObserverConfig tunes the change observer.
type ObserverConfig struct {
	// BatchSize caps how many feed rows are read per iteration.
	BatchSize int
	// PollInterval bounds how long a watcher sleeps when the feed's
	// wakeup channel is quiet; a safety net against missed notifies.
	PollInterval time.Duration
	// BackoffBase is the first reconnect delay; it doubles per
	// consecutive failure up to BackoffMax.
	BackoffBase time.Duration
	BackoffMax  time.Duration
	// MaxFailures is the number of consecutive failed reconnect
	// attempts before the watcher gives up and transitions to Failed.
	MaxFailures int
}

// DefaultObserverConfig returns production defaults.
func DefaultObserverConfig() ObserverConfig {
	return ObserverConfig{
		BatchSize:    100,
		PollInterval: 5 * time.Second,
		BackoffBase:  250 * time.Millisecond,
		BackoffMax:   30 * time.Second,
		MaxFailures:  10,
	}
}

// ChangeObserver runs one independent watcher per collection. Each
// watcher resumes from its durable cursor, reads committed mutations
// from the change feed, composes them, and hands them to the
// broadcaster. Delivery downstream is at-least-once: a crash between
// broadcast and cursor save replays rows on restart, and the composer
// and clients tolerate the duplicates.
type ChangeObserver struct {
	feed        ports.ChangeFeed
	cursors     ports.CursorStore
	composer    ports.EventComposer
	broadcaster ports.EventBroadcaster
	cfg         ObserverConfig
	logger      *slog.Logger

	mu     sync.RWMutex
	states map[domain.Collection]WatcherState
}

// NewChangeObserver creates a new change observer.
func NewChangeObserver(
	feed ports.ChangeFeed,
	cursors ports.CursorStore,
	composer ports.EventComposer,
	broadcaster ports.EventBroadcaster,
	cfg ObserverConfig,
	logger *slog.Logger,
) *ChangeObserver {
	states := make(map[domain.Collection]WatcherState, len(domain.Collections))
	for _, collection := range domain.Collections {
		states[collection] = WatcherIdle
	}
	return &ChangeObserver{
		feed:        feed,
		cursors:     cursors,
		composer:    composer,
		broadcaster: broadcaster,
		cfg:         cfg,
		logger:      logger.With("component", "change_observer"),
		states:      states,
	}
}

// State returns the current state of a collection's watcher.
func (o *ChangeObserver) State(collection domain.Collection) WatcherState {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.states[collection]
}

// States returns a snapshot of every watcher's state, keyed by
// collection name.
func (o *ChangeObserver) States() map[string]string {
	o.mu.RLock()
	defer o.mu.RUnlock()

	states := make(map[string]string, len(o.states))
	for collection, state := range o.states {
		states[string(collection)] = string(state)
	}
	return states
}

func (o *ChangeObserver) setState(collection domain.Collection, state WatcherState) {
	o.mu.Lock()
	o.states[collection] = state
	o.mu.Unlock()
}

// Run starts one watcher goroutine per collection and blocks until all
// of them stop. Watchers share no mutable state with each other; a
// watcher entering Failed does not affect its siblings.
func (o *ChangeObserver) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for _, collection := range domain.Collections {
		wg.Add(1)
		go func(collection domain.Collection) {
			defer wg.Done()
			o.watch(ctx, collection)
		}(collection)
	}
	wg.Wait()
}

// watch is the per-collection loop: Idle -> Watching, self-looping on
// notifications, Reconnecting with exponential backoff on feed errors,
// Failed after bounded retries.
func (o *ChangeObserver) watch(ctx context.Context, collection domain.Collection) {
	logger := o.logger.With("collection", string(collection))

	cursor, err := o.cursors.Load(ctx, collection)
	if err != nil {
		logger.Error("failed to load resume cursor, watcher not started", "error", err)
		o.setState(collection, WatcherFailed)
		return
	}

	o.setState(collection, WatcherWatching)
	logger.Info("watcher started", "cursor", cursor)

	failures := 0
	for {
		if ctx.Err() != nil {
			o.setState(collection, WatcherIdle)
			return
		}

		advanced, err := o.drain(ctx, collection, &cursor)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				o.setState(collection, WatcherIdle)
				return
			}

			failures++
			if failures >= o.cfg.MaxFailures {
				o.setState(collection, WatcherFailed)
				logger.Error("watcher failed, giving up",
					"error", err,
					"failures", failures,
					"cursor", cursor,
				)
				return
			}

			o.setState(collection, WatcherReconnecting)
			delay := o.backoff(failures)
			logger.Warn("feed error, reconnecting",
				"error", err,
				"failures", failures,
				"retry_in", delay,
			)
			if !sleepCtx(ctx, delay) {
				o.setState(collection, WatcherIdle)
				return
			}
			continue
		}

		if failures > 0 {
			logger.Info("watcher recovered", "cursor", cursor)
		}
		failures = 0
		o.setState(collection, WatcherWatching)

		if advanced {
			// More rows may be pending; read again immediately.
			continue
		}

		// Quiet feed: block on a wakeup, bounded by the poll interval.
		waitCtx, cancel := context.WithTimeout(ctx, o.cfg.PollInterval)
		err = o.feed.WaitForChange(waitCtx)
		cancel()
		if err != nil && !errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, context.Canceled) {
			failures++
			o.setState(collection, WatcherReconnecting)
			if !sleepCtx(ctx, o.backoff(failures)) {
				o.setState(collection, WatcherIdle)
				return
			}
		}
	}
}

// drain reads one batch past the cursor, composes and broadcasts each
// row, then durably saves the new cursor. Returns whether the cursor
// advanced.
func (o *ChangeObserver) drain(ctx context.Context, collection domain.Collection, cursor *int64) (bool, error) {
	changes, err := o.feed.ReadAfter(ctx, collection, *cursor, o.cfg.BatchSize)
	if err != nil {
		return false, err
	}
	if len(changes) == 0 {
		return false, nil
	}

	for _, change := range changes {
		event, err := o.composer.Compose(ctx, change)
		if err != nil {
			// Context-resolution misses are logged by the composer
			// and must not stall the pipeline.
			if errors.Is(err, apperrors.ErrRouteUnresolved) {
				continue
			}
			return false, err
		}
		if err := o.broadcaster.Broadcast(event); err != nil {
			o.logger.Warn("broadcast failed",
				"collection", collection,
				"feed_position", change.ID,
				"error", err,
			)
		}
	}

	*cursor = changes[len(changes)-1].ID
	if err := o.cursors.Save(ctx, collection, *cursor); err != nil {
		return false, err
	}
	return true, nil
}

func (o *ChangeObserver) backoff(failures int) time.Duration {
	delay := o.cfg.BackoffBase << (failures - 1)
	if delay > o.cfg.BackoffMax || delay <= 0 {
		delay = o.cfg.BackoffMax
	}
	return delay
}

// sleepCtx sleeps for d, returning false if ctx ended first.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
