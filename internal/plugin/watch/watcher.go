// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package watch turns filesystem changes in the units directory into
// registry reloads.
package watch

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/samber/oops"
)

// DefaultDebounce coalesces the event bursts editors produce on save.
const DefaultDebounce = 100 * time.Millisecond

// Target applies a change for one unit name. A missing source means unload.
type Target interface {
	ReloadIfChanged(ctx context.Context, name string) (bool, error)
}

// Resolver maps paths in the watched directory to unit names.
type Resolver interface {
	Path() string
	NameFor(path string) (string, bool)
}

// Watcher observes a single directory, non-recursively.
type Watcher struct {
	target   Target
	resolver Resolver
	debounce time.Duration
	logger   *slog.Logger
	notify   func(name string, changed bool, err error)

	fsw      *fsnotify.Watcher
	cancel   context.CancelFunc
	loopDone chan struct{}

	mu     sync.Mutex
	timers map[string]*time.Timer
	closed bool
	wg     sync.WaitGroup
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithDebounce sets the quiet period before a change is applied. Zero
// applies every event immediately.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) {
		w.debounce = d
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(w *Watcher) {
		w.logger = l
	}
}

// WithNotify registers a callback run after each applied change.
func WithNotify(fn func(name string, changed bool, err error)) Option {
	return func(w *Watcher) {
		w.notify = fn
	}
}

// New creates a watcher. Call Start to begin watching.
func New(target Target, resolver Resolver, opts ...Option) *Watcher {
	w := &Watcher{
		target:   target,
		resolver: resolver,
		debounce: DefaultDebounce,
		logger:   slog.Default(),
		timers:   make(map[string]*time.Timer),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Start begins watching. ctx bounds the reloads the watcher triggers.
func (w *Watcher) Start(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return oops.In("watch").Wrapf(err, "create watcher")
	}
	if err := fsw.Add(w.resolver.Path()); err != nil {
		_ = fsw.Close()
		return oops.In("watch").With("dir", w.resolver.Path()).Wrapf(err, "watch units dir")
	}

	ctx, cancel := context.WithCancel(ctx)
	w.fsw = fsw
	w.cancel = cancel
	w.loopDone = make(chan struct{})

	w.logger.Info("hot reload enabled", "dir", w.resolver.Path(), "debounce", w.debounce)
	go w.loop(ctx)
	return nil
}

// Close stops watching, cancels pending changes and waits for any change
// being applied.
func (w *Watcher) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	for name, t := range w.timers {
		if t.Stop() {
			w.wg.Done()
		}
		delete(w.timers, name)
	}
	w.mu.Unlock()

	var err error
	if w.fsw != nil {
		w.cancel()
		err = w.fsw.Close()
		<-w.loopDone
	}
	w.wg.Wait()
	return err
}

func (w *Watcher) loop(ctx context.Context) {
	defer close(w.loopDone)
	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handle(ctx, event)

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.Error("watcher error", "error", err)
		}
	}
}

func (w *Watcher) handle(ctx context.Context, event fsnotify.Event) {
	if event.Op == 0 {
		return
	}
	name, ok := w.resolver.NameFor(event.Name)
	if !ok {
		return
	}
	w.logger.Debug("unit source changed", "unit", name, "op", event.Op.String())

	if w.debounce <= 0 {
		w.wg.Add(1)
		defer w.wg.Done()
		w.apply(ctx, name)
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	if t, ok := w.timers[name]; ok && t.Stop() {
		w.wg.Done()
	}
	w.wg.Add(1)
	var t *time.Timer
	t = time.AfterFunc(w.debounce, func() {
		defer w.wg.Done()
		w.mu.Lock()
		if w.timers[name] == t {
			delete(w.timers, name)
		}
		w.mu.Unlock()
		w.apply(ctx, name)
	})
	w.timers[name] = t
}

func (w *Watcher) apply(ctx context.Context, name string) {
	if ctx.Err() != nil {
		return
	}
	changed, err := w.target.ReloadIfChanged(ctx, name)
	if err != nil {
		w.logger.Debug("change applied with error", "unit", name, "error", err)
	} else if changed {
		w.logger.Debug("change applied", "unit", name)
	}
	if w.notify != nil {
		w.notify(name, changed, err)
	}
}
