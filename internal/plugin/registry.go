// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package plugin provides the unit registry: discovery, hot reload, contract
// enforcement and the active-session selection.
package plugin

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/Masterminds/semver/v3"
	"github.com/samber/oops"

	"github.com/holomush/arcade/internal/logging"
	"github.com/holomush/arcade/pkg/errutil"
)

// Loader constructs units of one runtime kind from source files.
type Loader interface {
	// Kind names the runtime (e.g. "lua").
	Kind() string
	// Extension is the handled file extension, including the dot.
	Extension() string
	// Load constructs a fresh unit from src.
	Load(ctx context.Context, src *Source) (Unit, error)
}

// Status is the result of the most recent load attempt for a name.
type Status string

// Load statuses.
const (
	StatusLoaded Status = "loaded"
	StatusFailed Status = "failed"
)

// handle pins a unit while calls are in flight so a replaced unit is only
// closed once its callers are done.
type handle struct {
	unit     Unit
	inflight sync.WaitGroup
}

type entry struct {
	current  *handle // last successful load; nil if none succeeded
	kind     string
	path     string
	digest   string
	version  string
	loadedAt time.Time
	reloads  int
	status   Status
	failure  *Diagnostic
}

// EntryInfo is a snapshot of a registry entry for inspection.
type EntryInfo struct {
	Name        string      `json:"name"`
	Status      Status      `json:"status"`
	Callable    bool        `json:"callable"`
	Kind        string      `json:"kind,omitempty"`
	Path        string      `json:"path,omitempty"`
	Digest      string      `json:"digest,omitempty"`
	Version     string      `json:"version,omitempty"`
	LoadedAt    time.Time   `json:"loaded_at,omitzero"`
	Reloads     int         `json:"reloads"`
	LastFailure *Diagnostic `json:"last_failure,omitempty"`
}

// Health summarizes the registry.
type Health struct {
	LoadedCount int
	Active      string
	HasActive   bool
}

// Registry is the authoritative map of units plus the session selection.
//
// Registry is safe for concurrent use. Map and session mutations happen
// under mu; unit calls happen outside it on a pinned handle. Loads are
// serialized by loadMu so the newest source always wins.
type Registry struct {
	dir       *Directory
	loaders   map[string]Loader
	exts      []string
	ignore    []string
	validator *Validator
	logger    *slog.Logger

	loadMu  sync.Mutex
	mu      sync.RWMutex
	entries map[string]*entry
	session Session
	closed  bool
}

// RegistryOption configures the Registry.
type RegistryOption func(*Registry)

// WithLoader registers a loader. Loaders registered first win when two
// files share a unit name.
func WithLoader(l Loader) RegistryOption {
	return func(r *Registry) {
		if _, ok := r.loaders[l.Extension()]; !ok {
			r.exts = append(r.exts, l.Extension())
		}
		r.loaders[l.Extension()] = l
	}
}

// WithIgnore replaces the ignore patterns (gobwas/glob syntax).
func WithIgnore(patterns []string) RegistryOption {
	return func(r *Registry) {
		r.ignore = patterns
	}
}

// WithValidator sets the contract validator.
func WithValidator(v *Validator) RegistryOption {
	return func(r *Registry) {
		r.validator = v
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) RegistryOption {
	return func(r *Registry) {
		r.logger = l
	}
}

// NewRegistry creates a registry for the units directory dir.
func NewRegistry(dir string, opts ...RegistryOption) (*Registry, error) {
	r := &Registry{
		loaders: make(map[string]Loader),
		ignore:  DefaultIgnore,
		entries: make(map[string]*entry),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.validator == nil {
		r.validator = NewValidator()
	}
	if r.logger == nil {
		r.logger = slog.Default()
	}

	d, err := NewDirectory(dir, r.exts, r.ignore)
	if err != nil {
		return nil, err
	}
	r.dir = d
	return r, nil
}

// Directory returns the source directory.
func (r *Registry) Directory() *Directory {
	return r.dir
}

// DiscoverAndLoadAll loads every unit source in the directory.
//
// Individual load failures are logged and recorded but do not stop the scan.
// The only error returned is for a directory that cannot be created or read.
func (r *Registry) DiscoverAndLoadAll(ctx context.Context) error {
	created, err := r.dir.Ensure()
	if err != nil {
		return err
	}
	if created {
		r.logger.Info("created units directory", "dir", r.dir.Path())
	}

	names, err := r.dir.Names()
	if err != nil {
		return err
	}

	var failed int
	for _, name := range names {
		if err := r.LoadOrReload(ctx, name); err != nil {
			failed++
			continue
		}
	}

	r.logger.Info("unit discovery complete",
		"dir", r.dir.Path(),
		"found", len(names),
		"failed", failed)
	return nil
}

// LoadOrReload constructs a fresh unit for name from its source and swaps it
// in, discarding the previous instance and its state. On failure the previous
// instance, if any, stays in place and the failure is recorded. A name with no
// source file is NotFound and leaves the registry untouched.
func (r *Registry) LoadOrReload(ctx context.Context, name string) error {
	r.loadMu.Lock()
	defer r.loadMu.Unlock()

	if r.isClosed() {
		return ErrRegistryClosed()
	}

	src, err := r.dir.Lookup(name)
	if errors.Is(err, os.ErrNotExist) {
		return ErrNotFound(name)
	}
	if err != nil {
		return r.fail(name, "", loadDiagnostic(name, "", err))
	}
	return r.load(ctx, src)
}

// ReloadIfChanged reloads name unless its source content is identical to the
// loaded instance. A missing source unloads the unit. It reports whether the
// registry changed.
func (r *Registry) ReloadIfChanged(ctx context.Context, name string) (bool, error) {
	r.loadMu.Lock()
	defer r.loadMu.Unlock()

	if r.isClosed() {
		return false, ErrRegistryClosed()
	}

	src, err := r.dir.Lookup(name)
	if errors.Is(err, os.ErrNotExist) {
		return r.unloadLocked(name) == nil, nil
	}
	if err != nil {
		return false, r.fail(name, "", loadDiagnostic(name, "", err))
	}

	r.mu.RLock()
	e, ok := r.entries[name]
	unchanged := ok && e.current != nil && e.status == StatusLoaded &&
		e.path == src.Path && e.digest == src.Digest
	r.mu.RUnlock()

	if unchanged {
		recordLoad(LoadUnchanged)
		r.logger.Debug("unit source unchanged, skipping reload", "unit", name)
		return false, nil
	}
	return true, r.load(ctx, src)
}

// Register installs an in-process unit under name, replacing any existing
// instance.
func (r *Registry) Register(name string, u Unit) error {
	r.loadMu.Lock()
	defer r.loadMu.Unlock()

	if r.isClosed() {
		return ErrRegistryClosed()
	}
	r.swap(name, u, "native", "", "", "")
	return nil
}

// Unload removes name from the registry. The session selection is left as is.
func (r *Registry) Unload(_ context.Context, name string) error {
	r.loadMu.Lock()
	defer r.loadMu.Unlock()
	return r.unloadLocked(name)
}

func (r *Registry) unloadLocked(name string) error {
	r.mu.Lock()
	e, ok := r.entries[name]
	if !ok {
		r.mu.Unlock()
		return ErrNotFound(name)
	}
	delete(r.entries, name)
	count := r.callableCountLocked()
	r.mu.Unlock()

	UnitsLoaded.Set(float64(count))
	recordLoad(LoadRemoved)
	if e.current != nil {
		r.retire(name, e.current)
	}
	r.logger.Info("unloaded unit", "unit", name)
	return nil
}

func (r *Registry) load(ctx context.Context, src *Source) error {
	loader, ok := r.loaders[src.Ext]
	if !ok {
		return r.fail(src.Name, src.Path, loadDiagnostic(src.Name, src.Path,
			fmt.Errorf("no loader for extension %q", src.Ext)))
	}

	u, err := loader.Load(ctx, src)
	if err != nil {
		return r.fail(src.Name, src.Path, loadDiagnostic(src.Name, src.Path, err))
	}

	version, err := unitVersion(u)
	if err != nil {
		if closeErr := u.Close(); closeErr != nil {
			r.logger.Warn("failed to close rejected unit", "unit", src.Name, "error", closeErr)
		}
		return r.fail(src.Name, src.Path, loadDiagnostic(src.Name, src.Path, err))
	}

	r.swap(src.Name, u, loader.Kind(), src.Path, src.Digest, version)
	return nil
}

// swap installs u as the current instance of name and retires the old one.
func (r *Registry) swap(name string, u Unit, kind, path, digest, version string) {
	r.mu.Lock()
	e, ok := r.entries[name]
	if !ok {
		e = &entry{}
		r.entries[name] = e
	}
	old := e.current
	e.current = &handle{unit: u}
	e.kind = kind
	e.path = path
	e.digest = digest
	e.version = version
	e.loadedAt = time.Now()
	e.status = StatusLoaded
	e.failure = nil
	if old != nil {
		e.reloads++
	}
	count := r.callableCountLocked()
	r.mu.Unlock()

	UnitsLoaded.Set(float64(count))
	if old != nil {
		r.retire(name, old)
		recordLoad(LoadReloaded)
		r.logger.Info("reloaded unit", "unit", name, "kind", kind, "version", version)
		return
	}
	recordLoad(LoadLoaded)
	r.logger.Info("loaded unit", "unit", name, "kind", kind, "version", version)
}

// retire waits for in-flight calls on h and closes its unit.
func (r *Registry) retire(name string, h *handle) {
	h.inflight.Wait()
	if err := h.unit.Close(); err != nil {
		r.logger.Warn("failed to close unit", "unit", name, "error", err)
	}
}

// fail records a load failure for name, keeping any working instance.
func (r *Registry) fail(name, path string, d *Diagnostic) error {
	r.mu.Lock()
	e, ok := r.entries[name]
	if !ok {
		e = &entry{path: path}
		r.entries[name] = e
	}
	e.status = StatusFailed
	e.failure = d
	stale := e.current != nil
	r.mu.Unlock()

	recordLoad(LoadFailed)
	err := ErrLoadFailure(d)
	errutil.LogError(r.logger, "failed to load unit", err)
	if stale {
		r.logger.Warn("keeping previous instance after failed reload", "unit", name)
	}
	return err
}

// ListNames returns the names of callable units, sorted.
func (r *Registry) ListNames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.entries))
	for name, e := range r.entries {
		if e.current != nil {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// Active returns the active unit name, if any.
func (r *Registry) Active() (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.session.Active()
}

// SelectAndStart starts name and makes it the active unit. A failed start
// leaves the session unchanged.
func (r *Registry) SelectAndStart(ctx context.Context, name string) (string, error) {
	h, path, err := r.acquire(name)
	if err != nil {
		return "", err
	}
	text, diag := r.validator.Invoke(logging.WithUnit(ctx, name), name, h.unit, CapabilityStart)
	h.inflight.Done()

	if diag != nil {
		return "", r.callFailure(diag, path)
	}

	r.mu.Lock()
	r.session.Select(name)
	r.mu.Unlock()
	return text, nil
}

// DispatchMessage sends input to name's message capability. It does not
// require name to be the active unit and never changes the session.
func (r *Registry) DispatchMessage(ctx context.Context, name, input string) (string, error) {
	h, path, err := r.acquire(name)
	if err != nil {
		return "", err
	}
	text, diag := r.validator.Invoke(logging.WithUnit(ctx, name), name, h.unit, CapabilityMessage, input)
	h.inflight.Done()

	if diag != nil {
		return "", r.callFailure(diag, path)
	}
	return text, nil
}

// MissingCapabilities reports which capabilities name does not currently
// expose. No capability is invoked.
func (r *Registry) MissingCapabilities(name string) ([]Capability, error) {
	h, _, err := r.acquire(name)
	if err != nil {
		return nil, err
	}
	defer h.inflight.Done()

	var missing []Capability
	for _, c := range []Capability{CapabilityStart, CapabilityMessage} {
		if !h.unit.Has(c) {
			missing = append(missing, c)
		}
	}
	return missing, nil
}

// ResetSession clears the active unit and returns the previous one.
func (r *Registry) ResetSession() (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.session.Reset()
}

// Health returns the loaded count and the active unit.
func (r *Registry) Health() Health {
	r.mu.RLock()
	defer r.mu.RUnlock()
	active, ok := r.session.Active()
	return Health{
		LoadedCount: r.callableCountLocked(),
		Active:      active,
		HasActive:   ok,
	}
}

// Inspect returns a snapshot of name's entry, including failed-only entries.
func (r *Registry) Inspect(name string) (EntryInfo, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.entries[name]
	if !ok {
		return EntryInfo{}, false
	}
	return EntryInfo{
		Name:        name,
		Status:      e.status,
		Callable:    e.current != nil,
		Kind:        e.kind,
		Path:        e.path,
		Digest:      e.digest,
		Version:     e.version,
		LoadedAt:    e.loadedAt,
		Reloads:     e.reloads,
		LastFailure: e.failure,
	}, true
}

// Close unloads every unit. Further loads and calls fail.
func (r *Registry) Close(_ context.Context) error {
	r.loadMu.Lock()
	defer r.loadMu.Unlock()

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	entries := r.entries
	r.entries = make(map[string]*entry)
	r.mu.Unlock()

	UnitsLoaded.Set(0)

	var errs []error
	for name, e := range entries {
		if e.current == nil {
			continue
		}
		e.current.inflight.Wait()
		if err := e.current.unit.Close(); err != nil {
			errs = append(errs, oops.In("registry").With("unit", name).Wrap(err))
		}
	}
	return errors.Join(errs...)
}

// acquire pins the current handle for name. The caller must call
// h.inflight.Done when the call returns.
func (r *Registry) acquire(name string) (*handle, string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return nil, "", ErrRegistryClosed()
	}
	e, ok := r.entries[name]
	if !ok || e.current == nil {
		return nil, "", ErrNotFound(name)
	}
	e.current.inflight.Add(1)
	return e.current, e.path, nil
}

func (r *Registry) callFailure(d *Diagnostic, path string) error {
	d.Source = path
	if path != "" && (d.Category == CategoryMissingCapability || d.Category == CategoryWrongReturnType) {
		d.Trace = locate(path, d.Capability)
	}
	d.Hint = hintFor(d)
	err := ErrContractViolation(d)
	errutil.LogError(r.logger, "unit call failed", err)
	return err
}

func (r *Registry) isClosed() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.closed
}

func (r *Registry) callableCountLocked() int {
	n := 0
	for _, e := range r.entries {
		if e.current != nil {
			n++
		}
	}
	return n
}

// loadDiagnostic converts a load error into a LoadFailure diagnostic.
func loadDiagnostic(name, path string, err error) *Diagnostic {
	d := newDiagnostic(name, "", CategoryLoadFailure, err.Error())
	d.Source = path
	var f *Fault
	if errors.As(err, &f) {
		d.FaultKind = f.Kind
		d.Message = f.Message
		d.Trace = f.Trace
	}
	if errutil.Code(err) == CodeInvalidVersion {
		d.FaultKind = "version"
	}
	d.Hint = hintFor(d)
	return d
}

// unitVersion validates the version a unit declares, if any.
func unitVersion(u Unit) (string, error) {
	v, ok := u.(Versioned)
	if !ok {
		return "", nil
	}
	raw := v.Version()
	if raw == "" {
		return "", nil
	}
	sv, err := semver.NewVersion(raw)
	if err != nil {
		return "", oops.In("registry").
			Code(CodeInvalidVersion).
			With("version", raw).
			Hint("VERSION must be a semantic version such as 1.2.0").
			Wrap(err)
	}
	return sv.String(), nil
}
