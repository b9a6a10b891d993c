package plugin

import (
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/ledgerline/ledgerline/internal/logging"
)

// Registry owns the extension population: discovery, the persisted
// enabled flags, and the live sandboxes. Iteration order is always
// discovery order (lexicographic by id), so dispatch and shutdown
// are deterministic.
type Registry struct {
	mu     sync.RWMutex
	loader *Loader
	states *StateStore
	log    *logging.Logger

	order       []string
	descriptors map[string]*Descriptor
	sandboxes   map[string]*Sandbox
}

// NewRegistry creates a Registry over the extensions directory and
// the persisted-state file.
func NewRegistry(dir string, states *StateStore, log *logging.Logger) *Registry {
	return &Registry{
		loader:      NewLoader(dir, log),
		states:      states,
		log:         log.WithComponent("registry"),
		descriptors: make(map[string]*Descriptor),
		sandboxes:   make(map[string]*Sandbox),
	}
}

// Init discovers extensions, merges the persisted enabled flags, and
// loads every enabled extension. A single extension's load failure is
// logged and absorbed; the extension stays disabled and its neighbors
// still come up. Init itself fails only when the extensions directory
// cannot be created or read.
func (r *Registry) Init() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := os.MkdirAll(r.loader.Dir(), 0o755); err != nil {
		return fmt.Errorf("create extensions dir: %w", err)
	}

	descs, err := r.loader.Discover()
	if err != nil {
		return err
	}

	persisted, err := r.states.Load()
	if err != nil {
		r.log.Warn("extension state unreadable, starting with all disabled: %v", err)
		persisted = map[string]bool{}
	}

	r.order = r.order[:0]
	for _, desc := range descs {
		r.order = append(r.order, desc.ID)
		r.descriptors[desc.ID] = desc
	}

	for _, id := range r.order {
		if !persisted[id] {
			continue
		}
		if err := r.loadLocked(id); err != nil {
			r.log.Error("extension %s failed to load, leaving disabled: %v", id, err)
			continue
		}
		r.descriptors[id].Enabled = true
	}

	r.log.Info("discovered %d extensions, %d loaded", len(r.order), len(r.sandboxes))
	return nil
}

// Load brings up the extension's sandbox and fires its on_load hook.
// Loading an unknown id or an already loaded extension is an error.
// Load does not change the persisted flag; that is SetEnabled's job.
func (r *Registry) Load(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.loadLocked(id)
}

func (r *Registry) loadLocked(id string) error {
	desc, ok := r.descriptors[id]
	if !ok {
		return fmt.Errorf("extension %q: %w", id, ErrUnknownExtension)
	}
	if _, live := r.sandboxes[id]; live {
		return fmt.Errorf("extension %q: %w", id, ErrAlreadyLoaded)
	}

	sb, err := newSandbox(desc, r.log)
	if err != nil {
		return fmt.Errorf("load extension %q: %w", id, err)
	}
	if err := sb.InvokeHook(HookLoad); err != nil {
		r.log.Warn("%v", err)
	}

	r.sandboxes[id] = sb
	r.log.Debug("loaded extension %s", id)
	return nil
}

// Unload fires the extension's on_unload hook and tears its sandbox
// down. An on_unload failure is logged, never fatal; the sandbox is
// closed regardless.
func (r *Registry) Unload(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.unloadLocked(id)
}

func (r *Registry) unloadLocked(id string) error {
	sb, ok := r.sandboxes[id]
	if !ok {
		return fmt.Errorf("extension %q: %w", id, ErrNotLoaded)
	}

	if err := sb.InvokeHook(HookUnload); err != nil {
		r.log.Warn("%v", err)
	}
	sb.Close()
	delete(r.sandboxes, id)
	r.log.Debug("unloaded extension %s", id)
	return nil
}

// SetEnabled flips the extension's enabled flag, loading or unloading
// as needed and persisting the result. Setting the flag to its
// current value is a no-op. Enabling loads first and persists second;
// if persisting fails the sandbox is torn back down so memory and
// disk never disagree. Disabling persists first and unloads second.
func (r *Registry) SetEnabled(id string, enabled bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	desc, ok := r.descriptors[id]
	if !ok {
		return fmt.Errorf("extension %q: %w", id, ErrUnknownExtension)
	}
	if desc.Enabled == enabled {
		return nil
	}

	if enabled {
		if err := r.loadLocked(id); err != nil {
			return err
		}
		if err := r.persistLocked(id, true); err != nil {
			if uerr := r.unloadLocked(id); uerr != nil {
				r.log.Error("rollback unload of %s: %v", id, uerr)
			}
			return err
		}
		desc.Enabled = true
		return nil
	}

	if err := r.persistLocked(id, false); err != nil {
		return err
	}
	if err := r.unloadLocked(id); err != nil && !errors.Is(err, ErrNotLoaded) {
		return err
	}
	desc.Enabled = false
	return nil
}

func (r *Registry) persistLocked(id string, enabled bool) error {
	flags := make(map[string]bool, len(r.descriptors))
	for eid, desc := range r.descriptors {
		flags[eid] = desc.Enabled
	}
	flags[id] = enabled

	if err := r.states.Save(flags); err != nil {
		return fmt.Errorf("persist extension state: %w", err)
	}
	return nil
}

// Get returns a copy of the descriptor for the given id.
func (r *Registry) Get(id string) (Descriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	desc, ok := r.descriptors[id]
	if !ok {
		return Descriptor{}, false
	}
	return *desc, true
}

// List returns descriptor copies in discovery order.
func (r *Registry) List() []Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Descriptor, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, *r.descriptors[id])
	}
	return out
}

// Loaded returns the live sandboxes in discovery order.
func (r *Registry) Loaded() []*Sandbox {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Sandbox, 0, len(r.sandboxes))
	for _, id := range r.order {
		if sb, ok := r.sandboxes[id]; ok {
			out = append(out, sb)
		}
	}
	return out
}

// Sandbox returns the live sandbox for the id, if loaded.
func (r *Registry) Sandbox(id string) (*Sandbox, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sb, ok := r.sandboxes[id]
	return sb, ok
}

// Close unloads every live sandbox in discovery order. Enabled flags
// are left untouched so the next Init restores the same set.
func (r *Registry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, id := range r.order {
		if _, ok := r.sandboxes[id]; !ok {
			continue
		}
		if err := r.unloadLocked(id); err != nil {
			r.log.Warn("close: %v", err)
		}
	}
}
