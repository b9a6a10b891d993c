package plugin

import (
	"fmt"

	glua "github.com/yuin/gopher-lua"

	plua "github.com/ledgerline/ledgerline/internal/plugin/lua"
	"github.com/ledgerline/ledgerline/internal/logging"
)

// Hook names an extension script may export. Every hook is optional;
// a missing hook is a silent no-op.
const (
	// HookLoad fires when the extension's sandbox comes up.
	HookLoad = "on_load"
	// HookUnload fires just before the sandbox is torn down.
	HookUnload = "on_unload"
	// HookAppStarted fires once after application startup.
	HookAppStarted = "on_app_started"
	// HookAppClosing fires once before application shutdown.
	HookAppClosing = "on_app_closing"
	// HookAssetCreated fires after a record is created. It receives
	// the record's JSON snapshot.
	HookAssetCreated = "on_asset_created"
	// HookAssetUpdated fires after a record is updated. It receives
	// the record's JSON snapshot.
	HookAssetUpdated = "on_asset_updated"
	// HookAssetDeleted fires after a record is deleted. It receives
	// the record id.
	HookAssetDeleted = "on_asset_deleted"
)

// knownHooks lists every hook a script can export.
var knownHooks = []string{
	HookLoad,
	HookUnload,
	HookAppStarted,
	HookAppClosing,
	HookAssetCreated,
	HookAssetUpdated,
	HookAssetDeleted,
}

// metadata keys a script's exported table may carry.
const (
	metaName        = "name"
	metaVersion     = "version"
	metaAuthor      = "author"
	metaDescription = "description"
)

// Sandbox is one extension's live interpreter. The script has been
// evaluated, the host API installed, and every exported hook resolved
// into a function slot. A Sandbox is not safe for concurrent use.
type Sandbox struct {
	id     string
	state  *plua.State
	bridge *plua.Bridge
	hooks  map[string]*glua.LFunction
}

// newSandbox builds a sandbox for the descriptor: fresh restricted
// state, host API, script evaluation, hook and metadata extraction.
// On any failure the state is closed and nothing leaks. Metadata is
// written back into desc.
func newSandbox(desc *Descriptor, log *logging.Logger) (*Sandbox, error) {
	state := plua.NewState()
	sb := &Sandbox{
		id:     desc.ID,
		state:  state,
		bridge: plua.NewBridge(state.LuaState()),
		hooks:  make(map[string]*glua.LFunction, len(knownHooks)),
	}

	installHostAPI(state, sb.bridge, log.WithField("extension", desc.ID))

	exports, err := state.EvalFile(desc.Path)
	if err != nil {
		state.Close()
		return nil, fmt.Errorf("evaluate %s: %w", desc.Path, err)
	}

	sb.resolveHooks(exports)
	sb.applyMetadata(exports, desc)
	return sb, nil
}

// resolveHooks binds hook slots from the script's exported table,
// falling back to a global function of the same name when the table
// lacks the slot. Scripts that return nothing are read entirely
// through globals, so both export styles work, mixed or not.
func (s *Sandbox) resolveHooks(exports glua.LValue) {
	table, _ := exports.(*glua.LTable)
	for _, name := range knownHooks {
		if table != nil {
			if fn, ok := s.bridge.TableFunc(table, name); ok {
				s.hooks[name] = fn
				continue
			}
		}
		if fn, ok := s.state.GetGlobal(name).(*glua.LFunction); ok {
			s.hooks[name] = fn
		}
	}
}

// applyMetadata copies exported metadata strings into the descriptor.
// Absent fields stay empty.
func (s *Sandbox) applyMetadata(exports glua.LValue, desc *Descriptor) {
	table, ok := exports.(*glua.LTable)
	if !ok {
		return
	}
	if v, ok := s.bridge.TableString(table, metaName); ok {
		desc.Name = v
	}
	if v, ok := s.bridge.TableString(table, metaVersion); ok {
		desc.Version = v
	}
	if v, ok := s.bridge.TableString(table, metaAuthor); ok {
		desc.Author = v
	}
	if v, ok := s.bridge.TableString(table, metaDescription); ok {
		desc.Description = v
	}
}

// ID returns the extension id this sandbox belongs to.
func (s *Sandbox) ID() string {
	return s.id
}

// HasHook reports whether the script exported the named hook.
func (s *Sandbox) HasHook(name string) bool {
	_, ok := s.hooks[name]
	return ok
}

// InvokeHook calls the named hook with the given arguments. A hook
// the script never exported is a silent no-op. A hook that raises is
// reported as a *HookError; the sandbox itself stays usable.
func (s *Sandbox) InvokeHook(name string, args ...glua.LValue) error {
	fn, ok := s.hooks[name]
	if !ok {
		return nil
	}
	if err := s.state.Call(fn, args...); err != nil {
		return &HookError{ExtensionID: s.id, Hook: name, Message: err.Error()}
	}
	return nil
}

// Global returns the value of a global variable inside the sandbox.
func (s *Sandbox) Global(name string) glua.LValue {
	return s.state.GetGlobal(name)
}

// Close tears down the interpreter. Safe to call more than once.
func (s *Sandbox) Close() {
	s.state.Close()
}
