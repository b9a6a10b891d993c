package plugin

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	glua "github.com/yuin/gopher-lua"

	"github.com/ledgerline/ledgerline/internal/logging"
)

func newTestRegistry(t *testing.T, root string) *Registry {
	t.Helper()
	states := NewStateStore(filepath.Join(root, "extensions.json"))
	reg := NewRegistry(filepath.Join(root, "extensions"), states, logging.Discard)
	t.Cleanup(reg.Close)
	return reg
}

const countingScript = `
	loads = (loads or 0) + 1
	return {
		name = "Counter",
		on_load = function() load_hook = true end,
		on_unload = function() unload_hook = true end,
	}
`

func TestRegistryInitDefaultsDisabled(t *testing.T) {
	root := t.TempDir()
	writeDirExtension(t, filepath.Join(root, "extensions"), "alpha", countingScript)

	reg := newTestRegistry(t, root)
	if err := reg.Init(); err != nil {
		t.Fatalf("Init() error = %v", err)
	}

	descs := reg.List()
	if len(descs) != 1 {
		t.Fatalf("List() returned %d descriptors, want 1", len(descs))
	}
	if descs[0].Enabled {
		t.Error("newly discovered extension Enabled = true, want false")
	}
	if len(reg.Loaded()) != 0 {
		t.Error("Loaded() not empty, want no sandboxes for disabled extensions")
	}
}

func TestRegistryInitLoadsPersistedEnabled(t *testing.T) {
	root := t.TempDir()
	extDir := filepath.Join(root, "extensions")
	writeDirExtension(t, extDir, "alpha", countingScript)
	writeDirExtension(t, extDir, "beta", countingScript)

	states := NewStateStore(filepath.Join(root, "extensions.json"))
	if err := states.Save(map[string]bool{"alpha": true, "beta": false}); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	reg := newTestRegistry(t, root)
	if err := reg.Init(); err != nil {
		t.Fatalf("Init() error = %v", err)
	}

	loaded := reg.Loaded()
	if len(loaded) != 1 || loaded[0].ID() != "alpha" {
		t.Fatalf("Loaded() = %d sandboxes, want only alpha", len(loaded))
	}
	if loaded[0].Global("load_hook") != glua.LTrue {
		t.Error("on_load did not fire during Init")
	}
}

func TestRegistryInitAbsorbsBrokenExtension(t *testing.T) {
	root := t.TempDir()
	extDir := filepath.Join(root, "extensions")
	writeDirExtension(t, extDir, "broken", "not lua (((")
	writeDirExtension(t, extDir, "good", countingScript)

	states := NewStateStore(filepath.Join(root, "extensions.json"))
	if err := states.Save(map[string]bool{"broken": true, "good": true}); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	reg := newTestRegistry(t, root)
	if err := reg.Init(); err != nil {
		t.Fatalf("Init() error = %v, want broken extension absorbed", err)
	}

	loaded := reg.Loaded()
	if len(loaded) != 1 || loaded[0].ID() != "good" {
		t.Fatalf("Loaded() = %d sandboxes, want only good", len(loaded))
	}
	if desc, _ := reg.Get("broken"); desc.Enabled {
		t.Error("broken extension Enabled = true, want false after failed load")
	}
}

func TestRegistrySetEnabledLifecycle(t *testing.T) {
	root := t.TempDir()
	writeDirExtension(t, filepath.Join(root, "extensions"), "alpha", countingScript)

	reg := newTestRegistry(t, root)
	if err := reg.Init(); err != nil {
		t.Fatalf("Init() error = %v", err)
	}

	if err := reg.SetEnabled("alpha", true); err != nil {
		t.Fatalf("SetEnabled(true) error = %v", err)
	}
	sb, ok := reg.Sandbox("alpha")
	if !ok {
		t.Fatal("Sandbox(alpha) missing after enable")
	}
	if sb.Global("load_hook") != glua.LTrue {
		t.Error("on_load did not fire on enable")
	}

	// Flag persisted to disk.
	flags, err := NewStateStore(filepath.Join(root, "extensions.json")).Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if !flags["alpha"] {
		t.Error("persisted flag for alpha = false, want true")
	}

	if err := reg.SetEnabled("alpha", false); err != nil {
		t.Fatalf("SetEnabled(false) error = %v", err)
	}
	if _, ok := reg.Sandbox("alpha"); ok {
		t.Error("Sandbox(alpha) still live after disable")
	}
}

func TestRegistrySetEnabledIdempotent(t *testing.T) {
	root := t.TempDir()
	writeDirExtension(t, filepath.Join(root, "extensions"), "alpha", countingScript)

	reg := newTestRegistry(t, root)
	if err := reg.Init(); err != nil {
		t.Fatalf("Init() error = %v", err)
	}

	if err := reg.SetEnabled("alpha", false); err != nil {
		t.Errorf("SetEnabled(false) on disabled = %v, want nil", err)
	}

	if err := reg.SetEnabled("alpha", true); err != nil {
		t.Fatalf("SetEnabled(true) error = %v", err)
	}
	sb, _ := reg.Sandbox("alpha")

	if err := reg.SetEnabled("alpha", true); err != nil {
		t.Errorf("SetEnabled(true) on enabled = %v, want nil", err)
	}
	sb2, _ := reg.Sandbox("alpha")
	if sb != sb2 {
		t.Error("redundant enable replaced the sandbox, want same instance")
	}
}

func TestRegistryDisableFiresUnloadOnce(t *testing.T) {
	root := t.TempDir()
	writeDirExtension(t, filepath.Join(root, "extensions"), "alpha", `
		return {
			on_unload = function() log("unload observed") end,
		}
	`)

	var buf bytes.Buffer
	log := logging.New(logging.Config{Level: logging.LevelInfo, Output: &buf})

	states := NewStateStore(filepath.Join(root, "extensions.json"))
	reg := NewRegistry(filepath.Join(root, "extensions"), states, log)
	t.Cleanup(reg.Close)
	if err := reg.Init(); err != nil {
		t.Fatalf("Init() error = %v", err)
	}

	if err := reg.SetEnabled("alpha", true); err != nil {
		t.Fatalf("SetEnabled(true) error = %v", err)
	}
	if err := reg.SetEnabled("alpha", false); err != nil {
		t.Fatalf("SetEnabled(false) error = %v", err)
	}

	if got := strings.Count(buf.String(), "unload observed"); got != 1 {
		t.Errorf("on_unload fired %d times, want exactly 1", got)
	}

	// The disabled extension is out of the dispatch set and Close
	// does not unload it a second time.
	if len(reg.Loaded()) != 0 {
		t.Error("Loaded() not empty after disable")
	}
	reg.Close()
	if got := strings.Count(buf.String(), "unload observed"); got != 1 {
		t.Errorf("on_unload fired %d times after Close, want still 1", got)
	}

	flags, err := states.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if flags["alpha"] {
		t.Error("persisted flag = true after disable, want false")
	}
}

func TestRegistryReloadResetsState(t *testing.T) {
	root := t.TempDir()
	writeDirExtension(t, filepath.Join(root, "extensions"), "alpha", `
		counter = 0
		return {
			on_asset_created = function() counter = counter + 1 end,
		}
	`)

	reg := newTestRegistry(t, root)
	if err := reg.Init(); err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	if err := reg.SetEnabled("alpha", true); err != nil {
		t.Fatalf("SetEnabled(true) error = %v", err)
	}

	sb, _ := reg.Sandbox("alpha")
	if err := sb.InvokeHook(HookAssetCreated, glua.LString("{}")); err != nil {
		t.Fatalf("InvokeHook() error = %v", err)
	}
	if sb.Global("counter") != glua.LNumber(1) {
		t.Fatalf("counter = %v, want 1", sb.Global("counter"))
	}

	if err := reg.SetEnabled("alpha", false); err != nil {
		t.Fatalf("SetEnabled(false) error = %v", err)
	}
	if err := reg.SetEnabled("alpha", true); err != nil {
		t.Fatalf("re-enable error = %v", err)
	}

	sb, _ = reg.Sandbox("alpha")
	if sb.Global("counter") != glua.LNumber(0) {
		t.Errorf("counter after reload = %v, want fresh interpreter with 0", sb.Global("counter"))
	}
}

func TestRegistrySetEnabledUnknown(t *testing.T) {
	reg := newTestRegistry(t, t.TempDir())
	if err := reg.Init(); err != nil {
		t.Fatalf("Init() error = %v", err)
	}

	if err := reg.SetEnabled("ghost", true); !errors.Is(err, ErrUnknownExtension) {
		t.Errorf("SetEnabled(ghost) error = %v, want ErrUnknownExtension", err)
	}
}

func TestRegistrySetEnabledBrokenScript(t *testing.T) {
	root := t.TempDir()
	writeDirExtension(t, filepath.Join(root, "extensions"), "broken", "not lua (((")

	reg := newTestRegistry(t, root)
	if err := reg.Init(); err != nil {
		t.Fatalf("Init() error = %v", err)
	}

	if err := reg.SetEnabled("broken", true); err == nil {
		t.Fatal("SetEnabled(broken) error = nil, want load failure")
	}
	if desc, _ := reg.Get("broken"); desc.Enabled {
		t.Error("broken extension Enabled = true after failed enable")
	}

	flags, err := NewStateStore(filepath.Join(root, "extensions.json")).Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if flags["broken"] {
		t.Error("failed enable persisted enabled = true, want flag unchanged")
	}
}

func TestRegistryPersistFailureRollsBack(t *testing.T) {
	root := t.TempDir()
	writeDirExtension(t, filepath.Join(root, "extensions"), "alpha", countingScript)

	// State path whose parent is a regular file makes every Save fail.
	blocker := filepath.Join(root, "blocker")
	if err := os.WriteFile(blocker, nil, 0o644); err != nil {
		t.Fatalf("write blocker: %v", err)
	}
	states := NewStateStore(filepath.Join(blocker, "extensions.json"))
	reg := NewRegistry(filepath.Join(root, "extensions"), states, logging.Discard)
	t.Cleanup(reg.Close)
	if err := reg.Init(); err != nil {
		t.Fatalf("Init() error = %v", err)
	}

	if err := reg.SetEnabled("alpha", true); err == nil {
		t.Fatal("SetEnabled() error = nil, want persistence failure")
	}
	if desc, _ := reg.Get("alpha"); desc.Enabled {
		t.Error("Enabled = true after failed persist, want rollback")
	}
	if _, ok := reg.Sandbox("alpha"); ok {
		t.Error("sandbox still live after failed persist, want rollback unload")
	}
}

func TestRegistryCloseKeepsFlags(t *testing.T) {
	root := t.TempDir()
	writeDirExtension(t, filepath.Join(root, "extensions"), "alpha", countingScript)

	reg := newTestRegistry(t, root)
	if err := reg.Init(); err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	if err := reg.SetEnabled("alpha", true); err != nil {
		t.Fatalf("SetEnabled(true) error = %v", err)
	}
	reg.Close()

	if len(reg.Loaded()) != 0 {
		t.Error("Loaded() not empty after Close")
	}

	// A fresh registry over the same state restores the set.
	reg2 := newTestRegistry(t, root)
	if err := reg2.Init(); err != nil {
		t.Fatalf("second Init() error = %v", err)
	}
	if len(reg2.Loaded()) != 1 {
		t.Errorf("Loaded() after restart = %d, want 1", len(reg2.Loaded()))
	}
}
