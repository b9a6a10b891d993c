package plugin

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestStateStoreMissingFile(t *testing.T) {
	store := NewStateStore(filepath.Join(t.TempDir(), "extensions.json"))

	flags, err := store.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(flags) != 0 {
		t.Errorf("Load() = %v, want empty map", flags)
	}
}

func TestStateStoreRoundTrip(t *testing.T) {
	store := NewStateStore(filepath.Join(t.TempDir(), "state", "extensions.json"))

	want := map[string]bool{
		"alpha":       true,
		"beta":        false,
		"net.worth":   true,
		`back\slash`:  true,
		"star*wild?x": false,
	}
	if err := store.Save(want); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	got, err := store.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Load() = %v, want %v", got, want)
	}
}

func TestStateStoreOverwrite(t *testing.T) {
	store := NewStateStore(filepath.Join(t.TempDir(), "extensions.json"))

	if err := store.Save(map[string]bool{"alpha": true}); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if err := store.Save(map[string]bool{"alpha": false}); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	got, err := store.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got["alpha"] {
		t.Error("Load() alpha = true, want false after overwrite")
	}
}

func TestStateStoreSaveLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	store := NewStateStore(filepath.Join(dir, "extensions.json"))

	if err := store.Save(map[string]bool{"alpha": true}); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if err := store.Save(map[string]bool{"alpha": false, "beta": true}); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir() error = %v", err)
	}
	if len(entries) != 1 || entries[0].Name() != "extensions.json" {
		names := make([]string, 0, len(entries))
		for _, e := range entries {
			names = append(names, e.Name())
		}
		t.Errorf("state dir contents = %v, want only extensions.json", names)
	}
}

func TestStateStoreInvalidJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "extensions.json")
	if err := os.WriteFile(path, []byte("not json"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	if _, err := NewStateStore(path).Load(); err == nil {
		t.Error("Load() error = nil, want invalid json error")
	}
}
