package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	glua "github.com/yuin/gopher-lua"

	"github.com/ledgerline/ledgerline/internal/asset"
	"github.com/ledgerline/ledgerline/internal/logging"
	"github.com/ledgerline/ledgerline/internal/plugin"
	"github.com/ledgerline/ledgerline/internal/storage"
)

const watcherScript = `
	created = 0
	updated = 0
	return {
		on_app_started = function() started = true end,
		on_app_closing = function() closing = true end,
		on_asset_created = function(payload)
			created = created + 1
			local rec = json.decode(payload)
			last_name = rec.name
			last_value = rec.value
		end,
		on_asset_updated = function(payload)
			updated = updated + 1
			last_value = json.decode(payload).value
		end,
		on_asset_deleted = function(id)
			deleted_id = id
		end,
	}
`

func newTestApp(t *testing.T) (*App, func() *plugin.Sandbox) {
	t.Helper()
	root := t.TempDir()

	extDir := filepath.Join(root, "extensions", "watcher")
	if err := os.MkdirAll(extDir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(extDir, "init.lua"), []byte(watcherScript), 0o644); err != nil {
		t.Fatalf("write script: %v", err)
	}

	cfg := Config{
		DataDir:       root,
		ExtensionsDir: filepath.Join(root, "extensions"),
		StatePath:     filepath.Join(root, "extensions.json"),
	}
	if err := plugin.NewStateStore(cfg.StatePath).Save(map[string]bool{"watcher": true}); err != nil {
		t.Fatalf("seed state: %v", err)
	}

	store, err := storage.OpenInMemory()
	if err != nil {
		t.Fatalf("OpenInMemory() error = %v", err)
	}

	a := New(cfg, store, logging.Discard)
	if err := a.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	t.Cleanup(func() { _ = a.Stop() })

	return a, func() *plugin.Sandbox {
		sb, ok := a.registry.Sandbox("watcher")
		if !ok {
			t.Fatal("watcher extension not loaded")
		}
		return sb
	}
}

func TestAppStartAnnouncesStartup(t *testing.T) {
	_, watcher := newTestApp(t)
	if watcher().Global("started") != glua.LTrue {
		t.Error("on_app_started did not fire on Start")
	}
}

func TestAppCreateAssetNotifies(t *testing.T) {
	a, watcher := newTestApp(t)
	ctx := context.Background()

	rec := asset.New("Savings", asset.TypeBankDeposit, 1200)
	if err := a.CreateAsset(ctx, rec); err != nil {
		t.Fatalf("CreateAsset() error = %v", err)
	}

	// Committed first, announced second.
	got, err := a.Asset(ctx, rec.ID)
	if err != nil {
		t.Fatalf("Asset() error = %v", err)
	}
	if got.Name != "Savings" {
		t.Errorf("Asset().Name = %q, want Savings", got.Name)
	}

	sb := watcher()
	if sb.Global("created") != glua.LNumber(1) {
		t.Errorf("created = %v, want 1", sb.Global("created"))
	}
	if sb.Global("last_name") != glua.LString("Savings") {
		t.Errorf("last_name = %v, want Savings", sb.Global("last_name"))
	}
	if sb.Global("last_value") != glua.LNumber(1200) {
		t.Errorf("last_value = %v, want 1200", sb.Global("last_value"))
	}
}

func TestAppSetAssetValue(t *testing.T) {
	a, watcher := newTestApp(t)
	ctx := context.Background()

	rec := asset.New("Fund", asset.TypeFund, 100)
	if err := a.CreateAsset(ctx, rec); err != nil {
		t.Fatalf("CreateAsset() error = %v", err)
	}

	updated, err := a.SetAssetValue(ctx, rec.ID, 150, "monthly revaluation")
	if err != nil {
		t.Fatalf("SetAssetValue() error = %v", err)
	}
	if updated.Value != 150 {
		t.Errorf("Value = %v, want 150", updated.Value)
	}

	txs, err := a.Transactions(ctx, rec.ID)
	if err != nil {
		t.Fatalf("Transactions() error = %v", err)
	}
	if len(txs) != 1 {
		t.Fatalf("Transactions() returned %d, want 1", len(txs))
	}
	if txs[0].Kind != asset.TxValueChange || txs[0].AmountBefore != 100 || txs[0].AmountAfter != 150 {
		t.Errorf("transaction = %+v, want value_change 100 -> 150", txs[0])
	}

	sb := watcher()
	if sb.Global("updated") != glua.LNumber(1) {
		t.Errorf("updated = %v, want 1", sb.Global("updated"))
	}
	if sb.Global("last_value") != glua.LNumber(150) {
		t.Errorf("last_value = %v, want 150", sb.Global("last_value"))
	}
}

func TestAppDeleteAssetNotifiesID(t *testing.T) {
	a, watcher := newTestApp(t)
	ctx := context.Background()

	rec := asset.New("Old Car", asset.TypeVehicle, 9000)
	if err := a.CreateAsset(ctx, rec); err != nil {
		t.Fatalf("CreateAsset() error = %v", err)
	}
	if err := a.DeleteAsset(ctx, rec.ID); err != nil {
		t.Fatalf("DeleteAsset() error = %v", err)
	}

	if got := watcher().Global("deleted_id"); got != glua.LString(rec.ID.String()) {
		t.Errorf("deleted_id = %v, want %s", got, rec.ID)
	}
}

func TestAppExtensionToggle(t *testing.T) {
	a, _ := newTestApp(t)
	ctx := context.Background()

	if err := a.SetExtensionEnabled("watcher", false); err != nil {
		t.Fatalf("SetExtensionEnabled(false) error = %v", err)
	}

	// Mutations still succeed with no extensions listening.
	if err := a.CreateAsset(ctx, asset.New("Cash", asset.TypeCash, 50)); err != nil {
		t.Fatalf("CreateAsset() with extension disabled error = %v", err)
	}

	exts := a.Extensions()
	if len(exts) != 1 || exts[0].Enabled {
		t.Errorf("Extensions() = %+v, want watcher disabled", exts)
	}
}
