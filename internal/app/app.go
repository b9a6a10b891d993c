// Package app wires the storage layer, the extension runtime, and
// configuration into one application object.
package app

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/ledgerline/ledgerline/internal/asset"
	"github.com/ledgerline/ledgerline/internal/logging"
	"github.com/ledgerline/ledgerline/internal/plugin"
	"github.com/ledgerline/ledgerline/internal/storage"
)

// App is the application core. Record mutations go through it so
// every committed change is announced to loaded extensions. Events
// fire after the database commit; an extension failure never rolls a
// record back.
type App struct {
	cfg        Config
	log        *logging.Logger
	store      *storage.Store
	registry   *plugin.Registry
	dispatcher *plugin.Dispatcher
}

// New assembles an App over an already opened store.
func New(cfg Config, store *storage.Store, log *logging.Logger) *App {
	registry := plugin.NewRegistry(cfg.ExtensionsDir, plugin.NewStateStore(cfg.StatePath), log)
	return &App{
		cfg:        cfg,
		log:        log.WithComponent("app"),
		store:      store,
		registry:   registry,
		dispatcher: plugin.NewDispatcher(registry, log),
	}
}

// Start brings up the extension runtime and announces startup to
// every loaded extension.
func (a *App) Start() error {
	if err := a.registry.Init(); err != nil {
		return fmt.Errorf("init extensions: %w", err)
	}
	a.notify(plugin.StartupEvent())
	return nil
}

// Stop announces shutdown, tears down every sandbox, and closes the
// store.
func (a *App) Stop() error {
	a.notify(plugin.ShutdownEvent())
	a.registry.Close()
	return a.store.Close()
}

// CreateAsset persists a new asset and announces it.
func (a *App) CreateAsset(ctx context.Context, rec *asset.Asset) error {
	if err := a.store.CreateAsset(ctx, rec); err != nil {
		return err
	}
	a.notifyRecord(rec, plugin.RecordCreated)
	return nil
}

// UpdateAsset persists a changed asset and announces it.
func (a *App) UpdateAsset(ctx context.Context, rec *asset.Asset) error {
	if err := a.store.UpdateAsset(ctx, rec); err != nil {
		return err
	}
	a.notifyRecord(rec, plugin.RecordUpdated)
	return nil
}

// SetAssetValue revalues an asset, records the change as a
// transaction, and announces the update.
func (a *App) SetAssetValue(ctx context.Context, id uuid.UUID, value float64, note string) (*asset.Asset, error) {
	rec, err := a.store.GetAsset(ctx, id)
	if err != nil {
		return nil, err
	}

	before := rec.Value
	rec.SetValue(value)
	if err := a.store.UpdateAsset(ctx, rec); err != nil {
		return nil, err
	}

	tx := asset.NewTransaction(id, asset.TxValueChange, before, value, note)
	if err := a.store.RecordTransaction(ctx, tx); err != nil {
		a.log.Warn("record value change for %s: %v", id, err)
	}

	a.notifyRecord(rec, plugin.RecordUpdated)
	return rec, nil
}

// DeleteAsset removes an asset and announces the removal.
func (a *App) DeleteAsset(ctx context.Context, id uuid.UUID) error {
	if err := a.store.DeleteAsset(ctx, id); err != nil {
		return err
	}
	a.notify(plugin.RecordDeleted(id.String()))
	return nil
}

// Asset returns one asset by id.
func (a *App) Asset(ctx context.Context, id uuid.UUID) (*asset.Asset, error) {
	return a.store.GetAsset(ctx, id)
}

// Assets returns all assets.
func (a *App) Assets(ctx context.Context) ([]*asset.Asset, error) {
	return a.store.ListAssets(ctx)
}

// Transactions returns an asset's transaction history.
func (a *App) Transactions(ctx context.Context, id uuid.UUID) ([]*asset.Transaction, error) {
	return a.store.ListTransactions(ctx, id)
}

// Summary aggregates the portfolio.
func (a *App) Summary(ctx context.Context) (*asset.Summary, error) {
	return a.store.Summary(ctx)
}

// Extensions lists discovered extensions in discovery order.
func (a *App) Extensions() []plugin.Descriptor {
	return a.registry.List()
}

// SetExtensionEnabled toggles an extension and persists the flag.
func (a *App) SetExtensionEnabled(id string, enabled bool) error {
	return a.registry.SetEnabled(id, enabled)
}

// notifyRecord announces a record event carrying the asset snapshot.
// Snapshot or hook failures are logged, never returned; the record
// change is already committed.
func (a *App) notifyRecord(rec *asset.Asset, event func([]byte) plugin.Event) {
	payload, err := rec.Payload()
	if err != nil {
		a.log.Warn("encode record %s for extensions: %v", rec.ID, err)
		return
	}
	a.notify(event(payload))
}

func (a *App) notify(event plugin.Event) {
	// Dispatch logs per-extension failures; the join is diagnostics.
	_ = a.dispatcher.Dispatch(event)
}
