// Package storage provides the SQLite-backed record store.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/ledgerline/ledgerline/internal/asset"
)

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("record not found")

const schema = `
PRAGMA foreign_keys = ON;

CREATE TABLE IF NOT EXISTS assets (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	asset_type TEXT NOT NULL,
	value REAL NOT NULL DEFAULT 0,
	currency TEXT NOT NULL DEFAULT 'CNY',
	description TEXT,
	tags TEXT,
	metadata TEXT,
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS transactions (
	id TEXT PRIMARY KEY,
	asset_id TEXT NOT NULL,
	transaction_type TEXT NOT NULL,
	amount_before REAL NOT NULL,
	amount_after REAL NOT NULL,
	note TEXT,
	timestamp TEXT NOT NULL,
	FOREIGN KEY (asset_id) REFERENCES assets(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS settings (
	key TEXT PRIMARY KEY,
	value TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_assets_type ON assets(asset_type);
CREATE INDEX IF NOT EXISTS idx_assets_created ON assets(created_at);
CREATE INDEX IF NOT EXISTS idx_transactions_asset ON transactions(asset_id);
CREATE INDEX IF NOT EXISTS idx_transactions_time ON transactions(timestamp);
`

// Store persists assets and their transaction history in SQLite.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the database at path and applies the schema.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
	}

	dsn := filepath.Clean(path) + "?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}

	s := &Store{db: db}
	if err := s.init(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// OpenInMemory opens an in-memory database for tests.
func OpenInMemory() (*Store, error) {
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("open in-memory db: %w", err)
	}
	// A second connection would see a different empty database.
	db.SetMaxOpenConns(1)

	s := &Store{db: db}
	if err := s.init(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) init() error {
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("init schema: %w", err)
	}
	return nil
}

// Close closes the database handle.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// CreateAsset inserts a new asset row.
func (s *Store) CreateAsset(ctx context.Context, a *asset.Asset) error {
	tags, err := json.Marshal(a.Tags)
	if err != nil {
		return fmt.Errorf("encode tags: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO assets (id, name, asset_type, value, currency, description, tags, metadata, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID.String(), a.Name, string(a.Type), a.Value, string(a.Currency),
		a.Description, string(tags), string(a.Metadata),
		a.CreatedAt.UTC().Format(time.RFC3339Nano), a.UpdatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("insert asset: %w", err)
	}
	return nil
}

// GetAsset returns the asset with the given id, or ErrNotFound.
func (s *Store) GetAsset(ctx context.Context, id uuid.UUID) (*asset.Asset, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, asset_type, value, currency, description, tags, metadata, created_at, updated_at
		FROM assets WHERE id = ?`, id.String())

	a, err := scanAsset(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("asset %s: %w", id, ErrNotFound)
	}
	return a, err
}

// ListAssets returns all assets in creation order.
func (s *Store) ListAssets(ctx context.Context) ([]*asset.Asset, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, asset_type, value, currency, description, tags, metadata, created_at, updated_at
		FROM assets ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("list assets: %w", err)
	}
	defer rows.Close()

	var assets []*asset.Asset
	for rows.Next() {
		a, err := scanAsset(rows)
		if err != nil {
			return nil, err
		}
		assets = append(assets, a)
	}
	return assets, rows.Err()
}

// UpdateAsset rewrites the mutable columns of an existing asset.
func (s *Store) UpdateAsset(ctx context.Context, a *asset.Asset) error {
	tags, err := json.Marshal(a.Tags)
	if err != nil {
		return fmt.Errorf("encode tags: %w", err)
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE assets
		SET name = ?, asset_type = ?, value = ?, currency = ?, description = ?, tags = ?, metadata = ?, updated_at = ?
		WHERE id = ?`,
		a.Name, string(a.Type), a.Value, string(a.Currency), a.Description,
		string(tags), string(a.Metadata), a.UpdatedAt.UTC().Format(time.RFC3339Nano),
		a.ID.String(),
	)
	if err != nil {
		return fmt.Errorf("update asset: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("asset %s: %w", a.ID, ErrNotFound)
	}
	return nil
}

// DeleteAsset removes an asset and, via cascade, its transactions.
func (s *Store) DeleteAsset(ctx context.Context, id uuid.UUID) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM assets WHERE id = ?`, id.String())
	if err != nil {
		return fmt.Errorf("delete asset: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("asset %s: %w", id, ErrNotFound)
	}
	return nil
}

// RecordTransaction appends one audit row.
func (s *Store) RecordTransaction(ctx context.Context, tx *asset.Transaction) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO transactions (id, asset_id, transaction_type, amount_before, amount_after, note, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		tx.ID.String(), tx.AssetID.String(), string(tx.Kind),
		tx.AmountBefore, tx.AmountAfter, tx.Note,
		tx.Timestamp.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("insert transaction: %w", err)
	}
	return nil
}

// ListTransactions returns the audit rows for one asset, oldest first.
func (s *Store) ListTransactions(ctx context.Context, assetID uuid.UUID) ([]*asset.Transaction, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, asset_id, transaction_type, amount_before, amount_after, note, timestamp
		FROM transactions WHERE asset_id = ? ORDER BY timestamp, id`, assetID.String())
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	var txs []*asset.Transaction
	for rows.Next() {
		var (
			tx         asset.Transaction
			idStr, aid string
			kind, note sql.NullString
			ts         string
		)
		if err := rows.Scan(&idStr, &aid, &kind, &tx.AmountBefore, &tx.AmountAfter, &note, &ts); err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		if tx.ID, err = uuid.Parse(idStr); err != nil {
			return nil, fmt.Errorf("parse transaction id: %w", err)
		}
		if tx.AssetID, err = uuid.Parse(aid); err != nil {
			return nil, fmt.Errorf("parse asset id: %w", err)
		}
		tx.Kind = asset.TransactionKind(kind.String)
		tx.Note = note.String
		if tx.Timestamp, err = time.Parse(time.RFC3339Nano, ts); err != nil {
			return nil, fmt.Errorf("parse timestamp: %w", err)
		}
		txs = append(txs, &tx)
	}
	return txs, rows.Err()
}

// Summary aggregates the portfolio by type and currency.
func (s *Store) Summary(ctx context.Context) (*asset.Summary, error) {
	assets, err := s.ListAssets(ctx)
	if err != nil {
		return nil, err
	}

	sum := &asset.Summary{
		ByType:     make(map[string]float64),
		ByCurrency: make(map[string]float64),
		AssetCount: len(assets),
	}
	for _, a := range assets {
		sum.TotalValue += a.Value
		sum.ByType[string(a.Type)] += a.Value
		sum.ByCurrency[string(a.Currency)] += a.Value
	}
	return sum, nil
}

// Setting returns the value for key; ok is false when the key is absent.
func (s *Store) Setting(ctx context.Context, key string) (value string, ok bool, err error) {
	row := s.db.QueryRowContext(ctx, `SELECT value FROM settings WHERE key = ?`, key)
	if err := row.Scan(&value); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("read setting: %w", err)
	}
	return value, true, nil
}

// SetSetting writes a key/value pair, replacing any prior value.
func (s *Store) SetSetting(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO settings (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, value)
	if err != nil {
		return fmt.Errorf("write setting: %w", err)
	}
	return nil
}

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanAsset(sc scanner) (*asset.Asset, error) {
	var (
		a                  asset.Asset
		idStr, typ, cur    string
		desc, tags, meta   sql.NullString
		createdAt, updated string
	)
	if err := sc.Scan(&idStr, &a.Name, &typ, &a.Value, &cur, &desc, &tags, &meta, &createdAt, &updated); err != nil {
		return nil, err
	}

	var err error
	if a.ID, err = uuid.Parse(idStr); err != nil {
		return nil, fmt.Errorf("parse asset id: %w", err)
	}
	a.Type = asset.Type(typ)
	a.Currency = asset.Currency(cur)
	a.Description = desc.String
	if tags.Valid && tags.String != "" {
		if err := json.Unmarshal([]byte(tags.String), &a.Tags); err != nil {
			return nil, fmt.Errorf("decode tags: %w", err)
		}
	}
	if meta.Valid && meta.String != "" {
		a.Metadata = json.RawMessage(meta.String)
	}
	if a.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	if a.UpdatedAt, err = time.Parse(time.RFC3339Nano, updated); err != nil {
		return nil, fmt.Errorf("parse updated_at: %w", err)
	}
	return &a, nil
}
