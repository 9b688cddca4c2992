package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/catalog-enricher/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	// One connection serializes writers.
	db.SetMaxOpenConns(1)
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS batches (
	id         TEXT PRIMARY KEY,
	name       TEXT NOT NULL,
	fields     TEXT NOT NULL,
	inputs     TEXT,
	created_at DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS products (
	batch_id   TEXT NOT NULL REFERENCES batches(id) ON DELETE CASCADE,
	row_num    INTEGER NOT NULL,
	sku        TEXT NOT NULL,
	status     TEXT NOT NULL DEFAULT 'pending',
	data       TEXT NOT NULL,
	updated_at DATETIME NOT NULL DEFAULT (datetime('now')),
	PRIMARY KEY (batch_id, row_num)
);

CREATE INDEX IF NOT EXISTS idx_products_status ON products(batch_id, status);
CREATE INDEX IF NOT EXISTS idx_batches_created_at ON batches(created_at);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

const sqliteUpsertProduct = `INSERT INTO products (batch_id, row_num, sku, status, data, updated_at)
	VALUES (?, ?, ?, ?, ?, ?)
	ON CONFLICT (batch_id, row_num) DO UPDATE SET
		sku = excluded.sku, status = excluded.status, data = excluded.data, updated_at = excluded.updated_at`

// execer is the subset of *sql.DB and *sql.Tx used for writes.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *SQLiteStore) SaveBatch(ctx context.Context, b *model.Batch) error {
	fields, inputs, err := batchDocs(b)
	if err != nil {
		return err
	}
	b.UpdatedAt = time.Now().UTC()
	if b.CreatedAt.IsZero() {
		b.CreatedAt = b.UpdatedAt
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin save batch")
	}
	defer tx.Rollback() //nolint:errcheck

	_, err = tx.ExecContext(ctx,
		`INSERT INTO batches (id, name, fields, inputs, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT (id) DO UPDATE SET name = excluded.name, fields = excluded.fields,
		 	inputs = excluded.inputs, updated_at = excluded.updated_at`,
		b.ID, b.Name, string(fields), string(inputs), b.CreatedAt, b.UpdatedAt,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: upsert batch %s", b.ID)
	}
	for _, p := range b.Products {
		if err := upsertProductSQLite(ctx, tx, b.ID, p); err != nil {
			return err
		}
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit save batch")
}

func (s *SQLiteStore) GetBatch(ctx context.Context, id string) (*model.Batch, error) {
	b := &model.Batch{}
	var fields string
	var inputs sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, fields, inputs, created_at, updated_at FROM batches WHERE id = ?`, id,
	).Scan(&b.ID, &b.Name, &fields, &inputs, &b.CreatedAt, &b.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "batch %s", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get batch %s", id)
	}
	if err := decodeBatch(b, []byte(fields), []byte(inputs.String)); err != nil {
		return nil, err
	}

	b.Products, err = s.ListProducts(ctx, id, "")
	if err != nil {
		return nil, err
	}
	return b, nil
}

func (s *SQLiteStore) ListBatches(ctx context.Context, limit int) ([]model.BatchSummary, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, created_at, updated_at FROM batches ORDER BY created_at DESC LIMIT ?`,
		listLimit(limit),
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list batches")
	}
	var out []model.BatchSummary
	for rows.Next() {
		var bs model.BatchSummary
		if err := rows.Scan(&bs.ID, &bs.Name, &bs.CreatedAt, &bs.UpdatedAt); err != nil {
			rows.Close()
			return nil, eris.Wrap(err, "sqlite: scan batch")
		}
		out = append(out, bs)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "sqlite: list batches iterate")
	}

	for i := range out {
		counts, err := s.countStatuses(ctx, out[i].ID)
		if err != nil {
			return nil, err
		}
		out[i].Counts = counts
	}
	return out, nil
}

func (s *SQLiteStore) countStatuses(ctx context.Context, batchID string) (map[model.ProductStatus]int, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT status, COUNT(*) FROM products WHERE batch_id = ? GROUP BY status`, batchID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: count products of %s", batchID)
	}
	defer rows.Close()

	counts := make(map[model.ProductStatus]int)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan count")
		}
		counts[model.ProductStatus(status)] = n
	}
	return counts, eris.Wrap(rows.Err(), "sqlite: count iterate")
}

func (s *SQLiteStore) SaveProduct(ctx context.Context, batchID string, p *model.ProcessedProduct) error {
	return upsertProductSQLite(ctx, s.db, batchID, p)
}

func upsertProductSQLite(ctx context.Context, db execer, batchID string, p *model.ProcessedProduct) error {
	p.UpdatedAt = time.Now().UTC()
	data, err := json.Marshal(p)
	if err != nil {
		return eris.Wrapf(err, "sqlite: marshal product row %d", p.Row)
	}
	_, err = db.ExecContext(ctx, sqliteUpsertProduct,
		batchID, p.Row, p.SKU, string(p.Status), string(data), p.UpdatedAt,
	)
	return eris.Wrapf(err, "sqlite: upsert product %s row %d", batchID, p.Row)
}

func (s *SQLiteStore) ListProducts(ctx context.Context, batchID string, status model.ProductStatus) ([]*model.ProcessedProduct, error) {
	query := `SELECT data FROM products WHERE batch_id = ?`
	args := []any{batchID}
	if status != "" {
		query += ` AND status = ?`
		args = append(args, string(status))
	}
	query += ` ORDER BY row_num`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: list products of %s", batchID)
	}
	defer rows.Close()

	var out []*model.ProcessedProduct
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan product")
		}
		p, err := decodeProduct([]byte(data))
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list products iterate")
}

func (s *SQLiteStore) ResetFailed(ctx context.Context, batchID string) (int, error) {
	failed, err := s.ListProducts(ctx, batchID, model.ProductError)
	if err != nil {
		return 0, err
	}
	if len(failed) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: begin reset")
	}
	defer tx.Rollback() //nolint:errcheck

	n := 0
	for _, p := range failed {
		if !p.Reset() {
			continue
		}
		if err := upsertProductSQLite(ctx, tx, batchID, p); err != nil {
			return 0, err
		}
		n++
	}
	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "sqlite: commit reset")
	}
	return n, nil
}
