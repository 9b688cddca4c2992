package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/catalog-enricher/internal/db"
	"github.com/sells-group/catalog-enricher/internal/model"
)

// Pool is the subset of *pgxpool.Pool the store uses. pgxmock satisfies it.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(4)
	minConns := int32(1)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS batches (
	id         TEXT PRIMARY KEY,
	name       TEXT NOT NULL,
	fields     JSONB NOT NULL,
	inputs     JSONB,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS products (
	batch_id   TEXT NOT NULL REFERENCES batches(id) ON DELETE CASCADE,
	row_num    INTEGER NOT NULL,
	sku        TEXT NOT NULL,
	status     TEXT NOT NULL DEFAULT 'pending',
	data       JSONB NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (batch_id, row_num)
);

CREATE INDEX IF NOT EXISTS idx_products_status ON products(batch_id, status);
CREATE INDEX IF NOT EXISTS idx_batches_created_at ON batches(created_at DESC);
`

const pgUpsertProduct = `INSERT INTO products (batch_id, row_num, sku, status, data, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6)
	ON CONFLICT (batch_id, row_num) DO UPDATE SET
		sku = EXCLUDED.sku, status = EXCLUDED.status, data = EXCLUDED.data, updated_at = EXCLUDED.updated_at`

// pgExecer is the subset of Pool and pgx.Tx used for writes.
type pgExecer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) SaveBatch(ctx context.Context, b *model.Batch) error {
	fields, inputs, err := batchDocs(b)
	if err != nil {
		return err
	}
	b.UpdatedAt = time.Now().UTC()
	if b.CreatedAt.IsZero() {
		b.CreatedAt = b.UpdatedAt
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: begin save batch")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	_, err = tx.Exec(ctx,
		`INSERT INTO batches (id, name, fields, inputs, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (id) DO UPDATE SET name = $2, fields = $3, inputs = $4, updated_at = $6`,
		b.ID, b.Name, fields, inputs, b.CreatedAt, b.UpdatedAt,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: upsert batch %s", b.ID)
	}
	if len(b.Products) >= bulkThreshold {
		if err := bulkUpsertProductsPG(ctx, tx, b.ID, b.Products); err != nil {
			return err
		}
	} else {
		for _, p := range b.Products {
			if err := upsertProductPG(ctx, tx, b.ID, p); err != nil {
				return err
			}
		}
	}
	return eris.Wrap(tx.Commit(ctx), "postgres: commit save batch")
}

// bulkThreshold is the product count from which SaveBatch switches from
// per-row upserts to COPY.
const bulkThreshold = 50

var productUpsert = db.UpsertConfig{
	Table:        "products",
	Columns:      []string{"batch_id", "row_num", "sku", "status", "data", "updated_at"},
	ConflictKeys: []string{"batch_id", "row_num"},
}

func bulkUpsertProductsPG(ctx context.Context, tx pgx.Tx, batchID string, products []*model.ProcessedProduct) error {
	now := time.Now().UTC()
	rows := make([][]any, len(products))
	for i, p := range products {
		p.UpdatedAt = now
		data, err := json.Marshal(p)
		if err != nil {
			return eris.Wrapf(err, "postgres: marshal product row %d", p.Row)
		}
		rows[i] = []any{batchID, p.Row, p.SKU, string(p.Status), data, p.UpdatedAt}
	}
	_, err := db.BulkUpsert(ctx, tx, productUpsert, rows)
	return eris.Wrapf(err, "postgres: bulk upsert products of %s", batchID)
}

func (s *PostgresStore) GetBatch(ctx context.Context, id string) (*model.Batch, error) {
	b := &model.Batch{}
	var fields, inputs []byte
	err := s.pool.QueryRow(ctx,
		`SELECT id, name, fields, inputs, created_at, updated_at FROM batches WHERE id = $1`, id,
	).Scan(&b.ID, &b.Name, &fields, &inputs, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, eris.Wrapf(ErrNotFound, "batch %s", id)
		}
		return nil, eris.Wrapf(err, "postgres: get batch %s", id)
	}
	if err := decodeBatch(b, fields, inputs); err != nil {
		return nil, err
	}

	b.Products, err = s.ListProducts(ctx, id, "")
	if err != nil {
		return nil, err
	}
	return b, nil
}

func (s *PostgresStore) ListBatches(ctx context.Context, limit int) ([]model.BatchSummary, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT b.id, b.name, b.created_at, b.updated_at, p.status, COUNT(p.row_num)
		 FROM (SELECT * FROM batches ORDER BY created_at DESC LIMIT $1) b
		 LEFT JOIN products p ON p.batch_id = b.id
		 GROUP BY b.id, b.name, b.created_at, b.updated_at, p.status
		 ORDER BY b.created_at DESC`,
		listLimit(limit),
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list batches")
	}
	defer rows.Close()

	var out []model.BatchSummary
	index := make(map[string]int)
	for rows.Next() {
		var bs model.BatchSummary
		var status *string
		var n int
		if err := rows.Scan(&bs.ID, &bs.Name, &bs.CreatedAt, &bs.UpdatedAt, &status, &n); err != nil {
			return nil, eris.Wrap(err, "postgres: scan batch")
		}
		i, ok := index[bs.ID]
		if !ok {
			bs.Counts = make(map[model.ProductStatus]int)
			out = append(out, bs)
			i = len(out) - 1
			index[bs.ID] = i
		}
		if status != nil {
			out[i].Counts[model.ProductStatus(*status)] = n
		}
	}
	return out, eris.Wrap(rows.Err(), "postgres: list batches iterate")
}

func (s *PostgresStore) SaveProduct(ctx context.Context, batchID string, p *model.ProcessedProduct) error {
	return upsertProductPG(ctx, s.pool, batchID, p)
}

func upsertProductPG(ctx context.Context, ex pgExecer, batchID string, p *model.ProcessedProduct) error {
	p.UpdatedAt = time.Now().UTC()
	data, err := json.Marshal(p)
	if err != nil {
		return eris.Wrapf(err, "postgres: marshal product row %d", p.Row)
	}
	_, err = ex.Exec(ctx, pgUpsertProduct,
		batchID, p.Row, p.SKU, string(p.Status), data, p.UpdatedAt,
	)
	return eris.Wrapf(err, "postgres: upsert product %s row %d", batchID, p.Row)
}

func (s *PostgresStore) ListProducts(ctx context.Context, batchID string, status model.ProductStatus) ([]*model.ProcessedProduct, error) {
	query := `SELECT data FROM products WHERE batch_id = $1`
	args := []any{batchID}
	if status != "" {
		query += ` AND status = $2`
		args = append(args, string(status))
	}
	query += ` ORDER BY row_num`

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: list products of %s", batchID)
	}
	defer rows.Close()

	var out []*model.ProcessedProduct
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, eris.Wrap(err, "postgres: scan product")
		}
		p, err := decodeProduct(data)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list products iterate")
}

func (s *PostgresStore) ResetFailed(ctx context.Context, batchID string) (int, error) {
	failed, err := s.ListProducts(ctx, batchID, model.ProductError)
	if err != nil {
		return 0, err
	}
	if len(failed) == 0 {
		return 0, nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: begin reset")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	n := 0
	for _, p := range failed {
		if !p.Reset() {
			continue
		}
		if err := upsertProductPG(ctx, tx, batchID, p); err != nil {
			return 0, err
		}
		n++
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, eris.Wrap(err, "postgres: commit reset")
	}
	return n, nil
}
