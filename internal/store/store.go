package store

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/catalog-enricher/internal/config"
	"github.com/sells-group/catalog-enricher/internal/model"
)

// ErrNotFound is returned when a batch does not exist.
var ErrNotFound = eris.New("store: not found")

// Store persists batches and their products so interrupted or partially
// failed runs can be resumed.
type Store interface {
	// SaveBatch upserts the batch metadata and every product it carries.
	SaveBatch(ctx context.Context, b *model.Batch) error
	// GetBatch loads a batch together with its products in row order.
	GetBatch(ctx context.Context, id string) (*model.Batch, error)
	ListBatches(ctx context.Context, limit int) ([]model.BatchSummary, error)

	SaveProduct(ctx context.Context, batchID string, p *model.ProcessedProduct) error
	// ListProducts returns the products of a batch in row order. An empty
	// status returns every product.
	ListProducts(ctx context.Context, batchID string, status model.ProductStatus) ([]*model.ProcessedProduct, error)
	// ResetFailed returns errored products of a batch to pending.
	ResetFailed(ctx context.Context, batchID string) (int, error)

	Migrate(ctx context.Context) error
	Close() error
}

// Open connects to the configured driver and applies migrations.
func Open(ctx context.Context, cfg config.StoreConfig) (Store, error) {
	var (
		st  Store
		err error
	)
	switch strings.ToLower(cfg.Driver) {
	case "", "sqlite":
		dsn := cfg.DatabaseURL
		if dsn == "" {
			dsn = "catalog-enricher.db"
		}
		st, err = NewSQLite(dsn)
	case "postgres":
		st, err = NewPostgres(ctx, cfg.DatabaseURL, nil)
	default:
		return nil, eris.Errorf("store: unsupported driver %q", cfg.Driver)
	}
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close() //nolint:errcheck
		return nil, err
	}
	return st, nil
}

func batchDocs(b *model.Batch) (fields, inputs []byte, err error) {
	fields, err = json.Marshal(b.Fields)
	if err != nil {
		return nil, nil, eris.Wrap(err, "store: marshal fields")
	}
	inputs, err = json.Marshal(b.Inputs)
	if err != nil {
		return nil, nil, eris.Wrap(err, "store: marshal inputs")
	}
	return fields, inputs, nil
}

func decodeBatch(b *model.Batch, fields, inputs []byte) error {
	if err := json.Unmarshal(fields, &b.Fields); err != nil {
		return eris.Wrapf(err, "store: unmarshal fields of batch %s", b.ID)
	}
	if len(inputs) > 0 {
		if err := json.Unmarshal(inputs, &b.Inputs); err != nil {
			return eris.Wrapf(err, "store: unmarshal inputs of batch %s", b.ID)
		}
	}
	return nil
}

func decodeProduct(data []byte) (*model.ProcessedProduct, error) {
	var p model.ProcessedProduct
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, eris.Wrap(err, "store: unmarshal product")
	}
	if p.Values == nil {
		p.Values = make(map[string]string)
	}
	if p.Audit == nil {
		p.Audit = make(map[string]model.SourceInfo)
	}
	return &p, nil
}

func listLimit(limit int) int {
	if limit <= 0 {
		return 100
	}
	return limit
}
