package monitoring

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/catalog-enricher/internal/cost"
	"github.com/sells-group/catalog-enricher/internal/model"
	"github.com/sells-group/catalog-enricher/internal/pipeline"
)

type mockStore struct {
	batches []model.BatchSummary
	err     error
}

func (m *mockStore) ListBatches(_ context.Context, _ int) ([]model.BatchSummary, error) {
	return m.batches, m.err
}

func TestCollector_Collect(t *testing.T) {
	now := time.Now().UTC()
	st := &mockStore{batches: []model.BatchSummary{
		{ID: "recent", UpdatedAt: now.Add(-time.Hour), Counts: map[model.ProductStatus]int{
			model.ProductCompleted: 8, model.ProductError: 2,
		}},
		{ID: "running", UpdatedAt: now, Counts: map[model.ProductStatus]int{
			model.ProductCompleted: 2, model.ProductPending: 5, model.ProductProcessing: 1,
		}},
		{ID: "old", UpdatedAt: now.Add(-48 * time.Hour), Counts: map[model.ProductStatus]int{
			model.ProductError: 50,
		}},
	}}

	snap, err := NewCollector(st).Collect(context.Background(), 24)
	require.NoError(t, err)
	assert.Equal(t, 2, snap.Batches)
	assert.Equal(t, 10, snap.Completed)
	assert.Equal(t, 2, snap.Failed)
	assert.Equal(t, 6, snap.Pending)
	assert.Equal(t, 18, snap.Products)
	assert.InDelta(t, 2.0/12.0, snap.FailRate, 1e-9)
	assert.Equal(t, 24, snap.LookbackHours)
	assert.Empty(t, snap.BatchID)
}

func TestCollector_Collect_Empty(t *testing.T) {
	snap, err := NewCollector(&mockStore{}).Collect(context.Background(), 24)
	require.NoError(t, err)
	assert.Zero(t, snap.Batches)
	assert.Zero(t, snap.FailRate)
}

func TestCollector_Collect_StoreError(t *testing.T) {
	_, err := NewCollector(&mockStore{err: errors.New("db down")}).Collect(context.Background(), 24)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "monitoring: list batches")
}

func TestFromRun(t *testing.T) {
	b := &model.Batch{ID: "b1", Name: "lampade"}
	res := &pipeline.BatchResult{
		Counts: map[model.ProductStatus]int{
			model.ProductCompleted: 6, model.ProductError: 4,
		},
		Blockers: []model.Blocker{{SKU: "A1", Field: "WATT", Message: "missing"}},
		Usage:    cost.Usage{Calls: 10},
		Cost:     0.42,
	}

	snap := FromRun(b, res, nil)
	assert.Equal(t, "b1", snap.BatchID)
	assert.Equal(t, "lampade", snap.BatchName)
	assert.Equal(t, 1, snap.Batches)
	assert.Equal(t, 10, snap.Products)
	assert.InDelta(t, 0.4, snap.FailRate, 1e-9)
	assert.Equal(t, 1, snap.Blockers)
	assert.InDelta(t, 0.42, snap.CostUSD, 1e-9)
	assert.False(t, snap.Halted)
}

func TestFromRun_Halted(t *testing.T) {
	b := &model.Batch{ID: "b1", Products: []*model.ProcessedProduct{
		{SKU: "A1", Status: model.ProductCompleted},
		{SKU: "B2", Status: model.ProductPending},
	}}
	fatal := &pipeline.FatalError{SKU: "B2", Err: errors.New("invalid api key")}

	snap := FromRun(b, nil, fatal)
	assert.True(t, snap.Halted)
	assert.Contains(t, snap.HaltReason, "SKU B2")
	assert.Equal(t, 1, snap.Completed)
	assert.Equal(t, 1, snap.Pending)
}
