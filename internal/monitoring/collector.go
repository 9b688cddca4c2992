package monitoring

import (
	"context"
	"errors"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/catalog-enricher/internal/model"
	"github.com/sells-group/catalog-enricher/internal/pipeline"
)

// Snapshot is a point-in-time view of batch health, either for one run
// or for every batch touched within a lookback window.
type Snapshot struct {
	BatchID   string `json:"batch_id,omitempty"`
	BatchName string `json:"batch_name,omitempty"`
	Batches   int    `json:"batches"`

	Products  int     `json:"products"`
	Completed int     `json:"completed"`
	Failed    int     `json:"failed"`
	Pending   int     `json:"pending"`
	FailRate  float64 `json:"fail_rate"`
	Blockers  int     `json:"blockers"`
	CostUSD   float64 `json:"cost_usd"`

	Halted     bool   `json:"halted,omitempty"`
	HaltReason string `json:"halt_reason,omitempty"`

	LookbackHours int       `json:"lookback_hours,omitempty"`
	CollectedAt   time.Time `json:"collected_at"`
}

func (s *Snapshot) addCounts(counts map[model.ProductStatus]int) {
	s.Completed += counts[model.ProductCompleted]
	s.Failed += counts[model.ProductError]
	s.Pending += counts[model.ProductPending] + counts[model.ProductProcessing]
	s.Products = s.Completed + s.Failed + s.Pending
}

func (s *Snapshot) finish() {
	if finished := s.Completed + s.Failed; finished > 0 {
		s.FailRate = float64(s.Failed) / float64(finished)
	}
}

// FromRun builds the snapshot of a single pipeline run. runErr is the error
// Run returned; a FatalError marks the batch halted.
func FromRun(b *model.Batch, res *pipeline.BatchResult, runErr error) *Snapshot {
	snap := &Snapshot{
		BatchID:     b.ID,
		BatchName:   b.Name,
		Batches:     1,
		CollectedAt: time.Now().UTC(),
	}
	if res != nil {
		snap.addCounts(res.Counts)
		snap.Blockers = len(res.Blockers)
		snap.CostUSD = res.Cost
	} else {
		snap.addCounts(b.Counts())
	}
	var fatal *pipeline.FatalError
	if errors.As(runErr, &fatal) {
		snap.Halted = true
		snap.HaltReason = fatal.Error()
	}
	snap.finish()
	return snap
}

// BatchLister is the part of the store the collector reads.
type BatchLister interface {
	ListBatches(ctx context.Context, limit int) ([]model.BatchSummary, error)
}

// Collector aggregates stored batch counts.
type Collector struct {
	store BatchLister
}

// NewCollector creates a new metrics collector.
func NewCollector(st BatchLister) *Collector {
	return &Collector{store: st}
}

// Collect sums the product counts of every batch updated within the
// lookback window.
func (c *Collector) Collect(ctx context.Context, lookbackHours int) (*Snapshot, error) {
	now := time.Now().UTC()
	snap := &Snapshot{
		LookbackHours: lookbackHours,
		CollectedAt:   now,
	}
	cutoff := now.Add(-time.Duration(lookbackHours) * time.Hour)

	batches, err := c.store.ListBatches(ctx, 10000)
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: list batches")
	}
	for _, b := range batches {
		if b.UpdatedAt.Before(cutoff) {
			continue
		}
		snap.Batches++
		snap.addCounts(b.Counts)
	}
	snap.finish()
	return snap, nil
}
