// Package stats counts the outcome of per-entity writes in a batch run.
package stats

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
)

// Batch tallies inserted, updated and failed entities. Safe for concurrent use.
type Batch struct {
	inserted atomic.Int64
	updated  atomic.Int64
	failed   atomic.Int64
}

// NewBatch creates an empty Batch.
func NewBatch() *Batch {
	return &Batch{}
}

// RecordUpsert counts one successful write as an insert or an update.
func (b *Batch) RecordUpsert(inserted bool) {
	if inserted {
		b.inserted.Add(1)
		return
	}
	b.updated.Add(1)
}

// RecordFailure counts one entity whose write failed.
func (b *Batch) RecordFailure() {
	b.failed.Add(1)
}

func (b *Batch) Inserted() int64 { return b.inserted.Load() }
func (b *Batch) Updated() int64  { return b.updated.Load() }
func (b *Batch) Failed() int64   { return b.failed.Load() }

// Succeeded returns inserts plus updates.
func (b *Batch) Succeeded() int64 {
	return b.Inserted() + b.Updated()
}

func (b *Batch) String() string {
	return fmt.Sprintf("inserted=%d updated=%d failed=%d", b.Inserted(), b.Updated(), b.Failed())
}

// LogSummary logs the tallies for one batch run at INFO level.
func (b *Batch) LogSummary(ctx context.Context, logger *slog.Logger, batch string) {
	logger.InfoContext(ctx, "batch summary",
		"batch", batch,
		"inserted", b.Inserted(),
		"updated", b.Updated(),
		"failed", b.Failed(),
	)
}
