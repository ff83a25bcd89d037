package ports

import (
	"context"

	"liquidity-history-service/internal/history/core/domain"
)

// HistoryReaderPort runs an aggregation pipeline against the depth collection.
// Rows that fail to decode are skipped, never reported as an error.
type HistoryReaderPort interface {
	QueryRecords(ctx context.Context, p domain.Pipeline) ([]domain.DepthRecord, error)
	QueryBuckets(ctx context.Context, p domain.Pipeline) ([]domain.DepthBucket, error)
}

// SkipRecorder counts rows dropped by an executor.
type SkipRecorder interface {
	RowSkipped(store string)
}
