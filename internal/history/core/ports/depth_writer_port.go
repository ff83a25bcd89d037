package ports

import (
	"context"

	"liquidity-history-service/internal/history/core/domain"
)

type DepthWriterPort interface {
	// UpsertDepth:
	//   created = true,  err = nil  -> new record
	//   created = false, err = nil  -> existing (start_time, end_time) updated
	//   created = false, err != nil -> store error
	UpsertDepth(ctx context.Context, r domain.DepthRecord) (created bool, err error)

	// EnsureIndexes creates the unique (start_time, end_time) index.
	EnsureIndexes(ctx context.Context) error
}

// WatermarkPort persists the last successfully ingested upstream endTime per stream.
type WatermarkPort interface {
	LoadWatermark(ctx context.Context, stream string) (ts int64, found bool, err error)
	SaveWatermark(ctx context.Context, stream string, ts int64) error
}

// HistoryStore is everything a store adapter provides.
type HistoryStore interface {
	HistoryReaderPort
	DepthWriterPort
	WatermarkPort
}
