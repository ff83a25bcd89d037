package ports

import (
	"context"

	"liquidity-history-service/internal/history/core/domain"
)

// DepthPage is one upstream response window.
type DepthPage struct {
	Intervals []domain.DepthRecord
	EndTime   int64 // meta.endTime, the next watermark
}

type UpstreamPort interface {
	FetchDepths(ctx context.Context, from int64) (*DepthPage, error)
}
