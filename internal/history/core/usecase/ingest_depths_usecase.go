package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"liquidity-history-service/internal/history/core/ports"
)

// DepthStream names the durable watermark of the depth ingestion.
const DepthStream = "depth_history"

var (
	ErrIngestionInProgress   = errors.New("ingestion pass already running")
	ErrInvalidIngestionStart = errors.New("ingestion start must be a non-negative unix timestamp")
)

// IngestResult summarises one FetchAndStore call.
type IngestResult struct {
	From      int64
	Watermark int64 // last upstream endTime stored, From when nothing was stored
	Pages     int
	Created   int
	Updated   int
}

// IngestObserver receives per-row upsert outcomes; nil disables it.
type IngestObserver interface {
	RowUpserted(created bool)
}

type IngestDepthsUseCase struct {
	upstream   ports.UpstreamPort
	writer     ports.DepthWriterPort
	watermarks ports.WatermarkPort
	observer   IngestObserver
	now        func() time.Time
	running    atomic.Bool
}

// NewIngestDepthsUseCase wires the loop. watermarks may be nil, in which case
// progress is kept only in the returned result.
func NewIngestDepthsUseCase(upstream ports.UpstreamPort, writer ports.DepthWriterPort, watermarks ports.WatermarkPort) *IngestDepthsUseCase {
	return &IngestDepthsUseCase{
		upstream:   upstream,
		writer:     writer,
		watermarks: watermarks,
		now:        time.Now,
	}
}

func (uc *IngestDepthsUseCase) WithObserver(o IngestObserver) *IngestDepthsUseCase {
	uc.observer = o
	return uc
}

// WithClock overrides the "now" the loop runs up to.
func (uc *IngestDepthsUseCase) WithClock(now func() time.Time) *IngestDepthsUseCase {
	uc.now = now
	return uc
}

// FetchAndStore pages through the upstream from the given watermark until it
// reaches now or the upstream returns an empty window. Every interval is
// upserted on (start_time, end_time); the first failure aborts the call.
// Retrying is left to the caller.
func (uc *IngestDepthsUseCase) FetchAndStore(ctx context.Context, from int64) (IngestResult, error) {
	res := IngestResult{From: from, Watermark: from}

	if from < 0 {
		return res, ErrInvalidIngestionStart
	}
	if !uc.running.CompareAndSwap(false, true) {
		return res, ErrIngestionInProgress
	}
	defer uc.running.Store(false)

	now := uc.now().Unix()

	for res.Watermark < now {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		page, err := uc.upstream.FetchDepths(ctx, res.Watermark)
		if err != nil {
			return res, fmt.Errorf("fetch depths from %d: %w", res.Watermark, err)
		}
		res.Pages++

		log.Info("processing intervals", "from", res.Watermark, "count", len(page.Intervals))
		if len(page.Intervals) == 0 {
			break
		}

		for _, rec := range page.Intervals {
			created, err := uc.writer.UpsertDepth(ctx, rec)
			if err != nil {
				return res, fmt.Errorf("upsert depth [%d,%d]: %w", rec.StartTime.Unix(), rec.EndTime.Unix(), err)
			}
			if created {
				res.Created++
			} else {
				res.Updated++
			}
			if uc.observer != nil {
				uc.observer.RowUpserted(created)
			}
		}

		if page.EndTime <= res.Watermark {
			log.Warn("upstream watermark did not advance, stopping", "from", res.Watermark, "end_time", page.EndTime)
			break
		}
		res.Watermark = page.EndTime

		if uc.watermarks != nil {
			if err := uc.watermarks.SaveWatermark(ctx, DepthStream, res.Watermark); err != nil {
				return res, fmt.Errorf("save watermark %d: %w", res.Watermark, err)
			}
		}
	}

	return res, nil
}

// LastWatermark returns the persisted watermark, if any.
func (uc *IngestDepthsUseCase) LastWatermark(ctx context.Context) (int64, bool, error) {
	if uc.watermarks == nil {
		return 0, false, nil
	}
	return uc.watermarks.LoadWatermark(ctx, DepthStream)
}
