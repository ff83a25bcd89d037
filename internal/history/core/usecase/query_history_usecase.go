package usecase

import (
	"context"
	"errors"
	"time"

	"liquidity-history-service/internal/history/core/domain"
	"liquidity-history-service/internal/history/core/ports"
)

var ErrInvalidHistoryFrom = errors.New("from must be a non-negative unix timestamp")

// QueryObserver records query latency; nil disables it.
type QueryObserver interface {
	ObserveQuery(kind string, d time.Duration, err error)
}

type QueryHistoryUseCase struct {
	reader   ports.HistoryReaderPort
	builder  *PipelineBuilder
	observer QueryObserver
}

func NewQueryHistoryUseCase(reader ports.HistoryReaderPort, builder *PipelineBuilder) *QueryHistoryUseCase {
	if builder == nil {
		builder = NewPipelineBuilder()
	}
	return &QueryHistoryUseCase{reader: reader, builder: builder}
}

// WithObserver attaches a latency observer.
func (uc *QueryHistoryUseCase) WithObserver(o QueryObserver) *QueryHistoryUseCase {
	uc.observer = o
	return uc
}

// Execute builds the pipeline for params and runs it. Raw records come back
// for ungrouped pipelines, buckets otherwise.
func (uc *QueryHistoryUseCase) Execute(ctx context.Context, params domain.QueryParams) (*domain.HistoryResult, error) {
	pipeline, applied := uc.builder.Build(params)
	log.Debug("built query pipeline", "pipeline", pipeline.String(), "warnings", len(applied.Warnings))

	res := &domain.HistoryResult{
		Grouped: pipeline.Grouped(),
		Applied: applied,
	}

	started := time.Now()
	var err error
	if res.Grouped {
		res.Buckets, err = uc.reader.QueryBuckets(ctx, pipeline)
		uc.observe("buckets", started, err)
	} else {
		res.Records, err = uc.reader.QueryRecords(ctx, pipeline)
		uc.observe("records", started, err)
	}
	if err != nil {
		return nil, err
	}

	return res, nil
}

// ListSince returns up to count records (default and cap MaxLimit) whose
// start_time is at or after from, oldest first.
func (uc *QueryHistoryUseCase) ListSince(ctx context.Context, from *int64, count *int64) ([]domain.DepthRecord, error) {
	var pipeline domain.Pipeline

	if from != nil {
		if *from < 0 {
			return nil, ErrInvalidHistoryFrom
		}
		start := time.Unix(*from, 0).UTC()
		pipeline = append(pipeline, domain.MatchStage(domain.FieldStartTime, domain.DateRange{Start: &start}))
	}

	limit := uc.builder.maxLimit
	if count != nil {
		limit = uc.builder.clampLimit(*count, &domain.AppliedFilters{})
	}

	pipeline = append(pipeline,
		domain.SortStage(domain.FieldStartTime, false),
		domain.LimitStage(limit),
	)

	started := time.Now()
	records, err := uc.reader.QueryRecords(ctx, pipeline)
	uc.observe("since", started, err)
	if err != nil {
		return nil, err
	}
	return records, nil
}

func (uc *QueryHistoryUseCase) observe(kind string, started time.Time, err error) {
	if uc.observer == nil {
		return
	}
	uc.observer.ObserveQuery(kind, time.Since(started), err)
}
