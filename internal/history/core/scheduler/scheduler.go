// Package scheduler drives the depth ingestion loop.
//
// One backfill pass runs at startup from the durable watermark. After that
// a pass runs on every cadence tick. A failed pass is followed by a backoff
// sleep that doubles from a floor up to a ceiling and resets after the next
// success; the retry itself is the next tick.
package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"

	"liquidity-history-service/internal/history/core/ports"
	"liquidity-history-service/internal/history/core/usecase"
	"liquidity-history-service/internal/logging"
)

var log = logging.Component("scheduler")

// =============================================================================
// Configuration
// =============================================================================

const (
	DefaultCadence        = time.Hour
	DefaultBackoffFloor   = 60 * time.Second
	DefaultBackoffCeiling = 900 * time.Second

	// DefaultInitialWatermark is the first hour the upstream has depth data for.
	DefaultInitialWatermark int64 = 1647910800
)

// Config holds scheduler timings.
type Config struct {
	Cadence          time.Duration
	BackoffFloor     time.Duration
	BackoffCeiling   time.Duration
	InitialWatermark int64
}

// DefaultConfig returns the production timings.
func DefaultConfig() Config {
	return Config{
		Cadence:          DefaultCadence,
		BackoffFloor:     DefaultBackoffFloor,
		BackoffCeiling:   DefaultBackoffCeiling,
		InitialWatermark: DefaultInitialWatermark,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Cadence <= 0 {
		c.Cadence = d.Cadence
	}
	if c.BackoffFloor <= 0 {
		c.BackoffFloor = d.BackoffFloor
	}
	if c.BackoffCeiling < c.BackoffFloor {
		c.BackoffCeiling = c.BackoffFloor
	}
	if c.InitialWatermark <= 0 {
		c.InitialWatermark = d.InitialWatermark
	}
	return c
}

// =============================================================================
// Collaborators
// =============================================================================

// Ingester runs one ingestion pass.
type Ingester interface {
	FetchAndStore(ctx context.Context, from int64) (usecase.IngestResult, error)
}

// Observer receives pass outcomes and backoff changes; nil disables it.
type Observer interface {
	PassFinished(outcome string, d time.Duration)
	BackoffChanged(d time.Duration)
}

// Pass outcomes reported to the Observer.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
	OutcomeSkipped = "skipped"
)

type sleepFunc func(ctx context.Context, d time.Duration) error

type tickerFunc func(d time.Duration) (<-chan time.Time, func())

// =============================================================================
// Scheduler
// =============================================================================

type Scheduler struct {
	ingester   Ingester
	watermarks ports.WatermarkPort
	observer   Observer
	cfg        Config

	now       func() time.Time
	sleep     sleepFunc
	newTicker tickerFunc

	backoff       *backoff.ExponentialBackOff
	lastWatermark atomic.Int64
}

// New creates a scheduler. watermarks may be nil; the startup pass then
// always begins at cfg.InitialWatermark.
func New(ingester Ingester, watermarks ports.WatermarkPort, cfg Config) *Scheduler {
	cfg = cfg.withDefaults()

	b := &backoff.ExponentialBackOff{
		InitialInterval:     cfg.BackoffFloor,
		RandomizationFactor: 0,
		Multiplier:          2,
		MaxInterval:         cfg.BackoffCeiling,
		MaxElapsedTime:      0,
		Stop:                backoff.Stop,
		Clock:               backoff.SystemClock,
	}
	b.Reset()

	return &Scheduler{
		ingester:   ingester,
		watermarks: watermarks,
		cfg:        cfg,
		now:        time.Now,
		sleep:      sleepContext,
		newTicker:  systemTicker,
		backoff:    b,
	}
}

func (s *Scheduler) WithObserver(o Observer) *Scheduler {
	s.observer = o
	return s
}

// LastWatermark returns the newest watermark reached by a pass.
func (s *Scheduler) LastWatermark() int64 {
	return s.lastWatermark.Load()
}

// Run performs the startup backfill, then one pass per cadence tick. It
// returns only when ctx is done.
func (s *Scheduler) Run(ctx context.Context, initialWatermark int64) error {
	start := initialWatermark
	if start <= 0 {
		start = s.cfg.InitialWatermark
	}

	if s.watermarks != nil {
		stored, found, err := s.watermarks.LoadWatermark(ctx, usecase.DepthStream)
		switch {
		case err != nil:
			log.Warn("loading stored watermark failed, using initial", "error", err, "initial", start)
		case found:
			log.Info("resuming from stored watermark", "watermark", stored)
			start = stored
		}
	}
	s.lastWatermark.Store(start)

	log.Info("scheduler starting", "from", start, "cadence", s.cfg.Cadence)

	if err := s.runPass(ctx, start); err != nil {
		return err
	}

	ticks, stop := s.newTicker(s.cfg.Cadence)
	defer stop()

	for {
		select {
		case <-ctx.Done():
			log.Info("scheduler stopped")
			return ctx.Err()
		case <-ticks:
			if err := s.runPass(ctx, s.nextFrom()); err != nil {
				return err
			}
		}
	}
}

// nextFrom looks one cadence back, or further when the stored progress lags.
func (s *Scheduler) nextFrom() int64 {
	from := s.now().Add(-s.cfg.Cadence).Unix()
	if last := s.lastWatermark.Load(); last < from {
		from = last
	}
	return from
}

// runPass makes one FetchAndStore attempt. A failure sleeps the current
// backoff and doubles it; the next tick retries from the progress kept in
// lastWatermark. Only a cancelled context is returned as an error.
func (s *Scheduler) runPass(ctx context.Context, from int64) error {
	started := s.now()
	res, err := s.ingester.FetchAndStore(ctx, from)
	if res.Watermark > s.lastWatermark.Load() {
		s.lastWatermark.Store(res.Watermark)
	}

	if err == nil {
		s.finished(OutcomeSuccess, started)
		log.Info("ingestion pass done",
			"from", from,
			"watermark", res.Watermark,
			"pages", res.Pages,
			"created", res.Created,
			"updated", res.Updated,
		)
		s.backoff.Reset()
		s.backoffChanged(0)
		return nil
	}

	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}

	if errors.Is(err, usecase.ErrIngestionInProgress) {
		s.finished(OutcomeSkipped, started)
		log.Info("ingestion pass skipped, another pass is running", "from", from)
		return nil
	}

	s.finished(OutcomeFailure, started)

	wait := s.backoff.NextBackOff()
	s.backoffChanged(wait)
	log.Error("ingestion pass failed, backing off", "error", err, "from", from, "reached", res.Watermark, "backoff", wait)

	return s.sleep(ctx, wait)
}

func (s *Scheduler) finished(outcome string, started time.Time) {
	if s.observer != nil {
		s.observer.PassFinished(outcome, s.now().Sub(started))
	}
}

func (s *Scheduler) backoffChanged(d time.Duration) {
	if s.observer != nil {
		s.observer.BackoffChanged(d)
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func systemTicker(d time.Duration) (<-chan time.Time, func()) {
	t := time.NewTicker(d)
	return t.C, t.Stop
}
