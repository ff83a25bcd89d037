package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"liquidity-history-service/internal/history/core/domain"
	"liquidity-history-service/internal/history/core/ports"
	"liquidity-history-service/internal/logging"
)

const storeName = "postgres"

var log = logging.Component("store.postgres")

type HistoryRepository struct {
	db    DB
	skips ports.SkipRecorder
}

func NewHistoryRepository(db DB) *HistoryRepository {
	return &HistoryRepository{db: db}
}

var _ ports.HistoryStore = (*HistoryRepository)(nil)

// WithSkipRecorder counts rows dropped while scanning query results.
func (r *HistoryRepository) WithSkipRecorder(s ports.SkipRecorder) *HistoryRepository {
	r.skips = s
	return r
}

// xmax is 0 only for a row this statement inserted.
const upsertDepthSQL = `
INSERT INTO depth_history (
    start_time,
    end_time,
    asset_depth,
    asset_price,
    asset_price_usd,
    liquidity_units,
    luvi,
    members_count,
    rune_depth,
    synth_supply,
    synth_units,
    units
) VALUES (
    $1, $2, $3, $4, $5, $6,
    $7, $8, $9, $10, $11, $12
)
ON CONFLICT (start_time, end_time) DO UPDATE SET
    asset_depth     = EXCLUDED.asset_depth,
    asset_price     = EXCLUDED.asset_price,
    asset_price_usd = EXCLUDED.asset_price_usd,
    liquidity_units = EXCLUDED.liquidity_units,
    luvi            = EXCLUDED.luvi,
    members_count   = EXCLUDED.members_count,
    rune_depth      = EXCLUDED.rune_depth,
    synth_supply    = EXCLUDED.synth_supply,
    synth_units     = EXCLUDED.synth_units,
    units           = EXCLUDED.units
RETURNING (xmax = 0) AS inserted;
`

func (r *HistoryRepository) UpsertDepth(ctx context.Context, d domain.DepthRecord) (bool, error) {
	rows, err := r.db.QueryContext(ctx, upsertDepthSQL,
		d.StartTime.UTC(),
		d.EndTime.UTC(),
		d.AssetDepth,
		d.AssetPrice,
		d.AssetPriceUSD,
		d.LiquidityUnits,
		d.Luvi,
		d.MembersCount,
		d.RuneDepth,
		d.SynthSupply,
		d.SynthUnits,
		d.Units,
	)
	if err != nil {
		return false, err
	}
	defer rows.Close()

	var inserted bool
	if rows.Next() {
		if err := rows.Scan(&inserted); err != nil {
			return false, err
		}
	}
	if err := rows.Err(); err != nil {
		return false, err
	}
	return inserted, nil
}

const loadWatermarkSQL = `SELECT watermark FROM ingestion_state WHERE stream = $1`

const saveWatermarkSQL = `
INSERT INTO ingestion_state (stream, watermark, updated_at)
VALUES ($1, $2, $3)
ON CONFLICT (stream) DO UPDATE SET
    watermark  = EXCLUDED.watermark,
    updated_at = EXCLUDED.updated_at;
`

func (r *HistoryRepository) LoadWatermark(ctx context.Context, stream string) (int64, bool, error) {
	rows, err := r.db.QueryContext(ctx, loadWatermarkSQL, stream)
	if err != nil {
		return 0, false, fmt.Errorf("load watermark %s: %w", stream, err)
	}
	defer rows.Close()

	if !rows.Next() {
		return 0, false, rows.Err()
	}
	var ts int64
	if err := rows.Scan(&ts); err != nil {
		return 0, false, fmt.Errorf("scan watermark %s: %w", stream, err)
	}
	return ts, true, nil
}

func (r *HistoryRepository) SaveWatermark(ctx context.Context, stream string, ts int64) error {
	if _, err := r.db.ExecContext(ctx, saveWatermarkSQL, stream, ts, time.Now().UTC()); err != nil {
		return fmt.Errorf("save watermark %s: %w", stream, err)
	}
	return nil
}

func (r *HistoryRepository) QueryRecords(ctx context.Context, p domain.Pipeline) ([]domain.DepthRecord, error) {
	q := compilePipeline(p)
	if q.group != nil {
		return nil, fmt.Errorf("postgres: grouped pipeline passed to QueryRecords")
	}

	rows, err := r.db.QueryContext(ctx, q.text, q.args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.DepthRecord
	for rows.Next() {
		var d domain.DepthRecord
		err := rows.Scan(
			&d.StartTime,
			&d.EndTime,
			&d.AssetDepth,
			&d.AssetPrice,
			&d.AssetPriceUSD,
			&d.LiquidityUnits,
			&d.Luvi,
			&d.MembersCount,
			&d.RuneDepth,
			&d.SynthSupply,
			&d.SynthUnits,
			&d.Units,
		)
		if err != nil {
			r.skip("record", err)
			continue
		}
		d.StartTime = d.StartTime.UTC()
		d.EndTime = d.EndTime.UTC()
		out = append(out, d)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *HistoryRepository) QueryBuckets(ctx context.Context, p domain.Pipeline) ([]domain.DepthBucket, error) {
	q := compilePipeline(p)
	if q.group == nil {
		return nil, fmt.Errorf("postgres: pipeline without group stage passed to QueryBuckets")
	}

	rows, err := r.db.QueryContext(ctx, q.text, q.args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.DepthBucket
	for rows.Next() {
		var b domain.DepthBucket
		avgs := make([]sql.NullFloat64, len(q.group.Averages))

		dest := []any{
			&b.Key.Year,
			&b.Key.Month,
			&b.Key.Day,
			&b.Key.Hour,
			&b.Key.Week,
			&b.StartTime,
			&b.EndTime,
		}
		for i := range avgs {
			dest = append(dest, &avgs[i])
		}

		if err := rows.Scan(dest...); err != nil {
			r.skip("bucket", err)
			continue
		}

		b.StartTime = b.StartTime.UTC()
		b.EndTime = b.EndTime.UTC()
		b.Averages = make(map[string]*float64, len(avgs))
		for i, f := range q.group.Averages {
			if avgs[i].Valid {
				v := avgs[i].Float64
				b.Averages[f] = &v
			} else {
				b.Averages[f] = nil
			}
		}
		out = append(out, b)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *HistoryRepository) skip(kind string, err error) {
	log.Warn("skipping unscannable row", "kind", kind, "error", err)
	if r.skips != nil {
		r.skips.RowSkipped(storeName)
	}
}
