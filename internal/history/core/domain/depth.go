package domain

import "time"

// Stored field names. Every store adapter and the pipeline builder use these;
// upstream (camelCase) spellings are only accepted as aliases via ResolveField.
const (
	FieldStartTime      = "start_time"
	FieldEndTime        = "end_time"
	FieldAssetDepth     = "asset_depth"
	FieldAssetPrice     = "asset_price"
	FieldAssetPriceUSD  = "asset_price_usd"
	FieldLiquidityUnits = "liquidity_units"
	FieldLuvi           = "luvi"
	FieldMembersCount   = "members_count"
	FieldRuneDepth      = "rune_depth"
	FieldSynthSupply    = "synth_supply"
	FieldSynthUnits     = "synth_units"
	FieldUnits          = "units"
)

// NumericFields are the passthrough metric columns averaged by bucketing.
var NumericFields = []string{
	FieldAssetDepth,
	FieldAssetPrice,
	FieldAssetPriceUSD,
	FieldLiquidityUnits,
	FieldLuvi,
	FieldMembersCount,
	FieldRuneDepth,
	FieldSynthSupply,
	FieldSynthUnits,
	FieldUnits,
}

// TimeFields are stored as UTC datetimes.
var TimeFields = []string{FieldStartTime, FieldEndTime}

// upstreamNames maps stored names to the upstream API (and JSON response) spelling.
var upstreamNames = map[string]string{
	FieldStartTime:      "startTime",
	FieldEndTime:        "endTime",
	FieldAssetDepth:     "assetDepth",
	FieldAssetPrice:     "assetPrice",
	FieldAssetPriceUSD:  "assetPriceUSD",
	FieldLiquidityUnits: "liquidityUnits",
	FieldLuvi:           "luvi",
	FieldMembersCount:   "membersCount",
	FieldRuneDepth:      "runeDepth",
	FieldSynthSupply:    "synthSupply",
	FieldSynthUnits:     "synthUnits",
	FieldUnits:          "units",
}

var fieldAliases = func() map[string]string {
	m := make(map[string]string, len(upstreamNames)*2)
	for stored, upstream := range upstreamNames {
		m[stored] = stored
		m[upstream] = stored
	}
	return m
}()

// UpstreamName returns the upstream spelling of a stored field.
func UpstreamName(field string) string {
	return upstreamNames[field]
}

// ResolveField maps a caller supplied field name (stored or upstream spelling)
// to its stored name. Unknown names are rejected.
func ResolveField(name string) (string, bool) {
	stored, ok := fieldAliases[name]
	return stored, ok
}

// IsTimeField reports whether the stored field holds a datetime.
func IsTimeField(field string) bool {
	return field == FieldStartTime || field == FieldEndTime
}

// DepthRecord is one upstream reporting interval, keyed by (StartTime, EndTime).
type DepthRecord struct {
	StartTime      time.Time
	EndTime        time.Time
	AssetDepth     string
	AssetPrice     string
	AssetPriceUSD  string
	LiquidityUnits string
	Luvi           string
	MembersCount   string
	RuneDepth      string
	SynthSupply    string
	SynthUnits     string
	Units          string
}

// NumericValue returns the raw text of a numeric field.
func (r DepthRecord) NumericValue(field string) (string, bool) {
	switch field {
	case FieldAssetDepth:
		return r.AssetDepth, true
	case FieldAssetPrice:
		return r.AssetPrice, true
	case FieldAssetPriceUSD:
		return r.AssetPriceUSD, true
	case FieldLiquidityUnits:
		return r.LiquidityUnits, true
	case FieldLuvi:
		return r.Luvi, true
	case FieldMembersCount:
		return r.MembersCount, true
	case FieldRuneDepth:
		return r.RuneDepth, true
	case FieldSynthSupply:
		return r.SynthSupply, true
	case FieldSynthUnits:
		return r.SynthUnits, true
	case FieldUnits:
		return r.Units, true
	}
	return "", false
}

// SetNumericValue assigns the raw text of a numeric field. Unknown fields are ignored.
func (r *DepthRecord) SetNumericValue(field, value string) {
	switch field {
	case FieldAssetDepth:
		r.AssetDepth = value
	case FieldAssetPrice:
		r.AssetPrice = value
	case FieldAssetPriceUSD:
		r.AssetPriceUSD = value
	case FieldLiquidityUnits:
		r.LiquidityUnits = value
	case FieldLuvi:
		r.Luvi = value
	case FieldMembersCount:
		r.MembersCount = value
	case FieldRuneDepth:
		r.RuneDepth = value
	case FieldSynthSupply:
		r.SynthSupply = value
	case FieldSynthUnits:
		r.SynthUnits = value
	case FieldUnits:
		r.Units = value
	}
}

// TimeValue returns the datetime of a time field.
func (r DepthRecord) TimeValue(field string) (time.Time, bool) {
	switch field {
	case FieldStartTime:
		return r.StartTime, true
	case FieldEndTime:
		return r.EndTime, true
	}
	return time.Time{}, false
}

// BucketKey identifies a calendar bucket. Unused components are zero.
type BucketKey struct {
	Year  int
	Month int
	Day   int
	Hour  int
	Week  int
}

// DepthBucket is the averaged output of a grouped query.
type DepthBucket struct {
	Key       BucketKey
	StartTime time.Time // earliest start_time in the bucket
	EndTime   time.Time // latest end_time in the bucket
	Averages  map[string]*float64
}

// Average returns the mean of a numeric field, nil when no member was numeric.
func (b DepthBucket) Average(field string) *float64 {
	if b.Averages == nil {
		return nil
	}
	return b.Averages[field]
}

// HistoryResult is what a query returns: either raw records or buckets.
type HistoryResult struct {
	Grouped bool
	Records []DepthRecord
	Buckets []DepthBucket
	Applied AppliedFilters
}
