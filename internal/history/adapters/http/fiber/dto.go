package fiber

import (
	"time"

	"liquidity-history-service/internal/history/core/domain"
)

// DepthRecordResponse is one stored interval. Numeric fields are passed
// through as the upstream text.
type DepthRecordResponse struct {
	StartTime      int64  `json:"startTime" example:"1647910800"`
	EndTime        int64  `json:"endTime" example:"1647914400"`
	AssetDepth     string `json:"assetDepth" example:"11518045770"`
	AssetPrice     string `json:"assetPrice"`
	AssetPriceUSD  string `json:"assetPriceUSD"`
	LiquidityUnits string `json:"liquidityUnits"`
	Luvi           string `json:"luvi"`
	MembersCount   string `json:"membersCount"`
	RuneDepth      string `json:"runeDepth"`
	SynthSupply    string `json:"synthSupply"`
	SynthUnits     string `json:"synthUnits"`
	Units          string `json:"units"`
}

type BucketKeyResponse struct {
	Year  int `json:"year"`
	Month int `json:"month,omitempty"`
	Day   int `json:"day,omitempty"`
	Hour  int `json:"hour,omitempty"`
	Week  int `json:"week,omitempty"`
}

// DepthBucketResponse is one interval bucket; a null mean means no member
// of the bucket held a number for that field.
type DepthBucketResponse struct {
	Key            BucketKeyResponse `json:"key"`
	StartTime      int64             `json:"startTime"`
	EndTime        int64             `json:"endTime"`
	AssetDepth     *float64          `json:"assetDepth"`
	AssetPrice     *float64          `json:"assetPrice"`
	AssetPriceUSD  *float64          `json:"assetPriceUSD"`
	LiquidityUnits *float64          `json:"liquidityUnits"`
	Luvi           *float64          `json:"luvi"`
	MembersCount   *float64          `json:"membersCount"`
	RuneDepth      *float64          `json:"runeDepth"`
	SynthSupply    *float64          `json:"synthSupply"`
	SynthUnits     *float64          `json:"synthUnits"`
	Units          *float64          `json:"units"`
}

// AppliedFiltersResponse reports what the query actually applied.
type AppliedFiltersResponse struct {
	FastPath bool     `json:"fastPath"`
	Start    string   `json:"start,omitempty" example:"2023-01-01T00:00:00Z"`
	End      string   `json:"end,omitempty" example:"2023-01-31T23:59:59Z"`
	Interval string   `json:"interval,omitempty" example:"day"`
	SortBy   string   `json:"sortBy,omitempty" example:"start_time"`
	Order    string   `json:"order,omitempty" example:"desc"`
	Page     int64    `json:"page" example:"1"`
	Limit    int64    `json:"limit" example:"24"`
	Skip     int64    `json:"skip"`
	Warnings []string `json:"warnings"`
}

type DepthsResponse struct {
	Data    any                    `json:"data"`
	Applied AppliedFiltersResponse `json:"applied"`
}

type DepthHistoryResponse struct {
	Data []DepthRecordResponse `json:"data"`
}

type IngestionRunRequest struct {
	From *int64 `json:"from" example:"1647910800"`
}

type IngestionRunResponse struct {
	From      int64 `json:"from"`
	Watermark int64 `json:"watermark"`
	Pages     int   `json:"pages"`
	Created   int   `json:"created"`
	Updated   int   `json:"updated"`
}

type ErrorResponse struct {
	Error   string `json:"error" example:"internal_server_error"`
	Message string `json:"message,omitempty" example:"ingestion pass already running"`
}

func toRecordResponse(r domain.DepthRecord) DepthRecordResponse {
	return DepthRecordResponse{
		StartTime:      r.StartTime.Unix(),
		EndTime:        r.EndTime.Unix(),
		AssetDepth:     r.AssetDepth,
		AssetPrice:     r.AssetPrice,
		AssetPriceUSD:  r.AssetPriceUSD,
		LiquidityUnits: r.LiquidityUnits,
		Luvi:           r.Luvi,
		MembersCount:   r.MembersCount,
		RuneDepth:      r.RuneDepth,
		SynthSupply:    r.SynthSupply,
		SynthUnits:     r.SynthUnits,
		Units:          r.Units,
	}
}

func toRecordResponses(recs []domain.DepthRecord) []DepthRecordResponse {
	out := make([]DepthRecordResponse, 0, len(recs))
	for _, r := range recs {
		out = append(out, toRecordResponse(r))
	}
	return out
}

func toBucketResponses(buckets []domain.DepthBucket) []DepthBucketResponse {
	out := make([]DepthBucketResponse, 0, len(buckets))
	for _, b := range buckets {
		out = append(out, DepthBucketResponse{
			Key: BucketKeyResponse{
				Year:  b.Key.Year,
				Month: b.Key.Month,
				Day:   b.Key.Day,
				Hour:  b.Key.Hour,
				Week:  b.Key.Week,
			},
			StartTime:      b.StartTime.Unix(),
			EndTime:        b.EndTime.Unix(),
			AssetDepth:     b.Average(domain.FieldAssetDepth),
			AssetPrice:     b.Average(domain.FieldAssetPrice),
			AssetPriceUSD:  b.Average(domain.FieldAssetPriceUSD),
			LiquidityUnits: b.Average(domain.FieldLiquidityUnits),
			Luvi:           b.Average(domain.FieldLuvi),
			MembersCount:   b.Average(domain.FieldMembersCount),
			RuneDepth:      b.Average(domain.FieldRuneDepth),
			SynthSupply:    b.Average(domain.FieldSynthSupply),
			SynthUnits:     b.Average(domain.FieldSynthUnits),
			Units:          b.Average(domain.FieldUnits),
		})
	}
	return out
}

func toAppliedResponse(a domain.AppliedFilters) AppliedFiltersResponse {
	resp := AppliedFiltersResponse{
		FastPath: a.FastPath,
		Interval: a.Interval,
		SortBy:   a.SortBy,
		Order:    a.Order,
		Page:     a.Page,
		Limit:    a.Limit,
		Skip:     a.Skip,
		Warnings: a.Warnings,
	}
	if a.Start != nil {
		resp.Start = a.Start.UTC().Format(time.RFC3339)
	}
	if a.End != nil {
		resp.End = a.End.UTC().Format(time.RFC3339)
	}
	if resp.Warnings == nil {
		resp.Warnings = []string{}
	}
	return resp
}
