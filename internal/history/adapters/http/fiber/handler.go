package fiber

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"liquidity-history-service/internal/history/core/domain"
	"liquidity-history-service/internal/history/core/usecase"
	"liquidity-history-service/internal/logging"

	"github.com/gofiber/fiber/v2"
)

var log = logging.Component("http")

type QueryHistoryUseCase interface {
	Execute(ctx context.Context, params domain.QueryParams) (*domain.HistoryResult, error)
	ListSince(ctx context.Context, from *int64, count *int64) ([]domain.DepthRecord, error)
}

type DepthHandler struct {
	uc QueryHistoryUseCase
}

func NewDepthHandler(uc QueryHistoryUseCase) *DepthHandler {
	return &DepthHandler{uc: uc}
}

// GetDepths godoc
// @Summary Query depth history
// @Description Filters by date range, buckets by interval, sorts and paginates. Invalid parameters are dropped and reported under "applied.warnings".
// @Tags Depths
// @Produce json
// @Param dateRange query string false "YYYY-MM-DD or YYYY-MM-DD,YYYY-MM-DD (either side may be blank)"
// @Param interval query string false "hour | day | week | month"
// @Param sortBy query string false "Field to sort by, e.g. start_time or assetDepth"
// @Param order query string false "asc | desc"
// @Param limit query int false "Page size (max 400)"
// @Param page query int false "1-based page"
// @Success 200 {object} DepthsResponse
// @Failure 500 {object} ErrorResponse
// @Router /api/depths [get]
func (h *DepthHandler) GetDepths(c *fiber.Ctx) error {
	var warnings []string

	params := domain.QueryParams{
		DateRange: queryAlias(c, "dateRange", "date_range"),
		Interval:  c.Query("interval", ""),
		SortBy:    queryAlias(c, "sortBy", "sort_by"),
		Order:     c.Query("order", ""),
		Limit:     optionalInt(c, "limit", &warnings),
		Page:      optionalInt(c, "page", &warnings),
	}

	res, err := h.uc.Execute(c.UserContext(), params)
	if err != nil {
		log.Error("depth query failed", "error", err)
		return c.Status(http.StatusInternalServerError).JSON(ErrorResponse{
			Error: "internal_server_error",
		})
	}

	applied := res.Applied
	applied.Warnings = append(warnings, applied.Warnings...)

	resp := DepthsResponse{Applied: toAppliedResponse(applied)}
	if res.Grouped {
		resp.Data = toBucketResponses(res.Buckets)
	} else {
		resp.Data = toRecordResponses(res.Records)
	}
	return c.Status(http.StatusOK).JSON(resp)
}

// GetDepthHistory godoc
// @Summary List depth history since a timestamp
// @Description Records with startTime >= from, oldest first
// @Tags Depths
// @Produce json
// @Param from query int false "Unix seconds"
// @Param count query int false "Number of records (max 400)"
// @Success 200 {object} DepthHistoryResponse
// @Failure 400 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /api/depth-history [get]
func (h *DepthHandler) GetDepthHistory(c *fiber.Ctx) error {
	var from, count *int64

	if raw := c.Query("from", ""); raw != "" {
		v, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return c.Status(http.StatusBadRequest).JSON(ErrorResponse{
				Error:   "invalid_parameter",
				Message: "invalid 'from' parameter",
			})
		}
		from = &v
	}
	if raw := c.Query("count", ""); raw != "" {
		v, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return c.Status(http.StatusBadRequest).JSON(ErrorResponse{
				Error:   "invalid_parameter",
				Message: "invalid 'count' parameter",
			})
		}
		count = &v
	}

	recs, err := h.uc.ListSince(c.UserContext(), from, count)
	if err != nil {
		switch {
		case errors.Is(err, usecase.ErrInvalidHistoryFrom):
			return c.Status(http.StatusBadRequest).JSON(ErrorResponse{
				Error:   "invalid_parameter",
				Message: err.Error(),
			})
		default:
			log.Error("depth history listing failed", "error", err)
			return c.Status(http.StatusInternalServerError).JSON(ErrorResponse{
				Error: "internal_server_error",
			})
		}
	}

	return c.Status(http.StatusOK).JSON(DepthHistoryResponse{Data: toRecordResponses(recs)})
}

func queryAlias(c *fiber.Ctx, names ...string) string {
	for _, n := range names {
		if v := c.Query(n, ""); v != "" {
			return v
		}
	}
	return ""
}

// optionalInt parses an integer query parameter; garbage is dropped with a warning.
func optionalInt(c *fiber.Ctx, name string, warnings *[]string) *int64 {
	raw := strings.TrimSpace(c.Query(name, ""))
	if raw == "" {
		return nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		*warnings = append(*warnings, name+" "+strconv.Quote(raw)+" is not an integer; ignored")
		return nil
	}
	return &v
}
