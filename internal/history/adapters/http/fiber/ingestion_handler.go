package fiber

import (
	"context"
	"errors"
	"net/http"

	"liquidity-history-service/internal/history/core/domain"
	"liquidity-history-service/internal/history/core/usecase"

	"github.com/gofiber/fiber/v2"
)

type IngestDepthsUseCase interface {
	FetchAndStore(ctx context.Context, from int64) (usecase.IngestResult, error)
	LastWatermark(ctx context.Context) (int64, bool, error)
}

type IngestionHandler struct {
	uc IngestDepthsUseCase
}

func NewIngestionHandler(uc IngestDepthsUseCase) *IngestionHandler {
	return &IngestionHandler{uc: uc}
}

// RunIngestion godoc
// @Summary Run an ingestion pass
// @Description Fetches and stores depth history from the given unix timestamp (default: the stored watermark) up to now
// @Tags Ingestion
// @Accept json
// @Produce json
// @Param request body IngestionRunRequest false "Start of the pass"
// @Success 200 {object} IngestionRunResponse
// @Failure 400 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse "A pass is already running"
// @Failure 502 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /api/ingestion/runs [post]
func (h *IngestionHandler) RunIngestion(c *fiber.Ctx) error {
	var req IngestionRunRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return c.Status(http.StatusBadRequest).JSON(ErrorResponse{
				Error: "invalid_json",
			})
		}
	}

	ctx := c.UserContext()

	if req.From == nil {
		ts, found, err := h.uc.LastWatermark(ctx)
		if err != nil {
			log.Error("loading watermark failed", "error", err)
			return c.Status(http.StatusInternalServerError).JSON(ErrorResponse{
				Error: "internal_server_error",
			})
		}
		if !found {
			return c.Status(http.StatusBadRequest).JSON(ErrorResponse{
				Error:   "from_required",
				Message: "no stored watermark; pass \"from\"",
			})
		}
		req.From = &ts
	}

	res, err := h.uc.FetchAndStore(ctx, *req.From)
	if err != nil {
		switch {
		case errors.Is(err, usecase.ErrIngestionInProgress):
			return c.Status(http.StatusConflict).JSON(ErrorResponse{
				Error:   "ingestion_in_progress",
				Message: err.Error(),
			})
		case errors.Is(err, usecase.ErrInvalidIngestionStart):
			return c.Status(http.StatusBadRequest).JSON(ErrorResponse{
				Error:   "invalid_parameter",
				Message: err.Error(),
			})
		case errors.Is(err, domain.ErrUpstreamStatus),
			errors.Is(err, domain.ErrMalformedPayload),
			errors.Is(err, domain.ErrUpstreamUnavailable):
			log.Error("ingestion pass failed upstream", "error", err, "watermark", res.Watermark)
			return c.Status(http.StatusBadGateway).JSON(ErrorResponse{
				Error:   "upstream_error",
				Message: err.Error(),
			})
		default:
			log.Error("ingestion pass failed", "error", err, "watermark", res.Watermark)
			return c.Status(http.StatusInternalServerError).JSON(ErrorResponse{
				Error: "internal_server_error",
			})
		}
	}

	return c.Status(http.StatusOK).JSON(IngestionRunResponse{
		From:      res.From,
		Watermark: res.Watermark,
		Pages:     res.Pages,
		Created:   res.Created,
		Updated:   res.Updated,
	})
}

// Health godoc
// @Summary Liveness probe
// @Tags Health
// @Produce json
// @Success 200 {object} map[string]string
// @Router /health [get]
func Health(c *fiber.Ctx) error {
	return c.Status(http.StatusOK).JSON(fiber.Map{"status": "ok"})
}
