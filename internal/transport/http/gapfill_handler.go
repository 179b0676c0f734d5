// Package http contains the chi HTTP handlers for the gap-fill API.
package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/render"

	apierrors "meterfill/internal/errors"
	mw "meterfill/internal/middleware"
	"meterfill/internal/services"
	"meterfill/pkg/contracts/domain"
)

// GapFillHandler handles gap-fill evaluation requests
type GapFillHandler struct {
	service    *services.GapFillService
	validation *mw.ValidationMiddleware
	errors     *apierrors.ErrorHandler
	logger     *slog.Logger
}

// NewGapFillHandler creates a new gap-fill handler
func NewGapFillHandler(service *services.GapFillService, validation *mw.ValidationMiddleware, errorHandler *apierrors.ErrorHandler, logger *slog.Logger) *GapFillHandler {
	return &GapFillHandler{
		service:    service,
		validation: validation,
		errors:     errorHandler,
		logger:     logger.With(slog.String("handler", "gapfill")),
	}
}

// resolveRequest is the wire form of a single evaluation request.
type resolveRequest struct {
	SiteID      string `json:"site_id" validate:"required,siteid"`
	TargetMonth string `json:"target_month" validate:"required,yearmonth"`
}

// batchRequest is the wire form of a batch evaluation request. Months
// are strings here so validation errors name the offending value.
type batchRequest struct {
	SiteIDs   []string `json:"site_ids,omitempty" validate:"omitempty,dive,siteid"`
	Months    []string `json:"months,omitempty" validate:"omitempty,dive,yearmonth"`
	FromMonth string   `json:"from_month,omitempty" validate:"omitempty,yearmonth"`
	ToMonth   string   `json:"to_month,omitempty" validate:"omitempty,yearmonth"`
}

// Resolve handles POST /api/gapfill/resolve. A gap is a successful
// evaluation, not an error: the response is 200 with outcome "gap".
func (h *GapFillHandler) Resolve(w http.ResponseWriter, r *http.Request) {
	var req resolveRequest
	if apiErr := h.validation.DecodeAndValidate(r, &req); apiErr != nil {
		h.errors.HandleError(w, r, apiErr)
		return
	}

	// yearmonth validation already passed, parse cannot fail here.
	targetMonth, err := domain.ParseMonth(req.TargetMonth)
	if err != nil {
		h.errors.HandleError(w, r, apierrors.InvalidRequestWithError(err))
		return
	}

	resolution, err := h.service.Resolve(r.Context(), domain.GapFillRequest{
		SiteID:      req.SiteID,
		TargetMonth: targetMonth,
	})
	if err != nil {
		h.errors.HandleError(w, r, err)
		return
	}

	render.JSON(w, r, resolution)
}

// Batch handles POST /api/gapfill/batch.
func (h *GapFillHandler) Batch(w http.ResponseWriter, r *http.Request) {
	var req batchRequest
	if apiErr := h.validation.DecodeAndValidate(r, &req); apiErr != nil {
		h.errors.HandleError(w, r, apiErr)
		return
	}

	batch, apiErr := h.toDomainBatch(req)
	if apiErr != nil {
		h.errors.HandleError(w, r, apiErr)
		return
	}

	result, err := h.service.ResolveBatch(r.Context(), batch)
	if err != nil {
		h.errors.HandleError(w, r, apierrors.InvalidRequestWithError(err))
		return
	}

	render.JSON(w, r, result)
}

func (h *GapFillHandler) toDomainBatch(req batchRequest) (domain.BatchRequest, *apierrors.APIError) {
	batch := domain.BatchRequest{SiteIDs: req.SiteIDs}

	for _, raw := range req.Months {
		m, err := domain.ParseMonth(raw)
		if err != nil {
			return domain.BatchRequest{}, apierrors.InvalidRequestWithError(err)
		}
		batch.Months = append(batch.Months, m)
	}
	if req.FromMonth != "" {
		m, err := domain.ParseMonth(req.FromMonth)
		if err != nil {
			return domain.BatchRequest{}, apierrors.InvalidRequestWithError(err)
		}
		batch.FromMonth = m
	}
	if req.ToMonth != "" {
		m, err := domain.ParseMonth(req.ToMonth)
		if err != nil {
			return domain.BatchRequest{}, apierrors.InvalidRequestWithError(err)
		}
		batch.ToMonth = m
	}

	if err := batch.Validate(); err != nil {
		return domain.BatchRequest{}, apierrors.InvalidRequestWithError(err)
	}
	return batch, nil
}
