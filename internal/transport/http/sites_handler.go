package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	apierrors "meterfill/internal/errors"
	"meterfill/internal/services"
)

// SitesHandler serves site coverage queries and readings reloads
type SitesHandler struct {
	service *services.GapFillService
	errors  *apierrors.ErrorHandler
	logger  *slog.Logger
}

// NewSitesHandler creates a new sites handler
func NewSitesHandler(service *services.GapFillService, errorHandler *apierrors.ErrorHandler, logger *slog.Logger) *SitesHandler {
	return &SitesHandler{
		service: service,
		errors:  errorHandler,
		logger:  logger.With(slog.String("handler", "sites")),
	}
}

// List handles GET /api/sites
func (h *SitesHandler) List(w http.ResponseWriter, r *http.Request) {
	sites := h.service.Sites()
	render.JSON(w, r, map[string]interface{}{
		"sites": sites,
		"count": len(sites),
	})
}

// Months handles GET /api/sites/{siteID}/months
func (h *SitesHandler) Months(w http.ResponseWriter, r *http.Request) {
	siteID := chi.URLParam(r, "siteID")

	months, ok := h.service.MonthsForSite(siteID)
	if !ok {
		h.errors.HandleError(w, r, apierrors.ErrSiteNotFound)
		return
	}

	render.JSON(w, r, map[string]interface{}{
		"site_id": siteID,
		"months":  months,
	})
}

// Reload handles POST /api/readings/reload
func (h *SitesHandler) Reload(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.Reload(r.Context())
	if err != nil {
		h.logger.ErrorContext(r.Context(), "readings reload failed", "error", err)
		h.errors.HandleError(w, r, apierrors.ErrReadingsLoad)
		return
	}

	render.JSON(w, r, map[string]interface{}{
		"status": "reloaded",
		"stats":  stats,
	})
}
