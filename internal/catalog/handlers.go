package catalog

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/noah-isme/backend-liquidacion/internal/common"
	"github.com/noah-isme/backend-liquidacion/internal/liquidation"
)

// Handler exposes option list endpoints.
type Handler struct {
	service *Service
}

// HandlerConfig configures the Handler dependencies.
type HandlerConfig struct {
	Service *Service
}

// NewHandler constructs a Handler.
func NewHandler(cfg HandlerConfig) *Handler {
	return &Handler{service: cfg.Service}
}

// Rubros handles GET /api/v1/options/rubros/{tab}.
func (h *Handler) Rubros(w http.ResponseWriter, r *http.Request) {
	if h.service == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "catalog service not configured", nil)
		return
	}
	tab := liquidation.ItemType(chi.URLParam(r, "tab"))
	rows, err := h.service.RubroOptions(r.Context(), tab)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.Data(w, http.StatusOK, rows)
}

// Exporters handles GET /api/v1/options/exporters.
func (h *Handler) Exporters(w http.ResponseWriter, r *http.Request) {
	if h.service == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "catalog service not configured", nil)
		return
	}
	rows, err := h.service.ExporterOptions(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.Data(w, http.StatusOK, rows)
}

// Bases handles GET /api/v1/options/bases.
func (h *Handler) Bases(w http.ResponseWriter, _ *http.Request) {
	common.Data(w, http.StatusOK, BasisOptions())
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	if common.WriteAppError(w, err) {
		return
	}
	common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "internal error", nil)
}
