package editor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/noah-isme/backend-liquidacion/internal/batch"
	"github.com/noah-isme/backend-liquidacion/internal/catalog"
	"github.com/noah-isme/backend-liquidacion/internal/common"
	"github.com/noah-isme/backend-liquidacion/internal/export"
	"github.com/noah-isme/backend-liquidacion/internal/liquidation"
	"github.com/noah-isme/backend-liquidacion/internal/payload"
	"github.com/noah-isme/backend-liquidacion/internal/security"
	"github.com/noah-isme/backend-liquidacion/internal/upstream"
)

// Handler bridges editor sessions to HTTP.
type Handler struct {
	registry *Registry
	deps     Deps
	catalog  *catalog.Service
	saver    upstream.SaveSink
	logger   zerolog.Logger
}

// HandlerConfig configures the Handler dependencies.
type HandlerConfig struct {
	Registry *Registry
	Deps     Deps
	Catalog  *catalog.Service
	Saver    upstream.SaveSink
	Logger   zerolog.Logger
}

// NewHandler constructs a Handler.
func NewHandler(cfg HandlerConfig) *Handler {
	return &Handler{
		registry: cfg.Registry,
		deps:     cfg.Deps,
		catalog:  cfg.Catalog,
		saver:    cfg.Saver,
		logger:   cfg.Logger,
	}
}

type generalInfoRequest struct {
	Key   liquidation.Key    `json:"key"`
	Value liquidation.Scalar `json:"value"`
}

// Create handles POST /api/v1/sessions.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var cfg Config
	if err := decodeJSON(r, &cfg); err != nil {
		badBody(w, "invalid session config", err)
		return
	}
	deps := h.deps
	if h.catalog != nil {
		snapshot, err := h.catalog.Snapshot(r.Context())
		if err != nil {
			h.logger.Warn().Err(err).Msg("catalog snapshot failed, using static options")
			snapshot = h.catalog.Static()
		}
		deps.Catalog = snapshot
	}

	var sessionID string
	cfg.OnSave = func(ctx context.Context, env payload.Envelope) error {
		return h.forwardSave(ctx, sessionID, env)
	}
	cfg.OnCancel = func() {
		h.logger.Info().Str("session_id", sessionID).Msg("session cancelled by host")
	}

	e, err := New(r.Context(), cfg, deps)
	if err != nil {
		h.writeError(w, err)
		return
	}
	sessionID = e.ID()
	h.registry.Add(e)
	common.Data(w, http.StatusCreated, e.Snapshot())
}

func (h *Handler) forwardSave(ctx context.Context, sessionID string, env payload.Envelope) error {
	if h.saver == nil {
		return nil
	}
	res, err := h.saver.SaveLiquidation(ctx, env)
	if err != nil {
		return common.NewAppError("UPSTREAM_ERROR", "save failed upstream", http.StatusBadGateway, err)
	}
	if !res.Success {
		return &common.AppError{
			Code:       "SAVE_REJECTED",
			Message:    res.Message,
			HTTPStatus: http.StatusBadGateway,
			Err:        fmt.Errorf("save rejected for session %s: %s", sessionID, res.Message),
		}
	}
	return nil
}

// Get handles GET /api/v1/sessions/{id}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	e, ok := h.session(w, r)
	if !ok {
		return
	}
	common.Data(w, http.StatusOK, e.Snapshot())
}

// UpdateGeneralInfo handles PATCH /api/v1/sessions/{id}/general-info.
func (h *Handler) UpdateGeneralInfo(w http.ResponseWriter, r *http.Request) {
	e, ok := h.session(w, r)
	if !ok {
		return
	}
	var req generalInfoRequest
	if err := decodeJSON(r, &req); err != nil {
		badBody(w, "invalid general info update", err)
		return
	}
	info, err := e.UpdateGeneralInfo(req.Key, req.Value)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.Data(w, http.StatusOK, info)
}

// AddItem handles POST /api/v1/sessions/{id}/items and its
// /shipments/{shipmentId} variant.
func (h *Handler) AddItem(w http.ResponseWriter, r *http.Request) {
	e, ok := h.session(w, r)
	if !ok {
		return
	}
	raw, err := io.ReadAll(r.Body)
	if err != nil {
		badBody(w, "unable to read body", err)
		return
	}
	item, err := liquidation.DecodeItem(raw)
	if err != nil {
		h.writeError(w, err)
		return
	}
	added, err := e.AddItem(chi.URLParam(r, "shipmentId"), item)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.Data(w, http.StatusCreated, added)
}

// DeleteItem handles DELETE /api/v1/sessions/{id}/items/{type}/{itemId} and
// its /shipments/{shipmentId} variant.
func (h *Handler) DeleteItem(w http.ResponseWriter, r *http.Request) {
	e, ok := h.session(w, r)
	if !ok {
		return
	}
	typ := liquidation.ItemType(chi.URLParam(r, "type"))
	if err := e.DeleteItem(chi.URLParam(r, "shipmentId"), chi.URLParam(r, "itemId"), typ); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Items handles GET /api/v1/sessions/{id}/shipments/{shipmentId}/items.
func (h *Handler) Items(w http.ResponseWriter, r *http.Request) {
	e, ok := h.session(w, r)
	if !ok {
		return
	}
	items, err := e.Items(chi.URLParam(r, "shipmentId"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.Data(w, http.StatusOK, items)
}

// Totals handles GET /api/v1/sessions/{id}/totals and its
// /shipments/{shipmentId} variant.
func (h *Handler) Totals(w http.ResponseWriter, r *http.Request) {
	e, ok := h.session(w, r)
	if !ok {
		return
	}
	t, err := e.Totals(chi.URLParam(r, "shipmentId"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.Data(w, http.StatusOK, t)
}

// Consolidated handles GET /api/v1/sessions/{id}/consolidated.
func (h *Handler) Consolidated(w http.ResponseWriter, r *http.Request) {
	e, ok := h.session(w, r)
	if !ok {
		return
	}
	common.Data(w, http.StatusOK, map[string]any{
		"rows":         e.Rows(),
		"consolidated": e.Consolidated(),
	})
}

// Navigate handles POST /api/v1/sessions/{id}/navigation.
func (h *Handler) Navigate(w http.ResponseWriter, r *http.Request) {
	e, ok := h.session(w, r)
	if !ok {
		return
	}
	var cmd batch.Command
	if err := decodeJSON(r, &cmd); err != nil {
		badBody(w, "invalid navigation command", err)
		return
	}
	pos, err := e.Navigate(cmd)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.Data(w, http.StatusOK, pos)
}

// Save handles POST /api/v1/sessions/{id}/save.
func (h *Handler) Save(w http.ResponseWriter, r *http.Request) {
	e, ok := h.session(w, r)
	if !ok {
		return
	}
	env, err := e.Save(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.registry.Remove(e.ID())
	common.Data(w, http.StatusOK, env)
}

// Cancel handles POST /api/v1/sessions/{id}/cancel.
func (h *Handler) Cancel(w http.ResponseWriter, r *http.Request) {
	e, ok := h.session(w, r)
	if !ok {
		return
	}
	if err := e.Cancel(); err != nil {
		h.writeError(w, err)
		return
	}
	h.registry.Remove(e.ID())
	w.WriteHeader(http.StatusNoContent)
}

// Export handles GET /api/v1/sessions/{id}/export.xlsx.
func (h *Handler) Export(w http.ResponseWriter, r *http.Request) {
	e, ok := h.session(w, r)
	if !ok {
		return
	}
	report, err := e.Report()
	if err != nil {
		h.writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "liquidacion-"+e.ID()+".xlsx"))
	if err := export.WriteXLSX(w, report); err != nil {
		h.logger.Error().Err(err).Str("session_id", e.ID()).Msg("export failed")
	}
}

func (h *Handler) session(w http.ResponseWriter, r *http.Request) (*Editor, bool) {
	if h.registry == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "session registry not configured", nil)
		return nil, false
	}
	e, err := h.registry.Get(chi.URLParam(r, "sessionID"))
	if err != nil {
		h.writeError(w, err)
		return nil, false
	}
	return e, true
}

func badBody(w http.ResponseWriter, msg string, err error) {
	if security.IsTooLarge(err) {
		common.JSONError(w, http.StatusRequestEntityTooLarge, "PAYLOAD_TOO_LARGE", "request body too large", nil)
		return
	}
	common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", msg, map[string]any{"error": err.Error()})
}

func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	if common.WriteAppError(w, err) {
		return
	}

	var vErr *liquidation.ValidationError
	switch {
	case errors.As(err, &vErr):
		common.JSONError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", vErr.Message, map[string]any{"field": vErr.Field})
	case errors.Is(err, liquidation.ErrUnknownField):
		common.JSONError(w, http.StatusUnprocessableEntity, "UNKNOWN_FIELD", err.Error(), nil)
	case errors.Is(err, ErrSessionNotFound):
		common.JSONError(w, http.StatusNotFound, "SESSION_NOT_FOUND", "session not found", nil)
	case errors.Is(err, batch.ErrUnknownShipment):
		common.JSONError(w, http.StatusNotFound, "SHIPMENT_NOT_FOUND", err.Error(), nil)
	case errors.Is(err, ErrClosed):
		common.JSONError(w, http.StatusGone, "SESSION_CLOSED", "session closed", nil)
	case errors.Is(err, ErrLoading):
		common.JSONError(w, http.StatusConflict, "LOADING", "initial load in progress", nil)
	case errors.Is(err, ErrSaving):
		common.JSONError(w, http.StatusConflict, "SAVE_IN_PROGRESS", "save in progress", nil)
	case errors.Is(err, ErrReadOnly):
		common.JSONError(w, http.StatusConflict, "READ_ONLY", err.Error(), nil)
	case errors.Is(err, batch.ErrInvalidView):
		common.JSONError(w, http.StatusConflict, "INVALID_VIEW", err.Error(), nil)
	default:
		h.logger.Error().Err(err).Msg("editor request failed")
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "internal error", nil)
	}
}
