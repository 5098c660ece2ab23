package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/couchcryptid/incident-radar-service/internal/domain"
	"github.com/couchcryptid/incident-radar-service/internal/radar"
	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
)

const maxBodyBytes = 64 << 10

type handlers struct {
	rt       Runtime
	validate *validator.Validate
	logger   *slog.Logger
}

type createRequest struct {
	Category    string   `json:"category" validate:"required"`
	Description string   `json:"description" validate:"required"`
	Placement   string   `json:"placement" validate:"omitempty,oneof=here nearby"`
	Lat         *float64 `json:"lat,omitempty" validate:"omitempty,lat"`
	Lng         *float64 `json:"lng,omitempty" validate:"omitempty,lng"`
}

type categoriesRequest struct {
	Categories []string `json:"categories" validate:"required,dive,required"`
}

type soundRequest struct {
	Enabled *bool `json:"enabled" validate:"required"`
}

func newValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("lat", func(fl validator.FieldLevel) bool {
		lat := fl.Field().Float()
		return lat >= -90 && lat <= 90
	})
	_ = v.RegisterValidation("lng", func(fl validator.FieldLevel) bool {
		lng := fl.Field().Float()
		return lng >= -180 && lng <= 180
	})
	return v
}

func (h *handlers) state(w http.ResponseWriter, r *http.Request) {
	snap, err := h.rt.State(r.Context())
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (h *handlers) position(w http.ResponseWriter, r *http.Request) {
	var report domain.PositionReport
	if !decodeBody(w, r, &report) {
		return
	}
	sample, err := report.Sample()
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	if err := h.rt.PushPosition(r.Context(), sample); err != nil {
		h.fail(w, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (h *handlers) create(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	if (req.Lat == nil) != (req.Lng == nil) {
		writeError(w, http.StatusUnprocessableEntity, "lat and lng must be given together")
		return
	}

	draft := radar.Draft{
		Category:    domain.Category(req.Category),
		Description: req.Description,
		Placement:   domain.PlacementHere,
	}
	if req.Placement != "" {
		draft.Placement = domain.Placement(req.Placement)
	}
	if req.Lat != nil {
		draft.Target = &domain.Position{Lat: *req.Lat, Lng: *req.Lng}
	}

	inc, err := h.rt.Create(r.Context(), draft)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, inc)
}

func (h *handlers) alert(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	action := radar.AlertAction(strings.ToLower(chi.URLParam(r, "action")))
	if err := h.rt.HandleAlert(r.Context(), id, action); err != nil {
		h.fail(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handlers) categories(w http.ResponseWriter, r *http.Request) {
	var req categoriesRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	categories := make([]domain.Category, 0, len(req.Categories))
	for _, c := range req.Categories {
		categories = append(categories, domain.Category(strings.ToLower(strings.TrimSpace(c))))
	}
	if err := h.rt.SetCategories(r.Context(), categories); err != nil {
		h.fail(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handlers) sound(w http.ResponseWriter, r *http.Request) {
	var req soundRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	if err := h.rt.SetSound(r.Context(), *req.Enabled); err != nil {
		if isRuntimeUnavailable(err) {
			h.fail(w, err)
			return
		}
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// fail maps a runtime error to a response.
func (h *handlers) fail(w http.ResponseWriter, err error) {
	var cooldown *radar.CooldownError
	switch {
	case errors.As(err, &cooldown):
		seconds := int(math.Ceil(cooldown.Remaining.Seconds()))
		w.Header().Set("Retry-After", strconv.Itoa(seconds))
		writeJSON(w, http.StatusTooManyRequests, map[string]any{
			"error":               err.Error(),
			"retry_after_seconds": seconds,
		})
	case errors.Is(err, radar.ErrCreateInProgress):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, radar.ErrNoFix), errors.Is(err, radar.ErrLowAccuracy):
		writeError(w, http.StatusPreconditionFailed, err.Error())
	case errors.Is(err, radar.ErrUnknownCategory),
		errors.Is(err, radar.ErrDescriptionLength),
		errors.Is(err, radar.ErrNoTarget),
		errors.Is(err, radar.ErrInvalidPlacement):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, radar.ErrAlertNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, radar.ErrUnknownAction):
		writeError(w, http.StatusBadRequest, err.Error())
	case isRuntimeUnavailable(err):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	default:
		h.logger.Error("api request failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func isRuntimeUnavailable(err error) bool {
	return errors.Is(err, radar.ErrStopped) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}

// decodeBody reads exactly one JSON object into dst, rejecting unknown fields
// and trailing data.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return false
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return false
	}
	return true
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // best-effort response
}
