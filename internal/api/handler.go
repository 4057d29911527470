package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/punchamoorthee/carconfig/internal/domain"
	"github.com/punchamoorthee/carconfig/internal/models"
	"github.com/punchamoorthee/carconfig/internal/service"
	"github.com/punchamoorthee/carconfig/internal/store"
	"go.uber.org/zap"
)

// Metrics
var (
	httpReqTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "carconfig_http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "endpoint", "status"})

	httpLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "carconfig_http_request_duration_seconds",
		Help:    "Request latency",
		Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 2, 5},
	}, []string{"method", "endpoint"})
)

// Catalog is the read-only lookup surface.
type Catalog interface {
	ListCarModels(ctx context.Context) ([]domain.CarModel, error)
	ListAccessories(ctx context.Context) ([]domain.Accessory, error)
	ListConstraints(ctx context.Context) ([]domain.ConstraintEdge, error)
}

type Handler struct {
	service *service.ConfigurationService
	catalog Catalog
	logger  *zap.Logger
}

func NewHandler(svc *service.ConfigurationService, catalog Catalog, logger *zap.Logger) *Handler {
	return &Handler{service: svc, catalog: catalog, logger: logger}
}

func (h *Handler) SaveConfiguration(w http.ResponseWriter, r *http.Request) {
	const endpoint = "/configurations"
	timer := prometheus.NewTimer(httpLatency.WithLabelValues("POST", endpoint))
	defer timer.ObserveDuration()

	if PrincipalFrom(r.Context()) == nil {
		h.respondServiceError(r.Context(), w, domain.ErrUnauthenticated, "POST", endpoint)
		return
	}

	var req models.SaveConfigurationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "Invalid JSON", "POST", endpoint)
		return
	}
	if req.CarModelID <= 0 {
		h.respondError(w, http.StatusUnprocessableEntity, "car_model_id is required", "POST", endpoint)
		return
	}

	res, err := h.service.Save(r.Context(), PrincipalFrom(r.Context()), req.CarModelID, req.Accessories)
	if err != nil {
		h.respondServiceError(r.Context(), w, err, "POST", endpoint)
		return
	}

	resp := models.SaveConfigurationResponse{
		ID:         res.Configuration.ID,
		Estimation: res.Configuration.Estimation,
		TotalPrice: res.Configuration.TotalPrice,
	}
	if res.EstimationErr != nil {
		resp.EstimationError = res.EstimationErr.Error()
	}
	w.Header().Set("Location", fmt.Sprintf("/configurations/%d", res.Configuration.ID))
	h.respondJSON(w, http.StatusCreated, resp, "POST", endpoint)
}

func (h *Handler) GetConfigurations(w http.ResponseWriter, r *http.Request) {
	const endpoint = "/configurations"
	cfg, err := h.service.Fetch(r.Context(), PrincipalFrom(r.Context()))
	if err != nil {
		h.respondServiceError(r.Context(), w, err, "GET", endpoint)
		return
	}

	views := []models.ConfigurationView{}
	if cfg != nil {
		encoded, err := store.EncodeAccessories(cfg.Accessories)
		if err != nil {
			h.respondServiceError(r.Context(), w, err, "GET", endpoint)
			return
		}
		views = append(views, models.ConfigurationView{
			ID:          cfg.ID,
			UserID:      cfg.OwnerID,
			CarModelID:  cfg.CarModelID,
			Accessories: encoded,
			Estimation:  cfg.Estimation,
			TotalPrice:  cfg.TotalPrice,
		})
	}
	h.respondJSON(w, http.StatusOK, views, "GET", endpoint)
}

func (h *Handler) DeleteConfiguration(w http.ResponseWriter, r *http.Request) {
	const endpoint = "/configurations/{id}"
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		h.respondError(w, http.StatusNotFound, "Configuration not found", "DELETE", endpoint)
		return
	}

	if err := h.service.Delete(r.Context(), PrincipalFrom(r.Context()), id); err != nil {
		h.respondServiceError(r.Context(), w, err, "DELETE", endpoint)
		return
	}
	h.respondJSON(w, http.StatusOK, map[string]string{"message": "Configuration deleted successfully"}, "DELETE", endpoint)
}

func (h *Handler) ReestimateConfiguration(w http.ResponseWriter, r *http.Request) {
	const endpoint = "/configurations/{id}/estimate"
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		h.respondError(w, http.StatusNotFound, "Configuration not found", "POST", endpoint)
		return
	}

	days, err := h.service.Reestimate(r.Context(), PrincipalFrom(r.Context()), id)
	if err != nil {
		h.respondServiceError(r.Context(), w, err, "POST", endpoint)
		return
	}
	h.respondJSON(w, http.StatusOK, models.EstimateResponse{Estimation: days}, "POST", endpoint)
}

func (h *Handler) ValidateConfiguration(w http.ResponseWriter, r *http.Request) {
	const endpoint = "/configurations/validate"
	p := PrincipalFrom(r.Context())
	if p == nil {
		h.respondServiceError(r.Context(), w, domain.ErrUnauthenticated, "POST", endpoint)
		return
	}

	var req models.SaveConfigurationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "Invalid JSON", "POST", endpoint)
		return
	}

	limit, err := h.service.Validate(r.Context(), p, req.CarModelID, req.Accessories)
	if ve, ok := domain.IsValidation(err); ok {
		h.respondJSON(w, http.StatusOK, models.ValidationResponse{MaxAccessories: limit, Error: ve}, "POST", endpoint)
		return
	}
	if err != nil {
		h.respondServiceError(r.Context(), w, err, "POST", endpoint)
		return
	}
	h.respondJSON(w, http.StatusOK, models.ValidationResponse{Valid: true, MaxAccessories: limit}, "POST", endpoint)
}

// respondServiceError maps the error taxonomy onto status codes.
func (h *Handler) respondServiceError(ctx context.Context, w http.ResponseWriter, err error, method, endpoint string) {
	if ve, ok := domain.IsValidation(err); ok {
		h.respondJSON(w, http.StatusUnprocessableEntity, map[string]interface{}{"error": ve.Error(), "details": ve}, method, endpoint)
		return
	}
	if oos, ok := domain.IsOutOfStock(err); ok {
		h.respondJSON(w, http.StatusConflict, map[string]string{"error": oos.Error(), "item": oos.Item}, method, endpoint)
		return
	}

	switch {
	case errors.Is(err, domain.ErrUnauthenticated):
		h.respondError(w, http.StatusUnauthorized, "Not authenticated", method, endpoint)
	case errors.Is(err, domain.ErrNotFound):
		h.respondError(w, http.StatusNotFound, "Configuration not found", method, endpoint)
	case errors.Is(err, domain.ErrModelNotFound):
		h.respondError(w, http.StatusNotFound, "Car model not found", method, endpoint)
	case errors.Is(err, domain.ErrUnknownAccessory):
		h.respondError(w, http.StatusUnprocessableEntity, err.Error(), method, endpoint)
	case errors.Is(err, domain.ErrConfigurationExists):
		h.respondError(w, http.StatusConflict, "Configuration already exists", method, endpoint)
	case errors.Is(err, domain.ErrEstimationUnavailable):
		h.respondError(w, http.StatusServiceUnavailable, "Estimation unavailable", method, endpoint)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		h.respondError(w, http.StatusServiceUnavailable, "Request cancelled", method, endpoint)
	default:
		h.logger.Error("request failed",
			zap.String("request_id", RequestID(ctx)),
			zap.String("endpoint", endpoint),
			zap.Error(err))
		h.respondError(w, http.StatusInternalServerError, "Internal Server Error", method, endpoint)
	}
}

// RequestID returns the id assigned by RequestLogger, if any.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

// Helpers
func (h *Handler) respondJSON(w http.ResponseWriter, code int, payload interface{}, method, endpoint string) {
	httpReqTotal.WithLabelValues(method, endpoint, strconv.Itoa(code)).Inc()
	respondJSON(w, code, payload)
}

func (h *Handler) respondError(w http.ResponseWriter, code int, msg, method, endpoint string) {
	h.respondJSON(w, code, map[string]string{"error": msg}, method, endpoint)
}

func respondJSON(w http.ResponseWriter, code int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if payload != nil {
		json.NewEncoder(w).Encode(payload)
	}
}
