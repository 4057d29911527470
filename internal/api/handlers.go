package api

import (
	"net/http"

	"github.com/punchamoorthee/carconfig/internal/domain"
	"github.com/punchamoorthee/carconfig/internal/models"
)

func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) ListCarModels(w http.ResponseWriter, r *http.Request) {
	carModels, err := h.catalog.ListCarModels(r.Context())
	if err != nil {
		h.respondServiceError(r.Context(), w, err, "GET", "/car-models")
		return
	}
	h.respondJSON(w, http.StatusOK, carModels, "GET", "/car-models")
}

func (h *Handler) ListAccessories(w http.ResponseWriter, r *http.Request) {
	accessories, err := h.catalog.ListAccessories(r.Context())
	if err != nil {
		h.respondServiceError(r.Context(), w, err, "GET", "/accessories")
		return
	}
	constraints, err := h.catalog.ListConstraints(r.Context())
	if err != nil {
		h.respondServiceError(r.Context(), w, err, "GET", "/accessories")
		return
	}
	h.respondJSON(w, http.StatusOK, models.AccessoriesResponse{Accessories: accessories, Constraints: constraints}, "GET", "/accessories")
}

func (h *Handler) Profile(w http.ResponseWriter, r *http.Request) {
	p := PrincipalFrom(r.Context())
	if p == nil {
		h.respondServiceError(r.Context(), w, domain.ErrUnauthenticated, "GET", "/profile")
		return
	}
	h.respondJSON(w, http.StatusOK, models.ProfileResponse{
		User: domain.User{ID: p.ID, Username: p.Username, GoodClient: p.GoodClient},
	}, "GET", "/profile")
}
