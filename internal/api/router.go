package api

import (
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// NewRouter wires the public and authenticated routes.
func NewRouter(h *Handler, users Users, logger *zap.Logger) *mux.Router {
	r := mux.NewRouter()
	r.Use(RequestLogger(logger))
	r.Handle("/metrics", promhttp.Handler())
	r.HandleFunc("/health", h.HealthCheck).Methods("GET")

	apiV1 := r.PathPrefix("/api/v1").Subrouter()
	apiV1.Use(BasicAuth(users, logger))
	apiV1.HandleFunc("/car-models", h.ListCarModels).Methods("GET")
	apiV1.HandleFunc("/accessories", h.ListAccessories).Methods("GET")
	apiV1.HandleFunc("/profile", h.Profile).Methods("GET")
	apiV1.HandleFunc("/configurations", h.GetConfigurations).Methods("GET")
	apiV1.HandleFunc("/configurations", h.SaveConfiguration).Methods("POST")
	apiV1.HandleFunc("/configurations/validate", h.ValidateConfiguration).Methods("POST")
	apiV1.HandleFunc("/configurations/{id}", h.DeleteConfiguration).Methods("DELETE")
	apiV1.HandleFunc("/configurations/{id}/estimate", h.ReestimateConfiguration).Methods("POST")

	return r
}
