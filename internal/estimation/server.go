package estimation

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/punchamoorthee/carconfig/internal/models"
	"go.uber.org/zap"
)

// NewServer returns the router of the estimation process.
func NewServer(calc *Calculator, logger *zap.Logger) http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}).Methods("GET")

	r.HandleFunc("/estimate", func(w http.ResponseWriter, r *http.Request) {
		var req models.EstimateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Malformed JSON body"})
			return
		}
		days := calc.Estimate(req.Accessories, req.GoodClient)
		logger.Debug("estimate computed",
			zap.Strings("accessories", req.Accessories),
			zap.Bool("good_client", req.GoodClient),
			zap.Int("estimation", days))
		writeJSON(w, http.StatusOK, models.EstimateResponse{Estimation: days})
	}).Methods("POST")

	return r
}

func writeJSON(w http.ResponseWriter, code int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(payload)
}
