package models

import (
	"github.com/punchamoorthee/carconfig/internal/domain"
	"github.com/shopspring/decimal"
)

// SaveConfigurationRequest is the payload from the client. Accessories are
// names, not ids.
type SaveConfigurationRequest struct {
	CarModelID  int64    `json:"car_model_id"`
	Accessories []string `json:"accessories"`
}

// SaveConfigurationResponse is returned on a successful save. Estimation is
// null when the estimation service could not be reached.
type SaveConfigurationResponse struct {
	ID              int64           `json:"id"`
	Estimation      *int            `json:"estimation"`
	EstimationError string          `json:"estimation_error,omitempty"`
	TotalPrice      decimal.Decimal `json:"total_price"`
}

// ConfigurationView is the stored row as exposed to clients. Accessories is
// the JSON-encoded array of names kept as text.
type ConfigurationView struct {
	ID          int64           `json:"id"`
	UserID      int64           `json:"user_id"`
	CarModelID  int64           `json:"car_model_id"`
	Accessories string          `json:"accessories"`
	Estimation  *int            `json:"estimation"`
	TotalPrice  decimal.Decimal `json:"total_price"`
}

// AccessoriesResponse lists accessories together with their constraint edges.
type AccessoriesResponse struct {
	Accessories []domain.Accessory      `json:"accessories"`
	Constraints []domain.ConstraintEdge `json:"constraints"`
}

// ValidationResponse is returned by the validation preview endpoint.
type ValidationResponse struct {
	Valid          bool                    `json:"valid"`
	MaxAccessories int                     `json:"max_accessories"`
	Error          *domain.ValidationError `json:"error,omitempty"`
}

// EstimateRequest is the estimation service payload.
type EstimateRequest struct {
	Accessories []string `json:"accessories"`
	GoodClient  bool     `json:"good_client"`
}

// EstimateResponse is the estimation service reply, in days.
type EstimateResponse struct {
	Estimation int `json:"estimation"`
}

// ProfileResponse describes the authenticated user.
type ProfileResponse struct {
	User domain.User `json:"user"`
}
