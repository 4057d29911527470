package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// CarModel is a buildable model. Availability is only mutated by the
// inventory ledger and never goes negative.
type CarModel struct {
	ID           int64           `json:"id"`
	Name         string          `json:"name"`
	EnginePower  int             `json:"engine_power"`
	Cost         decimal.Decimal `json:"cost"`
	Availability int             `json:"availability"`
}

// Accessory is an optional item. Names are unique and are what the wire
// format exchanges.
type Accessory struct {
	ID           int64           `json:"id"`
	Name         string          `json:"name"`
	Price        decimal.Decimal `json:"price"`
	Availability int             `json:"availability"`
}

// EdgeKind is the type of a constraint between two accessories.
type EdgeKind string

const (
	EdgeRequires     EdgeKind = "requires"
	EdgeIncompatible EdgeKind = "incompatible"
)

// ConstraintEdge is one seeded row: AccessoryID requires and/or is
// incompatible with another accessory.
type ConstraintEdge struct {
	AccessoryID             int64  `json:"accessory_id"`
	RequiresAccessoryID     *int64 `json:"requires_accessory_id"`
	IncompatibleAccessoryID *int64 `json:"incompatible_accessory_id"`
}

// Configuration is the single active configuration of an owner.
// Accessories holds names, in the order the owner submitted them.
type Configuration struct {
	ID          int64           `json:"id"`
	OwnerID     int64           `json:"user_id"`
	CarModelID  int64           `json:"car_model_id"`
	Accessories []string        `json:"accessories"`
	Estimation  *int            `json:"estimation"`
	TotalPrice  decimal.Decimal `json:"total_price"`
	CreatedAt   time.Time       `json:"created_at"`
}

// User is owned by the authentication collaborator; only GoodClient affects
// the core.
type User struct {
	ID           int64  `json:"id"`
	Username     string `json:"username"`
	PasswordHash string `json:"-"`
	GoodClient   bool   `json:"good_client"`
}

// Principal is the authenticated caller.
type Principal struct {
	ID         int64
	Username   string
	GoodClient bool
}
