package domain

import (
	"errors"
	"fmt"
)

var (
	ErrUnauthenticated       = errors.New("not authenticated")
	ErrNotFound              = errors.New("configuration not found")
	ErrConfigurationExists   = errors.New("owner already has a configuration")
	ErrModelNotFound         = errors.New("car model not found")
	ErrUnknownAccessory      = errors.New("unknown accessory")
	ErrEstimationUnavailable = errors.New("estimation unavailable")
	ErrPersistence           = errors.New("persistence failure")
)

// ValidationKind identifies why a proposed configuration was rejected.
type ValidationKind string

const (
	CapacityExceeded  ValidationKind = "capacity_exceeded"
	MissingDependency ValidationKind = "missing_dependency"
	Incompatible      ValidationKind = "incompatible"
)

// ValidationError carries enough detail to render a message: the offending
// accessory and the missing or conflicting one, or the capacity numbers.
type ValidationError struct {
	Kind      ValidationKind `json:"kind"`
	Accessory string         `json:"accessory,omitempty"`
	Other     string         `json:"other,omitempty"`
	Limit     int            `json:"limit,omitempty"`
	Count     int            `json:"count,omitempty"`
}

func (e *ValidationError) Error() string {
	switch e.Kind {
	case CapacityExceeded:
		return fmt.Sprintf("too many accessories: %d selected, model allows %d", e.Count, e.Limit)
	case MissingDependency:
		return fmt.Sprintf("%s requires %s", e.Accessory, e.Other)
	case Incompatible:
		return fmt.Sprintf("%s is incompatible with %s", e.Accessory, e.Other)
	}
	return "invalid configuration"
}

// OutOfStockError reports the first item found with no availability.
type OutOfStockError struct {
	Item string
}

func (e *OutOfStockError) Error() string {
	return fmt.Sprintf("out of stock: %s", e.Item)
}

// ModelItem and AccessoryItem build the item names used by OutOfStockError.
func ModelItem(id int64) string { return fmt.Sprintf("car_model:%d", id) }

func AccessoryItem(name string) string { return "accessory:" + name }

func IsValidation(err error) (*ValidationError, bool) {
	var ve *ValidationError
	ok := errors.As(err, &ve)
	return ve, ok
}

func IsOutOfStock(err error) (*OutOfStockError, bool) {
	var oe *OutOfStockError
	ok := errors.As(err, &oe)
	return oe, ok
}
