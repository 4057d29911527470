package catalog

import (
	"github.com/punchamoorthee/carconfig/internal/domain"
	"github.com/shopspring/decimal"
)

// Default stock levels applied by the seeder.
const (
	DefaultModelAvailability     = 10
	DefaultAccessoryAvailability = 25
)

// SeedModels is the stock model line-up.
func SeedModels() []domain.CarModel {
	return []domain.CarModel{
		{ID: 1, Name: "Model A", EnginePower: 50, Cost: decimal.NewFromInt(10000), Availability: DefaultModelAvailability},
		{ID: 2, Name: "Model B", EnginePower: 100, Cost: decimal.NewFromInt(12000), Availability: DefaultModelAvailability},
		{ID: 3, Name: "Model C", EnginePower: 150, Cost: decimal.NewFromInt(14000), Availability: DefaultModelAvailability},
		{ID: 4, Name: "Model S", EnginePower: 310, Cost: decimal.NewFromInt(79999), Availability: DefaultModelAvailability},
		{ID: 5, Name: "Model X", EnginePower: 360, Cost: decimal.NewFromInt(89999), Availability: DefaultModelAvailability},
	}
}

// SeedAccessories is the stock accessory list.
func SeedAccessories() []domain.Accessory {
	names := []struct {
		name  string
		price int64
	}{
		{"radio", 300},
		{"satellite navigator", 600},
		{"bluetooth", 200},
		{"power windows", 200},
		{"extra front lights", 150},
		{"extra rear lights", 150},
		{"air conditioning", 600},
		{"spare tire", 200},
		{"assisted driving", 1200},
		{"automatic braking", 800},
		{"Sunroof", 1200},
		{"Leather seats", 2000},
	}
	out := make([]domain.Accessory, 0, len(names))
	for i, n := range names {
		out = append(out, domain.Accessory{
			ID:           int64(i + 1),
			Name:         n.name,
			Price:        decimal.NewFromInt(n.price),
			Availability: DefaultAccessoryAvailability,
		})
	}
	return out
}

// SeedConstraints: bluetooth requires radio, assisted driving is
// incompatible with automatic braking. Ids refer to SeedAccessories.
func SeedConstraints() []domain.ConstraintEdge {
	radio, assisted, braking := int64(1), int64(9), int64(10)
	return []domain.ConstraintEdge{
		{AccessoryID: 3, RequiresAccessoryID: &radio},
		{AccessoryID: assisted, IncompatibleAccessoryID: &braking},
	}
}
