package catalog

// CapacityRule caps the accessory count for one exact engine power.
type CapacityRule struct {
	EnginePower int
	Max         int
}

// CapacityPolicy maps engine power (kW) to a maximum accessory count. Exact
// matches are tried in order; Fallback applies to everything else.
type CapacityPolicy struct {
	Rules    []CapacityRule
	Fallback int
}

// DefaultCapacityPolicy is 50kW -> 4, 100kW -> 5, anything else -> 7.
// Intermediate powers land in the fallback bucket.
func DefaultCapacityPolicy() CapacityPolicy {
	return CapacityPolicy{
		Rules: []CapacityRule{
			{EnginePower: 50, Max: 4},
			{EnginePower: 100, Max: 5},
		},
		Fallback: 7,
	}
}

func (p CapacityPolicy) MaxAccessories(enginePower int) int {
	for _, r := range p.Rules {
		if r.EnginePower == enginePower {
			return r.Max
		}
	}
	return p.Fallback
}
