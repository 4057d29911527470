// Package validator checks a proposed (model, accessory set) against the
// capacity policy and the constraint graph. It has no side effects and is
// re-run in full on every change to a selection.
package validator

import (
	"fmt"

	"github.com/punchamoorthee/carconfig/internal/catalog"
	"github.com/punchamoorthee/carconfig/internal/domain"
)

type Validator struct {
	graph  *catalog.Graph
	policy catalog.CapacityPolicy
}

func New(graph *catalog.Graph, policy catalog.CapacityPolicy) *Validator {
	return &Validator{graph: graph, policy: policy}
}

// MaxAccessories exposes the capacity for a model.
func (v *Validator) MaxAccessories(model domain.CarModel) int {
	return v.policy.MaxAccessories(model.EnginePower)
}

// Validate returns nil when the selection is acceptable, a
// *domain.ValidationError when a rule is broken, or an error wrapping
// domain.ErrUnknownAccessory for names missing from the catalog.
// Duplicate names count once.
func (v *Validator) Validate(model domain.CarModel, accessories []string) error {
	selected := Normalize(accessories)
	set := make(map[string]struct{}, len(selected))
	for _, name := range selected {
		if _, ok := v.graph.Accessory(name); !ok {
			return fmt.Errorf("%w: %q", domain.ErrUnknownAccessory, name)
		}
		set[name] = struct{}{}
	}

	limit := v.policy.MaxAccessories(model.EnginePower)
	if len(selected) > limit {
		return &domain.ValidationError{Kind: domain.CapacityExceeded, Limit: limit, Count: len(selected)}
	}

	for _, name := range selected {
		for _, req := range v.graph.Requires(name) {
			if _, ok := set[req]; !ok {
				return &domain.ValidationError{Kind: domain.MissingDependency, Accessory: name, Other: req}
			}
		}
	}

	// Pairs are checked from both sides so a one-directional seed row still
	// rejects the selection whichever accessory declared it.
	for i, name := range selected {
		for _, other := range selected[i+1:] {
			if v.graph.Incompatible(name, other) {
				return &domain.ValidationError{Kind: domain.Incompatible, Accessory: name, Other: other}
			}
		}
	}
	return nil
}

// Normalize drops repeated names, keeping first-seen order.
func Normalize(accessories []string) []string {
	seen := make(map[string]struct{}, len(accessories))
	out := make([]string, 0, len(accessories))
	for _, name := range accessories {
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}
	return out
}
