// Package catalog holds the static accessory constraint graph and the
// engine-power capacity policy.
package catalog

import (
	"fmt"

	"github.com/punchamoorthee/carconfig/internal/domain"
)

// Edge is a typed relation from one accessory to another, by name.
type Edge struct {
	Kind   domain.EdgeKind
	Target string
}

// Graph maps each accessory to a set of typed edges. It is immutable after
// construction and safe for concurrent reads.
type Graph struct {
	byName map[string]domain.Accessory
	byID   map[int64]string
	edges  map[string][]Edge
	// incompatible pairs indexed from both sides
	conflicts map[string]map[string]struct{}
}

// NewGraph indexes accessories and constraint rows. A row may carry both a
// requires and an incompatible target; each becomes its own edge.
func NewGraph(accessories []domain.Accessory, rows []domain.ConstraintEdge) (*Graph, error) {
	g := &Graph{
		byName:    make(map[string]domain.Accessory, len(accessories)),
		byID:      make(map[int64]string, len(accessories)),
		edges:     make(map[string][]Edge),
		conflicts: make(map[string]map[string]struct{}),
	}
	for _, a := range accessories {
		if _, dup := g.byName[a.Name]; dup {
			return nil, fmt.Errorf("duplicate accessory name %q", a.Name)
		}
		g.byName[a.Name] = a
		g.byID[a.ID] = a.Name
	}

	for _, row := range rows {
		from, ok := g.byID[row.AccessoryID]
		if !ok {
			return nil, fmt.Errorf("constraint on unknown accessory id %d", row.AccessoryID)
		}
		if row.RequiresAccessoryID != nil {
			to, ok := g.byID[*row.RequiresAccessoryID]
			if !ok {
				return nil, fmt.Errorf("%s requires unknown accessory id %d", from, *row.RequiresAccessoryID)
			}
			g.addEdge(from, Edge{Kind: domain.EdgeRequires, Target: to})
		}
		if row.IncompatibleAccessoryID != nil {
			to, ok := g.byID[*row.IncompatibleAccessoryID]
			if !ok {
				return nil, fmt.Errorf("%s incompatible with unknown accessory id %d", from, *row.IncompatibleAccessoryID)
			}
			g.addEdge(from, Edge{Kind: domain.EdgeIncompatible, Target: to})
			g.addConflict(from, to)
			g.addConflict(to, from)
		}
	}
	return g, nil
}

func (g *Graph) addEdge(from string, e Edge) {
	for _, existing := range g.edges[from] {
		if existing == e {
			return
		}
	}
	g.edges[from] = append(g.edges[from], e)
}

func (g *Graph) addConflict(a, b string) {
	set, ok := g.conflicts[a]
	if !ok {
		set = make(map[string]struct{})
		g.conflicts[a] = set
	}
	set[b] = struct{}{}
}

// ConstraintsFor returns the edges declared by the named accessory. An
// accessory without edges is unconstrained.
func (g *Graph) ConstraintsFor(name string) []Edge {
	return g.edges[name]
}

// ConstraintsForID is ConstraintsFor keyed by accessory id.
func (g *Graph) ConstraintsForID(id int64) []Edge {
	name, ok := g.byID[id]
	if !ok {
		return nil
	}
	return g.edges[name]
}

// Requires lists the accessories the named one depends on.
func (g *Graph) Requires(name string) []string {
	var out []string
	for _, e := range g.edges[name] {
		if e.Kind == domain.EdgeRequires {
			out = append(out, e.Target)
		}
	}
	return out
}

// Incompatible reports whether a and b conflict, regardless of which side
// declared the edge.
func (g *Graph) Incompatible(a, b string) bool {
	_, ok := g.conflicts[a][b]
	return ok
}

// IncompatibleWith lists every accessory in conflict with name, from either
// side's declaration.
func (g *Graph) IncompatibleWith(name string) []string {
	var out []string
	for other := range g.conflicts[name] {
		out = append(out, other)
	}
	return out
}

// Accessory resolves an accessory by name.
func (g *Graph) Accessory(name string) (domain.Accessory, bool) {
	a, ok := g.byName[name]
	return a, ok
}

// Name resolves an accessory id to its name.
func (g *Graph) Name(id int64) (string, bool) {
	n, ok := g.byID[id]
	return n, ok
}
