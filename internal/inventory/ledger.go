// Package inventory owns the model and accessory availability counters.
package inventory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/punchamoorthee/carconfig/internal/domain"
)

var reservationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "carconfig_ledger_reservations_total",
	Help: "Inventory reservations by outcome",
}, []string{"result"})

// ObserveReservation records the outcome of a Reserve call.
func ObserveReservation(err error) {
	switch _, oos := domain.IsOutOfStock(err); {
	case err == nil:
		reservationsTotal.WithLabelValues("ok").Inc()
	case oos:
		reservationsTotal.WithLabelValues("out_of_stock").Inc()
	default:
		reservationsTotal.WithLabelValues("error").Inc()
	}
}

// Ledger reserves one unit of a model and of each named accessory.
//
// Reserve is all-or-nothing: on any error no counter is left decremented.
// Release increments the same counters and is only called for reservations
// that succeeded.
type Ledger interface {
	Reserve(ctx context.Context, modelID int64, accessories []string) error
	Release(ctx context.Context, modelID int64, accessories []string) error
}

type counter struct {
	mu        sync.Mutex
	available int
}

// MemoryLedger keeps counters in process. Each item has its own mutex; a
// reservation locks its items in key order so overlapping reservations
// cannot deadlock and disjoint ones run in parallel.
type MemoryLedger struct {
	items map[string]*counter
}

func NewMemoryLedger(models []domain.CarModel, accessories []domain.Accessory) *MemoryLedger {
	l := &MemoryLedger{items: make(map[string]*counter, len(models)+len(accessories))}
	for _, m := range models {
		l.items[domain.ModelItem(m.ID)] = &counter{available: m.Availability}
	}
	for _, a := range accessories {
		l.items[domain.AccessoryItem(a.Name)] = &counter{available: a.Availability}
	}
	return l
}

// lockItems resolves and locks every item, in sorted key order.
func (l *MemoryLedger) lockItems(modelID int64, accessories []string) ([]string, []*counter, error) {
	keys := itemKeys(modelID, accessories)
	counters := make([]*counter, len(keys))
	for i, k := range keys {
		c, ok := l.items[k]
		if !ok {
			if k == domain.ModelItem(modelID) {
				return nil, nil, fmt.Errorf("%w: %d", domain.ErrModelNotFound, modelID)
			}
			return nil, nil, fmt.Errorf("%w: %s", domain.ErrUnknownAccessory, k)
		}
		counters[i] = c
	}
	for _, c := range counters {
		c.mu.Lock()
	}
	return keys, counters, nil
}

func unlock(counters []*counter) {
	for i := len(counters) - 1; i >= 0; i-- {
		counters[i].mu.Unlock()
	}
}

func (l *MemoryLedger) Reserve(ctx context.Context, modelID int64, accessories []string) (err error) {
	defer func() { ObserveReservation(err) }()

	if err := ctx.Err(); err != nil {
		return err
	}
	keys, counters, err := l.lockItems(modelID, accessories)
	if err != nil {
		return err
	}
	defer unlock(counters)

	// Check everything before touching anything.
	for i, c := range counters {
		if c.available <= 0 {
			return &domain.OutOfStockError{Item: keys[i]}
		}
	}
	for _, c := range counters {
		c.available--
	}
	return nil
}

func (l *MemoryLedger) Release(ctx context.Context, modelID int64, accessories []string) error {
	_, counters, err := l.lockItems(modelID, accessories)
	if err != nil {
		return err
	}
	defer unlock(counters)

	for _, c := range counters {
		c.available++
	}
	return nil
}

// Available returns the current counter for an item key built with
// domain.ModelItem or domain.AccessoryItem.
func (l *MemoryLedger) Available(item string) (int, bool) {
	c, ok := l.items[item]
	if !ok {
		return 0, false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.available, true
}

// itemKeys returns the distinct, sorted item keys for a reservation.
func itemKeys(modelID int64, accessories []string) []string {
	seen := map[string]struct{}{domain.ModelItem(modelID): {}}
	keys := []string{domain.ModelItem(modelID)}
	for _, name := range accessories {
		k := domain.AccessoryItem(name)
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
