package store

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/jackc/pgx/v5"
	"github.com/punchamoorthee/carconfig/internal/domain"
)

// Stock lives in the car_models and accessories rows. Every change locks the
// model row first and then the accessory rows by name, so concurrent
// reservations serialize per item without deadlocking. The helpers below run
// inside the caller's transaction so that a stock change commits or rolls
// back together with the configuration row it belongs to.
const (
	lockModelSQL       = "SELECT availability FROM car_models WHERE id = $1 FOR UPDATE"
	lockAccessoriesSQL = "SELECT name, availability FROM accessories WHERE name = ANY($1) ORDER BY name FOR UPDATE"
)

type lockedItem struct {
	key       string
	available int
}

// lockItems takes row locks in deterministic order and returns the current
// counters, model first. names must be distinct and sorted.
func lockItems(ctx context.Context, tx pgx.Tx, modelID int64, names []string) ([]lockedItem, error) {
	var modelAvail int
	err := tx.QueryRow(ctx, lockModelSQL, modelID).Scan(&modelAvail)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: %d", domain.ErrModelNotFound, modelID)
		}
		return nil, fmt.Errorf("%w: lock car model: %v", domain.ErrPersistence, err)
	}
	items := []lockedItem{{key: domain.ModelItem(modelID), available: modelAvail}}
	if len(names) == 0 {
		return items, nil
	}

	rows, err := tx.Query(ctx, lockAccessoriesSQL, names)
	if err != nil {
		return nil, fmt.Errorf("%w: lock accessories: %v", domain.ErrPersistence, err)
	}
	defer rows.Close()

	found := make(map[string]bool, len(names))
	for rows.Next() {
		var name string
		var avail int
		if err := rows.Scan(&name, &avail); err != nil {
			return nil, fmt.Errorf("%w: scan accessory: %v", domain.ErrPersistence, err)
		}
		found[name] = true
		items = append(items, lockedItem{key: domain.AccessoryItem(name), available: avail})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrPersistence, err)
	}
	if err := missingAccessory(names, found); err != nil {
		return nil, err
	}
	return items, nil
}

// missingAccessory reports the first requested name with no row.
func missingAccessory(names []string, found map[string]bool) error {
	for _, n := range names {
		if !found[n] {
			return fmt.Errorf("%w: %q", domain.ErrUnknownAccessory, n)
		}
	}
	return nil
}

// checkStock reports the first locked item with nothing left.
func checkStock(items []lockedItem) error {
	for _, it := range items {
		if it.available <= 0 {
			return &domain.OutOfStockError{Item: it.key}
		}
	}
	return nil
}

// reserveTx decrements one unit of the model and of each accessory, or
// nothing at all.
func reserveTx(ctx context.Context, tx pgx.Tx, modelID int64, accessories []string) error {
	names := distinctSorted(accessories)
	items, err := lockItems(ctx, tx, modelID, names)
	if err != nil {
		return err
	}
	if err := checkStock(items); err != nil {
		return err
	}

	if _, err := tx.Exec(ctx, "UPDATE car_models SET availability = availability - 1 WHERE id = $1", modelID); err != nil {
		return fmt.Errorf("%w: decrement car model: %v", domain.ErrPersistence, err)
	}
	if len(names) > 0 {
		if _, err := tx.Exec(ctx, "UPDATE accessories SET availability = availability - 1 WHERE name = ANY($1)", names); err != nil {
			return fmt.Errorf("%w: decrement accessories: %v", domain.ErrPersistence, err)
		}
	}
	return nil
}

// releaseTx returns the units taken by reserveTx.
func releaseTx(ctx context.Context, tx pgx.Tx, modelID int64, accessories []string) error {
	names := distinctSorted(accessories)
	if _, err := lockItems(ctx, tx, modelID, names); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, "UPDATE car_models SET availability = availability + 1 WHERE id = $1", modelID); err != nil {
		return fmt.Errorf("%w: increment car model: %v", domain.ErrPersistence, err)
	}
	if len(names) > 0 {
		if _, err := tx.Exec(ctx, "UPDATE accessories SET availability = availability + 1 WHERE name = ANY($1)", names); err != nil {
			return fmt.Errorf("%w: increment accessories: %v", domain.ErrPersistence, err)
		}
	}
	return nil
}

func distinctSorted(names []string) []string {
	seen := make(map[string]struct{}, len(names))
	out := make([]string, 0, len(names))
	for _, n := range names {
		if _, dup := seen[n]; dup {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}
