package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/punchamoorthee/carconfig/internal/domain"
	"github.com/punchamoorthee/carconfig/internal/inventory"
	"github.com/shopspring/decimal"
)

// Configurations persists the user -> configuration relation together with
// the stock it holds. The accessories column holds a JSON array of names.
type Configurations struct {
	db *pgxpool.Pool
}

func NewConfigurations(db *pgxpool.Pool) *Configurations {
	return &Configurations{db: db}
}

const configurationColumns = "id, user_id, car_model_id, accessories, estimation, total_price::text, created_at"

func scanConfiguration(row pgx.Row) (*domain.Configuration, error) {
	var c domain.Configuration
	var accessories, total string
	if err := row.Scan(&c.ID, &c.OwnerID, &c.CarModelID, &accessories, &c.Estimation, &total, &c.CreatedAt); err != nil {
		return nil, err
	}
	names, err := DecodeAccessories(accessories)
	if err != nil {
		return nil, err
	}
	c.Accessories = names
	if c.TotalPrice, err = decimal.NewFromString(total); err != nil {
		return nil, fmt.Errorf("parse total_price %q: %w", total, err)
	}
	return &c, nil
}

// Fetch returns the owner's configuration, or nil when there is none.
func (s *Configurations) Fetch(ctx context.Context, ownerID int64) (*domain.Configuration, error) {
	c, err := scanConfiguration(s.db.QueryRow(ctx,
		"SELECT "+configurationColumns+" FROM configurations WHERE user_id = $1", ownerID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: fetch configuration: %v", domain.ErrPersistence, err)
	}
	return c, nil
}

// Create reserves one unit of the model and of each accessory and stores
// cfg, in a single transaction. It fails with domain.ErrConfigurationExists
// if the owner already has a configuration, and with *domain.OutOfStockError
// when any item has nothing left; in both cases no counter changes.
func (s *Configurations) Create(ctx context.Context, cfg domain.Configuration) (*domain.Configuration, error) {
	encoded, err := EncodeAccessories(cfg.Accessories)
	if err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return nil, fmt.Errorf("%w: tx begin failed: %v", domain.ErrPersistence, err)
	}
	defer tx.Rollback(ctx)

	err = reserveTx(ctx, tx, cfg.CarModelID, cfg.Accessories)
	inventory.ObserveReservation(err)
	if err != nil {
		return nil, err
	}

	c, err := scanConfiguration(tx.QueryRow(ctx,
		`INSERT INTO configurations (user_id, car_model_id, accessories, estimation, total_price)
		 VALUES ($1, $2, $3, $4, $5::numeric)
		 RETURNING `+configurationColumns,
		cfg.OwnerID, cfg.CarModelID, encoded, cfg.Estimation, cfg.TotalPrice.String(),
	))
	if err != nil {
		return nil, insertError(err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("%w: tx commit failed: %v", domain.ErrPersistence, err)
	}
	return c, nil
}

// Remove deletes the owner's configuration with the given id and returns
// its stock, in a single transaction. The deleted row is returned.
func (s *Configurations) Remove(ctx context.Context, ownerID, id int64) (*domain.Configuration, error) {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return nil, fmt.Errorf("%w: tx begin failed: %v", domain.ErrPersistence, err)
	}
	defer tx.Rollback(ctx)

	c, err := scanConfiguration(tx.QueryRow(ctx,
		"DELETE FROM configurations WHERE id = $1 AND user_id = $2 RETURNING "+configurationColumns,
		id, ownerID))
	if err != nil {
		return nil, deleteError(err)
	}
	if err := releaseTx(ctx, tx, c.CarModelID, c.Accessories); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("%w: tx commit failed: %v", domain.ErrPersistence, err)
	}
	return c, nil
}

// insertError classifies a failed configuration insert. A unique violation
// on user_id means another writer stored a configuration for the owner first.
func insertError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return domain.ErrConfigurationExists
	}
	return fmt.Errorf("%w: insert configuration: %v", domain.ErrPersistence, err)
}

func deleteError(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.ErrNotFound
	}
	return fmt.Errorf("%w: delete configuration: %v", domain.ErrPersistence, err)
}

// SetEstimation records an estimation on an existing configuration.
func (s *Configurations) SetEstimation(ctx context.Context, ownerID, id int64, days int) error {
	tag, err := s.db.Exec(ctx,
		"UPDATE configurations SET estimation = $1 WHERE id = $2 AND user_id = $3", days, id, ownerID)
	if err != nil {
		return fmt.Errorf("%w: update estimation: %v", domain.ErrPersistence, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// EncodeAccessories renders names in the stored text form.
func EncodeAccessories(names []string) (string, error) {
	if names == nil {
		names = []string{}
	}
	b, err := json.Marshal(names)
	if err != nil {
		return "", fmt.Errorf("encode accessories: %w", err)
	}
	return string(b), nil
}

// DecodeAccessories parses the stored text form back into names.
func DecodeAccessories(text string) ([]string, error) {
	names := []string{}
	if err := json.Unmarshal([]byte(text), &names); err != nil {
		return nil, fmt.Errorf("decode accessories %q: %w", text, err)
	}
	return names, nil
}
