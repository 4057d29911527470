package store

import (
	"context"
	_ "embed"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/punchamoorthee/carconfig/internal/domain"
	"github.com/shopspring/decimal"
)

//go:embed schema.sql
var schema string

type Store struct {
	Db *pgxpool.Pool
}

func NewStore(ctx context.Context, connString string) (*Store, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("unable to parse database config: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}

	return &Store{Db: pool}, nil
}

func (s *Store) Close() {
	s.Db.Close()
}

// Migrate creates the tables if they do not exist.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.Db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// ListCarModels returns every model with its current availability.
func (s *Store) ListCarModels(ctx context.Context) ([]domain.CarModel, error) {
	rows, err := s.Db.Query(ctx, "SELECT id, name, engine_power, cost, availability FROM car_models ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrPersistence, err)
	}
	defer rows.Close()

	models := []domain.CarModel{}
	for rows.Next() {
		var m domain.CarModel
		var cost int64
		if err := rows.Scan(&m.ID, &m.Name, &m.EnginePower, &cost, &m.Availability); err != nil {
			return nil, fmt.Errorf("%w: scan car model: %v", domain.ErrPersistence, err)
		}
		m.Cost = decimal.NewFromInt(cost)
		models = append(models, m)
	}
	return models, rows.Err()
}

// CarModel retrieves a single model by ID.
func (s *Store) CarModel(ctx context.Context, id int64) (domain.CarModel, error) {
	var m domain.CarModel
	var cost int64
	err := s.Db.QueryRow(ctx,
		"SELECT id, name, engine_power, cost, availability FROM car_models WHERE id = $1", id,
	).Scan(&m.ID, &m.Name, &m.EnginePower, &cost, &m.Availability)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return m, fmt.Errorf("%w: %d", domain.ErrModelNotFound, id)
		}
		return m, fmt.Errorf("%w: %v", domain.ErrPersistence, err)
	}
	m.Cost = decimal.NewFromInt(cost)
	return m, nil
}

// ListAccessories returns every accessory with its current availability.
func (s *Store) ListAccessories(ctx context.Context) ([]domain.Accessory, error) {
	rows, err := s.Db.Query(ctx, "SELECT id, name, price, availability FROM accessories ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrPersistence, err)
	}
	defer rows.Close()

	accessories := []domain.Accessory{}
	for rows.Next() {
		var a domain.Accessory
		var price int64
		if err := rows.Scan(&a.ID, &a.Name, &price, &a.Availability); err != nil {
			return nil, fmt.Errorf("%w: scan accessory: %v", domain.ErrPersistence, err)
		}
		a.Price = decimal.NewFromInt(price)
		accessories = append(accessories, a)
	}
	return accessories, rows.Err()
}

// ListConstraints returns the seeded constraint rows.
func (s *Store) ListConstraints(ctx context.Context) ([]domain.ConstraintEdge, error) {
	rows, err := s.Db.Query(ctx,
		"SELECT accessory_id, requires_accessory_id, incompatible_accessory_id FROM accessory_constraints ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrPersistence, err)
	}
	defer rows.Close()

	edges := []domain.ConstraintEdge{}
	for rows.Next() {
		var e domain.ConstraintEdge
		if err := rows.Scan(&e.AccessoryID, &e.RequiresAccessoryID, &e.IncompatibleAccessoryID); err != nil {
			return nil, fmt.Errorf("%w: scan constraint: %v", domain.ErrPersistence, err)
		}
		edges = append(edges, e)
	}
	return edges, rows.Err()
}

// UserByUsername looks up the credentials row used by the auth middleware.
func (s *Store) UserByUsername(ctx context.Context, username string) (domain.User, error) {
	var u domain.User
	err := s.Db.QueryRow(ctx,
		"SELECT id, username, password, good_client FROM users WHERE username = $1", username,
	).Scan(&u.ID, &u.Username, &u.PasswordHash, &u.GoodClient)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return u, domain.ErrUnauthenticated
		}
		return u, fmt.Errorf("%w: %v", domain.ErrPersistence, err)
	}
	return u, nil
}
