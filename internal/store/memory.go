package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/punchamoorthee/carconfig/internal/domain"
	"github.com/punchamoorthee/carconfig/internal/inventory"
)

// MemoryConfigurations is an in-process configuration store with the same
// contract as Configurations. Stock is kept by the given ledger; every check
// that can fail runs before the ledger is touched, so a stock change and the
// row it belongs to are applied together or not at all.
type MemoryConfigurations struct {
	mu     sync.Mutex
	ledger inventory.Ledger
	nextID int64
	byUser map[int64]domain.Configuration

	// FailCreate, when set, is returned by Create before any stock moves.
	FailCreate error
}

func NewMemoryConfigurations(ledger inventory.Ledger) *MemoryConfigurations {
	return &MemoryConfigurations{ledger: ledger, byUser: make(map[int64]domain.Configuration)}
}

func cloneConfiguration(c domain.Configuration) *domain.Configuration {
	c.Accessories = append([]string{}, c.Accessories...)
	if c.Estimation != nil {
		days := *c.Estimation
		c.Estimation = &days
	}
	return &c
}

func (s *MemoryConfigurations) Fetch(ctx context.Context, ownerID int64) (*domain.Configuration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.byUser[ownerID]
	if !ok {
		return nil, nil
	}
	return cloneConfiguration(c), nil
}

func (s *MemoryConfigurations) Create(ctx context.Context, cfg domain.Configuration) (*domain.Configuration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailCreate != nil {
		return nil, s.FailCreate
	}
	if _, exists := s.byUser[cfg.OwnerID]; exists {
		return nil, domain.ErrConfigurationExists
	}
	if err := s.ledger.Reserve(ctx, cfg.CarModelID, cfg.Accessories); err != nil {
		return nil, err
	}

	s.nextID++
	cfg.ID = s.nextID
	cfg.CreatedAt = time.Now().UTC()
	s.byUser[cfg.OwnerID] = *cloneConfiguration(cfg)
	return cloneConfiguration(cfg), nil
}

// Remove keeps the row when its stock cannot be returned.
func (s *MemoryConfigurations) Remove(ctx context.Context, ownerID, id int64) (*domain.Configuration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.byUser[ownerID]
	if !ok || c.ID != id {
		return nil, domain.ErrNotFound
	}
	if err := s.ledger.Release(ctx, c.CarModelID, c.Accessories); err != nil {
		return nil, err
	}
	delete(s.byUser, ownerID)
	return cloneConfiguration(c), nil
}

func (s *MemoryConfigurations) SetEstimation(ctx context.Context, ownerID, id int64, days int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.byUser[ownerID]
	if !ok || c.ID != id {
		return domain.ErrNotFound
	}
	c.Estimation = &days
	s.byUser[ownerID] = c
	return nil
}

// Count returns the number of stored configurations.
func (s *MemoryConfigurations) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.byUser)
}

// MemoryCatalog serves static models, accessories, constraints and users.
type MemoryCatalog struct {
	Models      []domain.CarModel
	Accessories []domain.Accessory
	Constraints []domain.ConstraintEdge
	Users       []domain.User
}

func (c *MemoryCatalog) ListCarModels(ctx context.Context) ([]domain.CarModel, error) {
	return append([]domain.CarModel{}, c.Models...), nil
}

func (c *MemoryCatalog) CarModel(ctx context.Context, id int64) (domain.CarModel, error) {
	for _, m := range c.Models {
		if m.ID == id {
			return m, nil
		}
	}
	return domain.CarModel{}, fmt.Errorf("%w: %d", domain.ErrModelNotFound, id)
}

func (c *MemoryCatalog) ListAccessories(ctx context.Context) ([]domain.Accessory, error) {
	return append([]domain.Accessory{}, c.Accessories...), nil
}

func (c *MemoryCatalog) ListConstraints(ctx context.Context) ([]domain.ConstraintEdge, error) {
	return append([]domain.ConstraintEdge{}, c.Constraints...), nil
}

func (c *MemoryCatalog) UserByUsername(ctx context.Context, username string) (domain.User, error) {
	for _, u := range c.Users {
		if u.Username == username {
			return u, nil
		}
	}
	return domain.User{}, domain.ErrUnauthenticated
}
