package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/punchamoorthee/carconfig/internal/catalog"
	"github.com/punchamoorthee/carconfig/internal/domain"
	"github.com/punchamoorthee/carconfig/internal/validator"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var savesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "carconfig_configuration_saves_total",
	Help: "Configuration save requests by terminal state",
}, []string{"outcome"})

// Models resolves car models by id.
type Models interface {
	CarModel(ctx context.Context, id int64) (domain.CarModel, error)
}

// ConfigurationStore owns the user -> configuration relation and the stock
// each configuration holds. Create and Remove change the row and the
// counters as one unit: on error neither has changed.
type ConfigurationStore interface {
	Fetch(ctx context.Context, ownerID int64) (*domain.Configuration, error)
	// Create reserves one unit of the model and of each accessory and
	// stores cfg.
	Create(ctx context.Context, cfg domain.Configuration) (*domain.Configuration, error)
	// Remove deletes the owner's configuration and returns its stock.
	Remove(ctx context.Context, ownerID, id int64) (*domain.Configuration, error)
	SetEstimation(ctx context.Context, ownerID, id int64, days int) error
}

// Estimator produces a manufacturing-time estimate in days.
type Estimator interface {
	Estimate(ctx context.Context, accessories []string, goodClient bool) (int, error)
}

// Stage names the step a save request is in.
type Stage string

const (
	StageValidating Stage = "validating"
	StageReserving  Stage = "reserving"
	StagePersisting Stage = "persisting"
	StageEstimating Stage = "estimating"
	StageDone       Stage = "done"
)

// SaveResult is the outcome of a successful save. EstimationErr is set when
// the configuration was stored but no estimate could be obtained.
type SaveResult struct {
	Configuration *domain.Configuration
	EstimationErr error
	// ReplacedID is the id of the configuration this save replaced, if any.
	ReplacedID int64
}

type ConfigurationService struct {
	models    Models
	graph     *catalog.Graph
	validator *validator.Validator
	store     ConfigurationStore
	estimator Estimator
	locks     *ownerLocks
	logger    *zap.Logger
}

func NewConfigurationService(
	models Models,
	graph *catalog.Graph,
	policy catalog.CapacityPolicy,
	store ConfigurationStore,
	estimator Estimator,
	logger *zap.Logger,
) *ConfigurationService {
	return &ConfigurationService{
		models:    models,
		graph:     graph,
		validator: validator.New(graph, policy),
		store:     store,
		estimator: estimator,
		locks:     newOwnerLocks(),
		logger:    logger,
	}
}

// Validate checks a selection without side effects and returns the
// model's accessory limit.
func (s *ConfigurationService) Validate(ctx context.Context, p *domain.Principal, modelID int64, accessories []string) (int, error) {
	if p == nil {
		return 0, domain.ErrUnauthenticated
	}
	model, err := s.models.CarModel(ctx, modelID)
	if err != nil {
		return 0, err
	}
	return s.validator.MaxAccessories(model), s.validator.Validate(model, accessories)
}

// Save validates the selection, replaces the owner's configuration and
// reserves inventory for the new one, then asks for an estimate.
//
// The prior configuration is removed before the new one is created. If the
// creation then fails the owner is left without a configuration. Each step
// moves stock together with its row, so no counter is ever left decremented
// without a stored configuration.
func (s *ConfigurationService) Save(ctx context.Context, p *domain.Principal, modelID int64, accessories []string) (*SaveResult, error) {
	if p == nil {
		return nil, domain.ErrUnauthenticated
	}
	log := s.logger.With(zap.Int64("owner_id", p.ID), zap.Int64("car_model_id", modelID))

	result, err := s.commit(ctx, p, modelID, validator.Normalize(accessories), log)
	if err != nil {
		savesTotal.WithLabelValues(outcome(err)).Inc()
		return nil, err
	}

	// The row is committed; estimation is advisory and runs even if the
	// caller has gone away.
	log.Debug("save stage", zap.String("stage", string(StageEstimating)))
	estCtx := context.WithoutCancel(ctx)
	days, err := s.estimator.Estimate(estCtx, result.Configuration.Accessories, p.GoodClient)
	if err != nil {
		log.Warn("estimation unavailable, configuration kept", zap.Int64("configuration_id", result.Configuration.ID), zap.Error(err))
		if !errors.Is(err, domain.ErrEstimationUnavailable) {
			err = fmt.Errorf("%w: %v", domain.ErrEstimationUnavailable, err)
		}
		result.EstimationErr = err
		savesTotal.WithLabelValues("estimation_unavailable").Inc()
		return result, nil
	}

	result.Configuration.Estimation = &days
	if err := s.store.SetEstimation(estCtx, p.ID, result.Configuration.ID, days); err != nil {
		log.Warn("could not record estimation", zap.Int64("configuration_id", result.Configuration.ID), zap.Error(err))
	}
	log.Info("configuration saved",
		zap.Int64("configuration_id", result.Configuration.ID),
		zap.Int("estimation", days),
		zap.String("stage", string(StageDone)))
	savesTotal.WithLabelValues("ok").Inc()
	return result, nil
}

// commit runs the owner-serialized part of a save.
func (s *ConfigurationService) commit(ctx context.Context, p *domain.Principal, modelID int64, names []string, log *zap.Logger) (*SaveResult, error) {
	unlock, err := s.locks.Lock(ctx, p.ID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	log.Debug("save stage", zap.String("stage", string(StageValidating)))
	model, err := s.models.CarModel(ctx, modelID)
	if err != nil {
		return nil, err
	}
	if err := s.validator.Validate(model, names); err != nil {
		log.Info("configuration rejected", zap.Error(err))
		return nil, err
	}

	result := &SaveResult{}
	prior, err := s.store.Fetch(ctx, p.ID)
	if err != nil {
		return nil, err
	}
	if prior != nil {
		if err := s.remove(ctx, p.ID, prior.ID, log); err != nil {
			return nil, err
		}
		result.ReplacedID = prior.ID
	}

	// Reserving and persisting commit together.
	log.Debug("save stage", zap.String("stage", string(StageReserving)), zap.String("with", string(StagePersisting)))
	saved, err := s.store.Create(ctx, domain.Configuration{
		OwnerID:     p.ID,
		CarModelID:  model.ID,
		Accessories: names,
		TotalPrice:  s.totalPrice(model, names),
	})
	if err != nil {
		if result.ReplacedID != 0 {
			log.Warn("save failed after prior configuration was removed",
				zap.Int64("replaced_id", result.ReplacedID), zap.Error(err))
		}
		return nil, classify(err)
	}

	result.Configuration = saved
	return result, nil
}

// Fetch returns the owner's configuration, or nil.
func (s *ConfigurationService) Fetch(ctx context.Context, p *domain.Principal) (*domain.Configuration, error) {
	if p == nil {
		return nil, domain.ErrUnauthenticated
	}
	return s.store.Fetch(ctx, p.ID)
}

// Delete removes the owner's configuration and releases its reservation.
func (s *ConfigurationService) Delete(ctx context.Context, p *domain.Principal, id int64) error {
	if p == nil {
		return domain.ErrUnauthenticated
	}
	unlock, err := s.locks.Lock(ctx, p.ID)
	if err != nil {
		return err
	}
	defer unlock()

	return s.remove(ctx, p.ID, id, s.logger.With(zap.Int64("owner_id", p.ID)))
}

// remove deletes the configuration and returns its stock in one step.
func (s *ConfigurationService) remove(ctx context.Context, ownerID, id int64, log *zap.Logger) error {
	if _, err := s.store.Remove(ctx, ownerID, id); err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			log.Error("remove configuration failed", zap.Int64("configuration_id", id), zap.Error(err))
		}
		return classify(err)
	}
	log.Info("configuration deleted", zap.Int64("configuration_id", id))
	return nil
}

// Reestimate requests a fresh estimate for the owner's stored
// configuration and records it.
func (s *ConfigurationService) Reestimate(ctx context.Context, p *domain.Principal, id int64) (int, error) {
	if p == nil {
		return 0, domain.ErrUnauthenticated
	}
	cfg, err := s.store.Fetch(ctx, p.ID)
	if err != nil {
		return 0, err
	}
	if cfg == nil || cfg.ID != id {
		return 0, domain.ErrNotFound
	}
	days, err := s.estimator.Estimate(ctx, cfg.Accessories, p.GoodClient)
	if err != nil {
		if !errors.Is(err, domain.ErrEstimationUnavailable) {
			err = fmt.Errorf("%w: %v", domain.ErrEstimationUnavailable, err)
		}
		return 0, err
	}
	if err := s.store.SetEstimation(ctx, p.ID, id, days); err != nil {
		return 0, err
	}
	return days, nil
}

func (s *ConfigurationService) totalPrice(model domain.CarModel, names []string) decimal.Decimal {
	total := model.Cost
	for _, n := range names {
		if a, ok := s.graph.Accessory(n); ok {
			total = total.Add(a.Price)
		}
	}
	return total
}

// classify leaves taxonomy errors as they are and reports anything else
// from the store as a persistence failure.
func classify(err error) error {
	if _, ok := domain.IsOutOfStock(err); ok {
		return err
	}
	for _, known := range []error{
		domain.ErrPersistence,
		domain.ErrConfigurationExists,
		domain.ErrNotFound,
		domain.ErrModelNotFound,
		domain.ErrUnknownAccessory,
		context.Canceled,
		context.DeadlineExceeded,
	} {
		if errors.Is(err, known) {
			return err
		}
	}
	return fmt.Errorf("%w: %v", domain.ErrPersistence, err)
}

func outcome(err error) string {
	if _, ok := domain.IsValidation(err); ok {
		return "rejected"
	}
	if _, ok := domain.IsOutOfStock(err); ok {
		return "out_of_stock"
	}
	switch {
	case errors.Is(err, domain.ErrUnknownAccessory), errors.Is(err, domain.ErrModelNotFound):
		return "rejected"
	case errors.Is(err, domain.ErrPersistence):
		return "persistence_failure"
	}
	return "error"
}
