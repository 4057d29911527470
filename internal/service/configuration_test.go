package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/punchamoorthee/carconfig/internal/catalog"
	"github.com/punchamoorthee/carconfig/internal/domain"
	"github.com/punchamoorthee/carconfig/internal/inventory"
	"github.com/punchamoorthee/carconfig/internal/store"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

type estimateCall struct {
	accessories []string
	goodClient  bool
}

type fakeEstimator struct {
	mu    sync.Mutex
	calls []estimateCall
	days  int
	err   error
	hook  func(ctx context.Context)
}

func (f *fakeEstimator) Estimate(ctx context.Context, accessories []string, goodClient bool) (int, error) {
	if f.hook != nil {
		f.hook(ctx)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, estimateCall{accessories: append([]string{}, accessories...), goodClient: goodClient})
	return f.days, f.err
}

type fixture struct {
	svc       *ConfigurationService
	ledger    *inventory.MemoryLedger
	store     *store.MemoryConfigurations
	estimator *fakeEstimator
}

// brokenRelease is a ledger whose Release always fails, as when storage
// goes away after a reservation was taken.
type brokenRelease struct {
	inventory.Ledger
	err error
}

func (l *brokenRelease) Release(ctx context.Context, modelID int64, accessories []string) error {
	return l.err
}

// newFixture seeds the catalog; stock overrides accessory availability by name.
func newFixture(t *testing.T, stock map[string]int) *fixture {
	return newFixtureWithLedger(t, stock, nil)
}

// newFixtureWithLedger lets wrap replace the ledger the store writes through;
// the fixture still reads counters from the underlying memory ledger.
func newFixtureWithLedger(t *testing.T, stock map[string]int, wrap func(inventory.Ledger) inventory.Ledger) *fixture {
	t.Helper()
	models := catalog.SeedModels()
	accessories := catalog.SeedAccessories()
	for i := range accessories {
		if n, ok := stock[accessories[i].Name]; ok {
			accessories[i].Availability = n
		}
	}
	graph, err := catalog.NewGraph(accessories, catalog.SeedConstraints())
	require.NoError(t, err)

	f := &fixture{
		ledger:    inventory.NewMemoryLedger(models, accessories),
		estimator: &fakeEstimator{days: 30},
	}
	var ledger inventory.Ledger = f.ledger
	if wrap != nil {
		ledger = wrap(f.ledger)
	}
	f.store = store.NewMemoryConfigurations(ledger)
	f.svc = NewConfigurationService(
		&store.MemoryCatalog{Models: models, Accessories: accessories},
		graph, catalog.DefaultCapacityPolicy(), f.store, f.estimator, zap.NewNop())
	return f
}

func (f *fixture) available(t *testing.T, item string) int {
	t.Helper()
	n, ok := f.ledger.Available(item)
	require.True(t, ok, item)
	return n
}

var (
	goodClient = &domain.Principal{ID: 1, Username: "user1", GoodClient: true}
	otherUser  = &domain.Principal{ID: 2, Username: "user2"}
)

func TestSaveHappyPath(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	res, err := f.svc.Save(ctx, goodClient, 1, []string{"radio", "bluetooth"})
	require.NoError(t, err)
	require.NoError(t, res.EstimationErr)
	require.NotNil(t, res.Configuration.Estimation)
	assert.Equal(t, 30, *res.Configuration.Estimation)
	assert.Zero(t, res.ReplacedID)
	assert.True(t, decimal.NewFromInt(10500).Equal(res.Configuration.TotalPrice), res.Configuration.TotalPrice.String())

	require.Len(t, f.estimator.calls, 1)
	assert.Equal(t, estimateCall{accessories: []string{"radio", "bluetooth"}, goodClient: true}, f.estimator.calls[0])

	stored, err := f.svc.Fetch(ctx, goodClient)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, []string{"radio", "bluetooth"}, stored.Accessories)
	require.NotNil(t, stored.Estimation)
	assert.Equal(t, 30, *stored.Estimation)

	assert.Equal(t, catalog.DefaultModelAvailability-1, f.available(t, domain.ModelItem(1)))
	assert.Equal(t, catalog.DefaultAccessoryAvailability-1, f.available(t, domain.AccessoryItem("radio")))
}

func TestSaveRequiresPrincipal(t *testing.T) {
	f := newFixture(t, nil)
	_, err := f.svc.Save(context.Background(), nil, 1, nil)
	assert.ErrorIs(t, err, domain.ErrUnauthenticated)
	_, err = f.svc.Fetch(context.Background(), nil)
	assert.ErrorIs(t, err, domain.ErrUnauthenticated)
	assert.ErrorIs(t, f.svc.Delete(context.Background(), nil, 1), domain.ErrUnauthenticated)
}

func TestSaveReplacesPriorConfiguration(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	a, err := f.svc.Save(ctx, goodClient, 1, []string{"radio", "spare tire"})
	require.NoError(t, err)
	b, err := f.svc.Save(ctx, goodClient, 2, []string{"Sunroof"})
	require.NoError(t, err)
	assert.Equal(t, a.Configuration.ID, b.ReplacedID)

	assert.Equal(t, 1, f.store.Count())
	stored, _ := f.svc.Fetch(ctx, goodClient)
	assert.Equal(t, b.Configuration.ID, stored.ID)
	assert.Equal(t, []string{"Sunroof"}, stored.Accessories)

	// A's reservation is released, B's held.
	assert.Equal(t, catalog.DefaultModelAvailability, f.available(t, domain.ModelItem(1)))
	assert.Equal(t, catalog.DefaultAccessoryAvailability, f.available(t, domain.AccessoryItem("radio")))
	assert.Equal(t, catalog.DefaultAccessoryAvailability, f.available(t, domain.AccessoryItem("spare tire")))
	assert.Equal(t, catalog.DefaultModelAvailability-1, f.available(t, domain.ModelItem(2)))
	assert.Equal(t, catalog.DefaultAccessoryAvailability-1, f.available(t, domain.AccessoryItem("Sunroof")))
}

func TestSaveReplacementCanReuseReleasedStock(t *testing.T) {
	f := newFixture(t, map[string]int{"Sunroof": 1})
	ctx := context.Background()

	_, err := f.svc.Save(ctx, goodClient, 1, []string{"Sunroof"})
	require.NoError(t, err)
	_, err = f.svc.Save(ctx, goodClient, 1, []string{"Sunroof", "radio"})
	require.NoError(t, err)
	assert.Equal(t, 0, f.available(t, domain.AccessoryItem("Sunroof")))
}

func TestSaveRejectedKeepsPriorConfiguration(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	prior, err := f.svc.Save(ctx, goodClient, 1, []string{"radio"})
	require.NoError(t, err)

	_, err = f.svc.Save(ctx, goodClient, 1, []string{"bluetooth"})
	ve, ok := domain.IsValidation(err)
	require.True(t, ok, "got %v", err)
	assert.Equal(t, domain.MissingDependency, ve.Kind)
	assert.Equal(t, "bluetooth", ve.Accessory)
	assert.Equal(t, "radio", ve.Other)

	stored, _ := f.svc.Fetch(ctx, goodClient)
	require.NotNil(t, stored)
	assert.Equal(t, prior.Configuration.ID, stored.ID)
	assert.Equal(t, catalog.DefaultAccessoryAvailability, f.available(t, domain.AccessoryItem("bluetooth")))
}

func TestSaveIncompatible(t *testing.T) {
	f := newFixture(t, nil)
	_, err := f.svc.Save(context.Background(), goodClient, 3, []string{"automatic braking", "assisted driving"})
	ve, ok := domain.IsValidation(err)
	require.True(t, ok)
	assert.Equal(t, domain.Incompatible, ve.Kind)
	assert.Equal(t, 0, f.store.Count())
}

func TestSaveUnknownModelAndAccessory(t *testing.T) {
	f := newFixture(t, nil)
	_, err := f.svc.Save(context.Background(), goodClient, 99, nil)
	assert.ErrorIs(t, err, domain.ErrModelNotFound)
	_, err = f.svc.Save(context.Background(), goodClient, 1, []string{"hovercraft kit"})
	assert.ErrorIs(t, err, domain.ErrUnknownAccessory)
}

func TestSaveOutOfStock(t *testing.T) {
	f := newFixture(t, map[string]int{"Leather seats": 0})
	ctx := context.Background()

	_, err := f.svc.Save(ctx, goodClient, 3, []string{"radio", "bluetooth", "Leather seats", "spare tire"})
	oos, ok := domain.IsOutOfStock(err)
	require.True(t, ok, "got %v", err)
	assert.Equal(t, domain.AccessoryItem("Leather seats"), oos.Item)

	assert.Equal(t, 0, f.store.Count())
	assert.Empty(t, f.estimator.calls)
	assert.Equal(t, catalog.DefaultModelAvailability, f.available(t, domain.ModelItem(3)))
	assert.Equal(t, catalog.DefaultAccessoryAvailability, f.available(t, domain.AccessoryItem("radio")))
}

func TestSaveOutOfStockAfterReplaceLeavesNoConfiguration(t *testing.T) {
	f := newFixture(t, map[string]int{"Sunroof": 0})
	ctx := context.Background()

	_, err := f.svc.Save(ctx, goodClient, 1, []string{"radio"})
	require.NoError(t, err)

	_, err = f.svc.Save(ctx, goodClient, 1, []string{"Sunroof"})
	_, ok := domain.IsOutOfStock(err)
	require.True(t, ok)

	stored, err := f.svc.Fetch(ctx, goodClient)
	require.NoError(t, err)
	assert.Nil(t, stored)
	assert.Equal(t, catalog.DefaultAccessoryAvailability, f.available(t, domain.AccessoryItem("radio")))
	assert.Equal(t, catalog.DefaultModelAvailability, f.available(t, domain.ModelItem(1)))
}

func TestSaveEstimationUnavailableKeepsConfiguration(t *testing.T) {
	f := newFixture(t, nil)
	f.estimator.err = domain.ErrEstimationUnavailable
	ctx := context.Background()

	res, err := f.svc.Save(ctx, otherUser, 1, []string{"radio"})
	require.NoError(t, err)
	assert.ErrorIs(t, res.EstimationErr, domain.ErrEstimationUnavailable)
	assert.Nil(t, res.Configuration.Estimation)

	stored, _ := f.svc.Fetch(ctx, otherUser)
	require.NotNil(t, stored)
	assert.Nil(t, stored.Estimation)
	assert.Equal(t, catalog.DefaultAccessoryAvailability-1, f.available(t, domain.AccessoryItem("radio")))
}

func TestSaveEstimationErrorsAreClassified(t *testing.T) {
	f := newFixture(t, nil)
	f.estimator.err = errors.New("connection refused")

	res, err := f.svc.Save(context.Background(), otherUser, 1, nil)
	require.NoError(t, err)
	assert.ErrorIs(t, res.EstimationErr, domain.ErrEstimationUnavailable)
}

func TestSavePersistenceFailureLeavesCountersUnchanged(t *testing.T) {
	f := newFixture(t, nil)
	f.store.FailCreate = errors.New("connection reset")
	ctx := context.Background()

	_, err := f.svc.Save(ctx, goodClient, 1, []string{"radio", "bluetooth"})
	assert.ErrorIs(t, err, domain.ErrPersistence)
	assert.Equal(t, catalog.DefaultModelAvailability, f.available(t, domain.ModelItem(1)))
	assert.Equal(t, catalog.DefaultAccessoryAvailability, f.available(t, domain.AccessoryItem("radio")))
	assert.Equal(t, catalog.DefaultAccessoryAvailability, f.available(t, domain.AccessoryItem("bluetooth")))
	assert.Empty(t, f.estimator.calls)
}

func TestSaveStorageDownKeepsCountersIntact(t *testing.T) {
	f := newFixtureWithLedger(t, nil, func(l inventory.Ledger) inventory.Ledger {
		return &brokenRelease{Ledger: l, err: errors.New("connection refused")}
	})
	f.store.FailCreate = errors.New("connection refused")
	ctx := context.Background()

	_, err := f.svc.Save(ctx, goodClient, 1, []string{"radio"})
	assert.ErrorIs(t, err, domain.ErrPersistence)
	assert.Equal(t, 0, f.store.Count())
	assert.Equal(t, catalog.DefaultModelAvailability, f.available(t, domain.ModelItem(1)))
	assert.Equal(t, catalog.DefaultAccessoryAvailability, f.available(t, domain.AccessoryItem("radio")))
}

func TestSaveKeepsPriorWhenItsStockCannotBeReturned(t *testing.T) {
	f := newFixtureWithLedger(t, nil, func(l inventory.Ledger) inventory.Ledger {
		return &brokenRelease{Ledger: l, err: errors.New("connection refused")}
	})
	ctx := context.Background()

	prior, err := f.svc.Save(ctx, goodClient, 1, []string{"radio"})
	require.NoError(t, err)

	_, err = f.svc.Save(ctx, goodClient, 2, []string{"Sunroof"})
	assert.ErrorIs(t, err, domain.ErrPersistence)

	stored, _ := f.svc.Fetch(ctx, goodClient)
	require.NotNil(t, stored)
	assert.Equal(t, prior.Configuration.ID, stored.ID)
	assert.Equal(t, catalog.DefaultModelAvailability-1, f.available(t, domain.ModelItem(1)))
	assert.Equal(t, catalog.DefaultAccessoryAvailability-1, f.available(t, domain.AccessoryItem("radio")))
	assert.Equal(t, catalog.DefaultModelAvailability, f.available(t, domain.ModelItem(2)))
	assert.Equal(t, catalog.DefaultAccessoryAvailability, f.available(t, domain.AccessoryItem("Sunroof")))

	assert.ErrorIs(t, f.svc.Delete(ctx, goodClient, prior.Configuration.ID), domain.ErrPersistence)
	assert.Equal(t, 1, f.store.Count())
}

func TestSaveCallerCancelledDuringEstimation(t *testing.T) {
	f := newFixture(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	f.estimator.hook = func(estCtx context.Context) {
		cancel()
		assert.NoError(t, estCtx.Err(), "estimation must outlive the caller")
	}

	res, err := f.svc.Save(ctx, goodClient, 1, []string{"radio"})
	require.NoError(t, err)
	require.NotNil(t, res.Configuration.Estimation)

	stored, _ := f.svc.Fetch(context.Background(), goodClient)
	require.NotNil(t, stored)
	require.NotNil(t, stored.Estimation)
	assert.Equal(t, 30, *stored.Estimation)
	assert.Equal(t, catalog.DefaultAccessoryAvailability-1, f.available(t, domain.AccessoryItem("radio")))
}

func TestDelete(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	res, err := f.svc.Save(ctx, goodClient, 2, []string{"radio", "bluetooth"})
	require.NoError(t, err)

	assert.ErrorIs(t, f.svc.Delete(ctx, otherUser, res.Configuration.ID), domain.ErrNotFound)
	assert.ErrorIs(t, f.svc.Delete(ctx, goodClient, res.Configuration.ID+1), domain.ErrNotFound)

	require.NoError(t, f.svc.Delete(ctx, goodClient, res.Configuration.ID))
	assert.Equal(t, 0, f.store.Count())
	assert.Equal(t, catalog.DefaultModelAvailability, f.available(t, domain.ModelItem(2)))
	assert.Equal(t, catalog.DefaultAccessoryAvailability, f.available(t, domain.AccessoryItem("bluetooth")))

	assert.ErrorIs(t, f.svc.Delete(ctx, goodClient, res.Configuration.ID), domain.ErrNotFound)
}

func TestReestimate(t *testing.T) {
	f := newFixture(t, nil)
	f.estimator.err = domain.ErrEstimationUnavailable
	ctx := context.Background()

	res, err := f.svc.Save(ctx, goodClient, 1, []string{"radio"})
	require.NoError(t, err)
	require.Error(t, res.EstimationErr)

	f.estimator.err = nil
	f.estimator.days = 11
	days, err := f.svc.Reestimate(ctx, goodClient, res.Configuration.ID)
	require.NoError(t, err)
	assert.Equal(t, 11, days)

	stored, _ := f.svc.Fetch(ctx, goodClient)
	require.NotNil(t, stored.Estimation)
	assert.Equal(t, 11, *stored.Estimation)

	_, err = f.svc.Reestimate(ctx, goodClient, res.Configuration.ID+1)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = f.svc.Reestimate(ctx, otherUser, res.Configuration.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestValidatePreview(t *testing.T) {
	f := newFixture(t, nil)
	limit, err := f.svc.Validate(context.Background(), otherUser, 2, []string{"radio"})
	require.NoError(t, err)
	assert.Equal(t, 5, limit)

	_, err = f.svc.Validate(context.Background(), otherUser, 1, []string{"bluetooth"})
	_, ok := domain.IsValidation(err)
	assert.True(t, ok)

	_, err = f.svc.Validate(context.Background(), nil, 1, []string{"radio"})
	assert.ErrorIs(t, err, domain.ErrUnauthenticated)
	assert.Equal(t, catalog.DefaultAccessoryAvailability, f.available(t, domain.AccessoryItem("radio")))
}

func TestConcurrentSavesSameOwner(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	selections := [][]string{{"radio"}, {"radio", "bluetooth"}, {"Sunroof"}, {"spare tire", "radio"}}

	var g errgroup.Group
	for i := 0; i < 40; i++ {
		sel := selections[i%len(selections)]
		model := int64(1 + i%3)
		g.Go(func() error {
			_, err := f.svc.Save(ctx, goodClient, model, sel)
			return err
		})
	}
	require.NoError(t, g.Wait())

	assert.Equal(t, 1, f.store.Count())
	stored, _ := f.svc.Fetch(ctx, goodClient)
	require.NotNil(t, stored)

	// Exactly the stored configuration holds stock.
	totalModels := 0
	for id := int64(1); id <= 5; id++ {
		totalModels += catalog.DefaultModelAvailability - f.available(t, domain.ModelItem(id))
	}
	assert.Equal(t, 1, totalModels)
	assert.Equal(t, catalog.DefaultModelAvailability-1, f.available(t, domain.ModelItem(stored.CarModelID)))
	for _, a := range catalog.SeedAccessories() {
		want := catalog.DefaultAccessoryAvailability
		for _, n := range stored.Accessories {
			if n == a.Name {
				want--
			}
		}
		assert.Equal(t, want, f.available(t, domain.AccessoryItem(a.Name)), a.Name)
	}
	assert.Equal(t, 0, f.svc.locks.size())
}

func TestConcurrentOwnersCompeteForStock(t *testing.T) {
	f := newFixture(t, map[string]int{"Sunroof": 3})
	ctx := context.Background()

	var mu sync.Mutex
	saved, outOfStock := 0, 0
	var g errgroup.Group
	for i := 0; i < 20; i++ {
		p := &domain.Principal{ID: int64(100 + i)}
		g.Go(func() error {
			_, err := f.svc.Save(ctx, p, 3, []string{"Sunroof"})
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				saved++
				return nil
			}
			if _, ok := domain.IsOutOfStock(err); ok {
				outOfStock++
				return nil
			}
			return err
		})
	}
	require.NoError(t, g.Wait())

	assert.Equal(t, 3, saved)
	assert.Equal(t, 17, outOfStock)
	assert.Equal(t, 3, f.store.Count())
	assert.Equal(t, 0, f.available(t, domain.AccessoryItem("Sunroof")))
}

func TestOwnerLocksHonourContext(t *testing.T) {
	locks := newOwnerLocks()
	unlock, err := locks.Lock(context.Background(), 1)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = locks.Lock(ctx, 1)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	// Other owners are not blocked.
	unlock2, err := locks.Lock(context.Background(), 2)
	require.NoError(t, err)
	unlock2()

	unlock()
	assert.Equal(t, 0, locks.size())
}
