package inventory

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/JakeFAU/carsearch/internal/telemetry"
)

// Clock supplies the current time.
type Clock interface {
	Now() time.Time
}

// Catalog caches the inventory snapshot of a Source. A failed refresh keeps
// serving the previous snapshot; with no previous snapshot the inventory is
// empty.
type Catalog struct {
	source  Source
	refresh time.Duration
	clock   Clock
	logger  *zap.Logger

	group singleflight.Group

	mu        sync.RWMutex
	cars      []Car
	loaded    bool
	fetchedAt time.Time
}

// NewCatalog wraps source. refresh <= 0 re-reads the source on every call.
func NewCatalog(source Source, refresh time.Duration, clock Clock, logger *zap.Logger) *Catalog {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Catalog{
		source:  source,
		refresh: refresh,
		clock:   clock,
		logger:  logger,
	}
}

// Cars returns the current snapshot, refreshing it first when stale.
// The returned slice must not be modified.
func (c *Catalog) Cars(ctx context.Context) []Car {
	c.mu.RLock()
	cars, fresh := c.cars, c.loaded && c.refresh > 0 && c.clock.Now().Sub(c.fetchedAt) < c.refresh
	c.mu.RUnlock()
	if fresh {
		return cars
	}

	v, _, _ := c.group.Do("refresh", func() (any, error) {
		if err := c.Refresh(context.WithoutCancel(ctx)); err != nil {
			return c.fallback(err), nil
		}
		c.mu.RLock()
		defer c.mu.RUnlock()
		return c.cars, nil
	})
	out, _ := v.([]Car)
	return out
}

// Refresh reloads the snapshot from the source.
func (c *Catalog) Refresh(ctx context.Context) error {
	cars, err := c.source.AllCars(ctx)
	if err != nil {
		telemetry.ObserveRefresh("inventory", "error")
		return fmt.Errorf("load inventory: %w", err)
	}
	telemetry.ObserveRefresh("inventory", "ok")
	c.mu.Lock()
	c.cars = cars
	c.loaded = true
	c.fetchedAt = c.clock.Now()
	c.mu.Unlock()
	c.logger.Debug("inventory refreshed", zap.Int("cars", len(cars)))
	return nil
}

func (c *Catalog) fallback(err error) []Car {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.loaded {
		telemetry.ObserveFallback("inventory", "last_known_good")
		c.logger.Warn("inventory refresh failed; serving last snapshot",
			zap.Error(err), zap.Time("snapshot_at", c.fetchedAt))
		return c.cars
	}
	telemetry.ObserveFallback("inventory", "fail_closed")
	c.logger.Error("inventory unavailable; serving empty inventory", zap.Error(err))
	return nil
}

// FindCar looks a car up through the source's direct getter when it has one,
// then falls back to scanning the snapshot. It returns ErrNotFound when both
// paths miss.
func (c *Catalog) FindCar(ctx context.Context, id string) (Car, error) {
	if id == "" {
		return Car{}, ErrNotFound
	}
	if getter, ok := c.source.(Getter); ok {
		car, err := getter.CarByID(ctx, id)
		switch {
		case err == nil:
			return car, nil
		case !errors.Is(err, ErrNotFound):
			c.logger.Warn("direct car lookup failed; scanning snapshot", zap.String("id", id), zap.Error(err))
		}
	}
	for _, car := range c.Cars(ctx) {
		if car.ID == id {
			return car, nil
		}
	}
	return Car{}, ErrNotFound
}
