// Package memory provides the mock inventory backend: a fixed, in-process
// set of cars loaded from a YAML fixture or the embedded sample.
package memory

import (
	"bytes"
	"context"
	_ "embed"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/JakeFAU/carsearch/internal/inventory"
)

//go:embed sample.yaml
var sampleFixture []byte

// Source serves cars from memory.
type Source struct {
	mu   sync.RWMutex
	cars []inventory.Car
	byID map[string]int
}

// New creates a Source holding a copy of cars.
func New(cars []inventory.Car) *Source {
	s := &Source{}
	s.Replace(cars)
	return s
}

// Replace swaps the whole inventory.
func (s *Source) Replace(cars []inventory.Car) {
	copied := make([]inventory.Car, len(cars))
	copy(copied, cars)
	byID := make(map[string]int, len(copied))
	for i, car := range copied {
		byID[car.ID] = i
	}
	s.mu.Lock()
	s.cars = copied
	s.byID = byID
	s.mu.Unlock()
}

// AllCars returns a copy of the inventory.
func (s *Source) AllCars(_ context.Context) ([]inventory.Car, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]inventory.Car, len(s.cars))
	copy(out, s.cars)
	return out, nil
}

// CarByID returns one car or inventory.ErrNotFound.
func (s *Source) CarByID(_ context.Context, id string) (inventory.Car, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i, ok := s.byID[id]
	if !ok {
		return inventory.Car{}, inventory.ErrNotFound
	}
	return s.cars[i], nil
}

type fixture struct {
	Cars []fixtureCar `yaml:"cars"`
}

// fixtureCar carries ages instead of timestamps so fixtures stay inside the
// freshness window whenever they are loaded.
type fixtureCar struct {
	inventory.Car        `yaml:",inline"`
	UpdatedHoursAgo      float64  `yaml:"updated_hours_ago"`
	PostedDaysAgo        float64  `yaml:"posted_days_ago"`
	PriceChangedHoursAgo *float64 `yaml:"price_changed_hours_ago"`
}

// LoadFixture parses a YAML fixture, resolving relative ages against now.
func LoadFixture(r io.Reader, now time.Time) ([]inventory.Car, error) {
	var doc fixture
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode fixture: %w", err)
	}
	cars := make([]inventory.Car, 0, len(doc.Cars))
	seen := make(map[string]struct{}, len(doc.Cars))
	for _, fc := range doc.Cars {
		car := fc.Car
		if car.ID == "" {
			return nil, fmt.Errorf("fixture car without id")
		}
		if _, dup := seen[car.ID]; dup {
			return nil, fmt.Errorf("duplicate fixture car %q", car.ID)
		}
		seen[car.ID] = struct{}{}
		if car.UpdatedAt.IsZero() {
			car.UpdatedAt = now.Add(-hours(fc.UpdatedHoursAgo))
		}
		if car.PostedAt.IsZero() {
			car.PostedAt = now.Add(-hours(fc.PostedDaysAgo * 24))
		}
		if car.PriceChangedAt == nil && fc.PriceChangedHoursAgo != nil {
			at := now.Add(-hours(*fc.PriceChangedHoursAgo))
			car.PriceChangedAt = &at
		}
		cars = append(cars, car)
	}
	return cars, nil
}

// LoadFixtureFile reads a fixture from disk. An empty path loads the
// embedded sample.
func LoadFixtureFile(path string, now time.Time) ([]inventory.Car, error) {
	if path == "" {
		return Sample(now)
	}
	f, err := os.Open(path) //nolint:gosec // operator-supplied config path
	if err != nil {
		return nil, fmt.Errorf("open fixture: %w", err)
	}
	defer f.Close() //nolint:errcheck // read-only
	return LoadFixture(f, now)
}

// Sample returns the embedded demo inventory.
func Sample(now time.Time) ([]inventory.Car, error) {
	return LoadFixture(bytes.NewReader(sampleFixture), now)
}

func hours(h float64) time.Duration {
	return time.Duration(h * float64(time.Hour))
}
