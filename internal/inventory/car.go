// Package inventory models used-car listings and the sources that supply them.
package inventory

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a car id is unknown to every lookup path.
var ErrNotFound = errors.New("inventory: car not found")

// Car is one listing as supplied by an inventory source. The search core
// only reads it.
type Car struct {
	ID             string     `json:"id" yaml:"id"`
	Maker          string     `json:"maker" yaml:"maker"`
	Model          string     `json:"model" yaml:"model"`
	Year           int        `json:"year" yaml:"year"`
	MileageKm      int        `json:"mileage_km" yaml:"mileage_km"`
	PriceYen       int64      `json:"price_yen" yaml:"price_yen"`
	PrevPriceYen   int64      `json:"prev_price_yen,omitempty" yaml:"prev_price_yen"`
	Region         string     `json:"region,omitempty" yaml:"region"`
	Pref           string     `json:"pref,omitempty" yaml:"pref"`
	City           string     `json:"city,omitempty" yaml:"city"`
	UpdatedAt      time.Time  `json:"updated_at" yaml:"updated_at"`
	PostedAt       time.Time  `json:"posted_at" yaml:"posted_at"`
	PriceChangedAt *time.Time `json:"price_changed_at,omitempty" yaml:"price_changed_at"`
	MakerSlug      string     `json:"maker_slug" yaml:"maker_slug"`
	ModelSlug      string     `json:"model_slug" yaml:"model_slug"`
	RegionSlug     string     `json:"region_slug,omitempty" yaml:"region_slug"`
	PrefSlug       string     `json:"pref_slug,omitempty" yaml:"pref_slug"`
	CitySlug       string     `json:"city_slug,omitempty" yaml:"city_slug"`
	FeatureSlugs   []string   `json:"feature_slugs,omitempty" yaml:"feature_slugs"`
	ShopName       string     `json:"shop_name,omitempty" yaml:"shop_name"`
}

// PriceChanged reports whether the listing has a recorded price change.
func (c Car) PriceChanged() bool {
	return c.PriceChangedAt != nil || (c.PrevPriceYen > 0 && c.PrevPriceYen != c.PriceYen)
}

// HasFeature reports whether slug is in the car's feature set.
func (c Car) HasFeature(slug string) bool {
	for _, f := range c.FeatureSlugs {
		if f == slug {
			return true
		}
	}
	return false
}

// Source supplies the full inventory. Implementations may return a stale
// snapshot.
type Source interface {
	AllCars(ctx context.Context) ([]Car, error)
}

// Getter is implemented by sources that can fetch one car directly.
type Getter interface {
	CarByID(ctx context.Context, id string) (Car, error)
}
