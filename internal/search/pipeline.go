// Package search filters, orders, and pages the car inventory for a
// normalized query.
package search

import (
	"context"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/JakeFAU/carsearch/internal/inventory"
	"github.com/JakeFAU/carsearch/internal/query"
	"github.com/JakeFAU/carsearch/internal/telemetry"
	"github.com/JakeFAU/carsearch/internal/textfold"
)

// Clock supplies the current time.
type Clock interface {
	Now() time.Time
}

// Config holds the blanket search policy.
type Config struct {
	// FreshnessDays excludes cars not updated within this many days. Zero
	// disables the window.
	FreshnessDays int
	// DefaultPageSize applies when a page is requested without a size.
	DefaultPageSize int
}

// Result is one page of matches and the size of the full match set.
type Result struct {
	Items      []inventory.Car `json:"items"`
	TotalCount int             `json:"total"`
}

// Pipeline runs the fixed stage order over an inventory snapshot.
type Pipeline struct {
	cfg   Config
	clock Clock
}

// NewPipeline builds a Pipeline.
func NewPipeline(cfg Config, clock Clock) *Pipeline {
	if cfg.DefaultPageSize <= 0 {
		cfg.DefaultPageSize = 20
	}
	return &Pipeline{cfg: cfg, clock: clock}
}

type stage struct {
	name string
	keep func(inventory.Car) bool
}

// Search filters cars by cond, sorts the matches, and applies paging when
// cond.Page > 0. TotalCount is always the match count before paging.
func (p *Pipeline) Search(ctx context.Context, cond query.FilterCondition, cars []inventory.Car) Result {
	_, span := telemetry.Tracer().Start(ctx, "search.Pipeline.Search")
	defer span.End()

	now := p.clock.Now()
	matched := make([]inventory.Car, 0, len(cars))
	stages := p.stages(cond, now)
	for _, car := range cars {
		if keepAll(stages, car) {
			matched = append(matched, car)
		}
	}
	sorted := Sort(matched, cond.Sort, now)
	res := Result{Items: p.page(sorted, cond), TotalCount: len(sorted)}

	telemetry.ObserveSearch(res.TotalCount)
	span.SetAttributes(
		attribute.Int("search.total", res.TotalCount),
		attribute.Int("search.stages", len(stages)),
	)
	annotate(span, cond)
	return res
}

func keepAll(stages []stage, car inventory.Car) bool {
	for _, s := range stages {
		if !s.keep(car) {
			return false
		}
	}
	return true
}

// stages returns only the active filters, in their fixed order.
func (p *Pipeline) stages(cond query.FilterCondition, now time.Time) []stage {
	var out []stage
	add := func(active bool, name string, keep func(inventory.Car) bool) {
		if active {
			out = append(out, stage{name: name, keep: keep})
		}
	}

	window := time.Duration(p.cfg.FreshnessDays) * 24 * time.Hour
	add(p.cfg.FreshnessDays > 0, "freshness", func(c inventory.Car) bool {
		return now.Sub(c.UpdatedAt) <= window
	})
	add(cond.MakerSlug != "", "maker", func(c inventory.Car) bool { return c.MakerSlug == cond.MakerSlug })
	add(cond.ModelSlug != "", "model", func(c inventory.Car) bool { return c.ModelSlug == cond.ModelSlug })
	add(cond.FeatureSlug != "", "feature", func(c inventory.Car) bool { return c.HasFeature(cond.FeatureSlug) })
	add(cond.RegionSlug != "", "region", func(c inventory.Car) bool { return c.RegionSlug == cond.RegionSlug })
	add(cond.PrefSlug != "", "pref", func(c inventory.Car) bool { return c.PrefSlug == cond.PrefSlug })
	add(cond.CitySlug != "", "city", func(c inventory.Car) bool { return c.CitySlug == cond.CitySlug })
	add(cond.MinPriceYen > 0, "min_price", func(c inventory.Car) bool { return c.PriceYen >= cond.MinPriceYen })
	add(cond.MaxPriceYen > 0, "max_price", func(c inventory.Car) bool { return c.PriceYen <= cond.MaxPriceYen })
	add(cond.PriceChangedOnly, "price_changed", inventory.Car.PriceChanged)

	needle := textfold.Fold(cond.FreeText)
	add(needle != "", "free_text", func(c inventory.Car) bool {
		for _, field := range []string{c.Model, c.Maker, c.ShopName} {
			if strings.Contains(textfold.Fold(field), needle) {
				return true
			}
		}
		return false
	})
	return out
}

func (p *Pipeline) page(items []inventory.Car, cond query.FilterCondition) []inventory.Car {
	if cond.Page <= 0 {
		return items
	}
	size := cond.PageSize
	if size <= 0 {
		size = p.cfg.DefaultPageSize
	}
	// Compare page numbers rather than offsets so huge pages cannot wrap.
	if len(items) == 0 || cond.Page-1 > (len(items)-1)/size {
		return []inventory.Car{}
	}
	start := (cond.Page - 1) * size
	end := len(items)
	if size < end-start {
		end = start + size
	}
	return items[start:end]
}

func annotate(span trace.Span, cond query.FilterCondition) {
	span.SetAttributes(
		attribute.String("search.sort", string(cond.Sort)),
		attribute.Int("search.page", cond.Page),
	)
}
