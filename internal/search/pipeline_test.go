package search

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/carsearch/internal/inventory"
	"github.com/JakeFAU/carsearch/internal/query"
)

type fixedClock struct{ now time.Time }

func (c fixedClock) Now() time.Time { return c.now }

var testNow = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func ago(d time.Duration) time.Time { return testNow.Add(-d) }

func timePtr(t time.Time) *time.Time { return &t }

func testCars() []inventory.Car {
	return []inventory.Car{
		{
			ID: "prius-shibuya", Maker: "トヨタ", Model: "プリウス", ShopName: "渋谷オート",
			MakerSlug: "toyota", ModelSlug: "prius", RegionSlug: "kanto", PrefSlug: "tokyo", CitySlug: "shibuya",
			FeatureSlugs: []string{"hybrid"}, PriceYen: 1_500_000, PrevPriceYen: 1_600_000,
			UpdatedAt: ago(2 * time.Hour), PostedAt: ago(30 * 24 * time.Hour), PriceChangedAt: timePtr(ago(3 * time.Hour)),
		},
		{
			ID: "aqua-shibuya", Maker: "トヨタ", Model: "アクア", ShopName: "渋谷オート",
			MakerSlug: "toyota", ModelSlug: "aqua", RegionSlug: "kanto", PrefSlug: "tokyo", CitySlug: "shibuya",
			FeatureSlugs: []string{"hybrid"}, PriceYen: 900_000,
			UpdatedAt: ago(time.Hour), PostedAt: ago(10 * 24 * time.Hour),
		},
		{
			ID: "fit-yokohama", Maker: "ホンダ", Model: "フィット", ShopName: "横浜ベイ",
			MakerSlug: "honda", ModelSlug: "fit", RegionSlug: "kanto", PrefSlug: "kanagawa", CitySlug: "yokohama",
			PriceYen: 700_000,
			UpdatedAt: ago(5 * time.Hour), PostedAt: ago(24 * time.Hour),
		},
		{
			ID: "stale-crown", Maker: "トヨタ", Model: "クラウン", ShopName: "古い店",
			MakerSlug: "toyota", ModelSlug: "crown", PrefSlug: "tokyo",
			PriceYen: 2_000_000,
			UpdatedAt: ago(90 * 24 * time.Hour), PostedAt: ago(120 * 24 * time.Hour),
		},
	}
}

func newTestPipeline() *Pipeline {
	return NewPipeline(Config{FreshnessDays: 30, DefaultPageSize: 2}, fixedClock{now: testNow})
}

func ids(cars []inventory.Car) []string {
	out := make([]string, len(cars))
	for i, c := range cars {
		out[i] = c.ID
	}
	return out
}

func TestSearchFilters(t *testing.T) {
	t.Parallel()

	p := newTestPipeline()
	tests := []struct {
		name string
		cond query.FilterCondition
		want []string
	}{
		{name: "freshness only", cond: query.FilterCondition{}, want: []string{"aqua-shibuya", "prius-shibuya", "fit-yokohama"}},
		{name: "maker", cond: query.FilterCondition{MakerSlug: "toyota"}, want: []string{"aqua-shibuya", "prius-shibuya"}},
		{name: "model", cond: query.FilterCondition{ModelSlug: "fit"}, want: []string{"fit-yokohama"}},
		{name: "feature", cond: query.FilterCondition{FeatureSlug: "hybrid"}, want: []string{"aqua-shibuya", "prius-shibuya"}},
		{name: "pref", cond: query.FilterCondition{PrefSlug: "kanagawa"}, want: []string{"fit-yokohama"}},
		{name: "region", cond: query.FilterCondition{RegionSlug: "kanto"}, want: []string{"aqua-shibuya", "prius-shibuya", "fit-yokohama"}},
		{name: "city", cond: query.FilterCondition{CitySlug: "shibuya"}, want: []string{"aqua-shibuya", "prius-shibuya"}},
		{name: "price inclusive", cond: query.FilterCondition{MinPriceYen: 900_000, MaxPriceYen: 1_500_000}, want: []string{"aqua-shibuya", "prius-shibuya"}},
		{name: "min above max", cond: query.FilterCondition{MinPriceYen: 2_000_000, MaxPriceYen: 1_000_000}, want: []string{}},
		{name: "price changed", cond: query.FilterCondition{PriceChangedOnly: true}, want: []string{"prius-shibuya"}},
		{name: "free text model", cond: query.FilterCondition{FreeText: "ﾌﾟﾘｳｽ"}, want: []string{"prius-shibuya"}},
		{name: "free text shop", cond: query.FilterCondition{FreeText: "横浜"}, want: []string{"fit-yokohama"}},
		{name: "free text phrase", cond: query.FilterCondition{FreeText: " 渋谷オート "}, want: []string{"aqua-shibuya", "prius-shibuya"}},
		{name: "free text spans fields", cond: query.FilterCondition{FreeText: "トヨタ　渋谷"}, want: []string{}},
		{name: "unknown slug", cond: query.FilterCondition{MakerSlug: "ferrari"}, want: []string{}},
	}
	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			res := p.Search(context.Background(), tc.cond, testCars())
			require.Equal(t, tc.want, ids(res.Items))
			require.Equal(t, len(tc.want), res.TotalCount)
		})
	}
}

func TestSearchCountIsMonotonic(t *testing.T) {
	t.Parallel()

	p := newTestPipeline()
	steps := []query.FilterCondition{
		{},
		{RegionSlug: "kanto"},
		{RegionSlug: "kanto", MakerSlug: "toyota"},
		{RegionSlug: "kanto", MakerSlug: "toyota", FeatureSlug: "hybrid"},
		{RegionSlug: "kanto", MakerSlug: "toyota", FeatureSlug: "hybrid", MaxPriceYen: 1_000_000},
		{RegionSlug: "kanto", MakerSlug: "toyota", FeatureSlug: "hybrid", MaxPriceYen: 1_000_000, PriceChangedOnly: true},
	}
	prev := len(testCars()) + 1
	for _, cond := range steps {
		total := p.Search(context.Background(), cond, testCars()).TotalCount
		require.LessOrEqual(t, total, prev)
		prev = total
	}
}

func TestSearchPaging(t *testing.T) {
	t.Parallel()

	p := newTestPipeline()
	all := p.Search(context.Background(), query.FilterCondition{}, testCars())
	require.Len(t, all.Items, 3, "no page requested returns the full set")

	first := p.Search(context.Background(), query.FilterCondition{Page: 1}, testCars())
	require.Equal(t, 3, first.TotalCount)
	require.Equal(t, []string{"aqua-shibuya", "prius-shibuya"}, ids(first.Items))

	second := p.Search(context.Background(), query.FilterCondition{Page: 2}, testCars())
	require.Equal(t, 3, second.TotalCount)
	require.Equal(t, []string{"fit-yokohama"}, ids(second.Items))

	beyond := p.Search(context.Background(), query.FilterCondition{Page: 9, PageSize: 1}, testCars())
	require.Equal(t, 3, beyond.TotalCount)
	require.Empty(t, beyond.Items)
}

func TestSearchPagingHugePage(t *testing.T) {
	t.Parallel()

	p := newTestPipeline()
	tests := []struct {
		name string
		cond query.FilterCondition
	}{
		{name: "page wraps offset", cond: query.FilterCondition{Page: 1<<62 + 1, PageSize: 4}},
		{name: "max page", cond: query.FilterCondition{Page: math.MaxInt, PageSize: 2}},
		{name: "max page size", cond: query.FilterCondition{Page: 2, PageSize: math.MaxInt}},
	}
	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			res := p.Search(context.Background(), tc.cond, testCars())
			require.Equal(t, 3, res.TotalCount)
			require.Empty(t, res.Items)
		})
	}

	res := p.Search(context.Background(), query.FilterCondition{Page: 1, PageSize: math.MaxInt}, testCars())
	require.Len(t, res.Items, 3)
}

func TestSearchDoesNotMutateInput(t *testing.T) {
	t.Parallel()

	cars := testCars()
	before := ids(cars)
	newTestPipeline().Search(context.Background(), query.FilterCondition{Sort: query.SortPriceAsc}, cars)
	require.Equal(t, before, ids(cars))
}
