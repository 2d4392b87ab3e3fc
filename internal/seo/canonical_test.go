package seo

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/carsearch/internal/query"
	"github.com/JakeFAU/carsearch/internal/slugs"
)

func TestBuildStructuredDestinations(t *testing.T) {
	t.Parallel()

	b := NewBuilder(testRegistry(t))
	tests := []struct {
		name string
		set  slugs.Set
		want string
	}{
		{"top", slugs.Set{}, "/cars/"},
		{"pref city maker", slugs.Set{Pref: "tokyo", City: "shibuya", Maker: "toyota"}, "/cars/p-tokyo/c-shibuya/m-toyota/"},
		{"pref city", slugs.Set{Pref: "tokyo", City: "shibuya"}, "/cars/p-tokyo/c-shibuya/"},
		{"pref maker", slugs.Set{Pref: "aichi", Maker: "toyota"}, "/cars/p-aichi/m-toyota/"},
		{"pref feature", slugs.Set{Pref: "tokyo", Feature: "hybrid"}, "/cars/p-tokyo/f-hybrid/"},
		{"maker model", slugs.Set{Maker: "honda", Model: "n-box"}, "/cars/m-honda/s-n-box/"},
		{"feature", slugs.Set{Feature: "4wd"}, "/cars/f-4wd/"},
	}
	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			dest := b.Build(query.FilterCondition{}.WithSlugs(tc.set))
			require.Equal(t, DestinationStructured, dest.Type)
			require.Equal(t, tc.want, dest.Path)
			require.Equal(t, tc.want, dest.URL())
			require.Empty(t, dest.Query)
		})
	}
}

func TestBuildFallsBackToSearch(t *testing.T) {
	t.Parallel()

	b := NewBuilder(testRegistry(t))
	base := query.FilterCondition{}.WithSlugs(slugs.Set{Pref: "tokyo", City: "shibuya", Maker: "toyota"})

	withPrice := base
	withPrice.MinPriceYen = 500000
	dest := b.Build(withPrice)
	require.Equal(t, DestinationSearch, dest.Type)
	require.Equal(t, RouteSearch, dest.RouteType)
	require.Equal(t, "/results?city=shibuya&maker=toyota&minMan=50&pref=tokyo", dest.URL())

	tests := []struct {
		name string
		cond query.FilterCondition
		want string
	}{
		{
			name: "unsupported combination",
			cond: query.FilterCondition{}.WithSlugs(slugs.Set{Maker: "toyota", Feature: "hybrid"}),
			want: "/results?feature=hybrid&maker=toyota",
		},
		{
			name: "city without pref",
			cond: query.FilterCondition{}.WithSlugs(slugs.Set{City: "shibuya"}),
			want: "/results?city=shibuya",
		},
		{
			name: "city under another pref",
			cond: query.FilterCondition{}.WithSlugs(slugs.Set{Pref: "osaka", City: "shibuya"}),
			want: "/results?city=shibuya&pref=osaka",
		},
		{
			name: "unregistered slug",
			cond: query.FilterCondition{}.WithSlugs(slugs.Set{Maker: "ferrari"}),
			want: "/results?maker=ferrari",
		},
		{
			name: "free text",
			cond: query.FilterCondition{FreeText: "赤"},
			want: "/results?q=%E8%B5%A4",
		},
		{
			name: "first page is dropped",
			cond: query.FilterCondition{FreeText: "x", Page: 1},
			want: "/results?q=x",
		},
		{
			name: "later page kept",
			cond: query.FilterCondition{MakerSlug: "toyota", Page: 2},
			want: "/results?maker=toyota&page=2",
		},
		{
			name: "non default sort",
			cond: query.FilterCondition{MakerSlug: "toyota", Sort: query.SortPriceAsc},
			want: "/results?maker=toyota&sort=price_asc",
		},
	}
	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			dest := b.Build(tc.cond)
			require.Equal(t, DestinationSearch, dest.Type)
			require.Equal(t, tc.want, dest.URL())
		})
	}
}

func TestBuildIgnoresFirstPageAndDefaultSort(t *testing.T) {
	t.Parallel()

	b := NewBuilder(testRegistry(t))
	cond := query.FilterCondition{MakerSlug: "toyota", Page: 1, Sort: query.DefaultSort}
	dest := b.Build(cond)
	require.Equal(t, DestinationStructured, dest.Type)
	require.Equal(t, "/cars/m-toyota/", dest.Path)
}

func TestParentDestinations(t *testing.T) {
	t.Parallel()

	b := NewBuilder(testRegistry(t))
	full := slugs.Set{Pref: "tokyo", City: "shibuya", Maker: "toyota"}
	require.Equal(t, "/cars/p-tokyo/c-shibuya/", b.Parent(RoutePrefCityMaker, full).Path)
	require.Equal(t, "/cars/p-tokyo/", b.Parent(RoutePrefCity, full).Path)
	require.Equal(t, "/cars/p-tokyo/", b.Parent(RoutePrefMaker, slugs.Set{Pref: "tokyo", Maker: "toyota"}).Path)
	require.Equal(t, "/cars/m-toyota/", b.Parent(RouteMakerModel, slugs.Set{Maker: "toyota", Model: "prius"}).Path)
	require.Equal(t, "/cars/", b.Parent(RouteMaker, slugs.Set{Maker: "toyota"}).Path)
	require.Equal(t, "/cars/", b.Parent(RouteTop, slugs.Set{}).Path)
}

func TestDetailPath(t *testing.T) {
	t.Parallel()
	require.Equal(t, "/cars/d-c1001/", DetailPath("c1001"))
}
