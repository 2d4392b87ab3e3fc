// Package seo decides how search and listing URLs are presented to crawlers:
// which URL is canonical, whether to redirect, whether to index, and what
// the page is called.
package seo

import (
	"github.com/JakeFAU/carsearch/internal/query"
	"github.com/JakeFAU/carsearch/internal/slugs"
)

// RouteType names a URL shape.
type RouteType string

// Route types. RouteUnknown is the not-a-cars-url sentinel.
const (
	RouteTop           RouteType = "top"
	RoutePref          RouteType = "pref"
	RoutePrefCity      RouteType = "pref_city"
	RoutePrefCityMaker RouteType = "pref_city_maker"
	RouteMaker         RouteType = "maker"
	RouteMakerModel    RouteType = "maker_model"
	RoutePrefMaker     RouteType = "pref_maker"
	RoutePrefFeature   RouteType = "pref_feature"
	RouteFeature       RouteType = "feature"
	RouteDetail        RouteType = "detail"
	RouteSearch        RouteType = "search"
	RouteUnknown       RouteType = "unknown"
)

// Structured reports whether the route has a short /cars/ URL.
func (r RouteType) Structured() bool {
	switch r {
	case RouteSearch, RouteUnknown, "":
		return false
	default:
		return true
	}
}

// Form is the URL family a request arrived on.
type Form string

// URL forms.
const (
	FormStructured Form = "structured"
	FormSearch     Form = "search"
	FormUnknown    Form = "unknown"
)

// Path roots.
const (
	StructuredRoot = "/cars/"
	SearchPath     = "/results"
)

// segmentPrefix is the single-letter marker in front of each structured slug.
var segmentPrefix = map[slugs.Kind]string{
	slugs.KindPref:    "p",
	slugs.KindCity:    "c",
	slugs.KindMaker:   "m",
	slugs.KindModel:   "s",
	slugs.KindFeature: "f",
}

const detailPrefix = "d"

// pattern is one supported short-URL shape. Segments lists the dimensions in
// path order; the set of populated dimensions must match it exactly.
type pattern struct {
	route    RouteType
	segments []slugs.Kind
}

// patterns is ordered; the first exact match wins.
var patterns = []pattern{
	{RoutePrefCityMaker, []slugs.Kind{slugs.KindPref, slugs.KindCity, slugs.KindMaker}},
	{RoutePrefFeature, []slugs.Kind{slugs.KindPref, slugs.KindFeature}},
	{RouteFeature, []slugs.Kind{slugs.KindFeature}},
	{RoutePrefCity, []slugs.Kind{slugs.KindPref, slugs.KindCity}},
	{RoutePrefMaker, []slugs.Kind{slugs.KindPref, slugs.KindMaker}},
	{RoutePref, []slugs.Kind{slugs.KindPref}},
	{RouteMakerModel, []slugs.Kind{slugs.KindMaker, slugs.KindModel}},
	{RouteMaker, []slugs.Kind{slugs.KindMaker}},
	{RouteTop, nil},
}

// parentRoute is the nearest broader listing, used when a page is empty.
var parentRoute = map[RouteType]RouteType{
	RoutePrefCityMaker: RoutePrefCity,
	RoutePrefCity:      RoutePref,
	RoutePrefMaker:     RoutePref,
	RoutePrefFeature:   RoutePref,
	RouteMakerModel:    RouteMaker,
	RoutePref:          RouteTop,
	RouteMaker:         RouteTop,
	RouteFeature:       RouteTop,
	RouteTop:           RouteTop,
}

func patternFor(route RouteType) (pattern, bool) {
	for _, p := range patterns {
		if p.route == route {
			return p, true
		}
	}
	return pattern{}, false
}

// matches reports whether set populates exactly the pattern's dimensions.
func (p pattern) matches(set slugs.Set) bool {
	want := slugs.Set{}
	for _, kind := range p.segments {
		want = want.With(kind, set.Get(kind))
		if set.Get(kind) == "" {
			return false
		}
	}
	return want == set
}

// SlugTable is the read side of the slug registry.
type SlugTable interface {
	Has(kind slugs.Kind, slug string) bool
	Name(kind slugs.Kind, slug string) string
	Parent(kind slugs.Kind, slug string) string
	Lookup(term string) []slugs.Set
}

// RouteTypeFor derives the route type from a condition set. A set qualifies
// for a short URL only when it carries nothing but registered slugs that
// exactly fill one pattern and respect parent relations.
func RouteTypeFor(cond query.FilterCondition, table SlugTable) RouteType {
	if cond.HasRefinements() {
		return RouteSearch
	}
	set := cond.Slugs()
	for _, p := range patterns {
		if !p.matches(set) {
			continue
		}
		if !registered(set, table) || !parentsHold(set, table) {
			return RouteSearch
		}
		return p.route
	}
	return RouteSearch
}

func registered(set slugs.Set, table SlugTable) bool {
	for _, kind := range slugs.Kinds {
		if v := set.Get(kind); v != "" && !table.Has(kind, v) {
			return false
		}
	}
	return true
}

// parentsHold checks that a city sits under its own pref and a model under
// its own maker. A city without a pref or a model without a maker fails.
func parentsHold(set slugs.Set, table SlugTable) bool {
	if set.City != "" && table.Parent(slugs.KindCity, set.City) != set.Pref {
		return false
	}
	if set.Model != "" && table.Parent(slugs.KindModel, set.Model) != set.Maker {
		return false
	}
	return true
}
