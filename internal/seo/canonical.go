package seo

import (
	"net/url"
	"strings"

	"github.com/JakeFAU/carsearch/internal/query"
	"github.com/JakeFAU/carsearch/internal/slugs"
)

// DestinationType says which URL family a condition set canonicalizes to.
type DestinationType string

// Destination types.
const (
	DestinationStructured DestinationType = "structured"
	DestinationSearch     DestinationType = "search"
)

// Destination is a canonical URL split into path and query.
type Destination struct {
	Type      DestinationType `json:"type"`
	RouteType RouteType       `json:"route_type"`
	Path      string          `json:"path"`
	Query     url.Values      `json:"query,omitempty"`
}

// URL renders the destination as a site-relative URL. Query keys are sorted.
func (d Destination) URL() string {
	if len(d.Query) == 0 {
		return d.Path
	}
	return d.Path + "?" + d.Query.Encode()
}

// Builder computes canonical destinations.
type Builder struct {
	table SlugTable
}

// NewBuilder builds a Builder.
func NewBuilder(table SlugTable) *Builder {
	return &Builder{table: table}
}

// Build maps a condition set to its canonical destination. A short /cars/
// path is produced only for an exact pattern match; anything else goes to
// the search path with every condition kept as a query parameter.
// Classifying a built URL and building again yields the same destination.
func (b *Builder) Build(cond query.FilterCondition) Destination {
	route := RouteTypeFor(cond, b.table)
	if route.Structured() {
		return Destination{
			Type:      DestinationStructured,
			RouteType: route,
			Path:      structuredPath(route, cond.Slugs()),
		}
	}
	if cond.Page == 1 {
		cond.Page = 0
	}
	return Destination{
		Type:      DestinationSearch,
		RouteType: RouteSearch,
		Path:      SearchPath,
		Query:     query.Encode(cond),
	}
}

// Parent returns the canonical destination of the nearest broader listing
// of a structured route. The top listing is its own parent.
func (b *Builder) Parent(route RouteType, set slugs.Set) Destination {
	parent, ok := parentRoute[route]
	if !ok {
		parent = RouteTop
	}
	p, _ := patternFor(parent)
	narrowed := slugs.Set{}
	for _, kind := range p.segments {
		narrowed = narrowed.With(kind, set.Get(kind))
	}
	return b.Build(query.FilterCondition{}.WithSlugs(narrowed))
}

// DetailPath is the canonical path of a listing detail page.
func DetailPath(id string) string {
	return StructuredRoot + detailPrefix + "-" + id + "/"
}

func structuredPath(route RouteType, set slugs.Set) string {
	p, ok := patternFor(route)
	if !ok || len(p.segments) == 0 {
		return StructuredRoot
	}
	parts := make([]string, 0, len(p.segments))
	for _, kind := range p.segments {
		parts = append(parts, segmentPrefix[kind]+"-"+set.Get(kind))
	}
	return StructuredRoot + strings.Join(parts, "/") + "/"
}
