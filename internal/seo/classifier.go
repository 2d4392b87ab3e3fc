package seo

import (
	"net/url"
	"slices"
	"strings"

	"github.com/JakeFAU/carsearch/internal/query"
	"github.com/JakeFAU/carsearch/internal/slugs"
)

// ParsedURL is the classification of one request. The embedded condition
// holds every filter the URL carries, from the path and the query.
type ParsedURL struct {
	RouteType RouteType `json:"route_type"`
	Form      Form      `json:"form"`
	DetailID  string    `json:"detail_id,omitempty"`
	query.FilterCondition
}

func unknownURL() ParsedURL {
	return ParsedURL{RouteType: RouteUnknown, Form: FormUnknown}
}

// Classifier recognizes structured /cars/ paths and the /results search path.
type Classifier struct {
	table      SlugTable
	normalizer *query.Normalizer
}

// NewClassifier builds a Classifier.
func NewClassifier(table SlugTable, normalizer *query.Normalizer) *Classifier {
	return &Classifier{table: table, normalizer: normalizer}
}

// Classify never fails: anything it cannot recognize is RouteUnknown.
func (c *Classifier) Classify(path string, values url.Values) ParsedURL {
	switch {
	case path == SearchPath || path == SearchPath+"/":
		cond := c.normalizer.Normalize(values)
		return ParsedURL{
			RouteType:       RouteTypeFor(cond, c.table),
			Form:            FormSearch,
			FilterCondition: cond,
		}
	case path == strings.TrimSuffix(StructuredRoot, "/") || strings.HasPrefix(path, StructuredRoot):
		return c.classifyStructured(path, values)
	default:
		return unknownURL()
	}
}

type segment struct {
	kind   slugs.Kind
	detail bool
	value  string
}

func (c *Classifier) classifyStructured(path string, values url.Values) ParsedURL {
	rest := strings.TrimPrefix(strings.TrimPrefix(path, "/cars"), "/")
	if strings.HasPrefix(rest, "/") {
		return unknownURL()
	}
	rest = strings.TrimSuffix(rest, "/")
	var segs []segment
	if rest != "" {
		for _, raw := range strings.Split(rest, "/") {
			seg, ok := c.parseSegment(raw)
			if !ok {
				return unknownURL()
			}
			segs = append(segs, seg)
		}
	}

	if len(segs) == 1 && segs[0].detail {
		return ParsedURL{RouteType: RouteDetail, Form: FormStructured, DetailID: segs[0].value}
	}

	kinds := make([]slugs.Kind, 0, len(segs))
	set := slugs.Set{}
	for _, s := range segs {
		if s.detail {
			return unknownURL()
		}
		kinds = append(kinds, s.kind)
		set = set.With(s.kind, s.value)
	}
	if !legalSequence(kinds) || !registered(set, c.table) || !parentsHold(set, c.table) {
		return unknownURL()
	}

	cond := c.normalizer.NormalizeRefinements(values).WithSlugs(set)
	return ParsedURL{
		RouteType:       RouteTypeFor(cond, c.table),
		Form:            FormStructured,
		FilterCondition: cond,
	}
}

func (c *Classifier) parseSegment(raw string) (segment, bool) {
	letter, slug, ok := strings.Cut(raw, "-")
	if !ok || slug == "" || !slugs.Valid(slug) {
		return segment{}, false
	}
	if letter == detailPrefix {
		return segment{detail: true, value: slug}, true
	}
	for kind, prefix := range segmentPrefix {
		if prefix == letter {
			return segment{kind: kind, value: slug}, true
		}
	}
	return segment{}, false
}

// legalSequence reports whether kinds is the segment order of a pattern.
func legalSequence(kinds []slugs.Kind) bool {
	for _, p := range patterns {
		if slices.Equal(p.segments, kinds) {
			return true
		}
	}
	return false
}
