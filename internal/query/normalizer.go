package query

import (
	"math"
	"net/url"
	"strconv"
	"strings"

	"github.com/JakeFAU/carsearch/internal/slugs"
	"github.com/JakeFAU/carsearch/internal/textfold"
)

// Resolver maps a slug or localized name to a registered slug.
type Resolver interface {
	Resolve(kind slugs.Kind, value string) (string, bool)
}

// Normalizer converts raw request parameters into a FilterCondition.
type Normalizer struct {
	resolver    Resolver
	maxPageSize int
}

// NewNormalizer builds a Normalizer. maxPageSize <= 0 disables clamping.
func NewNormalizer(resolver Resolver, maxPageSize int) *Normalizer {
	return &Normalizer{resolver: resolver, maxPageSize: maxPageSize}
}

// Normalize parses every supported parameter permissively. Invalid values are
// treated as absent; Normalize never fails.
func (n *Normalizer) Normalize(values url.Values) FilterCondition {
	cond := n.NormalizeRefinements(values)
	cond.MakerSlug = n.slug(slugs.KindMaker, values.Get(ParamMaker))
	cond.ModelSlug = n.slug(slugs.KindModel, values.Get(ParamModel))
	cond.PrefSlug = n.slug(slugs.KindPref, values.Get(ParamPref))
	cond.CitySlug = n.slug(slugs.KindCity, values.Get(ParamCity))
	cond.FeatureSlug = n.slug(slugs.KindFeature, values.Get(ParamFeature))
	if region := textfold.Fold(values.Get(ParamRegion)); slugs.Valid(region) {
		cond.RegionSlug = region
	}
	return cond
}

// NormalizeRefinements reads only the parameters that are not slug
// dimensions: free text, price bounds, the price-changed flag, paging, and
// sort. Structured paths carry their slugs in the path and use this instead.
func (n *Normalizer) NormalizeRefinements(values url.Values) FilterCondition {
	cond := FilterCondition{
		FreeText:         CleanText(values.Get(ParamText)),
		MinPriceYen:      ParseMan(values.Get(ParamMinMan)),
		MaxPriceYen:      ParseMan(values.Get(ParamMaxMan)),
		PriceChangedOnly: ParseFlag(values.Get(ParamPriceChanged)),
		Page:             ParsePositiveInt(values.Get(ParamPage)),
		PageSize:         ParsePositiveInt(values.Get(ParamPageSize)),
		Sort:             DefaultSort,
	}
	if n.maxPageSize > 0 && cond.PageSize > n.maxPageSize {
		cond.PageSize = n.maxPageSize
	}
	if s, ok := ParseSort(textfold.Fold(values.Get(ParamSort))); ok {
		cond.Sort = s
	}
	return cond
}

func (n *Normalizer) slug(kind slugs.Kind, raw string) string {
	folded := textfold.Fold(raw)
	if folded == "" {
		return ""
	}
	if n.resolver != nil {
		if slug, ok := n.resolver.Resolve(kind, folded); ok {
			return slug
		}
	}
	// Unregistered but well-formed slugs survive so the request still filters
	// (to nothing) and falls back to the search destination.
	if slugs.Valid(folded) {
		return folded
	}
	return ""
}

// CleanText trims free text and collapses internal whitespace, including the
// ideographic space, to single ASCII spaces.
func CleanText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// ParseMan parses a 10,000-yen amount into yen. Decimals and full-width digits
// are accepted; anything non-numeric or non-positive yields 0 (absent).
func ParseMan(raw string) int64 {
	s := textfold.Fold(raw)
	if s == "" {
		return 0
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) || v <= 0 {
		return 0
	}
	yen := math.Round(v * YenPerMan)
	if yen <= 0 || yen > math.MaxInt64/2 {
		return 0
	}
	return int64(yen)
}

// ParseFlag accepts 1, true, on, and yes in any case or width.
func ParseFlag(raw string) bool {
	switch textfold.Fold(raw) {
	case "1", "true", "on", "yes":
		return true
	default:
		return false
	}
}

// ParsePositiveInt returns the value of a strictly positive decimal integer,
// or 0 for anything else.
func ParsePositiveInt(raw string) int {
	s := textfold.Fold(raw)
	if s == "" {
		return 0
	}
	v, err := strconv.Atoi(s)
	if err != nil || v <= 0 {
		return 0
	}
	return v
}
