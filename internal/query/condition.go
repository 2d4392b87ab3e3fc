// Package query turns raw request parameters into a typed, normalized
// FilterCondition and back into a deterministic query string.
package query

import (
	"net/url"
	"strconv"

	"github.com/JakeFAU/carsearch/internal/slugs"
)

// Sort names a result ordering strategy.
type Sort string

// Supported sort strategies.
const (
	SortUpdatedDesc Sort = "updated_desc"
	SortPriceAsc    Sort = "price_asc"
	SortPriceDesc   Sort = "price_desc"
	SortLive        Sort = "live"
)

// DefaultSort applies when the request names no sort or an unknown one.
const DefaultSort = SortUpdatedDesc

// ParseSort validates a sort name.
func ParseSort(s string) (Sort, bool) {
	switch Sort(s) {
	case SortUpdatedDesc, SortPriceAsc, SortPriceDesc, SortLive:
		return Sort(s), true
	default:
		return "", false
	}
}

// IsDefault reports whether s orders results the same way as no sort at all.
func (s Sort) IsDefault() bool {
	return s == "" || s == DefaultSort
}

// Query parameter names.
const (
	ParamText         = "q"
	ParamMaker        = "maker"
	ParamModel        = "model"
	ParamPref         = "pref"
	ParamCity         = "city"
	ParamRegion       = "region"
	ParamFeature      = "feature"
	ParamMinMan       = "minMan"
	ParamMaxMan       = "maxMan"
	ParamPriceChanged = "priceChanged"
	ParamPage         = "page"
	ParamPageSize     = "pageSize"
	ParamSort         = "sort"
)

// YenPerMan is the unit of the minMan/maxMan parameters.
const YenPerMan = 10000

// FilterCondition is a normalized search request. Zero values mean "not
// constrained"; Page == 0 means paging was not requested.
type FilterCondition struct {
	FreeText         string `json:"free_text,omitempty"`
	MakerSlug        string `json:"maker,omitempty"`
	ModelSlug        string `json:"model,omitempty"`
	PrefSlug         string `json:"pref,omitempty"`
	CitySlug         string `json:"city,omitempty"`
	RegionSlug       string `json:"region,omitempty"`
	FeatureSlug      string `json:"feature,omitempty"`
	MinPriceYen      int64  `json:"min_price_yen,omitempty"`
	MaxPriceYen      int64  `json:"max_price_yen,omitempty"`
	PriceChangedOnly bool   `json:"price_changed_only,omitempty"`
	Page             int    `json:"page,omitempty"`
	PageSize         int    `json:"page_size,omitempty"`
	Sort             Sort   `json:"sort,omitempty"`
}

// Slugs returns the registry-backed dimensions of c.
func (c FilterCondition) Slugs() slugs.Set {
	return slugs.Set{
		Maker:   c.MakerSlug,
		Model:   c.ModelSlug,
		Pref:    c.PrefSlug,
		City:    c.CitySlug,
		Feature: c.FeatureSlug,
	}
}

// WithSlugs returns a copy of c with every non-empty dimension of s applied.
func (c FilterCondition) WithSlugs(s slugs.Set) FilterCondition {
	if s.Maker != "" {
		c.MakerSlug = s.Maker
	}
	if s.Model != "" {
		c.ModelSlug = s.Model
	}
	if s.Pref != "" {
		c.PrefSlug = s.Pref
	}
	if s.City != "" {
		c.CitySlug = s.City
	}
	if s.Feature != "" {
		c.FeatureSlug = s.Feature
	}
	return c
}

// HasRefinements reports whether c carries anything besides registry slugs,
// the default sort, and the first page.
func (c FilterCondition) HasRefinements() bool {
	return c.FreeText != "" ||
		c.RegionSlug != "" ||
		c.MinPriceYen > 0 ||
		c.MaxPriceYen > 0 ||
		c.PriceChangedOnly ||
		c.Page > 1 ||
		c.PageSize > 0 ||
		!c.Sort.IsDefault()
}

// Encode renders c as query parameters. Empty fields and the default sort are
// omitted so that Normalize(Encode(c)) == c for any normalized c.
func Encode(c FilterCondition) url.Values {
	v := url.Values{}
	set := func(key, value string) {
		if value != "" {
			v.Set(key, value)
		}
	}
	set(ParamText, c.FreeText)
	set(ParamMaker, c.MakerSlug)
	set(ParamModel, c.ModelSlug)
	set(ParamPref, c.PrefSlug)
	set(ParamCity, c.CitySlug)
	set(ParamRegion, c.RegionSlug)
	set(ParamFeature, c.FeatureSlug)
	if c.MinPriceYen > 0 {
		v.Set(ParamMinMan, FormatMan(c.MinPriceYen))
	}
	if c.MaxPriceYen > 0 {
		v.Set(ParamMaxMan, FormatMan(c.MaxPriceYen))
	}
	if c.PriceChangedOnly {
		v.Set(ParamPriceChanged, "1")
	}
	if c.Page > 0 {
		v.Set(ParamPage, strconv.Itoa(c.Page))
	}
	if c.PageSize > 0 {
		v.Set(ParamPageSize, strconv.Itoa(c.PageSize))
	}
	if !c.Sort.IsDefault() {
		v.Set(ParamSort, string(c.Sort))
	}
	return v
}

// FormatMan renders a yen amount in 10,000-yen units without trailing zeros.
func FormatMan(yen int64) string {
	return strconv.FormatFloat(float64(yen)/YenPerMan, 'f', -1, 64)
}
