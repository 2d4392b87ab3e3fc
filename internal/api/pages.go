package api

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"go.uber.org/zap"

	"github.com/JakeFAU/carsearch/internal/inventory"
	"github.com/JakeFAU/carsearch/internal/query"
	"github.com/JakeFAU/carsearch/internal/search"
	"github.com/JakeFAU/carsearch/internal/seo"
)

// pageResponse reports page 0 and page_size 0 when the request was unpaged.
type pageResponse struct {
	SEO      seo.Directive   `json:"seo"`
	Total    int             `json:"total"`
	Items    []inventory.Car `json:"items"`
	Page     int             `json:"page"`
	PageSize int             `json:"page_size"`
}

type notFoundResponse struct {
	Error string        `json:"error"`
	SEO   seo.Directive `json:"seo"`
}

type searchResponse struct {
	Total int             `json:"total"`
	Items []inventory.Car `json:"items"`
}

// PageResult is the outcome of evaluating one listing or detail URL.
type PageResult struct {
	Resolution seo.Resolution        `json:"resolution"`
	Condition  query.FilterCondition `json:"condition"`
	Result     search.Result         `json:"result"`
	Directive  seo.Directive         `json:"directive"`
}

// Pages runs the page flow: resolve the URL, search or look up the car, then
// decide the directive.
type Pages struct {
	evaluator       PageEvaluator
	searcher        Searcher
	inventory       Inventory
	defaultPageSize int
}

// NewPages builds a Pages from the page collaborators in deps.
func NewPages(deps Deps, defaultPageSize int) *Pages {
	if defaultPageSize <= 0 {
		defaultPageSize = 20
	}
	return &Pages{
		evaluator:       deps.Evaluator,
		searcher:        deps.Searcher,
		inventory:       deps.Inventory,
		defaultPageSize: defaultPageSize,
	}
}

// Evaluate runs the page flow for path and its query parameters.
func (p *Pages) Evaluate(ctx context.Context, path string, values url.Values) PageResult {
	res := p.evaluator.Resolve(path, values)
	out := PageResult{Resolution: res, Condition: paged(res.Condition, p.defaultPageSize)}

	var car *inventory.Car
	switch res.Parsed.RouteType {
	case seo.RouteUnknown:
	case seo.RouteDetail:
		found, err := p.inventory.FindCar(ctx, res.Parsed.DetailID)
		if err == nil {
			car = &found
			out.Result = search.Result{Items: []inventory.Car{found}, TotalCount: 1}
		}
	default:
		out.Result = p.searcher.Search(ctx, out.Condition, p.inventory.Cars(ctx))
	}
	out.Result.Items = nonNil(out.Result.Items)
	out.Directive = p.evaluator.Decide(ctx, res, out.Result.TotalCount, car)
	return out
}

// page handles GET /cars/* and /results. It answers 301 when the directive
// redirects, 404 when the URL is not a page, and otherwise a page of cars
// together with the directive.
func (s *Server) page(w http.ResponseWriter, r *http.Request) {
	out := s.pages.Evaluate(r.Context(), r.URL.Path, r.URL.Query())
	d := out.Directive
	w.Header().Set("X-Robots-Tag", d.Robots)

	switch d.Status {
	case seo.StatusRedirect:
		http.Redirect(w, r, d.RedirectURL, http.StatusMovedPermanently)
	case seo.StatusNotFound:
		s.logger.Debug("page not found", zap.String("path", r.URL.Path))
		writeJSON(w, http.StatusNotFound, notFoundResponse{Error: "not found", SEO: d})
	default:
		if d.CanonicalURL != "" {
			w.Header().Set("Link", fmt.Sprintf("<%s>; rel=\"canonical\"", d.CanonicalURL))
		}
		writeJSON(w, http.StatusOK, pageResponse{
			SEO:      d,
			Total:    out.Result.TotalCount,
			Items:    out.Result.Items,
			Page:     out.Condition.Page,
			PageSize: out.Condition.PageSize,
		})
	}
}

// apiSearch handles GET /api/search. Slugs and names are read from query
// parameters only; no keyword upgrade or SEO decision is made.
func (s *Server) apiSearch(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	cond := paged(s.deps.Normalizer.Normalize(r.URL.Query()), s.defaultPageSize)
	result := s.deps.Searcher.Search(ctx, cond, s.deps.Inventory.Cars(ctx))
	writeJSON(w, http.StatusOK, searchResponse{Total: result.TotalCount, Items: nonNil(result.Items)})
}

// paged fills in the default page size when a page was requested. Without a
// page parameter the full match set is returned and Page stays 0.
func paged(cond query.FilterCondition, defaultPageSize int) query.FilterCondition {
	if cond.Page <= 0 {
		cond.Page, cond.PageSize = 0, 0
		return cond
	}
	if cond.PageSize <= 0 {
		cond.PageSize = defaultPageSize
	}
	return cond
}

func nonNil(items []inventory.Car) []inventory.Car {
	if items == nil {
		return []inventory.Car{}
	}
	return items
}
