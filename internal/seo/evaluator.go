package seo

import (
	"context"
	"net/url"
	"strconv"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/JakeFAU/carsearch/internal/inventory"
	"github.com/JakeFAU/carsearch/internal/query"
	"github.com/JakeFAU/carsearch/internal/store"
	"github.com/JakeFAU/carsearch/internal/telemetry"
)

// Status is the outcome the serving layer should produce.
type Status string

// Directive statuses.
const (
	StatusOK       Status = "ok"
	StatusRedirect Status = "redirect"
	StatusNotFound Status = "not_found"
)

// Robots meta values.
const (
	RobotsIndexFollow     = "index,follow"
	RobotsNoindexFollow   = "noindex,follow"
	RobotsNoindexNofollow = "noindex,nofollow"
)

// Directive tells the rendering tier how to present one page.
type Directive struct {
	Status       Status    `json:"status"`
	Robots       string    `json:"robots"`
	CanonicalURL string    `json:"canonical_url,omitempty"`
	RedirectURL  string    `json:"redirect_url,omitempty"`
	Title        string    `json:"title"`
	Description  string    `json:"description"`
	H1           string    `json:"h1"`
	RouteType    RouteType `json:"route_type"`
}

// Allowlist answers whether a canonical path may be indexed.
type Allowlist interface {
	IsWhitelisted(ctx context.Context, path string) bool
}

// Decider records an observation for a canonical path and returns the
// indexability decision.
type Decider interface {
	Decide(ctx context.Context, key string, count int) store.Decision
}

// Resolution is a classified request after keyword upgrade. Condition is
// what the page should actually search for.
type Resolution struct {
	Path      string                `json:"path"`
	Parsed    ParsedURL             `json:"parsed"`
	Upgrade   UpgradeResult         `json:"upgrade"`
	Condition query.FilterCondition `json:"condition"`
}

// Input is one page evaluation request.
type Input struct {
	Path       string
	Query      url.Values
	TotalCount int
	// Car is the listing for detail pages, nil when every lookup missed.
	Car *inventory.Car
}

// EvaluatorConfig holds site identity.
type EvaluatorConfig struct {
	BaseURL  string
	SiteName string
}

// Evaluator orchestrates classification, upgrade, canonicalization,
// allowlist, and hysteresis into a Directive.
type Evaluator struct {
	baseURL    string
	classifier *Classifier
	upgrader   *Upgrader
	builder    *Builder
	texts      *Texts
	allowlist  Allowlist
	decider    Decider
	logger     *zap.Logger
}

// NewEvaluator wires an Evaluator.
func NewEvaluator(
	cfg EvaluatorConfig,
	classifier *Classifier,
	upgrader *Upgrader,
	builder *Builder,
	texts *Texts,
	allow Allowlist,
	decider Decider,
	logger *zap.Logger,
) *Evaluator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Evaluator{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		classifier: classifier,
		upgrader:   upgrader,
		builder:    builder,
		texts:      texts,
		allowlist:  allow,
		decider:    decider,
		logger:     logger,
	}
}

// Resolve classifies the request and applies a keyword upgrade when the
// free text allows one.
func (e *Evaluator) Resolve(path string, values url.Values) Resolution {
	parsed := e.classifier.Classify(path, values)
	res := Resolution{Path: path, Parsed: parsed, Condition: parsed.FilterCondition}
	if parsed.RouteType == RouteUnknown || parsed.RouteType == RouteDetail || parsed.FreeText == "" {
		return res
	}
	res.Upgrade = e.upgrader.Upgrade(parsed.FreeText, parsed.Slugs())
	if res.Upgrade.CanUpgrade {
		cond := parsed.FilterCondition.WithSlugs(res.Upgrade.Detected)
		cond.FreeText = ""
		res.Condition = cond
	}
	return res
}

// Evaluate resolves and decides in one step.
func (e *Evaluator) Evaluate(ctx context.Context, in Input) Directive {
	return e.Decide(ctx, e.Resolve(in.Path, in.Query), in.TotalCount, in.Car)
}

// Decide produces the directive for a resolved request. totalCount is the
// match count of res.Condition before paging.
func (e *Evaluator) Decide(ctx context.Context, res Resolution, totalCount int, car *inventory.Car) Directive {
	ctx, span := telemetry.Tracer().Start(ctx, "seo.Evaluator.Decide")
	defer span.End()

	d := e.decide(ctx, res, totalCount, car)
	e.fillText(&d, res, totalCount, car)

	telemetry.ObserveDirective(string(d.RouteType), string(d.Status), d.Robots)
	span.SetAttributes(
		attribute.String("seo.route_type", string(d.RouteType)),
		attribute.String("seo.status", string(d.Status)),
		attribute.String("seo.robots", d.Robots),
	)
	return d
}

func (e *Evaluator) decide(ctx context.Context, res Resolution, totalCount int, car *inventory.Car) Directive {
	parsed := res.Parsed
	switch parsed.RouteType {
	case RouteUnknown:
		return notFound()
	case RouteDetail:
		if car == nil {
			return notFound()
		}
		canonical := DetailPath(parsed.DetailID)
		d := Directive{Status: StatusOK, Robots: RobotsIndexFollow, CanonicalURL: e.absolute(canonical), RouteType: RouteDetail}
		if res.Path != canonical {
			d.Status = StatusRedirect
			d.RedirectURL = e.absolute(canonical)
		}
		return d
	}

	cond := res.Condition
	page := cond.Page
	unpaged := cond
	unpaged.Page = 0
	dest := e.builder.Build(unpaged)

	if page >= 2 {
		canonical := e.builder.Build(cond).URL()
		if dest.Type == DestinationStructured {
			canonical = dest.Path + "?" + url.Values{query.ParamPage: {strconv.Itoa(page)}}.Encode()
		}
		return Directive{
			Status:       StatusOK,
			Robots:       RobotsNoindexFollow,
			CanonicalURL: e.absolute(canonical),
			RouteType:    dest.RouteType,
		}
	}

	if dest.Type == DestinationSearch {
		return Directive{
			Status:       StatusOK,
			Robots:       RobotsNoindexFollow,
			CanonicalURL: e.absolute(dest.URL()),
			RouteType:    RouteSearch,
		}
	}

	if res.Path != dest.Path {
		return Directive{
			Status:       StatusRedirect,
			Robots:       RobotsNoindexFollow,
			CanonicalURL: e.absolute(dest.Path),
			RedirectURL:  e.absolute(dest.Path),
			RouteType:    dest.RouteType,
		}
	}

	allowed := e.allowlist != nil && e.allowlist.IsWhitelisted(ctx, dest.Path)
	decision := store.DecisionNoindex
	if e.decider != nil {
		decision = e.decider.Decide(ctx, dest.Path, totalCount)
	}

	d := Directive{
		Status:       StatusOK,
		Robots:       RobotsNoindexFollow,
		CanonicalURL: e.absolute(dest.Path),
		RouteType:    dest.RouteType,
	}
	switch {
	case totalCount <= 0:
		d.CanonicalURL = e.absolute(e.builder.Parent(dest.RouteType, cond.Slugs()).Path)
	case allowed && decision == store.DecisionIndex:
		d.Robots = RobotsIndexFollow
	}
	e.logger.Debug("structured page evaluated",
		zap.String("path", dest.Path),
		zap.Int("total", totalCount),
		zap.Bool("allowlisted", allowed),
		zap.String("decision", string(decision)),
		zap.String("robots", d.Robots))
	return d
}

func (e *Evaluator) fillText(d *Directive, res Resolution, totalCount int, car *inventory.Car) {
	if d.Status == StatusRedirect {
		return
	}
	route := d.RouteType
	if d.Status == StatusNotFound {
		route = RouteUnknown
	}
	title, desc, h1, err := e.texts.Render(route, res.Condition, totalCount, car)
	if err != nil {
		e.logger.Warn("render page text failed", zap.String("route_type", string(route)), zap.Error(err))
		return
	}
	d.Title, d.Description, d.H1 = title, desc, h1
}

func (e *Evaluator) absolute(path string) string {
	return e.baseURL + path
}

func notFound() Directive {
	return Directive{Status: StatusNotFound, Robots: RobotsNoindexNofollow, RouteType: RouteUnknown}
}
