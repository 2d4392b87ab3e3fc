package server

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/JakeFAU/carsearch/internal/api"
	"github.com/JakeFAU/carsearch/internal/seo"
)

// Published lists the objects written by PublishSitemap.
type Published struct {
	Sitemap string `json:"sitemap"`
	Robots  string `json:"robots"`
	Paths   int    `json:"paths"`
}

// PublishSitemap renders sitemap.xml and robots.txt from the current
// allowlist and writes both to the configured blob store.
func (a *App) PublishSitemap(ctx context.Context) (Published, error) {
	if err := a.allowlist.Refresh(ctx); err != nil {
		return Published{}, fmt.Errorf("refresh allowlist: %w", err)
	}
	paths := a.allowlist.AllPaths(ctx)
	body, err := seo.Sitemap(a.cfg.Site.BaseURL, paths)
	if err != nil {
		return Published{}, err
	}
	sitemapLoc, err := a.blobStore.PutObject(ctx, "sitemap.xml", "application/xml; charset=utf-8", bytes.NewReader(body))
	if err != nil {
		return Published{}, fmt.Errorf("write sitemap: %w", err)
	}
	robots := seo.Robots(a.cfg.Site.BaseURL, seo.DefaultDisallow)
	robotsLoc, err := a.blobStore.PutObject(ctx, "robots.txt", "text/plain; charset=utf-8", strings.NewReader(robots))
	if err != nil {
		return Published{}, fmt.Errorf("write robots: %w", err)
	}
	out := Published{Sitemap: sitemapLoc, Robots: robotsLoc, Paths: len(seo.SitemapPaths(paths))}
	a.logger.Info("sitemap published",
		zap.String("sitemap", out.Sitemap),
		zap.String("robots", out.Robots),
		zap.Int("paths", out.Paths),
	)
	return out, nil
}

// Explain evaluates rawURL the way a page request would and returns every
// intermediate step. Hysteresis state is read but never written.
func (a *App) Explain(ctx context.Context, rawURL string) (api.PageResult, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return api.PageResult{}, fmt.Errorf("parse url: %w", err)
	}
	path := u.Path
	if path == "" {
		path = "/"
	}
	evaluator := a.newEvaluator(a.texts, seo.PreviewDecider{H: a.hysteresis})
	pages := api.NewPages(a.pageDeps(evaluator), a.cfg.Search.DefaultPageSize)
	return pages.Evaluate(ctx, path, u.Query()), nil
}
