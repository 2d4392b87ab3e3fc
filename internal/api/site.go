package api

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/JakeFAU/carsearch/internal/seo"
)

// sitemap handles GET /sitemap.xml from the allowlisted paths.
func (s *Server) sitemap(w http.ResponseWriter, r *http.Request) {
	var paths []string
	if s.deps.Allowlist != nil {
		paths = s.deps.Allowlist.AllPaths(r.Context())
	}
	body, err := seo.Sitemap(s.baseURL, paths)
	if err != nil {
		s.logger.Error("render sitemap failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to render sitemap")
		return
	}
	w.Header().Set("Content-Type", "application/xml; charset=utf-8")
	if _, err := w.Write(body); err != nil {
		s.logger.Warn("sitemap write failed", zap.Error(err))
	}
}

func (s *Server) robots(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	if _, err := w.Write([]byte(seo.Robots(s.baseURL, seo.DefaultDisallow))); err != nil {
		s.logger.Warn("robots write failed", zap.Error(err))
	}
}
