// Package api hosts the HTTP server, middleware, and JSON handlers. Notable
// routes:
//   - GET /cars/* and /results return a page of cars plus the SEO directive
//     for the rendering tier, a 301 to the canonical URL, or a 404.
//   - GET /api/search is the plain JSON search used by legacy clients.
//   - GET /sitemap.xml and /robots.txt are generated from the allowlist.
//   - GET|PUT|DELETE /v1/allowlist manage indexable paths behind an API key.
//   - GET /healthz, /readyz, and /metrics for health checks and Prometheus.
package api
