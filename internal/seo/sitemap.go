package seo

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"slices"
	"strings"

	"github.com/JakeFAU/carsearch/internal/allowlist"
)

// DefaultDisallow lists path prefixes crawlers must never fetch.
var DefaultDisallow = []string{SearchPath, "/api/"}

type urlSet struct {
	XMLName xml.Name   `xml:"urlset"`
	XMLNS   string     `xml:"xmlns,attr"`
	URLs    []urlEntry `xml:"url"`
}

type urlEntry struct {
	Loc string `xml:"loc"`
}

// SitemapPaths normalizes paths to trailing-slash form, adds the top
// listing, drops invalid entries and duplicates, and sorts the result.
func SitemapPaths(paths []string) []string {
	seen := map[string]struct{}{StructuredRoot: {}}
	for _, p := range paths {
		norm, err := allowlist.NormalizePath(p)
		if err != nil || norm == "/" {
			continue
		}
		seen[norm] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for p := range seen {
		out = append(out, p)
	}
	slices.Sort(out)
	return out
}

// Sitemap renders a sitemap.xml document for paths under baseURL.
func Sitemap(baseURL string, paths []string) ([]byte, error) {
	base := strings.TrimRight(baseURL, "/")
	doc := urlSet{XMLNS: "http://www.sitemaps.org/schemas/sitemap/0.9"}
	for _, p := range SitemapPaths(paths) {
		doc.URLs = append(doc.URLs, urlEntry{Loc: base + p})
	}
	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	enc := xml.NewEncoder(&buf)
	enc.Indent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return nil, fmt.Errorf("encode sitemap: %w", err)
	}
	buf.WriteByte('\n')
	return buf.Bytes(), nil
}

// Robots renders robots.txt disallowing each prefix and pointing at the
// sitemap.
func Robots(baseURL string, disallow []string) string {
	var b strings.Builder
	b.WriteString("User-agent: *\n")
	for _, prefix := range disallow {
		fmt.Fprintf(&b, "Disallow: %s\n", prefix)
	}
	if baseURL != "" {
		fmt.Fprintf(&b, "Sitemap: %s/sitemap.xml\n", strings.TrimRight(baseURL, "/"))
	}
	return b.String()
}
