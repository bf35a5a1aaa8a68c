package session

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// sourcePatterns find endpoint-like literals in script text. The first
// capture group is the candidate URL.
var sourcePatterns = []*regexp.Regexp{
	regexp.MustCompile(`["'](/[^"'\s]*api[^"'\s]*)["']`),
	regexp.MustCompile(`["'](https?://[^"'\s]*api[^"'\s]*)["']`),
	regexp.MustCompile(`(?i)endpoint\s*:\s*["']([^"']+)["']`),
	regexp.MustCompile(`(?i)baseUrl\s*:\s*["']([^"']+)["']`),
	regexp.MustCompile(`(?i)apiUrl\s*:\s*["']([^"']+)["']`),
	regexp.MustCompile("fetch\\(\\s*[\"'`]([^\"'`]+)[\"'`]"),
	regexp.MustCompile("\\.(?:post|get|put|delete|patch)\\(\\s*[\"'`]([^\"'`]+)[\"'`]"),
	regexp.MustCompile(`\$\.ajax\(\s*\{[^}]*url\s*:\s*["']([^"']+)["']`),
	regexp.MustCompile("new\\s+WebSocket\\(\\s*[\"'`]([^\"'`]+)[\"'`]"),
	regexp.MustCompile(`graphqlEndpoint\s*:\s*["']([^"']+)["']`),
	regexp.MustCompile(`new\s+ApolloClient\(\s*\{[^}]*uri\s*:\s*["']([^"']+)["']`),
}

// sourceAttributes carry endpoint URLs on arbitrary elements.
var sourceAttributes = []string{"data-url", "data-api", "data-endpoint"}

var scanSchemes = map[string]bool{"http": true, "https": true, "ws": true, "wss": true}

// ScanSource extracts endpoint-like URLs from page HTML: inline scripts, inline
// event handlers and data attributes. Hits are resolved against base and
// returned in document order without duplicates. Templated values are skipped.
func ScanSource(html, base string) ([]string, error) {
	baseURL, err := url.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	var hits []string
	seen := make(map[string]bool)
	add := func(raw string) {
		if u, ok := resolveHit(baseURL, raw); ok && !seen[u] {
			seen[u] = true
			hits = append(hits, u)
		}
	}

	doc.Find("script").Each(func(_ int, sel *goquery.Selection) {
		if _, external := sel.Attr("src"); external {
			return
		}
		for _, m := range MatchSource(sel.Text()) {
			add(m)
		}
	})

	doc.Find("[onclick], [onload], [onsubmit], [onchange]").Each(func(_ int, sel *goquery.Selection) {
		for _, attr := range []string{"onclick", "onload", "onsubmit", "onchange"} {
			if v, ok := sel.Attr(attr); ok {
				for _, m := range MatchSource(v) {
					add(m)
				}
			}
		}
	})

	for _, attr := range sourceAttributes {
		doc.Find("[" + attr + "]").Each(func(_ int, sel *goquery.Selection) {
			if v, ok := sel.Attr(attr); ok {
				add(v)
			}
		})
	}

	return hits, nil
}

// MatchSource returns the raw candidates the pattern table finds in text.
func MatchSource(text string) []string {
	var out []string
	for _, re := range sourcePatterns {
		for _, m := range re.FindAllStringSubmatch(text, -1) {
			if len(m) > 1 {
				out = append(out, m[1])
			}
		}
	}
	return out
}

func resolveHit(base *url.URL, raw string) (string, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" || strings.Contains(raw, "{{") || strings.Contains(raw, "${") {
		return "", false
	}
	ref, err := url.Parse(raw)
	if err != nil {
		return "", false
	}
	u := base.ResolveReference(ref)
	if !scanSchemes[strings.ToLower(u.Scheme)] || u.Host == "" {
		return "", false
	}
	u.Fragment = ""
	return u.String(), true
}
