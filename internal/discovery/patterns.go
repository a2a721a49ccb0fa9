package discovery

import (
	"net/url"
	"regexp"
	"strings"
)

// Path fragments that are never product detail pages.
var excludedPathParts = []string{
	"/category/",
	"/search",
	"/login",
	"/register",
	"/cart",
	"/checkout",
	"/account",
	"/favori",
	"/yardim",
	"/kampanya",
	"/magaza",
	"/hakkimizda",
}

// Shapes a product detail URL can take across the supported site families.
var productPatterns = []*regexp.Regexp{
	regexp.MustCompile(`/[^/]+-p-\d+`),
	regexp.MustCompile(`/p/[^/]+`),
	regexp.MustCompile(`/product/[^/]+`),
	regexp.MustCompile(`/urun/[^/]+`),
	regexp.MustCompile(`/dp/[a-z0-9]{8,}`),
}

// urlShaped finds URL-shaped substrings inside raw markup for the emergency
// phase, when the DOM itself cannot be queried.
var urlShaped = regexp.MustCompile(`https?://[^\s"'<>\\)]+|/[a-z0-9][a-z0-9\-/]*-p-\d+[^\s"'<>\\)]*`)

// IsProductURL reports whether a URL plausibly points at a product detail
// page: it must match one of the known product shapes and none of the
// excluded path fragments.
func IsProductURL(raw string) bool {
	lower := strings.ToLower(raw)
	for _, part := range excludedPathParts {
		if strings.Contains(lower, part) {
			return false
		}
	}
	for _, pat := range productPatterns {
		if pat.MatchString(lower) {
			return true
		}
	}
	return false
}

// NormalizeURL canonicalizes a URL for deduplication: lowercase scheme and
// host, default ports stripped, trailing path slash stripped, query and
// fragment dropped.
func NormalizeURL(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return raw
	}

	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)

	host := u.Hostname()
	port := u.Port()
	if (u.Scheme == "http" && port == "80") || (u.Scheme == "https" && port == "443") {
		u.Host = host
	}

	u.Path = strings.TrimSuffix(u.Path, "/")
	u.RawQuery = ""
	u.Fragment = ""

	return u.String()
}

// Absolutize resolves a possibly relative href against the site's base URL.
// Returns "" for hrefs that cannot produce a navigable http(s) URL.
func Absolutize(baseURL, href string) string {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "#") || strings.HasPrefix(href, "javascript:") {
		return ""
	}

	base, err := url.Parse(baseURL)
	if err != nil {
		return ""
	}
	ref, err := url.Parse(href)
	if err != nil {
		return ""
	}

	abs := base.ResolveReference(ref)
	if abs.Scheme != "http" && abs.Scheme != "https" {
		return ""
	}
	return abs.String()
}

// ExtractURLShaped pulls every URL-shaped substring out of raw markup.
func ExtractURLShaped(markup string) []string {
	return urlShaped.FindAllString(strings.ToLower(markup), -1)
}
