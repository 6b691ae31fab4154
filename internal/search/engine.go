// Package search implements search-engine backends that scrape one result
// page per query with colly and pick the first usable organic link.
package search

import (
	"encoding/base64"
	"fmt"
	"net/url"
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/JakeFAU/urlfinder/internal/resolver"
)

// Engine names.
const (
	EngineBing       = "bing"
	EngineDuckDuckGo = "duckduckgo"
	EngineGoogle     = "google"
)

// Engine describes how to query one search engine and read its result page.
type Engine struct {
	Name string
	// Endpoint is the search URL without the query string.
	Endpoint string
	// Params renders the query string for text.
	Params func(text string) url.Values
	// Selector matches result anchors in document order.
	Selector string
	// Extract turns one matched anchor into a candidate link. href is
	// already resolved against the page URL. An empty return skips it.
	Extract func(href string, s *goquery.Selection) string
}

// SearchURL builds the GET URL for text.
func (e Engine) SearchURL(text string) string {
	return e.Endpoint + "?" + e.Params(text).Encode()
}

// WithEndpoint returns a copy of e pointed at endpoint. An empty endpoint
// keeps the default.
func (e Engine) WithEndpoint(endpoint string) Engine {
	if endpoint != "" {
		e.Endpoint = endpoint
	}
	return e
}

var engines = map[string]func() Engine{
	EngineBing:       Bing,
	EngineDuckDuckGo: DuckDuckGo,
	EngineGoogle:     Google,
}

// Lookup returns the engine definition registered under name.
func Lookup(name string) (Engine, error) {
	factory, ok := engines[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return Engine{}, fmt.Errorf("unknown search engine %q", name)
	}
	return factory(), nil
}

// Names lists the registered engines, sorted.
func Names() []string {
	names := make([]string, 0, len(engines))
	for name := range engines {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Bing reads organic results from li.b_algo items.
func Bing() Engine {
	return Engine{
		Name:     EngineBing,
		Endpoint: "https://www.bing.com/search",
		Params: func(text string) url.Values {
			return url.Values{"q": {text}}
		},
		Selector: "li.b_algo h2 a",
		Extract:  extractBing,
	}
}

func extractBing(href string, s *goquery.Selection) string {
	u, err := url.Parse(href)
	if err != nil {
		return ""
	}
	if !strings.HasSuffix(strings.ToLower(u.Hostname()), "bing.com") {
		return href
	}
	if target := decodeBingTarget(u.Query().Get("u")); target != "" {
		return target
	}
	// Tracking link we cannot decode: use the displayed URL instead.
	cite := strings.Fields(s.Closest("li.b_algo").Find("cite").First().Text())
	if len(cite) == 0 {
		return ""
	}
	if strings.Contains(cite[0], "://") {
		return cite[0]
	}
	return "https://" + cite[0]
}

// decodeBingTarget unpacks the "a1" + base64url target of a /ck/a link.
func decodeBingTarget(v string) string {
	if !strings.HasPrefix(v, "a1") {
		return ""
	}
	raw, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(v[2:], "="))
	if err != nil {
		return ""
	}
	return string(raw)
}

// DuckDuckGo reads the JavaScript-free HTML endpoint.
func DuckDuckGo() Engine {
	return Engine{
		Name:     EngineDuckDuckGo,
		Endpoint: "https://html.duckduckgo.com/html/",
		Params: func(text string) url.Values {
			return url.Values{"q": {text}}
		},
		Selector: "a.result__a",
		Extract:  extractDuckDuckGo,
	}
}

func extractDuckDuckGo(href string, _ *goquery.Selection) string {
	u, err := url.Parse(href)
	if err != nil {
		return ""
	}
	target := href
	if uddg := u.Query().Get("uddg"); uddg != "" {
		target = uddg
		if u, err = url.Parse(target); err != nil {
			return ""
		}
	}
	if strings.Contains(strings.ToLower(u.Hostname()), "duckduckgo.com") {
		return ""
	}
	return target
}

// Google reads organic results, unwrapping /url?q= redirects.
func Google() Engine {
	return Engine{
		Name:     EngineGoogle,
		Endpoint: "https://www.google.com/search",
		Params: func(text string) url.Values {
			return url.Values{"q": {text}, "num": {"10"}, "hl": {"en"}}
		},
		Selector: `div.yuRUbf a[href], div.g a[href], a[href^="/url?"]`,
		Extract:  extractGoogle,
	}
}

func extractGoogle(href string, s *goquery.Selection) string {
	u, err := url.Parse(href)
	if err != nil {
		return ""
	}
	target := href
	redirect := u.Path == "/url"
	if s != nil && !redirect {
		// Relative links other than redirects point back into Google.
		raw := s.AttrOr("href", "")
		if strings.HasPrefix(raw, "/") && !strings.HasPrefix(raw, "//") {
			return ""
		}
	}
	if redirect {
		q := u.Query().Get("q")
		if q == "" {
			q = u.Query().Get("url")
		}
		if q == "" {
			return ""
		}
		target = q
		if u, err = url.Parse(target); err != nil {
			return ""
		}
	}
	host := strings.ToLower(u.Hostname())
	if host == "google.com" || strings.HasPrefix(host, "google.") || strings.Contains(host, ".google.") ||
		strings.HasSuffix(host, ".googleusercontent.com") {
		return ""
	}
	return target
}

// Acceptable reports whether a candidate link is a usable result: it carries
// an HTTP(S) scheme and is not visibly truncated, escaped or not.
func Acceptable(link string) bool {
	if !resolver.HasHTTPScheme(link) || Truncated(link) {
		return false
	}
	if unescaped, err := url.PathUnescape(link); err == nil && Truncated(unescaped) {
		return false
	}
	return true
}

// Truncated reports whether s carries an ellipsis marker.
func Truncated(s string) bool {
	return strings.Contains(s, "…") || strings.Contains(s, "...")
}
