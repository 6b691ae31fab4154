package resolver

import "strings"

const defaultScheme = "http://"

// Normalize prefixes a scheme when missing and strips trailing slashes.
// Empty input, and input with nothing but slashes after the scheme, is
// returned unchanged.
func Normalize(raw string) string {
	if raw == "" {
		return raw
	}
	scheme, rest := splitScheme(raw)
	if scheme == "" {
		scheme = defaultScheme
	}
	rest = strings.TrimRight(rest, "/")
	if rest == "" {
		return raw
	}
	return scheme + rest
}

// HasHTTPScheme reports whether raw starts with http:// or https://.
func HasHTTPScheme(raw string) bool {
	scheme, _ := splitScheme(raw)
	return scheme != ""
}

func splitScheme(raw string) (string, string) {
	for _, scheme := range []string{"http://", "https://"} {
		if len(raw) >= len(scheme) && strings.EqualFold(raw[:len(scheme)], scheme) {
			return raw[:len(scheme)], raw[len(scheme):]
		}
	}
	return "", raw
}
