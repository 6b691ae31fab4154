package resolver

import (
	"fmt"
	"net/url"
	"strings"
)

// Validator decides whether a backend URL is acceptable for a candidate.
type Validator func(c Candidate, rawURL string) bool

// Validation policy names accepted in configuration.
const (
	ValidationNone               = "none"
	ValidationDomainContainsName = "domain_contains_name"
)

// ParseValidation maps a configured policy name to a Validator. The "none"
// policy yields a nil Validator, which accepts everything.
func ParseValidation(name string) (Validator, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", ValidationNone:
		return nil, nil
	case ValidationDomainContainsName:
		return DomainContainsName, nil
	default:
		return nil, fmt.Errorf("unknown validation policy %q", name)
	}
}

// legalSuffixes are dropped from company names before matching.
var legalSuffixes = map[string]struct{}{
	"inc": {}, "incorporated": {}, "llc": {}, "llp": {}, "ltd": {}, "limited": {},
	"gmbh": {}, "ag": {}, "sa": {}, "sas": {}, "sarl": {}, "bv": {}, "nv": {},
	"plc": {}, "corp": {}, "corporation": {}, "co": {}, "company": {}, "group": {},
	"holding": {}, "holdings": {}, "the": {},
}

// DomainContainsName accepts a URL when its host, reduced to [a-z0-9],
// contains the candidate's name reduced the same way after dropping legal
// suffixes. Names that reduce to nothing are accepted.
func DomainContainsName(c Candidate, rawURL string) bool {
	name := compactName(c.Input)
	if name == "" {
		return true
	}
	host := hostOf(rawURL)
	if host == "" {
		return false
	}
	return strings.Contains(alnum(host), name)
}

func compactName(input string) string {
	input = strings.ToLower(strings.TrimSpace(input))
	if host, ok := domainShaped(input); ok {
		return alnum(firstLabel(host))
	}
	fields := strings.FieldsFunc(input, func(r rune) bool {
		return !isAlnum(r)
	})
	var b strings.Builder
	for _, f := range fields {
		if _, drop := legalSuffixes[f]; drop {
			continue
		}
		b.WriteString(f)
	}
	return b.String()
}

// domainShaped reports whether input is a simplified domain rather than a
// company name, returning its host.
func domainShaped(input string) (string, bool) {
	if strings.ContainsAny(input, " \t") {
		return "", false
	}
	host := hostOf(input)
	if !strings.Contains(host, ".") || strings.HasSuffix(host, ".") {
		return "", false
	}
	return host, true
}

func hostOf(raw string) string {
	u, err := url.Parse(Normalize(strings.TrimSpace(raw)))
	if err != nil {
		return ""
	}
	return strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
}

func firstLabel(host string) string {
	if i := strings.IndexByte(host, '.'); i >= 0 {
		return host[:i]
	}
	return host
}

func alnum(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		if isAlnum(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func isAlnum(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9')
}

// ExhaustionPolicy controls the outcome when no backend produced an
// acceptable URL.
type ExhaustionPolicy int

const (
	// ExhaustFallback yields Unresolved carrying the normalized input.
	ExhaustFallback ExhaustionPolicy = iota
	// ExhaustError yields Errored with ErrExhausted.
	ExhaustError
)

// ParseExhaustionPolicy maps "fallback" or "error" to a policy.
func ParseExhaustionPolicy(name string) (ExhaustionPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "fallback":
		return ExhaustFallback, nil
	case "error":
		return ExhaustError, nil
	default:
		return ExhaustFallback, fmt.Errorf("unknown exhaustion policy %q", name)
	}
}

func (p ExhaustionPolicy) String() string {
	if p == ExhaustError {
		return "error"
	}
	return "fallback"
}
