// Package resolver defines the candidate/outcome model, the URL normalizer,
// result validation predicates, and the fallback resolver that walks search
// backends in priority order.
package resolver

import (
	"context"
	"errors"
)

// Status is the terminal classification of a resolution attempt.
type Status string

// Outcome status values.
const (
	StatusResolved   Status = "resolved"
	StatusUnresolved Status = "unresolved"
	StatusErrored    Status = "errored"
)

var (
	// ErrEmptyInput is reported for candidates whose input is blank.
	ErrEmptyInput = errors.New("empty input")
	// ErrExhausted is reported when every backend came back empty and the
	// exhaustion policy asks for a hard failure.
	ErrExhausted = errors.New("no backend returned an acceptable result")
)

// Candidate is one input row awaiting resolution.
type Candidate struct {
	ID    string `json:"id"`
	Input string `json:"text"`
}

// BackendResult is the answer of a single backend invocation.
type BackendResult struct {
	URL   string
	Found bool
}

// Found wraps a URL produced by a backend.
func Found(url string) BackendResult {
	return BackendResult{URL: url, Found: true}
}

// NotFound is the absence of a usable result.
func NotFound() BackendResult {
	return BackendResult{}
}

// Outcome is the immutable result of resolving one Candidate.
type Outcome struct {
	ID     string `json:"id"`
	URL    string `json:"url,omitempty"`
	Status Status `json:"status"`
	Error  string `json:"error,omitempty"`
	// Engine names the backend that produced a resolved URL.
	Engine string `json:"engine,omitempty"`
}

// Errored builds an errored outcome for id carrying err's text.
func Errored(id string, err error) Outcome {
	detail := "unknown error"
	if err != nil {
		detail = err.Error()
	}
	return Outcome{ID: id, Status: StatusErrored, Error: detail}
}

// Backend is one search-engine integration. Query never fails: transport,
// parse and timeout problems all collapse into NotFound. Implementations
// must be safe for concurrent use.
type Backend interface {
	Name() string
	Query(ctx context.Context, text string) BackendResult
}
