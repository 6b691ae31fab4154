package search

import (
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/JakeFAU/urlfinder/internal/resolver"
)

// NewBackends builds one Backend per engine name, in the given order.
// endpoints optionally overrides an engine's default search URL.
func NewBackends(names []string, endpoints map[string]string, cfg Config, logger *zap.Logger) ([]resolver.Backend, error) {
	if len(names) == 0 {
		return nil, errors.New("no search engines configured")
	}
	seen := make(map[string]struct{}, len(names))
	backends := make([]resolver.Backend, 0, len(names))
	for _, name := range names {
		engine, err := Lookup(name)
		if err != nil {
			return nil, err
		}
		if _, dup := seen[engine.Name]; dup {
			return nil, fmt.Errorf("search engine %q listed twice", engine.Name)
		}
		seen[engine.Name] = struct{}{}
		engine = engine.WithEndpoint(strings.TrimSpace(endpoints[engine.Name]))
		backends = append(backends, New(engine, cfg, logger))
	}
	return backends, nil
}
