// Package config loads and validates urlfinder configuration via Viper.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/JakeFAU/urlfinder/internal/resolver"
	"github.com/JakeFAU/urlfinder/internal/search"
)

// EnvPrefix prefixes every environment override, e.g. URLFINDER_SERVER_PORT.
const EnvPrefix = "URLFINDER"

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Logging  LoggingConfig  `mapstructure:"logging"`
	Server   ServerConfig   `mapstructure:"server"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Executor ExecutorConfig `mapstructure:"executor"`
	Resolver ResolverConfig `mapstructure:"resolver"`
	Search   SearchConfig   `mapstructure:"search"`
	Progress ProgressConfig `mapstructure:"progress"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port                  int `mapstructure:"port"`
	RequestTimeoutSeconds int `mapstructure:"request_timeout_seconds"`
	MaxCandidates         int `mapstructure:"max_candidates"`
}

// AuthConfig defines API authentication toggles.
type AuthConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	APIKey  string `mapstructure:"api_key"`
}

// ExecutorConfig governs the batch worker pool.
type ExecutorConfig struct {
	MaxParallelism int `mapstructure:"max_parallelism"`
}

// ResolverConfig selects backends and resolution policies.
type ResolverConfig struct {
	Backends      []string `mapstructure:"backends"`
	QueryTemplate string   `mapstructure:"query_template"`
	Validation    string   `mapstructure:"validation"`
	OnExhausted   string   `mapstructure:"on_exhausted"`
}

// SearchConfig configures the scraping backends.
type SearchConfig struct {
	UserAgent      string            `mapstructure:"user_agent"`
	AcceptLanguage string            `mapstructure:"accept_language"`
	TimeoutSeconds int               `mapstructure:"timeout_seconds"`
	RateLimitRPS   float64           `mapstructure:"rate_limit_rps"`
	RateLimitBurst int               `mapstructure:"rate_limit_burst"`
	Endpoints      map[string]string `mapstructure:"endpoints"`
}

// ProgressConfig tunes the progress hub.
type ProgressConfig struct {
	BufferSize     int  `mapstructure:"buffer_size"`
	MaxBatchWaitMs int  `mapstructure:"max_batch_wait_ms"`
	LogEvents      bool `mapstructure:"log_events"`
}

// Load builds a Config from defaults, an optional file, and the environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("logging.development", true)
	v.SetDefault("logging.level", "")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.request_timeout_seconds", 120)
	v.SetDefault("server.max_candidates", 1000)
	v.SetDefault("auth.enabled", false)
	v.SetDefault("auth.api_key", "")
	v.SetDefault("executor.max_parallelism", 8)
	v.SetDefault("resolver.backends", []string{search.EngineBing, search.EngineDuckDuckGo, search.EngineGoogle})
	v.SetDefault("resolver.query_template", resolver.DefaultQueryTemplate)
	v.SetDefault("resolver.validation", resolver.ValidationNone)
	v.SetDefault("resolver.on_exhausted", resolver.ExhaustFallback.String())
	v.SetDefault("search.user_agent", search.DefaultUserAgent)
	v.SetDefault("search.accept_language", search.DefaultAcceptLanguage)
	v.SetDefault("search.timeout_seconds", 10)
	v.SetDefault("search.rate_limit_rps", 0)
	v.SetDefault("search.rate_limit_burst", 1)
	for _, name := range search.Names() {
		v.SetDefault("search.endpoints."+name, "")
	}
	v.SetDefault("progress.buffer_size", 1024)
	v.SetDefault("progress.max_batch_wait_ms", 250)
	v.SetDefault("progress.log_events", false)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return errors.New("server.port must be > 0")
	}
	if c.Server.RequestTimeoutSeconds <= 0 {
		return errors.New("server.request_timeout_seconds must be > 0")
	}
	if c.Server.MaxCandidates <= 0 {
		return errors.New("server.max_candidates must be > 0")
	}
	if c.Auth.Enabled && c.Auth.APIKey == "" {
		return errors.New("auth.api_key must be set when auth is enabled")
	}
	if c.Executor.MaxParallelism <= 0 {
		return errors.New("executor.max_parallelism must be > 0")
	}
	if len(c.Resolver.Backends) == 0 {
		return errors.New("resolver.backends must list at least one engine")
	}
	for _, name := range c.Resolver.Backends {
		if _, err := search.Lookup(name); err != nil {
			return fmt.Errorf("resolver.backends: %w", err)
		}
	}
	if !strings.Contains(c.Resolver.QueryTemplate, resolver.NamePlaceholder) {
		return fmt.Errorf("resolver.query_template must contain %s", resolver.NamePlaceholder)
	}
	if _, err := resolver.ParseValidation(c.Resolver.Validation); err != nil {
		return fmt.Errorf("resolver.validation: %w", err)
	}
	if _, err := resolver.ParseExhaustionPolicy(c.Resolver.OnExhausted); err != nil {
		return fmt.Errorf("resolver.on_exhausted: %w", err)
	}
	if c.Search.TimeoutSeconds <= 0 {
		return errors.New("search.timeout_seconds must be > 0")
	}
	if c.Search.RateLimitRPS < 0 {
		return errors.New("search.rate_limit_rps must be >= 0")
	}
	if c.Progress.BufferSize <= 0 {
		return errors.New("progress.buffer_size must be > 0")
	}
	return nil
}

// SearchTimeout is the per-query budget of a search backend.
func (c Config) SearchTimeout() time.Duration {
	return time.Duration(c.Search.TimeoutSeconds) * time.Second
}

// RequestTimeout bounds one API request, batch included.
func (c Config) RequestTimeout() time.Duration {
	return time.Duration(c.Server.RequestTimeoutSeconds) * time.Second
}

// ProgressWait is the hub's maximum batching delay.
func (c Config) ProgressWait() time.Duration {
	return time.Duration(c.Progress.MaxBatchWaitMs) * time.Millisecond
}

// ResolverOptions turns the resolver section into resolver.Options.
func (c Config) ResolverOptions(domainMode bool) (resolver.Options, error) {
	validator, err := resolver.ParseValidation(c.Resolver.Validation)
	if err != nil {
		return resolver.Options{}, fmt.Errorf("resolver.validation: %w", err)
	}
	policy, err := resolver.ParseExhaustionPolicy(c.Resolver.OnExhausted)
	if err != nil {
		return resolver.Options{}, fmt.Errorf("resolver.on_exhausted: %w", err)
	}
	template := c.Resolver.QueryTemplate
	if domainMode {
		template = resolver.DomainQueryTemplate
	}
	return resolver.Options{
		QueryTemplate: template,
		Validator:     validator,
		OnExhausted:   policy,
	}, nil
}
