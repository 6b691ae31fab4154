package search

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"

	"github.com/JakeFAU/urlfinder/internal/metrics"
	"github.com/JakeFAU/urlfinder/internal/policy/ratelimit"
	"github.com/JakeFAU/urlfinder/internal/resolver"
)

// Defaults applied when Config leaves a field empty.
const (
	DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 " +
		"(KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"
	DefaultAcceptLanguage = "en-US,en;q=0.9"
	DefaultTimeout        = 10 * time.Second
)

var errNoResult = errors.New("no acceptable result on page")

// Config controls collector behavior shared by every query of a Backend.
type Config struct {
	UserAgent      string
	AcceptLanguage string
	Timeout        time.Duration
	// Limiter paces queries per engine; nil disables pacing.
	Limiter *ratelimit.Limiter
	// Transport overrides the HTTP transport, mainly for tests.
	Transport http.RoundTripper
}

// Backend queries one Engine. It satisfies resolver.Backend.
type Backend struct {
	engine        Engine
	cfg           Config
	baseCollector *colly.Collector
	logger        *zap.Logger
}

type collectorHooks interface {
	OnRequest(colly.RequestCallback)
	OnHTML(string, colly.HTMLCallback)
	OnError(colly.ErrorCallback)
}

// New builds a Backend for engine.
func New(engine Engine, cfg Config, logger *zap.Logger) *Backend {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}
	if cfg.AcceptLanguage == "" {
		cfg.AcceptLanguage = DefaultAcceptLanguage
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	transport := cfg.Transport
	if transport == nil {
		transport = newHTTPTransport()
	}

	c := colly.NewCollector(colly.Async(false))
	c.UserAgent = cfg.UserAgent
	// Clones share the visited-URL store; the same query may repeat.
	c.AllowURLRevisit = true
	c.IgnoreRobotsTxt = true
	c.WithTransport(transport)
	c.SetRequestTimeout(cfg.Timeout)

	return &Backend{
		engine:        engine,
		cfg:           cfg,
		baseCollector: c,
		logger:        logger.Named("search").With(zap.String("engine", engine.Name)),
	}
}

// Name returns the engine name.
func (b *Backend) Name() string {
	return b.engine.Name
}

// Query searches for text and returns the first acceptable organic link.
// Every failure collapses into resolver.NotFound.
func (b *Backend) Query(ctx context.Context, text string) resolver.BackendResult {
	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, b.cfg.Timeout)
	defer cancel()

	link, err := b.search(ctx, text)
	duration := time.Since(start)
	switch {
	case err == nil:
		metrics.ObserveBackendQuery(b.engine.Name, metrics.ResultFound, duration)
		return resolver.Found(link)
	case errors.Is(err, errNoResult):
		metrics.ObserveBackendQuery(b.engine.Name, metrics.ResultNotFound, duration)
	default:
		metrics.ObserveBackendQuery(b.engine.Name, metrics.ResultError, duration)
	}
	b.logger.Debug("search returned no result",
		zap.String("query", text),
		zap.Duration("duration", duration),
		zap.Error(err),
	)
	return resolver.NotFound()
}

func (b *Backend) search(ctx context.Context, text string) (string, error) {
	if err := b.cfg.Limiter.Wait(ctx, b.engine.Name); err != nil {
		return "", err
	}
	var (
		link     string
		fetchErr error
	)
	collector := b.baseCollector.Clone()
	collector.Context = ctx
	b.configureCollectorHooks(collector, &link, &fetchErr)

	if err := runCollector(ctx, collector, b.engine.SearchURL(text), &fetchErr); err != nil {
		return "", err
	}
	if link == "" {
		return "", errNoResult
	}
	return link, nil
}

func (b *Backend) configureCollectorHooks(hooks collectorHooks, link *string, fetchErr *error) {
	hooks.OnRequest(func(r *colly.Request) {
		r.Headers.Set("Accept", "text/html,application/xhtml+xml")
		r.Headers.Set("Accept-Language", b.cfg.AcceptLanguage)
	})

	hooks.OnHTML(b.engine.Selector, func(e *colly.HTMLElement) {
		if *link != "" {
			return
		}
		href := e.Attr("href")
		if href == "" || Truncated(href) {
			return
		}
		if e.Request != nil {
			href = e.Request.AbsoluteURL(href)
		}
		if candidate := b.extract(href, e.DOM); Acceptable(candidate) {
			*link = candidate
		}
	})

	hooks.OnError(func(r *colly.Response, err error) {
		if r != nil && r.StatusCode != 0 {
			*fetchErr = fmt.Errorf("status %d: %w", r.StatusCode, err)
			return
		}
		*fetchErr = err
	})
}

func (b *Backend) extract(href string, s *goquery.Selection) string {
	if b.engine.Extract == nil {
		return href
	}
	return b.engine.Extract(href, s)
}

func runCollector(ctx context.Context, collector *colly.Collector, url string, fetchErr *error) error {
	done := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- fmt.Errorf("colly visit panicked: %v", r)
			}
		}()
		done <- collector.Visit(url)
	}()

	select {
	case <-ctx.Done():
		return fmt.Errorf("colly search canceled: %w", ctx.Err())
	case err := <-done:
		if err != nil {
			return fmt.Errorf("colly visit failed: %w", err)
		}
		if *fetchErr != nil {
			return fmt.Errorf("colly response failed: %w", *fetchErr)
		}
		return nil
	}
}

func newHTTPTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   5 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   5 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
	}
}
