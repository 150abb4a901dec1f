// Package search fetches raw responses from the ArtAtlas search backend.
package search

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/manas-droid/ArtAtlas/engine/domain"
	"github.com/manas-droid/ArtAtlas/pkg/resilience"
)

var (
	// ErrEmptyQuery is returned for blank queries before any I/O. Other
	// rejected queries fail with a *domain.QueryError.
	ErrEmptyQuery = domain.ErrEmptyQuery
	// ErrTransport covers every failure to obtain a usable response:
	// network errors, unexpected statuses, bodies that are not JSON and
	// calls rejected by the circuit breaker.
	ErrTransport = errors.New("search: backend unavailable")
)

// TransportMessage is the user-facing text for ErrTransport.
const TransportMessage = "Search is temporarily unavailable. Please try again."

// maxBody caps the response size read from the backend.
const maxBody = 8 << 20

// Observer receives the outcome ("ok", "error" or "rejected") and latency
// of each backend call.
type Observer interface {
	Backend(outcome string, d time.Duration)
}

// Config configures a Client.
type Config struct {
	BaseURL string
	// Timeout bounds each call; zero means 10s.
	Timeout time.Duration
	Breaker resilience.BreakerOpts
	// HTTPClient overrides the default otelhttp-instrumented client.
	HTTPClient *http.Client
	Observer   Observer
	Logger     *slog.Logger
}

// Client calls GET {base}/api/search.
type Client struct {
	base    string
	timeout time.Duration
	http    *http.Client
	breaker *resilience.Breaker
	obs     Observer
	logger  *slog.Logger
}

// NewClient validates cfg and builds a Client.
func NewClient(cfg Config) (*Client, error) {
	u, err := url.Parse(cfg.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("search: invalid base url %q", cfg.BaseURL)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	logger := cfg.Logger.With("component", "search")
	bopts := cfg.Breaker
	userHook := bopts.OnStateChange
	bopts.OnStateChange = func(from, to resilience.State) {
		logger.Warn("backend breaker state changed", "from", from.String(), "to", to.String())
		if userHook != nil {
			userHook(from, to)
		}
	}
	return &Client{
		base:    strings.TrimRight(cfg.BaseURL, "/"),
		timeout: cfg.Timeout,
		http:    cfg.HTTPClient,
		breaker: resilience.NewBreaker(bopts),
		obs:     cfg.Observer,
		logger:  logger,
	}, nil
}

// BreakerState reports the backend circuit breaker state.
func (c *Client) BreakerState() resilience.State { return c.breaker.State() }

// Search fetches and decodes the backend response for query. The backend
// answers unmatched queries with 404 and a normal body, which is decoded
// like a 200. There are no retries.
func (c *Client) Search(ctx context.Context, query string) (domain.Response, error) {
	query, err := domain.NormalizeQuery(query)
	if err != nil {
		return domain.Response{}, err
	}

	start := time.Now()
	var resp domain.Response
	err = c.breaker.Call(ctx, func(ctx context.Context) error {
		var err error
		resp, err = c.fetch(ctx, query)
		return err
	})
	outcome := "ok"
	switch {
	case errors.Is(err, resilience.ErrCircuitOpen):
		outcome = "rejected"
		err = fmt.Errorf("%w: %w", ErrTransport, err)
	case err != nil:
		outcome = "error"
	}
	if c.obs != nil {
		c.obs.Backend(outcome, time.Since(start))
	}
	if err != nil {
		c.logger.Error("search failed", "query", query, "err", err)
		return domain.Response{}, err
	}
	return resp, nil
}

func (c *Client) fetch(ctx context.Context, query string) (domain.Response, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	endpoint := c.base + "/api/search?" + url.Values{"q": {query}}.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return domain.Response{}, fmt.Errorf("%w: build request: %w", ErrTransport, err)
	}
	req.Header.Set("Accept", "application/json")

	res, err := c.http.Do(req)
	if err != nil {
		return domain.Response{}, fmt.Errorf("%w: %w", ErrTransport, err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusNotFound && (res.StatusCode < 200 || res.StatusCode > 299) {
		_, _ = io.Copy(io.Discard, io.LimitReader(res.Body, maxBody))
		return domain.Response{}, fmt.Errorf("%w: status %d", ErrTransport, res.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(res.Body, maxBody))
	if err != nil {
		return domain.Response{}, fmt.Errorf("%w: read body: %w", ErrTransport, err)
	}
	out, err := domain.Decode(body)
	if err != nil {
		return domain.Response{}, fmt.Errorf("%w: %w", ErrTransport, err)
	}
	return out, nil
}

// UserMessage returns the text shown to users for err, or "" when err is
// not a transport failure.
func UserMessage(err error) string {
	if errors.Is(err, ErrTransport) {
		return TransportMessage
	}
	return ""
}
