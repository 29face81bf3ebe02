// Package catalog is a client for the scene catalog JSON API: session handling,
// scene search, identifier resolution and metadata retrieval.
package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/mohammed-shakir/scene-catalog/internal/core/observability"
	"github.com/mohammed-shakir/scene-catalog/internal/logger"
)

const (
	authHeader     = "X-Auth-Token"
	defaultBackoff = 3 * time.Second
	listIDLength   = 10
	listIDAlphabet = "abcdefghijklmnopqrstuvwxyz"
	maxErrorBody   = 8 << 10
)

type Config struct {
	// BaseURL is the API root, e.g. https://m2m.cr.usgs.gov/api/api/json/stable/.
	BaseURL string
	// Backoff is the wait before the single retry of a rate limited request.
	Backoff time.Duration
}

type Session struct {
	Token    string
	IssuedAt time.Time
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.log = l
		}
	}
}

// WithListIDFunc replaces the generator of temporary scene list names.
func WithListIDFunc(fn func() string) Option {
	return func(c *Client) {
		if fn != nil {
			c.listID = fn
		}
	}
}

// WithSleep replaces the backoff wait, for tests.
func WithSleep(fn func(context.Context, time.Duration) error) Option {
	return func(c *Client) {
		if fn != nil {
			c.sleep = fn
		}
	}
}

type Client struct {
	base    *url.URL
	backoff time.Duration
	http    *http.Client
	log     *slog.Logger
	listID  func() string
	sleep   func(context.Context, time.Duration) error
	now     func() time.Time

	mu      sync.RWMutex
	session *Session
}

func New(cfg Config, opts ...Option) (*Client, error) {
	raw := strings.TrimSpace(cfg.BaseURL)
	if raw == "" {
		return nil, fmt.Errorf("catalog base url is empty")
	}
	if !strings.HasSuffix(raw, "/") {
		raw += "/"
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("parse catalog url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("catalog url %q is not absolute", cfg.BaseURL)
	}
	backoff := cfg.Backoff
	if backoff <= 0 {
		backoff = defaultBackoff
	}
	c := &Client{
		base:    u,
		backoff: backoff,
		http:    http.DefaultClient,
		log:     logger.Discard(),
		listID:  randomListID,
		sleep:   sleepCtx,
		now:     time.Now,
	}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

// Session returns the current session, if logged in.
func (c *Client) Session() (Session, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.session == nil {
		return Session{}, false
	}
	return *c.session, true
}

func (c *Client) token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.session == nil {
		return ""
	}
	return c.session.Token
}

type envelope struct {
	Data         json.RawMessage `json:"data"`
	ErrorCode    string          `json:"errorCode"`
	ErrorMessage string          `json:"errorMessage"`
}

// do sends one request and applies the retry policy: a rate limited request is
// repeated once after the backoff and the second result is final.
func (c *Client) do(ctx context.Context, endpoint string, payload any) (json.RawMessage, error) {
	ctx = logger.WithEndpoint(ctx, endpoint)
	if endpoint != "login" && c.token() == "" {
		return nil, &AuthenticationError{Code: CodeNoSession, Message: "not logged in"}
	}

	var body []byte
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encode %s request: %w", endpoint, err)
		}
		body = b
	}

	data, err := c.attempt(ctx, endpoint, body)
	if !IsRateLimit(err) {
		return data, err
	}

	observability.IncCatalogRetry(endpoint)
	c.log.WarnContext(ctx, "catalog rate limited, retrying", "backoff", c.backoff, "err", err)
	if serr := c.sleep(ctx, c.backoff); serr != nil {
		return nil, fmt.Errorf("%s: backoff interrupted: %w", endpoint, serr)
	}
	return c.attempt(ctx, endpoint, body)
}

func (c *Client) attempt(ctx context.Context, endpoint string, body []byte) (data json.RawMessage, err error) {
	start := c.now()
	defer func() {
		observability.ObserveCatalogRequest(endpoint, outcomeOf(err), time.Since(start).Seconds())
	}()

	u := c.base.ResolveReference(&url.URL{Path: endpoint})
	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.String(), rd)
	if err != nil {
		return nil, fmt.Errorf("build %s request: %w", endpoint, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if tok := c.token(); tok != "" {
		req.Header.Set(authHeader, tok)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", endpoint, err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%s: read body: %w", endpoint, err)
	}
	c.log.DebugContext(ctx, "catalog response",
		"status", resp.StatusCode,
		"bytes", len(raw),
		"duration", time.Since(start).String())

	var env envelope
	if jerr := json.Unmarshal(raw, &env); jerr != nil {
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return nil, &HTTPError{StatusCode: resp.StatusCode, Body: truncate(raw)}
		}
		return nil, fmt.Errorf("%s: decode envelope: %w", endpoint, jerr)
	}
	if err := classify(env.ErrorCode, env.ErrorMessage); err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &HTTPError{StatusCode: resp.StatusCode, Body: truncate(raw)}
	}
	return env.Data, nil
}

func truncate(b []byte) string {
	if len(b) > maxErrorBody {
		b = b[:maxErrorBody]
	}
	return strings.TrimSpace(string(b))
}

func isEmpty(raw json.RawMessage) bool {
	s := bytes.TrimSpace(raw)
	return len(s) == 0 || bytes.Equal(s, []byte("null"))
}

func randomListID() string {
	b := make([]byte, listIDLength)
	for i := range b {
		b[i] = listIDAlphabet[rand.IntN(len(listIDAlphabet))]
	}
	return string(b)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
