// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package feed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	xglog "github.com/ManuGH/reelfeed/internal/log"
	"github.com/ManuGH/reelfeed/internal/metrics"
	"github.com/ManuGH/reelfeed/internal/resilience"
)

var (
	// ErrUnauthenticated indicates the backend rejected the viewer's credentials.
	ErrUnauthenticated = errors.New("viewer not authenticated")
	// ErrRejected indicates the backend refused the mutation (validation, policy).
	ErrRejected = errors.New("mutation rejected by backend")
)

// ReelPage is one page of reel records plus the continuation cursor.
type ReelPage struct {
	Records    []ReelRecord `json:"reels"`
	NextCursor string       `json:"nextCursor,omitempty"`
}

// Service is the REST collaborator contract the engine consumes. All
// mutations are idempotent on the backend; the engine never retries them
// automatically so that optimistic rollback stays prompt.
type Service interface {
	ListReels(ctx context.Context, cursor string, limit int) (ReelPage, error)
	Like(ctx context.Context, reelID string) (int64, error)
	Unlike(ctx context.Context, reelID string) (int64, error)
	Follow(ctx context.Context, userID string) error
	Unfollow(ctx context.Context, userID string) error
	Share(ctx context.Context, reelID string) (int64, error)
}

// TokenSource supplies the viewer's bearer token, empty when anonymous.
type TokenSource func(ctx context.Context) string

// ClientConfig configures the HTTP collaborator client.
type ClientConfig struct {
	BaseURL     string
	Timeout     time.Duration
	ListRetries int
	Token       TokenSource
}

// Client is the HTTP implementation of Service.
type Client struct {
	base        *url.URL
	httpClient  *http.Client
	token       TokenSource
	listRetries int
	breaker     *resilience.CircuitBreaker
}

// NewClient builds a Service against the given backend base URL.
func NewClient(cfg ClientConfig) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid feed base url: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("feed base url must be absolute: %q", cfg.BaseURL)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	retries := cfg.ListRetries
	if retries < 0 {
		retries = 0
	}

	return &Client{
		base: base,
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		token:       cfg.Token,
		listRetries: retries,
		breaker:     resilience.NewCircuitBreaker("feed_backend", 3, 30*time.Second),
	}, nil
}

// ListReels fetches one page of reel records with bounded backoff retries.
func (c *Client) ListReels(ctx context.Context, cursor string, limit int) (ReelPage, error) {
	if limit <= 0 {
		limit = 20
	}

	endpoint := c.endpoint("/api/reels")
	q := endpoint.Query()
	q.Set("limit", strconv.Itoa(limit))
	if cursor != "" {
		q.Set("cursor", cursor)
	}
	endpoint.RawQuery = q.Encode()

	start := time.Now()
	var page ReelPage
	var lastErr error
	for attempt := 0; attempt <= c.listRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(attempt*attempt*500) * time.Millisecond
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				metrics.ObserveFeedFetch(false, time.Since(start), ctx.Err())
				return ReelPage{}, ctx.Err()
			}
		}

		err := c.breaker.Execute(func() error {
			return c.getJSON(ctx, endpoint.String(), &page)
		})
		if err == nil {
			for i := range page.Records {
				page.Records[i].Normalize()
			}
			metrics.ObserveFeedFetch(false, time.Since(start), nil)
			return page, nil
		}
		lastErr = err
		if errors.Is(err, resilience.ErrCircuitOpen) || errors.Is(err, ErrUnauthenticated) {
			break
		}
		l := xglog.WithComponentFromContext(ctx, "feed-client")
		l.Debug().
			Err(err).
			Int(xglog.FieldAttempt, attempt).
			Msg("reel list fetch failed")
	}

	metrics.ObserveFeedFetch(false, time.Since(start), lastErr)
	return ReelPage{}, fmt.Errorf("list reels: %w", lastErr)
}

// Like adds the viewer's like and returns the updated count.
func (c *Client) Like(ctx context.Context, reelID string) (int64, error) {
	return c.counterMutation(ctx, http.MethodPost, "/api/reels/"+url.PathEscape(reelID)+"/like", "likes")
}

// Unlike removes the viewer's like and returns the updated count.
func (c *Client) Unlike(ctx context.Context, reelID string) (int64, error) {
	return c.counterMutation(ctx, http.MethodDelete, "/api/reels/"+url.PathEscape(reelID)+"/like", "likes")
}

// Follow creates the (viewer, owner) follow association.
func (c *Client) Follow(ctx context.Context, userID string) error {
	_, err := c.counterMutation(ctx, http.MethodPost, "/api/users/"+url.PathEscape(userID)+"/follow", "")
	return err
}

// Unfollow removes the (viewer, owner) follow association.
func (c *Client) Unfollow(ctx context.Context, userID string) error {
	_, err := c.counterMutation(ctx, http.MethodDelete, "/api/users/"+url.PathEscape(userID)+"/follow", "")
	return err
}

// Share increments the reel's share counter and returns the updated count.
func (c *Client) Share(ctx context.Context, reelID string) (int64, error) {
	return c.counterMutation(ctx, http.MethodPost, "/api/reels/"+url.PathEscape(reelID)+"/share", "shares")
}

func (c *Client) endpoint(path string) *url.URL {
	u := *c.base
	u.Path = strings.TrimRight(u.Path, "/") + path
	return &u
}

func (c *Client) getJSON(ctx context.Context, rawURL string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return err
	}
	c.authorize(ctx, req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if err := statusError(resp.StatusCode); err != nil {
		return err
	}
	return json.NewDecoder(io.LimitReader(resp.Body, 8<<20)).Decode(out)
}

// counterMutation performs a mutation and extracts the named counter from the
// response body. An empty counterField skips body parsing.
func (c *Client) counterMutation(ctx context.Context, method, path, counterField string) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.endpoint(path).String(), nil)
	if err != nil {
		return 0, err
	}
	c.authorize(ctx, req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, err
	}
	defer func() { _ = resp.Body.Close() }()

	if err := statusError(resp.StatusCode); err != nil {
		return 0, err
	}
	if counterField == "" {
		return 0, nil
	}

	var body map[string]int64
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&body); err != nil {
		return 0, fmt.Errorf("decode %s response: %w", counterField, err)
	}
	return body[counterField], nil
}

func (c *Client) authorize(ctx context.Context, req *http.Request) {
	if c.token == nil {
		return
	}
	if tok := c.token(ctx); tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	req.Header.Set("Accept", "application/json")
}

func statusError(code int) error {
	switch {
	case code >= 200 && code < 300:
		return nil
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return ErrUnauthenticated
	case code >= 400 && code < 500:
		return fmt.Errorf("%w (status %d)", ErrRejected, code)
	default:
		return fmt.Errorf("backend status %d", code)
	}
}

var _ Service = (*Client)(nil)
