// Package userdir looks up user records (rating, wallet) in the external
// user service.
package userdir

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand/v2"
	"net/url"
	"strings"
	"time"

	"github.com/valyala/fasthttp"
	"golang.org/x/sync/singleflight"

	"github.com/RMIT-FinTech-Club/History-Chess-Game-Back-End-sub000/internal/domain"
	"github.com/RMIT-FinTech-Club/History-Chess-Game-Back-End-sub000/internal/store"
)

type HeaderProvider func() map[string]string

type Client struct {
	baseURL string
	http    *fasthttp.Client
	headers HeaderProvider
	group   singleflight.Group

	timeout       time.Duration
	attempts      int
	defaultRating int
}

type Option func(*Client)

// WithTimeout caps each attempt; a shorter context deadline wins.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

func WithHeaderProvider(h HeaderProvider) Option {
	return func(c *Client) { c.headers = h }
}

// WithRetry sets the total number of attempts for retryable failures.
func WithRetry(attempts int) Option {
	return func(c *Client) { c.attempts = attempts }
}

// WithDefaultRating is used when the service omits a user's rating.
func WithDefaultRating(r int) Option {
	return func(c *Client) { c.defaultRating = r }
}

func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:       strings.TrimRight(baseURL, "/"),
		http:          &fasthttp.Client{MaxConnsPerHost: 64, MaxIdleConnDuration: time.Minute},
		timeout:       5 * time.Second,
		attempts:      3,
		defaultRating: store.DefaultRating,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.attempts = max(c.attempts, 1)
	return c
}

type userResponse struct {
	ID            string `json:"id"`
	Elo           *int   `json:"elo"`
	Rating        *int   `json:"rating"`
	WalletAddress string `json:"walletAddress"`
}

// LookupUser fetches GET /users/{id}. Concurrent lookups of one id share a
// request. A 404 maps to store.ErrNotFound.
func (c *Client) LookupUser(ctx context.Context, id string) (domain.User, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return domain.User{}, fmt.Errorf("empty user id: %w", store.ErrNotFound)
	}
	v, err, _ := c.group.Do(id, func() (any, error) {
		var resp userResponse
		if err := c.getJSON(ctx, "/users/"+url.PathEscape(id), &resp); err != nil {
			return domain.User{}, err
		}
		u := domain.User{ID: id, Rating: c.defaultRating, Wallet: resp.WalletAddress}
		if resp.Rating != nil {
			u.Rating = *resp.Rating
		} else if resp.Elo != nil {
			u.Rating = *resp.Elo
		}
		return u, nil
	})
	if err != nil {
		return domain.User{}, fmt.Errorf("user %s: %w", id, err)
	}
	return v.(domain.User), nil
}

// statusError is a non-2xx answer.
type statusError struct {
	code int
	body string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("user service status=%d body=%s", e.code, e.body)
}

func (e *statusError) retryable() bool {
	return e.code == fasthttp.StatusTooManyRequests || e.code >= 500
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	var err error
	for attempt := 0; attempt < c.attempts; attempt++ {
		if attempt > 0 {
			if werr := wait(ctx, backoff(attempt)); werr != nil {
				return err
			}
		}
		var body []byte
		body, err = c.fetch(ctx, path)
		if err == nil {
			if uerr := json.Unmarshal(body, out); uerr != nil {
				return fmt.Errorf("decode response: %w", uerr)
			}
			return nil
		}
		if se, ok := err.(*statusError); ok {
			if se.code == fasthttp.StatusNotFound {
				return store.ErrNotFound
			}
			if !se.retryable() {
				return err
			}
		}
	}
	return err
}

// fetch performs one GET and returns a copy of the body on 2xx.
func (c *Client) fetch(ctx context.Context, path string) ([]byte, error) {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.Header.SetMethod(fasthttp.MethodGet)
	req.SetRequestURI(c.baseURL + path)
	req.Header.Set("Accept", "application/json")
	if c.headers != nil {
		for k, v := range c.headers() {
			if k != "" && v != "" {
				req.Header.Set(k, v)
			}
		}
	}

	deadline := time.Now().Add(c.timeout)
	if dl, ok := ctx.Deadline(); ok && dl.Before(deadline) {
		deadline = dl
	}
	if err := c.http.DoDeadline(req, resp, deadline); err != nil {
		return nil, fmt.Errorf("request: %w", err)
	}
	if code := resp.StatusCode(); code < 200 || code >= 300 {
		body := resp.Body()
		if len(body) > 256 {
			body = body[:256]
		}
		return nil, &statusError{code: code, body: string(body)}
	}
	return append([]byte(nil), resp.Body()...), nil
}

// backoff is 100ms doubling per attempt, capped at 2s, with up to 50% jitter.
func backoff(attempt int) time.Duration {
	d := min(100*time.Millisecond<<(attempt-1), 2*time.Second)
	return d/2 + rand.N(d/2+1)
}

func wait(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
