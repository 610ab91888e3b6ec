// Package client is a Go client for the momo-ops REST API. GET responses can
// be served from a stale-while-revalidate cache that any write clears.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

type APIError struct {
	Status    int               `json:"-"`
	Message   string            `json:"error"`
	RequestID string            `json:"request_id"`
	Fields    map[string]string `json:"fields,omitempty"`
}

func (e *APIError) Error() string {
	msg := fmt.Sprintf("momo-ops: %d %s", e.Status, e.Message)
	if len(e.Fields) > 0 {
		parts := make([]string, 0, len(e.Fields))
		for k, v := range e.Fields {
			parts = append(parts, k+" "+v)
		}
		msg += " (" + strings.Join(parts, "; ") + ")"
	}
	if e.RequestID != "" {
		msg += " [request " + e.RequestID + "]"
	}
	return msg
}

type Client struct {
	baseURL string
	http    *http.Client

	mu    sync.RWMutex
	token string

	cache *swrCache
}

type Option func(*Client)

// WithToken sets the bearer token: a user access token or the anon key.
func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithCache enables the GET cache. Entries younger than fresh are served
// as is; entries younger than stale are served and refreshed in the
// background.
func WithCache(fresh, stale time.Duration) Option {
	return func(c *Client) { c.cache = newSWRCache(fresh, stale) }
}

func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SetToken switches the caller identity. Cached reads belong to the previous
// token and are dropped.
func (c *Client) SetToken(token string) {
	c.mu.Lock()
	changed := c.token != token
	c.token = token
	c.mu.Unlock()
	if changed && c.cache != nil {
		c.cache.invalidate()
	}
}

func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// send performs one request and returns the raw response body of a 2xx.
func (c *Client) send(ctx context.Context, method, path string, body io.Reader, contentType string, header http.Header) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, err
	}
	for k, v := range header {
		req.Header[k] = v
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")
	if token := c.Token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read %s %s: %w", method, path, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{Status: resp.StatusCode}
		if json.Unmarshal(raw, apiErr) != nil || apiErr.Message == "" {
			apiErr.Message = http.StatusText(resp.StatusCode)
		}
		if apiErr.RequestID == "" {
			apiErr.RequestID = resp.Header.Get("X-Request-ID")
		}
		return nil, apiErr
	}
	return raw, nil
}

// do sends body as JSON and decodes the response into out. Writes clear the
// GET cache.
func (c *Client) do(ctx context.Context, method, path string, body, out any, header http.Header) error {
	var rd io.Reader
	contentType := ""
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		rd = bytes.NewReader(b)
		contentType = "application/json"
	}

	if method == http.MethodGet {
		return c.get(ctx, path, out)
	}

	raw, err := c.send(ctx, method, path, rd, contentType, header)
	if c.cache != nil {
		c.cache.invalidate()
	}
	if err != nil {
		return err
	}
	return decodeInto(raw, out)
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	if c.cache == nil {
		raw, err := c.send(ctx, http.MethodGet, path, nil, "", nil)
		if err != nil {
			return err
		}
		return decodeInto(raw, out)
	}

	raw, err := c.cache.fetch(ctx, path, func(ctx context.Context) ([]byte, error) {
		return c.send(ctx, http.MethodGet, path, nil, "", nil)
	})
	if err != nil {
		return err
	}
	return decodeInto(raw, out)
}

func decodeInto(raw []byte, out any) error {
	if out == nil || len(raw) == 0 {
		return nil
	}
	if b, ok := out.(*[]byte); ok {
		*b = raw
		return nil
	}
	return json.Unmarshal(raw, out)
}

type cacheEntry struct {
	body []byte
	at   time.Time
}

type swrCache struct {
	fresh, stale time.Duration
	now          func() time.Time

	mu      sync.Mutex
	entries map[string]cacheEntry
	gen     uint64

	group singleflight.Group
	bg    sync.WaitGroup
}

func newSWRCache(fresh, stale time.Duration) *swrCache {
	return &swrCache{fresh: fresh, stale: stale, now: time.Now, entries: map[string]cacheEntry{}}
}

func (s *swrCache) fetch(ctx context.Context, key string, load func(context.Context) ([]byte, error)) ([]byte, error) {
	s.mu.Lock()
	e, ok := s.entries[key]
	gen := s.gen
	s.mu.Unlock()

	if ok {
		age := s.now().Sub(e.at)
		if age < s.fresh {
			return e.body, nil
		}
		if age < s.stale {
			s.revalidate(key, gen, load)
			return e.body, nil
		}
	}

	v, err, _ := s.group.Do(key, func() (any, error) {
		body, err := load(ctx)
		if err != nil {
			return nil, err
		}
		s.put(key, gen, body)
		return body, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]byte), nil
}

func (s *swrCache) revalidate(key string, gen uint64, load func(context.Context) ([]byte, error)) {
	s.bg.Add(1)
	go func() {
		defer s.bg.Done()
		_, _, _ = s.group.Do(key, func() (any, error) {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			body, err := load(ctx)
			if err != nil {
				return nil, err
			}
			s.put(key, gen, body)
			return body, nil
		})
	}()
}

// put stores body unless the cache was invalidated since the load began.
func (s *swrCache) put(key string, gen uint64, body []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gen != gen {
		return
	}
	s.entries[key] = cacheEntry{body: body, at: s.now()}
}

func (s *swrCache) invalidate() {
	s.mu.Lock()
	s.gen++
	s.entries = map[string]cacheEntry{}
	s.mu.Unlock()
}

// Wait blocks until background revalidations finish.
func (c *Client) Wait() {
	if c.cache != nil {
		c.cache.bg.Wait()
	}
}
