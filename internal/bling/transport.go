package bling

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"bling-mirror/internal/clock"
	"bling-mirror/internal/logging"
	"bling-mirror/internal/metrics"
)

// Doer sends HTTP requests. *http.Client satisfies it.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Response is a fully read upstream response.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// OK reports a 200 response.
func (r *Response) OK() bool {
	return r != nil && r.StatusCode == http.StatusOK
}

// Transport serializes every upstream GET and spaces call starts by at least
// the configured interval. The lock is held across the wait and the whole
// exchange, so at most one request is in flight. Time spent in a slow call
// counts toward the interval: a call that takes longer than the interval is
// followed immediately by the next one.
type Transport struct {
	mu      sync.Mutex
	client  Doer
	limiter *rate.Limiter
	clock   clock.Clock
	log     zerolog.Logger
}

// NewTransport builds a Transport. A zero interval disables spacing.
func NewTransport(client Doer, interval time.Duration, clk clock.Clock) *Transport {
	if client == nil {
		client = &http.Client{}
	}
	if clk == nil {
		clk = clock.Real{}
	}
	limit := rate.Inf
	if interval > 0 {
		limit = rate.Every(interval)
	}
	return &Transport{
		client:  client,
		limiter: rate.NewLimiter(limit, 1),
		clock:   clk,
		log:     logging.Component("Transport"),
	}
}

// Get performs a throttled GET of rawURL with params appended to its query.
// Non-200 statuses are returned as a Response, not an error; only transport
// failures produce a KindUpstream error. Nothing is retried.
func (t *Transport) Get(ctx context.Context, rawURL string, header http.Header, params url.Values) (*Response, error) {
	req, err := newGetRequest(ctx, rawURL, header, params)
	if err != nil {
		return nil, NewError(KindUpstream, "GET "+rawURL, 0, err)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.wait(ctx); err != nil {
		return nil, NewError(KindUpstream, "GET "+req.URL.Path, 0, err)
	}

	start := time.Now()
	resp, err := t.client.Do(req)
	if err != nil {
		metrics.RecordUpstreamRequest(0, time.Since(start))
		t.log.Error().Err(err).Str("url", req.URL.Redacted()).Msg("upstream request failed")
		return nil, NewError(KindUpstream, "GET "+req.URL.Path, 0, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	metrics.RecordUpstreamRequest(resp.StatusCode, time.Since(start))
	if err != nil {
		return nil, NewError(KindUpstream, "GET "+req.URL.Path, resp.StatusCode, fmt.Errorf("read body: %w", err))
	}

	t.log.Debug().Str("path", req.URL.Path).Int("status", resp.StatusCode).Int("bytes", len(body)).Msg("upstream response")

	return &Response{StatusCode: resp.StatusCode, Header: resp.Header, Body: body}, nil
}

// wait blocks until the interval gate admits the next call. Caller holds mu.
func (t *Transport) wait(ctx context.Context) error {
	now := t.clock.Now()
	r := t.limiter.ReserveN(now, 1)
	if !r.OK() {
		return fmt.Errorf("throttle: reservation refused")
	}
	delay := r.DelayFrom(now)
	metrics.RecordThrottleWait(delay)
	if delay <= 0 {
		return nil
	}
	if err := t.clock.Sleep(ctx, delay); err != nil {
		r.CancelAt(t.clock.Now())
		return err
	}
	return nil
}

func newGetRequest(ctx context.Context, rawURL string, header http.Header, params url.Values) (*http.Request, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, err
	}
	if len(params) > 0 {
		q := u.Query()
		for k, vs := range params {
			for _, v := range vs {
				q.Add(k, v)
			}
		}
		u.RawQuery = q.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	return req, nil
}
