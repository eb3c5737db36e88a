// Package solar is a client for the Google Solar building-insights API.
package solar

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

const (
	defaultBaseURL          = "https://solar.googleapis.com/v1"
	defaultMinInterval      = 200 * time.Millisecond // stays under 300 requests per minute
	defaultThrottleCooldown = 90 * time.Second
	defaultQuality          = "HIGH"
)

var (
	// ErrNoData means the API has no usable building insights for the point.
	ErrNoData = eris.New("solar: no data")
	// ErrPermissionDenied means the API key was rejected. It is fatal for a batch.
	ErrPermissionDenied = eris.New("solar: permission denied")
	// ErrThrottled is returned only when a throttle retry bound is configured and exhausted.
	ErrThrottled = eris.New("solar: throttle retries exhausted")
)

// Request outcomes reported to an Observer.
const (
	OutcomeOK        = "ok"
	OutcomeNoData    = "no_data"
	OutcomeDenied    = "denied"
	OutcomeThrottled = "throttled"
	OutcomeError     = "error"
)

// Client looks up building insights by coordinate.
type Client interface {
	FindClosest(ctx context.Context, lat, lng float64) ([]byte, error)
}

// Observer receives one call per HTTP attempt.
type Observer interface {
	ObserveRequest(outcome string, elapsed time.Duration)
}

// SleepFunc blocks for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL overrides the default API base URL.
func WithBaseURL(url string) Option {
	return func(c *httpClient) {
		c.baseURL = url
	}
}

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithClock sets the clock used for request pacing and throttle cooldowns.
func WithClock(clock clockwork.Clock) Option {
	return func(c *httpClient) {
		c.sleep = clockSleep(clock)
	}
}

// WithSleep replaces the sleep used for pacing and cooldowns.
func WithSleep(fn SleepFunc) Option {
	return func(c *httpClient) {
		c.sleep = fn
	}
}

// WithMinInterval sets the pause before every request.
func WithMinInterval(d time.Duration) Option {
	return func(c *httpClient) {
		c.minInterval = d
	}
}

// WithThrottleCooldown sets the pause after a 429 before retrying.
func WithThrottleCooldown(d time.Duration) Option {
	return func(c *httpClient) {
		c.cooldown = d
	}
}

// WithMaxThrottleRetries bounds throttle retries. Zero means unbounded.
func WithMaxThrottleRetries(n int) Option {
	return func(c *httpClient) {
		c.maxThrottleRetries = n
	}
}

// WithRequiredQuality sets the requiredQuality query parameter.
func WithRequiredQuality(q string) Option {
	return func(c *httpClient) {
		if q != "" {
			c.quality = q
		}
	}
}

// WithObserver reports each attempt's outcome, typically to metrics.
func WithObserver(o Observer) Option {
	return func(c *httpClient) {
		c.observer = o
	}
}

type httpClient struct {
	apiKey             string
	baseURL            string
	quality            string
	http               *http.Client
	sleep              SleepFunc
	minInterval        time.Duration
	cooldown           time.Duration
	maxThrottleRetries int
	observer           Observer
}

// NewClient creates a Solar API client.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:      apiKey,
		baseURL:     defaultBaseURL,
		quality:     defaultQuality,
		minInterval: defaultMinInterval,
		cooldown:    defaultThrottleCooldown,
		sleep:       clockSleep(clockwork.NewRealClock()),
		http: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func clockSleep(clock clockwork.Clock) SleepFunc {
	return func(ctx context.Context, d time.Duration) error {
		if d <= 0 {
			return ctx.Err()
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-clock.After(d):
			return nil
		}
	}
}

// FindClosest returns the raw buildingInsights:findClosest payload for the
// building nearest to (lat, lng). Every attempt is preceded by the minimum
// interval. A 429 waits out the cooldown and retries the same request.
// 401 and 403 return ErrPermissionDenied; any other non-200 returns ErrNoData.
func (c *httpClient) FindClosest(ctx context.Context, lat, lng float64) ([]byte, error) {
	endpoint := c.findClosestURL(lat, lng)
	log := zap.L().With(
		zap.String("component", "solar"),
		zap.Float64("lat", lat),
		zap.Float64("lng", lng),
	)

	for throttles := 0; ; throttles++ {
		if err := c.sleep(ctx, c.minInterval); err != nil {
			return nil, eris.Wrap(err, "solar: pace request")
		}

		status, body, err := c.do(ctx, endpoint)
		if err != nil {
			return nil, err
		}

		switch {
		case status == http.StatusOK:
			return body, nil
		case status == http.StatusTooManyRequests:
			if c.maxThrottleRetries > 0 && throttles >= c.maxThrottleRetries {
				return nil, eris.Wrapf(ErrThrottled, "solar: after %d retries", throttles)
			}
			log.Warn("rate limit exceeded, cooling down",
				zap.Duration("cooldown", c.cooldown),
				zap.Int("retry", throttles+1),
			)
			if err := c.sleep(ctx, c.cooldown); err != nil {
				return nil, eris.Wrap(err, "solar: throttle cooldown")
			}
		case status == http.StatusUnauthorized || status == http.StatusForbidden:
			log.Error("access denied, check the API key and its permissions",
				zap.Int("status", status),
				zap.String("body", snippet(body)),
			)
			return nil, eris.Wrapf(ErrPermissionDenied, "solar: status %d", status)
		default:
			log.Debug("no solar data", zap.Int("status", status), zap.String("body", snippet(body)))
			return nil, eris.Wrapf(ErrNoData, "solar: status %d", status)
		}
	}
}

func (c *httpClient) findClosestURL(lat, lng float64) string {
	q := url.Values{}
	q.Set("location.latitude", strconv.FormatFloat(lat, 'f', -1, 64))
	q.Set("location.longitude", strconv.FormatFloat(lng, 'f', -1, 64))
	q.Set("requiredQuality", c.quality)
	return c.baseURL + "/buildingInsights:findClosest?" + q.Encode()
}

func (c *httpClient) do(ctx context.Context, endpoint string) (int, []byte, error) {
	start := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return 0, nil, eris.Wrap(err, "solar: create request")
	}
	req.Header.Set("X-Goog-Api-Key", c.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		c.observe(OutcomeError, start)
		return 0, nil, eris.Wrap(err, "solar: send request")
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		c.observe(OutcomeError, start)
		return 0, nil, eris.Wrap(err, "solar: read response")
	}

	c.observe(outcomeFor(resp.StatusCode), start)
	return resp.StatusCode, body, nil
}

func (c *httpClient) observe(outcome string, start time.Time) {
	if c.observer != nil {
		c.observer.ObserveRequest(outcome, time.Since(start))
	}
}

func outcomeFor(status int) string {
	switch status {
	case http.StatusOK:
		return OutcomeOK
	case http.StatusTooManyRequests:
		return OutcomeThrottled
	case http.StatusUnauthorized, http.StatusForbidden:
		return OutcomeDenied
	default:
		return OutcomeNoData
	}
}

func snippet(body []byte) string {
	const limit = 512
	if len(body) > limit {
		return fmt.Sprintf("%s... (%d bytes)", body[:limit], len(body))
	}
	return string(body)
}
