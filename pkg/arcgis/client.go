// Package arcgis resolves ArcGIS Hub dataset downloads. Hub exports are
// asynchronous: the download endpoint reports a job status and, once the
// export is "Completed", the URL of the generated file.
package arcgis

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

const (
	defaultPollInterval = 5 * time.Second
	defaultPollTimeout  = 30 * time.Minute
)

// Export job statuses reported by Hub.
const (
	StatusCompleted = "Completed"
	StatusFailed    = "Failed"
)

// ErrExportFailed is returned when Hub reports the export job failed.
var ErrExportFailed = eris.New("arcgis: export failed")

// Job is the status document returned by a Hub download endpoint.
type Job struct {
	Status            string  `json:"status"`
	ResultURL         string  `json:"resultUrl"`
	ProgressInPercent float64 `json:"progressInPercent,omitempty"`
	RecordCount       int64   `json:"recordCount,omitempty"`
}

// Option configures the client.
type Option func(*Client)

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.http = hc
	}
}

// WithClock sets the clock used between polls.
func WithClock(clock clockwork.Clock) Option {
	return func(c *Client) {
		c.clock = clock
	}
}

// WithPollInterval overrides the fixed interval between status polls.
func WithPollInterval(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.interval = d
		}
	}
}

// WithPollTimeout bounds the wait (applied only if the parent context has
// no deadline).
func WithPollTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.timeout = d
	}
}

// Client polls Hub export jobs.
type Client struct {
	http     *http.Client
	clock    clockwork.Clock
	interval time.Duration
	timeout  time.Duration
}

// NewClient creates a Hub export client.
func NewClient(opts ...Option) *Client {
	c := &Client{
		http:     &http.Client{Timeout: 60 * time.Second},
		clock:    clockwork.NewRealClock(),
		interval: defaultPollInterval,
		timeout:  defaultPollTimeout,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Status fetches the current export job status once. Server errors are
// returned as transient (retryable) errors.
func (c *Client) Status(ctx context.Context, exportURL string) (*Job, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, exportURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "arcgis: create request")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &transientError{eris.Wrap(err, "arcgis: send request")}
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &transientError{eris.Wrap(err, "arcgis: read response")}
	}

	if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
		return nil, &transientError{eris.Errorf("arcgis: status %d", resp.StatusCode)}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, eris.Errorf("arcgis: unexpected status %d: %s", resp.StatusCode, string(body))
	}

	var job Job
	if err := json.Unmarshal(body, &job); err != nil {
		return nil, eris.Wrap(err, "arcgis: unmarshal job")
	}
	return &job, nil
}

// WaitForExport polls exportURL at the fixed interval until the job reports
// "Completed" and returns the finished job. Pending statuses and transient
// errors are retried; a "Failed" job or any other error ends the wait.
func (c *Client) WaitForExport(ctx context.Context, exportURL string) (*Job, error) {
	if _, ok := ctx.Deadline(); !ok && c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	log := zap.L().With(zap.String("component", "arcgis"), zap.String("url", exportURL))

	for attempt := 1; ; attempt++ {
		job, err := c.Status(ctx, exportURL)
		switch {
		case err != nil && !isTransient(err):
			return nil, err
		case err != nil:
			log.Warn("export status unavailable, retrying", zap.Int("attempt", attempt), zap.Error(err))
		case strings.EqualFold(job.Status, StatusCompleted):
			if job.ResultURL == "" {
				return nil, eris.New("arcgis: completed export has no resultUrl")
			}
			log.Info("export completed", zap.String("result_url", job.ResultURL))
			return job, nil
		case strings.EqualFold(job.Status, StatusFailed):
			return nil, eris.Wrapf(ErrExportFailed, "arcgis: %s", exportURL)
		default:
			log.Info("export pending, waiting",
				zap.String("status", job.Status),
				zap.Float64("progress", job.ProgressInPercent),
				zap.Duration("interval", c.interval),
			)
		}

		select {
		case <-ctx.Done():
			return nil, eris.Wrapf(ctx.Err(), "arcgis: wait for export after %d polls", attempt)
		case <-c.clock.After(c.interval):
		}
	}
}

type transientError struct {
	err error
}

func (e *transientError) Error() string { return e.err.Error() }
func (e *transientError) Unwrap() error { return e.err }

func isTransient(err error) bool {
	var te *transientError
	return eris.As(err, &te)
}
