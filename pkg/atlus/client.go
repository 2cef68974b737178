// Package atlus is a client for the Atlus address and phone parsing service
// (https://atlus.dev).
package atlus

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/sells-group/atp-clean/internal/model"
	"github.com/sells-group/atp-clean/internal/resilience"
)

// DefaultBaseURL is the public service.
const DefaultBaseURL = "https://atlus.dev/api/"

// Fields accepted by the batch endpoints.
const (
	FieldAddress = "address"
	FieldPhone   = "phone"
)

// Request is one value submitted for parsing. The service names the value
// "address" for both fields.
type Request struct {
	ID    string `json:"@id"`
	Value string `json:"address"`
}

// Result is the parsed tag set for one request, or an "error" member.
type Result map[string]any

// Err returns the error the service reported for this value, if any.
func (r Result) Err() string {
	switch v := r["error"].(type) {
	case nil:
		return ""
	case string:
		return v
	default:
		b, _ := json.Marshal(v)
		return string(b)
	}
}

// ID returns the echoed request id.
func (r Result) ID() (string, bool) {
	switch v := r["@id"].(type) {
	case string:
		return v, true
	case float64:
		b, _ := json.Marshal(v)
		return string(b), true
	}
	return "", false
}

// Client calls the batch endpoints.
type Client interface {
	// Batch parses reqs for field and returns one result per request, in order.
	Batch(ctx context.Context, field string, reqs []Request) ([]Result, error)
}

// Option configures the client.
type Option func(*client)

// WithHTTPClient sets the HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *client) { c.httpClient = hc }
}

// WithBaseURL points the client at another deployment, such as a local one.
func WithBaseURL(u string) Option {
	return func(c *client) {
		if !strings.HasSuffix(u, "/") {
			u += "/"
		}
		c.baseURL = u
	}
}

// WithRateLimit sets the maximum requests per second.
func WithRateLimit(rps float64) Option {
	return func(c *client) {
		burst := int(rps)
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// WithTimeout bounds each batch request.
func WithTimeout(d time.Duration) Option {
	return func(c *client) { c.timeout = d }
}

// WithRetry sets the retry policy for transient failures.
func WithRetry(cfg resilience.RetryConfig) Option {
	return func(c *client) { c.retry = cfg }
}

type client struct {
	httpClient *http.Client
	baseURL    string
	limiter    *rate.Limiter
	timeout    time.Duration
	retry      resilience.RetryConfig
}

// NewClient creates a Client with the given options.
func NewClient(opts ...Option) Client {
	c := &client{
		httpClient: &http.Client{},
		baseURL:    DefaultBaseURL,
		limiter:    rate.NewLimiter(4, 1),
		timeout:    10 * time.Second,
		retry:      resilience.DefaultRetryConfig(),
	}
	for _, o := range opts {
		o(c)
	}
	c.retry.OnRetry = resilience.RetryLogger("atlus", "batch")
	return c
}

type batchResponse struct {
	Data *[]Result `json:"data"`
}

func (c *client) Batch(ctx context.Context, field string, reqs []Request) ([]Result, error) {
	if field != FieldAddress && field != FieldPhone {
		return nil, eris.Errorf("atlus: unknown field %q", field)
	}
	if len(reqs) == 0 {
		return nil, nil
	}
	body, err := json.Marshal(reqs)
	if err != nil {
		return nil, eris.Wrap(err, "atlus: encode batch")
	}

	return resilience.DoVal(ctx, c.retry, func(ctx context.Context) ([]Result, error) {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, eris.Wrap(err, "atlus: rate limit")
		}
		ctx, cancel := context.WithTimeout(ctx, c.timeout)
		defer cancel()
		return c.post(ctx, c.baseURL+field+"/batch/", body)
	})
}

func (c *client) post(ctx context.Context, url string, body []byte) ([]Result, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, eris.Wrap(err, "atlus: build request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "atlus: request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		err := eris.Errorf("atlus: batch returned status %d", resp.StatusCode)
		if resilience.IsTransientHTTPStatus(resp.StatusCode) {
			return nil, resilience.NewTransientError(err, resp.StatusCode)
		}
		return nil, err
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "atlus: read body")
	}
	var br batchResponse
	if err := json.Unmarshal(data, &br); err != nil {
		return nil, eris.Wrapf(model.ErrMalformedUpstreamResponse, "atlus: parse response: %v", err)
	}
	if br.Data == nil {
		return nil, eris.Wrap(model.ErrMalformedUpstreamResponse, "atlus: response has no data")
	}
	return *br.Data, nil
}
