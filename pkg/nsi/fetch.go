package nsi

import (
	"context"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/atp-clean/internal/resilience"
)

// FetchOption configures Fetch.
type FetchOption func(*fetcher)

// WithHTTPClient sets the HTTP client used to download the index.
func WithHTTPClient(hc *http.Client) FetchOption {
	return func(f *fetcher) { f.httpClient = hc }
}

// WithRetry sets the retry policy for transient download failures.
func WithRetry(cfg resilience.RetryConfig) FetchOption {
	return func(f *fetcher) { f.retry = cfg }
}

type fetcher struct {
	httpClient *http.Client
	retry      resilience.RetryConfig
}

// Fetch downloads the index from url and filters it.
func Fetch(ctx context.Context, url string, opts ...FetchOption) (*Index, error) {
	f := &fetcher{
		httpClient: &http.Client{Timeout: 60 * time.Second},
		retry:      resilience.DefaultRetryConfig(),
	}
	for _, o := range opts {
		o(f)
	}
	f.retry.OnRetry = resilience.RetryLogger("nsi", "fetch")

	idx, err := resilience.DoVal(ctx, f.retry, func(ctx context.Context) (*Index, error) {
		return f.get(ctx, url)
	})
	if err != nil {
		return nil, err
	}
	idx.Filter()
	zap.L().Info("nsi: index fetched", zap.String("url", url), zap.Int("items", idx.Size()))
	return idx, nil
}

func (f *fetcher) get(ctx context.Context, url string) (*Index, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, eris.Wrap(err, "nsi: build request")
	}
	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "nsi: request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		err := eris.Errorf("nsi: fetch returned status %d", resp.StatusCode)
		if resilience.IsTransientHTTPStatus(resp.StatusCode) {
			return nil, resilience.NewTransientError(err, resp.StatusCode)
		}
		return nil, err
	}
	return Decode(resp.Body)
}
