package enrich

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"
)

const (
	// maxBodyBytes caps the amount of content downloaded per candidate.
	maxBodyBytes = 512 * 1024 // 512 KiB

	userAgent = "Mozilla/5.0 (compatible; radar-cli/1.0)"
)

// Fetcher retrieves raw content from a candidate URL. A non-2xx status is a
// per-item recoverable error.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (*FetchResult, error)
}

// FetchResult is the raw outcome of one fetch.
type FetchResult struct {
	Status      int
	ContentType string
	Body        string
}

// HTTPFetcher is a rate-limited HTTP GET fetcher. The limiter bounds
// outbound load on the publication sites across one pipeline run.
type HTTPFetcher struct {
	client  *http.Client
	limiter *rate.Limiter
}

// NewHTTPFetcher creates a fetcher allowing ratePerSec requests per second.
func NewHTTPFetcher(ratePerSec float64) *HTTPFetcher {
	if ratePerSec <= 0 {
		ratePerSec = 1
	}
	return &HTTPFetcher{
		client:  &http.Client{Timeout: 30 * time.Second},
		limiter: rate.NewLimiter(rate.Limit(ratePerSec), 1),
	}
}

func (f *HTTPFetcher) Fetch(ctx context.Context, url string) (*FetchResult, error) {
	if err := f.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "enrich: rate limit wait")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, eris.Wrapf(err, "enrich: create request for %s", url)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, eris.Wrapf(err, "enrich: fetch %s", url)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, eris.Errorf("enrich: %s returned status %d", url, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, eris.Wrapf(err, "enrich: read body of %s", url)
	}

	return &FetchResult{
		Status:      resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		Body:        string(body),
	}, nil
}
