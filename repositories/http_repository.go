package repositories

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"catalog-sync-worker/domain"
)

const DefaultUserAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// HTTPRepository is a connection-pooled client shared by all asset workers
// and the plain HTTP page source.
type HTTPRepository struct {
	client    *http.Client
	userAgent string
}

func NewHTTPRepository(timeout time.Duration, userAgent string) *HTTPRepository {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.MaxIdleConnsPerHost = 20
	return &HTTPRepository{
		client: &http.Client{
			Timeout:   timeout,
			Transport: transport,
		},
		userAgent: userAgent,
	}
}

// Download fetches url and returns its body and content type. Bodies of
// non-2xx responses are discarded.
func (r *HTTPRepository) Download(ctx context.Context, url string) ([]byte, string, error) {
	data, contentType, err := r.fetch(ctx, url)
	if err != nil {
		return nil, "", err
	}
	return data, contentType, nil
}

// FetchDocument returns the HTML of url as a string. A non-2xx response
// still returns its body next to the HTTPStatusError so error pages can be
// inspected.
func (r *HTTPRepository) FetchDocument(ctx context.Context, url string) (string, error) {
	data, _, err := r.fetch(ctx, url)
	return string(data), err
}

func (r *HTTPRepository) fetch(ctx context.Context, url string) ([]byte, string, error) {
	resp, err := r.get(ctx, url)
	if err != nil {
		return nil, "", err
	}
	defer resp.Body.Close()

	data, readErr := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return data, "", &domain.HTTPStatusError{URL: url, StatusCode: resp.StatusCode}
	}
	if readErr != nil {
		return nil, "", fmt.Errorf("%w: read body of %s: %v", domain.ErrTransientFetch, url, readErr)
	}

	return data, resp.Header.Get("Content-Type"), nil
}

func (r *HTTPRepository) get(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request for %s: %v", url, err)
	}
	req.Header.Set("User-Agent", r.userAgent)
	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to fetch URL %s: %v", domain.ErrTransientFetch, url, err)
	}
	return resp, nil
}
