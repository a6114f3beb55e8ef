package repositories

import (
	"context"
	"fmt"

	"catalog-sync-worker/domain"
)

type DocumentFetcher interface {
	FetchDocument(ctx context.Context, url string) (string, error)
}

// HTTPPageSource renders result pages with plain HTTP requests.
type HTTPPageSource struct {
	fetcher DocumentFetcher
}

func NewHTTPPageSource(fetcher DocumentFetcher) *HTTPPageSource {
	return &HTTPPageSource{fetcher: fetcher}
}

func (s *HTTPPageSource) FetchPage(ctx context.Context, catalog domain.Catalog, page int) (domain.Page, error) {
	pageURL := catalog.PageURL(page)
	doc, err := s.fetcher.FetchDocument(ctx, pageURL)
	if err != nil {
		// error responses keep their text for the no-results check
		return errorPage(doc, pageURL, catalog), err
	}
	p, err := parseListPage(doc, pageURL, catalog)
	if err != nil {
		return p, fmt.Errorf("could not load listing cards from %s: %w", pageURL, err)
	}
	return p, nil
}

func errorPage(doc, pageURL string, catalog domain.Catalog) domain.Page {
	if doc == "" {
		return domain.Page{}
	}
	p, _ := parseListPage(doc, pageURL, catalog)
	return domain.Page{RawText: p.RawText}
}
