package services

import (
	"context"
	"log"
	"strings"
	"time"

	"catalog-sync-worker/domain"
)

const (
	DefaultPageCap        = 50
	DefaultPageAttempts   = 3
	DefaultPageRetryDelay = 3 * time.Second
)

// PageSource renders one result page of a catalog query.
type PageSource interface {
	FetchPage(ctx context.Context, catalog domain.Catalog, page int) (domain.Page, error)
}

// PageIterator walks a catalog's result pages one at a time until a
// terminal condition is met. Once done it never fetches again.
type PageIterator struct {
	source  PageSource
	catalog domain.Catalog
	cap     int
	retry   RetryPolicy
	settle  time.Duration
	phrases []string

	page      int
	seenLinks map[string]struct{}
	done      bool
	stop      domain.StopReason
	succeeded int
}

func NewPageIterator(source PageSource, catalog domain.Catalog, pageCap int, retry RetryPolicy, settle time.Duration) *PageIterator {
	if pageCap <= 0 {
		pageCap = DefaultPageCap
	}
	phrases := make([]string, 0, len(catalog.NoResultsPhrases))
	for _, p := range catalog.NoResultsPhrases {
		if p = strings.ToLower(strings.TrimSpace(p)); p != "" {
			phrases = append(phrases, p)
		}
	}
	return &PageIterator{
		source:    source,
		catalog:   catalog,
		cap:       pageCap,
		retry:     retry,
		settle:    settle,
		phrases:   phrases,
		page:      1,
		seenLinks: make(map[string]struct{}),
	}
}

// Next returns the next page's new record links. ok is false once the
// traversal is done; StopReason then tells why.
func (it *PageIterator) Next(ctx context.Context) (domain.PageBatch, bool) {
	if it.done {
		return domain.PageBatch{}, false
	}
	if it.page > it.cap {
		return it.finish(domain.StopPageCap)
	}
	if ctx.Err() != nil {
		return it.finish(domain.StopInterrupted)
	}
	if it.page > 1 && it.settle > 0 && !sleepCtx(ctx, it.settle) {
		return it.finish(domain.StopInterrupted)
	}

	var page domain.Page
	_, err := it.retry.Do(ctx, func(attempt int) error {
		var fErr error
		page, fErr = it.source.FetchPage(ctx, it.catalog, it.page)
		if fErr != nil && it.hasNoResultsMarker(page.RawText) {
			// error pages usually lack the result container
			return nil
		}
		if fErr != nil {
			log.Printf("[%s] page %d attempt %d/%d failed: %v", it.catalog.Name, it.page, attempt, it.retry.MaxAttempts, fErr)
		}
		return fErr
	})
	if err != nil {
		if ctx.Err() != nil {
			return it.finish(domain.StopInterrupted)
		}
		log.Printf("[%s] giving up on page %d: %v", it.catalog.Name, it.page, err)
		return it.finish(domain.StopFetchFailed)
	}

	if it.hasNoResultsMarker(page.RawText) {
		return it.finish(domain.StopNoResults)
	}

	links := uniqueLinks(page.RecordLinks)
	if len(links) == 0 {
		return it.finish(domain.StopEmptyPage)
	}

	var fresh []string
	for _, l := range links {
		if _, ok := it.seenLinks[l]; !ok {
			fresh = append(fresh, l)
		}
	}
	if len(fresh) == 0 {
		return it.finish(domain.StopAllDuplicates)
	}
	for _, l := range fresh {
		it.seenLinks[l] = struct{}{}
	}

	it.succeeded++
	batch := domain.PageBatch{Number: it.page, Links: fresh}
	log.Printf("[%s] page %d: %d links, %d new", it.catalog.Name, it.page, len(links), len(fresh))
	it.page++
	return batch, true
}

func (it *PageIterator) StopReason() domain.StopReason { return it.stop }

// PagesSucceeded counts pages that yielded a batch.
func (it *PageIterator) PagesSucceeded() int { return it.succeeded }

func (it *PageIterator) finish(reason domain.StopReason) (domain.PageBatch, bool) {
	it.done = true
	it.stop = reason
	log.Printf("[%s] traversal stopped at page %d: %s", it.catalog.Name, it.page, reason)
	return domain.PageBatch{}, false
}

func (it *PageIterator) hasNoResultsMarker(text string) bool {
	if text == "" || len(it.phrases) == 0 {
		return false
	}
	lower := strings.ToLower(text)
	for _, p := range it.phrases {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}

func uniqueLinks(links []string) []string {
	seen := make(map[string]struct{}, len(links))
	out := make([]string, 0, len(links))
	for _, l := range links {
		l = strings.TrimSpace(l)
		if l == "" {
			continue
		}
		if _, ok := seen[l]; ok {
			continue
		}
		seen[l] = struct{}{}
		out = append(out, l)
	}
	return out
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
