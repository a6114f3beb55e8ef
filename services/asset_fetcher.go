package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"mime"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"catalog-sync-worker/domain"
)

const (
	DefaultAssetWorkers    = 10
	DefaultAssetAttempts   = 3
	DefaultAssetRetryDelay = 200 * time.Millisecond
)

// AssetDownloader fetches the raw bytes of one asset. Implementations must be
// safe for concurrent use. Non-2xx responses are reported as *domain.HTTPStatusError.
type AssetDownloader interface {
	Download(ctx context.Context, url string) ([]byte, string, error)
}

// AssetMirror receives a copy of every successfully stored asset.
type AssetMirror interface {
	UploadBytes(ctx context.Context, key string, data []byte, contentType string) (string, error)
}

// AssetFetcher downloads one record's assets with a bounded worker pool.
type AssetFetcher struct {
	downloader AssetDownloader
	mirror     AssetMirror
	workers    int
	retry      RetryPolicy
}

type AssetFetcherOption func(*AssetFetcher)

func WithAssetWorkers(n int) AssetFetcherOption {
	return func(f *AssetFetcher) {
		if n > 0 {
			f.workers = n
		}
	}
}

func WithAssetRetry(p RetryPolicy) AssetFetcherOption {
	return func(f *AssetFetcher) { f.retry = p }
}

func WithAssetMirror(m AssetMirror) AssetFetcherOption {
	return func(f *AssetFetcher) { f.mirror = m }
}

func NewAssetFetcher(downloader AssetDownloader, opts ...AssetFetcherOption) *AssetFetcher {
	f := &AssetFetcher{
		downloader: downloader,
		workers:    DefaultAssetWorkers,
		retry:      NewRetryPolicy(DefaultAssetAttempts, DefaultAssetRetryDelay),
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.retry.Retryable == nil {
		f.retry.Retryable = retryableAssetError
	}
	return f
}

// FetchAll downloads assets into destinationDir and returns one result per
// distinct asset. Refs repeating an earlier URL or ordinal are dropped so no
// two workers write the same file. It waits for the whole batch.
func (f *AssetFetcher) FetchAll(ctx context.Context, assets []domain.AssetRef, destinationDir string) []domain.AssetFetchResult {
	refs := distinctAssets(assets)
	results := make([]domain.AssetFetchResult, len(refs))
	if len(refs) == 0 {
		return results
	}

	if err := os.MkdirAll(destinationDir, 0o755); err != nil {
		log.Printf("failed to create asset directory %s: %v", destinationDir, err)
		for i, ref := range refs {
			results[i] = domain.AssetFetchResult{Ref: ref, Reason: domain.ReasonWriteFailed, Err: err}
		}
		return results
	}

	var g errgroup.Group
	g.SetLimit(f.workers)
	for i, ref := range refs {
		i, ref := i, ref
		g.Go(func() error {
			results[i] = f.fetchOne(ctx, ref, destinationDir)
			return nil
		})
	}
	_ = g.Wait()

	return results
}

func (f *AssetFetcher) fetchOne(ctx context.Context, ref domain.AssetRef, dir string) domain.AssetFetchResult {
	res := domain.AssetFetchResult{Ref: ref}
	if ref.URL == "" {
		res.Reason = domain.ReasonInvalidURL
		return res
	}
	if strings.HasPrefix(strings.ToLower(ref.URL), "data:") {
		res.Reason = domain.ReasonInlineData
		return res
	}

	var (
		data        []byte
		contentType string
	)
	attempts, err := f.retry.Do(ctx, func(int) error {
		var dErr error
		data, contentType, dErr = f.downloader.Download(ctx, ref.URL)
		if dErr != nil {
			return dErr
		}
		if len(data) == 0 {
			return errEmptyBody
		}
		return nil
	})
	res.Attempts = attempts
	if err != nil {
		res.Err = err
		res.Reason = classifyAssetError(err)
		return res
	}

	name := fmt.Sprintf("asset_%d.%s", ref.Ordinal, AssetExtension(ref.URL, contentType))
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		res.Err = err
		res.Reason = domain.ReasonWriteFailed
		return res
	}
	res.Path = path

	if f.mirror != nil {
		key := filepath.ToSlash(filepath.Join(filepath.Base(filepath.Dir(dir)), filepath.Base(dir), name))
		if _, err := f.mirror.UploadBytes(ctx, key, data, contentType); err != nil {
			log.Printf("failed to mirror asset %s: %v", key, err)
		}
	}
	return res
}

var errEmptyBody = errors.New("empty body")

// retryableAssetError rejects client errors that another attempt cannot fix.
func retryableAssetError(err error) bool {
	var statusErr *domain.HTTPStatusError
	if errors.As(err, &statusErr) {
		code := statusErr.StatusCode
		if code >= 400 && code < 500 && code != http.StatusRequestTimeout && code != http.StatusTooManyRequests {
			return false
		}
	}
	return true
}

func classifyAssetError(err error) domain.FailureReason {
	var statusErr *domain.HTTPStatusError
	switch {
	case errors.As(err, &statusErr):
		return domain.ReasonHTTPStatus
	case errors.Is(err, errEmptyBody):
		return domain.ReasonEmptyBody
	default:
		return domain.ReasonTransport
	}
}

func distinctAssets(assets []domain.AssetRef) []domain.AssetRef {
	urls := make(map[string]bool, len(assets))
	ordinals := make(map[int]bool, len(assets))
	out := make([]domain.AssetRef, 0, len(assets))
	for _, a := range assets {
		if a.URL != "" && urls[a.URL] {
			continue
		}
		if ordinals[a.Ordinal] {
			continue
		}
		urls[a.URL] = true
		ordinals[a.Ordinal] = true
		out = append(out, a)
	}
	return out
}

var preferredExtensions = map[string]string{
	"image/jpeg": "jpg",
	"image/png":  "png",
	"image/webp": "webp",
	"image/gif":  "gif",
	"image/avif": "avif",
}

// AssetExtension picks a file extension from the content type, falling back
// to the URL path and finally to jpg.
func AssetExtension(rawURL, contentType string) string {
	if contentType != "" {
		mediaType, _, err := mime.ParseMediaType(contentType)
		if err == nil {
			if ext, ok := preferredExtensions[mediaType]; ok {
				return ext
			}
			if exts, err := mime.ExtensionsByType(mediaType); err == nil && len(exts) > 0 {
				return strings.TrimPrefix(exts[0], ".")
			}
		}
	}

	urlPath := rawURL
	if u, err := url.Parse(rawURL); err == nil {
		urlPath = u.Path
	}
	urlExt := path.Ext(urlPath)
	if urlExt != "" && len(urlExt) < 6 {
		return strings.ToLower(strings.TrimPrefix(urlExt, "."))
	}
	return "jpg"
}

// AssetSummary aggregates a record's asset outcome.
type AssetSummary struct {
	OK     int
	Failed int
}

func (s AssetSummary) AnySucceeded() bool { return s.OK > 0 }

func Summarize(results []domain.AssetFetchResult) AssetSummary {
	var s AssetSummary
	for _, r := range results {
		if r.Success() {
			s.OK++
		} else {
			s.Failed++
		}
	}
	return s
}
