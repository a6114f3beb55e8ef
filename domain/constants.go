package domain

const (
	// NotFound is the sentinel stored for any field the extractor could not locate.
	NotFound = "not found"

	// Catalog kinds
	KindRent = "Rent"
	KindBuy  = "Buy"

	// Run statuses
	StatusRunning   = "RUNNING"
	StatusCompleted = "COMPLETED"
	StatusFailed    = "FAILED"

	// Message Types
	MsgTypeCatalogSynced = "catalog_synced"

	// Redis Key Patterns
	RedisKeySeen = "catalog:%s:seen:%s"
)

// StopReason explains why a page traversal ended.
type StopReason string

const (
	StopNone          StopReason = ""
	StopPageCap       StopReason = "page_cap"
	StopNoResults     StopReason = "no_results"
	StopEmptyPage     StopReason = "empty_page"
	StopAllDuplicates StopReason = "all_duplicates"
	StopFetchFailed   StopReason = "fetch_failed"
	StopInterrupted   StopReason = "interrupted"
)

// FailureReason classifies why a single asset could not be fetched.
type FailureReason string

const (
	ReasonInvalidURL  FailureReason = "invalid_url"
	ReasonInlineData  FailureReason = "inline_data"
	ReasonHTTPStatus  FailureReason = "http_status"
	ReasonEmptyBody   FailureReason = "empty_body"
	ReasonTransport   FailureReason = "transport"
	ReasonWriteFailed FailureReason = "write_failed"
)
