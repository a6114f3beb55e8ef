package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrTransientFetch marks network and timeout failures that are worth retrying.
	ErrTransientFetch = errors.New("transient fetch error")
	// ErrStructural marks a page whose expected result container is missing.
	ErrStructural = errors.New("structural failure")
	// ErrFatalSetup aborts a run before any snapshot is touched.
	ErrFatalSetup = errors.New("fatal setup failure")
)

// HTTPStatusError is returned by downloaders for non-2xx responses.
type HTTPStatusError struct {
	URL        string
	StatusCode int
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("http_status_%d for %s", e.StatusCode, e.URL)
}

func (e *HTTPStatusError) Unwrap() error { return ErrTransientFetch }
