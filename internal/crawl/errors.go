// Package crawl gathers a site's pages through a crawl provider and a
// direct probe of well-known legal paths, producing the corpus every audit
// works from.
package crawl

import "fmt"

// Error represents a crawling failure.
type Error struct {
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("crawl error: %s: %v", e.Message, e.Cause)
	}
	return fmt.Sprintf("crawl error: %s", e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// ProviderError represents a failure in the external crawl provider API.
type ProviderError struct {
	Operation string
	Message   string
	Cause     error
}

func (e *ProviderError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("crawl provider %s: %s: %v", e.Operation, e.Message, e.Cause)
	}
	return fmt.Sprintf("crawl provider %s: %s", e.Operation, e.Message)
}

func (e *ProviderError) Unwrap() error {
	return e.Cause
}
