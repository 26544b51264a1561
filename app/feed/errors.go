package feed

import (
	"fmt"
)

// FetchError is a transport-level failure reaching the source URL: DNS,
// connection refused, timeout, or a non-success HTTP status.
type FetchError struct {
	URL string
	Err error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("failed to fetch feed %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// ParseError means the fetched bytes could not be interpreted as a feed
// document at all.
type ParseError struct {
	URL string
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("failed to parse feed %s: %v", e.URL, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// InvalidFeedError means the document parsed but fails the minimum-validity
// precondition: no entries and no channel title, or a degraded-parse signal
// from the fetcher.
type InvalidFeedError struct {
	URL    string
	Reason string
}

func (e *InvalidFeedError) Error() string {
	return fmt.Sprintf("invalid feed %s: %s", e.URL, e.Reason)
}

// StoreError is a persistence-layer failure during title update or entry
// creation. Entries committed before the failure remain committed.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store failure during %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}
