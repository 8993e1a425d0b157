package extract

import "errors"

var (
	// ErrNoText is returned when a document yields no text at all.
	ErrNoText = errors.New("no extractable text")

	// ErrFetchFailed is returned when a URL cannot be retrieved.
	ErrFetchFailed = errors.New("fetch failed")

	// ErrBodyTooLarge is returned when a fetched page exceeds the size cap.
	ErrBodyTooLarge = errors.New("response body too large")

	// ErrUnsupportedContent is returned for fetched pages that are neither
	// HTML nor plain text.
	ErrUnsupportedContent = errors.New("unsupported content type")

	// ErrInvalidArchive is returned for office files that are not valid zip archives.
	ErrInvalidArchive = errors.New("invalid office archive")
)
