package registry

import "errors"

var (
	// ErrRepositoryRequired is returned when a content repository is not provided.
	ErrRepositoryRequired = errors.New("content repository required")

	// ErrIndexStoreRequired is returned when an index store is not provided.
	ErrIndexStoreRequired = errors.New("index store required")

	// ErrInvalidURL is returned for URLs that are not absolute http(s) URLs.
	ErrInvalidURL = errors.New("invalid url")

	// ErrEmptyFileName is returned when an upload has no usable file name.
	ErrEmptyFileName = errors.New("empty file name")
)
