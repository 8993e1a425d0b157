package vectorindex

import "errors"

var (
	// ErrIndexNotFound is returned when no index exists at the path.
	ErrIndexNotFound = errors.New("vector index not found")

	// ErrIndexCorrupt is returned when the path exists but holds no usable index.
	ErrIndexCorrupt = errors.New("vector index corrupt")

	// ErrNoChunks is returned when building an index from nothing.
	ErrNoChunks = errors.New("no chunks to index")

	// ErrDimensionMismatch is returned when chunk vectors differ in length.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")

	// errQueryByText is returned if chromem asks us to embed query text.
	// Queries always pass a precomputed vector.
	errQueryByText = errors.New("index is queried by vector only")
)
