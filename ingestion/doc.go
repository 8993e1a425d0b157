// Package ingestion turns registered content into searchable vector indexes.
//
// A Pipeline runs four stages for one content item:
//   - extract text with a format adapter, or fetch it for URLs
//   - split sections into overlapping chunks
//   - embed chunks in batches, retrying transient provider errors
//   - build the item's vector index and swap it into place
//
// On completion the item's status moves to ready (with refined size and, for
// URLs, the page title as its name) or to failed with the error recorded.
// Ingest runs inline; Submit queues the same work on a worker pool.
package ingestion
