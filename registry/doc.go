// Package registry tracks registered content items: their metadata, the raw
// sources retained on disk, and ownership.
//
// Removing an item deletes its metadata, its vector index and its retained
// source, then runs the registered removal hooks so dependent state (session
// records, loaded conversations) is dropped with it.
package registry
