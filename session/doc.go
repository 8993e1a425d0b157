// Package session holds the durable per-content usage counters that gate
// conversations: when a session was created, how many messages it has
// accepted, and who owns it.
//
// Expiration is computed on read from the creation time; nothing is purged
// automatically. A record lives until its content item is removed.
package session
