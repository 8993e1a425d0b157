// Package conversation binds loaded vector indexes and replayed transcripts
// into active conversations and executes chat turns against them.
//
// Turns for the same content id are serialized; different ids run in
// parallel. Usage limits come from the session store: an expired or
// exhausted session gets a terminal reply instead of an answer, and neither
// that reply nor a failed generation consumes quota.
package conversation
