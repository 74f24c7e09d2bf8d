package history

// Package history records task snapshots in an in-memory SQLite store.
// Records are keyed by task ID (latest write wins), ordered by first
// insertion, and queryable with status/keyword/date filters. The store is
// session-scoped: closing it, or process exit, discards everything.
